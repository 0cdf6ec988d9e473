package system

import (
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"
)

// generator is the creation generator of spec §4.4.3: while running it
// posts a new CreateAuto request every period, sizing each process
// randomly within [minMem, maxMem] (a power of two). It is started
// once at System construction and toggled on/off by
// System.SchedulerStart/SchedulerStop — the shell's "scheduler-start"/
// "scheduler-stop" commands flip this Boolean, they do not start or
// stop the scheduler's own goroutines (those run for the System's
// whole lifetime).
type generator struct {
	period  time.Duration
	minMem  int
	maxMem  int
	create  func(name string, size int) error

	running atomic.Bool
	stop    chan struct{}
	wg      sync.WaitGroup

	mu      sync.Mutex
	rng     *rand.Rand
	counter int
}

func newGenerator(period time.Duration, minMem, maxMem int, create func(name string, size int) error) *generator {
	return &generator{
		period: period,
		minMem: minMem,
		maxMem: maxMem,
		create: create,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
		stop:   make(chan struct{}),
	}
}

// start launches the generator's background goroutine. It only posts
// requests while Enable has been called.
func (g *generator) start() {
	g.wg.Add(1)
	go g.loop()
}

// close permanently stops the generator goroutine.
func (g *generator) close() {
	close(g.stop)
	g.wg.Wait()
}

// Enable turns maker_running on.
func (g *generator) Enable() { g.running.Store(true) }

// Disable turns maker_running off; already-enqueued work is undisturbed
// (spec §4.4.3).
func (g *generator) Disable() { g.running.Store(false) }

// Enabled reports the current value of maker_running.
func (g *generator) Enabled() bool { return g.running.Load() }

func (g *generator) loop() {
	defer g.wg.Done()
	ticker := time.NewTicker(g.period)
	defer ticker.Stop()
	for {
		select {
		case <-g.stop:
			return
		case <-ticker.C:
			if !g.running.Load() {
				continue
			}
			name, size := g.next()
			if err := g.create(name, size); err != nil {
				// A name collision or shutdown race is not fatal: the
				// generator just tries again next period.
				continue
			}
		}
	}
}

func (g *generator) next() (string, int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.counter++
	name := fmt.Sprintf("p%04d", g.counter)
	size := randomPow2InRange(g.minMem, g.maxMem, g.rng)
	return name, size
}

// randomPow2InRange picks uniformly among the powers of two in
// [min, max] (both powers of two themselves, per spec §3).
func randomPow2InRange(min, max int, rng *rand.Rand) int {
	var options []int
	for v := min; v <= max; v *= 2 {
		options = append(options, v)
	}
	if len(options) == 0 {
		return min
	}
	return options[rng.Intn(len(options))]
}
