// Package backingstore implements the append-only, byte-addressed disk
// file that holds every process's virtual memory image (spec §4.1).
//
// The store mmaps its file (grounded on the teacher's memory_bus.go,
// which keeps a contiguous byte slice as the backbone of its memory
// subsystem) instead of issuing a read(2)/write(2) per page, and calls
// unix.Msync with MS_SYNC before Write returns so a durable write is
// guaranteed to have landed before the caller sees it return, matching
// spec §4.1's "durably writes ... must flush before the call returns".
package backingstore

import (
	"fmt"
	"os"
	"sync"

	"golang.org/x/sys/unix"
)

const initialCapacity = 1 << 20 // 1MB; grown on demand

// FatalError marks a backing-store failure as unrecoverable per spec
// §4.1 ("failures are fatal — this is an educational system with no
// recovery path") and §7's NoEvictable-style fatal handling.
type FatalError struct {
	Op  string
	Err error
}

func (e *FatalError) Error() string { return fmt.Sprintf("backing store: %s: %v", e.Op, e.Err) }
func (e *FatalError) Unwrap() error { return e.Err }

// Store is the backing store: a single growable, mmap-backed file.
// One mutex serializes Reserve, ReadPage, and WritePage, per spec
// §4.1's "a single lock serializes" requirement.
type Store struct {
	mu       sync.Mutex
	file     *os.File
	data     []byte // mmap of file[:capacity]
	capacity int64
	length   int64 // high-water mark of reserved bytes
}

// Open creates (or truncates) the backing-store file at path and maps
// an initial region into memory.
func Open(path string) (*Store, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return nil, &FatalError{Op: "open", Err: err}
	}
	s := &Store{file: f}
	if err := s.growLocked(initialCapacity); err != nil {
		f.Close()
		return nil, err
	}
	return s, nil
}

// OpenExisting maps an already-populated backing-store file read/write
// without truncating it, for tools that inspect a prior run (spec
// SPEC_FULL §6B's one-shot `vcosd vmstat`) rather than starting a new
// one. The store's length is taken from the file's current size.
func OpenExisting(path string) (*Store, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0o600)
	if err != nil {
		return nil, &FatalError{Op: "open", Err: err}
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, &FatalError{Op: "stat", Err: err}
	}
	s := &Store{file: f, length: info.Size()}
	if err := s.growLocked(info.Size()); err != nil {
		f.Close()
		return nil, err
	}
	return s, nil
}

// Close unmaps and closes the backing store's file.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data != nil {
		unix.Munmap(s.data)
		s.data = nil
	}
	return s.file.Close()
}

// growLocked ensures the file and mapping are at least n bytes.
// Callers must hold s.mu.
func (s *Store) growLocked(n int64) error {
	if n <= s.capacity {
		return nil
	}
	newCap := s.capacity
	if newCap == 0 {
		newCap = initialCapacity
	}
	for newCap < n {
		newCap *= 2
	}
	if err := s.file.Truncate(newCap); err != nil {
		return &FatalError{Op: "truncate", Err: err}
	}
	if s.data != nil {
		unix.Munmap(s.data)
		s.data = nil
	}
	data, err := unix.Mmap(int(s.file.Fd()), 0, int(newCap), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return &FatalError{Op: "mmap", Err: err}
	}
	s.data = data
	s.capacity = newCap
	return nil
}

// Reserve appends a size-byte zero-filled region and returns its
// starting offset. Allocation is monotonic; reserved bytes are never
// reclaimed (spec §3 Invariant I6, §4.1).
func (s *Store) Reserve(size int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	offset := s.length
	if err := s.growLocked(offset + int64(size)); err != nil {
		return 0, err
	}
	for i := offset; i < offset+int64(size); i++ {
		s.data[i] = 0
	}
	s.length = offset + int64(size)
	return offset, nil
}

// ReadPage returns exactly frameSize bytes starting at offset.
func (s *Store) ReadPage(offset int64, frameSize int) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if offset < 0 || offset+int64(frameSize) > s.capacity {
		return nil, &FatalError{Op: "read_page", Err: fmt.Errorf("offset %d+%d out of mapped range %d", offset, frameSize, s.capacity)}
	}
	out := make([]byte, frameSize)
	copy(out, s.data[offset:offset+int64(frameSize)])
	return out, nil
}

// WritePage durably writes frameSize bytes at offset, flushing the
// mapped page to disk before returning.
func (s *Store) WritePage(offset int64, page []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if offset < 0 || offset+int64(len(page)) > s.capacity {
		return &FatalError{Op: "write_page", Err: fmt.Errorf("offset %d+%d out of mapped range %d", offset, len(page), s.capacity)}
	}
	copy(s.data[offset:offset+int64(len(page))], page)
	if err := unix.Msync(s.data[:s.capacity], unix.MS_SYNC); err != nil {
		return &FatalError{Op: "msync", Err: err}
	}
	return nil
}

// Length returns the current high-water mark of reserved bytes.
func (s *Store) Length() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.length
}
