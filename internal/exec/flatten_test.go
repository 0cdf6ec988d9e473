package exec

import "testing"

func TestSplitCommandsRespectsBracesAndQuotes(t *testing.T) {
	got, err := SplitCommands(`DECLARE x 1; FOR 2 { PRINT("a; b" + x); ADD x x 1 }; PRINT(x)`)
	if err != nil {
		t.Fatalf("SplitCommands: %v", err)
	}
	want := []string{
		"DECLARE x 1",
		`FOR 2 { PRINT("a; b" + x); ADD x x 1 }`,
		"PRINT(x)",
	}
	if len(got) != len(want) {
		t.Fatalf("got %d commands, want %d: %v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("command %d: got %q, want %q", i, got[i], want[i])
		}
	}
}

func TestSplitCommandsRejectsUnbalancedBraces(t *testing.T) {
	if _, err := SplitCommands("FOR 2 { PRINT(x)"); err == nil {
		t.Fatal("want error for unmatched '{'")
	}
	if _, err := SplitCommands("PRINT(x) }"); err == nil {
		t.Fatal("want error for unmatched '}'")
	}
}

func TestFlattenExpandsFor(t *testing.T) {
	commands, err := SplitCommands(`DECLARE x 0; FOR 3 { ADD x x 1 }`)
	if err != nil {
		t.Fatalf("SplitCommands: %v", err)
	}
	flat, err := Flatten(commands)
	if err != nil {
		t.Fatalf("Flatten: %v", err)
	}
	want := []string{"DECLARE x 0", "ADD x x 1", "ADD x x 1", "ADD x x 1"}
	if len(flat) != len(want) {
		t.Fatalf("got %v, want %v", flat, want)
	}
	for i := range want {
		if flat[i] != want[i] {
			t.Errorf("index %d: got %q want %q", i, flat[i], want[i])
		}
	}
}

func TestFlattenRejectsUnparsableBody(t *testing.T) {
	commands, err := SplitCommands("FOR 2 { GARBAGE }")
	if err != nil {
		t.Fatalf("SplitCommands: %v", err)
	}
	if _, err := Flatten(commands); err == nil {
		t.Fatal("want error for unparsable FOR body")
	}
}

func TestValidateUserProgramBounds(t *testing.T) {
	if err := ValidateUserProgram(nil); err == nil {
		t.Fatal("want error for empty program")
	}
	long := make([]string, MaxUserCommands+1)
	for i := range long {
		long[i] = "SLEEP 0"
	}
	if err := ValidateUserProgram(long); err == nil {
		t.Fatal("want error for program over MaxUserCommands")
	}
	ok := make([]string, MaxUserCommands)
	for i := range ok {
		ok[i] = "SLEEP 0"
	}
	if err := ValidateUserProgram(ok); err != nil {
		t.Fatalf("ValidateUserProgram: %v", err)
	}
}
