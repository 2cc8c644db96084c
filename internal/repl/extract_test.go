package repl

import (
	"errors"
	"regexp"
	"testing"
)

func TestExtractBalancedUnit(t *testing.T) {
	buffer := "> (foo (bar 1) 2)\n"
	got, err := ExtractCurrentUnit(buffer, len(buffer))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "(foo (bar 1) 2)" {
		t.Errorf("got %q, want %q", got, "(foo (bar 1) 2)")
	}
}

func TestExtractNoPrompt(t *testing.T) {
	buffer := "just output\nno prompts here\n"
	_, err := ExtractCurrentUnit(buffer, len(buffer))
	if !errors.Is(err, ErrNoPrompt) {
		t.Errorf("expected ErrNoPrompt, got %v", err)
	}
}

func TestExtractNamedPrompt(t *testing.T) {
	buffer := "coffee> square = (x) -> x * x\n[Function: square]\n"
	got, err := ExtractCurrentUnit(buffer, len(buffer))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "square = (x) -> x * x" {
		t.Errorf("got %q", got)
	}
}

func TestExtractSkipsOutputLines(t *testing.T) {
	// Cursor sits on an output line; the scan walks back to the prompt
	buffer := "coffee> add 1, 2\n3\n"
	got, err := ExtractCurrentUnit(buffer, len(buffer))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "add 1, 2" {
		t.Errorf("got %q, want %q", got, "add 1, 2")
	}
}

func TestExtractMultilineBalanced(t *testing.T) {
	// Open delimiters carry the unit across newlines, verbatim
	buffer := "> obj = {\n  a: 1\n  b: 2\n}\n"
	got, err := ExtractCurrentUnit(buffer, len(buffer))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "obj = {\n  a: 1\n  b: 2\n}"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestExtractUsesNearestPrompt(t *testing.T) {
	buffer := "coffee> first 1\nresult\ncoffee> second 2\n"
	got, err := ExtractCurrentUnit(buffer, len(buffer))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "second 2" {
		t.Errorf("got %q, want %q", got, "second 2")
	}
}

func TestExtractCursorMidBuffer(t *testing.T) {
	buffer := "coffee> first 1\nresult\ncoffee> second 2\n"
	cursor := len("coffee> first 1\nres")
	got, err := ExtractCurrentUnit(buffer, cursor)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "first 1" {
		t.Errorf("got %q, want %q", got, "first 1")
	}
}

func TestExtractStringLiteralDelimiters(t *testing.T) {
	// Delimiters inside string literals do not count toward balance
	buffer := `> say "close) me]"` + "\n"
	got, err := ExtractCurrentUnit(buffer, len(buffer))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != `say "close) me]"` {
		t.Errorf("got %q", got)
	}
}

func TestExtractStrayCloser(t *testing.T) {
	buffer := "> foo)bar\n"
	got, err := ExtractCurrentUnit(buffer, len(buffer))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// The unit ends before the unbalanced closer
	if got != "foo" {
		t.Errorf("got %q, want %q", got, "foo")
	}
}

func TestExtractCustomPrompt(t *testing.T) {
	re := regexp.MustCompile(`^\$\$ `)
	buffer := "$$ run thing\n"
	got, err := ExtractCurrentUnitWith(buffer, len(buffer), re)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "run thing" {
		t.Errorf("got %q", got)
	}

	// Default pattern must not match this prompt
	if _, err := ExtractCurrentUnit(buffer, len(buffer)); !errors.Is(err, ErrNoPrompt) {
		t.Errorf("expected ErrNoPrompt with default pattern, got %v", err)
	}
}

func TestExtractEmptyBuffer(t *testing.T) {
	if _, err := ExtractCurrentUnit("", 0); !errors.Is(err, ErrNoPrompt) {
		t.Errorf("expected ErrNoPrompt, got %v", err)
	}
}

func TestExtractCursorClamped(t *testing.T) {
	buffer := "> ok\n"
	got, err := ExtractCurrentUnit(buffer, len(buffer)+50)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "ok" {
		t.Errorf("got %q", got)
	}
}
