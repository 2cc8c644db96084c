// Package scrub removes terminal control sequences and known noise echoes
// from REPL process output.
package scrub

import (
	"fmt"
	"regexp"
	"sync"

	"github.com/asheshgoplani/repl-deck/internal/logging"
)

var scrubLog = logging.ForComponent(logging.CompScrub)

// Kind classifies a scrub pattern.
type Kind int

const (
	// ControlSequence is a regex over terminal escape sequences.
	ControlSequence Kind = iota
	// EchoedNoise is a literal token; a whole line consisting of optional
	// leading whitespace plus the token is deleted through end-of-line.
	EchoedNoise
)

// RawPattern is a string-form pattern before compilation.
// ControlSequence patterns are regex source; EchoedNoise patterns are
// literal tokens.
type RawPattern struct {
	Kind Kind
	Expr string
}

// DefaultRawPatterns returns the built-in scrub patterns: the ANSI
// cursor-column / erase-in-display / erase-in-line sequences REPLs emit
// when redrawing their prompt, and the stray "undefined" echo the
// CoffeeScript/Node REPL prints for statements.
func DefaultRawPatterns() []RawPattern {
	return []RawPattern{
		{Kind: ControlSequence, Expr: `\x1b\[[0-9]+[GJK]`},
		{Kind: EchoedNoise, Expr: "undefined"},
	}
}

// Set holds compiled, ready-to-use scrub patterns.
type Set struct {
	res []*regexp.Regexp
}

// Compile compiles raw patterns into a Set. Invalid control-sequence
// regexes are an error; the caller configured them explicitly.
func Compile(raw []RawPattern) (*Set, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("empty pattern set")
	}

	s := &Set{}
	for _, p := range raw {
		switch p.Kind {
		case ControlSequence:
			re, err := regexp.Compile(p.Expr)
			if err != nil {
				return nil, fmt.Errorf("control sequence pattern %q: %w", p.Expr, err)
			}
			s.res = append(s.res, re)
		case EchoedNoise:
			// Whole-line match: optional indent, the token, end of line.
			re, err := regexp.Compile(`(?m)^[ \t]*` + regexp.QuoteMeta(p.Expr) + `\r?\n`)
			if err != nil {
				return nil, fmt.Errorf("noise pattern %q: %w", p.Expr, err)
			}
			s.res = append(s.res, re)
		default:
			return nil, fmt.Errorf("unknown pattern kind %d", p.Kind)
		}
	}
	return s, nil
}

// Scrub removes every non-overlapping pattern match from chunk. Deletions
// are re-applied until the text is stable, so scrubbing is idempotent even
// when a deletion joins two fragments into a fresh match.
func (s *Set) Scrub(chunk string) string {
	for {
		out := chunk
		for _, re := range s.res {
			out = re.ReplaceAllString(out, "")
		}
		if out == chunk {
			return out
		}
		chunk = out
	}
}

var (
	defaultMu   sync.Mutex
	defaultSet  *Set
	defaultUsed bool
)

// Default returns the process-wide pattern set, compiling the built-in
// patterns on first use. After the first call the set is frozen.
func Default() *Set {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultSet == nil {
		s, err := Compile(DefaultRawPatterns())
		if err != nil {
			// Built-in patterns are compile-time constants.
			panic(err)
		}
		defaultSet = s
	}
	defaultUsed = true
	return defaultSet
}

// SetDefault replaces the process-wide pattern set. It may only be called
// before the first use of Default; once a scrubber has handed the set out,
// swapping patterns under live sessions is rejected.
func SetDefault(raw []RawPattern) error {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultUsed {
		return fmt.Errorf("default scrub set already in use")
	}
	s, err := Compile(raw)
	if err != nil {
		return err
	}
	defaultSet = s
	scrubLog.Debug("default_patterns_replaced", "count", len(raw))
	return nil
}
