package repl

import (
	"fmt"
	"regexp"
	"time"
)

// Session is one logical REPL conversation, bound to at most one live
// subprocess. Identity is the display name plus a sequence suffix;
// suffix 1 renders as the bare name, later ones as "name<2>", "name<3>".
type Session struct {
	Name      string
	Seq       int
	Command   []string
	CreatedAt time.Time

	order  uint64 // registry creation order, drives default selection
	proc   *Process
	prompt *regexp.Regexp // nil means the package default
}

// Identifier returns the unique identifier for this session.
func (s *Session) Identifier() string {
	if s.Seq <= 1 {
		return s.Name
	}
	return fmt.Sprintf("%s<%d>", s.Name, s.Seq)
}

// Process returns the owned session process.
func (s *Session) Process() *Process {
	return s.proc
}

// Alive reports whether the session's subprocess is still running.
func (s *Session) Alive() bool {
	return s.proc != nil && s.proc.Alive()
}

// State returns the lifecycle state of the underlying process.
func (s *Session) State() State {
	if s.proc == nil {
		return StateStarting
	}
	return s.proc.State()
}

// SendInput forwards a line of input to the subprocess.
func (s *Session) SendInput(text string) error {
	return s.proc.SendInput(text)
}

// PollOutput returns scrubbed output accrued since the last poll.
func (s *Session) PollOutput() string {
	return s.proc.PollOutput()
}

// Output returns the whole scrubbed output buffer.
func (s *Session) Output() string {
	return s.proc.Output()
}

// Kill terminates the session's subprocess.
func (s *Session) Kill() {
	s.proc.Kill()
}

// ExtractCurrentUnit reconstructs the input unit the user typed at the
// most recent prompt before cursor in this session's output buffer.
func (s *Session) ExtractCurrentUnit(cursor int) (string, error) {
	return ExtractCurrentUnitWith(s.Output(), cursor, s.prompt)
}

// SetPromptPattern overrides the prompt pattern used for input-unit
// extraction in this session. The pattern is matched anchored at line
// start.
func (s *Session) SetPromptPattern(expr string) error {
	re, err := regexp.Compile(expr)
	if err != nil {
		return fmt.Errorf("prompt pattern %q: %w", expr, err)
	}
	s.prompt = re
	return nil
}
