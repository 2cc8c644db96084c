package repl

import (
	"errors"
	"fmt"
)

// ErrNotRunning is returned when input is sent to a process that has
// already exited or was killed.
var ErrNotRunning = errors.New("session process is not running")

// ErrNoPrompt is returned by input-unit extraction when no prompt line
// precedes the cursor anywhere in the buffer.
var ErrNoPrompt = errors.New("no prompt found above cursor")

// SpawnError reports a failed launch attempt: executable not found, or
// the OS refused process creation. It is fatal to that launch only and
// never affects other sessions.
type SpawnError struct {
	Command string
	Err     error
}

func (e *SpawnError) Error() string {
	if e.Command == "" {
		return fmt.Sprintf("spawn: %v", e.Err)
	}
	return fmt.Sprintf("spawn %s: %v", e.Command, e.Err)
}

func (e *SpawnError) Unwrap() error {
	return e.Err
}
