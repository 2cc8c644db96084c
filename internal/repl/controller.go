package repl

import (
	"fmt"
	"log/slog"

	"github.com/google/shlex"

	"github.com/asheshgoplani/repl-deck/internal/logging"
)

var sessionLog = logging.ForComponent(logging.CompSession)

// DefaultSessionName is used when a launch does not name its session.
const DefaultSessionName = "Coffee"

// Controller is the public entry point for launching sessions. It is the
// single writer of its registry; front ends hold it and call Run.
type Controller struct {
	registry *Registry
}

// NewController creates a controller over the given registry. A nil
// registry gets a fresh one.
func NewController(reg *Registry) *Controller {
	if reg == nil {
		reg = NewRegistry()
	}
	return &Controller{registry: reg}
}

// Registry exposes the controller's registry for front-end lookups.
func (c *Controller) Registry() *Registry {
	return c.registry
}

// Run launches or reuses a session. command is a single shell-style
// string split with POSIX word-splitting rules; the first token is the
// executable. An empty name defaults to DefaultSessionName. When a live
// session with the display name exists it is returned as-is and no
// second process is spawned.
func (c *Controller) Run(command, name string) (*Session, error) {
	return c.RunWith(command, name, Options{})
}

// RunWith is Run with explicit process options (echo suppression, extra
// environment, scrub pattern overrides).
func (c *Controller) RunWith(command, name string, opts Options) (*Session, error) {
	argv, err := shlex.Split(command)
	if err != nil {
		return nil, fmt.Errorf("parse command %q: %w", command, err)
	}
	if len(argv) == 0 {
		return nil, fmt.Errorf("empty command")
	}
	if name == "" {
		name = DefaultSessionName
	}

	sess, created, err := c.registry.FindOrCreate(name, func() (*Process, error) {
		return Spawn(argv, opts)
	})
	if err != nil {
		return nil, err
	}

	if created {
		sess.Command = argv
		sessionLog.Info("session_started",
			slog.String("id", sess.Identifier()),
			slog.String("command", command))
	} else {
		sessionLog.Debug("session_reused", slog.String("id", sess.Identifier()))
	}
	return sess, nil
}

// Send forwards a line of input to the identified session, or to the
// default session when identifier is empty.
func (c *Controller) Send(identifier, text string) error {
	sess, err := c.lookup(identifier)
	if err != nil {
		return err
	}
	return sess.SendInput(text)
}

// Kill terminates the identified session (default session when empty).
// Other sessions are unaffected.
func (c *Controller) Kill(identifier string) error {
	sess, err := c.lookup(identifier)
	if err != nil {
		return err
	}
	sess.Kill()
	return nil
}

func (c *Controller) lookup(identifier string) (*Session, error) {
	if identifier == "" {
		if sess := c.registry.Default(); sess != nil {
			return sess, nil
		}
		return nil, fmt.Errorf("no sessions")
	}
	if sess := c.registry.Get(identifier); sess != nil {
		return sess, nil
	}
	return nil, fmt.Errorf("no session %q", identifier)
}
