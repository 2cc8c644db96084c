//go:build !windows

// Package repl manages interactive REPL subprocess sessions: spawning,
// bidirectional streaming through a PTY, output scrubbing, and the
// registry of named concurrent sessions.
package repl

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"

	"github.com/creack/pty"

	"github.com/asheshgoplani/repl-deck/internal/logging"
	"github.com/asheshgoplani/repl-deck/internal/scrub"
)

var procLog = logging.ForComponent(logging.CompProc)

// State is the lifecycle state of a session process.
type State string

const (
	StateStarting State = "starting"
	StateRunning  State = "running"
	StateExited   State = "exited"
	StateKilled   State = "killed"
)

// Options configures a spawned process.
type Options struct {
	// Env holds extra environment overrides for the child. They are
	// applied on top of the standard overrides (PAGER, NODE_NO_READLINE)
	// and scoped to the child only.
	Env map[string]string

	// EchoInput marks a subprocess known to echo input back on its
	// output stream. Set per launch command, never auto-detected; the
	// echoed line is suppressed so input is not displayed twice.
	EchoInput bool

	// Patterns overrides the scrub pattern set. Nil uses the
	// process-wide default.
	Patterns *scrub.Set
}

// Process owns one subprocess and the PTY connecting to it. stdout and
// stderr arrive merged on the PTY; stdin goes out through the same file.
// No other component writes to these pipes.
type Process struct {
	mu       sync.Mutex
	state    State
	cmd      *exec.Cmd
	ptmx     *os.File
	window   *scrub.Window
	out      []byte // scrubbed output, append-only apart from scrub deletions
	readPos  int    // PollOutput high-water mark
	exitCode int
	echo     bool
	echoPend []byte // echoed input bytes still expected on the output stream
	onExit   func()
	done     chan struct{}
}

// Spawn starts command with the REPL environment contract applied:
// PAGER disabled and readline-style line editing in the child disabled,
// scoped to the child's environment only.
func Spawn(command []string, opts Options) (*Process, error) {
	if len(command) == 0 {
		return nil, &SpawnError{Err: errors.New("empty command")}
	}

	path, err := exec.LookPath(command[0])
	if err != nil {
		return nil, &SpawnError{Command: command[0], Err: err}
	}

	cmd := exec.Command(path, command[1:]...)
	cmd.Env = childEnv(opts.Env)

	p := &Process{
		state:  StateStarting,
		cmd:    cmd,
		window: scrub.NewWindow(opts.Patterns),
		echo:   opts.EchoInput,
		done:   make(chan struct{}),
	}

	ptmx, err := pty.Start(cmd)
	if err != nil {
		return nil, &SpawnError{Command: command[0], Err: err}
	}
	p.ptmx = ptmx
	p.state = StateRunning

	procLog.Debug("spawned",
		slog.String("command", command[0]),
		slog.Int("pid", cmd.Process.Pid))

	go p.readLoop()
	go p.waitLoop()

	return p, nil
}

// childEnv builds the child environment: the parent environment with the
// REPL overrides appended. Later duplicates win at exec time.
func childEnv(extra map[string]string) []string {
	env := os.Environ()
	env = append(env,
		"PAGER=cat",          // no pager inside a pipe-driven REPL
		"NODE_NO_READLINE=1", // readline redraw sequences corrupt the stream
	)
	for k, v := range extra {
		env = append(env, fmt.Sprintf("%s=%s", k, v))
	}
	return env
}

// readLoop drains the PTY, suppressing echoed input and running the scrub
// window over each newly arrived region.
func (p *Process) readLoop() {
	buf := make([]byte, 4096)
	for {
		n, err := p.ptmx.Read(buf)
		if n > 0 {
			p.ingest(buf[:n])
		}
		if err != nil {
			// EOF/EIO once the child side closes. The reader owns the
			// close so buffered final output is drained first;
			// waitLoop owns the state transition.
			if err != io.EOF {
				procLog.Debug("pty_read_end", slog.String("error", err.Error()))
			}
			p.ptmx.Close()
			return
		}
	}
}

// ingest appends a chunk to the output buffer under the lock.
func (p *Process) ingest(chunk []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state == StateKilled {
		// Pending output for a killed session is discarded.
		return
	}

	chunk = p.stripEcho(chunk)
	if len(chunk) == 0 {
		return
	}

	p.out = p.window.Append(p.out, chunk)
	// Scrubbing can delete already-polled bytes; keep the high-water
	// mark inside the buffer.
	if p.readPos > len(p.out) {
		p.readPos = len(p.out)
	}
}

// stripEcho drops bytes matching the expected input echo from the front
// of chunk. PTYs echo "\r\n" for a written "\n", so carriage returns are
// skipped during the comparison. A mismatch abandons suppression for the
// rest of the pending echo rather than eating real output.
func (p *Process) stripEcho(chunk []byte) []byte {
	for len(chunk) > 0 && len(p.echoPend) > 0 {
		if chunk[0] == '\r' {
			chunk = chunk[1:]
			continue
		}
		if chunk[0] != p.echoPend[0] {
			p.echoPend = nil
			break
		}
		chunk = chunk[1:]
		p.echoPend = p.echoPend[1:]
	}
	return chunk
}

// waitLoop observes process exit and flips the state machine.
func (p *Process) waitLoop() {
	err := p.cmd.Wait()

	p.mu.Lock()
	if p.state == StateRunning || p.state == StateStarting {
		p.state = StateExited
	}
	if exitErr, ok := err.(*exec.ExitError); ok {
		p.exitCode = exitErr.ExitCode()
	} else if err == nil {
		p.exitCode = 0
	}
	cb := p.onExit
	p.mu.Unlock()

	procLog.Debug("process_exit",
		slog.String("state", string(p.State())),
		slog.Int("code", p.exitCode))

	if cb != nil {
		cb()
	}
	close(p.done)
}

// SendInput writes text plus the line terminator to the subprocess.
// Fails with ErrNotRunning once the process has exited or been killed.
// The PTY write happens outside the lock: a child that stops reading
// must not stall PollOutput or the read loop.
func (p *Process) SendInput(text string) error {
	line := []byte(text + "\n")

	p.mu.Lock()
	if p.state != StateRunning {
		p.mu.Unlock()
		return ErrNotRunning
	}
	ptmx := p.ptmx
	if p.echo {
		// Register the expected echo before writing so the read loop
		// cannot see the echoed bytes first.
		p.echoPend = append(p.echoPend, line...)
	}
	p.mu.Unlock()

	if _, err := ptmx.Write(line); err != nil {
		return fmt.Errorf("write input: %w", err)
	}
	return nil
}

// WriteRaw forwards raw bytes to the subprocess without line-terminator
// handling or echo suppression. Front-end attach loops use it to pass
// keystrokes through; the Process remains the sole writer of the pipe.
// Like SendInput, the write itself happens outside the lock.
func (p *Process) WriteRaw(b []byte) error {
	p.mu.Lock()
	if p.state != StateRunning {
		p.mu.Unlock()
		return ErrNotRunning
	}
	ptmx := p.ptmx
	p.mu.Unlock()

	_, err := ptmx.Write(b)
	return err
}

// PollOutput returns scrubbed output accrued since the last poll.
// Non-blocking; empty when nothing new arrived. Output flushed before
// exit stays readable afterwards until drained.
func (p *Process) PollOutput() string {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.readPos >= len(p.out) {
		return ""
	}
	chunk := string(p.out[p.readPos:])
	p.readPos = len(p.out)
	return chunk
}

// Output returns the whole scrubbed output buffer.
func (p *Process) Output() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return string(p.out)
}

// Kill forcibly terminates the subprocess. Output not yet polled is
// discarded. Other sessions are unaffected.
func (p *Process) Kill() {
	p.mu.Lock()
	if p.state != StateRunning && p.state != StateStarting {
		p.mu.Unlock()
		return
	}
	p.state = StateKilled
	p.out = p.out[:p.readPos]
	proc := p.cmd.Process
	p.mu.Unlock()

	if proc != nil {
		_ = proc.Kill()
	}
}

// State returns the current lifecycle state.
func (p *Process) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Alive reports whether the subprocess is still running.
func (p *Process) Alive() bool {
	s := p.State()
	return s == StateRunning || s == StateStarting
}

// ExitCode returns the exit code once the process has exited; zero
// before that.
func (p *Process) ExitCode() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exitCode
}

// Pid returns the subprocess pid, or 0 when unavailable.
func (p *Process) Pid() int {
	if p.cmd.Process == nil {
		return 0
	}
	return p.cmd.Process.Pid
}

// Wait blocks until the process has exited and its state settled.
func (p *Process) Wait() {
	<-p.done
}

// setOnExit registers a callback invoked once, after the state machine
// settles on Exited or Killed. Invoked immediately if already settled.
func (p *Process) setOnExit(cb func()) {
	p.mu.Lock()
	settled := p.state == StateExited || p.state == StateKilled
	if !settled {
		p.onExit = cb
	}
	p.mu.Unlock()

	if settled {
		cb()
	}
}
