//go:build !windows

package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"golang.org/x/term"

	"github.com/asheshgoplani/repl-deck/internal/logging"
	"github.com/asheshgoplani/repl-deck/internal/repl"
)

var cliLog = logging.ForComponent(logging.CompCLI)

// attach drives the cooperative front-end loop for one session: scrubbed
// output is pumped to stdout while keystrokes are forwarded to the
// subprocess. Ctrl+Q detaches and kills the session. Returns once the
// subprocess exits or the user detaches.
func attach(sess *repl.Session) error {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return attachLines(sess)
	}

	oldState, err := term.MakeRaw(int(os.Stdin.Fd()))
	if err != nil {
		return fmt.Errorf("failed to set raw mode: %w", err)
	}
	defer func() { _ = term.Restore(int(os.Stdin.Fd()), oldState) }()

	proc := sess.Process()

	// Channel to signal detach via Ctrl+Q
	detachCh := make(chan struct{})
	exitCh := make(chan struct{})
	pumpDone := make(chan struct{})

	// Goroutine 1: pump scrubbed output to stdout
	go func() {
		defer close(pumpDone)
		ticker := time.NewTicker(20 * time.Millisecond)
		defer ticker.Stop()
		for {
			if chunk := sess.PollOutput(); chunk != "" {
				os.Stdout.WriteString(chunk)
			}
			select {
			case <-ticker.C:
			case <-detachCh:
				return
			case <-exitCh:
				// Drain whatever arrived after the exit signal
				if chunk := sess.PollOutput(); chunk != "" {
					os.Stdout.WriteString(chunk)
				}
				return
			}
		}
	}()

	// Goroutine 2: read stdin, intercept Ctrl+Q (ASCII 17), forward rest.
	// Deliberately not joined on exit: it may sit blocked in Read until
	// the process ends and we are about to return anyway.
	go func() {
		buf := make([]byte, 32)
		for {
			n, err := os.Stdin.Read(buf)
			if err != nil {
				if err != io.EOF {
					cliLog.Debug("stdin_read_end", "error", err.Error())
				}
				close(detachCh)
				return
			}
			for i := 0; i < n; i++ {
				if buf[i] == 17 { // Ctrl+Q
					close(detachCh)
					return
				}
			}
			if err := proc.WriteRaw(buf[:n]); err != nil {
				// Process died under us; the exit watcher handles it
				if !errors.Is(err, repl.ErrNotRunning) {
					cliLog.Warn("forward_failed", "error", err.Error())
				}
				return
			}
		}
	}()

	// Exit watcher: unblocks the output pump when the subprocess dies
	go func() {
		proc.Wait()
		close(exitCh)
	}()

	select {
	case <-detachCh:
		sess.Kill()
	case <-exitCh:
	}
	<-pumpDone

	_ = term.Restore(int(os.Stdin.Fd()), oldState)

	switch sess.State() {
	case repl.StateKilled:
		fmt.Printf("\nSession %s killed.\n", sess.Identifier())
	default:
		fmt.Printf("\nSession %s exited (code %d).\n", sess.Identifier(), proc.ExitCode())
	}
	return nil
}

// attachLines is the non-terminal fallback: read stdin line by line and
// send each as one input unit.
func attachLines(sess *repl.Session) error {
	proc := sess.Process()
	done := make(chan struct{})

	go func() {
		ticker := time.NewTicker(20 * time.Millisecond)
		defer ticker.Stop()
		for {
			if chunk := sess.PollOutput(); chunk != "" {
				os.Stdout.WriteString(chunk)
			}
			select {
			case <-ticker.C:
			case <-done:
				if chunk := sess.PollOutput(); chunk != "" {
					os.Stdout.WriteString(chunk)
				}
				return
			}
		}
	}()

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		if err := sess.SendInput(scanner.Text()); err != nil {
			if errors.Is(err, repl.ErrNotRunning) {
				break
			}
			close(done)
			return err
		}
	}

	// EOF on stdin: let pending output land, then shut the session down
	time.Sleep(100 * time.Millisecond)
	sess.Kill()
	proc.Wait()
	close(done)
	return scanner.Err()
}
