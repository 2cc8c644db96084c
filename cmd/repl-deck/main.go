package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/asheshgoplani/repl-deck/internal/logging"
	"github.com/asheshgoplani/repl-deck/internal/repl"
)

const Version = "0.1.0"

func main() {
	initLogging()
	defer logging.Shutdown()

	args := os.Args[1:]
	if len(args) == 0 {
		printHelp()
		return
	}

	switch args[0] {
	case "version", "--version", "-v":
		fmt.Printf("repl-deck v%s\n", Version)
	case "help", "--help", "-h":
		printHelp()
	case "run":
		handleRun(args[1:])
	case "exec":
		handleExec(args[1:])
	case "init-config":
		handleInitConfig()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", args[0])
		printHelp()
		os.Exit(1)
	}
}

// initLogging wires logging from the environment. Silent by default;
// REPLDECK_DEBUG=1 turns on file logging under the repl-deck dir.
func initLogging() {
	debug := os.Getenv("REPLDECK_DEBUG") != ""
	logDir := os.Getenv("REPLDECK_LOG_DIR")
	if logDir == "" && debug {
		if dir, err := repl.GetReplDeckDir(); err == nil {
			logDir = dir
		}
	}
	logging.Init(logging.Config{
		Debug:  debug,
		LogDir: logDir,
		Level:  os.Getenv("REPLDECK_LOG_LEVEL"),
	})
}

// launchSpec is a fully resolved launch: the command to spawn plus the
// per-implementation presentation settings.
type launchSpec struct {
	Command string
	Name    string
	Echo    bool
	Prompt  string
}

// resolveLaunch combines CLI arguments with the user config. An explicit
// command wins; otherwise the named (or default) implementation supplies
// the command template.
func resolveLaunch(cfg *repl.UserConfig, command, implName, name string) (launchSpec, error) {
	launch := launchSpec{Name: name}

	if command != "" {
		launch.Command = command
		return launch, nil
	}

	def, err := cfg.ResolveImpl(implName)
	if err != nil {
		return launchSpec{}, err
	}
	launch.Command = def.Command
	launch.Echo = def.Echo
	launch.Prompt = def.Prompt
	return launch, nil
}

func handleRun(args []string) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	name := fs.String("name", "", "session display name (default \""+repl.DefaultSessionName+"\")")
	impl := fs.String("impl", "", "configured implementation to launch")
	echo := fs.Bool("echo", false, "suppress the subprocess's input echo")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: repl-deck run [-name N] [-impl I] [-echo] ['<command>']")
		fs.PrintDefaults()
	}
	_ = fs.Parse(args)

	cfg, err := repl.LoadUserConfig()
	if err != nil {
		// Parse errors fall back to defaults; tell the user and go on
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}

	launch, err := resolveLaunch(cfg, fs.Arg(0), *impl, *name)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if *echo {
		launch.Echo = true
	}

	controller := repl.NewController(nil)
	sess, err := controller.RunWith(launch.Command, launch.Name, repl.Options{
		EchoInput: launch.Echo,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if launch.Prompt != "" {
		if err := sess.SetPromptPattern(launch.Prompt); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}
	}

	fmt.Printf("Session %s started (%s). Ctrl+Q to quit.\n", sess.Identifier(), launch.Command)
	if err := attach(sess); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// handleExec runs a session in batch mode: each stdin line is sent as
// input, scrubbed output is printed once it settles, and the session is
// ended. Sessions are scoped to this process (there is no daemon), so
// exec is the non-interactive counterpart of run, not a remote control.
func handleExec(args []string) {
	fs := flag.NewFlagSet("exec", flag.ExitOnError)
	name := fs.String("name", "", "session display name (default \""+repl.DefaultSessionName+"\")")
	impl := fs.String("impl", "", "configured implementation to launch")
	echo := fs.Bool("echo", false, "suppress the subprocess's input echo")
	idle := fs.Duration("idle", 500*time.Millisecond, "output quiet period that ends the run")
	timeout := fs.Duration("timeout", 30*time.Second, "overall deadline")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: repl-deck exec [-name N] [-impl I] [-echo] ['<command>'] < input")
		fs.PrintDefaults()
	}
	_ = fs.Parse(args)

	cfg, err := repl.LoadUserConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}

	launch, err := resolveLaunch(cfg, fs.Arg(0), *impl, *name)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if *echo {
		launch.Echo = true
	}

	controller := repl.NewController(nil)
	sess, err := controller.RunWith(launch.Command, launch.Name, repl.Options{
		EchoInput: launch.Echo,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		if err := controller.Send(sess.Identifier(), scanner.Text()); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			break
		}
	}

	drainOutput(sess, *idle, *timeout, os.Stdout)

	if sess.State() == repl.StateExited {
		if code := sess.Process().ExitCode(); code != 0 {
			os.Exit(code)
		}
		return
	}
	_ = controller.Kill(sess.Identifier())
	sess.Process().Wait()
}

// drainOutput copies newly polled output to w until the session stays
// quiet for idle, dies with nothing pending, or the deadline passes.
func drainOutput(sess *repl.Session, idle, deadline time.Duration, w io.Writer) {
	stop := time.Now().Add(deadline)
	last := time.Now()
	for {
		chunk := sess.PollOutput()
		if chunk != "" {
			_, _ = io.WriteString(w, chunk)
			last = time.Now()
		} else if !sess.Alive() {
			return
		}
		if time.Since(last) >= idle || time.Now().After(stop) {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func handleInitConfig() {
	if err := repl.WriteDefaultConfig(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	path, _ := repl.GetUserConfigPath()
	fmt.Printf("Wrote %s\n", path)
}

func printHelp() {
	fmt.Print(`repl-deck - interactive REPL session manager

Usage:
  repl-deck run [-name N] [-impl I] [-echo] ['<command>']
      Launch (or reuse) a session and attach to it. The command is a
      single shell-style string; without one, the -impl entry from
      config.toml is used (default implementation when -impl is absent).
  repl-deck exec [-name N] [-impl I] [-echo] ['<command>'] < input
      Launch a session in batch mode: each stdin line is sent as input,
      the scrubbed output is printed once it settles, and the session
      ends. Exits with the subprocess's code if it quit on its own.
  repl-deck init-config
      Write a starter config.toml.
  repl-deck version
  repl-deck help

Sessions are scoped to the invocation that launched them; there is no
daemon, so a session ends when its repl-deck process exits.

Environment:
  REPLDECK_DIR        base directory (default ~/.repl-deck)
  REPLDECK_DEBUG      enable debug logging
  REPLDECK_LOG_DIR    log directory override
  REPLDECK_LOG_LEVEL  debug|info|warn|error
`)
}
