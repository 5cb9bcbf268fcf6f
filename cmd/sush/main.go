// Command sush is the entry point: flag parsing, TTY detection, and
// dispatch into internal/shell, generalizing the teacher's golash.go
// main() (getopt-style flags, the readline loop, the signal-catching
// goroutine) onto the full interpreter built under internal/.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/pborman/getopt"
	"golang.org/x/crypto/ssh/terminal"

	"github.com/sush-shell/sush/internal/shell"
)

func main() {
	os.Exit(run())
}

func run() int {
	cFlag := getopt.Bool('c', "read commands from the command_string operand")
	iFlag := getopt.Bool('i', "force interactive mode")
	sFlag := getopt.Bool('s', "read commands from standard input")
	lFlag := getopt.Bool('l', "act as a login shell, sourcing the profile")
	getopt.Parse()

	sh := shell.New("sush")
	defer sh.Close()

	home, _ := os.UserHomeDir()
	if *lFlag {
		sh.RunRC(filepath.Join(home, ".sush_profile"))
	}

	args := getopt.Args()

	if *cFlag {
		if len(args) == 0 {
			fmt.Fprintln(os.Stderr, "sush: -c: option requires an argument")
			return 2
		}
		// POSIX: sh -c command_string [command_name [argument...]] —
		// args[1:] becomes $0/$1... for the command string itself.
		return sh.RunCommandString(args[0], args[1:])
	}

	if !*sFlag && len(args) > 0 {
		return sh.RunFile(args[0], args[1:])
	}

	interactive := *iFlag || (isTerminal(os.Stdin) && isTerminal(os.Stdout))
	if !interactive {
		return sh.RunStdin(args)
	}

	watchJobControlSignals()
	sh.RunRC(filepath.Join(home, ".sushrc"))
	return sh.RunInteractive(filepath.Join(home, ".sush_history"))
}

func isTerminal(f *os.File) bool {
	return terminal.IsTerminal(int(f.Fd()))
}

// watchJobControlSignals keeps the process alive across the signals a
// job-control shell must not die from — SIGINT/SIGTSTP are meant for
// the foreground job, not the shell itself, and SIGTTIN/SIGTTOU arrive
// when a backgrounded job touches the terminal. It generalizes the
// teacher's identical catch-and-drop goroutine in golash.go's main().
func watchJobControlSignals() {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM, syscall.SIGTTIN, syscall.SIGTTOU, syscall.SIGTSTP)
	go func() {
		for range ch {
		}
	}()
}
