// Package builtin implements the small set of built-in commands the
// executor itself depends on to be testable end to end (spec.md §6:
// "CLI surface of built-ins used by the core"). Everything outside
// that registry is explicitly out of scope (spec.md §1 Non-goals);
// a caller wanting more builtins supplies its own under the same
// Builtin signature.
//
// `return`, `break`, `continue`, and `exit` are not here: they need
// to signal non-local control flow back through internal/exec's
// Flow type, which a plain `func(...) int` can't express, so the
// executor special-cases those names before ever consulting this
// registry.
package builtin

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/sush-shell/sush/internal/state"
)

// JobWaiter is the narrow slice of internal/exec's job table that
// the `wait` builtin needs. Kept as an interface here (rather than
// importing internal/exec directly) to avoid a package cycle —
// internal/exec imports internal/builtin, not the other way round.
type JobWaiter interface {
	WaitJob(spec string) (int, error)
}

// Context carries everything a builtin needs beyond its argv: the
// shell's variable store, the current stdio (swapped in by
// internal/exec's redirection transactions), and the job table.
type Context struct {
	Shell  *state.Shell
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
	Jobs   JobWaiter
}

// Builtin is the protocol out-of-scope bodies get: read argv (argv[0]
// is the command name itself, matching os.Args/exec.Cmd convention),
// return an exit status.
type Builtin func(ctx *Context, argv []string) int

// Registry returns the default table of core builtins.
func Registry() map[string]Builtin {
	return map[string]Builtin{
		"cd":    Cd,
		"set":   Set,
		"shopt": Shopt,
		"local": Local,
		"wait":  Wait,
		"echo":  Echo,
		":":     Colon,
		"true":  True,
		"false": False,
	}
}

func errf(ctx *Context, format string, args ...interface{}) {
	fmt.Fprintf(ctx.Stderr, "sush: "+format+"\n", args...)
}

// Cd implements `cd [-] [dir]` (spec.md §6): no argument goes to
// $HOME, `-` goes to $OLDPWD (and echoes the new directory, matching
// bash), otherwise chdir to the given path. OLDPWD/PWD are updated on
// every successful change.
func Cd(ctx *Context, argv []string) int {
	var target string
	switch {
	case len(argv) < 2:
		home, _ := ctx.Shell.Get("HOME")
		target = home
	case argv[1] == "-":
		old, ok := ctx.Shell.Get("OLDPWD")
		if !ok {
			errf(ctx, "cd: OLDPWD not set")
			return 1
		}
		target = old
	default:
		target = argv[1]
	}
	if target == "" {
		errf(ctx, "cd: HOME not set")
		return 1
	}
	cwd, _ := os.Getwd()
	if err := os.Chdir(target); err != nil {
		errf(ctx, "cd: %s: %v", target, err)
		return 1
	}
	newWd, _ := os.Getwd()
	ctx.Shell.SetVar("OLDPWD", cwd, false)
	ctx.Shell.SetVar("PWD", newWd, false)
	ctx.Shell.Export("OLDPWD")
	ctx.Shell.Export("PWD")
	if len(argv) >= 2 && argv[1] == "-" {
		fmt.Fprintln(ctx.Stdout, newWd)
	}
	return 0
}

// Set implements the slice of `set` the executor relies on:
// `-e`/`+e`, `-o pipefail`/`+o pipefail`, and replacing the positional
// parameters with any remaining args (spec.md §6, §4.8).
func Set(ctx *Context, argv []string) int {
	args := argv[1:]
	for len(args) > 0 {
		switch args[0] {
		case "-e":
			ctx.Shell.SetErrExit(true)
		case "+e":
			ctx.Shell.SetErrExit(false)
		case "-o":
			if len(args) < 2 {
				errf(ctx, "set: -o: option name required")
				return 1
			}
			if err := setDashO(ctx.Shell, args[1], true); err != nil {
				errf(ctx, "%v", err)
				return 1
			}
			args = args[1:]
		case "+o":
			if len(args) < 2 {
				errf(ctx, "set: +o: option name required")
				return 1
			}
			if err := setDashO(ctx.Shell, args[1], false); err != nil {
				errf(ctx, "%v", err)
				return 1
			}
			args = args[1:]
		case "--":
			args = args[1:]
			ctx.Shell.SetPositional(append([]string(nil), args...))
			return 0
		default:
			ctx.Shell.SetPositional(append([]string(nil), args...))
			return 0
		}
		args = args[1:]
	}
	return 0
}

func setDashO(sh *state.Shell, name string, v bool) error {
	switch name {
	case "pipefail":
		sh.SetPipefail(v)
	case "errexit":
		sh.SetErrExit(v)
	case "xtrace":
		sh.SetXtrace(v)
	case "noexec":
		sh.SetNoexec(v)
	default:
		return fmt.Errorf("set: %s: unknown option", name)
	}
	return nil
}

// Shopt implements `shopt -s/-u extglob` (spec.md §6). Only extglob
// is wired since it's the only shopt the core (glob/case matching)
// consults.
func Shopt(ctx *Context, argv []string) int {
	if len(argv) < 3 {
		errf(ctx, "shopt: usage: shopt -s|-u name")
		return 1
	}
	if argv[2] != "extglob" {
		errf(ctx, "shopt: %s: unsupported option", argv[2])
		return 1
	}
	switch argv[1] {
	case "-s":
		ctx.Shell.SetExtglob(true)
	case "-u":
		ctx.Shell.SetExtglob(false)
	default:
		errf(ctx, "shopt: %s: bad flag", argv[1])
		return 1
	}
	return 0
}

// Local implements `local name[=value]...` (spec.md §4.7, §6):
// assigns into the top (innermost) scope frame regardless of whether
// an outer frame already holds the name.
func Local(ctx *Context, argv []string) int {
	status := 0
	for _, arg := range argv[1:] {
		name, value := arg, ""
		if i := strings.IndexByte(arg, '='); i >= 0 {
			name, value = arg[:i], arg[i+1:]
		}
		if err := ctx.Shell.SetVar(name, value, true); err != nil {
			errf(ctx, "%v", err)
			status = 1
		}
	}
	return status
}

// Wait implements `wait [pid|%job]` (spec.md §6).
func Wait(ctx *Context, argv []string) int {
	spec := ""
	if len(argv) >= 2 {
		spec = argv[1]
	}
	if ctx.Jobs == nil {
		return 0
	}
	status, err := ctx.Jobs.WaitJob(spec)
	if err != nil {
		errf(ctx, "wait: %v", err)
		return 127
	}
	return status
}

// Echo implements a minimal `echo` (no -e/-n escape processing beyond
// the `-n` flag, matching the teacher's bare-bones builtin surface).
func Echo(ctx *Context, argv []string) int {
	args := argv[1:]
	newline := true
	if len(args) > 0 && args[0] == "-n" {
		newline = false
		args = args[1:]
	}
	fmt.Fprint(ctx.Stdout, strings.Join(args, " "))
	if newline {
		fmt.Fprint(ctx.Stdout, "\n")
	}
	return 0
}

// Colon implements `:`: consumes its arguments, always succeeds.
func Colon(ctx *Context, argv []string) int { return 0 }

// True and False implement the `true`/`false` builtins.
func True(ctx *Context, argv []string) int  { return 0 }
func False(ctx *Context, argv []string) int { return 1 }

// ParseReturnStatus parses a `return`/`exit`/`break`/`continue`
// argument (spec.md §4.8: "return [n]"), returning def when it is
// absent or malformed; internal/exec passes $? as def for return/exit
// and 1 for break/continue's level count.
func ParseReturnStatus(argv []string, def int) int {
	if len(argv) < 2 {
		return def
	}
	n, err := strconv.Atoi(argv[1])
	if err != nil {
		return def
	}
	return n
}
