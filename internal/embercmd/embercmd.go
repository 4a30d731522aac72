// Package embercmd wires Ember's two external interfaces — the REPL and
// the file interpreter — to os.Args and the host's standard streams,
// translating a run's outcome into the sysexits-style exit code the CLI
// commits to.
package embercmd

import (
	"bufio"
	"errors"
	"fmt"
	"os"

	"github.com/mna/mainer"

	"github.com/emberlang/ember/lang/compiler"
	"github.com/emberlang/ember/lang/vm"
)

const binName = "ember"

// Exit codes follow the sysexits.h convention: 0 success, 64 usage error,
// 65 a compile-time (data) error, 70 a runtime (software) error, 74 an I/O
// error reading the script file.
const (
	ExitSuccess  = 0
	ExitUsage    = 64
	ExitDataErr  = 65
	ExitSoftware = 70
	ExitIOErr    = 74
)

var usage = fmt.Sprintf(`usage: %s [<path>]
       %[1]s -d|--disassemble <path>
       %[1]s -h|--help
       %[1]s -v|--version

With no path, %[1]s starts a REPL reading one line at a time. With a path,
it compiles and runs the script found there. With -d, it compiles the script
and prints its disassembled bytecode instead of running it.
`, binName)

type cmd struct {
	Help        bool `flag:"h,help"`
	Version     bool `flag:"v,version"`
	Disassemble bool `flag:"d,disassemble"`

	args []string
}

func (c *cmd) SetArgs(args []string)      { c.args = args }
func (c *cmd) SetFlags(_ map[string]bool) {}

func (c *cmd) Validate() error {
	if len(c.args) > 1 {
		return fmt.Errorf("at most one script path may be given, got %d", len(c.args))
	}
	return nil
}

// Run parses args, then either starts a REPL or interprets the single
// script path given, writing to stdio and returning a sysexits-style exit
// code. buildVersion is reported by --version.
func Run(args []string, stdio mainer.Stdio, buildVersion string) int {
	c := &cmd{}
	p := mainer.Parser{EnvVars: false, EnvPrefix: "EMBER_"}
	if err := p.Parse(args, c); err != nil {
		fmt.Fprintf(stdio.Stderr, "invalid arguments: %s\n%s", err, usage)
		return ExitUsage
	}

	switch {
	case c.Help:
		fmt.Fprint(stdio.Stdout, usage)
		return ExitSuccess
	case c.Version:
		fmt.Fprintf(stdio.Stdout, "%s %s\n", binName, buildVersion)
		return ExitSuccess
	}

	machine := vm.New(stdio.Stdout)

	if c.Disassemble {
		if len(c.args) != 1 {
			fmt.Fprintf(stdio.Stderr, "-d requires exactly one script path\n%s", usage)
			return ExitUsage
		}
		return disassembleFile(machine, stdio, c.args[0])
	}

	if len(c.args) == 0 {
		return repl(machine, stdio)
	}
	return runFile(machine, stdio, c.args[0])
}

func repl(machine *vm.VM, stdio mainer.Stdio) int {
	scanner := bufio.NewScanner(stdio.Stdin)
	for {
		fmt.Fprint(stdio.Stdout, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(stdio.Stdout)
			return ExitSuccess
		}
		line := scanner.Text()
		if line == "" {
			continue
		}
		if err := machine.Interpret(line); err != nil {
			fmt.Fprintf(stdio.Stderr, "%s\n", err)
		}
	}
}

// disassembleFile compiles the script at path and prints its bytecode
// listing to stdout instead of running it, so a user can inspect what the
// compiler emitted (including which globals resolve to native functions)
// without a separate tool.
func disassembleFile(machine *vm.VM, stdio mainer.Stdio, path string) int {
	src, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(stdio.Stderr, "%s: %s\n", path, err)
		return ExitIOErr
	}

	fn, err := compiler.New(machine).Compile(string(src))
	if err != nil {
		fmt.Fprintf(stdio.Stderr, "%s\n", err)
		return ExitDataErr
	}

	machine.Disassemble(stdio.Stdout, fn)
	return ExitSuccess
}

func runFile(machine *vm.VM, stdio mainer.Stdio, path string) int {
	src, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(stdio.Stderr, "%s: %s\n", path, err)
		return ExitIOErr
	}

	if err := machine.Interpret(string(src)); err != nil {
		fmt.Fprintf(stdio.Stderr, "%s\n", err)

		var compileErr *compiler.CompileError
		if errors.As(err, &compileErr) {
			return ExitDataErr
		}
		var runtimeErr *vm.RuntimeError
		if errors.As(err, &runtimeErr) {
			return ExitSoftware
		}
		return ExitSoftware
	}
	return ExitSuccess
}
