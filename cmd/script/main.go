// Command script is the CLI entry point: with no arguments it starts an
// interactive REPL, with one argument it interprets a source file, and
// with two or more it reports misuse.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"os"

	"golang.org/x/term"

	"github.com/mray/scriptvm/pkg/vm"
)

const (
	exitSuccess   = 0
	exitUsage     = 64
	exitCompile   = 65
	exitRuntime   = 70
	exitIOFailure = 74
)

var traceFlag = flag.Bool("trace", false, "show a per-instruction execution trace on stderr")

func main() {
	flag.Parse()
	machine := vm.New(*traceFlag)

	switch args := flag.Args(); len(args) {
	case 0:
		runREPL(machine)
	case 1:
		os.Exit(runFile(machine, args[0]))
	default:
		fmt.Fprintln(os.Stderr, "Usage: script [path]")
		os.Exit(exitUsage)
	}
}

func runFile(machine *vm.VM, path string) int {
	source, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading %s: %v\n", path, err)
		return exitIOFailure
	}

	switch machine.Interpret(string(source)) {
	case vm.InterpretCompileError:
		return exitCompile
	case vm.InterpretRuntimeError:
		return exitRuntime
	default:
		return exitSuccess
	}
}

// runREPL reads one line per prompt and interprets it against the same VM
// instance, so globals defined on one line are visible on the next. It uses
// raw terminal mode when stdin is a real terminal (arrow-key history,
// clean Ctrl-C/Ctrl-D handling) and falls back to line-buffered reading
// otherwise (pipes, redirected input, CI).
func runREPL(machine *vm.VM) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		runREPLScanner(machine, os.Stdin)
		return
	}

	old, err := term.MakeRaw(fd)
	if err != nil {
		runREPLScanner(machine, os.Stdin)
		return
	}
	defer term.Restore(fd, old)

	t := term.NewTerminal(struct {
		io.Reader
		io.Writer
	}{os.Stdin, os.Stdout}, "> ")
	var history []string
	for {
		line, err := t.ReadLine()
		if err != nil {
			if err != io.EOF {
				fmt.Fprintf(os.Stderr, "Error reading input: %v\n", err)
			}
			fmt.Fprintln(os.Stdout)
			return
		}
		if line == "" {
			continue
		}
		history = append(history, line)
		t.SetHistory(history)
		machine.Interpret(line)
	}
}

// runREPLScanner is the bufio.Scanner-based fallback used when stdin isn't
// an interactive terminal.
func runREPLScanner(machine *vm.VM, in io.Reader) {
	scanner := bufio.NewScanner(in)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			fmt.Println()
			return
		}
		line := scanner.Text()
		if line == "" {
			continue
		}
		machine.Interpret(line)
	}
}
