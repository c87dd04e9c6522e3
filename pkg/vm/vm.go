// Package vm implements a stack-based virtual machine that executes
// chunk.Chunk bytecode over value.Value operands.
package vm

import (
	"fmt"
	"io"
	"os"

	"github.com/mray/scriptvm/pkg/chunk"
	"github.com/mray/scriptvm/pkg/compiler"
	"github.com/mray/scriptvm/pkg/table"
	"github.com/mray/scriptvm/pkg/value"
)

// StackMax is the maximum number of values live on the VM's stack at once.
const StackMax = 256

// InterpretResult classifies how an Interpret call ended.
type InterpretResult int

const (
	InterpretOK InterpretResult = iota
	InterpretCompileError
	InterpretRuntimeError
)

// VM is a stack machine: a fixed-size value stack, an instruction pointer
// into the chunk currently executing, and a table of global bindings that
// persists across Interpret calls (so a REPL session accumulates state).
type VM struct {
	chunk   *chunk.Chunk
	ip      int
	stack   []value.Value
	globals *table.Table
	out     io.Writer
	trace   bool
}

// New returns a VM with empty globals, ready to interpret one or more
// programs in sequence.
func New(trace ...bool) *VM {
	traceEnabled := false
	if len(trace) > 0 {
		traceEnabled = trace[0]
	}
	return &VM{
		stack:   make([]value.Value, 0, StackMax),
		globals: table.New(),
		out:     os.Stdout,
		trace:   traceEnabled,
	}
}

// SetOutput redirects where OpPrint writes, for tests.
func (vm *VM) SetOutput(w io.Writer) {
	vm.out = w
}

// Interpret compiles source and runs it to completion. Compile errors have
// already been printed to stderr by the compiler; runtime errors are
// printed here in clox's "[line N] in script" style.
func (vm *VM) Interpret(source string) InterpretResult {
	c, err := compiler.Compile(source)
	if err != nil {
		return InterpretCompileError
	}

	vm.chunk = c
	vm.ip = 0

	if err := vm.run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return InterpretRuntimeError
	}
	return InterpretOK
}

func (vm *VM) resetStack() {
	vm.stack = vm.stack[:0]
}

func (vm *VM) push(v value.Value) error {
	if len(vm.stack) >= StackMax {
		return vm.runtimeError("Stack overflow.")
	}
	vm.stack = append(vm.stack, v)
	return nil
}

func (vm *VM) pop() value.Value {
	v := vm.stack[len(vm.stack)-1]
	vm.stack = vm.stack[:len(vm.stack)-1]
	return v
}

func (vm *VM) peek(distance int) value.Value {
	return vm.stack[len(vm.stack)-1-distance]
}

func (vm *VM) runtimeError(format string, args ...interface{}) error {
	msg := fmt.Sprintf(format, args...)
	line := 0
	if vm.ip > 0 && vm.ip-1 < len(vm.chunk.Lines) {
		line = vm.chunk.GetLine(vm.ip - 1)
	}
	vm.resetStack()
	return fmt.Errorf("%s\n[line %d] in script", msg, line)
}

func (vm *VM) readByte() byte {
	b := vm.chunk.Code[vm.ip]
	vm.ip++
	return b
}

func (vm *VM) readShort() uint16 {
	lo := vm.chunk.Code[vm.ip]
	hi := vm.chunk.Code[vm.ip+1]
	vm.ip += 2
	return uint16(lo) | uint16(hi)<<8
}

func (vm *VM) readConstant() value.Value {
	return vm.chunk.GetConstant(vm.readByte())
}

func isNumber(v value.Value) bool { return v.IsNumber() }

// run executes vm.chunk starting at vm.ip until OpReturn or a runtime error.
func (vm *VM) run() error {
	for {
		if vm.trace {
			vm.traceInstruction()
		}

		instruction := chunk.OpCode(vm.readByte())
		switch instruction {
		case chunk.OpConstant:
			if err := vm.push(vm.readConstant()); err != nil {
				return err
			}

		case chunk.OpNil:
			if err := vm.push(value.Nil); err != nil {
				return err
			}
		case chunk.OpTrue:
			if err := vm.push(value.Bool(true)); err != nil {
				return err
			}
		case chunk.OpFalse:
			if err := vm.push(value.Bool(false)); err != nil {
				return err
			}

		case chunk.OpPop:
			vm.pop()

		case chunk.OpGetLocal:
			slot := vm.readByte()
			if err := vm.push(vm.stack[slot]); err != nil {
				return err
			}
		case chunk.OpSetLocal:
			slot := vm.readByte()
			vm.stack[slot] = vm.peek(0)

		case chunk.OpGetGlobal:
			name := vm.readConstant().AsString()
			v, ok := vm.globals.Get(name)
			if !ok {
				return vm.runtimeError("Undefined variable '%s'.", name)
			}
			if err := vm.push(v); err != nil {
				return err
			}
		case chunk.OpDefineGlobal:
			name := vm.readConstant().AsString()
			vm.globals.Set(name, vm.peek(0))
			vm.pop()
		case chunk.OpSetGlobal:
			name := vm.readConstant().AsString()
			if vm.globals.Set(name, vm.peek(0)) {
				vm.globals.Delete(name)
				return vm.runtimeError("Undefined variable '%s'.", name)
			}

		case chunk.OpEqual:
			b := vm.pop()
			a := vm.pop()
			if err := vm.push(value.Bool(value.Equal(a, b))); err != nil {
				return err
			}
		case chunk.OpGreater:
			if err := vm.binaryCompare(func(a, b float64) bool { return a > b }); err != nil {
				return err
			}
		case chunk.OpLess:
			if err := vm.binaryCompare(func(a, b float64) bool { return a < b }); err != nil {
				return err
			}

		case chunk.OpAdd:
			if err := vm.add(); err != nil {
				return err
			}
		case chunk.OpSubtract:
			if err := vm.binaryNumeric(func(a, b float64) float64 { return a - b }); err != nil {
				return err
			}
		case chunk.OpMultiply:
			if err := vm.binaryNumeric(func(a, b float64) float64 { return a * b }); err != nil {
				return err
			}
		case chunk.OpDivide:
			if err := vm.binaryNumeric(func(a, b float64) float64 { return a / b }); err != nil {
				return err
			}

		case chunk.OpNot:
			v := vm.pop()
			if err := vm.push(value.Bool(value.IsFalsey(v))); err != nil {
				return err
			}
		case chunk.OpNegate:
			if !isNumber(vm.peek(0)) {
				return vm.runtimeError("Operand must be a number.")
			}
			v := vm.pop()
			if err := vm.push(value.Number(-v.AsNumber())); err != nil {
				return err
			}

		case chunk.OpPrint:
			fmt.Fprintln(vm.out, vm.pop().String())

		case chunk.OpJump:
			offset := vm.readShort()
			vm.ip += int(offset)
		case chunk.OpJumpIfFalse:
			offset := vm.readShort()
			if value.IsFalsey(vm.peek(0)) {
				vm.ip += int(offset)
			}
		case chunk.OpLoop:
			offset := vm.readShort()
			vm.ip -= int(offset)

		case chunk.OpReturn:
			return nil

		default:
			return vm.runtimeError("Unknown opcode 0x%02X.", byte(instruction))
		}
	}
}

func (vm *VM) add() error {
	b := vm.peek(0)
	a := vm.peek(1)
	switch {
	case a.IsNumber() && b.IsNumber():
		vm.pop()
		vm.pop()
		return vm.push(value.Number(a.AsNumber() + b.AsNumber()))
	case a.IsString() && b.IsString():
		vm.pop()
		vm.pop()
		return vm.push(value.String(a.AsString() + b.AsString()))
	default:
		return vm.runtimeError("Operands must be two numbers or two strings.")
	}
}

func (vm *VM) binaryNumeric(op func(a, b float64) float64) error {
	if !isNumber(vm.peek(0)) || !isNumber(vm.peek(1)) {
		return vm.runtimeError("Operands must be numbers.")
	}
	b := vm.pop()
	a := vm.pop()
	return vm.push(value.Number(op(a.AsNumber(), b.AsNumber())))
}

func (vm *VM) binaryCompare(op func(a, b float64) bool) error {
	if !isNumber(vm.peek(0)) || !isNumber(vm.peek(1)) {
		return vm.runtimeError("Operands must be numbers.")
	}
	b := vm.pop()
	a := vm.pop()
	return vm.push(value.Bool(op(a.AsNumber(), b.AsNumber())))
}

func (vm *VM) traceInstruction() {
	fmt.Fprint(os.Stderr, "          ")
	for _, v := range vm.stack {
		fmt.Fprintf(os.Stderr, "[ %s ]", v.String())
	}
	fmt.Fprintln(os.Stderr)
	line, _ := vm.chunk.DisassembleInstruction(vm.ip)
	fmt.Fprintln(os.Stderr, line)
}
