package vm

import (
	"fmt"
	"io"

	"github.com/chazu/yarnvm/library"
	"github.com/chazu/yarnvm/pkg/bytecode"
	"github.com/chazu/yarnvm/pkg/value"
)

// DefaultStepLimit bounds the instructions one Resume may dispatch
// without yielding.
const DefaultStepLimit = 1 << 20

// VariableStorage is where script variables live. Get returns
// value.Absent for unset names. Implementations are assumed infallible.
type VariableStorage interface {
	Get(name string) value.Value
	Set(name string, v value.Value)
	Clear()
}

// VMOption configures a VM.
type VMOption func(*VM)

// WithStepLimit sets the per-Resume instruction limit. Zero or less
// disables the limit.
func WithStepLimit(n int) VMOption {
	return func(vm *VM) { vm.stepLimit = n }
}

// WithTrace writes every dispatched instruction to w.
func WithTrace(w io.Writer) VMOption {
	return func(vm *VM) { vm.trace = w }
}

// VM is the dialogue interpreter. A VM is not safe for concurrent use.
type VM struct {
	program *bytecode.Program
	lib     *library.Library
	storage VariableStorage

	state ExecutionState
	node  *bytecode.Node
	ip    int
	stack []value.Value

	pending   []Option // accumulated by AddOption
	delivered []Option // last set handed to the host

	stepLimit int
	trace     io.Writer
}

// New creates a stopped VM bound to program, lib and storage. A nil lib
// gets the standard library.
func New(program *bytecode.Program, lib *library.Library, storage VariableStorage, opts ...VMOption) *VM {
	if lib == nil {
		lib = library.NewStandard()
	}
	vm := &VM{
		program:   program,
		lib:       lib,
		storage:   storage,
		state:     Stopped,
		stack:     make([]value.Value, 0, 16),
		stepLimit: DefaultStepLimit,
	}
	for _, opt := range opts {
		opt(vm)
	}
	return vm
}

// Program returns the program the VM executes.
func (vm *VM) Program() *bytecode.Program { return vm.program }

// Library returns the function library.
func (vm *VM) Library() *library.Library { return vm.lib }

// Storage returns the variable storage.
func (vm *VM) Storage() VariableStorage { return vm.storage }

// State returns the current execution state.
func (vm *VM) State() ExecutionState { return vm.state }

// CurrentNodeName returns the node being executed, if any.
func (vm *VM) CurrentNodeName() (string, bool) {
	if vm.node == nil {
		return "", false
	}
	return vm.node.Name, true
}

// PendingOptions returns the options awaiting a choice, or nil when the
// VM is not waiting on one.
func (vm *VM) PendingOptions() []Option {
	if vm.state != WaitingOnOptionSelection {
		return nil
	}
	out := make([]Option, len(vm.delivered))
	copy(out, vm.delivered)
	return out
}

// ---------------------------------------------------------------------------
// Host operations
// ---------------------------------------------------------------------------

// SetNode positions the VM at the start of the named node, discarding any
// stack and options. On failure the VM is unchanged.
func (vm *VM) SetNode(name string) error {
	n, err := vm.program.Node(name)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrUnknownNode, name)
	}
	vm.enter(n)
	return nil
}

// ChooseOption selects option index of the delivered set and positions the
// VM at the start of its destination. No instructions run until the next
// Resume. On failure the VM is unchanged.
func (vm *VM) ChooseOption(index int) error {
	if vm.state != WaitingOnOptionSelection {
		return &StateError{Op: "ChooseOption", State: vm.state}
	}
	if index < 0 || index >= len(vm.delivered) {
		return fmt.Errorf("%w: %d not in 0..%d", ErrOptionOutOfRange, index, len(vm.delivered)-1)
	}
	dest := vm.delivered[index].Destination
	n, err := vm.program.Node(dest)
	if err != nil {
		return fmt.Errorf("%w: option %d leads to %q", ErrUnknownNode, index, dest)
	}
	vm.enter(n)
	return nil
}

// Stop ends the run. It may be called in any state.
func (vm *VM) Stop() {
	vm.state = Stopped
	vm.node = nil
	vm.ip = 0
	vm.stack = vm.stack[:0]
	vm.pending = nil
	vm.delivered = nil
}

func (vm *VM) enter(n *bytecode.Node) {
	vm.node = n
	vm.ip = 0
	vm.stack = vm.stack[:0]
	vm.pending = nil
	vm.delivered = nil
	vm.state = Suspended
}

// ---------------------------------------------------------------------------
// Dispatch loop
// ---------------------------------------------------------------------------

// Resume runs instructions until the next suspension point and returns
// its result. It fails without running anything unless the VM is
// Suspended. A *RuntimeError leaves the VM Stopped.
func (vm *VM) Resume() (Result, error) {
	if vm.state != Suspended {
		return nil, &StateError{Op: "Resume", State: vm.state}
	}
	vm.state = Running

	for steps := 0; ; steps++ {
		if vm.ip >= len(vm.node.Instructions) {
			// Falling off the end is an implicit EndNode.
			return vm.finish(), nil
		}
		offset := vm.ip
		in := vm.node.Instructions[offset]
		if vm.stepLimit > 0 && steps >= vm.stepLimit {
			return nil, vm.fail(offset, in.Op, fmt.Errorf("%w: %d instructions without yielding", ErrStepLimit, steps))
		}
		vm.ip++
		if vm.trace != nil {
			fmt.Fprintf(vm.trace, "%-16s %04d  %s\n", vm.node.Name, offset, vm.node.DisassembleInstruction(offset))
		}

		res, err := vm.execute(in)
		if err != nil {
			return nil, vm.fail(offset, in.Op, err)
		}
		if res != nil {
			return res, nil
		}
	}
}

// execute runs one instruction. A non-nil result ends the Resume call; the
// state has already been updated when it is returned.
func (vm *VM) execute(in bytecode.Instruction) (Result, error) {
	switch in.Op {
	case bytecode.OpNop:

	case bytecode.OpPop:
		if _, err := vm.pop(); err != nil {
			return nil, err
		}

	case bytecode.OpPushValue:
		vm.push(in.Literal(0))

	case bytecode.OpPushVariable:
		vm.push(vm.storage.Get(in.Str(0)))

	case bytecode.OpStoreVariable:
		v, err := vm.pop()
		if err != nil {
			return nil, err
		}
		vm.storage.Set(in.Str(0), v)

	case bytecode.OpCallFunction:
		args, err := vm.popN(in.Int(1))
		if err != nil {
			return nil, err
		}
		result, err := vm.lib.Call(in.Str(0), args)
		if err != nil {
			return nil, err
		}
		vm.push(result)

	case bytecode.OpJump:
		vm.ip = vm.node.Labels[in.Str(0)]

	case bytecode.OpJumpIfFalse:
		cond, err := vm.pop()
		if err != nil {
			return nil, err
		}
		if !cond.AsBool() {
			vm.ip = vm.node.Labels[in.Str(0)]
		}

	case bytecode.OpJumpToNode:
		return vm.jumpToNode(in)

	case bytecode.OpRunLine:
		subs, err := vm.popN(in.Int(1))
		if err != nil {
			return nil, err
		}
		vm.state = Suspended
		return &LineResult{LineID: in.Str(0), Substitutions: subs}, nil

	case bytecode.OpAddOption:
		return nil, vm.addOption(in)

	case bytecode.OpShowOptions:
		if len(vm.pending) == 0 {
			// Nothing to choose from: the dialogue is over.
			return vm.finish(), nil
		}
		vm.delivered = vm.pending
		vm.pending = nil
		vm.state = WaitingOnOptionSelection
		options := make([]Option, len(vm.delivered))
		copy(options, vm.delivered)
		return &OptionsResult{Options: options}, nil

	case bytecode.OpRunCommand:
		subs, err := vm.popN(in.Int(1))
		if err != nil {
			return nil, err
		}
		vm.state = Suspended
		return &CommandResult{Text: FormatTemplate(in.Str(0), subs)}, nil

	case bytecode.OpStop, bytecode.OpEndNode:
		return vm.finish(), nil

	default:
		return nil, fmt.Errorf("unknown opcode 0x%02X", byte(in.Op))
	}
	return nil, nil
}

func (vm *VM) addOption(in bytecode.Instruction) error {
	cond := true
	if in.Bool(2) {
		v, err := vm.pop()
		if err != nil {
			return err
		}
		cond = v.AsBool()
	}
	subs, err := vm.popN(in.Int(3))
	if err != nil {
		return err
	}
	if !cond {
		return nil
	}
	vm.pending = append(vm.pending, Option{
		LineID:        in.Str(0),
		Substitutions: subs,
		Index:         len(vm.pending),
		Destination:   in.Str(1),
	})
	return nil
}

func (vm *VM) jumpToNode(in bytecode.Instruction) (Result, error) {
	target := in.Str(0)
	if !in.HasOperand(0) {
		v, err := vm.pop()
		if err != nil {
			return nil, err
		}
		target = v.AsString()
	}
	n, err := vm.program.Node(target)
	if err != nil {
		return nil, fmt.Errorf("%w: jump to %q", ErrUnknownNode, target)
	}
	from := vm.node.Name
	vm.enter(n)
	return &NodeCompleteResult{Node: from, NextNode: target}, nil
}

// finish ends the run at a node boundary.
func (vm *VM) finish() Result {
	res := &NodeCompleteResult{Node: vm.node.Name}
	vm.Stop()
	return res
}

func (vm *VM) fail(offset int, op bytecode.Opcode, err error) error {
	rerr := &RuntimeError{Node: vm.node.Name, Offset: offset, Op: op, Err: err}
	vm.Stop()
	return rerr
}

// ---------------------------------------------------------------------------
// Stack operations
// ---------------------------------------------------------------------------

func (vm *VM) push(v value.Value) {
	vm.stack = append(vm.stack, v)
}

func (vm *VM) pop() (value.Value, error) {
	if len(vm.stack) == 0 {
		return value.Absent, ErrStackUnderflow
	}
	v := vm.stack[len(vm.stack)-1]
	vm.stack = vm.stack[:len(vm.stack)-1]
	return v, nil
}

// popN pops n values and returns them in push order.
func (vm *VM) popN(n int) ([]value.Value, error) {
	if n == 0 {
		return nil, nil
	}
	if len(vm.stack) < n {
		return nil, fmt.Errorf("%w: need %d values, have %d", ErrStackUnderflow, n, len(vm.stack))
	}
	out := make([]value.Value, n)
	copy(out, vm.stack[len(vm.stack)-n:])
	vm.stack = vm.stack[:len(vm.stack)-n]
	return out, nil
}
