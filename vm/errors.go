package vm

import (
	"errors"
	"fmt"

	"github.com/chazu/yarnvm/pkg/bytecode"
)

var (
	// ErrUnknownNode is returned by SetNode and ChooseOption for a node
	// that is not in the program, and raised at run time by JumpToNode.
	ErrUnknownNode = errors.New("unknown node")

	// ErrInvalidState is returned when an operation is not allowed in the
	// current state. The state is left unchanged.
	ErrInvalidState = errors.New("invalid state")

	// ErrOptionOutOfRange is returned by ChooseOption for a bad index.
	ErrOptionOutOfRange = errors.New("option index out of range")

	// ErrStepLimit is raised when one Resume dispatches more instructions
	// than the configured limit without yielding.
	ErrStepLimit = errors.New("step limit exceeded")

	// ErrStackUnderflow is raised when an instruction pops an empty stack.
	ErrStackUnderflow = errors.New("stack underflow")
)

// StateError reports host misuse of the state machine.
type StateError struct {
	Op    string
	State ExecutionState
}

func (e *StateError) Error() string {
	return fmt.Sprintf("%s: not allowed while %s", e.Op, e.State)
}

func (e *StateError) Unwrap() error { return ErrInvalidState }

// RuntimeError is a fatal failure while executing an instruction. The VM
// is Stopped when one is returned.
type RuntimeError struct {
	Node   string
	Offset int
	Op     bytecode.Opcode
	Err    error
}

func (e *RuntimeError) Error() string {
	return fmt.Sprintf("node %q at %04d (%s): %v", e.Node, e.Offset, e.Op, e.Err)
}

func (e *RuntimeError) Unwrap() error { return e.Err }
