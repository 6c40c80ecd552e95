package bytecode

import (
	"fmt"

	"github.com/chazu/yarnvm/pkg/value"
)

// NodeBuilder assembles a Node instruction by instruction. Labels may be
// referenced before they are placed; Build fails if any remain unplaced.
type NodeBuilder struct {
	node   *Node
	line   uint32
	errors []error
}

// NewNodeBuilder starts a node with the given name.
func NewNodeBuilder(name string) *NodeBuilder {
	return &NodeBuilder{
		node: &Node{
			Name:         name,
			Instructions: make([]Instruction, 0, 16),
			Labels:       make(map[string]int),
		},
	}
}

// Emit appends an instruction and returns its index.
func (b *NodeBuilder) Emit(op Opcode, operands ...Operand) int {
	idx := len(b.node.Instructions)
	b.node.Instructions = append(b.node.Instructions, NewInstruction(op, operands...))
	if b.line > 0 {
		b.node.SourceMap = append(b.node.SourceMap, SourceLocation{Instruction: idx, Line: b.line})
		b.line = 0
	}
	return idx
}

// AtLine records the source line for the next emitted instruction.
func (b *NodeBuilder) AtLine(line uint32) *NodeBuilder {
	b.line = line
	return b
}

// Label places a label at the current position.
func (b *NodeBuilder) Label(name string) *NodeBuilder {
	if _, exists := b.node.Labels[name]; exists {
		b.errors = append(b.errors, fmt.Errorf("label %q placed twice", name))
		return b
	}
	b.node.Labels[name] = len(b.node.Instructions)
	return b
}

// Tags sets the node tags.
func (b *NodeBuilder) Tags(tags ...string) *NodeBuilder {
	b.node.Tags = append(b.node.Tags, tags...)
	return b
}

// Source records the node's source text.
func (b *NodeBuilder) Source(text string) *NodeBuilder {
	b.node.SourceText = text
	return b
}

// Push emits PushValue.
func (b *NodeBuilder) Push(v value.Value) *NodeBuilder {
	b.Emit(OpPushValue, ValueOperand(v))
	return b
}

// PushNumber emits PushValue with a Number literal.
func (b *NodeBuilder) PushNumber(f float64) *NodeBuilder { return b.Push(value.Number(f)) }

// PushText emits PushValue with a Text literal.
func (b *NodeBuilder) PushText(s string) *NodeBuilder { return b.Push(value.Text(s)) }

// PushBool emits PushValue with a Bool literal.
func (b *NodeBuilder) PushBool(v bool) *NodeBuilder { return b.Push(value.Bool(v)) }

// PushVariable emits PushVariable.
func (b *NodeBuilder) PushVariable(name string) *NodeBuilder {
	b.Emit(OpPushVariable, StringOperand(name))
	return b
}

// Store emits StoreVariable.
func (b *NodeBuilder) Store(name string) *NodeBuilder {
	b.Emit(OpStoreVariable, StringOperand(name))
	return b
}

// Nop emits Nop.
func (b *NodeBuilder) Nop() *NodeBuilder {
	b.Emit(OpNop)
	return b
}

// Pop emits Pop.
func (b *NodeBuilder) Pop() *NodeBuilder {
	b.Emit(OpPop)
	return b
}

// Call emits CallFunction.
func (b *NodeBuilder) Call(name string, argc int) *NodeBuilder {
	b.Emit(OpCallFunction, StringOperand(name), IntOperand(argc))
	return b
}

// Jump emits an unconditional jump to label.
func (b *NodeBuilder) Jump(label string) *NodeBuilder {
	b.Emit(OpJump, StringOperand(label))
	return b
}

// JumpIfFalse emits a conditional jump to label.
func (b *NodeBuilder) JumpIfFalse(label string) *NodeBuilder {
	b.Emit(OpJumpIfFalse, StringOperand(label))
	return b
}

// JumpToNode emits a jump to a named node. An empty name makes the VM pop
// the node name from the stack.
func (b *NodeBuilder) JumpToNode(name string) *NodeBuilder {
	if name == "" {
		b.Emit(OpJumpToNode)
	} else {
		b.Emit(OpJumpToNode, StringOperand(name))
	}
	return b
}

// Line emits RunLine with subs substitution values taken from the stack.
func (b *NodeBuilder) Line(lineID string, subs int) *NodeBuilder {
	if subs > 0 {
		b.Emit(OpRunLine, StringOperand(lineID), IntOperand(subs))
	} else {
		b.Emit(OpRunLine, StringOperand(lineID))
	}
	return b
}

// Option emits AddOption without a condition.
func (b *NodeBuilder) Option(lineID, destination string) *NodeBuilder {
	b.Emit(OpAddOption, StringOperand(lineID), StringOperand(destination))
	return b
}

// OptionIf emits AddOption whose condition is on top of the stack.
func (b *NodeBuilder) OptionIf(lineID, destination string) *NodeBuilder {
	b.Emit(OpAddOption, StringOperand(lineID), StringOperand(destination), BoolOperand(true))
	return b
}

// OptionWith emits the full form of AddOption.
func (b *NodeBuilder) OptionWith(lineID, destination string, hasCondition bool, subs int) *NodeBuilder {
	b.Emit(OpAddOption, StringOperand(lineID), StringOperand(destination), BoolOperand(hasCondition), IntOperand(subs))
	return b
}

// ShowOptions emits ShowOptions.
func (b *NodeBuilder) ShowOptions() *NodeBuilder {
	b.Emit(OpShowOptions)
	return b
}

// Command emits RunCommand with subs substitution values taken from the stack.
func (b *NodeBuilder) Command(text string, subs int) *NodeBuilder {
	if subs > 0 {
		b.Emit(OpRunCommand, StringOperand(text), IntOperand(subs))
	} else {
		b.Emit(OpRunCommand, StringOperand(text))
	}
	return b
}

// Stop emits Stop.
func (b *NodeBuilder) Stop() *NodeBuilder {
	b.Emit(OpStop)
	return b
}

// EndNode emits EndNode.
func (b *NodeBuilder) EndNode() *NodeBuilder {
	b.Emit(OpEndNode)
	return b
}

// CurrentOffset returns the index the next instruction will occupy.
func (b *NodeBuilder) CurrentOffset() int {
	return len(b.node.Instructions)
}

// Build finishes the node. Every jump label must have been placed and
// every instruction must be well formed.
func (b *NodeBuilder) Build() (*Node, error) {
	if len(b.errors) > 0 {
		return nil, fmt.Errorf("node %q: %w", b.node.Name, b.errors[0])
	}
	for i, in := range b.node.Instructions {
		if err := in.validate(); err != nil {
			return nil, &ValidationError{Node: b.node.Name, Instruction: i, Err: err}
		}
		if in.Op.IsJump() {
			if _, ok := b.node.Labels[in.Str(0)]; !ok {
				return nil, &ValidationError{Node: b.node.Name, Instruction: i, Err: fmt.Errorf("unknown label %q", in.Str(0))}
			}
		}
	}
	return b.node, nil
}

// MustBuild is like Build but panics on error. Intended for tests and
// statically known programs.
func (b *NodeBuilder) MustBuild() *Node {
	n, err := b.Build()
	if err != nil {
		panic(err)
	}
	return n
}
