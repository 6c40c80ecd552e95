package bytecode

import (
	"fmt"
	"sort"
	"strings"
)

// Disassemble returns a human-readable listing of the node.
func (n *Node) Disassemble() string {
	var sb strings.Builder

	// Header
	sb.WriteString(fmt.Sprintf("; === %s ===\n", n.Name))
	if len(n.Tags) > 0 {
		sb.WriteString(fmt.Sprintf("; Tags: %s\n", strings.Join(n.Tags, ", ")))
	}

	// Invert labels so they can be printed in front of their targets.
	labelsAt := make(map[int][]string)
	for label, idx := range n.Labels {
		labelsAt[idx] = append(labelsAt[idx], label)
	}
	for _, labels := range labelsAt {
		sort.Strings(labels)
	}

	for i := range n.Instructions {
		for _, label := range labelsAt[i] {
			sb.WriteString(fmt.Sprintf("%s:\n", label))
		}
		line := n.DisassembleInstruction(i)
		if srcLine := n.SourceLine(i); srcLine > 0 {
			sb.WriteString(fmt.Sprintf("%04d  %-40s ; line %d\n", i, line, srcLine))
		} else {
			sb.WriteString(fmt.Sprintf("%04d  %s\n", i, line))
		}
	}
	for _, label := range labelsAt[len(n.Instructions)] {
		sb.WriteString(fmt.Sprintf("%s:\n", label))
	}

	return sb.String()
}

// DisassembleInstruction returns a human-readable representation of a single instruction.
func (n *Node) DisassembleInstruction(i int) string {
	if i < 0 || i >= len(n.Instructions) {
		return "<end of node>"
	}
	in := n.Instructions[i]

	switch in.Op {
	case OpJump, OpJumpIfFalse:
		label := in.Str(0)
		if target, ok := n.Labels[label]; ok {
			return fmt.Sprintf("%s %s (-> %04d)", in.Op, label, target)
		}
		return fmt.Sprintf("%s %s (-> ?)", in.Op, label)

	case OpJumpToNode:
		if !in.HasOperand(0) {
			return fmt.Sprintf("%s <stack>", in.Op)
		}
		return in.String()

	case OpCallFunction:
		return fmt.Sprintf("%s %s argc=%d", in.Op, in.Str(0), in.Int(1))

	case OpAddOption:
		s := fmt.Sprintf("%s %s -> %s", in.Op, in.Str(0), in.Str(1))
		if in.Bool(2) {
			s += " [cond]"
		}
		if in.Int(3) > 0 {
			s += fmt.Sprintf(" subs=%d", in.Int(3))
		}
		return s

	case OpRunLine:
		if in.Int(1) > 0 {
			return fmt.Sprintf("%s %s subs=%d", in.Op, in.Str(0), in.Int(1))
		}
		return in.String()

	case OpRunCommand:
		if in.Int(1) > 0 {
			return fmt.Sprintf("%s %q subs=%d", in.Op, in.Str(0), in.Int(1))
		}
		return fmt.Sprintf("%s %q", in.Op, in.Str(0))

	// Default: operands printed generically
	default:
		return in.String()
	}
}

// DisassembleToLines returns the disassembly as a slice of lines.
func (n *Node) DisassembleToLines() []string {
	lines := make([]string, 0, len(n.Instructions))
	for i := range n.Instructions {
		lines = append(lines, fmt.Sprintf("%04d  %s", i, n.DisassembleInstruction(i)))
	}
	return lines
}

// Disassemble returns a listing of every node followed by the string table.
func (p *Program) Disassemble() string {
	var sb strings.Builder

	if p.Name != "" {
		sb.WriteString(fmt.Sprintf("; Program %s\n", p.Name))
	}
	sb.WriteString(fmt.Sprintf("; Dialogue bytecode v%d, %d nodes\n\n", p.Version, len(p.Nodes)))

	for _, name := range p.NodeNames() {
		sb.WriteString(p.Nodes[name].Disassemble())
		sb.WriteString("\n")
	}

	if len(p.Strings) > 0 {
		ids := make([]string, 0, len(p.Strings))
		for id := range p.Strings {
			ids = append(ids, id)
		}
		sort.Strings(ids)

		sb.WriteString("; Strings:\n")
		for _, id := range ids {
			// Truncate long strings for readability
			display := p.Strings[id]
			if len(display) > 40 {
				display = display[:37] + "..."
			}
			sb.WriteString(fmt.Sprintf(";   %-12s %q\n", id, display))
		}
	}

	return sb.String()
}
