package vm

import (
	"fmt"
	"strings"

	"github.com/chazu/yarnvm/pkg/value"
)

// Result is what a single Resume call yields. It is one of *LineResult,
// *OptionsResult, *CommandResult or *NodeCompleteResult.
type Result interface {
	fmt.Stringer
	result()
}

// LineResult asks the host to display a line. The VM does not resolve
// the template; LineID is looked up in the program's string table.
type LineResult struct {
	LineID        string
	Substitutions []value.Value
}

// Option is one entry of an options result.
type Option struct {
	LineID        string
	Substitutions []value.Value
	Index         int // 0-based, contiguous
	Destination   string
}

// OptionsResult carries the accumulated options in the order they were
// added. The VM waits for ChooseOption after delivering it.
type OptionsResult struct {
	Options []Option
}

// CommandResult asks the host to run a command.
type CommandResult struct {
	Text string
}

// NodeCompleteResult marks a node boundary. NextNode is the node execution
// continues in, or "" when the run has ended.
type NodeCompleteResult struct {
	Node     string
	NextNode string
}

func (*LineResult) result()         {}
func (*OptionsResult) result()      {}
func (*CommandResult) result()      {}
func (*NodeCompleteResult) result() {}

func (r *LineResult) String() string {
	if len(r.Substitutions) == 0 {
		return fmt.Sprintf("Line(%s)", r.LineID)
	}
	return fmt.Sprintf("Line(%s %s)", r.LineID, formatValues(r.Substitutions))
}

func (r *OptionsResult) String() string {
	parts := make([]string, len(r.Options))
	for i, o := range r.Options {
		parts[i] = fmt.Sprintf("%d:%s->%s", o.Index, o.LineID, o.Destination)
	}
	return "Options(" + strings.Join(parts, ", ") + ")"
}

func (r *CommandResult) String() string {
	return fmt.Sprintf("Command(%q)", r.Text)
}

func (r *NodeCompleteResult) String() string {
	if r.NextNode == "" {
		return fmt.Sprintf("NodeComplete(%s)", r.Node)
	}
	return fmt.Sprintf("NodeComplete(%s -> %s)", r.Node, r.NextNode)
}

// Ends reports whether the run is over after this boundary.
func (r *NodeCompleteResult) Ends() bool { return r.NextNode == "" }

func formatValues(vs []value.Value) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = fmt.Sprintf("%#v", v)
	}
	return "[" + strings.Join(parts, " ") + "]"
}
