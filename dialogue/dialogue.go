// Package dialogue is the host-facing façade over the VM. A Dialogue owns
// the loaded program, the function library and the node-visit counters,
// and hands results to the host one at a time through Next.
package dialogue

import (
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/tliron/commonlog"

	"github.com/chazu/yarnvm/library"
	"github.com/chazu/yarnvm/pkg/bytecode"
	"github.com/chazu/yarnvm/pkg/value"
	"github.com/chazu/yarnvm/vm"
)

// DefaultStartNode is the node StartDefault runs.
const DefaultStartNode = "Start"

// StopCommand is the command text that ends a run from within a script.
const StopCommand = "stop"

var (
	// ErrComplete is returned by Next once the run has ended.
	ErrComplete = errors.New("dialogue complete")

	// ErrNoProgram is returned when starting without a loaded program.
	ErrNoProgram = errors.New("no program loaded")
)

// Option configures a Dialogue.
type Option func(*Dialogue)

// WithLibrary imports host functions on top of the standard library and
// the visit functions. Host entries win on name clashes.
func WithLibrary(lib *library.Library) Option {
	return func(d *Dialogue) { d.hostLib = lib }
}

// WithLogger replaces the default "yarn.dialogue" logger.
func WithLogger(logger commonlog.Logger) Option {
	return func(d *Dialogue) { d.log = logger }
}

// WithStepLimit sets the VM per-step instruction limit.
func WithStepLimit(n int) Option {
	return func(d *Dialogue) { d.vmOpts = append(d.vmOpts, vm.WithStepLimit(n)) }
}

// WithTrace writes an instruction trace of every run to w.
func WithTrace(w io.Writer) Option {
	return func(d *Dialogue) { d.vmOpts = append(d.vmOpts, vm.WithTrace(w)) }
}

// Dialogue runs compiled dialogue for a host. It is not safe for
// concurrent use; see Worker.
type Dialogue struct {
	storage vm.VariableStorage
	lib     *library.Library
	hostLib *library.Library
	program *bytecode.Program
	machine *vm.VM
	vmOpts  []vm.VMOption
	log     commonlog.Logger

	visits map[string]int
	peeked vm.Result
}

// New creates a Dialogue reading and writing variables through storage.
func New(storage vm.VariableStorage, opts ...Option) *Dialogue {
	d := &Dialogue{
		storage: storage,
		lib:     library.NewStandard(),
		log:     commonlog.GetLogger("yarn.dialogue"),
		visits:  make(map[string]int),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.lib.Register("visited", library.Variadic, d.visitedFunc)
	d.lib.Register("visitCount", library.Variadic, d.visitCountFunc)
	if d.hostLib != nil {
		d.lib.Import(d.hostLib)
	}
	return d
}

// Library returns the dialogue's function library. Functions registered
// on it are visible to the next run.
func (d *Dialogue) Library() *library.Library { return d.lib }

// Storage returns the variable storage.
func (d *Dialogue) Storage() vm.VariableStorage { return d.storage }

// Program returns the loaded program, or nil.
func (d *Dialogue) Program() *bytecode.Program { return d.program }

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Load replaces the program. Any run in progress is stopped.
func (d *Dialogue) Load(p *bytecode.Program) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("loading program: %w", err)
	}
	d.Stop()
	d.machine = nil
	d.program = p
	d.log.Infof("loaded program %q with %d nodes", p.Name, len(p.Nodes))
	return nil
}

// AddProgram merges p into the loaded program, or loads it if none is.
func (d *Dialogue) AddProgram(p *bytecode.Program) error {
	if d.program == nil {
		return d.Load(p)
	}
	if err := p.Validate(); err != nil {
		return fmt.Errorf("adding program: %w", err)
	}
	if err := d.program.Merge(p); err != nil {
		return fmt.Errorf("adding program: %w", err)
	}
	d.log.Infof("added %d nodes from %q", len(p.Nodes), p.Name)
	return nil
}

// LoadFiles loads and merges program files into the dialogue.
func (d *Dialogue) LoadFiles(paths ...string) error {
	p, err := bytecode.LoadFiles(paths...)
	if err != nil {
		return err
	}
	return d.AddProgram(p)
}

// UnloadAll stops any run and drops the program. Visit counts are kept
// unless clearVisited is set.
func (d *Dialogue) UnloadAll(clearVisited bool) {
	d.Stop()
	d.machine = nil
	d.program = nil
	if clearVisited {
		d.ClearVisits()
	}
}

// ---------------------------------------------------------------------------
// Running
// ---------------------------------------------------------------------------

// Start begins a new run at node, abandoning any run in progress.
func (d *Dialogue) Start(node string) error {
	if d.program == nil {
		d.log.Error("start called with no program loaded")
		return ErrNoProgram
	}
	d.Stop()
	m := vm.New(d.program, d.lib, d.storage, d.vmOpts...)
	if err := m.SetNode(node); err != nil {
		return err
	}
	d.machine = m
	d.log.Debugf("running from node %q", node)
	return nil
}

// StartDefault begins a run at DefaultStartNode.
func (d *Dialogue) StartDefault() error {
	return d.Start(DefaultStartNode)
}

// Next runs to the next result. It returns ErrComplete once the run has
// ended and an error from the VM on host misuse or a fatal failure.
func (d *Dialogue) Next() (vm.Result, error) {
	if d.peeked != nil {
		res := d.peeked
		d.peeked = nil
		return res, nil
	}
	if d.machine == nil || d.machine.State() == vm.Stopped {
		return nil, ErrComplete
	}

	res, err := d.machine.Resume()
	if err != nil {
		var rerr *vm.RuntimeError
		if errors.As(err, &rerr) {
			d.log.Errorf("%s", err)
		}
		return nil, err
	}

	switch r := res.(type) {
	case *vm.NodeCompleteResult:
		d.visits[r.Node]++
	case *vm.LineResult:
		if _, ok := d.program.LineTemplate(r.LineID); !ok {
			d.log.Warningf("no text for line %q", r.LineID)
		}
	case *vm.OptionsResult:
		for _, o := range r.Options {
			if _, ok := d.program.LineTemplate(o.LineID); !ok {
				d.log.Warningf("no text for option line %q", o.LineID)
			}
		}
	case *vm.CommandResult:
		if r.Text == StopCommand {
			d.log.Debug("stop command")
			d.machine.Stop()
			return nil, ErrComplete
		}
	}
	return res, nil
}

// Peek returns the result the next call to Next will return, running the
// VM to produce it if needed.
func (d *Dialogue) Peek() (vm.Result, error) {
	if d.peeked == nil {
		res, err := d.Next()
		if err != nil {
			return nil, err
		}
		d.peeked = res
	}
	return d.peeked, nil
}

// Choose selects an option of the last Options result. The node the
// options came from counts as visited.
func (d *Dialogue) Choose(index int) error {
	if d.machine == nil {
		return ErrComplete
	}
	from, _ := d.machine.CurrentNodeName()
	if err := d.machine.ChooseOption(index); err != nil {
		return err
	}
	d.peeked = nil
	d.visits[from]++
	return nil
}

// Stop ends the current run, if any.
func (d *Dialogue) Stop() {
	d.peeked = nil
	if d.machine != nil {
		d.machine.Stop()
	}
}

// IsRunning reports whether a run is in progress.
func (d *Dialogue) IsRunning() bool {
	return d.machine != nil && d.machine.State() != vm.Stopped
}

// State returns the VM state.
func (d *Dialogue) State() vm.ExecutionState {
	if d.machine == nil {
		return vm.Stopped
	}
	return d.machine.State()
}

// CurrentNode returns the node being run.
func (d *Dialogue) CurrentNode() (string, bool) {
	if d.machine == nil {
		return "", false
	}
	return d.machine.CurrentNodeName()
}

// PendingOptions returns the options awaiting a choice.
func (d *Dialogue) PendingOptions() []vm.Option {
	if d.machine == nil {
		return nil
	}
	return d.machine.PendingOptions()
}

// ---------------------------------------------------------------------------
// Introspection
// ---------------------------------------------------------------------------

// NodeExists reports whether the loaded program has node.
func (d *Dialogue) NodeExists(node string) bool {
	return d.program.NodeExists(node)
}

// AllNodes returns every node name, sorted.
func (d *Dialogue) AllNodes() []string {
	return d.program.NodeNames()
}

// StringTable returns a copy of the line table.
func (d *Dialogue) StringTable() map[string]string {
	out := make(map[string]string)
	if d.program != nil {
		for id, s := range d.program.Strings {
			out[id] = s
		}
	}
	return out
}

// LineText returns the template for a line ID. A missing ID is logged
// and returned as the text.
func (d *Dialogue) LineText(id string) string {
	if s, ok := d.program.LineTemplate(id); ok {
		return s
	}
	d.log.Warningf("no text for line %q", id)
	return id
}

// FormatLine renders a line result with its substitutions.
func (d *Dialogue) FormatLine(line *vm.LineResult) string {
	return vm.FormatTemplate(d.LineText(line.LineID), line.Substitutions)
}

// FormatOption renders an option with its substitutions.
func (d *Dialogue) FormatOption(o vm.Option) string {
	return vm.FormatTemplate(d.LineText(o.LineID), o.Substitutions)
}

// TextForNode returns the source text of node, if the program kept it.
func (d *Dialogue) TextForNode(node string) (string, bool) {
	return d.program.TextForNode(node)
}

// ByteCode returns a disassembly of the loaded program.
func (d *Dialogue) ByteCode() string {
	if d.program == nil {
		return ""
	}
	return d.program.Disassemble()
}

// ---------------------------------------------------------------------------
// Visit tracking
// ---------------------------------------------------------------------------

// VisitCount returns how many times node has completed.
func (d *Dialogue) VisitCount(node string) int {
	return d.visits[node]
}

// Visited reports whether node has completed at least once.
func (d *Dialogue) Visited(node string) bool {
	return d.visits[node] > 0
}

// VisitedNodes returns the names of every visited node, sorted.
func (d *Dialogue) VisitedNodes() []string {
	names := make([]string, 0, len(d.visits))
	for name, n := range d.visits {
		if n > 0 {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// SetVisitedNodes replaces the counters: each named node is visited once.
func (d *Dialogue) SetVisitedNodes(names []string) {
	clear(d.visits)
	for _, name := range names {
		d.visits[name] = 1
	}
}

// VisitCounts returns a copy of every counter.
func (d *Dialogue) VisitCounts() map[string]int {
	out := make(map[string]int, len(d.visits))
	for k, v := range d.visits {
		out[k] = v
	}
	return out
}

// SetVisitCounts replaces every counter.
func (d *Dialogue) SetVisitCounts(counts map[string]int) {
	clear(d.visits)
	for k, v := range counts {
		d.visits[k] = v
	}
}

// ClearVisits resets every counter.
func (d *Dialogue) ClearVisits() {
	clear(d.visits)
}

// visitTarget resolves the node a visit function asks about.
func (d *Dialogue) visitTarget(fn string, args []value.Value) (string, bool) {
	switch len(args) {
	case 0:
		node, ok := d.CurrentNode()
		if !ok {
			d.log.Errorf("%s: no node is running", fn)
		}
		return node, ok
	case 1:
		node := args[0].AsString()
		if !d.NodeExists(node) {
			d.log.Warningf("%s: the node %q does not exist", fn, node)
			return "", false
		}
		return node, true
	default:
		d.log.Errorf("%s: expected 0 or 1 arguments, got %d", fn, len(args))
		return "", false
	}
}

func (d *Dialogue) visitedFunc(args []value.Value) (value.Value, error) {
	node, ok := d.visitTarget("visited", args)
	if !ok {
		return value.Bool(false), nil
	}
	return value.Bool(d.Visited(node)), nil
}

func (d *Dialogue) visitCountFunc(args []value.Value) (value.Value, error) {
	node, ok := d.visitTarget("visitCount", args)
	if !ok {
		return value.Number(0), nil
	}
	return value.Number(float64(d.VisitCount(node))), nil
}
