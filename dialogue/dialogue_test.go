package dialogue

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/tliron/commonlog"

	"github.com/chazu/yarnvm/library"
	"github.com/chazu/yarnvm/pkg/bytecode"
	"github.com/chazu/yarnvm/pkg/value"
	"github.com/chazu/yarnvm/storage"
	"github.com/chazu/yarnvm/vm"
)

// recordingLogger captures the messages the dialogue logs. Only the
// methods the package calls are implemented.
type recordingLogger struct {
	commonlog.Logger
	mu       sync.Mutex
	errors   []string
	warnings []string
}

func (l *recordingLogger) Errorf(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errors = append(l.errors, fmt.Sprintf(format, args...))
}

func (l *recordingLogger) Error(message string, _ ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errors = append(l.errors, message)
}

func (l *recordingLogger) Warningf(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warnings = append(l.warnings, fmt.Sprintf(format, args...))
}

func (l *recordingLogger) Infof(string, ...any)  {}
func (l *recordingLogger) Debugf(string, ...any) {}
func (l *recordingLogger) Debug(string, ...any)  {}

func buildProgram(t *testing.T, strs map[string]string, nodes ...*bytecode.NodeBuilder) *bytecode.Program {
	t.Helper()
	p := bytecode.NewProgram("test")
	for _, b := range nodes {
		n, err := b.Build()
		if err != nil {
			t.Fatalf("Build: %v", err)
		}
		if err := p.AddNode(n); err != nil {
			t.Fatal(err)
		}
	}
	for id, s := range strs {
		p.AddString(id, s)
	}
	return p
}

// shopProgram:
//
//	Start: line "Welcome", store $visits = visitCount(), options Buy/Leave
//	Buy:   line "Bought", jump Start
//	Leave: line "Bye", stop
func shopProgram(t *testing.T) *bytecode.Program {
	return buildProgram(t,
		map[string]string{
			"welcome": "Welcome, {0}!",
			"buy":     "Buy ({0} gold)",
			"leave":   "Leave",
			"bought":  "Bought",
			"bye":     "Bye",
		},
		bytecode.NewNodeBuilder("Start").
			Source("Welcome, {$name}!").
			PushVariable("$name").
			Line("welcome", 1).
			Call("visitCount", 0).
			Store("$startVisits").
			PushNumber(5).
			OptionWith("buy", "Buy", false, 1).
			Option("leave", "Leave").
			ShowOptions(),
		bytecode.NewNodeBuilder("Buy").
			Line("bought", 0).
			JumpToNode("Start"),
		bytecode.NewNodeBuilder("Leave").
			Line("bye", 0).
			Stop(),
	)
}

func newDialogue(t *testing.T, p *bytecode.Program, opts ...Option) (*Dialogue, *storage.MemoryStorage, *recordingLogger) {
	t.Helper()
	logger := &recordingLogger{}
	vars := storage.NewMemory()
	d := New(vars, append([]Option{WithLogger(logger)}, opts...)...)
	if err := d.Load(p); err != nil {
		t.Fatalf("Load: %v", err)
	}
	return d, vars, logger
}

func next(t *testing.T, d *Dialogue) vm.Result {
	t.Helper()
	res, err := d.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	return res
}

func TestShopWalkthrough(t *testing.T) {
	d, vars, _ := newDialogue(t, shopProgram(t))
	vars.Set("$name", value.Text("Ann"))

	if err := d.StartDefault(); err != nil {
		t.Fatal(err)
	}

	line, ok := next(t, d).(*vm.LineResult)
	if !ok {
		t.Fatal("expected a line")
	}
	if got := d.FormatLine(line); got != "Welcome, Ann!" {
		t.Errorf("FormatLine = %q", got)
	}

	opts, ok := next(t, d).(*vm.OptionsResult)
	if !ok || len(opts.Options) != 2 {
		t.Fatalf("expected two options, got %v", opts)
	}
	if got := d.FormatOption(opts.Options[0]); got != "Buy (5 gold)" {
		t.Errorf("FormatOption = %q", got)
	}
	if vars.Get("$startVisits").Float() != 0 {
		t.Errorf("first visit: visitCount() = %v", vars.Get("$startVisits"))
	}

	// Buy loops back to Start.
	if err := d.Choose(0); err != nil {
		t.Fatal(err)
	}
	if d.VisitCount("Start") != 1 {
		t.Errorf("choosing should complete Start, count = %d", d.VisitCount("Start"))
	}
	next(t, d) // Bought
	nc, ok := next(t, d).(*vm.NodeCompleteResult)
	if !ok || nc.Node != "Buy" || nc.NextNode != "Start" {
		t.Fatalf("expected Buy -> Start, got %v", nc)
	}
	next(t, d) // Welcome again
	next(t, d) // Options
	if vars.Get("$startVisits").Float() != 1 {
		t.Errorf("second visit: visitCount() = %v", vars.Get("$startVisits"))
	}

	if err := d.Choose(1); err != nil {
		t.Fatal(err)
	}
	next(t, d) // Bye
	nc, ok = next(t, d).(*vm.NodeCompleteResult)
	if !ok || nc.Node != "Leave" || !nc.Ends() {
		t.Fatalf("expected end of Leave, got %v", nc)
	}
	if _, err := d.Next(); !errors.Is(err, ErrComplete) {
		t.Errorf("after end: %v", err)
	}
	if d.IsRunning() {
		t.Error("dialogue should have stopped")
	}

	want := map[string]int{"Start": 2, "Buy": 1, "Leave": 1}
	for node, n := range want {
		if got := d.VisitCount(node); got != n {
			t.Errorf("VisitCount(%s) = %d, want %d", node, got, n)
		}
	}
	if got := strings.Join(d.VisitedNodes(), ","); got != "Buy,Leave,Start" {
		t.Errorf("VisitedNodes() = %s", got)
	}
}

func TestVisitedFunction(t *testing.T) {
	p := buildProgram(t, nil,
		bytecode.NewNodeBuilder("Start").
			PushText("Start").
			Call("visited", 1).
			Store("$before").
			JumpToNode("Check"),
		bytecode.NewNodeBuilder("Check").
			PushText("Start").
			Call("visited", 1).
			Store("$after").
			PushText("Start").
			Call("visitCount", 1).
			Store("$count"))
	d, vars, _ := newDialogue(t, p)
	d.Start("Start")
	for {
		if _, err := d.Next(); err != nil {
			if !errors.Is(err, ErrComplete) {
				t.Fatal(err)
			}
			break
		}
	}

	if vars.Get("$before").Boolean() {
		t.Error("visited(Start) should be false before Start completes")
	}
	if !vars.Get("$after").Boolean() {
		t.Error("visited(Start) should be true after Start completes")
	}
	if vars.Get("$count").Float() != 1 {
		t.Errorf("visitCount(Start) = %v", vars.Get("$count"))
	}
}

func TestVisitCountEdgeCases(t *testing.T) {
	p := buildProgram(t, nil,
		bytecode.NewNodeBuilder("Start").
			PushText("Nowhere").
			Call("visitCount", 1).
			Store("$unknown").
			PushText("a").
			PushText("b").
			Call("visitCount", 2).
			Store("$many").
			PushText("Nowhere").
			Call("visited", 1).
			Store("$visited").
			Stop())
	d, vars, logger := newDialogue(t, p)
	d.Start("Start")
	next(t, d)

	if vars.Get("$unknown").Float() != 0 || vars.Get("$many").Float() != 0 || vars.Get("$visited").Boolean() {
		t.Errorf("unexpected values %v", vars.Snapshot())
	}
	if len(logger.warnings) != 2 || !strings.Contains(logger.warnings[0], `"Nowhere" does not exist`) {
		t.Errorf("warnings = %v", logger.warnings)
	}
	if len(logger.errors) != 1 || !strings.Contains(logger.errors[0], "expected 0 or 1 arguments, got 2") {
		t.Errorf("errors = %v", logger.errors)
	}
}

func TestStopCommand(t *testing.T) {
	p := buildProgram(t, nil,
		bytecode.NewNodeBuilder("Start").
			Command("wave", 0).
			Command(StopCommand, 0).
			Line("never", 0))
	d, _, _ := newDialogue(t, p)
	d.Start("Start")

	if cmd, ok := next(t, d).(*vm.CommandResult); !ok || cmd.Text != "wave" {
		t.Fatalf("expected wave command, got %v", cmd)
	}
	if _, err := d.Next(); !errors.Is(err, ErrComplete) {
		t.Fatalf("stop command: %v", err)
	}
	if d.State() != vm.Stopped {
		t.Errorf("State() = %s", d.State())
	}
}

func TestPeek(t *testing.T) {
	p := buildProgram(t, nil, bytecode.NewNodeBuilder("Start").Line("a", 0).Line("b", 0))
	d, _, _ := newDialogue(t, p)
	d.Start("Start")

	peeked, err := d.Peek()
	if err != nil {
		t.Fatal(err)
	}
	again, _ := d.Peek()
	if peeked != again {
		t.Error("Peek should not advance")
	}
	if got := next(t, d); got != peeked {
		t.Errorf("Next after Peek = %v, want %v", got, peeked)
	}
	if line := next(t, d).(*vm.LineResult); line.LineID != "b" {
		t.Errorf("got %v", line)
	}
}

func TestMissingLineTextIsLogged(t *testing.T) {
	p := buildProgram(t, nil, bytecode.NewNodeBuilder("Start").Line("ghost", 0))
	d, _, logger := newDialogue(t, p)
	d.Start("Start")

	line := next(t, d).(*vm.LineResult)
	if line.LineID != "ghost" {
		t.Errorf("LineID = %q", line.LineID)
	}
	if got := d.FormatLine(line); got != "ghost" {
		t.Errorf("FormatLine = %q, want raw ID", got)
	}
	if len(logger.warnings) == 0 {
		t.Error("expected a warning for the missing line")
	}
}

func TestRuntimeErrorIsLoggedAndStops(t *testing.T) {
	p := buildProgram(t, nil, bytecode.NewNodeBuilder("Start").
		PushNumber(1).PushNumber(0).Call(library.Divide, 2))
	d, _, logger := newDialogue(t, p)
	d.Start("Start")

	_, err := d.Next()
	if !errors.Is(err, value.ErrDivisionByZero) {
		t.Fatalf("got %v", err)
	}
	if len(logger.errors) != 1 {
		t.Errorf("errors = %v", logger.errors)
	}
	if _, err := d.Next(); !errors.Is(err, ErrComplete) {
		t.Errorf("after fatal error: %v", err)
	}
}

func TestHostMisuse(t *testing.T) {
	d, _, _ := newDialogue(t, shopProgram(t))

	if err := d.Choose(0); !errors.Is(err, ErrComplete) {
		t.Errorf("Choose before Start: %v", err)
	}
	if err := d.Start("Nowhere"); !errors.Is(err, vm.ErrUnknownNode) {
		t.Errorf("Start unknown: %v", err)
	}

	d.StartDefault()
	next(t, d)
	if err := d.Choose(0); !errors.Is(err, vm.ErrInvalidState) {
		t.Errorf("Choose while Suspended: %v", err)
	}
	next(t, d)
	if _, err := d.Next(); !errors.Is(err, vm.ErrInvalidState) {
		t.Errorf("Next while waiting: %v", err)
	}
	if err := d.Choose(7); !errors.Is(err, vm.ErrOptionOutOfRange) {
		t.Errorf("Choose out of range: %v", err)
	}
	if len(d.PendingOptions()) != 2 {
		t.Errorf("PendingOptions() = %v", d.PendingOptions())
	}

	d.Stop()
	d.Stop()
	if d.IsRunning() {
		t.Error("Stop should end the run")
	}
}

func TestNoProgram(t *testing.T) {
	logger := &recordingLogger{}
	d := New(storage.NewMemory(), WithLogger(logger))
	if err := d.StartDefault(); !errors.Is(err, ErrNoProgram) {
		t.Errorf("got %v", err)
	}
	if d.NodeExists("Start") || len(d.AllNodes()) != 0 || d.ByteCode() != "" {
		t.Error("empty dialogue should have no nodes")
	}
	if len(logger.errors) != 1 {
		t.Errorf("errors = %v", logger.errors)
	}
}

func TestLoadingAndIntrospection(t *testing.T) {
	d, _, _ := newDialogue(t, shopProgram(t))

	extra := buildProgram(t, map[string]string{"secret": "Psst"},
		bytecode.NewNodeBuilder("Secret").Line("secret", 0))
	extra.Name = "extra"
	if err := d.AddProgram(extra); err != nil {
		t.Fatal(err)
	}
	if err := d.AddProgram(extra); err == nil {
		t.Error("adding the same nodes twice should fail")
	}

	if got := strings.Join(d.AllNodes(), ","); got != "Buy,Leave,Secret,Start" {
		t.Errorf("AllNodes() = %s", got)
	}
	if !d.NodeExists("Secret") {
		t.Error("Secret should exist")
	}
	if d.StringTable()["secret"] != "Psst" {
		t.Error("StringTable missing merged line")
	}
	if text, ok := d.TextForNode("Start"); !ok || text != "Welcome, {$name}!" {
		t.Errorf("TextForNode = %q, %v", text, ok)
	}
	if bc := d.ByteCode(); !strings.Contains(bc, "; === Secret ===") {
		t.Errorf("ByteCode missing Secret:\n%s", bc)
	}

	d.SetVisitedNodes([]string{"Start", "Buy"})
	d.UnloadAll(false)
	if d.Program() != nil || d.NodeExists("Start") {
		t.Error("UnloadAll should drop the program")
	}
	if !d.Visited("Start") {
		t.Error("UnloadAll(false) should keep visits")
	}
	d.UnloadAll(true)
	if d.Visited("Start") {
		t.Error("UnloadAll(true) should clear visits")
	}
}

func TestLoadStopsRun(t *testing.T) {
	d, _, _ := newDialogue(t, shopProgram(t))
	d.StartDefault()
	next(t, d)

	if err := d.Load(shopProgram(t)); err != nil {
		t.Fatal(err)
	}
	if d.IsRunning() {
		t.Error("Load should stop the run")
	}

	bad := bytecode.NewProgram("bad")
	bad.Nodes["X"] = &bytecode.Node{Name: "Y"}
	if err := d.Load(bad); err == nil {
		t.Error("Load should validate the program")
	}
}

func TestVisitCountPersistence(t *testing.T) {
	d, _, _ := newDialogue(t, shopProgram(t))
	d.SetVisitCounts(map[string]int{"Start": 3, "Buy": 0})
	counts := d.VisitCounts()
	counts["Start"] = 99
	if d.VisitCount("Start") != 3 {
		t.Error("VisitCounts should return a copy")
	}
	if got := d.VisitedNodes(); len(got) != 1 || got[0] != "Start" {
		t.Errorf("VisitedNodes() = %v", got)
	}
	d.ClearVisits()
	if d.Visited("Start") {
		t.Error("ClearVisits should reset")
	}
}

func TestHostLibrary(t *testing.T) {
	host := library.New()
	host.Register("double", library.Exact(1), func(args []value.Value) (value.Value, error) {
		return value.Number(args[0].AsNumber() * 2), nil
	})
	p := buildProgram(t, nil, bytecode.NewNodeBuilder("Start").
		PushNumber(21).Call("double", 1).Store("$x"))
	d, vars, _ := newDialogue(t, p, WithLibrary(host), WithStepLimit(50))
	d.StartDefault()
	next(t, d)
	if vars.Get("$x").Float() != 42 {
		t.Errorf("$x = %v", vars.Get("$x"))
	}
	if !d.Library().Has("visited") || !d.Library().Has(library.Add) {
		t.Error("library should carry visit and standard functions")
	}
}

func TestTraceOption(t *testing.T) {
	var sb strings.Builder
	p := buildProgram(t, nil, bytecode.NewNodeBuilder("Start").Line("a", 0))
	d, _, _ := newDialogue(t, p, WithTrace(&sb))
	d.StartDefault()
	next(t, d)
	if !strings.Contains(sb.String(), "RunLine a") {
		t.Errorf("trace = %q", sb.String())
	}
}
