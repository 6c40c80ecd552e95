// Package library holds the function registry dialogue expressions call
// into: every operator the compiler emits is a CallFunction against a
// named entry here, and hosts add their own entries the same way.
package library

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/chazu/yarnvm/pkg/value"
)

var (
	// ErrUnknownFunction is returned when a name has no registered entry.
	ErrUnknownFunction = errors.New("unknown function")

	// ErrArityMismatch is returned when an exact-arity entry is called with
	// the wrong number of arguments.
	ErrArityMismatch = errors.New("arity mismatch")
)

// ---------------------------------------------------------------------------
// Arity
// ---------------------------------------------------------------------------

// Arity is the declared argument contract of a function: either an exact
// count or variadic, in which case the function validates its own
// arguments.
type Arity struct {
	n        int
	variadic bool
}

// Variadic accepts any number of arguments.
var Variadic = Arity{variadic: true}

// Exact declares a fixed argument count. Negative counts are clamped to 0.
func Exact(n int) Arity {
	if n < 0 {
		n = 0
	}
	return Arity{n: n}
}

// IsVariadic reports whether the arity accepts any count.
func (a Arity) IsVariadic() bool { return a.variadic }

// Count returns the exact argument count; meaningless for Variadic.
func (a Arity) Count() int { return a.n }

// Accepts reports whether argc arguments satisfy the arity.
func (a Arity) Accepts(argc int) bool {
	return a.variadic || a.n == argc
}

func (a Arity) String() string {
	if a.variadic {
		return "variadic"
	}
	return fmt.Sprintf("%d", a.n)
}

// ---------------------------------------------------------------------------
// Registry
// ---------------------------------------------------------------------------

// Func is a native implementation. args[0] is the first argument pushed by
// the compiled code.
type Func func(args []value.Value) (value.Value, error)

// Function is a registered entry.
type Function struct {
	Name  string
	Arity Arity
	Fn    Func
}

// Call invokes the function after checking the arity.
func (f Function) Call(args []value.Value) (value.Value, error) {
	if !f.Arity.Accepts(len(args)) {
		return value.Absent, &CallError{Name: f.Name, Err: fmt.Errorf("%w: expects %s arguments, got %d", ErrArityMismatch, f.Arity, len(args))}
	}
	v, err := f.Fn(args)
	if err != nil {
		return value.Absent, &CallError{Name: f.Name, Err: err}
	}
	return v, nil
}

// CallError wraps any failure raised while dispatching or running a
// function.
type CallError struct {
	Name string
	Err  error
}

func (e *CallError) Error() string {
	return fmt.Sprintf("function %s: %v", e.Name, e.Err)
}

func (e *CallError) Unwrap() error { return e.Err }

// Library is a registry of functions keyed by name. It is safe for
// concurrent use, so one library may back several dialogues.
type Library struct {
	mu    sync.RWMutex
	funcs map[string]Function
}

// New creates an empty library.
func New() *Library {
	return &Library{funcs: make(map[string]Function)}
}

// NewStandard creates a library preloaded with the standard operators.
func NewStandard() *Library {
	l := New()
	RegisterStandard(l)
	return l
}

// Register adds fn under name. A later registration of the same name
// replaces the earlier one.
func (l *Library) Register(name string, arity Arity, fn Func) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.funcs[name] = Function{Name: name, Arity: arity, Fn: fn}
}

// Deregister removes name. Removing an unknown name is a no-op.
func (l *Library) Deregister(name string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.funcs, name)
}

// Lookup returns the entry registered under name.
func (l *Library) Lookup(name string) (Function, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	f, ok := l.funcs[name]
	return f, ok
}

// Has reports whether name is registered.
func (l *Library) Has(name string) bool {
	_, ok := l.Lookup(name)
	return ok
}

// Import copies every entry of other into l, replacing same-named entries.
func (l *Library) Import(other *Library) {
	if other == nil || other == l {
		return
	}
	other.mu.RLock()
	copied := make([]Function, 0, len(other.funcs))
	for _, f := range other.funcs {
		copied = append(copied, f)
	}
	other.mu.RUnlock()

	l.mu.Lock()
	defer l.mu.Unlock()
	for _, f := range copied {
		l.funcs[f.Name] = f
	}
}

// Names returns the registered names in sorted order.
func (l *Library) Names() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	names := make([]string, 0, len(l.funcs))
	for name := range l.funcs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Call looks up name and invokes it with args.
func (l *Library) Call(name string, args []value.Value) (value.Value, error) {
	f, ok := l.Lookup(name)
	if !ok {
		return value.Absent, &CallError{Name: name, Err: ErrUnknownFunction}
	}
	return f.Call(args)
}
