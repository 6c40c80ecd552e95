// Package vm executes compiled dialogue programs.
//
// A VM runs one node at a time and pauses after every observable effect.
// The host drives it with a pull loop:
//
//	m := vm.New(program, library.NewStandard(), storage.NewMemory())
//	if err := m.SetNode("Start"); err != nil { ... }
//	for m.State() == vm.Suspended {
//		res, err := m.Resume()
//		if err != nil { ... }
//		switch r := res.(type) {
//		case *vm.LineResult:    // show r.LineID
//		case *vm.OptionsResult: // pick one, then m.ChooseOption(i)
//		case *vm.CommandResult: // run r.Text
//		case *vm.NodeCompleteResult:
//		}
//	}
//
// # States
//
//   - Stopped: initial, and after the run ends, a fatal error or Stop.
//     Only SetNode leaves it.
//   - Running: inside Resume. Never observed between calls.
//   - Suspended: ready for Resume.
//   - WaitingOnOptionSelection: an Options result was delivered. Only
//     ChooseOption (or Stop, or SetNode) leaves it.
//
// The VM performs no locking and spawns no goroutines. Variable storage
// shared between VMs must be serialized by the host.
package vm
