package vm

// ExecutionState is the VM lifecycle state.
type ExecutionState int

const (
	Stopped ExecutionState = iota
	Running
	Suspended
	WaitingOnOptionSelection
)

var stateNames = [...]string{
	Stopped:                  "Stopped",
	Running:                  "Running",
	Suspended:                "Suspended",
	WaitingOnOptionSelection: "WaitingOnOptionSelection",
}

func (s ExecutionState) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "Unknown"
}
