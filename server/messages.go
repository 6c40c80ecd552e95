package server

import (
	"fmt"
	"time"

	"github.com/chazu/yarnvm/pkg/value"
)

// Request and response messages of the dialogue service. They travel as
// JSON; see jsonCodec.

type CreateSessionRequest struct {
	Name string `json:"name,omitempty"`
}

type CreateSessionResponse struct {
	SessionID string `json:"session_id"`
}

// SessionRequest names a session. DestroySession and Next take it.
type SessionRequest struct {
	SessionID string `json:"session_id"`
}

type StartRequest struct {
	SessionID string `json:"session_id"`
	Node      string `json:"node,omitempty"` // default "Start"
}

type ChooseRequest struct {
	SessionID string `json:"session_id"`
	Index     int    `json:"index"`
}

type Empty struct{}

// Step kinds reported by Next.
const (
	StepLine         = "line"
	StepOptions      = "options"
	StepCommand      = "command"
	StepNodeComplete = "node_complete"
	StepComplete     = "complete"
)

// StepResponse is one result of a running dialogue with its text
// already resolved and formatted.
type StepResponse struct {
	Kind     string       `json:"kind"`
	LineID   string       `json:"line_id,omitempty"`
	Text     string       `json:"text,omitempty"`
	Options  []OptionInfo `json:"options,omitempty"`
	Node     string       `json:"node,omitempty"`
	NextNode string       `json:"next_node,omitempty"`
}

type OptionInfo struct {
	Index       int    `json:"index"`
	LineID      string `json:"line_id"`
	Text        string `json:"text"`
	Destination string `json:"destination"`
}

type ListSessionsResponse struct {
	Sessions []SessionInfo `json:"sessions"`
}

type SessionInfo struct {
	ID      string    `json:"id"`
	Name    string    `json:"name,omitempty"`
	Created time.Time `json:"created"`
	State   string    `json:"state"`
	Node    string    `json:"node,omitempty"`
}

type GetVariableRequest struct {
	Name string `json:"name"`
}

type SetVariableRequest struct {
	Name  string `json:"name"`
	Value any    `json:"value"`
}

// VariableResponse carries a variable as JSON: a number, string, bool or
// null for an unset variable.
type VariableResponse struct {
	Name  string `json:"name"`
	Value any    `json:"value"`
}

func toJSONValue(v value.Value) any {
	switch v.Kind() {
	case value.KindNumber:
		return v.Float()
	case value.KindText:
		return v.Str()
	case value.KindBool:
		return v.AsBool()
	default:
		return nil
	}
}

func fromJSONValue(x any) (value.Value, error) {
	switch t := x.(type) {
	case nil:
		return value.Absent, nil
	case float64:
		return value.Number(t), nil
	case string:
		return value.Text(t), nil
	case bool:
		return value.Bool(t), nil
	default:
		return value.Absent, fmt.Errorf("unsupported variable value %T", x)
	}
}
