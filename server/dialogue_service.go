package server

import (
	"context"
	"errors"
	"fmt"

	"connectrpc.com/connect"

	"github.com/chazu/yarnvm/dialogue"
	"github.com/chazu/yarnvm/vm"
)

// Procedure paths of the dialogue service.
const (
	ServiceName = "yarn.v1.DialogueService"

	ProcedureCreateSession  = "/" + ServiceName + "/CreateSession"
	ProcedureDestroySession = "/" + ServiceName + "/DestroySession"
	ProcedureListSessions   = "/" + ServiceName + "/ListSessions"
	ProcedureStart          = "/" + ServiceName + "/Start"
	ProcedureNext           = "/" + ServiceName + "/Next"
	ProcedureChoose         = "/" + ServiceName + "/Choose"
	ProcedureGetVariable    = "/" + ServiceName + "/GetVariable"
	ProcedureSetVariable    = "/" + ServiceName + "/SetVariable"
)

// DialogueService drives dialogue sessions on behalf of remote hosts.
type DialogueService struct {
	sessions *dialogue.SessionStore
}

// NewDialogueService creates a DialogueService over sessions.
func NewDialogueService(sessions *dialogue.SessionStore) *DialogueService {
	return &DialogueService{sessions: sessions}
}

// CreateSession creates a session. It is loaded but not started.
func (s *DialogueService) CreateSession(
	ctx context.Context,
	req *connect.Request[CreateSessionRequest],
) (*connect.Response[CreateSessionResponse], error) {
	session, err := s.sessions.Create(req.Msg.Name)
	if err != nil {
		return nil, connectError(err)
	}
	log.Infof("created session %s (%q)", session.ID, session.Name)
	return connect.NewResponse(&CreateSessionResponse{SessionID: session.ID}), nil
}

// DestroySession stops and removes a session.
func (s *DialogueService) DestroySession(
	ctx context.Context,
	req *connect.Request[SessionRequest],
) (*connect.Response[Empty], error) {
	if req.Msg.SessionID == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("session_id is required"))
	}
	if err := s.sessions.Destroy(req.Msg.SessionID); err != nil {
		return nil, connectError(fmt.Errorf("session %q: %w", req.Msg.SessionID, err))
	}
	return connect.NewResponse(&Empty{}), nil
}

// ListSessions describes every session, oldest first.
func (s *DialogueService) ListSessions(
	ctx context.Context,
	req *connect.Request[Empty],
) (*connect.Response[ListSessionsResponse], error) {
	resp := &ListSessionsResponse{Sessions: []SessionInfo{}}
	for _, session := range s.sessions.List() {
		info := SessionInfo{ID: session.ID, Name: session.Name, Created: session.Created}
		_, err := session.Do(func(d *dialogue.Dialogue) (any, error) {
			info.State = d.State().String()
			info.Node, _ = d.CurrentNode()
			return nil, nil
		})
		if err != nil {
			// Destroyed while listing.
			continue
		}
		resp.Sessions = append(resp.Sessions, info)
	}
	return connect.NewResponse(resp), nil
}

// Start begins a run of the session at the requested node.
func (s *DialogueService) Start(
	ctx context.Context,
	req *connect.Request[StartRequest],
) (*connect.Response[Empty], error) {
	session, err := s.session(req.Msg.SessionID)
	if err != nil {
		return nil, err
	}
	node := req.Msg.Node
	if node == "" {
		node = dialogue.DefaultStartNode
	}
	if err := session.Start(node); err != nil {
		return nil, connectError(err)
	}
	return connect.NewResponse(&Empty{}), nil
}

// Next runs the session to its next result. A finished run reports kind
// "complete" rather than an error.
func (s *DialogueService) Next(
	ctx context.Context,
	req *connect.Request[SessionRequest],
) (*connect.Response[StepResponse], error) {
	session, err := s.session(req.Msg.SessionID)
	if err != nil {
		return nil, err
	}
	step, err := session.Do(func(d *dialogue.Dialogue) (any, error) {
		res, err := d.Next()
		if errors.Is(err, dialogue.ErrComplete) {
			return &StepResponse{Kind: StepComplete}, nil
		}
		if err != nil {
			return nil, err
		}
		return stepFromResult(d, res), nil
	})
	if err != nil {
		return nil, connectError(err)
	}
	return connect.NewResponse(step.(*StepResponse)), nil
}

// Choose picks an option of the last options step.
func (s *DialogueService) Choose(
	ctx context.Context,
	req *connect.Request[ChooseRequest],
) (*connect.Response[Empty], error) {
	session, err := s.session(req.Msg.SessionID)
	if err != nil {
		return nil, err
	}
	if err := session.Choose(req.Msg.Index); err != nil {
		return nil, connectError(err)
	}
	return connect.NewResponse(&Empty{}), nil
}

// GetVariable reads a variable from the storage shared by all sessions.
func (s *DialogueService) GetVariable(
	ctx context.Context,
	req *connect.Request[GetVariableRequest],
) (*connect.Response[VariableResponse], error) {
	if req.Msg.Name == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("name is required"))
	}
	v := s.sessions.Storage().Get(req.Msg.Name)
	return connect.NewResponse(&VariableResponse{Name: req.Msg.Name, Value: toJSONValue(v)}), nil
}

// SetVariable writes a variable to the shared storage.
func (s *DialogueService) SetVariable(
	ctx context.Context,
	req *connect.Request[SetVariableRequest],
) (*connect.Response[VariableResponse], error) {
	if req.Msg.Name == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("name is required"))
	}
	v, err := fromJSONValue(req.Msg.Value)
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}
	s.sessions.Storage().Set(req.Msg.Name, v)
	return connect.NewResponse(&VariableResponse{Name: req.Msg.Name, Value: toJSONValue(v)}), nil
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func (s *DialogueService) session(id string) (*dialogue.Session, error) {
	if id == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("session_id is required"))
	}
	session, ok := s.sessions.Get(id)
	if !ok {
		return nil, connect.NewError(connect.CodeNotFound, fmt.Errorf("session %q not found", id))
	}
	return session, nil
}

// stepFromResult renders a VM result. Must run on the session's worker.
func stepFromResult(d *dialogue.Dialogue, res vm.Result) *StepResponse {
	switch r := res.(type) {
	case *vm.LineResult:
		return &StepResponse{Kind: StepLine, LineID: r.LineID, Text: d.FormatLine(r)}
	case *vm.OptionsResult:
		step := &StepResponse{Kind: StepOptions}
		for _, o := range r.Options {
			step.Options = append(step.Options, OptionInfo{
				Index:       o.Index,
				LineID:      o.LineID,
				Text:        d.FormatOption(o),
				Destination: o.Destination,
			})
		}
		return step
	case *vm.CommandResult:
		return &StepResponse{Kind: StepCommand, Text: r.Text}
	case *vm.NodeCompleteResult:
		return &StepResponse{Kind: StepNodeComplete, Node: r.Node, NextNode: r.NextNode}
	}
	return &StepResponse{Kind: res.String()}
}

// connectError maps dialogue and VM errors to connect codes.
func connectError(err error) error {
	code := connect.CodeInternal
	switch {
	case errors.Is(err, dialogue.ErrSessionNotFound), errors.Is(err, vm.ErrUnknownNode):
		code = connect.CodeNotFound
	case errors.Is(err, vm.ErrOptionOutOfRange):
		code = connect.CodeInvalidArgument
	case errors.Is(err, vm.ErrInvalidState), errors.Is(err, dialogue.ErrNoProgram), errors.Is(err, dialogue.ErrComplete):
		code = connect.CodeFailedPrecondition
	case errors.Is(err, dialogue.ErrWorkerStopped):
		code = connect.CodeUnavailable
	}
	var rerr *vm.RuntimeError
	if errors.As(err, &rerr) {
		code = connect.CodeAborted
	}
	return connect.NewError(code, err)
}
