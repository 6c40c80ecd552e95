// Package server exposes dialogue sessions over HTTP using the Connect
// protocol with JSON messages, so remote hosts can drive dialogues that
// share one variable storage.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"connectrpc.com/connect"
	"github.com/tliron/commonlog"

	"github.com/chazu/yarnvm/dialogue"
)

var log = commonlog.GetLogger("yarn.server")

// DialogueServer serves a DialogueService.
type DialogueServer struct {
	sessions *dialogue.SessionStore
	service  *DialogueService
	mux      *http.ServeMux
	http     *http.Server
}

// New creates a DialogueServer over sessions.
func New(sessions *dialogue.SessionStore) *DialogueServer {
	s := &DialogueServer{
		sessions: sessions,
		service:  NewDialogueService(sessions),
		mux:      http.NewServeMux(),
	}
	s.http = &http.Server{
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	opts := []connect.HandlerOption{connect.WithCodec(jsonCodec{})}
	svc := s.service
	s.mux.Handle(ProcedureCreateSession, connect.NewUnaryHandler(ProcedureCreateSession, svc.CreateSession, opts...))
	s.mux.Handle(ProcedureDestroySession, connect.NewUnaryHandler(ProcedureDestroySession, svc.DestroySession, opts...))
	s.mux.Handle(ProcedureListSessions, connect.NewUnaryHandler(ProcedureListSessions, svc.ListSessions, opts...))
	s.mux.Handle(ProcedureStart, connect.NewUnaryHandler(ProcedureStart, svc.Start, opts...))
	s.mux.Handle(ProcedureNext, connect.NewUnaryHandler(ProcedureNext, svc.Next, opts...))
	s.mux.Handle(ProcedureChoose, connect.NewUnaryHandler(ProcedureChoose, svc.Choose, opts...))
	s.mux.Handle(ProcedureGetVariable, connect.NewUnaryHandler(ProcedureGetVariable, svc.GetVariable, opts...))
	s.mux.Handle(ProcedureSetVariable, connect.NewUnaryHandler(ProcedureSetVariable, svc.SetVariable, opts...))

	return s
}

// Handler returns the HTTP handler serving every procedure.
func (s *DialogueServer) Handler() http.Handler { return s.mux }

// ListenAndServe serves on addr ("host:port" or ":port") until Shutdown.
func (s *DialogueServer) ListenAndServe(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln until Shutdown.
func (s *DialogueServer) Serve(ln net.Listener) error {
	log.Noticef("dialogue server listening on %s", ln.Addr())
	log.Infof("  Connect (HTTP/JSON): http://%s%s", ln.Addr(), ProcedureCreateSession)
	err := s.http.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops accepting requests and ends every session.
func (s *DialogueServer) Shutdown(ctx context.Context) error {
	err := s.http.Shutdown(ctx)
	s.sessions.Close()
	return err
}
