package session

import (
	"context"
	"time"

	"github.com/NimbusAI/avatarchat/handler"
	"github.com/NimbusAI/avatarchat/history"
)

// HandlerRecord pairs one handler with its per-session context and declared
// detail. Records keep the engine's load order.
type HandlerRecord struct {
	Name    string
	Handler handler.Handler
	Context handler.Context
	Detail  handler.Detail
}

// HistoryProvider is implemented by handler contexts that expose a
// conversation history. The administrative history endpoint reads through
// it; sessions without one serve empty history pages.
type HistoryProvider interface {
	History(ctx context.Context, page, pageSize int) ([]history.Message, int, error)
}

// Session owns everything belonging to one live connection: the session
// context, the delegate, and the handler records. Sessions are fully
// constructed before they enter the registry, so concurrent readers never
// observe a partial one.
type Session struct {
	ctx      *Context
	delegate *Delegate
	records  []*HandlerRecord
}

// New assembles a session from its parts.
func New(ctx *Context, delegate *Delegate, records []*HandlerRecord) *Session {
	return &Session{ctx: ctx, delegate: delegate, records: records}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.ctx.SessionID() }

// Context returns the session context.
func (s *Session) Context() *Context { return s.ctx }

// Delegate returns the session's channel queue bridge.
func (s *Session) Delegate() *Delegate { return s.delegate }

// Records returns the handler records in load order. The returned slice
// must not be mutated.
func (s *Session) Records() []*HandlerRecord { return s.records }

// Record returns the record of the named handler.
func (s *Session) Record(name string) (*HandlerRecord, bool) {
	for _, r := range s.records {
		if r.Name == name {
			return r, true
		}
	}
	return nil, false
}

// CreatedAt returns the wall-clock session start time.
func (s *Session) CreatedAt() time.Time { return s.ctx.CreatedAt() }

// Uptime returns how long the session has been alive.
func (s *Session) Uptime() time.Duration { return s.ctx.Uptime() }

// HistoryProvider returns the first handler context exposing a conversation
// history, if any.
func (s *Session) HistoryProvider() (HistoryProvider, bool) {
	for _, r := range s.records {
		if hp, ok := r.Context.(HistoryProvider); ok {
			return hp, true
		}
	}
	return nil, false
}
