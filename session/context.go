// Package session holds per-session state: the session context, the channel
// queue bridge (session delegate), and the registry administrative surfaces
// read concurrently with live routing.
package session

import (
	"sync"
	"time"

	"github.com/NimbusAI/avatarchat/types"
)

// Context is the per-session state shared across handlers: identity, clocks,
// and a small cross-handler key/value area. It implements
// handler.SessionContext.
type Context struct {
	id        string
	startMono time.Time
	startWall time.Time

	shared sync.Map
}

// NewContext creates a session context with the given identifier, anchoring
// the session-relative clock at now.
func NewContext(id string) *Context {
	now := time.Now()
	return &Context{
		id:        id,
		startMono: now,
		startWall: now,
	}
}

// SessionID returns the unique session identifier assigned at connect.
func (c *Context) SessionID() string { return c.id }

// CreatedAt returns the wall-clock session start time.
func (c *Context) CreatedAt() time.Time { return c.startWall }

// Uptime returns how long the session has been alive.
func (c *Context) Uptime() time.Duration { return time.Since(c.startMono) }

// Timestamp produces a session-scoped monotonic timestamp pair.
func (c *Context) Timestamp() types.Timestamp {
	now := time.Now()
	return types.Timestamp{
		SessionMillis: now.Sub(c.startMono).Milliseconds(),
		WallMillis:    now.UnixMilli(),
	}
}

// SharedState reads a cross-handler shared value.
func (c *Context) SharedState(key string) (interface{}, bool) {
	return c.shared.Load(key)
}

// SetSharedState publishes a cross-handler shared value.
func (c *Context) SetSharedState(key string, value interface{}) {
	c.shared.Store(key, value)
}
