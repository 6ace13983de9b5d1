// Package history stores per-session conversation history and serves the
// paginated reads the administrative history endpoint needs.
package history

import (
	"context"
	"errors"
)

// ErrInvalidID is returned for empty session identifiers.
var ErrInvalidID = errors.New("invalid session id")

// Message is one conversation history entry.
type Message struct {
	// Role is the speaker: "human" or "avatar".
	Role string `json:"role"`

	// Content is the message text.
	Content string `json:"content"`

	// Timestamp is the Unix wall-clock time in milliseconds.
	Timestamp int64 `json:"timestamp"`
}

// Store persists conversation history per session.
type Store interface {
	// Append adds a message to the session's history.
	Append(ctx context.Context, sessionID string, msg Message) error

	// Page returns the 1-based page of messages [(page-1)*pageSize,
	// min(total, page*pageSize)) along with the total count. Out-of-range
	// pages return an empty slice with the correct total.
	Page(ctx context.Context, sessionID string, page, pageSize int) ([]Message, int, error)

	// Clear removes the session's history.
	Clear(ctx context.Context, sessionID string) error
}

// pageBounds computes the half-open slice bounds for a 1-based page.
func pageBounds(total, page, pageSize int) (start, end int) {
	if page < 1 || pageSize < 1 {
		return 0, 0
	}
	start = (page - 1) * pageSize
	if start > total {
		return total, total
	}
	end = start + pageSize
	if end > total {
		end = total
	}
	return start, end
}
