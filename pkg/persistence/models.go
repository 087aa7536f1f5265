package persistence

import (
	"encoding/json"
	"errors"
	"time"
)

// ErrSessionNotFound is returned when a requested session does not exist.
var ErrSessionNotFound = errors.New("session not found")

// Session status constants.
const (
	SessionStatusActive    = "active"
	SessionStatusCompleted = "completed" // Pipeline reached COMPLETED
	SessionStatusFailed    = "failed"    // A stage failed the run
)

// timeLayout is fixed width so that lexical order in SQLite matches time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Session is one persisted content generation conversation.
//
//nolint:govet // struct alignment optimization not critical for this type.
type Session struct {
	ID        string          `json:"id"`
	AppName   string          `json:"app_name"`
	UserID    string          `json:"user_id"`
	Topic     string          `json:"topic,omitempty"`
	Status    string          `json:"status"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
	Messages  []Message       `json:"messages"`
	State     json.RawMessage `json:"state,omitempty"` // Terminal state snapshot
}

// Message is one transcript entry.
type Message struct {
	Role      string    `json:"role"`
	Stage     string    `json:"stage,omitempty"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Summary is a session header with its message count, as listed.
type Summary struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	Topic        string    `json:"topic,omitempty"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	MessageCount int       `json:"message_count"`
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}
