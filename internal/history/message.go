package history

import (
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message represents a single conversational message.
type Message struct {
	ID        int64     `json:"id"`
	SessionID string    `json:"session_id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	Metadata  Metadata  `json:"metadata,omitempty"`
}

// Session is the metadata row of a conversation.
type Session struct {
	SessionID    string    `json:"session_id"`
	CreatedAt    time.Time `json:"created_at"`
	LastActivity time.Time `json:"last_activity"`
	Title        *string   `json:"title"`
	Summary      *string   `json:"summary"`
}

// Stats summarizes the messages of one session. Timestamps are nil when the
// session has no messages.
type Stats struct {
	MessageCount int        `json:"message_count"`
	FirstMessage *time.Time `json:"first_message"`
	LastMessage  *time.Time `json:"last_message"`
}

// Metadata is a free-form JSON object stored in a TEXT column.
type Metadata map[string]any

// Scan implements the sql.Scanner interface for Metadata
func (m *Metadata) Scan(value any) error {
	var raw []byte
	switch v := value.(type) {
	case nil:
		*m = nil
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("cannot scan type %T into Metadata", value)
	}
	if len(raw) == 0 || string(raw) == "null" {
		*m = nil
		return nil
	}
	return json.Unmarshal(raw, m)
}

// Value implements the driver.Valuer interface for Metadata. Empty metadata is stored as NULL.
func (m Metadata) Value() (driver.Value, error) {
	if len(m) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

type messageRow struct {
	ID        int64    `db:"id"`
	SessionID string   `db:"session_id"`
	Role      string   `db:"role"`
	Content   string   `db:"content"`
	Timestamp int64    `db:"timestamp"`
	Metadata  Metadata `db:"metadata"`
}

func (r messageRow) message() Message {
	return Message{
		ID:        r.ID,
		SessionID: r.SessionID,
		Role:      r.Role,
		Content:   r.Content,
		Timestamp: fromNanos(r.Timestamp),
		Metadata:  r.Metadata,
	}
}

type sessionRow struct {
	SessionID    string         `db:"session_id"`
	CreatedAt    int64          `db:"created_at"`
	LastActivity int64          `db:"last_activity"`
	Title        sql.NullString `db:"title"`
	Summary      sql.NullString `db:"summary"`
}

func (r sessionRow) session() Session {
	return Session{
		SessionID:    r.SessionID,
		CreatedAt:    fromNanos(r.CreatedAt),
		LastActivity: fromNanos(r.LastActivity),
		Title:        nullable(r.Title),
		Summary:      nullable(r.Summary),
	}
}

type statsRow struct {
	MessageCount int           `db:"message_count"`
	FirstMessage sql.NullInt64 `db:"first_message"`
	LastMessage  sql.NullInt64 `db:"last_message"`
}

func (r statsRow) stats() Stats {
	s := Stats{MessageCount: r.MessageCount}
	if r.FirstMessage.Valid {
		t := fromNanos(r.FirstMessage.Int64)
		s.FirstMessage = &t
	}
	if r.LastMessage.Valid {
		t := fromNanos(r.LastMessage.Int64)
		s.LastMessage = &t
	}
	return s
}

func fromNanos(n int64) time.Time { return time.Unix(0, n).UTC() }

func nullable(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	return &s.String
}
