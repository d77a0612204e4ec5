package session

import "time"

// Role identifies who authored a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// SnapshotKey is the fixed storage key under which a session's transcript is kept.
// Drivers namespace it with the session ID.
const SnapshotKey = "chatMessages"

// SeedGreeting is the assistant greeting shown when a session has no prior state.
const SeedGreeting = "Hello! I'm your AI feedback assistant. Ask a question about the initial reviews, or upload a document to expand my knowledge base."

// Message represents a single conversation turn.
// Messages are immutable once appended to a History.
type Message struct {
	ID      int64  `json:"id"`
	Role    Role   `json:"role"`
	Content string `json:"content"`
	// RetrievedPassages is nil unless the message is a successful answer.
	// Encoded without omitempty so nil and empty slices survive a round trip.
	RetrievedPassages []string `json:"retrieved_passages"`
}

// SeedMessage returns the default assistant greeting with ID 1.
func SeedMessage() Message {
	return Message{ID: 1, Role: RoleAssistant, Content: SeedGreeting}
}

// Snapshot represents the serialized transcript of one session.
//
// PERSISTED TO THE BACKEND:
// - ID: session identifier
// - CreatedAt, UpdatedAt: timestamps
// - Version: for optimistic locking, incremented on every update
// - Messages: the full ordered conversation log
type Snapshot struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Version   int64     `json:"version"`
	Messages  []Message `json:"messages"`
}

// Clone returns a deep copy of the snapshot.
func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return nil
	}
	out := *s
	out.Messages = CloneMessages(s.Messages)
	return &out
}

// CloneMessages deep-copies a log, preserving nil versus empty passage slices.
func CloneMessages(messages []Message) []Message {
	if messages == nil {
		return nil
	}
	out := make([]Message, len(messages))
	for i, m := range messages {
		out[i] = m
		if m.RetrievedPassages != nil {
			out[i].RetrievedPassages = append([]string{}, m.RetrievedPassages...)
		}
	}
	return out
}
