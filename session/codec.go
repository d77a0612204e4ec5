package session

import (
	"encoding/json"
	"fmt"
)

// EncodeMessages serializes a conversation log into its persisted form.
func EncodeMessages(messages []Message) ([]byte, error) {
	if messages == nil {
		messages = []Message{}
	}
	return json.Marshal(messages)
}

// DecodeMessages parses a persisted conversation log and validates its ordering.
func DecodeMessages(b []byte) ([]Message, error) {
	var messages []Message
	if err := json.Unmarshal(b, &messages); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptSnapshot, err)
	}
	if err := ValidateLog(messages); err != nil {
		return nil, err
	}
	return messages, nil
}

// EncodeSnapshot serializes a full snapshot for drivers that store it as one blob.
func EncodeSnapshot(snap *Snapshot) ([]byte, error) {
	return json.Marshal(snap)
}

// DecodeSnapshot parses a snapshot written by EncodeSnapshot.
func DecodeSnapshot(b []byte) (*Snapshot, error) {
	var snap Snapshot
	if err := json.Unmarshal(b, &snap); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptSnapshot, err)
	}
	return &snap, nil
}

// ValidateLog checks that ids strictly increase and every role is known.
func ValidateLog(messages []Message) error {
	var last int64
	for i, m := range messages {
		if m.Role != RoleUser && m.Role != RoleAssistant {
			return fmt.Errorf("%w: message %d has unknown role %q", ErrCorruptSnapshot, i, m.Role)
		}
		if m.ID <= last {
			return fmt.Errorf("%w: message %d id %d does not follow %d", ErrCorruptSnapshot, i, m.ID, last)
		}
		last = m.ID
	}
	return nil
}
