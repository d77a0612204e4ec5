// Package view projects controller state into what a chat screen shows.
package view

import (
	"github.com/creastat/feedback-assistant/conversation"
	"github.com/creastat/feedback-assistant/session"
	"github.com/creastat/feedback-assistant/transport"
)

// Align is the horizontal placement of a message bubble.
type Align int

const (
	AlignLeft Align = iota
	AlignRight
)

const (
	labelUser      = "You"
	labelAssistant = "Assistant"
)

// Entry is one rendered message.
type Entry struct {
	ID       int64
	Role     session.Role
	Label    string
	Align    Align
	Content  string
	Passages []string
}

// Model is everything a chat screen binds to.
type Model struct {
	Entries        []Entry
	Loading        bool
	InputEnabled   bool
	Input          string
	ScrollToLatest bool
	DocsOnly       bool
	Suggestions    []Suggestion
	Tokens         int
}

// Project maps a controller snapshot onto a Model. prevLen is the log length the
// caller last rendered; ScrollToLatest is set when the log has grown since.
func Project(snap conversation.Snapshot, prevLen int) Model {
	entries := make([]Entry, 0, len(snap.Messages))
	for _, m := range snap.Messages {
		e := Entry{
			ID:       m.ID,
			Role:     m.Role,
			Label:    labelAssistant,
			Align:    AlignLeft,
			Content:  m.Content,
			Passages: m.RetrievedPassages,
		}
		if m.Role == session.RoleUser {
			e.Label = labelUser
			e.Align = AlignRight
		}
		entries = append(entries, e)
	}

	loading := snap.State == conversation.StateSubmitting
	return Model{
		Entries:        entries,
		Loading:        loading,
		InputEnabled:   !loading,
		Input:          snap.Input,
		ScrollToLatest: len(snap.Messages) > prevLen,
		DocsOnly:       snap.Filter == transport.FilterReport,
		Suggestions:    Suggestions(),
		Tokens:         session.TranscriptTokens(snap.Messages),
	}
}

// FilterFor maps the "search in uploaded documents only" toggle to a source filter.
func FilterFor(docsOnly bool) transport.SourceFilter {
	if docsOnly {
		return transport.FilterReport
	}
	return transport.FilterAll
}
