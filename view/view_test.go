package view

import (
	"strings"
	"testing"

	"github.com/creastat/feedback-assistant/conversation"
	"github.com/creastat/feedback-assistant/session"
	"github.com/creastat/feedback-assistant/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSnapshot(state conversation.State) conversation.Snapshot {
	return conversation.Snapshot{
		Messages: []session.Message{
			session.SeedMessage(),
			{ID: 2, Role: session.RoleUser, Content: "what is X?"},
			{ID: 3, Role: session.RoleAssistant, Content: "X", RetrievedPassages: []string{"p1"}},
		},
		State:  state,
		Input:  "draft",
		Filter: transport.FilterAll,
	}
}

func TestProject(t *testing.T) {
	m := Project(testSnapshot(conversation.StateIdle), 1)

	require.Len(t, m.Entries, 3)
	assert.Equal(t, AlignLeft, m.Entries[0].Align)
	assert.Equal(t, "Assistant", m.Entries[0].Label)
	assert.Equal(t, AlignRight, m.Entries[1].Align)
	assert.Equal(t, "You", m.Entries[1].Label)
	assert.Equal(t, []string{"p1"}, m.Entries[2].Passages)
	assert.Equal(t, []int64{1, 2, 3}, []int64{m.Entries[0].ID, m.Entries[1].ID, m.Entries[2].ID})

	assert.False(t, m.Loading)
	assert.True(t, m.InputEnabled)
	assert.True(t, m.ScrollToLatest)
	assert.False(t, m.DocsOnly)
	assert.Equal(t, "draft", m.Input)
	assert.Len(t, m.Suggestions, 3)
	assert.Positive(t, m.Tokens)
}

func TestProject_Submitting(t *testing.T) {
	snap := testSnapshot(conversation.StateSubmitting)
	snap.Filter = transport.FilterReport

	m := Project(snap, 3)
	assert.True(t, m.Loading)
	assert.False(t, m.InputEnabled)
	assert.False(t, m.ScrollToLatest)
	assert.True(t, m.DocsOnly)
}

func TestFilterFor(t *testing.T) {
	assert.Equal(t, transport.FilterReport, FilterFor(true))
	assert.Equal(t, transport.FilterAll, FilterFor(false))
}

type inputRecorder struct{ input string }

func (r *inputRecorder) SetInput(s string) { r.input = s }

func TestApplySuggestion(t *testing.T) {
	s := Suggestions()
	require.Len(t, s, 3)
	assert.Equal(t, "Comfort complaints?", s[0].Label)
	assert.Equal(t, "Sizing issues?", s[1].Label)
	assert.Equal(t, "Fabric feedback?", s[2].Label)

	var r inputRecorder
	ApplySuggestion(&r, s[2])
	assert.Equal(t, `Find reviews that mention "material" or "fabric".`, r.input)

	// the returned slice is a copy
	s[0].Prompt = "changed"
	assert.Equal(t, "What are the most common complaints about comfort?", Suggestions()[0].Prompt)
}

func TestRenderer(t *testing.T) {
	r := NewRenderer(60, "notty")

	user := Entry{Role: session.RoleUser, Content: "**not markdown**"}
	assert.Equal(t, "**not markdown**", r.Render(user))

	assistant := Entry{Role: session.RoleAssistant, Content: "Top issue: **seams**"}
	out := r.Render(assistant)
	assert.Contains(t, out, "seams")

	var nilRenderer *Renderer
	assert.Equal(t, "raw", nilRenderer.Render(Entry{Role: session.RoleAssistant, Content: "raw"}))
}

func TestTruncatePassage(t *testing.T) {
	assert.Equal(t, "short", TruncatePassage("short", 10))
	assert.Equal(t, "a b c", TruncatePassage("a\n  b\tc", 10))
	assert.Equal(t, "hello…", TruncatePassage("hello world", 6))
	assert.Equal(t, "日本…", TruncatePassage("日本語のレビュー", 3))
	assert.Equal(t, strings.Repeat("x", 20), TruncatePassage(strings.Repeat("x", 20), 0))
}
