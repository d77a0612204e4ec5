package view

// Suggestion is a canned prompt offered next to the input.
type Suggestion struct {
	Label  string
	Prompt string
}

var suggestions = []Suggestion{
	{Label: "Comfort complaints?", Prompt: "What are the most common complaints about comfort?"},
	{Label: "Sizing issues?", Prompt: "Summarize feedback related to sizing issues."},
	{Label: "Fabric feedback?", Prompt: `Find reviews that mention "material" or "fabric".`},
}

// Suggestions returns the fixed suggestion list.
func Suggestions() []Suggestion {
	out := make([]Suggestion, len(suggestions))
	copy(out, suggestions)
	return out
}

// InputSetter is anything with an input buffer. *conversation.Controller implements it.
type InputSetter interface {
	SetInput(string)
}

// ApplySuggestion pre-fills the input with s's prompt. It does not submit.
func ApplySuggestion(dst InputSetter, s Suggestion) {
	dst.SetInput(s.Prompt)
}
