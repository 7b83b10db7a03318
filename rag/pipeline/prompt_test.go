package pipeline

import (
	"strings"
	"testing"
)

func TestAssembleLayout(t *testing.T) {
	a := NewPromptAssembler(0)
	prompt := a.Assemble("Is Estrella a dog?", []string{"Estrella is a dog.", "Finnegan is a cat."})

	if !strings.HasPrefix(prompt, promptInstructions) {
		t.Error("prompt does not start with the instructions")
	}
	if !strings.HasSuffix(prompt, promptAnswer) {
		t.Error("prompt does not end with the answer cue")
	}
	if !strings.Contains(prompt, "Estrella is a dog."+contextSeparator+"Finnegan is a cat.") {
		t.Error("context texts not joined in relevance order")
	}
	if !strings.Contains(prompt, promptQuestion+"Is Estrella a dog?") {
		t.Error("query missing from prompt")
	}
}

func TestAssembleMentionsRefusalPhrase(t *testing.T) {
	prompt := NewPromptAssembler(0).Assemble("anything", nil)
	if !strings.Contains(prompt, "I don't know based on the provided context.") {
		t.Error("instructions do not pin the refusal phrase")
	}
}

func TestAssembleNoContexts(t *testing.T) {
	query := "Is Estrella a dog?"
	prompt := NewPromptAssembler(0).Assemble(query, nil)
	want := promptInstructions + promptQuestion + query + promptAnswer
	if prompt != want {
		t.Errorf("prompt without context = %q, want %q", prompt, want)
	}
}

func TestAssembleDropsContextFromTail(t *testing.T) {
	overhead := runeLen(promptInstructions) + runeLen(promptQuestion) +
		runeLen("q") + runeLen(promptAnswer)

	first := strings.Repeat("a", 80)
	second := strings.Repeat("b", 80)
	third := strings.Repeat("c", 80)

	// Budget fits the first context whole and a sliver of the second.
	maxLen := overhead + 80 + runeLen(contextSeparator) + 10
	prompt := NewPromptAssembler(maxLen).Assemble("q", []string{first, second, third})

	if runeLen(prompt) > maxLen {
		t.Errorf("prompt has %d runes, budget is %d", runeLen(prompt), maxLen)
	}
	if !strings.Contains(prompt, first) {
		t.Error("most relevant context was dropped")
	}
	if !strings.Contains(prompt, strings.Repeat("b", 10)) || strings.Contains(prompt, strings.Repeat("b", 11)) {
		t.Error("second context not truncated to the remaining budget")
	}
	if strings.Contains(prompt, "cc") {
		t.Error("least relevant context survived an exhausted budget")
	}
	if !strings.Contains(prompt, promptQuestion+"q") {
		t.Error("query must never be dropped")
	}
	if !strings.HasPrefix(prompt, promptInstructions) {
		t.Error("instructions must never be truncated")
	}
}

func TestAssembleNeverTruncatesQuery(t *testing.T) {
	query := strings.Repeat("q", 50)
	// Too small for any context at all.
	prompt := NewPromptAssembler(10).Assemble(query, []string{strings.Repeat("x", 100)})

	if !strings.Contains(prompt, query) {
		t.Error("query was truncated")
	}
	if strings.Contains(prompt, "xx") {
		t.Error("context included despite exhausted budget")
	}
}
