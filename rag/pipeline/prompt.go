package pipeline

import "strings"

// Prompt template pieces. The instructions pin the model to the supplied
// context and demand an explicit refusal when the context cannot answer the
// question; that refusal path is what keeps out-of-domain queries from
// producing fabricated answers.
const (
	promptInstructions = "Answer the question using only the context below. " +
		"If the context does not contain the information needed to answer, " +
		"reply exactly: I don't know based on the provided context.\n\nContext:\n"

	promptQuestion = "\nQuestion: "
	promptAnswer   = "\nAnswer:"

	contextSeparator = "\n---\n"
)

// DefaultMaxPromptLen bounds assembled prompts when the caller does not
// supply a limit.
const DefaultMaxPromptLen = 8000

// PromptAssembler merges a query and retrieved context texts into a single
// grounded prompt, bounded to a maximum length in runes.
type PromptAssembler struct {
	maxLen int
}

// NewPromptAssembler creates an assembler bounded to maxLen runes; maxLen <= 0
// selects DefaultMaxPromptLen.
func NewPromptAssembler(maxLen int) *PromptAssembler {
	if maxLen <= 0 {
		maxLen = DefaultMaxPromptLen
	}
	return &PromptAssembler{maxLen: maxLen}
}

// Assemble builds the prompt from the query and the context texts, which must
// arrive ordered most-relevant first. When the budget is exceeded, context is
// dropped from the tail (lowest relevance) and the last surviving text is cut
// down if needed; the instructions and the query are never truncated.
func (a *PromptAssembler) Assemble(query string, contexts []string) string {
	var b strings.Builder
	b.WriteString(promptInstructions)

	overhead := runeLen(promptInstructions) + runeLen(promptQuestion) +
		runeLen(query) + runeLen(promptAnswer)

	budget := a.maxLen - overhead
	for i, text := range contexts {
		sep := ""
		if i > 0 {
			sep = contextSeparator
		}

		need := runeLen(sep) + runeLen(text)
		if need > budget {
			remaining := budget - runeLen(sep)
			if remaining > 0 {
				b.WriteString(sep)
				b.WriteString(truncateRunes(text, remaining))
			}
			break
		}

		b.WriteString(sep)
		b.WriteString(text)
		budget -= need
	}

	b.WriteString(promptQuestion)
	b.WriteString(query)
	b.WriteString(promptAnswer)
	return b.String()
}

func runeLen(s string) int {
	return len([]rune(s))
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
