package llm

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// MaxPromptRunes caps how much document text is sent to a provider.
const MaxPromptRunes = 10000

// SystemPrompt frames the model as a study-material author.
const SystemPrompt = "You are an expert educator who creates high-quality study materials. " +
	"Generate insightful questions with comprehensive answers based on document content. " +
	"Respond with JSON only."

// BuildUserPrompt renders the user turn for a generation request.
func BuildUserPrompt(text string, count int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Analyze the following text and generate %d educational questions with detailed answers.\n", count)
	b.WriteString("The questions should test understanding of key concepts from the content.\n")
	b.WriteString("Include detailed explanations in the answers to aid learning.\n\n")
	b.WriteString(`Respond with a JSON object of the form {"questions": [{"question": "...", "answer": "..."}]}.`)
	b.WriteString("\n\nTEXT TO ANALYZE:\n")
	b.WriteString(TruncateRunes(text, MaxPromptRunes))
	return b.String()
}

// TruncateRunes returns at most n runes of s without splitting a code point.
func TruncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
