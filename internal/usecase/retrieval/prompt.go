package retrieval

import (
	"strings"

	"github.com/kailas-cloud/pdfrag/internal/domain"
)

// contextSeparator joins retrieved chunks into the context block.
const contextSeparator = "\n\n"

// BuildPrompt asks the model to answer strictly from the retrieved chunks and to reply with
// domain.AnswerFallback when they do not contain the answer.
func BuildPrompt(query string, chunks []string) string {
	var b strings.Builder
	b.WriteString("You are a helpful assistant. Answer strictly using the context.\n\n")
	b.WriteString("Context:\n")
	b.WriteString(strings.Join(chunks, contextSeparator))
	b.WriteString("\n\nQuestion:\n")
	b.WriteString(query)
	b.WriteString("\n\nIf the answer is not present in the context, reply:\n\"")
	b.WriteString(domain.AnswerFallback)
	b.WriteString("\"\n")
	return b.String()
}
