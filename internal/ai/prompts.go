package ai

import (
	"fmt"
	"strings"

	"docchat/internal/domain"
)

const analysisSystemPrompt = "You are a highly accurate document analysis engine."

const transcribePrompt = `You are analyzing a page from a financial or business PDF document.

STRICT RULES:
- Extract ALL visible information exactly as shown
- Preserve ALL numbers, percentages, and currency values EXACTLY
- Convert tables into clean markdown tables
- Describe charts and graphs with axis values, legends, and trends
- Do NOT infer, assume, or hallucinate missing information
- Output ONLY structured markdown (no explanations)`

const summaryPromptFormat = `Summarize the following page in 3-5 concise bullet points.

RULES:
- Focus on key facts, numbers, and decisions
- Do NOT introduce new information
- Do NOT change numeric values
- Keep it short and high-signal

PAGE CONTENT:
%s`

const answerSystemPrompt = `You are a professional assistant answering questions strictly based on the provided context.

RULES:
- Use ONLY the given context
- Do NOT add external knowledge
- If the answer is not present, politely say you don't know instead of making something up
- Cite the document name and page numbers when relevant
- Display numbers in tabular format when it helps readability
- Keep the answer concise; provide detail only when the user asks for depth`

// FormatContext renders retrieved matches as the context block fed to the
// answer model. Each entry is tagged with its provenance so the model can
// cite document and page.
func FormatContext(matches []domain.Match) string {
	entries := make([]string, 0, len(matches))
	for _, m := range matches {
		entries = append(entries, fmt.Sprintf("[Document: %s | Page: %d | Type: %s]\n%s",
			m.Record.Doc, m.Record.Page, m.Record.ContentType, m.Record.Content))
	}
	return strings.Join(entries, "\n\n")
}

func answerUserContent(question string, matches []domain.Match) string {
	return fmt.Sprintf("CONTEXT:\n%s\n\nQUESTION:\n%s", FormatContext(matches), question)
}
