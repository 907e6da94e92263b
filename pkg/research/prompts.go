package research

import (
	"fmt"
	"strings"

	"github.com/randalmurphal/researchflow/pkg/document"
)

// Fixed messages.
const (
	// NoDataMessage is the answer when research found nothing to work with.
	NoDataMessage = "I couldn't find any information about your query. Please try rephrasing it."
)

const (
	// DefaultDraftDocs is how many documents are shown to the model.
	DefaultDraftDocs = 5

	// DefaultDocChars is the per-document content budget in the draft prompt.
	DefaultDocChars = 800

	// SnippetLength bounds Source.Snippet.
	SnippetLength = 200
)

// DraftPrompt asks for a citation-free narrative answer built from the
// first maxDocs documents, each cut to docChars bytes.
func DraftPrompt(query string, docs []document.Document, maxDocs, docChars int) string {
	if maxDocs > 0 && len(docs) > maxDocs {
		docs = docs[:maxDocs]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You are a research assistant. Using only the research data below, answer the question: %q\n\n", query)
	b.WriteString("Requirements:\n")
	b.WriteString("- Write a clear, well-structured narrative of 150-250 words.\n")
	b.WriteString("- Open with a direct one-sentence answer, then give supporting detail.\n")
	b.WriteString("- Do not include URLs, citation markers, or a list of sources. Sources are shown separately.\n")
	b.WriteString("- If the data does not answer the question, say so plainly.\n\n")
	b.WriteString("Research data:\n")
	for i, doc := range docs {
		fmt.Fprintf(&b, "\n[%d] %s\n%s\n", i+1, doc.Metadata.Title, document.Truncate(doc.Content, docChars))
	}
	return b.String()
}

// RefinePrompt asks for a clearer, tighter version of draft.
func RefinePrompt(draft string) string {
	var b strings.Builder
	b.WriteString("Improve the following draft answer for clarity and structure.\n\n")
	b.WriteString("Requirements:\n")
	b.WriteString("- Keep every factual claim; do not add new facts.\n")
	b.WriteString("- Keep it under 250 words.\n")
	b.WriteString("- Use short paragraphs.\n")
	b.WriteString("- Do not add a sources, references, or citations section.\n")
	b.WriteString("- Return only the improved answer.\n\n")
	b.WriteString("Draft:\n")
	b.WriteString(draft)
	return b.String()
}

// BuildSources numbers every document as a citation.
func BuildSources(docs []document.Document) []Source {
	sources := make([]Source, len(docs))
	for i, doc := range docs {
		sources[i] = Source{
			Number:  i + 1,
			Title:   doc.Metadata.Title,
			URL:     doc.Metadata.URL,
			Snippet: document.Truncate(doc.Content, SnippetLength),
		}
	}
	return sources
}
