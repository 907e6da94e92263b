// Package fallback builds an answer from research documents without a
// language model. The output is a pure function of the query and documents.
package fallback

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
	"unicode"

	"github.com/randalmurphal/researchflow/pkg/document"
)

const (
	// MaxSources is the number of leading documents considered.
	MaxSources = 5

	// MaxContentLength is the number of bytes read from each document.
	MaxContentLength = 200

	// TopK is the number of sentences kept in the body.
	TopK = 3

	// minSentenceLength excludes fragments such as headings and list markers.
	minSentenceLength = 20
)

// Fixed texts.
const (
	NoDataMessage = "No relevant information found for your query."

	LowConfidenceMessage = "The research data contains relevant information about your query, " +
		"but automatic extraction is limited in fallback mode."

	modeNote = "*Note: This response was generated using fallback mode due to API limitations. " +
		"For more detailed analysis, please try again later when API quotas are restored.*"
)

var sentenceBoundary = regexp.MustCompile(`[.!?]+`)

// Generate answers query from the first MaxSources documents by picking
// the sentences that share the most words with the query, then lists
// the documents as sources. With no documents it returns NoDataMessage.
func Generate(query string, docs []document.Document) string {
	if len(docs) == 0 {
		return NoDataMessage
	}
	if len(docs) > MaxSources {
		docs = docs[:MaxSources]
	}

	var combined strings.Builder
	sources := make([]string, 0, len(docs))
	for _, doc := range docs {
		sources = append(sources, fmt.Sprintf("- %s: %s", doc.Metadata.Title, doc.Metadata.URL))
		combined.WriteByte(' ')
		combined.WriteString(document.Truncate(doc.Content, MaxContentLength))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Based on the research data collected, here's what I found regarding \"%s\":\n\n", query)
	b.WriteString(RelevantSentences(query, combined.String()))
	b.WriteString("\n\n**Sources:**\n")
	b.WriteString(strings.Join(sources, "\n"))
	b.WriteString("\n\n")
	b.WriteString(modeNote)
	b.WriteString("\n")
	return b.String()
}

type scoredSentence struct {
	text  string
	score int
}

// RelevantSentences returns the TopK sentences of content that share the
// most distinct words with query, joined into a paragraph. Ties keep their
// order in content. With no overlap it returns LowConfidenceMessage.
func RelevantSentences(query, content string) string {
	queryWords := wordSet(query)

	var scored []scoredSentence
	for _, raw := range sentenceBoundary.Split(content, -1) {
		sentence := strings.TrimSpace(raw)
		if len(sentence) <= minSentenceLength {
			continue
		}
		score := 0
		for w := range wordSet(sentence) {
			if _, ok := queryWords[w]; ok {
				score++
			}
		}
		if score > 0 {
			scored = append(scored, scoredSentence{text: sentence, score: score})
		}
	}

	if len(scored) == 0 {
		return LowConfidenceMessage
	}

	slices.SortStableFunc(scored, func(a, b scoredSentence) int {
		return b.score - a.score
	})
	if len(scored) > TopK {
		scored = scored[:TopK]
	}

	top := make([]string, len(scored))
	for i, s := range scored {
		top[i] = s.text
	}
	return strings.Join(top, ". ") + "."
}

// wordSet lower-cases s and returns its distinct words with surrounding
// punctuation removed.
func wordSet(s string) map[string]struct{} {
	words := make(map[string]struct{})
	for _, field := range strings.Fields(strings.ToLower(s)) {
		w := strings.TrimFunc(field, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
		if w != "" {
			words[w] = struct{}{}
		}
	}
	return words
}
