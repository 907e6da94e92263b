// Package document defines the text documents a research run works with,
// plus an optional splitter for chunking long documents.
package document

import "unicode/utf8"

// Defaults applied when a search record lacks a field.
const (
	DefaultURL   = "URL not available"
	DefaultTitle = "Untitled"
)

// Metadata describes where a document came from.
type Metadata struct {
	URL   string `json:"url"`
	Title string `json:"title"`
}

// Document is a piece of retrieved text. Documents are immutable once
// produced by the research stage.
type Document struct {
	Content  string   `json:"content"`
	Metadata Metadata `json:"metadata"`
}

// New creates a document, filling in DefaultURL and DefaultTitle for
// blank fields.
func New(content, url, title string) Document {
	if url == "" {
		url = DefaultURL
	}
	if title == "" {
		title = DefaultTitle
	}
	return Document{
		Content:  content,
		Metadata: Metadata{URL: url, Title: title},
	}
}

// Truncate returns the longest prefix of s that is at most n bytes and
// does not split a UTF-8 sequence.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
