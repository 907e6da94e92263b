package document

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// ErrInvalidChunking indicates a splitter was configured with a size or
// overlap that cannot produce chunks.
var ErrInvalidChunking = errors.New("invalid chunk configuration")

// defaultSeparators are tried in order, coarsest first. The empty
// separator splits into single runes.
var defaultSeparators = []string{"\n\n", "\n", " ", ""}

// Splitter breaks documents into chunks of at most ChunkSize runes,
// preferring paragraph, then line, then word boundaries. Consecutive chunks
// share up to ChunkOverlap runes.
type Splitter struct {
	ChunkSize    int
	ChunkOverlap int
	separators   []string
}

// NewSplitter validates size and overlap.
func NewSplitter(size, overlap int) (*Splitter, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: chunk size %d must be positive", ErrInvalidChunking, size)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("%w: overlap %d must be in [0, %d)", ErrInvalidChunking, overlap, size)
	}
	return &Splitter{
		ChunkSize:    size,
		ChunkOverlap: overlap,
		separators:   defaultSeparators,
	}, nil
}

// Split chunks every document. Each chunk keeps its source's metadata.
func (s *Splitter) Split(docs []Document) []Document {
	var out []Document
	for _, doc := range docs {
		for _, chunk := range s.SplitText(doc.Content) {
			out = append(out, Document{Content: chunk, Metadata: doc.Metadata})
		}
	}
	return out
}

// SplitText chunks a single string.
func (s *Splitter) SplitText(text string) []string {
	return s.split(text, s.separators)
}

func (s *Splitter) split(text string, separators []string) []string {
	sep := separators[len(separators)-1]
	var rest []string
	for i, candidate := range separators {
		if candidate == "" || strings.Contains(text, candidate) {
			sep = candidate
			rest = separators[i+1:]
			break
		}
	}

	var chunks, small []string
	for _, piece := range strings.Split(text, sep) {
		if piece == "" {
			continue
		}
		if runeLen(piece) < s.ChunkSize {
			small = append(small, piece)
			continue
		}
		if len(small) > 0 {
			chunks = append(chunks, s.merge(small, sep)...)
			small = nil
		}
		if len(rest) == 0 {
			chunks = append(chunks, piece)
		} else {
			chunks = append(chunks, s.split(piece, rest)...)
		}
	}
	if len(small) > 0 {
		chunks = append(chunks, s.merge(small, sep)...)
	}
	return chunks
}

// merge joins pieces back together into chunks no longer than ChunkSize,
// carrying up to ChunkOverlap runes from the end of one chunk into the next.
func (s *Splitter) merge(pieces []string, sep string) []string {
	sepLen := runeLen(sep)
	var chunks, window []string
	total := 0

	for _, piece := range pieces {
		n := runeLen(piece)
		joinCost := 0
		if len(window) > 0 {
			joinCost = sepLen
		}

		if total+n+joinCost > s.ChunkSize && len(window) > 0 {
			if chunk := strings.TrimSpace(strings.Join(window, sep)); chunk != "" {
				chunks = append(chunks, chunk)
			}
			for total > s.ChunkOverlap || (total > 0 && total+n+sepLen > s.ChunkSize) {
				drop := runeLen(window[0])
				if len(window) > 1 {
					drop += sepLen
				}
				total -= drop
				window = window[1:]
			}
		}

		window = append(window, piece)
		total += n
		if len(window) > 1 {
			total += sepLen
		}
	}

	if chunk := strings.TrimSpace(strings.Join(window, sep)); chunk != "" {
		chunks = append(chunks, chunk)
	}
	return chunks
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
