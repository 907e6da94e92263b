package research

import (
	"maps"

	"github.com/randalmurphal/researchflow/pkg/document"
	"github.com/randalmurphal/researchflow/pkg/invoke"
)

// Metadata keys written by the stages and the workflow.
const (
	KeyResearchStatus = "research_status"
	KeyDocumentsFound = "documents_found"
	KeyChunks         = "chunks"
	KeyDraftStatus    = "draft_status"
	KeyDraftProvider  = "draft_provider"
	KeyDraftAttempts  = "draft_attempts"
	KeyRefineStatus   = "refine_status"
	KeyRefineProvider = "refine_provider"
	KeyStageTimings   = "stage_timings_ms"
	KeyRunID          = "run_id"
)

// Source is a citable search result, numbered from 1.
type Source struct {
	Number  int    `json:"number"`
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// State is threaded by value through the research, draft, and refine stages.
// Each stage returns a copy with its own fields set.
type State struct {
	Query         string              `json:"query"`
	ResearchData  []document.Document `json:"research_data"`
	DraftResponse string              `json:"draft_response"`
	DraftStatus   invoke.Status       `json:"draft_status,omitempty"`
	FinalResponse string              `json:"final_response"`
	Sources       []Source            `json:"sources"`

	// Retrieved holds the unsplit search results when ResearchData is
	// chunked, so sources still count one entry per result.
	Retrieved []document.Document `json:"retrieved,omitempty"`

	// Error records failures and degraded paths. It never stops the run;
	// later stages read it to pick a reduced path.
	Error string `json:"error,omitempty"`

	// Metadata accumulates per-stage status entries. Stages add entries
	// to a copy and never remove any.
	Metadata map[string]any `json:"metadata"`
}

// NewState seeds the state for a query.
func NewState(query string) State {
	return State{
		Query:    query,
		Metadata: map[string]any{},
	}
}

// withMetadata returns s with entries merged over a copy of its metadata.
func (s State) withMetadata(entries map[string]any) State {
	merged := make(map[string]any, len(s.Metadata)+len(entries))
	maps.Copy(merged, s.Metadata)
	maps.Copy(merged, entries)
	s.Metadata = merged
	return s
}

// citable returns the documents sources are numbered from.
func (s State) citable() []document.Document {
	if s.Retrieved != nil {
		return s.Retrieved
	}
	return s.ResearchData
}

// withError appends msg to any error already recorded.
func (s State) withError(msg string) State {
	if s.Error == "" {
		s.Error = msg
	} else {
		s.Error += "; " + msg
	}
	return s
}
