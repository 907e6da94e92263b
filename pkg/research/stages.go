package research

import (
	"fmt"
	"strings"

	"github.com/randalmurphal/researchflow/pkg/document"
	"github.com/randalmurphal/researchflow/pkg/invoke"
	"github.com/randalmurphal/researchflow/pkg/pipeline"
	"github.com/randalmurphal/researchflow/pkg/search"
)

// Stage IDs.
const (
	StageResearch = "research"
	StageDraft    = "draft"
	StageRefine   = "refine"
)

// Stage outcome values stored in metadata.
const (
	statusOK          = "ok"
	statusFailed      = "failed"
	statusEmpty       = "empty"
	statusSkipped     = "skipped"
	statusDegraded    = "degraded"
	statusPassthrough = "passthrough"
	statusDraftKept   = "fallback_to_draft"
)

// stages holds the collaborators shared by the stage functions.
// None of the stage functions return an error; failures are recorded
// in State.Error and metadata.
type stages struct {
	searcher   search.Searcher
	splitter   *document.Splitter
	invoker    *invoke.Invoker
	maxResults int
	draftDocs  int
	docChars   int
	markers    []string
}

// research fetches search results and turns them into documents.
func (st *stages) research(ctx pipeline.Context, s State) (State, error) {
	results, err := st.searcher.Search(ctx, s.Query, st.maxResults)
	if err != nil {
		ctx.Logger().Warn("search failed", "error", err)
		s.ResearchData = []document.Document{}
		s = s.withError(fmt.Sprintf("research failed: %v", err))
		return s.withMetadata(map[string]any{
			KeyResearchStatus: statusFailed,
			KeyDocumentsFound: 0,
		}), nil
	}

	if len(results) == 0 {
		ctx.Logger().Info("search returned no results")
		s.ResearchData = []document.Document{}
		s = s.withError("research found no results for the query")
		return s.withMetadata(map[string]any{
			KeyResearchStatus: statusEmpty,
			KeyDocumentsFound: 0,
		}), nil
	}

	docs := make([]document.Document, len(results))
	for i, r := range results {
		docs[i] = document.New(r.Content, r.URL, r.Title)
	}
	entries := map[string]any{
		KeyResearchStatus: statusOK,
		KeyDocumentsFound: len(docs),
	}
	if st.splitter != nil {
		s.Retrieved = docs
		docs = st.splitter.Split(docs)
		entries[KeyChunks] = len(docs)
	}

	if len(docs) == 0 {
		ctx.Logger().Info("search results had no usable content", "results", len(results))
		s.ResearchData = []document.Document{}
		s.Retrieved = nil
		s = s.withError("research found no usable content for the query")
		entries[KeyResearchStatus] = statusEmpty
		entries[KeyDocumentsFound] = 0
		return s.withMetadata(entries), nil
	}

	ctx.Logger().Info("research complete", "results", len(results), "documents", len(docs))
	s.ResearchData = docs
	return s.withMetadata(entries), nil
}

// draft asks the invoker for a narrative answer. With no research data
// it answers with NoDataMessage without calling any provider.
func (st *stages) draft(ctx pipeline.Context, s State) (State, error) {
	if len(s.ResearchData) == 0 || s.Error != "" {
		if s.Error == "" {
			s = s.withError("no research data to draft from")
		}
		s.DraftResponse = NoDataMessage
		s.DraftStatus = invoke.StatusSkipped
		s.Sources = []Source{}
		return s.withMetadata(map[string]any{
			KeyDraftStatus: statusSkipped,
		}), nil
	}

	prompt := DraftPrompt(s.Query, s.ResearchData, st.draftDocs, st.docChars)
	resp := st.invoker.Generate(ctx, prompt, invoke.WithFallback(s.Query, s.ResearchData))

	s.DraftResponse = resp.Text
	s.DraftStatus = resp.Status
	s.Sources = BuildSources(s.citable())

	entries := map[string]any{
		KeyDraftStatus:   statusOK,
		KeyDraftProvider: resp.Provider,
		KeyDraftAttempts: resp.Attempts,
	}

	switch {
	case resp.Status != invoke.StatusOK:
		entries[KeyDraftStatus] = statusDegraded
		msg := fmt.Sprintf("draft generation degraded (%s)", resp.Status)
		if resp.Err != nil {
			msg = fmt.Sprintf("%s: %v", msg, resp.Err)
		}
		s = s.withError(msg)
		ctx.Logger().Warn("draft degraded", "status", string(resp.Status), "attempts", resp.Attempts)
	case st.hasMarker(resp.Text):
		entries[KeyDraftStatus] = statusDegraded
		s = s.withError("draft contains a degraded-response marker")
		ctx.Logger().Warn("draft contains degraded marker", "provider", resp.Provider)
	}

	return s.withMetadata(entries), nil
}

// refine polishes the draft. Degraded drafts pass through untouched, and
// a failed refinement keeps the draft.
func (st *stages) refine(ctx pipeline.Context, s State) (State, error) {
	if s.DraftStatus != invoke.StatusOK || st.hasMarker(s.DraftResponse) {
		s.FinalResponse = s.DraftResponse
		return s.withMetadata(map[string]any{
			KeyRefineStatus: statusPassthrough,
		}), nil
	}

	resp := st.invoker.Generate(ctx, RefinePrompt(s.DraftResponse))
	if resp.Status != invoke.StatusOK {
		ctx.Logger().Warn("refine failed, keeping draft", "status", string(resp.Status), "error", resp.Err)
		s.FinalResponse = s.DraftResponse
		return s.withMetadata(map[string]any{
			KeyRefineStatus: statusDraftKept,
		}), nil
	}

	s.FinalResponse = resp.Text
	return s.withMetadata(map[string]any{
		KeyRefineStatus:   statusOK,
		KeyRefineProvider: resp.Provider,
	}), nil
}

func (st *stages) hasMarker(text string) bool {
	for _, m := range st.markers {
		if m != "" && strings.Contains(text, m) {
			return true
		}
	}
	return false
}
