// Package research answers a query by searching the web, drafting an answer
// from the results, and refining the draft.
//
// The three stages run in a fixed order on the pipeline engine:
//
//	research -> draft -> refine -> END
//
// Every failure along the way is recorded in the result instead of being
// returned, so Workflow.Run always produces a presentable response.
package research

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"time"

	"github.com/google/uuid"

	"github.com/randalmurphal/researchflow/pkg/document"
	"github.com/randalmurphal/researchflow/pkg/invoke"
	"github.com/randalmurphal/researchflow/pkg/pipeline"
	"github.com/randalmurphal/researchflow/pkg/pipeline/snapshot"
	"github.com/randalmurphal/researchflow/pkg/search"
)

// Option configures a Workflow.
type Option func(*Workflow)

// WithMaxResults sets how many search results are requested.
func WithMaxResults(n int) Option {
	return func(w *Workflow) {
		if n > 0 {
			w.stages.maxResults = n
		}
	}
}

// WithSplitter chunks documents after search. Off by default.
func WithSplitter(s *document.Splitter) Option {
	return func(w *Workflow) {
		w.stages.splitter = s
	}
}

// WithDraftLimits bounds the draft prompt to docs documents of chars bytes each.
func WithDraftLimits(docs, chars int) Option {
	return func(w *Workflow) {
		if docs > 0 {
			w.stages.draftDocs = docs
		}
		if chars > 0 {
			w.stages.docChars = chars
		}
	}
}

// WithDegradedMarkers treats a draft containing any of markers as degraded
// even when a provider produced it. Refine passes such drafts through.
func WithDegradedMarkers(markers ...string) Option {
	return func(w *Workflow) {
		w.stages.markers = append([]string(nil), markers...)
	}
}

// WithLogger sets the logger for run and stage events.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Workflow) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// WithSnapshots records the state after every stage in store.
func WithSnapshots(store snapshot.Store) Option {
	return func(w *Workflow) {
		w.store = store
	}
}

// WithMetrics enables OpenTelemetry metrics for runs and stages.
func WithMetrics(enabled bool) Option {
	return func(w *Workflow) {
		w.metrics = enabled
	}
}

// WithTracing enables OpenTelemetry spans for runs and stages.
func WithTracing(enabled bool) Option {
	return func(w *Workflow) {
		w.tracing = enabled
	}
}

// Workflow runs research queries. It is safe for concurrent use; each Run
// gets its own State.
type Workflow struct {
	compiled *pipeline.CompiledGraph[State]
	stages   *stages
	logger   *slog.Logger
	store    snapshot.Store
	metrics  bool
	tracing  bool
}

// New builds and compiles the research pipeline.
//
// Example:
//
//	inv := invoke.New(providers, invoke.WithMinInterval(time.Second))
//	wf, err := research.New(search.NewTavily(key), inv)
//	result := wf.Run(ctx, "What is the latest news on COVID-19 vaccines?")
func New(searcher search.Searcher, inv *invoke.Invoker, opts ...Option) (*Workflow, error) {
	if searcher == nil {
		return nil, errors.New("research: searcher is required")
	}
	if inv == nil {
		return nil, errors.New("research: invoker is required")
	}

	w := &Workflow{
		stages: &stages{
			searcher:   searcher,
			invoker:    inv,
			maxResults: search.DefaultMaxResults,
			draftDocs:  DefaultDraftDocs,
			docChars:   DefaultDocChars,
		},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}

	compiled, err := pipeline.NewGraph[State]().
		AddStage(StageResearch, w.stages.research).
		AddStage(StageDraft, w.stages.draft).
		AddStage(StageRefine, w.stages.refine).
		Chain(StageResearch, StageDraft, StageRefine).
		SetEntry(StageResearch).
		Compile()
	if err != nil {
		return nil, fmt.Errorf("research: compile pipeline: %w", err)
	}
	w.compiled = compiled
	return w, nil
}

// Graph returns the compiled stage graph.
func (w *Workflow) Graph() *pipeline.CompiledGraph[State] {
	return w.compiled
}

// Run answers query. It never fails: errors are reported through
// Result.Error and Result.Success.
func (w *Workflow) Run(ctx context.Context, query string) Result {
	runID := uuid.NewString()
	timings := make(map[string]int64, 3)

	pctx := pipeline.NewContext(ctx,
		pipeline.WithLogger(w.logger),
		pipeline.WithContextRunID(runID),
	)
	opts := []pipeline.RunOption{
		pipeline.WithRunID(runID),
		pipeline.WithObservabilityLogger(w.logger),
		pipeline.WithMetrics(w.metrics),
		pipeline.WithTracing(w.tracing),
		pipeline.WithStageObserver(func(id string, d time.Duration, _ error) {
			timings[id] = d.Milliseconds()
		}),
	}
	if w.store != nil {
		opts = append(opts, pipeline.WithSnapshots(w.store))
	}

	final, err := w.compiled.Run(pctx, NewState(query), opts...)
	if err != nil {
		final = final.withError(fmt.Sprintf("pipeline: %v", err))
	}
	if final.FinalResponse == "" {
		final.FinalResponse = final.DraftResponse
	}
	if final.FinalResponse == "" {
		final.FinalResponse = invoke.BusyMessage
	}

	return newResult(final, runID, timings)
}

// Result is what callers receive from Run.
type Result struct {
	Response   string         `json:"response"`
	Sources    []Source       `json:"sources"`
	Metadata   map[string]any `json:"metadata"`
	Error      *string        `json:"error"`
	NumSources int            `json:"num_sources"`
	Success    bool           `json:"success"`
}

// RunID returns the identifier of the run that produced r.
func (r Result) RunID() string {
	id, _ := r.Metadata[KeyRunID].(string)
	return id
}

func newResult(s State, runID string, timings map[string]int64) Result {
	sources := s.Sources
	if sources == nil {
		sources = []Source{}
	}

	meta := make(map[string]any, len(s.Metadata)+2)
	maps.Copy(meta, s.Metadata)
	meta[KeyStageTimings] = timings
	meta[KeyRunID] = runID

	var errText *string
	if s.Error != "" {
		e := s.Error
		errText = &e
	}

	return Result{
		Response:   s.FinalResponse,
		Sources:    sources,
		Metadata:   meta,
		Error:      errText,
		NumSources: len(sources),
		Success:    errText == nil,
	}
}
