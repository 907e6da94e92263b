package benchmarks

import (
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/randalmurphal/researchflow/pkg/document"
	"github.com/randalmurphal/researchflow/pkg/fallback"
	"github.com/randalmurphal/researchflow/pkg/invoke"
	"github.com/randalmurphal/researchflow/pkg/llm"
	"github.com/randalmurphal/researchflow/pkg/research"
	"github.com/randalmurphal/researchflow/pkg/search"
)

func benchResults(n int) []search.Result {
	content := strings.Repeat("Cats sleep for most of the day and hunt at dawn and dusk. ", 20)
	results := make([]search.Result, n)
	for i := range results {
		results[i] = search.Result{Title: "Doc", URL: "https://example.com", Content: content}
	}
	return results
}

func benchDocs(n int) []document.Document {
	docs := make([]document.Document, 0, n)
	for _, r := range benchResults(n) {
		docs = append(docs, document.New(r.Content, r.URL, r.Title))
	}
	return docs
}

// BenchmarkWorkflowRun measures one full run with an instant provider, so
// the result is framework and prompt-building overhead.
func BenchmarkWorkflowRun(b *testing.B) {
	discard := slog.New(slog.DiscardHandler)
	inv := invoke.New([]invoke.Provider{llm.NewMockClient("Cats sleep a lot [1].")},
		invoke.WithLogger(discard))
	wf, err := research.New(search.NewStatic(benchResults(5)...), inv, research.WithLogger(discard))
	if err != nil {
		b.Fatal(err)
	}
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = wf.Run(ctx, "how much do cats sleep")
	}
}

func BenchmarkFallbackGenerate(b *testing.B) {
	docs := benchDocs(10)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = fallback.Generate("how much do cats sleep", docs)
	}
}

func BenchmarkDraftPrompt(b *testing.B) {
	docs := benchDocs(10)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = research.DraftPrompt("how much do cats sleep", docs, research.DefaultDraftDocs, research.DefaultDocChars)
	}
}

func BenchmarkSplit(b *testing.B) {
	splitter, err := document.NewSplitter(200, 20)
	if err != nil {
		b.Fatal(err)
	}
	docs := benchDocs(5)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = splitter.Split(docs)
	}
}
