package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/researchflow/pkg/invoke"
	"github.com/randalmurphal/researchflow/pkg/llm"
	"github.com/randalmurphal/researchflow/pkg/research"
	"github.com/randalmurphal/researchflow/pkg/search"
)

type fakeResearcher struct {
	mu       sync.Mutex
	queries  []string
	result   research.Result
	deadline bool
}

func (f *fakeResearcher) Run(ctx context.Context, query string) research.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, query)
	_, f.deadline = ctx.Deadline()
	return f.result
}

func okResult() research.Result {
	return research.Result{
		Response:   "Vaccines are progressing.",
		Sources:    []research.Source{{Number: 1, Title: "News", URL: "https://news.example", Snippet: "..."}},
		Metadata:   map[string]any{research.KeyRunID: "run-1"},
		NumSources: 1,
		Success:    true,
	}
}

func failedResult(msg string) research.Result {
	return research.Result{
		Response: invoke.BusyMessage,
		Sources:  []research.Source{},
		Metadata: map[string]any{},
		Error:    &msg,
	}
}

func newTestServer(t *testing.T, r Researcher, opts ...Option) *httptest.Server {
	t.Helper()
	opts = append([]Option{WithLogger(slog.New(slog.DiscardHandler))}, opts...)
	srv := httptest.NewServer(New(r, opts...).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestResearchAPI(t *testing.T) {
	fake := &fakeResearcher{result: okResult()}
	srv := newTestServer(t, fake)

	resp := postJSON(t, srv.URL+"/api/research", `{"query":"  covid vaccines "}`)

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var got research.Result
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.True(t, got.Success)
	assert.Equal(t, "Vaccines are progressing.", got.Response)
	assert.Equal(t, 1, got.NumSources)
	assert.Nil(t, got.Error)
	assert.Equal(t, []string{"covid vaccines"}, fake.queries)
	assert.True(t, fake.deadline)
}

func TestResearchAPI_FailedRunIsStillOK(t *testing.T) {
	srv := newTestServer(t, &fakeResearcher{result: failedResult("draft generation degraded (busy)")})

	resp := postJSON(t, srv.URL+"/api/research", `{"query":"q"}`)

	require.Equal(t, http.StatusOK, resp.StatusCode)
	var got map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, false, got["success"])
	assert.Equal(t, "draft generation degraded (busy)", got["error"])
}

func TestResearchAPI_BadRequests(t *testing.T) {
	fake := &fakeResearcher{result: okResult()}
	srv := newTestServer(t, fake)

	for name, body := range map[string]string{
		"invalid json": `{`,
		"empty query":  `{"query":"   "}`,
		"missing":      `{}`,
	} {
		t.Run(name, func(t *testing.T) {
			resp := postJSON(t, srv.URL+"/api/research", body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}
	assert.Empty(t, fake.queries)
}

func TestResearchAPI_MethodNotAllowed(t *testing.T) {
	srv := newTestServer(t, &fakeResearcher{})

	resp, err := http.Get(srv.URL + "/api/research")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, &fakeResearcher{})

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, string(body))
}

func TestIndexPage(t *testing.T) {
	srv := newTestServer(t, &fakeResearcher{}, WithDefaultQuery("What about cats?"))

	resp, err := http.Get(srv.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")
	assert.Contains(t, string(body), "Research Workflow Query")
	assert.Contains(t, string(body), `value="What about cats?"`)
}

func TestFormSubmit(t *testing.T) {
	fake := &fakeResearcher{result: okResult()}
	srv := newTestServer(t, fake)

	resp, err := http.PostForm(srv.URL+"/", url.Values{"query": {"vaccines"}})
	require.NoError(t, err)
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "Vaccines are progressing.")
	assert.Contains(t, string(body), `href="https://news.example"`)
	assert.NotContains(t, string(body), "usage quota")
}

func TestFormSubmit_QuotaHint(t *testing.T) {
	srv := newTestServer(t, &fakeResearcher{result: failedResult("azure-openai: HTTP 429 insufficient_quota: Quota exceeded")})

	resp, err := http.PostForm(srv.URL+"/", url.Values{"query": {"vaccines"}})
	require.NoError(t, err)
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), "usage quota")
	assert.Contains(t, string(body), "Error: azure-openai")
}

func TestFormSubmit_EmptyQuery(t *testing.T) {
	fake := &fakeResearcher{}
	srv := newTestServer(t, fake)

	resp, err := http.PostForm(srv.URL+"/", url.Values{"query": {""}})
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Empty(t, fake.queries)
}

func TestFormSubmit_EscapesHTML(t *testing.T) {
	result := okResult()
	result.Response = "<script>alert(1)</script>"
	srv := newTestServer(t, &fakeResearcher{result: result})

	resp, err := http.PostForm(srv.URL+"/", url.Values{"query": {"x"}})
	require.NoError(t, err)
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	assert.NotContains(t, string(body), "<script>alert(1)</script>")
	assert.Contains(t, string(body), "&lt;script&gt;")
}

func TestMetrics(t *testing.T) {
	srv := newTestServer(t, &fakeResearcher{result: okResult()})

	postJSON(t, srv.URL+"/api/research", `{"query":"q"}`)

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	text := string(body)
	assert.Contains(t, text, `researchflow_http_requests_total{method="POST",route="/api/research",status="200"} 1`)
	assert.Contains(t, text, `researchflow_research_runs_total{success="true"} 1`)
	assert.Contains(t, text, "researchflow_http_request_duration_seconds")
}

func TestRequestTimeoutDisabled(t *testing.T) {
	fake := &fakeResearcher{result: okResult()}
	srv := newTestServer(t, fake, WithRequestTimeout(0))

	postJSON(t, srv.URL+"/api/research", `{"query":"q"}`)

	assert.False(t, fake.deadline)
}

func TestWithWorkflow(t *testing.T) {
	inv := invoke.New(
		[]invoke.Provider{llm.NewMockClient("answer from the model")},
		invoke.WithLogger(slog.New(slog.DiscardHandler)),
		invoke.WithMinInterval(time.Millisecond),
	)
	wf, err := research.New(
		search.NewStatic(search.Result{Title: "T", URL: "https://t.example", Content: "content"}),
		inv,
		research.WithLogger(slog.New(slog.DiscardHandler)),
	)
	require.NoError(t, err)
	srv := newTestServer(t, wf)

	resp := postJSON(t, srv.URL+"/api/research", `{"query":"anything"}`)

	var got research.Result
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.True(t, got.Success)
	assert.Equal(t, "answer from the model", got.Response)
	assert.Equal(t, "https://t.example", got.Sources[0].URL)
	assert.NotEmpty(t, got.RunID())
}
