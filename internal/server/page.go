package server

import (
	"html/template"
	"net/http"
	"strings"

	"github.com/randalmurphal/researchflow/pkg/research"
)

var pageTemplate = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Research Workflow Query</title>
<style>
body { font-family: sans-serif; max-width: 48rem; margin: 2rem auto; padding: 0 1rem; }
input[type=text] { width: 100%; padding: .5rem; }
button { margin-top: .5rem; padding: .5rem 1rem; }
.error { color: #a00; }
.hint { background: #fff4d6; padding: .5rem; }
.response { white-space: pre-wrap; }
</style>
</head>
<body>
<h1>Research Workflow Query</h1>
<form method="post" action="/">
<label for="query">Enter your query:</label>
<input type="text" id="query" name="query" value="{{.Query}}">
<button type="submit">Run Query</button>
</form>
{{with .Result}}
<h2>Final Response:</h2>
<div class="response">{{.Response}}</div>
{{if .Sources}}
<h3>Sources</h3>
<ol>
{{range .Sources}}<li><a href="{{.URL}}">{{.Title}}</a></li>
{{end}}
</ol>
{{end}}
{{with .Error}}<p class="error">Error: {{.}}</p>{{end}}
{{end}}
{{if .QuotaHint}}<p class="hint">The AI providers have reached their usage quota. Results above were produced in a reduced mode; please try again later.</p>{{end}}
{{with .Message}}<p class="error">{{.}}</p>{{end}}
</body>
</html>
`))

type pageData struct {
	Query     string
	Result    *research.Result
	QuotaHint bool
	Message   string
}

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	s.renderPage(w, http.StatusOK, pageData{Query: s.defaultQuery})
}

func (s *Server) handleForm(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := r.ParseForm(); err != nil {
		s.renderPage(w, http.StatusBadRequest, pageData{Message: "Could not read the form."})
		return
	}

	query := strings.TrimSpace(r.PostForm.Get("query"))
	if query == "" {
		s.renderPage(w, http.StatusBadRequest, pageData{Message: "Please enter a query."})
		return
	}

	result := s.run(r.Context(), query)
	s.renderPage(w, http.StatusOK, pageData{
		Query:     query,
		Result:    &result,
		QuotaHint: mentionsQuota(result),
	})
}

// mentionsQuota reports whether a failed result was caused by quota exhaustion.
func mentionsQuota(r research.Result) bool {
	return r.Error != nil && strings.Contains(strings.ToLower(*r.Error), "quota")
}

func (s *Server) renderPage(w http.ResponseWriter, status int, data pageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := pageTemplate.Execute(w, data); err != nil {
		s.logger.Error("render page", "error", err)
	}
}
