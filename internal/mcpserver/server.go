// Package mcpserver exposes the research workflow as Model Context
// Protocol tools.
package mcpserver

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/randalmurphal/researchflow/internal/server"
	"github.com/randalmurphal/researchflow/pkg/research"
)

// ErrEmptyQuery is returned by the research tool for a blank query.
var ErrEmptyQuery = errors.New("query is required")

// Server wraps the MCP SDK server.
type Server struct {
	MCPServer *sdkmcp.Server

	researcher server.Researcher
	log        *slog.Logger
}

// NewServer creates an MCP server with the research tools registered.
func NewServer(r server.Researcher, version string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		MCPServer: sdkmcp.NewServer(
			&sdkmcp.Implementation{Name: "researchflow", Version: version},
			nil,
		),
		researcher: r,
		log:        logger.With("component", "mcp"),
	}
	s.registerTools()
	return s
}

// Run serves over stdio until ctx is cancelled or the client disconnects.
func (s *Server) Run(ctx context.Context) error {
	s.log.Info("starting MCP server over stdio")
	return s.MCPServer.Run(ctx, &sdkmcp.StdioTransport{})
}

func (s *Server) registerTools() {
	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "research",
		Description: "Search the web for a query, draft an answer from the results, and refine it. Returns the answer with numbered sources.",
	}, s.handleResearch)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "list_stages",
		Description: "List the stages a research run goes through, in order.",
	}, s.handleListStages)
}

type researchInput struct {
	Query string `json:"query" jsonschema:"the question to research"`
}

type researchOutput struct {
	Response   string            `json:"response"`
	Sources    []research.Source `json:"sources"`
	NumSources int               `json:"num_sources"`
	Success    bool              `json:"success"`
	Error      string            `json:"error,omitempty"`
	RunID      string            `json:"run_id"`
}

type listStagesInput struct{}

type listStagesOutput struct {
	Stages []string `json:"stages"`
}

func (s *Server) handleResearch(ctx context.Context, _ *sdkmcp.CallToolRequest, input researchInput) (*sdkmcp.CallToolResult, researchOutput, error) {
	query := strings.TrimSpace(input.Query)
	if query == "" {
		return nil, researchOutput{}, ErrEmptyQuery
	}

	result := s.researcher.Run(ctx, query)
	out := researchOutput{
		Response:   result.Response,
		Sources:    result.Sources,
		NumSources: result.NumSources,
		Success:    result.Success,
		RunID:      result.RunID(),
	}
	if result.Error != nil {
		out.Error = *result.Error
	}
	s.log.Info("research tool call", "run_id", out.RunID, "success", out.Success)
	return nil, out, nil
}

func (s *Server) handleListStages(_ context.Context, _ *sdkmcp.CallToolRequest, _ listStagesInput) (*sdkmcp.CallToolResult, listStagesOutput, error) {
	return nil, listStagesOutput{
		Stages: []string{research.StageResearch, research.StageDraft, research.StageRefine},
	}, nil
}
