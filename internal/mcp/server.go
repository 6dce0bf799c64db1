package mcp

import (
	"context"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/fastfind/filepick/internal/coordinator"
	"github.com/fastfind/filepick/pkg/version"
)

// defaultMaxResults matches the value documented in SearchInput's schema.
const defaultMaxResults = 50

// Server is the MCP server for filepick. It bridges editor/agent clients
// with the Coordinator's search, access-tracking, and scan-progress
// operations.
type Server struct {
	mcp   *mcp.Server
	coord *coordinator.Coordinator
	log   *slog.Logger
}

// SearchInput is the input schema for the fuzzy_search_files tool.
type SearchInput struct {
	Query       string `json:"query" jsonschema:"the fuzzy query string to match against indexed file paths"`
	MaxResults  int    `json:"max_results,omitempty" jsonschema:"maximum number of results, default 50"`
	MaxThreads  int    `json:"max_threads,omitempty" jsonschema:"worker threads for scoring, default 4"`
	CurrentFile string `json:"current_file,omitempty" jsonschema:"absolute path of the caller's current buffer, penalized in ranking"`
}

// SearchResultOutput is one ranked match in a fuzzy_search_files response.
type SearchResultOutput struct {
	AbsolutePath  string `json:"absolute_path"`
	RelativePath  string `json:"relative_path"`
	Name          string `json:"name"`
	Score         int    `json:"score"`
	GitStatus     string `json:"git_status"`
	IsCurrentFile bool   `json:"is_current_file"`
}

// SearchOutput is the output schema for the fuzzy_search_files tool.
type SearchOutput struct {
	Results      []SearchResultOutput `json:"results"`
	TotalMatched int                  `json:"total_matched"`
	TotalFiles   int                  `json:"total_files"`
}

// TrackAccessInput is the input schema for the track_access tool.
type TrackAccessInput struct {
	AbsolutePath string `json:"absolute_path" jsonschema:"absolute path of the file the caller just opened or focused"`
}

// TrackAccessOutput is the output schema for the track_access tool.
type TrackAccessOutput struct {
	Tracked bool `json:"tracked"`
}

// ScanProgressInput is the (empty) input schema for the get_scan_progress tool.
type ScanProgressInput struct{}

// ScanProgressOutput is the output schema for the get_scan_progress tool.
type ScanProgressOutput struct {
	ScannedFilesCount int    `json:"scanned_files_count"`
	IsScanning        bool   `json:"is_scanning"`
	Error             string `json:"error,omitempty"`
}

// NewServer builds an MCP server backed by coord. logger may be nil.
func NewServer(coord *coordinator.Coordinator, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{coord: coord, log: logger}
	s.mcp = mcp.NewServer(&mcp.Implementation{
		Name:    "filepick",
		Version: version.Version,
	}, nil)
	s.registerTools()
	return s
}

// MCPServer returns the underlying SDK server instance.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "fuzzy_search_files",
		Description: "Rank indexed files against a fuzzy query, blending lexical similarity, frecency, and git status.",
	}, s.handleSearch)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "track_access",
		Description: "Record that the caller opened or focused a file, feeding future searches' frecency ranking.",
	}, s.handleTrackAccess)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "get_scan_progress",
		Description: "Report whether an index scan is in flight and how many files have been indexed so far.",
	}, s.handleScanProgress)
}

func (s *Server) handleSearch(ctx context.Context, _ *mcp.CallToolRequest, input SearchInput) (
	*mcp.CallToolResult,
	SearchOutput,
	error,
) {
	if input.Query == "" {
		return nil, SearchOutput{}, NewInvalidParamsError("query parameter is required")
	}
	// JSON can't distinguish an omitted max_results from an explicit 0, so
	// an absent value gets the documented default here rather than the
	// engine's literal zero-results reading.
	maxResults := input.MaxResults
	if maxResults == 0 {
		maxResults = defaultMaxResults
	}

	res, err := s.coord.FuzzySearchFiles(ctx, input.Query, maxResults, input.MaxThreads, input.CurrentFile)
	if err != nil {
		s.log.Warn("fuzzy_search_files failed", slog.String("error", err.Error()))
		return nil, SearchOutput{}, MapError(err)
	}

	out := SearchOutput{
		Results:      make([]SearchResultOutput, 0, len(res.Items)),
		TotalMatched: res.TotalMatched,
		TotalFiles:   res.TotalFiles,
	}
	for i, item := range res.Items {
		out.Results = append(out.Results, SearchResultOutput{
			AbsolutePath:  item.AbsolutePath,
			RelativePath:  item.RelativePath,
			Name:          item.Name,
			Score:         res.Scores[i].Total,
			GitStatus:     string(item.GitStatus),
			IsCurrentFile: item.IsCurrentFile,
		})
	}
	return nil, out, nil
}

func (s *Server) handleTrackAccess(ctx context.Context, _ *mcp.CallToolRequest, input TrackAccessInput) (
	*mcp.CallToolResult,
	TrackAccessOutput,
	error,
) {
	if input.AbsolutePath == "" {
		return nil, TrackAccessOutput{}, NewInvalidParamsError("absolute_path parameter is required")
	}
	if err := s.coord.TrackAccess(input.AbsolutePath); err != nil {
		return nil, TrackAccessOutput{}, MapError(err)
	}
	return nil, TrackAccessOutput{Tracked: true}, nil
}

func (s *Server) handleScanProgress(ctx context.Context, _ *mcp.CallToolRequest, _ ScanProgressInput) (
	*mcp.CallToolResult,
	ScanProgressOutput,
	error,
) {
	progress, err := s.coord.GetScanProgress()
	if err != nil {
		return nil, ScanProgressOutput{}, MapError(err)
	}
	out := ScanProgressOutput{
		ScannedFilesCount: progress.ScannedFilesCount,
		IsScanning:        progress.IsScanning,
	}
	if progress.Err != nil {
		out.Error = progress.Err.Error()
	}
	return nil, out, nil
}

// Serve runs the server over stdio until ctx is canceled.
func (s *Server) Serve(ctx context.Context) error {
	s.log.Info("starting MCP server", slog.String("transport", "stdio"))
	err := s.mcp.Run(ctx, &mcp.StdioTransport{})
	if err != nil && err != context.Canceled {
		s.log.Error("MCP server stopped with error", slog.String("error", err.Error()))
		return err
	}
	s.log.Info("MCP server stopped gracefully")
	return nil
}
