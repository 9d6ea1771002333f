package chat

import (
	"context"
	"fmt"
	"log/slog"

	"google.golang.org/adk/agent"
	"google.golang.org/adk/tool"
	"google.golang.org/adk/tool/functiontool"

	"github.com/mikeboe/market-research/pkg/archive"
)

// SourceToolset exposes the archived sources of a job to the chat agent.
// An empty JobID gives access to the sources of every job.
type SourceToolset struct {
	Retriever *archive.Retriever
	JobID     string
}

func NewSourceToolset(retriever *archive.Retriever, jobID string) *SourceToolset {
	return &SourceToolset{Retriever: retriever, JobID: jobID}
}

func (t *SourceToolset) Name() string {
	return "source_tools"
}

func (t *SourceToolset) Tools(ctx agent.ReadonlyContext) ([]tool.Tool, error) {
	searchTool, err := functiontool.New[SearchSourcesArgs, SourcesResult](
		functiontool.Config{
			Name:        "search_sources",
			Description: "Semantic search over the web sources collected during the research job.",
		},
		func(ctx tool.Context, args SearchSourcesArgs) (SourcesResult, error) {
			args.JobID = t.JobID
			return SearchSources(ctx, t.Retriever, args)
		},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create search tool: %w", err)
	}

	findTool, err := functiontool.New[FindSourceArgs, SourcesResult](
		functiontool.Config{
			Name:        "find_sources_by_url",
			Description: "Return all archived content of one source URL.",
		},
		func(ctx tool.Context, args FindSourceArgs) (SourcesResult, error) {
			args.JobID = t.JobID
			return FindSourceByURL(ctx, t.Retriever, args)
		},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create find tool: %w", err)
	}

	return []tool.Tool{searchTool, findTool}, nil
}

type SearchSourcesArgs struct {
	Query string `json:"query" jsonschema:"the search query"`
	TopK  int    `json:"top_k,omitempty" jsonschema:"number of passages to return, default 5"`
	JobID string `json:"job_id,omitempty" jsonschema:"restrict the search to the sources of this job"`
}

type FindSourceArgs struct {
	URL   string `json:"url" jsonschema:"the source URL"`
	JobID string `json:"job_id,omitempty" jsonschema:"restrict the lookup to the sources of this job"`
}

type SourcesResult struct {
	Results string `json:"results"`
}

// SearchSources runs a semantic search and formats the passages by source.
func SearchSources(ctx context.Context, r *archive.Retriever, args SearchSourcesArgs) (SourcesResult, error) {
	slog.Info("Search sources", "query", args.Query, "top_k", args.TopK, "job_id", args.JobID)
	passages, err := r.Search(ctx, args.JobID, args.Query, args.TopK)
	if err != nil {
		return SourcesResult{}, fmt.Errorf("failed to search sources: %w", err)
	}
	return SourcesResult{Results: archive.FormatPassages(passages)}, nil
}

// FindSourceByURL returns every archived passage of one source.
func FindSourceByURL(ctx context.Context, r *archive.Retriever, args FindSourceArgs) (SourcesResult, error) {
	passages, err := r.BySource(ctx, args.JobID, args.URL)
	if err != nil {
		return SourcesResult{}, fmt.Errorf("failed to find source: %w", err)
	}
	return SourcesResult{Results: archive.FormatPassages(passages)}, nil
}
