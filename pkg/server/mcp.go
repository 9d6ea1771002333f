package server

import (
	"context"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/mikeboe/market-research/pkg/archive"
	"github.com/mikeboe/market-research/pkg/chat"
)

// NewMCPServer exposes the archived sources as MCP tools.
func NewMCPServer(retriever *archive.Retriever) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{Name: "market-research-mcp", Version: "1.0.0"}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "search_sources",
		Description: "Search the web sources collected by research jobs using semantic search.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, args chat.SearchSourcesArgs) (*mcp.CallToolResult, chat.SourcesResult, error) {
		res, err := chat.SearchSources(ctx, retriever, args)
		if err != nil {
			return nil, chat.SourcesResult{}, err
		}
		return textResult(res.Results), res, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "find_sources_by_url",
		Description: "Return all archived content of one source URL.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, args chat.FindSourceArgs) (*mcp.CallToolResult, chat.SourcesResult, error) {
		res, err := chat.FindSourceByURL(ctx, retriever, args)
		if err != nil {
			return nil, chat.SourcesResult{}, err
		}
		return textResult(res.Results), res, nil
	})

	return server
}

// NewMCPHandler serves server over the streamable HTTP transport.
func NewMCPHandler(server *mcp.Server) http.Handler {
	return mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server { return server }, nil)
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: text}}}
}
