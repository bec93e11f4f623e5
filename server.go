package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/Axemt/que/index"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

type docRetriever interface {
	Sync(ctx context.Context) (index.Report, error)
	Query(ctx context.Context, text string, k int, scope string) ([]index.Result, error)
}

func NewRagServer(retriever docRetriever, tmpl *index.ContextTemplate, log *slog.Logger) *server.MCPServer {
	searchTool := mcp.NewTool("search_documents",
		mcp.WithDescription("This tool allows searching user documents and get results for RAG"),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Search query"),
		),
		mcp.WithNumber("k",
			mcp.Description("Number of document chunks to return"),
		),
		mcp.WithString("scope",
			mcp.Description("Only search documents below this directory"),
		),
	)

	contextTool := mcp.NewTool("document_context",
		mcp.WithDescription("Returns retrieved document snippets formatted as prompt context"),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Search query"),
		),
		mcp.WithString("scope",
			mcp.Description("Only search documents below this directory"),
		),
	)

	srv := server.NewMCPServer("que", "0.1.0", server.WithToolCapabilities(false))
	srv.AddTool(searchTool, searchHandler(retriever, log))
	srv.AddTool(contextTool, contextHandler(retriever, tmpl, log))

	return srv
}

func retrieve(ctx context.Context, retriever docRetriever, log *slog.Logger, request mcp.CallToolRequest) ([]index.Result, error) {
	q, err := request.RequireString("query")
	if err != nil {
		return nil, err
	}

	_, err = retriever.Sync(ctx)
	if err != nil {
		log.Error("failed to sync before query", "error", err)
		return nil, err
	}

	return retriever.Query(ctx, q, request.GetInt("k", 0), request.GetString("scope", ""))
}

func searchHandler(retriever docRetriever, log *slog.Logger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		res, err := retrieve(ctx, retriever, log, request)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		var response string
		for _, r := range res {
			raw, err := json.Marshal(struct {
				Score float32 `json:"score"`
				File  string  `json:"file"`
				Text  string  `json:"text"`
			}{
				Score: r.Score,
				File:  r.Source,
				Text:  r.Text,
			})
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}

			response += fmt.Sprintf("%s\n", string(raw))
		}

		return mcp.NewToolResultText(response), nil
	}
}

func contextHandler(retriever docRetriever, tmpl *index.ContextTemplate, log *slog.Logger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		res, err := retrieve(ctx, retriever, log, request)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		return mcp.NewToolResultText(tmpl.Format(res)), nil
	}
}
