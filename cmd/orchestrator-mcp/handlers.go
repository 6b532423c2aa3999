package main

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/ternarybob/orchestrator/internal/preference"
	"github.com/ternarybob/orchestrator/internal/registry"
)

// handleListNodes implements the list_nodes tool.
func handleListNodes(reg *registry.Registry) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		nodes := reg.Snapshot()
		return &mcp.CallToolResult{
			Content: []mcp.Content{
				mcp.NewTextContent(formatNodeList(nodes)),
			},
		}, nil
	}
}

// handleGetHealth implements the get_health tool.
func handleGetHealth(reg *registry.Registry) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		nodes := reg.Snapshot()
		healthy := 0
		for _, n := range nodes {
			if n.Runtime.Healthy {
				healthy++
			}
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{
				mcp.NewTextContent(formatHealth(healthy, len(nodes))),
			},
		}, nil
	}
}

// handleRecommendModel implements the recommend_model tool.
func handleRecommendModel(prefs *preference.Engine) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		prompt, err := request.RequireString("prompt")
		if err != nil || prompt == "" {
			return &mcp.CallToolResult{
				Content: []mcp.Content{
					mcp.NewTextContent("Error: prompt parameter is required"),
				},
			}, nil
		}

		rec := prefs.RecommendModel(prompt, modelFamilyCandidates)
		return &mcp.CallToolResult{
			Content: []mcp.Content{
				mcp.NewTextContent(formatRecommendation(rec)),
			},
		}, nil
	}
}
