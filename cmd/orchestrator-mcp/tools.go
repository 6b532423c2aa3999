package main

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// createListNodesTool returns the list_nodes tool definition.
func createListNodesTool() mcp.Tool {
	return mcp.NewTool("list_nodes",
		mcp.WithDescription("List every GPU worker node in the fleet, with its tier, capabilities, and current runtime state"),
	)
}

// createGetHealthTool returns the get_health tool definition.
func createGetHealthTool() mcp.Tool {
	return mcp.NewTool("get_health",
		mcp.WithDescription("Summarize fleet health: how many nodes are healthy out of the total"),
	)
}

// createRecommendModelTool returns the recommend_model tool definition.
func createRecommendModelTool() mcp.Tool {
	return mcp.NewTool("recommend_model",
		mcp.WithDescription("Recommend a model family for a prompt, based on recorded selection history"),
		mcp.WithString("prompt",
			mcp.Required(),
			mcp.Description("The generation prompt to score candidate models against"),
		),
	)
}
