package main

import (
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/server"
	"github.com/ternarybob/arbor"
	arbormodels "github.com/ternarybob/arbor/models"

	"github.com/ternarybob/orchestrator/internal/common"
	"github.com/ternarybob/orchestrator/internal/preference"
	"github.com/ternarybob/orchestrator/internal/registry"
)

func main() {
	configPath := os.Getenv("ORCHESTRATOR_CONFIG")
	if configPath == "" {
		configPath = "orchestrator.toml"
	}

	config, err := common.LoadFromFile(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Minimal console-only logging, kept quiet to avoid cluttering MCP stdio.
	logger := arbor.NewLogger().WithConsoleWriter(arbormodels.WriterConfiguration{
		Type:             arbormodels.LogWriterTypeConsole,
		TimeFormat:       "15:04:05",
		DisableTimestamp: false,
	}).WithLevelFromString("warn")

	reg := registry.New(logger)
	nodes, err := common.LoadNodes(config.Nodes.ConfigFile)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load node inventory")
	}
	if err := reg.Load(nodes); err != nil {
		logger.Fatal().Err(err).Msg("failed to load registry")
	}

	prefs := preference.New(logger)
	if config.Preference.ExportPath != "" {
		if data, err := os.ReadFile(config.Preference.ExportPath); err == nil {
			if err := prefs.Import(data); err != nil {
				logger.Warn().Err(err).Msg("failed to import preference export")
			}
		}
	}

	mcpServer := server.NewMCPServer(
		"orchestrator",
		common.GetVersion(),
		server.WithToolCapabilities(true),
	)

	mcpServer.AddTool(createListNodesTool(), handleListNodes(reg))
	mcpServer.AddTool(createGetHealthTool(), handleGetHealth(reg))
	mcpServer.AddTool(createRecommendModelTool(), handleRecommendModel(prefs))

	if err := server.ServeStdio(mcpServer); err != nil {
		logger.Fatal().Err(err).Msg("MCP server failed")
	}
}
