package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ternarybob/orchestrator/internal/common"
	"github.com/ternarybob/orchestrator/internal/registry"
)

var nodesCmd = &cobra.Command{
	Use:   "nodes",
	Short: "List the configured node inventory without starting the server",
	RunE:  runNodes,
}

func runNodes(cmd *cobra.Command, args []string) error {
	nodes, err := common.LoadNodes(config.Nodes.ConfigFile)
	if err != nil {
		return fmt.Errorf("failed to load node inventory: %w", err)
	}

	reg := registry.New(logger)
	if err := reg.Load(nodes); err != nil {
		return fmt.Errorf("failed to validate node inventory: %w", err)
	}

	fmt.Printf("%-16s %-24s %-9s %-6s %s\n", "ID", "DISPLAY NAME", "TIER", "VRAM", "CAPABILITIES")
	for _, n := range reg.Snapshot() {
		fmt.Printf("%-16s %-24s %-9s %-6d %s\n", n.ID, n.DisplayName, n.Tier, n.VRAMGB, strings.Join(n.Capabilities.Slice(), ","))
	}

	return nil
}
