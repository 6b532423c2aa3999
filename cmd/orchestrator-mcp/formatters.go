package main

import (
	"fmt"
	"strings"

	"github.com/ternarybob/orchestrator/internal/interfaces"
	"github.com/ternarybob/orchestrator/internal/models"
)

// modelFamilyCandidates is the fixed set of model-family capabilities scored
// by the recommend_model tool.
var modelFamilyCandidates = []string{
	string(models.CapabilitySD15),
	string(models.CapabilitySDXL),
	string(models.CapabilitySD3),
	string(models.CapabilityFlux),
}

// formatNodeList renders the fleet inventory as markdown.
func formatNodeList(nodes []*models.Node) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## Fleet Nodes (%d)\n\n", len(nodes)))

	if len(nodes) == 0 {
		sb.WriteString("No nodes configured.\n")
		return sb.String()
	}

	for _, n := range nodes {
		status := "unhealthy"
		if n.Runtime.Healthy {
			status = "healthy"
		}
		sb.WriteString(fmt.Sprintf("### %s (%s)\n", n.DisplayName, n.ID))
		sb.WriteString(fmt.Sprintf("**Tier:** %s | **Status:** %s | **Queue depth:** %d\n", n.Tier, status, n.Runtime.QueueDepth))
		sb.WriteString(fmt.Sprintf("**Capabilities:** %s\n", strings.Join(n.Capabilities.Slice(), ", ")))
		sb.WriteString(fmt.Sprintf("**Endpoint:** %s\n\n", n.Endpoint()))
	}

	return sb.String()
}

// formatHealth renders a fleet health summary as markdown.
func formatHealth(healthy, total int) string {
	status := "ok"
	if total == 0 || healthy == 0 {
		status = "degraded"
	}
	return fmt.Sprintf("## Fleet Health\n\n**Status:** %s\n**Nodes healthy:** %d / %d\n", status, healthy, total)
}

// formatRecommendation renders a model recommendation as markdown.
func formatRecommendation(rec interfaces.Recommendation) string {
	return fmt.Sprintf("## Model Recommendation\n\n**Model:** %s\n**Confidence:** %.3f\n", rec.ID, rec.Confidence)
}
