// Package mcpserver exposes the health graph, anomaly detector and
// pharmacist as Model Context Protocol tools.
package mcpserver

import (
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog"

	"github.com/healthhub/healthhub/internal/domain/anomaly"
	"github.com/healthhub/healthhub/internal/domain/healthgraph"
	"github.com/healthhub/healthhub/internal/domain/pharmacist"
)

// Version is reported to clients during initialization.
const Version = "1.0.0"

// New builds an MCP server with every tool registered.
func New(graph *healthgraph.Graph, detector *anomaly.Detector, agent *pharmacist.Agent, logger zerolog.Logger) *mcp.Server {
	t := &Tools{Graph: graph, Detector: detector, Agent: agent, logger: logger}

	srv := mcp.NewServer(&mcp.Implementation{
		Name:    "healthhub",
		Version: Version,
	}, nil)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "risk_paths",
		Description: "Find weighted paths from a symptom or condition to health risks in the health graph",
	}, t.RiskPaths)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "connected_nodes",
		Description: "List the nodes directly connected to a node in the health graph",
	}, t.ConnectedNodes)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "detect_anomalies",
		Description: "Flag readings whose z-score exceeds a threshold (default 2)",
	}, t.DetectAnomalies)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "ask_pharmacist",
		Description: "Ask a medication question; answers come from an offline formulary",
	}, t.AskPharmacist)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "check_interactions",
		Description: "Check a list of medications for known pairwise interactions",
	}, t.CheckInteractions)

	return srv
}
