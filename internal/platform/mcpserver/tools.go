package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog"

	"github.com/healthhub/healthhub/internal/domain/anomaly"
	"github.com/healthhub/healthhub/internal/domain/healthgraph"
	"github.com/healthhub/healthhub/internal/domain/pharmacist"
)

// Tools holds the services the tool handlers call.
type Tools struct {
	Graph    *healthgraph.Graph
	Detector *anomaly.Detector
	Agent    *pharmacist.Agent
	logger   zerolog.Logger
}

type RiskPathsInput struct {
	Symptom string `json:"symptom" jsonschema:"Symptom to start from, e.g. chest pain (case-insensitive)"`
}

type ConnectedNodesInput struct {
	Name string `json:"name" jsonschema:"Node name in the health graph, e.g. asthma (case-insensitive)"`
}

type DetectAnomaliesInput struct {
	Series    []float64 `json:"series" jsonschema:"Numeric readings in time order"`
	Threshold float64   `json:"threshold,omitempty" jsonschema:"Z-score threshold, 2 when omitted"`
}

type AskPharmacistInput struct {
	Question string `json:"question" jsonschema:"Free-text medication question"`
}

type CheckInteractionsInput struct {
	Drugs []string `json:"drugs" jsonschema:"Medication names, at least two"`
}

func (t *Tools) RiskPaths(_ context.Context, _ *mcp.CallToolRequest, in RiskPathsInput) (*mcp.CallToolResult, any, error) {
	name := healthgraph.Normalize(in.Symptom)
	if name == "" {
		return toolError("symptom is required"), nil, nil
	}
	paths, err := t.Graph.RiskPaths(name)
	if err != nil {
		return t.graphError(err), nil, nil
	}
	return toolJSON(map[string]any{"symptom": name, "paths": paths})
}

func (t *Tools) ConnectedNodes(_ context.Context, _ *mcp.CallToolRequest, in ConnectedNodesInput) (*mcp.CallToolResult, any, error) {
	name := healthgraph.Normalize(in.Name)
	if name == "" {
		return toolError("name is required"), nil, nil
	}
	nodes, err := t.Graph.ConnectedNodes(name)
	if err != nil {
		return t.graphError(err), nil, nil
	}
	if nodes == nil {
		nodes = []healthgraph.Node{}
	}
	return toolJSON(map[string]any{"name": name, "nodes": nodes})
}

func (t *Tools) DetectAnomalies(_ context.Context, _ *mcp.CallToolRequest, in DetectAnomaliesInput) (*mcp.CallToolResult, any, error) {
	if len(in.Series) == 0 {
		return toolError("series must not be empty"), nil, nil
	}
	if in.Threshold < 0 {
		return toolError("threshold must not be negative"), nil, nil
	}
	d := t.Detector
	if in.Threshold > 0 {
		d = anomaly.NewDetector(in.Threshold)
	}
	res := d.Analyze(in.Series)
	if res.Anomalies == nil {
		res.Anomalies = []anomaly.Anomaly{}
	}
	return toolJSON(map[string]any{"threshold": d.Threshold, "stats": res.Stats, "anomalies": res.Anomalies})
}

func (t *Tools) AskPharmacist(_ context.Context, _ *mcp.CallToolRequest, in AskPharmacistInput) (*mcp.CallToolResult, any, error) {
	reply, err := t.Agent.Respond(in.Question)
	if err != nil {
		return toolError("%v", err), nil, nil
	}
	return toolJSON(reply)
}

func (t *Tools) CheckInteractions(_ context.Context, _ *mcp.CallToolRequest, in CheckInteractionsInput) (*mcp.CallToolResult, any, error) {
	report, err := pharmacist.CheckInteractions(in.Drugs)
	if err != nil {
		return toolError("%v", err), nil, nil
	}
	return toolJSON(report)
}

func (t *Tools) graphError(err error) *mcp.CallToolResult {
	if errors.Is(err, healthgraph.ErrNodeNotFound) {
		return toolError("%v", err)
	}
	t.logger.Error().Err(err).Msg("graph query failed")
	return toolError("graph query failed: %v", err)
}

func toolError(format string, args ...any) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf(format, args...)}},
		IsError: true,
	}
}

func toolJSON(v any) (*mcp.CallToolResult, any, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return toolError("failed to marshal result: %v", err), nil, nil
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
	}, nil, nil
}
