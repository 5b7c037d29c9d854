// Package symptoms checks reported symptoms against the health graph and
// keeps a per-user history of checks.
package symptoms

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/healthhub/healthhub/internal/domain/healthgraph"
	"github.com/healthhub/healthhub/internal/platform/kvstore"
	"github.com/healthhub/healthhub/internal/platform/telemetry"
)

const (
	historyKey  = "symptom_history"
	maxHistory  = 100
	maxPerCheck = 10
)

// ErrNoKnownSymptoms is returned when none of the reported names are in the graph.
var ErrNoKnownSymptoms = errors.New("none of the reported symptoms are recognised")

type edgePair struct{ a, b string }

func pairOf(a, b string) edgePair {
	if a > b {
		a, b = b, a
	}
	return edgePair{a, b}
}

type Service struct {
	graph   *healthgraph.Graph
	weights map[edgePair]float64
	history *kvstore.Collection[CheckResult]
	metrics *telemetry.Collector
	now     func() time.Time
}

func NewService(g *healthgraph.Graph, store kvstore.Store, logger zerolog.Logger) *Service {
	weights := make(map[edgePair]float64)
	for _, e := range g.Edges() {
		k := pairOf(e.From, e.To)
		if e.Weight > weights[k] {
			weights[k] = e.Weight
		}
	}
	return &Service{
		graph:   g,
		weights: weights,
		history: kvstore.NewCollection[CheckResult](store, historyKey, logger),
		now:     time.Now,
	}
}

// SetMetrics attaches an optional metrics collector.
func (s *Service) SetMetrics(m *telemetry.Collector) {
	s.metrics = m
}

// Known lists the symptom names the checker understands.
func (s *Service) Known() []string {
	nodes := s.graph.NodesOfType(healthgraph.TypeSymptom)
	out := make([]string, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, n.Name)
	}
	return out
}

// Check evaluates the reported symptoms and records the result.
// Unrecognised names are reported back; the check fails only when no
// name is recognised.
func (s *Service) Check(ctx context.Context, userID string, reported []string) (*CheckResult, error) {
	if len(reported) == 0 {
		return nil, fmt.Errorf("at least one symptom is required")
	}
	if len(reported) > maxPerCheck {
		return nil, fmt.Errorf("at most %d symptoms per check", maxPerCheck)
	}
	s.metrics.SymptomCheck()

	res := &CheckResult{
		ID:         uuid.New().String(),
		Symptoms:   []string{},
		Unknown:    []string{},
		Conditions: []ConditionMatch{},
		RiskPaths:  map[string][]healthgraph.RiskPath{},
		CheckedAt:  s.now().UTC(),
	}
	seen := map[string]bool{}
	for _, raw := range reported {
		name := healthgraph.Normalize(raw)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		if n, ok := s.graph.Node(name); !ok || n.Type != healthgraph.TypeSymptom {
			res.Unknown = append(res.Unknown, raw)
			continue
		}
		res.Symptoms = append(res.Symptoms, name)
	}
	if len(res.Symptoms) == 0 {
		return nil, ErrNoKnownSymptoms
	}

	matches := map[string]*ConditionMatch{}
	var order []string
	for _, sym := range res.Symptoms {
		neighbours, err := s.graph.ConnectedNodes(sym)
		if err != nil {
			return nil, err
		}
		for _, n := range neighbours {
			if n.Type != healthgraph.TypeCondition {
				continue
			}
			w := s.weights[pairOf(sym, n.Name)]
			m, ok := matches[n.Name]
			if !ok {
				m = &ConditionMatch{Name: n.Name}
				matches[n.Name] = m
				order = append(order, n.Name)
			}
			m.Symptoms = append(m.Symptoms, sym)
			if w > m.Score {
				m.Score = w
			}
		}

		paths, err := s.graph.RiskPaths(sym)
		if err != nil {
			return nil, err
		}
		res.RiskPaths[sym] = paths
		for _, p := range paths {
			if !s.throughConditions(p) {
				continue
			}
			if p.RiskLevel > res.MaxRiskLevel {
				res.MaxRiskLevel = p.RiskLevel
			}
		}
	}
	for _, name := range order {
		res.Conditions = append(res.Conditions, *matches[name])
	}
	// Conditions explained by more symptoms come first, then by weight.
	sort.SliceStable(res.Conditions, func(i, j int) bool {
		a, b := res.Conditions[i], res.Conditions[j]
		if len(a.Symptoms) != len(b.Symptoms) {
			return len(a.Symptoms) > len(b.Symptoms)
		}
		return a.Score > b.Score
	})
	res.Urgency = UrgencyFor(res.MaxRiskLevel)
	res.Advice = advice[res.Urgency]

	err := s.history.Update(ctx, userID, func(items []CheckResult) ([]CheckResult, error) {
		items = append(items, *res)
		if len(items) > maxHistory {
			items = items[len(items)-maxHistory:]
		}
		return items, nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// History returns past checks newest first.
func (s *Service) History(ctx context.Context, userID string) ([]CheckResult, error) {
	items, err := s.history.Load(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]CheckResult, 0, len(items))
	for i := len(items) - 1; i >= 0; i-- {
		out = append(out, items[i])
	}
	return out, nil
}

func (s *Service) ClearHistory(ctx context.Context, userID string) error {
	return s.history.Clear(ctx, userID)
}

// throughConditions reports whether every intermediate node of p is a
// condition. Paths that detour through other symptoms stay in the result
// but do not drive urgency.
func (s *Service) throughConditions(p healthgraph.RiskPath) bool {
	for _, name := range p.Conditions {
		if n, ok := s.graph.Node(name); !ok || n.Type != healthgraph.TypeCondition {
			return false
		}
	}
	return true
}
