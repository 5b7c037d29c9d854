// Package admin is the admin console: account roles, system statistics,
// the health graph and broadcast notifications.
package admin

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/healthhub/healthhub/internal/domain/healthgraph"
	"github.com/healthhub/healthhub/internal/domain/profile"
	"github.com/healthhub/healthhub/internal/platform/analytics"
	"github.com/healthhub/healthhub/internal/platform/auth"
	"github.com/healthhub/healthhub/internal/platform/kvstore"
	"github.com/healthhub/healthhub/internal/platform/notification"
)

const broadcastPage = 500

var ErrSelfDemotion = errors.New("you cannot remove your own admin role")

// Users is the part of the account store the console needs.
type Users interface {
	GetUser(ctx context.Context, id string) (*profile.User, error)
	ListUsers(ctx context.Context, limit, offset int) ([]*profile.User, int, error)
	UpdateRole(ctx context.Context, id, role string) error
	CountByRole(ctx context.Context) (map[string]int, error)
}

type Broadcaster interface {
	Broadcast(ctx context.Context, userIDs []string, msg notification.Message) (notification.BroadcastResult, error)
}

type Service struct {
	users    Users
	store    kvstore.Store
	graph    *healthgraph.Graph
	usage    *analytics.UsageTracker
	notifier Broadcaster
	modes    map[string]string
	logger   zerolog.Logger
}

func NewService(users Users, store kvstore.Store, graph *healthgraph.Graph, usage *analytics.UsageTracker,
	notifier Broadcaster, modes map[string]string, logger zerolog.Logger) *Service {
	return &Service{
		users:    users,
		store:    store,
		graph:    graph,
		usage:    usage,
		notifier: notifier,
		modes:    modes,
		logger:   logger,
	}
}

func (s *Service) ListUsers(ctx context.Context, limit, offset int) ([]*profile.User, int, error) {
	users, total, err := s.users.ListUsers(ctx, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	if users == nil {
		users = []*profile.User{}
	}
	return users, total, nil
}

// SetRole changes an account's role. Admins cannot demote themselves so the
// console always keeps at least the caller.
func (s *Service) SetRole(ctx context.Context, actorID, userID, role string) (*profile.User, error) {
	if role != auth.RoleUser && role != auth.RoleAdmin {
		return nil, fmt.Errorf("role must be %q or %q", auth.RoleUser, auth.RoleAdmin)
	}
	if actorID == userID && role != auth.RoleAdmin {
		return nil, ErrSelfDemotion
	}
	if err := s.users.UpdateRole(ctx, userID, role); err != nil {
		return nil, err
	}
	s.logger.Info().Str("actor_id", actorID).Str("user_id", userID).Str("role", role).Msg("role changed")
	return s.users.GetUser(ctx, userID)
}

func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	byRole, err := s.users.CountByRole(ctx)
	if err != nil {
		return nil, fmt.Errorf("count users: %w", err)
	}
	st := &Stats{
		Users:        UserStats{ByRole: byRole},
		Integrations: s.modes,
		Graph:        s.graphStats(),
		Features:     []analytics.FeatureSummary{},
	}
	for _, n := range byRole {
		st.Users.Total += n
	}
	namespaces, err := s.store.Namespaces(ctx)
	if err != nil {
		return nil, fmt.Errorf("list namespaces: %w", err)
	}
	for _, ns := range namespaces {
		// Underscore namespaces hold shared state such as the slot index.
		if !strings.HasPrefix(ns, "_") {
			st.Storage.Namespaces++
		}
	}
	if s.usage != nil {
		st.Usage = s.usage.Overview()
		st.Features = s.usage.Features()
	}
	return st, nil
}

func (s *Service) Graph() GraphView {
	return GraphView{Nodes: s.graph.Nodes(), Edges: s.graph.Edges(), Stats: s.graphStats()}
}

func (s *Service) graphStats() GraphStats {
	gs := GraphStats{ByType: map[string]int{}}
	if s.graph == nil {
		return gs
	}
	nodes := s.graph.Nodes()
	gs.Nodes, gs.Edges = len(nodes), len(s.graph.Edges())
	for _, n := range nodes {
		gs.ByType[string(n.Type)]++
	}
	return gs
}

// Broadcast delivers req to its recipients through each user's notification
// settings.
func (s *Service) Broadcast(ctx context.Context, req BroadcastRequest) (notification.BroadcastResult, error) {
	ids := req.UserIDs
	if len(ids) == 0 {
		var err error
		if ids, err = s.allUserIDs(ctx); err != nil {
			return notification.BroadcastResult{}, err
		}
	}
	res, err := s.notifier.Broadcast(ctx, ids, notification.Message{
		TemplateID: req.TemplateID,
		Data:       req.Data,
		Urgent:     req.Urgent,
		Metadata:   map[string]string{"source": "admin-broadcast"},
	})
	if err != nil {
		return res, err
	}
	s.logger.Info().Str("template", req.TemplateID).Int("recipients", res.Recipients).
		Int("delivered", res.Delivered).Int("failed", len(res.Failed)).Msg("broadcast sent")
	return res, nil
}

func (s *Service) allUserIDs(ctx context.Context) ([]string, error) {
	var ids []string
	for offset := 0; ; offset += broadcastPage {
		users, total, err := s.users.ListUsers(ctx, broadcastPage, offset)
		if err != nil {
			return nil, err
		}
		for _, u := range users {
			ids = append(ids, u.ID)
		}
		if len(users) == 0 || offset+len(users) >= total {
			return ids, nil
		}
	}
}
