package admin

import (
	"github.com/healthhub/healthhub/internal/domain/healthgraph"
	"github.com/healthhub/healthhub/internal/platform/analytics"
)

type RoleUpdate struct {
	Role string `json:"role" validate:"required,oneof=user admin"`
}

type UserStats struct {
	Total  int            `json:"total"`
	ByRole map[string]int `json:"by_role"`
}

type StorageStats struct {
	// Namespaces counts users with stored records.
	Namespaces int `json:"namespaces"`
}

type GraphStats struct {
	Nodes  int            `json:"nodes"`
	Edges  int            `json:"edges"`
	ByType map[string]int `json:"by_type"`
}

type Stats struct {
	Users        UserStats                  `json:"users"`
	Storage      StorageStats               `json:"storage"`
	Integrations map[string]string          `json:"integrations"`
	Graph        GraphStats                 `json:"graph"`
	Usage        *analytics.UsageOverview   `json:"usage"`
	Features     []analytics.FeatureSummary `json:"features"`
}

type GraphView struct {
	Nodes []healthgraph.Node `json:"nodes"`
	Edges []healthgraph.Edge `json:"edges"`
	Stats GraphStats         `json:"stats"`
}

// BroadcastRequest sends one template to the listed users, or to every
// account when UserIDs is empty.
type BroadcastRequest struct {
	TemplateID string            `json:"template_id" validate:"required"`
	Data       map[string]string `json:"data"`
	UserIDs    []string          `json:"user_ids" validate:"max=10000"`
	Urgent     bool              `json:"urgent"`
}
