// Package nutrition talks to a Nutritionix-compatible natural language
// nutrient API.
package nutrition

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/healthhub/healthhub/internal/platform/integrations"
	"github.com/healthhub/healthhub/internal/platform/sandbox"
)

// CacheTTL is how long a parsed query is cached.
const CacheTTL = 24 * time.Hour

type Config struct {
	BaseURL string
	AppID   string
	AppKey  string
}

// Client resolves free-text meal descriptions to foods.
type Client struct {
	integrations.Base
	cfg Config
}

func New(cfg Config, logger zerolog.Logger) *Client {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Client{Base: integrations.NewBase("nutrition", logger), cfg: cfg}
}

// Configured reports whether credentials are present.
func (c *Client) Configured() bool {
	return c.cfg.AppID != "" && c.cfg.AppKey != "" && c.cfg.BaseURL != ""
}

type naturalRequest struct {
	Query string `json:"query"`
}

type naturalResponse struct {
	Foods []struct {
		FoodName    string  `json:"food_name"`
		ServingQty  float64 `json:"serving_qty"`
		ServingUnit string  `json:"serving_unit"`
		Calories    float64 `json:"nf_calories"`
		Protein     float64 `json:"nf_protein"`
		Carbs       float64 `json:"nf_total_carbohydrate"`
		Fat         float64 `json:"nf_total_fat"`
		Fiber       float64 `json:"nf_dietary_fiber"`
	} `json:"foods"`
}

func normalize(q string) string {
	return strings.Join(strings.Fields(strings.ToLower(q)), " ")
}

// NaturalLanguage parses query ("2 eggs and toast") into foods. Remote
// failures fall back to the sandbox food table; the only error is an empty
// query.
func (c *Client) NaturalLanguage(ctx context.Context, query string) ([]sandbox.Food, integrations.Source, error) {
	q := normalize(query)
	if q == "" {
		return nil, "", fmt.Errorf("query is required")
	}
	if !c.Configured() {
		return sandbox.LookupFoods(q), c.Fallback(nil), nil
	}

	key := "nutrition:" + q
	var cached []sandbox.Food
	if c.CacheGet(ctx, key, &cached) {
		return cached, c.Cached(), nil
	}

	foods, err := c.fetch(ctx, q)
	if err != nil {
		return sandbox.LookupFoods(q), c.Fallback(err), nil
	}
	c.CacheSet(ctx, key, foods, CacheTTL)
	return foods, c.Live(), nil
}

func (c *Client) fetch(ctx context.Context, q string) ([]sandbox.Food, error) {
	req, err := integrations.NewJSONRequest(ctx, http.MethodPost, c.cfg.BaseURL+"/v2/natural/nutrients", naturalRequest{Query: q})
	if err != nil {
		return nil, err
	}
	req.Header.Set("x-app-id", c.cfg.AppID)
	req.Header.Set("x-app-key", c.cfg.AppKey)

	var resp naturalResponse
	if err := c.DoJSON(req, &resp); err != nil {
		return nil, err
	}
	if len(resp.Foods) == 0 {
		return nil, fmt.Errorf("no foods recognised in %q", q)
	}
	out := make([]sandbox.Food, 0, len(resp.Foods))
	for _, f := range resp.Foods {
		out = append(out, sandbox.Food{
			Name:        f.FoodName,
			ServingQty:  f.ServingQty,
			ServingUnit: f.ServingUnit,
			Calories:    f.Calories,
			ProteinG:    f.Protein,
			CarbsG:      f.Carbs,
			FatG:        f.Fat,
			FiberG:      f.Fiber,
		})
	}
	return out, nil
}
