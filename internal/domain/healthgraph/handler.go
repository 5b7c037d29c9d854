package healthgraph

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/labstack/echo/v4"

	"github.com/healthhub/healthhub/internal/platform/telemetry"
)

type Handler struct {
	graph   *Graph
	metrics *telemetry.Collector
}

func NewHandler(g *Graph) *Handler {
	return &Handler{graph: g}
}

// SetMetrics attaches an optional metrics collector.
func (h *Handler) SetMetrics(m *telemetry.Collector) {
	h.metrics = m
}

func (h *Handler) RegisterRoutes(dash *echo.Group) {
	dash.GET("/symptoms/graph", h.GetGraph)
	dash.GET("/symptoms/graph/nodes/:name/connections", h.GetConnections)
	dash.GET("/symptoms/graph/nodes/:name/risk-paths", h.GetRiskPaths)
	dash.GET("/symptoms/graph/nodes/:name/conditions", h.GetConditions)
}

type graphResponse struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

func (h *Handler) GetGraph(c echo.Context) error {
	return c.JSON(http.StatusOK, graphResponse{Nodes: h.graph.Nodes(), Edges: h.graph.Edges()})
}

func (h *Handler) GetConnections(c echo.Context) error {
	name := nameParam(c)
	nodes, err := h.graph.ConnectedNodes(name)
	if err != nil {
		return lookupError(err)
	}
	if nodes == nil {
		nodes = []Node{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"node": name, "connected": nodes})
}

func (h *Handler) GetRiskPaths(c echo.Context) error {
	name := nameParam(c)
	h.metrics.RiskPathQuery()
	paths, err := h.graph.RiskPaths(name)
	if err != nil {
		return lookupError(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"symptom": name, "paths": paths})
}

func (h *Handler) GetConditions(c echo.Context) error {
	name := nameParam(c)
	nodes, err := h.graph.Conditions(name)
	if err != nil {
		return lookupError(err)
	}
	if nodes == nil {
		nodes = []Node{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"symptom": name, "conditions": nodes})
}

func nameParam(c echo.Context) string {
	raw := c.Param("name")
	if name, err := url.PathUnescape(raw); err == nil {
		return Normalize(name)
	}
	return Normalize(raw)
}

func lookupError(err error) error {
	if errors.Is(err, ErrNodeNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}
