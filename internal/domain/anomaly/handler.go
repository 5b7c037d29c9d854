package anomaly

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/healthhub/healthhub/internal/platform/telemetry"
	"github.com/healthhub/healthhub/internal/platform/validate"
)

type Handler struct {
	detector *Detector
	metrics  *telemetry.Collector
}

func NewHandler(d *Detector) *Handler {
	return &Handler{detector: d}
}

// SetMetrics attaches an optional metrics collector.
func (h *Handler) SetMetrics(m *telemetry.Collector) {
	h.metrics = m
}

func (h *Handler) RegisterRoutes(dash *echo.Group) {
	dash.POST("/anomalies", h.Detect)
}

type detectRequest struct {
	Series    []float64            `json:"series"`
	Metrics   map[string][]float64 `json:"metrics"`
	Threshold float64              `json:"threshold" validate:"gte=0"`
}

type detectResponse struct {
	Threshold float64           `json:"threshold"`
	Stats     *Stats            `json:"stats,omitempty"`
	Anomalies []Anomaly         `json:"anomalies"`
	Metrics   map[string]Result `json:"metrics,omitempty"`
}

// Detect accepts either a single series or a map of named series.
func (h *Handler) Detect(c echo.Context) error {
	var req detectRequest
	if err := validate.BindAndValidate(c, &req); err != nil {
		return err
	}
	if req.Series == nil && len(req.Metrics) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "series or metrics is required")
	}

	d := h.detector
	if req.Threshold > 0 {
		d = NewDetector(req.Threshold)
	}

	resp := detectResponse{Threshold: d.Threshold, Anomalies: []Anomaly{}}
	found := 0
	if req.Series != nil {
		r := d.Analyze(req.Series)
		resp.Stats = &r.Stats
		resp.Anomalies = r.Anomalies
		found += len(r.Anomalies)
	}
	if len(req.Metrics) > 0 {
		resp.Metrics = d.DetectNamed(req.Metrics)
		found += Count(resp.Metrics)
	}
	h.metrics.AddAnomalies(found)
	return c.JSON(http.StatusOK, resp)
}
