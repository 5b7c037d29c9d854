package insights

import (
	"context"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/healthhub/healthhub/internal/platform/auth"
	"github.com/healthhub/healthhub/internal/platform/validate"
)

// SnapshotSource assembles a user's current metrics.
type SnapshotSource interface {
	Snapshot(ctx context.Context, userID string) (Snapshot, error)
}

type Handler struct {
	snapshots SnapshotSource
	chat      *ChatService
}

func NewHandler(snapshots SnapshotSource, chat *ChatService) *Handler {
	return &Handler{snapshots: snapshots, chat: chat}
}

func (h *Handler) RegisterRoutes(dash *echo.Group) {
	dash.GET("/insights", h.HandleInsights)
	a := dash.Group("/assistant")
	a.POST("/chat", h.HandleChat)
	a.GET("/history", h.HandleHistory)
	a.DELETE("/history", h.HandleClearHistory)
}

func (h *Handler) HandleInsights(c echo.Context) error {
	userID, err := auth.RequireUser(c)
	if err != nil {
		return err
	}
	snap, err := h.snapshots.Snapshot(c.Request().Context(), userID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"snapshot": snap,
		"insights": Generate(snap),
	})
}

type chatRequest struct {
	Question string `json:"question" validate:"required,max=2000"`
}

func (h *Handler) HandleChat(c echo.Context) error {
	userID, err := auth.RequireUser(c)
	if err != nil {
		return err
	}
	var req chatRequest
	if err := validate.BindAndValidate(c, &req); err != nil {
		return err
	}
	ans, err := h.chat.Ask(c.Request().Context(), userID, req.Question)
	if err != nil {
		if rl, ok := IsRateLimited(err); ok {
			c.Response().Header().Set("Retry-After", strconv.Itoa(int(rl.RetryAfter.Seconds())+1))
			return echo.NewHTTPError(http.StatusTooManyRequests, rl.Error())
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, ans)
}

func (h *Handler) HandleHistory(c echo.Context) error {
	userID, err := auth.RequireUser(c)
	if err != nil {
		return err
	}
	turns, err := h.chat.History(c.Request().Context(), userID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, turns)
}

func (h *Handler) HandleClearHistory(c echo.Context) error {
	userID, err := auth.RequireUser(c)
	if err != nil {
		return err
	}
	if err := h.chat.ClearHistory(c.Request().Context(), userID); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}
