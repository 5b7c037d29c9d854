package dashboard

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/healthhub/healthhub/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(dash *echo.Group) {
	dash.GET("", h.HandleOverview)
}

func (h *Handler) HandleOverview(c echo.Context) error {
	userID, err := auth.RequireUser(c)
	if err != nil {
		return err
	}
	out, err := h.svc.Overview(c.Request().Context(), userID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, out)
}
