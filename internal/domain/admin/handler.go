package admin

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/healthhub/healthhub/internal/domain/profile"
	"github.com/healthhub/healthhub/internal/platform/auth"
	"github.com/healthhub/healthhub/internal/platform/notification"
	"github.com/healthhub/healthhub/internal/platform/validate"
	"github.com/healthhub/healthhub/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the console on admin; every route requires the
// admin role.
func (h *Handler) RegisterRoutes(admin *echo.Group) {
	admin.Use(auth.RequireRole(auth.RoleAdmin))
	admin.GET("/users", h.ListUsers)
	admin.PUT("/users/:id/role", h.UpdateRole)
	admin.GET("/stats", h.GetStats)
	admin.GET("/graph", h.GetGraph)
	admin.POST("/notifications/broadcast", h.Broadcast)
}

func (h *Handler) ListUsers(c echo.Context) error {
	p := pagination.FromContext(c)
	users, total, err := h.svc.ListUsers(c.Request().Context(), p.Limit, p.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(users, total, p.Limit, p.Offset))
}

func (h *Handler) UpdateRole(c echo.Context) error {
	actorID, err := auth.RequireUser(c)
	if err != nil {
		return err
	}
	var req RoleUpdate
	if err := validate.BindAndValidate(c, &req); err != nil {
		return err
	}
	u, err := h.svc.SetRole(c.Request().Context(), actorID, c.Param("id"), req.Role)
	if err != nil {
		switch {
		case errors.Is(err, profile.ErrUserNotFound):
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		case errors.Is(err, ErrSelfDemotion):
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, u)
}

func (h *Handler) GetStats(c echo.Context) error {
	st, err := h.svc.Stats(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, st)
}

func (h *Handler) GetGraph(c echo.Context) error {
	return c.JSON(http.StatusOK, h.svc.Graph())
}

func (h *Handler) Broadcast(c echo.Context) error {
	var req BroadcastRequest
	if err := validate.BindAndValidate(c, &req); err != nil {
		return err
	}
	res, err := h.svc.Broadcast(c.Request().Context(), req)
	if err != nil {
		if errors.Is(err, notification.ErrTemplateNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusAccepted, res)
}
