package symptoms

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/healthhub/healthhub/internal/platform/auth"
	"github.com/healthhub/healthhub/internal/platform/validate"
	"github.com/healthhub/healthhub/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(dash *echo.Group) {
	dash.GET("/symptoms", h.HandleKnown)
	dash.POST("/symptoms/check", h.HandleCheck)
	dash.GET("/symptoms/history", h.HandleHistory)
	dash.DELETE("/symptoms/history", h.HandleClearHistory)
}

func (h *Handler) HandleKnown(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{"symptoms": h.svc.Known()})
}

type checkRequest struct {
	Symptoms []string `json:"symptoms" validate:"required,min=1,max=10,dive,required,max=100"`
}

func (h *Handler) HandleCheck(c echo.Context) error {
	userID, err := auth.RequireUser(c)
	if err != nil {
		return err
	}
	var req checkRequest
	if err := validate.BindAndValidate(c, &req); err != nil {
		return err
	}
	res, err := h.svc.Check(c.Request().Context(), userID, req.Symptoms)
	if err != nil {
		if errors.Is(err, ErrNoKnownSymptoms) {
			return echo.NewHTTPError(http.StatusBadRequest, map[string]interface{}{
				"message": err.Error(),
				"known":   h.svc.Known(),
			})
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, res)
}

func (h *Handler) HandleHistory(c echo.Context) error {
	userID, err := auth.RequireUser(c)
	if err != nil {
		return err
	}
	items, err := h.svc.History(c.Request().Context(), userID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	p := pagination.FromContext(c)
	return c.JSON(http.StatusOK, pagination.NewResponse(pagination.Slice(items, p), len(items), p.Limit, p.Offset))
}

func (h *Handler) HandleClearHistory(c echo.Context) error {
	userID, err := auth.RequireUser(c)
	if err != nil {
		return err
	}
	if err := h.svc.ClearHistory(c.Request().Context(), userID); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}
