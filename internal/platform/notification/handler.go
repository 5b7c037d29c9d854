package notification

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
	g := dash.Group("/notifications")
	g.GET("", h.HandleList)
	g.DELETE("", h.HandleClear)
	g.GET("/settings", h.HandleGetSettings)
	g.PUT("/settings", h.HandleUpdateSettings)
	g.GET("/templates", h.HandleTemplates)
	g.POST("/preview", h.HandlePreview)
	g.POST("/read-all", h.HandleReadAll)
	g.POST("/:id/read", h.HandleMarkRead)
}

func (h *Handler) HandleList(c echo.Context) error {
	userID, err := auth.RequireUser(c)
	if err != nil {
		return err
	}
	items, err := h.svc.History(c.Request().Context(), userID, c.QueryParam("unread") == "true")
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	p := pagination.FromContext(c)
	return c.JSON(http.StatusOK, pagination.NewResponse(pagination.Slice(items, p), len(items), p.Limit, p.Offset))
}

func (h *Handler) HandleClear(c echo.Context) error {
	userID, err := auth.RequireUser(c)
	if err != nil {
		return err
	}
	if err := h.svc.ClearHistory(c.Request().Context(), userID); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) HandleGetSettings(c echo.Context) error {
	userID, err := auth.RequireUser(c)
	if err != nil {
		return err
	}
	st, err := h.svc.Settings(c.Request().Context(), userID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, st)
}

func (h *Handler) HandleUpdateSettings(c echo.Context) error {
	userID, err := auth.RequireUser(c)
	if err != nil {
		return err
	}
	var st Settings
	if err := validate.BindAndValidate(c, &st); err != nil {
		return err
	}
	out, err := h.svc.UpdateSettings(c.Request().Context(), userID, st)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) HandleTemplates(c echo.Context) error {
	type templateView struct {
		Template
		Placeholders []string `json:"placeholders"`
	}
	tpls := h.svc.Templates().Templates()
	out := make([]templateView, 0, len(tpls))
	for _, t := range tpls {
		out = append(out, templateView{Template: t, Placeholders: t.Placeholders()})
	}
	return c.JSON(http.StatusOK, out)
}

type previewRequest struct {
	TemplateID string            `json:"template_id" validate:"required"`
	Data       map[string]string `json:"data"`
}

func (h *Handler) HandlePreview(c echo.Context) error {
	var req previewRequest
	if err := validate.BindAndValidate(c, &req); err != nil {
		return err
	}
	subject, body, err := h.svc.Templates().Render(req.TemplateID, req.Data)
	if err != nil {
		if errors.Is(err, ErrTemplateNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]string{"subject": subject, "body": body})
}

func (h *Handler) HandleMarkRead(c echo.Context) error {
	userID, err := auth.RequireUser(c)
	if err != nil {
		return err
	}
	n, err := h.svc.MarkRead(c.Request().Context(), userID, c.Param("id"))
	if err != nil {
		if errors.Is(err, ErrNotificationNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, n)
}

func (h *Handler) HandleReadAll(c echo.Context) error {
	userID, err := auth.RequireUser(c)
	if err != nil {
		return err
	}
	n, err := h.svc.MarkAllRead(c.Request().Context(), userID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]int{"updated": n})
}
