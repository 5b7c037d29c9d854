package medication

import (
	"errors"
	"net/http"
	"strconv"

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
	g := dash.Group("/medications")
	g.GET("", h.HandleList)
	g.POST("", h.HandleAdd)
	g.GET("/schedule/today", h.HandleToday)
	g.GET("/adherence", h.HandleAdherence)
	g.GET("/interactions", h.HandleInteractions)
	g.GET("/reminders", h.HandleReminders)
	g.POST("/reminders/send", h.HandleSendReminders)
	g.GET("/doses", h.HandleDoses)
	g.GET("/:id", h.HandleGet)
	g.PUT("/:id", h.HandleUpdate)
	g.DELETE("/:id", h.HandleDelete)
	g.GET("/:id/doses", h.HandleDoses)
	g.POST("/:id/doses", h.HandleLogDose)
}

func notFoundOr(err error, status int) error {
	if errors.Is(err, ErrMedicationNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	return echo.NewHTTPError(status, err.Error())
}

func (h *Handler) HandleList(c echo.Context) error {
	userID, err := auth.RequireUser(c)
	if err != nil {
		return err
	}
	items, err := h.svc.List(c.Request().Context(), userID, c.QueryParam("active") == "true")
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	p := pagination.FromContext(c)
	return c.JSON(http.StatusOK, pagination.NewResponse(pagination.Slice(items, p), len(items), p.Limit, p.Offset))
}

func (h *Handler) HandleAdd(c echo.Context) error {
	userID, err := auth.RequireUser(c)
	if err != nil {
		return err
	}
	var in MedicationInput
	if err := validate.BindAndValidate(c, &in); err != nil {
		return err
	}
	m, err := h.svc.Add(c.Request().Context(), userID, in)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, m)
}

func (h *Handler) HandleGet(c echo.Context) error {
	userID, err := auth.RequireUser(c)
	if err != nil {
		return err
	}
	m, err := h.svc.Get(c.Request().Context(), userID, c.Param("id"))
	if err != nil {
		return notFoundOr(err, http.StatusInternalServerError)
	}
	return c.JSON(http.StatusOK, m)
}

func (h *Handler) HandleUpdate(c echo.Context) error {
	userID, err := auth.RequireUser(c)
	if err != nil {
		return err
	}
	var in MedicationInput
	if err := validate.BindAndValidate(c, &in); err != nil {
		return err
	}
	m, err := h.svc.Update(c.Request().Context(), userID, c.Param("id"), in)
	if err != nil {
		return notFoundOr(err, http.StatusBadRequest)
	}
	return c.JSON(http.StatusOK, m)
}

func (h *Handler) HandleDelete(c echo.Context) error {
	userID, err := auth.RequireUser(c)
	if err != nil {
		return err
	}
	if err := h.svc.Delete(c.Request().Context(), userID, c.Param("id")); err != nil {
		return notFoundOr(err, http.StatusInternalServerError)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) HandleLogDose(c echo.Context) error {
	userID, err := auth.RequireUser(c)
	if err != nil {
		return err
	}
	var in DoseInput
	if err := validate.BindAndValidate(c, &in); err != nil {
		return err
	}
	d, err := h.svc.LogDose(c.Request().Context(), userID, c.Param("id"), in)
	if err != nil {
		return notFoundOr(err, http.StatusBadRequest)
	}
	return c.JSON(http.StatusCreated, d)
}

func (h *Handler) HandleDoses(c echo.Context) error {
	userID, err := auth.RequireUser(c)
	if err != nil {
		return err
	}
	items, err := h.svc.Doses(c.Request().Context(), userID, c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	p := pagination.FromContext(c)
	return c.JSON(http.StatusOK, pagination.NewResponse(pagination.Slice(items, p), len(items), p.Limit, p.Offset))
}

func (h *Handler) HandleToday(c echo.Context) error {
	userID, err := auth.RequireUser(c)
	if err != nil {
		return err
	}
	due, err := h.svc.DueToday(c.Request().Context(), userID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, due)
}

func (h *Handler) HandleAdherence(c echo.Context) error {
	userID, err := auth.RequireUser(c)
	if err != nil {
		return err
	}
	days, _ := strconv.Atoi(c.QueryParam("days"))
	a, err := h.svc.Adherence(c.Request().Context(), userID, days)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) HandleInteractions(c echo.Context) error {
	userID, err := auth.RequireUser(c)
	if err != nil {
		return err
	}
	report, err := h.svc.Interactions(c.Request().Context(), userID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, report)
}

func (h *Handler) HandleReminders(c echo.Context) error {
	userID, err := auth.RequireUser(c)
	if err != nil {
		return err
	}
	items, err := h.svc.Reminders(c.Request().Context(), userID, c.QueryParam("name"))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) HandleSendReminders(c echo.Context) error {
	userID, err := auth.RequireUser(c)
	if err != nil {
		return err
	}
	n, err := h.svc.SendDueReminders(c.Request().Context(), userID, c.QueryParam("name"))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]int{"sent": n})
}
