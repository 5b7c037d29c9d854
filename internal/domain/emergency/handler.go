package emergency

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/healthhub/healthhub/internal/platform/auth"
	"github.com/healthhub/healthhub/internal/platform/validate"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(dash *echo.Group) {
	g := dash.Group("/emergency")
	g.GET("/contacts", h.ListContacts)
	g.POST("/contacts", h.AddContact)
	g.PUT("/contacts/:id", h.UpdateContact)
	g.DELETE("/contacts/:id", h.DeleteContact)
	g.POST("/sos", h.TriggerSOS)
}

func contactError(err error) error {
	switch {
	case errors.Is(err, ErrContactNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrTooManyContacts):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	default:
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
}

func (h *Handler) ListContacts(c echo.Context) error {
	userID, err := auth.RequireUser(c)
	if err != nil {
		return err
	}
	items, err := h.svc.List(c.Request().Context(), userID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) AddContact(c echo.Context) error {
	userID, err := auth.RequireUser(c)
	if err != nil {
		return err
	}
	var in ContactInput
	if err := validate.BindAndValidate(c, &in); err != nil {
		return err
	}
	contact, err := h.svc.Add(c.Request().Context(), userID, in)
	if err != nil {
		return contactError(err)
	}
	return c.JSON(http.StatusCreated, contact)
}

func (h *Handler) UpdateContact(c echo.Context) error {
	userID, err := auth.RequireUser(c)
	if err != nil {
		return err
	}
	var in ContactInput
	if err := validate.BindAndValidate(c, &in); err != nil {
		return err
	}
	contact, err := h.svc.Update(c.Request().Context(), userID, c.Param("id"), in)
	if err != nil {
		return contactError(err)
	}
	return c.JSON(http.StatusOK, contact)
}

func (h *Handler) DeleteContact(c echo.Context) error {
	userID, err := auth.RequireUser(c)
	if err != nil {
		return err
	}
	if err := h.svc.Delete(c.Request().Context(), userID, c.Param("id")); err != nil {
		return contactError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) TriggerSOS(c echo.Context) error {
	userID, err := auth.RequireUser(c)
	if err != nil {
		return err
	}
	var in SOSInput
	if err := validate.BindAndValidate(c, &in); err != nil {
		return err
	}
	res, err := h.svc.SOS(c.Request().Context(), userID, in)
	if err != nil {
		if errors.Is(err, ErrNoContacts) {
			return echo.NewHTTPError(http.StatusUnprocessableEntity, "add an emergency contact before using SOS")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, res)
}
