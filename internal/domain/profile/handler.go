package profile

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

// RegisterRoutes mounts login routes on the public auth group and the
// profile on the dashboard group.
func (h *Handler) RegisterRoutes(authGroup, dash *echo.Group) {
	authGroup.POST("/register", h.HandleRegister)
	authGroup.POST("/login", h.HandleLogin)
	authGroup.POST("/demo", h.HandleDemo)

	dash.GET("/profile", h.HandleGet)
	dash.PUT("/profile", h.HandleUpdate)
}

func (h *Handler) HandleRegister(c echo.Context) error {
	var req RegisterRequest
	if err := validate.BindAndValidate(c, &req); err != nil {
		return err
	}
	sess, err := h.svc.Register(c.Request().Context(), req)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusCreated, sess)
}

func (h *Handler) HandleLogin(c echo.Context) error {
	var req LoginRequest
	if err := validate.BindAndValidate(c, &req); err != nil {
		return err
	}
	sess, err := h.svc.Login(c.Request().Context(), req)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, sess)
}

func (h *Handler) HandleDemo(c echo.Context) error {
	sess, err := h.svc.Demo(c.Request().Context())
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, sess)
}

func (h *Handler) HandleGet(c echo.Context) error {
	userID, err := auth.RequireUser(c)
	if err != nil {
		return err
	}
	view, err := h.svc.Get(c.Request().Context(), userID)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, view)
}

func (h *Handler) HandleUpdate(c echo.Context) error {
	userID, err := auth.RequireUser(c)
	if err != nil {
		return err
	}
	var in ProfileInput
	if err := validate.BindAndValidate(c, &in); err != nil {
		return err
	}
	view, err := h.svc.Update(c.Request().Context(), userID, in)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, view)
}

func mapError(err error) error {
	switch {
	case errors.Is(err, ErrInvalidCredentials):
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	case errors.Is(err, ErrEmailTaken):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrUserNotFound), errors.Is(err, ErrProfileNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	default:
		var he *echo.HTTPError
		if errors.As(err, &he) {
			return he
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
}
