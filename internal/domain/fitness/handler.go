package fitness

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/healthhub/healthhub/internal/platform/auth"
	"github.com/healthhub/healthhub/internal/platform/validate"
	"github.com/healthhub/healthhub/pkg/pagination"
)

// CallbackPath is reached by the wearable's redirect, without our token.
const CallbackPath = "/api/v1/dashboard/fitness/callback"

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(dash *echo.Group) {
	g := dash.Group("/fitness")
	g.GET("/activity", h.HandleActivity)
	g.GET("/status", h.HandleStatus)
	g.GET("/connect", h.HandleConnect)
	g.GET("/callback", h.HandleCallback)
	g.DELETE("/connection", h.HandleDisconnect)
	g.GET("/workouts", h.HandleListWorkouts)
	g.POST("/workouts", h.HandleLogWorkout)
	g.DELETE("/workouts/:id", h.HandleDeleteWorkout)
	g.GET("/workout-types", h.HandleWorkoutTypes)
	g.GET("/plan", h.HandlePlan)
}

func daysParam(c echo.Context) int {
	n, _ := strconv.Atoi(c.QueryParam("days"))
	if n <= 0 {
		return 7
	}
	return n
}

func (h *Handler) HandleActivity(c echo.Context) error {
	userID, err := auth.RequireUser(c)
	if err != nil {
		return err
	}
	sum, err := h.svc.Activity(c.Request().Context(), userID, daysParam(c))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, sum)
}

func (h *Handler) HandleStatus(c echo.Context) error {
	userID, err := auth.RequireUser(c)
	if err != nil {
		return err
	}
	st, err := h.svc.Status(c.Request().Context(), userID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, st)
}

func (h *Handler) HandleConnect(c echo.Context) error {
	userID, err := auth.RequireUser(c)
	if err != nil {
		return err
	}
	u, err := h.svc.ConnectURL(c.Request().Context(), userID)
	if err != nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]string{"auth_url": u})
}

func (h *Handler) HandleCallback(c echo.Context) error {
	if e := c.QueryParam("error"); e != "" {
		return echo.NewHTTPError(http.StatusBadRequest, "authorization was declined: "+e)
	}
	userID, err := h.svc.Callback(c.Request().Context(), c.QueryParam("state"), c.QueryParam("code"))
	if err != nil {
		if errors.Is(err, ErrInvalidState) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"connected": true, "user_id": userID})
}

func (h *Handler) HandleDisconnect(c echo.Context) error {
	userID, err := auth.RequireUser(c)
	if err != nil {
		return err
	}
	if err := h.svc.Disconnect(c.Request().Context(), userID); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) HandleListWorkouts(c echo.Context) error {
	userID, err := auth.RequireUser(c)
	if err != nil {
		return err
	}
	items, err := h.svc.ListWorkouts(c.Request().Context(), userID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	p := pagination.FromContext(c)
	return c.JSON(http.StatusOK, pagination.NewResponse(pagination.Slice(items, p), len(items), p.Limit, p.Offset))
}

func (h *Handler) HandleLogWorkout(c echo.Context) error {
	userID, err := auth.RequireUser(c)
	if err != nil {
		return err
	}
	var in WorkoutInput
	if err := validate.BindAndValidate(c, &in); err != nil {
		return err
	}
	w, err := h.svc.LogWorkout(c.Request().Context(), userID, in)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, w)
}

func (h *Handler) HandleDeleteWorkout(c echo.Context) error {
	userID, err := auth.RequireUser(c)
	if err != nil {
		return err
	}
	if err := h.svc.DeleteWorkout(c.Request().Context(), userID, c.Param("id")); err != nil {
		if errors.Is(err, ErrWorkoutNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) HandleWorkoutTypes(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{"types": WorkoutTypes(), "goals": Goals, "levels": Levels})
}

func (h *Handler) HandlePlan(c echo.Context) error {
	plan, err := h.svc.Plan(c.QueryParam("goal"), c.QueryParam("level"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, plan)
}
