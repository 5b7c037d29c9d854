package nutrition

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
	g := dash.Group("/nutrition")
	g.GET("/foods/search", h.HandleSearchFoods)
	g.GET("/meals", h.HandleListMeals)
	g.POST("/meals", h.HandleLogMeal)
	g.DELETE("/meals/:id", h.HandleDeleteMeal)
	g.POST("/water", h.HandleLogWater)
	g.GET("/summary", h.HandleSummary)
	g.GET("/goals", h.HandleGetGoals)
	g.PUT("/goals", h.HandleUpdateGoals)
}

func (h *Handler) HandleSearchFoods(c echo.Context) error {
	foods, src, err := h.svc.SearchFoods(c.Request().Context(), c.QueryParam("q"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"foods": foods, "source": src})
}

func (h *Handler) HandleListMeals(c echo.Context) error {
	userID, err := auth.RequireUser(c)
	if err != nil {
		return err
	}
	day, err := ParseDay(c.QueryParam("date"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	meals, err := h.svc.ListMeals(c.Request().Context(), userID, day)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	p := pagination.FromContext(c)
	return c.JSON(http.StatusOK, pagination.NewResponse(pagination.Slice(meals, p), len(meals), p.Limit, p.Offset))
}

func (h *Handler) HandleLogMeal(c echo.Context) error {
	userID, err := auth.RequireUser(c)
	if err != nil {
		return err
	}
	var in MealInput
	if err := validate.BindAndValidate(c, &in); err != nil {
		return err
	}
	m, err := h.svc.LogMeal(c.Request().Context(), userID, in)
	if err != nil {
		if errors.Is(err, ErrNoFoods) {
			return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, m)
}

func (h *Handler) HandleDeleteMeal(c echo.Context) error {
	userID, err := auth.RequireUser(c)
	if err != nil {
		return err
	}
	if err := h.svc.DeleteMeal(c.Request().Context(), userID, c.Param("id")); err != nil {
		if errors.Is(err, ErrMealNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

type waterRequest struct {
	AmountML int `json:"amount_ml" validate:"required,gt=0,lte=5000"`
}

func (h *Handler) HandleLogWater(c echo.Context) error {
	userID, err := auth.RequireUser(c)
	if err != nil {
		return err
	}
	var req waterRequest
	if err := validate.BindAndValidate(c, &req); err != nil {
		return err
	}
	w, err := h.svc.LogWater(c.Request().Context(), userID, req.AmountML)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, w)
}

func (h *Handler) HandleSummary(c echo.Context) error {
	userID, err := auth.RequireUser(c)
	if err != nil {
		return err
	}
	day, err := ParseDay(c.QueryParam("date"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	sum, err := h.svc.Summary(c.Request().Context(), userID, day)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, sum)
}

func (h *Handler) HandleGetGoals(c echo.Context) error {
	userID, err := auth.RequireUser(c)
	if err != nil {
		return err
	}
	g, err := h.svc.Goals(c.Request().Context(), userID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, g)
}

func (h *Handler) HandleUpdateGoals(c echo.Context) error {
	userID, err := auth.RequireUser(c)
	if err != nil {
		return err
	}
	var g Goals
	if err := validate.BindAndValidate(c, &g); err != nil {
		return err
	}
	out, err := h.svc.UpdateGoals(c.Request().Context(), userID, g)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, out)
}
