package pharmacist

import (
	"net/http"
	"net/url"

	"github.com/labstack/echo/v4"

	"github.com/healthhub/healthhub/internal/platform/validate"
)

type Handler struct {
	agent *Agent
}

func NewHandler(agent *Agent) *Handler {
	return &Handler{agent: agent}
}

func (h *Handler) RegisterRoutes(dash *echo.Group) {
	g := dash.Group("/pharmacist")
	g.POST("/ask", h.HandleAsk)
	g.POST("/interactions", h.HandleInteractions)
	g.GET("/drugs", h.HandleListDrugs)
	g.GET("/drugs/:name", h.HandleGetDrug)
}

type askRequest struct {
	Question string `json:"question" validate:"required,max=1000"`
}

func (h *Handler) HandleAsk(c echo.Context) error {
	var req askRequest
	if err := validate.BindAndValidate(c, &req); err != nil {
		return err
	}
	reply, err := h.agent.Respond(req.Question)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, reply)
}

type interactionsRequest struct {
	Drugs []string `json:"drugs" validate:"required,min=2,max=20,dive,required"`
}

func (h *Handler) HandleInteractions(c echo.Context) error {
	var req interactionsRequest
	if err := validate.BindAndValidate(c, &req); err != nil {
		return err
	}
	report, err := CheckInteractions(req.Drugs)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, report)
}

func (h *Handler) HandleListDrugs(c echo.Context) error {
	return c.JSON(http.StatusOK, Formulary())
}

func (h *Handler) HandleGetDrug(c echo.Context) error {
	name, err := url.PathUnescape(c.Param("name"))
	if err != nil {
		name = c.Param("name")
	}
	d, ok := Lookup(name)
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "medication not found")
	}
	return c.JSON(http.StatusOK, d)
}
