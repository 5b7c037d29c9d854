package telemedicine

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/healthhub/healthhub/internal/platform/auth"
	"github.com/healthhub/healthhub/internal/platform/blobstore"
	"github.com/healthhub/healthhub/internal/platform/sandbox"
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
	g := dash.Group("/telemedicine")
	g.GET("/specialties", h.Specialties)
	g.GET("/doctors", h.ListDoctors)
	g.GET("/doctors/:id", h.GetDoctor)
	g.GET("/doctors/:id/slots", h.ListSlots)
	g.GET("/appointments", h.ListAppointments)
	g.POST("/appointments", h.BookAppointment)
	g.GET("/appointments/:id", h.GetAppointment)
	g.POST("/appointments/:id/cancel", h.CancelAppointment)
	g.GET("/appointments/:id/attachments", h.ListAttachments)
	g.POST("/appointments/:id/attachments", h.UploadAttachment)
}

func appointmentError(err error) error {
	switch {
	case errors.Is(err, ErrDoctorNotFound), errors.Is(err, ErrSlotNotFound), errors.Is(err, ErrAppointmentNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrSlotAlreadyBooked), errors.Is(err, ErrNotCancellable):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrNotOwner):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

func (h *Handler) Specialties(c echo.Context) error {
	return c.JSON(http.StatusOK, sandbox.Specialties())
}

func (h *Handler) ListDoctors(c echo.Context) error {
	items, err := h.svc.Doctors(c.Request().Context(), c.QueryParam("specialty"))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) GetDoctor(c echo.Context) error {
	d, ok := sandbox.DoctorByID(c.Param("id"))
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, ErrDoctorNotFound.Error())
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) ListSlots(c echo.Context) error {
	days, _ := strconv.Atoi(c.QueryParam("days"))
	slots, err := h.svc.Slots(c.Request().Context(), c.Param("id"), days)
	if err != nil {
		return appointmentError(err)
	}
	return c.JSON(http.StatusOK, slots)
}

func (h *Handler) BookAppointment(c echo.Context) error {
	userID, err := auth.RequireUser(c)
	if err != nil {
		return err
	}
	var req BookingRequest
	if err := validate.BindAndValidate(c, &req); err != nil {
		return err
	}
	appt, err := h.svc.Book(c.Request().Context(), userID, req)
	if err != nil {
		return appointmentError(err)
	}
	return c.JSON(http.StatusCreated, appt)
}

func (h *Handler) ListAppointments(c echo.Context) error {
	userID, err := auth.RequireUser(c)
	if err != nil {
		return err
	}
	items, err := h.svc.List(c.Request().Context(), userID, c.QueryParam("status"), c.QueryParam("upcoming") == "true")
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	p := pagination.FromContext(c)
	return c.JSON(http.StatusOK, pagination.NewResponse(pagination.Slice(items, p), len(items), p.Limit, p.Offset))
}

func (h *Handler) GetAppointment(c echo.Context) error {
	userID, err := auth.RequireUser(c)
	if err != nil {
		return err
	}
	appt, err := h.svc.Get(c.Request().Context(), userID, c.Param("id"))
	if err != nil {
		return appointmentError(err)
	}
	return c.JSON(http.StatusOK, appt)
}

type cancelRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

func (h *Handler) CancelAppointment(c echo.Context) error {
	userID, err := auth.RequireUser(c)
	if err != nil {
		return err
	}
	var req cancelRequest
	if err := validate.BindAndValidate(c, &req); err != nil {
		return err
	}
	appt, err := h.svc.Cancel(c.Request().Context(), userID, c.Param("id"), req.Reason)
	if err != nil {
		return appointmentError(err)
	}
	return c.JSON(http.StatusOK, appt)
}

func (h *Handler) UploadAttachment(c echo.Context) error {
	userID, err := auth.RequireUser(c)
	if err != nil {
		return err
	}
	file, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "file is required")
	}
	src, err := file.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to open uploaded file")
	}
	defer src.Close()

	meta := blobstore.BlobMetadata{FileName: file.Filename, ContentType: file.Header.Get("Content-Type")}
	out, err := h.svc.Attach(c.Request().Context(), userID, c.Param("id"), meta, src)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) || errors.Is(err, ErrNotOwner) {
			return appointmentError(err)
		}
		return blobstore.UploadError(err)
	}
	return c.JSON(http.StatusCreated, out)
}

func (h *Handler) ListAttachments(c echo.Context) error {
	userID, err := auth.RequireUser(c)
	if err != nil {
		return err
	}
	items, err := h.svc.Attachments(c.Request().Context(), userID, c.Param("id"))
	if err != nil {
		return appointmentError(err)
	}
	return c.JSON(http.StatusOK, items)
}
