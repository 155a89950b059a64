package scheduling

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/agenda/agenda/internal/platform/auth"
	"github.com/agenda/agenda/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	// Availability is readable by anyone who can book.
	readGroup := api.Group("", auth.RequireRole("admin", "specialist", "reception", "patient"))
	readGroup.GET("/specialists/:id/slots", h.ListSlots)
	readGroup.GET("/specialists/:id/next-dates", h.NextDates)
	readGroup.GET("/appointments/:id", h.GetAppointment)
	readGroup.GET("/appointments", h.ListAppointments)

	bookGroup := api.Group("", auth.RequireRole("admin", "reception", "patient"))
	bookGroup.POST("/appointments", h.BookAppointment)
	bookGroup.POST("/appointments/:id/cancel", h.CancelAppointment)

	deskGroup := api.Group("", auth.RequireRole("admin", "specialist", "reception"))
	deskGroup.POST("/appointments/:id/confirm", h.ConfirmAppointment)
	deskGroup.POST("/appointments/:id/done", h.MarkAppointmentDone)

	// Schedule administration.
	adminGroup := api.Group("", auth.RequireRole("admin", "specialist"))
	adminGroup.POST("/schedule-windows", h.CreateWindow)
	adminGroup.GET("/schedule-windows/:id", h.GetWindow)
	adminGroup.PUT("/schedule-windows/:id", h.UpdateWindow)
	adminGroup.DELETE("/schedule-windows/:id", h.DeactivateWindow)
	adminGroup.GET("/specialists/:id/schedule-windows", h.ListWindows)
	adminGroup.POST("/blocks", h.CreateBlock)
	adminGroup.DELETE("/blocks/:id", h.DeactivateBlock)
	adminGroup.GET("/specialists/:id/blocks", h.ListBlocks)
	adminGroup.GET("/specialists/:id/config", h.GetConfig)
	adminGroup.PUT("/specialists/:id/config", h.UpdateConfig)
	adminGroup.GET("/specialists/:id/appointments", h.ListDayAppointments)
}

// serviceError maps service failures for the administrative write handlers:
// bad input is the caller's problem, a missing row is 404, everything else is
// a server fault.
func serviceError(err error) *echo.HTTPError {
	switch {
	case errors.Is(err, ErrInvalidInput):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

// -- Availability Handlers --

func (h *Handler) ListSlots(c echo.Context) error {
	specialistID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid specialist id")
	}
	specialtyID, err := uuid.Parse(c.QueryParam("specialty_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid specialty_id")
	}
	date, err := time.Parse("2006-01-02", c.QueryParam("date"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "date must be YYYY-MM-DD")
	}

	slots, err := h.svc.SlotsForDate(c.Request().Context(), specialistID, specialtyID, date)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"date":  date.Format("2006-01-02"),
		"slots": slots,
	})
}

func (h *Handler) NextDates(c echo.Context) error {
	specialistID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid specialist id")
	}
	specialtyID, err := uuid.Parse(c.QueryParam("specialty_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid specialty_id")
	}
	days := 0
	if v := c.QueryParam("days"); v != "" {
		days, err = strconv.Atoi(v)
		if err != nil || days <= 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "days must be a positive integer")
		}
	}

	dates, err := h.svc.NextAvailableDates(c.Request().Context(), specialistID, specialtyID, days)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"dates": dates})
}

// -- Appointment Handlers --

func (h *Handler) BookAppointment(c echo.Context) error {
	var req BookingRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	appt, err := h.svc.Book(c.Request().Context(), req)
	if err != nil {
		if rej, ok := AsRejection(err); ok {
			return c.JSON(http.StatusUnprocessableEntity, map[string]interface{}{
				"code":   rej.Code,
				"reason": rej.Reason,
			})
		}
		if errors.Is(err, ErrSlotConflict) {
			return echo.NewHTTPError(http.StatusConflict, "slot already taken")
		}
		if errors.Is(err, ErrInvalidInput) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		// Anything else is a storage or infrastructure fault, not the
		// caller's doing.
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusCreated, appt)
}

func (h *Handler) GetAppointment(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	appt, err := h.svc.GetAppointment(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "appointment not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, appt)
}

func (h *Handler) ListAppointments(c echo.Context) error {
	patientID, err := uuid.Parse(c.QueryParam("patient_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "patient_id is required")
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListPatientAppointments(c.Request().Context(), patientID, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) ListDayAppointments(c echo.Context) error {
	specialistID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid specialist id")
	}
	date, err := time.Parse("2006-01-02", c.QueryParam("date"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "date must be YYYY-MM-DD")
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListDayAppointments(c.Request().Context(), specialistID, date, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) ConfirmAppointment(c echo.Context) error {
	return h.transition(c, func(id uuid.UUID) (*Appointment, error) {
		return h.svc.Confirm(c.Request().Context(), id)
	})
}

func (h *Handler) CancelAppointment(c echo.Context) error {
	var body struct {
		Reason string `json:"reason"`
	}
	// An empty body is a cancellation without a stated reason.
	_ = c.Bind(&body)
	return h.transition(c, func(id uuid.UUID) (*Appointment, error) {
		return h.svc.Cancel(c.Request().Context(), id, body.Reason)
	})
}

func (h *Handler) MarkAppointmentDone(c echo.Context) error {
	return h.transition(c, func(id uuid.UUID) (*Appointment, error) {
		return h.svc.MarkDone(c.Request().Context(), id)
	})
}

func (h *Handler) transition(c echo.Context, fn func(id uuid.UUID) (*Appointment, error)) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	appt, err := fn(id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "appointment not found")
		}
		if errors.Is(err, ErrInvalidTransition) {
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, appt)
}

// -- Window Handlers --

func (h *Handler) CreateWindow(c echo.Context) error {
	var w WeeklyWindow
	if err := c.Bind(&w); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreateWindow(c.Request().Context(), &w); err != nil {
		return serviceError(err)
	}
	return c.JSON(http.StatusCreated, w)
}

func (h *Handler) GetWindow(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	w, err := h.svc.GetWindow(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "window not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, w)
}

func (h *Handler) UpdateWindow(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var w WeeklyWindow
	if err := c.Bind(&w); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	w.ID = id
	if err := h.svc.UpdateWindow(c.Request().Context(), &w); err != nil {
		return serviceError(err)
	}
	return c.JSON(http.StatusOK, w)
}

func (h *Handler) DeactivateWindow(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.DeactivateWindow(c.Request().Context(), id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "window not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ListWindows(c echo.Context) error {
	specialistID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid specialist id")
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListWindows(c.Request().Context(), specialistID, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

// -- Block Handlers --

func (h *Handler) CreateBlock(c echo.Context) error {
	var b Block
	if err := c.Bind(&b); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if uid, ok := c.Get("user_id").(uuid.UUID); ok {
		b.CreatedBy = &uid
	}
	if err := h.svc.CreateBlock(c.Request().Context(), &b); err != nil {
		return serviceError(err)
	}
	return c.JSON(http.StatusCreated, b)
}

func (h *Handler) DeactivateBlock(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.DeactivateBlock(c.Request().Context(), id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "block not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ListBlocks(c echo.Context) error {
	specialistID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid specialist id")
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListBlocks(c.Request().Context(), specialistID, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

// -- Config Handlers --

func (h *Handler) GetConfig(c echo.Context) error {
	specialistID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid specialist id")
	}
	cfg, err := h.svc.GetConfig(c.Request().Context(), specialistID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, cfg)
}

func (h *Handler) UpdateConfig(c echo.Context) error {
	specialistID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid specialist id")
	}
	var cfg SpecialistConfig
	if err := c.Bind(&cfg); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	cfg.SpecialistID = specialistID
	if err := h.svc.UpdateConfig(c.Request().Context(), &cfg); err != nil {
		return serviceError(err)
	}
	return c.JSON(http.StatusOK, cfg)
}
