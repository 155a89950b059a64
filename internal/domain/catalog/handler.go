package catalog

import (
	"errors"
	"net/http"
	"strconv"

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
	readGroup := api.Group("", auth.RequireRole("admin", "specialist", "reception", "patient"))
	readGroup.GET("/specialties", h.ListSpecialties)
	readGroup.GET("/specialties/:id", h.GetSpecialty)
	readGroup.GET("/specialties/:id/providers", h.ListProviders)
	readGroup.GET("/specialists/:id/specialties", h.ListSpecialistSpecialties)
	readGroup.GET("/fees/quote", h.QuoteFee)

	adminGroup := api.Group("", auth.RequireRole("admin"))
	adminGroup.POST("/specialties", h.CreateSpecialty)
	adminGroup.PUT("/specialties/:id", h.UpdateSpecialty)
	adminGroup.DELETE("/specialties/:id", h.DeactivateSpecialty)
	adminGroup.POST("/specialist-specialties", h.Assign)
	adminGroup.DELETE("/specialist-specialties/:id", h.Unassign)
}

// serviceError maps service failures for the write handlers: bad input is the
// caller's problem, a missing row is 404, everything else is a server fault.
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

func (h *Handler) CreateSpecialty(c echo.Context) error {
	var sp Specialty
	if err := c.Bind(&sp); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreateSpecialty(c.Request().Context(), &sp); err != nil {
		return serviceError(err)
	}
	return c.JSON(http.StatusCreated, sp)
}

func (h *Handler) GetSpecialty(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	sp, err := h.svc.GetSpecialty(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "specialty not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, sp)
}

func (h *Handler) UpdateSpecialty(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var sp Specialty
	if err := c.Bind(&sp); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	sp.ID = id
	if err := h.svc.UpdateSpecialty(c.Request().Context(), &sp); err != nil {
		return serviceError(err)
	}
	return c.JSON(http.StatusOK, sp)
}

func (h *Handler) DeactivateSpecialty(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.DeactivateSpecialty(c.Request().Context(), id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "specialty not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ListSpecialties(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListSpecialties(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) Assign(c echo.Context) error {
	var a SpecialistSpecialty
	if err := c.Bind(&a); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.Assign(c.Request().Context(), &a); err != nil {
		switch {
		case errors.Is(err, ErrDuplicate):
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		case errors.Is(err, ErrNotFound):
			return echo.NewHTTPError(http.StatusNotFound, "specialty not found")
		}
		return serviceError(err)
	}
	return c.JSON(http.StatusCreated, a)
}

func (h *Handler) Unassign(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.Unassign(c.Request().Context(), id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "assignment not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ListSpecialistSpecialties(c echo.Context) error {
	specialistID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid specialist id")
	}
	items, err := h.svc.ListSpecialistSpecialties(c.Request().Context(), specialistID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) ListProviders(c echo.Context) error {
	specialtyID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid specialty id")
	}
	items, err := h.svc.ListSpecialtyProviders(c.Request().Context(), specialtyID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) QuoteFee(c echo.Context) error {
	specialistID, err := uuid.Parse(c.QueryParam("specialist_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid specialist_id")
	}
	specialtyID, err := uuid.Parse(c.QueryParam("specialty_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid specialty_id")
	}
	memberIndex := 0
	if v := c.QueryParam("family_member_index"); v != "" {
		memberIndex, err = strconv.Atoi(v)
		if err != nil || memberIndex < 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "family_member_index must be a non-negative integer")
		}
	}

	fee, err := h.svc.QuoteFee(c.Request().Context(), specialistID, specialtyID, memberIndex)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "specialist does not offer this specialty")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"fee_cents":        fee,
		"discount_percent": FamilyDiscountPercent(memberIndex),
	})
}
