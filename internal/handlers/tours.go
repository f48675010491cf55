package handlers

import (
	"context"

	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/laurel/pkg/models"
)

// TourStore reads mirrored tours
type TourStore interface {
	ListUnassigned(ctx context.Context) ([]models.Tour, error)
	ListActiveByDateRange(ctx context.Context, start, end string) ([]models.Tour, error)
}

// TourHandler handles tour read API requests
type TourHandler struct {
	tours TourStore
}

// NewTourHandler creates a new tour handler
func NewTourHandler(tours TourStore) *TourHandler {
	return &TourHandler{tours: tours}
}

// RegisterRoutes registers the tour routes
func (h *TourHandler) RegisterRoutes(g *echo.Group, readLimit echo.MiddlewareFunc) {
	tours := g.Group("/tours", readLimit)
	tours.GET("", h.List)
	tours.GET("/unassigned", h.ListUnassigned)
}

// List handles GET /tours, filtered to a date range
func (h *TourHandler) List(c echo.Context) error {
	ctx := c.Request().Context()

	start := c.QueryParam("start")
	end := c.QueryParam("end")
	if start == "" || end == "" {
		return BadRequest("start and end query parameters are required")
	}
	if err := validateDate(start); err != nil {
		return err
	}
	if err := validateDate(end); err != nil {
		return err
	}

	tours, err := h.tours.ListActiveByDateRange(ctx, start, end)
	if err != nil {
		return err
	}

	return SuccessResponse(c, tours)
}

// ListUnassigned handles GET /tours/unassigned
func (h *TourHandler) ListUnassigned(c echo.Context) error {
	ctx := c.Request().Context()

	tours, err := h.tours.ListUnassigned(ctx)
	if err != nil {
		return err
	}

	return SuccessResponse(c, tours)
}
