package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/laurel/pkg/models"
)

const (
	// HeaderProviderTopic carries the provider's event type
	HeaderProviderTopic = "X-Provider-Topic"
	// HeaderProviderBookingID carries the booking the delivery is about
	HeaderProviderBookingID = "X-Provider-Booking-Id"

	// maxWebhookBody caps how much of a delivery payload is read
	maxWebhookBody = 1 << 20 // 1MB
)

// Ingestor applies provider deliveries
type Ingestor interface {
	Ingest(ctx context.Context, topic, externalBookingID string, payload map[string]any) models.WebhookStatus
}

// WebhookHandler receives provider push notifications
type WebhookHandler struct {
	ingestor Ingestor
}

// NewWebhookHandler creates a new webhook handler
func NewWebhookHandler(ingestor Ingestor) *WebhookHandler {
	return &WebhookHandler{ingestor: ingestor}
}

// RegisterRoutes registers the webhook routes
func (h *WebhookHandler) RegisterRoutes(g *echo.Group, webhookLimit echo.MiddlewareFunc) {
	g.POST("/webhooks/provider", h.Receive, webhookLimit)
}

// Receive handles POST /webhooks/provider. The provider retries anything but
// a 2xx, so every delivery that reaches the ingestor is acknowledged; the
// ingestor records failures in the audit table instead.
func (h *WebhookHandler) Receive(c echo.Context) error {
	ctx := c.Request().Context()

	topic := c.Request().Header.Get(HeaderProviderTopic)
	bookingID := c.Request().Header.Get(HeaderProviderBookingID)

	var payload map[string]any
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookBody))
	if err == nil && len(body) > 0 {
		// A malformed payload is still worth auditing under its headers
		_ = json.Unmarshal(body, &payload)
	}

	if bookingID == "" {
		if id, ok := payload["bookingId"].(string); ok {
			bookingID = id
		}
	}

	status := h.ingestor.Ingest(ctx, topic, bookingID, payload)

	return c.JSON(http.StatusOK, map[string]any{
		"status": status,
	})
}
