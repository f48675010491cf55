package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/laurel/pkg/models"
)

type fakeIngestor struct {
	status models.WebhookStatus

	topic     string
	bookingID string
	payload   map[string]any
}

func (f *fakeIngestor) Ingest(_ context.Context, topic, externalBookingID string, payload map[string]any) models.WebhookStatus {
	f.topic = topic
	f.bookingID = externalBookingID
	f.payload = payload
	return f.status
}

func postWebhook(h *WebhookHandler, headers map[string]string, body string) *httptest.ResponseRecorder {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/provider", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.Receive(c); err != nil {
		e.HTTPErrorHandler(err, c)
	}
	return rec
}

func TestReceivePassesHeadersAndPayload(t *testing.T) {
	ingestor := &fakeIngestor{status: models.WebhookStatusProcessed}
	h := NewWebhookHandler(ingestor)

	rec := postWebhook(h, map[string]string{
		HeaderProviderTopic:     "bookings/update",
		HeaderProviderBookingID: "B-500",
	}, `{"bookingId": "B-500", "note": "moved"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "bookings/update", ingestor.topic)
	assert.Equal(t, "B-500", ingestor.bookingID)
	require.NotNil(t, ingestor.payload)
	assert.Equal(t, "moved", ingestor.payload["note"])
	assert.Contains(t, rec.Body.String(), "processed")
}

func TestReceiveFallsBackToPayloadBookingID(t *testing.T) {
	ingestor := &fakeIngestor{status: models.WebhookStatusProcessed}
	h := NewWebhookHandler(ingestor)

	postWebhook(h, map[string]string{
		HeaderProviderTopic: "bookings/create",
	}, `{"bookingId": "B-700"}`)

	assert.Equal(t, "B-700", ingestor.bookingID)
}

func TestReceiveAcknowledgesFailedIngestion(t *testing.T) {
	ingestor := &fakeIngestor{status: models.WebhookStatusFailed}
	h := NewWebhookHandler(ingestor)

	// The provider retries anything but a 2xx; failures are audited, not bounced
	rec := postWebhook(h, map[string]string{
		HeaderProviderTopic:     "bookings/create",
		HeaderProviderBookingID: "B-500",
	}, `{}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "failed")
}

func TestReceiveToleratesMalformedBody(t *testing.T) {
	ingestor := &fakeIngestor{status: models.WebhookStatusIgnored}
	h := NewWebhookHandler(ingestor)

	rec := postWebhook(h, map[string]string{
		HeaderProviderTopic:     "bookings/update",
		HeaderProviderBookingID: "B-500",
	}, `not json at all`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "B-500", ingestor.bookingID)
	assert.Nil(t, ingestor.payload)
}
