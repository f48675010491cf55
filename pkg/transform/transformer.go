// Package transform maps opaque upstream booking payloads onto local tour
// records. Payload shapes vary by integration path, so every field resolves
// through an ordered first-match-wins extractor chain.
package transform

import (
	"fmt"
	"strings"
	"time"

	"github.com/Ramsey-B/laurel/pkg/database"
	"github.com/Ramsey-B/laurel/pkg/extract"
	"github.com/Ramsey-B/laurel/pkg/models"
	"github.com/Ramsey-B/laurel/pkg/provider"
)

// TitleFallback is used when no extractor yields a product title
const TitleFallback = "Untitled Tour"

// Transformer derives local tour fields from raw provider payloads. It is
// pure: no I/O, no clock reads beyond parsing payload timestamps.
type Transformer struct {
	evaluator *extract.Evaluator

	idChain           extract.Chain
	confirmationChain extract.Chain
	titleChain        extract.Chain
	startChain        extract.Chain
	creationChain     extract.Chain
	participantsChain extract.Chain
	paymentChain      extract.Chain
	amountChain       extract.Chain
	expectedChain     extract.Chain
	durationChain     extract.Chain
	nameChain         extract.Chain
	emailChain        extract.Chain
	phoneChain        extract.Chain
}

// NewTransformer creates a transformer with the standard extractor chains
func NewTransformer() *Transformer {
	return &Transformer{
		evaluator: extract.NewEvaluator(),
		idChain: extract.Chain{
			{Expression: "bookingId"},
			{Expression: "id"},
		},
		confirmationChain: extract.Chain{
			{Expression: "confirmationCode"},
			{Expression: "productBookings[0].confirmationCode"},
		},
		titleChain: extract.Chain{
			{Expression: "productBookings[0].product.title"},
			{Expression: "product.title"},
		},
		startChain: extract.Chain{
			{Expression: "productBookings[0].startDateTime"},
			{Expression: "productBookings[0].startDate"},
			{Expression: "startDateTime"},
			{Expression: "startDate"},
		},
		creationChain: extract.Chain{
			{Expression: "creationDate"},
			{Expression: "createdAt"},
		},
		participantsChain: extract.Chain{
			// An empty category list sums to zero, which must not shadow the
			// top-level total
			{Expression: "sum(productBookings[0].priceCategoryBookings[].quantity)", Transform: positiveInt},
			{Expression: "totalParticipants", Transform: positiveInt},
		},
		paymentChain: extract.Chain{
			{Expression: "paymentStatus"},
			{Expression: "status"},
		},
		amountChain: extract.Chain{
			{Expression: "totalPrice"},
			{Expression: "paidAmount"},
		},
		expectedChain: extract.Chain{
			{Expression: "totalPrice"},
		},
		durationChain: extract.Chain{
			{Expression: "productBookings[0].product.durationMinutes"},
			{Expression: "product.durationMinutes"},
		},
		nameChain: extract.Chain{
			{Expression: "customer.name"},
			{Expression: "join(' ', [customer.firstName, customer.lastName])"},
		},
		emailChain: extract.Chain{
			{Expression: "customer.email"},
		},
		phoneChain: extract.Chain{
			{Expression: "customer.phoneNumber"},
			{Expression: "customer.phone"},
		},
	}
}

// Transform maps one upstream booking to the sync-owned fields of a tour.
// The returned record carries no identity or assignment state; the
// reconciler owns those.
func (t *Transformer) Transform(booking provider.Booking) (*models.Tour, error) {
	data := map[string]any(booking)

	tour := &models.Tour{
		RawPayload: database.JSONB[map[string]any]{Data: data},
	}

	if id, ok := t.idChain.FirstString(t.evaluator, data); ok {
		tour.ExternalBookingID = &id
	}
	tour.ConfirmationCode, _ = t.confirmationChain.FirstString(t.evaluator, data)

	if tour.ExternalBookingID == nil && tour.ConfirmationCode == "" {
		return nil, fmt.Errorf("booking has no usable identifier")
	}

	if title, ok := t.titleChain.FirstString(t.evaluator, data); ok {
		tour.Title = title
	} else {
		tour.Title = TitleFallback
	}

	tour.Date, tour.Time = t.resolveStart(data)
	tour.Participants = t.resolveParticipants(data)
	tour.PaymentStatus = t.resolvePayment(data)

	if raw, ok := t.amountChain.First(t.evaluator, data); ok {
		if amount, ok := extract.ToFloat(raw); ok {
			tour.Amount = amount
		}
	}
	if raw, ok := t.expectedChain.First(t.evaluator, data); ok {
		if amount, ok := extract.ToFloat(raw); ok {
			tour.ExpectedAmount = amount
		}
	}
	if raw, ok := t.durationChain.First(t.evaluator, data); ok {
		if minutes, ok := extract.ToInt(raw); ok {
			tour.DurationMinutes = minutes
		}
	}

	tour.CustomerName, _ = t.nameChain.FirstString(t.evaluator, data)
	tour.CustomerEmail, _ = t.emailChain.FirstString(t.evaluator, data)
	tour.CustomerPhone, _ = t.phoneChain.FirstString(t.evaluator, data)

	return tour, nil
}

// resolveStart finds the departure date and time. Start timestamps win; when
// only a creation timestamp exists the time falls back to the placeholder.
func (t *Transformer) resolveStart(data map[string]any) (string, string) {
	if raw, ok := t.startChain.First(t.evaluator, data); ok {
		if date, clock, ok := parseTimestamp(raw); ok {
			return date, clock
		}
	}

	if raw, ok := t.creationChain.First(t.evaluator, data); ok {
		if date, _, ok := parseTimestamp(raw); ok {
			return date, models.PlaceholderTime
		}
	}

	return "", models.PlaceholderTime
}

func (t *Transformer) resolveParticipants(data map[string]any) int {
	if raw, ok := t.participantsChain.First(t.evaluator, data); ok {
		if count, ok := extract.ToInt(raw); ok && count > 0 {
			return count
		}
	}
	return 1
}

func (t *Transformer) resolvePayment(data map[string]any) models.PaymentStatus {
	status, _ := t.paymentChain.FirstString(t.evaluator, data)
	switch strings.ToUpper(strings.TrimSpace(status)) {
	case "PAID", "INVOICED":
		return models.PaymentStatusPaid
	case "PARTIALLY_PAID":
		return models.PaymentStatusPartial
	default:
		return models.PaymentStatusUnpaid
	}
}

// timestampLayouts are the string formats start times arrive in
var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// positiveInt accepts only integral values greater than zero
func positiveInt(v any) (any, bool) {
	n, ok := extract.ToInt(v)
	if !ok || n <= 0 {
		return nil, false
	}
	return n, true
}

// parseTimestamp accepts epoch milliseconds or a datetime string and splits
// it into date and HH:MM parts
func parseTimestamp(raw any) (string, string, bool) {
	switch v := raw.(type) {
	case float64:
		ts := time.UnixMilli(int64(v)).UTC()
		return ts.Format("2006-01-02"), ts.Format("15:04"), true
	case string:
		value := strings.TrimSpace(v)
		for _, layout := range timestampLayouts {
			if ts, err := time.Parse(layout, value); err == nil {
				return ts.Format("2006-01-02"), ts.Format("15:04"), true
			}
		}
		return "", "", false
	default:
		return "", "", false
	}
}
