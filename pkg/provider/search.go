package provider

import (
	"fmt"
	"net/http"
	"net/url"
)

// SearchVariant is one candidate request shape for the booking-search
// operation. Variants are tried in slice order and the ordering is a
// contract: later variants deliberately relax filters, so reordering them
// changes which bookings a sync pass sees first.
type SearchVariant struct {
	Name   string
	Method string
	Path   func(w Window) string
	Body   func(w Window) any
}

const searchPageSize = 1000

// SearchVariants is the ordered fallback list for booking-search
var SearchVariants = []SearchVariant{
	{
		// Primary shape: seller-side search filtered to live statuses
		Name:   "booking-search",
		Method: http.MethodPost,
		Path: func(Window) string {
			return "/booking.json/booking-search"
		},
		Body: func(w Window) any {
			return searchFilter{
				Role:            "SELLER",
				BookingStatuses: []string{"CONFIRMED", "PAID", "RESERVED"},
				PageSize:        searchPageSize,
				StartDateRange: dateRange{
					From:        w.StartDate(),
					To:          w.EndDate(),
					IncludeFrom: true,
					IncludeTo:   true,
				},
			}
		},
	},
	{
		// Same endpoint without the status filter; some date ranges return
		// nothing under the filtered shape
		Name:   "booking-search-unfiltered",
		Method: http.MethodPost,
		Path: func(Window) string {
			return "/booking.json/booking-search"
		},
		Body: func(w Window) any {
			return searchFilter{
				Role:     "SELLER",
				PageSize: searchPageSize,
				StartDateRange: dateRange{
					From:        w.StartDate(),
					To:          w.EndDate(),
					IncludeFrom: true,
					IncludeTo:   true,
				},
			}
		},
	},
	{
		// Legacy GET endpoint, kept last
		Name:   "legacy-search",
		Method: http.MethodGet,
		Path: func(w Window) string {
			q := url.Values{}
			q.Set("start", w.StartDate())
			q.Set("end", w.EndDate())
			return fmt.Sprintf("/booking.json/search?%s", q.Encode())
		},
		Body: func(Window) any { return nil },
	},
}
