package provider

import "time"

// Booking is one upstream reservation payload. The shape varies by
// integration path, so it stays an opaque document until the transformer
// applies its extractor chains.
type Booking map[string]any

// Window is the inclusive date range a search covers
type Window struct {
	Start time.Time
	End   time.Time
}

// StartDate returns the window start as YYYY-MM-DD
func (w Window) StartDate() string {
	return w.Start.Format("2006-01-02")
}

// EndDate returns the window end as YYYY-MM-DD
func (w Window) EndDate() string {
	return w.End.Format("2006-01-02")
}

// searchFilter is the JSON body of the primary booking-search shape
type searchFilter struct {
	Role            string    `json:"role"`
	BookingStatuses []string  `json:"bookingStatuses,omitempty"`
	PageSize        int       `json:"pageSize"`
	StartDateRange  dateRange `json:"startDateRange"`
}

type dateRange struct {
	From        string `json:"from"`
	To          string `json:"to"`
	IncludeFrom bool   `json:"includeFrom"`
	IncludeTo   bool   `json:"includeTo"`
}
