package provider

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSign(t *testing.T) {
	date := time.Date(2025, 10, 15, 15, 30, 0, 0, time.UTC)

	tests := []struct {
		name      string
		accessKey string
		secretKey string
		date      time.Time
		method    string
		path      string
		want      string
	}{
		{
			name:      "post search",
			accessKey: "ak_test_access",
			secretKey: "sk_test_secret",
			date:      date,
			method:    "POST",
			path:      "/booking.json/booking-search",
			want:      "ZHsre6AwdHj7tmVdsNm+hNyNK0M=",
		},
		{
			name:      "get with query string",
			accessKey: "ak_test_access",
			secretKey: "sk_test_secret",
			date:      date,
			method:    "GET",
			path:      "/booking.json/search?start=2025-10-08&end=2026-02-12",
			want:      "CRAaqjFfI2/HxQ2YnNXyNKclOkI=",
		},
		{
			name:      "different credentials",
			accessKey: "key-2",
			secretKey: "another-secret",
			date:      time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
			method:    "GET",
			path:      "/activity.json/42",
			want:      "KAGG5D3Gvsrrigd/qH+VAEbnVkU=",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			signer := NewSigner(tt.accessKey, tt.secretKey)
			assert.Equal(t, tt.want, signer.Sign(tt.date, tt.method, tt.path))
		})
	}
}

func TestSignConvertsToUTC(t *testing.T) {
	signer := NewSigner("ak_test_access", "sk_test_secret")

	loc, err := time.LoadLocation("Europe/Rome")
	require.NoError(t, err)

	utc := time.Date(2025, 10, 15, 15, 30, 0, 0, time.UTC)
	local := utc.In(loc)

	assert.Equal(t, signer.Sign(utc, "POST", "/booking.json/booking-search"),
		signer.Sign(local, "POST", "/booking.json/booking-search"))
}

func TestSignQueryStringChangesSignature(t *testing.T) {
	signer := NewSigner("ak_test_access", "sk_test_secret")
	date := time.Date(2025, 10, 15, 15, 30, 0, 0, time.UTC)

	bare := signer.Sign(date, "GET", "/booking.json/search")
	withQuery := signer.Sign(date, "GET", "/booking.json/search?start=2025-10-08&end=2026-02-12")

	assert.NotEqual(t, bare, withQuery)
}

func TestHeaders(t *testing.T) {
	signer := NewSigner("ak_test_access", "sk_test_secret")
	date := time.Date(2025, 10, 15, 15, 30, 0, 0, time.UTC)

	headers := signer.Headers(date, "POST", "/booking.json/booking-search")

	assert.Equal(t, "2025-10-15 15:30:00", headers[HeaderDate])
	assert.Equal(t, "ak_test_access", headers[HeaderAccessKey])
	assert.Equal(t, "ZHsre6AwdHj7tmVdsNm+hNyNK0M=", headers[HeaderSignature])
}
