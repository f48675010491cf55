package grouping

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/laurel/pkg/models"
)

func tour(title, date, clock string, participants int) models.Tour {
	return models.Tour{
		Title:        title,
		Date:         date,
		Time:         clock,
		Participants: participants,
	}
}

func TestNormalizeTitle(t *testing.T) {
	assert.Equal(t, "uffizi gallery tour", NormalizeTitle("Uffizi Gallery Tour"))
	assert.Equal(t, "uffizi gallery tour", NormalizeTitle("  Uffizi   Gallery\tTour "))
	assert.Equal(t, "", NormalizeTitle("   "))
}

func TestNormalizeTime(t *testing.T) {
	assert.Equal(t, "09:00", NormalizeTime("09:00"))
	assert.Equal(t, "09:00", NormalizeTime("09:00:00"))
	assert.Equal(t, "whenever", NormalizeTime("whenever"))
}

func TestBucketTours(t *testing.T) {
	tours := []models.Tour{
		tour("Uffizi Gallery Tour", "2025-11-01", "09:00", 2),
		tour("Duomo Climb", "2025-11-01", "09:00", 3),
		tour("uffizi  gallery tour", "2025-11-01", "09:00:00", 4),
		tour("Uffizi Gallery Tour", "2025-11-02", "09:00", 2),
	}

	buckets := BucketTours(tours)
	require.Len(t, buckets, 3)

	// Cosmetic title and time differences collapse into one bucket
	assert.Len(t, buckets[0].Tours, 2)
	assert.Equal(t, "uffizi gallery tour", buckets[0].Key.Title)
	assert.Equal(t, 2, buckets[0].Tours[0].Participants)
	assert.Equal(t, 4, buckets[0].Tours[1].Participants)

	assert.Len(t, buckets[1].Tours, 1)
	assert.Len(t, buckets[2].Tours, 1)
}

func TestPackSplitsOverCapacity(t *testing.T) {
	// 5 + 6 participants cannot share a group of nine
	tours := []models.Tour{
		tour("Uffizi Gallery Tour", "2025-11-01", "09:00", 5),
		tour("Uffizi Gallery Tour", "2025-11-01", "09:00", 6),
	}

	bins := Pack(tours, 9)
	require.Len(t, bins, 2)
	assert.Len(t, bins[0], 1)
	assert.Len(t, bins[1], 1)
}

func TestPackGreedyLeftToRight(t *testing.T) {
	tours := []models.Tour{
		tour("T", "2025-11-01", "09:00", 4),
		tour("T", "2025-11-01", "09:00", 4),
		tour("T", "2025-11-01", "09:00", 2),
		tour("T", "2025-11-01", "09:00", 8),
	}

	bins := Pack(tours, 9)
	require.Len(t, bins, 3)
	// 4+4 fit, 2 opens a new bin, 8 pushes it over so 8 goes alone
	assert.Len(t, bins[0], 2)
	assert.Len(t, bins[1], 1)
	assert.Equal(t, 2, bins[1][0].Participants)
	assert.Len(t, bins[2], 1)
	assert.Equal(t, 8, bins[2][0].Participants)
}

func TestPackOversizeTourGetsOwnBin(t *testing.T) {
	tours := []models.Tour{
		tour("T", "2025-11-01", "09:00", 12),
		tour("T", "2025-11-01", "09:00", 3),
	}

	bins := Pack(tours, 9)
	require.Len(t, bins, 2)
	assert.Equal(t, 12, bins[0][0].Participants)
	assert.Equal(t, 3, bins[1][0].Participants)
}

func TestPackEmpty(t *testing.T) {
	assert.Empty(t, Pack(nil, 9))
}
