// Package grouping assembles co-departing tours into capacity-limited
// groups, one guide per group.
package grouping

import (
	"strings"
	"time"

	"github.com/Ramsey-B/laurel/pkg/models"
)

// DefaultCapacity is the participant ceiling per group
const DefaultCapacity = 9

// BucketKey identifies one set of co-departing tours
type BucketKey struct {
	Title string
	Date  string
	Time  string
}

// Bucket is an ordered set of tours sharing a key
type Bucket struct {
	Key   BucketKey
	Tours []models.Tour
}

// NormalizeTitle trims, collapses internal whitespace and case-folds a tour
// title so cosmetic differences land in the same bucket
func NormalizeTitle(title string) string {
	return strings.ToLower(strings.Join(strings.Fields(title), " "))
}

// NormalizeTime reduces a time value to HH:MM
func NormalizeTime(value string) string {
	for _, layout := range []string{"15:04:05", "15:04"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t.Format("15:04")
		}
	}
	return value
}

// BucketTours splits tours into buckets keyed by (normalized title, date,
// HH:MM). Both bucket order and the tour order inside each bucket preserve
// the input order.
func BucketTours(tours []models.Tour) []Bucket {
	index := make(map[BucketKey]int)
	var buckets []Bucket

	for _, tour := range tours {
		key := BucketKey{
			Title: NormalizeTitle(tour.Title),
			Date:  tour.Date,
			Time:  NormalizeTime(tour.Time),
		}

		i, ok := index[key]
		if !ok {
			i = len(buckets)
			index[key] = i
			buckets = append(buckets, Bucket{Key: key})
		}
		buckets[i].Tours = append(buckets[i].Tours, tour)
	}

	return buckets
}

// Pack splits a bucket's tours into bins of at most capacity participants.
// Greedy left to right: a bin closes when the next tour would push it over
// capacity. A tour that alone exceeds capacity still occupies its own bin.
func Pack(tours []models.Tour, capacity int) [][]models.Tour {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}

	var bins [][]models.Tour
	var current []models.Tour
	total := 0

	for _, tour := range tours {
		if len(current) > 0 && total+tour.Participants > capacity {
			bins = append(bins, current)
			current = nil
			total = 0
		}
		current = append(current, tour)
		total += tour.Participants
	}
	if len(current) > 0 {
		bins = append(bins, current)
	}

	return bins
}
