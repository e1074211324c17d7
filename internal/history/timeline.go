// Package history reduces the persisted status history into views for the API.
package history

import (
	"sort"
	"time"

	"netstatus/internal/models"
)

const (
	// DefaultTimelinePoints controls how many buckets a timeline has.
	DefaultTimelinePoints = 80
	maxDetailsPerPoint    = 4
)

// Bucket classes.
const (
	ClassMissing = "state-missing"
	ClassSuccess = "state-success"
	ClassWarning = "state-warning"
	ClassChanged = "state-changed"
)

type sample struct {
	Timestamp time.Time
	Address   string
}

// BuildAddressTimeline splits [start, end) into points buckets and labels
// each with the Wi-Fi address published during it. A bucket without
// messages inherits the last address published before it. Entries relayed
// from peers are ignored.
func BuildAddressTimeline(entries []models.StatusEntry, start, end time.Time, points int) []models.TimelinePoint {
	if points <= 0 {
		points = DefaultTimelinePoints
	}
	if !end.After(start) {
		end = start.Add(time.Minute)
	}

	samples := make([]sample, 0, len(entries))
	for _, entry := range entries {
		if !entry.Local() || entry.Message.Key != models.StatusKeyIPAddress || entry.Timestamp.IsZero() {
			continue
		}
		samples = append(samples, sample{Timestamp: entry.Timestamp, Address: entry.Message.Value})
	}
	sort.SliceStable(samples, func(i, j int) bool {
		return samples[i].Timestamp.Before(samples[j].Timestamp)
	})

	bucketDuration := end.Sub(start) / time.Duration(points)
	if bucketDuration <= 0 {
		bucketDuration = time.Minute
	}

	var (
		last     string
		haveLast bool
		cursor   int
	)
	for cursor < len(samples) && samples[cursor].Timestamp.Before(start) {
		last = samples[cursor].Address
		haveLast = true
		cursor++
	}

	output := make([]models.TimelinePoint, 0, points)
	for i := 0; i < points; i++ {
		bucketStart := start.Add(time.Duration(i) * bucketDuration)
		bucketEnd := bucketStart.Add(bucketDuration)
		if i == points-1 {
			bucketEnd = end
		}

		var bucket []sample
		bucket, cursor = collectBucketSamples(samples, bucketEnd, cursor)
		point := evaluateBucket(bucket, last, haveLast)
		point.Start = bucketStart
		point.End = bucketEnd
		output = append(output, point)

		if len(bucket) > 0 {
			last = bucket[len(bucket)-1].Address
			haveLast = true
		}
	}
	return output
}

func collectBucketSamples(samples []sample, end time.Time, cursor int) ([]sample, int) {
	j := cursor
	for j < len(samples) && samples[j].Timestamp.Before(end) {
		j++
	}
	if j == cursor {
		return nil, j
	}
	return samples[cursor:j], j
}

func evaluateBucket(bucket []sample, prev string, havePrev bool) models.TimelinePoint {
	if len(bucket) == 0 {
		if !havePrev {
			return models.TimelinePoint{ClassName: ClassMissing, Label: "No data"}
		}
		return steady(prev)
	}

	var details []models.TimelineDetail
	current, haveCurrent := prev, havePrev
	for _, s := range bucket {
		if haveCurrent && s.Address == current {
			continue
		}
		if haveCurrent && len(details) < maxDetailsPerPoint {
			details = append(details, models.TimelineDetail{Timestamp: s.Timestamp, Address: s.Address})
		}
		current, haveCurrent = s.Address, true
	}
	if len(details) == 0 {
		return steady(current)
	}
	return models.TimelinePoint{ClassName: ClassChanged, Label: "Address changed", Details: details}
}

func steady(address string) models.TimelinePoint {
	if address == "" {
		return models.TimelinePoint{ClassName: ClassWarning, Label: "No address"}
	}
	return models.TimelinePoint{ClassName: ClassSuccess, Label: address}
}
