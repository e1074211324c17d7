package models

import "time"

// TimelinePoint represents a single compact bucket in the address timeline.
type TimelinePoint struct {
	ClassName string           `json:"className"`
	Label     string           `json:"label"`
	Start     time.Time        `json:"start"`
	End       time.Time        `json:"end"`
	Details   []TimelineDetail `json:"details,omitempty"`
}

// TimelineDetail records an address change inside a bucket.
type TimelineDetail struct {
	Timestamp time.Time `json:"timestamp"`
	Address   string    `json:"address"`
}
