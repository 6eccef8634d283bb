package entity

import "time"

const (
	DefaultAreaName              = "Custom Area"
	DefaultUpdateIntervalSeconds = 60
	MinUpdateIntervalSeconds     = 30
	MaxUpdateIntervalSeconds     = 600
)

// BoundingBox is a rectangular lat/lon region in decimal degrees
type BoundingBox struct {
	MinLatitude  float64 `bson:"minLatitude" json:"minLatitude"`
	MaxLatitude  float64 `bson:"maxLatitude" json:"maxLatitude"`
	MinLongitude float64 `bson:"minLongitude" json:"minLongitude"`
	MaxLongitude float64 `bson:"maxLongitude" json:"maxLongitude"`
}

// Valid reports whether the box lies within world bounds with min <= max on both axes
func (b BoundingBox) Valid() bool {
	// positive comparisons so NaN fails every check
	if !(b.MinLatitude >= -90 && b.MaxLatitude <= 90 && b.MinLatitude <= b.MaxLatitude) {
		return false
	}
	if !(b.MinLongitude >= -180 && b.MaxLongitude <= 180 && b.MinLongitude <= b.MaxLongitude) {
		return false
	}
	return true
}

// FlightSubscription is a connection's registered interest in one area
type FlightSubscription struct {
	ID                    string      `bson:"_id" json:"id"`
	ConnectionID          string      `bson:"connectionId" json:"connectionId"`
	UserID                *string     `bson:"userId,omitempty" json:"userId,omitempty"`
	AreaName              string      `bson:"areaName" json:"areaName"`
	Area                  BoundingBox `bson:"area" json:"area"`
	UpdateIntervalSeconds int         `bson:"updateIntervalSeconds" json:"updateIntervalSeconds"`
	IsActive              bool        `bson:"isActive" json:"isActive"`
	CreatedAt             time.Time   `bson:"createdAt" json:"createdAt"`
	LastUpdatedAt         time.Time   `bson:"lastUpdatedAt" json:"lastUpdatedAt"`
}

// UpdateInterval returns the subscription's refresh cadence
func (s *FlightSubscription) UpdateInterval() time.Duration {
	return time.Duration(s.UpdateIntervalSeconds) * time.Second
}

// IsDue reports whether the subscription's interval has elapsed since its last update
func (s *FlightSubscription) IsDue(now time.Time) bool {
	return now.Sub(s.LastUpdatedAt) >= s.UpdateInterval()
}
