package models

import "time"

// ScoringWeight is one version of the three signal weights. The
// CURRENT version has a nil ExpiredAt; superseded versions are
// immutable and expire at their successor's CreatedAt.
type ScoringWeight struct {
	Version   int        `json:"version"`
	Question  float64    `json:"question"`
	Order     float64    `json:"order"`
	Track     float64    `json:"track"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiredAt *time.Time `json:"expired_at,omitempty"`
}

// DefaultScoringWeight is returned when no weight has ever been set.
func DefaultScoringWeight() ScoringWeight {
	return ScoringWeight{Version: 0, Question: 1.0, Order: 1.0, Track: 1.0}
}

// SameValues reports whether two weights carry the same triple,
// ignoring version and validity window.
func (w ScoringWeight) SameValues(other ScoringWeight) bool {
	return w.Question == other.Question && w.Order == other.Order && w.Track == other.Track
}
