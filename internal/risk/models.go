package risk

import (
	"time"

	"github.com/google/uuid"
)

// Severity buckets a composite score for the review queue
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Result is the outcome of a single analyzer run.
// Score is always within [0, 100]; Reasons are appended in rule evaluation
// order; Features carries rule-specific flags and counts for analytics.
type Result struct {
	Score    int                    `json:"score"`
	Reasons  []string               `json:"reasons"`
	Features map[string]interface{} `json:"features"`
}

func newResult() *Result {
	return &Result{
		Reasons:  []string{},
		Features: make(map[string]interface{}),
	}
}

// add records a triggered rule: points are accumulated raw and clamped
// once at the end of each analyzer.
func (r *Result) add(points int, reason string) {
	r.Score += points
	r.Reasons = append(r.Reasons, reason)
}

// clamp bounds the score to [0, 100]
func (r *Result) clamp() *Result {
	if r.Score > 100 {
		r.Score = 100
	}
	if r.Score < 0 {
		r.Score = 0
	}
	return r
}

// invalid short-circuits an analyzer with the maximum-risk sentinel
func invalid(reason string, featureKey string) *Result {
	r := newResult()
	r.Score = 100
	r.Reasons = append(r.Reasons, reason)
	r.Features[featureKey] = false
	return r
}

// Submission is the raw booking submission handed to the engine.
// All fields except Email, Phone and Name are optional.
type Submission struct {
	Email             string     `json:"email" binding:"required"`
	Phone             string     `json:"phone" binding:"required"`
	Name              string     `json:"name" binding:"required"`
	IPAddress         string     `json:"ip_address,omitempty"`
	DeviceFingerprint string     `json:"device_fingerprint,omitempty"`
	Notes             string     `json:"notes,omitempty"`
	VenueID           string     `json:"venue_id,omitempty"`
	VenueRegion       string     `json:"venue_region,omitempty"`
	SubmittedAt       time.Time  `json:"submitted_at,omitempty"`
	PageViewedAt      *time.Time `json:"page_viewed_at,omitempty"`
	ConfirmedAt       *time.Time `json:"confirmed_at,omitempty"`
}

// Assessment is a persisted risk assessment for a booking submission
type Assessment struct {
	ID              uuid.UUID              `json:"id"`
	Email           string                 `json:"email"`
	Phone           string                 `json:"phone"`
	Name            string                 `json:"name"`
	IPAddress       string                 `json:"ip_address,omitempty"`
	VenueID         string                 `json:"venue_id,omitempty"`
	EmailScore      int                    `json:"email_score"`
	PhoneScore      int                    `json:"phone_score"`
	NameScore       int                    `json:"name_score"`
	BehaviorScore   int                    `json:"behavior_score"`
	CompositeScore  int                    `json:"composite_score"`
	Severity        Severity               `json:"severity"`
	Flagged         bool                   `json:"flagged"`
	Reasons         []string               `json:"reasons"`
	Features        map[string]interface{} `json:"features"`
	CreatedAt       time.Time              `json:"created_at"`
}

// AssessmentResponse is the API view of a full assessment
type AssessmentResponse struct {
	ID             uuid.UUID `json:"id"`
	Email          *Result   `json:"email"`
	Phone          *Result   `json:"phone"`
	Name           *Result   `json:"name"`
	Behavior       *Result   `json:"behavior"`
	CompositeScore int       `json:"composite_score"`
	Severity       Severity  `json:"severity"`
	Flagged        bool      `json:"flagged"`
}

// BookingRecord is the narrowed view of a historical booking used by the
// behavioral analyzer's store queries
type BookingRecord struct {
	CreatedAt         time.Time `json:"created_at"`
	Notes             string    `json:"notes,omitempty"`
	Status            string    `json:"status"`
	DeviceFingerprint string    `json:"device_fingerprint,omitempty"`
	IPAddress         string    `json:"ip_address,omitempty"`
}
