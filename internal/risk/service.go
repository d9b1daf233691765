package risk

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/tablevine/booking-risk/pkg/logger"
	"go.uber.org/zap"
)

// Composite weights per signal channel. Behavior carries the most weight
// because it is the hardest signal to spoof.
const (
	emailWeight    = 0.25
	phoneWeight    = 0.20
	nameWeight     = 0.25
	behaviorWeight = 0.30
)

var (
	assessmentsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "risk_assessments_total",
		Help: "Total number of risk assessments by severity",
	}, []string{"severity"})

	flaggedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "risk_assessments_flagged_total",
		Help: "Total number of assessments that crossed the flag threshold",
	})

	assessmentDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "risk_assessment_duration_seconds",
		Help:    "Time spent running a full four-channel assessment",
		Buckets: prometheus.DefBuckets,
	})
)

// Service orchestrates the four analyzers into a composite assessment
type Service struct {
	email    *EmailAnalyzer
	phone    *PhoneAnalyzer
	name     *NameAnalyzer
	behavior *BehavioralAnalyzer

	repo      RepositoryInterface
	cache     VelocityCache
	publisher Publisher

	flagThreshold int
}

// NewService creates a new risk service. repo and publisher may be nil for
// library-style embedding without persistence or events.
func NewService(cfg Config, cache VelocityCache, repo RepositoryInterface, publisher Publisher, resolver MXResolver, flagThreshold int) (*Service, error) {
	matcher, err := NewCIDRMatcher(cfg.DatacenterCIDRs)
	if err != nil {
		return nil, err
	}

	var store HistoryStore
	if repo != nil {
		store = repo
	}

	return &Service{
		email:         NewEmailAnalyzer(cfg, resolver),
		phone:         NewPhoneAnalyzer(cfg),
		name:          NewNameAnalyzer(cfg),
		behavior:      NewBehavioralAnalyzer(cfg, cache, store, matcher),
		repo:          repo,
		cache:         cache,
		publisher:     publisher,
		flagThreshold: flagThreshold,
	}, nil
}

// AssessEmail scores a single email address
func (s *Service) AssessEmail(ctx context.Context, email string) *Result {
	return s.email.Analyze(ctx, email)
}

// AssessPhone scores a single phone number
func (s *Service) AssessPhone(phone string) *Result {
	return s.phone.Analyze(phone)
}

// AssessName scores a single guest name
func (s *Service) AssessName(name string) *Result {
	return s.name.Analyze(name)
}

// Assess runs all four analyzers over a submission, persists the result and
// publishes an event when it crosses the flag threshold. Persistence and
// event failures are logged but never fail the assessment.
func (s *Service) Assess(ctx context.Context, sub *Submission) (*AssessmentResponse, error) {
	start := time.Now()
	defer func() {
		assessmentDuration.Observe(time.Since(start).Seconds())
	}()

	emailRes := s.email.Analyze(ctx, sub.Email)
	phoneRes := s.phone.Analyze(sub.Phone)
	nameRes := s.name.Analyze(sub.Name)
	behaviorRes := s.behavior.Analyze(ctx, sub)

	composite := compositeScore(emailRes.Score, phoneRes.Score, nameRes.Score, behaviorRes.Score)
	severity := severityFor(composite)
	flagged := composite >= s.flagThreshold

	assessmentsTotal.WithLabelValues(string(severity)).Inc()
	if flagged {
		flaggedTotal.Inc()
	}

	assessment := &Assessment{
		ID:             uuid.New(),
		Email:          sub.Email,
		Phone:          sub.Phone,
		Name:           sub.Name,
		IPAddress:      sub.IPAddress,
		VenueID:        sub.VenueID,
		EmailScore:     emailRes.Score,
		PhoneScore:     phoneRes.Score,
		NameScore:      nameRes.Score,
		BehaviorScore:  behaviorRes.Score,
		CompositeScore: composite,
		Severity:       severity,
		Flagged:        flagged,
		Reasons:        mergeReasons(emailRes, phoneRes, nameRes, behaviorRes),
		Features:       mergeFeatures(emailRes, phoneRes, nameRes, behaviorRes),
		CreatedAt:      time.Now(),
	}

	if s.repo != nil {
		if err := s.repo.SaveAssessment(ctx, assessment); err != nil {
			logger.WithContext(ctx).Error("assessment persist failed",
				zap.String("assessment_id", assessment.ID.String()),
				zap.Error(err))
		}
	}

	if flagged && s.publisher != nil {
		if err := s.publisher.PublishFlagged(ctx, assessment); err != nil {
			logger.WithContext(ctx).Warn("flagged event publish failed",
				zap.String("assessment_id", assessment.ID.String()),
				zap.Error(err))
		}
	}

	return &AssessmentResponse{
		ID:             assessment.ID,
		Email:          emailRes,
		Phone:          phoneRes,
		Name:           nameRes,
		Behavior:       behaviorRes,
		CompositeScore: composite,
		Severity:       severity,
		Flagged:        flagged,
	}, nil
}

// RecordFailedAttempt increments the failed-attempt counter read by the
// behavioral analyzer. Called when a booking is rejected downstream.
func (s *Service) RecordFailedAttempt(ctx context.Context, email, phone, ip string) error {
	_, err := s.cache.IncrementCounter(ctx, FailedAttemptKey(email, phone, ip), failedAttemptTTL)
	return err
}

// GetAssessment returns a persisted assessment by ID
func (s *Service) GetAssessment(ctx context.Context, id uuid.UUID) (*Assessment, error) {
	return s.repo.GetAssessmentByID(ctx, id)
}

// ListFlagged returns flagged assessments for the review queue
func (s *Service) ListFlagged(ctx context.Context, limit, offset int) ([]Assessment, int64, error) {
	return s.repo.ListFlagged(ctx, limit, offset)
}

// ContactHistory returns the booking history an analyst sees when reviewing
// a flagged contact
func (s *Service) ContactHistory(ctx context.Context, email, phone string, lookback time.Duration) ([]BookingRecord, error) {
	return s.repo.RecentBookings(ctx, email, phone, time.Now().Add(-lookback))
}

// compositeScore blends the four channel scores into one 0-100 value
func compositeScore(email, phone, name, behavior int) int {
	weighted := emailWeight*float64(email) +
		phoneWeight*float64(phone) +
		nameWeight*float64(name) +
		behaviorWeight*float64(behavior)
	score := int(math.Round(weighted))
	if score > 100 {
		score = 100
	}
	return score
}

func severityFor(score int) Severity {
	switch {
	case score >= 90:
		return SeverityCritical
	case score >= 70:
		return SeverityHigh
	case score >= 40:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

func mergeReasons(results ...*Result) []string {
	merged := []string{}
	for _, r := range results {
		merged = append(merged, r.Reasons...)
	}
	return merged
}

func mergeFeatures(results ...*Result) map[string]interface{} {
	prefixes := []string{"email", "phone", "name", "behavior"}
	merged := make(map[string]interface{})
	for i, r := range results {
		for k, v := range r.Features {
			merged[prefixes[i]+"."+k] = v
		}
	}
	return merged
}
