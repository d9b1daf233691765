package risk

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/tablevine/booking-risk/pkg/logger"
	"go.uber.org/zap"
)

const (
	submissionWindow = 10 * time.Minute
	submissionTTL    = 30 * time.Minute
	burstThreshold   = 3

	deviceWindow = time.Hour
	deviceTTL    = 2 * time.Hour

	venueWindow = 30 * time.Minute

	notesLookback = 7 * 24 * time.Hour
	minNotesLen   = 10

	rapidSubmitGap = 5 * time.Second

	hourPatternLookback = 30 * 24 * time.Hour
	hourPatternMin      = 3

	failedAttemptThreshold = 3
	failedAttemptTTL       = 30 * time.Minute
)

// HistoryStore answers questions about prior bookings sharing a contact.
// Implemented by the assessment repository; behavioral checks treat any
// error as "no signal".
type HistoryStore interface {
	CountIdenticalNotes(ctx context.Context, email, phone, notes string, since time.Time) (int, error)
	CountSubmissionsAtHour(ctx context.Context, email, phone string, hour int, since time.Time) (int, error)
}

// BehavioralAnalyzer scores submission behavior: velocity bursts, duplicate
// notes, device reuse, rapid form completion, time-of-day patterns, failed
// attempts, venue hopping and datacenter origins. Unlike the content
// analyzers it reads and writes shared state, so results depend on cache
// contents at call time.
type BehavioralAnalyzer struct {
	cfg         Config
	cache       VelocityCache
	store       HistoryStore
	datacenters *CIDRMatcher
	now         func() time.Time
}

// NewBehavioralAnalyzer creates a behavioral analyzer. store and datacenters
// may be nil; the checks depending on them are skipped.
func NewBehavioralAnalyzer(cfg Config, cache VelocityCache, store HistoryStore, datacenters *CIDRMatcher) *BehavioralAnalyzer {
	return &BehavioralAnalyzer{
		cfg:         cfg,
		cache:       cache,
		store:       store,
		datacenters: datacenters,
		now:         time.Now,
	}
}

// Analyze runs every behavioral sub-check against the submission. Each check
// is independent and additive; a failing cache or store downgrades its check
// to a no-op rather than failing the assessment.
func (a *BehavioralAnalyzer) Analyze(ctx context.Context, sub *Submission) *Result {
	r := newResult()
	now := a.now()

	a.checkSubmissionVelocity(ctx, r, sub, now)
	a.checkIdenticalNotes(ctx, r, sub, now)
	a.checkDeviceVelocity(ctx, r, sub, now)
	a.checkRapidSubmission(r, sub)
	a.checkHourPattern(ctx, r, sub, now)
	a.checkFailedAttempts(ctx, r, sub)
	a.checkVenueHopping(ctx, r, sub, now)
	a.checkDatacenterIP(r, sub)

	return r.clamp()
}

// checkSubmissionVelocity counts submissions in a 10-minute sliding window
// keyed by (email, phone, ip). The append-prune-store cycle is deliberately
// unguarded; see VelocityCache.
func (a *BehavioralAnalyzer) checkSubmissionVelocity(ctx context.Context, r *Result, sub *Submission, now time.Time) {
	key := velocityKey("velocity", sub.Email, sub.Phone, sub.IPAddress)

	ts, err := a.cache.GetTimestamps(ctx, key)
	if err != nil {
		logger.WithContext(ctx).Warn("velocity window read failed", zap.Error(err))
		return
	}

	window := ts[:0]
	cutoff := now.Add(-submissionWindow)
	for _, t := range ts {
		if t.After(cutoff) {
			window = append(window, t)
		}
	}
	window = append(window, now)

	if err := a.cache.PutTimestamps(ctx, key, window, submissionTTL); err != nil {
		logger.WithContext(ctx).Warn("velocity window write failed", zap.Error(err))
	}

	count := len(window)
	r.Features["submission_count_10m"] = count
	if count > burstThreshold {
		points := (count - burstThreshold) * 10
		if points > 40 {
			points = 40
		}
		r.add(points, "Submission burst detected")
	}
}

// checkIdenticalNotes flags the same free-text notes reused across bookings
// in the last week. Short notes are too generic to match on.
func (a *BehavioralAnalyzer) checkIdenticalNotes(ctx context.Context, r *Result, sub *Submission, now time.Time) {
	if a.store == nil || len(sub.Notes) < minNotesLen {
		return
	}

	count, err := a.store.CountIdenticalNotes(ctx, sub.Email, sub.Phone, sub.Notes, now.Add(-notesLookback))
	if err != nil {
		logger.WithContext(ctx).Warn("identical notes lookup failed", zap.Error(err))
		return
	}
	if count > 1 {
		r.add(25, "Identical notes across bookings")
		r.Features["identical_notes_count"] = count
	}
}

// checkDeviceVelocity tracks submissions per device fingerprint over the
// last hour with tiered scoring.
func (a *BehavioralAnalyzer) checkDeviceVelocity(ctx context.Context, r *Result, sub *Submission, now time.Time) {
	if sub.DeviceFingerprint == "" {
		return
	}
	key := velocityKey("device", sub.DeviceFingerprint)

	ts, err := a.cache.GetTimestamps(ctx, key)
	if err != nil {
		logger.WithContext(ctx).Warn("device window read failed", zap.Error(err))
		return
	}

	window := ts[:0]
	cutoff := now.Add(-deviceWindow)
	for _, t := range ts {
		if t.After(cutoff) {
			window = append(window, t)
		}
	}
	window = append(window, now)

	if err := a.cache.PutTimestamps(ctx, key, window, deviceTTL); err != nil {
		logger.WithContext(ctx).Warn("device window write failed", zap.Error(err))
	}

	count := len(window)
	r.Features["device_count_1h"] = count

	var points int
	switch {
	case count > 20:
		points = 80
	case count > 10:
		points = 60
	case count > 5:
		points = 40
	case count > 3:
		points = 20
	}
	if points > 0 {
		r.add(points, "Device fingerprint reuse")
	}
}

// checkRapidSubmission flags forms confirmed less than five seconds after
// they were first viewed. Humans do not book that fast.
func (a *BehavioralAnalyzer) checkRapidSubmission(r *Result, sub *Submission) {
	if sub.PageViewedAt == nil || sub.ConfirmedAt == nil {
		return
	}
	gap := sub.ConfirmedAt.Sub(*sub.PageViewedAt)
	if gap >= 0 && gap < rapidSubmitGap {
		r.add(30, "Form submitted unusually fast")
		r.Features["submit_gap_ms"] = gap.Milliseconds()
	}
}

// checkHourPattern flags contacts that repeatedly submit at the exact same
// hour of day, a common scheduled-bot signature.
func (a *BehavioralAnalyzer) checkHourPattern(ctx context.Context, r *Result, sub *Submission, now time.Time) {
	if a.store == nil {
		return
	}
	at := now
	if !sub.SubmittedAt.IsZero() {
		at = sub.SubmittedAt
	}

	count, err := a.store.CountSubmissionsAtHour(ctx, sub.Email, sub.Phone, at.Hour(), now.Add(-hourPatternLookback))
	if err != nil {
		logger.WithContext(ctx).Warn("hour pattern lookup failed", zap.Error(err))
		return
	}
	if count >= hourPatternMin {
		r.add(20, "Repeated same-hour submissions")
		r.Features["same_hour_count"] = count
	}
}

// checkFailedAttempts reads (never increments) the failed-attempt counter;
// incrementing is the caller's responsibility when a booking is rejected.
func (a *BehavioralAnalyzer) checkFailedAttempts(ctx context.Context, r *Result, sub *Submission) {
	key := velocityKey("failed", sub.Email, sub.Phone, sub.IPAddress)

	count, err := a.cache.GetCounter(ctx, key)
	if err != nil {
		logger.WithContext(ctx).Warn("failed attempt read failed", zap.Error(err))
		return
	}
	if count > failedAttemptThreshold {
		points := count * 10
		if points > 30 {
			points = 30
		}
		r.add(points, "Multiple failed booking attempts")
		r.Features["failed_attempts"] = count
	}
}

// checkVenueHopping counts distinct venues touched by a contact within the
// last half hour.
func (a *BehavioralAnalyzer) checkVenueHopping(ctx context.Context, r *Result, sub *Submission, now time.Time) {
	if sub.VenueID == "" {
		return
	}
	key := velocityKey("venues", sub.Email, sub.Phone)

	visits, err := a.cache.GetVenueVisits(ctx, key)
	if err != nil {
		logger.WithContext(ctx).Warn("venue window read failed", zap.Error(err))
		return
	}

	window := visits[:0]
	cutoff := now.Add(-venueWindow)
	for _, v := range visits {
		if v.At.After(cutoff) {
			window = append(window, v)
		}
	}
	window = append(window, VenueVisit{VenueID: sub.VenueID, At: now})

	if err := a.cache.PutVenueVisits(ctx, key, window, venueWindow); err != nil {
		logger.WithContext(ctx).Warn("venue window write failed", zap.Error(err))
	}

	distinct := make(map[string]bool, len(window))
	for _, v := range window {
		distinct[v.VenueID] = true
	}
	r.Features["distinct_venues_30m"] = len(distinct)
	if len(distinct) > 3 {
		r.add(25, "Venue hopping detected")
	}
}

// checkDatacenterIP flags submissions arriving from cloud provider ranges
func (a *BehavioralAnalyzer) checkDatacenterIP(r *Result, sub *Submission) {
	if a.datacenters == nil || sub.IPAddress == "" {
		return
	}
	if a.datacenters.Contains(sub.IPAddress) {
		r.add(15, "Datacenter or VPN IP address")
		r.Features["datacenter_ip"] = true
	}
}

// FailedAttemptKey derives the counter key used by both the read side here
// and the increment side in the service layer.
func FailedAttemptKey(email, phone, ip string) string {
	return velocityKey("failed", email, phone, ip)
}

// velocityKey builds a namespaced cache key from a stable hash of its parts
func velocityKey(kind string, parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return fmt.Sprintf("risk:%s:%s", kind, hex.EncodeToString(h.Sum(nil)))
}
