package risk

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/tablevine/booking-risk/pkg/logger"
	"github.com/tablevine/booking-risk/pkg/resilience"
	"go.uber.org/zap"
)

const flaggedSubject = "risk.assessment.flagged"

// FlaggedEvent is the payload published when an assessment crosses the
// flag threshold
type FlaggedEvent struct {
	AssessmentID   uuid.UUID `json:"assessment_id"`
	Email          string    `json:"email"`
	Phone          string    `json:"phone"`
	VenueID        string    `json:"venue_id,omitempty"`
	CompositeScore int       `json:"composite_score"`
	Severity       Severity  `json:"severity"`
	Reasons        []string  `json:"reasons"`
	FlaggedAt      time.Time `json:"flagged_at"`
}

// NATSPublisher publishes assessment events to NATS. A nil publisher is
// valid and drops every event; event delivery is best-effort and never
// blocks the assessment path.
type NATSPublisher struct {
	conn *nats.Conn
}

// NewNATSPublisher connects to the given NATS URL
func NewNATSPublisher(url string) (*NATSPublisher, error) {
	conn, err := nats.Connect(url,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, err
	}
	return &NATSPublisher{conn: conn}, nil
}

var _ Publisher = (*NATSPublisher)(nil)

// PublishFlagged emits a flagged-assessment event
func (p *NATSPublisher) PublishFlagged(ctx context.Context, a *Assessment) error {
	if p == nil || p.conn == nil {
		return nil
	}

	event := FlaggedEvent{
		AssessmentID:   a.ID,
		Email:          a.Email,
		Phone:          a.Phone,
		VenueID:        a.VenueID,
		CompositeScore: a.CompositeScore,
		Severity:       a.Severity,
		Reasons:        a.Reasons,
		FlaggedAt:      a.CreatedAt,
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	_, err = resilience.Retry(ctx, resilience.ConservativeRetryConfig(), func(ctx context.Context) (interface{}, error) {
		return nil, p.conn.Publish(flaggedSubject, payload)
	})
	if err != nil {
		logger.WithContext(ctx).Warn("flagged event publish failed", zap.Error(err))
		return err
	}
	return nil
}

// Close drains the underlying connection
func (p *NATSPublisher) Close() {
	if p != nil && p.conn != nil {
		p.conn.Drain()
	}
}
