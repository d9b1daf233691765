package risk

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// RepositoryInterface defines the interface for risk repository operations
type RepositoryInterface interface {
	// Assessment persistence
	SaveAssessment(ctx context.Context, a *Assessment) error
	GetAssessmentByID(ctx context.Context, id uuid.UUID) (*Assessment, error)
	ListFlagged(ctx context.Context, limit, offset int) ([]Assessment, int64, error)

	// Booking history queries backing the behavioral analyzer
	CountIdenticalNotes(ctx context.Context, email, phone, notes string, since time.Time) (int, error)
	CountSubmissionsAtHour(ctx context.Context, email, phone string, hour int, since time.Time) (int, error)
	RecentBookings(ctx context.Context, email, phone string, since time.Time) ([]BookingRecord, error)
}

// Publisher emits assessment events for downstream consumers
type Publisher interface {
	PublishFlagged(ctx context.Context, a *Assessment) error
}
