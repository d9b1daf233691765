package risk

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository handles risk assessment data operations
type Repository struct {
	db *pgxpool.Pool
}

// Ensure the concrete repository satisfies the service's requirements.
var _ RepositoryInterface = (*Repository)(nil)

// NewRepository creates a new risk repository
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// SaveAssessment persists a completed risk assessment
func (r *Repository) SaveAssessment(ctx context.Context, a *Assessment) error {
	reasonsJSON, err := json.Marshal(a.Reasons)
	if err != nil {
		return err
	}
	featuresJSON, err := json.Marshal(a.Features)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO risk_assessments (
			id, email, phone, name, ip_address, venue_id,
			email_score, phone_score, name_score, behavior_score,
			composite_score, severity, flagged, reasons, features, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`

	_, err = r.db.Exec(ctx, query,
		a.ID,
		a.Email,
		a.Phone,
		a.Name,
		a.IPAddress,
		a.VenueID,
		a.EmailScore,
		a.PhoneScore,
		a.NameScore,
		a.BehaviorScore,
		a.CompositeScore,
		a.Severity,
		a.Flagged,
		reasonsJSON,
		featuresJSON,
		a.CreatedAt,
	)

	return err
}

// GetAssessmentByID retrieves an assessment by ID
func (r *Repository) GetAssessmentByID(ctx context.Context, id uuid.UUID) (*Assessment, error) {
	query := `
		SELECT id, email, phone, name, ip_address, venue_id,
		       email_score, phone_score, name_score, behavior_score,
		       composite_score, severity, flagged, reasons, features, created_at
		FROM risk_assessments
		WHERE id = $1
	`

	var a Assessment
	var reasonsJSON, featuresJSON []byte

	err := r.db.QueryRow(ctx, query, id).Scan(
		&a.ID,
		&a.Email,
		&a.Phone,
		&a.Name,
		&a.IPAddress,
		&a.VenueID,
		&a.EmailScore,
		&a.PhoneScore,
		&a.NameScore,
		&a.BehaviorScore,
		&a.CompositeScore,
		&a.Severity,
		&a.Flagged,
		&reasonsJSON,
		&featuresJSON,
		&a.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(reasonsJSON, &a.Reasons); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(featuresJSON, &a.Features); err != nil {
		return nil, err
	}

	return &a, nil
}

// ListFlagged returns flagged assessments newest first, with a total count
// for pagination
func (r *Repository) ListFlagged(ctx context.Context, limit, offset int) ([]Assessment, int64, error) {
	var total int64
	countQuery := `SELECT COUNT(*) FROM risk_assessments WHERE flagged = true`
	if err := r.db.QueryRow(ctx, countQuery).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `
		SELECT id, email, phone, name, ip_address, venue_id,
		       email_score, phone_score, name_score, behavior_score,
		       composite_score, severity, flagged, reasons, features, created_at
		FROM risk_assessments
		WHERE flagged = true
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`

	rows, err := r.db.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	assessments := []Assessment{}
	for rows.Next() {
		var a Assessment
		var reasonsJSON, featuresJSON []byte

		err := rows.Scan(
			&a.ID,
			&a.Email,
			&a.Phone,
			&a.Name,
			&a.IPAddress,
			&a.VenueID,
			&a.EmailScore,
			&a.PhoneScore,
			&a.NameScore,
			&a.BehaviorScore,
			&a.CompositeScore,
			&a.Severity,
			&a.Flagged,
			&reasonsJSON,
			&featuresJSON,
			&a.CreatedAt,
		)
		if err != nil {
			return nil, 0, err
		}

		if err := json.Unmarshal(reasonsJSON, &a.Reasons); err != nil {
			return nil, 0, err
		}
		if err := json.Unmarshal(featuresJSON, &a.Features); err != nil {
			return nil, 0, err
		}

		assessments = append(assessments, a)
	}

	return assessments, total, rows.Err()
}

// CountIdenticalNotes counts bookings since the cutoff sharing the contact's
// email or phone with byte-identical notes text
func (r *Repository) CountIdenticalNotes(ctx context.Context, email, phone, notes string, since time.Time) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM bookings
		WHERE (email = $1 OR phone = $2)
		  AND notes = $3
		  AND created_at >= $4
	`

	var count int
	err := r.db.QueryRow(ctx, query, email, phone, notes, since).Scan(&count)
	return count, err
}

// CountSubmissionsAtHour counts bookings since the cutoff by the same contact
// created at the given hour of day
func (r *Repository) CountSubmissionsAtHour(ctx context.Context, email, phone string, hour int, since time.Time) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM bookings
		WHERE (email = $1 OR phone = $2)
		  AND EXTRACT(HOUR FROM created_at) = $3
		  AND created_at >= $4
	`

	var count int
	err := r.db.QueryRow(ctx, query, email, phone, hour, since).Scan(&count)
	return count, err
}

// RecentBookings returns the contact's booking history since the cutoff,
// newest first, for manual review of a flagged submission
func (r *Repository) RecentBookings(ctx context.Context, email, phone string, since time.Time) ([]BookingRecord, error) {
	query := `
		SELECT created_at, COALESCE(notes, ''), status,
		       COALESCE(device_fingerprint, ''), COALESCE(ip_address, '')
		FROM bookings
		WHERE (email = $1 OR phone = $2)
		  AND created_at >= $3
		ORDER BY created_at DESC
	`

	rows, err := r.db.Query(ctx, query, email, phone, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := []BookingRecord{}
	for rows.Next() {
		var rec BookingRecord
		err := rows.Scan(&rec.CreatedAt, &rec.Notes, &rec.Status, &rec.DeviceFingerprint, &rec.IPAddress)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	return records, rows.Err()
}
