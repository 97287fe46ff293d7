package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/beyondfire/cloud-platform/booking-service/internal/models"
)

type BookingRepository struct {
	pool *pgxpool.Pool
}

func NewBookingRepository(pool *pgxpool.Pool) *BookingRepository {
	return &BookingRepository{pool: pool}
}

// Create inserts a new booking. The partial unique indexes on domain and
// port among live bookings make check-then-reserve atomic: a concurrent
// allocation of the same identity loses with ErrDomainTaken/ErrPortTaken
// and the caller retries with fresh candidates.
func (r *BookingRepository) Create(ctx context.Context, b *models.Booking) error {
	query := `
		INSERT INTO bookings (
			id, user_id, service_id, service_name, custom_name,
			domain, port, status, stack_id, dns_record_id,
			license_email, license_password, expires_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13
		)
		RETURNING created_at, updated_at
	`

	var licenseEmail, licensePassword *string
	if b.License != nil {
		licenseEmail = &b.License.Email
		licensePassword = &b.License.Password
	}

	err := r.pool.QueryRow(ctx, query,
		b.ID, b.UserID, b.ServiceID, b.ServiceName, b.CustomName,
		b.Domain, b.Port, b.Status, b.StackID, b.DNSRecordID,
		licenseEmail, licensePassword, b.ExpiresAt,
	).Scan(&b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return mapIdentityConflict(err, "insert booking")
	}

	return nil
}

// GetByID retrieves a booking by ID, including soft-deleted ones so their
// log history stays readable.
func (r *BookingRepository) GetByID(ctx context.Context, id string) (*models.Booking, error) {
	query := selectBooking + ` WHERE id = $1`
	return r.scanBooking(r.pool.QueryRow(ctx, query, id))
}

// GetByUserID retrieves all non-deleted bookings for a user.
func (r *BookingRepository) GetByUserID(ctx context.Context, userID string) ([]*models.Booking, error) {
	query := selectBooking + `
		WHERE user_id = $1 AND status <> 'deleted'
		ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("query bookings: %w", err)
	}
	defer rows.Close()

	return r.scanBookings(rows)
}

// List retrieves all bookings, optionally filtered by status.
func (r *BookingRepository) List(ctx context.Context, status string) ([]*models.Booking, error) {
	query := selectBooking
	args := []any{}
	if status != "" {
		query += ` WHERE status = $1`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query bookings: %w", err)
	}
	defer rows.Close()

	return r.scanBookings(rows)
}

// Update persists the mutable lifecycle fields of a booking.
func (r *BookingRepository) Update(ctx context.Context, b *models.Booking) error {
	query := `
		UPDATE bookings SET
			custom_name = $1,
			status = $2,
			stack_id = $3,
			dns_record_id = $4,
			updated_at = NOW(),
			deleted_at = $5
		WHERE id = $6
	`

	tag, err := r.pool.Exec(ctx, query,
		b.CustomName, b.Status, b.StackID, b.DNSRecordID, b.DeletedAt, b.ID,
	)
	if err != nil {
		return mapIdentityConflict(err, "update booking")
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// DomainInUse reports whether a live booking already holds the domain.
func (r *BookingRepository) DomainInUse(ctx context.Context, domain string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM bookings WHERE domain = $1 AND status <> 'deleted')`
	if err := r.pool.QueryRow(ctx, query, domain).Scan(&exists); err != nil {
		return false, fmt.Errorf("check domain: %w", err)
	}
	return exists, nil
}

// PortInUse reports whether a live booking already holds the port.
func (r *BookingRepository) PortInUse(ctx context.Context, port int) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM bookings WHERE port = $1 AND status <> 'deleted')`
	if err := r.pool.QueryRow(ctx, query, port).Scan(&exists); err != nil {
		return false, fmt.Errorf("check port: %w", err)
	}
	return exists, nil
}

// CountByStatus returns booking counts grouped by status.
func (r *BookingRepository) CountByStatus(ctx context.Context) (map[string]int, error) {
	rows, err := r.pool.Query(ctx, `SELECT status, COUNT(*) FROM bookings GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count bookings: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan booking count: %w", err)
		}
		counts[status] = count
	}
	return counts, rows.Err()
}

const selectBooking = `
	SELECT id, user_id, service_id, service_name, custom_name,
		   domain, port, status, stack_id, dns_record_id,
		   license_email, license_password,
		   created_at, expires_at, updated_at, deleted_at
	FROM bookings`

func (r *BookingRepository) scanBooking(row pgx.Row) (*models.Booking, error) {
	b := &models.Booking{}
	var licenseEmail, licensePassword *string
	err := row.Scan(
		&b.ID, &b.UserID, &b.ServiceID, &b.ServiceName, &b.CustomName,
		&b.Domain, &b.Port, &b.Status, &b.StackID, &b.DNSRecordID,
		&licenseEmail, &licensePassword,
		&b.CreatedAt, &b.ExpiresAt, &b.UpdatedAt, &b.DeletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan booking: %w", err)
	}
	if licenseEmail != nil || licensePassword != nil {
		b.License = &models.LicenseInfo{}
		if licenseEmail != nil {
			b.License.Email = *licenseEmail
		}
		if licensePassword != nil {
			b.License.Password = *licensePassword
		}
	}
	return b, nil
}

func (r *BookingRepository) scanBookings(rows pgx.Rows) ([]*models.Booking, error) {
	var bookings []*models.Booking
	for rows.Next() {
		b, err := r.scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("scan booking row: %w", err)
		}
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}

// mapIdentityConflict translates unique-violation errors from the identity
// indexes into sentinel errors the allocator can branch on.
func mapIdentityConflict(err error, op string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		switch {
		case strings.Contains(pgErr.ConstraintName, "domain"):
			return ErrDomainTaken
		case strings.Contains(pgErr.ConstraintName, "port"):
			return ErrPortTaken
		default:
			return ErrDuplicate
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}
