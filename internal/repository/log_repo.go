package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/beyondfire/cloud-platform/booking-service/internal/models"
)

type LogRepository struct {
	pool *pgxpool.Pool
}

func NewLogRepository(pool *pgxpool.Pool) *LogRepository {
	return &LogRepository{pool: pool}
}

// Append adds an entry to a booking's deployment log. The log is
// append-only; there is no update or delete path.
func (r *LogRepository) Append(ctx context.Context, bookingID, level, message string) error {
	query := `
		INSERT INTO booking_logs (id, booking_id, level, message)
		VALUES ($1, $2, $3, $4)
	`

	_, err := r.pool.Exec(ctx, query, uuid.New().String(), bookingID, level, message)
	if err != nil {
		return fmt.Errorf("insert booking log: %w", err)
	}

	return nil
}

// GetByBookingID retrieves a booking's deployment log in insertion order.
func (r *LogRepository) GetByBookingID(ctx context.Context, bookingID string) ([]*models.BookingLog, error) {
	query := `
		SELECT id, booking_id, level, message, created_at
		FROM booking_logs
		WHERE booking_id = $1
		ORDER BY created_at ASC
	`

	rows, err := r.pool.Query(ctx, query, bookingID)
	if err != nil {
		return nil, fmt.Errorf("query booking logs: %w", err)
	}
	defer rows.Close()

	var entries []*models.BookingLog
	for rows.Next() {
		entry := &models.BookingLog{}
		err := rows.Scan(&entry.ID, &entry.BookingID, &entry.Level, &entry.Message, &entry.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan booking log: %w", err)
		}
		entries = append(entries, entry)
	}

	return entries, rows.Err()
}
