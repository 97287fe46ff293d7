package service

import (
	"context"

	"github.com/beyondfire/cloud-platform/booking-service/internal/models"
)

// TemplateStore is the catalog persistence the services depend on.
type TemplateStore interface {
	Create(ctx context.Context, t *models.ServiceTemplate) error
	GetByID(ctx context.Context, id string) (*models.ServiceTemplate, error)
	List(ctx context.Context, activeOnly bool) ([]*models.ServiceTemplate, error)
	Update(ctx context.Context, t *models.ServiceTemplate) error
	Count(ctx context.Context) (int, error)
}

// BookingStore is the booking persistence the services depend on. The
// implementation must enforce domain and port uniqueness among non-deleted
// bookings, surfacing conflicts as repository.ErrDomainTaken /
// repository.ErrPortTaken.
type BookingStore interface {
	Create(ctx context.Context, b *models.Booking) error
	GetByID(ctx context.Context, id string) (*models.Booking, error)
	GetByUserID(ctx context.Context, userID string) ([]*models.Booking, error)
	List(ctx context.Context, status string) ([]*models.Booking, error)
	Update(ctx context.Context, b *models.Booking) error
	DomainInUse(ctx context.Context, domain string) (bool, error)
	PortInUse(ctx context.Context, port int) (bool, error)
	CountByStatus(ctx context.Context) (map[string]int, error)
}

// BookingLogStore is the append-only deployment log.
type BookingLogStore interface {
	Append(ctx context.Context, bookingID, level, message string) error
	GetByBookingID(ctx context.Context, bookingID string) ([]*models.BookingLog, error)
}

// Orchestrator is the container orchestration API the lifecycle manager
// drives. DeleteStack must be idempotent.
type Orchestrator interface {
	StackExists(ctx context.Context, name string) (bool, error)
	CreateStack(ctx context.Context, name, manifest string) (string, error)
	DeleteStack(ctx context.Context, stackID string) error
}

// DNSProvider is the DNS API mapping booking domains to the platform IP.
// DeleteRecord must be idempotent.
type DNSProvider interface {
	IsEnabled() bool
	CreateRecord(ctx context.Context, domain, targetIP string) (string, error)
	DeleteRecord(ctx context.Context, recordID string) error
}
