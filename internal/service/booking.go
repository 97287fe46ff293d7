package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/beyondfire/cloud-platform/booking-service/internal/apperrors"
	"github.com/beyondfire/cloud-platform/booking-service/internal/config"
	"github.com/beyondfire/cloud-platform/booking-service/internal/logger"
	"github.com/beyondfire/cloud-platform/booking-service/internal/manifest"
	"github.com/beyondfire/cloud-platform/booking-service/internal/models"
	"github.com/beyondfire/cloud-platform/booking-service/internal/repository"
)

// createRetries bounds how often booking creation retries with a fresh
// generated identity after losing an allocation race on insert.
const createRetries = 3

// BookingService owns the booking entity and its lifecycle state machine.
// All transitions go through it; transitions for the same booking are
// serialized by a per-booking lock held across the whole transition,
// including the blocking orchestrator and DNS calls.
type BookingService struct {
	cfg          *config.Config
	templates    TemplateStore
	bookings     BookingStore
	logs         BookingLogStore
	orchestrator Orchestrator
	dns          DNSProvider
	allocator    *IdentityAllocator
	locks        *keyedMutex
}

func NewBookingService(
	cfg *config.Config,
	templates TemplateStore,
	bookings BookingStore,
	logs BookingLogStore,
	orchestrator Orchestrator,
	dns DNSProvider,
) *BookingService {
	return &BookingService{
		cfg:          cfg,
		templates:    templates,
		bookings:     bookings,
		logs:         logs,
		orchestrator: orchestrator,
		dns:          dns,
		allocator: NewIdentityAllocator(
			bookings,
			cfg.Platform.BaseDomain,
			cfg.Platform.PortMin,
			cfg.Platform.PortMax,
		),
		locks: newKeyedMutex(),
	}
}

// CreateBooking books a service for a user: allocates a network identity,
// persists the booking in `pending` and logs its creation. No external
// calls are made.
func (s *BookingService) CreateBooking(ctx context.Context, userID string, req *models.CreateBookingRequest) (*models.BookingResponse, error) {
	template, err := s.templates.GetByID(ctx, req.ServiceID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.Newf(apperrors.CodeTemplateNotFound, "service template %s not found", req.ServiceID)
		}
		return nil, fmt.Errorf("get template: %w", err)
	}
	if !template.Active {
		return nil, apperrors.Newf(apperrors.CodeTemplateNotFound, "service template %s is not available", req.ServiceID)
	}

	var booking *models.Booking
	for attempt := 0; ; attempt++ {
		identity, err := s.allocator.Allocate(ctx, req.ServiceID, req.Subdomain)
		if err != nil {
			return nil, err
		}

		booking = &models.Booking{
			ID:          uuid.New().String(),
			UserID:      userID,
			ServiceID:   template.ID,
			ServiceName: template.Name,
			CustomName:  req.CustomName,
			Domain:      identity.Domain,
			Port:        identity.Port,
			Status:      models.StatusPending,
			License:     req.License,
			ExpiresAt:   time.Now().Add(time.Duration(s.cfg.Platform.BookingTTLDays) * 24 * time.Hour),
		}

		err = s.bookings.Create(ctx, booking)
		if err == nil {
			break
		}

		// A concurrent allocation won the identity between our check and
		// the insert. An explicitly requested subdomain is not retried;
		// generated identities get fresh candidates.
		switch {
		case errors.Is(err, repository.ErrDomainTaken) && req.Subdomain != "":
			return nil, apperrors.Newf(apperrors.CodeDomainInUse, "domain %s is already in use", identity.Domain)
		case errors.Is(err, repository.ErrDomainTaken), errors.Is(err, repository.ErrPortTaken):
			if attempt+1 >= createRetries {
				return nil, apperrors.Newf(apperrors.CodeAllocationExhausted,
					"could not reserve a unique identity after %d attempts", createRetries)
			}
		default:
			return nil, fmt.Errorf("create booking: %w", err)
		}
	}

	s.appendLog(ctx, booking.ID, models.LogLevelInfo,
		fmt.Sprintf("Booking created for service %s (domain %s, port %d)", booking.ServiceName, booking.Domain, booking.Port))

	logger.L().Info("booking created",
		zap.String("booking_id", booking.ID),
		zap.String("service_id", booking.ServiceID),
		zap.String("domain", booking.Domain),
		zap.Int("port", booking.Port))

	return s.buildResponse(ctx, booking, "")
}

// Deploy renders the booking's manifest and asks the orchestrator to run
// it. An orchestrator failure sets the booking to `failed` and no DNS call
// is attempted; a DNS failure after a successful stack creation is a
// logged warning and the booking still becomes `active`.
func (s *BookingService) Deploy(ctx context.Context, bookingID, ownerID string) (*models.BookingResponse, error) {
	s.locks.Lock(bookingID)
	defer s.locks.Unlock(bookingID)

	booking, err := s.getForTransition(ctx, bookingID, ownerID, "deploy")
	if err != nil {
		return nil, err
	}

	booking.Status = models.StatusDeploying
	if err := s.bookings.Update(ctx, booking); err != nil {
		return nil, fmt.Errorf("update booking: %w", err)
	}
	s.appendLog(ctx, booking.ID, models.LogLevelInfo, "Deployment started")

	return s.deployStack(ctx, booking, true)
}

// Resume re-creates the stack of a suspended or failed booking under its
// existing network identity. DNS is left as-is: the record survives
// suspension, and a record missing after a failed deploy stays an operator
// concern rather than a resume side effect.
func (s *BookingService) Resume(ctx context.Context, bookingID, ownerID string) (*models.BookingResponse, error) {
	s.locks.Lock(bookingID)
	defer s.locks.Unlock(bookingID)

	booking, err := s.getForTransition(ctx, bookingID, ownerID, "resume")
	if err != nil {
		return nil, err
	}

	booking.Status = models.StatusDeploying
	if err := s.bookings.Update(ctx, booking); err != nil {
		return nil, fmt.Errorf("update booking: %w", err)
	}
	s.appendLog(ctx, booking.ID, models.LogLevelInfo, "Resume started")

	return s.deployStack(ctx, booking, false)
}

// deployStack is the shared deploy/resume tail: render, ensure a unique
// stack name, create the stack, and (for first deploys) register DNS.
func (s *BookingService) deployStack(ctx context.Context, booking *models.Booking, registerDNS bool) (*models.BookingResponse, error) {
	template, err := s.templates.GetByID(ctx, booking.ServiceID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// The template was removed after booking time; nothing can be
			// rendered anymore.
			return s.failTransition(ctx, booking,
				apperrors.Newf(apperrors.CodeTemplateNotFound, "service template %s no longer exists", booking.ServiceID))
		}
		return nil, fmt.Errorf("get template: %w", err)
	}

	bindings := manifest.ForBooking(booking)
	manifestText := manifest.Render(template.ComposeTemplate, bindings)

	if template.ProxyTemplate != "" {
		if err := s.writeProxyArtifact(booking, template, bindings); err != nil {
			return s.failTransition(ctx, booking,
				apperrors.Wrap(err, apperrors.CodeUnknown, "could not write auxiliary artifact"))
		}
	}

	stackName, err := s.ensureStackName(ctx, booking)
	if err != nil {
		return s.failTransition(ctx, booking, err)
	}

	stackID, err := s.orchestrator.CreateStack(ctx, stackName, manifestText)
	if err != nil {
		return s.failTransition(ctx, booking, err)
	}
	booking.StackID = &stackID

	var dnsWarning string
	if registerDNS {
		dnsWarning = s.registerDNSRecord(ctx, booking)
	}

	booking.Status = models.StatusActive
	if err := s.bookings.Update(ctx, booking); err != nil {
		return nil, fmt.Errorf("update booking: %w", err)
	}
	s.appendLog(ctx, booking.ID, models.LogLevelInfo,
		fmt.Sprintf("Service deployed: stack %s (id %s) serving %s:%d", stackName, stackID, booking.Domain, booking.Port))

	logger.L().Info("booking deployed",
		zap.String("booking_id", booking.ID),
		zap.String("stack_id", stackID),
		zap.String("stack_name", stackName))

	return s.buildResponse(ctx, booking, dnsWarning)
}

// Suspend deletes the booking's stack but keeps its DNS record so the
// suspension is reversible without re-registering DNS. On orchestrator
// failure the booking stays in its prior status.
func (s *BookingService) Suspend(ctx context.Context, bookingID, ownerID string) (*models.BookingResponse, error) {
	s.locks.Lock(bookingID)
	defer s.locks.Unlock(bookingID)

	booking, err := s.getForTransition(ctx, bookingID, ownerID, "suspend")
	if err != nil {
		return nil, err
	}

	if booking.StackID != nil {
		if err := s.orchestrator.DeleteStack(ctx, *booking.StackID); err != nil {
			s.appendLog(ctx, booking.ID, models.LogLevelError,
				fmt.Sprintf("Suspension failed: %v", err))
			resp, _ := s.buildResponse(ctx, booking, "")
			return resp, err
		}
	}

	booking.StackID = nil
	booking.Status = models.StatusSuspended
	if err := s.bookings.Update(ctx, booking); err != nil {
		return nil, fmt.Errorf("update booking: %w", err)
	}
	s.appendLog(ctx, booking.ID, models.LogLevelInfo, "Service suspended; stack removed")

	logger.L().Info("booking suspended", zap.String("booking_id", booking.ID))
	return s.buildResponse(ctx, booking, "")
}

// Delete tears down the booking's external resources best-effort and
// marks it deleted. Cleanup failures are logged and surfaced as a warning
// but never block the terminal transition: the domain and port must always
// become reusable.
func (s *BookingService) Delete(ctx context.Context, bookingID, ownerID string) (*models.BookingResponse, error) {
	s.locks.Lock(bookingID)
	defer s.locks.Unlock(bookingID)

	booking, err := s.getForTransition(ctx, bookingID, ownerID, "delete")
	if err != nil {
		return nil, err
	}

	var warnings []string

	if booking.StackID != nil {
		if err := s.orchestrator.DeleteStack(ctx, *booking.StackID); err != nil {
			msg := fmt.Sprintf("Stack cleanup failed: %v", err)
			s.appendLog(ctx, booking.ID, models.LogLevelWarning, msg)
			warnings = append(warnings, msg)
		}
	}

	if booking.DNSRecordID != nil && s.dns.IsEnabled() {
		if err := s.dns.DeleteRecord(ctx, *booking.DNSRecordID); err != nil {
			msg := fmt.Sprintf("DNS record cleanup failed: %v", err)
			s.appendLog(ctx, booking.ID, models.LogLevelWarning, msg)
			warnings = append(warnings, msg)
		}
	}

	now := time.Now()
	booking.StackID = nil
	booking.DNSRecordID = nil
	booking.Status = models.StatusDeleted
	booking.DeletedAt = &now
	if err := s.bookings.Update(ctx, booking); err != nil {
		return nil, fmt.Errorf("update booking: %w", err)
	}
	s.appendLog(ctx, booking.ID, models.LogLevelInfo, "Booking deleted; domain and port released")

	logger.L().Info("booking deleted",
		zap.String("booking_id", booking.ID),
		zap.Int("cleanup_warnings", len(warnings)))

	return s.buildResponse(ctx, booking, strings.Join(warnings, "; "))
}

// GetBooking returns a booking with its deployment log. A non-empty
// userID restricts the lookup to that owner.
func (s *BookingService) GetBooking(ctx context.Context, bookingID, userID string) (*models.BookingResponse, error) {
	booking, err := s.getBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if userID != "" && booking.UserID != userID {
		return nil, apperrors.Newf(apperrors.CodeBookingNotFound, "booking %s not found", bookingID)
	}
	return s.buildResponse(ctx, booking, "")
}

// ListUserBookings returns a user's non-deleted bookings.
func (s *BookingService) ListUserBookings(ctx context.Context, userID string) ([]*models.Booking, error) {
	return s.bookings.GetByUserID(ctx, userID)
}

// ListBookings returns all bookings, optionally filtered by status.
func (s *BookingService) ListBookings(ctx context.Context, status string) ([]*models.Booking, error) {
	if status != "" && !validStatusFilter(status) {
		return nil, apperrors.Newf(apperrors.CodeInvalid, "unknown status %q", status)
	}
	return s.bookings.List(ctx, status)
}

// Stats summarizes the platform for the admin dashboard.
func (s *BookingService) Stats(ctx context.Context) (*models.PlatformStats, error) {
	byStatus, err := s.bookings.CountByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("count bookings: %w", err)
	}
	templates, err := s.templates.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("count templates: %w", err)
	}

	total := 0
	for _, n := range byStatus {
		total += n
	}

	return &models.PlatformStats{
		TotalBookings:  total,
		ByStatus:       byStatus,
		TotalTemplates: templates,
	}, nil
}

// ensureStackName computes the deterministic stack name and verifies it is
// free in the orchestrator's global namespace, appending a short random
// suffix and re-checking once on collision. The pre-check also keeps a
// stale stack from a previous resume from being silently orphaned under
// the same name.
func (s *BookingService) ensureStackName(ctx context.Context, booking *models.Booking) (string, error) {
	name := fmt.Sprintf("customer-%s-%s", shortID(booking.UserID), booking.ServiceID)

	exists, err := s.orchestrator.StackExists(ctx, name)
	if err != nil {
		return "", err
	}
	if !exists {
		return name, nil
	}

	suffixed := name + "-" + randomSuffix(2)
	exists, err = s.orchestrator.StackExists(ctx, suffixed)
	if err != nil {
		return "", err
	}
	if exists {
		return "", apperrors.Newf(apperrors.CodeOrchestratorError,
			"stack name %s and fallback %s are both taken", name, suffixed)
	}

	s.appendLog(ctx, booking.ID, models.LogLevelInfo,
		fmt.Sprintf("Stack name %s already taken, using %s", name, suffixed))
	return suffixed, nil
}

// registerDNSRecord creates the booking's DNS record. DNS failure is
// never fatal to the deploy; the returned warning is empty on success.
func (s *BookingService) registerDNSRecord(ctx context.Context, booking *models.Booking) string {
	if !s.dns.IsEnabled() {
		s.appendLog(ctx, booking.ID, models.LogLevelInfo, "DNS integration disabled")
		return ""
	}
	if booking.DNSRecordID != nil {
		return ""
	}

	recordID, err := s.dns.CreateRecord(ctx, booking.Domain, s.cfg.Platform.ServerIP)
	if err != nil {
		msg := fmt.Sprintf("DNS record creation failed for %s: %v", booking.Domain, err)
		s.appendLog(ctx, booking.ID, models.LogLevelWarning, msg)
		logger.L().Warn("dns record creation failed",
			zap.String("booking_id", booking.ID),
			zap.String("domain", booking.Domain),
			zap.Error(err))
		return msg
	}

	booking.DNSRecordID = &recordID
	return ""
}

// writeProxyArtifact renders the template's reverse-proxy config and
// persists it where the orchestrator mounts it into the stack.
func (s *BookingService) writeProxyArtifact(booking *models.Booking, template *models.ServiceTemplate, bindings manifest.Bindings) error {
	renderer := manifest.NewRenderer()
	renderer.RegisterAuxiliary(manifest.KindProxy, template.ProxyTemplate)

	content, err := renderer.RenderAuxiliary(manifest.KindProxy, bindings)
	if err != nil {
		return err
	}

	dir := s.cfg.Platform.ArtifactsDir
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create artifacts dir: %w", err)
	}

	path := filepath.Join(dir, booking.UniqueID()+".conf")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write artifact %s: %w", path, err)
	}

	return nil
}

// failTransition marks the booking failed, logs the cause, and returns
// both the updated booking and the underlying error so the caller sees
// which step failed without consulting external logs.
func (s *BookingService) failTransition(ctx context.Context, booking *models.Booking, cause error) (*models.BookingResponse, error) {
	booking.Status = models.StatusFailed
	if err := s.bookings.Update(ctx, booking); err != nil {
		logger.L().Error("could not mark booking failed",
			zap.String("booking_id", booking.ID), zap.Error(err))
	}
	s.appendLog(ctx, booking.ID, models.LogLevelError, fmt.Sprintf("Deployment failed: %v", cause))

	logger.L().Error("booking deployment failed",
		zap.String("booking_id", booking.ID), zap.Error(cause))

	resp, _ := s.buildResponse(ctx, booking, "")
	return resp, cause
}

func (s *BookingService) getBooking(ctx context.Context, bookingID string) (*models.Booking, error) {
	booking, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.Newf(apperrors.CodeBookingNotFound, "booking %s not found", bookingID)
		}
		return nil, fmt.Errorf("get booking: %w", err)
	}
	return booking, nil
}

// getForTransition loads the booking under the caller's lock and checks
// ownership and the state machine. An empty ownerID is the admin path. The
// check runs on the same locked read the transition uses, so ownership and
// status can't diverge between check and transition.
func (s *BookingService) getForTransition(ctx context.Context, bookingID, ownerID, event string) (*models.Booking, error) {
	booking, err := s.getBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if ownerID != "" && booking.UserID != ownerID {
		return nil, apperrors.Newf(apperrors.CodeBookingNotFound, "booking %s not found", bookingID)
	}
	if !models.CanTransition(booking.Status, event) {
		return nil, apperrors.Newf(apperrors.CodeInvalidTransition,
			"cannot %s a booking in status %s", event, booking.Status)
	}
	return booking, nil
}

func (s *BookingService) buildResponse(ctx context.Context, booking *models.Booking, warning string) (*models.BookingResponse, error) {
	logs, err := s.logs.GetByBookingID(ctx, booking.ID)
	if err != nil {
		return nil, fmt.Errorf("get booking logs: %w", err)
	}
	return &models.BookingResponse{Booking: booking, Logs: logs, Warning: warning}, nil
}

// appendLog writes to the booking's append-only deployment log. A failed
// write must not abort a transition mid-flight, so it is only reported to
// the service log.
func (s *BookingService) appendLog(ctx context.Context, bookingID, level, message string) {
	if err := s.logs.Append(ctx, bookingID, level, message); err != nil {
		logger.L().Error("could not append booking log",
			zap.String("booking_id", bookingID), zap.Error(err))
	}
}

func shortID(id string) string {
	if len(id) < 8 {
		return id
	}
	return id[:8]
}

func validStatusFilter(status string) bool {
	switch status {
	case models.StatusPending, models.StatusDeploying, models.StatusActive,
		models.StatusSuspended, models.StatusFailed, models.StatusDeleted:
		return true
	}
	return false
}
