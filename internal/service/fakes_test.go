package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/beyondfire/cloud-platform/booking-service/internal/models"
	"github.com/beyondfire/cloud-platform/booking-service/internal/repository"
)

// fakeBookingStore keeps bookings in memory and enforces the same
// domain/port uniqueness among non-deleted bookings that the database
// schema does.
type fakeBookingStore struct {
	mu       sync.Mutex
	bookings map[string]*models.Booking

	createErr error
	updateErr error
}

func newFakeBookingStore() *fakeBookingStore {
	return &fakeBookingStore{bookings: make(map[string]*models.Booking)}
}

func (f *fakeBookingStore) Create(ctx context.Context, b *models.Booking) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	for _, existing := range f.bookings {
		if existing.Status == models.StatusDeleted {
			continue
		}
		if existing.Domain == b.Domain {
			return repository.ErrDomainTaken
		}
		if existing.Port == b.Port {
			return repository.ErrPortTaken
		}
	}
	stored := *b
	f.bookings[b.ID] = &stored
	return nil
}

func (f *fakeBookingStore) GetByID(ctx context.Context, id string) (*models.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bookings[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *b
	return &copied, nil
}

func (f *fakeBookingStore) GetByUserID(ctx context.Context, userID string) ([]*models.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Booking
	for _, b := range f.bookings {
		if b.UserID == userID && b.Status != models.StatusDeleted {
			copied := *b
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (f *fakeBookingStore) List(ctx context.Context, status string) ([]*models.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Booking
	for _, b := range f.bookings {
		if status == "" || b.Status == status {
			copied := *b
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (f *fakeBookingStore) Update(ctx context.Context, b *models.Booking) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return f.updateErr
	}
	if _, ok := f.bookings[b.ID]; !ok {
		return repository.ErrNotFound
	}
	stored := *b
	f.bookings[b.ID] = &stored
	return nil
}

func (f *fakeBookingStore) DomainInUse(ctx context.Context, domain string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, b := range f.bookings {
		if b.Status != models.StatusDeleted && b.Domain == domain {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeBookingStore) PortInUse(ctx context.Context, port int) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, b := range f.bookings {
		if b.Status != models.StatusDeleted && b.Port == port {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeBookingStore) CountByStatus(ctx context.Context) (map[string]int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	counts := make(map[string]int)
	for _, b := range f.bookings {
		counts[b.Status]++
	}
	return counts, nil
}

type fakeTemplateStore struct {
	mu        sync.Mutex
	templates map[string]*models.ServiceTemplate
}

func newFakeTemplateStore(templates ...*models.ServiceTemplate) *fakeTemplateStore {
	f := &fakeTemplateStore{templates: make(map[string]*models.ServiceTemplate)}
	for _, t := range templates {
		f.templates[t.ID] = t
	}
	return f
}

func (f *fakeTemplateStore) Create(ctx context.Context, t *models.ServiceTemplate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.templates[t.ID]; ok {
		return repository.ErrDuplicate
	}
	f.templates[t.ID] = t
	return nil
}

func (f *fakeTemplateStore) GetByID(ctx context.Context, id string) (*models.ServiceTemplate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.templates[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *t
	return &copied, nil
}

func (f *fakeTemplateStore) List(ctx context.Context, activeOnly bool) ([]*models.ServiceTemplate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.ServiceTemplate
	for _, t := range f.templates {
		if !activeOnly || t.Active {
			copied := *t
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (f *fakeTemplateStore) Update(ctx context.Context, t *models.ServiceTemplate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.templates[t.ID]; !ok {
		return repository.ErrNotFound
	}
	f.templates[t.ID] = t
	return nil
}

func (f *fakeTemplateStore) Count(ctx context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.templates), nil
}

type fakeLogStore struct {
	mu      sync.Mutex
	entries map[string][]*models.BookingLog
}

func newFakeLogStore() *fakeLogStore {
	return &fakeLogStore{entries: make(map[string][]*models.BookingLog)}
}

func (f *fakeLogStore) Append(ctx context.Context, bookingID, level, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries[bookingID] = append(f.entries[bookingID], &models.BookingLog{
		BookingID: bookingID,
		Level:     level,
		Message:   message,
	})
	return nil
}

func (f *fakeLogStore) GetByBookingID(ctx context.Context, bookingID string) ([]*models.BookingLog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*models.BookingLog(nil), f.entries[bookingID]...), nil
}

func (f *fakeLogStore) messages(bookingID string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, e := range f.entries[bookingID] {
		out = append(out, e.Message)
	}
	return out
}

// fakeOrchestrator records stacks by name and can be scripted to fail.
type fakeOrchestrator struct {
	mu        sync.Mutex
	stacks    map[string]string
	manifests map[string]string
	nextID    int
	deleted   []string

	createErr error
	deleteErr error
	existsErr error
}

func newFakeOrchestrator() *fakeOrchestrator {
	return &fakeOrchestrator{
		stacks:    make(map[string]string),
		manifests: make(map[string]string),
	}
}

func (f *fakeOrchestrator) StackExists(ctx context.Context, name string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.existsErr != nil {
		return false, f.existsErr
	}
	_, ok := f.stacks[name]
	return ok, nil
}

func (f *fakeOrchestrator) CreateStack(ctx context.Context, name, content string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return "", f.createErr
	}
	f.nextID++
	id := fmt.Sprintf("%d", f.nextID)
	f.stacks[name] = id
	f.manifests[name] = content
	return id, nil
}

func (f *fakeOrchestrator) DeleteStack(ctx context.Context, stackID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	for name, id := range f.stacks {
		if id == stackID {
			delete(f.stacks, name)
			break
		}
	}
	f.deleted = append(f.deleted, stackID)
	return nil
}

type fakeDNS struct {
	mu      sync.Mutex
	enabled bool
	records map[string]string
	nextID  int
	deleted []string

	createErr error
	deleteErr error
}

func newFakeDNS(enabled bool) *fakeDNS {
	return &fakeDNS{enabled: enabled, records: make(map[string]string)}
}

func (f *fakeDNS) IsEnabled() bool { return f.enabled }

func (f *fakeDNS) CreateRecord(ctx context.Context, domain, ip string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return "", f.createErr
	}
	f.nextID++
	id := fmt.Sprintf("rec-%d", f.nextID)
	f.records[id] = domain
	return id, nil
}

func (f *fakeDNS) DeleteRecord(ctx context.Context, recordID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	delete(f.records, recordID)
	f.deleted = append(f.deleted, recordID)
	return nil
}
