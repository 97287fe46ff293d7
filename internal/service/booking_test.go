package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/beyondfire/cloud-platform/booking-service/internal/apperrors"
	"github.com/beyondfire/cloud-platform/booking-service/internal/config"
	"github.com/beyondfire/cloud-platform/booking-service/internal/models"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := &config.Config{}
	cfg.Platform.BaseDomain = "apps.example.com"
	cfg.Platform.ServerIP = "203.0.113.10"
	cfg.Platform.PortMin = 10000
	cfg.Platform.PortMax = 19999
	cfg.Platform.BookingTTLDays = 30
	cfg.Platform.ArtifactsDir = t.TempDir()
	return cfg
}

func giteaTemplate() *models.ServiceTemplate {
	return &models.ServiceTemplate{
		ID:              "gitea",
		Name:            "Gitea",
		Description:     "Self-hosted git service",
		Price:           9.99,
		Image:           "gitea/gitea:1.22",
		ComposeTemplate: "services:\n  app:\n    image: gitea/gitea:1.22\n    ports:\n      - \"{{PORT}}:3000\"\n",
		Active:          true,
	}
}

type bookingFixture struct {
	svc          *BookingService
	bookings     *fakeBookingStore
	templates    *fakeTemplateStore
	logs         *fakeLogStore
	orchestrator *fakeOrchestrator
	dns          *fakeDNS
}

func newBookingFixture(t *testing.T, dnsEnabled bool) *bookingFixture {
	t.Helper()
	f := &bookingFixture{
		bookings:     newFakeBookingStore(),
		templates:    newFakeTemplateStore(giteaTemplate()),
		logs:         newFakeLogStore(),
		orchestrator: newFakeOrchestrator(),
		dns:          newFakeDNS(dnsEnabled),
	}
	f.svc = NewBookingService(testConfig(t), f.templates, f.bookings, f.logs, f.orchestrator, f.dns)
	return f
}

func (f *bookingFixture) create(t *testing.T, userID string) *models.Booking {
	t.Helper()
	resp, err := f.svc.CreateBooking(context.Background(), userID, &models.CreateBookingRequest{
		ServiceID:  "gitea",
		CustomName: "My Git",
	})
	if err != nil {
		t.Fatalf("CreateBooking: %v", err)
	}
	return resp.Booking
}

func TestCreateBooking(t *testing.T) {
	f := newBookingFixture(t, false)

	booking := f.create(t, "11111111-aaaa-bbbb-cccc-dddddddddddd")

	if booking.Status != models.StatusPending {
		t.Errorf("status = %s, want pending", booking.Status)
	}
	if booking.Port < 10000 || booking.Port > 19999 {
		t.Errorf("port %d outside range", booking.Port)
	}
	if !strings.HasSuffix(booking.Domain, ".apps.example.com") {
		t.Errorf("domain %q not under base domain", booking.Domain)
	}
	if booking.ExpiresAt.IsZero() {
		t.Error("expiry not set")
	}
	if msgs := f.logs.messages(booking.ID); len(msgs) != 1 {
		t.Errorf("got %d log entries after create, want 1", len(msgs))
	}
}

func TestCreateBookingUnknownTemplate(t *testing.T) {
	f := newBookingFixture(t, false)

	_, err := f.svc.CreateBooking(context.Background(), "user-1", &models.CreateBookingRequest{
		ServiceID:  "nope",
		CustomName: "x",
	})
	if !apperrors.IsCode(err, apperrors.CodeTemplateNotFound) {
		t.Fatalf("err = %v, want code %s", err, apperrors.CodeTemplateNotFound)
	}
}

func TestCreateBookingInactiveTemplate(t *testing.T) {
	f := newBookingFixture(t, false)
	tmpl := giteaTemplate()
	tmpl.ID = "retired"
	tmpl.Active = false
	f.templates.templates[tmpl.ID] = tmpl

	_, err := f.svc.CreateBooking(context.Background(), "user-1", &models.CreateBookingRequest{
		ServiceID:  "retired",
		CustomName: "x",
	})
	if !apperrors.IsCode(err, apperrors.CodeTemplateNotFound) {
		t.Fatalf("err = %v, want code %s", err, apperrors.CodeTemplateNotFound)
	}
}

func TestDeployHappyPath(t *testing.T) {
	f := newBookingFixture(t, true)
	booking := f.create(t, "11111111-aaaa-bbbb-cccc-dddddddddddd")

	resp, err := f.svc.Deploy(context.Background(), booking.ID, "")
	if err != nil {
		t.Fatalf("Deploy: %v", err)
	}

	got := resp.Booking
	if got.Status != models.StatusActive {
		t.Errorf("status = %s, want active", got.Status)
	}
	if got.StackID == nil {
		t.Fatal("stack id not recorded")
	}
	if got.DNSRecordID == nil {
		t.Error("dns record id not recorded")
	}
	if resp.Warning != "" {
		t.Errorf("unexpected warning %q", resp.Warning)
	}

	wantStack := "customer-11111111-gitea"
	if _, ok := f.orchestrator.stacks[wantStack]; !ok {
		t.Errorf("stack %q not created, have %v", wantStack, f.orchestrator.stacks)
	}
}

func TestDeployRendersManifest(t *testing.T) {
	f := newBookingFixture(t, false)
	booking := f.create(t, "user-1")

	if _, err := f.svc.Deploy(context.Background(), booking.ID, ""); err != nil {
		t.Fatalf("Deploy: %v", err)
	}

	if len(f.orchestrator.manifests) != 1 {
		t.Fatalf("got %d manifests, want 1", len(f.orchestrator.manifests))
	}
	for _, manifest := range f.orchestrator.manifests {
		if strings.Contains(manifest, "{{") {
			t.Errorf("manifest has unresolved placeholders: %q", manifest)
		}
		if !strings.Contains(manifest, fmt.Sprintf("%d:3000", booking.Port)) {
			t.Errorf("manifest missing port binding %d: %q", booking.Port, manifest)
		}
	}
}

func TestDeployOrchestratorFailure(t *testing.T) {
	f := newBookingFixture(t, true)
	booking := f.create(t, "user-1")
	f.orchestrator.createErr = apperrors.New(apperrors.CodeOrchestratorError, "endpoint unreachable")

	resp, err := f.svc.Deploy(context.Background(), booking.ID, "")
	if !apperrors.IsCode(err, apperrors.CodeOrchestratorError) {
		t.Fatalf("err = %v, want code %s", err, apperrors.CodeOrchestratorError)
	}
	if resp == nil || resp.Booking.Status != models.StatusFailed {
		t.Fatalf("booking not marked failed: %+v", resp)
	}

	// No DNS attempt after a failed stack creation.
	if len(f.dns.records) != 0 {
		t.Errorf("dns records created despite orchestrator failure: %v", f.dns.records)
	}

	var sawError bool
	for _, msg := range f.logs.messages(booking.ID) {
		if strings.Contains(msg, "Deployment failed") {
			sawError = true
		}
	}
	if !sawError {
		t.Error("failure not recorded in deployment log")
	}
}

func TestDeployDNSFailureIsNonFatal(t *testing.T) {
	f := newBookingFixture(t, true)
	booking := f.create(t, "user-1")
	f.dns.createErr = apperrors.New(apperrors.CodeDNSError, "zone unavailable")

	resp, err := f.svc.Deploy(context.Background(), booking.ID, "")
	if err != nil {
		t.Fatalf("Deploy: %v", err)
	}
	if resp.Booking.Status != models.StatusActive {
		t.Errorf("status = %s, want active despite dns failure", resp.Booking.Status)
	}
	if resp.Warning == "" {
		t.Error("dns failure not surfaced as warning")
	}
	if resp.Booking.DNSRecordID != nil {
		t.Error("dns record id set despite failure")
	}

	var sawWarning bool
	for _, entry := range f.logs.entries[booking.ID] {
		if entry.Level == models.LogLevelWarning {
			sawWarning = true
		}
	}
	if !sawWarning {
		t.Error("dns failure not logged as warning")
	}
}

func TestDeployStackNameCollision(t *testing.T) {
	f := newBookingFixture(t, false)
	// Another customer deployment already holds the deterministic name.
	f.orchestrator.stacks["customer-user-1-gitea"] = "99"

	booking := f.create(t, "user-1")
	resp, err := f.svc.Deploy(context.Background(), booking.ID, "")
	if err != nil {
		t.Fatalf("Deploy: %v", err)
	}
	if resp.Booking.Status != models.StatusActive {
		t.Fatalf("status = %s, want active", resp.Booking.Status)
	}

	var suffixed string
	for name := range f.orchestrator.stacks {
		if name != "customer-user-1-gitea" {
			suffixed = name
		}
	}
	if !strings.HasPrefix(suffixed, "customer-user-1-gitea-") {
		t.Errorf("fallback stack name %q lacks random suffix", suffixed)
	}
}

func TestDeployInvalidTransition(t *testing.T) {
	f := newBookingFixture(t, false)
	booking := f.create(t, "user-1")
	if _, err := f.svc.Deploy(context.Background(), booking.ID, ""); err != nil {
		t.Fatalf("Deploy: %v", err)
	}

	_, err := f.svc.Deploy(context.Background(), booking.ID, "")
	if !apperrors.IsCode(err, apperrors.CodeInvalidTransition) {
		t.Fatalf("second deploy err = %v, want code %s", err, apperrors.CodeInvalidTransition)
	}
}

func TestSuspendAndResume(t *testing.T) {
	f := newBookingFixture(t, true)
	booking := f.create(t, "user-1")
	if _, err := f.svc.Deploy(context.Background(), booking.ID, ""); err != nil {
		t.Fatalf("Deploy: %v", err)
	}

	resp, err := f.svc.Suspend(context.Background(), booking.ID, "")
	if err != nil {
		t.Fatalf("Suspend: %v", err)
	}
	if resp.Booking.Status != models.StatusSuspended {
		t.Errorf("status = %s, want suspended", resp.Booking.Status)
	}
	if resp.Booking.StackID != nil {
		t.Error("stack id kept across suspension")
	}
	if resp.Booking.DNSRecordID == nil {
		t.Error("dns record id dropped on suspension")
	}
	if len(f.orchestrator.stacks) != 0 {
		t.Errorf("stack still present after suspend: %v", f.orchestrator.stacks)
	}

	resp, err = f.svc.Resume(context.Background(), booking.ID, "")
	if err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if resp.Booking.Status != models.StatusActive {
		t.Errorf("status = %s, want active after resume", resp.Booking.Status)
	}
	if resp.Booking.StackID == nil {
		t.Error("stack id not recorded after resume")
	}
	// Resume reuses the existing record; exactly one was ever created.
	if f.dns.nextID != 1 {
		t.Errorf("dns records created = %d, want 1", f.dns.nextID)
	}
}

func TestSuspendFailureKeepsBookingActive(t *testing.T) {
	f := newBookingFixture(t, false)
	booking := f.create(t, "user-1")
	if _, err := f.svc.Deploy(context.Background(), booking.ID, ""); err != nil {
		t.Fatalf("Deploy: %v", err)
	}
	f.orchestrator.deleteErr = errors.New("orchestrator down")

	resp, err := f.svc.Suspend(context.Background(), booking.ID, "")
	if err == nil {
		t.Fatal("Suspend succeeded despite orchestrator failure")
	}
	if resp == nil || resp.Booking.Status != models.StatusActive {
		t.Fatalf("booking left active expected, got %+v", resp)
	}
	if resp.Booking.StackID == nil {
		t.Error("stack id cleared despite failed suspension")
	}
}

func TestResumeFailureMarksFailed(t *testing.T) {
	f := newBookingFixture(t, false)
	booking := f.create(t, "user-1")
	if _, err := f.svc.Deploy(context.Background(), booking.ID, ""); err != nil {
		t.Fatalf("Deploy: %v", err)
	}
	if _, err := f.svc.Suspend(context.Background(), booking.ID, ""); err != nil {
		t.Fatalf("Suspend: %v", err)
	}

	f.orchestrator.createErr = errors.New("no capacity")
	resp, err := f.svc.Resume(context.Background(), booking.ID, "")
	if err == nil {
		t.Fatal("Resume succeeded despite orchestrator failure")
	}
	if resp == nil || resp.Booking.Status != models.StatusFailed {
		t.Fatalf("booking not marked failed: %+v", resp)
	}

	// A failed booking can be resumed again once the orchestrator is back.
	f.orchestrator.createErr = nil
	resp, err = f.svc.Resume(context.Background(), booking.ID, "")
	if err != nil {
		t.Fatalf("second Resume: %v", err)
	}
	if resp.Booking.Status != models.StatusActive {
		t.Errorf("status = %s, want active", resp.Booking.Status)
	}
}

func TestDeleteReleasesIdentity(t *testing.T) {
	f := newBookingFixture(t, true)
	booking := f.create(t, "user-1")
	if _, err := f.svc.Deploy(context.Background(), booking.ID, ""); err != nil {
		t.Fatalf("Deploy: %v", err)
	}

	resp, err := f.svc.Delete(context.Background(), booking.ID, "")
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	got := resp.Booking
	if got.Status != models.StatusDeleted {
		t.Errorf("status = %s, want deleted", got.Status)
	}
	if got.DeletedAt == nil {
		t.Error("deletion timestamp not set")
	}
	if got.StackID != nil || got.DNSRecordID != nil {
		t.Error("external references not cleared")
	}
	if len(f.orchestrator.stacks) != 0 {
		t.Errorf("stack not removed: %v", f.orchestrator.stacks)
	}
	if len(f.dns.records) != 0 {
		t.Errorf("dns record not removed: %v", f.dns.records)
	}

	// The released identity must be allocatable again.
	inUse, err := f.bookings.DomainInUse(context.Background(), booking.Domain)
	if err != nil {
		t.Fatalf("DomainInUse: %v", err)
	}
	if inUse {
		t.Error("domain still reserved after deletion")
	}
}

func TestDeleteBestEffortCleanup(t *testing.T) {
	f := newBookingFixture(t, true)
	booking := f.create(t, "user-1")
	if _, err := f.svc.Deploy(context.Background(), booking.ID, ""); err != nil {
		t.Fatalf("Deploy: %v", err)
	}
	f.orchestrator.deleteErr = errors.New("orchestrator down")
	f.dns.deleteErr = errors.New("zone unavailable")

	resp, err := f.svc.Delete(context.Background(), booking.ID, "")
	if err != nil {
		t.Fatalf("Delete must not fail on cleanup errors: %v", err)
	}
	if resp.Booking.Status != models.StatusDeleted {
		t.Errorf("status = %s, want deleted", resp.Booking.Status)
	}
	if resp.Warning == "" {
		t.Error("cleanup failures not surfaced as warning")
	}
	if !strings.Contains(resp.Warning, "Stack cleanup failed") ||
		!strings.Contains(resp.Warning, "DNS record cleanup failed") {
		t.Errorf("warning %q missing cleanup details", resp.Warning)
	}
}

func TestDeleteAlreadyDeleted(t *testing.T) {
	f := newBookingFixture(t, false)
	booking := f.create(t, "user-1")
	if _, err := f.svc.Delete(context.Background(), booking.ID, ""); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	_, err := f.svc.Delete(context.Background(), booking.ID, "")
	if !apperrors.IsCode(err, apperrors.CodeInvalidTransition) {
		t.Fatalf("err = %v, want code %s", err, apperrors.CodeInvalidTransition)
	}
}

func TestGetBookingOwnership(t *testing.T) {
	f := newBookingFixture(t, false)
	booking := f.create(t, "user-1")

	if _, err := f.svc.GetBooking(context.Background(), booking.ID, "user-1"); err != nil {
		t.Fatalf("owner lookup: %v", err)
	}

	_, err := f.svc.GetBooking(context.Background(), booking.ID, "user-2")
	if !apperrors.IsCode(err, apperrors.CodeBookingNotFound) {
		t.Fatalf("foreign lookup err = %v, want code %s", err, apperrors.CodeBookingNotFound)
	}

	// Empty user id is the admin path and sees everything.
	if _, err := f.svc.GetBooking(context.Background(), booking.ID, ""); err != nil {
		t.Fatalf("admin lookup: %v", err)
	}
}

func TestTransitionsEnforceOwnership(t *testing.T) {
	f := newBookingFixture(t, false)
	booking := f.create(t, "user-1")

	// A foreign user must not be able to act on, or even detect, the
	// booking. The admin path passes an empty owner and sees everything.
	_, err := f.svc.Deploy(context.Background(), booking.ID, "user-2")
	if !apperrors.IsCode(err, apperrors.CodeBookingNotFound) {
		t.Fatalf("foreign deploy err = %v, want code %s", err, apperrors.CodeBookingNotFound)
	}
	if len(f.orchestrator.stacks) != 0 {
		t.Errorf("stack created for foreign caller: %v", f.orchestrator.stacks)
	}
	_, err = f.svc.Delete(context.Background(), booking.ID, "user-2")
	if !apperrors.IsCode(err, apperrors.CodeBookingNotFound) {
		t.Fatalf("foreign delete err = %v, want code %s", err, apperrors.CodeBookingNotFound)
	}

	if _, err := f.svc.Deploy(context.Background(), booking.ID, "user-1"); err != nil {
		t.Fatalf("owner deploy: %v", err)
	}
	if _, err := f.svc.Suspend(context.Background(), booking.ID, "user-1"); err != nil {
		t.Fatalf("owner suspend: %v", err)
	}
}

func TestTransitionsSerializedPerBooking(t *testing.T) {
	f := newBookingFixture(t, false)
	booking := f.create(t, "user-1")

	// Concurrent deploys of the same booking: exactly one may win, the
	// rest must observe an invalid transition instead of racing.
	const n = 5
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Deploy(context.Background(), booking.ID, "")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var ok, rejected int
	for err := range errs {
		switch {
		case err == nil:
			ok++
		case apperrors.IsCode(err, apperrors.CodeInvalidTransition):
			rejected++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if ok != 1 {
		t.Errorf("successful deploys = %d, want 1", ok)
	}
	if rejected != n-1 {
		t.Errorf("rejected deploys = %d, want %d", rejected, n-1)
	}
	if len(f.orchestrator.stacks) != 1 {
		t.Errorf("stacks created = %d, want 1", len(f.orchestrator.stacks))
	}
}

func TestDeployWritesProxyArtifact(t *testing.T) {
	f := newBookingFixture(t, false)
	tmpl := giteaTemplate()
	tmpl.ProxyTemplate = "server { server_name {{DOMAIN}}; proxy_pass http://127.0.0.1:{{PORT}}; }"
	f.templates.templates[tmpl.ID] = tmpl

	booking := f.create(t, "user-1")
	if _, err := f.svc.Deploy(context.Background(), booking.ID, ""); err != nil {
		t.Fatalf("Deploy: %v", err)
	}

	path := filepath.Join(f.svc.cfg.Platform.ArtifactsDir, booking.UniqueID()+".conf")
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("artifact not written: %v", err)
	}
	if !strings.Contains(string(content), booking.Domain) {
		t.Errorf("artifact missing domain binding: %q", content)
	}
	if strings.Contains(string(content), "{{") {
		t.Errorf("artifact has unresolved placeholders: %q", content)
	}
}
