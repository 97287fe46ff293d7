package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"

	"github.com/beyondfire/cloud-platform/booking-service/internal/apperrors"
)

// Retry bounds for generated identities. The port range holds ~10k values
// against at most a few hundred live bookings, so collisions are rare in
// practice; the checks below still go against persisted state rather than
// relying on the odds.
const (
	domainAllocAttempts = 5
	portAllocAttempts   = 10
)

// Identity is the (domain, port) pair uniquely assigned to a booking.
type Identity struct {
	Domain string
	Port   int
}

// IdentityAllocator hands out unique network identities for bookings.
// Atomicity against concurrent allocations is provided by the booking
// store's uniqueness guarantees: Allocate pre-checks candidates to fail
// fast, and the creating caller retries with fresh candidates if the
// insert still loses a race.
type IdentityAllocator struct {
	bookings   BookingStore
	baseDomain string
	portMin    int
	portMax    int
}

func NewIdentityAllocator(bookings BookingStore, baseDomain string, portMin, portMax int) *IdentityAllocator {
	return &IdentityAllocator{
		bookings:   bookings,
		baseDomain: baseDomain,
		portMin:    portMin,
		portMax:    portMax,
	}
}

// Allocate picks a free domain and port for a booking of serviceID. A
// requested subdomain is honored or rejected with DomainInUse; otherwise a
// `<serviceId>-<random suffix>` subdomain is generated with a bounded
// number of retries. No state is written.
func (a *IdentityAllocator) Allocate(ctx context.Context, serviceID, requestedSubdomain string) (Identity, error) {
	domain, err := a.allocateDomain(ctx, serviceID, requestedSubdomain)
	if err != nil {
		return Identity{}, err
	}

	port, err := a.allocatePort(ctx)
	if err != nil {
		return Identity{}, err
	}

	return Identity{Domain: domain, Port: port}, nil
}

func (a *IdentityAllocator) allocateDomain(ctx context.Context, serviceID, requestedSubdomain string) (string, error) {
	if requestedSubdomain != "" {
		domain := requestedSubdomain + "." + a.baseDomain
		inUse, err := a.bookings.DomainInUse(ctx, domain)
		if err != nil {
			return "", fmt.Errorf("check domain: %w", err)
		}
		if inUse {
			return "", apperrors.Newf(apperrors.CodeDomainInUse, "domain %s is already in use", domain)
		}
		return domain, nil
	}

	for attempt := 0; attempt < domainAllocAttempts; attempt++ {
		domain := fmt.Sprintf("%s-%s.%s", serviceID, randomSuffix(3), a.baseDomain)
		inUse, err := a.bookings.DomainInUse(ctx, domain)
		if err != nil {
			return "", fmt.Errorf("check domain: %w", err)
		}
		if !inUse {
			return domain, nil
		}
	}

	return "", apperrors.Newf(apperrors.CodeAllocationExhausted,
		"could not allocate a free domain for service %s after %d attempts", serviceID, domainAllocAttempts)
}

func (a *IdentityAllocator) allocatePort(ctx context.Context) (int, error) {
	for attempt := 0; attempt < portAllocAttempts; attempt++ {
		port := a.portMin + randomInt(a.portMax-a.portMin+1)
		inUse, err := a.bookings.PortInUse(ctx, port)
		if err != nil {
			return 0, fmt.Errorf("check port: %w", err)
		}
		if !inUse {
			return port, nil
		}
	}

	return 0, apperrors.Newf(apperrors.CodeAllocationExhausted,
		"could not allocate a free port in range %d-%d after %d attempts", a.portMin, a.portMax, portAllocAttempts)
}

// randomSuffix returns 2*n lowercase hex characters.
func randomSuffix(n int) string {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		panic(fmt.Sprintf("read random bytes: %v", err))
	}
	return hex.EncodeToString(buf)
}

// randomInt returns a uniform value in [0, n).
func randomInt(n int) int {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		panic(fmt.Sprintf("read random int: %v", err))
	}
	return int(v.Int64())
}
