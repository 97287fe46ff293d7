package models

import "time"

// Booking status constants
const (
	StatusPending   = "pending"
	StatusDeploying = "deploying"
	StatusActive    = "active"
	StatusSuspended = "suspended"
	StatusFailed    = "failed"
	StatusDeleted   = "deleted"
)

// Log level constants for booking deployment logs
const (
	LogLevelInfo    = "info"
	LogLevelWarning = "warning"
	LogLevelError   = "error"
)

// Booking is a customer's instance of a service template, with its own
// network identity (domain, port) and lifecycle.
type Booking struct {
	ID          string `json:"id"`
	UserID      string `json:"userId"`
	ServiceID   string `json:"serviceId"`
	ServiceName string `json:"serviceName"`
	CustomName  string `json:"customName"`

	Domain string `json:"domain"`
	Port   int    `json:"port"`

	Status string `json:"status"`

	// StackID is set while an orchestrator stack exists for this booking,
	// nil otherwise. DNSRecordID survives suspension so resume does not
	// re-register DNS.
	StackID     *string `json:"stackId"`
	DNSRecordID *string `json:"dnsRecordId"`

	License *LicenseInfo `json:"licenseInfo,omitempty"`

	CreatedAt time.Time  `json:"createdAt"`
	ExpiresAt time.Time  `json:"expiresAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
	DeletedAt *time.Time `json:"deletedAt,omitempty"`
}

// LicenseInfo is the optional credential payload for templates that need
// license placeholders filled at render time.
type LicenseInfo struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// BookingLog is one entry of a booking's append-only deployment log.
type BookingLog struct {
	ID        string    `json:"id"`
	BookingID string    `json:"bookingId"`
	Level     string    `json:"level"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"timestamp"`
}

// UniqueID derives the instance identifier used for placeholder
// substitution and auxiliary artifact naming.
func (b *Booking) UniqueID() string {
	if len(b.ID) < 8 {
		return b.ID
	}
	return b.ID[:8]
}

// allowedTransitions maps a lifecycle event to the statuses it may start
// from. Delete is valid from any non-deleted status and handled separately.
var allowedTransitions = map[string][]string{
	"deploy":  {StatusPending, StatusFailed},
	"suspend": {StatusActive},
	"resume":  {StatusSuspended, StatusFailed},
}

// CanTransition reports whether the lifecycle event may be applied to a
// booking currently in status.
func CanTransition(status, event string) bool {
	if event == "delete" {
		return status != StatusDeleted
	}
	for _, from := range allowedTransitions[event] {
		if status == from {
			return true
		}
	}
	return false
}
