package models

import "time"

// ServiceTemplate describes a rentable containerized application. Templates
// are created and edited by administrators; the booking flow only reads
// them. Deactivating a template hides it from the catalog without touching
// existing bookings.
type ServiceTemplate struct {
	ID              string        `json:"id"`
	Name            string        `json:"name"`
	Description     string        `json:"description"`
	Price           float64       `json:"price"`
	Image           string        `json:"image"`
	Resources       ResourceHints `json:"resources"`
	ComposeTemplate string        `json:"composeTemplate"`
	// ProxyTemplate is an optional reverse-proxy config rendered per
	// instance and written next to the stack as a mounted file.
	ProxyTemplate string    `json:"proxyTemplate,omitempty"`
	Active        bool      `json:"active"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// ResourceHints are opaque sizing hints shown to customers; the platform
// does not schedule on them.
type ResourceHints struct {
	CPU     string `json:"cpu"`
	Memory  string `json:"memory"`
	Storage string `json:"storage"`
}
