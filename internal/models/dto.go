package models

// CreateBookingRequest is the payload to book a service.
type CreateBookingRequest struct {
	ServiceID  string       `json:"serviceId" binding:"required"`
	CustomName string       `json:"customName" binding:"required"`
	Subdomain  string       `json:"subdomain,omitempty"`
	License    *LicenseInfo `json:"licenseInfo,omitempty"`
}

// BookingResponse is a booking plus its deployment log, returned by every
// transition so the caller can see which step failed and why.
type BookingResponse struct {
	Booking *Booking      `json:"booking"`
	Logs    []*BookingLog `json:"deploymentLogs"`
	// Warning carries non-fatal cleanup failures (best-effort delete).
	Warning string `json:"warning,omitempty"`
}

// CreateTemplateRequest is the admin payload to create a service template.
type CreateTemplateRequest struct {
	ID              string        `json:"id" binding:"required"`
	Name            string        `json:"name" binding:"required"`
	Description     string        `json:"description" binding:"required"`
	Price           float64       `json:"price" binding:"required"`
	Image           string        `json:"image" binding:"required"`
	Resources       ResourceHints `json:"resources"`
	ComposeTemplate string        `json:"composeTemplate" binding:"required"`
	ProxyTemplate   string        `json:"proxyTemplate,omitempty"`
}

// UpdateTemplateRequest is the admin payload to update a service template.
// Nil fields are left unchanged.
type UpdateTemplateRequest struct {
	Name            *string        `json:"name,omitempty"`
	Description     *string        `json:"description,omitempty"`
	Price           *float64       `json:"price,omitempty"`
	Image           *string        `json:"image,omitempty"`
	Resources       *ResourceHints `json:"resources,omitempty"`
	ComposeTemplate *string        `json:"composeTemplate,omitempty"`
	ProxyTemplate   *string        `json:"proxyTemplate,omitempty"`
	Active          *bool          `json:"active,omitempty"`
}

// PlatformStats summarizes bookings by status for the admin dashboard.
type PlatformStats struct {
	TotalBookings  int            `json:"totalBookings"`
	ByStatus       map[string]int `json:"byStatus"`
	TotalTemplates int            `json:"totalTemplates"`
}
