package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/beyondfire/cloud-platform/booking-service/internal/models"
)

// ==================== Admin Template Handlers ====================

// ListAllServices returns the full catalog including inactive templates.
func (h *Handler) ListAllServices(c *gin.Context) {
	templates, err := h.catalogService.ListAll(c.Request.Context())
	if err != nil {
		respondError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"services": templates})
}

// CreateService adds a service template to the catalog.
func (h *Handler) CreateService(c *gin.Context) {
	var req models.CreateTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	template, err := h.catalogService.Create(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err, nil)
		return
	}
	c.JSON(http.StatusCreated, template)
}

// UpdateService patches a service template. Omitted fields are left
// unchanged; existing bookings keep the manifest they were booked with
// until their next deploy.
func (h *Handler) UpdateService(c *gin.Context) {
	var req models.UpdateTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	template, err := h.catalogService.Update(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		respondError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, template)
}

// ==================== Admin Booking Handlers ====================

// ListBookings lists all bookings, optionally filtered by ?status=.
func (h *Handler) ListBookings(c *gin.Context) {
	bookings, err := h.bookingService.ListBookings(c.Request.Context(), c.Query("status"))
	if err != nil {
		respondError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"bookings": bookings})
}

// GetBooking returns any booking with its deployment log.
func (h *Handler) GetBooking(c *gin.Context) {
	resp, err := h.bookingService.GetBooking(c.Request.Context(), c.Param("id"), "")
	if err != nil {
		respondError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// DeployBooking triggers deployment of any booking.
func (h *Handler) DeployBooking(c *gin.Context) {
	resp, err := h.bookingService.Deploy(c.Request.Context(), c.Param("id"), "")
	recordTransition("deploy", err)
	if err != nil {
		respondError(c, err, resp)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// SuspendBooking takes a booking's stack down while keeping its identity.
func (h *Handler) SuspendBooking(c *gin.Context) {
	resp, err := h.bookingService.Suspend(c.Request.Context(), c.Param("id"), "")
	recordTransition("suspend", err)
	if err != nil {
		respondError(c, err, resp)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// ResumeBooking brings a suspended or failed booking back up.
func (h *Handler) ResumeBooking(c *gin.Context) {
	resp, err := h.bookingService.Resume(c.Request.Context(), c.Param("id"), "")
	recordTransition("resume", err)
	if err != nil {
		respondError(c, err, resp)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// DeleteBooking deletes any booking and releases its resources.
func (h *Handler) DeleteBooking(c *gin.Context) {
	resp, err := h.bookingService.Delete(c.Request.Context(), c.Param("id"), "")
	recordTransition("delete", err)
	if err != nil {
		respondError(c, err, resp)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// GetStats returns platform-wide booking and catalog counts.
func (h *Handler) GetStats(c *gin.Context) {
	stats, err := h.bookingService.Stats(c.Request.Context())
	if err != nil {
		respondError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, stats)
}
