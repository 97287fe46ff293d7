package http

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/beyondfire/cloud-platform/booking-service/internal/apperrors"
	"github.com/beyondfire/cloud-platform/booking-service/internal/models"
	"github.com/beyondfire/cloud-platform/booking-service/internal/service"
)

type Handler struct {
	bookingService *service.BookingService
	catalogService *service.CatalogService
}

func NewHandler(bookingService *service.BookingService, catalogService *service.CatalogService) *Handler {
	return &Handler{
		bookingService: bookingService,
		catalogService: catalogService,
	}
}

// statusForCode maps service error codes onto HTTP statuses. Upstream
// failures (orchestrator, DNS, their auth) surface as 502 because the
// request itself was fine.
func statusForCode(code apperrors.Code) int {
	switch code {
	case apperrors.CodeInvalid:
		return http.StatusBadRequest
	case apperrors.CodeTemplateNotFound, apperrors.CodeBookingNotFound:
		return http.StatusNotFound
	case apperrors.CodeDomainInUse, apperrors.CodeInvalidTransition:
		return http.StatusConflict
	case apperrors.CodeAllocationExhausted:
		return http.StatusServiceUnavailable
	case apperrors.CodeAuthError, apperrors.CodeOrchestratorError, apperrors.CodeDNSError:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes the error payload. A non-nil booking response is
// included so callers of failed transitions see the booking's state and
// deployment log without a second request.
func respondError(c *gin.Context, err error, resp *models.BookingResponse) {
	code := apperrors.CodeOf(err)
	body := gin.H{"error": err.Error(), "code": string(code)}
	if resp != nil {
		body["booking"] = resp.Booking
		body["deploymentLogs"] = resp.Logs
	}
	c.JSON(statusForCode(code), body)
}

// ==================== Public Catalog Handlers ====================

// ListServices returns the active service catalog.
func (h *Handler) ListServices(c *gin.Context) {
	templates, err := h.catalogService.ListActive(c.Request.Context())
	if err != nil {
		respondError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"services": templates})
}

// GetService returns one catalog entry.
func (h *Handler) GetService(c *gin.Context) {
	template, err := h.catalogService.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, template)
}

// ==================== User Booking Handlers ====================

// CreateBooking books a service for the authenticated user.
func (h *Handler) CreateBooking(c *gin.Context) {
	var req models.CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, err := h.bookingService.CreateBooking(c.Request.Context(), c.GetString("userID"), &req)
	if err != nil {
		respondError(c, err, nil)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// GetMyBookings lists the authenticated user's bookings.
func (h *Handler) GetMyBookings(c *gin.Context) {
	bookings, err := h.bookingService.ListUserBookings(c.Request.Context(), c.GetString("userID"))
	if err != nil {
		respondError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"bookings": bookings})
}

// GetMyBooking returns one of the authenticated user's bookings with its
// deployment log.
func (h *Handler) GetMyBooking(c *gin.Context) {
	resp, err := h.bookingService.GetBooking(c.Request.Context(), c.Param("id"), c.GetString("userID"))
	if err != nil {
		respondError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// DeployMyBooking triggers deployment of the user's booking.
func (h *Handler) DeployMyBooking(c *gin.Context) {
	resp, err := h.ownedTransition(c, "deploy", h.bookingService.Deploy)
	if err != nil {
		respondError(c, err, resp)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// SuspendMyBooking takes the user's stack down while keeping its identity.
func (h *Handler) SuspendMyBooking(c *gin.Context) {
	resp, err := h.ownedTransition(c, "suspend", h.bookingService.Suspend)
	if err != nil {
		respondError(c, err, resp)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// ResumeMyBooking brings the user's suspended or failed booking back up.
func (h *Handler) ResumeMyBooking(c *gin.Context) {
	resp, err := h.ownedTransition(c, "resume", h.bookingService.Resume)
	if err != nil {
		respondError(c, err, resp)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// DeleteMyBooking deletes the user's booking and releases its resources.
func (h *Handler) DeleteMyBooking(c *gin.Context) {
	resp, err := h.ownedTransition(c, "delete", h.bookingService.Delete)
	if err != nil {
		respondError(c, err, resp)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// ownedTransition runs a lifecycle transition on behalf of the
// authenticated user; the service enforces ownership on its locked read.
func (h *Handler) ownedTransition(
	c *gin.Context,
	event string,
	fn func(ctx context.Context, bookingID, ownerID string) (*models.BookingResponse, error),
) (*models.BookingResponse, error) {
	resp, err := fn(c.Request.Context(), c.Param("id"), c.GetString("userID"))
	recordTransition(event, err)
	return resp, err
}
