package http

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/beyondfire/cloud-platform/booking-service/internal/config"
	"github.com/beyondfire/cloud-platform/booking-service/internal/logger"
	"github.com/beyondfire/cloud-platform/booking-service/internal/service"
)

type Server struct {
	router  *gin.Engine
	handler *Handler
	cfg     *config.Config
	db      *pgxpool.Pool
	limiter RateLimiter
}

func NewServer(cfg *config.Config, db *pgxpool.Pool, bookingService *service.BookingService, catalogService *service.CatalogService) *Server {
	gin.SetMode(cfg.Server.Mode)
	router := gin.New()

	// Global middleware
	router.Use(gin.Recovery())
	router.Use(gin.Logger())
	router.Use(MetricsMiddleware())

	s := &Server{
		router:  router,
		handler: NewHandler(bookingService, catalogService),
		cfg:     cfg,
		db:      db,
		limiter: newRateLimiter(cfg),
	}

	s.setupRoutes()
	return s
}

// newRateLimiter prefers the Redis limiter so limits hold across
// instances, falling back to the in-memory one when Redis is not
// configured or unreachable.
func newRateLimiter(cfg *config.Config) RateLimiter {
	if cfg.Redis.Addr != "" {
		rl, err := NewRedisRateLimiter(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err == nil {
			logger.L().Info("using redis rate limiter", zap.String("addr", cfg.Redis.Addr))
			return rl
		}
		logger.L().Warn("redis unavailable, using in-memory rate limiter", zap.Error(err))
	}
	return NewMemoryRateLimiter()
}

func (s *Server) setupRoutes() {
	// Health check
	s.router.GET("/health", func(c *gin.Context) {
		overall, dbStatus, code := "ok", "ok", 200
		if s.db != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := s.db.Ping(ctx); err != nil {
				overall, dbStatus, code = "degraded", "unreachable", 503
			}
		}
		c.JSON(code, gin.H{
			"status":  overall,
			"service": "booking-service",
			"db":      dbStatus,
		})
	})

	s.router.GET("/metrics", MetricsHandler())

	// Public API - service catalog, no authentication required
	public := s.router.Group("/api/v1/public")
	{
		public.GET("/services", s.handler.ListServices)
		public.GET("/services/:id", s.handler.GetService)
	}

	// User API - requires JWT authentication
	user := s.router.Group("/api/v1")
	user.Use(JWTAuthMiddleware(s.cfg.JWT.SecretKey))
	user.Use(RateLimitMiddleware(s.limiter, 30, time.Minute))
	{
		user.GET("/my/bookings", s.handler.GetMyBookings)
		// Booking creation allocates scarce identities, so it gets a
		// stricter limit.
		user.POST("/my/bookings", RateLimitMiddleware(s.limiter, 5, time.Hour), s.handler.CreateBooking)
		user.GET("/my/bookings/:id", s.handler.GetMyBooking)
		user.POST("/my/bookings/:id/deploy", s.handler.DeployMyBooking)
		user.POST("/my/bookings/:id/suspend", s.handler.SuspendMyBooking)
		user.POST("/my/bookings/:id/resume", s.handler.ResumeMyBooking)
		user.DELETE("/my/bookings/:id", s.handler.DeleteMyBooking)
	}

	// Admin API - requires admin API key
	admin := s.router.Group("/api/admin")
	admin.Use(AdminAuthMiddleware(s.cfg.AdminAPIKey))
	{
		admin.GET("/services", s.handler.ListAllServices)
		admin.POST("/services", s.handler.CreateService)
		admin.PUT("/services/:id", s.handler.UpdateService)

		admin.GET("/bookings", s.handler.ListBookings)
		admin.GET("/bookings/:id", s.handler.GetBooking)
		admin.POST("/bookings/:id/deploy", s.handler.DeployBooking)
		admin.POST("/bookings/:id/suspend", s.handler.SuspendBooking)
		admin.POST("/bookings/:id/resume", s.handler.ResumeBooking)
		admin.DELETE("/bookings/:id", s.handler.DeleteBooking)

		admin.GET("/stats", s.handler.GetStats)
	}
}

// Handler exposes the underlying engine for the HTTP server and tests.
func (s *Server) Handler() *gin.Engine {
	return s.router
}

// Close releases the rate limiter's resources.
func (s *Server) Close() {
	s.limiter.Close()
}
