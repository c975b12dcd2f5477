package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/slotable/service-booking/internal/application"
	"github.com/slotable/service-booking/internal/platform/auth"
	"github.com/slotable/service-booking/internal/platform/middleware"
	"github.com/slotable/service-booking/internal/platform/response"
)

// AdminHandler handles admin HTTP requests for booking management and the
// audit trail.
type AdminHandler struct {
	bookings *application.BookingService
	audits   *application.AuditService
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(bookings *application.BookingService, audits *application.AuditService) *AdminHandler {
	return &AdminHandler{bookings: bookings, audits: audits}
}

// RegisterRoutes registers admin routes.
func (h *AdminHandler) RegisterRoutes(r *gin.RouterGroup, jwtManager *auth.JWTManager) {
	authMW := middleware.AuthMiddleware(jwtManager)
	adminRole := middleware.RequireRole(auth.RoleAdmin, auth.RoleSuperAdmin)

	admin := r.Group("/api/v1/admin")
	admin.Use(authMW, adminRole)
	{
		admin.GET("/bookings", h.ListBookings)
		admin.GET("/stats/bookings", h.BookingStats)
		admin.GET("/audit", h.ListAuditRecords)
	}
}

// ListBookings handles GET /api/v1/admin/bookings.
func (h *AdminHandler) ListBookings(c *gin.Context) {
	page, limit := parsePagination(c)

	bookings, total, err := h.bookings.ListAllBookings(c.Request.Context(), page, limit)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Paginated(c, bookings, total, page, limit)
}

// BookingStats handles GET /api/v1/admin/stats/bookings.
func (h *AdminHandler) BookingStats(c *gin.Context) {
	stats, err := h.bookings.GetBookingStats(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, stats)
}

// ListAuditRecords handles GET /api/v1/admin/audit, filterable by actor_id,
// action and entity_id.
func (h *AdminHandler) ListAuditRecords(c *gin.Context) {
	page, limit := parsePagination(c)

	query := application.AuditQuery{
		Action: c.Query("action"),
	}
	if raw := c.Query("actor_id"); raw != "" {
		actorID, err := uuid.Parse(raw)
		if err != nil {
			response.BadRequest(c, "invalid actor_id")
			return
		}
		query.ActorID = &actorID
	}
	if raw := c.Query("entity_id"); raw != "" {
		entityID, err := uuid.Parse(raw)
		if err != nil {
			response.BadRequest(c, "invalid entity_id")
			return
		}
		query.EntityID = &entityID
	}

	result, err := h.audits.Query(c.Request.Context(), query, page, limit)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Paginated(c, result.Items, result.Total, result.Page, result.Limit)
}
