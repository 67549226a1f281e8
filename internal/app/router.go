// internal/app/router.go
package app

import (
	authHandler "prospect-service/internal/handlers/auth"
	prospectHandler "prospect-service/internal/handlers/prospect"
	staffHandler "prospect-service/internal/handlers/staff"
	wsHandler "prospect-service/internal/handlers/websocket"
	"prospect-service/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Handlers struct {
	AuthHandler     *authHandler.AuthHandler
	ProspectHandler *prospectHandler.ProspectHandler
	StaffHandler    *staffHandler.StaffHandler
	WSHandler       *wsHandler.WebSocketHandler
	AuthMiddleware  *middleware.AuthMiddleware
}

func SetupRouter(r *gin.Engine, h *Handlers) {
	api := r.Group("/api/v1")

	// ==================== Health Check ====================
	api.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok", "version": "1.0.0"})
	})

	// ==================== Metrics ====================
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// ==================== WebSocket ====================
	r.GET("/ws", h.WSHandler.HandleConnection)

	// ==================== Public Auth Routes ====================
	authPublic := api.Group("/auth")
	{
		authPublic.POST("/login", h.AuthHandler.Login)
	}

	// ==================== Authenticated Auth Routes ====================
	authProtected := api.Group("/auth")
	authProtected.Use(h.AuthMiddleware.Auth())
	{
		authProtected.POST("/logout", h.AuthHandler.Logout)
		authProtected.GET("/me", h.AuthHandler.Me)
		authProtected.PUT("/change-password", h.AuthHandler.ChangePassword)
	}

	// ==================== Prospects ====================
	prospects := api.Group("/prospects")
	prospects.Use(h.AuthMiddleware.Auth())
	{
		prospects.GET("", h.ProspectHandler.List)
		prospects.GET("/attention", h.ProspectHandler.Attention)
		prospects.GET("/:id", h.ProspectHandler.Get)
		prospects.GET("/:id/access", h.ProspectHandler.Access)

		// Assignment
		prospects.POST("/:id/assign", h.ProspectHandler.Assign)
		prospects.POST("/assign-bulk", h.ProspectHandler.AssignBulk)
		prospects.POST("/:id/unassign", h.ProspectHandler.Unassign)
		// Reallocation trigger for the ingestion automation; executives
		// have no assignment authority.
		prospects.POST("/:id/auto-assign",
			h.AuthMiddleware.RequireRole("admin", "coordinator", "quality_coordinator"),
			h.ProspectHandler.AutoAssign)
	}

	// ==================== Assignment Audit ====================
	assignments := api.Group("/assignments")
	assignments.Use(h.AuthMiddleware.Auth())
	{
		assignments.GET("/audit", h.ProspectHandler.AuditTrail) // ?prospect_id=1
	}

	// ==================== Staff & Backups ====================
	staffGroup := api.Group("/staff")
	staffGroup.Use(h.AuthMiddleware.Auth())
	{
		staffGroup.GET("/:id/backup/candidates", h.StaffHandler.BackupCandidates)
		staffGroup.POST("/:id/backup", h.StaffHandler.AssignBackup)
		staffGroup.DELETE("/:id/backup", h.StaffHandler.RemoveBackup)
		staffGroup.GET("/:id/coverage", h.StaffHandler.Coverage)
	}

	// ==================== Coordination Units ====================
	units := api.Group("/units")
	units.Use(h.AuthMiddleware.Auth())
	{
		units.GET("", h.StaffHandler.Units)
	}

	// ==================== Admin Routes ====================
	admin := api.Group("/admin")
	admin.Use(h.AuthMiddleware.AdminOnly()...)
	{
		admin.GET("/ws/stats", h.WSHandler.GetStats)
	}
}
