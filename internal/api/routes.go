// internal/api/routes.go
package api

import (
	"fmt"
	"net/http"

	"site_registry/internal/domain"
	"site_registry/internal/limiter"
	"site_registry/internal/service"

	"github.com/gin-gonic/gin"
)

// Services bundles what the routes need
type Services struct {
	Sites   *service.SiteService
	Auth    *service.AuthService
	Limiter limiter.Limiter
}

// NewEngine creates the gin engine with the shared middleware. Client IPs are
// taken from X-Forwarded-For only when the peer is one of trustedProxies.
func NewEngine(trustedProxies []string) (*gin.Engine, error) {
	r := gin.New()
	if err := r.SetTrustedProxies(trustedProxies); err != nil {
		return nil, fmt.Errorf("trusted proxies: %w", err)
	}

	r.Use(gin.Recovery())
	r.Use(RequestID())
	r.Use(Logger())
	r.Use(CORS())
	return r, nil
}

// SetupRoutes configures all API routes
func SetupRoutes(r *gin.Engine, svc Services) {
	h := NewHandler(svc.Sites)
	authHandler := NewAuthHandler(svc.Auth)

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")
	{
		auth := api.Group("/auth")
		{
			auth.POST("/login", LoginRateLimit(svc.Limiter), authHandler.Login)
			auth.POST("/register", LoginRateLimit(svc.Limiter), authHandler.Register)
			auth.GET("/verify", authHandler.Verify)
		}

		api.GET("/admin/stats", Authenticate(svc.Auth), RequireRole(domain.RoleAdmin), h.GetStats)

		sites := api.Group("/sites", Authenticate(svc.Auth))
		{
			admin := RequireRole(domain.RoleAdmin)

			sites.GET("", h.ListSites)
			sites.GET("/export", admin, h.ExportSites)
			sites.GET("/:id", h.GetSite)
			sites.GET("/:id/history", h.GetHistory)
			sites.POST("", admin, h.CreateSite)
			sites.PUT("/:id", admin, h.UpdateSite)
			sites.PUT("/:id/power/:kind", admin, h.UpdatePowerSource)
			sites.DELETE("/:id", admin, h.DeleteSite)

			// any signed-in user may change status
			sites.PATCH("/:id/status", h.UpdateStatus)
		}
	}
}
