package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/m-proto/loginpage/internal/config"
	"github.com/m-proto/loginpage/internal/middleware"
)

// Handlers groups the HTTP handlers; nil optional handlers leave their routes unmounted
type Handlers struct {
	Health      *HealthHandler
	Auth        *AuthHandler
	Invitations *InvitationHandler // optional
	OTPDebug    *OTPDebugHandler   // optional
}

func NewRouter(cfg *config.Config, h Handlers) *gin.Engine {
	r := gin.New()

	// Global middleware (order matters!)
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.SecurityHeaders(cfg.Server.HTTPS))
	r.Use(middleware.Metrics())
	r.Use(middleware.CORS(cfg.CORS))

	r.GET("/", h.Health.Root)
	r.GET("/health", h.Health.Shallow)
	r.GET("/health/ready", h.Health.Ready)

	// Prometheus metrics endpoint (restrict to internal IPs in production)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	authGroup := r.Group("/auth")
	{
		authGroup.POST("/send-otp", h.Auth.SendOTP)
		authGroup.POST("/verify-otp", h.Auth.VerifyOTP)
	}

	admin := r.Group("/admin")
	admin.Use(middleware.InternalOnly(cfg.Security.InternalServiceSecret))
	{
		if h.Invitations != nil {
			admin.GET("/invitations", h.Invitations.List)
			admin.POST("/invitations", h.Invitations.Add)
			admin.DELETE("/invitations/:email", h.Invitations.Remove)
		}
		if h.OTPDebug != nil {
			admin.GET("/otp/:email", h.OTPDebug.Peek)
		}
	}

	return r
}
