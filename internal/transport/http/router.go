package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"timed-quiz-service/internal/app"
)

// RouterOptions configures NewRouter. Zero values are usable.
type RouterOptions struct {
	Auth        *AdminAuth
	CORSOrigins []string
	// Health reports backing store reachability for /healthz; nil means always healthy.
	Health func(ctx context.Context) error
}

// NewRouter wires the REST API onto a fresh gin engine.
func NewRouter(service *app.QuizService, opts RouterOptions) *gin.Engine {
	log := slog.Default().With("component", "http")
	if opts.Auth == nil {
		opts.Auth = NewAdminAuth("", "", 0)
	}
	h := NewHandler(service, opts.Auth)

	router := gin.New()
	router.Use(RequestID(), Recovery(log), RequestLogger(log), CORS(opts.CORSOrigins))

	router.GET("/healthz", func(c *gin.Context) {
		if opts.Health != nil {
			if err := opts.Health(c.Request.Context()); err != nil {
				log.Warn("health check failed", "err", err)
				c.String(http.StatusServiceUnavailable, "unavailable")
				return
			}
		}
		c.String(http.StatusOK, "ok")
	})

	api := router.Group("/api")
	{
		api.POST("/login", h.Login)
		api.GET("/check-participant/:id", h.CheckParticipant)
		api.GET("/questions", h.Questions)
		api.POST("/submit", h.Submit)
		api.POST("/disqualify", h.Disqualify)
		api.POST("/admin/login", h.AdminLogin)

		admin := api.Group("/")
		admin.Use(opts.Auth.Middleware())
		{
			admin.GET("/participants", h.Participants)
			admin.GET("/standings", h.Standings)
		}
	}
	return router
}
