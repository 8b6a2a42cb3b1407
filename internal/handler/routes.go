package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/editaliza/editaliza-api/internal/middleware"
	"github.com/editaliza/editaliza-api/internal/service"
)

// Handlers bundles every HTTP handler for route registration.
type Handlers struct {
	Auth       *AuthHandler
	Plans      *PlanHandler
	Subjects   *SubjectHandler
	Topics     *TopicHandler
	Schedule   *ScheduleHandler
	Sessions   *SessionHandler
	Statistics *StatisticsHandler
	Exports    *ExportHandler
	Metrics    *MetricsHandler
}

// RouteOptions toggles feature-gated route groups.
type RouteOptions struct {
	ExportsEnabled bool
}

// RegisterRoutes mounts all API routes under prefix.
func RegisterRoutes(r *gin.Engine, prefix string, h Handlers, auth *service.AuthService, opts RouteOptions) {
	if h.Metrics != nil {
		r.GET("/metrics", h.Metrics.Prometheus)
	}

	api := r.Group(prefix)

	public := api.Group("/auth")
	{
		public.POST("/register", h.Auth.Register)
		public.POST("/login", h.Auth.Login)
		public.POST("/refresh", h.Auth.Refresh)
	}

	protected := api.Group("")
	protected.Use(middleware.JWT(auth))
	{
		protected.POST("/auth/logout", h.Auth.Logout)
		protected.PUT("/auth/password", h.Auth.ChangePassword)
		protected.GET("/auth/me", h.Auth.Me)

		protected.GET("/plans", h.Plans.List)
		protected.POST("/plans", h.Plans.Create)
		protected.GET("/plans/:id", h.Plans.Get)
		protected.PUT("/plans/:id", h.Plans.Update)
		protected.DELETE("/plans/:id", h.Plans.Delete)

		protected.GET("/plans/:id/subjects", h.Subjects.List)
		protected.POST("/plans/:id/subjects", h.Subjects.Create)
		protected.PUT("/subjects/:id", h.Subjects.Update)
		protected.DELETE("/subjects/:id", h.Subjects.Delete)

		protected.GET("/subjects/:id/topics", h.Topics.List)
		protected.POST("/subjects/:id/topics", h.Topics.Create)
		protected.PATCH("/topics/batch", h.Topics.BatchUpdate)
		protected.PUT("/topics/:id", h.Topics.Update)
		protected.DELETE("/topics/:id", h.Topics.Delete)

		protected.POST("/plans/:id/generate", h.Schedule.Generate)
		protected.GET("/plans/:id/schedule", h.Schedule.Get)
		protected.POST("/plans/:id/replan", h.Schedule.Replan)

		protected.POST("/sessions/:id/complete", h.Sessions.Complete)
		protected.POST("/sessions/:id/postpone", h.Sessions.Postpone)
		protected.POST("/sessions/:id/reinforce", h.Sessions.Reinforce)

		protected.GET("/plans/:id/statistics", h.Statistics.Get)

		if opts.ExportsEnabled {
			protected.GET("/plans/:id/export", h.Exports.Schedule)
		}
	}
}
