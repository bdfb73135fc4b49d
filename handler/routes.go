package handler

import (
	"slices"

	"github.com/AnTengye/contractdesk/middleware"
	"github.com/AnTengye/contractdesk/model"
	"github.com/gin-gonic/gin"
)

// Handlers bundles the HTTP handlers served under /api and /admin
type Handlers struct {
	Auth      *AuthHandler
	Contracts *ContractHandler
	Templates *TemplateHandler
	Reviews   *ReviewHandler
	Tasks     *TaskHandler
	Dashboard *DashboardHandler
	Admin     *AdminHandler
}

// Observer is told about sessions and authorization decisions
type Observer interface {
	middleware.SessionObserver
	middleware.AuthRecorder
}

// Register mounts every route on router. Every /api and /admin request gets
// a session first; extra runs right after that, e.g. rate limiting keyed by
// user. obs may be nil.
func (h *Handlers) Register(router gin.IRouter, authority middleware.Authority, obs Observer, extra ...gin.HandlerFunc) {
	var (
		sessions middleware.SessionObserver
		auth     middleware.AuthRecorder
	)
	if obs != nil {
		sessions, auth = obs, obs
	}

	withSession := slices.Concat([]gin.HandlerFunc{middleware.Session(authority, sessions)}, extra)

	router.GET("/admin", slices.Concat(withSession, []gin.HandlerFunc{h.Admin.Page})...)

	api := router.Group("/api", withSession...)
	api.POST("/auth/login", h.Auth.Login)

	protected := api.Group("", middleware.RequireAuth())
	{
		protected.GET("/auth/me", h.Auth.GetCurrentUser)
		protected.POST("/auth/logout", h.Auth.Logout)

		protected.GET("/dashboard", h.Dashboard.Get)

		protected.GET("/contracts", h.Contracts.List)
		protected.POST("/contracts", h.Contracts.Create)
		protected.POST("/contracts/upload", h.Contracts.Upload)
		protected.GET("/contracts/:id", h.Contracts.Get)
		protected.PATCH("/contracts/:id", h.Contracts.Update)
		protected.DELETE("/contracts/:id", h.Contracts.Delete)
		protected.POST("/contracts/:id/review", h.Contracts.SubmitForReview)
		protected.POST("/contracts/:id/summarize", h.Contracts.Summarize)

		protected.GET("/templates", h.Templates.List)
		protected.GET("/templates/:id", h.Templates.Get)

		protected.GET("/reviews", h.Reviews.List)
		protected.GET("/reviews/:id", h.Reviews.Get)
		protected.POST("/reviews/:id/complete", h.Reviews.Complete)

		protected.GET("/tasks", h.Tasks.List)
		protected.POST("/tasks", h.Tasks.Create)
		protected.PATCH("/tasks/:id", h.Tasks.UpdateStatus)
		protected.DELETE("/tasks/:id", h.Tasks.Delete)
	}

	admin := protected.Group("", middleware.RequireRole(auth, model.RoleAdmin))
	{
		admin.POST("/templates", h.Templates.Create)
		admin.PUT("/templates/:id", h.Templates.Replace)
	}
}
