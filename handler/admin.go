package handler

import (
	"html/template"
	"net/http"

	"github.com/AnTengye/contractdesk/middleware"
	"github.com/AnTengye/contractdesk/model"
	"github.com/AnTengye/contractdesk/service"
	"github.com/AnTengye/contractdesk/session"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/render"
)

// DashboardPath is where non-admins land when they open the admin page
const DashboardPath = "/dashboard"

var adminPage = template.Must(template.New("admin").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>contractdesk admin</title></head>
<body>
<h1>Administration</h1>
<p>Signed in as {{.User.Email}}{{with .User.DisplayName}} ({{.}}){{end}}</p>
<ul>
<li>Contracts: {{.Dashboard.TotalContracts}}</li>
<li>Pending reviews: {{len .Dashboard.PendingReviews}}</li>
<li>Open tasks: {{len .Dashboard.OpenTasks}} ({{.Dashboard.OverdueTasks}} overdue)</li>
<li>Templates: {{.Dashboard.Templates}}</li>
</ul>
</body>
</html>
`))

type AdminHandler struct {
	dashboard *service.DashboardService
}

func NewAdminHandler(dashboard *service.DashboardService) *AdminHandler {
	return &AdminHandler{dashboard: dashboard}
}

// Page serves the admin entry page. Anyone but an admin is redirected to
// the dashboard, once, as soon as their session is known.
func (h *AdminHandler) Page(c *gin.Context) {
	s := middleware.GetSession(c)
	if s == nil {
		c.Redirect(http.StatusFound, DashboardPath)
		return
	}

	guard := session.NewGuard(s, session.RedirectFunc(func(target string) {
		c.Redirect(http.StatusFound, target)
	}), DashboardPath, model.RoleAdmin)
	defer guard.Close()

	switch {
	case guard.Redirected():
		c.Abort()
		return
	case !guard.Decided():
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "Session is still loading"})
		return
	}

	d, err := h.dashboard.Get(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	identity, _ := s.CurrentIdentity()
	c.Render(http.StatusOK, render.HTML{
		Template: adminPage,
		Name:     "admin",
		Data: struct {
			User      *model.Identity
			Dashboard *service.Dashboard
		}{identity, d},
	})
}
