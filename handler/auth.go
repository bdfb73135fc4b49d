package handler

import (
	"net/http"
	"time"

	"github.com/AnTengye/contractdesk/middleware"
	"github.com/AnTengye/contractdesk/pkg/logger"
	"github.com/AnTengye/contractdesk/session"
	"github.com/gin-gonic/gin"
)

type AuthHandler struct {
	exchanger    session.CredentialExchanger
	secureCookie bool
}

// NewAuthHandler signs users in through exchanger. secureCookie marks the
// token cookie HTTPS-only.
func NewAuthHandler(exchanger session.CredentialExchanger, secureCookie bool) *AuthHandler {
	return &AuthHandler{exchanger: exchanger, secureCookie: secureCookie}
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type LoginResponse struct {
	Token     string      `json:"token"`
	ExpiresAt string      `json:"expires_at"`
	User      UserProfile `json:"user"`
}

type UserProfile struct {
	ID           string `json:"id"`
	Email        string `json:"email"`
	DisplayName  string `json:"display_name,omitempty"`
	Role         string `json:"role"`
	Organization string `json:"organization,omitempty"`
	OrgRole      string `json:"org_role,omitempty"`
}

// Login handles user login
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request")
		return
	}

	s := session.New(h.exchanger)
	grant, err := s.SignIn(c.Request.Context(), session.Credentials{Email: req.Email, Password: req.Password})
	if err != nil {
		logger.Info(c.Request.Context(), "login failed", "email", req.Email, "error", err)
		respondError(c, err)
		return
	}

	maxAge := int(time.Until(grant.ExpiresAt).Seconds())
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.TokenCookie, grant.Token, maxAge, "/", "", h.secureCookie, true)

	logger.Info(c.Request.Context(), "user logged in", "user_id", grant.Identity.ID)
	c.JSON(http.StatusOK, LoginResponse{
		Token:     grant.Token,
		ExpiresAt: grant.ExpiresAt.Format(time.RFC3339),
		User: UserProfile{
			ID:           grant.Identity.ID,
			Email:        grant.Identity.Email,
			DisplayName:  grant.Identity.DisplayName,
			Role:         string(grant.Identity.Role),
			Organization: grant.Identity.Organization,
			OrgRole:      string(grant.Identity.OrgRole),
		},
	})
}

// GetCurrentUser returns the signed-in user
func (h *AuthHandler) GetCurrentUser(c *gin.Context) {
	s := middleware.GetSession(c)
	if s == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}
	identity, ok := s.CurrentIdentity()
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}

	c.JSON(http.StatusOK, UserProfile{
		ID:           identity.ID,
		Email:        identity.Email,
		DisplayName:  identity.DisplayName,
		Role:         string(identity.Role),
		Organization: identity.Organization,
		OrgRole:      string(identity.OrgRole),
	})
}

// Logout revokes the request's token and clears the cookie
func (h *AuthHandler) Logout(c *gin.Context) {
	c.SetCookie(middleware.TokenCookie, "", -1, "/", "", h.secureCookie, true)

	if s := middleware.GetSession(c); s != nil {
		if err := s.SignOut(c.Request.Context()); err != nil {
			respondError(c, err)
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
}
