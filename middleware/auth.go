package middleware

import (
	"net/http"
	"strings"

	"github.com/AnTengye/contractdesk/model"
	"github.com/AnTengye/contractdesk/pkg/logger"
	"github.com/AnTengye/contractdesk/session"
	"github.com/gin-gonic/gin"
)

// TokenCookie carries the bearer token for page requests that cannot set headers
const TokenCookie = "contractdesk_token"

const sessionKey = "session"

// Authority signs users in and out and resolves tokens to identities
type Authority interface {
	session.CredentialExchanger
	Resolver(token string) session.Resolver
}

// SessionObserver is told about every request session. The returned func is
// called when the request is done.
type SessionObserver interface {
	ObserveSession(s *session.Context) func()
}

// AuthRecorder receives authorization outcomes
type AuthRecorder interface {
	RecordAuthorization(err error)
}

// Session resolves the request's token into a session.Context and stores it
// in the gin context. Requests without a valid token get an anonymous session.
// obs may be nil.
func Session(authority Authority, obs SessionObserver) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		s := session.WithToken(authority, token)
		if obs != nil {
			defer obs.ObserveSession(s)()
		}

		if err := s.Initialize(c.Request.Context(), authority.Resolver(token)); err != nil {
			logger.Error(c.Request.Context(), "failed to resolve session", "error", err)
			c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": "Identity provider unavailable"})
			return
		}

		if identity, ok := s.CurrentIdentity(); ok {
			ctx := logger.WithUser(c.Request.Context(), identity.ID, string(identity.Role))
			c.Request = c.Request.WithContext(ctx)
		}
		c.Set(sessionKey, s)

		c.Next()
	}
}

// RequireAuth rejects anonymous sessions with 401
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		s := GetSession(c)
		if s == nil || s.State() != session.StateAuthenticated {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			return
		}
		c.Next()
	}
}

// RequireRole rejects sessions lacking every one of roles with 403. rec may be nil.
func RequireRole(rec AuthRecorder, roles ...model.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		s := GetSession(c)
		if s == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			return
		}

		err := s.AuthorizeAction(c.Request.Method+" "+c.FullPath(), roles...)
		if rec != nil {
			rec.RecordAuthorization(err)
		}
		if err != nil {
			logger.Warn(c.Request.Context(), "access denied", "path", c.Request.URL.Path, "error", err)
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": err.Error()})
			return
		}
		c.Next()
	}
}

// GetSession returns the request's session, or nil outside the Session middleware
func GetSession(c *gin.Context) *session.Context {
	if v, exists := c.Get(sessionKey); exists {
		if s, ok := v.(*session.Context); ok {
			return s
		}
	}
	return nil
}

// GetUserID returns the signed-in user's id, or "" for anonymous requests
func GetUserID(c *gin.Context) string {
	if s := GetSession(c); s != nil {
		if identity, ok := s.CurrentIdentity(); ok {
			return identity.ID
		}
	}
	return ""
}

// bearerToken reads "Authorization: Bearer <token>", falling back to the token cookie
func bearerToken(c *gin.Context) string {
	if authHeader := c.GetHeader("Authorization"); authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && parts[0] == "Bearer" {
			return strings.TrimSpace(parts[1])
		}
		return ""
	}
	if cookie, err := c.Cookie(TokenCookie); err == nil {
		return cookie
	}
	return ""
}
