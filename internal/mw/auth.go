package mw

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"lab-loan-backend/internal/model"
	"lab-loan-backend/internal/session"
	"lab-loan-backend/internal/store"
)

// SessionCookie is the cookie carrying the caller's session id.
const SessionCookie = "labloan_session"

// Context keys set by Auth.
const (
	CtxUserID = "userID"
	CtxRole   = "role"
)

// Auth resolves the session cookie to a user and injects the caller's id
// and role into the request context. Inactive or vanished users are
// rejected even when their session is still live.
func Auth(sessions *session.Store, s store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		ck, err := c.Request.Cookie(SessionCookie)
		if err != nil || ck.Value == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
			return
		}

		sess, err := sessions.Get(c.Request.Context(), ck.Value)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "session expired"})
			return
		}

		user, err := s.FindUserByID(c.Request.Context(), sess.UserID)
		if err != nil || !user.Active {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "account unavailable"})
			return
		}

		c.Set(CtxUserID, user.ID)
		c.Set(CtxRole, user.Role)
		c.Next()
	}
}

// RequireAdmin gates a route on the admin role. Must run after Auth.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		role, ok := c.Get(CtxRole)
		if !ok || role.(model.Role) != model.RoleAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin only"})
			return
		}
		c.Next()
	}
}
