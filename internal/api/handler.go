package api

import (
	"net/http"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"

	"lab-loan-backend/internal/loan"
	"lab-loan-backend/internal/model"
	"lab-loan-backend/internal/mw"
	"lab-loan-backend/internal/store"
)

// isAdmin reports whether the authenticated caller holds the admin role.
func isAdmin(c *gin.Context) bool {
	role, ok := c.Get(mw.CtxRole)
	return ok && role.(model.Role) == model.RoleAdmin
}

// Handler holds shared dependencies for API handlers.
type Handler struct {
	store   store.Store
	engine  *loan.Engine
	webpush *webpush.Options
}

// NewHandler creates a new API handler.
func NewHandler(s store.Store, engine *loan.Engine, webpushOptions *webpush.Options) *Handler {
	return &Handler{
		store:   s,
		engine:  engine,
		webpush: webpushOptions,
	}
}

// statusForKind maps loan engine error kinds to transport status codes.
func statusForKind(k loan.Kind) int {
	switch k {
	case loan.KindNotFound:
		return http.StatusNotFound
	case loan.KindInvalidArgument, loan.KindInvalidState:
		return http.StatusBadRequest
	case loan.KindPolicyViolation:
		return http.StatusUnprocessableEntity
	case loan.KindConflict:
		return http.StatusConflict
	case loan.KindForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}
