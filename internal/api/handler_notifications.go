package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"lab-loan-backend/internal/mw"
)

// ListNotifications handles GET /api/notifications for the caller.
func (h *Handler) ListNotifications(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	size, _ := strconv.Atoi(c.DefaultQuery("size", "20"))

	notifications, total, err := h.store.ListNotifications(c.Request.Context(), c.GetString(mw.CtxUserID), page, size)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list notifications"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"items": notifications,
		"pagination": gin.H{
			"page":  page,
			"size":  size,
			"total": total,
		},
	})
}

// MarkNotificationRead handles POST /api/notifications/:id/read. The lookup
// is scoped to the caller, so reading someone else's notification 404s.
func (h *Handler) MarkNotificationRead(c *gin.Context) {
	n, err := h.store.MarkNotificationRead(c.Request.Context(), c.Param("id"), c.GetString(mw.CtxUserID))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "notification not found"})
		return
	}
	c.JSON(http.StatusOK, n)
}
