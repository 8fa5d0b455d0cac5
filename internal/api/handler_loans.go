package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"lab-loan-backend/internal/loan"
	"lab-loan-backend/internal/mw"
	"lab-loan-backend/internal/store"
)

type createReservationRequest struct {
	EquipmentID string    `json:"equipmentId" binding:"required"`
	StartDate   time.Time `json:"startDate" binding:"required"`
	EndDate     time.Time `json:"endDate" binding:"required"`
	Remarks     string    `json:"remarks"`
}

// CreateReservation handles POST /api/loans. The borrower is always the
// authenticated caller.
func (h *Handler) CreateReservation(c *gin.Context) {
	var req createReservationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.GetString(mw.CtxUserID)
	created, err := h.engine.CreateReservation(c.Request.Context(), userID, req.EquipmentID, req.StartDate, req.EndDate, req.Remarks)
	if err != nil {
		c.JSON(statusForKind(loan.KindOf(err)), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, created)
}

// GetLoan handles GET /api/loans/:id. Non-admins may only see their own
// loans.
func (h *Handler) GetLoan(c *gin.Context) {
	l, err := h.store.FindLoanByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "loan not found"})
		return
	}

	if !isAdmin(c) && l.UserID != c.GetString(mw.CtxUserID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "not allowed"})
		return
	}

	c.JSON(http.StatusOK, l)
}

// ListLoans handles GET /api/loans (admin) with status/user filters and
// pagination.
func (h *Handler) ListLoans(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	size, _ := strconv.Atoi(c.DefaultQuery("size", "20"))

	loans, total, err := h.store.ListLoans(c.Request.Context(), store.LoanQuery{
		Status: c.Query("status"),
		UserID: c.Query("userId"),
		Page:   page,
		Size:   size,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list loans"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"items": loans,
		"pagination": gin.H{
			"page":  page,
			"size":  size,
			"total": total,
		},
	})
}

// ListMyLoans handles GET /api/loans/me.
func (h *Handler) ListMyLoans(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	size, _ := strconv.Atoi(c.DefaultQuery("size", "20"))

	loans, total, err := h.store.ListLoans(c.Request.Context(), store.LoanQuery{
		UserID: c.GetString(mw.CtxUserID),
		Status: c.Query("status"),
		Page:   page,
		Size:   size,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list loans"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"items": loans,
		"pagination": gin.H{
			"page":  page,
			"size":  size,
			"total": total,
		},
	})
}

// Checkout handles POST /api/loans/:id/checkout (admin).
func (h *Handler) Checkout(c *gin.Context) {
	l, err := h.engine.Checkout(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(statusForKind(loan.KindOf(err)), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, l)
}

type returnLoanRequest struct {
	Remarks string `json:"remarks"`
}

// ReturnLoan handles POST /api/loans/:id/return. The engine enforces that
// the caller is the borrower or an admin.
func (h *Handler) ReturnLoan(c *gin.Context) {
	var req returnLoanRequest
	_ = c.ShouldBindJSON(&req)

	l, err := h.engine.Return(c.Request.Context(), c.Param("id"), req.Remarks, c.GetString(mw.CtxUserID))
	if err != nil {
		c.JSON(statusForKind(loan.KindOf(err)), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, l)
}
