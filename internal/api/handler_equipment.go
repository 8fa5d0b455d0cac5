package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"lab-loan-backend/internal/model"
)

type equipmentRequest struct {
	Code            string    `json:"code" binding:"required"`
	Name            string    `json:"name" binding:"required"`
	Description     string    `json:"description"`
	Category        string    `json:"category" binding:"required"`
	Location        string    `json:"location" binding:"required"`
	AcquisitionDate time.Time `json:"acquisitionDate" binding:"required"`
	EstimatedValue  float64   `json:"estimatedValue"`
}

// ListEquipment handles GET /api/equipment with optional category/status
// filters. Sits behind the response cache.
func (h *Handler) ListEquipment(c *gin.Context) {
	items, err := h.store.ListEquipment(c.Request.Context(), c.Query("category"), c.Query("status"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list equipment"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

// GetEquipment handles GET /api/equipment/:id.
func (h *Handler) GetEquipment(c *gin.Context) {
	eq, err := h.store.FindEquipmentByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "equipment not found"})
		return
	}
	c.JSON(http.StatusOK, eq)
}

// CreateEquipment handles POST /api/equipment (admin).
func (h *Handler) CreateEquipment(c *gin.Context) {
	var req equipmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.EstimatedValue < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "estimated value must not be negative"})
		return
	}

	eq := &model.Equipment{
		ID:              uuid.NewString(),
		Code:            req.Code,
		Name:            req.Name,
		Description:     req.Description,
		Category:        req.Category,
		Status:          model.EquipmentAvailable,
		Location:        req.Location,
		AcquisitionDate: req.AcquisitionDate,
		EstimatedValue:  req.EstimatedValue,
	}
	if err := h.store.CreateEquipment(c.Request.Context(), eq); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": "equipment code already exists"})
		return
	}
	c.JSON(http.StatusCreated, eq)
}

// UpdateEquipment handles PUT /api/equipment/:id (admin). The status field
// is not editable here; it belongs to the loan engine and the dedicated
// status endpoint.
func (h *Handler) UpdateEquipment(c *gin.Context) {
	eq, err := h.store.FindEquipmentByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "equipment not found"})
		return
	}

	var req equipmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.EstimatedValue < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "estimated value must not be negative"})
		return
	}

	eq.Code = req.Code
	eq.Name = req.Name
	eq.Description = req.Description
	eq.Category = req.Category
	eq.Location = req.Location
	eq.AcquisitionDate = req.AcquisitionDate
	eq.EstimatedValue = req.EstimatedValue

	if err := h.store.UpdateEquipment(c.Request.Context(), eq); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": "equipment code already exists"})
		return
	}
	c.JSON(http.StatusOK, eq)
}

type equipmentStatusRequest struct {
	Status model.EquipmentStatus `json:"status" binding:"required"`
}

// SetEquipmentStatus handles PUT /api/equipment/:id/status (admin). Only
// the maintenance override and its release are accepted; on-loan is derived
// by the loan engine and cannot be set by hand.
func (h *Handler) SetEquipmentStatus(c *gin.Context) {
	var req equipmentStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Status != model.EquipmentMaintenance && req.Status != model.EquipmentAvailable {
		c.JSON(http.StatusBadRequest, gin.H{"error": "status must be maintenance or available"})
		return
	}

	eq, err := h.store.FindEquipmentByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "equipment not found"})
		return
	}

	// Releasing maintenance re-derives availability from open loans.
	status := req.Status
	if status == model.EquipmentAvailable {
		open, err := h.store.CountOpenLoans(c.Request.Context(), eq.ID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to derive status"})
			return
		}
		if open > 0 {
			status = model.EquipmentOnLoan
		}
	}

	if err := h.store.SetEquipmentStatus(c.Request.Context(), eq.ID, status); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update status"})
		return
	}
	eq.Status = status
	c.JSON(http.StatusOK, eq)
}
