package handlers

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"essayhub/internal/models"
	"essayhub/internal/repositories"
	"essayhub/internal/services"
)

type OrderHandler struct {
	Service   services.OrderService
	FilesRoot string
}

func NewOrderHandler(service services.OrderService, filesRoot string) *OrderHandler {
	return &OrderHandler{Service: service, FilesRoot: filesRoot}
}

type createOrderRequest struct {
	Title       string `json:"title" form:"title" binding:"required"`
	Description string `json:"description" form:"description"`
	Amount      string `json:"amount" form:"amount"`
	Deadline    string `json:"deadline" form:"deadline"` // RFC3339, optional
}

// POST /orders  (client)
// Accepts JSON or multipart; multipart may carry a client_guide file in place
// of the description.
func (h *OrderHandler) Create(c *gin.Context) {
	userID, _ := getUserAndRole(c)

	var req createOrderRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	order := &models.Order{
		Title:       strings.TrimSpace(req.Title),
		Description: strings.TrimSpace(req.Description),
		ClientID:    userID,
	}

	if req.Amount != "" {
		amount, err := decimal.NewFromString(req.Amount)
		if err != nil || amount.IsNegative() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid amount"})
			return
		}
		order.Amount = amount
	}
	if req.Deadline != "" {
		t, err := time.Parse(time.RFC3339, req.Deadline)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid deadline, expected RFC3339"})
			return
		}
		order.Deadline = &t
	}

	// optional client-supplied brief
	if file, err := c.FormFile("client_guide"); err == nil && file != nil {
		name := fmt.Sprintf("guide_%s%s", uuid.NewString(), filepath.Ext(file.Filename))
		if err := c.SaveUploadedFile(file, filepath.Join(h.FilesRoot, name)); err != nil {
			log.Printf("[orders][create] save guide failed: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not store client guide"})
			return
		}
		order.ClientGuide = &name
	}

	if err := h.Service.Create(c.Request.Context(), order); err != nil {
		switch {
		case errors.Is(err, services.ErrTitleRequired),
			errors.Is(err, services.ErrClientRequired),
			errors.Is(err, services.ErrBriefRequired):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			log.Printf("[orders][create] service error: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create order"})
		}
		return
	}
	c.JSON(http.StatusCreated, order)
}

// GET /orders
func (h *OrderHandler) List(c *gin.Context) {
	userID, roleID := getUserAndRole(c)
	orders, err := h.Service.List(c.Request.Context(), userID, roleID)
	if err != nil {
		if errors.Is(err, services.ErrForbidden) {
			c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not fetch orders"})
		return
	}
	c.JSON(http.StatusOK, orders)
}

// GET /orders/:id
func (h *OrderHandler) GetByID(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	userID, roleID := getUserAndRole(c)
	order, err := h.Service.GetByID(c.Request.Context(), id, userID, roleID)
	if err != nil {
		writeOrderError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// POST /orders/:id/assign  (admin)
func (h *OrderHandler) Assign(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	var req struct {
		WriterID int64 `json:"writer_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.Service.Assign(c.Request.Context(), id, req.WriterID); err != nil {
		writeOrderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Order assigned"})
}

// POST /orders/:id/claim  (writer, self)
func (h *OrderHandler) Claim(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	userID, _ := getUserAndRole(c)
	if err := h.Service.Claim(c.Request.Context(), id, userID); err != nil {
		writeOrderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Order claimed"})
}

// POST /orders/:id/status  (assigned writer or admin)
func (h *OrderHandler) UpdateStatus(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	var req struct {
		Status string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	userID, roleID := getUserAndRole(c)
	if err := h.Service.UpdateStatus(c.Request.Context(), id, models.OrderStatus(req.Status), userID, roleID); err != nil {
		writeOrderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Status updated"})
}

// POST /orders/:id/submit  (assigned writer, multipart file)
func (h *OrderHandler) SubmitWork(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	userID, roleID := getUserAndRole(c)

	file, err := c.FormFile("file")
	if err != nil || file == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no file attached"})
		return
	}

	name := fmt.Sprintf("order_%d_submission%s", id, filepath.Ext(file.Filename))
	if err := c.SaveUploadedFile(file, filepath.Join(h.FilesRoot, name)); err != nil {
		log.Printf("[orders][submit] save upload failed for order=%d: %v", id, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not store file"})
		return
	}

	if err := h.Service.SubmitWork(c.Request.Context(), id, userID, roleID, name); err != nil {
		writeOrderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Work submitted", "file": name})
}

// POST /orders/:id/deliver  (admin)
func (h *OrderHandler) Deliver(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	if err := h.Service.Deliver(c.Request.Context(), id); err != nil {
		writeOrderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Order delivered"})
}

// DELETE /orders/:id  (admin)
func (h *OrderHandler) Delete(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	if err := h.Service.Delete(c.Request.Context(), id); err != nil {
		writeOrderError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// shared sentinel -> HTTP status mapping for order operations
func writeOrderError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, repositories.ErrOrderNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
	case errors.Is(err, repositories.ErrOrderTaken):
		c.JSON(http.StatusConflict, gin.H{"error": "Order already assigned"})
	case errors.Is(err, repositories.ErrWriterBusy):
		c.JSON(http.StatusConflict, gin.H{"error": "Writer already has an active order"})
	case errors.Is(err, repositories.ErrWriterNotFound),
		errors.Is(err, services.ErrNotAWriter):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrForbidden),
		errors.Is(err, services.ErrNotAssignedToYou):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrUnknownStatus),
		errors.Is(err, services.ErrNoFileAttached):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		log.Printf("[orders] store error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
