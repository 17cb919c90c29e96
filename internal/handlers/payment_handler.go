package handlers

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"essayhub/internal/payments"
	"essayhub/internal/repositories"
	"essayhub/internal/services"
)

type PaymentHandler struct {
	Service *services.PaymentService
}

func NewPaymentHandler(service *services.PaymentService) *PaymentHandler {
	return &PaymentHandler{Service: service}
}

// POST /orders/:id/pay
func (h *PaymentHandler) Initiate(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	var req struct {
		Phone  string `json:"phone" binding:"required"`
		Amount string `json:"amount"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	amount := decimal.Zero
	if req.Amount != "" {
		amount, err = decimal.NewFromString(req.Amount)
		if err != nil || amount.IsNegative() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid amount"})
			return
		}
	}

	ref, err := h.Service.Initiate(c.Request.Context(), id, strings.TrimSpace(req.Phone), amount)
	if err != nil {
		switch {
		case errors.Is(err, repositories.ErrOrderNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
		case errors.Is(err, services.ErrPhoneRequired),
			errors.Is(err, services.ErrAmountRequired):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, services.ErrGatewayFailure):
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		default:
			log.Printf("[payments][initiate] error: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "payment initiation failed"})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "STK push sent, confirm on your phone", "ref": ref})
}

// GET /orders/:id/payment
func (h *PaymentHandler) Status(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	order, err := h.Service.Status(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, repositories.ErrOrderNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"order_id":       order.ID,
		"payment_status": order.PaymentStatus,
		"payment_ref":    order.PaymentRef,
		"amount":         order.Amount,
	})
}

// POST /payments/callback — Daraja webhook. The gateway retries, so this must
// stay idempotent; order id travels in the query string set on CallBackURL.
func (h *PaymentHandler) Callback(c *gin.Context) {
	orderID, err := strconv.ParseInt(c.Query("order_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing order_id"})
		return
	}

	var cb payments.STKCallback
	if err := c.ShouldBindJSON(&cb); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	result := cb.Body.StkCallback

	if result.ResultCode != 0 {
		// declined/cancelled on the handset: nothing to write, payment stays pending
		log.Printf("[payments][callback] declined: order=%d ref=%s code=%d desc=%s",
			orderID, result.CheckoutRequestID, result.ResultCode, result.ResultDesc)
		c.JSON(http.StatusOK, gin.H{"message": "noted"})
		return
	}

	if err := h.Service.Confirm(c.Request.Context(), orderID, result.CheckoutRequestID); err != nil {
		if errors.Is(err, repositories.ErrOrderNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
			return
		}
		log.Printf("[payments][callback] confirm error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "confirmation failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "payment confirmed"})
}
