package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"essayhub/internal/services"
)

type VerifyHandler struct {
	Verification *services.VerificationService
}

func NewVerifyHandler(v *services.VerificationService) *VerifyHandler {
	return &VerifyHandler{Verification: v}
}

func (h *VerifyHandler) ConfirmUser(c *gin.Context) {
	var req struct {
		UserID int64  `json:"user_id" binding:"required"`
		Code   string `json:"code" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.Verification.Confirm(req.UserID, req.Code); err != nil {
		switch err {
		case services.ErrCodeExpired:
			c.JSON(http.StatusBadRequest, gin.H{"error": "code expired, please resend"})
		case services.ErrTooManyAttempts:
			c.JSON(http.StatusBadRequest, gin.H{"error": "too many attempts, please resend"})
		case services.ErrCodeInvalid:
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid code"})
		case services.ErrNoActiveVerification:
			c.JSON(http.StatusBadRequest, gin.H{"error": "No active verification found"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "confirmation failed"})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Email verified"})
}

func (h *VerifyHandler) ResendUser(c *gin.Context) {
	var req struct {
		UserID int64 `json:"user_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.Verification.Resend(req.UserID); err != nil {
		if err == services.ErrResendThrottled {
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "too many requests, try later"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Verification code sent"})
}
