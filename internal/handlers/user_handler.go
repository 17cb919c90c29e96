package handlers

import (
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/lib/pq"

	"essayhub/internal/authz"
	"essayhub/internal/models"
	"essayhub/internal/services"
)

type UserHandler struct {
	service      services.UserService
	verification *services.VerificationService
}

func NewUserHandler(service services.UserService, verification *services.VerificationService) *UserHandler {
	return &UserHandler{service: service, verification: verification}
}

type registerRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
	Role     string `json:"role"` // "client" (default) or "writer"
	Country  string `json:"country"`
}

func selfServiceRole(role string) (int, bool) {
	switch strings.ToLower(strings.TrimSpace(role)) {
	case "", "client":
		return authz.RoleClient, true
	case "writer":
		return authz.RoleWriter, true
	}
	return 0, false
}

// POST /register
// New accounts start unapproved; a 6-digit code goes out by email.
func (h *UserHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	roleID, ok := selfServiceRole(req.Role)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "role must be client or writer"})
		return
	}

	user := &models.User{
		Name:     req.Name,
		Email:    strings.ToLower(strings.TrimSpace(req.Email)),
		RoleID:   roleID,
		Country:  req.Country,
		Approved: false,
	}
	if err := h.service.CreateUserWithPassword(user, req.Password); err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			c.JSON(http.StatusConflict, gin.H{"error": "Email already exists"})
			return
		}
		log.Printf("Register: service error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create user"})
		return
	}

	if err := h.verification.SendCode(user.ID); err != nil {
		// account exists; the code can be re-requested
		log.Printf("Register: warning: send verification code failed for user=%d: %v", user.ID, err)
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Registration successful, check your email for the verification code",
		"user":    user,
	})
}

// GET /users  (admin)
func (h *UserHandler) ListUsers(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	size, _ := strconv.Atoi(c.DefaultQuery("size", "100"))
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = 100
	}
	users, err := h.service.ListUsers(size, (page-1)*size)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not fetch users"})
		return
	}
	c.JSON(http.StatusOK, users)
}

// GET /users/:id  (self or admin)
func (h *UserHandler) GetUserByID(c *gin.Context) {
	callerID, roleID := getUserAndRole(c)

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID"})
		return
	}
	if roleID != authz.RoleAdmin && callerID != id {
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		return
	}
	user, err := h.service.GetUserByID(id)
	if err != nil || user == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}
	c.JSON(http.StatusOK, user)
}

// POST /users/:id/approve  (admin)
func (h *UserHandler) ApproveUser(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID"})
		return
	}
	if err := h.service.ApproveUser(id); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "User approved"})
}

// DELETE /users/:id  (admin; verification codes cascade)
func (h *UserHandler) DeleteUser(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID"})
		return
	}
	if err := h.service.DeleteUser(id); err != nil {
		log.Printf("DeleteUser: service error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete user"})
		return
	}
	c.Status(http.StatusNoContent)
}

// GET /users/count  (admin)
func (h *UserHandler) GetUserCount(c *gin.Context) {
	count, err := h.service.GetUserCount()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not count users"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": count})
}
