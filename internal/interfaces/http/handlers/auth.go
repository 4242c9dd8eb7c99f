// internal/interfaces/http/handlers/auth.go
package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/your-org/bookstore-backend/internal/domain/user"
)

// WelcomeMailer greets new customers
type WelcomeMailer interface {
	SendWelcomeEmail(ctx context.Context, userEmail, userName string) error
}

// AuthHandler handles authentication endpoints
type AuthHandler struct {
	userService *user.Service
	mailer      WelcomeMailer
}

// NewAuthHandler creates a new auth handler. mailer may be nil.
func NewAuthHandler(userService *user.Service, mailer WelcomeMailer) *AuthHandler {
	return &AuthHandler{
		userService: userService,
		mailer:      mailer,
	}
}

// Register handles POST /auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	var req user.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithBindError(c, err)
		return
	}

	response, err := h.userService.Register(&req)
	if err != nil {
		respondWithError(c, err, "Failed to register user")
		return
	}

	if h.mailer != nil {
		go h.sendWelcome(response.User)
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "User registered successfully",
		"data":    response,
	})
}

func (h *AuthHandler) sendWelcome(u *user.User) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := h.mailer.SendWelcomeEmail(ctx, u.Email, u.GetDisplayName()); err != nil {
		logrus.WithFields(logrus.Fields{
			"user_id": u.ID,
		}).WithError(err).Warn("Failed to send welcome email")
	}
}

// Login handles POST /auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req user.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithBindError(c, err)
		return
	}

	response, err := h.userService.Login(&req)
	if err != nil {
		respondWithError(c, err, "Failed to log in")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Login successful",
		"data":    response,
	})
}

// RefreshToken handles POST /auth/refresh
func (h *AuthHandler) RefreshToken(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithBindError(c, err)
		return
	}

	response, err := h.userService.RefreshToken(req.RefreshToken)
	if err != nil {
		respondWithError(c, err, "Failed to refresh token")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Token refreshed successfully",
		"data":    response,
	})
}

// Logout handles POST /auth/logout. Tokens are stateless, so the client
// simply discards them.
func (h *AuthHandler) Logout(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "Logged out successfully",
	})
}
