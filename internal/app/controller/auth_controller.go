package controller

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/ikkim/storefront/internal/auth"
	apperrors "github.com/ikkim/storefront/internal/errors"
	"github.com/ikkim/storefront/internal/middleware"
)

type AuthController struct{}

func NewAuthController() *AuthController {
	return &AuthController{}
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type RegisterRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Phone    string `json:"phone"`
	Password string `json:"password" binding:"required,min=6"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type ResetPasswordRequest struct {
	Password string `json:"password" binding:"required,min=6"`
}

type UpdateProfileRequest struct {
	Name    string          `json:"name"`
	Phone   string          `json:"phone"`
	Address json.RawMessage `json:"address"`
}

// Login handles visitor login
// POST /api/v1/auth/login
func (ctrl *AuthController) Login(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)
	sess, ok := visitor(c)
	if !ok {
		return
	}

	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warn("Invalid login request", map[string]interface{}{
			"error": err.Error(),
		})
		apperrors.RespondWithValidationError(c, err)
		return
	}

	user, err := sess.Auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		log.Warn("Login failed", map[string]interface{}{
			"email": req.Email,
			"error": err.Error(),
		})
		apperrors.Respond(c, err, "login")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Login successful",
		"user":    user,
		"cart":    sess.Cart.Snapshot(),
	})
}

// Register creates an account; the visitor still has to log in afterwards
// POST /api/v1/auth/register
func (ctrl *AuthController) Register(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)
	sess, ok := visitor(c)
	if !ok {
		return
	}

	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warn("Invalid registration request", map[string]interface{}{
			"error": err.Error(),
		})
		apperrors.RespondWithValidationError(c, err)
		return
	}

	err := sess.Auth.Register(c.Request.Context(), auth.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Phone:    req.Phone,
		Password: req.Password,
	})
	if err != nil {
		log.Warn("Registration failed", map[string]interface{}{
			"email": req.Email,
			"error": err.Error(),
		})
		apperrors.Respond(c, err, "register")
		return
	}

	log.Info("Visitor registered", map[string]interface{}{
		"email": req.Email,
	})
	c.JSON(http.StatusCreated, gin.H{
		"message":  "Registration successful. Please log in.",
		"redirect": apperrors.LoginPath(),
	})
}

// Logout always succeeds locally
// POST /api/v1/auth/logout
func (ctrl *AuthController) Logout(c *gin.Context) {
	sess, ok := visitor(c)
	if !ok {
		return
	}

	sess.Auth.Logout(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{
		"message": "Logged out successfully",
	})
}

// GetMe returns the held identity
// GET /api/v1/auth/me
func (ctrl *AuthController) GetMe(c *gin.Context) {
	sess, ok := visitor(c)
	if !ok {
		return
	}

	user := sess.Auth.User()
	if user == nil {
		apperrors.Unauthorized(c, "")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"user": user,
	})
}

// UpdateProfile
// PUT /api/v1/auth/profile
func (ctrl *AuthController) UpdateProfile(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)
	sess, ok := visitor(c)
	if !ok {
		return
	}

	var req UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperrors.RespondWithValidationError(c, err)
		return
	}

	user, err := sess.Auth.UpdateProfile(c.Request.Context(), auth.ProfileInput{
		Name:    req.Name,
		Phone:   req.Phone,
		Address: req.Address,
	})
	if err != nil {
		log.Warn("Profile update failed", map[string]interface{}{
			"error": err.Error(),
		})
		apperrors.Respond(c, err, "update profile")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Profile updated successfully",
		"user":    user,
	})
}

// ForgotPassword
// POST /api/v1/auth/forgot-password
func (ctrl *AuthController) ForgotPassword(c *gin.Context) {
	sess, ok := visitor(c)
	if !ok {
		return
	}

	var req ForgotPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperrors.RespondWithValidationError(c, err)
		return
	}

	if err := sess.Auth.ForgotPassword(c.Request.Context(), req.Email); err != nil {
		apperrors.Respond(c, err, "forgot password")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "If the email is registered, a reset link has been sent",
	})
}

// ResetPassword
// POST /api/v1/auth/reset-password/:token
func (ctrl *AuthController) ResetPassword(c *gin.Context) {
	sess, ok := visitor(c)
	if !ok {
		return
	}

	var req ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperrors.RespondWithValidationError(c, err)
		return
	}

	if err := sess.Auth.ResetPassword(c.Request.Context(), c.Param("token"), req.Password); err != nil {
		apperrors.Respond(c, err, "reset password")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":  "Password reset successfully. Please log in.",
		"redirect": apperrors.LoginPath(),
	})
}

// RequestAccountDeletion sends the confirmation email
// POST /api/v1/auth/delete-account
func (ctrl *AuthController) RequestAccountDeletion(c *gin.Context) {
	sess, ok := visitor(c)
	if !ok {
		return
	}

	if err := sess.Auth.RequestAccountDeletion(c.Request.Context()); err != nil {
		apperrors.Respond(c, err, "delete account")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Check your email to confirm account deletion",
	})
}

// ConfirmAccountDeletion
// GET /api/v1/auth/confirm-delete/:token
func (ctrl *AuthController) ConfirmAccountDeletion(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)
	sess, ok := visitor(c)
	if !ok {
		return
	}

	if err := sess.Auth.ConfirmAccountDeletion(c.Request.Context(), c.Param("token")); err != nil {
		apperrors.Respond(c, err, "delete account")
		return
	}

	log.Info("Account deleted")
	c.JSON(http.StatusOK, gin.H{
		"message": "Your account has been deleted",
	})
}
