package handlers

import (
	"net/http"

	"scrumboard/backend/internal/services"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

type AuthHandler struct {
	authService services.AuthService
	logger      log.FieldLogger
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type TokenRequest struct {
	Token string `json:"token" binding:"required"`
}

type EmailRequest struct {
	Email string `json:"email" binding:"required"`
}

type NewPasswordRequest struct {
	Password             string `json:"password"`
	PasswordConfirmation string `json:"password_confirmation"`
}

type LoginResponse struct {
	Token     string `json:"token"`
	TokenType string `json:"token_type"`
}

func NewAuthHandler(authService services.AuthService, logger log.FieldLogger) *AuthHandler {
	return &AuthHandler{authService: authService, logger: logger}
}

func (h *AuthHandler) CreateAccount(c *gin.Context) {
	var req services.CreateAccountRequest
	if !bindJSON(c, &req) {
		return
	}
	if _, err := h.authService.CreateAccount(c.Request.Context(), req); err != nil {
		respondError(c, h.logger, err)
		return
	}
	message(c, http.StatusCreated, "Account created, check your email to confirm it")
}

func (h *AuthHandler) ConfirmAccount(c *gin.Context) {
	var req TokenRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.authService.ConfirmAccount(c.Request.Context(), req.Token); err != nil {
		respondError(c, h.logger, err)
		return
	}
	message(c, http.StatusOK, "Account confirmed")
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if !bindJSON(c, &req) {
		return
	}
	token, err := h.authService.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, LoginResponse{Token: token, TokenType: "Bearer"})
}

func (h *AuthHandler) RequestConfirmationCode(c *gin.Context) {
	var req EmailRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.authService.RequestConfirmationCode(c.Request.Context(), req.Email); err != nil {
		respondError(c, h.logger, err)
		return
	}
	message(c, http.StatusOK, "A new token was sent to your email")
}

func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var req EmailRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.authService.ForgotPassword(c.Request.Context(), req.Email); err != nil {
		respondError(c, h.logger, err)
		return
	}
	message(c, http.StatusOK, "Check your email for instructions")
}

func (h *AuthHandler) ValidateToken(c *gin.Context) {
	var req TokenRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.authService.ValidateToken(c.Request.Context(), req.Token); err != nil {
		respondError(c, h.logger, err)
		return
	}
	message(c, http.StatusOK, "Valid token, set your new password")
}

func (h *AuthHandler) UpdatePassword(c *gin.Context) {
	var req NewPasswordRequest
	if !bindJSON(c, &req) {
		return
	}
	err := h.authService.UpdatePasswordWithToken(c.Request.Context(), c.Param("token"), req.Password, req.PasswordConfirmation)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	message(c, http.StatusOK, "Password updated successfully")
}

func (h *AuthHandler) User(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, user)
}
