// Package handler contains the HTTP handlers. Every endpoint returns the
// uniform response envelope; errors carry a machine-readable code.
package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/xbinlabs/mining-rental/internal/config"
	"github.com/xbinlabs/mining-rental/internal/mailer"
	"github.com/xbinlabs/mining-rental/internal/model"
	"github.com/xbinlabs/mining-rental/internal/repository"
	"github.com/xbinlabs/mining-rental/internal/response"
	"github.com/xbinlabs/mining-rental/internal/utils"
)

const dbTimeout = 5 * time.Second

// AuthHandler bundles dependencies for the auth endpoints.
type AuthHandler struct {
	Cfg     config.Config
	Users   *repository.UserRepo
	Wallets *repository.WalletRepo
	Mailer  *mailer.Mailer
	Log     zerolog.Logger
}

func NewAuthHandler(cfg config.Config, users *repository.UserRepo, wallets *repository.WalletRepo, m *mailer.Mailer, log zerolog.Logger) *AuthHandler {
	return &AuthHandler{Cfg: cfg, Users: users, Wallets: wallets, Mailer: m, Log: log}
}

// ----- DTOs -----

type registerReq struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	FullName string `json:"fullName" validate:"required,min=2,max=100"`
}

type loginReq struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type forgotPasswordReq struct {
	Email string `json:"email" validate:"required,email"`
}

type verifyResetTokenReq struct {
	Token string `json:"token" validate:"required"`
}

type resetPasswordReq struct {
	Token       string `json:"token" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required,min=8"`
}

type verifyEmailReq struct {
	Token string `json:"token" validate:"required"`
}

type authResp struct {
	User        *model.User `json:"user"`
	AccessToken string      `json:"accessToken"`
	ExpiresAt   time.Time   `json:"expiresAt"`
}

// Register creates a user account, provisions its wallets and sends the
// verification email. The access token is issued immediately; email
// verification gates nothing but is reflected in the profile.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest,
			response.Error("Invalid request body", "AUTH_001", "malformed JSON"))
	}
	if err := c.Validate(&req); err != nil {
		return validationFailed(c, err)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	hash, err := utils.HashPassword(req.Password, h.Cfg.BcryptCost)
	if err != nil {
		return internalError(c, "hash password failed")
	}
	verification, err := utils.NewVerificationToken()
	if err != nil {
		return internalError(c, "issue verification token failed")
	}

	user := &model.User{
		Email:                    req.Email,
		PasswordHash:             hash,
		FullName:                 req.FullName,
		Role:                     model.RoleUser,
		IsActive:                 true,
		EmailVerificationToken:   &verification.Raw,
		EmailVerificationExpires: &verification.Exp,
	}
	if err := h.Users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return c.JSON(http.StatusConflict,
				response.Error("User with this email already exists", "USER_001", "choose another email"))
		}
		return internalError(c, "create user failed")
	}

	if err := h.Wallets.EnsureWallets(ctx, user.ID); err != nil {
		h.Log.Warn().Err(err).Str("user_id", user.ID).Msg("wallet provisioning failed")
	}

	// Email delivery is best-effort; registration never fails over it.
	go func(email, token string) {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := h.Mailer.SendVerificationEmail(ctx, email, token); err != nil {
			h.Log.Warn().Err(err).Str("email", email).Msg("send verification email failed")
		}
	}(user.Email, verification.Raw)

	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, user.ID, user.Email, user.Role, h.Cfg.AccessTTLMin)
	if err != nil {
		return internalError(c, "issue access token failed")
	}

	return c.JSON(http.StatusCreated, response.OK("Registration successful", authResp{
		User:        user,
		AccessToken: access.Token,
		ExpiresAt:   access.Exp,
	}))
}

// Login verifies credentials and issues a fresh access token.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest,
			response.Error("Invalid request body", "AUTH_001", "malformed JSON"))
	}
	if err := c.Validate(&req); err != nil {
		return validationFailed(c, err)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	user, err := h.Users.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return c.JSON(http.StatusUnauthorized,
				response.Error("Invalid credentials", "AUTH_001", "email or password incorrect"))
		}
		return internalError(c, "query user failed")
	}
	if !user.IsActive {
		return c.JSON(http.StatusUnauthorized,
			response.Error("Account is deactivated", "AUTH_002", "contact support"))
	}
	if !utils.VerifyPassword(user.PasswordHash, req.Password) {
		return c.JSON(http.StatusUnauthorized,
			response.Error("Invalid credentials", "AUTH_001", "email or password incorrect"))
	}

	if err := h.Users.TouchLastLogin(ctx, user.ID); err != nil {
		h.Log.Warn().Err(err).Str("user_id", user.ID).Msg("touch last login failed")
	}

	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, user.ID, user.Email, user.Role, h.Cfg.AccessTTLMin)
	if err != nil {
		return internalError(c, "issue access token failed")
	}

	return c.JSON(http.StatusOK, response.OK("Login successful", authResp{
		User:        user,
		AccessToken: access.Token,
		ExpiresAt:   access.Exp,
	}))
}

// ForgotPassword issues a reset token and emails the link. The response is
// identical whether or not the email exists so accounts cannot be
// enumerated.
func (h *AuthHandler) ForgotPassword(c echo.Context) error {
	var req forgotPasswordReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest,
			response.Error("Invalid request body", "AUTH_001", "malformed JSON"))
	}
	if err := c.Validate(&req); err != nil {
		return validationFailed(c, err)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	const neutral = "If the email exists, a password reset link has been sent"

	user, err := h.Users.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return c.JSON(http.StatusOK, response.OK(neutral, nil))
		}
		return internalError(c, "query user failed")
	}

	reset, err := utils.NewResetToken()
	if err != nil {
		return internalError(c, "issue reset token failed")
	}
	if err := h.Users.SetResetToken(ctx, user.ID, reset.Raw, reset.Exp); err != nil {
		return internalError(c, "store reset token failed")
	}

	go func(email, token string) {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := h.Mailer.SendPasswordResetEmail(ctx, email, token); err != nil {
			h.Log.Warn().Err(err).Str("email", email).Msg("send reset email failed")
		}
	}(user.Email, reset.Raw)

	return c.JSON(http.StatusOK, response.OK(neutral, nil))
}

// VerifyResetToken confirms a reset token is valid and unexpired without
// consuming it, so the frontend can show the reset form.
func (h *AuthHandler) VerifyResetToken(c echo.Context) error {
	var req verifyResetTokenReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest,
			response.Error("Invalid request body", "AUTH_001", "malformed JSON"))
	}
	if err := c.Validate(&req); err != nil {
		return validationFailed(c, err)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	if _, err := h.Users.GetByResetToken(ctx, req.Token); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return c.JSON(http.StatusBadRequest,
				response.Error("Invalid or expired reset token", "AUTH_003", "request a new reset link"))
		}
		return internalError(c, "query reset token failed")
	}
	return c.JSON(http.StatusOK, response.OK("Token is valid", echo.Map{"valid": true}))
}

// ResetPassword consumes a reset token and replaces the password.
func (h *AuthHandler) ResetPassword(c echo.Context) error {
	var req resetPasswordReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest,
			response.Error("Invalid request body", "AUTH_001", "malformed JSON"))
	}
	if err := c.Validate(&req); err != nil {
		return validationFailed(c, err)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	user, err := h.Users.GetByResetToken(ctx, req.Token)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return c.JSON(http.StatusBadRequest,
				response.Error("Invalid or expired reset token", "AUTH_003", "request a new reset link"))
		}
		return internalError(c, "query reset token failed")
	}

	hash, err := utils.HashPassword(req.NewPassword, h.Cfg.BcryptCost)
	if err != nil {
		return internalError(c, "hash password failed")
	}
	if err := h.Users.ClearResetToken(ctx, user.ID, hash); err != nil {
		return internalError(c, "reset password failed")
	}
	return c.JSON(http.StatusOK, response.OK("Password has been reset", nil))
}

// VerifyEmail consumes a verification token and marks the email verified.
func (h *AuthHandler) VerifyEmail(c echo.Context) error {
	var req verifyEmailReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest,
			response.Error("Invalid request body", "AUTH_001", "malformed JSON"))
	}
	if err := c.Validate(&req); err != nil {
		return validationFailed(c, err)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	user, err := h.Users.GetByVerificationToken(ctx, req.Token)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return c.JSON(http.StatusBadRequest,
				response.Error("Invalid or expired verification token", "AUTH_005", "request a new verification email"))
		}
		return internalError(c, "query verification token failed")
	}
	if err := h.Users.MarkEmailVerified(ctx, user.ID); err != nil {
		return internalError(c, "mark email verified failed")
	}
	return c.JSON(http.StatusOK, response.OK("Email verified successfully", nil))
}

// ResendVerification issues a fresh verification token for the
// authenticated user.
func (h *AuthHandler) ResendVerification(c echo.Context) error {
	userID, _ := c.Get("user_id").(string)

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	user, err := h.Users.GetByID(ctx, userID)
	if err != nil {
		return c.JSON(http.StatusNotFound,
			response.Error("User not found", "USER_002", "account no longer exists"))
	}
	if user.EmailVerified {
		return c.JSON(http.StatusBadRequest,
			response.Error("Email already verified", "AUTH_007", "no verification needed"))
	}

	verification, err := utils.NewVerificationToken()
	if err != nil {
		return internalError(c, "issue verification token failed")
	}
	if err := h.Users.SetVerificationToken(ctx, user.ID, verification.Raw, verification.Exp); err != nil {
		return internalError(c, "store verification token failed")
	}

	go func(email, token string) {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := h.Mailer.SendVerificationEmail(ctx, email, token); err != nil {
			h.Log.Warn().Err(err).Str("email", email).Msg("send verification email failed")
		}
	}(user.Email, verification.Raw)

	return c.JSON(http.StatusOK, response.OK("Verification email sent", nil))
}

// Me returns the authenticated user's profile.
func (h *AuthHandler) Me(c echo.Context) error {
	userID, _ := c.Get("user_id").(string)

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	user, err := h.Users.GetByID(ctx, userID)
	if err != nil {
		return c.JSON(http.StatusNotFound,
			response.Error("User not found", "USER_002", "account no longer exists"))
	}
	return c.JSON(http.StatusOK, response.OK("Profile", user))
}
