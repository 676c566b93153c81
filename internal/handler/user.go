package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/xbinlabs/mining-rental/internal/config"
	"github.com/xbinlabs/mining-rental/internal/repository"
	"github.com/xbinlabs/mining-rental/internal/response"
	"github.com/xbinlabs/mining-rental/internal/utils"
)

// UserHandler serves profile self-service plus the admin user directory.
type UserHandler struct {
	Cfg   config.Config
	Users *repository.UserRepo
}

func NewUserHandler(cfg config.Config, users *repository.UserRepo) *UserHandler {
	return &UserHandler{Cfg: cfg, Users: users}
}

type updateProfileReq struct {
	FullName string `json:"fullName" validate:"required,min=2,max=100"`
}

type changePasswordReq struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,min=8"`
}

type setRoleReq struct {
	Role string `json:"role" validate:"required,oneof=user admin"`
}

type setActiveReq struct {
	IsActive *bool `json:"isActive" validate:"required"`
}

// UpdateProfile changes the caller's display name.
func (h *UserHandler) UpdateProfile(c echo.Context) error {
	userID, _ := c.Get("user_id").(string)

	var req updateProfileReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest,
			response.Error("Invalid request body", "USER_002", "malformed JSON"))
	}
	if err := c.Validate(&req); err != nil {
		return validationFailed(c, err)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	if err := h.Users.UpdateProfile(ctx, userID, req.FullName); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return c.JSON(http.StatusNotFound,
				response.Error("User not found", "USER_002", "account no longer exists"))
		}
		return internalError(c, "update profile failed")
	}

	user, err := h.Users.GetByID(ctx, userID)
	if err != nil {
		return internalError(c, "reload profile failed")
	}
	return c.JSON(http.StatusOK, response.OK("Profile updated", user))
}

// ChangePassword verifies the current password before replacing it.
func (h *UserHandler) ChangePassword(c echo.Context) error {
	userID, _ := c.Get("user_id").(string)

	var req changePasswordReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest,
			response.Error("Invalid request body", "USER_003", "malformed JSON"))
	}
	if err := c.Validate(&req); err != nil {
		return validationFailed(c, err)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	user, err := h.Users.GetByID(ctx, userID)
	if err != nil {
		return c.JSON(http.StatusNotFound,
			response.Error("User not found", "USER_002", "account no longer exists"))
	}
	if !utils.VerifyPassword(user.PasswordHash, req.CurrentPassword) {
		return c.JSON(http.StatusBadRequest,
			response.Error("Current password is incorrect", "USER_003", "verify your current password"))
	}

	hash, err := utils.HashPassword(req.NewPassword, h.Cfg.BcryptCost)
	if err != nil {
		return internalError(c, "hash password failed")
	}
	if err := h.Users.UpdatePassword(ctx, userID, hash); err != nil {
		return internalError(c, "update password failed")
	}
	return c.JSON(http.StatusOK, response.OK("Password changed", nil))
}

// ----- admin -----

// List returns a page of users for the admin directory.
func (h *UserHandler) List(c echo.Context) error {
	limit, offset := pagination(c)

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	users, err := h.Users.List(ctx, limit, offset)
	if err != nil {
		return internalError(c, "list users failed")
	}
	total, err := h.Users.Count(ctx)
	if err != nil {
		return internalError(c, "count users failed")
	}
	return c.JSON(http.StatusOK, response.OK("Users", listEnvelope{Items: users, Total: total}))
}

// Get returns one user by id.
func (h *UserHandler) Get(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	user, err := h.Users.GetByID(ctx, c.Param("id"))
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return c.JSON(http.StatusNotFound,
				response.Error("User not found", "USER_002", "no such user"))
		}
		return internalError(c, "query user failed")
	}
	return c.JSON(http.StatusOK, response.OK("User", user))
}

// SetRole promotes or demotes a user. Admins cannot change their own role,
// which keeps at least one admin account intact.
func (h *UserHandler) SetRole(c echo.Context) error {
	adminID, _ := c.Get("user_id").(string)
	targetID := c.Param("id")
	if targetID == adminID {
		return c.JSON(http.StatusBadRequest,
			response.Error("Cannot change your own role", "USER_003", "ask another admin"))
	}

	var req setRoleReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest,
			response.Error("Invalid request body", "USER_003", "malformed JSON"))
	}
	if err := c.Validate(&req); err != nil {
		return validationFailed(c, err)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	if err := h.Users.SetRole(ctx, targetID, req.Role); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return c.JSON(http.StatusNotFound,
				response.Error("User not found", "USER_002", "no such user"))
		}
		return internalError(c, "set role failed")
	}
	return c.JSON(http.StatusOK, response.OK("Role updated", echo.Map{"id": targetID, "role": req.Role}))
}

// SetActive toggles an account on or off. Self-deactivation is refused.
func (h *UserHandler) SetActive(c echo.Context) error {
	adminID, _ := c.Get("user_id").(string)
	targetID := c.Param("id")
	if targetID == adminID {
		return c.JSON(http.StatusBadRequest,
			response.Error("Cannot deactivate your own account", "USER_003", "ask another admin"))
	}

	var req setActiveReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest,
			response.Error("Invalid request body", "USER_003", "malformed JSON"))
	}
	if err := c.Validate(&req); err != nil {
		return validationFailed(c, err)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	if err := h.Users.SetActive(ctx, targetID, *req.IsActive); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return c.JSON(http.StatusNotFound,
				response.Error("User not found", "USER_002", "no such user"))
		}
		return internalError(c, "set active failed")
	}
	return c.JSON(http.StatusOK, response.OK("Account updated", echo.Map{"id": targetID, "isActive": *req.IsActive}))
}
