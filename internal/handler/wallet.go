package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/xbinlabs/mining-rental/internal/model"
	"github.com/xbinlabs/mining-rental/internal/repository"
	"github.com/xbinlabs/mining-rental/internal/response"
)

// WalletHandler serves the per-user crypto wallet endpoints. Wallet rows
// are provisioned lazily on first read.
type WalletHandler struct {
	Wallets *repository.WalletRepo
}

func NewWalletHandler(wallets *repository.WalletRepo) *WalletHandler {
	return &WalletHandler{Wallets: wallets}
}

type updateAddressReq struct {
	WalletAddress string `json:"walletAddress" validate:"required,min=10,max=200"`
}

// List returns the caller's wallets, creating missing rows first.
func (h *WalletHandler) List(c echo.Context) error {
	userID, _ := c.Get("user_id").(string)

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	if err := h.Wallets.EnsureWallets(ctx, userID); err != nil {
		return internalError(c, "provision wallets failed")
	}
	wallets, err := h.Wallets.ListByUser(ctx, userID)
	if err != nil {
		return internalError(c, "list wallets failed")
	}
	return c.JSON(http.StatusOK, response.OK("Wallets", wallets))
}

// Get returns the caller's wallet for one currency.
func (h *WalletHandler) Get(c echo.Context) error {
	userID, _ := c.Get("user_id").(string)
	cryptoType := strings.ToUpper(c.Param("cryptoType"))
	if !model.ValidCryptoType(cryptoType) {
		return c.JSON(http.StatusBadRequest,
			response.Error("Unsupported currency", "WALLET_001", "unknown crypto type"))
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	if err := h.Wallets.EnsureWallets(ctx, userID); err != nil {
		return internalError(c, "provision wallets failed")
	}
	wallet, err := h.Wallets.Get(ctx, userID, cryptoType)
	if err != nil {
		if errors.Is(err, repository.ErrWalletNotFound) {
			return c.JSON(http.StatusNotFound,
				response.Error("Wallet not found", "WALLET_001", "no wallet for this currency"))
		}
		return internalError(c, "query wallet failed")
	}
	return c.JSON(http.StatusOK, response.OK("Wallet", wallet))
}

// UpdateAddress stores the caller's payout address for one currency.
func (h *WalletHandler) UpdateAddress(c echo.Context) error {
	userID, _ := c.Get("user_id").(string)
	cryptoType := strings.ToUpper(c.Param("cryptoType"))
	if !model.ValidCryptoType(cryptoType) {
		return c.JSON(http.StatusBadRequest,
			response.Error("Unsupported currency", "WALLET_001", "unknown crypto type"))
	}

	var req updateAddressReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest,
			response.Error("Invalid request body", "WALLET_001", "malformed JSON"))
	}
	if err := c.Validate(&req); err != nil {
		return validationFailed(c, err)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	if err := h.Wallets.EnsureWallets(ctx, userID); err != nil {
		return internalError(c, "provision wallets failed")
	}
	if err := h.Wallets.UpdateAddress(ctx, userID, cryptoType, req.WalletAddress); err != nil {
		if errors.Is(err, repository.ErrWalletNotFound) {
			return c.JSON(http.StatusNotFound,
				response.Error("Wallet not found", "WALLET_001", "no wallet for this currency"))
		}
		return internalError(c, "update address failed")
	}
	wallet, err := h.Wallets.Get(ctx, userID, cryptoType)
	if err != nil {
		return internalError(c, "reload wallet failed")
	}
	return c.JSON(http.StatusOK, response.OK("Address updated", wallet))
}

// ----- admin -----

type adjustBalanceReq struct {
	Amount float64 `json:"amount" validate:"required,gt=0"`
}

// Credit adds funds to a user's wallet.
func (h *WalletHandler) Credit(c echo.Context) error {
	return h.adjust(c, true)
}

// Debit removes funds from a user's wallet; overdrafts are refused.
func (h *WalletHandler) Debit(c echo.Context) error {
	return h.adjust(c, false)
}

func (h *WalletHandler) adjust(c echo.Context, credit bool) error {
	targetID := c.Param("userId")
	cryptoType := strings.ToUpper(c.Param("cryptoType"))
	if !model.ValidCryptoType(cryptoType) {
		return c.JSON(http.StatusBadRequest,
			response.Error("Unsupported currency", "WALLET_001", "unknown crypto type"))
	}

	var req adjustBalanceReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest,
			response.Error("Invalid request body", "WALLET_001", "malformed JSON"))
	}
	if err := c.Validate(&req); err != nil {
		return validationFailed(c, err)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	if err := h.Wallets.EnsureWallets(ctx, targetID); err != nil {
		return internalError(c, "provision wallets failed")
	}

	var err error
	if credit {
		err = h.Wallets.AddBalance(ctx, targetID, cryptoType, req.Amount)
	} else {
		err = h.Wallets.SubtractBalance(ctx, targetID, cryptoType, req.Amount)
	}
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrWalletNotFound):
			return c.JSON(http.StatusNotFound,
				response.Error("Wallet not found", "WALLET_001", "no wallet for this currency"))
		case errors.Is(err, repository.ErrConflict):
			return c.JSON(http.StatusBadRequest,
				response.Error("Insufficient balance", "WALLET_002", "amount exceeds the wallet balance"))
		}
		return internalError(c, "adjust balance failed")
	}

	wallet, err := h.Wallets.Get(ctx, targetID, cryptoType)
	if err != nil {
		return internalError(c, "reload wallet failed")
	}
	return c.JSON(http.StatusOK, response.OK("Balance updated", wallet))
}
