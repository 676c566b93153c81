package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/xbinlabs/mining-rental/internal/repository"
	"github.com/xbinlabs/mining-rental/internal/response"
	"github.com/xbinlabs/mining-rental/internal/service"
)

// BookingUserHandler serves the booking endpoints available to regular
// users: creating requests, tracking them and talking to the admins.
type BookingUserHandler struct {
	Bookings *service.BookingService
}

func NewBookingUserHandler(bookings *service.BookingService) *BookingUserHandler {
	return &BookingUserHandler{Bookings: bookings}
}

type createBookingReq struct {
	MachineID      string  `json:"machineId" validate:"required,uuid4"`
	RentalDuration string  `json:"rentalDuration" validate:"required,oneof=hour day week month"`
	Quantity       int     `json:"quantity" validate:"required,gte=1"`
	UserNotes      *string `json:"userNotes"`
}

type paymentSentReq struct {
	TransactionHash *string `json:"transactionHash"`
}

type sendMessageReq struct {
	Content string `json:"content" validate:"required,min=1,max=2000"`
}

// Create opens a new booking request in the pending state.
func (h *BookingUserHandler) Create(c echo.Context) error {
	userID, _ := c.Get("user_id").(string)

	var req createBookingReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest,
			response.Error("Invalid request body", "BOOKING_001", "malformed JSON"))
	}
	if err := c.Validate(&req); err != nil {
		return validationFailed(c, err)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	booking, err := h.Bookings.Create(ctx, userID, req.MachineID, req.RentalDuration, req.Quantity, req.UserNotes)
	if err != nil {
		return bookingError(c, err)
	}
	return c.JSON(http.StatusCreated, response.OK("Booking request created", booking))
}

// List returns the caller's bookings, newest first.
func (h *BookingUserHandler) List(c echo.Context) error {
	userID, _ := c.Get("user_id").(string)

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	bookings, err := h.Bookings.ListForUser(ctx, userID)
	if err != nil {
		return internalError(c, "list bookings failed")
	}
	return c.JSON(http.StatusOK, response.OK("Bookings", bookings))
}

// Get returns one of the caller's bookings with its machine and thread.
func (h *BookingUserHandler) Get(c echo.Context) error {
	userID, _ := c.Get("user_id").(string)

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	booking, err := h.Bookings.Get(ctx, userID, c.Param("id"), false)
	if err != nil {
		return bookingError(c, err)
	}
	return c.JSON(http.StatusOK, response.OK("Booking", booking))
}

// MarkPaymentSent records the caller's claim that payment was made.
func (h *BookingUserHandler) MarkPaymentSent(c echo.Context) error {
	userID, _ := c.Get("user_id").(string)

	var req paymentSentReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest,
			response.Error("Invalid request body", "BOOKING_001", "malformed JSON"))
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	booking, err := h.Bookings.MarkPaymentSent(ctx, userID, c.Param("id"), req.TransactionHash)
	if err != nil {
		return bookingError(c, err)
	}
	return c.JSON(http.StatusOK, response.OK("Payment marked as sent", booking))
}

// Cancel abandons a booking that has not been approved yet.
func (h *BookingUserHandler) Cancel(c echo.Context) error {
	userID, _ := c.Get("user_id").(string)

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	booking, err := h.Bookings.Cancel(ctx, userID, c.Param("id"))
	if err != nil {
		return bookingError(c, err)
	}
	return c.JSON(http.StatusOK, response.OK("Booking cancelled", booking))
}

// SendMessage posts a text message into the caller's booking thread.
func (h *BookingUserHandler) SendMessage(c echo.Context) error {
	userID, _ := c.Get("user_id").(string)

	var req sendMessageReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest,
			response.Error("Invalid request body", "BOOKING_001", "malformed JSON"))
	}
	if err := c.Validate(&req); err != nil {
		return validationFailed(c, err)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	msg, err := h.Bookings.SendMessage(ctx, userID, c.Param("id"), req.Content, false)
	if err != nil {
		return bookingError(c, err)
	}
	return c.JSON(http.StatusCreated, response.OK("Message sent", msg))
}

// Messages returns the caller's booking thread.
func (h *BookingUserHandler) Messages(c echo.Context) error {
	userID, _ := c.Get("user_id").(string)

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	msgs, err := h.Bookings.Messages(ctx, userID, c.Param("id"), false)
	if err != nil {
		return bookingError(c, err)
	}
	return c.JSON(http.StatusOK, response.OK("Messages", msgs))
}

// MarkMessagesRead clears the unread flag on admin messages in the thread.
func (h *BookingUserHandler) MarkMessagesRead(c echo.Context) error {
	userID, _ := c.Get("user_id").(string)

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	if err := h.Bookings.MarkMessagesRead(ctx, userID, c.Param("id"), false); err != nil {
		return bookingError(c, err)
	}
	return c.JSON(http.StatusOK, response.OK("Messages marked as read", nil))
}

// UnreadCount returns how many admin messages await the caller.
func (h *BookingUserHandler) UnreadCount(c echo.Context) error {
	userID, _ := c.Get("user_id").(string)

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	n, err := h.Bookings.UnreadCount(ctx, userID, false)
	if err != nil {
		return internalError(c, "count unread messages failed")
	}
	return c.JSON(http.StatusOK, response.OK("Unread messages", echo.Map{"count": n}))
}

// bookingError maps service and repository errors to HTTP envelopes.
func bookingError(c echo.Context, err error) error {
	var unitsErr *service.UnitsError
	var stateErr *service.StateError
	switch {
	case errors.Is(err, repository.ErrBookingNotFound):
		return c.JSON(http.StatusNotFound,
			response.Error("Booking not found", "BOOKING_001", "no such booking"))
	case errors.Is(err, repository.ErrMachineNotFound):
		return c.JSON(http.StatusNotFound,
			response.Error("Mining machine not found", "MACHINE_001", "no such machine"))
	case errors.Is(err, repository.ErrForbidden):
		return c.JSON(http.StatusForbidden,
			response.Error("You do not have access to this booking", "BOOKING_002", "not the booking owner"))
	case errors.Is(err, service.ErrInvalidDuration):
		return c.JSON(http.StatusBadRequest,
			response.Error("Invalid rental duration", "BOOKING_003", "use hour, day, week or month"))
	case errors.Is(err, service.ErrInvalidQuantity):
		return c.JSON(http.StatusBadRequest,
			response.Error("Quantity must be at least 1", "BOOKING_003", "increase the quantity"))
	case errors.As(err, &unitsErr):
		return c.JSON(http.StatusBadRequest,
			response.Error(unitsErr.Error(), "MACHINE_003", "reduce the quantity"))
	case errors.As(err, &stateErr):
		return c.JSON(http.StatusBadRequest,
			response.Error("Operation not allowed in the current booking status", "BOOKING_004", stateErr.Error()))
	}
	return internalError(c, "booking operation failed")
}
