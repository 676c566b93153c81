package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/xbinlabs/mining-rental/internal/response"
	"github.com/xbinlabs/mining-rental/internal/service"
)

// BookingAdminHandler serves the admin side of the booking workflow:
// reviewing requests, driving the payment confirmation and messaging.
type BookingAdminHandler struct {
	Bookings *service.BookingService
}

func NewBookingAdminHandler(bookings *service.BookingService) *BookingAdminHandler {
	return &BookingAdminHandler{Bookings: bookings}
}

type paymentAddressReq struct {
	PaymentAddress string `json:"paymentAddress" validate:"required,min=10,max=200"`
}

type approveReq struct {
	AdminNotes *string `json:"adminNotes"`
}

type rejectReq struct {
	Reason *string `json:"reason"`
}

// List returns a page of all bookings, optionally filtered by status.
func (h *BookingAdminHandler) List(c echo.Context) error {
	limit, offset := pagination(c)

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	bookings, total, err := h.Bookings.ListAll(ctx, c.QueryParam("status"), limit, offset)
	if err != nil {
		return bookingError(c, err)
	}
	return c.JSON(http.StatusOK, response.OK("Bookings", listEnvelope{Items: bookings, Total: total}))
}

// Get returns any booking with machine and thread.
func (h *BookingAdminHandler) Get(c echo.Context) error {
	adminID, _ := c.Get("user_id").(string)

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	booking, err := h.Bookings.Get(ctx, adminID, c.Param("id"), true)
	if err != nil {
		return bookingError(c, err)
	}
	return c.JSON(http.StatusOK, response.OK("Booking", booking))
}

// SendPaymentAddress moves a pending booking to awaiting_payment.
func (h *BookingAdminHandler) SendPaymentAddress(c echo.Context) error {
	adminID, _ := c.Get("user_id").(string)

	var req paymentAddressReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest,
			response.Error("Invalid request body", "BOOKING_001", "malformed JSON"))
	}
	if err := c.Validate(&req); err != nil {
		return validationFailed(c, err)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	booking, err := h.Bookings.SendPaymentAddress(ctx, adminID, c.Param("id"), req.PaymentAddress)
	if err != nil {
		return bookingError(c, err)
	}
	return c.JSON(http.StatusOK, response.OK("Payment address sent", booking))
}

// Approve finalizes a payment_sent booking and commits machine units.
func (h *BookingAdminHandler) Approve(c echo.Context) error {
	adminID, _ := c.Get("user_id").(string)

	var req approveReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest,
			response.Error("Invalid request body", "BOOKING_001", "malformed JSON"))
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	booking, err := h.Bookings.Approve(ctx, adminID, c.Param("id"), req.AdminNotes)
	if err != nil {
		return bookingError(c, err)
	}
	return c.JSON(http.StatusOK, response.OK("Booking approved", booking))
}

// Reject declines a booking that is neither approved nor already rejected.
func (h *BookingAdminHandler) Reject(c echo.Context) error {
	adminID, _ := c.Get("user_id").(string)

	var req rejectReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest,
			response.Error("Invalid request body", "BOOKING_001", "malformed JSON"))
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	booking, err := h.Bookings.Reject(ctx, adminID, c.Param("id"), req.Reason)
	if err != nil {
		return bookingError(c, err)
	}
	return c.JSON(http.StatusOK, response.OK("Booking rejected", booking))
}

// SendMessage posts an admin message into any booking thread.
func (h *BookingAdminHandler) SendMessage(c echo.Context) error {
	adminID, _ := c.Get("user_id").(string)

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

	msg, err := h.Bookings.SendMessage(ctx, adminID, c.Param("id"), req.Content, true)
	if err != nil {
		return bookingError(c, err)
	}
	return c.JSON(http.StatusCreated, response.OK("Message sent", msg))
}

// Messages returns any booking's thread.
func (h *BookingAdminHandler) Messages(c echo.Context) error {
	adminID, _ := c.Get("user_id").(string)

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	msgs, err := h.Bookings.Messages(ctx, adminID, c.Param("id"), true)
	if err != nil {
		return bookingError(c, err)
	}
	return c.JSON(http.StatusOK, response.OK("Messages", msgs))
}

// MarkMessagesRead clears the unread flag on user messages in the thread.
func (h *BookingAdminHandler) MarkMessagesRead(c echo.Context) error {
	adminID, _ := c.Get("user_id").(string)

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	if err := h.Bookings.MarkMessagesRead(ctx, adminID, c.Param("id"), true); err != nil {
		return bookingError(c, err)
	}
	return c.JSON(http.StatusOK, response.OK("Messages marked as read", nil))
}

// UnreadCount returns how many user messages await the admins.
func (h *BookingAdminHandler) UnreadCount(c echo.Context) error {
	adminID, _ := c.Get("user_id").(string)

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	n, err := h.Bookings.UnreadCount(ctx, adminID, true)
	if err != nil {
		return internalError(c, "count unread messages failed")
	}
	return c.JSON(http.StatusOK, response.OK("Unread messages", echo.Map{"count": n}))
}

// Statistics returns booking counts by status plus approved revenue.
func (h *BookingAdminHandler) Statistics(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	stats, revenue, err := h.Bookings.Statistics(ctx)
	if err != nil {
		return internalError(c, "compute statistics failed")
	}
	return c.JSON(http.StatusOK, response.OK("Statistics", echo.Map{
		"counts":  stats,
		"revenue": revenue,
	}))
}
