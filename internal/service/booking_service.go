// Package service implements the booking workflow on top of the
// repositories. Every state transition runs inside one transaction so the
// booking row, the machine counters and the system message it produces
// commit or roll back together.
package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/xbinlabs/mining-rental/internal/model"
	"github.com/xbinlabs/mining-rental/internal/queue"
	"github.com/xbinlabs/mining-rental/internal/repository"
)

// UnitsError reports a booking request that exceeds a machine's remaining
// capacity. Available carries the count the client may retry with.
type UnitsError struct {
	Available int
}

func (e *UnitsError) Error() string {
	return fmt.Sprintf("only %d units available", e.Available)
}

// StateError reports a transition attempted from the wrong booking status.
type StateError struct {
	Current string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("booking is in status %q", e.Current)
}

// Validation failures surfaced by CreateBooking.
var (
	ErrInvalidDuration = errors.New("invalid rental duration")
	ErrInvalidQuantity = errors.New("quantity must be at least 1")
)

// PublishFunc delivers a booking event to the broker. Injectable so tests
// can capture events without a running broker.
type PublishFunc func(ctx context.Context, ev queue.BookingEvent)

// BookingService owns the booking lifecycle.
type BookingService struct {
	bookings *repository.BookingRepo
	machines *repository.MachineRepo
	messages *repository.MessageRepo
	log      zerolog.Logger
	publish  PublishFunc
}

// NewBookingService wires the service. A nil publish disables event
// delivery.
func NewBookingService(
	bookings *repository.BookingRepo,
	machines *repository.MachineRepo,
	messages *repository.MessageRepo,
	log zerolog.Logger,
	publish PublishFunc,
) *BookingService {
	if publish == nil {
		publish = func(context.Context, queue.BookingEvent) {}
	}
	return &BookingService{
		bookings: bookings,
		machines: machines,
		messages: messages,
		log:      log,
		publish:  publish,
	}
}

// Create opens a new pending booking for the user. The machine must be
// active and have enough free units; the total price is computed here and
// frozen. A system message opens the thread.
func (s *BookingService) Create(ctx context.Context, userID, machineID, duration string, quantity int, userNotes *string) (*model.Booking, error) {
	if !model.ValidRentalDuration(duration) {
		return nil, ErrInvalidDuration
	}
	if quantity < 1 {
		return nil, ErrInvalidQuantity
	}

	machine, err := s.machines.GetActiveByID(ctx, machineID)
	if err != nil {
		return nil, err
	}
	if avail := machine.AvailableUnits(); avail < quantity {
		return nil, &UnitsError{Available: avail}
	}

	booking := &model.Booking{
		UserID:         userID,
		MachineID:      machineID,
		RentalDuration: duration,
		Quantity:       quantity,
		TotalPrice:     ComputePrice(machine, duration, quantity),
		Status:         model.BookingPending,
		UserNotes:      userNotes,
	}

	err = s.inTx(ctx, func(tx *sql.Tx) error {
		if err := s.bookings.CreateTx(ctx, tx, booking); err != nil {
			return err
		}
		return s.systemMessageTx(ctx, tx, booking.ID, userID,
			fmt.Sprintf("Booking request created for %s. Waiting for admin to provide payment address.", machine.Name))
	})
	if err != nil {
		return nil, err
	}

	booking.Machine = machine
	s.emit(booking, machine.Name)
	s.log.Info().
		Str("booking_id", booking.ID).
		Str("machine_id", machineID).
		Int("quantity", quantity).
		Float64("total_price", booking.TotalPrice).
		Msg("booking created")
	return booking, nil
}

// SendPaymentAddress moves a pending booking to awaiting_payment and posts
// the crypto address into the thread as a payment_address message.
func (s *BookingService) SendPaymentAddress(ctx context.Context, adminID, bookingID, address string) (*model.Booking, error) {
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		b, err := s.bookings.GetForUpdateTx(ctx, tx, bookingID)
		if err != nil {
			return err
		}
		if b.Status != model.BookingPending {
			return &StateError{Current: b.Status}
		}
		if err := s.bookings.SetPaymentAddressTx(ctx, tx, bookingID, address); err != nil {
			return err
		}
		msg := &model.Message{
			BookingID:   bookingID,
			SenderID:    adminID,
			Content:     address,
			MessageType: model.MessagePaymentAddress,
			IsFromAdmin: true,
		}
		if err := s.messages.CreateTx(ctx, tx, msg); err != nil {
			return err
		}
		return s.systemMessageTx(ctx, tx, bookingID, adminID,
			"Payment address has been provided. Please send the payment and mark it as sent.")
	})
	if err != nil {
		return nil, err
	}
	return s.afterTransition(ctx, bookingID)
}

// MarkPaymentSent records the owner's claim that payment was made,
// optionally with a transaction hash.
func (s *BookingService) MarkPaymentSent(ctx context.Context, userID, bookingID string, txHash *string) (*model.Booking, error) {
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		b, err := s.bookings.GetForUpdateTx(ctx, tx, bookingID)
		if err != nil {
			return err
		}
		if b.UserID != userID {
			return repository.ErrForbidden
		}
		if b.Status != model.BookingAwaitingPayment {
			return &StateError{Current: b.Status}
		}
		if err := s.bookings.SetPaymentSentTx(ctx, tx, bookingID, txHash, time.Now().UTC()); err != nil {
			return err
		}
		content := "User has marked payment as sent."
		if txHash != nil && *txHash != "" {
			content = fmt.Sprintf("User has marked payment as sent. Transaction hash: %s", *txHash)
		}
		return s.systemMessageTx(ctx, tx, bookingID, userID, content)
	})
	if err != nil {
		return nil, err
	}
	return s.afterTransition(ctx, bookingID)
}

// Approve finalizes a payment_sent booking. The machine row is locked for
// the duration of the transaction and the rented counter is raised by the
// booking quantity, clamped at total capacity so the counter can never
// exceed it.
func (s *BookingService) Approve(ctx context.Context, adminID, bookingID string, notes *string) (*model.Booking, error) {
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		b, err := s.bookings.GetForUpdateTx(ctx, tx, bookingID)
		if err != nil {
			return err
		}
		if b.Status != model.BookingPaymentSent {
			return &StateError{Current: b.Status}
		}

		machine, err := s.machines.GetForUpdateTx(ctx, tx, b.MachineID)
		if err != nil {
			return err
		}
		rented := machine.RentedUnits + b.Quantity
		if rented > machine.TotalUnits {
			rented = machine.TotalUnits
		}
		if err := s.machines.SetRentedUnitsTx(ctx, tx, machine.ID, rented); err != nil {
			return err
		}

		if err := s.bookings.SetApprovedTx(ctx, tx, bookingID, adminID, notes, time.Now().UTC()); err != nil {
			return err
		}
		return s.systemMessageTx(ctx, tx, bookingID, adminID,
			"Booking has been approved! Your mining rental is now active.")
	})
	if err != nil {
		return nil, err
	}
	return s.afterTransition(ctx, bookingID)
}

// Reject declines a booking. Approved bookings cannot be rejected and a
// rejection is final; anything else, cancelled included, may be rejected.
// Inventory is untouched because units are only committed on approval.
func (s *BookingService) Reject(ctx context.Context, adminID, bookingID string, reason *string) (*model.Booking, error) {
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		b, err := s.bookings.GetForUpdateTx(ctx, tx, bookingID)
		if err != nil {
			return err
		}
		if b.Status == model.BookingApproved || b.Status == model.BookingRejected {
			return &StateError{Current: b.Status}
		}
		if err := s.bookings.SetRejectedTx(ctx, tx, bookingID, adminID, reason, time.Now().UTC()); err != nil {
			return err
		}
		content := "Booking has been rejected."
		if reason != nil && *reason != "" {
			content = fmt.Sprintf("Booking has been rejected. Reason: %s", *reason)
		}
		return s.systemMessageTx(ctx, tx, bookingID, adminID, content)
	})
	if err != nil {
		return nil, err
	}
	return s.afterTransition(ctx, bookingID)
}

// Cancel lets the owner abandon a booking at any point before approval.
// Only an approved booking is past the point of no return.
func (s *BookingService) Cancel(ctx context.Context, userID, bookingID string) (*model.Booking, error) {
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		b, err := s.bookings.GetForUpdateTx(ctx, tx, bookingID)
		if err != nil {
			return err
		}
		if b.UserID != userID {
			return repository.ErrForbidden
		}
		if b.Status == model.BookingApproved {
			return &StateError{Current: b.Status}
		}
		if err := s.bookings.SetCancelledTx(ctx, tx, bookingID); err != nil {
			return err
		}
		return s.systemMessageTx(ctx, tx, bookingID, userID,
			"Booking has been cancelled by the user.")
	})
	if err != nil {
		return nil, err
	}
	return s.afterTransition(ctx, bookingID)
}

// Get loads one booking with its machine and thread. Non-admin callers may
// only see their own bookings.
func (s *BookingService) Get(ctx context.Context, callerID, bookingID string, isAdmin bool) (*model.Booking, error) {
	b, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if !isAdmin && b.UserID != callerID {
		return nil, repository.ErrForbidden
	}
	if b.Machine, err = s.machines.GetByID(ctx, b.MachineID); err != nil && !errors.Is(err, repository.ErrMachineNotFound) {
		return nil, err
	}
	if b.Messages, err = s.messages.ListByBooking(ctx, bookingID); err != nil {
		return nil, err
	}
	return b, nil
}

// ListForUser returns the caller's bookings with machine summaries.
func (s *BookingService) ListForUser(ctx context.Context, userID string) ([]model.Booking, error) {
	list, err := s.bookings.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	s.attachMachines(ctx, list)
	return list, nil
}

// ListAll returns a page of bookings for the admin dashboard, optionally
// filtered by status.
func (s *BookingService) ListAll(ctx context.Context, status string, limit, offset int) ([]model.Booking, int, error) {
	if status != "" && !model.ValidBookingStatus(status) {
		return nil, 0, &StateError{Current: status}
	}
	list, err := s.bookings.ListAll(ctx, status, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.bookings.Count(ctx, status)
	if err != nil {
		return nil, 0, err
	}
	s.attachMachines(ctx, list)
	return list, total, nil
}

func (s *BookingService) attachMachines(ctx context.Context, list []model.Booking) {
	cache := make(map[string]*model.Machine)
	for i := range list {
		m, ok := cache[list[i].MachineID]
		if !ok {
			var err error
			m, err = s.machines.GetByID(ctx, list[i].MachineID)
			if err != nil {
				continue
			}
			cache[list[i].MachineID] = m
		}
		list[i].Machine = m
	}
}

// SendMessage appends a text message to a booking's thread. Admins may post
// to any booking, users only to their own.
func (s *BookingService) SendMessage(ctx context.Context, senderID, bookingID, content string, isAdmin bool) (*model.Message, error) {
	b, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if !isAdmin && b.UserID != senderID {
		return nil, repository.ErrForbidden
	}
	msg := &model.Message{
		BookingID:   bookingID,
		SenderID:    senderID,
		Content:     content,
		MessageType: model.MessageText,
		IsFromAdmin: isAdmin,
	}
	if err := s.messages.Create(ctx, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

// Messages returns a booking's thread. Reading does not touch the unread
// flags; clients call MarkMessagesRead for that.
func (s *BookingService) Messages(ctx context.Context, callerID, bookingID string, isAdmin bool) ([]model.Message, error) {
	b, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if !isAdmin && b.UserID != callerID {
		return nil, repository.ErrForbidden
	}
	return s.messages.ListByBooking(ctx, bookingID)
}

// MarkMessagesRead clears the unread flag on the messages sent by the
// opposite side of the caller's thread.
func (s *BookingService) MarkMessagesRead(ctx context.Context, callerID, bookingID string, isAdmin bool) error {
	b, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return err
	}
	if !isAdmin && b.UserID != callerID {
		return repository.ErrForbidden
	}
	return s.messages.MarkRead(ctx, bookingID, !isAdmin)
}

// UnreadCount returns how many messages await the caller.
func (s *BookingService) UnreadCount(ctx context.Context, callerID string, isAdmin bool) (int, error) {
	if isAdmin {
		return s.messages.UnreadCountForAdmin(ctx)
	}
	return s.messages.UnreadCountForUser(ctx, callerID)
}

// Statistics aggregates booking counts by status plus approved revenue.
func (s *BookingService) Statistics(ctx context.Context) (*model.BookingStatistics, float64, error) {
	counts, err := s.bookings.CountByStatus(ctx)
	if err != nil {
		return nil, 0, err
	}
	stats := &model.BookingStatistics{
		Pending:         counts[model.BookingPending],
		AwaitingPayment: counts[model.BookingAwaitingPayment],
		PaymentSent:     counts[model.BookingPaymentSent],
		Approved:        counts[model.BookingApproved],
		Rejected:        counts[model.BookingRejected],
		Cancelled:       counts[model.BookingCancelled],
	}
	for _, n := range counts {
		stats.Total += n
	}
	revenue, err := s.bookings.SumRevenue(ctx)
	if err != nil {
		return nil, 0, err
	}
	return stats, revenue, nil
}

func (s *BookingService) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.bookings.Begin(ctx)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (s *BookingService) systemMessageTx(ctx context.Context, tx *sql.Tx, bookingID, senderID, content string) error {
	return s.messages.CreateTx(ctx, tx, &model.Message{
		BookingID:   bookingID,
		SenderID:    senderID,
		Content:     content,
		MessageType: model.MessageSystem,
		IsFromAdmin: true,
	})
}

// afterTransition reloads the booking, attaches the machine and emits the
// lifecycle event.
func (s *BookingService) afterTransition(ctx context.Context, bookingID string) (*model.Booking, error) {
	b, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	machineName := ""
	if m, err := s.machines.GetByID(ctx, b.MachineID); err == nil {
		b.Machine = m
		machineName = m.Name
	}
	s.emit(b, machineName)
	s.log.Info().
		Str("booking_id", b.ID).
		Str("status", b.Status).
		Msg("booking transitioned")
	return b, nil
}

func (s *BookingService) emit(b *model.Booking, machineName string) {
	s.publish(context.Background(), queue.BookingEvent{
		BookingID:   b.ID,
		UserID:      b.UserID,
		MachineID:   b.MachineID,
		MachineName: machineName,
		Status:      b.Status,
		Duration:    b.RentalDuration,
		Quantity:    b.Quantity,
		TotalPrice:  b.TotalPrice,
		OccurredAt:  time.Now().UTC().Format(time.RFC3339),
	})
}
