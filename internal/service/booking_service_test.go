package service

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xbinlabs/mining-rental/internal/model"
	"github.com/xbinlabs/mining-rental/internal/queue"
	"github.com/xbinlabs/mining-rental/internal/repository"
)

func newTestService(t *testing.T) (*BookingService, sqlmock.Sqlmock, *[]queue.BookingEvent) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	events := &[]queue.BookingEvent{}
	svc := NewBookingService(
		repository.NewBookingRepo(db),
		repository.NewMachineRepo(db),
		repository.NewMessageRepo(db),
		zerolog.Nop(),
		func(_ context.Context, ev queue.BookingEvent) { *events = append(*events, ev) },
	)
	return svc, mock, events
}

var machineCols = []string{
	"id", "name", "description", "image", "machine_type", "manufacturer", "model",
	"hash_rate", "hash_rate_unit", "power_consumption", "algorithm", "mining_coin", "efficiency",
	"price_per_hour", "price_per_day", "price_per_week", "price_per_month",
	"profit_per_hour", "profit_per_day", "profit_per_week", "profit_per_month",
	"status", "total_units", "rented_units", "is_active", "is_featured", "sort_order",
	"created_at", "updated_at",
}

func machineRow(id, status string, total, rented int) *sqlmock.Rows {
	now := time.Now().UTC()
	return sqlmock.NewRows(machineCols).AddRow(
		id, "Antminer S19", nil, nil, "asic", nil, nil,
		nil, nil, nil, nil, nil, nil,
		5.0, 120.0, 700.0, 2500.0,
		1.0, 20.0, 130.0, 500.0,
		status, total, rented, true, false, 0,
		now, now,
	)
}

var bookingCols = []string{
	"id", "user_id", "machine_id", "rental_duration", "quantity",
	"total_price", "status", "payment_address", "transaction_hash",
	"user_notes", "admin_notes", "payment_sent_at", "approved_at", "rejected_at",
	"approved_by_id", "created_at", "updated_at",
}

func bookingRow(id, userID, machineID, status string, quantity int) *sqlmock.Rows {
	now := time.Now().UTC()
	return sqlmock.NewRows(bookingCols).AddRow(
		id, userID, machineID, "day", quantity,
		240.0, status, nil, nil,
		nil, nil, nil, nil, nil,
		nil, now, now,
	)
}

func TestCreateRejectsInvalidDuration(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.Create(context.Background(), "u1", "m1", "fortnight", 1, nil)
	assert.ErrorIs(t, err, ErrInvalidDuration)
}

func TestCreateRejectsZeroQuantity(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.Create(context.Background(), "u1", "m1", "day", 0, nil)
	assert.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestCreateRejectsInsufficientUnits(t *testing.T) {
	svc, mock, _ := newTestService(t)

	mock.ExpectQuery("FROM machines WHERE id = \\? AND is_active = 1").
		WithArgs("m1").
		WillReturnRows(machineRow("m1", model.MachineAvailable, 5, 3))

	_, err := svc.Create(context.Background(), "u1", "m1", "day", 4, nil)

	var unitsErr *UnitsError
	require.ErrorAs(t, err, &unitsErr)
	assert.Equal(t, 2, unitsErr.Available)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateAllowsMachineUnderMaintenance(t *testing.T) {
	svc, mock, _ := newTestService(t)

	// Only the active flag gates booking; the operational status does not.
	mock.ExpectQuery("FROM machines WHERE id = \\? AND is_active = 1").
		WithArgs("m1").
		WillReturnRows(machineRow("m1", model.MachineMaintenance, 5, 0))
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO bookings").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO booking_messages").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	booking, err := svc.Create(context.Background(), "u1", "m1", "day", 1, nil)
	require.NoError(t, err)
	assert.Equal(t, model.BookingPending, booking.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateFreezesPriceAndOpensThread(t *testing.T) {
	svc, mock, events := newTestService(t)

	mock.ExpectQuery("FROM machines WHERE id = \\? AND is_active = 1").
		WithArgs("m1").
		WillReturnRows(machineRow("m1", model.MachineAvailable, 10, 0))
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO bookings").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO booking_messages").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	booking, err := svc.Create(context.Background(), "u1", "m1", "day", 2, nil)
	require.NoError(t, err)

	assert.Equal(t, model.BookingPending, booking.Status)
	assert.Equal(t, 240.0, booking.TotalPrice) // 120/day * 2 units
	assert.NotEmpty(t, booking.ID)

	require.Len(t, *events, 1)
	assert.Equal(t, model.BookingPending, (*events)[0].Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApproveCommitsUnitsAndClampsAtCapacity(t *testing.T) {
	svc, mock, events := newTestService(t)

	mock.ExpectBegin()
	mock.ExpectQuery("FROM bookings b WHERE b.id = \\? FOR UPDATE").
		WithArgs("b1").
		WillReturnRows(bookingRow("b1", "u1", "m1", model.BookingPaymentSent, 4))
	mock.ExpectQuery("FROM machines WHERE id = \\? FOR UPDATE").
		WithArgs("m1").
		WillReturnRows(machineRow("m1", model.MachineAvailable, 5, 3))
	// 3 rented + 4 requested clamps to the 5-unit capacity.
	mock.ExpectExec("UPDATE machines SET rented_units").
		WithArgs(5, "m1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE bookings SET status").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO booking_messages").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	// afterTransition reload
	mock.ExpectQuery("FROM bookings b WHERE b.id = \\? LIMIT 1").
		WithArgs("b1").
		WillReturnRows(bookingRow("b1", "u1", "m1", model.BookingApproved, 4))
	mock.ExpectQuery("FROM machines WHERE id = \\? LIMIT 1").
		WithArgs("m1").
		WillReturnRows(machineRow("m1", model.MachineAvailable, 5, 5))

	booking, err := svc.Approve(context.Background(), "admin1", "b1", nil)
	require.NoError(t, err)
	assert.Equal(t, model.BookingApproved, booking.Status)

	require.Len(t, *events, 1)
	assert.Equal(t, model.BookingApproved, (*events)[0].Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApproveRequiresPaymentSent(t *testing.T) {
	svc, mock, events := newTestService(t)

	mock.ExpectBegin()
	mock.ExpectQuery("FROM bookings b WHERE b.id = \\? FOR UPDATE").
		WithArgs("b1").
		WillReturnRows(bookingRow("b1", "u1", "m1", model.BookingPending, 1))
	mock.ExpectRollback()

	_, err := svc.Approve(context.Background(), "admin1", "b1", nil)

	var stateErr *StateError
	require.ErrorAs(t, err, &stateErr)
	assert.Equal(t, model.BookingPending, stateErr.Current)
	assert.Empty(t, *events)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkPaymentSentEnforcesOwnership(t *testing.T) {
	svc, mock, _ := newTestService(t)

	mock.ExpectBegin()
	mock.ExpectQuery("FROM bookings b WHERE b.id = \\? FOR UPDATE").
		WithArgs("b1").
		WillReturnRows(bookingRow("b1", "owner", "m1", model.BookingAwaitingPayment, 1))
	mock.ExpectRollback()

	_, err := svc.MarkPaymentSent(context.Background(), "intruder", "b1", nil)
	assert.ErrorIs(t, err, repository.ErrForbidden)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCancelAllowedAfterPaymentClaim(t *testing.T) {
	svc, mock, events := newTestService(t)

	mock.ExpectBegin()
	mock.ExpectQuery("FROM bookings b WHERE b.id = \\? FOR UPDATE").
		WithArgs("b1").
		WillReturnRows(bookingRow("b1", "u1", "m1", model.BookingPaymentSent, 1))
	mock.ExpectExec("UPDATE bookings SET status").
		WithArgs(model.BookingCancelled, "b1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO booking_messages").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	mock.ExpectQuery("FROM bookings b WHERE b.id = \\? LIMIT 1").
		WithArgs("b1").
		WillReturnRows(bookingRow("b1", "u1", "m1", model.BookingCancelled, 1))
	mock.ExpectQuery("FROM machines WHERE id = \\? LIMIT 1").
		WithArgs("m1").
		WillReturnRows(machineRow("m1", model.MachineAvailable, 10, 0))

	booking, err := svc.Cancel(context.Background(), "u1", "b1")
	require.NoError(t, err)
	assert.Equal(t, model.BookingCancelled, booking.Status)
	require.Len(t, *events, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCancelRefusedOnApprovedBooking(t *testing.T) {
	svc, mock, _ := newTestService(t)

	mock.ExpectBegin()
	mock.ExpectQuery("FROM bookings b WHERE b.id = \\? FOR UPDATE").
		WithArgs("b1").
		WillReturnRows(bookingRow("b1", "u1", "m1", model.BookingApproved, 1))
	mock.ExpectRollback()

	_, err := svc.Cancel(context.Background(), "u1", "b1")

	var stateErr *StateError
	require.ErrorAs(t, err, &stateErr)
	assert.Equal(t, model.BookingApproved, stateErr.Current)
}

func TestRejectStampsReviewerIdentity(t *testing.T) {
	svc, mock, _ := newTestService(t)

	reason := "payment never arrived"
	mock.ExpectBegin()
	mock.ExpectQuery("FROM bookings b WHERE b.id = \\? FOR UPDATE").
		WithArgs("b1").
		WillReturnRows(bookingRow("b1", "u1", "m1", model.BookingPaymentSent, 1))
	mock.ExpectExec("UPDATE bookings SET status").
		WithArgs(model.BookingRejected, "admin1", reason, sqlmock.AnyArg(), "b1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO booking_messages").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	mock.ExpectQuery("FROM bookings b WHERE b.id = \\? LIMIT 1").
		WithArgs("b1").
		WillReturnRows(bookingRow("b1", "u1", "m1", model.BookingRejected, 1))
	mock.ExpectQuery("FROM machines WHERE id = \\? LIMIT 1").
		WithArgs("m1").
		WillReturnRows(machineRow("m1", model.MachineAvailable, 10, 0))

	booking, err := svc.Reject(context.Background(), "admin1", "b1", &reason)
	require.NoError(t, err)
	assert.Equal(t, model.BookingRejected, booking.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRejectAllowedOnCancelledBooking(t *testing.T) {
	svc, mock, _ := newTestService(t)

	mock.ExpectBegin()
	mock.ExpectQuery("FROM bookings b WHERE b.id = \\? FOR UPDATE").
		WithArgs("b1").
		WillReturnRows(bookingRow("b1", "u1", "m1", model.BookingCancelled, 1))
	mock.ExpectExec("UPDATE bookings SET status").
		WithArgs(model.BookingRejected, "admin1", nil, sqlmock.AnyArg(), "b1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO booking_messages").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	mock.ExpectQuery("FROM bookings b WHERE b.id = \\? LIMIT 1").
		WithArgs("b1").
		WillReturnRows(bookingRow("b1", "u1", "m1", model.BookingRejected, 1))
	mock.ExpectQuery("FROM machines WHERE id = \\? LIMIT 1").
		WithArgs("m1").
		WillReturnRows(machineRow("m1", model.MachineAvailable, 10, 0))

	booking, err := svc.Reject(context.Background(), "admin1", "b1", nil)
	require.NoError(t, err)
	assert.Equal(t, model.BookingRejected, booking.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRejectRefusedOnTerminalBooking(t *testing.T) {
	svc, mock, _ := newTestService(t)

	mock.ExpectBegin()
	mock.ExpectQuery("FROM bookings b WHERE b.id = \\? FOR UPDATE").
		WithArgs("b1").
		WillReturnRows(bookingRow("b1", "u1", "m1", model.BookingApproved, 1))
	mock.ExpectRollback()

	_, err := svc.Reject(context.Background(), "admin1", "b1", nil)

	var stateErr *StateError
	require.ErrorAs(t, err, &stateErr)
	assert.Equal(t, model.BookingApproved, stateErr.Current)
}

func TestSendPaymentAddressTransitionsAndPostsAddress(t *testing.T) {
	svc, mock, events := newTestService(t)

	mock.ExpectBegin()
	mock.ExpectQuery("FROM bookings b WHERE b.id = \\? FOR UPDATE").
		WithArgs("b1").
		WillReturnRows(bookingRow("b1", "u1", "m1", model.BookingPending, 2))
	mock.ExpectExec("UPDATE bookings SET status").
		WithArgs(model.BookingAwaitingPayment, "bc1qaddress", "b1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO booking_messages").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO booking_messages").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	mock.ExpectQuery("FROM bookings b WHERE b.id = \\? LIMIT 1").
		WithArgs("b1").
		WillReturnRows(bookingRow("b1", "u1", "m1", model.BookingAwaitingPayment, 2))
	mock.ExpectQuery("FROM machines WHERE id = \\? LIMIT 1").
		WithArgs("m1").
		WillReturnRows(machineRow("m1", model.MachineAvailable, 10, 0))

	booking, err := svc.SendPaymentAddress(context.Background(), "admin1", "b1", "bc1qaddress")
	require.NoError(t, err)
	assert.Equal(t, model.BookingAwaitingPayment, booking.Status)
	require.Len(t, *events, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkPaymentSentPostsTransactionHash(t *testing.T) {
	svc, mock, _ := newTestService(t)

	hash := "0xdeadbeef"
	mock.ExpectBegin()
	mock.ExpectQuery("FROM bookings b WHERE b.id = \\? FOR UPDATE").
		WithArgs("b1").
		WillReturnRows(bookingRow("b1", "u1", "m1", model.BookingAwaitingPayment, 1))
	mock.ExpectExec("UPDATE bookings SET status").
		WithArgs(model.BookingPaymentSent, hash, sqlmock.AnyArg(), "b1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO booking_messages").
		WithArgs(sqlmock.AnyArg(), "b1", "u1",
			"User has marked payment as sent. Transaction hash: 0xdeadbeef",
			model.MessageSystem, false, true).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	mock.ExpectQuery("FROM bookings b WHERE b.id = \\? LIMIT 1").
		WithArgs("b1").
		WillReturnRows(bookingRow("b1", "u1", "m1", model.BookingPaymentSent, 1))
	mock.ExpectQuery("FROM machines WHERE id = \\? LIMIT 1").
		WithArgs("m1").
		WillReturnRows(machineRow("m1", model.MachineAvailable, 10, 0))

	booking, err := svc.MarkPaymentSent(context.Background(), "u1", "b1", &hash)
	require.NoError(t, err)
	assert.Equal(t, model.BookingPaymentSent, booking.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMessagesDoesNotTouchReadFlags(t *testing.T) {
	svc, mock, _ := newTestService(t)

	messageCols := []string{"id", "booking_id", "sender_id", "content", "message_type",
		"is_read", "is_from_admin", "created_at"}

	mock.ExpectQuery("FROM bookings b WHERE b.id = \\? LIMIT 1").
		WithArgs("b1").
		WillReturnRows(bookingRow("b1", "u1", "m1", model.BookingPending, 1))
	// No UPDATE on booking_messages: reading the thread is side-effect free.
	mock.ExpectQuery("FROM booking_messages").
		WithArgs("b1").
		WillReturnRows(sqlmock.NewRows(messageCols).AddRow(
			"msg1", "b1", "admin1", "hello", model.MessageText,
			false, true, time.Now().UTC(),
		))

	msgs, err := svc.Messages(context.Background(), "u1", "b1", false)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.False(t, msgs[0].IsRead)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkMessagesReadClearsOppositeSide(t *testing.T) {
	svc, mock, _ := newTestService(t)

	mock.ExpectQuery("FROM bookings b WHERE b.id = \\? LIMIT 1").
		WithArgs("b1").
		WillReturnRows(bookingRow("b1", "u1", "m1", model.BookingPending, 1))
	// A user caller clears the admin side of the thread.
	mock.ExpectExec("UPDATE booking_messages SET is_read").
		WithArgs("b1", true).
		WillReturnResult(sqlmock.NewResult(0, 2))

	err := svc.MarkMessagesRead(context.Background(), "u1", "b1", false)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkMessagesReadEnforcesOwnership(t *testing.T) {
	svc, mock, _ := newTestService(t)

	mock.ExpectQuery("FROM bookings b WHERE b.id = \\? LIMIT 1").
		WithArgs("b1").
		WillReturnRows(bookingRow("b1", "owner", "m1", model.BookingPending, 1))

	err := svc.MarkMessagesRead(context.Background(), "intruder", "b1", false)
	assert.ErrorIs(t, err, repository.ErrForbidden)
	assert.NoError(t, mock.ExpectationsWereMet())
}
