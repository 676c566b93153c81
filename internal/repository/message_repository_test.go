package repository

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xbinlabs/mining-rental/internal/model"
)

func newMessageRepo(t *testing.T) (*MessageRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewMessageRepo(db), mock
}

func TestMessageCreateAssignsID(t *testing.T) {
	repo, mock := newMessageRepo(t)

	mock.ExpectExec("INSERT INTO booking_messages").
		WillReturnResult(sqlmock.NewResult(0, 1))

	m := &model.Message{
		BookingID:   "b1",
		SenderID:    "u1",
		Content:     "hello",
		MessageType: model.MessageText,
	}
	require.NoError(t, repo.Create(context.Background(), m))
	assert.NotEmpty(t, m.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMessageMarkReadOnlyClearsOppositeSide(t *testing.T) {
	repo, mock := newMessageRepo(t)

	// A user reading the thread clears only admin-authored messages.
	mock.ExpectExec("UPDATE booking_messages SET is_read = 1").
		WithArgs("b1", true).
		WillReturnResult(sqlmock.NewResult(0, 3))

	require.NoError(t, repo.MarkRead(context.Background(), "b1", true))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUnreadCountForUserScopesToOwnBookings(t *testing.T) {
	repo, mock := newMessageRepo(t)

	mock.ExpectQuery("JOIN bookings b ON b.id = m.booking_id").
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"COUNT(*)"}).AddRow(4))

	n, err := repo.UnreadCountForUser(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}

func TestUnreadCountForAdmin(t *testing.T) {
	repo, mock := newMessageRepo(t)

	mock.ExpectQuery("is_from_admin = 0 AND is_read = 0").
		WillReturnRows(sqlmock.NewRows([]string{"COUNT(*)"}).AddRow(7))

	n, err := repo.UnreadCountForAdmin(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, n)
}
