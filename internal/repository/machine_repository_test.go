package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xbinlabs/mining-rental/internal/model"
)

func newMachineRepo(t *testing.T) (*MachineRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewMachineRepo(db), mock
}

func TestMachineUpdateRefusesShrinkingBelowRented(t *testing.T) {
	repo, mock := newMachineRepo(t)

	// The guarded UPDATE matches no rows, then the existence probe finds
	// the machine, so the failure maps to ErrConflict.
	mock.ExpectExec("UPDATE machines SET").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("FROM machines WHERE id = \\? LIMIT 1").
		WithArgs("m1").
		WillReturnRows(machineTestRow("m1", 5, 3))

	err := repo.Update(context.Background(), &model.Machine{ID: "m1", TotalUnits: 2})
	assert.ErrorIs(t, err, ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMachineDeleteRefusedWithActiveRentals(t *testing.T) {
	repo, mock := newMachineRepo(t)

	mock.ExpectExec("DELETE FROM machines WHERE id = \\? AND rented_units = 0").
		WithArgs("m1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("FROM machines WHERE id = \\? LIMIT 1").
		WithArgs("m1").
		WillReturnRows(machineTestRow("m1", 5, 3))

	err := repo.Delete(context.Background(), "m1")
	assert.ErrorIs(t, err, ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMachineDeleteMissingRow(t *testing.T) {
	repo, mock := newMachineRepo(t)

	mock.ExpectExec("DELETE FROM machines").
		WithArgs("nope").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("FROM machines WHERE id = \\? LIMIT 1").
		WithArgs("nope").
		WillReturnRows(sqlmock.NewRows(machineTestCols))

	err := repo.Delete(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrMachineNotFound)
}

func TestMachineListAllAppliesFilters(t *testing.T) {
	repo, mock := newMachineRepo(t)

	active := true
	featured := false
	mock.ExpectQuery("FROM machines WHERE is_active = \\? AND is_featured = \\? AND machine_type = \\? AND status = \\? ORDER BY sort_order, name").
		WithArgs(true, false, "asic", model.MachineAvailable).
		WillReturnRows(machineTestRow("m1", 5, 0))

	list, err := repo.ListAll(context.Background(), MachineFilter{
		IsActive:   &active,
		IsFeatured: &featured,
		Type:       "asic",
		Status:     model.MachineAvailable,
	})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "m1", list[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMachineListAllUnfiltered(t *testing.T) {
	repo, mock := newMachineRepo(t)

	mock.ExpectQuery("FROM machines ORDER BY sort_order, name").
		WillReturnRows(machineTestRow("m1", 5, 0))

	list, err := repo.ListAll(context.Background(), MachineFilter{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMachineSetRentedUnitsTx(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewMachineRepo(db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE machines SET rented_units").
		WithArgs(5, "m1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	tx, err := db.Begin()
	require.NoError(t, err)
	require.NoError(t, repo.SetRentedUnitsTx(context.Background(), tx, "m1", 5))
	require.NoError(t, tx.Commit())
	assert.NoError(t, mock.ExpectationsWereMet())
}

var machineTestCols = []string{
	"id", "name", "description", "image", "machine_type", "manufacturer", "model",
	"hash_rate", "hash_rate_unit", "power_consumption", "algorithm", "mining_coin", "efficiency",
	"price_per_hour", "price_per_day", "price_per_week", "price_per_month",
	"profit_per_hour", "profit_per_day", "profit_per_week", "profit_per_month",
	"status", "total_units", "rented_units", "is_active", "is_featured", "sort_order",
	"created_at", "updated_at",
}

func machineTestRow(id string, total, rented int) *sqlmock.Rows {
	now := time.Now().UTC()
	return sqlmock.NewRows(machineTestCols).AddRow(
		id, "Whatsminer M30", nil, nil, "asic", nil, nil,
		nil, nil, nil, nil, nil, nil,
		1.0, 10.0, 50.0, 180.0,
		0.5, 4.0, 25.0, 90.0,
		model.MachineAvailable, total, rented, true, false, 0,
		now, now,
	)
}
