package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/xbinlabs/mining-rental/internal/model"
)

// MachineRepo provides methods to work with the machine catalog.
type MachineRepo struct {
	db *sql.DB
}

// NewMachineRepo constructs a MachineRepo with the given DB handle.
func NewMachineRepo(db *sql.DB) *MachineRepo {
	return &MachineRepo{db: db}
}

const machineColumns = `id, name, description, image, machine_type, manufacturer, model,
	hash_rate, hash_rate_unit, power_consumption, algorithm, mining_coin, efficiency,
	price_per_hour, price_per_day, price_per_week, price_per_month,
	profit_per_hour, profit_per_day, profit_per_week, profit_per_month,
	status, total_units, rented_units, is_active, is_featured, sort_order,
	created_at, updated_at`

func scanMachine(row interface{ Scan(...interface{}) error }) (*model.Machine, error) {
	var m model.Machine
	err := row.Scan(
		&m.ID, &m.Name, &m.Description, &m.Image, &m.Type, &m.Manufacturer, &m.Model,
		&m.HashRate, &m.HashRateUnit, &m.PowerConsumption, &m.Algorithm, &m.MiningCoin, &m.Efficiency,
		&m.PricePerHour, &m.PricePerDay, &m.PricePerWeek, &m.PricePerMonth,
		&m.ProfitPerHour, &m.ProfitPerDay, &m.ProfitPerWeek, &m.ProfitPerMonth,
		&m.Status, &m.TotalUnits, &m.RentedUnits, &m.IsActive, &m.IsFeatured, &m.SortOrder,
		&m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// Create inserts a machine. A fresh uuid is assigned when the ID is empty.
func (r *MachineRepo) Create(ctx context.Context, m *model.Machine) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	const q = `INSERT INTO machines
		(id, name, description, image, machine_type, manufacturer, model,
		 hash_rate, hash_rate_unit, power_consumption, algorithm, mining_coin, efficiency,
		 price_per_hour, price_per_day, price_per_week, price_per_month,
		 profit_per_hour, profit_per_day, profit_per_week, profit_per_month,
		 status, total_units, rented_units, is_active, is_featured, sort_order)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`
	_, err := r.db.ExecContext(ctx, q,
		m.ID, m.Name, m.Description, m.Image, m.Type, m.Manufacturer, m.Model,
		m.HashRate, m.HashRateUnit, m.PowerConsumption, m.Algorithm, m.MiningCoin, m.Efficiency,
		m.PricePerHour, m.PricePerDay, m.PricePerWeek, m.PricePerMonth,
		m.ProfitPerHour, m.ProfitPerDay, m.ProfitPerWeek, m.ProfitPerMonth,
		m.Status, m.TotalUnits, m.RentedUnits, m.IsActive, m.IsFeatured, m.SortOrder)
	return err
}

// GetByID fetches one machine regardless of its active flag.
func (r *MachineRepo) GetByID(ctx context.Context, id string) (*model.Machine, error) {
	const q = `SELECT ` + machineColumns + ` FROM machines WHERE id = ? LIMIT 1`
	m, err := scanMachine(r.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrMachineNotFound
	}
	return m, err
}

// GetActiveByID fetches one machine visible in the public catalog.
func (r *MachineRepo) GetActiveByID(ctx context.Context, id string) (*model.Machine, error) {
	const q = `SELECT ` + machineColumns + ` FROM machines WHERE id = ? AND is_active = 1 LIMIT 1`
	m, err := scanMachine(r.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrMachineNotFound
	}
	return m, err
}

// ListActive returns the public catalog ordered by sort_order then name.
func (r *MachineRepo) ListActive(ctx context.Context) ([]model.Machine, error) {
	const q = `SELECT ` + machineColumns + ` FROM machines
		WHERE is_active = 1 ORDER BY sort_order, name`
	return r.list(ctx, q)
}

// ListFeatured returns active machines flagged as featured.
func (r *MachineRepo) ListFeatured(ctx context.Context) ([]model.Machine, error) {
	const q = `SELECT ` + machineColumns + ` FROM machines
		WHERE is_active = 1 AND is_featured = 1 ORDER BY sort_order, name`
	return r.list(ctx, q)
}

// MachineFilter narrows the admin catalog listing. Nil pointers and empty
// strings mean "no constraint".
type MachineFilter struct {
	IsActive   *bool
	IsFeatured *bool
	Type       string
	Status     string
}

// ListAll returns every machine matching the filter, inactive ones included,
// for the admin view.
func (r *MachineRepo) ListAll(ctx context.Context, f MachineFilter) ([]model.Machine, error) {
	q := `SELECT ` + machineColumns + ` FROM machines`
	var conds []string
	var args []interface{}
	if f.IsActive != nil {
		conds = append(conds, "is_active = ?")
		args = append(args, *f.IsActive)
	}
	if f.IsFeatured != nil {
		conds = append(conds, "is_featured = ?")
		args = append(args, *f.IsFeatured)
	}
	if f.Type != "" {
		conds = append(conds, "machine_type = ?")
		args = append(args, f.Type)
	}
	if f.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, f.Status)
	}
	if len(conds) > 0 {
		q += ` WHERE ` + strings.Join(conds, " AND ")
	}
	q += ` ORDER BY sort_order, name`
	return r.list(ctx, q, args...)
}

func (r *MachineRepo) list(ctx context.Context, q string, args ...interface{}) ([]model.Machine, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []model.Machine
	for rows.Next() {
		m, err := scanMachine(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *m)
	}
	return result, rows.Err()
}

// Update rewrites the mutable fields of a machine. Shrinking total_units
// below the currently rented count is refused with ErrConflict so approved
// rentals are never stranded.
func (r *MachineRepo) Update(ctx context.Context, m *model.Machine) error {
	const q = `UPDATE machines SET
		name = ?, description = ?, machine_type = ?, manufacturer = ?, model = ?,
		hash_rate = ?, hash_rate_unit = ?, power_consumption = ?, algorithm = ?,
		mining_coin = ?, efficiency = ?,
		price_per_hour = ?, price_per_day = ?, price_per_week = ?, price_per_month = ?,
		profit_per_hour = ?, profit_per_day = ?, profit_per_week = ?, profit_per_month = ?,
		total_units = ?, status = ?, is_active = ?, is_featured = ?, sort_order = ?,
		updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND ? >= rented_units`
	res, err := r.db.ExecContext(ctx, q,
		m.Name, m.Description, m.Type, m.Manufacturer, m.Model,
		m.HashRate, m.HashRateUnit, m.PowerConsumption, m.Algorithm,
		m.MiningCoin, m.Efficiency,
		m.PricePerHour, m.PricePerDay, m.PricePerWeek, m.PricePerMonth,
		m.ProfitPerHour, m.ProfitPerDay, m.ProfitPerWeek, m.ProfitPerMonth,
		m.TotalUnits, m.Status, m.IsActive, m.IsFeatured, m.SortOrder,
		m.ID, m.TotalUnits)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// Distinguish "missing" from "would strand rented units".
		if _, gerr := r.GetByID(ctx, m.ID); gerr != nil {
			return gerr
		}
		return ErrConflict
	}
	return nil
}

// Delete removes a machine that has no rented units. Machines with active
// rentals return ErrConflict.
func (r *MachineRepo) Delete(ctx context.Context, id string) error {
	const q = `DELETE FROM machines WHERE id = ? AND rented_units = 0`
	res, err := r.db.ExecContext(ctx, q, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, gerr := r.GetByID(ctx, id); gerr != nil {
			return gerr
		}
		return ErrConflict
	}
	return nil
}

// SetStatus changes the operational status field.
func (r *MachineRepo) SetStatus(ctx context.Context, id, status string) error {
	const q = `UPDATE machines SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`
	res, err := r.db.ExecContext(ctx, q, status, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrMachineNotFound
	}
	return nil
}

// ToggleActive flips catalog visibility and returns the new value.
func (r *MachineRepo) ToggleActive(ctx context.Context, id string) (bool, error) {
	const q = `UPDATE machines SET is_active = NOT is_active, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`
	res, err := r.db.ExecContext(ctx, q, id)
	if err != nil {
		return false, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return false, ErrMachineNotFound
	}
	var active bool
	err = r.db.QueryRowContext(ctx, `SELECT is_active FROM machines WHERE id = ?`, id).Scan(&active)
	return active, err
}

// ToggleFeatured flips the featured flag and returns the new value.
func (r *MachineRepo) ToggleFeatured(ctx context.Context, id string) (bool, error) {
	const q = `UPDATE machines SET is_featured = NOT is_featured, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`
	res, err := r.db.ExecContext(ctx, q, id)
	if err != nil {
		return false, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return false, ErrMachineNotFound
	}
	var featured bool
	err = r.db.QueryRowContext(ctx, `SELECT is_featured FROM machines WHERE id = ?`, id).Scan(&featured)
	return featured, err
}

// SetImage stores the uploaded catalog image location.
func (r *MachineRepo) SetImage(ctx context.Context, id, url string) error {
	const q = `UPDATE machines SET image = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`
	res, err := r.db.ExecContext(ctx, q, url, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrMachineNotFound
	}
	return nil
}

// GetForUpdateTx loads a machine row with a write lock inside tx. Booking
// approval uses this so the unit counters cannot race.
func (r *MachineRepo) GetForUpdateTx(ctx context.Context, tx *sql.Tx, id string) (*model.Machine, error) {
	const q = `SELECT ` + machineColumns + ` FROM machines WHERE id = ? FOR UPDATE`
	m, err := scanMachine(tx.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrMachineNotFound
	}
	return m, err
}

// SetRentedUnitsTx writes the rented counter inside tx.
func (r *MachineRepo) SetRentedUnitsTx(ctx context.Context, tx *sql.Tx, id string, rented int) error {
	const q = `UPDATE machines SET rented_units = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`
	res, err := tx.ExecContext(ctx, q, rented, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrMachineNotFound
	}
	return nil
}
