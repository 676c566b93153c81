package model

import "time"

// Machine lifecycle status values stored in machines.status.
const (
	MachineAvailable   = "available"
	MachineRented      = "rented"
	MachineMaintenance = "maintenance"
	MachineInactive    = "inactive"
)

// Machine hardware classes.
const (
	MachineTypeASIC = "asic"
	MachineTypeGPU  = "gpu"
)

// ValidMachineStatus reports whether s is one of the recognized machine
// status values.
func ValidMachineStatus(s string) bool {
	switch s {
	case MachineAvailable, MachineRented, MachineMaintenance, MachineInactive:
		return true
	}
	return false
}

// Machine is a rentable mining machine listing. Inventory is tracked as a
// pair of counters: TotalUnits is capacity, RentedUnits the committed
// portion. AvailableUnits is always derived, never stored.
//
// Invariant: 0 <= RentedUnits <= TotalUnits.
type Machine struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	Description  *string `json:"description,omitempty"`
	Image        *string `json:"image,omitempty"`
	Type         string  `json:"type"`
	Manufacturer *string `json:"manufacturer,omitempty"`
	Model        *string `json:"model,omitempty"`

	// Specifications
	HashRate         *float64 `json:"hashRate,omitempty"`
	HashRateUnit     *string  `json:"hashRateUnit,omitempty"` // TH/s, GH/s, MH/s
	PowerConsumption *float64 `json:"powerConsumption,omitempty"` // watts
	Algorithm        *string  `json:"algorithm,omitempty"`
	MiningCoin       *string  `json:"miningCoin,omitempty"`
	Efficiency       *float64 `json:"efficiency,omitempty"` // J/TH

	// Rental rates, one per billing granularity.
	PricePerHour  float64 `json:"pricePerHour"`
	PricePerDay   float64 `json:"pricePerDay"`
	PricePerWeek  float64 `json:"pricePerWeek"`
	PricePerMonth float64 `json:"pricePerMonth"`

	// Advertised profit estimates.
	ProfitPerHour  float64 `json:"profitPerHour"`
	ProfitPerDay   float64 `json:"profitPerDay"`
	ProfitPerWeek  float64 `json:"profitPerWeek"`
	ProfitPerMonth float64 `json:"profitPerMonth"`

	Status      string `json:"status"`
	TotalUnits  int    `json:"totalUnits"`
	RentedUnits int    `json:"rentedUnits"`
	IsActive    bool   `json:"isActive"`
	IsFeatured  bool   `json:"isFeatured"`
	SortOrder   int    `json:"sortOrder"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// AvailableUnits returns the remaining bookable capacity.
func (m *Machine) AvailableUnits() int {
	return m.TotalUnits - m.RentedUnits
}
