package service

import "github.com/xbinlabs/mining-rental/internal/model"

// RateFor returns the machine's rate for one unit at the given billing
// granularity. A missing or non-positive rate falls back to the daily rate
// so a sparsely priced listing still produces a charge.
func RateFor(m *model.Machine, duration string) float64 {
	var rate float64
	switch duration {
	case model.DurationHour:
		rate = m.PricePerHour
	case model.DurationDay:
		rate = m.PricePerDay
	case model.DurationWeek:
		rate = m.PricePerWeek
	case model.DurationMonth:
		rate = m.PricePerMonth
	}
	if rate <= 0 {
		rate = m.PricePerDay
	}
	return rate
}

// ComputePrice returns the frozen total for a booking: the per-unit rate
// for the chosen duration times the quantity.
func ComputePrice(m *model.Machine, duration string, quantity int) float64 {
	return RateFor(m, duration) * float64(quantity)
}
