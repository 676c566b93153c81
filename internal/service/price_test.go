package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/xbinlabs/mining-rental/internal/model"
)

func TestComputePrice(t *testing.T) {
	machine := &model.Machine{
		PricePerHour:  5,
		PricePerDay:   120,
		PricePerWeek:  700,
		PricePerMonth: 2500,
	}

	tests := []struct {
		name     string
		duration string
		quantity int
		want     float64
	}{
		{"hourly", model.DurationHour, 1, 5},
		{"daily two units", model.DurationDay, 2, 240},
		{"weekly", model.DurationWeek, 1, 700},
		{"monthly three units", model.DurationMonth, 3, 7500},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ComputePrice(machine, tt.duration, tt.quantity))
		})
	}
}

func TestComputePriceFallsBackToDailyRate(t *testing.T) {
	machine := &model.Machine{PricePerDay: 80}

	// Unpriced granularities charge the daily rate instead of zero.
	assert.Equal(t, 80.0, ComputePrice(machine, model.DurationHour, 1))
	assert.Equal(t, 160.0, ComputePrice(machine, model.DurationWeek, 2))
	assert.Equal(t, 80.0, ComputePrice(machine, model.DurationMonth, 1))
}

func TestComputePriceUnknownDurationUsesDaily(t *testing.T) {
	machine := &model.Machine{PricePerDay: 50}
	assert.Equal(t, 50.0, ComputePrice(machine, "fortnight", 1))
}
