package model

import "time"

// Booking status values. PENDING -> AWAITING_PAYMENT -> PAYMENT_SENT ->
// APPROVED is the happy path; REJECTED and CANCELLED are side exits.
// APPROVED, REJECTED and CANCELLED are terminal.
const (
	BookingPending         = "pending"
	BookingAwaitingPayment = "awaiting_payment"
	BookingPaymentSent     = "payment_sent"
	BookingApproved        = "approved"
	BookingRejected        = "rejected"
	BookingCancelled       = "cancelled"
)

// Rental billing granularities, each with its own machine rate.
const (
	DurationHour  = "hour"
	DurationDay   = "day"
	DurationWeek  = "week"
	DurationMonth = "month"
)

// ValidBookingStatus reports whether s is a known booking status.
func ValidBookingStatus(s string) bool {
	switch s {
	case BookingPending, BookingAwaitingPayment, BookingPaymentSent,
		BookingApproved, BookingRejected, BookingCancelled:
		return true
	}
	return false
}

// ValidRentalDuration reports whether d is a known rental duration.
func ValidRentalDuration(d string) bool {
	switch d {
	case DurationHour, DurationDay, DurationWeek, DurationMonth:
		return true
	}
	return false
}

// Booking is a single rental request. TotalPrice is computed once at
// creation (rate for the chosen duration times quantity) and frozen, so
// later catalog price changes never affect existing bookings. Payment is
// confirmed manually: the admin supplies PaymentAddress, the user attests
// with an optional TransactionHash, the admin approves.
type Booking struct {
	ID             string  `json:"id"`
	UserID         string  `json:"userId"`
	MachineID      string  `json:"machineId"`
	RentalDuration string  `json:"rentalDuration"`
	Quantity       int     `json:"quantity"`
	TotalPrice     float64 `json:"totalPrice"`
	Status         string  `json:"status"`

	PaymentAddress  *string `json:"paymentAddress,omitempty"`
	TransactionHash *string `json:"transactionHash,omitempty"`
	UserNotes       *string `json:"userNotes,omitempty"`
	AdminNotes      *string `json:"adminNotes,omitempty"`

	PaymentSentAt *time.Time `json:"paymentSentAt,omitempty"`
	ApprovedAt    *time.Time `json:"approvedAt,omitempty"`
	RejectedAt    *time.Time `json:"rejectedAt,omitempty"`
	ApprovedByID  *string    `json:"approvedById,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	// Loaded relations, populated by the repository on detail reads.
	Machine  *Machine  `json:"machine,omitempty"`
	User     *User     `json:"user,omitempty"`
	Messages []Message `json:"messages,omitempty"`
}

// BookingStatistics aggregates booking counts by status. Computed on
// demand; nothing is pre-aggregated.
type BookingStatistics struct {
	Total           int `json:"total"`
	Pending         int `json:"pending"`
	AwaitingPayment int `json:"awaitingPayment"`
	PaymentSent     int `json:"paymentSent"`
	Approved        int `json:"approved"`
	Rejected        int `json:"rejected"`
	Cancelled       int `json:"cancelled"`
}
