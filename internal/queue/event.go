// Package queue defines booking lifecycle events exchanged over the message
// broker plus the background consumer that records them.
package queue

// BookingEvent is published whenever a booking changes state. It carries
// enough information for downstream consumers to log, notify or feed
// analytics without querying the primary database.
type BookingEvent struct {
	BookingID   string  `json:"booking_id"`
	UserID      string  `json:"user_id"`
	MachineID   string  `json:"machine_id"`
	MachineName string  `json:"machine_name"`
	Status      string  `json:"status"`
	Duration    string  `json:"duration"`
	Quantity    int     `json:"quantity"`
	TotalPrice  float64 `json:"total_price"`
	OccurredAt  string  `json:"occurred_at"`
}
