package model

import "time"

// Message types. System messages are emitted by the booking engine at every
// state transition and form an append-only narrative of the workflow.
const (
	MessageText           = "text"
	MessagePaymentAddress = "payment_address"
	MessageSystem         = "system"
)

// ValidMessageType reports whether t is a known message type.
func ValidMessageType(t string) bool {
	switch t {
	case MessageText, MessagePaymentAddress, MessageSystem:
		return true
	}
	return false
}

// Message is one entry in a booking's communication thread. Content is
// immutable once created; only the read flag is ever updated. Messages are
// displayed ordered by creation time ascending.
type Message struct {
	ID          string    `json:"id"`
	BookingID   string    `json:"bookingId"`
	SenderID    string    `json:"senderId"`
	Content     string    `json:"content"`
	MessageType string    `json:"messageType"`
	IsRead      bool      `json:"isRead"`
	IsFromAdmin bool      `json:"isFromAdmin"`
	CreatedAt   time.Time `json:"createdAt"`
}
