package model

import "time"

// Contact submission workflow states.
const (
	ContactNew      = "new"
	ContactRead     = "read"
	ContactReplied  = "replied"
	ContactArchived = "archived"
)

// ValidContactStatus reports whether s is a known contact status.
func ValidContactStatus(s string) bool {
	switch s {
	case ContactNew, ContactRead, ContactReplied, ContactArchived:
		return true
	}
	return false
}

// ContactSubmission is one entry in the public contact-form inbox. The
// client IP and user agent are captured at submission time for abuse
// triage.
type ContactSubmission struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Subject   string    `json:"subject"`
	Message   string    `json:"message"`
	Status    string    `json:"status"`
	IPAddress *string   `json:"ipAddress,omitempty"`
	UserAgent *string   `json:"userAgent,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
