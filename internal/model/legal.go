package model

import "time"

// LegalDocument is a static legal text (terms of service, privacy policy,
// ...) keyed by its unique Type. Public readers fetch by type; admins
// upsert new versions in place.
type LegalDocument struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Version   int       `json:"version"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
