package model

import "time"

// Section is a named queue category such as "Loan".  Names are unique.
type Section struct {
	ID        string    `json:"id"`         // sections.id
	Name      string    `json:"name"`       // sections.name (unique)
	CreatedAt time.Time `json:"created_at"` // sections.created_at
}
