package model

import "time"

// Check-status states.  There is no collected state: collecting an entry
// deletes it.
const (
	CheckStatusPending = "pending"
	CheckStatusReady   = "ready"
)

// CheckStatusEntry is a post-service verification record.  MembershipNumber
// is unique across all entries.
type CheckStatusEntry struct {
	ID               string    `json:"id"`
	MembershipNumber string    `json:"membership_number"`
	Name             string    `json:"name"`
	Designation      string    `json:"designation,omitempty"`
	Hospital         string    `json:"hospital,omitempty"`
	Section          string    `json:"section"`
	Status           string    `json:"status"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// IsReady reports whether the entry can be collected by the customer.
func (e CheckStatusEntry) IsReady() bool { return e.Status == CheckStatusReady }
