package model

import "time"

// Ticket is a customer's place in a section queue.  Tickets reference their
// section by name, not by id, so renaming a section rewrites the Section
// field of every ticket that carries the old name.
//
// Fields:
//  ID               – primary key (uuid string).
//  MembershipNumber – membership number of the waiting customer.
//  Section          – name of the section the ticket waits in.
//  Position         – 1-based place in the section; contiguous per section.
//  IsServing        – true for the ticket currently being attended.
//  CreatedAt        – enqueue timestamp.
type Ticket struct {
	ID               string    `json:"id"`                // tickets.id
	MembershipNumber string    `json:"membership_number"` // tickets.membership_number
	Section          string    `json:"section"`           // tickets.section
	Position         int       `json:"position"`          // tickets.position
	IsServing        bool      `json:"is_serving"`        // tickets.is_serving
	CreatedAt        time.Time `json:"created_at"`        // tickets.created_at
}

// PositionUpdate assigns a new position to a ticket during renumbering.
type PositionUpdate struct {
	TicketID string
	Position int
}
