package model

// Customer is reference data looked up by membership number before a
// customer is enqueued.  It never takes part in queue ordering.
type Customer struct {
	ID           string `json:"id"`
	MembershipNo string `json:"membership_no"`
	Name         string `json:"name"`
	Designation  string `json:"designation"`
	Hospital     string `json:"hospital"`
}
