package model

import "time"

// Customer is a loyalty program member, the eligibility source for campaign
// recipient queues.
type Customer struct {
	ID            int        `db:"id" json:"id"`
	Phone         string     `db:"phone" json:"phone"`
	Name          string     `db:"name" json:"name"`
	Visits        int        `db:"visits" json:"visits"`
	LastCheckinAt *time.Time `db:"last_checkin_at" json:"last_checkin_at,omitempty"`
}
