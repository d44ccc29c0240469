package model

import "time"

// OptOutEntry is a suppression-list row. The dispatch engine only reads these;
// writes come from the opt-out intake worker.
type OptOutEntry struct {
	Phone     string    `db:"phone" json:"phone"`
	Reason    string    `db:"reason" json:"reason,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
