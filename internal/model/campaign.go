package model

import "time"

// Campaign statuses. Done and cancelled are terminal.
const (
	CampaignDraft     = "draft"
	CampaignSending   = "sending"
	CampaignPaused    = "paused"
	CampaignDone      = "done"
	CampaignCancelled = "cancelled"
)

type Campaign struct {
	ID              int        `db:"id" json:"id"`
	Name            string     `db:"name" json:"name"`
	MessageTemplate string     `db:"message_template" json:"message_template"`
	Status          string     `db:"status" json:"status"`
	PacingProfile   string     `db:"pacing_profile" json:"pacing_profile,omitempty"`
	ScheduledAt     *time.Time `db:"scheduled_at" json:"scheduled_at,omitempty"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt       *time.Time `db:"updated_at" json:"updated_at,omitempty"`
}

// IsTerminal reports whether no further status transition is allowed.
func (c *Campaign) IsTerminal() bool {
	return c.Status == CampaignDone || c.Status == CampaignCancelled
}
