package model

import "time"

// RecipientTask statuses. Everything except pending is terminal: a task is
// mutated exactly once, from pending to one of the terminal statuses.
const (
	TaskPending = "pending"
	TaskSent    = "sent"
	TaskFailed  = "failed"
	TaskSkipped = "skipped"
)

type RecipientTask struct {
	ID                int        `db:"id" json:"id"`
	CampaignID        int        `db:"campaign_id" json:"campaign_id"`
	Phone             string     `db:"phone" json:"phone"`
	Name              string     `db:"name" json:"name,omitempty"`
	Status            string     `db:"status" json:"status"`
	LastError         *string    `db:"last_error" json:"last_error,omitempty"`
	ProviderMessageID *string    `db:"provider_message_id" json:"provider_message_id,omitempty"`
	SentAt            *time.Time `db:"sent_at" json:"sent_at,omitempty"`
	LatencyMs         *int64     `db:"latency_ms" json:"latency_ms,omitempty"`
	// RenderedContent is the exact text that was transmitted, nil until sent.
	RenderedContent *string   `db:"rendered_content" json:"rendered_content,omitempty"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

// StatusCounts is the per-campaign aggregate used by the state machine and the
// progress UI.
type StatusCounts struct {
	Pending int `json:"pending"`
	Sent    int `json:"sent"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
}

func (s StatusCounts) Total() int {
	return s.Pending + s.Sent + s.Failed + s.Skipped
}
