package repository

import (
	"database/sql"
	"time"

	"github.com/fidelize/fidelize-backend/internal/model"
)

// NewRecipient is one (phone, name) pair to enqueue.
type NewRecipient struct {
	Phone string
	Name  string
}

// TerminalOutcome carries the fields recorded when a task leaves pending.
type TerminalOutcome struct {
	LastError         string
	ProviderMessageID string
	LatencyMs         int64
	RenderedContent   string
	SentAt            *time.Time
}

type TaskRepositoryInterface interface {
	// BulkInsert creates pending tasks for a campaign, skipping phones that
	// already have a pending task in the same campaign. Returns the number
	// actually inserted.
	BulkInsert(campaignID int, recipients []NewRecipient) (int, error)

	// ClaimPending returns up to limit pending tasks in creation order
	// without mutating them.
	ClaimPending(campaignID, limit int) ([]*model.RecipientTask, error)

	// MarkTerminal transitions a task from pending to a terminal status. The
	// update is conditional on the task still being pending; the returned
	// bool reports whether this caller won the transition. Terminal tasks
	// are never touched again.
	MarkTerminal(taskID int, status string, outcome TerminalOutcome) (bool, error)

	CountsByStatus(campaignID int) (model.StatusCounts, error)
	GetByID(taskID int) (*model.RecipientTask, error)

	// RequeueFailed inserts a fresh pending task copying a failed task's
	// phone and name. The failed row is left untouched. Returns the new id.
	RequeueFailed(taskID int) (int, error)
}

type TaskRepository struct {
	DB *sql.DB
}

var _ TaskRepositoryInterface = (*TaskRepository)(nil)

func (r *TaskRepository) BulkInsert(campaignID int, recipients []NewRecipient) (int, error) {
	tx, err := r.DB.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	// dedupe against the campaign's pending set only: a failed task may be
	// re-enqueued, a pending one must not be duplicated
	query := `
        INSERT INTO recipient_tasks (campaign_id, phone, name, status, created_at, updated_at)
        SELECT $1, $2, $3, 'pending', NOW(), NOW()
        WHERE NOT EXISTS (
            SELECT 1 FROM recipient_tasks
            WHERE campaign_id=$1 AND phone=$2 AND status='pending'
        )
    `
	stmt, err := tx.Prepare(query)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	inserted := 0
	for _, rec := range recipients {
		res, err := stmt.Exec(campaignID, rec.Phone, rec.Name)
		if err != nil {
			return inserted, err
		}
		if n, _ := res.RowsAffected(); n == 1 {
			inserted++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return inserted, nil
}

func (r *TaskRepository) ClaimPending(campaignID, limit int) ([]*model.RecipientTask, error) {
	query := `
        SELECT id, campaign_id, phone, name, status, last_error, provider_message_id,
               sent_at, latency_ms, rendered_content, created_at, updated_at
        FROM recipient_tasks
        WHERE campaign_id=$1 AND status='pending'
        ORDER BY id
        LIMIT $2
    `
	rows, err := r.DB.Query(query, campaignID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tasks := []*model.RecipientTask{}
	for rows.Next() {
		t := &model.RecipientTask{}
		if err := rows.Scan(&t.ID, &t.CampaignID, &t.Phone, &t.Name, &t.Status,
			&t.LastError, &t.ProviderMessageID, &t.SentAt, &t.LatencyMs,
			&t.RenderedContent, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

func (r *TaskRepository) MarkTerminal(taskID int, status string, outcome TerminalOutcome) (bool, error) {
	query := `
        UPDATE recipient_tasks
        SET status=$2,
            last_error=NULLIF($3, ''),
            provider_message_id=NULLIF($4, ''),
            sent_at=$5,
            latency_ms=NULLIF($6, 0),
            rendered_content=NULLIF($7, ''),
            updated_at=NOW()
        WHERE id=$1 AND status='pending'
    `
	res, err := r.DB.Exec(query, taskID, status,
		outcome.LastError, outcome.ProviderMessageID, outcome.SentAt,
		outcome.LatencyMs, outcome.RenderedContent)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *TaskRepository) CountsByStatus(campaignID int) (model.StatusCounts, error) {
	query := `SELECT status, COUNT(*) FROM recipient_tasks WHERE campaign_id=$1 GROUP BY status`
	rows, err := r.DB.Query(query, campaignID)
	if err != nil {
		return model.StatusCounts{}, err
	}
	defer rows.Close()

	var counts model.StatusCounts
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return model.StatusCounts{}, err
		}
		switch status {
		case model.TaskPending:
			counts.Pending = count
		case model.TaskSent:
			counts.Sent = count
		case model.TaskFailed:
			counts.Failed = count
		case model.TaskSkipped:
			counts.Skipped = count
		}
	}
	return counts, rows.Err()
}

func (r *TaskRepository) GetByID(taskID int) (*model.RecipientTask, error) {
	query := `
        SELECT id, campaign_id, phone, name, status, last_error, provider_message_id,
               sent_at, latency_ms, rendered_content, created_at, updated_at
        FROM recipient_tasks WHERE id=$1
    `
	t := &model.RecipientTask{}
	err := r.DB.QueryRow(query, taskID).Scan(&t.ID, &t.CampaignID, &t.Phone, &t.Name,
		&t.Status, &t.LastError, &t.ProviderMessageID, &t.SentAt, &t.LatencyMs,
		&t.RenderedContent, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return t, nil
}

func (r *TaskRepository) RequeueFailed(taskID int) (int, error) {
	// retries never reopen a terminal row, they get a fresh task
	query := `
        INSERT INTO recipient_tasks (campaign_id, phone, name, status, created_at, updated_at)
        SELECT campaign_id, phone, name, 'pending', NOW(), NOW()
        FROM recipient_tasks
        WHERE id=$1 AND status='failed'
        RETURNING id
    `
	var newID int
	err := r.DB.QueryRow(query, taskID).Scan(&newID)
	if err != nil {
		if err == sql.ErrNoRows {
			return 0, nil
		}
		return 0, err
	}
	return newID, nil
}
