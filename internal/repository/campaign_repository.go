package repository

import (
	"database/sql"
	"fmt"
	"time"

	appErrors "github.com/fidelize/fidelize-backend/internal/errors"
	"github.com/fidelize/fidelize-backend/internal/model"
)

type CampaignRepositoryInterface interface {
	Create(c *model.Campaign) error
	Update(c *model.Campaign) error
	GetByID(id int) (*model.Campaign, error)
	ListCampaigns(offset, limit int, status string) ([]*model.Campaign, int, error)

	// UpdateStatusIf performs the conditional transition from -> to and
	// reports whether this caller won it. It is the only way campaign status
	// ever changes.
	UpdateStatusIf(campaignID int, from, to string) (bool, error)
	SetPacingProfile(campaignID int, profile string) error
}

type CampaignRepository struct {
	DB *sql.DB
}

var _ CampaignRepositoryInterface = (*CampaignRepository)(nil)

func (r *CampaignRepository) Create(c *model.Campaign) error {
	c.CreatedAt = time.Now()
	if c.Status == "" {
		c.Status = model.CampaignDraft
	}
	query := `
        INSERT INTO campaigns (name, message_template, status, pacing_profile, scheduled_at, created_at)
        VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING id
    `
	return r.DB.QueryRow(query, c.Name, c.MessageTemplate, c.Status, c.PacingProfile, c.ScheduledAt, c.CreatedAt).Scan(&c.ID)
}

func (r *CampaignRepository) Update(c *model.Campaign) error {
	query := `
        UPDATE campaigns
        SET name=$1, message_template=$2, scheduled_at=$3, updated_at=NOW()
        WHERE id=$4
    `
	_, err := r.DB.Exec(query, c.Name, c.MessageTemplate, c.ScheduledAt, c.ID)
	return err
}

func (r *CampaignRepository) GetByID(id int) (*model.Campaign, error) {
	query := `
        SELECT id, name, message_template, status, pacing_profile, scheduled_at, created_at, updated_at
        FROM campaigns WHERE id=$1
    `
	var c model.Campaign
	err := r.DB.QueryRow(query, id).Scan(
		&c.ID, &c.Name, &c.MessageTemplate, &c.Status, &c.PacingProfile,
		&c.ScheduledAt, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.NewCampaignNotFound(id)
		}
		return nil, err
	}
	return &c, nil
}

func (r *CampaignRepository) ListCampaigns(offset, limit int, status string) ([]*model.Campaign, int, error) {
	campaigns := []*model.Campaign{}
	query := `SELECT id, name, message_template, status, pacing_profile, scheduled_at, created_at, updated_at
              FROM campaigns WHERE 1=1`
	args := []interface{}{}
	argPos := 1

	if status != "" {
		query += fmt.Sprintf(" AND status=$%d", argPos)
		args = append(args, status)
		argPos++
	}

	query += fmt.Sprintf(" ORDER BY id DESC LIMIT $%d OFFSET $%d", argPos, argPos+1)
	args = append(args, limit, offset)

	rows, err := r.DB.Query(query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	for rows.Next() {
		c := &model.Campaign{}
		if err := rows.Scan(&c.ID, &c.Name, &c.MessageTemplate, &c.Status, &c.PacingProfile,
			&c.ScheduledAt, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, 0, err
		}
		campaigns = append(campaigns, c)
	}

	countQuery := `SELECT COUNT(*) FROM campaigns WHERE 1=1`
	argsCount := []interface{}{}
	if status != "" {
		countQuery += " AND status=$1"
		argsCount = append(argsCount, status)
	}

	var total int
	if err := r.DB.QueryRow(countQuery, argsCount...).Scan(&total); err != nil {
		return nil, 0, err
	}

	return campaigns, total, nil
}

func (r *CampaignRepository) UpdateStatusIf(campaignID int, from, to string) (bool, error) {
	query := `UPDATE campaigns SET status=$1, updated_at=NOW() WHERE id=$2 AND status=$3`
	res, err := r.DB.Exec(query, to, campaignID, from)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *CampaignRepository) SetPacingProfile(campaignID int, profile string) error {
	query := `UPDATE campaigns SET pacing_profile=$1, updated_at=NOW() WHERE id=$2`
	_, err := r.DB.Exec(query, profile, campaignID)
	return err
}
