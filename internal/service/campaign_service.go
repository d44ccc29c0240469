package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	appErrors "github.com/fidelize/fidelize-backend/internal/errors"
	"github.com/fidelize/fidelize-backend/internal/model"
	"github.com/fidelize/fidelize-backend/internal/phone"
	"github.com/fidelize/fidelize-backend/internal/provider"
	"github.com/fidelize/fidelize-backend/internal/repository"
)

// CampaignService owns the campaign lifecycle: draft editing, queue
// population, and the state machine around the pacing scheduler.
type CampaignService struct {
	Campaigns repository.CampaignRepositoryInterface
	Tasks     repository.TaskRepositoryInterface
	Customers repository.CustomerRepositoryInterface
	Sender    provider.Sender
	Scheduler *Scheduler
	Logger    *zap.Logger
}

type CampaignDetails struct {
	ID              int                `json:"id"`
	Name            string             `json:"name"`
	MessageTemplate string             `json:"message_template"`
	Status          string             `json:"status"`
	PacingProfile   string             `json:"pacing_profile,omitempty"`
	ScheduledAt     *time.Time         `json:"scheduled_at,omitempty"`
	CreatedAt       time.Time          `json:"created_at"`
	UpdatedAt       *time.Time         `json:"updated_at,omitempty"`
	DispatchActive  bool               `json:"dispatch_active"`
	Stats           model.StatusCounts `json:"stats"`
}

func (s *CampaignService) CreateCampaign(name, template string, scheduledAt *string) (*model.Campaign, error) {
	if name == "" {
		return nil, appErrors.NewValidation("campaign name cannot be empty")
	}
	if template == "" {
		return nil, appErrors.NewValidation("message template cannot be empty")
	}

	c := &model.Campaign{
		Name:            name,
		MessageTemplate: template,
		Status:          model.CampaignDraft,
	}

	if scheduledAt != nil && *scheduledAt != "" {
		t, err := time.Parse(time.RFC3339, *scheduledAt)
		if err != nil {
			return nil, appErrors.NewValidation("invalid scheduled_at: %v", err)
		}
		c.ScheduledAt = &t
	}

	if err := s.Campaigns.Create(c); err != nil {
		return nil, err
	}
	return c, nil
}

// UpdateCampaign edits name/template/schedule. Permitted only while draft.
func (s *CampaignService) UpdateCampaign(id int, name, template string, scheduledAt *string) (*model.Campaign, error) {
	c, err := s.Campaigns.GetByID(id)
	if err != nil {
		return nil, err
	}
	if c.Status != model.CampaignDraft {
		return nil, appErrors.NewPrecondition("campaign %d is %s, only drafts can be edited", id, c.Status)
	}

	if name != "" {
		c.Name = name
	}
	if template != "" {
		c.MessageTemplate = template
	}
	if scheduledAt != nil {
		if *scheduledAt == "" {
			c.ScheduledAt = nil
		} else {
			t, err := time.Parse(time.RFC3339, *scheduledAt)
			if err != nil {
				return nil, appErrors.NewValidation("invalid scheduled_at: %v", err)
			}
			c.ScheduledAt = &t
		}
	}

	if err := s.Campaigns.Update(c); err != nil {
		return nil, err
	}
	return c, nil
}

// PopulateResult reports one queue-population action.
type PopulateResult struct {
	Queued       int `json:"queued"`
	Deduplicated int `json:"deduplicated"`
	NotCanonical int `json:"not_canonical"`
}

// PopulateQueue bulk-inserts pending tasks from an explicit recipient list.
// Phones are normalized here when possible; a value that fails normalization
// is still enqueued as-is so the dispatcher records the failure on the task
// instead of the row silently disappearing.
func (s *CampaignService) PopulateQueue(campaignID int, recipients []repository.NewRecipient) (*PopulateResult, error) {
	c, err := s.Campaigns.GetByID(campaignID)
	if err != nil {
		return nil, err
	}
	if c.Status != model.CampaignDraft && c.Status != model.CampaignPaused {
		return nil, appErrors.NewPrecondition("cannot add recipients while campaign is %s", c.Status)
	}

	res := &PopulateResult{}
	prepared := make([]repository.NewRecipient, 0, len(recipients))
	for _, rec := range recipients {
		canonical, err := phone.Normalize(rec.Phone)
		if err == nil && phone.IsValidCanonical(canonical) {
			rec.Phone = canonical
		} else {
			res.NotCanonical++
		}
		prepared = append(prepared, rec)
	}

	inserted, err := s.Tasks.BulkInsert(campaignID, prepared)
	if err != nil {
		return nil, err
	}
	res.Queued = inserted
	res.Deduplicated = len(prepared) - inserted

	s.Logger.Info("queue populated",
		zap.Int("campaign_id", campaignID),
		zap.Int("queued", res.Queued),
		zap.Int("deduplicated", res.Deduplicated))
	return res, nil
}

// PopulateFromEligibility fills the queue from the loyalty customer table.
func (s *CampaignService) PopulateFromEligibility(campaignID, minVisits int, checkedInSince *time.Time) (*PopulateResult, error) {
	customers, err := s.Customers.ListEligible(minVisits, checkedInSince)
	if err != nil {
		return nil, err
	}

	recipients := make([]repository.NewRecipient, 0, len(customers))
	for _, c := range customers {
		recipients = append(recipients, repository.NewRecipient{Phone: c.Phone, Name: c.Name})
	}
	return s.PopulateQueue(campaignID, recipients)
}

// StartDispatch moves draft/paused -> sending and launches the pacing loop.
func (s *CampaignService) StartDispatch(ctx context.Context, campaignID int, profileName string) error {
	if _, ok := Profiles[profileName]; !ok {
		return appErrors.NewPrecondition("unknown pacing profile %q", profileName)
	}

	c, err := s.Campaigns.GetByID(campaignID)
	if err != nil {
		return err
	}
	if c.Status != model.CampaignDraft && c.Status != model.CampaignPaused {
		return appErrors.NewPrecondition("campaign %d cannot start dispatch from status %s", campaignID, c.Status)
	}
	if s.Scheduler.IsRunning(campaignID) {
		return appErrors.NewPrecondition("dispatch already running for campaign %d", campaignID)
	}

	if !s.Sender.IsConnected(ctx) {
		return appErrors.NewPrecondition("messaging provider is not connected")
	}

	counts, err := s.Tasks.CountsByStatus(campaignID)
	if err != nil {
		return err
	}
	if counts.Pending == 0 {
		return appErrors.NewPrecondition("campaign %d has no pending recipients", campaignID)
	}

	won, err := s.Campaigns.UpdateStatusIf(campaignID, c.Status, model.CampaignSending)
	if err != nil {
		return err
	}
	if !won {
		return appErrors.NewPrecondition("campaign %d changed status concurrently", campaignID)
	}
	if err := s.Campaigns.SetPacingProfile(campaignID, profileName); err != nil {
		s.Logger.Warn("failed to record pacing profile", zap.Int("campaign_id", campaignID), zap.Error(err))
	}

	if _, err := s.Scheduler.Start(campaignID, profileName); err != nil {
		// roll the status back so the campaign is not stuck sending with no loop
		if _, rbErr := s.Campaigns.UpdateStatusIf(campaignID, model.CampaignSending, c.Status); rbErr != nil {
			s.Logger.Error("status rollback failed", zap.Int("campaign_id", campaignID), zap.Error(rbErr))
		}
		return err
	}
	return nil
}

// PauseDispatch stops the loop and moves sending -> paused. Pending tasks are
// deliberately left untouched so a later resume continues without data loss.
func (s *CampaignService) PauseDispatch(campaignID int) error {
	won, err := s.Campaigns.UpdateStatusIf(campaignID, model.CampaignSending, model.CampaignPaused)
	if err != nil {
		return err
	}
	if !won {
		return appErrors.NewPrecondition("campaign %d is not sending", campaignID)
	}
	s.Scheduler.StopFor(campaignID)
	s.Logger.Info("dispatch paused", zap.Int("campaign_id", campaignID))
	return nil
}

// ResumeDispatch is the paused -> sending path of StartDispatch.
func (s *CampaignService) ResumeDispatch(ctx context.Context, campaignID int, profileName string) error {
	return s.StartDispatch(ctx, campaignID, profileName)
}

// CancelCampaign moves any non-terminal campaign to cancelled and stops a
// running loop. Recipient tasks are never deleted.
func (s *CampaignService) CancelCampaign(campaignID int) error {
	c, err := s.Campaigns.GetByID(campaignID)
	if err != nil {
		return err
	}
	if c.IsTerminal() {
		return appErrors.NewPrecondition("campaign %d is already %s", campaignID, c.Status)
	}

	won, err := s.Campaigns.UpdateStatusIf(campaignID, c.Status, model.CampaignCancelled)
	if err != nil {
		return err
	}
	if !won {
		return appErrors.NewPrecondition("campaign %d changed status concurrently", campaignID)
	}
	s.Scheduler.StopFor(campaignID)
	s.Logger.Info("campaign cancelled", zap.Int("campaign_id", campaignID))
	return nil
}

func (s *CampaignService) GetCampaignDetailsWithStats(campaignID int) (*CampaignDetails, error) {
	c, err := s.Campaigns.GetByID(campaignID)
	if err != nil {
		return nil, err
	}

	counts, err := s.Tasks.CountsByStatus(campaignID)
	if err != nil {
		return nil, err
	}

	return &CampaignDetails{
		ID:              c.ID,
		Name:            c.Name,
		MessageTemplate: c.MessageTemplate,
		Status:          c.Status,
		PacingProfile:   c.PacingProfile,
		ScheduledAt:     c.ScheduledAt,
		CreatedAt:       c.CreatedAt,
		UpdatedAt:       c.UpdatedAt,
		DispatchActive:  s.Scheduler.IsRunning(campaignID),
		Stats:           counts,
	}, nil
}

func (s *CampaignService) ListCampaigns(page, pageSize int, status string) ([]model.Campaign, map[string]int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	offset := (page - 1) * pageSize

	ptrs, total, err := s.Campaigns.ListCampaigns(offset, pageSize, status)
	if err != nil {
		return nil, nil, err
	}

	campaigns := make([]model.Campaign, len(ptrs))
	for i, c := range ptrs {
		campaigns[i] = *c
	}

	totalPages := (total + pageSize - 1) / pageSize
	pagination := map[string]int{
		"page":        page,
		"page_size":   pageSize,
		"total_count": total,
		"total_pages": totalPages,
	}
	return campaigns, pagination, nil
}

// PreviewTemplate returns a few resolved variants with a sample name
// substituted, without touching persisted state.
func (s *CampaignService) PreviewTemplate(campaignID int, overrideTemplate *string, sampleName string) ([]string, error) {
	c, err := s.Campaigns.GetByID(campaignID)
	if err != nil {
		return nil, err
	}

	template := c.MessageTemplate
	if overrideTemplate != nil && *overrideTemplate != "" {
		template = *overrideTemplate
	}
	if template == "" {
		return nil, appErrors.NewValidation("template cannot be empty")
	}
	if sampleName == "" {
		sampleName = "Maria"
	}

	variants := Preview(template, 3)
	for i, v := range variants {
		variants[i] = RenderTemplate(v, map[string]string{"name": sampleName})
	}
	return variants, nil
}

// RequeueFailedTask creates a fresh pending task from a failed one. This is
// the only path back to pending; terminal rows stay immutable.
func (s *CampaignService) RequeueFailedTask(taskID int) (int, error) {
	newID, err := s.Tasks.RequeueFailed(taskID)
	if err != nil {
		return 0, err
	}
	if newID == 0 {
		return 0, appErrors.NewPrecondition("task %d is not in failed status", taskID)
	}
	s.Logger.Info("task requeued", zap.Int("task_id", taskID), zap.Int("new_task_id", newID))
	return newID, nil
}
