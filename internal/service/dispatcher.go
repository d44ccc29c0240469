package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/fidelize/fidelize-backend/internal/events"
	"github.com/fidelize/fidelize-backend/internal/metrics"
	"github.com/fidelize/fidelize-backend/internal/model"
	"github.com/fidelize/fidelize-backend/internal/phone"
	"github.com/fidelize/fidelize-backend/internal/provider"
	"github.com/fidelize/fidelize-backend/internal/repository"
)

// BatchParams bounds one dispatcher invocation.
type BatchParams struct {
	BatchSize int
	// Delay drawn uniformly from [MinDelay, MaxDelay] between messages of
	// the same batch. Exists independently of the scheduler's inter-batch
	// pacing: some profiles dispatch one message per batch and pace entirely
	// from the scheduler.
	MinDelay time.Duration
	MaxDelay time.Duration
}

type BatchResult struct {
	Processed int `json:"processed"`
	Sent      int `json:"sent"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
}

// Dispatcher is the idempotent unit of work: claim a bounded slice of pending
// tasks, resolve content, send, record outcomes. Per-task errors are data,
// never reasons to abort the batch.
type Dispatcher struct {
	Campaigns repository.CampaignRepositoryInterface
	Tasks     repository.TaskRepositoryInterface
	OptOuts   repository.OptOutRepositoryInterface
	Sender    provider.Sender
	Events    *events.Publisher
	Clock     Clock
	Logger    *zap.Logger
}

// RunBatch processes up to p.BatchSize pending tasks of one campaign, in
// creation order. If the campaign is not sending it returns immediately with
// zero processed, which is what stops runaway work after pause or cancel.
func (d *Dispatcher) RunBatch(ctx context.Context, campaignID int, p BatchParams) (BatchResult, error) {
	var res BatchResult

	campaign, err := d.Campaigns.GetByID(campaignID)
	if err != nil {
		return res, err
	}
	if campaign.Status != model.CampaignSending {
		return res, nil
	}

	tasks, err := d.Tasks.ClaimPending(campaignID, p.BatchSize)
	if err != nil {
		return res, err
	}
	if len(tasks) == 0 {
		return res, nil
	}
	metrics.DispatchBatches.Inc()

	for i, task := range tasks {
		d.processTask(ctx, campaign, task, &res)

		if i < len(tasks)-1 {
			if err := d.Clock.Sleep(ctx, randomDelay(p.MinDelay, p.MaxDelay)); err != nil {
				// cancelled mid-batch: the in-flight send above already
				// completed and was recorded, remaining tasks stay pending
				break
			}
		}
	}

	return res, nil
}

func (d *Dispatcher) processTask(ctx context.Context, campaign *model.Campaign, task *model.RecipientTask, res *BatchResult) {
	logger := d.Logger.With(zap.Int("campaign_id", campaign.ID), zap.Int("task_id", task.ID))

	opted, err := d.OptOuts.IsOptedOut(task.Phone)
	if err != nil {
		logger.Error("opt-out lookup failed", zap.Error(err))
		return // leave pending, a later batch retries the lookup
	}
	if opted {
		d.finish(campaign, task, model.TaskSkipped, repository.TerminalOutcome{LastError: "recipient opted out"}, res)
		return
	}

	canonical, err := phone.Normalize(task.Phone)
	if err != nil || !phone.IsValidCanonical(canonical) {
		d.finish(campaign, task, model.TaskFailed, repository.TerminalOutcome{LastError: "invalid phone"}, res)
		return
	}

	text := RenderTemplate(Resolve(campaign.MessageTemplate), map[string]string{"name": task.Name})
	if len(text) == 0 {
		d.finish(campaign, task, model.TaskFailed, repository.TerminalOutcome{LastError: "empty rendered message"}, res)
		return
	}

	start := d.Clock.Now()
	outcome, err := d.Sender.Send(ctx, canonical, text)
	latency := d.Clock.Now().Sub(start)

	if err != nil {
		// network error or timeout, converted to a plain failed task
		logger.Warn("send failed", zap.Error(err))
		d.finish(campaign, task, model.TaskFailed, repository.TerminalOutcome{
			LastError:       err.Error(),
			LatencyMs:       latency.Milliseconds(),
			RenderedContent: text,
		}, res)
		return
	}
	if !outcome.Success {
		d.finish(campaign, task, model.TaskFailed, repository.TerminalOutcome{
			LastError:       outcome.Error,
			LatencyMs:       latency.Milliseconds(),
			RenderedContent: text,
		}, res)
		return
	}

	sentAt := d.Clock.Now()
	d.finish(campaign, task, model.TaskSent, repository.TerminalOutcome{
		ProviderMessageID: outcome.ProviderMessageID,
		LatencyMs:         latency.Milliseconds(),
		RenderedContent:   text,
		SentAt:            &sentAt,
	}, res)
	metrics.SendLatency.Observe(latency.Seconds())
}

// finish performs the conditional pending->terminal transition and updates
// batch counters. Losing the transition means a concurrent loop already
// recorded this task; it is then counted by neither.
func (d *Dispatcher) finish(campaign *model.Campaign, task *model.RecipientTask, status string, outcome repository.TerminalOutcome, res *BatchResult) {
	won, err := d.Tasks.MarkTerminal(task.ID, status, outcome)
	if err != nil {
		d.Logger.Error("mark terminal failed", zap.Int("task_id", task.ID), zap.Error(err))
		return
	}
	if !won {
		d.Logger.Warn("task already terminal, outcome dropped",
			zap.Int("task_id", task.ID), zap.String("status", status))
		return
	}

	res.Processed++
	switch status {
	case model.TaskSent:
		res.Sent++
		metrics.MessagesSent.Inc()
	case model.TaskFailed:
		res.Failed++
		metrics.MessagesFailed.Inc()
	case model.TaskSkipped:
		res.Skipped++
		metrics.MessagesSkipped.Inc()
	}

	d.Events.Publish(events.TaskEvent{
		CampaignID: campaign.ID,
		TaskID:     task.ID,
		Phone:      task.Phone,
		Status:     status,
		Error:      outcome.LastError,
	})
}
