package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	appErrors "github.com/fidelize/fidelize-backend/internal/errors"
	"github.com/fidelize/fidelize-backend/internal/model"
	"github.com/fidelize/fidelize-backend/internal/repository"
)

// Profile is a named pacing configuration trading throughput against
// provider-abuse risk. The delay bounds are empirically tuned constants, not
// adaptive.
type Profile struct {
	Name      string        `json:"name"`
	BatchSize int           `json:"batch_size"`
	// delay between messages inside one batch (dispatcher-driven)
	MessageDelayMin time.Duration `json:"-"`
	MessageDelayMax time.Duration `json:"-"`
	// delay between scheduler iterations
	BatchDelayMin time.Duration `json:"-"`
	BatchDelayMax time.Duration `json:"-"`
}

// Profiles available to operators. "safe" sends one message per iteration
// with maximal pacing variance; "fast" lets the dispatcher pace inside larger
// batches and only keeps a short buffer between them.
var Profiles = map[string]Profile{
	"safe": {
		Name: "safe", BatchSize: 1,
		BatchDelayMin: 20 * time.Second, BatchDelayMax: 45 * time.Second,
	},
	"balanced": {
		Name: "balanced", BatchSize: 5,
		MessageDelayMin: 8 * time.Second, MessageDelayMax: 15 * time.Second,
		BatchDelayMin: 25 * time.Second, BatchDelayMax: 40 * time.Second,
	},
	"fast": {
		Name: "fast", BatchSize: 20,
		MessageDelayMin: 3 * time.Second, MessageDelayMax: 6 * time.Second,
		BatchDelayMin: 10 * time.Second, BatchDelayMax: 10 * time.Second,
	},
}

// Handle owns the cancellation of one running dispatch loop.
type Handle struct {
	RunID      string
	CampaignID int
	Profile    string

	cancel context.CancelFunc
	done   chan struct{}
}

func (h *Handle) Stop() { h.cancel() }

func (h *Handle) IsActive() bool {
	select {
	case <-h.done:
		return false
	default:
		return true
	}
}

// Done is closed when the loop has fully exited.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Scheduler drives repeated batch dispatch for campaigns in sending state.
// One loop per campaign; campaign status in the database stays the single
// source of truth for "should I still be running", so a lost process pauses
// progress without corrupting state.
type Scheduler struct {
	Dispatcher *Dispatcher
	Campaigns  repository.CampaignRepositoryInterface
	Tasks      repository.TaskRepositoryInterface
	Clock      Clock
	Logger     *zap.Logger

	mu     sync.Mutex
	active map[int]*Handle
}

// Start launches the dispatch loop for a campaign that is already in sending
// state. A second start for a campaign with a live loop is rejected.
func (s *Scheduler) Start(campaignID int, profileName string) (*Handle, error) {
	profile, ok := Profiles[profileName]
	if !ok {
		return nil, appErrors.NewPrecondition("unknown pacing profile %q", profileName)
	}

	campaign, err := s.Campaigns.GetByID(campaignID)
	if err != nil {
		return nil, err
	}
	if campaign.Status != model.CampaignSending {
		return nil, appErrors.NewPrecondition("campaign %d is %s, not sending", campaignID, campaign.Status)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		s.active = make(map[int]*Handle)
	}
	if h, ok := s.active[campaignID]; ok && h.IsActive() {
		return nil, appErrors.NewPrecondition("dispatch already running for campaign %d", campaignID)
	}

	ctx, cancel := context.WithCancel(context.Background())
	h := &Handle{
		RunID:      uuid.NewString(),
		CampaignID: campaignID,
		Profile:    profile.Name,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
	s.active[campaignID] = h

	go s.run(ctx, h, profile)
	return h, nil
}

// StopFor cancels the active loop for a campaign, if any.
func (s *Scheduler) StopFor(campaignID int) {
	s.mu.Lock()
	h := s.active[campaignID]
	s.mu.Unlock()
	if h != nil {
		h.Stop()
	}
}

// IsRunning reports whether a live loop exists for the campaign in this
// process.
func (s *Scheduler) IsRunning(campaignID int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.active[campaignID]
	return ok && h.IsActive()
}

func (s *Scheduler) run(ctx context.Context, h *Handle, profile Profile) {
	logger := s.Logger.With(
		zap.Int("campaign_id", h.CampaignID),
		zap.String("run_id", h.RunID),
		zap.String("profile", profile.Name),
	)
	logger.Info("dispatch loop started")
	defer close(h.done)
	defer logger.Info("dispatch loop stopped")

	params := BatchParams{
		BatchSize: profile.BatchSize,
		MinDelay:  profile.MessageDelayMin,
		MaxDelay:  profile.MessageDelayMax,
	}

	for {
		campaign, err := s.Campaigns.GetByID(h.CampaignID)
		if err != nil {
			logger.Error("status check failed", zap.Error(err))
			if s.Clock.Sleep(ctx, profile.BatchDelayMin) != nil {
				return
			}
			continue
		}
		if campaign.Status != model.CampaignSending {
			// paused or cancelled by the operator; pending tasks stay put
			return
		}

		res, err := s.Dispatcher.RunBatch(ctx, h.CampaignID, params)
		if err != nil {
			logger.Error("batch failed", zap.Error(err))
			if s.Clock.Sleep(ctx, profile.BatchDelayMin) != nil {
				return
			}
			continue
		}
		if res.Processed > 0 {
			logger.Info("batch done",
				zap.Int("sent", res.Sent), zap.Int("failed", res.Failed), zap.Int("skipped", res.Skipped))
		}

		counts, err := s.Tasks.CountsByStatus(h.CampaignID)
		if err != nil {
			logger.Error("recount failed", zap.Error(err))
			if s.Clock.Sleep(ctx, profile.BatchDelayMin) != nil {
				return
			}
			continue
		}

		if counts.Pending == 0 {
			// conditional so an operator pause racing this check wins
			won, err := s.Campaigns.UpdateStatusIf(h.CampaignID, model.CampaignSending, model.CampaignDone)
			if err != nil {
				logger.Error("done transition failed", zap.Error(err))
			} else if won {
				logger.Info("campaign done",
					zap.Int("sent", counts.Sent), zap.Int("failed", counts.Failed), zap.Int("skipped", counts.Skipped))
			}
			return
		}

		if err := s.Clock.Sleep(ctx, randomDelay(profile.BatchDelayMin, profile.BatchDelayMax)); err != nil {
			return
		}
	}
}
