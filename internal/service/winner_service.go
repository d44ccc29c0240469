package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	appErrors "github.com/fidelize/fidelize-backend/internal/errors"
	"github.com/fidelize/fidelize-backend/internal/phone"
	"github.com/fidelize/fidelize-backend/internal/provider"
)

const defaultWinnerDelay = 3 * time.Second

// Winner is one raffle winner to notify. Selection happens elsewhere; this
// service only does the sequential fan-out.
type Winner struct {
	Phone   string `json:"phone"`
	Name    string `json:"name"`
	Prize   string `json:"prize"`
	Contest string `json:"contest"`
}

type WinnerOutcome struct {
	Phone   string `json:"phone"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

type NotifyResult struct {
	Sent     int             `json:"sent"`
	Failed   int             `json:"failed"`
	Outcomes []WinnerOutcome `json:"outcomes"`
}

// WinnerService notifies raffle winners through the same send primitive as
// the dispatch engine. Winner lists are always small, so this runs
// synchronously with no persistent queue.
type WinnerService struct {
	Sender provider.Sender
	Clock  Clock
	Logger *zap.Logger
	// Delay between consecutive winners; defaults to a few seconds.
	Delay time.Duration
}

func (s *WinnerService) Notify(ctx context.Context, template string, winners []Winner) (*NotifyResult, error) {
	if template == "" {
		return nil, appErrors.NewValidation("winner template cannot be empty")
	}
	if len(winners) == 0 {
		return nil, appErrors.NewValidation("winner list is empty")
	}
	if !s.Sender.IsConnected(ctx) {
		return nil, appErrors.NewPrecondition("messaging provider is not connected")
	}

	delay := s.Delay
	if delay <= 0 {
		delay = defaultWinnerDelay
	}

	res := &NotifyResult{}
	for i, w := range winners {
		outcome := s.notifyOne(ctx, template, w)
		res.Outcomes = append(res.Outcomes, outcome)
		if outcome.Success {
			res.Sent++
		} else {
			res.Failed++
		}

		if i < len(winners)-1 {
			if err := s.Clock.Sleep(ctx, delay); err != nil {
				return res, err
			}
		}
	}

	s.Logger.Info("winner notification finished",
		zap.Int("sent", res.Sent), zap.Int("failed", res.Failed))
	return res, nil
}

func (s *WinnerService) notifyOne(ctx context.Context, template string, w Winner) WinnerOutcome {
	canonical, err := phone.Normalize(w.Phone)
	if err != nil {
		return WinnerOutcome{Phone: w.Phone, Error: "invalid phone"}
	}

	text := RenderTemplate(Resolve(template), map[string]string{
		"name":    w.Name,
		"prize":   w.Prize,
		"contest": w.Contest,
	})

	outcome, err := s.Sender.Send(ctx, canonical, text)
	if err != nil {
		s.Logger.Warn("winner send failed", zap.String("phone", canonical), zap.Error(err))
		return WinnerOutcome{Phone: canonical, Error: err.Error()}
	}
	if !outcome.Success {
		return WinnerOutcome{Phone: canonical, Error: outcome.Error}
	}
	return WinnerOutcome{Phone: canonical, Success: true}
}
