package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const defaultSendTimeout = 30 * time.Second

// Gateway talks to a WPPConnect-style HTTP messaging gateway. On top of the
// randomized pacing done by the dispatch engine it carries a hard safety-cap
// limiter so no code path can exceed one send every two seconds.
type Gateway struct {
	baseURL string
	session string
	token   string
	client  *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

type GatewayConfig struct {
	BaseURL     string
	Session     string
	Token       string
	SendTimeout time.Duration
}

func NewGateway(cfg GatewayConfig, logger *zap.Logger) *Gateway {
	timeout := cfg.SendTimeout
	if timeout <= 0 {
		timeout = defaultSendTimeout
	}
	return &Gateway{
		baseURL: cfg.BaseURL,
		session: cfg.Session,
		token:   cfg.Token,
		client:  &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Every(2*time.Second), 1),
		logger:  logger,
	}
}

var _ Sender = (*Gateway)(nil)

type sendRequest struct {
	Phone   string `json:"phone"`
	Message string `json:"message"`
}

type sendResponse struct {
	Status  string `json:"status"`
	ID      string `json:"id"`
	Message string `json:"message"`
}

func (g *Gateway) Send(ctx context.Context, phone, text string) (SendOutcome, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return SendOutcome{}, err
	}

	body, err := json.Marshal(sendRequest{Phone: phone, Message: text})
	if err != nil {
		return SendOutcome{}, err
	}

	url := fmt.Sprintf("%s/api/%s/send-message", g.baseURL, g.session)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return SendOutcome{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.token)

	resp, err := g.client.Do(req)
	if err != nil {
		return SendOutcome{}, err
	}
	defer resp.Body.Close()

	var parsed sendResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil && resp.StatusCode < 300 {
		return SendOutcome{}, fmt.Errorf("decode gateway response: %w", err)
	}

	if resp.StatusCode >= 300 {
		msg := parsed.Message
		if msg == "" {
			msg = fmt.Sprintf("gateway returned status %d", resp.StatusCode)
		}
		g.logger.Warn("gateway rejected send", zap.Int("http_status", resp.StatusCode), zap.String("error", msg))
		return SendOutcome{Success: false, Error: msg}, nil
	}

	return SendOutcome{Success: true, ProviderMessageID: parsed.ID}, nil
}

type statusResponse struct {
	Status string `json:"status"`
}

func (g *Gateway) IsConnected(ctx context.Context) bool {
	url := fmt.Sprintf("%s/api/%s/status-session", g.baseURL, g.session)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false
	}
	req.Header.Set("Authorization", "Bearer "+g.token)

	resp, err := g.client.Do(req)
	if err != nil {
		g.logger.Warn("gateway status check failed", zap.Error(err))
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false
	}

	var parsed statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return false
	}
	return parsed.Status == "CONNECTED"
}
