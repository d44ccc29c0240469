package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestGateway(t *testing.T, handler http.HandlerFunc) *Gateway {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewGateway(GatewayConfig{
		BaseURL:     srv.URL,
		Session:     "loja01",
		Token:       "test-token",
		SendTimeout: 2 * time.Second,
	}, zap.NewNop())
}

func TestGatewaySendSuccess(t *testing.T) {
	g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/loja01/send-message", r.URL.Path)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))

		var body sendRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "5511987654321", body.Phone)
		assert.Equal(t, "Oi Ana!", body.Message)

		json.NewEncoder(w).Encode(sendResponse{Status: "success", ID: "wamid.abc123"})
	})

	out, err := g.Send(context.Background(), "5511987654321", "Oi Ana!")
	require.NoError(t, err)
	assert.True(t, out.Success)
	assert.Equal(t, "wamid.abc123", out.ProviderMessageID)
}

func TestGatewaySendProviderRejection(t *testing.T) {
	g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		json.NewEncoder(w).Encode(sendResponse{Status: "error", Message: "number not on whatsapp"})
	})

	out, err := g.Send(context.Background(), "5511987654321", "Oi!")
	require.NoError(t, err)
	assert.False(t, out.Success)
	assert.Equal(t, "number not on whatsapp", out.Error)
}

func TestGatewaySendTimeout(t *testing.T) {
	g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(3 * time.Second)
	})

	_, err := g.Send(context.Background(), "5511987654321", "Oi!")
	assert.Error(t, err)
}

func TestGatewayIsConnected(t *testing.T) {
	connected := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/loja01/status-session", r.URL.Path)
		json.NewEncoder(w).Encode(statusResponse{Status: "CONNECTED"})
	})
	assert.True(t, connected.IsConnected(context.Background()))

	pairing := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(statusResponse{Status: "QRCODE"})
	})
	assert.False(t, pairing.IsConnected(context.Background()))

	down := NewGateway(GatewayConfig{BaseURL: "http://127.0.0.1:1", Session: "x", SendTimeout: time.Second}, zap.NewNop())
	assert.False(t, down.IsConnected(context.Background()))
}
