package handler

import (
	"encoding/json"
	"net/http"

	"github.com/fidelize/fidelize-backend/internal/provider"
	"github.com/fidelize/fidelize-backend/internal/service"
)

type WinnerHandler struct {
	Service *service.WinnerService
}

func (h *WinnerHandler) NotifyWinners(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Template string           `json:"template"`
		Winners  []service.Winner `json:"winners"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	res, err := h.Service.Notify(r.Context(), body.Template, body.Winners)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// ProviderHandler exposes the gateway's connected signal for the console.
type ProviderHandler struct {
	Sender provider.Sender
}

func (h *ProviderHandler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{
		"connected": h.Sender.IsConnected(r.Context()),
	})
}
