package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	appErrors "github.com/fidelize/fidelize-backend/internal/errors"
	"github.com/fidelize/fidelize-backend/internal/repository"
	"github.com/fidelize/fidelize-backend/internal/service"
)

// CampaignHandler holds the dependencies for campaign-related HTTP handlers.
type CampaignHandler struct {
	Service *service.CampaignService
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps the error taxonomy onto HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case appErrors.IsNotFound(err):
		http.Error(w, err.Error(), http.StatusNotFound)
	case appErrors.IsValidation(err):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case appErrors.IsPrecondition(err):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func campaignID(r *http.Request) (int, error) {
	return strconv.Atoi(chi.URLParam(r, "id"))
}

func (h *CampaignHandler) CreateCampaign(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name            string  `json:"name"`
		MessageTemplate string  `json:"message_template"`
		ScheduledAt     *string `json:"scheduled_at"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	campaign, err := h.Service.CreateCampaign(body.Name, body.MessageTemplate, body.ScheduledAt)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, campaign)
}

func (h *CampaignHandler) UpdateCampaign(w http.ResponseWriter, r *http.Request) {
	id, err := campaignID(r)
	if err != nil {
		http.Error(w, "invalid campaign id", http.StatusBadRequest)
		return
	}

	var body struct {
		Name            string  `json:"name"`
		MessageTemplate string  `json:"message_template"`
		ScheduledAt     *string `json:"scheduled_at"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	campaign, err := h.Service.UpdateCampaign(id, body.Name, body.MessageTemplate, body.ScheduledAt)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, campaign)
}

func (h *CampaignHandler) ListCampaigns(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
	status := r.URL.Query().Get("status")

	campaigns, pagination, err := h.Service.ListCampaigns(page, pageSize, status)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"data":       campaigns,
		"pagination": pagination,
	})
}

func (h *CampaignHandler) GetCampaign(w http.ResponseWriter, r *http.Request) {
	id, err := campaignID(r)
	if err != nil {
		http.Error(w, "invalid campaign id", http.StatusBadRequest)
		return
	}

	details, err := h.Service.GetCampaignDetailsWithStats(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, details)
}

func (h *CampaignHandler) PopulateRecipients(w http.ResponseWriter, r *http.Request) {
	id, err := campaignID(r)
	if err != nil {
		http.Error(w, "invalid campaign id", http.StatusBadRequest)
		return
	}

	var body struct {
		Recipients []struct {
			Phone string `json:"phone"`
			Name  string `json:"name"`
		} `json:"recipients"`
		MinVisits      *int    `json:"min_visits"`
		CheckedInSince *string `json:"checked_in_since"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	var res *service.PopulateResult
	if len(body.Recipients) > 0 {
		recipients := make([]repository.NewRecipient, 0, len(body.Recipients))
		for _, rec := range body.Recipients {
			recipients = append(recipients, repository.NewRecipient{Phone: rec.Phone, Name: rec.Name})
		}
		res, err = h.Service.PopulateQueue(id, recipients)
	} else if body.MinVisits != nil {
		var since *time.Time
		if body.CheckedInSince != nil && *body.CheckedInSince != "" {
			t, perr := time.Parse(time.RFC3339, *body.CheckedInSince)
			if perr != nil {
				http.Error(w, "invalid checked_in_since: "+perr.Error(), http.StatusBadRequest)
				return
			}
			since = &t
		}
		res, err = h.Service.PopulateFromEligibility(id, *body.MinVisits, since)
	} else {
		http.Error(w, "provide recipients or min_visits", http.StatusBadRequest)
		return
	}

	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *CampaignHandler) StartDispatch(w http.ResponseWriter, r *http.Request) {
	id, err := campaignID(r)
	if err != nil {
		http.Error(w, "invalid campaign id", http.StatusBadRequest)
		return
	}

	var body struct {
		Profile string `json:"profile"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if body.Profile == "" {
		body.Profile = "balanced"
	}

	if err := h.Service.StartDispatch(r.Context(), id, body.Profile); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "sending", "profile": body.Profile})
}

func (h *CampaignHandler) PauseDispatch(w http.ResponseWriter, r *http.Request) {
	id, err := campaignID(r)
	if err != nil {
		http.Error(w, "invalid campaign id", http.StatusBadRequest)
		return
	}

	if err := h.Service.PauseDispatch(id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "paused"})
}

func (h *CampaignHandler) ResumeDispatch(w http.ResponseWriter, r *http.Request) {
	id, err := campaignID(r)
	if err != nil {
		http.Error(w, "invalid campaign id", http.StatusBadRequest)
		return
	}

	var body struct {
		Profile string `json:"profile"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if body.Profile == "" {
		body.Profile = "balanced"
	}

	if err := h.Service.ResumeDispatch(r.Context(), id, body.Profile); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "sending", "profile": body.Profile})
}

func (h *CampaignHandler) CancelCampaign(w http.ResponseWriter, r *http.Request) {
	id, err := campaignID(r)
	if err != nil {
		http.Error(w, "invalid campaign id", http.StatusBadRequest)
		return
	}

	if err := h.Service.CancelCampaign(id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

func (h *CampaignHandler) PreviewTemplate(w http.ResponseWriter, r *http.Request) {
	id, err := campaignID(r)
	if err != nil {
		http.Error(w, "invalid campaign id", http.StatusBadRequest)
		return
	}

	var body struct {
		OverrideTemplate *string `json:"override_template"`
		SampleName       string  `json:"sample_name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	variants, err := h.Service.PreviewTemplate(id, body.OverrideTemplate, body.SampleName)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"variants": variants})
}

func (h *CampaignHandler) RequeueTask(w http.ResponseWriter, r *http.Request) {
	taskID, err := strconv.Atoi(chi.URLParam(r, "taskID"))
	if err != nil {
		http.Error(w, "invalid task id", http.StatusBadRequest)
		return
	}

	newID, err := h.Service.RequeueFailedTask(taskID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"new_task_id": newID})
}
