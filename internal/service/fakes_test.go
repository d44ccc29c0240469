package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/fidelize/fidelize-backend/internal/model"
	"github.com/fidelize/fidelize-backend/internal/provider"
	"github.com/fidelize/fidelize-backend/internal/repository"
)

// memStore is an in-memory stand-in for the Postgres repositories. Its
// MarkTerminal mirrors the conditional-update semantics of the real one.
type memStore struct {
	mu         sync.Mutex
	campaigns  map[int]*model.Campaign
	tasks      map[int]*model.RecipientTask
	customers  map[int]*model.Customer
	optouts    map[string]string
	nextCampID int
	nextTaskID int
}

func newMemStore() *memStore {
	return &memStore{
		campaigns: map[int]*model.Campaign{},
		tasks:     map[int]*model.RecipientTask{},
		customers: map[int]*model.Customer{},
		optouts:   map[string]string{},
	}
}

// GetByID exists on three of the repository interfaces with different row
// types, so memStore exposes the task and customer variants through thin
// views that shadow the campaign method.
type taskRepoView struct{ *memStore }

func (v taskRepoView) GetByID(taskID int) (*model.RecipientTask, error) {
	return v.memStore.GetTaskByID(taskID)
}

type customerRepoView struct{ *memStore }

func (v customerRepoView) GetByID(id int) (*model.Customer, error) {
	return v.memStore.GetCustomerByID(id)
}

var (
	_ repository.CampaignRepositoryInterface = (*memStore)(nil)
	_ repository.TaskRepositoryInterface     = taskRepoView{}
	_ repository.OptOutRepositoryInterface   = (*memStore)(nil)
	_ repository.CustomerRepositoryInterface = customerRepoView{}
)

func (m *memStore) addCampaign(status, template string) *model.Campaign {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextCampID++
	c := &model.Campaign{
		ID:              m.nextCampID,
		Name:            fmt.Sprintf("campaign-%d", m.nextCampID),
		MessageTemplate: template,
		Status:          status,
		CreatedAt:       time.Now(),
	}
	m.campaigns[c.ID] = c
	return c
}

func (m *memStore) addTask(campaignID int, phone, name string) *model.RecipientTask {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.addTaskLocked(campaignID, phone, name)
}

func (m *memStore) addTaskLocked(campaignID int, phone, name string) *model.RecipientTask {
	m.nextTaskID++
	t := &model.RecipientTask{
		ID:         m.nextTaskID,
		CampaignID: campaignID,
		Phone:      phone,
		Name:       name,
		Status:     model.TaskPending,
		CreatedAt:  time.Now(),
	}
	m.tasks[t.ID] = t
	return t
}

func (m *memStore) taskStatus(id int) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tasks[id].Status
}

func (m *memStore) campaignStatus(id int) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.campaigns[id].Status
}

func (m *memStore) setCampaignStatus(id int, status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.campaigns[id].Status = status
}

// ---- CampaignRepositoryInterface ----

func (m *memStore) Create(c *model.Campaign) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextCampID++
	c.ID = m.nextCampID
	if c.Status == "" {
		c.Status = model.CampaignDraft
	}
	c.CreatedAt = time.Now()
	cp := *c
	m.campaigns[c.ID] = &cp
	return nil
}

func (m *memStore) Update(c *model.Campaign) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.campaigns[c.ID]
	if !ok {
		return fmt.Errorf("campaign %d not found", c.ID)
	}
	stored.Name = c.Name
	stored.MessageTemplate = c.MessageTemplate
	stored.ScheduledAt = c.ScheduledAt
	return nil
}

func (m *memStore) GetByID(id int) (*model.Campaign, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.campaigns[id]
	if !ok {
		return nil, fmt.Errorf("campaign %d not found", id)
	}
	cp := *c
	return &cp, nil
}

func (m *memStore) ListCampaigns(offset, limit int, status string) ([]*model.Campaign, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*model.Campaign{}
	for _, c := range m.campaigns {
		if status == "" || c.Status == status {
			cp := *c
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	total := len(out)
	if offset > len(out) {
		offset = len(out)
	}
	out = out[offset:]
	if limit < len(out) {
		out = out[:limit]
	}
	return out, total, nil
}

func (m *memStore) UpdateStatusIf(campaignID int, from, to string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.campaigns[campaignID]
	if !ok || c.Status != from {
		return false, nil
	}
	c.Status = to
	return true, nil
}

func (m *memStore) SetPacingProfile(campaignID int, profile string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.campaigns[campaignID]; ok {
		c.PacingProfile = profile
	}
	return nil
}

// ---- TaskRepositoryInterface ----

func (m *memStore) BulkInsert(campaignID int, recipients []repository.NewRecipient) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inserted := 0
	for _, rec := range recipients {
		dup := false
		for _, t := range m.tasks {
			if t.CampaignID == campaignID && t.Phone == rec.Phone && t.Status == model.TaskPending {
				dup = true
				break
			}
		}
		if dup {
			continue
		}
		m.addTaskLocked(campaignID, rec.Phone, rec.Name)
		inserted++
	}
	return inserted, nil
}

func (m *memStore) ClaimPending(campaignID, limit int) ([]*model.RecipientTask, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*model.RecipientTask{}
	for _, t := range m.tasks {
		if t.CampaignID == campaignID && t.Status == model.TaskPending {
			cp := *t
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (m *memStore) MarkTerminal(taskID int, status string, outcome repository.TerminalOutcome) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[taskID]
	if !ok || t.Status != model.TaskPending {
		return false, nil
	}
	t.Status = status
	if outcome.LastError != "" {
		e := outcome.LastError
		t.LastError = &e
	}
	if outcome.ProviderMessageID != "" {
		id := outcome.ProviderMessageID
		t.ProviderMessageID = &id
	}
	if outcome.RenderedContent != "" {
		rc := outcome.RenderedContent
		t.RenderedContent = &rc
	}
	if outcome.LatencyMs != 0 {
		l := outcome.LatencyMs
		t.LatencyMs = &l
	}
	t.SentAt = outcome.SentAt
	t.UpdatedAt = time.Now()
	return true, nil
}

func (m *memStore) CountsByStatus(campaignID int) (model.StatusCounts, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var counts model.StatusCounts
	for _, t := range m.tasks {
		if t.CampaignID != campaignID {
			continue
		}
		switch t.Status {
		case model.TaskPending:
			counts.Pending++
		case model.TaskSent:
			counts.Sent++
		case model.TaskFailed:
			counts.Failed++
		case model.TaskSkipped:
			counts.Skipped++
		}
	}
	return counts, nil
}

func (m *memStore) GetTaskByID(taskID int) (*model.RecipientTask, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[taskID]
	if !ok {
		return nil, nil
	}
	cp := *t
	return &cp, nil
}

func (m *memStore) RequeueFailed(taskID int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[taskID]
	if !ok || t.Status != model.TaskFailed {
		return 0, nil
	}
	nt := m.addTaskLocked(t.CampaignID, t.Phone, t.Name)
	return nt.ID, nil
}

// ---- OptOutRepositoryInterface ----

func (m *memStore) IsOptedOut(phone string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.optouts[phone]
	return ok, nil
}

func (m *memStore) Add(phone, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.optouts[phone] = reason
	return nil
}

// ---- CustomerRepositoryInterface ----

func (m *memStore) ListEligible(minVisits int, checkedInSince *time.Time) ([]model.Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.Customer{}
	for _, c := range m.customers {
		if c.Visits < minVisits {
			continue
		}
		if checkedInSince != nil && (c.LastCheckinAt == nil || c.LastCheckinAt.Before(*checkedInSince)) {
			continue
		}
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) GetCustomerByID(id int) (*model.Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.customers[id]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

// ---- fake sender ----

type sentCall struct {
	Phone string
	Text  string
}

type fakeSender struct {
	mu         sync.Mutex
	connected  bool
	rejections map[string]string // phone -> provider error text
	transport  map[string]error  // phone -> transport error
	calls      []sentCall
	seq        int
}

func newFakeSender() *fakeSender {
	return &fakeSender{
		connected:  true,
		rejections: map[string]string{},
		transport:  map[string]error{},
	}
}

var _ provider.Sender = (*fakeSender)(nil)

func (f *fakeSender) Send(ctx context.Context, phone, text string) (provider.SendOutcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, sentCall{Phone: phone, Text: text})
	if err, ok := f.transport[phone]; ok {
		return provider.SendOutcome{}, err
	}
	if msg, ok := f.rejections[phone]; ok {
		return provider.SendOutcome{Success: false, Error: msg}, nil
	}
	f.seq++
	return provider.SendOutcome{Success: true, ProviderMessageID: fmt.Sprintf("MSG-%d", f.seq)}, nil
}

func (f *fakeSender) IsConnected(ctx context.Context) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeSender) sentPhones() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	for i, c := range f.calls {
		out[i] = c.Phone
	}
	return out
}

// ---- fake clock ----

type fakeClock struct {
	mu      sync.Mutex
	now     time.Time
	sleeps  []time.Duration
	onSleep func(d time.Duration)
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

var _ Clock = (*fakeClock)(nil)

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(5 * time.Millisecond)
	return c.now
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	c.mu.Lock()
	c.sleeps = append(c.sleeps, d)
	hook := c.onSleep
	c.mu.Unlock()
	if hook != nil {
		hook(d)
	}
	return ctx.Err()
}

func (c *fakeClock) sleepCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sleeps)
}
