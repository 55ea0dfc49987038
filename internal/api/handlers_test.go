package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/novadesk/triage/internal/config"
	"github.com/novadesk/triage/internal/domain"
	"github.com/novadesk/triage/internal/repository/postgres"
)

type memTickets struct {
	byID map[uuid.UUID]*domain.Ticket
}

func (m *memTickets) Create(ctx context.Context, t *domain.Ticket) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if t.Status == "" {
		t.Status = domain.TicketNew
	}
	m.byID[t.ID] = t
	return nil
}

func (m *memTickets) Get(ctx context.Context, id uuid.UUID) (*domain.Ticket, error) {
	t, ok := m.byID[id]
	if !ok {
		return nil, postgres.ErrNotFound
	}
	return t, nil
}

func (m *memTickets) List(ctx context.Context, f postgres.TicketFilter) ([]domain.Ticket, int, error) {
	var out []domain.Ticket
	for _, t := range m.byID {
		if f.Status != "" && t.Status != f.Status {
			continue
		}
		out = append(out, *t)
	}
	return out, len(out), nil
}

func (m *memTickets) Update(ctx context.Context, t *domain.Ticket) error {
	if _, ok := m.byID[t.ID]; !ok {
		return postgres.ErrNotFound
	}
	m.byID[t.ID] = t
	return nil
}

func (m *memTickets) Delete(ctx context.Context, id uuid.UUID) error {
	if _, ok := m.byID[id]; !ok {
		return postgres.ErrNotFound
	}
	delete(m.byID, id)
	return nil
}

type memJobs struct{ enqueued []uuid.UUID }

func (m *memJobs) Enqueue(ctx context.Context, ticketID uuid.UUID, opts domain.ProcessOptions) (*domain.Job, error) {
	m.enqueued = append(m.enqueued, ticketID)
	return &domain.Job{ID: uuid.New(), TicketID: ticketID, Options: opts, Status: domain.JobPending}, nil
}

func (m *memJobs) PendingCount(ctx context.Context) (int, error) { return len(m.enqueued), nil }

type memAgents struct {
	agents   map[uuid.UUID]*domain.Agent
	released []uuid.UUID
	assigned []uuid.UUID
}

func (m *memAgents) Create(ctx context.Context, a *domain.Agent) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	m.agents[a.ID] = a
	return nil
}

func (m *memAgents) Get(ctx context.Context, id uuid.UUID) (*domain.Agent, error) {
	a, ok := m.agents[id]
	if !ok {
		return nil, postgres.ErrNotFound
	}
	return a, nil
}

func (m *memAgents) List(ctx context.Context, onlineOnly bool) ([]domain.Agent, error) {
	var out []domain.Agent
	for _, a := range m.agents {
		if onlineOnly && a.Status != domain.AgentOnline {
			continue
		}
		out = append(out, *a)
	}
	return out, nil
}

func (m *memAgents) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.AgentStatus) error {
	a, ok := m.agents[id]
	if !ok {
		return postgres.ErrNotFound
	}
	a.Status = status
	return nil
}

func (m *memAgents) AssignTicket(ctx context.Context, ticketID, agentID uuid.UUID, maxRetries int) error {
	a, ok := m.agents[agentID]
	if !ok {
		return postgres.ErrNotFound
	}
	if a.CurrentLoad >= a.MaxLoad {
		return postgres.ErrAgentAtCapacity
	}
	a.CurrentLoad++
	m.assigned = append(m.assigned, agentID)
	return nil
}

func (m *memAgents) ReleaseTicket(ctx context.Context, agentID uuid.UUID) error {
	m.released = append(m.released, agentID)
	return nil
}

func (m *memAgents) Deactivate(ctx context.Context, id uuid.UUID) error {
	a, ok := m.agents[id]
	if !ok || !a.IsActive {
		return postgres.ErrNotFound
	}
	a.IsActive = false
	a.Status = domain.AgentOffline
	return nil
}

type memRules struct{ rules []domain.RoutingRule }

func (m *memRules) List(ctx context.Context) ([]domain.RoutingRule, error) { return m.rules, nil }

func (m *memRules) Create(ctx context.Context, rule *domain.RoutingRule) error {
	if rule.ID == uuid.Nil {
		rule.ID = uuid.New()
	}
	m.rules = append(m.rules, *rule)
	return nil
}

func (m *memRules) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	for i := range m.rules {
		if m.rules[i].ID == id {
			m.rules[i].IsActive = active
			return nil
		}
	}
	return postgres.ErrNotFound
}

type memCategories struct{}

func (memCategories) List(ctx context.Context) ([]domain.CategoryInfo, error) {
	return domain.DefaultCategories, nil
}

type memCustomers struct {
	byEmail map[string]*domain.Customer
}

func (m *memCustomers) Upsert(ctx context.Context, c *domain.Customer) (*domain.Customer, error) {
	if existing, ok := m.byEmail[c.Email]; ok {
		return existing, nil
	}
	c.ID = uuid.New()
	if c.Tier == "" {
		c.Tier = domain.TierStandard
	}
	m.byEmail[c.Email] = c
	return c, nil
}

func (m *memCustomers) RecordTicket(ctx context.Context, id uuid.UUID) error { return nil }

func (m *memCustomers) RecordResolution(ctx context.Context, id uuid.UUID, rating float64) error {
	return nil
}

type memKB struct{ indexed []string }

func (m *memKB) AddFAQ(ctx context.Context, question, answer, category string) (domain.KBEntry, error) {
	return domain.KBEntry{ID: "faq_test", Title: question, Source: domain.KBSourceFAQ}, nil
}

func (m *memKB) FindSimilar(ctx context.Context, query, category string, limit int) []domain.KBMatch {
	return nil
}

func (m *memKB) SuggestResponses(ctx context.Context, t *domain.Ticket) []domain.Suggestion {
	return []domain.Suggestion{{Content: "canned", Source: "faq", Relevance: 0.7}}
}

func (m *memKB) IndexResolvedTicket(ctx context.Context, t *domain.Ticket, response string, rating float64) (bool, error) {
	if rating > 0 && rating < 3 {
		return false, nil
	}
	m.indexed = append(m.indexed, t.ID.String())
	return true, nil
}

type noopProcessor struct{ tickets *memTickets }

func (p *noopProcessor) Process(ctx context.Context, ticketID uuid.UUID, opts domain.ProcessOptions) (*domain.Ticket, error) {
	t, err := p.tickets.Get(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	t.IsProcessed = true
	return t, nil
}

type testEnv struct {
	server    *Server
	tickets   *memTickets
	jobs      *memJobs
	agents    *memAgents
	kb        *memKB
	customers *memCustomers
}

func setupServer(t *testing.T, sync bool) *testEnv {
	t.Helper()
	tickets := &memTickets{byID: map[uuid.UUID]*domain.Ticket{}}
	jobs := &memJobs{}
	agents := &memAgents{agents: map[uuid.UUID]*domain.Agent{}}
	kbFake := &memKB{}
	customers := &memCustomers{byEmail: map[string]*domain.Customer{}}

	cfg := config.PipelineConfig{SyncProcessing: sync}
	handlers := NewHandlers(tickets, jobs, agents, &memRules{}, memCategories{}, customers, kbFake,
		&noopProcessor{tickets: tickets}, cfg, config.RouterConfig{AssignMaxRetries: 3})

	var serverCfg config.ServerConfig
	return &testEnv{
		server:    NewServer(serverCfg, handlers),
		tickets:   tickets,
		jobs:      jobs,
		agents:    agents,
		kb:        kbFake,
		customers: customers,
	}
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestCreateTicketAsync(t *testing.T) {
	env := setupServer(t, false)

	rec := doJSON(t, env.server.Handler(), http.MethodPost, "/api/v1/tickets", map[string]any{
		"subject":        "login broken",
		"content":        "I cannot log in.",
		"customer_email": "user@example.com",
	})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202 (%s)", rec.Code, rec.Body)
	}
	if len(env.jobs.enqueued) != 1 {
		t.Errorf("enqueued = %d, want 1", len(env.jobs.enqueued))
	}
	if len(env.tickets.byID) != 1 {
		t.Errorf("tickets stored = %d, want 1", len(env.tickets.byID))
	}
	for _, ticket := range env.tickets.byID {
		if ticket.CustomerID == nil {
			t.Error("customer not linked")
		}
	}
}

func TestCreateTicketSync(t *testing.T) {
	env := setupServer(t, true)

	rec := doJSON(t, env.server.Handler(), http.MethodPost, "/api/v1/tickets", map[string]any{
		"subject": "hello",
		"content": "a question",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201 (%s)", rec.Code, rec.Body)
	}
	if len(env.jobs.enqueued) != 0 {
		t.Error("sync mode must not enqueue")
	}

	var got domain.Ticket
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !got.IsProcessed {
		t.Error("sync create must return the processed ticket")
	}
}

func TestCreateTicketValidation(t *testing.T) {
	env := setupServer(t, false)

	rec := doJSON(t, env.server.Handler(), http.MethodPost, "/api/v1/tickets", map[string]any{})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestCreateTicketContentTooLong(t *testing.T) {
	env := setupServer(t, false)

	rec := doJSON(t, env.server.Handler(), http.MethodPost, "/api/v1/tickets", map[string]any{
		"subject": "big",
		"content": strings.Repeat("a", 50001),
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 for oversized content", rec.Code)
	}
	if len(env.tickets.byID) != 0 {
		t.Error("oversized ticket must not be stored")
	}
}

func TestCreateTicketUnknownTier(t *testing.T) {
	env := setupServer(t, false)

	rec := doJSON(t, env.server.Handler(), http.MethodPost, "/api/v1/tickets", map[string]any{
		"subject":       "hello",
		"content":       "a question",
		"customer_tier": "platinum",
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 for unknown tier", rec.Code)
	}
}

func TestUpdateTicket(t *testing.T) {
	env := setupServer(t, false)
	ticket := &domain.Ticket{ID: uuid.New(), Subject: "old", Status: domain.TicketNew, Priority: 3}
	env.tickets.byID[ticket.ID] = ticket

	rec := doJSON(t, env.server.Handler(), http.MethodPatch,
		"/api/v1/tickets/"+ticket.ID.String(),
		map[string]any{"status": "in_progress", "priority": 4, "tags": []string{"vip"}})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d (%s)", rec.Code, rec.Body)
	}
	if ticket.Status != domain.TicketInProgress {
		t.Errorf("Status = %s, want in_progress", ticket.Status)
	}
	if ticket.Priority != 4 {
		t.Errorf("Priority = %d, want 4", ticket.Priority)
	}
	if ticket.Subject != "old" {
		t.Error("untouched field changed")
	}
	if len(ticket.Tags) != 1 || ticket.Tags[0] != "vip" {
		t.Errorf("Tags = %v, want [vip]", ticket.Tags)
	}

	rec = doJSON(t, env.server.Handler(), http.MethodPatch,
		"/api/v1/tickets/"+ticket.ID.String(),
		map[string]any{"status": "limbo"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 for unknown status", rec.Code)
	}

	rec = doJSON(t, env.server.Handler(), http.MethodPatch,
		"/api/v1/tickets/"+ticket.ID.String(),
		map[string]any{"priority": 9})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 for out-of-range priority", rec.Code)
	}
}

func TestReassignTicketAutoPick(t *testing.T) {
	env := setupServer(t, false)
	current := &domain.Agent{
		ID: uuid.New(), Name: "current", Status: domain.AgentOnline,
		IsActive: true, MaxLoad: 10, CurrentLoad: 1,
	}
	next := &domain.Agent{
		ID: uuid.New(), Name: "next", Status: domain.AgentOnline,
		IsActive: true, MaxLoad: 10,
	}
	env.agents.agents[current.ID] = current
	env.agents.agents[next.ID] = next

	ticket := &domain.Ticket{ID: uuid.New(), Priority: 3, Status: domain.TicketOpen, AssignedAgentID: &current.ID}
	env.tickets.byID[ticket.ID] = ticket

	rec := doJSON(t, env.server.Handler(), http.MethodPost,
		"/api/v1/tickets/"+ticket.ID.String()+"/reassign", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d (%s)", rec.Code, rec.Body)
	}
	if len(env.agents.assigned) != 1 || env.agents.assigned[0] != next.ID {
		t.Errorf("assigned = %v, want the other agent", env.agents.assigned)
	}
}

func TestReassignTicketManualTarget(t *testing.T) {
	env := setupServer(t, false)
	target := &domain.Agent{
		ID: uuid.New(), Name: "target", Status: domain.AgentOnline,
		IsActive: true, MaxLoad: 10,
	}
	env.agents.agents[target.ID] = target
	ticket := &domain.Ticket{ID: uuid.New(), Priority: 3, Status: domain.TicketOpen}
	env.tickets.byID[ticket.ID] = ticket

	rec := doJSON(t, env.server.Handler(), http.MethodPost,
		"/api/v1/tickets/"+ticket.ID.String()+"/reassign",
		map[string]any{"agent_id": target.ID.String()})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d (%s)", rec.Code, rec.Body)
	}
	if ticket.AssignmentReason != "manual_reassignment" {
		t.Errorf("AssignmentReason = %s, want manual_reassignment", ticket.AssignmentReason)
	}

	rec = doJSON(t, env.server.Handler(), http.MethodPost,
		"/api/v1/tickets/"+ticket.ID.String()+"/reassign",
		map[string]any{"agent_id": uuid.NewString()})
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404 for unknown agent", rec.Code)
	}
}

func TestReassignTicketNobodyAvailable(t *testing.T) {
	env := setupServer(t, false)
	current := &domain.Agent{
		ID: uuid.New(), Name: "current", Status: domain.AgentOnline,
		IsActive: true, MaxLoad: 10, CurrentLoad: 1,
	}
	env.agents.agents[current.ID] = current
	ticket := &domain.Ticket{ID: uuid.New(), Priority: 3, AssignedAgentID: &current.ID}
	env.tickets.byID[ticket.ID] = ticket

	rec := doJSON(t, env.server.Handler(), http.MethodPost,
		"/api/v1/tickets/"+ticket.ID.String()+"/reassign", nil)
	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409 with nobody else online", rec.Code)
	}
}

func TestEscalateTicket(t *testing.T) {
	env := setupServer(t, false)
	ticket := &domain.Ticket{ID: uuid.New(), Priority: 3, Status: domain.TicketOpen}
	env.tickets.byID[ticket.ID] = ticket

	rec := doJSON(t, env.server.Handler(), http.MethodPost,
		"/api/v1/tickets/"+ticket.ID.String()+"/escalate",
		map[string]any{"reason": "customer threatened churn"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d (%s)", rec.Code, rec.Body)
	}
	if !ticket.Escalated || ticket.Status != domain.TicketEscalated {
		t.Errorf("Escalated/Status = %v/%s, want true/escalated", ticket.Escalated, ticket.Status)
	}
	if ticket.Priority != 4 {
		t.Errorf("Priority = %d, want 4", ticket.Priority)
	}

	// Another escalation cannot push priority past the cap.
	ticket.Priority = 5
	rec = doJSON(t, env.server.Handler(), http.MethodPost,
		"/api/v1/tickets/"+ticket.ID.String()+"/escalate",
		map[string]any{"reason": "still unhappy"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d (%s)", rec.Code, rec.Body)
	}
	if ticket.Priority != 5 {
		t.Errorf("Priority = %d, want capped at 5", ticket.Priority)
	}

	rec = doJSON(t, env.server.Handler(), http.MethodPost,
		"/api/v1/tickets/"+ticket.ID.String()+"/escalate", map[string]any{})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 without a reason", rec.Code)
	}
}

func TestDeleteTicket(t *testing.T) {
	env := setupServer(t, false)
	ticket := &domain.Ticket{ID: uuid.New(), Status: domain.TicketOpen}
	env.tickets.byID[ticket.ID] = ticket

	rec := doJSON(t, env.server.Handler(), http.MethodDelete,
		"/api/v1/tickets/"+ticket.ID.String(), nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}

	rec = doJSON(t, env.server.Handler(), http.MethodDelete,
		"/api/v1/tickets/"+ticket.ID.String(), nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404 on second delete", rec.Code)
	}
}

func TestGetTicketNotFound(t *testing.T) {
	env := setupServer(t, false)

	rec := doJSON(t, env.server.Handler(), http.MethodGet, "/api/v1/tickets/"+uuid.NewString(), nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}

	rec = doJSON(t, env.server.Handler(), http.MethodGet, "/api/v1/tickets/not-a-uuid", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 for malformed id", rec.Code)
	}
}

func TestResolveTicket(t *testing.T) {
	env := setupServer(t, false)
	agentID := uuid.New()
	ticket := &domain.Ticket{
		ID:              uuid.New(),
		Subject:         "fixed",
		Status:          domain.TicketOpen,
		AssignedAgentID: &agentID,
	}
	env.tickets.byID[ticket.ID] = ticket

	rec := doJSON(t, env.server.Handler(), http.MethodPost,
		"/api/v1/tickets/"+ticket.ID.String()+"/resolve",
		map[string]any{"response": "restart the app", "rating": 5})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d (%s)", rec.Code, rec.Body)
	}
	if ticket.Status != domain.TicketResolved {
		t.Errorf("Status = %s, want resolved", ticket.Status)
	}
	if ticket.ResolvedAt == nil {
		t.Error("ResolvedAt not set")
	}
	if len(env.agents.released) != 1 || env.agents.released[0] != agentID {
		t.Errorf("released = %v, want the assigned agent", env.agents.released)
	}
	if len(env.kb.indexed) != 1 {
		t.Error("well-rated resolution not indexed")
	}

	// Second resolve conflicts.
	rec = doJSON(t, env.server.Handler(), http.MethodPost,
		"/api/v1/tickets/"+ticket.ID.String()+"/resolve",
		map[string]any{"response": "again"})
	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", rec.Code)
	}
}

func TestResolveTicketLowRatingNotIndexed(t *testing.T) {
	env := setupServer(t, false)
	ticket := &domain.Ticket{ID: uuid.New(), Status: domain.TicketOpen}
	env.tickets.byID[ticket.ID] = ticket

	rec := doJSON(t, env.server.Handler(), http.MethodPost,
		"/api/v1/tickets/"+ticket.ID.String()+"/resolve",
		map[string]any{"response": "meh", "rating": 1})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d (%s)", rec.Code, rec.Body)
	}
	if len(env.kb.indexed) != 0 {
		t.Error("low-rated resolution must not be indexed")
	}
}

func TestCreateAgentValidation(t *testing.T) {
	env := setupServer(t, false)

	rec := doJSON(t, env.server.Handler(), http.MethodPost, "/api/v1/agents", map[string]any{
		"email":  "a@example.com",
		"name":   "Agent",
		"skills": []string{"not_a_category"},
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 for unknown skill", rec.Code)
	}

	rec = doJSON(t, env.server.Handler(), http.MethodPost, "/api/v1/agents", map[string]any{
		"email":  "a@example.com",
		"name":   "Agent",
		"skills": []string{"technical_issue"},
	})
	if rec.Code != http.StatusCreated {
		t.Errorf("status = %d, want 201 (%s)", rec.Code, rec.Body)
	}
}

func TestUpdateAgentStatus(t *testing.T) {
	env := setupServer(t, false)
	agent := &domain.Agent{ID: uuid.New(), Name: "A", Status: domain.AgentOffline}
	env.agents.agents[agent.ID] = agent

	rec := doJSON(t, env.server.Handler(), http.MethodPatch,
		"/api/v1/agents/"+agent.ID.String()+"/status",
		map[string]any{"status": "online"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d (%s)", rec.Code, rec.Body)
	}
	if agent.Status != domain.AgentOnline {
		t.Errorf("agent status = %s, want online", agent.Status)
	}

	rec = doJSON(t, env.server.Handler(), http.MethodPatch,
		"/api/v1/agents/"+agent.ID.String()+"/status",
		map[string]any{"status": "sleeping"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 for unknown status", rec.Code)
	}
}

func TestAvailableAgents(t *testing.T) {
	env := setupServer(t, false)
	free := &domain.Agent{ID: uuid.New(), Name: "free", Status: domain.AgentOnline, IsActive: true, MaxLoad: 10}
	full := &domain.Agent{ID: uuid.New(), Name: "full", Status: domain.AgentOnline, IsActive: true, MaxLoad: 5, CurrentLoad: 5}
	offline := &domain.Agent{ID: uuid.New(), Name: "offline", Status: domain.AgentOffline, IsActive: true, MaxLoad: 10}
	for _, a := range []*domain.Agent{free, full, offline} {
		env.agents.agents[a.ID] = a
	}

	rec := doJSON(t, env.server.Handler(), http.MethodGet, "/api/v1/agents/available", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d (%s)", rec.Code, rec.Body)
	}
	var body struct {
		Agents []domain.Agent `json:"agents"`
		Total  int            `json:"total"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Total != 1 || len(body.Agents) != 1 || body.Agents[0].ID != free.ID {
		t.Errorf("available = %+v, want only the free agent", body.Agents)
	}
}

func TestDeleteAgent(t *testing.T) {
	env := setupServer(t, false)
	agent := &domain.Agent{ID: uuid.New(), Name: "A", Status: domain.AgentOnline, IsActive: true}
	env.agents.agents[agent.ID] = agent

	rec := doJSON(t, env.server.Handler(), http.MethodDelete,
		"/api/v1/agents/"+agent.ID.String(), nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
	if agent.IsActive {
		t.Error("agent still active after delete")
	}

	rec = doJSON(t, env.server.Handler(), http.MethodDelete,
		"/api/v1/agents/"+agent.ID.String(), nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404 for an already-inactive agent", rec.Code)
	}
}

func TestAgentRecommendation(t *testing.T) {
	env := setupServer(t, false)
	agent := &domain.Agent{
		ID:       uuid.New(),
		Name:     "Specialist",
		Skills:   []string{"billing_question"},
		Status:   domain.AgentOnline,
		IsActive: true,
		MaxLoad:  10,
	}
	env.agents.agents[agent.ID] = agent
	ticket := &domain.Ticket{ID: uuid.New(), Category: domain.CategoryBillingQuestion, Priority: 3}
	env.tickets.byID[ticket.ID] = ticket

	rec := doJSON(t, env.server.Handler(), http.MethodGet,
		"/api/v1/agents/"+agent.ID.String()+"/recommendations?ticket_id="+ticket.ID.String(), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d (%s)", rec.Code, rec.Body)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["reason"] != "skill_match" {
		t.Errorf("reason = %v, want skill_match", body["reason"])
	}
	if score, _ := body["score"].(float64); score <= 50 {
		t.Errorf("score = %v, want above base for a skill match", score)
	}

	rec = doJSON(t, env.server.Handler(), http.MethodGet,
		"/api/v1/agents/"+agent.ID.String()+"/recommendations", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 without ticket_id", rec.Code)
	}
}

func TestCreateRuleValidation(t *testing.T) {
	env := setupServer(t, false)

	rec := doJSON(t, env.server.Handler(), http.MethodPost, "/api/v1/rules", map[string]any{
		"name":      "bad",
		"rule_type": "weather",
		"action":    "assign_team",
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 for unknown rule type", rec.Code)
	}

	rec = doJSON(t, env.server.Handler(), http.MethodPost, "/api/v1/rules", map[string]any{
		"name":      "billing to finance",
		"rule_type": "category",
		"conditions": map[string]any{
			"categories": []string{"billing_question"},
		},
		"action": "assign_team",
		"action_params": map[string]any{
			"team": "finance",
		},
		"priority": 50,
	})
	if rec.Code != http.StatusCreated {
		t.Errorf("status = %d, want 201 (%s)", rec.Code, rec.Body)
	}
}

func TestHealth(t *testing.T) {
	env := setupServer(t, false)

	rec := doJSON(t, env.server.Handler(), http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status = %v, want ok", body["status"])
	}
}
