package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/novadesk/triage/internal/domain"
	"github.com/novadesk/triage/internal/pkg/httputil"
	"github.com/novadesk/triage/internal/repository/postgres"
)

// Ticket content longer than this is rejected at intake.
const maxContentChars = 50000

type createTicketRequest struct {
	Subject        string         `json:"subject"`
	Content        string         `json:"content"`
	CustomerEmail  string         `json:"customer_email"`
	CustomerName   string         `json:"customer_name"`
	CustomerTier   string         `json:"customer_tier"`
	Language       string         `json:"language"`
	Source         string         `json:"source"`
	Channel        string         `json:"channel"`
	ExternalID     string         `json:"external_id"`
	ExternalSystem string         `json:"external_system"`
	Tags           []string       `json:"tags"`
	CustomFields   map[string]any `json:"custom_fields"`

	SkipRouting     bool `json:"skip_routing"`
	SkipSuggestions bool `json:"skip_suggestions"`
}

// CreateTicket accepts a new ticket. The customer is upserted by email,
// the ticket stored, and a pipeline run either executed inline (sync
// mode) or queued.
func (h *Handlers) CreateTicket(w http.ResponseWriter, r *http.Request) {
	var req createTicketRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Subject) == "" && strings.TrimSpace(req.Content) == "" {
		httputil.BadRequest(w, "subject or content is required")
		return
	}
	if len(req.Content) > maxContentChars {
		httputil.BadRequest(w, "content exceeds 50000 characters")
		return
	}
	if req.CustomerTier != "" && !domain.ValidTier(domain.Tier(req.CustomerTier)) {
		httputil.BadRequest(w, "unknown customer_tier: "+req.CustomerTier)
		return
	}

	ctx := r.Context()
	t := &domain.Ticket{
		Subject:        req.Subject,
		Content:        req.Content,
		CustomerEmail:  req.CustomerEmail,
		CustomerName:   req.CustomerName,
		CustomerTier:   domain.Tier(req.CustomerTier),
		Language:       req.Language,
		Source:         defaultSource(req.Source),
		Channel:        req.Channel,
		ExternalID:     req.ExternalID,
		ExternalSystem: req.ExternalSystem,
		Tags:           req.Tags,
		CustomFields:   req.CustomFields,
		Status:         domain.TicketNew,
		Priority:       3,
	}

	if req.CustomerEmail != "" {
		customer, err := h.customers.Upsert(ctx, &domain.Customer{
			Email:    req.CustomerEmail,
			Name:     req.CustomerName,
			Tier:     t.CustomerTier,
			Language: req.Language,
		})
		if err != nil {
			httputil.InternalError(w, err)
			return
		}
		t.CustomerID = &customer.ID
		t.CustomerTier = customer.Tier
		if t.CustomerName == "" {
			t.CustomerName = customer.Name
		}
		if err := h.customers.RecordTicket(ctx, customer.ID); err != nil {
			httputil.InternalError(w, err)
			return
		}
	}
	if t.CustomerTier == "" {
		t.CustomerTier = domain.TierStandard
	}

	if err := h.tickets.Create(ctx, t); err != nil {
		httputil.InternalError(w, err)
		return
	}

	opts := domain.ProcessOptions{
		SkipRouting:     req.SkipRouting,
		SkipSuggestions: req.SkipSuggestions,
	}

	if h.pipelineCfg.SyncProcessing && h.processor != nil {
		processed, err := h.processor.Process(ctx, t.ID, opts)
		if err != nil {
			httputil.InternalError(w, err)
			return
		}
		httputil.Created(w, processed)
		return
	}

	job, err := h.jobs.Enqueue(ctx, t.ID, opts)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.Accepted(w, map[string]any{"ticket": t, "job_id": job.ID})
}

// GetTicket returns one ticket.
func (h *Handlers) GetTicket(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	t, err := h.tickets.Get(r.Context(), id)
	if errors.Is(err, postgres.ErrNotFound) {
		httputil.NotFound(w, "ticket not found")
		return
	}
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, t)
}

// ListTickets returns tickets matching the query filters.
func (h *Handlers) ListTickets(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := postgres.TicketFilter{
		Status:        domain.TicketStatus(q.Get("status")),
		Category:      domain.Category(q.Get("category")),
		Priority:      httputil.QueryInt(r, "priority", 0),
		CustomerEmail: q.Get("customer_email"),
		Limit:         httputil.QueryInt(r, "limit", 50),
		Offset:        httputil.QueryInt(r, "offset", 0),
	}
	if v := q.Get("agent_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			httputil.BadRequest(w, "invalid agent_id")
			return
		}
		filter.AssignedAgent = &id
	}
	if v := q.Get("escalated"); v != "" {
		escalated := v == "true"
		filter.Escalated = &escalated
	}

	tickets, total, err := h.tickets.List(r.Context(), filter)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, map[string]any{
		"tickets": tickets,
		"total":   total,
		"limit":   filter.Limit,
		"offset":  filter.Offset,
	})
}

type processTicketRequest struct {
	SkipRouting     bool `json:"skip_routing"`
	SkipSuggestions bool `json:"skip_suggestions"`
	ForceReprocess  bool `json:"force_reprocess"`
}

// ProcessTicket runs or re-runs the pipeline for a ticket inline.
func (h *Handlers) ProcessTicket(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	var req processTicketRequest
	if r.ContentLength > 0 && !httputil.Decode(w, r, &req) {
		return
	}

	t, err := h.processor.Process(r.Context(), id, domain.ProcessOptions{
		SkipRouting:     req.SkipRouting,
		SkipSuggestions: req.SkipSuggestions,
		ForceReprocess:  req.ForceReprocess,
	})
	if errors.Is(err, postgres.ErrNotFound) {
		httputil.NotFound(w, "ticket not found")
		return
	}
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, t)
}

type resolveTicketRequest struct {
	Response string  `json:"response"`
	Rating   float64 `json:"rating"`
}

// ResolveTicket closes out a ticket with the agent's response and an
// optional satisfaction rating. Well-rated resolutions feed the
// knowledge base.
func (h *Handlers) ResolveTicket(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	var req resolveTicketRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	if req.Rating < 0 || req.Rating > 5 {
		httputil.BadRequest(w, "rating must be between 0 and 5")
		return
	}

	ctx := r.Context()
	t, err := h.tickets.Get(ctx, id)
	if errors.Is(err, postgres.ErrNotFound) {
		httputil.NotFound(w, "ticket not found")
		return
	}
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	if t.Status == domain.TicketResolved || t.Status == domain.TicketClosed {
		httputil.Conflict(w, "ticket already resolved")
		return
	}

	now := time.Now().UTC()
	t.Status = domain.TicketResolved
	t.ResolvedAt = &now
	t.Resolution = req.Response
	t.SatisfactionRating = req.Rating

	if err := h.tickets.Update(ctx, t); err != nil {
		httputil.InternalError(w, err)
		return
	}

	if t.AssignedAgentID != nil {
		if err := h.agents.ReleaseTicket(ctx, *t.AssignedAgentID); err != nil {
			httputil.InternalError(w, err)
			return
		}
	}
	if t.CustomerID != nil {
		if err := h.customers.RecordResolution(ctx, *t.CustomerID, req.Rating); err != nil {
			httputil.InternalError(w, err)
			return
		}
	}

	indexed := false
	if h.kb != nil && strings.TrimSpace(req.Response) != "" {
		indexed, _ = h.kb.IndexResolvedTicket(ctx, t, req.Response, req.Rating)
	}

	httputil.OK(w, map[string]any{"ticket": t, "indexed": indexed})
}

type updateTicketRequest struct {
	Subject      *string        `json:"subject"`
	Content      *string        `json:"content"`
	Status       *string        `json:"status"`
	Category     *string        `json:"category"`
	Priority     *int           `json:"priority"`
	AssignedTeam *string        `json:"assigned_team"`
	Tags         *[]string      `json:"tags"`
	CustomFields map[string]any `json:"custom_fields"`
}

// UpdateTicket applies a partial edit; only fields present in the body
// change.
func (h *Handlers) UpdateTicket(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	var req updateTicketRequest
	if !httputil.Decode(w, r, &req) {
		return
	}

	t, err := h.tickets.Get(r.Context(), id)
	if errors.Is(err, postgres.ErrNotFound) {
		httputil.NotFound(w, "ticket not found")
		return
	}
	if err != nil {
		httputil.InternalError(w, err)
		return
	}

	if req.Status != nil {
		status := domain.TicketStatus(*req.Status)
		if !domain.ValidTicketStatus(status) {
			httputil.BadRequest(w, "unknown status: "+*req.Status)
			return
		}
		t.Status = status
	}
	if req.Category != nil {
		category := domain.Category(*req.Category)
		if !domain.ValidCategory(category) {
			httputil.BadRequest(w, "unknown category: "+*req.Category)
			return
		}
		t.Category = category
	}
	if req.Priority != nil {
		if *req.Priority < domain.PriorityMin || *req.Priority > domain.PriorityMax {
			httputil.BadRequest(w, "priority must be between 1 and 5")
			return
		}
		t.Priority = *req.Priority
		t.PriorityLevel = domain.PriorityLevel(t.Priority)
	}
	if req.Content != nil {
		if len(*req.Content) > maxContentChars {
			httputil.BadRequest(w, "content exceeds 50000 characters")
			return
		}
		t.Content = *req.Content
	}
	if req.Subject != nil {
		t.Subject = *req.Subject
	}
	if req.AssignedTeam != nil {
		t.AssignedTeam = *req.AssignedTeam
	}
	if req.Tags != nil {
		t.Tags = *req.Tags
	}
	if req.CustomFields != nil {
		t.CustomFields = req.CustomFields
	}

	if err := h.tickets.Update(r.Context(), t); err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, t)
}

type reassignTicketRequest struct {
	AgentID         string   `json:"agent_id"`
	ExcludeAgentIDs []string `json:"exclude_agent_ids"`
	Reason          string   `json:"reason"`
}

// ReassignTicket moves a ticket to a different agent. With an explicit
// agent_id the move is manual; otherwise the router picks the best
// candidate, never the current agent or anyone excluded. Agent loads are
// adjusted atomically by the assignment transaction.
func (h *Handlers) ReassignTicket(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	var req reassignTicketRequest
	if r.ContentLength > 0 && !httputil.Decode(w, r, &req) {
		return
	}

	ctx := r.Context()
	t, err := h.tickets.Get(ctx, id)
	if errors.Is(err, postgres.ErrNotFound) {
		httputil.NotFound(w, "ticket not found")
		return
	}
	if err != nil {
		httputil.InternalError(w, err)
		return
	}

	var target uuid.UUID
	reason := "manual_reassignment"

	if req.AgentID != "" {
		target, err = uuid.Parse(req.AgentID)
		if err != nil {
			httputil.BadRequest(w, "invalid agent_id")
			return
		}
		if _, err := h.agents.Get(ctx, target); errors.Is(err, postgres.ErrNotFound) {
			httputil.NotFound(w, "agent not found")
			return
		} else if err != nil {
			httputil.InternalError(w, err)
			return
		}
	} else {
		agents, err := h.agents.List(ctx, true)
		if err != nil {
			httputil.InternalError(w, err)
			return
		}
		var exclude []uuid.UUID
		for _, raw := range req.ExcludeAgentIDs {
			agentID, err := uuid.Parse(raw)
			if err != nil {
				httputil.BadRequest(w, "invalid exclude_agent_ids entry: "+raw)
				return
			}
			exclude = append(exclude, agentID)
		}

		decision := h.router.Reassign(t, agents, exclude, time.Now().UTC())
		if decision.AgentID == nil {
			httputil.Conflict(w, "no available agents for reassignment")
			return
		}
		target = *decision.AgentID
		reason = decision.Reason
	}

	err = h.agents.AssignTicket(ctx, t.ID, target, h.assignRetries)
	if errors.Is(err, postgres.ErrAgentAtCapacity) {
		httputil.Conflict(w, "agent is at capacity")
		return
	}
	if errors.Is(err, postgres.ErrNotFound) {
		httputil.NotFound(w, "agent not found")
		return
	}
	if err != nil {
		httputil.InternalError(w, err)
		return
	}

	// Reload for the assignment columns the transaction wrote.
	t, err = h.tickets.Get(ctx, id)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	t.AssignmentReason = reason
	if err := h.tickets.Update(ctx, t); err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, t)
}

type escalateTicketRequest struct {
	Reason string `json:"reason"`
}

// EscalateTicket raises a ticket to senior support and bumps its
// priority one step, capped at the maximum.
func (h *Handlers) EscalateTicket(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	var req escalateTicketRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Reason) == "" {
		httputil.BadRequest(w, "reason is required")
		return
	}

	ctx := r.Context()
	t, err := h.tickets.Get(ctx, id)
	if errors.Is(err, postgres.ErrNotFound) {
		httputil.NotFound(w, "ticket not found")
		return
	}
	if err != nil {
		httputil.InternalError(w, err)
		return
	}

	t.Escalated = true
	t.EscalationReason = req.Reason
	t.Status = domain.TicketEscalated
	t.Priority = domain.ClampPriority(t.Priority + 1)
	t.PriorityLevel = domain.PriorityLevel(t.Priority)

	if err := h.tickets.Update(ctx, t); err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, t)
}

// DeleteTicket removes a ticket permanently.
func (h *Handlers) DeleteTicket(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	err := h.tickets.Delete(r.Context(), id)
	if errors.Is(err, postgres.ErrNotFound) {
		httputil.NotFound(w, "ticket not found")
		return
	}
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.NoContent(w)
}

// TicketSuggestions returns response suggestions for a ticket on demand.
func (h *Handlers) TicketSuggestions(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	t, err := h.tickets.Get(r.Context(), id)
	if errors.Is(err, postgres.ErrNotFound) {
		httputil.NotFound(w, "ticket not found")
		return
	}
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, map[string]any{
		"ticket_id":   t.ID,
		"suggestions": h.kb.SuggestResponses(r.Context(), t),
	})
}

func parseID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httputil.BadRequest(w, "invalid id")
		return uuid.Nil, false
	}
	return id, true
}

func defaultSource(s string) string {
	if s == "" {
		return "api"
	}
	return s
}
