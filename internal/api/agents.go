package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/novadesk/triage/internal/domain"
	"github.com/novadesk/triage/internal/pkg/httputil"
	"github.com/novadesk/triage/internal/repository/postgres"
	"github.com/novadesk/triage/internal/router"
)

// ListAgents returns agents; ?online=true narrows to available ones.
func (h *Handlers) ListAgents(w http.ResponseWriter, r *http.Request) {
	onlineOnly := r.URL.Query().Get("online") == "true"
	agents, err := h.agents.List(r.Context(), onlineOnly)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, map[string]any{"agents": agents, "total": len(agents)})
}

type createAgentRequest struct {
	Email             string             `json:"email"`
	Name              string             `json:"name"`
	Role              string             `json:"role"`
	Team              string             `json:"team"`
	Skills            []string           `json:"skills"`
	Languages         []string           `json:"languages"`
	ExperienceLevel   int                `json:"experience_level"`
	Specializations   map[string]float64 `json:"specializations"`
	MaxLoad           int                `json:"max_load"`
	CanHandleCritical bool               `json:"can_handle_critical"`
	CanHandleVIP      bool               `json:"can_handle_vip"`
}

// CreateAgent registers a new agent.
func (h *Handlers) CreateAgent(w http.ResponseWriter, r *http.Request) {
	var req createAgentRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Email) == "" || strings.TrimSpace(req.Name) == "" {
		httputil.BadRequest(w, "email and name are required")
		return
	}

	for _, skill := range req.Skills {
		if !domain.ValidCategory(domain.Category(skill)) {
			httputil.BadRequest(w, "unknown skill category: "+skill)
			return
		}
	}

	agent := &domain.Agent{
		Email:             req.Email,
		Name:              req.Name,
		Role:              defaultRole(req.Role),
		Team:              req.Team,
		Skills:            req.Skills,
		Languages:         req.Languages,
		ExperienceLevel:   req.ExperienceLevel,
		Specializations:   req.Specializations,
		MaxLoad:           defaultMaxLoad(req.MaxLoad),
		CanHandleCritical: req.CanHandleCritical,
		CanHandleVIP:      req.CanHandleVIP,
		IsActive:          true,
	}
	if err := h.agents.Create(r.Context(), agent); err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.Created(w, agent)
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

// UpdateAgentStatus changes an agent's availability.
func (h *Handlers) UpdateAgentStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	var req updateStatusRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	status := domain.AgentStatus(req.Status)
	if !domain.ValidAgentStatus(status) {
		httputil.BadRequest(w, "unknown status: "+req.Status)
		return
	}

	err := h.agents.UpdateStatus(r.Context(), id, status)
	if errors.Is(err, postgres.ErrNotFound) {
		httputil.NotFound(w, "agent not found")
		return
	}
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, map[string]any{"id": id, "status": status})
}

// AvailableAgents returns the agents able to take a ticket right now.
func (h *Handlers) AvailableAgents(w http.ResponseWriter, r *http.Request) {
	agents, err := h.agents.List(r.Context(), true)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	available := make([]domain.Agent, 0, len(agents))
	for _, a := range agents {
		if a.IsAvailable() {
			available = append(available, a)
		}
	}
	httputil.OK(w, map[string]any{"agents": available, "total": len(available)})
}

// DeleteAgent deactivates an agent. The record is kept for reporting.
func (h *Handlers) DeleteAgent(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	err := h.agents.Deactivate(r.Context(), id)
	if errors.Is(err, postgres.ErrNotFound) {
		httputil.NotFound(w, "agent not found")
		return
	}
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.NoContent(w)
}

// AgentRecommendation scores one agent against a ticket, so supervisors
// can sanity-check a manual assignment before making it.
func (h *Handlers) AgentRecommendation(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	ticketID, err := uuid.Parse(r.URL.Query().Get("ticket_id"))
	if err != nil {
		httputil.BadRequest(w, "ticket_id is required")
		return
	}

	agent, err := h.agents.Get(r.Context(), id)
	if errors.Is(err, postgres.ErrNotFound) {
		httputil.NotFound(w, "agent not found")
		return
	}
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	ticket, err := h.tickets.Get(r.Context(), ticketID)
	if errors.Is(err, postgres.ErrNotFound) {
		httputil.NotFound(w, "ticket not found")
		return
	}
	if err != nil {
		httputil.InternalError(w, err)
		return
	}

	httputil.OK(w, map[string]any{
		"agent_id":  agent.ID,
		"ticket_id": ticket.ID,
		"score":     router.ScoreAgent(agent, ticket),
		"reason":    router.AssignmentReason(agent, ticket),
		"available": agent.IsAvailable(),
	})
}

func defaultRole(role string) string {
	if role == "" {
		return "agent"
	}
	return role
}

func defaultMaxLoad(n int) int {
	if n <= 0 {
		return 10
	}
	return n
}
