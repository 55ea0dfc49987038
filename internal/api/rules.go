package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/novadesk/triage/internal/domain"
	"github.com/novadesk/triage/internal/pkg/httputil"
	"github.com/novadesk/triage/internal/repository/postgres"
)

// ListRules returns all routing rules, highest priority first.
func (h *Handlers) ListRules(w http.ResponseWriter, r *http.Request) {
	rules, err := h.rules.List(r.Context())
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, map[string]any{"rules": rules, "total": len(rules)})
}

type createRuleRequest struct {
	Name        string                `json:"name"`
	Description string                `json:"description"`
	RuleType    string                `json:"rule_type"`
	Conditions  domain.RuleConditions `json:"conditions"`
	Action      string                `json:"action"`
	Params      domain.RuleParams     `json:"action_params"`
	Priority    int                   `json:"priority"`
	IsExclusive bool                  `json:"is_exclusive"`

	AppliesToSources    []string `json:"applies_to_sources"`
	AppliesToCategories []string `json:"applies_to_categories"`
	ActiveHoursStart    string   `json:"active_hours_start"`
	ActiveHoursEnd      string   `json:"active_hours_end"`
	ActiveDays          []int    `json:"active_days"`
}

var knownRuleTypes = map[domain.RuleType]bool{
	domain.RuleCategory: true, domain.RuleKeyword: true, domain.RuleSentiment: true,
	domain.RulePriority: true, domain.RuleCustomer: true, domain.RuleTime: true,
	domain.RuleLanguage: true, domain.RuleCustom: true,
}

var knownRuleActions = map[domain.RuleAction]bool{
	domain.ActionAssignAgent: true, domain.ActionAssignTeam: true,
	domain.ActionSetPriority: true, domain.ActionAddTag: true,
	domain.ActionEscalate: true, domain.ActionAutoReply: true,
	domain.ActionNotify: true, domain.ActionSkipQueue: true,
}

// CreateRule adds a routing rule. New rules start active.
func (h *Handlers) CreateRule(w http.ResponseWriter, r *http.Request) {
	var req createRuleRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		httputil.BadRequest(w, "name is required")
		return
	}
	if !knownRuleTypes[domain.RuleType(req.RuleType)] {
		httputil.BadRequest(w, "unknown rule_type: "+req.RuleType)
		return
	}
	if !knownRuleActions[domain.RuleAction(req.Action)] {
		httputil.BadRequest(w, "unknown action: "+req.Action)
		return
	}

	rule := &domain.RoutingRule{
		Name:                req.Name,
		Description:         req.Description,
		RuleType:            domain.RuleType(req.RuleType),
		Conditions:          req.Conditions,
		Action:              domain.RuleAction(req.Action),
		Params:              req.Params,
		Priority:            req.Priority,
		IsActive:            true,
		IsExclusive:         req.IsExclusive,
		AppliesToSources:    req.AppliesToSources,
		AppliesToCategories: req.AppliesToCategories,
		ActiveHoursStart:    req.ActiveHoursStart,
		ActiveHoursEnd:      req.ActiveHoursEnd,
		ActiveDays:          req.ActiveDays,
	}
	if err := h.rules.Create(r.Context(), rule); err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.Created(w, rule)
}

type setRuleActiveRequest struct {
	Active bool `json:"active"`
}

// SetRuleActive enables or disables a rule.
func (h *Handlers) SetRuleActive(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	var req setRuleActiveRequest
	if !httputil.Decode(w, r, &req) {
		return
	}

	err := h.rules.SetActive(r.Context(), id, req.Active)
	if errors.Is(err, postgres.ErrNotFound) {
		httputil.NotFound(w, "rule not found")
		return
	}
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, map[string]any{"id": id, "active": req.Active})
}

// ListCategories returns the category catalog.
func (h *Handlers) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.categories.List(r.Context())
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, map[string]any{"categories": categories, "total": len(categories)})
}
