// Package router decides which agent or team handles a ticket.
// Configurable rules are applied first, in descending rule priority;
// tickets no exclusive assignment rule claims fall through to
// score-based matching over the available agents.
package router

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/novadesk/triage/internal/domain"
)

// Routing decision reasons.
const (
	ReasonRuleBased  = "rule_based"
	ReasonEscalation = "escalation"
	ReasonNoAgents   = "no_available_agents"
)

// Effects are the side effects accumulated from matched non-assignment
// rules. The caller applies them to the ticket.
type Effects struct {
	PriorityOverride  *int           `json:"priority_override,omitempty"`
	PriorityBoost     int            `json:"priority_boost,omitempty"`
	Tags              []string       `json:"tags,omitempty"`
	SkipQueue         bool           `json:"skip_queue,omitempty"`
	AutoReplyTemplate string         `json:"auto_reply_template,omitempty"`
	Notifications     []Notification `json:"notifications,omitempty"`
}

// Notification is a pending alert requested by a notify rule.
type Notification struct {
	RuleName   string   `json:"rule_name"`
	Channels   []string `json:"channels,omitempty"`
	Recipients []string `json:"recipients,omitempty"`
	Template   string   `json:"template,omitempty"`
}

// Decision is the routing outcome for one ticket.
type Decision struct {
	AgentID      *uuid.UUID  `json:"agent_id,omitempty"`
	AgentName    string      `json:"agent_name,omitempty"`
	Team         string      `json:"team,omitempty"`
	Reason       string      `json:"reason"`
	Confidence   float64     `json:"confidence"`
	Score        float64     `json:"score,omitempty"`
	Alternatives []Candidate `json:"alternatives,omitempty"`

	Escalated        bool   `json:"escalated,omitempty"`
	EscalationReason string `json:"escalation_reason,omitempty"`

	MatchedRules []string `json:"matched_rules,omitempty"`
	Effects      Effects  `json:"effects"`
}

// Router routes tickets to agents using rules and scoring.
type Router struct{}

// New creates a Router.
func New() *Router {
	return &Router{}
}

// Route decides the assignment for a ticket given the current agents and
// active rules. It never fails: with nobody available the decision
// carries reason "no_available_agents" and zero confidence. Rules are
// evaluated in descending priority; an exclusive matching rule is the
// last one considered.
func (r *Router) Route(t *domain.Ticket, agents []domain.Agent, rules []domain.RoutingRule, now time.Time) Decision {
	decision := Decision{}
	state := ruleTicket(t)

	sorted := sortRules(rules)
	for i := range sorted {
		rule := &sorted[i]
		if !rule.Matches(state, now) {
			continue
		}
		decision.MatchedRules = append(decision.MatchedRules, rule.Name)

		switch rule.Action {
		case domain.ActionAssignAgent:
			if a := findAgent(agents, rule.Params.AgentID); a != nil && a.IsAvailable() {
				decision.AgentID = &a.ID
				decision.AgentName = a.Name
				decision.Team = a.Team
				decision.Reason = ReasonRuleBased
				decision.Confidence = 1.0
				return decision
			}

		case domain.ActionAssignTeam:
			if a := leastLoadedInTeam(agents, rule.Params.Team); a != nil {
				decision.AgentID = &a.ID
				decision.AgentName = a.Name
				decision.Team = a.Team
				decision.Reason = ReasonRuleBased
				decision.Confidence = 0.9
				return decision
			}
			// Nobody free on the team; remember it and keep going.
			decision.Team = rule.Params.Team

		case domain.ActionEscalate:
			decision.Team = rule.Params.ToTeam
			decision.Escalated = true
			decision.EscalationReason = rule.Params.Reason
			decision.Reason = ReasonEscalation
			decision.Confidence = 1.0
			return decision

		case domain.ActionSetPriority:
			p := domain.ClampPriority(rule.Params.Priority)
			decision.Effects.PriorityOverride = &p

		case domain.ActionAddTag:
			decision.Effects.Tags = append(decision.Effects.Tags, rule.Params.Tags...)

		case domain.ActionSkipQueue:
			decision.Effects.SkipQueue = true
			decision.Effects.PriorityBoost += rule.Params.PriorityBoost

		case domain.ActionAutoReply:
			if decision.Effects.AutoReplyTemplate == "" {
				decision.Effects.AutoReplyTemplate = firstNonEmpty(rule.Params.TemplateID, rule.Params.Template)
			}

		case domain.ActionNotify:
			decision.Effects.Notifications = append(decision.Effects.Notifications, Notification{
				RuleName:   rule.Name,
				Channels:   rule.Params.Channels,
				Recipients: rule.Params.Recipients,
				Template:   rule.Params.Template,
			})
		}

		if rule.IsExclusive {
			break
		}
	}

	return r.routeByScore(t, agents, decision, now)
}

// Reassign finds a new agent for a ticket, never picking the current
// agent or anyone in exclude. Rules are not re-applied.
func (r *Router) Reassign(t *domain.Ticket, agents []domain.Agent, exclude []uuid.UUID, now time.Time) Decision {
	skip := make(map[uuid.UUID]bool, len(exclude)+1)
	for _, id := range exclude {
		skip[id] = true
	}
	if t.AssignedAgentID != nil {
		skip[*t.AssignedAgentID] = true
	}

	var eligible []domain.Agent
	for _, a := range agents {
		if !skip[a.ID] {
			eligible = append(eligible, a)
		}
	}
	return r.routeByScore(t, eligible, Decision{}, now)
}

func (r *Router) routeByScore(t *domain.Ticket, agents []domain.Agent, decision Decision, now time.Time) Decision {
	ranked := rankAgents(agents, t, now)
	if len(ranked) == 0 {
		decision.Reason = ReasonNoAgents
		decision.Confidence = 0.0
		return decision
	}

	best := ranked[0]
	decision.AgentID = &best.agent.ID
	decision.AgentName = best.agent.Name
	if decision.Team == "" {
		decision.Team = best.agent.Team
	}
	decision.Reason = AssignmentReason(best.agent, t)
	decision.Confidence = scoreConfidence(ranked)
	decision.Score = best.score

	for _, alt := range ranked[1:] {
		if len(decision.Alternatives) >= 3 {
			break
		}
		decision.Alternatives = append(decision.Alternatives, Candidate{
			AgentID: alt.agent.ID.String(),
			Name:    alt.agent.Name,
			Team:    alt.agent.Team,
			Score:   alt.score,
		})
	}
	return decision
}

func ruleTicket(t *domain.Ticket) domain.RuleTicket {
	return domain.RuleTicket{
		Subject:      t.Subject,
		Content:      t.Content,
		Category:     t.Category,
		Sentiment:    t.Sentiment,
		Priority:     t.Priority,
		CustomerTier: t.CustomerTier,
		Language:     t.Language,
		Source:       t.Source,
	}
}

func findAgent(agents []domain.Agent, id string) *domain.Agent {
	if id == "" {
		return nil
	}
	for i := range agents {
		if agents[i].ID.String() == id {
			return &agents[i]
		}
	}
	return nil
}

func leastLoadedInTeam(agents []domain.Agent, team string) *domain.Agent {
	var best *domain.Agent
	for i := range agents {
		a := &agents[i]
		if a.Team != team || !a.IsAvailable() {
			continue
		}
		if best == nil || a.CurrentLoad < best.CurrentLoad {
			best = a
		}
	}
	return best
}

// sortRules returns a copy ordered by descending rule priority.
func sortRules(rules []domain.RoutingRule) []domain.RoutingRule {
	sorted := make([]domain.RoutingRule, len(rules))
	copy(sorted, rules)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority > sorted[j].Priority
	})
	return sorted
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
