package domain

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
)

// RuleType identifies which ticket attribute a routing rule inspects.
type RuleType string

const (
	RuleCategory  RuleType = "category"
	RuleKeyword   RuleType = "keyword"
	RuleSentiment RuleType = "sentiment"
	RulePriority  RuleType = "priority"
	RuleCustomer  RuleType = "customer"
	RuleTime      RuleType = "time"
	RuleLanguage  RuleType = "language"
	RuleCustom    RuleType = "custom"
)

// RuleAction is what a rule does when it matches.
type RuleAction string

const (
	ActionAssignAgent RuleAction = "assign_agent"
	ActionAssignTeam  RuleAction = "assign_team"
	ActionSetPriority RuleAction = "set_priority"
	ActionAddTag      RuleAction = "add_tag"
	ActionEscalate    RuleAction = "escalate"
	ActionAutoReply   RuleAction = "auto_reply"
	ActionNotify      RuleAction = "notify"
	ActionSkipQueue   RuleAction = "skip_queue"
)

// RuleConditions holds the match criteria for a rule. Which fields are
// consulted depends on the rule type.
type RuleConditions struct {
	Categories  []string `json:"categories,omitempty"`
	Keywords    []string `json:"keywords,omitempty"`
	MatchMode   string   `json:"match_mode,omitempty"` // any (default) or all
	Sentiments  []string `json:"sentiments,omitempty"`
	MinPriority int      `json:"min_priority,omitempty"`
	MaxPriority int      `json:"max_priority,omitempty"`
	Tiers       []string `json:"tiers,omitempty"`
	Languages   []string `json:"languages,omitempty"`
	Expression  string   `json:"expression,omitempty"`
}

// RuleParams holds action parameters. Which fields apply depends on
// the action.
type RuleParams struct {
	AgentID       string   `json:"agent_id,omitempty"`
	Team          string   `json:"team,omitempty"`
	ToTeam        string   `json:"to_team,omitempty"`
	Priority      int      `json:"priority,omitempty"`
	PriorityBoost int      `json:"priority_boost,omitempty"`
	Tags          []string `json:"tags,omitempty"`
	Reason        string   `json:"reason,omitempty"`
	TemplateID    string   `json:"template_id,omitempty"`
	Template      string   `json:"template,omitempty"`
	Channels      []string `json:"channels,omitempty"`
	Recipients    []string `json:"recipients,omitempty"`
}

// RoutingRule is a configurable routing policy. Rules are evaluated in
// descending Priority order; an exclusive rule stops evaluation when it
// matches, a non-exclusive rule applies its action and lets evaluation
// continue.
type RoutingRule struct {
	ID          uuid.UUID `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Description string    `json:"description,omitempty" db:"description"`

	RuleType   RuleType       `json:"rule_type" db:"rule_type"`
	Conditions RuleConditions `json:"conditions" db:"conditions"`

	Action RuleAction `json:"action" db:"action"`
	Params RuleParams `json:"action_params" db:"action_params"`

	Priority    int  `json:"priority" db:"priority"` // higher evaluates first
	IsActive    bool `json:"is_active" db:"is_active"`
	IsExclusive bool `json:"is_exclusive" db:"is_exclusive"`

	AppliesToSources    []string `json:"applies_to_sources,omitempty" db:"applies_to_sources"`
	AppliesToCategories []string `json:"applies_to_categories,omitempty" db:"applies_to_categories"`

	ActiveFrom       *time.Time `json:"active_from,omitempty" db:"active_from"`
	ActiveUntil      *time.Time `json:"active_until,omitempty" db:"active_until"`
	ActiveHoursStart string     `json:"active_hours_start,omitempty" db:"active_hours_start"` // HH:MM
	ActiveHoursEnd   string     `json:"active_hours_end,omitempty" db:"active_hours_end"`
	ActiveDays       []int      `json:"active_days,omitempty" db:"active_days"` // 0=Monday

	TimesTriggered  int        `json:"times_triggered" db:"times_triggered"`
	LastTriggeredAt *time.Time `json:"last_triggered_at,omitempty" db:"last_triggered_at"`

	CreatedBy string    `json:"created_by,omitempty" db:"created_by"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// RuleTicket is the slice of ticket state a rule can match against.
type RuleTicket struct {
	Subject      string
	Content      string
	Category     Category
	Sentiment    Sentiment
	Priority     int
	CustomerTier Tier
	Language     string
	Source       string
}

// Matches reports whether the rule fires for the given ticket state at
// the given time. Inactive rules and rules outside their time window
// never match.
func (r *RoutingRule) Matches(t RuleTicket, now time.Time) bool {
	if !r.IsActive {
		return false
	}
	if !r.activeAt(now) {
		return false
	}
	if len(r.AppliesToSources) > 0 && t.Source != "" && !containsString(r.AppliesToSources, t.Source) {
		return false
	}
	if len(r.AppliesToCategories) > 0 && t.Category != "" && !containsString(r.AppliesToCategories, string(t.Category)) {
		return false
	}
	return r.evaluate(t)
}

func (r *RoutingRule) activeAt(now time.Time) bool {
	if r.ActiveFrom != nil && now.Before(*r.ActiveFrom) {
		return false
	}
	if r.ActiveUntil != nil && now.After(*r.ActiveUntil) {
		return false
	}
	if len(r.ActiveDays) > 0 {
		// time.Weekday has Sunday=0; rules use Monday=0.
		day := (int(now.Weekday()) + 6) % 7
		found := false
		for _, d := range r.ActiveDays {
			if d == day {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if r.ActiveHoursStart != "" && r.ActiveHoursEnd != "" {
		hhmm := now.Format("15:04")
		if hhmm < r.ActiveHoursStart || hhmm > r.ActiveHoursEnd {
			return false
		}
	}
	return true
}

func (r *RoutingRule) evaluate(t RuleTicket) bool {
	c := r.Conditions
	switch r.RuleType {
	case RuleCategory:
		return containsString(c.Categories, string(t.Category))
	case RuleKeyword:
		text := strings.ToLower(t.Content + " " + t.Subject)
		if len(c.Keywords) == 0 {
			return false
		}
		if c.MatchMode == "all" {
			for _, kw := range c.Keywords {
				if !strings.Contains(text, strings.ToLower(kw)) {
					return false
				}
			}
			return true
		}
		for _, kw := range c.Keywords {
			if strings.Contains(text, strings.ToLower(kw)) {
				return true
			}
		}
		return false
	case RuleSentiment:
		return containsString(c.Sentiments, string(t.Sentiment))
	case RulePriority:
		min, max := c.MinPriority, c.MaxPriority
		if min == 0 {
			min = PriorityMin
		}
		if max == 0 {
			max = PriorityMax
		}
		return t.Priority >= min && t.Priority <= max
	case RuleCustomer:
		return containsString(c.Tiers, string(t.CustomerTier))
	case RuleLanguage:
		return containsString(c.Languages, t.Language)
	case RuleTime:
		// Time windows are handled by activeAt; a pure time rule
		// matches whenever it is active.
		return true
	case RuleCustom:
		// Expression evaluation is not supported; custom rules never fire.
		return false
	}
	return false
}

func containsString(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

// MarshalConditions serializes conditions for storage.
func (r *RoutingRule) MarshalConditions() ([]byte, error) { return json.Marshal(r.Conditions) }

// MarshalParams serializes action params for storage.
func (r *RoutingRule) MarshalParams() ([]byte, error) { return json.Marshal(r.Params) }

// DefaultRoutingRules is the seed set installed on first run.
var DefaultRoutingRules = []RoutingRule{
	{
		Name:        "VIP Customer Priority",
		Description: "Escalate VIP and Enterprise customer tickets",
		RuleType:    RuleCustomer,
		Conditions:  RuleConditions{Tiers: []string{"vip", "enterprise"}},
		Action:      ActionSkipQueue,
		Params:      RuleParams{PriorityBoost: 2},
		Priority:    100,
		IsActive:    true,
		IsExclusive: true,
	},
	{
		Name:        "Angry Customer Escalation",
		Description: "Escalate tickets from angry customers to senior agents",
		RuleType:    RuleSentiment,
		Conditions:  RuleConditions{Sentiments: []string{"angry"}},
		Action:      ActionEscalate,
		Params:      RuleParams{ToTeam: "senior_support", Reason: "angry_customer"},
		Priority:    90,
		IsActive:    true,
		IsExclusive: true,
	},
	{
		Name:        "Critical Priority Alert",
		Description: "Notify management for critical priority tickets",
		RuleType:    RulePriority,
		Conditions:  RuleConditions{MinPriority: 5},
		Action:      ActionNotify,
		Params:      RuleParams{Channels: []string{"email"}, Template: "critical_alert"},
		Priority:    80,
		IsActive:    true,
		IsExclusive: false,
	},
	{
		Name:        "Technical Issues to Tech Team",
		Description: "Route technical issues to technical support team",
		RuleType:    RuleCategory,
		Conditions:  RuleConditions{Categories: []string{"technical_issue", "bug_report"}},
		Action:      ActionAssignTeam,
		Params:      RuleParams{Team: "technical_support"},
		Priority:    50,
		IsActive:    true,
		IsExclusive: true,
	},
	{
		Name:        "Billing to Finance Team",
		Description: "Route billing questions to finance team",
		RuleType:    RuleCategory,
		Conditions:  RuleConditions{Categories: []string{"billing_question", "return_refund"}},
		Action:      ActionAssignTeam,
		Params:      RuleParams{Team: "finance"},
		Priority:    50,
		IsActive:    true,
		IsExclusive: true,
	},
}
