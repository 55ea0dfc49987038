package domain

import (
	"time"

	"github.com/google/uuid"
)

// AgentStatus is an agent's availability state.
type AgentStatus string

const (
	AgentOnline  AgentStatus = "online"
	AgentOffline AgentStatus = "offline"
	AgentBusy    AgentStatus = "busy"
	AgentAway    AgentStatus = "away"
	AgentOnBreak AgentStatus = "on_break"
)

// ValidAgentStatus reports whether s is a known status.
func ValidAgentStatus(s AgentStatus) bool {
	switch s {
	case AgentOnline, AgentOffline, AgentBusy, AgentAway, AgentOnBreak:
		return true
	}
	return false
}

// Agent is a support team member who handles tickets.
type Agent struct {
	ID    uuid.UUID `json:"id" db:"id"`
	Email string    `json:"email" db:"email"`
	Name  string    `json:"name" db:"name"`
	Role  string    `json:"role" db:"role"` // agent, senior_agent, team_lead, supervisor, admin
	Team  string    `json:"team,omitempty" db:"team"`

	Skills          []string           `json:"skills" db:"skills"`       // category names the agent covers
	Languages       []string           `json:"languages" db:"languages"` // ISO-639-1 codes
	ExperienceLevel int                `json:"experience_level" db:"experience_level"` // 1..5
	Specializations map[string]float64 `json:"specializations,omitempty" db:"specializations"`

	CurrentLoad         int `json:"current_load" db:"current_load"`
	MaxLoad             int `json:"max_load" db:"max_load"`
	DailyCapacity       int `json:"daily_capacity" db:"daily_capacity"`
	TicketsHandledToday int `json:"tickets_handled_today" db:"tickets_handled_today"`

	Status       AgentStatus `json:"status" db:"status"`
	IsActive     bool        `json:"is_active" db:"is_active"`
	LastActiveAt *time.Time  `json:"last_active_at,omitempty" db:"last_active_at"`

	AvgResolutionSeconds    int     `json:"avg_resolution_seconds" db:"avg_resolution_seconds"`
	AvgFirstResponseSeconds int     `json:"avg_first_response_seconds" db:"avg_first_response_seconds"`
	SatisfactionScore       float64 `json:"satisfaction_score" db:"satisfaction_score"` // CSAT, 0..5
	QualityScore            float64 `json:"quality_score" db:"quality_score"`           // 0..100

	TotalTicketsResolved int `json:"total_tickets_resolved" db:"total_tickets_resolved"`
	TicketsResolvedToday int `json:"tickets_resolved_today" db:"tickets_resolved_today"`
	TicketsEscalated     int `json:"tickets_escalated" db:"tickets_escalated"`

	CanHandleCritical bool `json:"can_handle_critical" db:"can_handle_critical"`
	CanHandleVIP      bool `json:"can_handle_vip" db:"can_handle_vip"`

	WorkHoursStart string  `json:"work_hours_start,omitempty" db:"work_hours_start"` // "HH:MM", 24h
	WorkHoursEnd   string  `json:"work_hours_end,omitempty" db:"work_hours_end"`
	Timezone       string  `json:"timezone,omitempty" db:"timezone"` // IANA name
	WorkingDays    []int64 `json:"working_days,omitempty" db:"working_days"` // 0=Monday .. 6=Sunday

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// IsAvailable reports whether the agent can take another ticket right now.
func (a *Agent) IsAvailable() bool {
	return a.IsActive && a.Status == AgentOnline && a.CurrentLoad < a.MaxLoad
}

// WithinWorkingHours reports whether the agent is on shift at the given
// instant, evaluated in the agent's timezone. Both shift bounds are
// inclusive, so the closing minute still counts. Agents with no schedule
// configured are always on shift; an unknown timezone keeps the instant
// as given.
func (a *Agent) WithinWorkingHours(now time.Time) bool {
	if a.Timezone != "" {
		if loc, err := time.LoadLocation(a.Timezone); err == nil {
			now = now.In(loc)
		}
	}

	if len(a.WorkingDays) > 0 {
		day := int64(now.Weekday()+6) % 7 // 0=Monday
		onShift := false
		for _, d := range a.WorkingDays {
			if d == day {
				onShift = true
				break
			}
		}
		if !onShift {
			return false
		}
	}

	if a.WorkHoursStart != "" && a.WorkHoursEnd != "" {
		clock := now.Format("15:04")
		return a.WorkHoursStart <= clock && clock <= a.WorkHoursEnd
	}
	return true
}

// LoadRatio returns current load as a fraction of max capacity.
// A zero max load counts as fully loaded.
func (a *Agent) LoadRatio() float64 {
	if a.MaxLoad == 0 {
		return 1.0
	}
	return float64(a.CurrentLoad) / float64(a.MaxLoad)
}

// AvailableCapacity returns how many more tickets the agent can take.
func (a *Agent) AvailableCapacity() int {
	if n := a.MaxLoad - a.CurrentLoad; n > 0 {
		return n
	}
	return 0
}

// HasSkill reports whether the agent covers the given category.
func (a *Agent) HasSkill(category Category) bool {
	for _, s := range a.Skills {
		if s == string(category) {
			return true
		}
	}
	return false
}

// SpeaksLanguage reports whether the agent speaks the given language.
func (a *Agent) SpeaksLanguage(lang string) bool {
	for _, l := range a.Languages {
		if l == lang {
			return true
		}
	}
	return false
}

// SkillScore returns the agent's expertise score for a category,
// defaulting to 0.5 when no explicit specialization is recorded.
func (a *Agent) SkillScore(category Category) float64 {
	if score, ok := a.Specializations[string(category)]; ok {
		return score
	}
	return 0.5
}
