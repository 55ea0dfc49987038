package router

import (
	"sort"
	"time"

	"github.com/novadesk/triage/internal/domain"
)

// Candidate is an agent with its suitability score for a ticket.
type Candidate struct {
	AgentID string  `json:"agent_id"`
	Name    string  `json:"name"`
	Team    string  `json:"team,omitempty"`
	Score   float64 `json:"score"`
}

// ScoreAgent rates how well an agent fits a ticket. The base of 50 is
// adjusted by skill, language, experience, VIP/critical capability,
// current load, and the agent's track record.
func ScoreAgent(a *domain.Agent, t *domain.Ticket) float64 {
	score := 50.0

	if t.Category != "" && a.HasSkill(t.Category) {
		score += 30
		score += a.SkillScore(t.Category) * 10
	}

	if t.Language != "" && a.SpeaksLanguage(t.Language) {
		score += 15
	}

	if t.Priority >= 4 {
		score += float64(a.ExperienceLevel) * 5
	}

	if t.CustomerTier.IsVIP() && a.CanHandleVIP {
		score += 20
	}
	if t.Priority == domain.PriorityMax && a.CanHandleCritical {
		score += 20
	}

	score -= 20 * a.LoadRatio()

	if a.SatisfactionScore > 0 {
		score += (a.SatisfactionScore - 3) * 5
	}
	if a.QualityScore > 0 {
		score += a.QualityScore / 100 * 10
	}

	return score
}

// rankAgents selects the candidate pool for a ticket and returns it
// scored, best first. VIP and enterprise customers are served from the
// VIP-capable agents, top-priority tickets from the critical-capable
// ones, and agents off shift are skipped; each narrowing falls back to
// the full available pool rather than stranding the ticket. Ties break
// toward the lighter load, then the more experienced agent.
func rankAgents(agents []domain.Agent, t *domain.Ticket, now time.Time) []rankedAgent {
	var available []*domain.Agent
	for i := range agents {
		if agents[i].IsAvailable() {
			available = append(available, &agents[i])
		}
	}

	pool := capableSubset(available, t)
	if working := workingSubset(pool, now); len(working) > 0 {
		pool = working
	} else {
		pool = available
	}

	ranked := make([]rankedAgent, 0, len(pool))
	for _, a := range pool {
		ranked = append(ranked, rankedAgent{agent: a, score: ScoreAgent(a, t)})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		if ranked[i].agent.CurrentLoad != ranked[j].agent.CurrentLoad {
			return ranked[i].agent.CurrentLoad < ranked[j].agent.CurrentLoad
		}
		return ranked[i].agent.ExperienceLevel > ranked[j].agent.ExperienceLevel
	})
	return ranked
}

// capableSubset narrows the pool to the handlers the ticket requires.
// An empty subset yields the original pool so missing coverage degrades
// to a best-effort match instead of no assignment.
func capableSubset(pool []*domain.Agent, t *domain.Ticket) []*domain.Agent {
	needVIP := t.CustomerTier.IsVIP()
	needCritical := t.Priority == domain.PriorityMax
	if !needVIP && !needCritical {
		return pool
	}

	var out []*domain.Agent
	for _, a := range pool {
		if needVIP && !a.CanHandleVIP {
			continue
		}
		if needCritical && !a.CanHandleCritical {
			continue
		}
		out = append(out, a)
	}
	if len(out) == 0 {
		return pool
	}
	return out
}

func workingSubset(pool []*domain.Agent, now time.Time) []*domain.Agent {
	var out []*domain.Agent
	for _, a := range pool {
		if a.WithinWorkingHours(now) {
			out = append(out, a)
		}
	}
	return out
}

type rankedAgent struct {
	agent *domain.Agent
	score float64
}

// AssignmentReason explains why the top agent won, checked in order of
// how decisive each signal is.
func AssignmentReason(a *domain.Agent, t *domain.Ticket) string {
	switch {
	case t.Category != "" && a.HasSkill(t.Category):
		return "skill_match"
	case t.CustomerTier.IsVIP() && a.CanHandleVIP:
		return "vip_handler"
	case t.Priority == domain.PriorityMax && a.CanHandleCritical:
		return "critical_handler"
	case t.Language != "" && a.SpeaksLanguage(t.Language):
		return "language_match"
	default:
		return "load_balance"
	}
}

// scoreConfidence derives assignment confidence from the gap between the
// best and second-best candidate. A lone candidate gets 0.95.
func scoreConfidence(ranked []rankedAgent) float64 {
	if len(ranked) == 1 {
		return 0.95
	}
	diff := ranked[0].score - ranked[1].score
	conf := 0.5 + diff/100
	if conf > 0.99 {
		conf = 0.99
	}
	return conf
}
