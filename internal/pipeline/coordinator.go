// Package pipeline runs the ticket enrichment flow: normalization,
// classification, sentiment, priority, routing, and response
// suggestions. Analysis steps degrade rather than fail; step errors are
// recorded on the ticket instead of aborting the run.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/novadesk/triage/internal/classifier"
	"github.com/novadesk/triage/internal/config"
	"github.com/novadesk/triage/internal/domain"
	"github.com/novadesk/triage/internal/kb"
	"github.com/novadesk/triage/internal/priority"
	"github.com/novadesk/triage/internal/repository/postgres"
	"github.com/novadesk/triage/internal/router"
	"github.com/novadesk/triage/internal/sentiment"
	"github.com/novadesk/triage/internal/textproc"
)

// TicketStore is the ticket persistence the coordinator needs.
type TicketStore interface {
	Get(ctx context.Context, id uuid.UUID) (*domain.Ticket, error)
	Update(ctx context.Context, t *domain.Ticket) error
}

// AgentStore lists agents and owns assignment.
type AgentStore interface {
	List(ctx context.Context, onlineOnly bool) ([]domain.Agent, error)
	AssignTicket(ctx context.Context, ticketID, agentID uuid.UUID, maxRetries int) error
}

// RuleStore provides active routing rules.
type RuleStore interface {
	ListActive(ctx context.Context) ([]domain.RoutingRule, error)
	RecordTriggered(ctx context.Context, names []string) error
}

// CategoryStore provides category metadata for SLA targets.
type CategoryStore interface {
	Get(ctx context.Context, name domain.Category) (*domain.CategoryInfo, error)
}

// Suggester produces response suggestions for a ticket.
type Suggester interface {
	SuggestResponses(ctx context.Context, t *domain.Ticket) []domain.Suggestion
}

// Coordinator drives a ticket through every enrichment step.
type Coordinator struct {
	tickets    TicketStore
	agents     AgentStore
	rules      RuleStore
	categories CategoryStore
	suggester  Suggester

	classifier *classifier.Classifier
	sentiment  *sentiment.Analyzer
	scorer     *priority.Scorer
	router     *router.Router

	timeout       time.Duration
	assignRetries int
}

// Deps bundles the coordinator's collaborators.
type Deps struct {
	Tickets    TicketStore
	Agents     AgentStore
	Rules      RuleStore
	Categories CategoryStore
	Suggester  Suggester

	Classifier *classifier.Classifier
	Sentiment  *sentiment.Analyzer
	Scorer     *priority.Scorer
	Router     *router.Router
}

// NewCoordinator creates a Coordinator.
func NewCoordinator(deps Deps, cfg config.Config) *Coordinator {
	return &Coordinator{
		tickets:       deps.Tickets,
		agents:        deps.Agents,
		rules:         deps.Rules,
		categories:    deps.Categories,
		suggester:     deps.Suggester,
		classifier:    deps.Classifier,
		sentiment:     deps.Sentiment,
		scorer:        deps.Scorer,
		router:        deps.Router,
		timeout:       cfg.Pipeline.Timeout(),
		assignRetries: cfg.Router.AssignMaxRetries,
	}
}

// Process runs the enrichment pipeline for one ticket and persists the
// result. Already-processed tickets are returned untouched unless
// ForceReprocess is set. The run is bounded by the pipeline timeout.
func (c *Coordinator) Process(ctx context.Context, ticketID uuid.UUID, opts domain.ProcessOptions) (*domain.Ticket, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	t, err := c.tickets.Get(ctx, ticketID)
	if err != nil {
		return nil, fmt.Errorf("load ticket %s: %w", ticketID, err)
	}
	if t.IsProcessed && !opts.ForceReprocess {
		return t, nil
	}

	var stepErrs []string
	start := time.Now()

	c.normalize(t)
	c.classify(ctx, t)
	mood := c.analyzeSentiment(ctx, t)
	c.scorePriority(t, mood)
	c.applySLA(ctx, t)

	if opts.SkipRouting {
		log.Printf("Pipeline: ticket %s routing skipped", t.ID)
	} else if err := c.route(ctx, t); err != nil {
		stepErrs = append(stepErrs, fmt.Sprintf("routing: %v", err))
	}

	if !opts.SkipSuggestions && c.suggester != nil {
		t.SuggestedResponses = c.suggester.SuggestResponses(ctx, t)
	}

	t.IsProcessed = true
	t.ProcessingError = strings.Join(stepErrs, "; ")
	// A processed ticket leaves the intake state even when nobody could
	// take it; escalation and terminal states are preserved.
	if t.Status == domain.TicketNew {
		t.Status = domain.TicketOpen
	}

	if err := c.tickets.Update(ctx, t); err != nil {
		return nil, fmt.Errorf("save ticket %s: %w", t.ID, err)
	}

	log.Printf("Pipeline: ticket %s processed in %s (category=%s priority=%d sentiment=%s)",
		t.ID, time.Since(start).Round(time.Millisecond), t.Category, t.Priority, t.Sentiment)
	return t, nil
}

func (c *Coordinator) normalize(t *domain.Ticket) {
	t.ContentCleaned = textproc.Clean(t.Content, textproc.CleanOptions{})
	if t.Language == "" {
		t.Language, t.LanguageConfidence = textproc.DetectLanguage(t.AnalysisText())
	}
}

func (c *Coordinator) classify(ctx context.Context, t *domain.Ticket) {
	cls := c.classifier.Classify(ctx, t.Subject, t.ContentCleaned)
	t.Category = cls.Category
	t.CategoryConfidence = cls.Confidence
	t.SecondaryCategories = cls.Secondary
	t.ClassificationReasoning = cls.Reasoning
}

func (c *Coordinator) analyzeSentiment(ctx context.Context, t *domain.Ticket) domain.SentimentResult {
	res := c.sentiment.Analyze(ctx, t.AnalysisText())
	t.Sentiment = res.Label
	t.SentimentScore = res.Score
	return res
}

func (c *Coordinator) scorePriority(t *domain.Ticket, mood domain.SentimentResult) {
	result := c.scorer.Score(priority.ScoreInput{
		Text:         t.AnalysisText(),
		Sentiment:    t.Sentiment,
		AngerLevel:   mood.AngerLevel,
		CustomerTier: t.CustomerTier,
		Category:     t.Category,
		Metadata:     stringFields(t.CustomFields),
	})
	t.Priority = result.Score
	t.PriorityLevel = result.Level
	t.PriorityFactors = nil
	for _, f := range result.Factors {
		t.PriorityFactors = append(t.PriorityFactors, f.Name)
	}
}

// applySLA sets the resolution deadline from the category target scaled
// by the customer tier. Reprocessing recomputes it from CreatedAt, so a
// rerun lands on the same deadline.
func (c *Coordinator) applySLA(ctx context.Context, t *domain.Ticket) {
	if c.categories == nil || t.Category == "" {
		return
	}
	info, err := c.categories.Get(ctx, t.Category)
	if err != nil {
		if !errors.Is(err, postgres.ErrNotFound) {
			log.Printf("Pipeline: ticket %s category lookup failed: %v", t.ID, err)
		}
		return
	}
	hours := info.SLAResolutionHours * t.CustomerTier.SLAMultiplier()
	due := t.CreatedAt.Add(time.Duration(hours * float64(time.Hour)))
	t.SLADueAt = &due
}

func (c *Coordinator) route(ctx context.Context, t *domain.Ticket) error {
	agents, err := c.agents.List(ctx, true)
	if err != nil {
		return fmt.Errorf("list agents: %w", err)
	}
	rules, err := c.rules.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("list rules: %w", err)
	}

	decision := c.router.Route(t, agents, rules, time.Now().UTC())
	c.applyDecision(ctx, t, decision)

	if len(decision.MatchedRules) > 0 {
		if err := c.rules.RecordTriggered(ctx, decision.MatchedRules); err != nil {
			log.Printf("Pipeline: ticket %s rule counters not recorded: %v", t.ID, err)
		}
	}

	if decision.AgentID == nil {
		return nil
	}
	return c.assign(ctx, t, decision)
}

func (c *Coordinator) applyDecision(ctx context.Context, t *domain.Ticket, d router.Decision) {
	t.AssignmentReason = d.Reason
	t.AssignmentConfidence = d.Confidence
	if d.Team != "" {
		t.AssignedTeam = d.Team
	}

	if d.Escalated {
		t.Escalated = true
		t.EscalationReason = d.EscalationReason
		t.Status = domain.TicketEscalated
	}

	if d.Effects.PriorityOverride != nil {
		t.Priority = *d.Effects.PriorityOverride
		t.PriorityLevel = domain.PriorityLevel(t.Priority)
	}
	if d.Effects.PriorityBoost != 0 {
		t.Priority = domain.ClampPriority(t.Priority + d.Effects.PriorityBoost)
		t.PriorityLevel = domain.PriorityLevel(t.Priority)
	}
	for _, tag := range d.Effects.Tags {
		t.Tags = appendUnique(t.Tags, tag)
	}
	if d.Effects.SkipQueue {
		t.Tags = appendUnique(t.Tags, "skip_queue")
	}
	for _, n := range d.Effects.Notifications {
		log.Printf("Pipeline: ticket %s notify requested by rule %q (channels=%v)", t.ID, n.RuleName, n.Channels)
	}
}

// assign commits the decision's agent, falling back through the
// alternatives when an agent filled up since scoring.
func (c *Coordinator) assign(ctx context.Context, t *domain.Ticket, d router.Decision) error {
	candidates := []string{d.AgentID.String()}
	for _, alt := range d.Alternatives {
		candidates = append(candidates, alt.AgentID)
	}

	for _, raw := range candidates {
		agentID, err := uuid.Parse(raw)
		if err != nil {
			continue
		}
		err = c.agents.AssignTicket(ctx, t.ID, agentID, c.assignRetries)
		if err == nil {
			prev := t.AssignedAgentID
			t.AssignedAgentID = &agentID
			if prev != nil && *prev != agentID {
				t.PreviousAgentID = prev
			}
			if t.Status == domain.TicketNew {
				t.Status = domain.TicketOpen
			}
			return nil
		}
		if errors.Is(err, postgres.ErrAgentAtCapacity) {
			log.Printf("Pipeline: ticket %s agent %s at capacity, trying next", t.ID, agentID)
			continue
		}
		return err
	}

	t.AssignmentReason = router.ReasonNoAgents
	t.AssignmentConfidence = 0.0
	return nil
}

func stringFields(fields map[string]any) map[string]string {
	if len(fields) == 0 {
		return nil
	}
	out := make(map[string]string, len(fields))
	for k, v := range fields {
		if s, ok := v.(string); ok {
			out[k] = s
		}
	}
	return out
}

func appendUnique(list []string, s string) []string {
	for _, item := range list {
		if item == s {
			return list
		}
	}
	return append(list, s)
}

var _ Suggester = (*kb.Service)(nil)
