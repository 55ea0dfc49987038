package api

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/novadesk/triage/internal/config"
	"github.com/novadesk/triage/internal/domain"
	"github.com/novadesk/triage/internal/pkg/httputil"
	"github.com/novadesk/triage/internal/repository/postgres"
	"github.com/novadesk/triage/internal/router"
)

// TicketStore is the ticket persistence the handlers need.
type TicketStore interface {
	Create(ctx context.Context, t *domain.Ticket) error
	Get(ctx context.Context, id uuid.UUID) (*domain.Ticket, error)
	List(ctx context.Context, f postgres.TicketFilter) ([]domain.Ticket, int, error)
	Update(ctx context.Context, t *domain.Ticket) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// JobQueue enqueues pipeline runs.
type JobQueue interface {
	Enqueue(ctx context.Context, ticketID uuid.UUID, opts domain.ProcessOptions) (*domain.Job, error)
	PendingCount(ctx context.Context) (int, error)
}

// AgentStore is the agent persistence the handlers need.
type AgentStore interface {
	Create(ctx context.Context, a *domain.Agent) error
	Get(ctx context.Context, id uuid.UUID) (*domain.Agent, error)
	List(ctx context.Context, onlineOnly bool) ([]domain.Agent, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.AgentStatus) error
	AssignTicket(ctx context.Context, ticketID, agentID uuid.UUID, maxRetries int) error
	ReleaseTicket(ctx context.Context, agentID uuid.UUID) error
	Deactivate(ctx context.Context, id uuid.UUID) error
}

// RuleStore is the rule persistence the handlers need.
type RuleStore interface {
	List(ctx context.Context) ([]domain.RoutingRule, error)
	Create(ctx context.Context, rule *domain.RoutingRule) error
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
}

// CategoryStore lists category metadata.
type CategoryStore interface {
	List(ctx context.Context) ([]domain.CategoryInfo, error)
}

// CustomerStore is the customer persistence the handlers need.
type CustomerStore interface {
	Upsert(ctx context.Context, c *domain.Customer) (*domain.Customer, error)
	RecordTicket(ctx context.Context, id uuid.UUID) error
	RecordResolution(ctx context.Context, id uuid.UUID, rating float64) error
}

// KnowledgeBase is the KB surface the handlers need.
type KnowledgeBase interface {
	AddFAQ(ctx context.Context, question, answer, category string) (domain.KBEntry, error)
	FindSimilar(ctx context.Context, query, category string, limit int) []domain.KBMatch
	SuggestResponses(ctx context.Context, t *domain.Ticket) []domain.Suggestion
	IndexResolvedTicket(ctx context.Context, t *domain.Ticket, response string, rating float64) (bool, error)
}

// Processor runs the pipeline inline for synchronous processing.
type Processor interface {
	Process(ctx context.Context, ticketID uuid.UUID, opts domain.ProcessOptions) (*domain.Ticket, error)
}

// Handlers carries every dependency the HTTP layer uses.
type Handlers struct {
	tickets    TicketStore
	jobs       JobQueue
	agents     AgentStore
	rules      RuleStore
	categories CategoryStore
	customers  CustomerStore
	kb         KnowledgeBase
	processor  Processor
	router     *router.Router

	pipelineCfg   config.PipelineConfig
	assignRetries int
	startedAt     time.Time
}

// NewHandlers wires the handler set.
func NewHandlers(
	tickets TicketStore,
	jobs JobQueue,
	agents AgentStore,
	rules RuleStore,
	categories CategoryStore,
	customers CustomerStore,
	kb KnowledgeBase,
	processor Processor,
	pipelineCfg config.PipelineConfig,
	routerCfg config.RouterConfig,
) *Handlers {
	return &Handlers{
		tickets:       tickets,
		jobs:          jobs,
		agents:        agents,
		rules:         rules,
		categories:    categories,
		customers:     customers,
		kb:            kb,
		processor:     processor,
		router:        router.New(),
		pipelineCfg:   pipelineCfg,
		assignRetries: routerCfg.AssignMaxRetries,
		startedAt:     time.Now().UTC(),
	}
}

// Health reports service liveness and queue depth.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"status": "ok",
		"uptime": time.Since(h.startedAt).Round(time.Second).String(),
	}
	if h.jobs != nil {
		if n, err := h.jobs.PendingCount(r.Context()); err == nil {
			resp["pending_jobs"] = n
		}
	}
	httputil.OK(w, resp)
}
