package domain

import (
	"time"

	"github.com/google/uuid"
)

// TicketStatus enumerates the lifecycle states of a support ticket.
type TicketStatus string

const (
	TicketNew        TicketStatus = "new"
	TicketOpen       TicketStatus = "open"
	TicketPending    TicketStatus = "pending"
	TicketInProgress TicketStatus = "in_progress"
	TicketResolved   TicketStatus = "resolved"
	TicketClosed     TicketStatus = "closed"
	TicketEscalated  TicketStatus = "escalated"
)

// ValidTicketStatus reports whether s is a known lifecycle state.
func ValidTicketStatus(s TicketStatus) bool {
	switch s {
	case TicketNew, TicketOpen, TicketPending, TicketInProgress,
		TicketResolved, TicketClosed, TicketEscalated:
		return true
	}
	return false
}

// Priority bounds. Every scored ticket lands inside [PriorityMin, PriorityMax].
const (
	PriorityMin = 1
	PriorityMax = 5
)

// PriorityLevel returns the human-readable name for a numeric priority.
func PriorityLevel(p int) string {
	switch p {
	case 1:
		return "minimal"
	case 2:
		return "low"
	case 3:
		return "medium"
	case 4:
		return "high"
	case 5:
		return "critical"
	}
	return "medium"
}

// ClampPriority forces p into the valid priority range.
func ClampPriority(p int) int {
	if p < PriorityMin {
		return PriorityMin
	}
	if p > PriorityMax {
		return PriorityMax
	}
	return p
}

// Sentiment enumerates sentiment labels assigned to ticket text.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNegative Sentiment = "negative"
	SentimentAngry    Sentiment = "angry"
)

// ValidSentiment reports whether s is one of the known labels.
func ValidSentiment(s Sentiment) bool {
	switch s {
	case SentimentPositive, SentimentNeutral, SentimentNegative, SentimentAngry:
		return true
	}
	return false
}

// CategoryScore pairs a category with a confidence value, used for
// secondary classification results.
type CategoryScore struct {
	Category   Category `json:"category"`
	Confidence float64  `json:"confidence"`
}

// Classification is the result of categorizing a ticket.
type Classification struct {
	Category   Category        `json:"category"`
	Confidence float64         `json:"confidence"`
	Secondary  []CategoryScore `json:"secondary_categories,omitempty"`
	Reasoning  string          `json:"reasoning,omitempty"`
	Method     string          `json:"method"` // ai, ai_cached, rules, default
}

// SentimentResult is the result of sentiment analysis on ticket text.
type SentimentResult struct {
	Label        Sentiment `json:"label"`
	Score        float64   `json:"score"`       // -1 (negative) .. 1 (positive)
	AngerLevel   float64   `json:"anger_level"` // 0 .. 1
	Satisfaction float64   `json:"satisfaction_estimate"`
	Method       string    `json:"method"` // ai, rules
}

// PriorityResult is the outcome of priority scoring.
type PriorityResult struct {
	Priority int      `json:"priority"`
	Level    string   `json:"level"`
	Factors  []string `json:"factors"`
}

// Suggestion is a candidate response for a ticket, sourced from the
// knowledge base, a response template, or generated text.
type Suggestion struct {
	Content   string  `json:"content"`
	Source    string  `json:"source"` // resolved_ticket, faq, template, ai_generated
	Relevance float64 `json:"relevance"`
	EntryID   string  `json:"entry_id,omitempty"`
	Title     string  `json:"title,omitempty"`
}

// Ticket is a customer support ticket flowing through the enrichment
// pipeline. Enrichment fields are empty until the pipeline has run.
type Ticket struct {
	ID             uuid.UUID `json:"id" db:"id"`
	ExternalID     string    `json:"external_id,omitempty" db:"external_id"`
	ExternalSystem string    `json:"external_system,omitempty" db:"external_system"`

	Subject        string       `json:"subject" db:"subject"`
	Content        string       `json:"content" db:"content"`
	ContentCleaned string       `json:"content_cleaned,omitempty" db:"content_cleaned"`
	Status         TicketStatus `json:"status" db:"status"`

	Category                Category        `json:"category,omitempty" db:"category"`
	CategoryConfidence      float64         `json:"category_confidence" db:"category_confidence"`
	SecondaryCategories     []CategoryScore `json:"secondary_categories,omitempty" db:"secondary_categories"`
	ClassificationReasoning string          `json:"classification_reasoning,omitempty" db:"classification_reasoning"`

	Sentiment      Sentiment `json:"sentiment,omitempty" db:"sentiment"`
	SentimentScore float64   `json:"sentiment_score" db:"sentiment_score"`

	Priority        int      `json:"priority" db:"priority"`
	PriorityLevel   string   `json:"priority_level,omitempty" db:"priority_level"`
	PriorityFactors []string `json:"priority_factors,omitempty" db:"priority_factors"`

	AssignedAgentID      *uuid.UUID `json:"assigned_agent_id,omitempty" db:"assigned_agent_id"`
	AssignedTeam         string     `json:"assigned_team,omitempty" db:"assigned_team"`
	PreviousAgentID      *uuid.UUID `json:"previous_agent_id,omitempty" db:"previous_agent_id"`
	AssignmentReason     string     `json:"assignment_reason,omitempty" db:"assignment_reason"`
	AssignmentConfidence float64    `json:"assignment_confidence" db:"assignment_confidence"`
	Escalated            bool       `json:"escalated" db:"escalated"`
	EscalationReason     string     `json:"escalation_reason,omitempty" db:"escalation_reason"`

	CustomerID    *uuid.UUID `json:"customer_id,omitempty" db:"customer_id"`
	CustomerEmail string     `json:"customer_email,omitempty" db:"customer_email"`
	CustomerName  string     `json:"customer_name,omitempty" db:"customer_name"`
	CustomerTier  Tier       `json:"customer_tier" db:"customer_tier"`

	Language           string  `json:"language" db:"language"`
	LanguageConfidence float64 `json:"language_confidence" db:"language_confidence"`

	Source       string         `json:"source" db:"source"`  // api, email, zendesk, freshdesk, webhook
	Channel      string         `json:"channel,omitempty" db:"channel"` // web, mobile, email, chat
	Tags         []string       `json:"tags,omitempty" db:"tags"`
	CustomFields map[string]any `json:"custom_fields,omitempty" db:"custom_fields"`

	SuggestedResponses []Suggestion `json:"suggested_responses,omitempty" db:"suggested_responses"`

	IsProcessed     bool   `json:"is_processed" db:"is_processed"`
	ProcessingError string `json:"processing_error,omitempty" db:"processing_error"`

	SLADueAt    *time.Time `json:"sla_due_at,omitempty" db:"sla_due_at"`
	SLABreached bool       `json:"sla_breached" db:"sla_breached"`

	Resolution         string  `json:"resolution,omitempty" db:"resolution"`
	SatisfactionRating float64 `json:"satisfaction_rating,omitempty" db:"satisfaction_rating"`

	CreatedAt       time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at" db:"updated_at"`
	FirstResponseAt *time.Time `json:"first_response_at,omitempty" db:"first_response_at"`
	ResolvedAt      *time.Time `json:"resolved_at,omitempty" db:"resolved_at"`
	ClosedAt        *time.Time `json:"closed_at,omitempty" db:"closed_at"`
}

// IsHighPriority reports whether the ticket is high or critical priority.
func (t *Ticket) IsHighPriority() bool {
	return t.Priority >= 4
}

// IsOverdue reports whether the ticket has blown past its SLA due time.
func (t *Ticket) IsOverdue(now time.Time) bool {
	if t.SLADueAt == nil {
		return false
	}
	return now.After(*t.SLADueAt)
}

// CombinedText returns subject and content joined for analysis.
func (t *Ticket) CombinedText() string {
	if t.Subject == "" {
		return t.Content
	}
	if t.Content == "" {
		return t.Subject
	}
	return t.Subject + "\n" + t.Content
}

// AnalysisText prefers the cleaned content when the normalizer has run.
func (t *Ticket) AnalysisText() string {
	if t.ContentCleaned != "" {
		if t.Subject != "" {
			return t.Subject + "\n" + t.ContentCleaned
		}
		return t.ContentCleaned
	}
	return t.CombinedText()
}
