package kb

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/novadesk/triage/internal/config"
	"github.com/novadesk/triage/internal/domain"
	"github.com/novadesk/triage/internal/llm"
	"github.com/novadesk/triage/internal/textproc"
)

// Embedding input is truncated to this many characters.
const maxEmbedChars = 8000

// Resolved tickets rated below this are not worth learning from.
const minIndexRating = 3

// Service indexes support knowledge and suggests responses for tickets.
// Both the embedder and the chat provider are optional; without an
// embedder, similarity search is effectively disabled and only AI
// generation can produce suggestions.
type Service struct {
	store     *Store
	embedder  llm.Embedder
	chat      llm.ChatProvider
	templates *TemplateRenderer

	minScore       float64
	maxSuggestions int
	dimensions     int
}

// NewService creates a Service backed by the given store.
func NewService(store *Store, embedder llm.Embedder, chat llm.ChatProvider, cfg config.KBConfig) *Service {
	return &Service{
		store:          store,
		embedder:       embedder,
		chat:           chat,
		templates:      NewTemplateRenderer(),
		minScore:       cfg.SimilarityThreshold,
		maxSuggestions: cfg.MaxSuggestions,
		dimensions:     cfg.EmbeddingDimensions,
	}
}

// AddEntry embeds and stores an entry. A missing ID is generated.
func (s *Service) AddEntry(ctx context.Context, entry domain.KBEntry) (domain.KBEntry, error) {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Content == "" {
		return domain.KBEntry{}, fmt.Errorf("add kb entry: empty content")
	}
	if entry.Source == "" {
		entry.Source = domain.KBSourceManual
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	entry.Embedding = s.embed(ctx, entry.Content)
	s.store.Add(entry)
	return entry, nil
}

// IndexResolvedTicket stores a resolved ticket's question and response
// for future retrieval. Tickets rated below 3 are skipped; a zero rating
// means unrated and is indexed. Returns whether the ticket was indexed.
func (s *Service) IndexResolvedTicket(ctx context.Context, t *domain.Ticket, response string, rating float64) (bool, error) {
	if rating > 0 && rating < minIndexRating {
		log.Printf("KB: skipping low-rated ticket %s (rating %.1f)", t.ID, rating)
		return false, nil
	}
	if strings.TrimSpace(response) == "" {
		return false, fmt.Errorf("index resolved ticket %s: empty response", t.ID)
	}

	content := fmt.Sprintf("Question: %s\n\nResponse: %s", t.CombinedText(), response)

	_, err := s.AddEntry(ctx, domain.KBEntry{
		ID:       "ticket_" + t.ID.String(),
		Title:    t.Subject,
		Content:  content,
		Source:   domain.KBSourceResolvedTicket,
		Category: string(t.Category),
		Metadata: map[string]string{"ticket_id": t.ID.String()},
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

// AddFAQ stores a question/answer pair.
func (s *Service) AddFAQ(ctx context.Context, question, answer, category string) (domain.KBEntry, error) {
	if strings.TrimSpace(question) == "" || strings.TrimSpace(answer) == "" {
		return domain.KBEntry{}, fmt.Errorf("add faq: question and answer are required")
	}

	content := fmt.Sprintf("FAQ: %s\n\nAnswer: %s", question, answer)

	return s.AddEntry(ctx, domain.KBEntry{
		ID:       "faq_" + uuid.NewString(),
		Title:    question,
		Content:  content,
		Source:   domain.KBSourceFAQ,
		Category: category,
	})
}

// FindSimilar returns knowledge base entries similar to the query text.
func (s *Service) FindSimilar(ctx context.Context, query, category string, limit int) []domain.KBMatch {
	vector := s.embed(ctx, query)
	if limit <= 0 {
		limit = s.maxSuggestions
	}
	return s.store.Search(vector, category, limit, s.minScore)
}

// SuggestResponses builds response suggestions for a ticket: similar
// knowledge base entries first, then an AI-generated draft when there is
// room. Failures degrade to fewer suggestions, never an error.
func (s *Service) SuggestResponses(ctx context.Context, t *domain.Ticket) []domain.Suggestion {
	matches := s.FindSimilar(ctx, t.AnalysisText(), string(t.Category), s.maxSuggestions+2)

	var suggestions []domain.Suggestion
	for _, m := range matches {
		if len(suggestions) >= s.maxSuggestions {
			break
		}
		content := s.suggestionContent(m.Entry, t)
		if content == "" {
			continue
		}
		suggestions = append(suggestions, domain.Suggestion{
			Content:   content,
			Source:    m.Entry.Source,
			Relevance: m.Score,
			EntryID:   m.Entry.ID,
			Title:     m.Entry.Title,
		})
	}

	if len(suggestions) < s.maxSuggestions && s.chat != nil {
		if draft := s.generateDraft(ctx, t, matches); draft != "" {
			suggestions = append(suggestions, domain.Suggestion{
				Content:   draft,
				Source:    "ai_generated",
				Relevance: 0.9,
			})
		}
	}

	if len(suggestions) > s.maxSuggestions {
		suggestions = suggestions[:s.maxSuggestions]
	}
	return suggestions
}

// suggestionContent extracts the reusable response part of an entry.
// Template entries are rendered against the ticket; rendering failures
// drop the entry.
func (s *Service) suggestionContent(entry domain.KBEntry, t *domain.Ticket) string {
	if entry.Source == domain.KBSourceTemplate {
		out, err := s.templates.Render(entry.Content, t)
		if err != nil {
			log.Printf("KB: template %s render failed: %v", entry.ID, err)
			return ""
		}
		return out
	}

	content := entry.Content
	if idx := strings.LastIndex(content, "Response:"); idx >= 0 {
		return strings.TrimSpace(content[idx+len("Response:"):])
	}
	if idx := strings.LastIndex(content, "Answer:"); idx >= 0 {
		return strings.TrimSpace(content[idx+len("Answer:"):])
	}
	return strings.TrimSpace(content)
}

func (s *Service) generateDraft(ctx context.Context, t *domain.Ticket, matches []domain.KBMatch) string {
	var refs []string
	for i, m := range matches {
		if i >= 3 {
			break
		}
		refs = append(refs, "Reference:\n"+m.Entry.Content)
	}

	langInstruction := "Respond in English."
	if t.Language == "tr" {
		langInstruction = "Respond in Turkish."
	} else if t.Language != "" && t.Language != "en" {
		langInstruction = fmt.Sprintf("Respond in the language with ISO code %q.", t.Language)
	}

	var system, user string
	if len(refs) > 0 {
		system = fmt.Sprintf(`You are a professional customer support expert. Generate a concise and helpful response based on the provided reference responses.

Rules:
1. Don't copy references directly, adapt them to the specific question
2. Be professional and direct. Avoid unnecessary pleasantries.
3. Keep it very concise. Use bullet points for steps if suitable.
4. Limit the response to 3-4 sentences if possible.
5. %s`, langInstruction)
		user = fmt.Sprintf("Customer message:\n%s\n\nReference responses:\n%s\n\nWrite an appropriate response for this customer:",
			t.AnalysisText(), strings.Join(refs, "\n---\n"))
	} else {
		categoryContext := ""
		if t.Category != "" {
			categoryContext = fmt.Sprintf(" This is a %s inquiry.", t.Category)
		}
		system = fmt.Sprintf(`You are a professional customer support expert for a technology company. Provide concise, accurate, and helpful responses.%s

Rules:
1. Be professional but brief.
2. Provide clear and actionable information immediately.
3. If you don't know specific details, ask clarifying questions directly.
4. Limit the response to 3-4 sentences if possible.
5. %s`, categoryContext, langInstruction)
		user = fmt.Sprintf("Customer message:\n%s\n\nWrite an appropriate response for this customer:", t.AnalysisText())
	}

	reply, err := s.chat.Chat(ctx, llm.ChatRequest{
		System:      system,
		Messages:    []llm.Message{{Role: "user", Content: user}},
		Temperature: 0.7,
		MaxTokens:   500,
	})
	if err != nil {
		log.Printf("KB: draft generation failed for ticket %s: %v", t.ID, err)
		return ""
	}
	return strings.TrimSpace(reply)
}

// embed returns the embedding for the text, or a zero vector when no
// embedder is configured or the call fails. Zero vectors never match in
// search.
func (s *Service) embed(ctx context.Context, text string) []float64 {
	if s.embedder == nil {
		return make([]float64, s.dimensions)
	}
	vector, err := s.embedder.Embed(ctx, textproc.Truncate(text, maxEmbedChars))
	if err != nil {
		log.Printf("KB: embedding failed: %v", err)
		return make([]float64, s.dimensions)
	}
	return vector
}
