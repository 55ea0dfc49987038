// Package classifier assigns tickets to a closed category set using an
// AI provider when available, with a keyword fallback and a Redis result
// cache in front of the AI path.
package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/novadesk/triage/internal/domain"
	"github.com/novadesk/triage/internal/llm"
	"github.com/novadesk/triage/internal/textproc"
)

// Maximum text length sent to the AI provider when no bound is
// configured.
const defaultMaxClassifyChars = 5000

// Classifier categorizes ticket text.
type Classifier struct {
	chat     llm.ChatProvider // nil means rule-only mode
	cache    Cache
	maxChars int
}

// New creates a Classifier. chat may be nil (rule-only mode); cache may
// be nil (no caching). maxChars bounds the text sent for analysis; zero
// or negative selects the default.
func New(chat llm.ChatProvider, cache Cache, maxChars int) *Classifier {
	if maxChars <= 0 {
		maxChars = defaultMaxClassifyChars
	}
	return &Classifier{chat: chat, cache: cache, maxChars: maxChars}
}

type aiClassifyResponse struct {
	PrimaryCategory     string             `json:"primary_category"`
	SecondaryCategories []string           `json:"secondary_categories"`
	Confidence          float64            `json:"confidence"`
	AllCategories       map[string]float64 `json:"all_categories"`
	Reasoning           string             `json:"reasoning"`
}

// Classify categorizes the given ticket text.
//
// Empty text short-circuits to general_inquiry with zero confidence.
// Cached results come back with method "ai_cached". AI failures degrade
// to the keyword rules; Classify itself never fails.
func (c *Classifier) Classify(ctx context.Context, subject, content string) domain.Classification {
	text := strings.TrimSpace(subject + "\n" + content)
	if text == "" {
		return domain.Classification{
			Category:   domain.CategoryGeneralInquiry,
			Confidence: 0.0,
			Reasoning:  "Empty ticket content",
			Method:     "default",
		}
	}

	text = textproc.Truncate(text, c.maxChars)

	var cacheKey string
	if c.cache != nil {
		cacheKey = CacheKey(text)
		if cached, ok := c.cache.Get(ctx, cacheKey); ok {
			result := *cached
			result.Method = "ai_cached"
			return result
		}
	}

	if c.chat == nil {
		return classifyByRules(text)
	}

	result, err := c.classifyByAI(ctx, text)
	if err != nil {
		log.Printf("Classifier: AI classification failed, using rules: %v", err)
		return classifyByRules(text)
	}

	if c.cache != nil {
		c.cache.Set(ctx, cacheKey, result)
	}
	return result
}

func (c *Classifier) classifyByAI(ctx context.Context, text string) (domain.Classification, error) {
	reply, err := c.chat.Chat(ctx, llm.ChatRequest{
		System: systemPrompt(),
		Messages: []llm.Message{
			{Role: "user", Content: userPrompt(text)},
		},
		Temperature: 0.3,
		MaxTokens:   2000,
	})
	if err != nil {
		return domain.Classification{}, err
	}

	var parsed aiClassifyResponse
	if err := json.Unmarshal([]byte(extractJSON(reply)), &parsed); err != nil {
		return domain.Classification{}, fmt.Errorf("parse AI response: %w", err)
	}
	if parsed.PrimaryCategory == "" {
		return domain.Classification{}, fmt.Errorf("AI response missing primary_category")
	}

	category := domain.Category(parsed.PrimaryCategory)
	if !domain.ValidCategory(category) {
		log.Printf("Classifier: AI returned unknown category %q", parsed.PrimaryCategory)
		category = domain.CategoryGeneralInquiry
	}

	confidence := clamp01(parsed.Confidence)

	secondary := secondaryFromAI(parsed, category)

	return domain.Classification{
		Category:   category,
		Confidence: confidence,
		Secondary:  secondary,
		Reasoning:  parsed.Reasoning,
		Method:     "ai",
	}, nil
}

// secondaryFromAI prefers the scored all_categories map, falling back to
// the bare secondary_categories list at a nominal confidence.
func secondaryFromAI(parsed aiClassifyResponse, primary domain.Category) []domain.CategoryScore {
	var secondary []domain.CategoryScore

	if len(parsed.AllCategories) > 0 {
		for name, score := range parsed.AllCategories {
			cat := domain.Category(name)
			if cat == primary || !domain.ValidCategory(cat) || score <= 0 {
				continue
			}
			secondary = append(secondary, domain.CategoryScore{Category: cat, Confidence: clamp01(score)})
		}
		sort.Slice(secondary, func(i, j int) bool {
			if secondary[i].Confidence != secondary[j].Confidence {
				return secondary[i].Confidence > secondary[j].Confidence
			}
			return secondary[i].Category < secondary[j].Category
		})
		return secondary
	}

	for _, name := range parsed.SecondaryCategories {
		cat := domain.Category(name)
		if cat == primary || !domain.ValidCategory(cat) {
			continue
		}
		secondary = append(secondary, domain.CategoryScore{Category: cat, Confidence: 0.5})
	}
	return secondary
}

// extractJSON trims markdown code fences some models wrap around JSON.
func extractJSON(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if idx := strings.LastIndex(s, "```"); idx >= 0 {
			s = s[:idx]
		}
	}
	return strings.TrimSpace(s)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func systemPrompt() string {
	var categories []string
	for _, c := range domain.Categories {
		categories = append(categories, fmt.Sprintf("- %s", c))
	}
	return fmt.Sprintf(`You are an experienced customer support analyst and ticket categorization expert.

## TASK
Analyze customer support requests and categorize them.

## CATEGORIES
%s

## RULES
1. Understand nuances (slang, implied expressions, anger beneath politeness)
2. If there are multiple issues, detect all of them
3. If confidence is below 0.6, indicate uncertainty
4. Always respond in valid JSON format`, strings.Join(categories, "\n"))
}

func userPrompt(text string) string {
	return fmt.Sprintf(`Analyze the following customer support request:

---
%s
---

Respond in JSON format:
{
    "primary_category": "main_category",
    "secondary_categories": ["secondary_category1"],
    "confidence": 0.0,
    "all_categories": {"category_name": 0.0},
    "reasoning": "Why this categorization was made"
}`, text)
}
