// Package priority computes a ticket's 1-5 priority from keyword,
// sentiment, customer, category, and text-pattern signals. Scoring is
// deterministic and does no I/O.
package priority

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/novadesk/triage/internal/domain"
)

// Urgent keywords, English and Turkish. Each list is checked with plain
// substring containment on lowercased text.
var urgentKeywords = []string{
	"urgent", "asap", "immediately", "critical", "emergency",
	"right now", "can't wait", "deadline", "down", "outage",
	"acil", "hemen", "kritik", "acilen", "ivedi", "derhal",
	"bekleyemez", "şimdi", "çöktü", "erişilemiyor",
}

var highKeywords = []string{
	"not working", "broken", "error", "can't access", "failed",
	"stuck", "blocked", "crash", "lost", "missing", "deleted",
	"çalışmıyor", "bozuk", "hata", "erişemiyorum", "başarısız",
	"takıldı", "engellendi", "kayboldu", "silindi",
}

var deadlineRes = []*regexp.Regexp{
	regexp.MustCompile(`(?i)deadline`),
	regexp.MustCompile(`(?i)due date`),
	regexp.MustCompile(`(?i)by \w+ \d+`),
	regexp.MustCompile(`(?i)until`),
	regexp.MustCompile(`(?i)son tarih`),
	regexp.MustCompile(`(?i)tarihe kadar`),
	regexp.MustCompile(`(?i)süre`),
}

// CustomRule is a configurable priority adjustment.
type CustomRule struct {
	Name        string
	Type        string // keyword or customer_field
	Keywords    []string
	Field       string
	Value       string
	Weight      int
	Description string
}

// Factor is one named contribution to the final score.
type Factor struct {
	Name        string `json:"name"`
	Weight      int    `json:"weight"`
	Description string `json:"description"`
}

// ScoreInput carries everything the scorer looks at.
type ScoreInput struct {
	Text         string
	Sentiment    domain.Sentiment
	AngerLevel   float64
	CustomerTier domain.Tier
	Category     domain.Category
	Metadata     map[string]string
}

// Result is the scoring outcome with the full factor breakdown.
type Result struct {
	Score   int      `json:"score"`
	Level   string   `json:"level"`
	Factors []Factor `json:"factors"`
}

// Scorer computes ticket priority. Custom rules are optional.
type Scorer struct {
	customRules []CustomRule
}

// New creates a Scorer with the given custom rules.
func New(customRules []CustomRule) *Scorer {
	return &Scorer{customRules: customRules}
}

// Score computes the priority. Starting from a base of 3 (medium), each
// matching factor adds its weight, and the sum is clamped to 1-5.
// Factors are recorded in evaluation order.
func (s *Scorer) Score(in ScoreInput) Result {
	const base = 3
	var factors []Factor

	lower := strings.ToLower(in.Text)

	// 1. Urgent keywords
	urgentFound := findKeywords(lower, urgentKeywords)
	if len(urgentFound) > 0 {
		factors = append(factors, Factor{
			Name:        "urgent_keyword",
			Weight:      2,
			Description: "Urgent keywords detected: " + joinFirst(urgentFound, 3),
		})
	}

	// 2. High priority keywords (suppressed when urgent already fired)
	if len(urgentFound) == 0 {
		if highFound := findKeywords(lower, highKeywords); len(highFound) > 0 {
			factors = append(factors, Factor{
				Name:        "high_priority_keyword",
				Weight:      1,
				Description: "High priority keywords: " + joinFirst(highFound, 3),
			})
		}
	}

	// 3. Sentiment
	if in.Sentiment == domain.SentimentNegative || in.Sentiment == domain.SentimentAngry {
		weight := 1
		if in.Sentiment == domain.SentimentAngry {
			weight = 2
		}
		factors = append(factors, Factor{
			Name:        "sentiment_" + string(in.Sentiment),
			Weight:      weight,
			Description: fmt.Sprintf("Customer sentiment is %s", in.Sentiment),
		})
	}

	// 4. High anger level
	if in.AngerLevel >= 0.7 {
		factors = append(factors, Factor{
			Name:        "high_anger",
			Weight:      1,
			Description: fmt.Sprintf("High anger level detected (%.2f)", in.AngerLevel),
		})
	}

	// 5. Customer tier
	if boost := in.CustomerTier.PriorityBoost(); boost != 0 {
		factors = append(factors, Factor{
			Name:        "customer_tier_" + string(in.CustomerTier),
			Weight:      boost,
			Description: fmt.Sprintf("Customer tier: %s", in.CustomerTier),
		})
	}

	// 6. Category
	if in.Category != "" {
		switch boost := in.Category.PriorityBoost(); {
		case boost > 0:
			factors = append(factors, Factor{
				Name:        "critical_category_" + string(in.Category),
				Weight:      boost,
				Description: fmt.Sprintf("Critical category: %s", in.Category),
			})
		case in.Category == domain.CategoryFeatureRequest:
			factors = append(factors, Factor{
				Name:        "low_priority_category_" + string(in.Category),
				Weight:      -1,
				Description: fmt.Sprintf("Low priority category: %s", in.Category),
			})
		}
	}

	// 7. Text patterns
	if capsRatio(in.Text) > 0.5 {
		factors = append(factors, Factor{
			Name:        "excessive_caps",
			Weight:      1,
			Description: "Excessive use of capital letters",
		})
	}
	if n := strings.Count(in.Text, "!"); n >= 3 {
		factors = append(factors, Factor{
			Name:        "multiple_exclamations",
			Weight:      1,
			Description: fmt.Sprintf("Multiple exclamation marks (%d)", n),
		})
	}
	if mentionsDeadline(in.Text) {
		factors = append(factors, Factor{
			Name:        "deadline_mention",
			Weight:      1,
			Description: "Deadline mentioned in text",
		})
	}

	// 8. Custom rules
	factors = append(factors, s.applyCustomRules(lower, in.Metadata)...)

	total := 0
	for _, f := range factors {
		total += f.Weight
	}
	score := domain.ClampPriority(base + total)

	return Result{
		Score:   score,
		Level:   domain.PriorityLevel(score),
		Factors: factors,
	}
}

func (s *Scorer) applyCustomRules(lower string, metadata map[string]string) []Factor {
	var factors []Factor
	for _, rule := range s.customRules {
		switch rule.Type {
		case "keyword":
			for _, kw := range rule.Keywords {
				if strings.Contains(lower, strings.ToLower(kw)) {
					factors = append(factors, Factor{
						Name:        defaultString(rule.Name, "custom_keyword"),
						Weight:      defaultWeight(rule.Weight),
						Description: defaultString(rule.Description, "Custom keyword match"),
					})
					break
				}
			}
		case "customer_field":
			if metadata != nil && metadata[rule.Field] == rule.Value {
				factors = append(factors, Factor{
					Name:        defaultString(rule.Name, "custom_field"),
					Weight:      defaultWeight(rule.Weight),
					Description: defaultString(rule.Description, "Custom field match"),
				})
			}
		}
	}
	return factors
}

func findKeywords(lower string, keywords []string) []string {
	var found []string
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			found = append(found, kw)
		}
	}
	return found
}

func capsRatio(text string) float64 {
	letters, uppers := 0, 0
	for _, r := range text {
		if unicode.IsLetter(r) {
			letters++
			if unicode.IsUpper(r) {
				uppers++
			}
		}
	}
	if letters == 0 {
		return 0
	}
	return float64(uppers) / float64(letters)
}

func mentionsDeadline(text string) bool {
	for _, re := range deadlineRes {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

func joinFirst(items []string, n int) string {
	if len(items) > n {
		items = items[:n]
	}
	return strings.Join(items, ", ")
}

func defaultString(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func defaultWeight(w int) int {
	if w == 0 {
		return 1
	}
	return w
}
