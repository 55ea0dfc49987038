// Package sentiment detects the emotional state of ticket text: a label,
// a polarity score, an anger level, and a predicted CSAT. An AI provider
// is used when configured, with a lexicon fallback. Analyze never fails.
package sentiment

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"strings"
	"unicode"

	"github.com/novadesk/triage/internal/domain"
	"github.com/novadesk/triage/internal/llm"
	"github.com/novadesk/triage/internal/textproc"
)

// Maximum text length analyzed when no bound is configured.
const defaultMaxAnalyzeChars = 2000

// Caps-ratio heuristics only fire on texts with at least this many
// letters; short texts like "OK" would skew the ratio.
const minLettersForCapsRatio = 20

// Analyzer scores ticket sentiment.
type Analyzer struct {
	chat     llm.ChatProvider // nil means rule-only mode
	maxChars int
}

// New creates an Analyzer. chat may be nil (rule-only mode). maxChars
// bounds the text analyzed; zero or negative selects the default.
func New(chat llm.ChatProvider, maxChars int) *Analyzer {
	if maxChars <= 0 {
		maxChars = defaultMaxAnalyzeChars
	}
	return &Analyzer{chat: chat, maxChars: maxChars}
}

// Analyze scores the sentiment of the given text. Empty text returns a
// neutral result with method "default". AI failures degrade to the
// lexicon rules.
func (a *Analyzer) Analyze(ctx context.Context, text string) domain.SentimentResult {
	text = strings.TrimSpace(text)
	if text == "" {
		return domain.SentimentResult{
			Label:        domain.SentimentNeutral,
			Score:        0.0,
			AngerLevel:   0.0,
			Satisfaction: 3.0,
			Method:       "default",
		}
	}

	text = textproc.Truncate(text, a.maxChars)

	if a.chat == nil {
		return analyzeByRules(text)
	}

	result, err := a.analyzeByAI(ctx, text)
	if err != nil {
		log.Printf("Sentiment: AI analysis failed, using rules: %v", err)
		return analyzeByRules(text)
	}
	return result
}

// analyzeByRules is the lexicon path.
//
// Polarity: (pos - neg) / (pos + neg + 1), naturally in (-1, 1).
// Anger: min(0.2*angryHits + 0.5*capsRatio + 0.1*exclamations, 1.0).
// An anger level of 0.7 or more forces the angry label regardless of
// polarity.
func analyzeByRules(text string) domain.SentimentResult {
	lower := strings.ToLower(text)

	pos := countHits(lower, positiveWords)
	neg := countHits(lower, negativeWords)

	score := float64(pos-neg) / float64(pos+neg+1)
	anger := angerLevel(text, lower)

	var label domain.Sentiment
	switch {
	case anger >= 0.7:
		label = domain.SentimentAngry
	case score > 0.2:
		label = domain.SentimentPositive
	case score < -0.2:
		label = domain.SentimentNegative
	default:
		label = domain.SentimentNeutral
	}

	return domain.SentimentResult{
		Label:        label,
		Score:        round3(score),
		AngerLevel:   round3(anger),
		Satisfaction: predictSatisfaction(label, score),
		Method:       "rules",
	}
}

func angerLevel(text, lower string) float64 {
	hits := countHits(lower, angryWords)

	letters, uppers := 0, 0
	for _, r := range text {
		if unicode.IsLetter(r) {
			letters++
			if unicode.IsUpper(r) {
				uppers++
			}
		}
	}
	capsRatio := 0.0
	if letters >= minLettersForCapsRatio {
		capsRatio = float64(uppers) / float64(letters)
	}

	exclamations := strings.Count(text, "!")

	return math.Min(0.2*float64(hits)+0.5*capsRatio+0.1*float64(exclamations), 1.0)
}

// predictSatisfaction estimates a 1-5 CSAT from the label and polarity.
func predictSatisfaction(label domain.Sentiment, score float64) float64 {
	base := 3.0
	switch label {
	case domain.SentimentPositive:
		base = 4.0
	case domain.SentimentNegative:
		base = 2.0
	case domain.SentimentAngry:
		base = 1.0
	}
	return clampRange(base+0.5*score, 1, 5)
}

func countHits(lower string, words []string) int {
	n := 0
	for _, w := range words {
		if strings.Contains(lower, w) {
			n++
		}
	}
	return n
}

type aiSentimentResponse struct {
	Sentiment    string  `json:"sentiment"`
	Score        float64 `json:"score"`
	AngerLevel   float64 `json:"anger_level"`
	Satisfaction float64 `json:"satisfaction_prediction"`
}

func (a *Analyzer) analyzeByAI(ctx context.Context, text string) (domain.SentimentResult, error) {
	reply, err := a.chat.Chat(ctx, llm.ChatRequest{
		System: `You are a customer support sentiment analyst. Distinguish genuine anger from
frustration: multiple exclamation marks, all-caps words, and legal threats signal
intense emotion. Always respond in valid JSON.`,
		Messages: []llm.Message{{Role: "user", Content: fmt.Sprintf(`Analyze the sentiment of this customer message:

---
%s
---

Respond in JSON format:
{
    "sentiment": "positive|neutral|negative|angry",
    "score": -1.0,
    "anger_level": 0.0,
    "satisfaction_prediction": 3
}`, text)}},
		Temperature: 0.2,
		MaxTokens:   500,
	})
	if err != nil {
		return domain.SentimentResult{}, err
	}

	var parsed aiSentimentResponse
	if err := json.Unmarshal([]byte(extractJSON(reply)), &parsed); err != nil {
		return domain.SentimentResult{}, fmt.Errorf("parse AI response: %w", err)
	}

	label := domain.Sentiment(parsed.Sentiment)
	if !domain.ValidSentiment(label) {
		label = domain.SentimentNeutral
	}

	anger := clampRange(parsed.AngerLevel, 0, 1)
	if anger >= 0.7 {
		label = domain.SentimentAngry
	}

	satisfaction := parsed.Satisfaction
	if satisfaction == 0 {
		satisfaction = predictSatisfaction(label, parsed.Score)
	}

	return domain.SentimentResult{
		Label:        label,
		Score:        clampRange(parsed.Score, -1, 1),
		AngerLevel:   anger,
		Satisfaction: clampRange(satisfaction, 1, 5),
		Method:       "ai",
	}, nil
}

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

func clampRange(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
