package priority

import (
	"testing"

	"github.com/novadesk/triage/internal/domain"
)

func TestScoreBaseline(t *testing.T) {
	s := New(nil)
	got := s.Score(ScoreInput{
		Text:         "I have a question about my subscription settings.",
		Sentiment:    domain.SentimentNeutral,
		CustomerTier: domain.TierStandard,
	})

	if got.Score != 3 {
		t.Errorf("Score = %d, want 3 (base, no factors)", got.Score)
	}
	if got.Level != "medium" {
		t.Errorf("Level = %s, want medium", got.Level)
	}
	if len(got.Factors) != 0 {
		t.Errorf("Factors = %v, want none", got.Factors)
	}
}

func TestScoreScenarios(t *testing.T) {
	s := New(nil)

	tests := []struct {
		name      string
		in        ScoreInput
		wantScore int
		wantLevel string
	}{
		{
			name: "angry vip outage",
			in: ScoreInput{
				Text:         "URGENT!!! The whole system is down, this is an emergency!!!",
				Sentiment:    domain.SentimentAngry,
				AngerLevel:   0.9,
				CustomerTier: domain.TierVIP,
				Category:     domain.CategoryTechnicalIssue,
			},
			// base 3 +2 urgent +2 angry +1 anger +2 vip +1 category... clamps at 5
			wantScore: 5,
			wantLevel: "critical",
		},
		{
			name: "free tier feature request",
			in: ScoreInput{
				Text:         "It would be nice to have a dark mode option someday.",
				Sentiment:    domain.SentimentNeutral,
				CustomerTier: domain.TierFree,
				Category:     domain.CategoryFeatureRequest,
			},
			// base 3 -1 free -1 feature_request
			wantScore: 1,
			wantLevel: "minimal",
		},
		{
			name: "broken feature negative sentiment",
			in: ScoreInput{
				Text:         "The export is broken and my report is missing.",
				Sentiment:    domain.SentimentNegative,
				CustomerTier: domain.TierStandard,
			},
			// base 3 +1 high keyword +1 negative
			wantScore: 5,
			wantLevel: "critical",
		},
		{
			name: "premium billing question",
			in: ScoreInput{
				Text:         "Could you explain the charge on my last invoice?",
				Sentiment:    domain.SentimentNeutral,
				CustomerTier: domain.TierPremium,
				Category:     domain.CategoryBillingQuestion,
			},
			// base 3 +1 premium +1 billing category
			wantScore: 5,
			wantLevel: "critical",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := s.Score(tt.in)
			if got.Score != tt.wantScore {
				t.Errorf("Score = %d, want %d (factors: %v)", got.Score, tt.wantScore, got.Factors)
			}
			if got.Level != tt.wantLevel {
				t.Errorf("Level = %s, want %s", got.Level, tt.wantLevel)
			}
		})
	}
}

func TestScoreBounds(t *testing.T) {
	s := New(nil)

	// Everything negative stacked must not go below 1.
	low := s.Score(ScoreInput{
		Text:         "maybe add an idea later",
		CustomerTier: domain.TierFree,
		Category:     domain.CategoryFeatureRequest,
	})
	if low.Score < 1 {
		t.Errorf("Score = %d, must be >= 1", low.Score)
	}

	// Everything positive stacked must not exceed 5.
	high := s.Score(ScoreInput{
		Text:         "URGENT EMERGENCY!!! SYSTEM DOWN!!! DEADLINE TODAY!!!",
		Sentiment:    domain.SentimentAngry,
		AngerLevel:   1.0,
		CustomerTier: domain.TierEnterprise,
		Category:     domain.CategoryComplaint,
	})
	if high.Score > 5 {
		t.Errorf("Score = %d, must be <= 5", high.Score)
	}
	if high.Level != "critical" {
		t.Errorf("Level = %s, want critical", high.Level)
	}
}

func TestScoreUrgentSuppressesHighKeyword(t *testing.T) {
	s := New(nil)
	got := s.Score(ScoreInput{
		Text:         "This is urgent, the login is broken.",
		CustomerTier: domain.TierStandard,
	})

	for _, f := range got.Factors {
		if f.Name == "high_priority_keyword" {
			t.Error("high_priority_keyword must not fire when urgent_keyword fired")
		}
	}
}

func TestScoreFactorOrder(t *testing.T) {
	s := New(nil)
	got := s.Score(ScoreInput{
		Text:         "urgent!!! DEADLINE is tomorrow",
		Sentiment:    domain.SentimentAngry,
		AngerLevel:   0.8,
		CustomerTier: domain.TierVIP,
		Category:     domain.CategoryComplaint,
	})

	want := []string{
		"urgent_keyword",
		"sentiment_angry",
		"high_anger",
		"customer_tier_vip",
		"critical_category_complaint",
		"multiple_exclamations",
		"deadline_mention",
	}
	if len(got.Factors) != len(want) {
		t.Fatalf("got %d factors %v, want %d", len(got.Factors), got.Factors, len(want))
	}
	for i, name := range want {
		if got.Factors[i].Name != name {
			t.Errorf("factor[%d] = %s, want %s", i, got.Factors[i].Name, name)
		}
	}
}

func TestScoreCustomRules(t *testing.T) {
	s := New([]CustomRule{
		{Name: "security_incident", Type: "keyword", Keywords: []string{"security", "breach"}, Weight: 2},
		{Name: "beta_customer", Type: "customer_field", Field: "program", Value: "beta", Weight: -1},
	})

	got := s.Score(ScoreInput{
		Text:         "I think there was a security breach in my account area.",
		CustomerTier: domain.TierStandard,
		Metadata:     map[string]string{"program": "beta"},
	})

	names := map[string]int{}
	for _, f := range got.Factors {
		names[f.Name] = f.Weight
	}
	if names["security_incident"] != 2 {
		t.Errorf("security_incident weight = %d, want 2", names["security_incident"])
	}
	if names["beta_customer"] != -1 {
		t.Errorf("beta_customer weight = %d, want -1", names["beta_customer"])
	}
}
