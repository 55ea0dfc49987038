package sentiment

import (
	"context"
	"errors"
	"testing"

	"github.com/novadesk/triage/internal/domain"
	"github.com/novadesk/triage/internal/llm"
)

type fakeChat struct {
	reply string
	err   error
}

func (f *fakeChat) Chat(ctx context.Context, req llm.ChatRequest) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

func TestAnalyzeEmptyText(t *testing.T) {
	a := New(nil, 0)
	got := a.Analyze(context.Background(), "   ")

	if got.Label != domain.SentimentNeutral {
		t.Errorf("Label = %s, want neutral", got.Label)
	}
	if got.Score != 0 || got.AngerLevel != 0 {
		t.Errorf("Score/Anger = %v/%v, want 0/0", got.Score, got.AngerLevel)
	}
	if got.Satisfaction != 3 {
		t.Errorf("Satisfaction = %v, want 3", got.Satisfaction)
	}
	if got.Method != "default" {
		t.Errorf("Method = %s, want default", got.Method)
	}
}

func TestAnalyzeRules(t *testing.T) {
	a := New(nil, 0)

	tests := []struct {
		name      string
		text      string
		wantLabel domain.Sentiment
	}{
		{
			"positive",
			"Thank you so much, the support was excellent and I am very happy with the result.",
			domain.SentimentPositive,
		},
		{
			"negative",
			"This is a terrible experience, I am very disappointed and unhappy with the result here.",
			domain.SentimentNegative,
		},
		{
			"neutral",
			"I would like to know when my subscription renews next month.",
			domain.SentimentNeutral,
		},
		{
			"angry caps and exclamations",
			"THIS IS ABSOLUTELY UNACCEPTABLE!!! WORST SERVICE EVER!!! I WILL FILE A LAWSUIT!!!",
			domain.SentimentAngry,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := a.Analyze(context.Background(), tt.text)
			if got.Label != tt.wantLabel {
				t.Errorf("Label = %s, want %s (score=%v anger=%v)", got.Label, tt.wantLabel, got.Score, got.AngerLevel)
			}
			if got.Method != "rules" {
				t.Errorf("Method = %s, want rules", got.Method)
			}
			if got.Score < -1 || got.Score > 1 {
				t.Errorf("Score %v out of range", got.Score)
			}
			if got.AngerLevel < 0 || got.AngerLevel > 1 {
				t.Errorf("AngerLevel %v out of range", got.AngerLevel)
			}
			if got.Satisfaction < 1 || got.Satisfaction > 5 {
				t.Errorf("Satisfaction %v out of range", got.Satisfaction)
			}
		})
	}
}

func TestAnalyzeLabelThresholds(t *testing.T) {
	a := New(nil, 0)

	// Two positive hits against one negative: (2-1)/4 = 0.25, which sits
	// above the 0.2 positive cutoff.
	got := a.Analyze(context.Background(), "The support was great and I am happy, though I had a problem yesterday.")
	if got.Score != 0.25 {
		t.Fatalf("Score = %v, want 0.25", got.Score)
	}
	if got.Label != domain.SentimentPositive {
		t.Errorf("Label = %s, want positive above 0.2", got.Label)
	}

	// Mirror case: (1-2)/4 = -0.25, below the -0.2 negative cutoff.
	got = a.Analyze(context.Background(), "Thank you, but the update was bad and caused a problem.")
	if got.Score != -0.25 {
		t.Fatalf("Score = %v, want -0.25", got.Score)
	}
	if got.Label != domain.SentimentNegative {
		t.Errorf("Label = %s, want negative below -0.2", got.Label)
	}
}

func TestAnalyzeAngerOverridesPolarity(t *testing.T) {
	a := New(nil, 0)
	// Positive words but screaming: anger wins.
	got := a.Analyze(context.Background(), "GREAT JUST GREAT THANKS FOR NOTHING!!!!! ABSOLUTELY RIDICULOUS SERVICE!!!!")
	if got.Label != domain.SentimentAngry {
		t.Errorf("Label = %s, want angry (anger=%v)", got.Label, got.AngerLevel)
	}
	if got.Satisfaction > 2 {
		t.Errorf("Satisfaction = %v, want low for angry", got.Satisfaction)
	}
}

func TestAnalyzeShortTextNoCapsSkew(t *testing.T) {
	a := New(nil, 0)
	// "OK" is all caps but far too short for the caps heuristic.
	got := a.Analyze(context.Background(), "OK")
	if got.Label == domain.SentimentAngry {
		t.Errorf("short caps text misread as angry (anger=%v)", got.AngerLevel)
	}
}

func TestAnalyzeAIPath(t *testing.T) {
	a := New(&fakeChat{reply: `{"sentiment": "negative", "score": -0.6, "anger_level": 0.3, "satisfaction_prediction": 2}`}, 0)
	got := a.Analyze(context.Background(), "The export feature stopped working after the update.")

	if got.Label != domain.SentimentNegative {
		t.Errorf("Label = %s, want negative", got.Label)
	}
	if got.Method != "ai" {
		t.Errorf("Method = %s, want ai", got.Method)
	}
	if got.Score != -0.6 {
		t.Errorf("Score = %v, want -0.6", got.Score)
	}
}

func TestAnalyzeAIHighAngerForcesAngry(t *testing.T) {
	a := New(&fakeChat{reply: `{"sentiment": "negative", "score": -0.9, "anger_level": 0.85, "satisfaction_prediction": 1}`}, 0)
	got := a.Analyze(context.Background(), "some furious text")
	if got.Label != domain.SentimentAngry {
		t.Errorf("Label = %s, want angry when anger_level >= 0.7", got.Label)
	}
}

func TestAnalyzeAIErrorFallsBack(t *testing.T) {
	a := New(&fakeChat{err: errors.New("timeout")}, 0)
	got := a.Analyze(context.Background(), "Thank you, everything is perfect and amazing!")
	if got.Method != "rules" {
		t.Errorf("Method = %s, want rules on AI failure", got.Method)
	}
	if got.Label != domain.SentimentPositive {
		t.Errorf("Label = %s, want positive", got.Label)
	}
}
