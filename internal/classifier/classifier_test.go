package classifier

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/novadesk/triage/internal/domain"
	"github.com/novadesk/triage/internal/llm"
)

func setupTestRedis(t *testing.T) (*redis.Client, func()) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return client, func() {
		client.Close()
		mr.Close()
	}
}

type fakeChat struct {
	reply string
	err   error
	calls int
}

func (f *fakeChat) Chat(ctx context.Context, req llm.ChatRequest) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

func TestClassifyEmptyText(t *testing.T) {
	c := New(nil, nil, 0)
	got := c.Classify(context.Background(), "", "   ")

	if got.Category != domain.CategoryGeneralInquiry {
		t.Errorf("Category = %s, want general_inquiry", got.Category)
	}
	if got.Confidence != 0.0 {
		t.Errorf("Confidence = %v, want 0", got.Confidence)
	}
	if got.Method != "default" {
		t.Errorf("Method = %s, want default", got.Method)
	}
}

func TestClassifyRuleFallback(t *testing.T) {
	c := New(nil, nil, 0)

	tests := []struct {
		name    string
		subject string
		content string
		want    domain.Category
	}{
		{"billing", "Invoice question", "I was charged twice on my last invoice, please check the payment.", domain.CategoryBillingQuestion},
		{"account", "Login", "I cannot login to my account, password reset does not arrive.", domain.CategoryAccountManagement},
		{"no keywords", "Hi", "Just wanted to say hello to the team.", domain.CategoryGeneralInquiry},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Classify(context.Background(), tt.subject, tt.content)
			if got.Category != tt.want {
				t.Errorf("Category = %s, want %s", got.Category, tt.want)
			}
			if got.Method != "rules" {
				t.Errorf("Method = %s, want rules", got.Method)
			}
			if got.Confidence < 0 || got.Confidence > 1 {
				t.Errorf("Confidence %v out of range", got.Confidence)
			}
		})
	}
}

func TestClassifyRuleFallbackCapsConfidence(t *testing.T) {
	c := New(nil, nil, 0)
	// Many keyword hits must still cap at 0.9.
	content := "error failure not working broken crash bug issue problem glitch defective"
	got := c.Classify(context.Background(), "", content)
	if got.Confidence > 0.9 {
		t.Errorf("Confidence = %v, want <= 0.9", got.Confidence)
	}
}

func TestClassifyAIPath(t *testing.T) {
	chat := &fakeChat{reply: `{
		"primary_category": "bug_report",
		"confidence": 0.85,
		"all_categories": {"bug_report": 0.85, "technical_issue": 0.4},
		"reasoning": "Crash on export"
	}`}
	c := New(chat, NewMemoryCache(time.Minute), 0)

	got := c.Classify(context.Background(), "App crashes", "The app crashes when I export a report.")
	if got.Category != domain.CategoryBugReport {
		t.Errorf("Category = %s, want bug_report", got.Category)
	}
	if got.Method != "ai" {
		t.Errorf("Method = %s, want ai", got.Method)
	}
	if len(got.Secondary) != 1 || got.Secondary[0].Category != domain.CategoryTechnicalIssue {
		t.Errorf("Secondary = %v", got.Secondary)
	}

	// Second call must come from cache without another AI call.
	again := c.Classify(context.Background(), "App crashes", "The app crashes when I export a report.")
	if again.Method != "ai_cached" {
		t.Errorf("Method = %s, want ai_cached", again.Method)
	}
	if chat.calls != 1 {
		t.Errorf("chat.calls = %d, want 1", chat.calls)
	}
}

func TestClassifyAIUnknownCategory(t *testing.T) {
	chat := &fakeChat{reply: `{"primary_category": "alien_invasion", "confidence": 0.9}`}
	c := New(chat, nil, 0)

	got := c.Classify(context.Background(), "", "strange text")
	if got.Category != domain.CategoryGeneralInquiry {
		t.Errorf("Category = %s, want general_inquiry for unknown AI category", got.Category)
	}
	if got.Method != "ai" {
		t.Errorf("Method = %s, want ai", got.Method)
	}
}

func TestClassifyAIErrorFallsBackToRules(t *testing.T) {
	chat := &fakeChat{err: errors.New("rate limited")}
	c := New(chat, nil, 0)

	got := c.Classify(context.Background(), "", "I want a refund for my broken order")
	if got.Method != "rules" {
		t.Errorf("Method = %s, want rules on AI failure", got.Method)
	}
}

func TestClassifyAIMarkdownFencedJSON(t *testing.T) {
	chat := &fakeChat{reply: "```json\n{\"primary_category\": \"complaint\", \"confidence\": 0.7}\n```"}
	c := New(chat, nil, 0)

	got := c.Classify(context.Background(), "", "this service is terrible")
	if got.Category != domain.CategoryComplaint {
		t.Errorf("Category = %s, want complaint", got.Category)
	}
}

func TestRedisCacheRoundTrip(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	defer cleanup()

	cache := NewRedisCache(client, time.Hour)
	ctx := context.Background()

	key := CacheKey("some ticket text")
	if _, ok := cache.Get(ctx, key); ok {
		t.Fatal("unexpected cache hit")
	}

	want := domain.Classification{
		Category:   domain.CategoryBillingQuestion,
		Confidence: 0.8,
		Method:     "ai",
	}
	cache.Set(ctx, key, want)

	got, ok := cache.Get(ctx, key)
	if !ok {
		t.Fatal("expected cache hit")
	}
	if got.Category != want.Category || got.Confidence != want.Confidence {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestCacheKeyStable(t *testing.T) {
	a := CacheKey("hello world")
	b := CacheKey("hello world")
	if a != b {
		t.Errorf("CacheKey not deterministic: %s vs %s", a, b)
	}
	if CacheKey("other") == a {
		t.Error("different text produced same key")
	}
}
