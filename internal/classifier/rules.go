package classifier

import (
	"math"
	"sort"
	"strings"

	"github.com/novadesk/triage/internal/domain"
)

// Keyword lists per category for the rule-based fallback. English plus
// the Turkish terms our support inbox actually sees.
var keywordMap = map[domain.Category][]string{
	domain.CategoryTechnicalIssue: {
		"error", "failure", "not working", "broken", "crash",
		"bug", "issue", "problem", "glitch", "defective",
		"hata", "çalışmıyor", "bozuk", "sorun",
	},
	domain.CategoryBillingQuestion: {
		"invoice", "payment", "charge", "price", "cost",
		"bill", "receipt", "subscription", "fee", "refund",
		"fatura", "ödeme", "ücret", "abonelik",
	},
	domain.CategoryFeatureRequest: {
		"feature", "suggestion", "add", "request", "improve",
		"enhancement", "idea", "would be nice",
		"özellik", "öneri", "eklenmeli",
	},
	domain.CategoryBugReport: {
		"bug", "defect", "flaw", "wrong", "unexpected",
		"error", "glitch", "malfunction",
		"kusur", "beklenmedik",
	},
	domain.CategoryAccountManagement: {
		"account", "password", "login", "profile", "access",
		"register", "signup", "signin", "auth",
		"hesap", "şifre", "giriş", "profil",
	},
	domain.CategoryReturnRefund: {
		"return", "refund", "exchange", "cancel", "money back",
		"reimbursement",
		"iade", "geri ödeme", "değişim", "iptal",
	},
	domain.CategoryComplaint: {
		"complaint", "unhappy", "terrible", "bad", "worst",
		"disappointed", "awful", "horrible", "upset", "angry",
		"şikayet", "berbat", "memnun değilim", "rezalet",
	},
}

// classifyByRules scores each category by keyword hits: 0.2 per hit,
// capped at 0.9, with general_inquiry floored at 0.3 so it wins when
// nothing else matches. Secondary categories are the remaining non-zero
// scores normalized against the total.
func classifyByRules(text string) domain.Classification {
	lower := strings.ToLower(text)

	scores := make(map[domain.Category]float64, len(keywordMap)+1)
	for category, keywords := range keywordMap {
		hits := 0
		for _, kw := range keywords {
			if strings.Contains(lower, kw) {
				hits++
			}
		}
		scores[category] = math.Min(float64(hits)*0.2, 0.9)
	}
	scores[domain.CategoryGeneralInquiry] = 0.3

	best := domain.CategoryGeneralInquiry
	bestScore := scores[best]
	for _, category := range domain.Categories {
		if scores[category] > bestScore {
			best = category
			bestScore = scores[category]
		}
	}

	total := 0.0
	for _, s := range scores {
		total += s
	}
	if total == 0 {
		total = 1
	}

	var secondary []domain.CategoryScore
	for category, s := range scores {
		if category == best || s <= 0 {
			continue
		}
		secondary = append(secondary, domain.CategoryScore{
			Category:   category,
			Confidence: round3(s / total),
		})
	}
	sort.Slice(secondary, func(i, j int) bool {
		if secondary[i].Confidence != secondary[j].Confidence {
			return secondary[i].Confidence > secondary[j].Confidence
		}
		return secondary[i].Category < secondary[j].Category
	})

	return domain.Classification{
		Category:   best,
		Confidence: round3(bestScore),
		Secondary:  secondary,
		Reasoning:  "Rule-based classification (AI fallback)",
		Method:     "rules",
	}
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
