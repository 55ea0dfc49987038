package api

import (
	"net/http"
	"strings"

	"github.com/novadesk/triage/internal/pkg/httputil"
)

type addFAQRequest struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
	Category string `json:"category"`
}

// AddFAQ stores a question/answer pair in the knowledge base.
func (h *Handlers) AddFAQ(w http.ResponseWriter, r *http.Request) {
	var req addFAQRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Question) == "" || strings.TrimSpace(req.Answer) == "" {
		httputil.BadRequest(w, "question and answer are required")
		return
	}

	entry, err := h.kb.AddFAQ(r.Context(), req.Question, req.Answer, req.Category)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.Created(w, entry)
}

// SearchKB finds knowledge base entries similar to the query text.
func (h *Handlers) SearchKB(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if strings.TrimSpace(query) == "" {
		httputil.BadRequest(w, "q is required")
		return
	}
	category := r.URL.Query().Get("category")
	limit := httputil.QueryInt(r, "limit", 5)

	matches := h.kb.FindSimilar(r.Context(), query, category, limit)
	httputil.OK(w, map[string]any{"matches": matches, "total": len(matches)})
}
