package domain

import "time"

// Knowledge base entry sources.
const (
	KBSourceResolvedTicket = "resolved_ticket"
	KBSourceFAQ            = "faq"
	KBSourceTemplate       = "template"
	KBSourceManual         = "manual"
)

// KBEntry is a document in the knowledge base. The embedding is the
// vector representation used for similarity search; a zero vector means
// embedding failed and the entry never matches by similarity.
type KBEntry struct {
	ID        string            `json:"id"`
	Title     string            `json:"title,omitempty"`
	Content   string            `json:"content"`
	Source    string            `json:"source"`
	Category  string            `json:"category,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Embedding []float64         `json:"-"`
	CreatedAt time.Time         `json:"created_at"`
}

// KBMatch is a search hit with its similarity score in [0, 1].
type KBMatch struct {
	Entry KBEntry `json:"entry"`
	Score float64 `json:"score"`
}
