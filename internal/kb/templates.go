package kb

import (
	"crypto/md5"
	"fmt"
	"strings"
	"sync"

	"github.com/osteele/liquid"

	"github.com/novadesk/triage/internal/domain"
)

// TemplateRenderer renders response templates with Liquid. Parsed
// templates are cached by content hash.
type TemplateRenderer struct {
	engine *liquid.Engine
	cache  sync.Map // map[string]*liquid.Template
}

// NewTemplateRenderer creates a renderer with support filters registered.
func NewTemplateRenderer() *TemplateRenderer {
	engine := liquid.NewEngine()

	// {{ customer_name | default: "there" }}
	engine.RegisterFilter("default", func(value interface{}, defaultVal string) interface{} {
		if value == nil {
			return defaultVal
		}
		s := fmt.Sprintf("%v", value)
		if s == "" || s == "<nil>" {
			return defaultVal
		}
		return value
	})

	engine.RegisterFilter("capitalize", func(s string) string {
		if len(s) == 0 {
			return s
		}
		return strings.ToUpper(string(s[0])) + strings.ToLower(s[1:])
	})

	return &TemplateRenderer{engine: engine}
}

// Render renders a template source against a ticket. Bindings expose the
// ticket fields templates commonly reference.
func (r *TemplateRenderer) Render(source string, t *domain.Ticket) (string, error) {
	tmpl, err := r.parse(source)
	if err != nil {
		return "", fmt.Errorf("parse template: %w", err)
	}

	out, err := tmpl.RenderString(ticketBindings(t))
	if err != nil {
		return "", fmt.Errorf("render template: %w", err)
	}
	return strings.TrimSpace(out), nil
}

func (r *TemplateRenderer) parse(source string) (*liquid.Template, error) {
	key := fmt.Sprintf("%x", md5.Sum([]byte(source)))
	if cached, ok := r.cache.Load(key); ok {
		return cached.(*liquid.Template), nil
	}
	tmpl, err := r.engine.ParseString(source)
	if err != nil {
		return nil, err
	}
	r.cache.Store(key, tmpl)
	return tmpl, nil
}

func ticketBindings(t *domain.Ticket) map[string]interface{} {
	if t == nil {
		return map[string]interface{}{}
	}
	return map[string]interface{}{
		"ticket_id":     t.ID,
		"subject":       t.Subject,
		"category":      string(t.Category),
		"priority":      t.Priority,
		"customer_name": t.CustomerName,
		"customer_tier": string(t.CustomerTier),
		"language":      t.Language,
	}
}
