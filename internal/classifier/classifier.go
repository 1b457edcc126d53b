package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/yungbote/frontline-backend/internal/domain/events"
	apperr "github.com/yungbote/frontline-backend/internal/pkg/errors"
)

// ErrExhausted means every provider in the chain failed or timed out. Callers treat the item
// as rejected, not as a task failure.
var ErrExhausted = fmt.Errorf("classifier: all providers failed: %w", apperr.ErrRejected)

type Result struct {
	Relevant      bool     `json:"relevant"`
	Category      string   `json:"category"`
	Locations     []string `json:"locations"`
	Captured      bool     `json:"captured"`
	Victor        string   `json:"victor"`
	Summary       string   `json:"summary"`
	EvidenceScore int      `json:"evidence_score"`
	DedupKey      string   `json:"key"`
}

type Classifier interface {
	Classify(ctx context.Context, contextText, originURL string) (*Result, error)
}

var categories = map[string]bool{
	events.CategoryCombat:     true,
	events.CategoryClash:      true,
	events.CategoryPolitical:  true,
	events.CategoryCasualties: true,
	events.CategoryProtest:    true,
}

// Normalize clamps the evidence score, upper-cases the category and de-duplicates locations
// in first-seen order.
func (r *Result) Normalize() {
	if r == nil {
		return
	}
	if r.EvidenceScore < 1 {
		r.EvidenceScore = 1
	}
	if r.EvidenceScore > 10 {
		r.EvidenceScore = 10
	}
	r.Category = strings.ToUpper(strings.TrimSpace(r.Category))
	if !categories[r.Category] {
		r.Category = events.CategoryCombat
	}
	seen := map[string]bool{}
	locs := make([]string, 0, len(r.Locations))
	for _, l := range r.Locations {
		l = strings.TrimSpace(l)
		k := strings.ToLower(l)
		if l == "" || seen[k] {
			continue
		}
		seen[k] = true
		locs = append(locs, l)
	}
	r.Locations = locs
	r.Victor = strings.TrimSpace(r.Victor)
	if strings.EqualFold(r.Victor, "none") {
		r.Victor = ""
	}
	r.Summary = strings.TrimSpace(r.Summary)
	r.DedupKey = strings.TrimSpace(r.DedupKey)
}

var jsonObject = regexp.MustCompile(`(?s)\{.*\}`)

// ParseResult accepts a bare JSON object or one wrapped in markdown fences or prose.
func ParseResult(text string) (*Result, error) {
	text = strings.TrimSpace(text)
	if i := strings.Index(text, "```json"); i >= 0 {
		text = text[i+len("```json"):]
		if j := strings.Index(text, "```"); j >= 0 {
			text = text[:j]
		}
	} else if i := strings.Index(text, "```"); i >= 0 {
		text = text[i+3:]
		if j := strings.Index(text, "```"); j >= 0 {
			text = text[:j]
		}
	}
	raw := jsonObject.FindString(text)
	if raw == "" {
		return nil, fmt.Errorf("classifier: no json object in response")
	}
	var res Result
	if err := json.Unmarshal([]byte(raw), &res); err != nil {
		return nil, fmt.Errorf("classifier: decode response: %w", err)
	}
	res.Normalize()
	return &res, nil
}
