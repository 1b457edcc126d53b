package origin

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	apperr "github.com/yungbote/frontline-backend/internal/pkg/errors"
)

// Item is one candidate listed by a source.
type Item struct {
	Title       string     `json:"title"`
	Link        string     `json:"link"`
	Description string     `json:"description,omitempty"`
	UploadDate  *time.Time `json:"upload_date,omitempty"`
}

// Metadata is what an origin knows about a single item page.
type Metadata struct {
	Title        string
	Description  string
	Text         string
	Thumbnail    string
	VideoURL     string
	UploaderID   string
	UploaderName string
	UploadDate   *time.Time
}

type Origin interface {
	Platform() string
	FetchLatestItems(ctx context.Context, handle string, limit int) ([]Item, error)
	FetchMetadata(ctx context.Context, itemURL string) (*Metadata, error)
}

// Searcher is implemented by origins that can run a free-text query (historical discovery).
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]Item, error)
}

// Registry maps a platform name to its origin.
type Registry struct {
	mu      sync.RWMutex
	origins map[string]Origin
}

func NewRegistry(origins ...Origin) *Registry {
	r := &Registry{origins: map[string]Origin{}}
	for _, o := range origins {
		r.Register(o)
	}
	return r
}

func (r *Registry) Register(o Origin) {
	if o == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.origins[strings.ToLower(strings.TrimSpace(o.Platform()))] = o
}

// Get fails with ErrPermanent for unknown platforms.
func (r *Registry) Get(platform string) (Origin, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	o, ok := r.origins[strings.ToLower(strings.TrimSpace(platform))]
	if !ok {
		return nil, fmt.Errorf("no content origin for platform %q: %w", platform, apperr.ErrPermanent)
	}
	return o, nil
}

// Searchers lists origins that support Search, sorted by platform.
func (r *Registry) Searchers() []Searcher {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.origins))
	for k := range r.origins {
		names = append(names, k)
	}
	sort.Strings(names)
	var out []Searcher
	for _, k := range names {
		if s, ok := r.origins[k].(Searcher); ok {
			out = append(out, s)
		}
	}
	return out
}

func (r *Registry) Platforms() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.origins))
	for k := range r.origins {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
