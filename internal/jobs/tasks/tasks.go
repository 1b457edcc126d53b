package tasks

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	TypeCrawlSource      = "crawl_source"
	TypeProcessItem      = "process_item"
	TypeHistoricalSearch = "historical_search"
)

const DateLayout = "2006-01-02"

type CrawlSource struct {
	SourceID   uuid.UUID `json:"source_id"`
	WarID      uuid.UUID `json:"war_id"`
	TargetDate string    `json:"target_date"`
	// Since is the source's last_crawled_at (unix seconds) when the crawl was scheduled,
	// empty for a source never crawled.
	Since string `json:"since,omitempty"`
}

// CrawlSince formats a last-crawled time for CrawlSource.Since.
func CrawlSince(lastCrawled *time.Time) string {
	if lastCrawled == nil {
		return ""
	}
	return strconv.FormatInt(lastCrawled.UTC().Unix(), 10)
}

// DedupeKey changes once the crawl has run, so a source whose cooldown is shorter than a day
// can be crawled again for the same target date.
func (p CrawlSource) DedupeKey() string {
	since := p.Since
	if since == "" {
		since = "never"
	}
	return TypeCrawlSource + ":" + p.SourceID.String() + ":" + p.TargetDate + ":" + since
}

type HistoricalSearch struct {
	WarID      uuid.UUID `json:"war_id"`
	TargetDate string    `json:"target_date"`
}

func (p HistoricalSearch) DedupeKey() string {
	return TypeHistoricalSearch + ":" + p.WarID.String() + ":" + p.TargetDate
}

// ProcessItem is one candidate item. Strict selects the discard-on-miss geocoding policy.
type ProcessItem struct {
	WarID      uuid.UUID  `json:"war_id"`
	SourceID   *uuid.UUID `json:"source_id,omitempty"`
	Platform   string     `json:"platform"`
	Title      string     `json:"title"`
	Link       string     `json:"link"`
	UploadDate *time.Time `json:"upload_date,omitempty"`
	TargetDate string     `json:"target_date"`
	Strict     bool       `json:"strict"`
}

// DedupeKey is keyed on the item URL so one link is processed once per war.
func (p ProcessItem) DedupeKey() string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(p.Link)))
	return TypeProcessItem + ":" + p.WarID.String() + ":" + hex.EncodeToString(sum[:16])
}

func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, strings.TrimSpace(s), time.UTC)
}

func FormatDate(t time.Time) string {
	return t.UTC().Format(DateLayout)
}

// ItemEnqueuer queues candidate items found by a crawl or a search.
type ItemEnqueuer interface {
	EnqueueItems(ctx context.Context, items []ProcessItem) (int, error)
}
