package trends

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/frontline-backend/internal/data/repos"
	"github.com/yungbote/frontline-backend/internal/pkg/dbctx"
	"github.com/yungbote/frontline-backend/internal/pkg/logger"
)

type Config struct {
	// Window is how far back event text is read.
	Window time.Duration
	// Top caps the keywords kept per analysis.
	Top int
	// MinCount is the mentions a word needs before it is learned.
	MinCount int
	// MaxEvents caps the events read per analysis.
	MaxEvents int
}

func DefaultConfig() Config {
	return Config{
		Window:    24 * time.Hour,
		Top:       20,
		MinCount:  3,
		MaxEvents: 1000,
	}
}

// Count is one keyword and its mentions.
type Count struct {
	Keyword string
	Count   int
}

// Learner keeps a per-war set of trending keywords derived from recently ingested events.
type Learner struct {
	db     *gorm.DB
	log    *logger.Logger
	events repos.EventRepo
	trends repos.TrendRepo
	cfg    Config
}

func NewLearner(db *gorm.DB, baseLog *logger.Logger, events repos.EventRepo, trends repos.TrendRepo, cfg Config) *Learner {
	def := DefaultConfig()
	if cfg.Window <= 0 {
		cfg.Window = def.Window
	}
	if cfg.Top <= 0 {
		cfg.Top = def.Top
	}
	if cfg.MinCount <= 0 {
		cfg.MinCount = def.MinCount
	}
	if cfg.MaxEvents <= 0 {
		cfg.MaxEvents = def.MaxEvents
	}
	return &Learner{
		db:     db,
		log:    baseLog.With("service", "TrendLearner"),
		events: events,
		trends: trends,
		cfg:    cfg,
	}
}

// Analyze counts words in the war's events ingested within Window of now and stores the top
// ones as active trends. Earlier trends that did not recur are deactivated. With nothing above
// MinCount the stored set is left as it was.
func (l *Learner) Analyze(ctx context.Context, warID uuid.UUID, now time.Time) ([]string, error) {
	evs, err := l.events.ListCreatedSince(dbctx.Context{Ctx: ctx}, warID, now.Add(-l.cfg.Window), l.cfg.MaxEvents)
	if err != nil {
		return nil, fmt.Errorf("list recent events: %w", err)
	}
	if len(evs) == 0 {
		return nil, nil
	}
	texts := make([]string, 0, 2*len(evs))
	for _, ev := range evs {
		texts = append(texts, ev.Title, ev.Description)
	}
	counts := Keywords(texts, l.cfg.Top, l.cfg.MinCount)
	if len(counts) == 0 {
		return nil, nil
	}

	learned := make([]string, 0, len(counts))
	err = l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		learned = learned[:0]
		for _, c := range counts {
			if err := l.trends.Upsert(dbc, warID, c.Keyword, float64(c.Count), now); err != nil {
				return fmt.Errorf("upsert trend %q: %w", c.Keyword, err)
			}
			learned = append(learned, c.Keyword)
		}
		if _, err := l.trends.DeactivateExcept(dbc, warID, learned); err != nil {
			return fmt.Errorf("deactivate trends: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	l.log.Info("trends learned", "war_id", warID, "events", len(evs), "keywords", len(learned))
	return learned, nil
}

// Active returns up to n learned keywords for the war, strongest first.
func (l *Learner) Active(ctx context.Context, warID uuid.UUID, n int) ([]string, error) {
	rows, err := l.trends.ListActive(dbctx.Context{Ctx: ctx}, warID, n)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.Keyword)
	}
	return out, nil
}

var wordRe = regexp.MustCompile(`\b[a-z]{3,}\b`)

// Keywords counts lower-cased words of three or more letters outside the stop list and returns
// up to top of them with at least minCount mentions, most frequent first.
func Keywords(texts []string, top, minCount int) []Count {
	freq := map[string]int{}
	for _, t := range texts {
		for _, w := range wordRe.FindAllString(strings.ToLower(t), -1) {
			if stopWords[w] {
				continue
			}
			freq[w]++
		}
	}
	out := make([]Count, 0, len(freq))
	for w, n := range freq {
		if n >= minCount {
			out = append(out, Count{Keyword: w, Count: n})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Keyword < out[j].Keyword
	})
	if top > 0 && len(out) > top {
		out = out[:top]
	}
	return out
}
