package historical_search

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/yungbote/frontline-backend/internal/ingestion/origin"
	jobrt "github.com/yungbote/frontline-backend/internal/jobs/runtime"
	"github.com/yungbote/frontline-backend/internal/jobs/tasks"
	"github.com/yungbote/frontline-backend/internal/observability"
	apperr "github.com/yungbote/frontline-backend/internal/pkg/errors"
)

type Result struct {
	Queries  []string `json:"queries"`
	Learned  int      `json:"learned,omitempty"`
	Found    int      `json:"found"`
	Enqueued int      `json:"enqueued"`
	Failed   int      `json:"failed,omitempty"`
}

// Run searches every searchable origin with the era keywords of the target year, plus any
// keywords learned from recent coverage, and queues the unique hits as strict items. Archive searches have no known source, so no ledger is fed.
func (p *Pipeline) Run(jc *jobrt.Context) error {
	if jc == nil || jc.Task == nil {
		return nil
	}
	var payload tasks.HistoricalSearch
	if err := jc.Decode(&payload); err != nil {
		return err
	}
	if payload.WarID == uuid.Nil {
		return fmt.Errorf("historical_search: missing war_id: %w", apperr.ErrPermanent)
	}
	target, err := tasks.ParseDate(payload.TargetDate)
	if err != nil {
		return fmt.Errorf("historical_search: target date %q: %w", payload.TargetDate, apperr.ErrPermanent)
	}
	ctx, span := observability.StartSpan(jc.Ctx, "job.historical_search",
		attribute.String("target_date", payload.TargetDate))
	defer span.End()

	searchers := p.origins.Searchers()
	if len(searchers) == 0 {
		return fmt.Errorf("historical_search: no searchable origin: %w", apperr.ErrPermanent)
	}

	res := Result{Queries: p.keywords.Queries(target.Year(), p.cfg.Queries)}
	for _, q := range p.learnedQueries(ctx, payload.WarID, target.Year(), res.Queries) {
		res.Queries = append(res.Queries, q)
		res.Learned++
	}
	seen := map[string]bool{}
	var batch []tasks.ProcessItem
	for _, q := range res.Queries {
		for _, s := range searchers {
			hits, err := s.Search(ctx, q, p.cfg.PerQuery)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				res.Failed++
				p.log.Warn("historical search failed", "query", q, "error", err)
				continue
			}
			res.Found += len(hits)
			for _, h := range hits {
				link := strings.TrimSpace(h.Link)
				if link == "" || seen[link] {
					continue
				}
				seen[link] = true
				batch = append(batch, tasks.ProcessItem{
					WarID:      payload.WarID,
					Platform:   platformOf(s),
					Title:      h.Title,
					Link:       link,
					UploadDate: h.UploadDate,
					TargetDate: payload.TargetDate,
					Strict:     true,
				})
			}
		}
	}
	if res.Failed > 0 && res.Found == 0 {
		return fmt.Errorf("historical_search: every search failed (%d)", res.Failed)
	}

	n, err := p.items.EnqueueItems(ctx, batch)
	if err != nil {
		return fmt.Errorf("enqueue items: %w", err)
	}
	res.Enqueued = n
	p.log.Info("historical search done",
		"war_id", payload.WarID,
		"target_date", payload.TargetDate,
		"queries", len(res.Queries),
		"found", res.Found,
		"enqueued", n,
	)
	jc.Succeed(res)
	return nil
}

// learnedQueries formats learned keywords like era queries. A lookup failure only narrows the search.
func (p *Pipeline) learnedQueries(ctx context.Context, warID uuid.UUID, year int, existing []string) []string {
	if p.learned == nil || p.cfg.Learned == 0 {
		return nil
	}
	kws, err := p.learned.Active(ctx, warID, p.cfg.Learned)
	if err != nil {
		p.log.Warn("learned keywords unavailable", "war_id", warID, "error", err)
		return nil
	}
	seen := make(map[string]bool, len(existing))
	for _, q := range existing {
		seen[q] = true
	}
	var out []string
	for _, kw := range kws {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		q := fmt.Sprintf("%s %d", kw, year)
		if seen[q] {
			continue
		}
		seen[q] = true
		out = append(out, q)
	}
	return out
}

func platformOf(s origin.Searcher) string {
	if o, ok := s.(origin.Origin); ok {
		return o.Platform()
	}
	return ""
}
