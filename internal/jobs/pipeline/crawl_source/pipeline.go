package crawl_source

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	types "github.com/yungbote/frontline-backend/internal/domain"
	jobrt "github.com/yungbote/frontline-backend/internal/jobs/runtime"
	"github.com/yungbote/frontline-backend/internal/jobs/tasks"
	"github.com/yungbote/frontline-backend/internal/observability"
	"github.com/yungbote/frontline-backend/internal/pkg/dbctx"
	apperr "github.com/yungbote/frontline-backend/internal/pkg/errors"
)

type Result struct {
	Skipped  string `json:"skipped,omitempty"`
	Found    int    `json:"found"`
	Enqueued int    `json:"enqueued"`
}

func (p *Pipeline) Run(jc *jobrt.Context) error {
	if jc == nil || jc.Task == nil {
		return nil
	}
	var payload tasks.CrawlSource
	if err := jc.Decode(&payload); err != nil {
		return err
	}
	if payload.SourceID == uuid.Nil || payload.WarID == uuid.Nil {
		return fmt.Errorf("crawl_source: missing source_id or war_id: %w", apperr.ErrPermanent)
	}
	ctx, span := observability.StartSpan(jc.Ctx, "job.crawl_source",
		attribute.String("source_id", payload.SourceID.String()))
	defer span.End()

	dbc := dbctx.Context{Ctx: ctx}
	src, err := p.sources.GetByID(dbc, payload.SourceID)
	if err != nil {
		return err
	}
	if src == nil {
		jc.Succeed(Result{Skipped: "missing"})
		return nil
	}
	if src.Status == types.SourceStatusBanned {
		jc.Succeed(Result{Skipped: "banned"})
		return nil
	}

	org, err := p.origins.Get(src.Platform)
	if err != nil {
		return err
	}
	items, err := org.FetchLatestItems(ctx, src.Handle, p.limit)
	if err != nil {
		return fmt.Errorf("fetch %s/%s: %w", src.Platform, src.Handle, err)
	}
	if err := p.sources.MarkCrawled(dbc, src.ID, time.Now().UTC(), len(items)); err != nil {
		return fmt.Errorf("mark crawled: %w", err)
	}

	id := src.ID
	batch := make([]tasks.ProcessItem, 0, len(items))
	for _, it := range items {
		link := strings.TrimSpace(it.Link)
		if link == "" {
			continue
		}
		batch = append(batch, tasks.ProcessItem{
			WarID:      payload.WarID,
			SourceID:   &id,
			Platform:   src.Platform,
			Title:      it.Title,
			Link:       link,
			UploadDate: it.UploadDate,
			TargetDate: payload.TargetDate,
		})
	}
	n, err := p.items.EnqueueItems(ctx, batch)
	if err != nil {
		return fmt.Errorf("enqueue items: %w", err)
	}
	p.log.Info("source crawled",
		"source_id", src.ID,
		"platform", src.Platform,
		"handle", src.Handle,
		"found", len(items),
		"enqueued", n,
	)
	jc.Succeed(Result{Found: len(items), Enqueued: n})
	return nil
}
