package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"

	"github.com/yungbote/frontline-backend/internal/bus"
	"github.com/yungbote/frontline-backend/internal/classifier"
	"github.com/yungbote/frontline-backend/internal/data/repos"
	types "github.com/yungbote/frontline-backend/internal/domain"
	"github.com/yungbote/frontline-backend/internal/gate"
	"github.com/yungbote/frontline-backend/internal/geocode"
	"github.com/yungbote/frontline-backend/internal/ingestion/origin"
	"github.com/yungbote/frontline-backend/internal/jobs/tasks"
	"github.com/yungbote/frontline-backend/internal/observability"
	"github.com/yungbote/frontline-backend/internal/pkg/dbctx"
	apperr "github.com/yungbote/frontline-backend/internal/pkg/errors"
	"github.com/yungbote/frontline-backend/internal/pkg/httpx"
	"github.com/yungbote/frontline-backend/internal/pkg/logger"
	"github.com/yungbote/frontline-backend/internal/reliability"
	"github.com/yungbote/frontline-backend/internal/territory"
)

type Outcome string

const (
	OutcomeAccepted  Outcome = "accepted"
	OutcomeRejected  Outcome = "rejected"
	OutcomeDuplicate Outcome = "duplicate"
)

// Rejection reasons.
const (
	ReasonEra         = "out_of_era"
	ReasonUnfetchable = "unfetchable"
	ReasonClassifier  = "classifier_unavailable"
	ReasonIrrelevant  = "irrelevant"
	ReasonUnlocatable = "unlocatable"
)

// Where the event date came from.
const (
	DateFromMetadata = "metadata"
	DateFromListing  = "listing"
	DateFromText     = "text"
	DateFromTarget   = "target"
)

type Result struct {
	Outcome    Outcome     `json:"outcome"`
	Reason     string      `json:"reason,omitempty"`
	EventDate  string      `json:"event_date,omitempty"`
	DateSource string      `json:"date_source,omitempty"`
	Category   string      `json:"category,omitempty"`
	EventIDs   []uuid.UUID `json:"event_ids,omitempty"`
	Captures   int         `json:"captures,omitempty"`
}

// Locator places a location name under a miss policy.
type Locator interface {
	Locate(ctx context.Context, name string, opts geocode.Options) (geocode.Resolution, error)
}

type Config struct {
	// GateTimeout is the acquire budget; 0 uses the gate's default.
	GateTimeout time.Duration
	// ContextChars caps the body text sent to the classifier.
	ContextChars      int
	EraToleranceYears int
	// Strict forces discard-on-miss geocoding for every item.
	Strict bool
}

func DefaultConfig() Config {
	return Config{ContextChars: 1200, EraToleranceYears: 5}
}

type Deps struct {
	Repos      repos.Set
	Origins    *origin.Registry
	Gate       *gate.Gate
	Classifier classifier.Classifier
	Geocoder   Locator
	Territory  *territory.Store
	Ledger     *reliability.Ledger
	Bus        bus.Bus
}

// Pipeline takes one candidate item from fetch to persisted events.
type Pipeline struct {
	db         *gorm.DB
	log        *logger.Logger
	wars       repos.WarRepo
	events     repos.EventRepo
	sources    repos.SourceRepo
	origins    *origin.Registry
	gate       *gate.Gate
	classifier classifier.Classifier
	geocoder   Locator
	territory  *territory.Store
	ledger     *reliability.Ledger
	bus        bus.Bus
	cfg        Config
	now        func() time.Time
}

func New(db *gorm.DB, baseLog *logger.Logger, d Deps, cfg Config) *Pipeline {
	def := DefaultConfig()
	if cfg.ContextChars <= 0 {
		cfg.ContextChars = def.ContextChars
	}
	if cfg.EraToleranceYears <= 0 {
		cfg.EraToleranceYears = def.EraToleranceYears
	}
	return &Pipeline{
		db:         db,
		log:        baseLog.With("service", "IngestionPipeline"),
		wars:       d.Repos.War,
		events:     d.Repos.Event,
		sources:    d.Repos.Source,
		origins:    d.Origins,
		gate:       d.Gate,
		classifier: d.Classifier,
		geocoder:   d.Geocoder,
		territory:  d.Territory,
		ledger:     d.Ledger,
		bus:        d.Bus,
		cfg:        cfg,
		now:        time.Now,
	}
}

// Process runs one item. Rejections and duplicates are results, not errors. Errors wrapping
// ErrDeferred mean nothing was written and the item may be redispatched; ErrPermanent marks a
// malformed task; anything else is transient.
func (p *Pipeline) Process(ctx context.Context, item tasks.ProcessItem) (res *Result, err error) {
	ctx, span := observability.StartSpan(ctx, "pipeline.process",
		attribute.String("link", item.Link),
		attribute.String("platform", item.Platform),
	)
	defer span.End()
	defer func() {
		outcome := "error"
		switch {
		case err == nil && res != nil:
			outcome = string(res.Outcome)
		case errors.Is(err, apperr.ErrDeferred):
			outcome = "deferred"
		}
		span.SetAttributes(attribute.String("outcome", outcome))
		observability.Current().IncPipelineItem(outcome)
	}()

	link := strings.TrimSpace(item.Link)
	if link == "" {
		return nil, fmt.Errorf("process item: empty link: %w", apperr.ErrPermanent)
	}
	target, err := tasks.ParseDate(item.TargetDate)
	if err != nil {
		return nil, fmt.Errorf("process item: target date %q: %w", item.TargetDate, apperr.ErrPermanent)
	}
	dbc := dbctx.Context{Ctx: ctx}
	war, err := p.wars.GetByID(dbc, item.WarID)
	if err != nil {
		return nil, err
	}
	if war == nil {
		return nil, fmt.Errorf("war %s: %w", item.WarID, apperr.ErrPermanent)
	}

	if dup, err := p.events.ExistsByURLOrHash(dbc, link, ""); err != nil {
		return nil, err
	} else if dup {
		return &Result{Outcome: OutcomeDuplicate}, nil
	}

	src, err := p.origins.Get(item.Platform)
	if err != nil {
		return nil, err
	}
	md, err := p.fetch(ctx, src, link)
	if err != nil {
		if unfetchable(err) {
			p.log.Info("item unfetchable", "link", link, "error", err)
			return &Result{Outcome: OutcomeRejected, Reason: ReasonUnfetchable}, nil
		}
		return nil, err
	}

	day, dateSource := resolveDate(item, md, target)
	res = &Result{EventDate: tasks.FormatDate(day), DateSource: dateSource}
	if OutOfEra(target, day, p.cfg.EraToleranceYears) {
		p.log.Info("item outside target era", "link", link, "event_date", res.EventDate, "target", item.TargetDate)
		return p.reject(ctx, item, target, res, ReasonEra, 0), nil
	}

	title := clean(md.Title)
	if title == "" {
		title = clean(item.Title)
	}
	baseHash := contentHash(day, title)
	if dup, err := p.events.ExistsByURLOrHash(dbc, link, baseHash); err != nil {
		return nil, err
	} else if dup {
		res.Outcome = OutcomeDuplicate
		return res, nil
	}

	verdict, err := p.classify(ctx, title, md, link)
	if err != nil {
		if errors.Is(err, apperr.ErrDeferred) || ctx.Err() != nil {
			return nil, err
		}
		p.log.Warn("classification failed; item rejected", "link", link, "error", err)
		return p.reject(ctx, item, target, res, ReasonClassifier, 0), nil
	}
	if !verdict.Relevant {
		return p.reject(ctx, item, target, res, ReasonIrrelevant, verdict.EvidenceScore), nil
	}
	res.Category = verdict.Category
	if verdict.DedupKey != "" {
		if dup, err := p.events.ExistsByDedupKey(dbc, war.ID, verdict.DedupKey); err != nil {
			return nil, err
		} else if dup {
			res.Outcome = OutcomeDuplicate
			return res, nil
		}
	}

	summary := clean(verdict.Summary)
	if summary == "" {
		summary = title
	}
	evs, err := p.locate(ctx, war, item, verdict, func(idx int, loc string, r geocode.Resolution, multi bool) *types.Event {
		return &types.Event{
			WarID:         war.ID,
			Title:         eventTitle(verdict.Category, summary, loc, multi),
			Description:   truncate(firstNonEmpty(clean(md.Description), title), 4000),
			Category:      verdict.Category,
			EventDate:     day,
			Lat:           r.Lat,
			Lng:           r.Lng,
			LocationName:  loc,
			OriginURL:     link,
			LocationIndex: idx,
			ImageURL:      md.Thumbnail,
			VideoURL:      md.VideoURL,
			DedupKey:      verdict.DedupKey,
			EvidenceScore: verdict.EvidenceScore,
			SourceID:      item.SourceID,
			Captured:      verdict.Captured,
			Victor:        verdict.Victor,
		}
	})
	if err != nil {
		return nil, err
	}
	if len(evs) == 0 {
		return p.reject(ctx, item, target, res, ReasonUnlocatable, verdict.EvidenceScore), nil
	}
	// Hashed by kept position so the first persisted event always carries baseHash.
	for i, ev := range evs {
		ev.HashKey = locationHash(baseHash, i, ev.LocationName)
	}

	created, err := p.persist(ctx, evs)
	if err != nil {
		return nil, err
	}
	if len(created) == 0 {
		res.Outcome = OutcomeDuplicate
		return res, nil
	}
	observability.Current().AddEventsCreated(verdict.Category, len(created))
	res.Outcome = OutcomeAccepted
	for _, ev := range created {
		res.EventIDs = append(res.EventIDs, ev.ID)
	}

	if verdict.Captured && verdict.Victor != "" {
		res.Captures = p.capture(ctx, war.ID, verdict.Victor, summary, created)
	}
	p.recordOutcome(ctx, item, target, reliability.Outcome{Accepted: true, EvidenceScore: verdict.EvidenceScore})
	p.discover(ctx, item, md, link)

	p.log.Info("item accepted",
		"link", link,
		"category", verdict.Category,
		"events", len(created),
		"event_date", res.EventDate,
		"captures", res.Captures,
	)
	return res, nil
}

func (p *Pipeline) fetch(ctx context.Context, src origin.Origin, link string) (*origin.Metadata, error) {
	ctx, span := observability.StartSpan(ctx, "pipeline.fetch")
	defer span.End()
	md, err := src.FetchMetadata(ctx, link)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if md == nil {
		md = &origin.Metadata{}
	}
	return md, nil
}

// unfetchable is a fetch failure that retrying will not fix, such as a 404 or an unparseable page.
func unfetchable(err error) bool {
	if errors.Is(err, apperr.ErrPermanent) {
		return true
	}
	var se *httpx.StatusError
	if errors.As(err, &se) {
		return !httpx.IsRetryableHTTPStatus(se.Code)
	}
	return false
}

func resolveDate(item tasks.ProcessItem, md *origin.Metadata, target time.Time) (time.Time, string) {
	if md.UploadDate != nil && !md.UploadDate.IsZero() {
		return dayOf(*md.UploadDate), DateFromMetadata
	}
	if item.UploadDate != nil && !item.UploadDate.IsZero() {
		return dayOf(*item.UploadDate), DateFromListing
	}
	if t, ok := ParseDateText(item.Title + " " + md.Title + " " + md.Description); ok {
		return t, DateFromText
	}
	return dayOf(target), DateFromTarget
}

func dayOf(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// classify holds the gate for exactly one classifier call.
func (p *Pipeline) classify(ctx context.Context, title string, md *origin.Metadata, link string) (*classifier.Result, error) {
	ctx, span := observability.StartSpan(ctx, "pipeline.classify")
	defer span.End()

	body := clean(md.Text)
	if body == "" {
		body = clean(md.Description)
	}
	text := title
	if body != "" {
		text += "\n\n" + truncate(body, p.cfg.ContextChars)
	}

	lease, err := p.gate.Acquire(ctx, p.cfg.GateTimeout)
	if err != nil {
		return nil, err
	}
	defer lease.Release(context.WithoutCancel(ctx))

	verdict, err := p.classifier.Classify(ctx, text, link)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	verdict.Normalize()
	return verdict, nil
}

type eventBuilder func(idx int, loc string, r geocode.Resolution, multi bool) *types.Event

// locate resolves each reported location. Locations the strict policy cannot place are dropped;
// an item with no locations falls back to the war's country.
func (p *Pipeline) locate(ctx context.Context, war *types.War, item tasks.ProcessItem, v *classifier.Result, build eventBuilder) ([]*types.Event, error) {
	ctx, span := observability.StartSpan(ctx, "pipeline.geocode")
	defer span.End()

	locs := v.Locations
	if len(locs) == 0 {
		locs = []string{firstNonEmpty(war.Country, war.Name)}
	}
	opts := geocode.Options{
		Strict: item.Strict || p.cfg.Strict,
		Anchor: geocode.Point{Lat: war.DefaultLat, Lng: war.DefaultLng},
	}
	multi := len(locs) > 1
	out := make([]*types.Event, 0, len(locs))
	for idx, loc := range locs {
		r, err := p.geocoder.Locate(ctx, loc, opts)
		if geocode.IsUnresolved(err) {
			p.log.Debug("location discarded", "location", loc, "link", item.Link)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("geocode %q: %w", loc, err)
		}
		out = append(out, build(idx, loc, r, multi))
	}
	return out, nil
}

// persist inserts the events of one item together. Rows that already exist are skipped.
func (p *Pipeline) persist(ctx context.Context, evs []*types.Event) ([]*types.Event, error) {
	created := make([]*types.Event, 0, len(evs))
	err := p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		created = created[:0]
		for _, ev := range evs {
			ok, err := p.events.CreateIfAbsent(dbc, ev)
			if err != nil {
				return fmt.Errorf("create event: %w", err)
			}
			if ok {
				created = append(created, ev)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (p *Pipeline) capture(ctx context.Context, warID uuid.UUID, victor, summary string, evs []*types.Event) int {
	ctx, span := observability.StartSpan(ctx, "pipeline.capture")
	defer span.End()
	n := 0
	for _, ev := range evs {
		snap, err := p.territory.RecordVictorCapture(ctx, territory.Capture{
			WarID:         warID,
			Victor:        victor,
			Lat:           ev.Lat,
			Lng:           ev.Lng,
			Date:          ev.EventDate,
			SourceEventID: &ev.ID,
			Summary:       summary,
		})
		if err != nil {
			p.log.Warn("territory capture failed", "event_id", ev.ID, "victor", victor, "error", err)
			continue
		}
		if snap != nil {
			n++
		}
	}
	return n
}

func (p *Pipeline) reject(ctx context.Context, item tasks.ProcessItem, target time.Time, res *Result, reason string, evidence int) *Result {
	res.Outcome = OutcomeRejected
	res.Reason = reason
	p.recordOutcome(ctx, item, target, reliability.Outcome{Accepted: false, EvidenceScore: evidence})
	return res
}

// recordOutcome feeds the ledger. The events are already durable, so a ledger failure is
// logged rather than retried.
func (p *Pipeline) recordOutcome(ctx context.Context, item tasks.ProcessItem, target time.Time, o reliability.Outcome) {
	if item.SourceID == nil || *item.SourceID == uuid.Nil || p.ledger == nil {
		return
	}
	if _, err := p.ledger.Record(ctx, *item.SourceID, target, o); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			p.log.Warn("reliability source vanished", "source_id", *item.SourceID)
			return
		}
		p.log.Error("reliability update failed", "source_id", *item.SourceID, "error", err)
	}
}

// discover announces the uploader of an accepted item when it is not yet a known source.
func (p *Pipeline) discover(ctx context.Context, item tasks.ProcessItem, md *origin.Metadata, link string) {
	handle := strings.TrimSpace(md.UploaderID)
	if handle == "" || p.bus == nil {
		return
	}
	known, err := p.sources.GetByPlatformHandle(dbctx.Context{Ctx: ctx}, item.Platform, handle)
	if err != nil {
		p.log.Warn("source lookup failed", "platform", item.Platform, "handle", handle, "error", err)
		return
	}
	if known != nil {
		return
	}
	msg := bus.SourceDiscovered{
		WarID:        item.WarID.String(),
		Platform:     item.Platform,
		Handle:       handle,
		Name:         md.UploaderName,
		OriginURL:    link,
		DiscoveredAt: p.now().UTC(),
	}
	if err := p.bus.Publish(ctx, msg); err != nil {
		p.log.Warn("publish source discovery failed", "handle", handle, "error", err)
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
