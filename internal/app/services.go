package app

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/yungbote/frontline-backend/internal/classifier"
	cronrunner "github.com/yungbote/frontline-backend/internal/cron"
	"github.com/yungbote/frontline-backend/internal/data/repos"
	"github.com/yungbote/frontline-backend/internal/gate"
	"github.com/yungbote/frontline-backend/internal/geocode"
	"github.com/yungbote/frontline-backend/internal/ingestion/origin"
	"github.com/yungbote/frontline-backend/internal/ingestion/pipeline"
	"github.com/yungbote/frontline-backend/internal/jobs/pipeline/crawl_source"
	"github.com/yungbote/frontline-backend/internal/jobs/pipeline/historical_search"
	"github.com/yungbote/frontline-backend/internal/jobs/pipeline/process_item"
	"github.com/yungbote/frontline-backend/internal/jobs/runtime"
	"github.com/yungbote/frontline-backend/internal/jobs/tasks"
	"github.com/yungbote/frontline-backend/internal/jobs/worker"
	"github.com/yungbote/frontline-backend/internal/pkg/logger"
	"github.com/yungbote/frontline-backend/internal/reliability"
	"github.com/yungbote/frontline-backend/internal/scheduler"
	"github.com/yungbote/frontline-backend/internal/services"
	"github.com/yungbote/frontline-backend/internal/territory"
	"github.com/yungbote/frontline-backend/internal/trends"
)

type Services struct {
	Gate       *gate.Gate
	Resolver   *geocode.Resolver
	Ledger     *reliability.Ledger
	Territory  *territory.Store
	Origins    *origin.Registry
	Classifier *classifier.Chain
	Keywords   *scheduler.EraKeywords
	Pipeline   *pipeline.Pipeline

	Tasks     services.TaskService
	Scheduler *scheduler.Scheduler
	Trends    *trends.Learner
	Backfill  *scheduler.Backfill
	Events    services.EventService
	Registrar *services.SourceRegistrar
	Importer  *services.SourceImporter
	Periodic  *cronrunner.Periodic

	Registry *runtime.Registry
	Worker   *worker.Worker
}

func wireServices(db *gorm.DB, log *logger.Logger, cfg Config, rs repos.Set, clients Clients) (Services, error) {
	log.Info("Wiring services...")

	g := gate.New(clients.GateStore, cfg.Gate, log)

	gaz, err := geocode.LoadGazetteer(cfg.GazetteerPath)
	if err != nil {
		return Services{}, fmt.Errorf("load gazetteer: %w", err)
	}
	var live geocode.Live
	if cfg.LiveGeocoding {
		live = geocode.NewNominatim(log, geocode.NominatimConfig{BaseURL: cfg.NominatimURL, UserAgent: cfg.UserAgent})
	}
	resolver := geocode.NewResolver(log, gaz, rs.GeocodeCache, live, geocode.DefaultConfig())

	ledger := reliability.NewLedger(db, log, rs.Source, rs.SourceObservation, reliability.DefaultParams())
	store := territory.NewStore(db, log, rs, territory.DefaultConfig())

	origins := origin.NewRegistry()
	for _, oc := range cfg.Origins {
		origins.Register(origin.NewWeb(log, origin.WebConfig{
			Platform:       oc.Platform,
			FeedTemplate:   oc.FeedTemplate,
			SearchTemplate: oc.SearchTemplate,
			UserAgent:      cfg.UserAgent,
		}))
	}

	providers := make([]classifier.Named, 0, len(cfg.Providers))
	for _, pc := range cfg.Providers {
		providers = append(providers, classifier.NewProvider(log, classifier.ProviderConfig{
			Name:    pc.Name,
			BaseURL: pc.BaseURL,
			APIKey:  pc.APIKey,
			Model:   pc.Model,
			Subject: cfg.ClassifierSubject,
		}))
	}
	chain := classifier.NewChain(log, cfg.ClassifierTimeout, providers...)
	if chain.Len() == 0 {
		log.Warn("No classifier providers configured; every item will be rejected as classifier_unavailable")
	}

	keywords, err := scheduler.LoadEraKeywords(cfg.EraKeywordsPath)
	if err != nil {
		return Services{}, fmt.Errorf("load era keywords: %w", err)
	}

	proc := pipeline.New(db, log, pipeline.Deps{
		Repos:      rs,
		Origins:    origins,
		Gate:       g,
		Classifier: chain,
		Geocoder:   resolver,
		Territory:  store,
		Ledger:     ledger,
		Bus:        clients.Bus,
	}, pipeline.Config{
		GateTimeout:       cfg.Gate.Timeout,
		EraToleranceYears: cfg.EraToleranceYears,
		Strict:            cfg.StrictGeocoding,
	})

	taskSvc := services.NewTaskService(db, log, rs.IngestTask, clients.Temporal, cfg.Temporal.TaskQueue)
	schedCfg := scheduler.DefaultConfig()
	schedCfg.MaxSources = cfg.MaxSources
	sched := scheduler.New(log, rs.Source, taskSvc, schedCfg)
	learner := trends.NewLearner(db, log, rs.Event, rs.Trend, trends.DefaultConfig())
	backfill := scheduler.NewBackfill(log, rs.War, rs.BackfillCursor, sched, learner)
	hsCfg := historical_search.DefaultConfig()
	hsCfg.Learned = cfg.LearnedKeywords

	registry := runtime.NewRegistry()
	if err := registry.Register(
		crawl_source.New(db, log, rs.Source, origins, taskSvc, cfg.CrawlItemLimit),
		process_item.New(log, proc),
		historical_search.New(log, origins, keywords, learner, taskSvc, hsCfg),
	); err != nil {
		return Services{}, fmt.Errorf("register task handlers: %w", err)
	}
	if missing := registry.Missing(tasks.TypeCrawlSource, tasks.TypeProcessItem, tasks.TypeHistoricalSearch); len(missing) > 0 {
		return Services{}, fmt.Errorf("no handler for task types %v", missing)
	}
	wcfg := worker.DefaultConfig()
	wcfg.Concurrency = cfg.WorkerConcurrency
	wcfg.PollInterval = cfg.WorkerPoll

	return Services{
		Gate:       g,
		Resolver:   resolver,
		Ledger:     ledger,
		Territory:  store,
		Origins:    origins,
		Classifier: chain,
		Keywords:   keywords,
		Pipeline:   proc,

		Tasks:     taskSvc,
		Scheduler: sched,
		Trends:    learner,
		Backfill:  backfill,
		Events:    services.NewEventService(db, log, rs.War, rs.Event),
		Registrar: services.NewSourceRegistrar(db, log, rs.Source, clients.Bus),
		Importer:  services.NewSourceImporter(db, log, rs.Source),
		Periodic: cronrunner.NewPeriodic(log, rs.War, store, sched, backfill, cronrunner.PeriodicConfig{
			ScheduleInterval: cfg.ScheduleInterval,
			BackfillInterval: cfg.BackfillInterval,
		}),

		Registry: registry,
		Worker:   worker.NewWorker(db, log, rs.IngestTask, registry, wcfg),
	}, nil
}
