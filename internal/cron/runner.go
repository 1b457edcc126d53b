package cronrunner

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/yungbote/frontline-backend/internal/pkg/logger"
)

type Runner struct {
	cron    *cron.Cron
	log     *logger.Logger
	baseCtx context.Context
}

// New builds a seconds-resolution scheduler on UTC. Overlapping runs of one entry are skipped
// and panics are recovered.
func New(log *logger.Logger, baseCtx context.Context) *Runner {
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	cl := cronLogger{log: log.With("component", "Cron")}
	return &Runner{
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithLocation(time.UTC),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		log:     log.With("component", "Cron"),
		baseCtx: baseCtx,
	}
}

func (r *Runner) Add(name, spec string, job func(context.Context) error) (cron.EntryID, error) {
	return r.cron.AddFunc(spec, func() {
		start := time.Now()
		if err := job(r.baseCtx); err != nil {
			r.log.Error("cron job failed", "job", name, "duration_ms", time.Since(start).Milliseconds(), "error", err)
			return
		}
		r.log.Info("cron job finished", "job", name, "duration_ms", time.Since(start).Milliseconds())
	})
}

func (r *Runner) Entries() []cron.Entry { return r.cron.Entries() }

func (r *Runner) Start() {
	r.log.Info("cron started", "entries", len(r.cron.Entries()))
	r.cron.Start()
}

// Stop waits for running jobs to return.
func (r *Runner) Stop() {
	ctx := r.cron.Stop()
	<-ctx.Done()
	r.log.Info("cron stopped")
}

// cronLogger adapts the app logger to cron.Logger.
type cronLogger struct {
	log *logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error(msg, append(keysAndValues, "error", err)...)
}
