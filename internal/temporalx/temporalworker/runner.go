package temporalworker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/activity"
	temporalsdkclient "go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"

	"github.com/yungbote/frontline-backend/internal/data/repos"
	"github.com/yungbote/frontline-backend/internal/pkg/logger"
	"github.com/yungbote/frontline-backend/internal/temporalx"
	"github.com/yungbote/frontline-backend/internal/temporalx/taskrun"
)

type Runner struct {
	log  *logger.Logger
	tc   temporalsdkclient.Client
	cfg  temporalx.Config
	acts *taskrun.Activities
}

func NewRunner(log *logger.Logger, tc temporalsdkclient.Client, cfg temporalx.Config, tasks repos.IngestTaskRepo, exec taskrun.Executor) (*Runner, error) {
	if tc == nil {
		return nil, fmt.Errorf("temporal client is not configured")
	}
	if tasks == nil || exec == nil {
		return nil, fmt.Errorf("temporal worker missing deps")
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	return &Runner{
		log:  log.With("component", "TemporalWorker"),
		tc:   tc,
		cfg:  cfg,
		acts: &taskrun.Activities{Log: log, Tasks: tasks, Exec: exec},
	}, nil
}

// Start polls the task queue until ctx ends. Startup is retried until StartMaxWait because the
// frontend often comes up after us in local stacks.
func (r *Runner) Start(ctx context.Context) error {
	r.log.Info("Starting Temporal worker", "address", r.cfg.Address, "namespace", r.cfg.Namespace, "task_queue", r.cfg.TaskQueue)

	attempt := 0
	var w worker.Worker
	start := func() error {
		attempt++
		w = r.newWorker()
		err := w.Start()
		if err == nil {
			return nil
		}
		w.Stop()
		var nfe *serviceerror.NamespaceNotFound
		if errors.As(err, &nfe) {
			if !r.cfg.AutoRegisterNamespace {
				return backoff.Permanent(fmt.Errorf("temporal namespace not found (namespace=%s): %w", r.cfg.Namespace, err))
			}
			if nsErr := temporalx.EnsureNamespace(ctx, r.log, r.cfg); nsErr != nil {
				r.log.Warn("Temporal namespace ensure failed", "namespace", r.cfg.Namespace, "error", nsErr)
			}
		}
		return err
	}
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = 250 * time.Millisecond
	eb.MaxInterval = 5 * time.Second
	eb.MaxElapsedTime = r.cfg.StartMaxWait
	notify := func(err error, wait time.Duration) {
		r.log.Warn("Temporal worker failed to start; retrying", "attempt", attempt, "wait", wait.String(), "error", err)
	}
	if err := backoff.RetryNotify(start, backoff.WithContext(eb, ctx), notify); err != nil {
		return err
	}

	go func() {
		<-ctx.Done()
		w.Stop()
	}()
	r.log.Info("Temporal worker started", "task_queue", r.cfg.TaskQueue, "attempts", attempt)
	return nil
}

func (r *Runner) newWorker() worker.Worker {
	w := worker.New(r.tc, r.cfg.TaskQueue, worker.Options{
		MaxConcurrentActivityExecutionSize:     r.cfg.Concurrency,
		MaxConcurrentWorkflowTaskExecutionSize: r.cfg.Concurrency,
	})
	w.RegisterWorkflowWithOptions(taskrun.Workflow, workflow.RegisterOptions{Name: taskrun.WorkflowName})
	w.RegisterActivityWithOptions(r.acts.Run, activity.RegisterOptions{Name: taskrun.ActivityRun})
	return w
}
