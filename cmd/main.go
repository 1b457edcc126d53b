package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/yungbote/frontline-backend/internal/app"
	cronrunner "github.com/yungbote/frontline-backend/internal/cron"
	types "github.com/yungbote/frontline-backend/internal/domain"
	"github.com/yungbote/frontline-backend/internal/jobs/tasks"
	"github.com/yungbote/frontline-backend/internal/pkg/dbctx"
	"github.com/yungbote/frontline-backend/internal/services"
)

func main() {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "frontline",
		Short:         "Conflict OSINT ingestion and territory inference",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(
		serveCmd(),
		workerCmd(),
		cronCmd(),
		scheduleCmd(),
		backfillCmd(),
		snapshotCmd(),
		compactCmd(),
		migrateCmd(),
		importSourcesCmd(),
	)
	return cmd
}

// withApp builds the app for one command and always closes it.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	ctx := cmd.Context()
	a, err := app.New(ctx)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

func serveCmd() *cobra.Command {
	var migrate, withWorker, withCron bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the query API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				if migrate {
					if err := a.Migrate(); err != nil {
						return err
					}
				}
				if err := a.StartBackground(ctx); err != nil {
					return err
				}
				if withWorker {
					go func() {
						if err := a.RunWorker(ctx, false); err != nil {
							a.Log.Error("worker stopped", "error", err)
						}
					}()
				}
				if withCron {
					r, err := startCron(ctx, a)
					if err != nil {
						return err
					}
					defer r.Stop()
				}
				return a.NewServer().Run(ctx, a.Cfg.HTTPAddr)
			})
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", false, "Migrate the schema before serving")
	cmd.Flags().BoolVar(&withWorker, "with-worker", false, "Also run the ingestion worker in this process")
	cmd.Flags().BoolVar(&withCron, "with-cron", false, "Also run the periodic jobs in this process")
	return cmd
}

func workerCmd() *cobra.Command {
	var poll bool
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Execute queued ingestion tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				if err := a.StartBackground(ctx); err != nil {
					return err
				}
				return a.RunWorker(ctx, poll)
			})
		},
	}
	cmd.Flags().BoolVar(&poll, "poll", false, "Poll the database queue even when Temporal is configured")
	return cmd
}

func cronCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cron",
		Short: "Run the nightly snapshot, weekly compaction and scheduling cycle",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				r, err := startCron(ctx, a)
				if err != nil {
					return err
				}
				<-ctx.Done()
				r.Stop()
				return nil
			})
		},
	}
}

func startCron(ctx context.Context, a *app.App) (*cronrunner.Runner, error) {
	r := cronrunner.New(a.Log, ctx)
	if err := a.Services.Periodic.Register(r); err != nil {
		return nil, err
	}
	r.Start()
	return r, nil
}

func scheduleCmd() *cobra.Command {
	var war, date string
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Run one scheduling cycle",
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := dateFlag(date)
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				wars, err := resolveWars(ctx, a, war)
				if err != nil {
					return err
				}
				for _, w := range wars {
					rep, err := a.Services.Scheduler.RunCycle(ctx, w.ID, target)
					if err != nil {
						return fmt.Errorf("war %s: %w", w.Name, err)
					}
					if err := printJSON(cmd, rep); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&war, "war", "", "War id or name (default: every war)")
	cmd.Flags().StringVar(&date, "date", "", "Target date YYYY-MM-DD (default: today)")
	return cmd
}

func backfillCmd() *cobra.Command {
	var (
		war   string
		steps int
		reset bool
	)
	cmd := &cobra.Command{
		Use:   "backfill",
		Short: "Advance the per-war backfill cursor by one or more target dates",
		RunE: func(cmd *cobra.Command, args []string) error {
			if steps < 1 {
				return fmt.Errorf("--steps must be at least 1")
			}
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				wars, err := resolveWars(ctx, a, war)
				if err != nil {
					return err
				}
				for _, w := range wars {
					if reset {
						if err := a.Repos.BackfillCursor.Reset(dbctx.Context{Ctx: ctx}, w.ID); err != nil {
							return fmt.Errorf("war %s: reset cursor: %w", w.Name, err)
						}
					}
					for i := 0; i < steps; i++ {
						rep, err := a.Services.Backfill.Step(ctx, w.ID)
						if err != nil {
							return fmt.Errorf("war %s: %w", w.Name, err)
						}
						if rep == nil {
							a.Log.Info("backfill caught up", "war", w.Name)
							break
						}
						if err := printJSON(cmd, rep); err != nil {
							return err
						}
					}
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&war, "war", "", "War id or name (default: every war)")
	cmd.Flags().IntVar(&steps, "steps", 1, "Target dates to schedule per war")
	cmd.Flags().BoolVar(&reset, "reset", false, "Restart from the war's start date")
	return cmd
}

func snapshotCmd() *cobra.Command {
	var date string
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Write a periodic snapshot for every faction",
		RunE: func(cmd *cobra.Command, args []string) error {
			day, err := dateFlag(date)
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				n, err := a.Services.Territory.SnapshotAllWars(ctx, day)
				if err != nil {
					return err
				}
				return printJSON(cmd, map[string]any{"date": tasks.FormatDate(day), "written": n})
			})
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "Snapshot date YYYY-MM-DD (default: today)")
	return cmd
}

func compactCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "compact",
		Short: "Thin snapshots older than the horizon to one per week",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				n, err := a.Services.Territory.Compact(ctx, time.Now().UTC())
				if err != nil {
					return err
				}
				return printJSON(cmd, map[string]any{"deleted": n})
			})
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				return a.Migrate()
			})
		},
	}
}

func importSourcesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import-sources <file.yaml>",
		Short: "Create the sources listed in a YAML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			specs, err := services.ParseSourceSpecs(f)
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				rep, err := a.Services.Importer.Import(ctx, specs)
				if err != nil {
					return err
				}
				return printJSON(cmd, rep)
			})
		},
	}
}

func dateFlag(raw string) (time.Time, error) {
	if strings.TrimSpace(raw) == "" {
		now := time.Now().UTC()
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC), nil
	}
	d, err := tasks.ParseDate(raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("--date must be YYYY-MM-DD: %w", err)
	}
	return d, nil
}

func resolveWars(ctx context.Context, a *app.App, ref string) ([]*types.War, error) {
	dbc := dbctx.Context{Ctx: ctx}
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return a.Repos.War.List(dbc)
	}
	var (
		w   *types.War
		err error
	)
	if id, perr := uuid.Parse(ref); perr == nil {
		w, err = a.Repos.War.GetByID(dbc, id)
	} else {
		w, err = a.Repos.War.GetByName(dbc, ref)
	}
	if err != nil {
		return nil, err
	}
	if w == nil {
		return nil, fmt.Errorf("war %q not found", ref)
	}
	return []*types.War{w}, nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
