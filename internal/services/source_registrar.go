package services

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/yungbote/frontline-backend/internal/bus"
	"github.com/yungbote/frontline-backend/internal/data/repos"
	types "github.com/yungbote/frontline-backend/internal/domain"
	"github.com/yungbote/frontline-backend/internal/pkg/dbctx"
	"github.com/yungbote/frontline-backend/internal/pkg/logger"
)

// SourceRegistrar turns sourceDiscovered messages into probation sources.
type SourceRegistrar struct {
	db      *gorm.DB
	log     *logger.Logger
	sources repos.SourceRepo
	bus     bus.Bus
}

func NewSourceRegistrar(db *gorm.DB, baseLog *logger.Logger, sources repos.SourceRepo, b bus.Bus) *SourceRegistrar {
	return &SourceRegistrar{
		db:      db,
		log:     baseLog.With("service", "SourceRegistrar"),
		sources: sources,
		bus:     b,
	}
}

// Start subscribes to the bus until ctx ends.
func (r *SourceRegistrar) Start(ctx context.Context) error {
	return r.bus.StartForwarder(ctx, func(m bus.SourceDiscovered) {
		if _, err := r.Register(ctx, m); err != nil {
			r.log.Warn("source registration failed", "platform", m.Platform, "handle", m.Handle, "error", err)
		}
	})
}

// Register creates the source when absent and reports whether it was new.
func (r *SourceRegistrar) Register(ctx context.Context, m bus.SourceDiscovered) (bool, error) {
	platform := strings.TrimSpace(m.Platform)
	handle := strings.TrimSpace(m.Handle)
	if platform == "" || handle == "" {
		return false, nil
	}
	name := strings.TrimSpace(m.Name)
	if name == "" {
		name = handle
	}
	src, created, err := r.sources.EnsureExists(dbctx.Context{Ctx: ctx, Tx: r.db}, &types.Source{
		Platform:         platform,
		Handle:           handle,
		Name:             name,
		Status:           types.SourceStatusProbation,
		ReliabilityScore: types.DefaultReliabilityScore,
	})
	if err != nil {
		return false, err
	}
	if created {
		r.log.Info("source discovered", "source_id", src.ID, "platform", src.Platform, "handle", src.Handle, "war_id", m.WarID)
	}
	return created, nil
}
