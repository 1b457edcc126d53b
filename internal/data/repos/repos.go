package repos

import (
	"gorm.io/gorm"

	"github.com/yungbote/frontline-backend/internal/data/repos/conflict"
	"github.com/yungbote/frontline-backend/internal/data/repos/events"
	"github.com/yungbote/frontline-backend/internal/data/repos/geo"
	"github.com/yungbote/frontline-backend/internal/data/repos/jobs"
	"github.com/yungbote/frontline-backend/internal/data/repos/sources"
	"github.com/yungbote/frontline-backend/internal/pkg/logger"
)

type WarRepo = conflict.WarRepo
type FactionRepo = conflict.FactionRepo
type TerritorySnapshotRepo = conflict.TerritorySnapshotRepo

type SourceRepo = sources.SourceRepo
type SourceObservationRepo = sources.SourceObservationRepo

type EventRepo = events.EventRepo
type TrendRepo = events.TrendRepo

type GeocodeCacheRepo = geo.GeocodeCacheRepo

type IngestTaskRepo = jobs.IngestTaskRepo
type BackfillCursorRepo = jobs.BackfillCursorRepo

func NewWarRepo(db *gorm.DB, baseLog *logger.Logger) WarRepo {
	return conflict.NewWarRepo(db, baseLog)
}

func NewFactionRepo(db *gorm.DB, baseLog *logger.Logger) FactionRepo {
	return conflict.NewFactionRepo(db, baseLog)
}

func NewTerritorySnapshotRepo(db *gorm.DB, baseLog *logger.Logger) TerritorySnapshotRepo {
	return conflict.NewTerritorySnapshotRepo(db, baseLog)
}

func NewSourceRepo(db *gorm.DB, baseLog *logger.Logger) SourceRepo {
	return sources.NewSourceRepo(db, baseLog)
}

func NewSourceObservationRepo(db *gorm.DB, baseLog *logger.Logger) SourceObservationRepo {
	return sources.NewSourceObservationRepo(db, baseLog)
}

func NewEventRepo(db *gorm.DB, baseLog *logger.Logger) EventRepo {
	return events.NewEventRepo(db, baseLog)
}

func NewTrendRepo(db *gorm.DB, baseLog *logger.Logger) TrendRepo {
	return events.NewTrendRepo(db, baseLog)
}

func NewGeocodeCacheRepo(db *gorm.DB, baseLog *logger.Logger) GeocodeCacheRepo {
	return geo.NewGeocodeCacheRepo(db, baseLog)
}

func NewIngestTaskRepo(db *gorm.DB, baseLog *logger.Logger) IngestTaskRepo {
	return jobs.NewIngestTaskRepo(db, baseLog)
}

func NewBackfillCursorRepo(db *gorm.DB, baseLog *logger.Logger) BackfillCursorRepo {
	return jobs.NewBackfillCursorRepo(db, baseLog)
}

// Set bundles every repository behind one value for wiring.
type Set struct {
	War               WarRepo
	Faction           FactionRepo
	TerritorySnapshot TerritorySnapshotRepo
	Source            SourceRepo
	SourceObservation SourceObservationRepo
	Event             EventRepo
	Trend             TrendRepo
	GeocodeCache      GeocodeCacheRepo
	IngestTask        IngestTaskRepo
	BackfillCursor    BackfillCursorRepo
}

func NewSet(db *gorm.DB, baseLog *logger.Logger) Set {
	return Set{
		War:               NewWarRepo(db, baseLog),
		Faction:           NewFactionRepo(db, baseLog),
		TerritorySnapshot: NewTerritorySnapshotRepo(db, baseLog),
		Source:            NewSourceRepo(db, baseLog),
		SourceObservation: NewSourceObservationRepo(db, baseLog),
		Event:             NewEventRepo(db, baseLog),
		Trend:             NewTrendRepo(db, baseLog),
		GeocodeCache:      NewGeocodeCacheRepo(db, baseLog),
		IngestTask:        NewIngestTaskRepo(db, baseLog),
		BackfillCursor:    NewBackfillCursorRepo(db, baseLog),
	}
}
