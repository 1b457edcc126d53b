package domain

import (
	"github.com/yungbote/frontline-backend/internal/domain/conflict"
	"github.com/yungbote/frontline-backend/internal/domain/events"
	"github.com/yungbote/frontline-backend/internal/domain/geo"
	"github.com/yungbote/frontline-backend/internal/domain/jobs"
	"github.com/yungbote/frontline-backend/internal/domain/sources"
)

const (
	SourceStatusProbation = sources.StatusProbation
	SourceStatusTrusted   = sources.StatusTrusted
	SourceStatusBanned    = sources.StatusBanned

	DefaultReliabilityScore = sources.DefaultReliabilityScore

	SnapshotSourceManual   = conflict.SnapshotSourceManual
	SnapshotSourceCapture  = conflict.SnapshotSourceCapture
	SnapshotSourcePeriodic = conflict.SnapshotSourcePeriodic

	TaskStatusQueued    = jobs.TaskStatusQueued
	TaskStatusRunning   = jobs.TaskStatusRunning
	TaskStatusSucceeded = jobs.TaskStatusSucceeded
	TaskStatusFailed    = jobs.TaskStatusFailed
	TaskStatusDeferred  = jobs.TaskStatusDeferred
)

type War = conflict.War
type Faction = conflict.Faction
type TerritorySnapshot = conflict.TerritorySnapshot

type Source = sources.Source
type SourceObservation = sources.SourceObservation

type Event = events.Event
type Trend = events.Trend

type GeocodeCacheEntry = geo.GeocodeCacheEntry

type IngestTask = jobs.IngestTask
type BackfillCursor = jobs.BackfillCursor

// Models lists every persisted type in migration order.
func Models() []interface{} {
	return []interface{}{
		&War{},
		&Faction{},
		&TerritorySnapshot{},
		&Source{},
		&SourceObservation{},
		&Event{},
		&GeocodeCacheEntry{},
		&IngestTask{},
		&Trend{},
		&BackfillCursor{},
	}
}
