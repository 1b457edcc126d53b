package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	types "github.com/yungbote/frontline-backend/internal/domain"
)

// Day returns the UTC midnight of the given date.
func Day(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func SeedWar(tb testing.TB, ctx context.Context, tx *gorm.DB, name string) *types.War {
	tb.Helper()
	w := &types.War{
		Name:       name,
		Country:    "Syria",
		DefaultLat: 33.5138,
		DefaultLng: 36.2765,
		StartDate:  Day(2011, time.March, 15),
	}
	if err := tx.WithContext(ctx).Create(w).Error; err != nil {
		tb.Fatalf("seed war: %v", err)
	}
	return w
}

func SeedFaction(tb testing.TB, ctx context.Context, tx *gorm.DB, warID uuid.UUID, name, short string, territory string) *types.Faction {
	tb.Helper()
	f := &types.Faction{
		WarID:     warID,
		Name:      name,
		ShortName: short,
		Color:     "#aa0000",
	}
	if territory != "" {
		f.Territory = datatypes.JSON([]byte(territory))
	}
	if err := tx.WithContext(ctx).Create(f).Error; err != nil {
		tb.Fatalf("seed faction: %v", err)
	}
	return f
}

func SeedSource(tb testing.TB, ctx context.Context, tx *gorm.DB, platform, handle, status string, score float64, lastCrawled *time.Time) *types.Source {
	tb.Helper()
	s := &types.Source{
		Platform:         platform,
		Handle:           handle,
		Name:             handle,
		Status:           status,
		ReliabilityScore: score,
		LastCrawledAt:    lastCrawled,
	}
	if err := tx.WithContext(ctx).Create(s).Error; err != nil {
		tb.Fatalf("seed source: %v", err)
	}
	return s
}

func SeedEvent(tb testing.TB, ctx context.Context, tx *gorm.DB, ev *types.Event) *types.Event {
	tb.Helper()
	if err := tx.WithContext(ctx).Create(ev).Error; err != nil {
		tb.Fatalf("seed event: %v", err)
	}
	return ev
}
