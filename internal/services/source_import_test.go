package services

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/frontline-backend/internal/bus"
	"github.com/yungbote/frontline-backend/internal/data/repos"
	"github.com/yungbote/frontline-backend/internal/data/repos/testutil"
	types "github.com/yungbote/frontline-backend/internal/domain"
	"github.com/yungbote/frontline-backend/internal/pkg/dbctx"
	apperr "github.com/yungbote/frontline-backend/internal/pkg/errors"
)

const sourceList = `
- platform: web
  handle: https://news.example.org
  name: Example News
  status: trusted
- platform: Web
  handle: " https://news.example.org "
- platform: youtube
  handle: UgaritNews
- platform: ""
  handle: orphan
`

func TestSourceImport(t *testing.T) {
	ctx := context.Background()
	db := testutil.DB(t)
	log := testutil.Logger(t)
	srcRepo := repos.NewSourceRepo(db, log)
	imp := NewSourceImporter(db, log, srcRepo)

	specs, err := ParseSourceSpecs(strings.NewReader(sourceList))
	require.NoError(t, err)
	require.Len(t, specs, 4)

	rep, err := imp.Import(ctx, specs)
	require.NoError(t, err)
	assert.Equal(t, &ImportReport{Created: 2, Existed: 1, Skipped: 1}, rep)

	src, err := srcRepo.GetByPlatformHandle(dbctx.Context{Ctx: ctx}, "web", "https://news.example.org")
	require.NoError(t, err)
	require.NotNil(t, src)
	assert.Equal(t, types.SourceStatusTrusted, src.Status)
	assert.Equal(t, "Example News", src.Name)

	yt, err := srcRepo.GetByPlatformHandle(dbctx.Context{Ctx: ctx}, "youtube", "UgaritNews")
	require.NoError(t, err)
	require.NotNil(t, yt)
	assert.Equal(t, types.SourceStatusProbation, yt.Status)
	assert.Equal(t, types.DefaultReliabilityScore, yt.ReliabilityScore)

	rep, err = imp.Import(ctx, specs[:1])
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Existed)
}

func TestSourceImportRejectsUnknownStatus(t *testing.T) {
	ctx := context.Background()
	db := testutil.DB(t)
	log := testutil.Logger(t)
	srcRepo := repos.NewSourceRepo(db, log)
	imp := NewSourceImporter(db, log, srcRepo)

	_, err := imp.Import(ctx, []SourceSpec{
		{Platform: "web", Handle: "https://a.example.org"},
		{Platform: "web", Handle: "https://b.example.org", Status: "verified"},
	})
	require.ErrorIs(t, err, apperr.ErrInvalidArgument)

	src, err := srcRepo.GetByPlatformHandle(dbctx.Context{Ctx: ctx}, "web", "https://a.example.org")
	require.NoError(t, err)
	assert.Nil(t, src, "a bad entry rolls back the whole import")
}

func TestSourceRegistrarCreatesOnce(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	db := testutil.DB(t)
	log := testutil.Logger(t)
	srcRepo := repos.NewSourceRepo(db, log)
	b := bus.NewMemoryBus()
	reg := NewSourceRegistrar(db, log, srcRepo, b)
	require.NoError(t, reg.Start(ctx))

	msg := bus.SourceDiscovered{Platform: "youtube", Handle: "ShaamNews", Name: "Shaam News Network"}
	require.NoError(t, b.Publish(ctx, msg))
	require.NoError(t, b.Publish(ctx, msg))

	src, err := srcRepo.GetByPlatformHandle(dbctx.Context{Ctx: ctx}, "youtube", "ShaamNews")
	require.NoError(t, err)
	require.NotNil(t, src)
	assert.Equal(t, types.SourceStatusProbation, src.Status)
	assert.Equal(t, types.DefaultReliabilityScore, src.ReliabilityScore)

	created, err := reg.Register(ctx, msg)
	require.NoError(t, err)
	assert.False(t, created)

	created, err = reg.Register(ctx, bus.SourceDiscovered{Platform: "youtube"})
	require.NoError(t, err)
	assert.False(t, created, "a message without a handle is ignored")
}
