package services

import (
	"context"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
	"gorm.io/gorm"

	"github.com/yungbote/frontline-backend/internal/data/repos"
	types "github.com/yungbote/frontline-backend/internal/domain"
	"github.com/yungbote/frontline-backend/internal/pkg/dbctx"
	apperr "github.com/yungbote/frontline-backend/internal/pkg/errors"
	"github.com/yungbote/frontline-backend/internal/pkg/logger"
)

// SourceSpec is one entry of a source import file.
type SourceSpec struct {
	Platform string `yaml:"platform"`
	Handle   string `yaml:"handle"`
	Name     string `yaml:"name"`
	Status   string `yaml:"status"`
}

type ImportReport struct {
	Created int `json:"created"`
	Existed int `json:"existed"`
	Skipped int `json:"skipped"`
}

type SourceImporter struct {
	db      *gorm.DB
	log     *logger.Logger
	sources repos.SourceRepo
}

func NewSourceImporter(db *gorm.DB, baseLog *logger.Logger, sources repos.SourceRepo) *SourceImporter {
	return &SourceImporter{
		db:      db,
		log:     baseLog.With("service", "SourceImporter"),
		sources: sources,
	}
}

func ParseSourceSpecs(r io.Reader) ([]SourceSpec, error) {
	var specs []SourceSpec
	if err := yaml.NewDecoder(r).Decode(&specs); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("parse source list: %w", err)
	}
	return specs, nil
}

// Import creates the sources that do not exist yet. Existing sources keep their status and score.
func (s *SourceImporter) Import(ctx context.Context, specs []SourceSpec) (*ImportReport, error) {
	rep := &ImportReport{}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		for i, sp := range specs {
			platform := strings.TrimSpace(sp.Platform)
			handle := strings.TrimSpace(sp.Handle)
			if platform == "" || handle == "" {
				s.log.Warn("source entry skipped", "index", i, "reason", "missing platform or handle")
				rep.Skipped++
				continue
			}
			status, err := importStatus(sp.Status)
			if err != nil {
				return fmt.Errorf("entry %d (%s/%s): %w", i, platform, handle, err)
			}
			name := strings.TrimSpace(sp.Name)
			if name == "" {
				name = handle
			}
			_, created, err := s.sources.EnsureExists(dbc, &types.Source{
				Platform:         platform,
				Handle:           handle,
				Name:             name,
				Status:           status,
				ReliabilityScore: types.DefaultReliabilityScore,
			})
			if err != nil {
				return fmt.Errorf("entry %d (%s/%s): %w", i, platform, handle, err)
			}
			if created {
				rep.Created++
			} else {
				rep.Existed++
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("sources imported", "created", rep.Created, "existed", rep.Existed, "skipped", rep.Skipped)
	return rep, nil
}

func importStatus(raw string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", types.SourceStatusProbation:
		return types.SourceStatusProbation, nil
	case types.SourceStatusTrusted:
		return types.SourceStatusTrusted, nil
	case types.SourceStatusBanned:
		return types.SourceStatusBanned, nil
	default:
		return "", fmt.Errorf("unknown status %q: %w", raw, apperr.ErrInvalidArgument)
	}
}
