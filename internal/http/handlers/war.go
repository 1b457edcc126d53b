package handlers

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/frontline-backend/internal/data/repos"
	"github.com/yungbote/frontline-backend/internal/http/response"
	"github.com/yungbote/frontline-backend/internal/jobs/tasks"
	"github.com/yungbote/frontline-backend/internal/pkg/dbctx"
	apperr "github.com/yungbote/frontline-backend/internal/pkg/errors"
	"github.com/yungbote/frontline-backend/internal/services"
	"github.com/yungbote/frontline-backend/internal/territory"
)

type WarHandler struct {
	wars      repos.WarRepo
	factions  repos.FactionRepo
	territory *territory.Store
	events    services.EventService
}

func NewWarHandler(wars repos.WarRepo, factions repos.FactionRepo, store *territory.Store, events services.EventService) *WarHandler {
	return &WarHandler{wars: wars, factions: factions, territory: store, events: events}
}

// GET /api/wars
func (h *WarHandler) ListWars(c *gin.Context) {
	wars, err := h.wars.List(dbctx.Context{Ctx: c.Request.Context()})
	if err != nil {
		response.RespondErr(c, "list_wars_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"wars": wars})
}

// GET /api/wars/:warId/territory?date=YYYY-MM-DD
func (h *WarHandler) Territory(c *gin.Context) {
	warID, ok := h.requireWar(c)
	if !ok {
		return
	}
	date, err := optionalDate(c.Query("date"))
	if err != nil {
		response.RespondErr(c, "invalid_date", err)
		return
	}
	out, err := h.territory.TerritoryAsOf(c.Request.Context(), warID, date)
	if err != nil {
		response.RespondErr(c, "territory_failed", err)
		return
	}
	asOf := territory.SnapshotDateCurrent
	if date != nil {
		asOf = tasks.FormatDate(*date)
	}
	response.RespondOK(c, gin.H{"war_id": warID, "as_of": asOf, "factions": out})
}

// GET /api/wars/:warId/territory/history?faction=:id
func (h *WarHandler) TerritoryHistory(c *gin.Context) {
	warID, ok := h.requireWar(c)
	if !ok {
		return
	}
	factionID, err := uuid.Parse(strings.TrimSpace(c.Query("faction")))
	if err != nil {
		response.RespondErr(c, "invalid_faction_id", fmt.Errorf("faction: %w", apperr.ErrInvalidArgument))
		return
	}
	f, err := h.factions.GetByID(dbctx.Context{Ctx: c.Request.Context()}, factionID)
	if err != nil {
		response.RespondErr(c, "faction_lookup_failed", err)
		return
	}
	if f == nil || f.WarID != warID {
		response.RespondErr(c, "faction_not_found", fmt.Errorf("faction %s: %w", factionID, apperr.ErrNotFound))
		return
	}
	snaps, err := h.territory.History(c.Request.Context(), factionID)
	if err != nil {
		response.RespondErr(c, "history_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"faction_id": factionID, "snapshots": snaps})
}

// GET /api/wars/:warId/events?date=YYYY-MM-DD&limit=50&min_evidence=0
func (h *WarHandler) Events(c *gin.Context) {
	warID, err := uuid.Parse(c.Param("warId"))
	if err != nil {
		response.RespondErr(c, "invalid_war_id", fmt.Errorf("war id: %w", apperr.ErrInvalidArgument))
		return
	}
	date, err := optionalDate(c.Query("date"))
	if err != nil {
		response.RespondErr(c, "invalid_date", err)
		return
	}
	limit, err := optionalInt(c.Query("limit"))
	if err != nil {
		response.RespondErr(c, "invalid_limit", err)
		return
	}
	minEvidence, err := optionalInt(c.Query("min_evidence"))
	if err != nil {
		response.RespondErr(c, "invalid_min_evidence", err)
		return
	}
	evs, err := h.events.EventsOnDate(c.Request.Context(), services.EventQuery{
		WarID:       warID,
		Date:        date,
		Limit:       limit,
		MinEvidence: minEvidence,
	})
	if err != nil {
		response.RespondErr(c, "events_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"events": evs})
}

func (h *WarHandler) requireWar(c *gin.Context) (uuid.UUID, bool) {
	warID, err := uuid.Parse(c.Param("warId"))
	if err != nil {
		response.RespondErr(c, "invalid_war_id", fmt.Errorf("war id: %w", apperr.ErrInvalidArgument))
		return uuid.Nil, false
	}
	war, err := h.wars.GetByID(dbctx.Context{Ctx: c.Request.Context()}, warID)
	if err != nil {
		response.RespondErr(c, "war_lookup_failed", err)
		return uuid.Nil, false
	}
	if war == nil {
		response.RespondErr(c, "war_not_found", fmt.Errorf("war %s: %w", warID, apperr.ErrNotFound))
		return uuid.Nil, false
	}
	return warID, true
}

func optionalDate(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	d, err := tasks.ParseDate(raw)
	if err != nil {
		return nil, fmt.Errorf("date must be YYYY-MM-DD: %w", apperr.ErrInvalidArgument)
	}
	return &d, nil
}

func optionalInt(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%q is not a non-negative integer: %w", raw, apperr.ErrInvalidArgument)
	}
	return n, nil
}
