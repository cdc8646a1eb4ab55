package kpi

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"careplan/internal/cache"
	"careplan/internal/config"
	"careplan/internal/database"
	"careplan/internal/dto"
	"careplan/internal/ro"
	"careplan/internal/util"

	"github.com/google/uuid"
)

type Manager struct {
	logger *slog.Logger
	db     *database.Database
	cache  *cache.Cache
	config config.KPIConfig
	now    func() time.Time
}

func NewManager(logger *slog.Logger, db *database.Database, cache *cache.Cache, cfg config.KPIConfig) Manager {
	return Manager{logger: logger, db: db, cache: cache, config: cfg, now: time.Now}
}

// Overview counts users and planning sessions, optionally narrowed to one
// organization and one care setting. Results are cached for KPI_CACHE_TTL.
func (m *Manager) Overview(ctx context.Context, query dto.KPIQuery) (ro.KPIOverviewRO, error) {
	key := m.cache.NamespacedKey(ctx, cache.NamespaceKPI, "overview", query.Organization, query.CareSetting)
	return cache.Remember(ctx, m.cache, key, m.config.CacheTTL, func(ctx context.Context) (ro.KPIOverviewRO, error) {
		return m.overview(ctx, query)
	})
}

func (m *Manager) overview(ctx context.Context, query dto.KPIQuery) (ro.KPIOverviewRO, error) {
	organization := util.None[string]()
	if query.Organization != "" {
		organization = util.Some(query.Organization)
	}
	careSetting := util.None[uuid.UUID]()
	if query.CareSetting != "" {
		careSetting = util.Some(uuid.MustParse(query.CareSetting))
	}

	var out ro.KPIOverviewRO
	var err error
	if out.General.TotalUsers, err = m.db.CountUsers(ctx, database.CountUsersParams{Organization: organization}); err != nil {
		return out, fmt.Errorf("failed to count users: %w", err)
	}
	if out.General.ActiveUsers, err = m.db.CountUsers(ctx, database.CountUsersParams{
		Organization: organization,
		ActiveSince:  util.Some(m.now().UTC().Add(-m.config.ActiveWindow)),
	}); err != nil {
		return out, fmt.Errorf("failed to count active users: %w", err)
	}

	sessions := database.CountPlanningSessionsParams{Organization: organization, CareSettingID: careSetting}
	if out.General.TotalPlans, err = m.db.CountPlanningSessions(ctx, sessions); err != nil {
		return out, fmt.Errorf("failed to count planning sessions: %w", err)
	}
	counts, err := m.db.CountPlanningSessionsByCareSetting(ctx, sessions)
	if err != nil {
		return out, fmt.Errorf("failed to count planning sessions by care setting: %w", err)
	}

	out.CarePlans = make([]ro.CarePlanKPIRO, len(counts))
	for i, c := range counts {
		out.CarePlans[i] = ro.CarePlanKPIRO{CareSettingID: c.UnitID, CareSettingName: c.UnitName, Total: c.Total}
	}
	return out, nil
}

func (m *Manager) Organizations(ctx context.Context) ([]string, error) {
	organizations, err := m.db.ListOrganizations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list organizations: %w", err)
	}
	return organizations, nil
}
