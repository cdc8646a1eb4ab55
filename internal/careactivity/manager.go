package careactivity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"careplan/internal/apperror"
	"careplan/internal/audit"
	"careplan/internal/database"
	"careplan/internal/dto"
	"careplan/internal/ro"
	"careplan/internal/storage"
	"careplan/internal/util"

	"github.com/google/uuid"
)

type Manager struct {
	logger  *slog.Logger
	db      *database.Database
	auditor *audit.Auditor
	storage storage.Storage
}

func NewManager(logger *slog.Logger, db *database.Database, auditor *audit.Auditor, storage storage.Storage) Manager {
	return Manager{logger: logger, db: db, auditor: auditor, storage: storage}
}

func notFound() *apperror.Error {
	return apperror.NotFound(apperror.TypeCareActivityNotFound, "Care activity not found")
}

// mapError turns the sentinel errors of the database layer into API errors.
func mapError(err error, action string) error {
	switch {
	case errors.Is(err, database.ErrCareActivityNotFound):
		return notFound()
	case errors.Is(err, database.ErrBundleNotFound):
		return apperror.NotFound(apperror.TypeBundleNotFound, "Care competency not found")
	case errors.Is(err, database.ErrUnitNotFound):
		return apperror.NotFound(apperror.TypeUnitNotFound, "Care setting not found")
	case errors.Is(err, database.ErrDuplicate):
		return apperror.Conflict(apperror.TypeCareActivityExists, "A care activity with this name already exists")
	}
	return fmt.Errorf("failed to %s: %w", action, err)
}

func (m *Manager) ListUnits(ctx context.Context) ([]ro.UnitRO, error) {
	units, err := m.db.ListUnits(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list units: %w", err)
	}
	out := make([]ro.UnitRO, len(units))
	for i, u := range units {
		out[i] = ro.NewUnit(u)
	}
	return out, nil
}

func (m *Manager) ListBundles(ctx context.Context) ([]ro.BundleRO, error) {
	bundles, err := m.db.ListBundles(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list bundles: %w", err)
	}
	out := make([]ro.BundleRO, len(bundles))
	for i, b := range bundles {
		out[i] = ro.NewBundle(b)
	}
	return out, nil
}

// BundlesForUnit returns the care competencies that have at least one
// activity in the care setting, each with those activities.
func (m *Manager) BundlesForUnit(ctx context.Context, unitID uuid.UUID) ([]ro.BundleWithActivitiesRO, error) {
	if _, err := m.db.GetUnitByID(ctx, unitID); err != nil {
		return nil, mapError(err, "get unit")
	}

	activities, err := m.db.ListCareActivities(ctx, database.ListCareActivitiesParams{UnitID: util.Some(unitID)})
	if err != nil {
		return nil, fmt.Errorf("failed to list care activities: %w", err)
	}
	bundles, err := m.db.ListBundles(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list bundles: %w", err)
	}

	byBundle := make(map[uuid.UUID][]ro.CareActivityRO)
	for _, a := range activities {
		byBundle[a.BundleID] = append(byBundle[a.BundleID], ro.NewCareActivity(a))
	}

	out := []ro.BundleWithActivitiesRO{}
	for _, b := range bundles {
		if len(byBundle[b.ID]) == 0 {
			continue
		}
		out = append(out, ro.BundleWithActivitiesRO{BundleRO: ro.NewBundle(b), CareActivities: byBundle[b.ID]})
	}
	return out, nil
}

func (m *Manager) Find(ctx context.Context, query dto.CareActivityCMSQuery) (ro.PaginationRO[ro.CareActivityCMSRO], error) {
	params := database.FindCareActivitiesParams{
		Limit:   query.Limit(),
		Offset:  query.Offset(),
		SortKey: database.CareActivitySortKey(query.SortKey),
		Order:   dto.OrderBy(query.SortOrder),
	}
	if query.SearchText != "" {
		params.SearchText = util.Some(query.SearchText)
	}
	if query.UnitID != "" {
		params.UnitID = util.Some(uuid.MustParse(query.UnitID))
	}

	items, total, err := m.db.FindCareActivities(ctx, params)
	if err != nil {
		return ro.PaginationRO[ro.CareActivityCMSRO]{}, fmt.Errorf("failed to find care activities: %w", err)
	}
	out := make([]ro.CareActivityCMSRO, len(items))
	for i, item := range items {
		out[i] = ro.NewCareActivityCMS(item)
	}
	return ro.NewPagination(out, total), nil
}

func (m *Manager) Get(ctx context.Context, id uuid.UUID) (ro.CareActivityDetailRO, error) {
	return m.get(ctx, m.db.Queries, id)
}

func (m *Manager) get(ctx context.Context, q *database.Queries, id uuid.UUID) (ro.CareActivityDetailRO, error) {
	activity, err := q.GetCareActivityByID(ctx, id)
	if err != nil {
		return ro.CareActivityDetailRO{}, mapError(err, "get care activity")
	}
	bundle, err := q.GetBundle(ctx, database.GetBundleParams{ID: util.Some(activity.BundleID)})
	if err != nil {
		return ro.CareActivityDetailRO{}, mapError(err, "get bundle")
	}

	links, err := q.ListCareActivityUnits(ctx, []uuid.UUID{id})
	if err != nil {
		return ro.CareActivityDetailRO{}, fmt.Errorf("failed to list care activity units: %w", err)
	}
	linked := make(map[uuid.UUID]bool, len(links))
	for _, l := range links {
		linked[l.UnitID] = true
	}
	units, err := q.ListUnits(ctx)
	if err != nil {
		return ro.CareActivityDetailRO{}, fmt.Errorf("failed to list units: %w", err)
	}
	locations := []ro.UnitRO{}
	for _, u := range units {
		if linked[u.ID] {
			locations = append(locations, ro.NewUnit(u))
		}
	}

	allowed, err := q.ListAllowedActivities(ctx, database.ListAllowedActivitiesParams{
		CareActivityIDs:           util.Some([]uuid.UUID{id}),
		ExcludeDeletedOccupations: true,
	})
	if err != nil {
		return ro.CareActivityDetailRO{}, fmt.Errorf("failed to list allowed activities: %w", err)
	}
	permissions := make(map[uuid.UUID]database.Permission, len(allowed))
	for _, aa := range allowed {
		permissions[aa.OccupationID] = aa.Permission
	}

	occupations, _, err := q.ListOccupations(ctx, database.ListOccupationsParams{SortKey: database.OccupationSortDisplayOrder})
	if err != nil {
		return ro.CareActivityDetailRO{}, fmt.Errorf("failed to list occupations: %w", err)
	}
	allowedROs := []ro.AllowedActivityRO{}
	for _, o := range occupations {
		if p, ok := permissions[o.ID]; ok {
			allowedROs = append(allowedROs, ro.AllowedActivityRO{OccupationID: o.ID, OccupationName: o.DisplayName, Permission: string(p)})
		}
	}

	return ro.CareActivityDetailRO{
		CareActivityRO:    ro.NewCareActivity(activity),
		Bundle:            ro.NewBundle(bundle),
		CareLocations:     locations,
		AllowedActivities: allowedROs,
		UpdatedAt:         activity.UpdatedAt,
	}, nil
}

// Edit replaces the activity's fields, care settings and allowed activities
// in one transaction.
func (m *Manager) Edit(ctx context.Context, actor database.User, id uuid.UUID, req dto.EditCareActivityDTO) (ro.CareActivityDetailRO, error) {
	displayName := util.CleanDisplayName(req.DisplayName)
	bundleID := uuid.MustParse(req.BundleID)
	unitIDs := dto.ParseIDs(req.CareLocations)

	clinicalType := util.None[database.ClinicalType]()
	if req.ClinicalType != "" {
		clinicalType = util.Some(database.ClinicalType(req.ClinicalType))
	}

	var detail ro.CareActivityDetailRO
	err := m.db.WithTx(ctx, func(q *database.Queries) error {
		if _, err := q.GetCareActivityByID(ctx, id); err != nil {
			return err
		}
		if _, err := q.GetBundle(ctx, database.GetBundleParams{ID: util.Some(bundleID)}); err != nil {
			return err
		}
		for _, unitID := range unitIDs {
			if _, err := q.GetUnitByID(ctx, unitID); err != nil {
				return err
			}
		}

		if err := q.UpdateCareActivityByID(ctx, id, database.UpdateCareActivityParams{
			Name:         util.Some(util.NormalizeName(displayName)),
			DisplayName:  util.Some(displayName),
			Description:  util.Some(req.Description),
			ActivityType: util.Some(database.ActivityType(req.ActivityType)),
			ClinicalType: util.Some(clinicalType),
			BundleID:     util.Some(bundleID),
		}); err != nil {
			return err
		}

		if err := q.ClearCareActivityUnits(ctx, id); err != nil {
			return err
		}
		for _, unitID := range unitIDs {
			if err := q.AddCareActivityUnit(ctx, id, unitID); err != nil {
				return err
			}
		}

		if err := m.replaceAllowedActivities(ctx, q, id, req.AllowedActivities); err != nil {
			return err
		}

		if err := m.auditor.LogEventWith(ctx, q, audit.LogEventParam{
			UserID: util.Some(actor.ID),
			Type:   audit.EventTypeCareActivityUpdate,
			Data: map[string]any{
				"care_activity_id":   id,
				"display_name":       displayName,
				"care_locations":     len(unitIDs),
				"allowed_activities": len(req.AllowedActivities),
			},
		}); err != nil {
			return err
		}

		var err error
		detail, err = m.get(ctx, q, id)
		return err
	})
	if err != nil {
		return ro.CareActivityDetailRO{}, mapError(err, "edit care activity")
	}

	return detail, nil
}

func (m *Manager) replaceAllowedActivities(ctx context.Context, q *database.Queries, id uuid.UUID, entries []dto.AllowedActivityDTO) error {
	if err := q.DeleteAllowedActivitiesByCareActivity(ctx, id); err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}

	occupations, _, err := q.ListOccupations(ctx, database.ListOccupationsParams{})
	if err != nil {
		return err
	}
	known := make(map[uuid.UUID]bool, len(occupations))
	for _, o := range occupations {
		known[o.ID] = true
	}

	for _, entry := range entries {
		occupationID := uuid.MustParse(entry.OccupationID)
		if !known[occupationID] {
			return apperror.NotFound(apperror.TypeOccupationNotFound, fmt.Sprintf("Occupation %s not found", occupationID))
		}
		if err := q.UpsertAllowedActivity(ctx, database.UpsertAllowedActivityParams{
			OccupationID:   occupationID,
			CareActivityID: id,
			Permission:     database.Permission(entry.Permission),
		}); err != nil {
			return err
		}
	}
	return nil
}

// Delete removes the activity. Care setting links and allowed activities
// cascade in the database.
func (m *Manager) Delete(ctx context.Context, actor database.User, id uuid.UUID) error {
	err := m.db.WithTx(ctx, func(q *database.Queries) error {
		activity, err := q.GetCareActivityByID(ctx, id)
		if err != nil {
			return err
		}
		if err := q.DeleteCareActivityByID(ctx, id); err != nil {
			return err
		}
		return m.auditor.LogEventWith(ctx, q, audit.LogEventParam{
			UserID: util.Some(actor.ID),
			Type:   audit.EventTypeCareActivityDelete,
			Data:   map[string]any{"care_activity_id": id, "display_name": activity.DisplayName},
		})
	})
	if err != nil {
		return mapError(err, "delete care activity")
	}

	return nil
}

func (m *Manager) RemoveUnit(ctx context.Context, actor database.User, id, unitID uuid.UUID) error {
	err := m.db.WithTx(ctx, func(q *database.Queries) error {
		if _, err := q.GetCareActivityByID(ctx, id); err != nil {
			return err
		}
		if err := q.RemoveCareActivityUnit(ctx, id, unitID); err != nil {
			return err
		}
		return m.auditor.LogEventWith(ctx, q, audit.LogEventParam{
			UserID: util.Some(actor.ID),
			Type:   audit.EventTypeCareActivityUnitRemove,
			Data:   map[string]any{"care_activity_id": id, "unit_id": unitID},
		})
	})
	if err != nil {
		return mapError(err, "remove care setting")
	}
	return nil
}
