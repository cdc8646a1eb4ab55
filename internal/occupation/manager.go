package occupation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"careplan/internal/apperror"
	"careplan/internal/audit"
	"careplan/internal/cache"
	"careplan/internal/database"
	"careplan/internal/dto"
	"careplan/internal/ro"
	"careplan/internal/util"

	"github.com/google/uuid"
)

const listAllTTL = 10 * time.Minute

type Manager struct {
	logger  *slog.Logger
	db      *database.Database
	auditor *audit.Auditor
	cache   *cache.Cache
}

func NewManager(logger *slog.Logger, db *database.Database, auditor *audit.Auditor, cache *cache.Cache) Manager {
	return Manager{logger: logger, db: db, auditor: auditor, cache: cache}
}

func notFound() *apperror.Error {
	return apperror.NotFound(apperror.TypeOccupationNotFound, "Occupation not found")
}

func errOccupationExists() *apperror.Error {
	return apperror.Conflict(apperror.TypeOccupationExists, "An occupation with this name already exists")
}

func (m *Manager) List(ctx context.Context, query dto.OccupationQuery) (ro.PaginationRO[ro.OccupationRO], error) {
	params := database.ListOccupationsParams{
		Limit:   query.Limit(),
		Offset:  query.Offset(),
		SortKey: database.OccupationSortKey(query.SortKey),
		Order:   dto.OrderBy(query.SortOrder),
	}
	if query.SearchText != "" {
		params.SearchText = util.Some(query.SearchText)
	}

	occupations, total, err := m.db.ListOccupations(ctx, params)
	if err != nil {
		return ro.PaginationRO[ro.OccupationRO]{}, fmt.Errorf("failed to list occupations: %w", err)
	}
	return ro.NewPagination(toROs(occupations), total), nil
}

// ListAll returns every active occupation in display order, for pickers.
func (m *Manager) ListAll(ctx context.Context) ([]ro.OccupationRO, error) {
	key := m.cache.NamespacedKey(ctx, cache.NamespaceOccupations, "all")
	return cache.Remember(ctx, m.cache, key, listAllTTL, func(ctx context.Context) ([]ro.OccupationRO, error) {
		occupations, _, err := m.db.ListOccupations(ctx, database.ListOccupationsParams{SortKey: database.OccupationSortDisplayOrder})
		if err != nil {
			return nil, fmt.Errorf("failed to list occupations: %w", err)
		}
		return toROs(occupations), nil
	})
}

func (m *Manager) Get(ctx context.Context, id uuid.UUID) (ro.OccupationRO, error) {
	occupation, err := m.db.GetOccupationByID(ctx, id)
	if err != nil {
		if errors.Is(err, database.ErrOccupationNotFound) {
			return ro.OccupationRO{}, notFound()
		}
		return ro.OccupationRO{}, fmt.Errorf("failed to get occupation: %w", err)
	}
	return ro.NewOccupation(occupation), nil
}

func (m *Manager) Scope(ctx context.Context, id uuid.UUID, query dto.ScopeQuery) (ro.PaginationRO[ro.ScopeItemRO], error) {
	if _, err := m.Get(ctx, id); err != nil {
		return ro.PaginationRO[ro.ScopeItemRO]{}, err
	}

	params := database.ListOccupationScopeParams{
		OccupationID: id,
		Limit:        query.Limit(),
		Offset:       query.Offset(),
	}
	if query.SearchText != "" {
		params.SearchText = util.Some(query.SearchText)
	}
	if query.BundleID != "" {
		params.BundleID = util.Some(uuid.MustParse(query.BundleID))
	}
	if query.Permission != "" {
		params.Permission = util.Some(database.Permission(query.Permission))
	}

	items, total, err := m.db.ListOccupationScope(ctx, params)
	if err != nil {
		return ro.PaginationRO[ro.ScopeItemRO]{}, fmt.Errorf("failed to list occupation scope: %w", err)
	}

	result := make([]ro.ScopeItemRO, len(items))
	for i, item := range items {
		result[i] = ro.NewScopeItem(item)
	}
	return ro.NewPagination(result, total), nil
}

func (m *Manager) Create(ctx context.Context, actor database.User, req dto.CreateOccupationDTO) (ro.OccupationRO, error) {
	displayName := util.CleanDisplayName(req.DisplayName)

	var created database.Occupation
	err := m.db.WithTx(ctx, func(q *database.Queries) error {
		var err error
		created, err = q.CreateOccupation(ctx, database.CreateOccupationParams{
			Name:             util.NormalizeName(displayName),
			DisplayName:      displayName,
			Description:      req.Description,
			DisplayOrder:     util.FromPtr(req.DisplayOrder).UnwrapOr(0),
			IsRegulated:      req.IsRegulated,
			RelatedResources: toResources(req.RelatedResources),
		})
		if errors.Is(err, database.ErrDuplicate) {
			return errOccupationExists()
		}
		if err != nil {
			return err
		}

		return m.auditor.LogEventWith(ctx, q, audit.LogEventParam{
			UserID: util.Some(actor.ID),
			Type:   audit.EventTypeOccupationCreate,
			Data:   map[string]any{"occupation_id": created.ID, "display_name": displayName},
		})
	})
	if err != nil {
		return ro.OccupationRO{}, fmt.Errorf("failed to create occupation: %w", err)
	}

	m.cache.Invalidate(ctx, cache.NamespaceOccupations)
	return ro.NewOccupation(created), nil
}

// Edit updates the occupation fields that are present and applies scope
// changes in the same transaction. A scope entry without a permission removes
// the activity from the occupation's scope.
func (m *Manager) Edit(ctx context.Context, actor database.User, id uuid.UUID, req dto.EditOccupationDTO) (ro.OccupationRO, error) {
	params := database.UpdateOccupationParams{
		Description:  util.FromPtr(req.Description),
		DisplayOrder: util.FromPtr(req.DisplayOrder),
		IsRegulated:  util.FromPtr(req.IsRegulated),
	}
	if req.DisplayName != nil {
		displayName := util.CleanDisplayName(*req.DisplayName)
		params.DisplayName = util.Some(displayName)
		params.Name = util.Some(util.NormalizeName(displayName))
	}
	if req.RelatedResources != nil {
		params.RelatedResources = util.Some(toResources(req.RelatedResources))
	}

	var updated database.Occupation
	err := m.db.WithTx(ctx, func(q *database.Queries) error {
		if err := q.UpdateOccupationByID(ctx, id, params); err != nil {
			return err
		}

		if err := m.applyScope(ctx, q, id, req.ScopePermissions); err != nil {
			return err
		}

		var err error
		if updated, err = q.GetOccupationByID(ctx, id); err != nil {
			return err
		}

		return m.auditor.LogEventWith(ctx, q, audit.LogEventParam{
			UserID: util.Some(actor.ID),
			Type:   audit.EventTypeOccupationUpdate,
			Data:   map[string]any{"occupation_id": id, "scope_changes": len(req.ScopePermissions)},
		})
	})
	if err != nil {
		if errors.Is(err, database.ErrOccupationNotFound) {
			return ro.OccupationRO{}, notFound()
		}
		if errors.Is(err, database.ErrDuplicate) {
			return ro.OccupationRO{}, errOccupationExists()
		}
		return ro.OccupationRO{}, fmt.Errorf("failed to edit occupation: %w", err)
	}

	m.cache.Invalidate(ctx, cache.NamespaceOccupations, cache.NamespaceKPI)
	return ro.NewOccupation(updated), nil
}

func (m *Manager) applyScope(ctx context.Context, q *database.Queries, id uuid.UUID, changes []dto.ScopePermissionDTO) error {
	if len(changes) == 0 {
		return nil
	}

	ids := make([]uuid.UUID, 0, len(changes))
	for _, c := range changes {
		ids = append(ids, uuid.MustParse(c.CareActivityID))
	}
	activities, err := q.ListCareActivities(ctx, database.ListCareActivitiesParams{IDs: util.Some(ids)})
	if err != nil {
		return err
	}
	known := make(map[uuid.UUID]bool, len(activities))
	for _, a := range activities {
		known[a.ID] = true
	}

	for i, c := range changes {
		activityID := ids[i]
		if !known[activityID] {
			return apperror.NotFound(apperror.TypeCareActivityNotFound, fmt.Sprintf("Care activity %s not found", activityID))
		}

		if c.Permission == nil {
			if err := q.DeleteAllowedActivity(ctx, id, activityID); err != nil {
				return err
			}
			continue
		}
		if err := q.UpsertAllowedActivity(ctx, database.UpsertAllowedActivityParams{
			OccupationID:   id,
			CareActivityID: activityID,
			Permission:     database.Permission(*c.Permission),
		}); err != nil {
			return err
		}
	}
	return nil
}

// Delete soft-deletes the occupation. Its allowed activities stay for history
// but are ignored by planning.
func (m *Manager) Delete(ctx context.Context, actor database.User, id uuid.UUID) error {
	err := m.db.WithTx(ctx, func(q *database.Queries) error {
		if err := q.SoftDeleteOccupationByID(ctx, id); err != nil {
			return err
		}
		return m.auditor.LogEventWith(ctx, q, audit.LogEventParam{
			UserID: util.Some(actor.ID),
			Type:   audit.EventTypeOccupationDelete,
			Data:   map[string]any{"occupation_id": id},
		})
	})
	if err != nil {
		if errors.Is(err, database.ErrOccupationNotFound) {
			return notFound()
		}
		return fmt.Errorf("failed to delete occupation: %w", err)
	}

	m.cache.Invalidate(ctx, cache.NamespaceOccupations, cache.NamespaceKPI)
	return nil
}

func toROs(occupations []database.Occupation) []ro.OccupationRO {
	out := make([]ro.OccupationRO, len(occupations))
	for i, o := range occupations {
		out[i] = ro.NewOccupation(o)
	}
	return out
}

func toResources(in []dto.RelatedResourceDTO) []database.RelatedResource {
	out := make([]database.RelatedResource, len(in))
	for i, r := range in {
		out[i] = database.RelatedResource{Label: r.Label, Link: r.Link}
	}
	return out
}
