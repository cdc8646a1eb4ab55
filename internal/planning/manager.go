// Package planning implements the care planning wizard: a planning session
// walks through a profile, a set of care activities and a team of
// occupations, and reports the gaps the team leaves.
package planning

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"careplan/internal/apperror"
	"careplan/internal/database"
	"careplan/internal/dto"
	"careplan/internal/monitoring"
	"careplan/internal/ro"
	"careplan/internal/user"
	"careplan/internal/util"
	"careplan/internal/validator"

	"github.com/google/uuid"
)

type Manager struct {
	logger    *slog.Logger
	db        *database.Database
	users     *user.Manager
	telemetry monitoring.Telemetry
}

func NewManager(logger *slog.Logger, db *database.Database, users *user.Manager, telemetry monitoring.Telemetry) Manager {
	return Manager{logger: logger, db: db, users: users, telemetry: telemetry}
}

// profile is the JSON blob stored on the session.
type profile struct {
	ProfileOption string `json:"profileOption,omitempty"`
}

func parseProfile(raw json.RawMessage) profile {
	var p profile
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &p)
	}
	return p
}

func notFound() *apperror.Error {
	return apperror.NotFound(apperror.TypePlanningSessionNotFound, "Planning session not found")
}

func newSessionRO(s database.PlanningSession) ro.PlanningSessionRO {
	return ro.PlanningSessionRO{
		ID:             s.ID,
		CareLocationID: s.CareLocationID.Ptr(),
		CreatedAt:      s.CreatedAt,
		UpdatedAt:      s.UpdatedAt,
	}
}

// session loads a session owned by actor. Sessions of other users are
// reported as missing.
func session(ctx context.Context, q *database.Queries, actor database.User, id uuid.UUID) (database.PlanningSession, error) {
	s, err := q.GetPlanningSession(ctx, database.GetPlanningSessionParams{ID: util.Some(id), UserID: util.Some(actor.ID)})
	if err != nil {
		if errors.Is(err, database.ErrPlanningSessionNotFound) {
			return s, notFound()
		}
		return s, fmt.Errorf("failed to get planning session: %w", err)
	}
	return s, nil
}

func (m *Manager) Create(ctx context.Context, actor database.User) (ro.PlanningSessionRO, error) {
	s, err := m.db.CreatePlanningSession(ctx, actor.ID)
	if err != nil {
		return ro.PlanningSessionRO{}, fmt.Errorf("failed to create planning session: %w", err)
	}
	m.telemetry.RecordPlanningSessionCreated(ctx)
	m.logger.InfoContext(ctx, "Planning session created", "session_id", s.ID, "user_id", actor.ID)
	return newSessionRO(s), nil
}

// LastDraft returns the most recently updated session of actor, or nil when
// the user has none.
func (m *Manager) LastDraft(ctx context.Context, actor database.User) (*ro.PlanningSessionRO, error) {
	s, err := m.db.GetPlanningSession(ctx, database.GetPlanningSessionParams{UserID: util.Some(actor.ID)})
	if err != nil {
		if errors.Is(err, database.ErrPlanningSessionNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get last draft: %w", err)
	}
	out := newSessionRO(s)
	return &out, nil
}

func (m *Manager) GetProfile(ctx context.Context, actor database.User, id uuid.UUID) (ro.ProfileRO, error) {
	s, err := session(ctx, m.db.Queries, actor, id)
	if err != nil {
		return ro.ProfileRO{}, err
	}

	out := ro.ProfileRO{
		CareLocation:                       s.CareLocationID.Ptr(),
		UserPrefNotShowConfirmDraftRemoval: user.ParsePreferences(actor.Preferences).NotShowConfirmDraftRemoval,
	}
	if p := parseProfile(s.Profile); p.ProfileOption != "" {
		out.ProfileOption = &p.ProfileOption
	}
	return out, nil
}

// SaveProfile stores the profile option and care location. When either
// changes, the activity selection is reset: a generic profile preselects every
// activity of the care location, a profile from scratch starts empty.
func (m *Manager) SaveProfile(ctx context.Context, actor database.User, id uuid.UUID, req dto.SaveProfileDTO) (ro.ProfileRO, error) {
	careLocation := uuid.MustParse(req.CareLocation)
	encoded, err := json.Marshal(profile{ProfileOption: req.ProfileOption})
	if err != nil {
		return ro.ProfileRO{}, fmt.Errorf("failed to encode profile: %w", err)
	}

	err = m.db.WithTx(ctx, func(q *database.Queries) error {
		s, err := session(ctx, q, actor, id)
		if err != nil {
			return err
		}
		if _, err := q.GetUnitByID(ctx, careLocation); err != nil {
			if errors.Is(err, database.ErrUnitNotFound) {
				return apperror.NotFound(apperror.TypeUnitNotFound, "Care setting not found")
			}
			return err
		}

		if err := q.UpdatePlanningSessionByID(ctx, id, database.UpdatePlanningSessionParams{
			Profile:        util.Some(json.RawMessage(encoded)),
			CareLocationID: util.Some(util.Some(careLocation)),
		}); err != nil {
			return err
		}

		changed := parseProfile(s.Profile).ProfileOption != req.ProfileOption ||
			!s.CareLocationID.IsSet || s.CareLocationID.Val != careLocation
		if changed {
			selection := []uuid.UUID{}
			if req.ProfileOption == validator.ProfileOptionGeneric {
				activities, err := q.ListCareActivities(ctx, database.ListCareActivitiesParams{UnitID: util.Some(careLocation)})
				if err != nil {
					return err
				}
				for _, a := range activities {
					selection = append(selection, a.ID)
				}
			}
			if err := q.ReplacePlanningSessionCareActivities(ctx, id, selection); err != nil {
				return err
			}
		}

		return m.users.SetDraftRemovalPreference(ctx, q, actor, req.UserPrefNotShowConfirmDraftRemoval)
	})
	if err != nil {
		return ro.ProfileRO{}, fmt.Errorf("failed to save profile: %w", err)
	}

	option := req.ProfileOption
	return ro.ProfileRO{
		ProfileOption:                      &option,
		CareLocation:                       &careLocation,
		UserPrefNotShowConfirmDraftRemoval: req.UserPrefNotShowConfirmDraftRemoval,
	}, nil
}

func (m *Manager) GetCareActivities(ctx context.Context, actor database.User, id uuid.UUID) (ro.SessionCareActivitiesRO, error) {
	if _, err := session(ctx, m.db.Queries, actor, id); err != nil {
		return ro.SessionCareActivitiesRO{}, err
	}

	ids, err := m.db.ListPlanningSessionCareActivities(ctx, id)
	if err != nil {
		return ro.SessionCareActivitiesRO{}, fmt.Errorf("failed to list session care activities: %w", err)
	}
	out := ro.SessionCareActivitiesRO{CareActivityBundle: map[string][]string{}}
	if len(ids) == 0 {
		return out, nil
	}

	activities, err := m.db.ListCareActivities(ctx, database.ListCareActivitiesParams{IDs: util.Some(ids)})
	if err != nil {
		return ro.SessionCareActivitiesRO{}, fmt.Errorf("failed to list care activities: %w", err)
	}
	for _, a := range activities {
		key := a.BundleID.String()
		out.CareActivityBundle[key] = append(out.CareActivityBundle[key], a.ID.String())
	}
	return out, nil
}

// SaveCareActivities replaces the selection. Every activity must be offered
// in the session's care location and belong to the bundle it is listed under.
func (m *Manager) SaveCareActivities(ctx context.Context, actor database.User, id uuid.UUID, req dto.SaveCareActivityDTO) (ro.SessionCareActivitiesRO, error) {
	requested := make(map[uuid.UUID]uuid.UUID)
	ids := []uuid.UUID{}
	for bundle, activityIDs := range req.CareActivityBundle {
		bundleID := uuid.MustParse(bundle)
		for _, a := range dto.ParseIDs(activityIDs) {
			if _, seen := requested[a]; !seen {
				ids = append(ids, a)
			}
			requested[a] = bundleID
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })

	err := m.db.WithTx(ctx, func(q *database.Queries) error {
		s, err := session(ctx, q, actor, id)
		if err != nil {
			return err
		}
		if !s.CareLocationID.IsSet {
			return apperror.Validation("Select a care setting before choosing care activities", nil)
		}

		if len(ids) > 0 {
			activities, err := q.ListCareActivities(ctx, database.ListCareActivitiesParams{
				IDs:    util.Some(ids),
				UnitID: util.Some(s.CareLocationID.Val),
			})
			if err != nil {
				return err
			}
			valid := make(map[uuid.UUID]bool, len(activities))
			for _, a := range activities {
				valid[a.ID] = requested[a.ID] == a.BundleID
			}
			var invalid []string
			for _, a := range ids {
				if !valid[a] {
					invalid = append(invalid, a.String())
				}
			}
			if len(invalid) > 0 {
				return apperror.Validation("Some care activities are not available in the selected care setting",
					map[string]any{"careActivityIds": invalid})
			}
		}

		if err := q.ReplacePlanningSessionCareActivities(ctx, id, ids); err != nil {
			return err
		}
		return q.UpdatePlanningSessionByID(ctx, id, database.UpdatePlanningSessionParams{})
	})
	if err != nil {
		return ro.SessionCareActivitiesRO{}, fmt.Errorf("failed to save care activities: %w", err)
	}

	out := ro.SessionCareActivitiesRO{CareActivityBundle: map[string][]string{}}
	for _, a := range ids {
		key := requested[a].String()
		out.CareActivityBundle[key] = append(out.CareActivityBundle[key], a.String())
	}
	return out, nil
}

func (m *Manager) GetOccupations(ctx context.Context, actor database.User, id uuid.UUID) (ro.SessionOccupationsRO, error) {
	s, err := session(ctx, m.db.Queries, actor, id)
	if err != nil {
		return ro.SessionOccupationsRO{}, err
	}
	ids, err := m.db.ListPlanningSessionOccupations(ctx, id)
	if err != nil {
		return ro.SessionOccupationsRO{}, fmt.Errorf("failed to list session occupations: %w", err)
	}
	return ro.SessionOccupationsRO{Occupation: ids, UnavailableOccupations: s.UnavailableOccupations}, nil
}

// knownOccupations rejects ids that are not active occupations.
func knownOccupations(ctx context.Context, q *database.Queries, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	occupations, _, err := q.ListOccupations(ctx, database.ListOccupationsParams{})
	if err != nil {
		return err
	}
	active := make(map[uuid.UUID]bool, len(occupations))
	for _, o := range occupations {
		active[o.ID] = true
	}
	for _, id := range ids {
		if !active[id] {
			return apperror.NotFound(apperror.TypeOccupationNotFound, fmt.Sprintf("Occupation %s not found", id))
		}
	}
	return nil
}

func uniqueIDs(in []string) []uuid.UUID {
	seen := make(map[uuid.UUID]bool, len(in))
	out := []uuid.UUID{}
	for _, id := range dto.ParseIDs(in) {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

func (m *Manager) SaveOccupations(ctx context.Context, actor database.User, id uuid.UUID, req dto.SaveOccupationDTO) (ro.SessionOccupationsRO, error) {
	ids := uniqueIDs(req.Occupation)

	var s database.PlanningSession
	err := m.db.WithTx(ctx, func(q *database.Queries) error {
		var err error
		if s, err = session(ctx, q, actor, id); err != nil {
			return err
		}
		if err := knownOccupations(ctx, q, ids); err != nil {
			return err
		}
		if err := q.ReplacePlanningSessionOccupations(ctx, id, ids); err != nil {
			return err
		}
		return q.UpdatePlanningSessionByID(ctx, id, database.UpdatePlanningSessionParams{})
	})
	if err != nil {
		return ro.SessionOccupationsRO{}, fmt.Errorf("failed to save occupations: %w", err)
	}
	return ro.SessionOccupationsRO{Occupation: ids, UnavailableOccupations: s.UnavailableOccupations}, nil
}

// SaveUnavailableOccupations records occupations the team cannot draw on.
// They are never suggested.
func (m *Manager) SaveUnavailableOccupations(ctx context.Context, actor database.User, id uuid.UUID, req dto.SaveOccupationDTO) (ro.SessionOccupationsRO, error) {
	ids := uniqueIDs(req.Occupation)

	var selected []uuid.UUID
	err := m.db.WithTx(ctx, func(q *database.Queries) error {
		if _, err := session(ctx, q, actor, id); err != nil {
			return err
		}
		if err := knownOccupations(ctx, q, ids); err != nil {
			return err
		}
		if err := q.UpdatePlanningSessionByID(ctx, id, database.UpdatePlanningSessionParams{
			UnavailableOccupations: util.Some(ids),
		}); err != nil {
			return err
		}
		var err error
		selected, err = q.ListPlanningSessionOccupations(ctx, id)
		return err
	})
	if err != nil {
		return ro.SessionOccupationsRO{}, fmt.Errorf("failed to save unavailable occupations: %w", err)
	}
	return ro.SessionOccupationsRO{Occupation: selected, UnavailableOccupations: ids}, nil
}

// workspace is everything the gap report and the suggestions are computed from.
type workspace struct {
	session     database.PlanningSession
	activities  []database.CareActivity
	bundles     []database.Bundle
	occupations []database.Occupation
	team        []uuid.UUID
	allowed     []database.AllowedActivity
}

func (m *Manager) loadWorkspace(ctx context.Context, actor database.User, id uuid.UUID) (workspace, error) {
	var ws workspace
	var err error
	q := m.db.Queries
	if ws.session, err = session(ctx, q, actor, id); err != nil {
		return ws, err
	}

	activityIDs, err := q.ListPlanningSessionCareActivities(ctx, id)
	if err != nil {
		return ws, fmt.Errorf("failed to list session care activities: %w", err)
	}
	if ws.team, err = q.ListPlanningSessionOccupations(ctx, id); err != nil {
		return ws, fmt.Errorf("failed to list session occupations: %w", err)
	}
	if ws.occupations, _, err = q.ListOccupations(ctx, database.ListOccupationsParams{SortKey: database.OccupationSortDisplayOrder}); err != nil {
		return ws, fmt.Errorf("failed to list occupations: %w", err)
	}
	if len(activityIDs) == 0 {
		return ws, nil
	}

	if ws.activities, err = q.ListCareActivities(ctx, database.ListCareActivitiesParams{IDs: util.Some(activityIDs)}); err != nil {
		return ws, fmt.Errorf("failed to list care activities: %w", err)
	}
	if ws.bundles, err = q.ListBundles(ctx); err != nil {
		return ws, fmt.Errorf("failed to list bundles: %w", err)
	}
	if ws.allowed, err = q.ListAllowedActivities(ctx, database.ListAllowedActivitiesParams{
		CareActivityIDs:           util.Some(activityIDs),
		ExcludeDeletedOccupations: true,
	}); err != nil {
		return ws, fmt.Errorf("failed to list allowed activities: %w", err)
	}
	return ws, nil
}

func (m *Manager) ActivitiesGap(ctx context.Context, actor database.User, id uuid.UUID) (ro.ActivitiesGapRO, error) {
	ws, err := m.loadWorkspace(ctx, actor, id)
	if err != nil {
		return ro.ActivitiesGapRO{}, err
	}
	return activitiesGap(ws), nil
}

func (m *Manager) Suggestions(ctx context.Context, actor database.User, id uuid.UUID, query dto.SuggestionQuery) (ro.PaginationRO[ro.SuggestionRO], error) {
	ws, err := m.loadWorkspace(ctx, actor, id)
	if err != nil {
		return ro.PaginationRO[ro.SuggestionRO]{}, err
	}

	start := time.Now()
	team := append(append([]uuid.UUID{}, ws.team...), dto.ParseIDs(query.TempSelectedIDs)...)
	ranked := suggest(ws, team)
	m.telemetry.RecordSuggestionLatency(ctx, time.Since(start), len(ranked))

	total := len(ranked)
	from := max(min(query.Offset(), total), 0)
	to := min(from+query.Limit(), total)
	return ro.NewPagination(ranked[from:to], total), nil
}
