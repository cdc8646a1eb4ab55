package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"careplan/internal/util"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

type Permission string

const (
	// PermissionPerform means the occupation performs the activity on its own.
	PermissionPerform Permission = "Y"
	// PermissionLimits means the occupation performs it within limits and conditions.
	PermissionLimits Permission = "LC"
)

func (p Permission) Valid() bool {
	return p == PermissionPerform || p == PermissionLimits
}

type AllowedActivity struct {
	ID             uuid.UUID
	OccupationID   uuid.UUID
	CareActivityID uuid.UUID
	UnitID         util.Optional[uuid.UUID]
	Permission     Permission
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type ListAllowedActivitiesParams struct {
	OccupationIDs   util.Optional[[]uuid.UUID]
	CareActivityIDs util.Optional[[]uuid.UUID]
	// ExcludeDeletedOccupations drops rows of soft-deleted occupations.
	ExcludeDeletedOccupations bool
}

func (q *Queries) ListAllowedActivities(ctx context.Context, params ListAllowedActivitiesParams) ([]AllowedActivity, error) {
	b := newWhereBuilder(`SELECT aa.id, aa.occupation_id, aa.care_activity_id, aa.unit_id, aa.permission, aa.created_at, aa.updated_at FROM tbl_allowed_activity aa WHERE 1=1`)
	if params.OccupationIDs.IsSet {
		b.add("aa.occupation_id = ANY(?)", pq.Array(uuidStrings(params.OccupationIDs.Val)))
	}
	if params.CareActivityIDs.IsSet {
		b.add("aa.care_activity_id = ANY(?)", pq.Array(uuidStrings(params.CareActivityIDs.Val)))
	}
	if params.ExcludeDeletedOccupations {
		b.add("EXISTS (SELECT 1 FROM tbl_occupation o WHERE o.id = aa.occupation_id AND o.deleted_at IS NULL)")
	}

	rows, err := q.q.QueryContext(ctx, b.String(), b.args...)
	if err != nil {
		return nil, fmt.Errorf("database: failed to list allowed activities: %w", err)
	}
	defer rows.Close()

	var allowed []AllowedActivity
	for rows.Next() {
		var aa AllowedActivity
		if err := rows.Scan(&aa.ID, &aa.OccupationID, &aa.CareActivityID, &aa.UnitID, &aa.Permission, &aa.CreatedAt, &aa.UpdatedAt); err != nil {
			return nil, fmt.Errorf("database: failed to scan allowed activity: %w", err)
		}
		allowed = append(allowed, aa)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("database: failed to iterate allowed activities: %w", err)
	}
	return allowed, nil
}

type UpsertAllowedActivityParams struct {
	OccupationID   uuid.UUID
	CareActivityID uuid.UUID
	UnitID         util.Optional[uuid.UUID]
	Permission     Permission
}

// UpsertAllowedActivity sets the permission of an occupation for a care activity.
func (q *Queries) UpsertAllowedActivity(ctx context.Context, params UpsertAllowedActivityParams) error {
	now := time.Now().UTC()
	if _, err := q.q.ExecContext(ctx, `INSERT INTO tbl_allowed_activity (id, occupation_id, care_activity_id, unit_id, permission, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		ON CONFLICT (occupation_id, care_activity_id) DO UPDATE SET permission = EXCLUDED.permission, unit_id = EXCLUDED.unit_id, updated_at = EXCLUDED.updated_at`,
		uuid.New(), params.OccupationID, params.CareActivityID, params.UnitID, params.Permission, now); err != nil {
		return fmt.Errorf("database: failed to upsert allowed activity (occupation_id=%s, care_activity_id=%s): %w", params.OccupationID, params.CareActivityID, err)
	}
	return nil
}

func (q *Queries) DeleteAllowedActivity(ctx context.Context, occupationID, careActivityID uuid.UUID) error {
	if _, err := q.q.ExecContext(ctx, `DELETE FROM tbl_allowed_activity WHERE occupation_id = $1 AND care_activity_id = $2`, occupationID, careActivityID); err != nil {
		return fmt.Errorf("database: failed to delete allowed activity (occupation_id=%s, care_activity_id=%s): %w", occupationID, careActivityID, err)
	}
	return nil
}

func (q *Queries) DeleteAllowedActivitiesByCareActivity(ctx context.Context, careActivityID uuid.UUID) error {
	if _, err := q.q.ExecContext(ctx, `DELETE FROM tbl_allowed_activity WHERE care_activity_id = $1`, careActivityID); err != nil {
		return fmt.Errorf("database: failed to delete allowed activities (care_activity_id=%s): %w", careActivityID, err)
	}
	return nil
}

// ScopeItem is one allowed activity of an occupation, joined with its care activity and bundle.
type ScopeItem struct {
	CareActivityID   uuid.UUID
	CareActivityName string
	ActivityType     ActivityType
	ClinicalType     util.Optional[ClinicalType]
	BundleID         uuid.UUID
	BundleName       string
	UnitID           util.Optional[uuid.UUID]
	Permission       Permission
}

type ListOccupationScopeParams struct {
	OccupationID uuid.UUID
	Limit        int
	Offset       int
	SearchText   util.Optional[string]
	BundleID     util.Optional[uuid.UUID]
	Permission   util.Optional[Permission]
}

func (q *Queries) ListOccupationScope(ctx context.Context, params ListOccupationScopeParams) ([]ScopeItem, int, error) {
	b := newWhereBuilder(`SELECT ca.id, ca.display_name, ca.activity_type, ca.clinical_type, b.id, b.display_name, aa.unit_id, aa.permission, COUNT(*) OVER()
		FROM tbl_allowed_activity aa
		JOIN tbl_care_activity ca ON ca.id = aa.care_activity_id
		JOIN tbl_bundle b ON b.id = ca.bundle_id
		WHERE 1=1`)
	b.add("aa.occupation_id = ?", params.OccupationID)
	if params.SearchText.IsSet && strings.TrimSpace(params.SearchText.Val) != "" {
		pattern := likePattern(params.SearchText.Val)
		b.add("(ca.display_name ILIKE ? OR b.display_name ILIKE ?)", pattern, pattern)
	}
	if params.BundleID.IsSet {
		b.add("b.id = ?", params.BundleID.Val)
	}
	if params.Permission.IsSet {
		b.add("aa.permission = ?", params.Permission.Val)
	}
	b.raw(" ORDER BY b.display_name, ca.display_name, ca.id")
	b.page(params.Limit, params.Offset)

	rows, err := q.q.QueryContext(ctx, b.String(), b.args...)
	if err != nil {
		return nil, 0, fmt.Errorf("database: failed to list occupation scope (id=%s): %w", params.OccupationID, err)
	}
	defer rows.Close()

	var items []ScopeItem
	total := 0
	for rows.Next() {
		var item ScopeItem
		if err := rows.Scan(&item.CareActivityID, &item.CareActivityName, &item.ActivityType, &item.ClinicalType,
			&item.BundleID, &item.BundleName, &item.UnitID, &item.Permission, &total); err != nil {
			return nil, 0, fmt.Errorf("database: failed to scan scope item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("database: failed to iterate occupation scope: %w", err)
	}
	return items, total, nil
}
