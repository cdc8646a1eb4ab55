package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"careplan/internal/util"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

type ActivityType string

const (
	ActivityTypeAspectOfPractice   ActivityType = "ASPECT_OF_PRACTICE"
	ActivityTypeTask               ActivityType = "TASK"
	ActivityTypeRestrictedActivity ActivityType = "RESTRICTED_ACTIVITY"
)

func (t ActivityType) Valid() bool {
	switch t {
	case ActivityTypeAspectOfPractice, ActivityTypeTask, ActivityTypeRestrictedActivity:
		return true
	}
	return false
}

type ClinicalType string

const (
	ClinicalTypeClinical ClinicalType = "CLINICAL"
	ClinicalTypeSupport  ClinicalType = "SUPPORT"
)

func (t ClinicalType) Valid() bool {
	return t == ClinicalTypeClinical || t == ClinicalTypeSupport
}

type CareActivity struct {
	ID           uuid.UUID
	Name         string
	DisplayName  string
	Description  string
	ActivityType ActivityType
	ClinicalType util.Optional[ClinicalType]
	BundleID     uuid.UUID
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

const careActivityColumns = `ca.id, ca.name, ca.display_name, ca.description, ca.activity_type, ca.clinical_type, ca.bundle_id, ca.created_at, ca.updated_at`

func scanCareActivity(row rowScanner, extra ...any) (CareActivity, error) {
	var activity CareActivity
	dest := append([]any{
		&activity.ID, &activity.Name, &activity.DisplayName, &activity.Description,
		&activity.ActivityType, &activity.ClinicalType, &activity.BundleID,
		&activity.CreatedAt, &activity.UpdatedAt,
	}, extra...)
	err := row.Scan(dest...)
	return activity, err
}

type ListCareActivitiesParams struct {
	IDs      util.Optional[[]uuid.UUID]
	UnitID   util.Optional[uuid.UUID]
	BundleID util.Optional[uuid.UUID]
}

func (q *Queries) ListCareActivities(ctx context.Context, params ListCareActivitiesParams) ([]CareActivity, error) {
	b := newWhereBuilder(`SELECT ` + careActivityColumns + ` FROM tbl_care_activity ca WHERE 1=1`)
	if params.IDs.IsSet {
		b.add("ca.id = ANY(?)", pq.Array(uuidStrings(params.IDs.Val)))
	}
	if params.UnitID.IsSet {
		b.add("EXISTS (SELECT 1 FROM tbl_care_activity_unit cau WHERE cau.care_activity_id = ca.id AND cau.unit_id = ?)", params.UnitID.Val)
	}
	if params.BundleID.IsSet {
		b.add("ca.bundle_id = ?", params.BundleID.Val)
	}
	b.raw(" ORDER BY ca.display_name, ca.id")

	rows, err := q.q.QueryContext(ctx, b.String(), b.args...)
	if err != nil {
		return nil, fmt.Errorf("database: failed to list care activities: %w", err)
	}
	defer rows.Close()

	var activities []CareActivity
	for rows.Next() {
		activity, err := scanCareActivity(rows)
		if err != nil {
			return nil, fmt.Errorf("database: failed to scan care activity: %w", err)
		}
		activities = append(activities, activity)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("database: failed to iterate care activities: %w", err)
	}
	return activities, nil
}

type CareActivitySortKey string

const (
	CareActivitySortDisplayName  CareActivitySortKey = "displayName"
	CareActivitySortActivityType CareActivitySortKey = "activityType"
	CareActivitySortClinicalType CareActivitySortKey = "clinicalType"
	CareActivitySortUpdatedAt    CareActivitySortKey = "updatedAt"
)

var careActivitySortColumns = map[CareActivitySortKey]string{
	CareActivitySortDisplayName:  "ca.display_name",
	CareActivitySortActivityType: "ca.activity_type",
	CareActivitySortClinicalType: "ca.clinical_type",
	CareActivitySortUpdatedAt:    "ca.updated_at",
}

type FindCareActivitiesParams struct {
	Limit      int
	Offset     int
	SearchText util.Optional[string]
	UnitID     util.Optional[uuid.UUID]
	SortKey    CareActivitySortKey
	Order      OrderBy
}

// CareActivityListItem is a care activity joined with its bundle for the content management list.
type CareActivityListItem struct {
	CareActivity
	BundleName string
	UnitNames  []string
}

func (q *Queries) FindCareActivities(ctx context.Context, params FindCareActivitiesParams) ([]CareActivityListItem, int, error) {
	b := newWhereBuilder(`SELECT ` + careActivityColumns + `, b.display_name,
		COALESCE((SELECT array_agg(u.display_name ORDER BY u.display_name) FROM tbl_care_activity_unit cau JOIN tbl_unit u ON u.id = cau.unit_id WHERE cau.care_activity_id = ca.id), '{}'),
		COUNT(*) OVER()
		FROM tbl_care_activity ca JOIN tbl_bundle b ON b.id = ca.bundle_id WHERE 1=1`)
	if params.SearchText.IsSet && strings.TrimSpace(params.SearchText.Val) != "" {
		pattern := likePattern(params.SearchText.Val)
		b.add("(ca.display_name ILIKE ? OR b.display_name ILIKE ?)", pattern, pattern)
	}
	if params.UnitID.IsSet {
		b.add("EXISTS (SELECT 1 FROM tbl_care_activity_unit cau WHERE cau.care_activity_id = ca.id AND cau.unit_id = ?)", params.UnitID.Val)
	}

	column, ok := careActivitySortColumns[params.SortKey]
	if !ok {
		column = "ca.display_name"
	}
	b.raw(fmt.Sprintf(" ORDER BY %s %s NULLS LAST, ca.id", column, params.Order.SQL()))
	b.page(params.Limit, params.Offset)

	rows, err := q.q.QueryContext(ctx, b.String(), b.args...)
	if err != nil {
		return nil, 0, fmt.Errorf("database: failed to find care activities: %w", err)
	}
	defer rows.Close()

	var items []CareActivityListItem
	total := 0
	for rows.Next() {
		var item CareActivityListItem
		var unitNames []string
		activity, err := scanCareActivity(rows, &item.BundleName, pq.Array(&unitNames), &total)
		if err != nil {
			return nil, 0, fmt.Errorf("database: failed to scan care activity: %w", err)
		}
		item.CareActivity = activity
		item.UnitNames = unitNames
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("database: failed to iterate care activities: %w", err)
	}
	return items, total, nil
}

func (q *Queries) GetCareActivityByID(ctx context.Context, id uuid.UUID) (CareActivity, error) {
	return q.GetCareActivity(ctx, GetCareActivityParams{ID: util.Some(id)})
}

type GetCareActivityParams struct {
	ID   util.Optional[uuid.UUID]
	Name util.Optional[string]
}

func (q *Queries) GetCareActivity(ctx context.Context, params GetCareActivityParams) (CareActivity, error) {
	b := newWhereBuilder(`SELECT ` + careActivityColumns + ` FROM tbl_care_activity ca WHERE 1=1`)
	if params.ID.IsSet {
		b.add("ca.id = ?", params.ID.Val)
	}
	if params.Name.IsSet {
		b.add("lower(ca.name) = lower(?)", params.Name.Val)
	}

	activity, err := scanCareActivity(q.q.QueryRowContext(ctx, b.String(), b.args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return activity, ErrCareActivityNotFound
		}
		return activity, fmt.Errorf("database: failed to scan care activity: %w", err)
	}
	return activity, nil
}

type CreateCareActivityParams struct {
	Name         string
	DisplayName  string
	Description  string
	ActivityType ActivityType
	ClinicalType util.Optional[ClinicalType]
	BundleID     uuid.UUID
}

func (q *Queries) CreateCareActivity(ctx context.Context, params CreateCareActivityParams) (CareActivity, error) {
	now := time.Now().UTC()
	activity := CareActivity{
		ID:           uuid.New(),
		Name:         params.Name,
		DisplayName:  params.DisplayName,
		Description:  params.Description,
		ActivityType: params.ActivityType,
		ClinicalType: params.ClinicalType,
		BundleID:     params.BundleID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if _, err := q.q.ExecContext(ctx, `INSERT INTO tbl_care_activity (id, name, display_name, description, activity_type, clinical_type, bundle_id, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		activity.ID, activity.Name, activity.DisplayName, activity.Description, activity.ActivityType, activity.ClinicalType, activity.BundleID, activity.CreatedAt, activity.UpdatedAt); err != nil {
		if isUniqueViolation(err) {
			return activity, ErrDuplicate
		}
		return activity, fmt.Errorf("database: failed to insert care activity (name=%s): %w", activity.Name, err)
	}
	return activity, nil
}

type UpdateCareActivityParams struct {
	Name         util.Optional[string]
	DisplayName  util.Optional[string]
	Description  util.Optional[string]
	ActivityType util.Optional[ActivityType]
	ClinicalType util.Optional[util.Optional[ClinicalType]]
	BundleID     util.Optional[uuid.UUID]
}

func (q *Queries) UpdateCareActivityByID(ctx context.Context, id uuid.UUID, params UpdateCareActivityParams) error {
	b := newSetBuilder("tbl_care_activity")
	if params.Name.IsSet {
		b.set("name", params.Name.Val)
	}
	if params.DisplayName.IsSet {
		b.set("display_name", params.DisplayName.Val)
	}
	if params.Description.IsSet {
		b.set("description", params.Description.Val)
	}
	if params.ActivityType.IsSet {
		b.set("activity_type", params.ActivityType.Val)
	}
	if params.ClinicalType.IsSet {
		b.set("clinical_type", params.ClinicalType.Val)
	}
	if params.BundleID.IsSet {
		b.set("bundle_id", params.BundleID.Val)
	}

	query, args := b.finish(id)
	res, err := q.q.ExecContext(ctx, query, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("database: failed to update care activity (id=%s): %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrCareActivityNotFound
	}
	return nil
}

// DeleteCareActivityByID removes the activity; unit links and allowed activities cascade.
func (q *Queries) DeleteCareActivityByID(ctx context.Context, id uuid.UUID) error {
	res, err := q.q.ExecContext(ctx, `DELETE FROM tbl_care_activity WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("database: failed to delete care activity (id=%s): %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrCareActivityNotFound
	}
	return nil
}

type CareActivityUnit struct {
	CareActivityID uuid.UUID
	UnitID         uuid.UUID
}

// ListCareActivityUnits returns the unit links of the given activities, or of all activities when ids is empty.
func (q *Queries) ListCareActivityUnits(ctx context.Context, ids []uuid.UUID) ([]CareActivityUnit, error) {
	b := newWhereBuilder(`SELECT care_activity_id, unit_id FROM tbl_care_activity_unit WHERE 1=1`)
	if len(ids) > 0 {
		b.add("care_activity_id = ANY(?)", pq.Array(uuidStrings(ids)))
	}

	rows, err := q.q.QueryContext(ctx, b.String(), b.args...)
	if err != nil {
		return nil, fmt.Errorf("database: failed to list care activity units: %w", err)
	}
	defer rows.Close()

	var links []CareActivityUnit
	for rows.Next() {
		var link CareActivityUnit
		if err := rows.Scan(&link.CareActivityID, &link.UnitID); err != nil {
			return nil, fmt.Errorf("database: failed to scan care activity unit: %w", err)
		}
		links = append(links, link)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("database: failed to iterate care activity units: %w", err)
	}
	return links, nil
}

func (q *Queries) AddCareActivityUnit(ctx context.Context, careActivityID, unitID uuid.UUID) error {
	if _, err := q.q.ExecContext(ctx, `INSERT INTO tbl_care_activity_unit (care_activity_id, unit_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`, careActivityID, unitID); err != nil {
		return fmt.Errorf("database: failed to add unit to care activity (id=%s): %w", careActivityID, err)
	}
	return nil
}

func (q *Queries) RemoveCareActivityUnit(ctx context.Context, careActivityID, unitID uuid.UUID) error {
	res, err := q.q.ExecContext(ctx, `DELETE FROM tbl_care_activity_unit WHERE care_activity_id = $1 AND unit_id = $2`, careActivityID, unitID)
	if err != nil {
		return fmt.Errorf("database: failed to remove unit from care activity (id=%s): %w", careActivityID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrUnitNotFound
	}
	return nil
}

func (q *Queries) ClearCareActivityUnits(ctx context.Context, careActivityID uuid.UUID) error {
	if _, err := q.q.ExecContext(ctx, `DELETE FROM tbl_care_activity_unit WHERE care_activity_id = $1`, careActivityID); err != nil {
		return fmt.Errorf("database: failed to clear units of care activity (id=%s): %w", careActivityID, err)
	}
	return nil
}
