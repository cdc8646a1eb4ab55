package database

import (
	"context"
	"fmt"
	"time"

	"careplan/internal/util"

	"github.com/google/uuid"
)

type CountUsersParams struct {
	Organization util.Optional[string]
	ActiveSince  util.Optional[time.Time]
}

func (q *Queries) CountUsers(ctx context.Context, params CountUsersParams) (int, error) {
	b := newWhereBuilder(`SELECT COUNT(*) FROM tbl_user WHERE status <> 'REVOKED'`)
	if params.Organization.IsSet {
		b.add("organization = ?", params.Organization.Val)
	}
	if params.ActiveSince.IsSet {
		b.add("last_login_at >= ?", params.ActiveSince.Val)
	}

	var count int
	if err := q.q.QueryRowContext(ctx, b.String(), b.args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("database: failed to count users: %w", err)
	}
	return count, nil
}

type CountPlanningSessionsParams struct {
	Organization  util.Optional[string]
	CareSettingID util.Optional[uuid.UUID]
}

type CareSettingCount struct {
	UnitID   uuid.UUID
	UnitName string
	Total    int
}

func planningSessionFilter(base string, params CountPlanningSessionsParams) *whereBuilder {
	b := newWhereBuilder(base)
	if params.Organization.IsSet {
		b.add("u.organization = ?", params.Organization.Val)
	}
	if params.CareSettingID.IsSet {
		b.add("ps.care_location_id = ?", params.CareSettingID.Val)
	}
	return b
}

func (q *Queries) CountPlanningSessions(ctx context.Context, params CountPlanningSessionsParams) (int, error) {
	b := planningSessionFilter(`SELECT COUNT(*) FROM tbl_planning_session ps JOIN tbl_user u ON u.id = ps.user_id WHERE 1=1`, params)

	var count int
	if err := q.q.QueryRowContext(ctx, b.String(), b.args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("database: failed to count planning sessions: %w", err)
	}
	return count, nil
}

// CountPlanningSessionsByCareSetting groups sessions by their care location, skipping sessions without one.
func (q *Queries) CountPlanningSessionsByCareSetting(ctx context.Context, params CountPlanningSessionsParams) ([]CareSettingCount, error) {
	b := planningSessionFilter(`SELECT un.id, un.display_name, COUNT(*)
		FROM tbl_planning_session ps
		JOIN tbl_user u ON u.id = ps.user_id
		JOIN tbl_unit un ON un.id = ps.care_location_id
		WHERE 1=1`, params)
	b.raw(" GROUP BY un.id, un.display_name ORDER BY un.display_name")

	rows, err := q.q.QueryContext(ctx, b.String(), b.args...)
	if err != nil {
		return nil, fmt.Errorf("database: failed to count planning sessions by care setting: %w", err)
	}
	defer rows.Close()

	counts := []CareSettingCount{}
	for rows.Next() {
		var c CareSettingCount
		if err := rows.Scan(&c.UnitID, &c.UnitName, &c.Total); err != nil {
			return nil, fmt.Errorf("database: failed to scan care setting count: %w", err)
		}
		counts = append(counts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("database: failed to iterate care setting counts: %w", err)
	}
	return counts, nil
}

func (q *Queries) ListOrganizations(ctx context.Context) ([]string, error) {
	rows, err := q.q.QueryContext(ctx, `SELECT DISTINCT organization FROM tbl_user WHERE organization <> '' ORDER BY organization`)
	if err != nil {
		return nil, fmt.Errorf("database: failed to list organizations: %w", err)
	}
	defer rows.Close()

	organizations := []string{}
	for rows.Next() {
		var org string
		if err := rows.Scan(&org); err != nil {
			return nil, fmt.Errorf("database: failed to scan organization: %w", err)
		}
		organizations = append(organizations, org)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("database: failed to iterate organizations: %w", err)
	}
	return organizations, nil
}
