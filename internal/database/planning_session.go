package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"careplan/internal/util"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

type PlanningSession struct {
	ID             uuid.UUID
	UserID         uuid.UUID
	Profile        json.RawMessage
	CareLocationID util.Optional[uuid.UUID]
	// UnavailableOccupations is persisted as a comma separated list of ids.
	UnavailableOccupations []uuid.UUID
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

const planningSessionColumns = `id, user_id, profile, care_location_id, unavailable_occupations, created_at, updated_at`

func scanPlanningSession(row rowScanner) (PlanningSession, error) {
	var session PlanningSession
	var profile []byte
	var unavailable sql.NullString
	if err := row.Scan(&session.ID, &session.UserID, &profile, &session.CareLocationID, &unavailable, &session.CreatedAt, &session.UpdatedAt); err != nil {
		return session, err
	}
	if len(profile) > 0 {
		session.Profile = json.RawMessage(profile)
	}
	ids, err := ParseIDList(unavailable.String)
	if err != nil {
		return session, fmt.Errorf("invalid unavailable occupations: %w", err)
	}
	session.UnavailableOccupations = ids
	return session, nil
}

// ParseIDList parses a comma separated list of ids, ignoring blanks.
func ParseIDList(s string) ([]uuid.UUID, error) {
	ids := []uuid.UUID{}
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := uuid.Parse(part)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func FormatIDList(ids []uuid.UUID) string {
	return strings.Join(uuidStrings(ids), ",")
}

func (q *Queries) CreatePlanningSession(ctx context.Context, userID uuid.UUID) (PlanningSession, error) {
	now := time.Now().UTC()
	session := PlanningSession{
		ID:                     uuid.New(),
		UserID:                 userID,
		Profile:                json.RawMessage(`{}`),
		CareLocationID:         util.None[uuid.UUID](),
		UnavailableOccupations: []uuid.UUID{},
		CreatedAt:              now,
		UpdatedAt:              now,
	}

	if _, err := q.q.ExecContext(ctx, `INSERT INTO tbl_planning_session (id, user_id, profile, unavailable_occupations, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		session.ID, session.UserID, []byte(session.Profile), "", session.CreatedAt, session.UpdatedAt); err != nil {
		return session, fmt.Errorf("database: failed to insert planning session (user_id=%s): %w", userID, err)
	}
	return session, nil
}

type GetPlanningSessionParams struct {
	ID     util.Optional[uuid.UUID]
	UserID util.Optional[uuid.UUID]
}

// GetPlanningSession returns the most recently updated session matching params.
func (q *Queries) GetPlanningSession(ctx context.Context, params GetPlanningSessionParams) (PlanningSession, error) {
	b := newWhereBuilder(`SELECT ` + planningSessionColumns + ` FROM tbl_planning_session WHERE 1=1`)
	if params.ID.IsSet {
		b.add("id = ?", params.ID.Val)
	}
	if params.UserID.IsSet {
		b.add("user_id = ?", params.UserID.Val)
	}
	b.raw(" ORDER BY updated_at DESC LIMIT 1")

	session, err := scanPlanningSession(q.q.QueryRowContext(ctx, b.String(), b.args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return session, ErrPlanningSessionNotFound
		}
		return session, fmt.Errorf("database: failed to scan planning session: %w", err)
	}
	return session, nil
}

type UpdatePlanningSessionParams struct {
	Profile                util.Optional[json.RawMessage]
	CareLocationID         util.Optional[util.Optional[uuid.UUID]]
	UnavailableOccupations util.Optional[[]uuid.UUID]
}

func (q *Queries) UpdatePlanningSessionByID(ctx context.Context, id uuid.UUID, params UpdatePlanningSessionParams) error {
	b := newSetBuilder("tbl_planning_session")
	if params.Profile.IsSet {
		b.set("profile", []byte(params.Profile.Val))
	}
	if params.CareLocationID.IsSet {
		b.set("care_location_id", params.CareLocationID.Val)
	}
	if params.UnavailableOccupations.IsSet {
		b.set("unavailable_occupations", FormatIDList(params.UnavailableOccupations.Val))
	}

	query, args := b.finish(id)
	res, err := q.q.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("database: failed to update planning session (id=%s): %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrPlanningSessionNotFound
	}
	return nil
}

func (q *Queries) ListPlanningSessionCareActivities(ctx context.Context, sessionID uuid.UUID) ([]uuid.UUID, error) {
	return q.listSessionLinks(ctx, `SELECT care_activity_id FROM tbl_planning_session_care_activity WHERE planning_session_id = $1`, sessionID)
}

func (q *Queries) ListPlanningSessionOccupations(ctx context.Context, sessionID uuid.UUID) ([]uuid.UUID, error) {
	return q.listSessionLinks(ctx, `SELECT occupation_id FROM tbl_planning_session_occupation WHERE planning_session_id = $1`, sessionID)
}

func (q *Queries) listSessionLinks(ctx context.Context, query string, sessionID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := q.q.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("database: failed to list planning session links (id=%s): %w", sessionID, err)
	}
	defer rows.Close()

	ids := []uuid.UUID{}
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("database: failed to scan planning session link: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("database: failed to iterate planning session links: %w", err)
	}
	return ids, nil
}

// ReplacePlanningSessionCareActivities swaps the selected activities of a session. Run it inside WithTx.
func (q *Queries) ReplacePlanningSessionCareActivities(ctx context.Context, sessionID uuid.UUID, ids []uuid.UUID) error {
	if _, err := q.q.ExecContext(ctx, `DELETE FROM tbl_planning_session_care_activity WHERE planning_session_id = $1`, sessionID); err != nil {
		return fmt.Errorf("database: failed to clear planning session care activities (id=%s): %w", sessionID, err)
	}
	if len(ids) == 0 {
		return nil
	}
	if _, err := q.q.ExecContext(ctx, `INSERT INTO tbl_planning_session_care_activity (planning_session_id, care_activity_id) SELECT $1, unnest($2::uuid[]) ON CONFLICT DO NOTHING`,
		sessionID, pq.Array(uuidStrings(ids))); err != nil {
		return fmt.Errorf("database: failed to insert planning session care activities (id=%s): %w", sessionID, err)
	}
	return nil
}

// ReplacePlanningSessionOccupations swaps the selected occupations of a session. Run it inside WithTx.
func (q *Queries) ReplacePlanningSessionOccupations(ctx context.Context, sessionID uuid.UUID, ids []uuid.UUID) error {
	if _, err := q.q.ExecContext(ctx, `DELETE FROM tbl_planning_session_occupation WHERE planning_session_id = $1`, sessionID); err != nil {
		return fmt.Errorf("database: failed to clear planning session occupations (id=%s): %w", sessionID, err)
	}
	if len(ids) == 0 {
		return nil
	}
	if _, err := q.q.ExecContext(ctx, `INSERT INTO tbl_planning_session_occupation (planning_session_id, occupation_id) SELECT $1, unnest($2::uuid[]) ON CONFLICT DO NOTHING`,
		sessionID, pq.Array(uuidStrings(ids))); err != nil {
		return fmt.Errorf("database: failed to insert planning session occupations (id=%s): %w", sessionID, err)
	}
	return nil
}

// DeletePlanningSessionsBefore removes sessions untouched since before and reports how many were removed.
func (q *Queries) DeletePlanningSessionsBefore(ctx context.Context, before time.Time) (int64, error) {
	res, err := q.q.ExecContext(ctx, `DELETE FROM tbl_planning_session WHERE updated_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("database: failed to delete planning sessions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("database: failed to count deleted planning sessions: %w", err)
	}
	return n, nil
}
