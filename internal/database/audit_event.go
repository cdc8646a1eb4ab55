package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"careplan/internal/util"

	"github.com/google/uuid"
)

type AuditEvent struct {
	ID        uuid.UUID
	UserID    util.Optional[uuid.UUID]
	EventType string
	Data      json.RawMessage
	CreatedAt time.Time
}

type CreateAuditEventParams struct {
	UserID    util.Optional[uuid.UUID]
	EventType string
	Data      json.RawMessage
}

func (q *Queries) CreateAuditEvent(ctx context.Context, params CreateAuditEventParams) (AuditEvent, error) {
	event := AuditEvent{
		ID:        uuid.New(),
		UserID:    params.UserID,
		EventType: params.EventType,
		Data:      params.Data,
		CreatedAt: time.Now().UTC(),
	}
	if len(event.Data) == 0 {
		event.Data = json.RawMessage(`{}`)
	}

	if _, err := q.q.ExecContext(ctx, `INSERT INTO tbl_audit_event (id, user_id, event_type, data, created_at) VALUES ($1, $2, $3, $4, $5)`,
		event.ID, event.UserID, event.EventType, []byte(event.Data), event.CreatedAt); err != nil {
		return event, fmt.Errorf("database: failed to insert audit event (type=%s): %w", event.EventType, err)
	}
	return event, nil
}

func (q *Queries) DeleteAuditEventsBefore(ctx context.Context, before time.Time) (int64, error) {
	res, err := q.q.ExecContext(ctx, `DELETE FROM tbl_audit_event WHERE created_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("database: failed to delete audit events: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("database: failed to count deleted audit events: %w", err)
	}
	return n, nil
}
