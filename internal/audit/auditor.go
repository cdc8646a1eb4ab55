package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"careplan/internal/database"
	"careplan/internal/util"

	"github.com/google/uuid"
)

type EventType string

const (
	EventTypeUserInvite             EventType = "user.invite"
	EventTypeUserRolesUpdate        EventType = "user.roles_update"
	EventTypeUserRevoke             EventType = "user.revoke"
	EventTypeUserReprovision        EventType = "user.reprovision"
	EventTypeUserLogin              EventType = "user.login"
	EventTypeOccupationCreate       EventType = "occupation.create"
	EventTypeOccupationUpdate       EventType = "occupation.update"
	EventTypeOccupationDelete       EventType = "occupation.delete"
	EventTypeCareActivityUpdate     EventType = "care_activity.update"
	EventTypeCareActivityDelete     EventType = "care_activity.delete"
	EventTypeCareActivityUnitRemove EventType = "care_activity.unit_remove"
	EventTypeBulkUpload             EventType = "care_activity.bulk_upload"
)

type Auditor struct {
	logger *slog.Logger
	db     *database.Database
}

func NewAuditor(logger *slog.Logger, db *database.Database) Auditor {
	return Auditor{logger: logger, db: db}
}

type LogEventParam struct {
	UserID util.Optional[uuid.UUID]
	Type   EventType
	Data   map[string]any
}

func (a *Auditor) LogEvent(ctx context.Context, params LogEventParam) error {
	return a.LogEventWith(ctx, a.db.Queries, params)
}

// LogEventWith records the event through q, so it commits together with the
// transaction q belongs to.
func (a *Auditor) LogEventWith(ctx context.Context, q *database.Queries, params LogEventParam) error {
	data, err := json.Marshal(params.Data)
	if err != nil {
		return fmt.Errorf("audit: failed to marshal event data: %w", err)
	}

	if _, err = q.CreateAuditEvent(ctx, database.CreateAuditEventParams{
		UserID:    params.UserID,
		EventType: string(params.Type),
		Data:      data,
	}); err != nil {
		return fmt.Errorf("audit: failed to create event: %w", err)
	}

	a.logger.DebugContext(ctx, "Audit event recorded", "type", params.Type, "user_id", params.UserID.String())
	return nil
}
