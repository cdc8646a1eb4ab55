package user

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"careplan/internal/apperror"
	"careplan/internal/audit"
	"careplan/internal/database"
	"careplan/internal/dto"
	"careplan/internal/ro"
	"careplan/internal/util"

	"github.com/google/uuid"
)

type Manager struct {
	logger  *slog.Logger
	db      *database.Database
	auditor *audit.Auditor
}

func NewManager(logger *slog.Logger, db *database.Database, auditor *audit.Auditor) Manager {
	return Manager{logger: logger, db: db, auditor: auditor}
}

// Claims is the identity asserted by a verified access token.
type Claims struct {
	Subject      string
	Email        string
	Name         string
	Organization string
}

// Preferences is the document stored in the user's preferences column.
type Preferences struct {
	NotShowConfirmDraftRemoval bool `json:"notShowConfirmDraftRemoval"`
}

func ParsePreferences(raw json.RawMessage) Preferences {
	var prefs Preferences
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &prefs)
	}
	return prefs
}

func toRoles(roles []string) []database.UserRole {
	out := make([]database.UserRole, 0, len(roles))
	seen := make(map[database.UserRole]bool, len(roles))
	for _, r := range roles {
		role := database.UserRole(r)
		if !seen[role] {
			seen[role] = true
			out = append(out, role)
		}
	}
	return out
}

func notFound() *apperror.Error {
	return apperror.NotFound(apperror.TypeUserNotFound, "User not found")
}

func (m *Manager) Invite(ctx context.Context, actor database.User, req dto.CreateUserInviteDTO) (ro.UserRO, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	roles := toRoles(req.Roles)

	var invited database.User
	err := m.db.WithTx(ctx, func(q *database.Queries) error {
		existing, err := q.GetUserByEmail(ctx, email)
		switch {
		case err == nil:
			if existing.Status == database.UserStatusActive {
				return apperror.Conflict(apperror.TypeUserAlreadyExists, "A user with this email already exists")
			}
			if err := q.UpdateUserByID(ctx, existing.ID, database.UpdateUserParams{
				Roles:     util.Some(roles),
				Status:    util.Some(database.UserStatusInvited),
				RevokedAt: util.Some(util.None[time.Time]()),
			}); err != nil {
				return err
			}
			invited = existing
			invited.Roles = roles
			invited.Status = database.UserStatusInvited
			invited.RevokedAt = util.None[time.Time]()
		case errors.Is(err, database.ErrUserNotFound):
			invited, err = q.CreateUser(ctx, database.CreateUserParams{
				Email:  email,
				Roles:  roles,
				Status: database.UserStatusInvited,
			})
			if errors.Is(err, database.ErrDuplicate) {
				return apperror.Conflict(apperror.TypeUserAlreadyExists, "A user with this email already exists")
			}
			if err != nil {
				return err
			}
		default:
			return err
		}

		return m.auditor.LogEventWith(ctx, q, audit.LogEventParam{
			UserID: util.Some(actor.ID),
			Type:   audit.EventTypeUserInvite,
			Data:   map[string]any{"user_id": invited.ID, "email": email, "roles": roles},
		})
	})
	if err != nil {
		return ro.UserRO{}, fmt.Errorf("failed to invite user: %w", err)
	}

	m.logger.InfoContext(ctx, "User invited", "user_id", invited.ID, "invited_by", actor.ID)
	return ro.NewUser(invited), nil
}

func (m *Manager) List(ctx context.Context, query dto.UserQuery) (ro.PaginationRO[ro.UserRO], error) {
	params := database.ListUsersParams{
		Limit:   query.Limit(),
		Offset:  query.Offset(),
		SortKey: database.UserSortKey(query.SortKey),
		Order:   dto.OrderBy(query.SortOrder),
	}
	if query.SearchText != "" {
		params.SearchText = util.Some(query.SearchText)
	}

	users, total, err := m.db.ListUsers(ctx, params)
	if err != nil {
		return ro.PaginationRO[ro.UserRO]{}, fmt.Errorf("failed to list users: %w", err)
	}

	result := make([]ro.UserRO, len(users))
	for i, u := range users {
		result[i] = ro.NewUser(u)
	}
	return ro.NewPagination(result, total), nil
}

func (m *Manager) EditRoles(ctx context.Context, actor database.User, id uuid.UUID, req dto.EditUserRolesDTO) (ro.UserRO, error) {
	roles := toRoles(req.Roles)
	return m.update(ctx, actor, id, audit.EventTypeUserRolesUpdate, database.UpdateUserParams{
		Roles: util.Some(roles),
	}, map[string]any{"roles": roles})
}

func (m *Manager) Revoke(ctx context.Context, actor database.User, id uuid.UUID) (ro.UserRO, error) {
	if actor.ID == id {
		return ro.UserRO{}, apperror.Forbidden("You cannot revoke your own access")
	}
	return m.update(ctx, actor, id, audit.EventTypeUserRevoke, database.UpdateUserParams{
		Status:    util.Some(database.UserStatusRevoked),
		RevokedAt: util.Some(util.Some(time.Now().UTC())),
	}, nil)
}

// Reprovision restores a revoked user. Users who never signed in go back to INVITED.
func (m *Manager) Reprovision(ctx context.Context, actor database.User, id uuid.UUID) (ro.UserRO, error) {
	current, err := m.db.GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, database.ErrUserNotFound) {
			return ro.UserRO{}, notFound()
		}
		return ro.UserRO{}, fmt.Errorf("failed to get user: %w", err)
	}

	status := database.UserStatusActive
	if !current.KeycloakID.IsSet {
		status = database.UserStatusInvited
	}
	return m.update(ctx, actor, id, audit.EventTypeUserReprovision, database.UpdateUserParams{
		Status:    util.Some(status),
		RevokedAt: util.Some(util.None[time.Time]()),
	}, nil)
}

func (m *Manager) update(ctx context.Context, actor database.User, id uuid.UUID, event audit.EventType, params database.UpdateUserParams, data map[string]any) (ro.UserRO, error) {
	var updated database.User
	err := m.db.WithTx(ctx, func(q *database.Queries) error {
		if err := q.UpdateUserByID(ctx, id, params); err != nil {
			return err
		}
		var err error
		if updated, err = q.GetUserByID(ctx, id); err != nil {
			return err
		}

		if data == nil {
			data = map[string]any{}
		}
		data["user_id"] = id
		return m.auditor.LogEventWith(ctx, q, audit.LogEventParam{
			UserID: util.Some(actor.ID),
			Type:   event,
			Data:   data,
		})
	})
	if err != nil {
		if errors.Is(err, database.ErrUserNotFound) {
			return ro.UserRO{}, notFound()
		}
		return ro.UserRO{}, fmt.Errorf("failed to update user: %w", err)
	}
	return ro.NewUser(updated), nil
}

// ResolveIdentity maps token claims onto a known user. The first login of an
// invited user binds the keycloak subject to the invite and activates it; a
// user bound to another subject is never matched by email.
func (m *Manager) ResolveIdentity(ctx context.Context, claims Claims) (database.User, error) {
	u, err := m.db.GetUserByKeycloakID(ctx, claims.Subject)
	if errors.Is(err, database.ErrUserNotFound) && claims.Email != "" {
		u, err = m.db.GetUserByEmail(ctx, strings.ToLower(claims.Email))
	}
	if err != nil {
		if errors.Is(err, database.ErrUserNotFound) {
			return u, apperror.Forbidden("Your account has not been invited")
		}
		return u, fmt.Errorf("failed to resolve identity: %w", err)
	}

	if u.KeycloakID.IsSet && u.KeycloakID.Val != claims.Subject {
		return database.User{}, apperror.Forbidden("Your account is linked to another identity")
	}
	if u.Status == database.UserStatusRevoked {
		return u, apperror.Forbidden("Your access has been revoked")
	}

	now := time.Now().UTC()
	params := database.UpdateUserParams{LastLoginAt: util.Some(now)}
	firstLogin := !u.KeycloakID.IsSet
	if firstLogin {
		params.KeycloakID = util.Some(claims.Subject)
		params.Status = util.Some(database.UserStatusActive)
		u.KeycloakID = util.Some(claims.Subject)
		u.Status = database.UserStatusActive
	}
	if u.DisplayName == "" && claims.Name != "" {
		params.DisplayName = util.Some(claims.Name)
		u.DisplayName = claims.Name
	}
	if u.Organization == "" && claims.Organization != "" {
		params.Organization = util.Some(claims.Organization)
		u.Organization = claims.Organization
	}

	if err := m.db.UpdateUserByID(ctx, u.ID, params); err != nil {
		return u, fmt.Errorf("failed to record login: %w", err)
	}
	u.LastLoginAt = util.Some(now)

	if firstLogin {
		if err := m.auditor.LogEvent(ctx, audit.LogEventParam{
			UserID: util.Some(u.ID),
			Type:   audit.EventTypeUserLogin,
			Data:   map[string]any{"first_login": true},
		}); err != nil {
			m.logger.ErrorContext(ctx, "Failed to audit first login", "user_id", u.ID, "error", err)
		}
	}
	return u, nil
}

func (m *Manager) Me(ctx context.Context, actor database.User) ro.UserRO {
	return ro.NewUser(actor)
}

func (m *Manager) SavePreferences(ctx context.Context, actor database.User, req dto.UserPreferencesDTO) (ro.UserRO, error) {
	prefs := ParsePreferences(actor.Preferences)
	if req.NotShowConfirmDraftRemoval != nil {
		prefs.NotShowConfirmDraftRemoval = *req.NotShowConfirmDraftRemoval
	}
	if err := m.storePreferences(ctx, m.db.Queries, actor.ID, prefs); err != nil {
		return ro.UserRO{}, err
	}

	encoded, _ := json.Marshal(prefs)
	actor.Preferences = encoded
	return ro.NewUser(actor), nil
}

// SetDraftRemovalPreference is used by the planning wizard, which mirrors the
// preference into the user row.
func (m *Manager) SetDraftRemovalPreference(ctx context.Context, q *database.Queries, actor database.User, value bool) error {
	prefs := ParsePreferences(actor.Preferences)
	if prefs.NotShowConfirmDraftRemoval == value {
		return nil
	}
	prefs.NotShowConfirmDraftRemoval = value
	return m.storePreferences(ctx, q, actor.ID, prefs)
}

func (m *Manager) storePreferences(ctx context.Context, q *database.Queries, id uuid.UUID, prefs Preferences) error {
	encoded, err := json.Marshal(prefs)
	if err != nil {
		return fmt.Errorf("failed to encode preferences: %w", err)
	}
	if err := q.UpdateUserByID(ctx, id, database.UpdateUserParams{Preferences: util.Some(json.RawMessage(encoded))}); err != nil {
		if errors.Is(err, database.ErrUserNotFound) {
			return notFound()
		}
		return fmt.Errorf("failed to save preferences: %w", err)
	}
	return nil
}
