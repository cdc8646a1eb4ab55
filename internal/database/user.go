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

type UserRole string

const (
	UserRoleAdmin        UserRole = "ADMIN"
	UserRoleUser         UserRole = "USER"
	UserRoleContentAdmin UserRole = "CONTENT_ADMIN"
)

func (r UserRole) Valid() bool {
	switch r {
	case UserRoleAdmin, UserRoleUser, UserRoleContentAdmin:
		return true
	}
	return false
}

type UserStatus string

const (
	UserStatusInvited UserStatus = "INVITED"
	UserStatusActive  UserStatus = "ACTIVE"
	UserStatusRevoked UserStatus = "REVOKED"
)

type User struct {
	ID           uuid.UUID
	Email        string
	DisplayName  string
	Organization string
	KeycloakID   util.Optional[string]
	Roles        []UserRole
	Status       UserStatus
	RevokedAt    util.Optional[time.Time]
	LastLoginAt  util.Optional[time.Time]
	Preferences  json.RawMessage
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (u User) HasRole(role UserRole) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

const userColumns = `id, email, display_name, organization, keycloak_id, roles, status, revoked_at, last_login_at, preferences, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner, extra ...any) (User, error) {
	var user User
	var roles []string
	var prefs []byte
	dest := append([]any{
		&user.ID, &user.Email, &user.DisplayName, &user.Organization, &user.KeycloakID,
		pq.Array(&roles), &user.Status, &user.RevokedAt, &user.LastLoginAt, &prefs,
		&user.CreatedAt, &user.UpdatedAt,
	}, extra...)
	if err := row.Scan(dest...); err != nil {
		return user, err
	}
	user.Roles = make([]UserRole, len(roles))
	for i, r := range roles {
		user.Roles[i] = UserRole(r)
	}
	if len(prefs) > 0 {
		user.Preferences = json.RawMessage(prefs)
	}
	return user, nil
}

func rolesArray(roles []UserRole) any {
	out := make([]string, len(roles))
	for i, r := range roles {
		out[i] = string(r)
	}
	return pq.Array(out)
}

type UserSortKey string

const (
	UserSortEmail       UserSortKey = "email"
	UserSortDisplayName UserSortKey = "displayName"
	UserSortLastLoginAt UserSortKey = "lastLoginAt"
	UserSortStatus      UserSortKey = "status"
)

var userSortColumns = map[UserSortKey]string{
	UserSortEmail:       "email",
	UserSortDisplayName: "display_name",
	UserSortLastLoginAt: "last_login_at",
	UserSortStatus:      "status",
}

type ListUsersParams struct {
	Limit      int
	Offset     int
	SearchText util.Optional[string]
	SortKey    UserSortKey
	Order      OrderBy
}

// ListUsers returns one page of users and the total number of matching users.
func (q *Queries) ListUsers(ctx context.Context, params ListUsersParams) ([]User, int, error) {
	b := newWhereBuilder(`SELECT ` + userColumns + `, COUNT(*) OVER() FROM tbl_user WHERE 1=1`)
	if params.SearchText.IsSet && strings.TrimSpace(params.SearchText.Val) != "" {
		pattern := likePattern(params.SearchText.Val)
		b.add("(email ILIKE ? OR display_name ILIKE ? OR organization ILIKE ?)", pattern, pattern, pattern)
	}

	column, ok := userSortColumns[params.SortKey]
	if !ok {
		column = "email"
	}
	b.raw(fmt.Sprintf(" ORDER BY %s %s NULLS LAST, id", column, params.Order.SQL()))
	b.page(params.Limit, params.Offset)

	rows, err := q.q.QueryContext(ctx, b.String(), b.args...)
	if err != nil {
		return nil, 0, fmt.Errorf("database: failed to list users: %w", err)
	}
	defer rows.Close()

	var users []User
	total := 0
	for rows.Next() {
		user, err := scanUser(rows, &total)
		if err != nil {
			return nil, 0, fmt.Errorf("database: failed to scan user: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("database: failed to iterate users: %w", err)
	}

	return users, total, nil
}

type CreateUserParams struct {
	Email        string
	DisplayName  string
	Organization string
	Roles        []UserRole
	Status       UserStatus
}

func (q *Queries) CreateUser(ctx context.Context, params CreateUserParams) (User, error) {
	now := time.Now().UTC()
	user := User{
		ID:           uuid.New(),
		Email:        params.Email,
		DisplayName:  params.DisplayName,
		Organization: params.Organization,
		KeycloakID:   util.None[string](),
		Roles:        params.Roles,
		Status:       params.Status,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if _, err := q.q.ExecContext(ctx, `INSERT INTO tbl_user (id, email, display_name, organization, roles, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		user.ID, user.Email, user.DisplayName, user.Organization, rolesArray(user.Roles), user.Status, user.CreatedAt, user.UpdatedAt); err != nil {
		if isUniqueViolation(err) {
			return user, ErrDuplicate
		}
		return user, fmt.Errorf("database: failed to insert user (email=%s): %w", user.Email, err)
	}
	return user, nil
}

func (q *Queries) GetUserByID(ctx context.Context, id uuid.UUID) (User, error) {
	return q.GetUser(ctx, GetUserParams{ID: util.Some(id)})
}

func (q *Queries) GetUserByEmail(ctx context.Context, email string) (User, error) {
	return q.GetUser(ctx, GetUserParams{Email: util.Some(email)})
}

func (q *Queries) GetUserByKeycloakID(ctx context.Context, keycloakID string) (User, error) {
	return q.GetUser(ctx, GetUserParams{KeycloakID: util.Some(keycloakID)})
}

type GetUserParams struct {
	ID         util.Optional[uuid.UUID]
	Email      util.Optional[string]
	KeycloakID util.Optional[string]
}

func (q *Queries) GetUser(ctx context.Context, params GetUserParams) (User, error) {
	b := newWhereBuilder(`SELECT ` + userColumns + ` FROM tbl_user WHERE 1=1`)
	if params.ID.IsSet {
		b.add("id = ?", params.ID.Val)
	}
	if params.Email.IsSet {
		b.add("lower(email) = lower(?)", params.Email.Val)
	}
	if params.KeycloakID.IsSet {
		b.add("keycloak_id = ?", params.KeycloakID.Val)
	}

	user, err := scanUser(q.q.QueryRowContext(ctx, b.String(), b.args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return user, ErrUserNotFound
		}
		return user, fmt.Errorf("database: failed to scan user: %w", err)
	}
	return user, nil
}

type UpdateUserParams struct {
	DisplayName  util.Optional[string]
	Organization util.Optional[string]
	KeycloakID   util.Optional[string]
	Roles        util.Optional[[]UserRole]
	Status       util.Optional[UserStatus]
	RevokedAt    util.Optional[util.Optional[time.Time]]
	LastLoginAt  util.Optional[time.Time]
	Preferences  util.Optional[json.RawMessage]
}

func (q *Queries) UpdateUserByID(ctx context.Context, id uuid.UUID, params UpdateUserParams) error {
	b := newSetBuilder("tbl_user")
	if params.DisplayName.IsSet {
		b.set("display_name", params.DisplayName.Val)
	}
	if params.Organization.IsSet {
		b.set("organization", params.Organization.Val)
	}
	if params.KeycloakID.IsSet {
		b.set("keycloak_id", params.KeycloakID.Val)
	}
	if params.Roles.IsSet {
		b.set("roles", rolesArray(params.Roles.Val))
	}
	if params.Status.IsSet {
		b.set("status", params.Status.Val)
	}
	if params.RevokedAt.IsSet {
		b.set("revoked_at", params.RevokedAt.Val)
	}
	if params.LastLoginAt.IsSet {
		b.set("last_login_at", params.LastLoginAt.Val)
	}
	if params.Preferences.IsSet {
		b.set("preferences", []byte(params.Preferences.Val))
	}

	query, args := b.finish(id)
	res, err := q.q.ExecContext(ctx, query, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("database: failed to update user (id=%s): %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrUserNotFound
	}
	return nil
}
