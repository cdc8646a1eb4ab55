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
)

type RelatedResource struct {
	Label string `json:"label"`
	Link  string `json:"link"`
}

type Occupation struct {
	ID               uuid.UUID
	Name             string
	DisplayName      string
	Description      string
	DisplayOrder     int
	IsRegulated      bool
	RelatedResources []RelatedResource
	DeletedAt        util.Optional[time.Time]
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

const occupationColumns = `id, name, display_name, description, display_order, is_regulated, related_resources, deleted_at, created_at, updated_at`

func scanOccupation(row rowScanner, extra ...any) (Occupation, error) {
	var occupation Occupation
	var resources []byte
	dest := append([]any{
		&occupation.ID, &occupation.Name, &occupation.DisplayName, &occupation.Description,
		&occupation.DisplayOrder, &occupation.IsRegulated, &resources, &occupation.DeletedAt,
		&occupation.CreatedAt, &occupation.UpdatedAt,
	}, extra...)
	if err := row.Scan(dest...); err != nil {
		return occupation, err
	}
	occupation.RelatedResources = []RelatedResource{}
	if len(resources) > 0 {
		if err := json.Unmarshal(resources, &occupation.RelatedResources); err != nil {
			return occupation, fmt.Errorf("invalid related resources: %w", err)
		}
	}
	return occupation, nil
}

func marshalResources(resources []RelatedResource) ([]byte, error) {
	if resources == nil {
		resources = []RelatedResource{}
	}
	return json.Marshal(resources)
}

type OccupationSortKey string

const (
	OccupationSortDisplayName  OccupationSortKey = "displayName"
	OccupationSortDisplayOrder OccupationSortKey = "displayOrder"
	OccupationSortIsRegulated  OccupationSortKey = "isRegulated"
	OccupationSortUpdatedAt    OccupationSortKey = "updatedAt"
)

var occupationSortColumns = map[OccupationSortKey]string{
	OccupationSortDisplayName:  "display_name",
	OccupationSortDisplayOrder: "display_order",
	OccupationSortIsRegulated:  "is_regulated",
	OccupationSortUpdatedAt:    "updated_at",
}

type ListOccupationsParams struct {
	// Limit of zero returns every row.
	Limit          int
	Offset         int
	SearchText     util.Optional[string]
	SortKey        OccupationSortKey
	Order          OrderBy
	IncludeDeleted bool
}

func (q *Queries) ListOccupations(ctx context.Context, params ListOccupationsParams) ([]Occupation, int, error) {
	b := newWhereBuilder(`SELECT ` + occupationColumns + `, COUNT(*) OVER() FROM tbl_occupation WHERE 1=1`)
	if !params.IncludeDeleted {
		b.add("deleted_at IS NULL")
	}
	if params.SearchText.IsSet && strings.TrimSpace(params.SearchText.Val) != "" {
		b.add("display_name ILIKE ?", likePattern(params.SearchText.Val))
	}

	column, ok := occupationSortColumns[params.SortKey]
	if !ok {
		column = "display_order"
	}
	b.raw(fmt.Sprintf(" ORDER BY %s %s, display_name, id", column, params.Order.SQL()))
	b.page(params.Limit, params.Offset)

	rows, err := q.q.QueryContext(ctx, b.String(), b.args...)
	if err != nil {
		return nil, 0, fmt.Errorf("database: failed to list occupations: %w", err)
	}
	defer rows.Close()

	var occupations []Occupation
	total := 0
	for rows.Next() {
		occupation, err := scanOccupation(rows, &total)
		if err != nil {
			return nil, 0, fmt.Errorf("database: failed to scan occupation: %w", err)
		}
		occupations = append(occupations, occupation)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("database: failed to iterate occupations: %w", err)
	}
	return occupations, total, nil
}

func (q *Queries) GetOccupationByID(ctx context.Context, id uuid.UUID) (Occupation, error) {
	return q.GetOccupation(ctx, GetOccupationParams{ID: util.Some(id)})
}

type GetOccupationParams struct {
	ID             util.Optional[uuid.UUID]
	Name           util.Optional[string]
	IncludeDeleted bool
}

func (q *Queries) GetOccupation(ctx context.Context, params GetOccupationParams) (Occupation, error) {
	b := newWhereBuilder(`SELECT ` + occupationColumns + ` FROM tbl_occupation WHERE 1=1`)
	if params.ID.IsSet {
		b.add("id = ?", params.ID.Val)
	}
	if params.Name.IsSet {
		b.add("lower(name) = lower(?)", params.Name.Val)
	}
	if !params.IncludeDeleted {
		b.add("deleted_at IS NULL")
	}

	occupation, err := scanOccupation(q.q.QueryRowContext(ctx, b.String(), b.args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return occupation, ErrOccupationNotFound
		}
		return occupation, fmt.Errorf("database: failed to scan occupation: %w", err)
	}
	return occupation, nil
}

type CreateOccupationParams struct {
	Name             string
	DisplayName      string
	Description      string
	DisplayOrder     int
	IsRegulated      bool
	RelatedResources []RelatedResource
}

func (q *Queries) CreateOccupation(ctx context.Context, params CreateOccupationParams) (Occupation, error) {
	now := time.Now().UTC()
	occupation := Occupation{
		ID:               uuid.New(),
		Name:             params.Name,
		DisplayName:      params.DisplayName,
		Description:      params.Description,
		DisplayOrder:     params.DisplayOrder,
		IsRegulated:      params.IsRegulated,
		RelatedResources: params.RelatedResources,
		DeletedAt:        util.None[time.Time](),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if occupation.RelatedResources == nil {
		occupation.RelatedResources = []RelatedResource{}
	}

	resources, err := marshalResources(occupation.RelatedResources)
	if err != nil {
		return occupation, fmt.Errorf("database: failed to encode related resources: %w", err)
	}

	if _, err := q.q.ExecContext(ctx, `INSERT INTO tbl_occupation (id, name, display_name, description, display_order, is_regulated, related_resources, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		occupation.ID, occupation.Name, occupation.DisplayName, occupation.Description, occupation.DisplayOrder, occupation.IsRegulated, resources, occupation.CreatedAt, occupation.UpdatedAt); err != nil {
		if isUniqueViolation(err) {
			return occupation, ErrDuplicate
		}
		return occupation, fmt.Errorf("database: failed to insert occupation (name=%s): %w", occupation.Name, err)
	}
	return occupation, nil
}

type UpdateOccupationParams struct {
	Name             util.Optional[string]
	DisplayName      util.Optional[string]
	Description      util.Optional[string]
	DisplayOrder     util.Optional[int]
	IsRegulated      util.Optional[bool]
	RelatedResources util.Optional[[]RelatedResource]
	DeletedAt        util.Optional[time.Time]
}

func (q *Queries) UpdateOccupationByID(ctx context.Context, id uuid.UUID, params UpdateOccupationParams) error {
	b := newSetBuilder("tbl_occupation")
	if params.Name.IsSet {
		b.set("name", params.Name.Val)
	}
	if params.DisplayName.IsSet {
		b.set("display_name", params.DisplayName.Val)
	}
	if params.Description.IsSet {
		b.set("description", params.Description.Val)
	}
	if params.DisplayOrder.IsSet {
		b.set("display_order", params.DisplayOrder.Val)
	}
	if params.IsRegulated.IsSet {
		b.set("is_regulated", params.IsRegulated.Val)
	}
	if params.RelatedResources.IsSet {
		resources, err := marshalResources(params.RelatedResources.Val)
		if err != nil {
			return fmt.Errorf("database: failed to encode related resources: %w", err)
		}
		b.set("related_resources", resources)
	}
	if params.DeletedAt.IsSet {
		b.set("deleted_at", params.DeletedAt.Val)
	}

	query, args := b.finish(id)
	res, err := q.q.ExecContext(ctx, query+" AND deleted_at IS NULL", args...)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("database: failed to update occupation (id=%s): %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrOccupationNotFound
	}
	return nil
}

// SoftDeleteOccupationByID marks the occupation deleted; its allowed activities are kept for history.
func (q *Queries) SoftDeleteOccupationByID(ctx context.Context, id uuid.UUID) error {
	return q.UpdateOccupationByID(ctx, id, UpdateOccupationParams{DeletedAt: util.Some(time.Now().UTC())})
}
