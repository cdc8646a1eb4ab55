package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"careplan/internal/util"

	"github.com/google/uuid"
)

// Unit is a care setting, such as an acute care ward or a community clinic.
type Unit struct {
	ID          uuid.UUID
	Name        string
	DisplayName string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Bundle groups care activities into a care competency.
type Bundle struct {
	ID          uuid.UUID
	Name        string
	DisplayName string
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (q *Queries) ListUnits(ctx context.Context) ([]Unit, error) {
	rows, err := q.q.QueryContext(ctx, `SELECT id, name, display_name, created_at, updated_at FROM tbl_unit ORDER BY display_name`)
	if err != nil {
		return nil, fmt.Errorf("database: failed to list units: %w", err)
	}
	defer rows.Close()

	var units []Unit
	for rows.Next() {
		var unit Unit
		if err := rows.Scan(&unit.ID, &unit.Name, &unit.DisplayName, &unit.CreatedAt, &unit.UpdatedAt); err != nil {
			return nil, fmt.Errorf("database: failed to scan unit: %w", err)
		}
		units = append(units, unit)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("database: failed to iterate units: %w", err)
	}
	return units, nil
}

func (q *Queries) GetUnitByID(ctx context.Context, id uuid.UUID) (Unit, error) {
	var unit Unit
	err := q.q.QueryRowContext(ctx, `SELECT id, name, display_name, created_at, updated_at FROM tbl_unit WHERE id = $1`, id).
		Scan(&unit.ID, &unit.Name, &unit.DisplayName, &unit.CreatedAt, &unit.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return unit, ErrUnitNotFound
		}
		return unit, fmt.Errorf("database: failed to scan unit: %w", err)
	}
	return unit, nil
}

type CreateUnitParams struct {
	Name        string
	DisplayName string
}

func (q *Queries) CreateUnit(ctx context.Context, params CreateUnitParams) (Unit, error) {
	now := time.Now().UTC()
	unit := Unit{
		ID:          uuid.New(),
		Name:        params.Name,
		DisplayName: params.DisplayName,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if _, err := q.q.ExecContext(ctx, `INSERT INTO tbl_unit (id, name, display_name, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`,
		unit.ID, unit.Name, unit.DisplayName, unit.CreatedAt, unit.UpdatedAt); err != nil {
		if isUniqueViolation(err) {
			return unit, ErrDuplicate
		}
		return unit, fmt.Errorf("database: failed to insert unit (name=%s): %w", unit.Name, err)
	}
	return unit, nil
}

func (q *Queries) ListBundles(ctx context.Context) ([]Bundle, error) {
	rows, err := q.q.QueryContext(ctx, `SELECT id, name, display_name, description, created_at, updated_at FROM tbl_bundle ORDER BY display_name`)
	if err != nil {
		return nil, fmt.Errorf("database: failed to list bundles: %w", err)
	}
	defer rows.Close()

	var bundles []Bundle
	for rows.Next() {
		var bundle Bundle
		if err := rows.Scan(&bundle.ID, &bundle.Name, &bundle.DisplayName, &bundle.Description, &bundle.CreatedAt, &bundle.UpdatedAt); err != nil {
			return nil, fmt.Errorf("database: failed to scan bundle: %w", err)
		}
		bundles = append(bundles, bundle)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("database: failed to iterate bundles: %w", err)
	}
	return bundles, nil
}

type GetBundleParams struct {
	ID   util.Optional[uuid.UUID]
	Name util.Optional[string]
}

func (q *Queries) GetBundle(ctx context.Context, params GetBundleParams) (Bundle, error) {
	b := newWhereBuilder(`SELECT id, name, display_name, description, created_at, updated_at FROM tbl_bundle WHERE 1=1`)
	if params.ID.IsSet {
		b.add("id = ?", params.ID.Val)
	}
	if params.Name.IsSet {
		b.add("lower(name) = lower(?)", params.Name.Val)
	}

	var bundle Bundle
	err := q.q.QueryRowContext(ctx, b.String(), b.args...).
		Scan(&bundle.ID, &bundle.Name, &bundle.DisplayName, &bundle.Description, &bundle.CreatedAt, &bundle.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return bundle, ErrBundleNotFound
		}
		return bundle, fmt.Errorf("database: failed to scan bundle: %w", err)
	}
	return bundle, nil
}

type CreateBundleParams struct {
	Name        string
	DisplayName string
	Description string
}

func (q *Queries) CreateBundle(ctx context.Context, params CreateBundleParams) (Bundle, error) {
	now := time.Now().UTC()
	bundle := Bundle{
		ID:          uuid.New(),
		Name:        params.Name,
		DisplayName: params.DisplayName,
		Description: params.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if _, err := q.q.ExecContext(ctx, `INSERT INTO tbl_bundle (id, name, display_name, description, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		bundle.ID, bundle.Name, bundle.DisplayName, bundle.Description, bundle.CreatedAt, bundle.UpdatedAt); err != nil {
		if isUniqueViolation(err) {
			return bundle, ErrDuplicate
		}
		return bundle, fmt.Errorf("database: failed to insert bundle (name=%s): %w", bundle.Name, err)
	}
	return bundle, nil
}
