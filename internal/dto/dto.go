// Package dto holds the request shapes accepted by the API, with their validation rules.
package dto

import (
	"careplan/internal/database"

	"github.com/google/uuid"
)

const (
	DefaultPage     = 1
	DefaultPageSize = 10
	MaxPageSize     = 100
	MaxPage         = 100000
)

type PaginationQuery struct {
	Page     int `query:"page" json:"page" validate:"omitempty,min=1,max=100000"`
	PageSize int `query:"pageSize" json:"pageSize" validate:"omitempty,min=1,max=100"`
}

func (p PaginationQuery) Limit() int {
	if p.PageSize <= 0 {
		return DefaultPageSize
	}
	if p.PageSize > MaxPageSize {
		return MaxPageSize
	}
	return p.PageSize
}

func (p PaginationQuery) Offset() int {
	page := p.Page
	if page <= 0 {
		page = DefaultPage
	}
	page = min(page, MaxPage)
	return (page - 1) * p.Limit()
}

func OrderBy(sortOrder string) database.OrderBy {
	if sortOrder == "DESC" {
		return database.OrderByDESC
	}
	return database.OrderByASC
}

// ParseIDs converts validated uuid strings.
func ParseIDs(ids []string) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if parsed, err := uuid.Parse(id); err == nil {
			out = append(out, parsed)
		}
	}
	return out
}
