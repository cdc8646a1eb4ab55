// Package ro holds the response objects serialized by the API.
package ro

import (
	"time"

	"careplan/internal/database"

	"github.com/google/uuid"
)

type PaginationRO[T any] struct {
	Result []T `json:"result"`
	Total  int `json:"total"`
	Count  int `json:"count"`
}

// NewPagination wraps one page of results; total counts every matching row.
func NewPagination[T any](result []T, total int) PaginationRO[T] {
	if result == nil {
		result = []T{}
	}
	return PaginationRO[T]{Result: result, Total: total, Count: len(result)}
}

type UserRO struct {
	ID           uuid.UUID  `json:"id"`
	Email        string     `json:"email"`
	DisplayName  string     `json:"displayName"`
	Organization string     `json:"organization"`
	Roles        []string   `json:"roles"`
	Status       string     `json:"status"`
	RevokedAt    *time.Time `json:"revokedAt"`
	LastLoginAt  *time.Time `json:"lastLoginAt"`
	CreatedAt    time.Time  `json:"createdAt"`
	Preferences  any        `json:"preferences,omitempty"`
}

func NewUser(u database.User) UserRO {
	roles := make([]string, len(u.Roles))
	for i, r := range u.Roles {
		roles[i] = string(r)
	}
	out := UserRO{
		ID:           u.ID,
		Email:        u.Email,
		DisplayName:  u.DisplayName,
		Organization: u.Organization,
		Roles:        roles,
		Status:       string(u.Status),
		RevokedAt:    u.RevokedAt.Ptr(),
		LastLoginAt:  u.LastLoginAt.Ptr(),
		CreatedAt:    u.CreatedAt,
	}
	if len(u.Preferences) > 0 {
		out.Preferences = u.Preferences
	}
	return out
}

type UnitRO struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	DisplayName string    `json:"displayName"`
}

func NewUnit(u database.Unit) UnitRO {
	return UnitRO{ID: u.ID, Name: u.Name, DisplayName: u.DisplayName}
}

type BundleRO struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	DisplayName string    `json:"displayName"`
	Description string    `json:"description"`
}

func NewBundle(b database.Bundle) BundleRO {
	return BundleRO{ID: b.ID, Name: b.Name, DisplayName: b.DisplayName, Description: b.Description}
}

type RelatedResourceRO struct {
	Label string `json:"label"`
	Link  string `json:"link"`
}

type OccupationRO struct {
	ID               uuid.UUID           `json:"id"`
	Name             string              `json:"name"`
	DisplayName      string              `json:"displayName"`
	Description      string              `json:"description"`
	DisplayOrder     int                 `json:"displayOrder"`
	IsRegulated      bool                `json:"isRegulated"`
	RelatedResources []RelatedResourceRO `json:"relatedResources"`
	UpdatedAt        time.Time           `json:"updatedAt"`
}

func NewOccupation(o database.Occupation) OccupationRO {
	resources := make([]RelatedResourceRO, len(o.RelatedResources))
	for i, r := range o.RelatedResources {
		resources[i] = RelatedResourceRO(r)
	}
	return OccupationRO{
		ID:               o.ID,
		Name:             o.Name,
		DisplayName:      o.DisplayName,
		Description:      o.Description,
		DisplayOrder:     o.DisplayOrder,
		IsRegulated:      o.IsRegulated,
		RelatedResources: resources,
		UpdatedAt:        o.UpdatedAt,
	}
}

type ScopeItemRO struct {
	CareActivityID   uuid.UUID  `json:"careActivityId"`
	CareActivityName string     `json:"careActivityName"`
	ActivityType     string     `json:"activityType"`
	ClinicalType     *string    `json:"clinicalType"`
	BundleID         uuid.UUID  `json:"bundleId"`
	BundleName       string     `json:"bundleName"`
	UnitID           *uuid.UUID `json:"unitId"`
	Permission       string     `json:"permission"`
}

func NewScopeItem(s database.ScopeItem) ScopeItemRO {
	return ScopeItemRO{
		CareActivityID:   s.CareActivityID,
		CareActivityName: s.CareActivityName,
		ActivityType:     string(s.ActivityType),
		ClinicalType:     clinicalType(s.ClinicalType.Ptr()),
		BundleID:         s.BundleID,
		BundleName:       s.BundleName,
		UnitID:           s.UnitID.Ptr(),
		Permission:       string(s.Permission),
	}
}

func clinicalType(t *database.ClinicalType) *string {
	if t == nil {
		return nil
	}
	s := string(*t)
	return &s
}
