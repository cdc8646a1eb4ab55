package dto

type OccupationQuery struct {
	PaginationQuery
	SortKey    string `query:"sortKey" validate:"omitempty,oneof=displayName displayOrder isRegulated updatedAt"`
	SortOrder  string `query:"sortOrder" validate:"omitempty,sort_order"`
	SearchText string `query:"searchText" validate:"omitempty,max=255"`
}

type ScopeQuery struct {
	PaginationQuery
	SearchText string `query:"searchText" validate:"omitempty,max=255"`
	BundleID   string `query:"bundleId" validate:"omitempty,uuid"`
	Permission string `query:"permission" validate:"omitempty,permission"`
}

type RelatedResourceDTO struct {
	Label string `json:"label" validate:"required,max=255"`
	Link  string `json:"link" validate:"required,url,max=2048"`
}

type CreateOccupationDTO struct {
	DisplayName      string               `json:"displayName" validate:"required,max=255"`
	Description      string               `json:"description" validate:"max=4096"`
	IsRegulated      bool                 `json:"isRegulated"`
	DisplayOrder     *int                 `json:"displayOrder" validate:"omitempty,min=0"`
	RelatedResources []RelatedResourceDTO `json:"relatedResources" validate:"omitempty,max=20,dive"`
}

type ScopePermissionDTO struct {
	CareActivityID string `json:"careActivityId" validate:"required,uuid"`
	// Permission nil removes the activity from the occupation's scope.
	Permission *string `json:"permission" validate:"omitempty,permission"`
}

type EditOccupationDTO struct {
	DisplayName      *string              `json:"displayName" validate:"omitempty,min=1,max=255"`
	Description      *string              `json:"description" validate:"omitempty,max=4096"`
	IsRegulated      *bool                `json:"isRegulated"`
	DisplayOrder     *int                 `json:"displayOrder" validate:"omitempty,min=0"`
	RelatedResources []RelatedResourceDTO `json:"relatedResources" validate:"omitempty,max=20,dive"`
	ScopePermissions []ScopePermissionDTO `json:"scopePermissions" validate:"omitempty,dive"`
}
