package dto

type CareActivityCMSQuery struct {
	PaginationQuery
	SortKey    string `query:"sortKey" validate:"omitempty,oneof=displayName activityType clinicalType updatedAt"`
	SortOrder  string `query:"sortOrder" validate:"omitempty,sort_order"`
	SearchText string `query:"searchText" validate:"omitempty,max=255"`
	UnitID     string `query:"unitId" validate:"omitempty,uuid"`
}

type BundlesForUnitQuery struct {
	UnitID string `query:"unitId" validate:"required,uuid"`
}

type ExportQuery struct {
	UnitID string `query:"unitId" validate:"omitempty,uuid"`
}

type AllowedActivityDTO struct {
	OccupationID string `json:"occupationId" validate:"required,uuid"`
	Permission   string `json:"permission" validate:"required,permission"`
}

type EditCareActivityDTO struct {
	DisplayName       string               `json:"displayName" validate:"required,max=255"`
	Description       string               `json:"description" validate:"max=4096"`
	ActivityType      string               `json:"activityType" validate:"required,activity_type"`
	ClinicalType      string               `json:"clinicalType" validate:"omitempty,clinical_type"`
	BundleID          string               `json:"bundleId" validate:"required,uuid"`
	CareLocations     []string             `json:"careLocations" validate:"required,min=1,dive,uuid"`
	AllowedActivities []AllowedActivityDTO `json:"allowedActivities" validate:"omitempty,dive"`
}

type BulkRowDTO struct {
	RowData map[string]string `json:"rowData" validate:"required"`
}

// CareActivityBulkDTO is the JSON form of an uploaded spreadsheet.
type CareActivityBulkDTO struct {
	Headers []string     `json:"headers" validate:"required,min=1,dive,max=255"`
	Data    []BulkRowDTO `json:"data" validate:"required,min=1,max=5000,dive"`
}
