package ro

import (
	"time"

	"careplan/internal/database"

	"github.com/google/uuid"
)

type CareActivityRO struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	DisplayName  string    `json:"displayName"`
	Description  string    `json:"description"`
	ActivityType string    `json:"activityType"`
	ClinicalType *string   `json:"clinicalType"`
	BundleID     uuid.UUID `json:"bundleId"`
}

func NewCareActivity(a database.CareActivity) CareActivityRO {
	return CareActivityRO{
		ID:           a.ID,
		Name:         a.Name,
		DisplayName:  a.DisplayName,
		Description:  a.Description,
		ActivityType: string(a.ActivityType),
		ClinicalType: clinicalType(a.ClinicalType.Ptr()),
		BundleID:     a.BundleID,
	}
}

type BundleWithActivitiesRO struct {
	BundleRO
	CareActivities []CareActivityRO `json:"careActivities"`
}

type CareActivityCMSRO struct {
	ID           uuid.UUID `json:"id"`
	DisplayName  string    `json:"displayName"`
	ActivityType string    `json:"activityType"`
	ClinicalType *string   `json:"clinicalType"`
	BundleName   string    `json:"bundleName"`
	CareSettings []string  `json:"careSettings"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

func NewCareActivityCMS(item database.CareActivityListItem) CareActivityCMSRO {
	settings := item.UnitNames
	if settings == nil {
		settings = []string{}
	}
	return CareActivityCMSRO{
		ID:           item.ID,
		DisplayName:  item.DisplayName,
		ActivityType: string(item.ActivityType),
		ClinicalType: clinicalType(item.ClinicalType.Ptr()),
		BundleName:   item.BundleName,
		CareSettings: settings,
		UpdatedAt:    item.UpdatedAt,
	}
}

type AllowedActivityRO struct {
	OccupationID   uuid.UUID `json:"occupationId"`
	OccupationName string    `json:"occupationName"`
	Permission     string    `json:"permission"`
}

type CareActivityDetailRO struct {
	CareActivityRO
	Bundle            BundleRO            `json:"bundle"`
	CareLocations     []UnitRO            `json:"careLocations"`
	AllowedActivities []AllowedActivityRO `json:"allowedActivities"`
	UpdatedAt         time.Time           `json:"updatedAt"`
}

type BulkUploadErrorRO struct {
	ErrorType string `json:"errorType"`
	Message   string `json:"message"`
	RowNumber []int  `json:"rowNumber"`
}

// BulkUploadRO summarises a reconciled spreadsheet.
type BulkUploadRO struct {
	Total              int                 `json:"total"`
	Add                int                 `json:"add"`
	Edit               int                 `json:"edit"`
	Errors             []BulkUploadErrorRO `json:"errors"`
	MissingOccupations []string            `json:"missingOccupations"`
	NewUnits           []string            `json:"newUnits"`
	NewBundles         []string            `json:"newBundles"`
}

func (r BulkUploadRO) HasErrors() bool {
	return len(r.Errors) > 0 || len(r.MissingOccupations) > 0
}
