package upload

import (
	"strings"

	"careplan/internal/database"
)

// Fixed columns of the bulk upload layout. Every other column is an occupation.
const (
	HeaderID           = "ID"
	HeaderCareSetting  = "Care Setting"
	HeaderBundle       = "Care Competencies"
	HeaderCareActivity = "Care Activities"
	HeaderActivityType = "Aspect of Practice"
	HeaderClinicalType = "Clinical Type"
	HeaderDescription  = "Description"
)

var FixedHeaders = []string{
	HeaderID, HeaderCareSetting, HeaderBundle, HeaderCareActivity,
	HeaderActivityType, HeaderClinicalType, HeaderDescription,
}

var requiredHeaders = []string{HeaderCareSetting, HeaderBundle, HeaderCareActivity, HeaderActivityType}

// PermissionNone marks an occupation that may not perform the activity.
const PermissionNone = "X"

var activityTypeLabels = map[database.ActivityType]string{
	database.ActivityTypeAspectOfPractice:   "Aspect of Practice",
	database.ActivityTypeTask:               "Task",
	database.ActivityTypeRestrictedActivity: "Restricted Activity",
}

var clinicalTypeLabels = map[database.ClinicalType]string{
	database.ClinicalTypeClinical: "Clinical",
	database.ClinicalTypeSupport:  "Support",
}

func ActivityTypeLabel(t database.ActivityType) string {
	return activityTypeLabels[t]
}

func ClinicalTypeLabel(t database.ClinicalType) string {
	return clinicalTypeLabels[t]
}

func labelKey(s string) string {
	return strings.NewReplacer(" ", "", "_", "", "-", "").Replace(strings.ToLower(strings.TrimSpace(s)))
}

// ParseActivityType accepts either the label or the enum value.
func ParseActivityType(s string) (database.ActivityType, bool) {
	key := labelKey(s)
	for t, label := range activityTypeLabels {
		if key == labelKey(label) || key == labelKey(string(t)) {
			return t, true
		}
	}
	return "", false
}

func ParseClinicalType(s string) (database.ClinicalType, bool) {
	key := labelKey(s)
	for t, label := range clinicalTypeLabels {
		if key == labelKey(label) {
			return t, true
		}
	}
	return "", false
}

// ParsePermission maps a cell to a permission. X and blank cells yield ok with
// set false, meaning the occupation has no permission for the activity.
func ParsePermission(s string) (p database.Permission, set bool, ok bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "":
		return "", false, true
	case PermissionNone:
		return "", false, true
	case string(database.PermissionPerform):
		return database.PermissionPerform, true, true
	case string(database.PermissionLimits):
		return database.PermissionLimits, true, true
	}
	return "", false, false
}

func isFixedHeader(h string) (string, bool) {
	for _, fixed := range FixedHeaders {
		if strings.EqualFold(h, fixed) {
			return fixed, true
		}
	}
	return "", false
}
