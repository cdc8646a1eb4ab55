package upload

import (
	"strings"
	"testing"

	"careplan/internal/database"
	"careplan/internal/ro"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	unitAcute     = database.Unit{ID: uuid.New(), Name: "acute care", DisplayName: "Acute Care"}
	bundleMeds    = database.Bundle{ID: uuid.New(), Name: "medication", DisplayName: "Medication"}
	activityMeds  = database.CareActivity{ID: uuid.New(), Name: "administer medication", DisplayName: "Administer Medication", ActivityType: database.ActivityTypeTask, BundleID: bundleMeds.ID}
	occupationRN  = database.Occupation{ID: uuid.New(), Name: "registered nurse", DisplayName: "Registered Nurse"}
	occupationLPN = database.Occupation{ID: uuid.New(), Name: "licensed practical nurse", DisplayName: "Licensed Practical Nurse"}
)

func testCatalog() Catalog {
	return Catalog{
		Units:       []database.Unit{unitAcute},
		Bundles:     []database.Bundle{bundleMeds},
		Activities:  []database.CareActivity{activityMeds},
		Occupations: []database.Occupation{occupationRN, occupationLPN},
	}
}

func mustSheet(t *testing.T, csv string) Sheet {
	t.Helper()
	sheet, err := ParseCSV(strings.NewReader(csv))
	require.NoError(t, err)
	return sheet
}

func TestReconcile_MissingHeader(t *testing.T) {
	sheet := mustSheet(t, "Care Setting,Care Competencies,Care Activities\nAcute Care,Medication,Feeding\n")

	plan := Reconcile(sheet, testCatalog())
	require.Len(t, plan.Result.Errors, 1)
	assert.Equal(t, "MISSING_HEADER", plan.Result.Errors[0].ErrorType)
	assert.Contains(t, plan.Result.Errors[0].Message, HeaderActivityType)
	assert.Equal(t, []int{1}, plan.Result.Errors[0].RowNumber)
	assert.Empty(t, plan.Activities)
	assert.Equal(t, 1, plan.Result.Total)
}

func TestReconcile_ClassifiesRows(t *testing.T) {
	csv := strings.Join([]string{
		"ID,Care Setting,Care Competencies,Care Activities,Aspect of Practice,Registered Nurse,Licensed Practical Nurse,Doula",
		",Acute Care,Medication,Administer Medication,Task,Y,LC,",
		",Community Clinic,Wound Care,Dress Wounds,Restricted Activity,Y,X,",
		",community clinic,Wound Care,Dress  Wounds,Task,Y,,",
		",Acute Care,,Foo,Task,,,",
		",Acute Care,Medication,Bar,Sometimes,,,",
		",Acute Care,Medication,Baz,Task,maybe,,",
		uuid.NewString() + ",Acute Care,Medication,Qux,Task,,,",
		activityMeds.ID.String() + ",Long Term Care,Medication,Administer Medication,Task,Y,,",
	}, "\n")

	plan := Reconcile(mustSheet(t, csv), testCatalog())
	result := plan.Result

	assert.Equal(t, 8, result.Total)
	assert.Equal(t, 1, result.Add)
	assert.Equal(t, 1, result.Edit)
	assert.Equal(t, []string{"Doula"}, result.MissingOccupations)
	assert.Equal(t, []string{"Community Clinic", "Long Term Care"}, result.NewUnits)
	assert.Equal(t, []string{"Wound Care"}, result.NewBundles)
	assert.True(t, result.HasErrors())

	got := map[string][]int{}
	var order []string
	for _, e := range result.Errors {
		got[e.ErrorType] = e.RowNumber
		order = append(order, e.ErrorType)
	}
	assert.Equal(t, []string{"MISSING_VALUE", "INVALID_ACTIVITY_TYPE", "INVALID_PERMISSION", "MISSING_ID", "DUPLICATE"}, order)
	assert.Equal(t, []int{5}, got["MISSING_VALUE"])
	assert.Equal(t, []int{6}, got["INVALID_ACTIVITY_TYPE"])
	assert.Equal(t, []int{7}, got["INVALID_PERMISSION"])
	assert.Equal(t, []int{8}, got["MISSING_ID"])
	assert.Equal(t, []int{4}, got["DUPLICATE"])

	require.Len(t, plan.Activities, 2)
	edit := plan.Activities[0]
	assert.Equal(t, activityMeds.ID, edit.ExistingID.Val)
	assert.Equal(t, []string{"Acute Care", "Long Term Care"}, edit.UnitNames)
	assert.Equal(t, []int{2, 9}, edit.Rows)
	require.Len(t, edit.Permissions, 2)
	assert.Equal(t, occupationRN.ID, edit.Permissions[0].OccupationID)
	assert.Equal(t, database.PermissionPerform, edit.Permissions[0].Permission.Val)
	assert.Equal(t, database.PermissionLimits, edit.Permissions[1].Permission.Val)

	add := plan.Activities[1]
	assert.False(t, add.ExistingID.IsSet)
	assert.Equal(t, "dress wounds", add.Name)
	assert.Equal(t, database.ActivityTypeRestrictedActivity, add.ActivityType)
	assert.False(t, add.Permissions[1].Permission.IsSet, "X clears the permission")
}

func TestReconcile_NameConflict(t *testing.T) {
	other := database.CareActivity{ID: uuid.New(), Name: "feeding", DisplayName: "Feeding", ActivityType: database.ActivityTypeTask, BundleID: bundleMeds.ID}
	catalog := testCatalog()
	catalog.Activities = append(catalog.Activities, other)

	csv := "ID,Care Setting,Care Competencies,Care Activities,Aspect of Practice\n" +
		other.ID.String() + ",Acute Care,Medication,Administer Medication,Task\n"

	plan := Reconcile(mustSheet(t, csv), catalog)
	assert.Equal(t, []ro.BulkUploadErrorRO{{
		ErrorType: "NAME_CONFLICT",
		Message:   errorMessages[ErrorNameConflict] + " (1 row(s))",
		RowNumber: []int{2},
	}}, plan.Result.Errors)
	assert.Zero(t, plan.Result.Edit)
}

func TestReconcile_RenameCollidesWithNewActivity(t *testing.T) {
	csv := strings.Join([]string{
		"ID,Care Setting,Care Competencies,Care Activities,Aspect of Practice",
		activityMeds.ID.String() + ",Acute Care,Medication,Give Insulin,Task",
		",Community Clinic,Medication,Give  insulin,Task",
	}, "\n")

	plan := Reconcile(mustSheet(t, csv), testCatalog())
	require.Len(t, plan.Result.Errors, 1)
	assert.Equal(t, "NAME_CONFLICT", plan.Result.Errors[0].ErrorType)
	assert.Equal(t, []int{3}, plan.Result.Errors[0].RowNumber)
	assert.Equal(t, 1, plan.Result.Edit)
	assert.Zero(t, plan.Result.Add)
}

func TestReconcile_TwoRenamesToSameName(t *testing.T) {
	other := database.CareActivity{ID: uuid.New(), Name: "feeding", DisplayName: "Feeding", ActivityType: database.ActivityTypeTask, BundleID: bundleMeds.ID}
	catalog := testCatalog()
	catalog.Activities = append(catalog.Activities, other)

	csv := strings.Join([]string{
		"ID,Care Setting,Care Competencies,Care Activities,Aspect of Practice",
		activityMeds.ID.String() + ",Acute Care,Medication,Assist Client,Task",
		other.ID.String() + ",Acute Care,Medication,Assist client,Task",
	}, "\n")

	plan := Reconcile(mustSheet(t, csv), catalog)
	got := map[string][]int{}
	for _, e := range plan.Result.Errors {
		got[e.ErrorType] = e.RowNumber
	}
	assert.Equal(t, []int{3}, got["NAME_CONFLICT"])
}

func TestReconcile_CleanSheet(t *testing.T) {
	csv := "Care Setting,Care Competencies,Care Activities,Aspect of Practice,Clinical Type,Description,registered nurse\n" +
		"Acute Care,Medication,Administer Medication,Task,Clinical,Give meds,Y\n"

	plan := Reconcile(mustSheet(t, csv), testCatalog())
	assert.False(t, plan.Result.HasErrors())
	assert.Equal(t, 1, plan.Result.Edit)
	assert.Empty(t, plan.Result.NewUnits)
	require.Len(t, plan.Activities, 1)
	assert.Equal(t, "Give meds", plan.Activities[0].Description)
	assert.Equal(t, database.ClinicalTypeClinical, plan.Activities[0].ClinicalType.Val)
}
