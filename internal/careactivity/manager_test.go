package careactivity

import (
	"bytes"
	"context"
	"net/http"
	"testing"

	"careplan/internal/apperror"
	"careplan/internal/audit"
	"careplan/internal/database"
	"careplan/internal/dto"
	"careplan/internal/logger"
	"careplan/internal/testutil"
	"careplan/internal/upload"
	"careplan/internal/util"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	actor      = database.User{ID: uuid.New(), Roles: []database.UserRole{database.UserRoleContentAdmin}}
	unitAcute  = database.Unit{ID: uuid.New(), Name: "acute care", DisplayName: "Acute Care"}
	unitHome   = database.Unit{ID: uuid.New(), Name: "home care", DisplayName: "Home Care"}
	bundleMeds = database.Bundle{ID: uuid.New(), Name: "medication", DisplayName: "Medication"}
	bundleSkin = database.Bundle{ID: uuid.New(), Name: "skin care", DisplayName: "Skin Care"}
	activity   = database.CareActivity{ID: uuid.New(), Name: "administer medication", DisplayName: "Administer Medication",
		ActivityType: database.ActivityTypeTask, ClinicalType: util.Some(database.ClinicalTypeClinical), BundleID: bundleMeds.ID}
	occupationRN  = database.Occupation{ID: uuid.New(), Name: "registered nurse", DisplayName: "Registered Nurse", DisplayOrder: 1}
	occupationLPN = database.Occupation{ID: uuid.New(), Name: "licensed practical nurse", DisplayName: "Licensed Practical Nurse", DisplayOrder: 2}
)

func newManager(t *testing.T) (Manager, sqlmock.Sqlmock) {
	db, mock := testutil.NewMockDatabase(t)
	auditor := audit.NewAuditor(logger.Discard(), db)
	return NewManager(logger.Discard(), db, &auditor, nil), mock
}

func requireAppError(t *testing.T, err error, want apperror.Type, status int) {
	t.Helper()
	appErr, ok := apperror.From(err)
	require.True(t, ok, "expected an API error, got %v", err)
	assert.Equal(t, want, appErr.Type)
	assert.Equal(t, status, appErr.Status)
}

func TestManager_BundlesForUnit(t *testing.T) {
	m, mock := newManager(t)
	other := database.CareActivity{ID: uuid.New(), Name: "insulin", DisplayName: "Insulin", ActivityType: database.ActivityTypeRestrictedActivity, BundleID: bundleMeds.ID}
	mock.ExpectQuery(`FROM tbl_unit WHERE id = \$1`).WithArgs(unitAcute.ID).WillReturnRows(testutil.UnitRows(unitAcute))
	mock.ExpectQuery(`FROM tbl_care_activity ca WHERE 1=1 AND EXISTS`).WithArgs(unitAcute.ID).
		WillReturnRows(testutil.CareActivityRows(activity, other))
	mock.ExpectQuery(`FROM tbl_bundle ORDER BY display_name`).WillReturnRows(testutil.BundleRows(bundleMeds, bundleSkin))

	bundles, err := m.BundlesForUnit(context.Background(), unitAcute.ID)
	require.NoError(t, err)
	require.Len(t, bundles, 1, "bundles without activities in the care setting are left out")
	assert.Equal(t, "Medication", bundles[0].DisplayName)
	assert.Len(t, bundles[0].CareActivities, 2)
}

func TestManager_BundlesForUnit_UnknownUnit(t *testing.T) {
	m, mock := newManager(t)
	mock.ExpectQuery(`FROM tbl_unit WHERE id = \$1`).WillReturnRows(testutil.UnitRows())

	_, err := m.BundlesForUnit(context.Background(), uuid.New())
	requireAppError(t, err, apperror.TypeUnitNotFound, http.StatusNotFound)
}

func TestManager_Find(t *testing.T) {
	m, mock := newManager(t)
	columns := append(append([]string{}, testutil.CareActivityColumns...), "bundle_name", "unit_names", "total")
	mock.ExpectQuery(`FROM tbl_care_activity ca JOIN tbl_bundle b ON b.id = ca.bundle_id WHERE 1=1 AND \(ca.display_name ILIKE \$1 OR b.display_name ILIKE \$2\) ORDER BY ca.updated_at DESC NULLS LAST, ca.id LIMIT \$3 OFFSET \$4`).
		WithArgs("%med%", "%med%", 20, 20).
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow(append(testutil.CareActivityValues(activity), "Medication", "{Acute Care,Home Care}", int64(21))...))

	page, err := m.Find(context.Background(), dto.CareActivityCMSQuery{
		PaginationQuery: dto.PaginationQuery{Page: 2, PageSize: 20},
		SortKey:         "updatedAt",
		SortOrder:       "DESC",
		SearchText:      "med",
	})
	require.NoError(t, err)
	assert.Equal(t, 21, page.Total)
	require.Len(t, page.Result, 1)
	assert.Equal(t, []string{"Acute Care", "Home Care"}, page.Result[0].CareSettings)
	assert.Equal(t, "CLINICAL", *page.Result[0].ClinicalType)
}

func expectDetail(mock sqlmock.Sqlmock) {
	mock.ExpectQuery(`FROM tbl_care_activity ca WHERE 1=1 AND ca.id = \$1`).WithArgs(activity.ID).
		WillReturnRows(testutil.CareActivityRows(activity))
	mock.ExpectQuery(`FROM tbl_bundle WHERE 1=1 AND id = \$1`).WithArgs(bundleMeds.ID).
		WillReturnRows(testutil.BundleRows(bundleMeds))
	mock.ExpectQuery(`FROM tbl_care_activity_unit WHERE 1=1 AND care_activity_id = ANY`).
		WillReturnRows(testutil.CareActivityUnitRows(database.CareActivityUnit{CareActivityID: activity.ID, UnitID: unitHome.ID}))
	mock.ExpectQuery(`FROM tbl_unit ORDER BY display_name`).WillReturnRows(testutil.UnitRows(unitAcute, unitHome))
	mock.ExpectQuery(`FROM tbl_allowed_activity aa WHERE 1=1 AND aa.care_activity_id = ANY\(\$1\) AND EXISTS`).
		WillReturnRows(testutil.AllowedActivityRows(
			database.AllowedActivity{OccupationID: occupationLPN.ID, CareActivityID: activity.ID, Permission: database.PermissionLimits},
			database.AllowedActivity{OccupationID: occupationRN.ID, CareActivityID: activity.ID, Permission: database.PermissionPerform},
		))
	mock.ExpectQuery(`FROM tbl_occupation WHERE 1=1 AND deleted_at IS NULL ORDER BY display_order`).
		WillReturnRows(testutil.OccupationRows(2, occupationRN, occupationLPN))
}

func TestManager_Get(t *testing.T) {
	m, mock := newManager(t)
	expectDetail(mock)

	detail, err := m.Get(context.Background(), activity.ID)
	require.NoError(t, err)
	assert.Equal(t, "Administer Medication", detail.DisplayName)
	assert.Equal(t, "Medication", detail.Bundle.DisplayName)
	require.Len(t, detail.CareLocations, 1)
	assert.Equal(t, unitHome.ID, detail.CareLocations[0].ID)
	require.Len(t, detail.AllowedActivities, 2)
	assert.Equal(t, "Registered Nurse", detail.AllowedActivities[0].OccupationName, "allowed activities follow occupation display order")
	assert.Equal(t, "LC", detail.AllowedActivities[1].Permission)
}

func TestManager_Get_NotFound(t *testing.T) {
	m, mock := newManager(t)
	mock.ExpectQuery(`FROM tbl_care_activity ca WHERE 1=1 AND ca.id = \$1`).
		WillReturnRows(sqlmock.NewRows(testutil.CareActivityColumns))

	_, err := m.Get(context.Background(), uuid.New())
	requireAppError(t, err, apperror.TypeCareActivityNotFound, http.StatusNotFound)
}

func editRequest() dto.EditCareActivityDTO {
	return dto.EditCareActivityDTO{
		DisplayName:   "  Administer   Medication ",
		Description:   "Oral and topical",
		ActivityType:  "TASK",
		ClinicalType:  "CLINICAL",
		BundleID:      bundleMeds.ID.String(),
		CareLocations: []string{unitHome.ID.String()},
		AllowedActivities: []dto.AllowedActivityDTO{
			{OccupationID: occupationRN.ID.String(), Permission: "Y"},
		},
	}
}

func expectEditLookups(mock sqlmock.Sqlmock) {
	mock.ExpectBegin()
	mock.ExpectQuery(`FROM tbl_care_activity ca WHERE 1=1 AND ca.id = \$1`).WillReturnRows(testutil.CareActivityRows(activity))
	mock.ExpectQuery(`FROM tbl_bundle WHERE 1=1 AND id = \$1`).WillReturnRows(testutil.BundleRows(bundleMeds))
	mock.ExpectQuery(`FROM tbl_unit WHERE id = \$1`).WithArgs(unitHome.ID).WillReturnRows(testutil.UnitRows(unitHome))
}

func TestManager_Edit(t *testing.T) {
	m, mock := newManager(t)
	expectEditLookups(mock)
	mock.ExpectExec(`UPDATE tbl_care_activity SET name = \$1, display_name = \$2, description = \$3, activity_type = \$4, clinical_type = \$5, bundle_id = \$6, updated_at = \$7 WHERE id = \$8`).
		WithArgs("administer medication", "Administer Medication", "Oral and topical", "TASK", "CLINICAL", bundleMeds.ID, sqlmock.AnyArg(), activity.ID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM tbl_care_activity_unit WHERE care_activity_id = \$1$`).WithArgs(activity.ID).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(`INSERT INTO tbl_care_activity_unit`).WithArgs(activity.ID, unitHome.ID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM tbl_allowed_activity WHERE care_activity_id = \$1`).WithArgs(activity.ID).
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectQuery(`FROM tbl_occupation WHERE 1=1 AND deleted_at IS NULL`).
		WillReturnRows(testutil.OccupationRows(2, occupationRN, occupationLPN))
	mock.ExpectExec(`INSERT INTO tbl_allowed_activity`).
		WithArgs(sqlmock.AnyArg(), occupationRN.ID, activity.ID, nil, "Y", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO tbl_audit_event`).WillReturnResult(sqlmock.NewResult(0, 1))
	expectDetail(mock)
	mock.ExpectCommit()

	detail, err := m.Edit(context.Background(), actor, activity.ID, editRequest())
	require.NoError(t, err)
	assert.Equal(t, activity.ID, detail.ID)
}

func TestManager_Edit_DuplicateName(t *testing.T) {
	m, mock := newManager(t)
	expectEditLookups(mock)
	mock.ExpectExec(`UPDATE tbl_care_activity SET`).WillReturnError(&pq.Error{Code: "23505"})
	mock.ExpectRollback()

	_, err := m.Edit(context.Background(), actor, activity.ID, editRequest())
	requireAppError(t, err, apperror.TypeCareActivityExists, http.StatusConflict)
}

func TestManager_Edit_UnknownBundle(t *testing.T) {
	m, mock := newManager(t)
	mock.ExpectBegin()
	mock.ExpectQuery(`FROM tbl_care_activity ca WHERE 1=1 AND ca.id = \$1`).WillReturnRows(testutil.CareActivityRows(activity))
	mock.ExpectQuery(`FROM tbl_bundle WHERE 1=1 AND id = \$1`).WillReturnRows(testutil.BundleRows())
	mock.ExpectRollback()

	_, err := m.Edit(context.Background(), actor, activity.ID, editRequest())
	requireAppError(t, err, apperror.TypeBundleNotFound, http.StatusNotFound)
}

func TestManager_Edit_UnknownOccupation(t *testing.T) {
	m, mock := newManager(t)
	expectEditLookups(mock)
	mock.ExpectExec(`UPDATE tbl_care_activity SET`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM tbl_care_activity_unit`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO tbl_care_activity_unit`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM tbl_allowed_activity`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`FROM tbl_occupation`).WillReturnRows(testutil.OccupationRows(1, occupationLPN))
	mock.ExpectRollback()

	_, err := m.Edit(context.Background(), actor, activity.ID, editRequest())
	requireAppError(t, err, apperror.TypeOccupationNotFound, http.StatusNotFound)
}

func TestManager_Delete(t *testing.T) {
	m, mock := newManager(t)
	mock.ExpectBegin()
	mock.ExpectQuery(`FROM tbl_care_activity ca WHERE 1=1 AND ca.id = \$1`).WillReturnRows(testutil.CareActivityRows(activity))
	mock.ExpectExec(`DELETE FROM tbl_care_activity WHERE id = \$1`).WithArgs(activity.ID).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO tbl_audit_event`).
		WithArgs(sqlmock.AnyArg(), actor.ID, string(audit.EventTypeCareActivityDelete), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, m.Delete(context.Background(), actor, activity.ID))
}

func TestManager_Delete_NotFound(t *testing.T) {
	m, mock := newManager(t)
	mock.ExpectBegin()
	mock.ExpectQuery(`FROM tbl_care_activity ca WHERE 1=1 AND ca.id = \$1`).WillReturnRows(sqlmock.NewRows(testutil.CareActivityColumns))
	mock.ExpectRollback()

	err := m.Delete(context.Background(), actor, uuid.New())
	requireAppError(t, err, apperror.TypeCareActivityNotFound, http.StatusNotFound)
}

func TestManager_RemoveUnit_NotLinked(t *testing.T) {
	m, mock := newManager(t)
	mock.ExpectBegin()
	mock.ExpectQuery(`FROM tbl_care_activity ca WHERE 1=1 AND ca.id = \$1`).WillReturnRows(testutil.CareActivityRows(activity))
	mock.ExpectExec(`DELETE FROM tbl_care_activity_unit WHERE care_activity_id = \$1 AND unit_id = \$2`).
		WithArgs(activity.ID, unitAcute.ID).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := m.RemoveUnit(context.Background(), actor, activity.ID, unitAcute.ID)
	requireAppError(t, err, apperror.TypeUnitNotFound, http.StatusNotFound)
}

func TestManager_Template(t *testing.T) {
	m, mock := newManager(t)
	mock.ExpectQuery(`FROM tbl_occupation WHERE 1=1 AND deleted_at IS NULL ORDER BY display_order`).
		WillReturnRows(testutil.OccupationRows(2, occupationRN, occupationLPN))

	workbook, err := m.Template(context.Background())
	require.NoError(t, err)

	sheet, err := upload.ParseXLSX(bytes.NewReader(workbook.Data))
	require.NoError(t, err)
	assert.Equal(t, append(append([]string{}, upload.FixedHeaders...), "Registered Nurse", "Licensed Practical Nurse"), sheet.Headers)
	assert.Empty(t, sheet.Rows)
}

func TestExportRows(t *testing.T) {
	unlinked := database.CareActivity{ID: uuid.New(), DisplayName: "Bathing", ActivityType: database.ActivityTypeAspectOfPractice, BundleID: bundleSkin.ID}
	links := []database.CareActivityUnit{
		{CareActivityID: activity.ID, UnitID: unitHome.ID},
		{CareActivityID: activity.ID, UnitID: unitAcute.ID},
	}
	allowed := []database.AllowedActivity{
		{OccupationID: occupationLPN.ID, CareActivityID: activity.ID, Permission: database.PermissionLimits},
	}

	rows := exportRows(
		[]database.CareActivity{activity, unlinked},
		[]database.Unit{unitAcute, unitHome},
		[]database.Bundle{bundleMeds, bundleSkin},
		[]database.Occupation{occupationRN, occupationLPN},
		links, allowed, util.None[uuid.UUID](),
	)

	require.Len(t, rows, 3)
	assert.Equal(t, []string{activity.ID.String(), "Acute Care", "Medication", "Administer Medication", "Task", "Clinical", "", "X", "LC"}, rows[0])
	assert.Equal(t, "Home Care", rows[1][1])
	assert.Equal(t, []string{unlinked.ID.String(), "", "Skin Care", "Bathing", "Aspect of Practice", "", "", "X", "X"}, rows[2])

	filtered := exportRows([]database.CareActivity{activity}, []database.Unit{unitAcute, unitHome}, []database.Bundle{bundleMeds},
		nil, links, nil, util.Some(unitHome.ID))
	require.Len(t, filtered, 1)
	assert.Equal(t, "Home Care", filtered[0][1])
}

func TestManager_Export(t *testing.T) {
	ctx := context.Background()

	t.Run("filtered_by_care_setting", func(t *testing.T) {
		m, mock := newManager(t)
		mock.ExpectQuery(`FROM tbl_occupation WHERE 1=1 AND deleted_at IS NULL ORDER BY display_order`).
			WillReturnRows(testutil.OccupationRows(2, occupationRN, occupationLPN))
		mock.ExpectQuery(`FROM tbl_unit WHERE id = \$1`).WithArgs(unitHome.ID).WillReturnRows(testutil.UnitRows(unitHome))
		mock.ExpectQuery(`FROM tbl_care_activity ca WHERE 1=1 AND EXISTS .* ORDER BY ca.display_name, ca.id`).
			WithArgs(unitHome.ID).
			WillReturnRows(testutil.CareActivityRows(activity))
		mock.ExpectQuery(`FROM tbl_unit ORDER BY display_name`).WillReturnRows(testutil.UnitRows(unitAcute, unitHome))
		mock.ExpectQuery(`FROM tbl_bundle ORDER BY display_name`).WillReturnRows(testutil.BundleRows(bundleMeds, bundleSkin))
		mock.ExpectQuery(`FROM tbl_care_activity_unit WHERE 1=1 AND care_activity_id = ANY\(\$1\)`).
			WillReturnRows(testutil.CareActivityUnitRows(
				database.CareActivityUnit{CareActivityID: activity.ID, UnitID: unitAcute.ID},
				database.CareActivityUnit{CareActivityID: activity.ID, UnitID: unitHome.ID},
			))
		mock.ExpectQuery(`FROM tbl_allowed_activity aa WHERE 1=1 AND aa.care_activity_id = ANY\(\$1\) AND EXISTS`).
			WillReturnRows(testutil.AllowedActivityRows(
				database.AllowedActivity{OccupationID: occupationRN.ID, CareActivityID: activity.ID, Permission: database.PermissionPerform},
			))

		workbook, err := m.Export(ctx, actor, util.Some(unitHome.ID))
		require.NoError(t, err)
		assert.Regexp(t, `^care-activities-\d{4}-\d{2}-\d{2}\.xlsx$`, workbook.Filename)

		sheet, err := upload.ParseXLSX(bytes.NewReader(workbook.Data))
		require.NoError(t, err)
		assert.Equal(t, append(append([]string{}, upload.FixedHeaders...), "Registered Nurse", "Licensed Practical Nurse"), sheet.Headers)
		require.Len(t, sheet.Rows, 1)
		row := sheet.Rows[0]
		assert.Equal(t, 2, row.Number)
		assert.Equal(t, activity.ID.String(), row.Get(upload.HeaderID))
		assert.Equal(t, "Home Care", row.Get(upload.HeaderCareSetting))
		assert.Equal(t, "Medication", row.Get(upload.HeaderBundle))
		assert.Equal(t, "Administer Medication", row.Get(upload.HeaderCareActivity))
		assert.Equal(t, "Task", row.Get(upload.HeaderActivityType))
		assert.Equal(t, "Clinical", row.Get(upload.HeaderClinicalType))
		assert.Equal(t, "Y", row.Get("Registered Nurse"))
		assert.Equal(t, upload.PermissionNone, row.Get("Licensed Practical Nurse"))
	})

	t.Run("unknown_care_setting", func(t *testing.T) {
		m, mock := newManager(t)
		mock.ExpectQuery(`FROM tbl_occupation`).WillReturnRows(testutil.OccupationRows(0))
		mock.ExpectQuery(`FROM tbl_unit WHERE id = \$1`).WithArgs(unitHome.ID).
			WillReturnRows(testutil.UnitRows())

		_, err := m.Export(ctx, actor, util.Some(unitHome.ID))
		requireAppError(t, err, apperror.TypeUnitNotFound, http.StatusNotFound)
	})
}
