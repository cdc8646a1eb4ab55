package occupation

import (
	"context"
	"net/http"
	"testing"

	"careplan/internal/apperror"
	"careplan/internal/audit"
	"careplan/internal/cache"
	"careplan/internal/database"
	"careplan/internal/dto"
	"careplan/internal/logger"
	"careplan/internal/testutil"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newManager(t *testing.T) (Manager, sqlmock.Sqlmock) {
	db, mock := testutil.NewMockDatabase(t)
	auditor := audit.NewAuditor(logger.Discard(), db)
	return NewManager(logger.Discard(), db, &auditor, cache.Disabled()), mock
}

var actor = database.User{ID: uuid.New(), Roles: []database.UserRole{database.UserRoleContentAdmin}}

func TestManager_List(t *testing.T) {
	m, mock := newManager(t)
	rn := database.Occupation{ID: uuid.New(), Name: "registered nurse", DisplayName: "Registered Nurse", DisplayOrder: 1, IsRegulated: true,
		RelatedResources: []database.RelatedResource{{Label: "College", Link: "https://example.org"}}}
	mock.ExpectQuery(`SELECT .* FROM tbl_occupation WHERE 1=1 AND deleted_at IS NULL AND display_name ILIKE \$1 ORDER BY display_order ASC, display_name, id LIMIT \$2 OFFSET \$3`).
		WithArgs("%nurse%", 10, 0).
		WillReturnRows(testutil.OccupationRows(1, rn))

	page, err := m.List(context.Background(), dto.OccupationQuery{SearchText: "nurse"})
	require.NoError(t, err)
	require.Len(t, page.Result, 1)
	assert.Equal(t, 1, page.Total)
	assert.Equal(t, "Registered Nurse", page.Result[0].DisplayName)
	assert.Equal(t, "College", page.Result[0].RelatedResources[0].Label)
}

func TestManager_ListAll(t *testing.T) {
	m, mock := newManager(t)
	mock.ExpectQuery(`SELECT .* FROM tbl_occupation WHERE 1=1 AND deleted_at IS NULL ORDER BY display_order ASC, display_name, id$`).
		WillReturnRows(testutil.OccupationRows(2,
			database.Occupation{ID: uuid.New(), DisplayName: "Registered Nurse"},
			database.Occupation{ID: uuid.New(), DisplayName: "Physiotherapist"},
		))

	all, err := m.ListAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestManager_Get_NotFound(t *testing.T) {
	m, mock := newManager(t)
	id := uuid.New()
	mock.ExpectQuery(`SELECT .* FROM tbl_occupation WHERE 1=1 AND id = \$1 AND deleted_at IS NULL`).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows(testutil.OccupationColumns))

	_, err := m.Get(context.Background(), id)
	appErr, ok := apperror.From(err)
	require.True(t, ok)
	assert.Equal(t, apperror.TypeOccupationNotFound, appErr.Type)
	assert.Equal(t, http.StatusNotFound, appErr.Status)
}

func TestManager_Scope(t *testing.T) {
	ctx := context.Background()
	id := uuid.New()
	bundleID := uuid.New()
	activityID := uuid.New()
	unitID := uuid.New()
	scopeColumns := []string{"ca.id", "ca.display_name", "ca.activity_type", "ca.clinical_type", "b.id", "b.display_name", "aa.unit_id", "aa.permission", "count"}

	t.Run("filters_and_pages", func(t *testing.T) {
		m, mock := newManager(t)
		mock.ExpectQuery(`SELECT .* FROM tbl_occupation WHERE 1=1 AND id = \$1 AND deleted_at IS NULL`).
			WithArgs(id).
			WillReturnRows(testutil.OccupationRow(database.Occupation{ID: id, Name: "registered nurse", DisplayName: "Registered Nurse"}))
		mock.ExpectQuery(`FROM tbl_allowed_activity aa .* WHERE 1=1 AND aa.occupation_id = \$1 AND \(ca.display_name ILIKE \$2 OR b.display_name ILIKE \$3\) AND b.id = \$4 AND aa.permission = \$5 ORDER BY b.display_name, ca.display_name, ca.id LIMIT \$6 OFFSET \$7`).
			WithArgs(id, "%insulin%", "%insulin%", bundleID, "Y", 5, 5).
			WillReturnRows(sqlmock.NewRows(scopeColumns).
				AddRow(activityID.String(), "Give Insulin", "TASK", "CLINICAL", bundleID.String(), "Medication", unitID.String(), "Y", 6))

		page, err := m.Scope(ctx, id, dto.ScopeQuery{
			PaginationQuery: dto.PaginationQuery{Page: 2, PageSize: 5},
			SearchText:      " insulin ",
			BundleID:        bundleID.String(),
			Permission:      "Y",
		})
		require.NoError(t, err)
		assert.Equal(t, 6, page.Total)
		require.Len(t, page.Result, 1)
		item := page.Result[0]
		assert.Equal(t, activityID, item.CareActivityID)
		assert.Equal(t, "Give Insulin", item.CareActivityName)
		assert.Equal(t, "Medication", item.BundleName)
		require.NotNil(t, item.ClinicalType)
		assert.Equal(t, "CLINICAL", *item.ClinicalType)
		require.NotNil(t, item.UnitID)
		assert.Equal(t, unitID, *item.UnitID)
		assert.Equal(t, "Y", item.Permission)
	})

	t.Run("unknown_occupation", func(t *testing.T) {
		m, mock := newManager(t)
		mock.ExpectQuery(`SELECT .* FROM tbl_occupation`).
			WithArgs(id).
			WillReturnRows(sqlmock.NewRows(testutil.OccupationColumns))

		_, err := m.Scope(ctx, id, dto.ScopeQuery{})
		appErr, ok := apperror.From(err)
		require.True(t, ok)
		assert.Equal(t, apperror.TypeOccupationNotFound, appErr.Type)
	})

	t.Run("empty_scope", func(t *testing.T) {
		m, mock := newManager(t)
		mock.ExpectQuery(`SELECT .* FROM tbl_occupation`).
			WillReturnRows(testutil.OccupationRow(database.Occupation{ID: id, DisplayName: "Doula"}))
		mock.ExpectQuery(`FROM tbl_allowed_activity aa .* WHERE 1=1 AND aa.occupation_id = \$1 ORDER BY`).
			WithArgs(id, 10, 0).
			WillReturnRows(sqlmock.NewRows(scopeColumns))

		page, err := m.Scope(ctx, id, dto.ScopeQuery{})
		require.NoError(t, err)
		assert.Zero(t, page.Total)
		assert.Empty(t, page.Result)
	})
}

func TestManager_Create(t *testing.T) {
	m, mock := newManager(t)
	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO tbl_occupation`).
		WithArgs(sqlmock.AnyArg(), "licensed practical nurse", "Licensed Practical Nurse", "", 3, true, []byte(`[]`), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO tbl_audit_event`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	order := 3
	got, err := m.Create(context.Background(), actor, dto.CreateOccupationDTO{
		DisplayName:  " Licensed  Practical Nurse",
		IsRegulated:  true,
		DisplayOrder: &order,
	})
	require.NoError(t, err)
	assert.Equal(t, "licensed practical nurse", got.Name)
	assert.Equal(t, 3, got.DisplayOrder)
}

func TestManager_Edit(t *testing.T) {
	ctx := context.Background()
	id := uuid.New()
	keep := uuid.New()
	drop := uuid.New()
	bundleID := uuid.New()
	perm := "LC"

	t.Run("updates_fields_and_scope", func(t *testing.T) {
		m, mock := newManager(t)
		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE tbl_occupation SET name = \$1, display_name = \$2, updated_at = \$3 WHERE id = \$4 AND deleted_at IS NULL`).
			WithArgs("care aide", "Care Aide", sqlmock.AnyArg(), id).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery(`SELECT .* FROM tbl_care_activity ca WHERE 1=1 AND ca.id = ANY\(\$1\)`).
			WillReturnRows(testutil.CareActivityRows(
				database.CareActivity{ID: keep, ActivityType: database.ActivityTypeTask, BundleID: bundleID},
				database.CareActivity{ID: drop, ActivityType: database.ActivityTypeTask, BundleID: bundleID},
			))
		mock.ExpectExec(`INSERT INTO tbl_allowed_activity`).
			WithArgs(sqlmock.AnyArg(), id, keep, nil, database.PermissionLimits, sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`DELETE FROM tbl_allowed_activity WHERE occupation_id = \$1 AND care_activity_id = \$2`).
			WithArgs(id, drop).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery(`SELECT .* FROM tbl_occupation`).
			WillReturnRows(testutil.OccupationRow(database.Occupation{ID: id, Name: "care aide", DisplayName: "Care Aide"}))
		mock.ExpectExec(`INSERT INTO tbl_audit_event`).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		name := "Care Aide"
		got, err := m.Edit(ctx, actor, id, dto.EditOccupationDTO{
			DisplayName: &name,
			ScopePermissions: []dto.ScopePermissionDTO{
				{CareActivityID: keep.String(), Permission: &perm},
				{CareActivityID: drop.String()},
			},
		})
		require.NoError(t, err)
		assert.Equal(t, "Care Aide", got.DisplayName)
	})

	t.Run("name_taken", func(t *testing.T) {
		m, mock := newManager(t)
		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE tbl_occupation SET name = \$1`).
			WithArgs("registered nurse", "Registered Nurse", sqlmock.AnyArg(), id).
			WillReturnError(&pq.Error{Code: "23505"})
		mock.ExpectRollback()

		name := "  Registered  Nurse "
		_, err := m.Edit(ctx, actor, id, dto.EditOccupationDTO{DisplayName: &name})
		appErr, ok := apperror.From(err)
		require.True(t, ok)
		assert.Equal(t, apperror.TypeOccupationExists, appErr.Type)
		assert.Equal(t, http.StatusConflict, appErr.Status)
	})

	t.Run("unknown_activity_rolls_back", func(t *testing.T) {
		m, mock := newManager(t)
		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE tbl_occupation`).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery(`SELECT .* FROM tbl_care_activity`).WillReturnRows(testutil.CareActivityRows())
		mock.ExpectRollback()

		_, err := m.Edit(ctx, actor, id, dto.EditOccupationDTO{
			ScopePermissions: []dto.ScopePermissionDTO{{CareActivityID: keep.String(), Permission: &perm}},
		})
		appErr, ok := apperror.From(err)
		require.True(t, ok)
		assert.Equal(t, apperror.TypeCareActivityNotFound, appErr.Type)
	})

	t.Run("deleted_occupation", func(t *testing.T) {
		m, mock := newManager(t)
		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE tbl_occupation`).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectRollback()

		_, err := m.Edit(ctx, actor, id, dto.EditOccupationDTO{})
		appErr, ok := apperror.From(err)
		require.True(t, ok)
		assert.Equal(t, apperror.TypeOccupationNotFound, appErr.Type)
	})
}

func TestManager_Delete(t *testing.T) {
	m, mock := newManager(t)
	id := uuid.New()
	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE tbl_occupation SET deleted_at = \$1, updated_at = \$2 WHERE id = \$3 AND deleted_at IS NULL`).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), id).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO tbl_audit_event`).
		WithArgs(sqlmock.AnyArg(), actor.ID, "occupation.delete", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, m.Delete(context.Background(), actor, id))
}
