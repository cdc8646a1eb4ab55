// Package testutil provides fixtures shared by package tests.
package testutil

import (
	"database/sql/driver"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"careplan/internal/config"
	"careplan/internal/database"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// Now is the fixed timestamp used by fixture rows.
var Now = time.Date(2024, 8, 5, 9, 30, 0, 0, time.UTC)

// TestConfig returns a configuration that needs no external services.
func TestConfig() *config.Config {
	cfg := config.NewConfig()
	cfg.Server.Environment = config.EnvironmentTest
	cfg.Redis.Enabled = false
	cfg.Telemetry.Enabled = false
	cfg.Auth.Insecure = true
	cfg.Database.AutoMigrate = false
	return cfg
}

// NewMockDatabase returns a Database backed by sqlmock. Expectations are
// verified when the test finishes.
func NewMockDatabase(t *testing.T) (*database.Database, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, mock.ExpectationsWereMet())
		sqlDB.Close()
	})
	return database.New(sqlDB), mock
}

func nullable[T any](o interface {
	Ptr() *T
}) driver.Value {
	if p := o.Ptr(); p != nil {
		return *p
	}
	return nil
}

var UserColumns = []string{"id", "email", "display_name", "organization", "keycloak_id", "roles", "status", "revoked_at", "last_login_at", "preferences", "created_at", "updated_at"}

func UserValues(u database.User) []driver.Value {
	roles := make([]string, len(u.Roles))
	for i, r := range u.Roles {
		roles[i] = string(r)
	}
	var prefs driver.Value
	if len(u.Preferences) > 0 {
		prefs = []byte(u.Preferences)
	}
	return []driver.Value{
		u.ID.String(), u.Email, u.DisplayName, u.Organization, nullable[string](u.KeycloakID),
		"{" + strings.Join(roles, ",") + "}", string(u.Status), nullable[time.Time](u.RevokedAt),
		nullable[time.Time](u.LastLoginAt), prefs, Now, Now,
	}
}

func UserRows(users ...database.User) *sqlmock.Rows {
	rows := sqlmock.NewRows(UserColumns)
	for _, u := range users {
		rows.AddRow(UserValues(u)...)
	}
	return rows
}

var OccupationColumns = []string{"id", "name", "display_name", "description", "display_order", "is_regulated", "related_resources", "deleted_at", "created_at", "updated_at"}

func OccupationValues(o database.Occupation) []driver.Value {
	resources := o.RelatedResources
	if resources == nil {
		resources = []database.RelatedResource{}
	}
	encoded, _ := json.Marshal(resources)
	return []driver.Value{
		o.ID.String(), o.Name, o.DisplayName, o.Description, int64(o.DisplayOrder), o.IsRegulated,
		encoded, nullable[time.Time](o.DeletedAt), Now, Now,
	}
}

// OccupationRows builds rows for list queries, which carry a trailing total column.
func OccupationRows(total int, occupations ...database.Occupation) *sqlmock.Rows {
	rows := sqlmock.NewRows(append(append([]string{}, OccupationColumns...), "total"))
	for _, o := range occupations {
		rows.AddRow(append(OccupationValues(o), int64(total))...)
	}
	return rows
}

func OccupationRow(o database.Occupation) *sqlmock.Rows {
	return sqlmock.NewRows(OccupationColumns).AddRow(OccupationValues(o)...)
}

var CareActivityColumns = []string{"id", "name", "display_name", "description", "activity_type", "clinical_type", "bundle_id", "created_at", "updated_at"}

func CareActivityValues(a database.CareActivity) []driver.Value {
	var clinical driver.Value
	if a.ClinicalType.IsSet {
		clinical = string(a.ClinicalType.Val)
	}
	return []driver.Value{
		a.ID.String(), a.Name, a.DisplayName, a.Description, string(a.ActivityType), clinical,
		a.BundleID.String(), Now, Now,
	}
}

func CareActivityRows(activities ...database.CareActivity) *sqlmock.Rows {
	rows := sqlmock.NewRows(CareActivityColumns)
	for _, a := range activities {
		rows.AddRow(CareActivityValues(a)...)
	}
	return rows
}

func UnitRows(units ...database.Unit) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{"id", "name", "display_name", "created_at", "updated_at"})
	for _, u := range units {
		rows.AddRow(u.ID.String(), u.Name, u.DisplayName, Now, Now)
	}
	return rows
}

func BundleRows(bundles ...database.Bundle) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{"id", "name", "display_name", "description", "created_at", "updated_at"})
	for _, b := range bundles {
		rows.AddRow(b.ID.String(), b.Name, b.DisplayName, b.Description, Now, Now)
	}
	return rows
}

func AllowedActivityRows(allowed ...database.AllowedActivity) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{"id", "occupation_id", "care_activity_id", "unit_id", "permission", "created_at", "updated_at"})
	for _, aa := range allowed {
		var unitID driver.Value
		if aa.UnitID.IsSet {
			unitID = aa.UnitID.Val.String()
		}
		rows.AddRow(uuid.New().String(), aa.OccupationID.String(), aa.CareActivityID.String(), unitID, string(aa.Permission), Now, Now)
	}
	return rows
}

func CareActivityUnitRows(links ...database.CareActivityUnit) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{"care_activity_id", "unit_id"})
	for _, l := range links {
		rows.AddRow(l.CareActivityID.String(), l.UnitID.String())
	}
	return rows
}

func PlanningSessionRow(s database.PlanningSession) *sqlmock.Rows {
	var careLocation driver.Value
	if s.CareLocationID.IsSet {
		careLocation = s.CareLocationID.Val.String()
	}
	profile := []byte(s.Profile)
	if len(profile) == 0 {
		profile = []byte(`{}`)
	}
	return sqlmock.NewRows([]string{"id", "user_id", "profile", "care_location_id", "unavailable_occupations", "created_at", "updated_at"}).
		AddRow(s.ID.String(), s.UserID.String(), profile, careLocation, database.FormatIDList(s.UnavailableOccupations), Now, Now)
}

func IDRows(column string, ids ...uuid.UUID) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{column})
	for _, id := range ids {
		rows.AddRow(id.String())
	}
	return rows
}
