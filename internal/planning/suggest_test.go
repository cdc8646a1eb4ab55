package planning

import (
	"testing"

	"careplan/internal/database"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	bundleMeds = database.Bundle{ID: uuid.New(), DisplayName: "Medication"}
	bundleSkin = database.Bundle{ID: uuid.New(), DisplayName: "Skin Care"}

	activityOral    = database.CareActivity{ID: uuid.New(), DisplayName: "Oral Medication", ActivityType: database.ActivityTypeTask, BundleID: bundleMeds.ID}
	activityInsulin = database.CareActivity{ID: uuid.New(), DisplayName: "Insulin", ActivityType: database.ActivityTypeRestrictedActivity, BundleID: bundleMeds.ID}
	activityWound   = database.CareActivity{ID: uuid.New(), DisplayName: "Wound Care", ActivityType: database.ActivityTypeTask, BundleID: bundleSkin.ID}

	occupationRN    = database.Occupation{ID: uuid.New(), DisplayName: "Registered Nurse", DisplayOrder: 1}
	occupationLPN   = database.Occupation{ID: uuid.New(), DisplayName: "Licensed Practical Nurse", DisplayOrder: 2}
	occupationHCA   = database.Occupation{ID: uuid.New(), DisplayName: "Health Care Assistant", DisplayOrder: 3}
	occupationPT    = database.Occupation{ID: uuid.New(), DisplayName: "Physiotherapist", DisplayOrder: 4}
	occupationDoula = database.Occupation{ID: uuid.New(), DisplayName: "Doula", DisplayOrder: 5}
)

func allow(o database.Occupation, a database.CareActivity, p database.Permission) database.AllowedActivity {
	return database.AllowedActivity{OccupationID: o.ID, CareActivityID: a.ID, Permission: p}
}

func testWorkspace() workspace {
	return workspace{
		session: database.PlanningSession{
			ID:                     uuid.New(),
			UnavailableOccupations: []uuid.UUID{occupationDoula.ID},
		},
		activities:  []database.CareActivity{activityInsulin, activityOral, activityWound},
		bundles:     []database.Bundle{bundleMeds, bundleSkin},
		occupations: []database.Occupation{occupationRN, occupationLPN, occupationHCA, occupationPT, occupationDoula},
		team:        []uuid.UUID{occupationRN.ID},
		allowed: []database.AllowedActivity{
			allow(occupationRN, activityOral, database.PermissionPerform),
			allow(occupationRN, activityInsulin, database.PermissionLimits),
			allow(occupationLPN, activityOral, database.PermissionPerform),
			allow(occupationLPN, activityInsulin, database.PermissionPerform),
			allow(occupationLPN, activityWound, database.PermissionLimits),
			allow(occupationHCA, activityWound, database.PermissionPerform),
			allow(occupationDoula, activityInsulin, database.PermissionPerform),
			allow(occupationDoula, activityWound, database.PermissionPerform),
		},
	}
}

func TestSuggest(t *testing.T) {
	ws := testWorkspace()

	ranked := suggest(ws, ws.team)
	require.Len(t, ranked, 2, "team members, unavailable occupations and occupations without coverage are left out")

	assert.Equal(t, occupationLPN.ID, ranked[0].Occupation.ID)
	assert.Equal(t, 1.5, ranked[0].Score)
	assert.Equal(t, 2.5, ranked[0].Coverage)
	require.Len(t, ranked[0].Competencies, 2)
	assert.Equal(t, "Medication", ranked[0].Competencies[0].DisplayName)
	assert.Equal(t, 2, ranked[0].Competencies[0].Perform)
	assert.Equal(t, 1, ranked[0].Competencies[1].Limits)

	assert.Equal(t, occupationHCA.ID, ranked[1].Occupation.ID)
	assert.Equal(t, 1.0, ranked[1].Score)
}

func TestSuggest_TemporarySelection(t *testing.T) {
	ws := testWorkspace()

	ranked := suggest(ws, []uuid.UUID{occupationRN.ID, occupationLPN.ID})
	require.Len(t, ranked, 1)
	assert.Equal(t, occupationHCA.ID, ranked[0].Occupation.ID)
	assert.Equal(t, 1.0, ranked[0].Score)
}

func TestSuggest_TieBreaksOnDisplayOrder(t *testing.T) {
	first := database.Occupation{ID: uuid.New(), DisplayName: "Zeta", DisplayOrder: 1}
	second := database.Occupation{ID: uuid.New(), DisplayName: "Alpha", DisplayOrder: 2}
	third := database.Occupation{ID: uuid.New(), DisplayName: "Beta", DisplayOrder: 2}
	ws := workspace{
		activities:  []database.CareActivity{activityOral},
		bundles:     []database.Bundle{bundleMeds},
		occupations: []database.Occupation{third, second, first},
		allowed: []database.AllowedActivity{
			allow(first, activityOral, database.PermissionPerform),
			allow(second, activityOral, database.PermissionPerform),
			allow(third, activityOral, database.PermissionPerform),
		},
	}

	ranked := suggest(ws, nil)
	require.Len(t, ranked, 3)
	assert.Equal(t, []string{"Zeta", "Alpha", "Beta"}, []string{
		ranked[0].Occupation.DisplayName, ranked[1].Occupation.DisplayName, ranked[2].Occupation.DisplayName,
	})
}

func TestActivitiesGap(t *testing.T) {
	gap := activitiesGap(testWorkspace())

	assert.Equal(t, 3, gap.Overview.Total)
	assert.Equal(t, 1, gap.Overview.InScope)
	assert.Equal(t, 1, gap.Overview.Limits)
	assert.Equal(t, 1, gap.Overview.Gaps)

	require.Len(t, gap.Headers, 1)
	assert.Equal(t, occupationRN.ID, gap.Headers[0].ID)

	require.Len(t, gap.Data, 2)
	assert.Equal(t, bundleMeds.ID, gap.Data[0].ID)
	require.Len(t, gap.Data[0].CareActivities, 2)
	assert.Equal(t, CoverageLimits, gap.Data[0].CareActivities[0].Coverage)
	assert.Equal(t, CoverageInScope, gap.Data[0].CareActivities[1].Coverage)

	wound := gap.Data[1].CareActivities[0]
	assert.Equal(t, CoverageGap, wound.Coverage)
	assert.Equal(t, "X", wound.Permissions[occupationRN.ID.String()])
}

func TestActivitiesGap_EmptySession(t *testing.T) {
	gap := activitiesGap(workspace{})
	assert.Zero(t, gap.Overview.Total)
	assert.Empty(t, gap.Data)
	assert.Empty(t, gap.Headers)
}
