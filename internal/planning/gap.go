package planning

import (
	"careplan/internal/database"
	"careplan/internal/ro"

	"github.com/google/uuid"
)

// Coverage of an activity by the selected team.
const (
	CoverageInScope = "IN_SCOPE"
	CoverageLimits  = "LIMITS"
	CoverageGap     = "GAP"
)

// permissionNone is reported for an occupation that may not perform an activity.
const permissionNone = "X"

type permissionKey struct {
	occupation uuid.UUID
	activity   uuid.UUID
}

func permissionIndex(allowed []database.AllowedActivity) map[permissionKey]database.Permission {
	index := make(map[permissionKey]database.Permission, len(allowed))
	for _, aa := range allowed {
		index[permissionKey{aa.OccupationID, aa.CareActivityID}] = aa.Permission
	}
	return index
}

// teamOccupations keeps the active occupations in team, in display order.
func teamOccupations(occupations []database.Occupation, team []uuid.UUID) []database.Occupation {
	members := make(map[uuid.UUID]bool, len(team))
	for _, id := range team {
		members[id] = true
	}
	var out []database.Occupation
	for _, o := range occupations {
		if members[o.ID] {
			out = append(out, o)
		}
	}
	return out
}

// bestPermission reports the strongest permission any team member holds.
func bestPermission(index map[permissionKey]database.Permission, team []database.Occupation, activity uuid.UUID) string {
	best := permissionNone
	for _, o := range team {
		switch index[permissionKey{o.ID, activity}] {
		case database.PermissionPerform:
			return string(database.PermissionPerform)
		case database.PermissionLimits:
			best = string(database.PermissionLimits)
		}
	}
	return best
}

func coverageOf(best string) string {
	switch best {
	case string(database.PermissionPerform):
		return CoverageInScope
	case string(database.PermissionLimits):
		return CoverageLimits
	}
	return CoverageGap
}

func activitiesGap(ws workspace) ro.ActivitiesGapRO {
	team := teamOccupations(ws.occupations, ws.team)
	index := permissionIndex(ws.allowed)

	out := ro.ActivitiesGapRO{
		Headers: make([]ro.GapHeaderRO, len(team)),
		Data:    []ro.GapBundleRO{},
	}
	for i, o := range team {
		out.Headers[i] = ro.GapHeaderRO{ID: o.ID, DisplayName: o.DisplayName}
	}

	byBundle := make(map[uuid.UUID][]ro.GapActivityRO)
	for _, a := range ws.activities {
		row := ro.GapActivityRO{
			ID:           a.ID,
			DisplayName:  a.DisplayName,
			ActivityType: string(a.ActivityType),
			Permissions:  make(map[string]string, len(team)),
		}
		for _, o := range team {
			p, ok := index[permissionKey{o.ID, a.ID}]
			if !ok {
				row.Permissions[o.ID.String()] = permissionNone
				continue
			}
			row.Permissions[o.ID.String()] = string(p)
		}
		row.Coverage = coverageOf(bestPermission(index, team, a.ID))

		out.Overview.Total++
		switch row.Coverage {
		case CoverageInScope:
			out.Overview.InScope++
		case CoverageLimits:
			out.Overview.Limits++
		default:
			out.Overview.Gaps++
		}
		byBundle[a.BundleID] = append(byBundle[a.BundleID], row)
	}

	for _, b := range ws.bundles {
		if len(byBundle[b.ID]) == 0 {
			continue
		}
		out.Data = append(out.Data, ro.GapBundleRO{ID: b.ID, DisplayName: b.DisplayName, CareActivities: byBundle[b.ID]})
	}
	return out
}
