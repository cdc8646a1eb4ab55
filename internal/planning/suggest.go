package planning

import (
	"sort"

	"careplan/internal/database"
	"careplan/internal/ro"

	"github.com/google/uuid"
)

const (
	weightPerform = 1.0
	weightLimits  = 0.5
)

func weight(p database.Permission) float64 {
	switch p {
	case database.PermissionPerform:
		return weightPerform
	case database.PermissionLimits:
		return weightLimits
	}
	return 0
}

type candidate struct {
	occupation database.Occupation
	score      float64
	coverage   float64
	bundles    map[uuid.UUID]*ro.SuggestionCompetencyRO
}

// suggest ranks the occupations that could join team. An activity is
// uncovered while no team member performs it outright; score counts what a
// candidate adds on uncovered activities and coverage what it holds across
// the whole scope. Candidates holding nothing in scope are dropped.
func suggest(ws workspace, team []uuid.UUID) []ro.SuggestionRO {
	members := teamOccupations(ws.occupations, team)
	index := permissionIndex(ws.allowed)

	excluded := make(map[uuid.UUID]bool, len(team)+len(ws.session.UnavailableOccupations))
	for _, id := range team {
		excluded[id] = true
	}
	for _, id := range ws.session.UnavailableOccupations {
		excluded[id] = true
	}

	uncovered := make(map[uuid.UUID]bool, len(ws.activities))
	for _, a := range ws.activities {
		if bestPermission(index, members, a.ID) != string(database.PermissionPerform) {
			uncovered[a.ID] = true
		}
	}

	bundleNames := make(map[uuid.UUID]string, len(ws.bundles))
	for _, b := range ws.bundles {
		bundleNames[b.ID] = b.DisplayName
	}

	var candidates []candidate
	for _, o := range ws.occupations {
		if excluded[o.ID] {
			continue
		}
		c := candidate{occupation: o, bundles: map[uuid.UUID]*ro.SuggestionCompetencyRO{}}
		for _, a := range ws.activities {
			p, ok := index[permissionKey{o.ID, a.ID}]
			if !ok {
				continue
			}
			w := weight(p)
			c.coverage += w
			if uncovered[a.ID] {
				c.score += w
			}

			competency, ok := c.bundles[a.BundleID]
			if !ok {
				competency = &ro.SuggestionCompetencyRO{BundleID: a.BundleID, DisplayName: bundleNames[a.BundleID]}
				c.bundles[a.BundleID] = competency
			}
			if p == database.PermissionPerform {
				competency.Perform++
			} else {
				competency.Limits++
			}
		}
		if c.coverage == 0 {
			continue
		}
		candidates = append(candidates, c)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.score != b.score {
			return a.score > b.score
		}
		if a.coverage != b.coverage {
			return a.coverage > b.coverage
		}
		if a.occupation.DisplayOrder != b.occupation.DisplayOrder {
			return a.occupation.DisplayOrder < b.occupation.DisplayOrder
		}
		return a.occupation.DisplayName < b.occupation.DisplayName
	})

	out := make([]ro.SuggestionRO, len(candidates))
	for i, c := range candidates {
		competencies := make([]ro.SuggestionCompetencyRO, 0, len(c.bundles))
		for _, competency := range c.bundles {
			competencies = append(competencies, *competency)
		}
		sort.Slice(competencies, func(i, j int) bool { return competencies[i].DisplayName < competencies[j].DisplayName })
		out[i] = ro.SuggestionRO{
			Occupation:   ro.NewOccupation(c.occupation),
			Score:        c.score,
			Coverage:     c.coverage,
			Competencies: competencies,
		}
	}
	return out
}
