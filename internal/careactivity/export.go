package careactivity

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"time"

	"careplan/internal/database"
	"careplan/internal/storage"
	"careplan/internal/upload"
	"careplan/internal/util"

	"github.com/google/uuid"
)

const exportSheetName = "Care Activities"

func (m *Manager) occupationHeaders(ctx context.Context) ([]database.Occupation, []string, error) {
	occupations, _, err := m.db.ListOccupations(ctx, database.ListOccupationsParams{SortKey: database.OccupationSortDisplayOrder})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list occupations: %w", err)
	}
	headers := append([]string{}, upload.FixedHeaders...)
	for _, o := range occupations {
		headers = append(headers, o.DisplayName)
	}
	return occupations, headers, nil
}

// Template returns an empty workbook in the bulk upload layout.
func (m *Manager) Template(ctx context.Context) (upload.Workbook, error) {
	_, headers, err := m.occupationHeaders(ctx)
	if err != nil {
		return upload.Workbook{}, err
	}
	data, err := upload.WriteXLSX(exportSheetName, headers, nil)
	if err != nil {
		return upload.Workbook{}, err
	}
	return upload.Workbook{Filename: "care-activities-template.xlsx", Data: data}, nil
}

// Export renders every care activity in the bulk upload layout, one row per
// activity and care setting. When unitID is set only that care setting is
// exported. The workbook can be edited and uploaded again as is.
func (m *Manager) Export(ctx context.Context, actor database.User, unitID util.Optional[uuid.UUID]) (upload.Workbook, error) {
	occupations, headers, err := m.occupationHeaders(ctx)
	if err != nil {
		return upload.Workbook{}, err
	}

	if unitID.IsSet {
		if _, err := m.db.GetUnitByID(ctx, unitID.Val); err != nil {
			return upload.Workbook{}, mapError(err, "get unit")
		}
	}

	activities, err := m.db.ListCareActivities(ctx, database.ListCareActivitiesParams{UnitID: unitID})
	if err != nil {
		return upload.Workbook{}, fmt.Errorf("failed to list care activities: %w", err)
	}
	units, err := m.db.ListUnits(ctx)
	if err != nil {
		return upload.Workbook{}, fmt.Errorf("failed to list units: %w", err)
	}
	bundles, err := m.db.ListBundles(ctx)
	if err != nil {
		return upload.Workbook{}, fmt.Errorf("failed to list bundles: %w", err)
	}

	ids := make([]uuid.UUID, len(activities))
	for i, a := range activities {
		ids[i] = a.ID
	}
	var links []database.CareActivityUnit
	var allowed []database.AllowedActivity
	if len(ids) > 0 {
		if links, err = m.db.ListCareActivityUnits(ctx, ids); err != nil {
			return upload.Workbook{}, fmt.Errorf("failed to list care activity units: %w", err)
		}
		if allowed, err = m.db.ListAllowedActivities(ctx, database.ListAllowedActivitiesParams{
			CareActivityIDs:           util.Some(ids),
			ExcludeDeletedOccupations: true,
		}); err != nil {
			return upload.Workbook{}, fmt.Errorf("failed to list allowed activities: %w", err)
		}
	}

	rows := exportRows(activities, units, bundles, occupations, links, allowed, unitID)
	data, err := upload.WriteXLSX(exportSheetName, headers, rows)
	if err != nil {
		return upload.Workbook{}, err
	}

	workbook := upload.Workbook{
		Filename: fmt.Sprintf("care-activities-%s.xlsx", time.Now().UTC().Format("2006-01-02")),
		Data:     data,
	}
	m.archive(ctx, actor, workbook)
	return workbook, nil
}

func (m *Manager) archive(ctx context.Context, actor database.User, workbook upload.Workbook) {
	if m.storage == nil {
		return
	}
	key, err := m.storage.Put(ctx, storage.Object{
		Category:    storage.CategoryExport,
		OwnerID:     actor.ID,
		Filename:    workbook.Filename,
		ContentType: upload.ContentTypeXLSX,
		Body:        bytes.NewReader(workbook.Data),
	})
	if err != nil {
		m.logger.WarnContext(ctx, "Failed to archive export", "filename", workbook.Filename, "error", err)
		return
	}
	m.logger.InfoContext(ctx, "Care activities exported", "user_id", actor.ID, "key", key)
}

// exportRows lays out one row per activity and linked care setting. An
// activity without care settings gets a single row with the setting blank.
func exportRows(
	activities []database.CareActivity,
	units []database.Unit,
	bundles []database.Bundle,
	occupations []database.Occupation,
	links []database.CareActivityUnit,
	allowed []database.AllowedActivity,
	unitID util.Optional[uuid.UUID],
) [][]string {
	unitNames := make(map[uuid.UUID]string, len(units))
	for _, u := range units {
		unitNames[u.ID] = u.DisplayName
	}
	bundleNames := make(map[uuid.UUID]string, len(bundles))
	for _, b := range bundles {
		bundleNames[b.ID] = b.DisplayName
	}

	unitsByActivity := make(map[uuid.UUID][]uuid.UUID)
	for _, l := range links {
		if unitID.IsSet && l.UnitID != unitID.Val {
			continue
		}
		unitsByActivity[l.CareActivityID] = append(unitsByActivity[l.CareActivityID], l.UnitID)
	}

	type pair struct{ occupation, activity uuid.UUID }
	permissions := make(map[pair]database.Permission, len(allowed))
	for _, aa := range allowed {
		permissions[pair{aa.OccupationID, aa.CareActivityID}] = aa.Permission
	}

	var rows [][]string
	for _, a := range activities {
		base := []string{
			a.ID.String(),
			"",
			bundleNames[a.BundleID],
			a.DisplayName,
			upload.ActivityTypeLabel(a.ActivityType),
			"",
			a.Description,
		}
		if a.ClinicalType.IsSet {
			base[5] = upload.ClinicalTypeLabel(a.ClinicalType.Val)
		}
		for _, o := range occupations {
			p, ok := permissions[pair{o.ID, a.ID}]
			if !ok {
				base = append(base, upload.PermissionNone)
				continue
			}
			base = append(base, string(p))
		}

		settings := unitsByActivity[a.ID]
		sort.Slice(settings, func(i, j int) bool { return unitNames[settings[i]] < unitNames[settings[j]] })
		if len(settings) == 0 {
			rows = append(rows, base)
			continue
		}
		for _, id := range settings {
			row := append([]string{}, base...)
			row[1] = unitNames[id]
			rows = append(rows, row)
		}
	}
	return rows
}
