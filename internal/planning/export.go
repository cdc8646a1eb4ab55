package planning

import (
	"context"
	"fmt"
	"time"

	"careplan/internal/database"
	"careplan/internal/upload"

	"github.com/google/uuid"
)

var coverageLabels = map[string]string{
	CoverageInScope: "In scope",
	CoverageLimits:  "Limits and conditions",
	CoverageGap:     "Gap",
}

// Export renders the activities gap of the session as a workbook.
func (m *Manager) Export(ctx context.Context, actor database.User, id uuid.UUID) (upload.Workbook, error) {
	ws, err := m.loadWorkspace(ctx, actor, id)
	if err != nil {
		return upload.Workbook{}, err
	}

	gap := activitiesGap(ws)
	headers := []string{"Care Competency", "Care Activity", "Aspect of Practice", "Coverage"}
	for _, h := range gap.Headers {
		headers = append(headers, h.DisplayName)
	}

	var rows [][]string
	for _, bundle := range gap.Data {
		for _, a := range bundle.CareActivities {
			row := []string{
				bundle.DisplayName,
				a.DisplayName,
				upload.ActivityTypeLabel(database.ActivityType(a.ActivityType)),
				coverageLabels[a.Coverage],
			}
			for _, h := range gap.Headers {
				row = append(row, a.Permissions[h.ID.String()])
			}
			rows = append(rows, row)
		}
	}

	data, err := upload.WriteXLSX("Care Plan", headers, rows)
	if err != nil {
		return upload.Workbook{}, err
	}
	return upload.Workbook{
		Filename: fmt.Sprintf("care-plan-%s.xlsx", time.Now().UTC().Format("2006-01-02")),
		Data:     data,
	}, nil
}
