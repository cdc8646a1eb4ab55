package upload

import (
	"fmt"
	"strings"

	"careplan/internal/database"
	"careplan/internal/ro"
	"careplan/internal/util"

	"github.com/google/uuid"
)

type ErrorType string

const (
	ErrorMissingHeader       ErrorType = "MISSING_HEADER"
	ErrorMissingValue        ErrorType = "MISSING_VALUE"
	ErrorInvalidActivityType ErrorType = "INVALID_ACTIVITY_TYPE"
	ErrorInvalidClinicalType ErrorType = "INVALID_CLINICAL_TYPE"
	ErrorInvalidPermission   ErrorType = "INVALID_PERMISSION"
	ErrorMissingID           ErrorType = "MISSING_ID"
	ErrorNameConflict        ErrorType = "NAME_CONFLICT"
	ErrorDuplicate           ErrorType = "DUPLICATE"
)

var errorOrder = []ErrorType{
	ErrorMissingHeader, ErrorMissingValue, ErrorInvalidActivityType, ErrorInvalidClinicalType,
	ErrorInvalidPermission, ErrorMissingID, ErrorNameConflict, ErrorDuplicate,
}

var errorMessages = map[ErrorType]string{
	ErrorMissingValue:        "Care Setting, Care Competencies, Care Activities and Aspect of Practice are required",
	ErrorInvalidActivityType: "Aspect of Practice must be Aspect of Practice, Task or Restricted Activity",
	ErrorInvalidClinicalType: "Clinical Type must be Clinical, Support or blank",
	ErrorInvalidPermission:   "Occupation values must be Y, LC, X or blank",
	ErrorMissingID:           "ID does not match an existing care activity",
	ErrorNameConflict:        "Care activity name is already used by another care activity",
	ErrorDuplicate:           "Care activity is listed more than once for the same care setting",
}

// Catalog is the current content the sheet is reconciled against.
type Catalog struct {
	Units       []database.Unit
	Bundles     []database.Bundle
	Activities  []database.CareActivity
	Occupations []database.Occupation
}

// ActivityPlan is the write planned for one care activity. An activity listed
// for several care settings takes its fields and permissions from its first row.
type ActivityPlan struct {
	ExistingID   util.Optional[uuid.UUID]
	Name         string
	DisplayName  string
	Description  string
	ActivityType database.ActivityType
	ClinicalType util.Optional[database.ClinicalType]
	BundleName   string
	UnitNames    []string
	// Permissions holds one entry per occupation column, in column order.
	Permissions []OccupationPermission
	Rows        []int
}

// OccupationPermission is one occupation cell. A None permission removes the
// occupation's allowed activity.
type OccupationPermission struct {
	OccupationID uuid.UUID
	Permission   util.Optional[database.Permission]
}

type Plan struct {
	Result     ro.BulkUploadRO
	Activities []*ActivityPlan
}

type occupationColumn struct {
	header string
	id     uuid.UUID
}

type rowErrors map[ErrorType][]int

func (e rowErrors) add(t ErrorType, row int) {
	rows := e[t]
	if len(rows) > 0 && rows[len(rows)-1] == row {
		return
	}
	e[t] = append(rows, row)
}

// Reconcile classifies every row of sheet against catalog in a single pass.
func Reconcile(sheet Sheet, catalog Catalog) Plan {
	plan := Plan{Result: ro.BulkUploadRO{
		Total:              len(sheet.Rows),
		Errors:             []ro.BulkUploadErrorRO{},
		MissingOccupations: []string{},
		NewUnits:           []string{},
		NewBundles:         []string{},
	}}

	occupationsByName := make(map[string]uuid.UUID, len(catalog.Occupations))
	for _, o := range catalog.Occupations {
		occupationsByName[util.NormalizeName(o.DisplayName)] = o.ID
		occupationsByName[util.NormalizeName(o.Name)] = o.ID
	}

	fixed := make(map[string]string)
	var occupationCols []occupationColumn
	seenMissing := make(map[string]bool)
	for _, h := range sheet.Headers {
		if h == "" {
			continue
		}
		if canonical, ok := isFixedHeader(h); ok {
			fixed[canonical] = h
			continue
		}
		if id, ok := occupationsByName[util.NormalizeName(h)]; ok {
			occupationCols = append(occupationCols, occupationColumn{header: h, id: id})
			continue
		}
		if !seenMissing[util.NormalizeName(h)] {
			seenMissing[util.NormalizeName(h)] = true
			plan.Result.MissingOccupations = append(plan.Result.MissingOccupations, h)
		}
	}

	var missingHeaders []string
	for _, h := range requiredHeaders {
		if _, ok := fixed[h]; !ok {
			missingHeaders = append(missingHeaders, h)
		}
	}
	if len(missingHeaders) > 0 {
		plan.Result.Errors = append(plan.Result.Errors, ro.BulkUploadErrorRO{
			ErrorType: string(ErrorMissingHeader),
			Message:   "Missing required column(s): " + strings.Join(missingHeaders, ", "),
			RowNumber: []int{1},
		})
		return plan
	}

	units := make(map[string]bool, len(catalog.Units))
	for _, u := range catalog.Units {
		units[util.NormalizeName(u.Name)] = true
	}
	bundles := make(map[string]bool, len(catalog.Bundles))
	for _, b := range catalog.Bundles {
		bundles[util.NormalizeName(b.Name)] = true
	}
	activitiesByID := make(map[uuid.UUID]database.CareActivity, len(catalog.Activities))
	activitiesByName := make(map[string]database.CareActivity, len(catalog.Activities))
	for _, a := range catalog.Activities {
		activitiesByID[a.ID] = a
		activitiesByName[util.NormalizeName(a.Name)] = a
	}

	value := func(row Row, header string) string {
		if h, ok := fixed[header]; ok {
			return row.Get(h)
		}
		return ""
	}

	errs := rowErrors{}
	seenRows := make(map[string]bool, len(sheet.Rows))
	nameOwners := make(map[string]string, len(sheet.Rows))
	plans := make(map[string]*ActivityPlan)
	newUnits := make(map[string]bool)
	newBundles := make(map[string]bool)

	for _, row := range sheet.Rows {
		unitName := util.CleanDisplayName(value(row, HeaderCareSetting))
		bundleName := util.CleanDisplayName(value(row, HeaderBundle))
		displayName := util.CleanDisplayName(value(row, HeaderCareActivity))
		typeCell := value(row, HeaderActivityType)
		clinicalCell := value(row, HeaderClinicalType)
		idCell := value(row, HeaderID)
		hasError := false
		fail := func(t ErrorType) {
			errs.add(t, row.Number)
			hasError = true
		}

		if unitName == "" || bundleName == "" || displayName == "" || typeCell == "" {
			fail(ErrorMissingValue)
		}

		activityType, ok := ParseActivityType(typeCell)
		if typeCell != "" && !ok {
			fail(ErrorInvalidActivityType)
		}

		clinicalType := util.None[database.ClinicalType]()
		if clinicalCell != "" {
			if t, ok := ParseClinicalType(clinicalCell); ok {
				clinicalType = util.Some(t)
			} else {
				fail(ErrorInvalidClinicalType)
			}
		}

		permissions := make([]OccupationPermission, 0, len(occupationCols))
		for _, col := range occupationCols {
			p, set, ok := ParsePermission(row.Get(col.header))
			if !ok {
				fail(ErrorInvalidPermission)
				continue
			}
			cell := OccupationPermission{OccupationID: col.id, Permission: util.None[database.Permission]()}
			if set {
				cell.Permission = util.Some(p)
			}
			permissions = append(permissions, cell)
		}

		name := util.NormalizeName(displayName)
		existing, nameTaken := activitiesByName[name]
		var target util.Optional[uuid.UUID]
		if idCell != "" {
			id, err := uuid.Parse(idCell)
			if _, found := activitiesByID[id]; err != nil || !found {
				fail(ErrorMissingID)
			} else {
				target = util.Some(id)
				if nameTaken && existing.ID != id {
					fail(ErrorNameConflict)
				}
			}
		} else if nameTaken {
			target = util.Some(existing.ID)
		}

		if unitName != "" && displayName != "" {
			key := util.NormalizeName(unitName) + "\x00" + name
			if seenRows[key] {
				fail(ErrorDuplicate)
			}
			seenRows[key] = true
		}

		key := "new:" + name
		if target.IsSet {
			key = "id:" + target.Val.String()
		}
		// One name may only ever land on one activity within a sheet.
		if displayName != "" {
			if owner, ok := nameOwners[name]; ok && owner != key {
				fail(ErrorNameConflict)
			} else if !ok && !hasError {
				nameOwners[name] = key
			}
		}

		if hasError {
			continue
		}
		ap, ok := plans[key]
		if !ok {
			ap = &ActivityPlan{
				ExistingID:   target,
				Name:         name,
				DisplayName:  displayName,
				Description:  value(row, HeaderDescription),
				ActivityType: activityType,
				ClinicalType: clinicalType,
				BundleName:   bundleName,
				Permissions:  permissions,
			}
			plans[key] = ap
			plan.Activities = append(plan.Activities, ap)

			if bundleKey := util.NormalizeName(bundleName); !bundles[bundleKey] && !newBundles[bundleKey] {
				newBundles[bundleKey] = true
				plan.Result.NewBundles = append(plan.Result.NewBundles, bundleName)
			}
		}
		ap.Rows = append(ap.Rows, row.Number)
		if !containsName(ap.UnitNames, unitName) {
			ap.UnitNames = append(ap.UnitNames, unitName)
		}
		if unitKey := util.NormalizeName(unitName); !units[unitKey] && !newUnits[unitKey] {
			newUnits[unitKey] = true
			plan.Result.NewUnits = append(plan.Result.NewUnits, unitName)
		}
	}

	for _, ap := range plan.Activities {
		if ap.ExistingID.IsSet {
			plan.Result.Edit++
		} else {
			plan.Result.Add++
		}
	}

	for _, t := range errorOrder {
		if rows, ok := errs[t]; ok {
			plan.Result.Errors = append(plan.Result.Errors, ro.BulkUploadErrorRO{
				ErrorType: string(t),
				Message:   fmt.Sprintf("%s (%d row(s))", errorMessages[t], len(rows)),
				RowNumber: rows,
			})
		}
	}
	return plan
}

func containsName(names []string, name string) bool {
	key := util.NormalizeName(name)
	for _, n := range names {
		if util.NormalizeName(n) == key {
			return true
		}
	}
	return false
}
