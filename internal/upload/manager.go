package upload

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"careplan/internal/apperror"
	"careplan/internal/audit"
	"careplan/internal/cache"
	"careplan/internal/database"
	"careplan/internal/monitoring"
	"careplan/internal/ro"
	"careplan/internal/storage"
	"careplan/internal/util"

	"github.com/google/uuid"
)

// File is the original upload, archived on commit.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

type Manager struct {
	logger    *slog.Logger
	db        *database.Database
	auditor   *audit.Auditor
	cache     *cache.Cache
	storage   storage.Storage
	telemetry monitoring.Telemetry
}

func NewManager(logger *slog.Logger, db *database.Database, auditor *audit.Auditor, cache *cache.Cache, storage storage.Storage, telemetry monitoring.Telemetry) Manager {
	return Manager{logger: logger, db: db, auditor: auditor, cache: cache, storage: storage, telemetry: telemetry}
}

func loadCatalog(ctx context.Context, q *database.Queries) (Catalog, error) {
	var catalog Catalog
	var err error
	if catalog.Units, err = q.ListUnits(ctx); err != nil {
		return catalog, err
	}
	if catalog.Bundles, err = q.ListBundles(ctx); err != nil {
		return catalog, err
	}
	if catalog.Activities, err = q.ListCareActivities(ctx, database.ListCareActivitiesParams{}); err != nil {
		return catalog, err
	}
	if catalog.Occupations, _, err = q.ListOccupations(ctx, database.ListOccupationsParams{}); err != nil {
		return catalog, err
	}
	return catalog, nil
}

func emptySheet(sheet Sheet) error {
	if len(sheet.Rows) == 0 {
		return apperror.Validation("The file has no data rows", nil)
	}
	return nil
}

// Validate reconciles the sheet without writing anything.
func (m *Manager) Validate(ctx context.Context, sheet Sheet) (ro.BulkUploadRO, error) {
	if err := emptySheet(sheet); err != nil {
		return ro.BulkUploadRO{}, err
	}

	catalog, err := loadCatalog(ctx, m.db.Queries)
	if err != nil {
		m.telemetry.RecordBulkUpload(ctx, monitoring.UploadStageValidate, monitoring.UploadOutcomeFailed, len(sheet.Rows))
		return ro.BulkUploadRO{}, fmt.Errorf("failed to load catalog: %w", err)
	}

	plan := Reconcile(sheet, catalog)
	outcome := monitoring.UploadOutcomeOK
	if plan.Result.HasErrors() {
		outcome = monitoring.UploadOutcomeRejected
	}
	m.telemetry.RecordBulkUpload(ctx, monitoring.UploadStageValidate, outcome, len(sheet.Rows))
	return plan.Result, nil
}

// Commit re-runs the reconciliation inside a transaction and applies it. A
// sheet with errors is refused as a whole.
func (m *Manager) Commit(ctx context.Context, actor database.User, sheet Sheet, file *File) (ro.BulkUploadRO, error) {
	if err := emptySheet(sheet); err != nil {
		return ro.BulkUploadRO{}, err
	}

	var result ro.BulkUploadRO
	var archiveKey string
	err := m.db.WithTx(ctx, func(q *database.Queries) error {
		catalog, err := loadCatalog(ctx, q)
		if err != nil {
			return err
		}

		plan := Reconcile(sheet, catalog)
		result = plan.Result
		if plan.Result.HasErrors() {
			return apperror.New(apperror.TypeBulkUploadInvalid, http.StatusUnprocessableEntity, "The file contains errors").
				WithDetails(plan.Result)
		}

		if err := apply(ctx, q, catalog, plan); err != nil {
			if errors.Is(err, database.ErrDuplicate) {
				return apperror.Conflict(apperror.TypeBulkUploadInvalid, "The file conflicts with care activities saved meanwhile, validate it again")
			}
			return err
		}

		archiveKey = m.archive(ctx, actor, file)
		return m.auditor.LogEventWith(ctx, q, audit.LogEventParam{
			UserID: util.Some(actor.ID),
			Type:   audit.EventTypeBulkUpload,
			Data: map[string]any{
				"total":       plan.Result.Total,
				"add":         plan.Result.Add,
				"edit":        plan.Result.Edit,
				"new_units":   plan.Result.NewUnits,
				"new_bundles": plan.Result.NewBundles,
				"archive_key": archiveKey,
			},
		})
	})
	if err != nil {
		outcome := monitoring.UploadOutcomeFailed
		if appErr, ok := apperror.From(err); ok && appErr.Type == apperror.TypeBulkUploadInvalid {
			outcome = monitoring.UploadOutcomeRejected
		}
		m.telemetry.RecordBulkUpload(ctx, monitoring.UploadStageCommit, outcome, len(sheet.Rows))
		if archiveKey != "" {
			if delErr := m.storage.Delete(ctx, archiveKey); delErr != nil {
				m.logger.WarnContext(ctx, "Failed to remove archived upload", "key", archiveKey, "error", delErr)
			}
		}
		return ro.BulkUploadRO{}, fmt.Errorf("failed to commit bulk upload: %w", err)
	}

	m.cache.Invalidate(ctx, cache.NamespaceOccupations, cache.NamespaceKPI)
	m.telemetry.RecordBulkUpload(ctx, monitoring.UploadStageCommit, monitoring.UploadOutcomeOK, len(sheet.Rows))
	m.logger.InfoContext(ctx, "Bulk upload committed", "user_id", actor.ID, "add", result.Add, "edit", result.Edit, "archive_key", archiveKey)
	return result, nil
}

// archive stores the original file. Failures are logged; the upload itself
// does not depend on the archive.
func (m *Manager) archive(ctx context.Context, actor database.User, file *File) string {
	if file == nil || m.storage == nil {
		return ""
	}
	key, err := m.storage.Put(ctx, storage.Object{
		Category:    storage.CategoryBulkUpload,
		OwnerID:     actor.ID,
		Filename:    file.Name,
		ContentType: file.ContentType,
		Body:        bytes.NewReader(file.Data),
	})
	if err != nil {
		m.logger.WarnContext(ctx, "Failed to archive bulk upload", "filename", file.Name, "error", err)
		return ""
	}
	return key
}

func apply(ctx context.Context, q *database.Queries, catalog Catalog, plan Plan) error {
	unitIDs := make(map[string]uuid.UUID, len(catalog.Units))
	for _, u := range catalog.Units {
		unitIDs[util.NormalizeName(u.Name)] = u.ID
	}
	bundleIDs := make(map[string]uuid.UUID, len(catalog.Bundles))
	for _, b := range catalog.Bundles {
		bundleIDs[util.NormalizeName(b.Name)] = b.ID
	}

	for _, name := range plan.Result.NewUnits {
		unit, err := q.CreateUnit(ctx, database.CreateUnitParams{Name: util.NormalizeName(name), DisplayName: name})
		if err != nil {
			return err
		}
		unitIDs[unit.Name] = unit.ID
	}
	for _, name := range plan.Result.NewBundles {
		bundle, err := q.CreateBundle(ctx, database.CreateBundleParams{Name: util.NormalizeName(name), DisplayName: name})
		if err != nil {
			return err
		}
		bundleIDs[bundle.Name] = bundle.ID
	}

	for _, ap := range plan.Activities {
		bundleID := bundleIDs[util.NormalizeName(ap.BundleName)]

		var activityID uuid.UUID
		if ap.ExistingID.IsSet {
			activityID = ap.ExistingID.Val
			if err := q.UpdateCareActivityByID(ctx, activityID, database.UpdateCareActivityParams{
				Name:         util.Some(ap.Name),
				DisplayName:  util.Some(ap.DisplayName),
				Description:  util.Some(ap.Description),
				ActivityType: util.Some(ap.ActivityType),
				ClinicalType: util.Some(ap.ClinicalType),
				BundleID:     util.Some(bundleID),
			}); err != nil {
				return err
			}
		} else {
			created, err := q.CreateCareActivity(ctx, database.CreateCareActivityParams{
				Name:         ap.Name,
				DisplayName:  ap.DisplayName,
				Description:  ap.Description,
				ActivityType: ap.ActivityType,
				ClinicalType: ap.ClinicalType,
				BundleID:     bundleID,
			})
			if err != nil {
				return err
			}
			activityID = created.ID
		}

		for _, unitName := range ap.UnitNames {
			if err := q.AddCareActivityUnit(ctx, activityID, unitIDs[util.NormalizeName(unitName)]); err != nil {
				return err
			}
		}

		for _, cell := range ap.Permissions {
			if !cell.Permission.IsSet {
				if err := q.DeleteAllowedActivity(ctx, cell.OccupationID, activityID); err != nil {
					return err
				}
				continue
			}
			if err := q.UpsertAllowedActivity(ctx, database.UpsertAllowedActivityParams{
				OccupationID:   cell.OccupationID,
				CareActivityID: activityID,
				Permission:     cell.Permission.Val,
			}); err != nil {
				return err
			}
		}
	}
	return nil
}
