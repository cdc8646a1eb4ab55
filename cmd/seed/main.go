// Command seed loads a demo catalog: an administrator invite, a handful of
// occupations and care activities across two care settings. Running it twice
// is harmless; existing rows are edited in place.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"strings"

	"careplan/internal/audit"
	"careplan/internal/cache"
	"careplan/internal/config"
	"careplan/internal/database"
	"careplan/internal/database/migrations"
	"careplan/internal/dto"
	"careplan/internal/monitoring"
	"careplan/internal/occupation"
	"careplan/internal/storage"
	"careplan/internal/upload"
)

var demoOccupations = []dto.CreateOccupationDTO{
	{DisplayName: "Registered Nurse", Description: "Provides and coordinates nursing care across settings.", IsRegulated: true},
	{DisplayName: "Licensed Practical Nurse", Description: "Provides nursing care to clients with predictable outcomes.", IsRegulated: true},
	{DisplayName: "Health Care Assistant", Description: "Supports clients with activities of daily living.", IsRegulated: false},
	{DisplayName: "Physiotherapist", Description: "Assesses and treats movement and function.", IsRegulated: true},
}

const demoCatalog = `Care Setting,Care Competencies,Care Activities,Aspect of Practice,Clinical Type,Description,Registered Nurse,Licensed Practical Nurse,Health Care Assistant,Physiotherapist
Acute Care,Medication Management,Administer oral medication,Task,Clinical,Give prescribed oral medication,Y,Y,X,X
Acute Care,Medication Management,Administer insulin,Restricted Activity,Clinical,Subcutaneous insulin per order,Y,LC,X,X
Acute Care,Wound Care,Simple dressing change,Task,Clinical,,Y,Y,LC,X
Acute Care,Mobility,Transfer with mechanical lift,Task,Support,,Y,Y,Y,Y
Acute Care,Mobility,Mobility assessment,Aspect of Practice,Clinical,,Y,LC,X,Y
Home Care,Medication Management,Administer oral medication,Task,Clinical,Give prescribed oral medication,Y,Y,X,X
Home Care,Personal Care,Bathing assistance,Task,Support,,Y,Y,Y,X
Home Care,Mobility,Transfer with mechanical lift,Task,Support,,Y,Y,Y,Y
`

func main() {
	adminEmail := flag.String("admin", "admin@example.com", "Email of the administrator to invite")
	flag.Parse()

	if err := run(context.Background(), strings.ToLower(*adminEmail)); err != nil {
		log.Fatalf("Seed failed: %v", err)
	}
}

func run(ctx context.Context, adminEmail string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := slog.Default()

	db, err := database.Open(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := migrations.Up(db.DB); err != nil {
		return err
	}

	admin, err := ensureAdmin(ctx, db, adminEmail)
	if err != nil {
		return err
	}

	store, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		return err
	}

	auditor := audit.NewAuditor(logger, db)
	occupations := occupation.NewManager(logger, db, &auditor, cache.Disabled())
	uploads := upload.NewManager(logger, db, &auditor, cache.Disabled(), store, monitoring.Noop())

	existing, err := occupations.ListAll(ctx)
	if err != nil {
		return err
	}
	known := make(map[string]bool, len(existing))
	for _, o := range existing {
		known[o.DisplayName] = true
	}
	for i, o := range demoOccupations {
		if known[o.DisplayName] {
			continue
		}
		order := i + 1
		o.DisplayOrder = &order
		if _, err := occupations.Create(ctx, admin, o); err != nil {
			return err
		}
		logger.Info("Created occupation", "name", o.DisplayName)
	}

	sheet, err := upload.ParseCSV(strings.NewReader(demoCatalog))
	if err != nil {
		return err
	}
	result, err := uploads.Commit(ctx, admin, sheet, &upload.File{
		Name:        "demo-catalog.csv",
		ContentType: "text/csv",
		Data:        []byte(demoCatalog),
	})
	if err != nil {
		return err
	}

	logger.Info("Demo catalog loaded", "add", result.Add, "edit", result.Edit, "admin", admin.Email)
	return nil
}

// ensureAdmin invites the administrator with every role unless they exist.
// The invite is bound to a Keycloak identity on first login.
func ensureAdmin(ctx context.Context, db *database.Database, email string) (database.User, error) {
	u, err := db.GetUserByEmail(ctx, email)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, database.ErrUserNotFound) {
		return u, err
	}
	return db.CreateUser(ctx, database.CreateUserParams{
		Email:  email,
		Roles:  []database.UserRole{database.UserRoleAdmin, database.UserRoleContentAdmin, database.UserRoleUser},
		Status: database.UserStatusInvited,
	})
}
