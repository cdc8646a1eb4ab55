// Package api exposes the managers over HTTP.
package api

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"careplan/internal/careactivity"
	"careplan/internal/config"
	"careplan/internal/database"
	"careplan/internal/kpi"
	"careplan/internal/middleware"
	"careplan/internal/occupation"
	"careplan/internal/planning"
	"careplan/internal/upload"
	"careplan/internal/user"
	"careplan/internal/validator"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

type Options struct {
	Config        *config.Config
	Logger        *slog.Logger
	Database      Pinger
	Cache         Pinger
	Validator     *validator.Validator
	Authenticator *middleware.Authenticator
	// RateLimitStorage is shared by the upload and invite limiters; nil keeps counters in memory.
	RateLimitStorage fiber.Storage

	Users          *user.Manager
	Occupations    *occupation.Manager
	CareActivities *careactivity.Manager
	Uploads        *upload.Manager
	Planning       *planning.Manager
	KPI            *kpi.Manager
}

// New builds the fiber application with every route registered.
func New(opts Options) *fiber.App {
	cfg := opts.Config
	app := fiber.New(fiber.Config{
		AppName:               opts.Config.Telemetry.ServiceName,
		ReadTimeout:           cfg.Server.ReadTimeout,
		WriteTimeout:          cfg.Server.WriteTimeout,
		BodyLimit:             cfg.Upload.MaxFileSize + 1<<20,
		ErrorHandler:          ErrorHandler(opts.Logger),
		DisableStartupMessage: true,
	})

	app.Use(recover.New(recover.Config{EnableStackTrace: cfg.Server.Environment != config.EnvironmentProduction}))
	app.Use(middleware.RequestID())
	if cfg.Telemetry.Enabled {
		app.Use(middleware.Tracing(cfg.Telemetry.ServiceName))
	}
	app.Use(middleware.Logger(opts.Logger))
	app.Use(middleware.SecurityHeaders())
	app.Use(cors.New(cors.Config{
		AllowOrigins:  cfg.Server.AllowedOrigins,
		AllowHeaders:  "Origin, Content-Type, Accept, Authorization, X-Request-ID",
		ExposeHeaders: "Content-Disposition, X-Request-ID",
	}))
	app.Use(middleware.Timeout(cfg.Server.RequestTimeout))

	h := &Handler{
		validator:      opts.Validator,
		maxFileSize:    cfg.Upload.MaxFileSize,
		users:          opts.Users,
		occupations:    opts.Occupations,
		careActivities: opts.CareActivities,
		uploads:        opts.Uploads,
		planning:       opts.Planning,
		kpi:            opts.KPI,
	}
	health := &HealthHandler{logger: opts.Logger, db: opts.Database, cache: opts.Cache, version: cfg.Telemetry.ServiceVersion}

	v1 := app.Group(Prefix, middleware.ContentNegotiation(fiber.MIMEApplicationJSON, middleware.MIMEApplicationXLSX))
	v1.Get(EndpointHealth, health.Healthy)

	limit := middleware.RateLimit(middleware.RateLimitConfig{
		Max:        cfg.Upload.RateLimit,
		Expiration: cfg.Upload.RateLimitSpan,
		Storage:    opts.RateLimitStorage,
	})
	admin := middleware.RequireRole(database.UserRoleAdmin)
	content := middleware.RequireRole(database.UserRoleContentAdmin)
	planner := middleware.RequireRole(database.UserRoleUser)

	r := v1.Group("", opts.Authenticator.Authenticated())

	r.Get(EndpointMe, h.Me)
	r.Patch(EndpointMePreferences, h.SavePreferences)
	r.Get(EndpointUsers, admin, h.ListUsers)
	r.Post(EndpointUserInvite, admin, limit, h.InviteUser)
	r.Patch(EndpointUserRoles, admin, h.EditUserRoles)
	r.Patch(EndpointUserRevoke, admin, h.RevokeUser)
	r.Patch(EndpointUserReprov, admin, h.ReprovisionUser)

	r.Get(EndpointOccupations, h.ListOccupations)
	r.Get(EndpointOccupationsAll, h.ListAllOccupations)
	r.Get(EndpointOccupation, h.GetOccupation)
	r.Get(EndpointOccupationScope, h.OccupationScope)
	r.Post(EndpointOccupations, content, h.CreateOccupation)
	r.Patch(EndpointOccupation, content, h.EditOccupation)
	r.Delete(EndpointOccupation, content, h.DeleteOccupation)

	r.Get(EndpointUnits, h.ListUnits)
	r.Get(EndpointBundles, h.ListBundles)

	r.Get(EndpointCareActivityBundles, h.BundlesForUnit)
	r.Get(EndpointCareActivityCMS, content, h.FindCareActivities)
	r.Get(EndpointCareActivityDownload, content, h.DownloadCareActivities)
	r.Get(EndpointCareActivityTemplate, content, h.CareActivityTemplate)
	r.Post(EndpointCareActivityValidate, content, limit, h.ValidateUpload)
	r.Post(EndpointCareActivityUpload, content, limit, h.CommitUpload)
	r.Get(EndpointCareActivity, content, h.GetCareActivity)
	r.Patch(EndpointCareActivity, content, h.EditCareActivity)
	r.Delete(EndpointCareActivity, content, h.DeleteCareActivity)
	r.Delete(EndpointCareActivityUnit, content, h.RemoveCareActivityUnit)

	r.Post(EndpointPlanningSessions, planner, h.CreatePlanningSession)
	r.Get(EndpointPlanningLastDraft, planner, h.LastDraft)
	r.Get(EndpointPlanningProfile, planner, h.GetProfile)
	r.Post(EndpointPlanningProfile, planner, h.SaveProfile)
	r.Get(EndpointPlanningCareActivities, planner, h.GetSessionCareActivities)
	r.Post(EndpointPlanningCareActivities, planner, h.SaveSessionCareActivities)
	r.Get(EndpointPlanningOccupations, planner, h.GetSessionOccupations)
	r.Post(EndpointPlanningOccupations, planner, h.SaveSessionOccupations)
	r.Post(EndpointPlanningUnavailable, planner, h.SaveUnavailableOccupations)
	r.Get(EndpointPlanningActivitiesGap, planner, h.ActivitiesGap)
	r.Post(EndpointPlanningSuggestions, planner, h.Suggestions)
	r.Get(EndpointPlanningExport, planner, h.ExportPlanningSession)

	r.Get(EndpointKPI, admin, h.KPIOverview)
	r.Get(EndpointKPIOrganizations, admin, h.KPIOrganizations)

	if cfg.Server.FrontendDir != "" {
		serveFrontend(app, opts.Logger, cfg.Server.FrontendDir)
	}
	return app
}

// serveFrontend serves the built single page app, answering unknown
// non-API paths with index.html so client-side routes survive a reload.
func serveFrontend(app *fiber.App, logger *slog.Logger, dir string) {
	index := filepath.Join(dir, "index.html")
	if _, err := os.Stat(index); err != nil {
		logger.Warn("Frontend directory has no index.html, not serving it", "dir", dir, "error", err)
		return
	}

	app.Static("/", dir, fiber.Static{Compress: true, MaxAge: 3600})
	app.Get("/*", func(c *fiber.Ctx) error {
		if strings.HasPrefix(c.Path(), Prefix) {
			return fiber.ErrNotFound
		}
		return c.SendFile(index)
	})
}
