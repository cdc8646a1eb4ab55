package api

// Endpoint paths shared with the front-end, relative to Prefix.
const (
	Prefix = "/api/v1"

	EndpointHealth = "/health"

	EndpointMe            = "/users/me"
	EndpointMePreferences = "/users/me/preferences"
	EndpointUsers         = "/users"
	EndpointUserInvite    = "/users/invite"
	EndpointUserRoles     = "/users/:id/roles"
	EndpointUserRevoke    = "/users/:id/revoke"
	EndpointUserReprov    = "/users/:id/reprovision"

	EndpointOccupations     = "/occupations"
	EndpointOccupationsAll  = "/occupations/all"
	EndpointOccupation      = "/occupations/:id"
	EndpointOccupationScope = "/occupations/:id/scope"

	EndpointUnits   = "/units"
	EndpointBundles = "/bundles"

	EndpointCareActivityBundles  = "/care-activities/bundles"
	EndpointCareActivityCMS      = "/care-activities/cms"
	EndpointCareActivityDownload = "/care-activities/cms/download"
	EndpointCareActivityTemplate = "/care-activities/cms/template"
	EndpointCareActivityValidate = "/care-activities/cms/validate"
	EndpointCareActivityUpload   = "/care-activities/cms/upload"
	EndpointCareActivity         = "/care-activities/:id"
	EndpointCareActivityUnit     = "/care-activities/:id/units/:unitId"

	EndpointPlanningSessions       = "/planning-sessions"
	EndpointPlanningLastDraft      = "/planning-sessions/last-draft"
	EndpointPlanningProfile        = "/planning-sessions/:id/profile"
	EndpointPlanningCareActivities = "/planning-sessions/:id/care-activities"
	EndpointPlanningOccupations    = "/planning-sessions/:id/occupations"
	EndpointPlanningUnavailable    = "/planning-sessions/:id/unavailable-occupations"
	EndpointPlanningActivitiesGap  = "/planning-sessions/:id/activities-gap"
	EndpointPlanningSuggestions    = "/planning-sessions/:id/suggestions"
	EndpointPlanningExport         = "/planning-sessions/:id/export"

	EndpointKPI              = "/kpi"
	EndpointKPIOrganizations = "/kpi/organizations"
)
