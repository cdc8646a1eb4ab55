package ro

import (
	"time"

	"github.com/google/uuid"
)

type PlanningSessionRO struct {
	ID             uuid.UUID  `json:"id"`
	CareLocationID *uuid.UUID `json:"careLocationId"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

type ProfileRO struct {
	ProfileOption                      *string    `json:"profileOption"`
	CareLocation                       *uuid.UUID `json:"careLocation"`
	UserPrefNotShowConfirmDraftRemoval bool       `json:"userPrefNotShowConfirmDraftRemoval"`
}

type SessionCareActivitiesRO struct {
	CareActivityBundle map[string][]string `json:"careActivityBundle"`
}

type SessionOccupationsRO struct {
	Occupation             []uuid.UUID `json:"occupation"`
	UnavailableOccupations []uuid.UUID `json:"unavailableOccupations"`
}

type GapOverviewRO struct {
	Total   int `json:"total"`
	InScope int `json:"inScope"`
	Limits  int `json:"limits"`
	Gaps    int `json:"gaps"`
}

type GapHeaderRO struct {
	ID          uuid.UUID `json:"id"`
	DisplayName string    `json:"displayName"`
}

type GapActivityRO struct {
	ID           uuid.UUID `json:"id"`
	DisplayName  string    `json:"displayName"`
	ActivityType string    `json:"activityType"`
	// Coverage is IN_SCOPE, LIMITS or GAP for the selected team.
	Coverage string `json:"coverage"`
	// Permissions maps occupation id to Y, LC or X.
	Permissions map[string]string `json:"permissions"`
}

type GapBundleRO struct {
	ID             uuid.UUID       `json:"id"`
	DisplayName    string          `json:"displayName"`
	CareActivities []GapActivityRO `json:"careActivities"`
}

type ActivitiesGapRO struct {
	Overview GapOverviewRO `json:"overview"`
	Headers  []GapHeaderRO `json:"headers"`
	Data     []GapBundleRO `json:"data"`
}

type SuggestionCompetencyRO struct {
	BundleID    uuid.UUID `json:"bundleId"`
	DisplayName string    `json:"displayName"`
	Perform     int       `json:"y"`
	Limits      int       `json:"lc"`
}

type SuggestionRO struct {
	Occupation   OccupationRO             `json:"occupation"`
	Score        float64                  `json:"score"`
	Coverage     float64                  `json:"coverage"`
	Competencies []SuggestionCompetencyRO `json:"competencies"`
}
