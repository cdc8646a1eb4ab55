package dto

type SaveProfileDTO struct {
	ProfileOption                      string `json:"profileOption" validate:"required,profile_option"`
	CareLocation                       string `json:"careLocation" validate:"required,uuid"`
	UserPrefNotShowConfirmDraftRemoval bool   `json:"userPrefNotShowConfirmDraftRemoval"`
}

type SaveCareActivityDTO struct {
	// CareActivityBundle maps a bundle id to the selected activity ids of that bundle.
	CareActivityBundle map[string][]string `json:"careActivityBundle" validate:"required,dive,keys,uuid,endkeys,dive,uuid"`
}

type SaveOccupationDTO struct {
	Occupation []string `json:"occupation" validate:"required,dive,uuid"`
}

type SuggestionQuery struct {
	PaginationQuery
	TempSelectedIDs []string `json:"tempSelectedIds" validate:"omitempty,dive,uuid"`
}
