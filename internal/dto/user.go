package dto

type CreateUserInviteDTO struct {
	Email string   `json:"email" validate:"required,email,max=255"`
	Roles []string `json:"roles" validate:"required,min=1,dive,role"`
}

type EditUserRolesDTO struct {
	Roles []string `json:"roles" validate:"required,min=1,dive,role"`
}

type UserQuery struct {
	PaginationQuery
	SortKey    string `query:"sortKey" validate:"omitempty,oneof=email displayName lastLoginAt status"`
	SortOrder  string `query:"sortOrder" validate:"omitempty,sort_order"`
	SearchText string `query:"searchText" validate:"omitempty,max=255"`
}

type UserPreferencesDTO struct {
	NotShowConfirmDraftRemoval *bool `json:"notShowConfirmDraftRemoval"`
}
