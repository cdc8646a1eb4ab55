package dto

type KPIQuery struct {
	Organization string `query:"organization" validate:"omitempty,max=255"`
	CareSetting  string `query:"careSetting" validate:"omitempty,uuid"`
}
