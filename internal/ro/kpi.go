package ro

import "github.com/google/uuid"

type GeneralKPIRO struct {
	TotalUsers  int `json:"totalUsers"`
	ActiveUsers int `json:"activeUsers"`
	TotalPlans  int `json:"totalPlans"`
}

type CarePlanKPIRO struct {
	CareSettingID   uuid.UUID `json:"careSettingId"`
	CareSettingName string    `json:"careSettingName"`
	Total           int       `json:"total"`
}

type KPIOverviewRO struct {
	General   GeneralKPIRO    `json:"general"`
	CarePlans []CarePlanKPIRO `json:"carePlans"`
}
