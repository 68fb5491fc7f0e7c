package models

import (
	"time"
)

// ControlRun records one attempt to control a delivery note at a given
// control version. The unique index makes redelivered validation requests
// land on the existing row instead of running the engine twice.
type ControlRun struct {
	ID             int              `gorm:"primary_key" json:"id"`
	OrganizationId string           `gorm:"size:64;not null;index:uniq_control_run,unique" json:"organization_id"`
	HandlerName    string           `gorm:"size:100;not null;index:uniq_control_run,unique" json:"handler_name"`
	MessageId      string           `gorm:"size:255;not null;index:uniq_control_run,unique" json:"message_id"`
	Status         ControlRunStatus `gorm:"size:20;not null;index" json:"status"`
	AlertCount     int              `gorm:"not null;default:0" json:"alert_count"`
	LastError      *string          `gorm:"type:text" json:"last_error"`
	CreatedAt      time.Time        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time        `gorm:"autoUpdateTime" json:"updated_at"`
}
