package models

import (
	"context"
	"errors"
	"time"

	"github.com/gastrodata/mercuriale_backend/config"
	"github.com/gastrodata/mercuriale_backend/utils"
	"github.com/shopspring/decimal"
)

// ControlAlert is one discrepancy found by a control pass on a delivery
// line. Untreated alerts are purged and rebuilt whenever the line is
// controlled again; once a human marks an alert treated it is never
// touched by the engine.
type ControlAlert struct {
	ID             int              `gorm:"primary_key" json:"id"`
	OrganizationId string           `gorm:"index;not null" json:"organization_id"`
	DeliveryLineId int              `gorm:"index;not null" json:"delivery_line_id"`
	Kind           ControlAlertKind `gorm:"type:enum('QuantityVariance','PriceVariance','UnknownProduct','MissingPrice');not null" json:"kind"`
	Message        string           `gorm:"type:text;not null" json:"message"`
	ExpectedValue  *decimal.Decimal `gorm:"type:decimal(20,4)" json:"expected_value"`
	ReceivedValue  *decimal.Decimal `gorm:"type:decimal(20,4)" json:"received_value"`
	DeviationPct   *decimal.Decimal `gorm:"type:decimal(7,2)" json:"deviation_pct"`
	Treated        *bool            `gorm:"not null;default:false" json:"treated"`
	TreatedBy      string           `gorm:"size:100" json:"treated_by"`
	TreatedAt      *time.Time       `json:"treated_at"`
	CreatedAt      time.Time        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time        `gorm:"autoUpdateTime" json:"updated_at"`
}

func (a ControlAlert) GetOrganizationId() string {
	return a.OrganizationId
}

// TreatControlAlert records that a human has acted on the discrepancy.
// Treated alerts survive later control passes on the same line.
func TreatControlAlert(ctx context.Context, id int) (*ControlAlert, error) {

	organizationId, ok := utils.GetOrganizationIdFromContext(ctx)
	if !ok || organizationId == "" {
		return nil, errors.New("organization id is required")
	}

	alert, err := utils.FetchModel[ControlAlert](ctx, organizationId, id)
	if err != nil {
		return nil, err
	}
	if alert.Treated != nil && *alert.Treated {
		return alert, nil
	}

	userName, _ := utils.GetUserNameFromContext(ctx)
	now := time.Now()

	db := config.GetDB()
	err = db.WithContext(ctx).Model(alert).Updates(map[string]interface{}{
		"Treated":   utils.NewTrue(),
		"TreatedBy": userName,
		"TreatedAt": &now,
	}).Error
	if err != nil {
		return nil, err
	}
	return alert, nil
}

func GetControlAlerts(ctx context.Context, treated *bool, kind *ControlAlertKind) ([]*ControlAlert, error) {
	organizationId, ok := utils.GetOrganizationIdFromContext(ctx)
	if !ok || organizationId == "" {
		return nil, errors.New("organization id is required")
	}

	db := config.GetDB()
	var results []*ControlAlert

	dbCtx := db.WithContext(ctx).Where("organization_id = ?", organizationId)
	if treated != nil {
		dbCtx = dbCtx.Where("treated = ?", *treated)
	}
	if kind != nil {
		dbCtx = dbCtx.Where("kind = ?", *kind)
	}
	err := dbCtx.Order("created_at DESC, id DESC").Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}
