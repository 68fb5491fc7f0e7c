package models

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gastrodata/mercuriale_backend/config"
	"github.com/gastrodata/mercuriale_backend/utils"
)

// Establishment is one receiving site (restaurant) of the organization.
// Mercuriale rows may be scoped to a single establishment; delivery notes
// reference the establishment that received the goods.
type Establishment struct {
	ID             int       `gorm:"primary_key" json:"id"`
	OrganizationId string    `gorm:"index;not null" json:"organization_id"`
	Name           string    `gorm:"index;size:100;not null" json:"name" binding:"required"`
	Phone          string    `gorm:"size:20" json:"phone"`
	Address        string    `gorm:"type:text" json:"address"`
	Country        string    `gorm:"size:100" json:"country"`
	City           string    `gorm:"size:100" json:"city"`
	IsActive       *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (e Establishment) GetOrganizationId() string {
	return e.OrganizationId
}

type NewEstablishment struct {
	Name    string `json:"name" binding:"required"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
	Country string `json:"country"`
	City    string `json:"city"`
}

// validate input for both create & update. (id = 0 for create)
func (input *NewEstablishment) validate(ctx context.Context, organizationId string, id int) error {
	if id > 0 {
		if err := utils.ValidateResourceId[Establishment](ctx, organizationId, id); err != nil {
			return err
		}
	}
	// name
	if err := utils.ValidateUnique[Establishment](ctx, organizationId, "name", input.Name, id); err != nil {
		return err
	}
	// phone
	if len(strings.TrimSpace(input.Phone)) > 0 {
		if err := utils.ValidatePhoneNumber(input.Phone, utils.CountryCode); err != nil {
			return errors.New("invalid phone number")
		}
	}
	return nil
}

func CreateEstablishment(ctx context.Context, input *NewEstablishment) (*Establishment, error) {

	organizationId, ok := utils.GetOrganizationIdFromContext(ctx)
	if !ok || organizationId == "" {
		return nil, errors.New("organization id is required")
	}

	if err := input.validate(ctx, organizationId, 0); err != nil {
		return nil, err
	}

	establishment := Establishment{
		OrganizationId: organizationId,
		Name:           input.Name,
		Phone:          input.Phone,
		Address:        input.Address,
		Country:        input.Country,
		City:           input.City,
		IsActive:       utils.NewTrue(),
	}

	// db action
	db := config.GetDB()
	err := db.WithContext(ctx).Create(&establishment).Error
	if err != nil {
		return nil, err
	}
	if err := utils.ClearRedisList[Establishment](organizationId); err != nil {
		return nil, err
	}

	return &establishment, nil
}

func UpdateEstablishment(ctx context.Context, id int, input *NewEstablishment) (*Establishment, error) {

	organizationId, ok := utils.GetOrganizationIdFromContext(ctx)
	if !ok || organizationId == "" {
		return nil, errors.New("organization id is required")
	}

	if err := input.validate(ctx, organizationId, id); err != nil {
		return nil, err
	}

	establishment, err := utils.FetchModel[Establishment](ctx, organizationId, id)
	if err != nil {
		return nil, err
	}

	// db action
	db := config.GetDB()
	err = db.WithContext(ctx).Model(establishment).Updates(map[string]interface{}{
		"Name":    input.Name,
		"Phone":   input.Phone,
		"Address": input.Address,
		"Country": input.Country,
		"City":    input.City,
	}).Error
	if err != nil {
		return nil, err
	}
	if err := utils.ClearRedis[Establishment](id); err != nil {
		return nil, err
	}
	if err := utils.ClearRedisList[Establishment](organizationId); err != nil {
		return nil, err
	}

	return establishment, nil
}

func DeleteEstablishment(ctx context.Context, id int) (*Establishment, error) {

	organizationId, ok := utils.GetOrganizationIdFromContext(ctx)
	if !ok || organizationId == "" {
		return nil, errors.New("organization id is required")
	}

	result, err := utils.FetchModel[Establishment](ctx, organizationId, id)
	if err != nil {
		return nil, err
	}

	// check if the establishment is used
	db := config.GetDB()
	var count int64
	if err := db.WithContext(ctx).Model(&Organization{}).
		Where("id = ? AND primary_establishment_id = ?", organizationId, id).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, errors.New("cannot delete primary establishment")
	}
	if err := db.WithContext(ctx).Model(&DeliveryNote{}).
		Where("establishment_id = ?", id).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, errors.New("establishment has delivery notes")
	}
	if err := db.WithContext(ctx).Model(&PriceEntry{}).
		Where("establishment_id = ?", id).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, errors.New("establishment has mercuriale entries")
	}

	// db action
	err = db.WithContext(ctx).Delete(result).Error
	if err != nil {
		return nil, err
	}
	if err := utils.ClearRedis[Establishment](id); err != nil {
		return nil, err
	}
	if err := utils.ClearRedisList[Establishment](organizationId); err != nil {
		return nil, err
	}

	return result, nil
}

func GetEstablishment(ctx context.Context, id int) (*Establishment, error) {

	return GetResource[Establishment](ctx, id)
}

func GetEstablishments(ctx context.Context, name *string) ([]*Establishment, error) {
	// the unfiltered listing is served from the cached per-organization list
	if name == nil || len(*name) == 0 {
		return ListAllResource[Establishment](ctx, "name")
	}

	organizationId, ok := utils.GetOrganizationIdFromContext(ctx)
	if !ok || organizationId == "" {
		return nil, errors.New("organization id is required")
	}

	db := config.GetDB()
	var results []*Establishment

	dbCtx := db.WithContext(ctx).Where("organization_id = ?", organizationId).
		Where("name LIKE ?", "%"+*name+"%")
	// db query
	err := dbCtx.Order("name").Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

func ToggleActiveEstablishment(ctx context.Context, id int, isActive bool) (*Establishment, error) {
	organizationId, ok := utils.GetOrganizationIdFromContext(ctx)
	if !ok || organizationId == "" {
		return nil, errors.New("organization id is required")
	}
	if !isActive {
		db := config.GetDB()
		var count int64
		if err := db.WithContext(ctx).Model(&Organization{}).
			Where("id = ? AND primary_establishment_id = ?", organizationId, id).Count(&count).Error; err != nil {
			return nil, err
		}
		if count > 0 {
			return nil, errors.New("cannot toggle primary establishment inactive")
		}
	}
	return ToggleActiveModel[Establishment](ctx, organizationId, id, isActive)
}
