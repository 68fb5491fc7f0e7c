package models

import (
	"context"
	"errors"
	"time"

	"github.com/gastrodata/mercuriale_backend/config"
	"github.com/gastrodata/mercuriale_backend/utils"
	"github.com/google/uuid"
)

// Organization is the restaurant group owning establishments, suppliers and
// mercuriales. All other records are scoped to one organization.
type Organization struct {
	ID          uuid.UUID `gorm:"primary_key" json:"id"`
	Name        string    `gorm:"index;size:100;not null" json:"name" binding:"required"`
	ContactName string    `gorm:"size:100" json:"contact_name"`
	Email       string    `gorm:"size:255" json:"email"`
	Phone       string    `gorm:"size:20" json:"phone"`
	Address     string    `gorm:"type:text" json:"address"`
	Country     string    `gorm:"size:100" json:"country"`
	City        string    `gorm:"size:100" json:"city"`
	Timezone    string    `gorm:"size:50" json:"timezone"`
	IsActive    *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	PrimaryEstablishmentId int `gorm:"not null" json:"primary_establishment_id"`
}

type NewOrganization struct {
	Name        string `json:"name" binding:"required"`
	ContactName string `json:"contact_name"`
	Email       string `json:"email" binding:"required"`
	Phone       string `json:"phone"`
	Address     string `json:"address"`
	Country     string `json:"country"`
	City        string `json:"city"`
	Timezone    string `json:"timezone"`
}

func (o *Organization) StoreRedis() error {
	return config.SetRedisObject("Organization:"+o.ID.String(), o, 0)
}

func GetOrganizationById(ctx context.Context, id string) (*Organization, error) {

	var result Organization

	exists, err := config.GetRedisObject("Organization:"+id, &result)
	if err != nil {
		return nil, err
	}

	if !exists {
		db := config.GetDB()
		// db query
		err := db.WithContext(ctx).Where("id = ?", id).First(&result).Error
		if err != nil {
			return nil, utils.ErrorRecordNotFound
		}
		// caching
		if err := result.StoreRedis(); err != nil {
			return nil, err
		}
	}
	return &result, nil
}

func (input *NewOrganization) validate() error {
	if input.Email != "" && !utils.IsValidEmail(input.Email) {
		return errors.New("invalid email")
	}
	if input.Phone != "" {
		if err := utils.ValidatePhoneNumber(input.Phone, utils.CountryCode); err != nil {
			return errors.New("invalid phone number")
		}
	}
	return nil
}

// CreateOrganization creates the organization together with its primary
// establishment so delivery notes always have a receiving site to attach to.
func CreateOrganization(ctx context.Context, input *NewOrganization) (*Organization, error) {

	if err := input.validate(); err != nil {
		return nil, err
	}
	db := config.GetDB()

	tx := db.Begin()

	OID := uuid.New()
	timezone := "Europe/Paris"
	if input.Timezone != "" {
		timezone = input.Timezone
	}

	organization := Organization{
		ID:          OID,
		Name:        input.Name,
		ContactName: input.ContactName,
		Email:       input.Email,
		Phone:       input.Phone,
		Address:     input.Address,
		Country:     input.Country,
		City:        input.City,
		Timezone:    timezone,
		IsActive:    utils.NewTrue(),
	}

	err := tx.WithContext(ctx).Create(&organization).Error
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	organizationId := organization.ID.String()
	ctx = utils.SetOrganizationIdInContext(ctx, organizationId)

	primary := Establishment{
		OrganizationId: organizationId,
		Name:           "Primary Establishment",
		City:           input.City,
		IsActive:       utils.NewTrue(),
	}
	err = tx.WithContext(ctx).Create(&primary).Error
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	err = tx.WithContext(ctx).Model(&organization).Update("PrimaryEstablishmentId", primary.ID).Error
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	organization.PrimaryEstablishmentId = primary.ID

	if err = tx.Commit().Error; err != nil {
		return nil, err
	}

	return &organization, nil
}
