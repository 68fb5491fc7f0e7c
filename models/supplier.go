package models

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gastrodata/mercuriale_backend/config"
	"github.com/gastrodata/mercuriale_backend/utils"
)

// Supplier is a vendor the organization buys from. Delivery notes and
// mercuriale price entries both hang off a supplier.
type Supplier struct {
	ID             int       `gorm:"primary_key" json:"id"`
	OrganizationId string    `gorm:"index;not null" json:"organization_id"`
	Name           string    `gorm:"index;size:100;not null" json:"name" binding:"required"`
	ContactName    string    `gorm:"size:100" json:"contact_name"`
	Email          string    `gorm:"size:100" json:"email"`
	Phone          string    `gorm:"size:20" json:"phone"`
	Address        string    `gorm:"type:text" json:"address"`
	SiretNumber    string    `gorm:"size:20" json:"siret_number"`
	PaymentTerms   string    `gorm:"size:100" json:"payment_terms"`
	IsActive       *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (s Supplier) GetOrganizationId() string {
	return s.OrganizationId
}

type NewSupplier struct {
	Name         string `json:"name" binding:"required"`
	ContactName  string `json:"contact_name"`
	Email        string `json:"email"`
	Phone        string `json:"phone"`
	Address      string `json:"address"`
	SiretNumber  string `json:"siret_number"`
	PaymentTerms string `json:"payment_terms"`
}

func (input *NewSupplier) validate(ctx context.Context, organizationId string, id int) error {
	if id > 0 {
		if err := utils.ValidateResourceId[Supplier](ctx, organizationId, id); err != nil {
			return err
		}
	}
	if err := utils.ValidateUnique[Supplier](ctx, organizationId, "name", input.Name, id); err != nil {
		return err
	}
	if len(strings.TrimSpace(input.Email)) > 0 {
		if !utils.IsValidEmail(input.Email) {
			return errors.New("invalid email address")
		}
		if err := utils.ValidateUnique[Supplier](ctx, organizationId, "email", input.Email, id); err != nil {
			return err
		}
	}
	if len(strings.TrimSpace(input.Phone)) > 0 {
		if err := utils.ValidatePhoneNumber(input.Phone, utils.CountryCode); err != nil {
			return errors.New("invalid phone number")
		}
	}
	return nil
}

func CreateSupplier(ctx context.Context, input *NewSupplier) (*Supplier, error) {

	organizationId, ok := utils.GetOrganizationIdFromContext(ctx)
	if !ok || organizationId == "" {
		return nil, errors.New("organization id is required")
	}

	if err := input.validate(ctx, organizationId, 0); err != nil {
		return nil, err
	}

	supplier := Supplier{
		OrganizationId: organizationId,
		Name:           input.Name,
		ContactName:    input.ContactName,
		Email:          input.Email,
		Phone:          input.Phone,
		Address:        input.Address,
		SiretNumber:    input.SiretNumber,
		PaymentTerms:   input.PaymentTerms,
		IsActive:       utils.NewTrue(),
	}

	// db action
	db := config.GetDB()
	err := db.WithContext(ctx).Create(&supplier).Error
	if err != nil {
		return nil, err
	}
	if err := utils.ClearRedisList[Supplier](organizationId); err != nil {
		return nil, err
	}

	return &supplier, nil
}

func UpdateSupplier(ctx context.Context, id int, input *NewSupplier) (*Supplier, error) {

	organizationId, ok := utils.GetOrganizationIdFromContext(ctx)
	if !ok || organizationId == "" {
		return nil, errors.New("organization id is required")
	}

	if err := input.validate(ctx, organizationId, id); err != nil {
		return nil, err
	}

	supplier, err := utils.FetchModel[Supplier](ctx, organizationId, id)
	if err != nil {
		return nil, err
	}

	// db action
	db := config.GetDB()
	err = db.WithContext(ctx).Model(supplier).Updates(map[string]interface{}{
		"Name":         input.Name,
		"ContactName":  input.ContactName,
		"Email":        input.Email,
		"Phone":        input.Phone,
		"Address":      input.Address,
		"SiretNumber":  input.SiretNumber,
		"PaymentTerms": input.PaymentTerms,
	}).Error
	if err != nil {
		return nil, err
	}
	if err := utils.ClearRedis[Supplier](id); err != nil {
		return nil, err
	}
	if err := utils.ClearRedisList[Supplier](organizationId); err != nil {
		return nil, err
	}

	return supplier, nil
}

func DeleteSupplier(ctx context.Context, id int) (*Supplier, error) {

	organizationId, ok := utils.GetOrganizationIdFromContext(ctx)
	if !ok || organizationId == "" {
		return nil, errors.New("organization id is required")
	}

	result, err := utils.FetchModel[Supplier](ctx, organizationId, id)
	if err != nil {
		return nil, err
	}

	// check usage before delete
	db := config.GetDB()
	var count int64
	if err := db.WithContext(ctx).Model(&DeliveryNote{}).
		Where("supplier_id = ?", id).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, errors.New("supplier has delivery notes")
	}
	if err := db.WithContext(ctx).Model(&SupplierProduct{}).
		Where("supplier_id = ?", id).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, errors.New("supplier has catalog products")
	}

	// db action
	err = db.WithContext(ctx).Delete(result).Error
	if err != nil {
		return nil, err
	}
	if err := utils.ClearRedis[Supplier](id); err != nil {
		return nil, err
	}
	if err := utils.ClearRedisList[Supplier](organizationId); err != nil {
		return nil, err
	}

	return result, nil
}

func GetSupplier(ctx context.Context, id int) (*Supplier, error) {

	return GetResource[Supplier](ctx, id)
}

func GetSuppliers(ctx context.Context, name *string) ([]*Supplier, error) {
	// the unfiltered listing is served from the cached per-organization list
	if name == nil || len(*name) == 0 {
		return ListAllResource[Supplier](ctx, "name")
	}

	organizationId, ok := utils.GetOrganizationIdFromContext(ctx)
	if !ok || organizationId == "" {
		return nil, errors.New("organization id is required")
	}

	db := config.GetDB()
	var results []*Supplier

	dbCtx := db.WithContext(ctx).Where("organization_id = ?", organizationId).
		Where("name LIKE ?", "%"+*name+"%")
	err := dbCtx.Order("name").Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

func ToggleActiveSupplier(ctx context.Context, id int, isActive bool) (*Supplier, error) {
	organizationId, ok := utils.GetOrganizationIdFromContext(ctx)
	if !ok || organizationId == "" {
		return nil, errors.New("organization id is required")
	}
	return ToggleActiveModel[Supplier](ctx, organizationId, id, isActive)
}
