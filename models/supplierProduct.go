package models

import (
	"context"
	"errors"
	"time"

	"github.com/gastrodata/mercuriale_backend/config"
	"github.com/gastrodata/mercuriale_backend/utils"
)

// SupplierProduct is one referenced catalog item of a supplier. Delivery
// lines match against the catalog through (supplier, reference); a line
// whose reference is not here is flagged as an unknown product.
type SupplierProduct struct {
	ID             int       `gorm:"primary_key" json:"id"`
	OrganizationId string    `gorm:"index;not null" json:"organization_id"`
	SupplierId     int       `gorm:"index;not null" json:"supplier_id"`
	Supplier       *Supplier `json:"supplier,omitempty"`
	Name           string    `gorm:"index;size:150;not null" json:"name" binding:"required"`
	Reference      string    `gorm:"index;size:64;not null" json:"reference" binding:"required"`
	Unit           string    `gorm:"size:20;not null" json:"unit"`
	Category       string    `gorm:"size:100" json:"category"`
	IsActive       *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (p SupplierProduct) GetOrganizationId() string {
	return p.OrganizationId
}

type NewSupplierProduct struct {
	SupplierId int    `json:"supplier_id" binding:"required"`
	Name       string `json:"name" binding:"required"`
	Reference  string `json:"reference" binding:"required"`
	Unit       string `json:"unit" binding:"required"`
	Category   string `json:"category"`
}

func (input *NewSupplierProduct) validate(ctx context.Context, organizationId string, id int) error {
	if id > 0 {
		if err := utils.ValidateResourceId[SupplierProduct](ctx, organizationId, id); err != nil {
			return err
		}
	}
	if err := utils.ValidateResourceId[Supplier](ctx, organizationId, input.SupplierId); err != nil {
		return errors.New("invalid supplier id")
	}
	// one reference per supplier
	count, err := utils.ResourceCountWhere[SupplierProduct](ctx, organizationId,
		"supplier_id = ? AND reference = ? AND id != ?", input.SupplierId, input.Reference, id)
	if err != nil {
		return err
	}
	if count > 0 {
		return errors.New("duplicate supplier reference")
	}
	return nil
}

func CreateSupplierProduct(ctx context.Context, input *NewSupplierProduct) (*SupplierProduct, error) {

	organizationId, ok := utils.GetOrganizationIdFromContext(ctx)
	if !ok || organizationId == "" {
		return nil, errors.New("organization id is required")
	}

	if err := input.validate(ctx, organizationId, 0); err != nil {
		return nil, err
	}

	product := SupplierProduct{
		OrganizationId: organizationId,
		SupplierId:     input.SupplierId,
		Name:           input.Name,
		Reference:      input.Reference,
		Unit:           input.Unit,
		Category:       input.Category,
		IsActive:       utils.NewTrue(),
	}

	// db action
	db := config.GetDB()
	err := db.WithContext(ctx).Create(&product).Error
	if err != nil {
		return nil, err
	}
	if err := utils.ClearRedisList[SupplierProduct](organizationId); err != nil {
		return nil, err
	}

	return &product, nil
}

func UpdateSupplierProduct(ctx context.Context, id int, input *NewSupplierProduct) (*SupplierProduct, error) {

	organizationId, ok := utils.GetOrganizationIdFromContext(ctx)
	if !ok || organizationId == "" {
		return nil, errors.New("organization id is required")
	}

	if err := input.validate(ctx, organizationId, id); err != nil {
		return nil, err
	}

	product, err := utils.FetchModel[SupplierProduct](ctx, organizationId, id)
	if err != nil {
		return nil, err
	}

	// db action
	db := config.GetDB()
	err = db.WithContext(ctx).Model(product).Updates(map[string]interface{}{
		"SupplierId": input.SupplierId,
		"Name":       input.Name,
		"Reference":  input.Reference,
		"Unit":       input.Unit,
		"Category":   input.Category,
	}).Error
	if err != nil {
		return nil, err
	}
	if err := utils.ClearRedis[SupplierProduct](id); err != nil {
		return nil, err
	}
	if err := utils.ClearRedisList[SupplierProduct](organizationId); err != nil {
		return nil, err
	}

	return product, nil
}

func DeleteSupplierProduct(ctx context.Context, id int) (*SupplierProduct, error) {

	organizationId, ok := utils.GetOrganizationIdFromContext(ctx)
	if !ok || organizationId == "" {
		return nil, errors.New("organization id is required")
	}

	result, err := utils.FetchModel[SupplierProduct](ctx, organizationId, id)
	if err != nil {
		return nil, err
	}

	// check usage before delete
	db := config.GetDB()
	var count int64
	if err := db.WithContext(ctx).Model(&DeliveryLine{}).
		Where("supplier_product_id = ?", id).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, errors.New("product is used by delivery lines")
	}
	if err := db.WithContext(ctx).Model(&PriceEntry{}).
		Where("supplier_product_id = ?", id).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, errors.New("product has mercuriale entries")
	}

	// db action
	err = db.WithContext(ctx).Delete(result).Error
	if err != nil {
		return nil, err
	}
	if err := utils.ClearRedis[SupplierProduct](id); err != nil {
		return nil, err
	}
	if err := utils.ClearRedisList[SupplierProduct](organizationId); err != nil {
		return nil, err
	}

	return result, nil
}

func GetSupplierProduct(ctx context.Context, id int) (*SupplierProduct, error) {

	return GetResource[SupplierProduct](ctx, id)
}

func GetSupplierProducts(ctx context.Context, supplierId *int, name *string) ([]*SupplierProduct, error) {
	organizationId, ok := utils.GetOrganizationIdFromContext(ctx)
	if !ok || organizationId == "" {
		return nil, errors.New("organization id is required")
	}

	db := config.GetDB()
	var results []*SupplierProduct

	dbCtx := db.WithContext(ctx).Where("organization_id = ?", organizationId)
	if supplierId != nil && *supplierId > 0 {
		dbCtx = dbCtx.Where("supplier_id = ?", *supplierId)
	}
	if name != nil && len(*name) > 0 {
		dbCtx = dbCtx.Where("name LIKE ?", "%"+*name+"%")
	}
	err := dbCtx.Order("name").Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

// FindSupplierProductByReference resolves a catalog item by supplier SKU.
// Returns (nil, nil) when the reference is not in the catalog so callers
// can treat the miss as an unknown product instead of an error.
func FindSupplierProductByReference(ctx context.Context, organizationId string, supplierId int, reference string) (*SupplierProduct, error) {
	db := config.GetDB()
	var results []*SupplierProduct
	err := db.WithContext(ctx).
		Where("organization_id = ? AND supplier_id = ? AND reference = ?", organizationId, supplierId, reference).
		Limit(1).Find(&results).Error
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, nil
	}
	return results[0], nil
}

func ToggleActiveSupplierProduct(ctx context.Context, id int, isActive bool) (*SupplierProduct, error) {
	organizationId, ok := utils.GetOrganizationIdFromContext(ctx)
	if !ok || organizationId == "" {
		return nil, errors.New("organization id is required")
	}
	return ToggleActiveModel[SupplierProduct](ctx, organizationId, id, isActive)
}
