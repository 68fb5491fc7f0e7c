package models

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/gastrodata/mercuriale_backend/config"
	"github.com/gastrodata/mercuriale_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

// DefaultAlertThreshold is the price deviation tolerance (in percent)
// applied when a mercuriale row does not carry its own threshold.
var DefaultAlertThreshold = decimal.NewFromInt(5)

// PriceEntry is one row of the mercuriale: the negotiated unit price for a
// catalog product over a validity window. EstablishmentId is nil for a
// group-wide price; a non-nil value scopes the price to one establishment,
// which takes precedence over the group price when both are valid.
type PriceEntry struct {
	ID                int              `gorm:"primary_key" json:"id"`
	OrganizationId    string           `gorm:"index;not null" json:"organization_id"`
	SupplierProductId int              `gorm:"index;not null" json:"supplier_product_id"`
	SupplierProduct   *SupplierProduct `json:"supplier_product,omitempty"`
	EstablishmentId   *int             `gorm:"index" json:"establishment_id"`
	UnitPrice         decimal.Decimal  `gorm:"type:decimal(20,4);default:0" json:"unit_price"`
	AlertThreshold    decimal.Decimal  `gorm:"type:decimal(20,4);default:5" json:"alert_threshold"`
	ValidFrom         time.Time        `gorm:"index;not null" json:"valid_from"`
	ValidTo           *time.Time       `json:"valid_to"`
	CreatedAt         time.Time        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time        `gorm:"autoUpdateTime" json:"updated_at"`
}

func (e PriceEntry) GetOrganizationId() string {
	return e.OrganizationId
}

type NewPriceEntry struct {
	SupplierProductId int             `json:"supplier_product_id" binding:"required"`
	EstablishmentId   *int            `json:"establishment_id"`
	UnitPrice         decimal.Decimal `json:"unit_price" binding:"required"`
	AlertThreshold    decimal.Decimal `json:"alert_threshold"`
	ValidFrom         time.Time       `json:"valid_from" binding:"required"`
	ValidTo           *time.Time      `json:"valid_to"`
}

func (input *NewPriceEntry) validate(ctx context.Context, organizationId string, id int) error {
	if id > 0 {
		if err := utils.ValidateResourceId[PriceEntry](ctx, organizationId, id); err != nil {
			return err
		}
	}
	if err := utils.ValidateResourceId[SupplierProduct](ctx, organizationId, input.SupplierProductId); err != nil {
		return errors.New("invalid supplier product id")
	}
	if input.EstablishmentId != nil {
		if err := utils.ValidateResourceId[Establishment](ctx, organizationId, *input.EstablishmentId); err != nil {
			return errors.New("invalid establishment id")
		}
	}
	if input.UnitPrice.IsNegative() {
		return errors.New("unit price must not be negative")
	}
	if input.AlertThreshold.IsNegative() {
		return errors.New("alert threshold must not be negative")
	}
	if input.ValidTo != nil && input.ValidTo.Before(input.ValidFrom) {
		return errors.New("valid_to must not be before valid_from")
	}
	return nil
}

func CreatePriceEntry(ctx context.Context, input *NewPriceEntry) (*PriceEntry, error) {

	organizationId, ok := utils.GetOrganizationIdFromContext(ctx)
	if !ok || organizationId == "" {
		return nil, errors.New("organization id is required")
	}

	if err := input.validate(ctx, organizationId, 0); err != nil {
		return nil, err
	}

	threshold := input.AlertThreshold
	if threshold.IsZero() {
		threshold = DefaultAlertThreshold
	}

	entry := PriceEntry{
		OrganizationId:    organizationId,
		SupplierProductId: input.SupplierProductId,
		EstablishmentId:   input.EstablishmentId,
		UnitPrice:         input.UnitPrice,
		AlertThreshold:    threshold,
		ValidFrom:         input.ValidFrom,
		ValidTo:           input.ValidTo,
	}

	// db action
	db := config.GetDB()
	err := db.WithContext(ctx).Create(&entry).Error
	if err != nil {
		return nil, err
	}

	return &entry, nil
}

func UpdatePriceEntry(ctx context.Context, id int, input *NewPriceEntry) (*PriceEntry, error) {

	organizationId, ok := utils.GetOrganizationIdFromContext(ctx)
	if !ok || organizationId == "" {
		return nil, errors.New("organization id is required")
	}

	if err := input.validate(ctx, organizationId, id); err != nil {
		return nil, err
	}

	entry, err := utils.FetchModel[PriceEntry](ctx, organizationId, id)
	if err != nil {
		return nil, err
	}

	// db action
	db := config.GetDB()
	err = db.WithContext(ctx).Model(entry).Updates(map[string]interface{}{
		"SupplierProductId": input.SupplierProductId,
		"EstablishmentId":   input.EstablishmentId,
		"UnitPrice":         input.UnitPrice,
		"AlertThreshold":    input.AlertThreshold,
		"ValidFrom":         input.ValidFrom,
		"ValidTo":           input.ValidTo,
	}).Error
	if err != nil {
		return nil, err
	}

	return entry, nil
}

func DeletePriceEntry(ctx context.Context, id int) (*PriceEntry, error) {

	organizationId, ok := utils.GetOrganizationIdFromContext(ctx)
	if !ok || organizationId == "" {
		return nil, errors.New("organization id is required")
	}

	result, err := utils.FetchModel[PriceEntry](ctx, organizationId, id)
	if err != nil {
		return nil, err
	}

	// db action
	db := config.GetDB()
	err = db.WithContext(ctx).Delete(result).Error
	if err != nil {
		return nil, err
	}

	return result, nil
}

func GetPriceEntry(ctx context.Context, id int) (*PriceEntry, error) {

	organizationId, ok := utils.GetOrganizationIdFromContext(ctx)
	if !ok || organizationId == "" {
		return nil, errors.New("organization id is required")
	}

	return utils.FetchModel[PriceEntry](ctx, organizationId, id, "SupplierProduct")
}

func GetPriceEntries(ctx context.Context, supplierProductId *int, establishmentId *int, at *time.Time) ([]*PriceEntry, error) {
	organizationId, ok := utils.GetOrganizationIdFromContext(ctx)
	if !ok || organizationId == "" {
		return nil, errors.New("organization id is required")
	}

	db := config.GetDB()
	var results []*PriceEntry

	dbCtx := db.WithContext(ctx).Preload("SupplierProduct").
		Where("organization_id = ?", organizationId)
	if supplierProductId != nil && *supplierProductId > 0 {
		dbCtx = dbCtx.Where("supplier_product_id = ?", *supplierProductId)
	}
	if establishmentId != nil {
		if *establishmentId > 0 {
			dbCtx = dbCtx.Where("establishment_id = ?", *establishmentId)
		} else {
			dbCtx = dbCtx.Where("establishment_id IS NULL")
		}
	}
	if at != nil {
		dbCtx = dbCtx.Where("valid_from <= ? AND (valid_to IS NULL OR valid_to >= ?)", *at, *at)
	}
	err := dbCtx.Order("valid_from DESC, id DESC").Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

// FindApplicablePrice resolves the price to control a delivery line against.
// The establishment-scoped entry wins over the group-wide one; within a
// scope the entry with the latest valid_from wins. Returns (nil, nil) when
// no entry covers the date in either scope.
func FindApplicablePrice(ctx context.Context, tx *gorm.DB, organizationId string, supplierProductId int, establishmentId int, date time.Time) (*PriceEntry, error) {

	if establishmentId > 0 {
		entry, err := findPriceInScope(ctx, tx, organizationId, supplierProductId, &establishmentId, date)
		if err != nil {
			return nil, err
		}
		if entry != nil {
			return entry, nil
		}
	}
	return findPriceInScope(ctx, tx, organizationId, supplierProductId, nil, date)
}

func findPriceInScope(ctx context.Context, tx *gorm.DB, organizationId string, supplierProductId int, establishmentId *int, date time.Time) (*PriceEntry, error) {
	dbCtx := tx.WithContext(ctx).
		Where("organization_id = ? AND supplier_product_id = ?", organizationId, supplierProductId).
		Where("valid_from <= ? AND (valid_to IS NULL OR valid_to >= ?)", date, date)
	if establishmentId != nil {
		dbCtx = dbCtx.Where("establishment_id = ?", *establishmentId)
	} else {
		dbCtx = dbCtx.Where("establishment_id IS NULL")
	}

	var results []*PriceEntry
	err := dbCtx.Order("valid_from DESC, id DESC").Limit(1).Find(&results).Error
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, nil
	}
	return results[0], nil
}

// priceEntryExcelRow holds one parsed line of a mercuriale import file.
type priceEntryExcelRow struct {
	SupplierName      string
	ProductReference  string
	EstablishmentName string
	UnitPrice         decimal.Decimal
	AlertThreshold    decimal.Decimal
	ValidFrom         time.Time
	ValidTo           *time.Time
}

func populatePriceEntryExcelRow(row []string, idx int) (*priceEntryExcelRow, error) {
	cell := func(i int) string {
		if i < len(row) {
			return strings.TrimSpace(row[i])
		}
		return ""
	}

	excelRow := priceEntryExcelRow{
		SupplierName:      cell(0),
		ProductReference:  cell(1),
		EstablishmentName: cell(2),
	}
	if excelRow.SupplierName == "" {
		return nil, fmt.Errorf("supplier name is empty in row %d", idx+2)
	}
	if excelRow.ProductReference == "" {
		return nil, fmt.Errorf("product reference is empty in row %d", idx+2)
	}

	unitPrice, err := utils.ParseDecimal(cell(3))
	if err != nil {
		return nil, fmt.Errorf("could not parse unit price in row %d: %v", idx+2, err)
	}
	excelRow.UnitPrice = unitPrice

	if cell(4) != "" {
		threshold, err := utils.ParseDecimal(cell(4))
		if err != nil {
			return nil, fmt.Errorf("could not parse alert threshold in row %d: %v", idx+2, err)
		}
		excelRow.AlertThreshold = threshold
	}

	validFrom, err := utils.ParseDate(cell(5))
	if err != nil {
		return nil, fmt.Errorf("could not parse valid_from in row %d: %v", idx+2, err)
	}
	excelRow.ValidFrom = validFrom

	if cell(6) != "" {
		validTo, err := utils.ParseDate(cell(6))
		if err != nil {
			return nil, fmt.Errorf("could not parse valid_to in row %d: %v", idx+2, err)
		}
		excelRow.ValidTo = &validTo
	}
	return &excelRow, nil
}

// ImportPriceEntriesFromXlsx loads a mercuriale sheet. Expected columns:
// supplier name, product reference, establishment name (empty = group-wide),
// unit price, alert threshold (empty = default), valid from, valid to.
func ImportPriceEntriesFromXlsx(ctx context.Context, fileName string, file io.Reader) (int, error) {
	if file == nil {
		return 0, errors.New("nil file provided")
	}
	if !strings.HasSuffix(fileName, ".xlsx") {
		return 0, errors.New("invalid file type: only .xlsx files are allowed")
	}

	organizationId, ok := utils.GetOrganizationIdFromContext(ctx)
	if !ok || organizationId == "" {
		return 0, errors.New("organization id is required")
	}

	f, err := excelize.OpenReader(file)
	if err != nil {
		return 0, fmt.Errorf("unable to open Excel file: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(f.GetSheetName(0))
	if err != nil {
		return 0, fmt.Errorf("unable to read sheet: %v", err)
	}
	if len(rows) < 2 {
		return 0, errors.New("file has no data rows")
	}

	release, err := utils.DocumentLock(ctx, "mercuriale", organizationId, "priceEntry.go", "ImportPriceEntriesFromXlsx")
	if err != nil {
		return 0, err
	}
	defer release()

	db := config.GetDB()
	tx := db.Begin()

	imported := 0
	for idx, row := range rows[1:] {

		excelRow, err := populatePriceEntryExcelRow(row, idx)
		if err != nil {
			tx.Rollback()
			return 0, err
		}

		var supplier Supplier
		err = tx.WithContext(ctx).Where("organization_id = ? AND name = ?", organizationId, excelRow.SupplierName).First(&supplier).Error
		if err != nil {
			tx.Rollback()
			return 0, fmt.Errorf("supplier not found in row %d: %v", idx+2, err)
		}

		var product SupplierProduct
		err = tx.WithContext(ctx).Where("organization_id = ? AND supplier_id = ? AND reference = ?",
			organizationId, supplier.ID, excelRow.ProductReference).First(&product).Error
		if err != nil {
			tx.Rollback()
			return 0, fmt.Errorf("product reference not found in row %d: %v", idx+2, err)
		}

		var establishmentId *int
		if excelRow.EstablishmentName != "" {
			var establishment Establishment
			err = tx.WithContext(ctx).Where("organization_id = ? AND name = ?", organizationId, excelRow.EstablishmentName).First(&establishment).Error
			if err != nil {
				tx.Rollback()
				return 0, fmt.Errorf("establishment not found in row %d: %v", idx+2, err)
			}
			establishmentId = &establishment.ID
		}

		threshold := excelRow.AlertThreshold
		if threshold.IsZero() {
			threshold = DefaultAlertThreshold
		}

		entry := PriceEntry{
			OrganizationId:    organizationId,
			SupplierProductId: product.ID,
			EstablishmentId:   establishmentId,
			UnitPrice:         excelRow.UnitPrice,
			AlertThreshold:    threshold,
			ValidFrom:         excelRow.ValidFrom,
			ValidTo:           excelRow.ValidTo,
		}
		if err := tx.WithContext(ctx).Create(&entry).Error; err != nil {
			tx.Rollback()
			return 0, fmt.Errorf("could not save row %d: %v", idx+2, err)
		}
		imported++
	}

	if err := tx.Commit().Error; err != nil {
		return 0, err
	}
	return imported, nil
}
