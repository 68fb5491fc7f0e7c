package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gastrodata/mercuriale_backend/config"
	"github.com/gastrodata/mercuriale_backend/utils"
	"github.com/shopspring/decimal"
)

// DeliveryNote is one supplier shipment document (bon de livraison).
// EstablishmentId 0 means the receiving site is unknown. ControlVersion
// increments whenever the lines change so a validation pass can be keyed
// to the exact line set it controlled.
type DeliveryNote struct {
	ID              int                `gorm:"primary_key" json:"id"`
	OrganizationId  string             `gorm:"index;not null" json:"organization_id"`
	SupplierId      int                `gorm:"index;not null" json:"supplier_id"`
	Supplier        *Supplier          `json:"supplier,omitempty"`
	EstablishmentId int                `gorm:"index;not null;default:0" json:"establishment_id"`
	Establishment   *Establishment     `json:"establishment,omitempty"`
	NoteNumber      string             `gorm:"index;size:100;not null" json:"note_number"`
	DeliveryDate    *time.Time         `json:"delivery_date"`
	Status          DeliveryNoteStatus `gorm:"type:enum('Draft','Validated','Anomaly','Archived');default:Draft" json:"status"`
	ControlVersion  int                `gorm:"not null;default:1" json:"control_version"`
	Lines           []DeliveryLine     `gorm:"foreignkey:DeliveryNoteId" json:"lines"`
	CreatedAt       time.Time          `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time          `gorm:"autoUpdateTime" json:"updated_at"`
}

func (n DeliveryNote) GetOrganizationId() string {
	return n.OrganizationId
}

// DeliveryLine is one product row as scanned from the paper note. The
// designation and code are kept verbatim; SupplierProductId is filled when
// the code matched the catalog and stays nil for unknown products.
type DeliveryLine struct {
	ID                int               `gorm:"primary_key" json:"id"`
	DeliveryNoteId    int               `gorm:"index;not null" json:"delivery_note_id"`
	Designation       string            `gorm:"size:200;not null" json:"designation"`
	ProductCode       string            `gorm:"size:64" json:"product_code"`
	OrderedQty        *decimal.Decimal  `gorm:"type:decimal(20,4)" json:"ordered_qty"`
	DeliveredQty      decimal.Decimal   `gorm:"type:decimal(20,4);default:0" json:"delivered_qty"`
	UnitPrice         decimal.Decimal   `gorm:"type:decimal(20,4);default:0" json:"unit_price"`
	LineTotal         decimal.Decimal   `gorm:"type:decimal(20,4);default:0" json:"line_total"`
	Unit              string            `gorm:"size:20" json:"unit"`
	ControlStatus     LineControlStatus `gorm:"type:enum('OK','QuantityVariance','PriceVariance','MultipleVariance','Uncontrolled');default:Uncontrolled" json:"control_status"`
	SupplierProductId *int              `gorm:"index" json:"supplier_product_id"`
	SupplierProduct   *SupplierProduct  `json:"supplier_product,omitempty"`
	Alerts            []ControlAlert    `gorm:"foreignkey:DeliveryLineId" json:"alerts"`
	CreatedAt         time.Time         `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time         `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewDeliveryLine struct {
	Designation  string           `json:"designation" binding:"required"`
	ProductCode  string           `json:"product_code"`
	OrderedQty   *decimal.Decimal `json:"ordered_qty"`
	DeliveredQty decimal.Decimal  `json:"delivered_qty" binding:"required"`
	UnitPrice    decimal.Decimal  `json:"unit_price"`
	Unit         string           `json:"unit"`
}

type NewDeliveryNote struct {
	SupplierId      int               `json:"supplier_id" binding:"required"`
	EstablishmentId int               `json:"establishment_id"`
	NoteNumber      string            `json:"note_number" binding:"required"`
	DeliveryDate    *time.Time        `json:"delivery_date"`
	Lines           []NewDeliveryLine `json:"lines" binding:"required,min=1,dive"`
}

func (input *NewDeliveryNote) validate(ctx context.Context, organizationId string) error {
	if err := utils.ValidateResourceId[Supplier](ctx, organizationId, input.SupplierId); err != nil {
		return errors.New("invalid supplier id")
	}
	if input.EstablishmentId > 0 {
		if err := utils.ValidateResourceId[Establishment](ctx, organizationId, input.EstablishmentId); err != nil {
			return errors.New("invalid establishment id")
		}
	}
	if len(input.Lines) == 0 {
		return errors.New("a delivery note needs at least one line")
	}
	count, err := utils.ResourceCountWhere[DeliveryNote](ctx, organizationId,
		"supplier_id = ? AND note_number = ?", input.SupplierId, input.NoteNumber)
	if err != nil {
		return err
	}
	if count > 0 {
		return errors.New("duplicate note number for this supplier")
	}
	for i := range input.Lines {
		if input.Lines[i].DeliveredQty.IsNegative() {
			return fmt.Errorf("delivered quantity must not be negative in line %d", i+1)
		}
		if input.Lines[i].UnitPrice.IsNegative() {
			return fmt.Errorf("unit price must not be negative in line %d", i+1)
		}
	}
	return nil
}

// buildLine turns a scanned line into the stored row, matching the product
// code against the supplier catalog. A miss is not an error here; the
// control run raises the unknown-product alert later.
func buildLine(ctx context.Context, organizationId string, supplierId int, input *NewDeliveryLine) (DeliveryLine, error) {
	line := DeliveryLine{
		Designation:   input.Designation,
		ProductCode:   input.ProductCode,
		OrderedQty:    input.OrderedQty,
		DeliveredQty:  input.DeliveredQty,
		UnitPrice:     input.UnitPrice,
		LineTotal:     input.DeliveredQty.Mul(input.UnitPrice),
		Unit:          input.Unit,
		ControlStatus: LineControlStatusUncontrolled,
	}
	if input.ProductCode != "" {
		product, err := FindSupplierProductByReference(ctx, organizationId, supplierId, input.ProductCode)
		if err != nil {
			return line, err
		}
		if product != nil {
			line.SupplierProductId = &product.ID
			if input.Unit == "" {
				line.Unit = product.Unit
			}
		}
	}
	return line, nil
}

func CreateDeliveryNote(ctx context.Context, input *NewDeliveryNote) (*DeliveryNote, error) {

	organizationId, ok := utils.GetOrganizationIdFromContext(ctx)
	if !ok || organizationId == "" {
		return nil, errors.New("organization id is required")
	}

	// a note captured without an explicit site falls back to the caller's
	if input.EstablishmentId == 0 {
		if establishmentId, ok := utils.GetEstablishmentIdFromContext(ctx); ok && establishmentId > 0 {
			input.EstablishmentId = establishmentId
		}
	}

	if err := input.validate(ctx, organizationId); err != nil {
		return nil, err
	}

	// the mercuriale holds calendar validity windows, so the delivery date
	// is stored as a local date in the organization's timezone
	if input.DeliveryDate != nil {
		organization, err := GetOrganizationById(ctx, organizationId)
		if err != nil {
			return nil, err
		}
		deliveryDate, err := utils.ConvertToDate(*input.DeliveryDate, organization.Timezone)
		if err != nil {
			return nil, err
		}
		input.DeliveryDate = &deliveryDate
	}

	note := DeliveryNote{
		OrganizationId:  organizationId,
		SupplierId:      input.SupplierId,
		EstablishmentId: input.EstablishmentId,
		NoteNumber:      input.NoteNumber,
		DeliveryDate:    input.DeliveryDate,
		Status:          DeliveryNoteStatusDraft,
		ControlVersion:  1,
	}
	for i := range input.Lines {
		line, err := buildLine(ctx, organizationId, input.SupplierId, &input.Lines[i])
		if err != nil {
			return nil, err
		}
		note.Lines = append(note.Lines, line)
	}

	// db action
	db := config.GetDB()
	err := db.WithContext(ctx).Create(&note).Error
	if err != nil {
		return nil, err
	}

	return &note, nil
}

func GetDeliveryNote(ctx context.Context, id int) (*DeliveryNote, error) {

	organizationId, ok := utils.GetOrganizationIdFromContext(ctx)
	if !ok || organizationId == "" {
		return nil, errors.New("organization id is required")
	}

	return utils.FetchModel[DeliveryNote](ctx, organizationId, id,
		"Supplier", "Establishment", "Lines", "Lines.SupplierProduct", "Lines.Alerts")
}

func GetDeliveryNotes(ctx context.Context, supplierId *int, establishmentId *int, status *DeliveryNoteStatus) ([]*DeliveryNote, error) {
	organizationId, ok := utils.GetOrganizationIdFromContext(ctx)
	if !ok || organizationId == "" {
		return nil, errors.New("organization id is required")
	}

	db := config.GetDB()
	var results []*DeliveryNote

	dbCtx := db.WithContext(ctx).Preload("Supplier").Preload("Establishment").
		Where("organization_id = ?", organizationId)
	if supplierId != nil && *supplierId > 0 {
		dbCtx = dbCtx.Where("supplier_id = ?", *supplierId)
	}
	if establishmentId != nil && *establishmentId > 0 {
		dbCtx = dbCtx.Where("establishment_id = ?", *establishmentId)
	}
	if status != nil {
		dbCtx = dbCtx.Where("status = ?", *status)
	}
	err := dbCtx.Order("created_at DESC, id DESC").Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

// canEditLines says whether the current note status allows replacing lines.
// Anomaly notes stay editable so a human can correct what the control pass
// flagged and re-validate.
func canEditLines(status DeliveryNoteStatus) bool {
	switch status {
	case DeliveryNoteStatusDraft, DeliveryNoteStatusAnomaly:
		return true
	case DeliveryNoteStatusValidated:
		return !config.StrictNoteImmutability()
	default:
		return false
	}
}

// UpdateDeliveryNoteLines replaces the whole line set of a note and bumps
// its control version. Treated alerts are line-scoped, so replacing the
// lines discards them together with their rows; only untouched notes and
// anomaly corrections go through here.
func UpdateDeliveryNoteLines(ctx context.Context, id int, inputs []NewDeliveryLine) (*DeliveryNote, error) {

	organizationId, ok := utils.GetOrganizationIdFromContext(ctx)
	if !ok || organizationId == "" {
		return nil, errors.New("organization id is required")
	}
	if len(inputs) == 0 {
		return nil, errors.New("a delivery note needs at least one line")
	}

	note, err := utils.FetchModel[DeliveryNote](ctx, organizationId, id)
	if err != nil {
		return nil, err
	}
	if !canEditLines(note.Status) {
		return nil, fmt.Errorf("cannot edit lines of a %s note", string(note.Status))
	}

	newLines := make([]DeliveryLine, 0, len(inputs))
	for i := range inputs {
		if inputs[i].DeliveredQty.IsNegative() {
			return nil, fmt.Errorf("delivered quantity must not be negative in line %d", i+1)
		}
		if inputs[i].UnitPrice.IsNegative() {
			return nil, fmt.Errorf("unit price must not be negative in line %d", i+1)
		}
		line, err := buildLine(ctx, organizationId, note.SupplierId, &inputs[i])
		if err != nil {
			return nil, err
		}
		line.DeliveryNoteId = note.ID
		newLines = append(newLines, line)
	}

	db := config.GetDB()
	tx := db.Begin()

	var lineIds []int
	if err := tx.WithContext(ctx).Model(&DeliveryLine{}).
		Where("delivery_note_id = ?", note.ID).Pluck("id", &lineIds).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if len(lineIds) > 0 {
		if err := tx.WithContext(ctx).Where("delivery_line_id IN ?", lineIds).
			Delete(&ControlAlert{}).Error; err != nil {
			tx.Rollback()
			return nil, err
		}
		if err := tx.WithContext(ctx).Where("delivery_note_id = ?", note.ID).
			Delete(&DeliveryLine{}).Error; err != nil {
			tx.Rollback()
			return nil, err
		}
	}
	if err := tx.WithContext(ctx).Create(&newLines).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.WithContext(ctx).Model(&DeliveryNote{}).Where("id = ?", note.ID).
		Update("control_version", note.ControlVersion+1).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	return GetDeliveryNote(ctx, id)
}

func ArchiveDeliveryNote(ctx context.Context, id int) (*DeliveryNote, error) {

	organizationId, ok := utils.GetOrganizationIdFromContext(ctx)
	if !ok || organizationId == "" {
		return nil, errors.New("organization id is required")
	}

	note, err := utils.FetchModel[DeliveryNote](ctx, organizationId, id)
	if err != nil {
		return nil, err
	}
	if note.Status == DeliveryNoteStatusDraft {
		return nil, errors.New("cannot archive a draft note")
	}
	if note.Status == DeliveryNoteStatusArchived {
		return note, nil
	}

	db := config.GetDB()
	err = db.WithContext(ctx).Model(note).
		Update("status", DeliveryNoteStatusArchived).Error
	if err != nil {
		return nil, err
	}
	note.Status = DeliveryNoteStatusArchived
	return note, nil
}
