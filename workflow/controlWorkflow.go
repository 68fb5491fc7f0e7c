package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/gastrodata/mercuriale_backend/config"
	"github.com/gastrodata/mercuriale_backend/models"
	"github.com/gastrodata/mercuriale_backend/utils"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// PriceLookup resolves the negotiated price to control a line against.
// A (nil, nil) result means no price applies, which the engine reports as
// a missing-price alert rather than an error.
type PriceLookup interface {
	FindApplicablePrice(ctx context.Context, organizationId string, supplierProductId int, establishmentId int, date time.Time) (*models.PriceEntry, error)
}

// CatalogPriceLookup reads the mercuriale through the transaction that the
// enclosing control run owns.
type CatalogPriceLookup struct {
	Tx *gorm.DB
}

func (l CatalogPriceLookup) FindApplicablePrice(ctx context.Context, organizationId string, supplierProductId int, establishmentId int, date time.Time) (*models.PriceEntry, error) {
	return models.FindApplicablePrice(ctx, l.Tx, organizationId, supplierProductId, establishmentId, date)
}

// EvaluateDeliveryLine runs the ordered per-line checks and returns the
// fresh alert set. Checks short-circuit: a line with no catalog match gets
// exactly one unknown-product alert and nothing else; a line whose price
// cannot be resolved skips the price comparison.
func EvaluateDeliveryLine(ctx context.Context, organizationId string, note *models.DeliveryNote, line *models.DeliveryLine, lookup PriceLookup) ([]models.ControlAlert, error) {
	var alerts []models.ControlAlert

	// unknown product
	if line.SupplierProductId == nil || *line.SupplierProductId == 0 {
		alerts = append(alerts, models.ControlAlert{
			OrganizationId: organizationId,
			DeliveryLineId: line.ID,
			Kind:           models.ControlAlertKindUnknownProduct,
			Message: fmt.Sprintf("product %q (code %q) is not in the supplier catalog",
				line.Designation, line.ProductCode),
		})
		return alerts, nil
	}

	unit := line.Unit
	if unit == "" {
		unit = "unit"
	}

	// quantity variance
	if line.OrderedQty != nil && !line.OrderedQty.IsZero() {
		ordered := *line.OrderedQty
		delivered := line.DeliveredQty
		if ordered.Sub(delivered).Abs().GreaterThan(quantityEpsilon) {
			deviation := DeviationPercent(ordered, delivered)
			expected := ordered
			received := delivered
			alerts = append(alerts, models.ControlAlert{
				OrganizationId: organizationId,
				DeliveryLineId: line.ID,
				Kind:           models.ControlAlertKindQuantityVariance,
				Message: fmt.Sprintf("delivered %s %s but ordered %s %s (%s%%)",
					delivered.StringFixed(3), unit, ordered.StringFixed(3), unit, signedPercent(deviation)),
				ExpectedValue: &expected,
				ReceivedValue: &received,
				DeviationPct:  &deviation,
			})
		}
	}

	// price resolution
	lookupDate := time.Now()
	if note.DeliveryDate != nil {
		lookupDate = *note.DeliveryDate
	}
	entry, err := lookup.FindApplicablePrice(ctx, organizationId, *line.SupplierProductId, note.EstablishmentId, lookupDate)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		alerts = append(alerts, models.ControlAlert{
			OrganizationId: organizationId,
			DeliveryLineId: line.ID,
			Kind:           models.ControlAlertKindMissingPrice,
			Message: fmt.Sprintf("no negotiated price for %q on %s",
				line.Designation, lookupDate.Format("2006-01-02")),
		})
		return alerts, nil
	}

	// price variance
	deviation := DeviationPercent(entry.UnitPrice, line.UnitPrice)
	if deviation.Abs().GreaterThan(entry.AlertThreshold) {
		direction := "higher"
		if deviation.Sign() < 0 {
			direction = "lower"
		}
		expected := entry.UnitPrice
		received := line.UnitPrice
		alerts = append(alerts, models.ControlAlert{
			OrganizationId: organizationId,
			DeliveryLineId: line.ID,
			Kind:           models.ControlAlertKindPriceVariance,
			Message: fmt.Sprintf("billed %s per %s is %s than the negotiated %s (%s%%, threshold %s%%)",
				received.StringFixed(2), unit, direction, expected.StringFixed(2),
				signedPercent(deviation), entry.AlertThreshold.Round(1).StringFixed(1)),
			ExpectedValue: &expected,
			ReceivedValue: &received,
			DeviationPct:  &deviation,
		})
	}

	return alerts, nil
}

// ClassifyLineControlStatus derives the line status from its fresh alert
// set. Only the two variance kinds drive the status; unknown-product and
// missing-price alerts both leave the line uncontrolled.
func ClassifyLineControlStatus(alerts []models.ControlAlert) models.LineControlStatus {
	hasQty := false
	hasPrice := false
	for i := range alerts {
		switch alerts[i].Kind {
		case models.ControlAlertKindQuantityVariance:
			hasQty = true
		case models.ControlAlertKindPriceVariance:
			hasPrice = true
		}
	}
	switch {
	case len(alerts) == 0:
		return models.LineControlStatusOK
	case hasQty && hasPrice:
		return models.LineControlStatusMultipleVariance
	case hasQty:
		return models.LineControlStatusQuantityVariance
	case hasPrice:
		return models.LineControlStatusPriceVariance
	default:
		return models.LineControlStatusUncontrolled
	}
}

// partitionAlerts splits the persisted alerts of a line into ids of
// untreated rows to purge and the treated rows to keep.
func partitionAlerts(alerts []models.ControlAlert) (untreatedIds []int, treated []models.ControlAlert) {
	for i := range alerts {
		if alerts[i].Treated != nil && *alerts[i].Treated {
			treated = append(treated, alerts[i])
		} else {
			untreatedIds = append(untreatedIds, alerts[i].ID)
		}
	}
	return untreatedIds, treated
}

// ProcessDeliveryNoteControlWorkflow controls every line of the note inside
// the given transaction: purges untreated alerts, re-evaluates each line,
// stores the fresh alerts and line statuses, and escalates the note to
// Anomaly when any alert was raised. Zero alerts leave the note status
// untouched. Returns the number of alerts generated in this pass.
//
// Callers must serialize runs per note; the engine takes no lock itself.
func ProcessDeliveryNoteControlWorkflow(ctx context.Context, tx *gorm.DB, logger *logrus.Logger, note *models.DeliveryNote, lookup PriceLookup) (int, error) {
	organizationId := note.OrganizationId
	totalAlerts := 0

	for i := range note.Lines {
		line := &note.Lines[i]

		var existing []models.ControlAlert
		err := tx.WithContext(ctx).Where("delivery_line_id = ?", line.ID).Find(&existing).Error
		if err != nil {
			config.LogError(logger, "controlWorkflow.go", "ProcessDeliveryNoteControlWorkflow", "querying line alerts", line.ID, err)
			return 0, err
		}
		untreatedIds, treated := partitionAlerts(existing)
		if len(untreatedIds) > 0 {
			err = tx.WithContext(ctx).Where("id IN ?", untreatedIds).Delete(&models.ControlAlert{}).Error
			if err != nil {
				config.LogError(logger, "controlWorkflow.go", "ProcessDeliveryNoteControlWorkflow", "purging untreated alerts", line.ID, err)
				return 0, err
			}
		}

		fresh, err := EvaluateDeliveryLine(ctx, organizationId, note, line, lookup)
		if err != nil {
			config.LogError(logger, "controlWorkflow.go", "ProcessDeliveryNoteControlWorkflow", "evaluating line", line.ID, err)
			return 0, err
		}
		if len(fresh) > 0 {
			for j := range fresh {
				fresh[j].Treated = utils.NewFalse()
			}
			err = tx.WithContext(ctx).Create(&fresh).Error
			if err != nil {
				config.LogError(logger, "controlWorkflow.go", "ProcessDeliveryNoteControlWorkflow", "saving alerts", line.ID, err)
				return 0, err
			}
		}

		status := ClassifyLineControlStatus(fresh)
		err = tx.WithContext(ctx).Model(&models.DeliveryLine{}).
			Where("id = ?", line.ID).Update("control_status", status).Error
		if err != nil {
			config.LogError(logger, "controlWorkflow.go", "ProcessDeliveryNoteControlWorkflow", "updating line status", line.ID, err)
			return 0, err
		}

		line.ControlStatus = status
		line.Alerts = append(treated, fresh...)
		totalAlerts += len(fresh)
	}

	if totalAlerts > 0 {
		err := tx.WithContext(ctx).Model(&models.DeliveryNote{}).
			Where("id = ?", note.ID).Update("status", models.DeliveryNoteStatusAnomaly).Error
		if err != nil {
			config.LogError(logger, "controlWorkflow.go", "ProcessDeliveryNoteControlWorkflow", "updating note status", note.ID, err)
			return 0, err
		}
		note.Status = models.DeliveryNoteStatusAnomaly
	}

	return totalAlerts, nil
}
