package models_test

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gastrodata/mercuriale_backend/config"
	"github.com/gastrodata/mercuriale_backend/models"
	"github.com/gastrodata/mercuriale_backend/utils"
	"github.com/gastrodata/mercuriale_backend/workflow"
	"github.com/shopspring/decimal"
)

// runControlPass drives the engine directly over the stored note, outside
// the validate transition, so repeated passes over existing alerts can be
// observed.
func runControlPass(t *testing.T, ctx context.Context, noteId int) *models.DeliveryNote {
	t.Helper()

	note, err := models.GetDeliveryNote(ctx, noteId)
	if err != nil {
		t.Fatalf("load note: %v", err)
	}

	db := config.GetDB()
	tx := db.Begin()
	if _, err := workflow.ProcessDeliveryNoteControlWorkflow(ctx, tx, config.GetLogger(), note, workflow.CatalogPriceLookup{Tx: tx}); err != nil {
		tx.Rollback()
		t.Fatalf("control pass: %v", err)
	}
	if err := tx.Commit().Error; err != nil {
		t.Fatalf("commit control pass: %v", err)
	}

	reloaded, err := models.GetDeliveryNote(ctx, noteId)
	if err != nil {
		t.Fatalf("reload note: %v", err)
	}
	return reloaded
}

func alertMessages(alerts []models.ControlAlert) map[string]bool {
	messages := make(map[string]bool, len(alerts))
	for i := range alerts {
		messages[alerts[i].Message] = true
	}
	return messages
}

func TestControlPass_SecondRunKeepsTreatedAlerts(t *testing.T) {
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires docker)")
	}

	ctx := setupIntegrationEnv(t)
	supplier, product := mustCreateSupplierWithProduct(t, ctx)

	// the unfiltered supplier listing goes through the cached list; a second
	// call is served from redis and must agree with the first
	suppliers, err := models.GetSuppliers(ctx, nil)
	if err != nil {
		t.Fatalf("list suppliers: %v", err)
	}
	if len(suppliers) != 1 || suppliers[0].ID != supplier.ID {
		t.Fatalf("expected the one created supplier, got %d rows", len(suppliers))
	}
	suppliers, err = models.GetSuppliers(ctx, nil)
	if err != nil {
		t.Fatalf("list suppliers from cache: %v", err)
	}
	if len(suppliers) != 1 || suppliers[0].ID != supplier.ID {
		t.Fatalf("cached supplier list diverged, got %d rows", len(suppliers))
	}

	establishment, err := models.CreateEstablishment(ctx, &models.NewEstablishment{Name: "Annexe"})
	if err != nil {
		t.Fatalf("create establishment: %v", err)
	}
	ctx = utils.SetEstablishmentIdInContext(ctx, establishment.ID)

	if _, err := models.CreatePriceEntry(ctx, &models.NewPriceEntry{
		SupplierProductId: product.ID,
		UnitPrice:         decimal.RequireFromString("2.50"),
		AlertThreshold:    decimal.NewFromInt(5),
		ValidFrom:         time.Now().AddDate(0, -1, 0),
	}); err != nil {
		t.Fatalf("create price: %v", err)
	}

	ordered := decimal.NewFromInt(10)
	deliveryDate := time.Now()
	note, err := models.CreateDeliveryNote(ctx, &models.NewDeliveryNote{
		SupplierId:   supplier.ID,
		NoteNumber:   "BL-TEST-2",
		DeliveryDate: &deliveryDate,
		Lines: []models.NewDeliveryLine{
			{Designation: "Tomate grappe", ProductCode: "TOM-GR", OrderedQty: &ordered, DeliveredQty: decimal.NewFromInt(8), UnitPrice: decimal.RequireFromString("4.00"), Unit: "kg"},
			{Designation: "Creme fraiche", ProductCode: "CRE-30", DeliveredQty: decimal.NewFromInt(6), UnitPrice: decimal.RequireFromString("3.20"), Unit: "L"},
		},
	})
	if err != nil {
		t.Fatalf("create note: %v", err)
	}
	// no explicit site on the input: the caller's establishment applies
	if note.EstablishmentId != establishment.ID {
		t.Fatalf("expected establishment %d from context, got %d", establishment.ID, note.EstablishmentId)
	}

	validated, err := workflow.ValidateDeliveryNote(ctx, note.ID)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if validated.Status != models.DeliveryNoteStatusAnomaly {
		t.Fatalf("expected Anomaly status, got %s", validated.Status)
	}
	if len(validated.Lines[0].Alerts) != 2 || len(validated.Lines[1].Alerts) != 1 {
		t.Fatalf("expected 2+1 alerts, got %d+%d", len(validated.Lines[0].Alerts), len(validated.Lines[1].Alerts))
	}
	for _, line := range validated.Lines {
		for _, alert := range line.Alerts {
			if alert.Treated == nil || *alert.Treated {
				t.Fatalf("fresh alert %d should be untreated", alert.ID)
			}
		}
	}
	firstMessages := alertMessages(append(validated.Lines[0].Alerts, validated.Lines[1].Alerts...))

	// a second pass over unchanged input rebuilds the same untreated set
	// without accumulating duplicates
	second := runControlPass(t, ctx, note.ID)
	if len(second.Lines[0].Alerts) != 2 || len(second.Lines[1].Alerts) != 1 {
		t.Fatalf("alert counts changed on second pass: %d+%d", len(second.Lines[0].Alerts), len(second.Lines[1].Alerts))
	}
	secondMessages := alertMessages(append(second.Lines[0].Alerts, second.Lines[1].Alerts...))
	if len(secondMessages) != len(firstMessages) {
		t.Fatalf("expected identical alert sets, got %v vs %v", firstMessages, secondMessages)
	}
	for message := range firstMessages {
		if !secondMessages[message] {
			t.Fatalf("alert %q disappeared on second pass", message)
		}
	}

	// treat the quantity alert; later passes must leave it alone while the
	// untreated rest is still purged and rebuilt
	var treatedId int
	var treatedMessage string
	for _, alert := range second.Lines[0].Alerts {
		if alert.Kind == models.ControlAlertKindQuantityVariance {
			treatedId = alert.ID
			treatedMessage = alert.Message
		}
	}
	if treatedId == 0 {
		t.Fatalf("no quantity alert found to treat")
	}
	if _, err := models.TreatControlAlert(ctx, treatedId); err != nil {
		t.Fatalf("treat alert: %v", err)
	}

	third := runControlPass(t, ctx, note.ID)
	if len(third.Lines[0].Alerts) != 3 {
		t.Fatalf("expected the treated alert plus 2 fresh ones, got %d", len(third.Lines[0].Alerts))
	}
	treatedSurvived := false
	untreatedCount := 0
	for _, alert := range third.Lines[0].Alerts {
		if alert.ID == treatedId {
			treatedSurvived = true
			if alert.Treated == nil || !*alert.Treated {
				t.Fatalf("surviving alert %d lost its treated flag", alert.ID)
			}
			if alert.Message != treatedMessage {
				t.Fatalf("treated alert message changed: %q", alert.Message)
			}
		} else {
			untreatedCount++
		}
	}
	if !treatedSurvived {
		t.Fatalf("treated alert %d was purged", treatedId)
	}
	if untreatedCount != 2 {
		t.Fatalf("expected 2 fresh untreated alerts, got %d", untreatedCount)
	}
	if len(third.Lines[1].Alerts) != 1 {
		t.Fatalf("unknown-product alert duplicated: got %d", len(third.Lines[1].Alerts))
	}
}

func TestStrictImmutability_AnomalyCorrectionFlow(t *testing.T) {
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires docker)")
	}

	ctx := setupIntegrationEnv(t)
	supplier, product := mustCreateSupplierWithProduct(t, ctx)

	if _, err := models.CreatePriceEntry(ctx, &models.NewPriceEntry{
		SupplierProductId: product.ID,
		UnitPrice:         decimal.RequireFromString("2.50"),
		AlertThreshold:    decimal.NewFromInt(5),
		ValidFrom:         time.Now().AddDate(0, -1, 0),
	}); err != nil {
		t.Fatalf("create price: %v", err)
	}

	ordered := decimal.NewFromInt(10)
	note, err := models.CreateDeliveryNote(ctx, &models.NewDeliveryNote{
		SupplierId: supplier.ID,
		NoteNumber: "BL-TEST-3",
		Lines: []models.NewDeliveryLine{
			{Designation: "Tomate grappe", ProductCode: "TOM-GR", OrderedQty: &ordered, DeliveredQty: decimal.NewFromInt(8), UnitPrice: decimal.RequireFromString("4.00"), Unit: "kg"},
		},
	})
	if err != nil {
		t.Fatalf("create note: %v", err)
	}

	validated, err := workflow.ValidateDeliveryNote(ctx, note.ID)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if validated.Status != models.DeliveryNoteStatusAnomaly {
		t.Fatalf("expected Anomaly status, got %s", validated.Status)
	}

	t.Setenv("STRICT_NOTE_IMMUTABLE", "true")

	// strict mode never blocks correcting an anomaly note
	corrected, err := models.UpdateDeliveryNoteLines(ctx, note.ID, []models.NewDeliveryLine{
		{Designation: "Tomate grappe", ProductCode: "TOM-GR", OrderedQty: &ordered, DeliveredQty: decimal.NewFromInt(10), UnitPrice: decimal.RequireFromString("2.50"), Unit: "kg"},
	})
	if err != nil {
		t.Fatalf("correct anomaly note: %v", err)
	}
	if corrected.ControlVersion != 2 {
		t.Fatalf("expected control version 2 after correction, got %d", corrected.ControlVersion)
	}

	revalidated, err := workflow.ValidateDeliveryNote(ctx, note.ID)
	if err != nil {
		t.Fatalf("re-validate: %v", err)
	}
	if revalidated.Status != models.DeliveryNoteStatusValidated {
		t.Fatalf("expected Validated after correction, got %s", revalidated.Status)
	}
	if revalidated.Lines[0].ControlStatus != models.LineControlStatusOK {
		t.Fatalf("expected OK line status, got %s", revalidated.Lines[0].ControlStatus)
	}

	// a cleanly validated note is frozen under the flag
	if _, err := models.UpdateDeliveryNoteLines(ctx, note.ID, []models.NewDeliveryLine{
		{Designation: "Tomate grappe", ProductCode: "TOM-GR", DeliveredQty: decimal.NewFromInt(5), UnitPrice: decimal.RequireFromString("2.50"), Unit: "kg"},
	}); err == nil {
		t.Fatalf("expected editing a validated note to fail in strict mode")
	}
}
