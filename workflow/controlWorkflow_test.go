package workflow

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/gastrodata/mercuriale_backend/models"
	"github.com/shopspring/decimal"
)

// fakePriceLookup serves canned price entries keyed by supplier product id
// and records every lookup it receives.
type fakePriceLookup struct {
	entries map[int]*models.PriceEntry
	calls   []fakeLookupCall
}

type fakeLookupCall struct {
	supplierProductId int
	establishmentId   int
	date              time.Time
}

func (f *fakePriceLookup) FindApplicablePrice(ctx context.Context, organizationId string, supplierProductId int, establishmentId int, date time.Time) (*models.PriceEntry, error) {
	f.calls = append(f.calls, fakeLookupCall{supplierProductId, establishmentId, date})
	return f.entries[supplierProductId], nil
}

func testNote(establishmentId int) *models.DeliveryNote {
	deliveryDate := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	return &models.DeliveryNote{
		ID:              1,
		OrganizationId:  "org-1",
		SupplierId:      1,
		EstablishmentId: establishmentId,
		NoteNumber:      "BL-1",
		DeliveryDate:    &deliveryDate,
		Status:          models.DeliveryNoteStatusDraft,
	}
}

func testLine(productId int, ordered *decimal.Decimal, delivered, unitPrice string) *models.DeliveryLine {
	line := &models.DeliveryLine{
		ID:           10,
		Designation:  "Tomate grappe",
		ProductCode:  "TOM-GR",
		DeliveredQty: decimal.RequireFromString(delivered),
		UnitPrice:    decimal.RequireFromString(unitPrice),
		Unit:         "kg",
	}
	if productId > 0 {
		line.SupplierProductId = &productId
	}
	line.OrderedQty = ordered
	return line
}

func priceEntry(productId int, unitPrice, threshold string) *models.PriceEntry {
	return &models.PriceEntry{
		ID:                100,
		OrganizationId:    "org-1",
		SupplierProductId: productId,
		UnitPrice:         decimal.RequireFromString(unitPrice),
		AlertThreshold:    decimal.RequireFromString(threshold),
	}
}

func qty(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func TestUnknownProductShortCircuits(t *testing.T) {
	lookup := &fakePriceLookup{entries: map[int]*models.PriceEntry{}}
	note := testNote(0)
	line := testLine(0, qty("10"), "8", "2.50")

	alerts, err := EvaluateDeliveryLine(context.Background(), "org-1", note, line, lookup)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(alerts) != 1 {
		t.Fatalf("expected exactly one alert, got %d", len(alerts))
	}
	if alerts[0].Kind != models.ControlAlertKindUnknownProduct {
		t.Fatalf("expected UnknownProduct alert, got %s", alerts[0].Kind)
	}
	if !strings.Contains(alerts[0].Message, "Tomate grappe") || !strings.Contains(alerts[0].Message, "TOM-GR") {
		t.Fatalf("unknown-product message missing designation or code: %q", alerts[0].Message)
	}
	if len(lookup.calls) != 0 {
		t.Fatalf("price lookup must not run for unknown products, got %d calls", len(lookup.calls))
	}
	if got := ClassifyLineControlStatus(alerts); got != models.LineControlStatusUncontrolled {
		t.Fatalf("expected Uncontrolled, got %s", got)
	}
}

func TestQuantityEpsilonSkipsNoise(t *testing.T) {
	lookup := &fakePriceLookup{entries: map[int]*models.PriceEntry{
		7: priceEntry(7, "2.50", "5"),
	}}
	note := testNote(0)
	line := testLine(7, qty("10.0005"), "10.000", "2.50")

	alerts, err := EvaluateDeliveryLine(context.Background(), "org-1", note, line, lookup)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	for _, a := range alerts {
		if a.Kind == models.ControlAlertKindQuantityVariance {
			t.Fatalf("difference below epsilon must not raise a quantity alert: %q", a.Message)
		}
	}
}

func TestMissingOrZeroOrderedQtySkipsQuantityCheck(t *testing.T) {
	lookup := &fakePriceLookup{entries: map[int]*models.PriceEntry{
		7: priceEntry(7, "2.50", "5"),
	}}
	note := testNote(0)

	for _, ordered := range []*decimal.Decimal{nil, qty("0")} {
		line := testLine(7, ordered, "9999", "2.50")
		alerts, err := EvaluateDeliveryLine(context.Background(), "org-1", note, line, lookup)
		if err != nil {
			t.Fatalf("evaluate: %v", err)
		}
		for _, a := range alerts {
			if a.Kind == models.ControlAlertKindQuantityVariance {
				t.Fatalf("ordered=%v must skip the quantity check entirely", ordered)
			}
		}
	}
}

// Scenario: short delivery and no negotiated price. The missing price is
// not a variance kind, so the line classifies on the quantity alert alone.
func TestShortDeliveryWithMissingPrice(t *testing.T) {
	lookup := &fakePriceLookup{entries: map[int]*models.PriceEntry{}}
	note := testNote(0)
	line := testLine(7, qty("10.000"), "8.000", "2.50")

	alerts, err := EvaluateDeliveryLine(context.Background(), "org-1", note, line, lookup)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(alerts) != 2 {
		t.Fatalf("expected 2 alerts, got %d", len(alerts))
	}
	if alerts[0].Kind != models.ControlAlertKindQuantityVariance {
		t.Fatalf("expected QuantityVariance first, got %s", alerts[0].Kind)
	}
	if alerts[0].DeviationPct == nil || !alerts[0].DeviationPct.Equal(decimal.RequireFromString("-20")) {
		t.Fatalf("expected -20.00 quantity deviation, got %v", alerts[0].DeviationPct)
	}
	if alerts[1].Kind != models.ControlAlertKindMissingPrice {
		t.Fatalf("expected MissingPrice second, got %s", alerts[1].Kind)
	}
	if !strings.Contains(alerts[1].Message, "2026-03-15") {
		t.Fatalf("missing-price message should name the lookup date: %q", alerts[1].Message)
	}
	if got := ClassifyLineControlStatus(alerts); got != models.LineControlStatusQuantityVariance {
		t.Fatalf("expected QuantityVariance status, got %s", got)
	}
}

// Scenario: exact quantity, billed 3.50 against negotiated 3.00 at a 5%
// threshold.
func TestPriceVarianceAboveThreshold(t *testing.T) {
	lookup := &fakePriceLookup{entries: map[int]*models.PriceEntry{
		7: priceEntry(7, "3.00", "5.0"),
	}}
	note := testNote(0)
	line := testLine(7, qty("5.000"), "5.000", "3.50")

	alerts, err := EvaluateDeliveryLine(context.Background(), "org-1", note, line, lookup)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(alerts) != 1 {
		t.Fatalf("expected 1 alert, got %d", len(alerts))
	}
	a := alerts[0]
	if a.Kind != models.ControlAlertKindPriceVariance {
		t.Fatalf("expected PriceVariance, got %s", a.Kind)
	}
	if a.DeviationPct == nil || !a.DeviationPct.Equal(decimal.RequireFromString("16.67")) {
		t.Fatalf("expected +16.67 deviation, got %v", a.DeviationPct)
	}
	if !strings.Contains(a.Message, "higher") {
		t.Fatalf("expected a 'higher' direction word in %q", a.Message)
	}
	if !strings.Contains(a.Message, "5.0") {
		t.Fatalf("expected the threshold in %q", a.Message)
	}
	if got := ClassifyLineControlStatus(alerts); got != models.LineControlStatusPriceVariance {
		t.Fatalf("expected PriceVariance status, got %s", got)
	}
}

// Scenario: billed 3.10 against negotiated 3.00 stays inside the 5%
// threshold.
func TestPriceWithinThresholdIsClean(t *testing.T) {
	lookup := &fakePriceLookup{entries: map[int]*models.PriceEntry{
		7: priceEntry(7, "3.00", "5.0"),
	}}
	note := testNote(0)
	line := testLine(7, qty("5.000"), "5.000", "3.10")

	alerts, err := EvaluateDeliveryLine(context.Background(), "org-1", note, line, lookup)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(alerts) != 0 {
		t.Fatalf("expected no alerts, got %d (%v)", len(alerts), alerts)
	}
	if got := ClassifyLineControlStatus(alerts); got != models.LineControlStatusOK {
		t.Fatalf("expected OK status, got %s", got)
	}
}

// Scenario: short delivery and overbilled price together.
func TestQuantityAndPriceVarianceTogether(t *testing.T) {
	lookup := &fakePriceLookup{entries: map[int]*models.PriceEntry{
		7: priceEntry(7, "3.00", "5.0"),
	}}
	note := testNote(0)
	line := testLine(7, qty("10.000"), "8.000", "4.00")

	alerts, err := EvaluateDeliveryLine(context.Background(), "org-1", note, line, lookup)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(alerts) != 2 {
		t.Fatalf("expected 2 alerts, got %d", len(alerts))
	}
	if got := ClassifyLineControlStatus(alerts); got != models.LineControlStatusMultipleVariance {
		t.Fatalf("expected MultipleVariance status, got %s", got)
	}
}

func TestLowerDirectionWord(t *testing.T) {
	lookup := &fakePriceLookup{entries: map[int]*models.PriceEntry{
		7: priceEntry(7, "3.00", "5.0"),
	}}
	note := testNote(0)
	line := testLine(7, nil, "5.000", "2.50")

	alerts, err := EvaluateDeliveryLine(context.Background(), "org-1", note, line, lookup)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(alerts) != 1 || alerts[0].Kind != models.ControlAlertKindPriceVariance {
		t.Fatalf("expected one price alert, got %v", alerts)
	}
	if !strings.Contains(alerts[0].Message, "lower") {
		t.Fatalf("expected a 'lower' direction word in %q", alerts[0].Message)
	}
}

func TestLookupReceivesNoteEstablishmentAndDate(t *testing.T) {
	lookup := &fakePriceLookup{entries: map[int]*models.PriceEntry{
		7: priceEntry(7, "2.50", "5"),
	}}
	note := testNote(42)
	line := testLine(7, nil, "5", "2.50")

	if _, err := EvaluateDeliveryLine(context.Background(), "org-1", note, line, lookup); err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(lookup.calls) != 1 {
		t.Fatalf("expected one lookup call, got %d", len(lookup.calls))
	}
	call := lookup.calls[0]
	if call.supplierProductId != 7 || call.establishmentId != 42 {
		t.Fatalf("lookup called with product=%d establishment=%d", call.supplierProductId, call.establishmentId)
	}
	if !call.date.Equal(*note.DeliveryDate) {
		t.Fatalf("lookup date %v should be the note's delivery date %v", call.date, *note.DeliveryDate)
	}
}

// Evaluating the same line twice with the same catalog must produce the
// same alert set: the persistence layer purges untreated alerts first, so
// equal evaluations mean no duplicates accumulate.
func TestEvaluationIsDeterministic(t *testing.T) {
	lookup := &fakePriceLookup{entries: map[int]*models.PriceEntry{
		7: priceEntry(7, "3.00", "5.0"),
	}}
	note := testNote(0)
	line := testLine(7, qty("10.000"), "8.000", "4.00")

	first, err := EvaluateDeliveryLine(context.Background(), "org-1", note, line, lookup)
	if err != nil {
		t.Fatalf("first evaluate: %v", err)
	}
	second, err := EvaluateDeliveryLine(context.Background(), "org-1", note, line, lookup)
	if err != nil {
		t.Fatalf("second evaluate: %v", err)
	}
	if len(first) != len(second) {
		t.Fatalf("alert counts differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].Kind != second[i].Kind || first[i].Message != second[i].Message {
			t.Fatalf("alert %d differs between runs: %+v vs %+v", i, first[i], second[i])
		}
	}
}

func TestPartitionAlertsPreservesTreated(t *testing.T) {
	treated := true
	untreated := false
	alerts := []models.ControlAlert{
		{ID: 1, Kind: models.ControlAlertKindQuantityVariance, Treated: &treated},
		{ID: 2, Kind: models.ControlAlertKindPriceVariance, Treated: &untreated},
		{ID: 3, Kind: models.ControlAlertKindMissingPrice, Treated: nil},
	}
	untreatedIds, kept := partitionAlerts(alerts)
	if len(kept) != 1 || kept[0].ID != 1 {
		t.Fatalf("expected only the treated alert kept, got %+v", kept)
	}
	if len(untreatedIds) != 2 {
		t.Fatalf("expected ids 2 and 3 marked for purge, got %v", untreatedIds)
	}
}

func TestClassifyEmptyAlertSet(t *testing.T) {
	if got := ClassifyLineControlStatus(nil); got != models.LineControlStatusOK {
		t.Fatalf("expected OK for an empty alert set, got %s", got)
	}
}
