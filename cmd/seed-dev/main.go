// seed-dev populates a development database with one organization, two
// establishments, a supplier with a small catalog, mercuriale price rows
// (one establishment-scoped override included), and a draft delivery note
// ready for validation.
//
// Usage (from backend directory):
//   DB_USER=... DB_PASSWORD=... DB_HOST=... DB_PORT=... DB_NAME=... go run ./cmd/seed-dev
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/gastrodata/mercuriale_backend/config"
	"github.com/gastrodata/mercuriale_backend/models"
	"github.com/gastrodata/mercuriale_backend/utils"
	"github.com/shopspring/decimal"
)

func fatalf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func mustDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		fatalf("bad decimal %q: %v", s, err)
	}
	return d
}

func main() {
	ctx := context.Background()
	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fatalf("database not initialized (config.GetDB returned nil). Set DB_* env vars.")
	}
	if err := models.MigrateTable(); err != nil {
		fatalf("migration failed: %v", err)
	}

	ctx = utils.SetUserIdInContext(ctx, 1)
	ctx = utils.SetUserNameInContext(ctx, "Seed")

	organization, err := models.CreateOrganization(ctx, &models.NewOrganization{
		Name:        "Groupe Bistrot Demo",
		ContactName: "Demo Admin",
		Email:       "demo@gastrodata.example",
		Country:     "France",
		City:        "Lyon",
		Timezone:    "Europe/Paris",
	})
	if err != nil {
		fatalf("failed to create organization: %v", err)
	}
	organizationId := organization.ID.String()
	ctx = utils.SetOrganizationIdInContext(ctx, organizationId)
	fmt.Printf("Created organization %s (%s)\n", organization.Name, organizationId)

	annex, err := models.CreateEstablishment(ctx, &models.NewEstablishment{
		Name: "Bistrot Presqu'ile",
		City: "Lyon",
	})
	if err != nil {
		fatalf("failed to create establishment: %v", err)
	}

	supplier, err := models.CreateSupplier(ctx, &models.NewSupplier{
		Name:        "Primeurs Rhone SARL",
		ContactName: "J. Faure",
		Email:       "contact@primeurs-rhone.example",
	})
	if err != nil {
		fatalf("failed to create supplier: %v", err)
	}

	catalog := []models.NewSupplierProduct{
		{SupplierId: supplier.ID, Name: "Tomate grappe", Reference: "TOM-GR", Unit: "kg", Category: "Legumes"},
		{SupplierId: supplier.ID, Name: "Pomme de terre agria", Reference: "PDT-AG", Unit: "kg", Category: "Legumes"},
		{SupplierId: supplier.ID, Name: "Huile d'olive vierge", Reference: "HUI-OL", Unit: "L", Category: "Epicerie"},
	}
	products := make([]*models.SupplierProduct, 0, len(catalog))
	for i := range catalog {
		product, err := models.CreateSupplierProduct(ctx, &catalog[i])
		if err != nil {
			fatalf("failed to create product %s: %v", catalog[i].Reference, err)
		}
		products = append(products, product)
	}

	validFrom := time.Now().AddDate(0, -1, 0)
	threshold := mustDecimal("5")
	prices := []models.NewPriceEntry{
		{SupplierProductId: products[0].ID, UnitPrice: mustDecimal("2.50"), AlertThreshold: threshold, ValidFrom: validFrom},
		{SupplierProductId: products[1].ID, UnitPrice: mustDecimal("0.95"), AlertThreshold: threshold, ValidFrom: validFrom},
		{SupplierProductId: products[2].ID, UnitPrice: mustDecimal("8.40"), AlertThreshold: threshold, ValidFrom: validFrom},
		// Establishment-scoped override; wins over the group row above.
		{SupplierProductId: products[0].ID, EstablishmentId: &annex.ID, UnitPrice: mustDecimal("2.35"), AlertThreshold: threshold, ValidFrom: validFrom},
	}
	for i := range prices {
		if _, err := models.CreatePriceEntry(ctx, &prices[i]); err != nil {
			fatalf("failed to create price entry %d: %v", i, err)
		}
	}

	ordered := mustDecimal("10")
	deliveryDate := time.Now()
	note, err := models.CreateDeliveryNote(ctx, &models.NewDeliveryNote{
		SupplierId:      supplier.ID,
		EstablishmentId: annex.ID,
		NoteNumber:      "BL-2026-0001",
		DeliveryDate:    &deliveryDate,
		Lines: []models.NewDeliveryLine{
			{Designation: "Tomate grappe", ProductCode: "TOM-GR", OrderedQty: &ordered, DeliveredQty: mustDecimal("8"), UnitPrice: mustDecimal("2.80"), Unit: "kg"},
			{Designation: "Pomme de terre agria", ProductCode: "PDT-AG", DeliveredQty: mustDecimal("25"), UnitPrice: mustDecimal("0.95"), Unit: "kg"},
			{Designation: "Creme fraiche 30%", ProductCode: "CRE-30", DeliveredQty: mustDecimal("6"), UnitPrice: mustDecimal("3.20"), Unit: "L"},
		},
	})
	if err != nil {
		fatalf("failed to create delivery note: %v", err)
	}

	fmt.Printf("Seed complete: organization=%s supplier=%d establishment=%d note=%d\n",
		organizationId, supplier.ID, annex.ID, note.ID)
	noteJson, err := utils.MarshalToJSON(note)
	if err != nil {
		fatalf("failed to encode note: %v", err)
	}
	fmt.Println(noteJson)
	fmt.Println("Validate the note with: POST /delivery-notes/" + fmt.Sprint(note.ID) + "/validate")
}
