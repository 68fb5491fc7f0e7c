package models_test

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/gastrodata/mercuriale_backend/config"
	"github.com/gastrodata/mercuriale_backend/models"
	"github.com/gastrodata/mercuriale_backend/utils"
	"github.com/gastrodata/mercuriale_backend/workflow"
	"github.com/shopspring/decimal"
)

func setupIntegrationEnv(t *testing.T) context.Context {
	t.Helper()

	redisName, redisPort := startRedisContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(redisName) })

	mysqlName, mysqlPort := startMySQLContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(mysqlName) })

	t.Setenv("REDIS_ADDRESS", fmt.Sprintf("127.0.0.1:%s", redisPort))
	t.Setenv("DB_USER", "root")
	t.Setenv("DB_PASSWORD", "testpw")
	t.Setenv("DB_HOST", "127.0.0.1")
	t.Setenv("DB_PORT", mysqlPort)
	t.Setenv("DB_NAME", "mercuriale_test")

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	if err := models.MigrateTable(); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	ctx := context.Background()
	ctx = utils.SetUserIdInContext(ctx, 1)
	ctx = utils.SetUserNameInContext(ctx, "Test")

	organization, err := models.CreateOrganization(ctx, &models.NewOrganization{
		Name:  "Test Group",
		Email: "test@example.com",
	})
	if err != nil {
		t.Fatalf("create organization: %v", err)
	}
	return utils.SetOrganizationIdInContext(ctx, organization.ID.String())
}

func mustCreateSupplierWithProduct(t *testing.T, ctx context.Context) (*models.Supplier, *models.SupplierProduct) {
	t.Helper()
	supplier, err := models.CreateSupplier(ctx, &models.NewSupplier{Name: "Primeurs Test"})
	if err != nil {
		t.Fatalf("create supplier: %v", err)
	}
	product, err := models.CreateSupplierProduct(ctx, &models.NewSupplierProduct{
		SupplierId: supplier.ID,
		Name:       "Tomate grappe",
		Reference:  "TOM-GR",
		Unit:       "kg",
	})
	if err != nil {
		t.Fatalf("create product: %v", err)
	}
	return supplier, product
}

func TestFindApplicablePrice_EstablishmentOverridesGroup(t *testing.T) {
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires docker)")
	}

	ctx := setupIntegrationEnv(t)
	organizationId, _ := utils.GetOrganizationIdFromContext(ctx)
	_, product := mustCreateSupplierWithProduct(t, ctx)

	establishment, err := models.CreateEstablishment(ctx, &models.NewEstablishment{Name: "Annexe"})
	if err != nil {
		t.Fatalf("create establishment: %v", err)
	}

	validFrom := time.Now().AddDate(0, -1, 0)
	threshold := decimal.NewFromInt(5)

	// Group-wide price matches the delivery line exactly; the establishment
	// override differs. The override must still win.
	if _, err := models.CreatePriceEntry(ctx, &models.NewPriceEntry{
		SupplierProductId: product.ID,
		UnitPrice:         decimal.RequireFromString("2.50"),
		AlertThreshold:    threshold,
		ValidFrom:         validFrom,
	}); err != nil {
		t.Fatalf("create group price: %v", err)
	}
	if _, err := models.CreatePriceEntry(ctx, &models.NewPriceEntry{
		SupplierProductId: product.ID,
		EstablishmentId:   &establishment.ID,
		UnitPrice:         decimal.RequireFromString("2.00"),
		AlertThreshold:    threshold,
		ValidFrom:         validFrom,
	}); err != nil {
		t.Fatalf("create establishment price: %v", err)
	}

	db := config.GetDB()

	entry, err := models.FindApplicablePrice(ctx, db, organizationId, product.ID, establishment.ID, time.Now())
	if err != nil {
		t.Fatalf("find applicable price: %v", err)
	}
	if entry == nil {
		t.Fatalf("expected a price entry, got none")
	}
	if entry.EstablishmentId == nil || *entry.EstablishmentId != establishment.ID {
		t.Fatalf("expected the establishment-scoped entry to win, got entry %d (establishment %v)", entry.ID, entry.EstablishmentId)
	}
	if !entry.UnitPrice.Equal(decimal.RequireFromString("2.00")) {
		t.Fatalf("expected unit price 2.00 from the override, got %s", entry.UnitPrice.String())
	}

	// With no establishment only the group row applies.
	entry, err = models.FindApplicablePrice(ctx, db, organizationId, product.ID, 0, time.Now())
	if err != nil {
		t.Fatalf("find group price: %v", err)
	}
	if entry == nil || entry.EstablishmentId != nil {
		t.Fatalf("expected the group-wide entry, got %+v", entry)
	}

	// An expired window resolves nothing.
	entry, err = models.FindApplicablePrice(ctx, db, organizationId, product.ID, establishment.ID, validFrom.AddDate(-1, 0, 0))
	if err != nil {
		t.Fatalf("find outside window: %v", err)
	}
	if entry != nil {
		t.Fatalf("expected no entry before the validity window, got %+v", entry)
	}
}

func TestValidateDeliveryNote_FullControlPass(t *testing.T) {
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires docker)")
	}

	ctx := setupIntegrationEnv(t)
	supplier, product := mustCreateSupplierWithProduct(t, ctx)

	validFrom := time.Now().AddDate(0, -1, 0)
	if _, err := models.CreatePriceEntry(ctx, &models.NewPriceEntry{
		SupplierProductId: product.ID,
		UnitPrice:         decimal.RequireFromString("2.50"),
		AlertThreshold:    decimal.NewFromInt(5),
		ValidFrom:         validFrom,
	}); err != nil {
		t.Fatalf("create price: %v", err)
	}

	ordered := decimal.NewFromInt(10)
	deliveryDate := time.Now()
	note, err := models.CreateDeliveryNote(ctx, &models.NewDeliveryNote{
		SupplierId:   supplier.ID,
		NoteNumber:   "BL-TEST-1",
		DeliveryDate: &deliveryDate,
		Lines: []models.NewDeliveryLine{
			// short delivery, overbilled: quantity + price variance
			{Designation: "Tomate grappe", ProductCode: "TOM-GR", OrderedQty: &ordered, DeliveredQty: decimal.NewFromInt(8), UnitPrice: decimal.RequireFromString("4.00"), Unit: "kg"},
			// not in the catalog: unknown product
			{Designation: "Creme fraiche", ProductCode: "CRE-30", DeliveredQty: decimal.NewFromInt(6), UnitPrice: decimal.RequireFromString("3.20"), Unit: "L"},
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
	if len(validated.Lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(validated.Lines))
	}
	if validated.Lines[0].ControlStatus != models.LineControlStatusMultipleVariance {
		t.Fatalf("expected MultipleVariance on line 1, got %s", validated.Lines[0].ControlStatus)
	}
	if validated.Lines[1].ControlStatus != models.LineControlStatusUncontrolled {
		t.Fatalf("expected Uncontrolled on line 2, got %s", validated.Lines[1].ControlStatus)
	}
	alertCount := len(validated.Lines[0].Alerts) + len(validated.Lines[1].Alerts)
	if alertCount != 3 {
		t.Fatalf("expected 3 alerts total, got %d", alertCount)
	}

	// A redelivered validation for the same line set must not duplicate
	// alerts or rerun the engine.
	again, err := workflow.ValidateDeliveryNote(ctx, note.ID)
	if err != nil {
		t.Fatalf("re-validate: %v", err)
	}
	againCount := 0
	for _, line := range again.Lines {
		againCount += len(line.Alerts)
	}
	if againCount != alertCount {
		t.Fatalf("alert count changed on re-validation: %d -> %d", alertCount, againCount)
	}
}

func startRedisContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("mercuriale-test-redis-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-p", "127.0.0.1:0:6379",
		"redis:7-alpine",
	)
	if err != nil {
		t.Fatalf("start redis container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "6379/tcp")
	if err != nil {
		t.Fatalf("redis docker port: %v", err)
	}
	// wait until ready
	deadline := time.Now().Add(60 * time.Second)
	for time.Now().Before(deadline) {
		_, err := dockerRun("exec", name, "redis-cli", "ping")
		if err == nil {
			return name, port
		}
		time.Sleep(250 * time.Millisecond)
	}
	t.Fatalf("redis did not become ready")
	return "", ""
}

func startMySQLContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("mercuriale-test-mysql-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-e", "MYSQL_ROOT_PASSWORD=testpw",
		"-e", "MYSQL_DATABASE=mercuriale_test",
		"-p", "127.0.0.1:0:3306",
		"mysql:8.0",
		"--default-authentication-plugin=mysql_native_password",
	)
	if err != nil {
		t.Fatalf("start mysql container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "3306/tcp")
	if err != nil {
		t.Fatalf("mysql docker port: %v", err)
	}
	// wait until ready
	deadline := time.Now().Add(120 * time.Second)
	for time.Now().Before(deadline) {
		_, err := dockerRun("exec", name, "mysqladmin", "ping", "-h", "127.0.0.1", "-ptestpw", "--silent")
		if err == nil {
			return name, port
		}
		time.Sleep(500 * time.Millisecond)
	}
	t.Fatalf("mysql did not become ready")
	return "", ""
}

func dockerHostPort(container, portProto string) (string, error) {
	out, err := dockerRun("port", container, portProto)
	if err != nil {
		return "", fmt.Errorf("docker port: %w: %s", err, out)
	}
	// Example: "127.0.0.1:49154\n"
	re := regexp.MustCompile(`:(\d+)`)
	m := re.FindStringSubmatch(out)
	if len(m) != 2 {
		return "", fmt.Errorf("unexpected docker port output: %q", out)
	}
	return m[1], nil
}

func dockerRmForce(container string) error {
	if strings.TrimSpace(container) == "" {
		return nil
	}
	_, err := dockerRun("rm", "-f", container)
	return err
}

func dockerRun(args ...string) (string, error) {
	cmd := exec.Command("docker", args...)
	b, err := cmd.CombinedOutput()
	return string(b), err
}
