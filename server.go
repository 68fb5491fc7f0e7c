package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"

	"github.com/gastrodata/mercuriale_backend/config"
	"github.com/gastrodata/mercuriale_backend/models"
	"github.com/gastrodata/mercuriale_backend/utils"
	"github.com/gastrodata/mercuriale_backend/workflow"
)

const defaultPort = "8080"

var tracer = otel.Tracer("mercuriale-backend")

func respondData(c *gin.Context, status int, data interface{}) {
	c.JSON(status, gin.H{"data": data})
}

func respondError(c *gin.Context, status int, err error) {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		c.JSON(status, gin.H{"error": utils.ProcessValidationErrors(err)})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func idParam(c *gin.Context) (int, error) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		return 0, errors.New("invalid id")
	}
	return id, nil
}

func intQuery(c *gin.Context, name string) *int {
	v := strings.TrimSpace(c.Query(name))
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return nil
	}
	return &n
}

func stringQuery(c *gin.Context, name string) *string {
	v := strings.TrimSpace(c.Query(name))
	if v == "" {
		return nil
	}
	return &v
}

// organizationContextMiddleware copies the tenant headers into the request
// context. Authentication is handled upstream of this service; the headers
// are trusted as-is.
func organizationContextMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		if orgId := strings.TrimSpace(c.GetHeader("x-organization-id")); orgId != "" {
			ctx = utils.SetOrganizationIdInContext(ctx, orgId)
		}
		if est := strings.TrimSpace(c.GetHeader("x-establishment-id")); est != "" {
			if n, err := strconv.Atoi(est); err == nil {
				ctx = utils.SetEstablishmentIdInContext(ctx, n)
			}
		}
		userName := strings.TrimSpace(c.GetHeader("x-user-name"))
		if userName == "" {
			userName = "System"
		}
		ctx = utils.SetUserNameInContext(ctx, userName)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func createOrganizationHandler(c *gin.Context) {
	var input models.NewOrganization
	if err := c.ShouldBindJSON(&input); err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}
	organization, err := models.CreateOrganization(c.Request.Context(), &input)
	if err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}
	respondData(c, http.StatusCreated, organization)
}

func getOrganizationHandler(c *gin.Context) {
	organization, err := models.GetOrganizationById(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, http.StatusNotFound, err)
		return
	}
	respondData(c, http.StatusOK, organization)
}

func createSupplierHandler(c *gin.Context) {
	var input models.NewSupplier
	if err := c.ShouldBindJSON(&input); err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}
	supplier, err := models.CreateSupplier(c.Request.Context(), &input)
	if err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}
	respondData(c, http.StatusCreated, supplier)
}

func updateSupplierHandler(c *gin.Context) {
	id, err := idParam(c)
	if err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}
	var input models.NewSupplier
	if err := c.ShouldBindJSON(&input); err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}
	supplier, err := models.UpdateSupplier(c.Request.Context(), id, &input)
	if err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}
	respondData(c, http.StatusOK, supplier)
}

func deleteSupplierHandler(c *gin.Context) {
	id, err := idParam(c)
	if err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}
	supplier, err := models.DeleteSupplier(c.Request.Context(), id)
	if err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}
	respondData(c, http.StatusOK, supplier)
}

func getSupplierHandler(c *gin.Context) {
	id, err := idParam(c)
	if err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}
	supplier, err := models.GetSupplier(c.Request.Context(), id)
	if err != nil {
		respondError(c, http.StatusNotFound, err)
		return
	}
	respondData(c, http.StatusOK, supplier)
}

func getSuppliersHandler(c *gin.Context) {
	suppliers, err := models.GetSuppliers(c.Request.Context(), stringQuery(c, "name"))
	if err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}
	respondData(c, http.StatusOK, suppliers)
}

type toggleActiveRequest struct {
	IsActive *bool `json:"is_active" binding:"required"`
}

func toggleActiveSupplierHandler(c *gin.Context) {
	id, err := idParam(c)
	if err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}
	var req toggleActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}
	supplier, err := models.ToggleActiveSupplier(c.Request.Context(), id, *req.IsActive)
	if err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}
	respondData(c, http.StatusOK, supplier)
}

func createEstablishmentHandler(c *gin.Context) {
	var input models.NewEstablishment
	if err := c.ShouldBindJSON(&input); err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}
	establishment, err := models.CreateEstablishment(c.Request.Context(), &input)
	if err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}
	respondData(c, http.StatusCreated, establishment)
}

func updateEstablishmentHandler(c *gin.Context) {
	id, err := idParam(c)
	if err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}
	var input models.NewEstablishment
	if err := c.ShouldBindJSON(&input); err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}
	establishment, err := models.UpdateEstablishment(c.Request.Context(), id, &input)
	if err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}
	respondData(c, http.StatusOK, establishment)
}

func deleteEstablishmentHandler(c *gin.Context) {
	id, err := idParam(c)
	if err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}
	establishment, err := models.DeleteEstablishment(c.Request.Context(), id)
	if err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}
	respondData(c, http.StatusOK, establishment)
}

func getEstablishmentHandler(c *gin.Context) {
	id, err := idParam(c)
	if err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}
	establishment, err := models.GetEstablishment(c.Request.Context(), id)
	if err != nil {
		respondError(c, http.StatusNotFound, err)
		return
	}
	respondData(c, http.StatusOK, establishment)
}

func getEstablishmentsHandler(c *gin.Context) {
	establishments, err := models.GetEstablishments(c.Request.Context(), stringQuery(c, "name"))
	if err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}
	respondData(c, http.StatusOK, establishments)
}

func toggleActiveEstablishmentHandler(c *gin.Context) {
	id, err := idParam(c)
	if err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}
	var req toggleActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}
	establishment, err := models.ToggleActiveEstablishment(c.Request.Context(), id, *req.IsActive)
	if err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}
	respondData(c, http.StatusOK, establishment)
}

func createSupplierProductHandler(c *gin.Context) {
	var input models.NewSupplierProduct
	if err := c.ShouldBindJSON(&input); err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}
	product, err := models.CreateSupplierProduct(c.Request.Context(), &input)
	if err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}
	respondData(c, http.StatusCreated, product)
}

func updateSupplierProductHandler(c *gin.Context) {
	id, err := idParam(c)
	if err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}
	var input models.NewSupplierProduct
	if err := c.ShouldBindJSON(&input); err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}
	product, err := models.UpdateSupplierProduct(c.Request.Context(), id, &input)
	if err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}
	respondData(c, http.StatusOK, product)
}

func deleteSupplierProductHandler(c *gin.Context) {
	id, err := idParam(c)
	if err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}
	product, err := models.DeleteSupplierProduct(c.Request.Context(), id)
	if err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}
	respondData(c, http.StatusOK, product)
}

func getSupplierProductHandler(c *gin.Context) {
	id, err := idParam(c)
	if err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}
	product, err := models.GetSupplierProduct(c.Request.Context(), id)
	if err != nil {
		respondError(c, http.StatusNotFound, err)
		return
	}
	respondData(c, http.StatusOK, product)
}

func getSupplierProductsHandler(c *gin.Context) {
	products, err := models.GetSupplierProducts(c.Request.Context(), intQuery(c, "supplier_id"), stringQuery(c, "name"))
	if err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}
	respondData(c, http.StatusOK, products)
}

func createPriceEntryHandler(c *gin.Context) {
	var input models.NewPriceEntry
	if err := c.ShouldBindJSON(&input); err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}
	entry, err := models.CreatePriceEntry(c.Request.Context(), &input)
	if err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}
	respondData(c, http.StatusCreated, entry)
}

func updatePriceEntryHandler(c *gin.Context) {
	id, err := idParam(c)
	if err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}
	var input models.NewPriceEntry
	if err := c.ShouldBindJSON(&input); err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}
	entry, err := models.UpdatePriceEntry(c.Request.Context(), id, &input)
	if err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}
	respondData(c, http.StatusOK, entry)
}

func deletePriceEntryHandler(c *gin.Context) {
	id, err := idParam(c)
	if err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}
	entry, err := models.DeletePriceEntry(c.Request.Context(), id)
	if err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}
	respondData(c, http.StatusOK, entry)
}

func getPriceEntriesHandler(c *gin.Context) {
	var at *time.Time
	if v := strings.TrimSpace(c.Query("at")); v != "" {
		parsed, err := utils.ParseDate(v)
		if err != nil {
			respondError(c, http.StatusBadRequest, err)
			return
		}
		at = &parsed
	}
	entries, err := models.GetPriceEntries(c.Request.Context(),
		intQuery(c, "supplier_product_id"), intQuery(c, "establishment_id"), at)
	if err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}
	respondData(c, http.StatusOK, entries)
}

func importPriceEntriesHandler(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		respondError(c, http.StatusBadRequest, errors.New("file is required"))
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}
	defer file.Close()

	imported, err := models.ImportPriceEntriesFromXlsx(c.Request.Context(), fileHeader.Filename, file)
	if err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}
	respondData(c, http.StatusOK, gin.H{"imported": imported})
}

func createDeliveryNoteHandler(c *gin.Context) {
	var input models.NewDeliveryNote
	if err := c.ShouldBindJSON(&input); err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}
	note, err := models.CreateDeliveryNote(c.Request.Context(), &input)
	if err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}
	respondData(c, http.StatusCreated, note)
}

func getDeliveryNoteHandler(c *gin.Context) {
	id, err := idParam(c)
	if err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}
	note, err := models.GetDeliveryNote(c.Request.Context(), id)
	if err != nil {
		respondError(c, http.StatusNotFound, err)
		return
	}
	respondData(c, http.StatusOK, note)
}

func getDeliveryNotesHandler(c *gin.Context) {
	var status *models.DeliveryNoteStatus
	if v := strings.TrimSpace(c.Query("status")); v != "" {
		s := models.DeliveryNoteStatus(v)
		status = &s
	}
	notes, err := models.GetDeliveryNotes(c.Request.Context(),
		intQuery(c, "supplier_id"), intQuery(c, "establishment_id"), status)
	if err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}
	respondData(c, http.StatusOK, notes)
}

type updateLinesRequest struct {
	Lines []models.NewDeliveryLine `json:"lines" binding:"required,min=1,dive"`
}

func updateDeliveryNoteLinesHandler(c *gin.Context) {
	id, err := idParam(c)
	if err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}
	var req updateLinesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}
	note, err := models.UpdateDeliveryNoteLines(c.Request.Context(), id, req.Lines)
	if err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}
	respondData(c, http.StatusOK, note)
}

func validateDeliveryNoteHandler(c *gin.Context) {
	id, err := idParam(c)
	if err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}
	ctx, span := tracer.Start(c.Request.Context(), "ValidateDeliveryNote")
	defer span.End()

	note, err := workflow.ValidateDeliveryNote(ctx, id)
	if err != nil {
		if errors.Is(err, workflow.ErrControlRunInProgress) {
			respondError(c, http.StatusConflict, err)
			return
		}
		respondError(c, http.StatusBadRequest, err)
		return
	}
	cid, _ := utils.GetCorrelationIdFromContext(ctx)
	c.JSON(http.StatusOK, gin.H{
		"data":           note,
		"correlation_id": cid,
	})
}

func archiveDeliveryNoteHandler(c *gin.Context) {
	id, err := idParam(c)
	if err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}
	note, err := models.ArchiveDeliveryNote(c.Request.Context(), id)
	if err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}
	respondData(c, http.StatusOK, note)
}

func getControlAlertsHandler(c *gin.Context) {
	var treated *bool
	if v := strings.TrimSpace(c.Query("treated")); v != "" {
		b := strings.EqualFold(v, "true")
		treated = &b
	}
	var kind *models.ControlAlertKind
	if v := strings.TrimSpace(c.Query("kind")); v != "" {
		k := models.ControlAlertKind(v)
		kind = &k
	}
	alerts, err := models.GetControlAlerts(c.Request.Context(), treated, kind)
	if err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}
	respondData(c, http.StatusOK, alerts)
}

func treatControlAlertHandler(c *gin.Context) {
	id, err := idParam(c)
	if err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}
	alert, err := models.TreatControlAlert(c.Request.Context(), id)
	if err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}
	respondData(c, http.StatusOK, alert)
}

func customNotFoundHandler(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
}

// customErrorLogger is a custom Gin middleware that logs only errors
func customErrorLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		// Only log when there are errors
		if len(c.Errors) > 0 {
			logger.Error(c.Errors.String())
		}
	}
}

func splitAndTrim(csv string) []string {
	if strings.TrimSpace(csv) == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func main() {
	port := os.Getenv("API_PORT")
	if port == "" {
		port = os.Getenv("PORT")
	}
	if port == "" {
		port = defaultPort
	}

	logger := config.GetLogger()

	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	// Start the HTTP server ASAP; until DB/Redis are ready, app endpoints
	// return 503.
	r := gin.New()
	// Correlation IDs: generate once per request and attach to context.
	r.Use(func(c *gin.Context) {
		cid := c.GetHeader("x-correlation-id")
		if cid == "" {
			cid = uuid.NewString()
		}
		c.Request = c.Request.WithContext(utils.SetCorrelationIdInContext(c.Request.Context(), cid))
		c.Next()
	})
	r.Use(func(c *gin.Context) {
		// Always allow the startup probe.
		if c.Request.URL.Path == "/healthz" {
			c.Status(http.StatusNoContent)
			c.Abort()
			return
		}
		// Gate app endpoints on dependency readiness.
		if config.GetDB() == nil || config.GetRedisDB() == nil {
			c.AbortWithStatus(http.StatusServiceUnavailable)
			return
		}
		c.Next()
	})

	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	corsConfig := cors.DefaultConfig()
	// In production require an explicit allowlist via CORS_ALLOWED_ORIGINS
	// (comma-separated); in non-production allow all.
	allowedOrigins := strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS"))
	if strings.EqualFold(strings.TrimSpace(os.Getenv("GO_ENV")), "production") {
		if allowedOrigins == "" {
			corsConfig.AllowOrigins = []string{}
		} else {
			corsConfig.AllowOrigins = splitAndTrim(allowedOrigins)
		}
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AddAllowMethods("GET", "POST", "PUT", "DELETE", "OPTIONS")
	corsConfig.AddAllowHeaders("Origin", "Content-Type", "x-organization-id", "x-establishment-id", "x-user-name", "x-correlation-id")
	corsConfig.AddExposeHeaders("Content-Length")
	corsConfig.AllowCredentials = true
	r.Use(cors.New(corsConfig))

	r.Use(organizationContextMiddleware())
	r.Use(customErrorLogger(logger))
	r.Use(gin.Recovery())

	r.POST("/organizations", createOrganizationHandler)
	r.GET("/organizations/:id", getOrganizationHandler)

	r.GET("/suppliers", getSuppliersHandler)
	r.POST("/suppliers", createSupplierHandler)
	r.GET("/suppliers/:id", getSupplierHandler)
	r.PUT("/suppliers/:id", updateSupplierHandler)
	r.DELETE("/suppliers/:id", deleteSupplierHandler)
	r.PUT("/suppliers/:id/active", toggleActiveSupplierHandler)

	r.GET("/establishments", getEstablishmentsHandler)
	r.POST("/establishments", createEstablishmentHandler)
	r.GET("/establishments/:id", getEstablishmentHandler)
	r.PUT("/establishments/:id", updateEstablishmentHandler)
	r.DELETE("/establishments/:id", deleteEstablishmentHandler)
	r.PUT("/establishments/:id/active", toggleActiveEstablishmentHandler)

	r.GET("/supplier-products", getSupplierProductsHandler)
	r.POST("/supplier-products", createSupplierProductHandler)
	r.GET("/supplier-products/:id", getSupplierProductHandler)
	r.PUT("/supplier-products/:id", updateSupplierProductHandler)
	r.DELETE("/supplier-products/:id", deleteSupplierProductHandler)

	r.GET("/price-entries", getPriceEntriesHandler)
	r.POST("/price-entries", createPriceEntryHandler)
	r.PUT("/price-entries/:id", updatePriceEntryHandler)
	r.DELETE("/price-entries/:id", deletePriceEntryHandler)
	r.POST("/price-entries/import", importPriceEntriesHandler)

	r.GET("/delivery-notes", getDeliveryNotesHandler)
	r.POST("/delivery-notes", createDeliveryNoteHandler)
	r.GET("/delivery-notes/:id", getDeliveryNoteHandler)
	r.PUT("/delivery-notes/:id/lines", updateDeliveryNoteLinesHandler)
	r.POST("/delivery-notes/:id/validate", validateDeliveryNoteHandler)
	r.POST("/delivery-notes/:id/archive", archiveDeliveryNoteHandler)

	r.GET("/alerts", getControlAlertsHandler)
	r.POST("/alerts/:id/treat", treatControlAlertHandler)

	r.NoRoute(customNotFoundHandler)

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}
	serverErrCh := make(chan error, 1)
	go func() {
		// ListenAndServe returns http.ErrServerClosed on graceful shutdown.
		serverErrCh <- srv.ListenAndServe()
	}()

	// Connect dependencies after the port is open.
	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()

	db := config.GetDB()
	sqlDB, _ := db.DB()
	defer func() {
		if sqlDB != nil {
			_ = sqlDB.Close()
		}
	}()
	// AutoMigrate can run DDL that blocks tables; allow disabling migrations
	// on startup and running them as a separate job instead.
	if !strings.EqualFold(strings.TrimSpace(os.Getenv("SKIP_MIGRATIONS")), "true") {
		if err := models.MigrateTable(); err != nil {
			logger.WithFields(logrus.Fields{"field": "migrations"}).Panic(err.Error())
		}
	} else {
		logger.WithFields(logrus.Fields{"field": "migrations"}).Warn("SKIP_MIGRATIONS=true; skipping AutoMigrate on startup")
	}

	logger.WithFields(logrus.Fields{
		"info": "Connection Established",
	}).Info("listening on http://localhost:", port, "/")
	log.Println("Server started successfully")

	// Block until shutdown or server error.
	select {
	case <-sigCtx.Done():
		// graceful shutdown below
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithFields(logrus.Fields{"field": "http"}).Error("server stopped unexpectedly: " + err.Error())
		}
	}

	shutdownTimeout := 30 * time.Second
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithFields(logrus.Fields{"field": "http"}).Error("graceful shutdown failed: " + err.Error())
	}

	if rdb := config.GetRedisDB(); rdb != nil {
		_ = rdb.Close()
	}
}
