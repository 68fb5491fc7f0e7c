// mercuriale-import loads a price-list spreadsheet into the mercuriale
// without going through the HTTP API. Columns: supplier name, product
// reference, establishment name (empty = group-wide), unit price, alert
// threshold (empty = default), valid from, valid to (empty = open-ended).
//
// Usage (from backend directory):
//   DB_USER=... DB_NAME=... REDIS_ADDRESS=... \
//   go run ./cmd/mercuriale-import -org <organization-uuid> -file mercuriale.xlsx
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/gastrodata/mercuriale_backend/config"
	"github.com/gastrodata/mercuriale_backend/models"
	"github.com/gastrodata/mercuriale_backend/utils"
)

func main() {
	orgId := flag.String("org", "", "organization uuid owning the mercuriale")
	filePath := flag.String("file", "", "path to the .xlsx price list")
	flag.Parse()

	if *orgId == "" || *filePath == "" {
		fmt.Fprintln(os.Stderr, "both -org and -file are required")
		flag.Usage()
		os.Exit(2)
	}

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	if config.GetDB() == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil). Set DB_* env vars.")
		os.Exit(1)
	}

	ctx := context.Background()
	ctx = utils.SetOrganizationIdInContext(ctx, *orgId)
	ctx = utils.SetUserNameInContext(ctx, "Import")

	if _, err := models.GetOrganizationById(ctx, *orgId); err != nil {
		fmt.Fprintf(os.Stderr, "organization %s not found: %v\n", *orgId, err)
		os.Exit(1)
	}

	file, err := os.Open(*filePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "could not open file: %v\n", err)
		os.Exit(1)
	}
	defer file.Close()

	imported, err := models.ImportPriceEntriesFromXlsx(ctx, *filePath, file)
	if err != nil {
		fmt.Fprintf(os.Stderr, "import failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Imported %d price entries\n", imported)
}
