package models

import (
	"github.com/gastrodata/mercuriale_backend/config"
)

func MigrateTable() error {
	db := config.GetDB()
	return db.AutoMigrate(
		&Organization{},
		&Establishment{},
		&Supplier{},
		&SupplierProduct{},
		&PriceEntry{},
		&DeliveryNote{},
		&DeliveryLine{},
		&ControlAlert{},
		&ControlRun{},
	)
}
