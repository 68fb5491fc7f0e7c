package workflow

import (
	"errors"
	"time"

	"github.com/gastrodata/mercuriale_backend/models"
	mysqlDriver "github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
)

var ErrControlRunInProgress = errors.New("control run in progress")

func isDuplicateKeyErr(err error) bool {
	var mysqlErr *mysqlDriver.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1062
	}
	return false
}

// BeginControlRun inserts STARTED. If SUCCEEDED exists, returns (true, nil) meaning "skip safely".
func BeginControlRun(tx *gorm.DB, organizationId, handlerName, messageId string) (skip bool, err error) {
	run := models.ControlRun{
		OrganizationId: organizationId,
		HandlerName:    handlerName,
		MessageId:      messageId,
		Status:         models.ControlRunStatusStarted,
	}
	if err := tx.Create(&run).Error; err == nil {
		return false, nil
	} else if !isDuplicateKeyErr(err) {
		return false, err
	}

	var existing models.ControlRun
	if err := tx.Where("organization_id = ? AND handler_name = ? AND message_id = ?", organizationId, handlerName, messageId).
		First(&existing).Error; err != nil {
		return false, err
	}

	switch existing.Status {
	case models.ControlRunStatusSucceeded:
		return true, nil
	case models.ControlRunStatusStarted:
		// If another worker is currently controlling this note, the caller
		// should retry. A stale row gets reused (set STARTED again).
		if time.Since(existing.UpdatedAt) < 5*time.Minute {
			return false, ErrControlRunInProgress
		}
		return false, tx.Model(&models.ControlRun{}).
			Where("id = ?", existing.ID).
			Updates(map[string]interface{}{"status": models.ControlRunStatusStarted, "last_error": nil}).Error
	default:
		return false, tx.Model(&models.ControlRun{}).
			Where("id = ?", existing.ID).
			Updates(map[string]interface{}{"status": models.ControlRunStatusStarted, "last_error": nil}).Error
	}
}

func MarkControlRunSucceeded(tx *gorm.DB, organizationId, handlerName, messageId string, alertCount int) error {
	return tx.Model(&models.ControlRun{}).
		Where("organization_id = ? AND handler_name = ? AND message_id = ?", organizationId, handlerName, messageId).
		Updates(map[string]interface{}{"status": models.ControlRunStatusSucceeded, "alert_count": alertCount, "last_error": nil}).Error
}

func MarkControlRunFailed(tx *gorm.DB, organizationId, handlerName, messageId string, err error) error {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return tx.Model(&models.ControlRun{}).
		Where("organization_id = ? AND handler_name = ? AND message_id = ?", organizationId, handlerName, messageId).
		Updates(map[string]interface{}{"status": models.ControlRunStatusFailed, "last_error": &msg}).Error
}
