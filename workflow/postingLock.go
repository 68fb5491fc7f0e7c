package workflow

import (
	"fmt"

	"gorm.io/gorm"
)

// AcquireNoteControlLock serializes control runs per delivery note across
// instances using MySQL advisory locks.
// NOTE: GET_LOCK is connection-scoped, so this must be called on the same
// *gorm.DB that will run the control transaction.
func AcquireNoteControlLock(tx *gorm.DB, noteId int) error {
	lockName := fmt.Sprintf("note_control:%d", noteId)
	var ok int
	if err := tx.Raw("SELECT GET_LOCK(?, 30)", lockName).Scan(&ok).Error; err != nil {
		return err
	}
	if ok != 1 {
		return fmt.Errorf("could not acquire control lock for delivery_note_id=%d", noteId)
	}
	return nil
}

func ReleaseNoteControlLock(tx *gorm.DB, noteId int) {
	lockName := fmt.Sprintf("note_control:%d", noteId)
	var _ok int
	_ = tx.Raw("SELECT RELEASE_LOCK(?)", lockName).Scan(&_ok).Error
}
