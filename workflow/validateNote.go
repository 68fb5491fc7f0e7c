package workflow

import (
	"context"
	"errors"
	"fmt"

	"github.com/gastrodata/mercuriale_backend/config"
	"github.com/gastrodata/mercuriale_backend/models"
	"github.com/gastrodata/mercuriale_backend/utils"
)

const noteControlHandler = "delivery_note_control"

// controlRunMessageId keys one control pass to the exact line set it saw.
// Editing the lines bumps the control version, so a corrected note gets a
// fresh run while a redelivered request for the same version is skipped.
func controlRunMessageId(note *models.DeliveryNote) string {
	return fmt.Sprintf("%d:v%d", note.ID, note.ControlVersion)
}

// ValidateDeliveryNote moves a draft note to Validated and runs the control
// pass over its lines in the same transaction. Any alert escalates the note
// to Anomaly instead. Re-validating an Anomaly note after line corrections
// runs the same path. The whole run is atomic: a failure anywhere rolls the
// status change and all alert writes back together.
func ValidateDeliveryNote(ctx context.Context, id int) (*models.DeliveryNote, error) {
	logger := config.GetLogger()

	organizationId, ok := utils.GetOrganizationIdFromContext(ctx)
	if !ok || organizationId == "" {
		return nil, errors.New("organization id is required")
	}

	note, err := models.GetDeliveryNote(ctx, id)
	if err != nil {
		return nil, err
	}
	switch note.Status {
	case models.DeliveryNoteStatusDraft, models.DeliveryNoteStatusAnomaly:
		// proceed
	case models.DeliveryNoteStatusValidated:
		return note, nil
	default:
		return nil, fmt.Errorf("cannot validate a %s note", string(note.Status))
	}
	if len(note.Lines) == 0 {
		return nil, errors.New("cannot validate a note without lines")
	}

	release, err := utils.DocumentLock(ctx, "note_control", fmt.Sprintf("%d", note.ID), "validateNote.go", "ValidateDeliveryNote")
	if err != nil {
		return nil, err
	}
	defer release()

	db := config.GetDB()
	if err := AcquireNoteControlLock(db, note.ID); err != nil {
		config.LogError(logger, "validateNote.go", "ValidateDeliveryNote", "acquiring control lock", note.ID, err)
		return nil, err
	}
	defer ReleaseNoteControlLock(db, note.ID)

	messageId := controlRunMessageId(note)

	tx := db.Begin()

	skip, err := BeginControlRun(tx, organizationId, noteControlHandler, messageId)
	if err != nil {
		tx.Rollback()
		config.LogError(logger, "validateNote.go", "ValidateDeliveryNote", "starting control run", messageId, err)
		return nil, err
	}
	if skip {
		// This line set was already controlled; the stored outcome stands.
		tx.Rollback()
		return note, nil
	}

	err = tx.WithContext(ctx).Model(&models.DeliveryNote{}).
		Where("id = ?", note.ID).Update("status", models.DeliveryNoteStatusValidated).Error
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	note.Status = models.DeliveryNoteStatusValidated

	alertCount, err := ProcessDeliveryNoteControlWorkflow(ctx, tx, logger, note, CatalogPriceLookup{Tx: tx})
	if err != nil {
		_ = MarkControlRunFailed(tx, organizationId, noteControlHandler, messageId, err)
		tx.Rollback()
		return nil, err
	}

	if err := MarkControlRunSucceeded(tx, organizationId, noteControlHandler, messageId, alertCount); err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	return models.GetDeliveryNote(ctx, id)
}
