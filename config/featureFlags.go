package config

import (
	"os"
	"strings"
)

// StrictNoteImmutability enables strict document guardrails:
// a note that validated cleanly cannot have its lines edited; it must be
// archived and re-captured. Anomaly notes stay editable either way so the
// flagged lines can be corrected and re-validated.
//
// Set via env:
// - STRICT_NOTE_IMMUTABLE=true
func StrictNoteImmutability() bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("STRICT_NOTE_IMMUTABLE")))
	return v == "1" || v == "true" || v == "yes" || v == "y"
}
