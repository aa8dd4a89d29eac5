package log

// Canonical field names for structured logging.
const (
	FieldComponent    = "component"
	FieldOperation    = "operation"
	FieldCollaborator = "collaborator"
	FieldMethod       = "method"
	FieldReaderID     = "reader_id"
	FieldIntentID     = "payment_intent_id"
	FieldBackendURL   = "backend_url"
	FieldOldState     = "old_state"
	FieldNewState     = "new_state"
	FieldDuration     = "duration_ms"
)
