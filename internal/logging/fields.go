package logging

// Standard attribute keys shared by every component.
const (
	FieldComponent = "component"
	FieldEventType = "event_type"
	FieldErrorHint = "error_hint"
	FieldImpact    = "impact"
	FieldEntryID   = "entry_id"
	FieldAlert     = "alert"
)
