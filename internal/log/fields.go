package log

// Common field names for structured logging
const (
	FieldComponent   = "component"
	FieldError       = "error"
	FieldOperation   = "operation"
	FieldUserID      = "user_id"
	FieldFundID      = "fund_id"
	FieldExpenseID   = "expense_id"
	FieldAmountCents = "amount_cents"
	FieldSpentCents  = "spent_cents"
	FieldFlow        = "flow"
	FieldStep        = "step"
	FieldCommand     = "command"
	FieldRisk        = "risk"
	FieldQueue       = "queue"
	FieldEventType   = "event_type"
	FieldSheetsRef   = "sheets_ref"
	FieldErrorType   = "error_type"
	FieldMessageID   = "message_id"
)

// Components defines standard component names
const (
	ComponentApp       = "app"
	ComponentLedger    = "ledger"
	ComponentDialogue  = "dialogue"
	ComponentSession   = "session"
	ComponentStorage   = "storage"
	ComponentAMQP      = "amqp"
	ComponentMessaging = "messaging"
	ComponentWorker    = "worker"
	ComponentReport    = "report"
	ComponentHTTP      = "http"
)

// Operations defines standard operation names
const (
	OpCreate   = "create"
	OpRead     = "read"
	OpList     = "list"
	OpAppend   = "append"
	OpComplete = "complete"
	OpClassify = "classify"
	OpSend     = "send"
	OpSync     = "sync"
	OpMigrate  = "migrate"
	OpShutdown = "shutdown"
	OpStartup  = "startup"
)

// ErrorTypes defines standard error type categories
const (
	ErrorTypeValidation  = "validation_error"
	ErrorTypeState       = "state_error"
	ErrorTypeNotFound    = "not_found_error"
	ErrorTypeAmbiguous   = "ambiguous_match_error"
	ErrorTypePersistence = "persistence_error"
	ErrorTypeInternal    = "internal_error"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

// NewFields creates a new LogFields instance
func NewFields() LogFields {
	return make(LogFields)
}

// WithComponent adds component field
func (f LogFields) WithComponent(component string) LogFields {
	f[FieldComponent] = component
	return f
}

// WithError adds error field
func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

// WithErrorType adds the error category
func (f LogFields) WithErrorType(errorType string) LogFields {
	f[FieldErrorType] = errorType
	return f
}

// WithOperation adds operation field
func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithUser adds the conversation owner
func (f LogFields) WithUser(userID string) LogFields {
	f[FieldUserID] = userID
	return f
}

// WithFund adds fund id, omitted when empty
func (f LogFields) WithFund(fundID string) LogFields {
	if fundID != "" {
		f[FieldFundID] = fundID
	}
	return f
}

// WithDialogue adds flow and step fields
func (f LogFields) WithDialogue(flow, step string) LogFields {
	f[FieldFlow] = flow
	f[FieldStep] = step
	return f
}

// ToSlice converts LogFields to a slice for slog
func (f LogFields) ToSlice() []any {
	slice := make([]any, 0, len(f)*2)
	for k, v := range f {
		slice = append(slice, k, v)
	}
	return slice
}
