package log

import "sort"

// Common field names for structured logging
const (
	FieldComponent     = "component"
	FieldSubcomponent  = "subcomponent"
	FieldRunID         = "run_id"
	FieldRequestID     = "request_id"
	FieldUserID        = "user_id"
	FieldEntity        = "entity"
	FieldEntityID      = "entity_id"
	FieldTransactionID = "transaction_id"
	FieldAmount        = "amount"
	FieldDate          = "date"
	FieldDryRun        = "dry_run"
	FieldKind          = "kind"
	FieldError         = "error"
	FieldOperation     = "operation"
	FieldDuration      = "duration"
	FieldQueue         = "queue"
	FieldBackend       = "backend"
)

// Components defines standard component names
const (
	ComponentApp       = "app"
	ComponentCLI       = "budgetctl"
	ComponentStorage   = "storage"
	ComponentAMQP      = "amqp"
	ComponentMirror    = "mirror"
	ComponentRecurring = "recurring"
	ComponentWorker    = "worker"
)

// Operations defines standard operation names
const (
	OpMigrate  = "migrate"
	OpRunDaily = "run_daily"
	OpCatchUp  = "catch_up"
	OpTrigger  = "trigger"
	OpSync     = "sync"
	OpStartup  = "startup"
	OpShutdown = "shutdown"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

// NewFields creates a new LogFields instance
func NewFields() LogFields {
	return make(LogFields)
}

func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithError adds error field
func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

// WithEntity names the ledger row a message is about.
func (f LogFields) WithEntity(entity string, id int64) LogFields {
	f[FieldEntity] = entity
	f[FieldEntityID] = id
	return f
}

// WithRun adds the batch run fields.
func (f LogFields) WithRun(runID, date string, dryRun bool) LogFields {
	f[FieldRunID] = runID
	f[FieldDate] = date
	f[FieldDryRun] = dryRun
	return f
}

// ToSlice flattens the fields into slog key/value pairs, sorted by key so
// output is stable.
func (f LogFields) ToSlice() []any {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]any, 0, len(f)*2)
	for _, k := range keys {
		out = append(out, k, f[k])
	}
	return out
}
