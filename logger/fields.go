package logger

import "go.uber.org/zap"

// Standard field names for structured logging across the service.
const (
	// Identity and context
	FieldJobID     = "job_id"
	FieldJobURI    = "job_uri"
	FieldRequestID = "request_id"

	// Domain
	FieldMeeting     = "meeting"
	FieldGraph       = "graph"
	FieldActivity    = "publication_activity"
	FieldScope       = "scope"
	FieldAgenda      = "agenda"
	FieldRetry       = "retry"
	FieldMaxRetries  = "max_retries"
	FieldSource      = "source"
	FieldPlannedDate = "planned_start"

	// Operations
	FieldOperation = "operation"
	FieldMethod    = "method"
	FieldPath      = "path"
	FieldEndpoint  = "endpoint"
	FieldAttempt   = "attempt"

	// Timing
	FieldDurationMS = "duration_ms"

	// Errors
	FieldError = "error"

	// Counts and sizes
	FieldCount      = "count"
	FieldFetched    = "fetched"
	FieldTotalCount = "total_count"
	FieldBatchSize  = "batch_size"

	// Status
	FieldStatus = "status"

	// Files
	FieldFile = "file"

	FieldSymbol = "symbol"
)

// ComponentLogger returns a named logger for a specific component.
//
//	type Scheduler struct {
//	    log *zap.SugaredLogger
//	}
//
//	func New() *Scheduler {
//	    return &Scheduler{log: logger.ComponentLogger("scheduler")}
//	}
func ComponentLogger(name string) *zap.SugaredLogger {
	return Logger.Named(name)
}
