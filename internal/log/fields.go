package log

// Common field names for structured logging
const (
	FieldComponent  = "component"
	FieldRequestID  = "request_id"
	FieldClientIP   = "client_ip"
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldQuery      = "query"
	FieldStatusCode = "status_code"
	FieldDuration   = "duration_ms"
	FieldUserAgent  = "user_agent"
	FieldSuccess    = "success"
	FieldError      = "error"
	FieldOperation  = "operation"
	FieldUserID     = "user_id"
	FieldCategory   = "category"
	FieldStrategy   = "strategy"
	FieldAmount     = "amount"
	FieldHistoryLen = "history_len"
	FieldGoalID     = "goal_id"
	FieldJobID      = "job_id"
	FieldRunID      = "run_id"
	FieldBackend    = "backend"
)

// Components defines standard component names
const (
	ComponentApp        = "app"
	ComponentHTTP       = "http"
	ComponentForecast   = "forecast"
	ComponentAllocation = "allocation"
	ComponentTraining   = "training"
	ComponentStorage    = "storage"
	ComponentModels     = "models"
	ComponentAMQP       = "amqp"
	ComponentJobs       = "jobs"
	ComponentWorker     = "worker"
	ComponentSheets     = "sheets"
	ComponentCache      = "cache"
	ComponentCLI        = "cli"
)

// Operations defines standard operation names
const (
	OpForecast = "forecast"
	OpAllocate = "allocate"
	OpTrain    = "train"
	OpSubmit   = "submit"
	OpRead     = "read"
	OpWrite    = "write"
	OpList     = "list"
	OpShutdown = "shutdown"
	OpStartup  = "startup"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

// NewFields creates a new LogFields instance
func NewFields() LogFields {
	return make(LogFields)
}

func (f LogFields) WithComponent(component string) LogFields {
	f[FieldComponent] = component
	return f
}

func (f LogFields) WithRequestID(requestID string) LogFields {
	f[FieldRequestID] = requestID
	return f
}

func (f LogFields) WithClientIP(ip string) LogFields {
	f[FieldClientIP] = ip
	return f
}

// WithError adds error field, skipping nil errors
func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

func (f LogFields) WithUser(userID string) LogFields {
	f[FieldUserID] = userID
	return f
}

// WithForecast adds the fields describing one category forecast
func (f LogFields) WithForecast(category, strategy string, amount float64, historyLen int) LogFields {
	f[FieldCategory] = category
	f[FieldStrategy] = strategy
	f[FieldAmount] = amount
	f[FieldHistoryLen] = historyLen
	return f
}

func (f LogFields) WithJob(jobID string) LogFields {
	f[FieldJobID] = jobID
	return f
}

func (f LogFields) WithHTTPRequest(method, path, query, userAgent string) LogFields {
	f[FieldMethod] = method
	f[FieldPath] = path
	f[FieldQuery] = query
	f[FieldUserAgent] = userAgent
	return f
}

func (f LogFields) WithHTTPResponse(statusCode int, durationMs int64, success bool) LogFields {
	f[FieldStatusCode] = statusCode
	f[FieldDuration] = durationMs
	f[FieldSuccess] = success
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
