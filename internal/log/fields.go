package log

// Common field names for structured logging
const (
	FieldComponent  = "component"
	FieldRequestID  = "request_id"
	FieldClientIP   = "client_ip"
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldStatusCode = "status_code"
	FieldDuration   = "duration_ms"
	FieldUserAgent  = "user_agent"
	FieldSuccess    = "success"
	FieldError      = "error"
	FieldErrorKind  = "error_kind"
	FieldOperation  = "operation"
	FieldRegion     = "region"
	FieldDealYMD    = "deal_ymd"
	FieldItems      = "item_count"
	FieldTotalCount = "total_count"
	FieldResultCode = "result_code"
	FieldResultMsg  = "result_msg"
	FieldBuilding   = "building"
	FieldMonths     = "months"
	FieldSkipped    = "skipped"
	FieldCacheHit   = "cache_hit"
	FieldBackend    = "backend"
)

// Components defines standard component names
const (
	ComponentApp      = "app"
	ComponentHTTP     = "http"
	ComponentRTMS     = "rtms"
	ComponentLookup   = "lookup"
	ComponentHistory  = "history"
	ComponentCache    = "cache"
	ComponentSecurity = "security"
	ComponentTrace    = "trace"
	ComponentBackend  = "backend"
)

// Operations defines standard operation names
const (
	OpFetch    = "fetch"
	OpLookup   = "lookup"
	OpHistory  = "history"
	OpParse    = "parse"
	OpRender   = "render"
	OpEncode   = "encode"
	OpShutdown = "shutdown"
	OpStartup  = "startup"
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

// WithError adds the error message and its taxonomy tag.
func (f LogFields) WithError(err error, kind string) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
		if kind != "" {
			f[FieldErrorKind] = kind
		}
	}
	return f
}

// WithOperation adds operation field
func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithQuery adds the region and period of a transaction query.
func (f LogFields) WithQuery(region, dealYMD string) LogFields {
	f[FieldRegion] = region
	f[FieldDealYMD] = dealYMD
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
