package errors

const (
	HttpInternalError         = "internal_error"
	HttpInvalidJsonError      = "invalid_json"
	HttpInvalidEventError     = "invalid_event"
	HttpBacklogFullError      = "backlog_full"
	HttpRunnerStoppedError    = "runner_stopped"
	HttpCompileError          = "compile_error"
	HttpNotFoundError         = "not_found"
	HttpStoreUnavailableError = "store_unavailable"
)

// ErrorResponse is the error body returned by every HTTP handler.
type ErrorResponse struct {
	ErrorType string      `json:"error_type"`
	Message   string      `json:"message"`
	Details   interface{} `json:"details,omitempty"`
}
