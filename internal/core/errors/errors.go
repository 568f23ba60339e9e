package errors

const (
	HttpInternalError        = "internal_error"
	HttpInvalidRequestError  = "invalid_request"
	HttpUnknownDomainError   = "unknown_domain"
	HttpUpstreamUnauthorized = "upstream_unauthorized"
	HttpUpstreamNotFound     = "upstream_not_found"
	HttpUpstreamError        = "upstream_error"
	HttpUpstreamUnreachable  = "upstream_unreachable"
	HttpInvalidResponseShape = "invalid_response_shape"
	HttpExportEmptyError     = "export_empty"
)

// ErrorResponse is the error response body for API errors.
type ErrorResponse struct {
	ErrorType string      `json:"error_type"`
	Message   string      `json:"message"`
	Details   interface{} `json:"details,omitempty"`
}
