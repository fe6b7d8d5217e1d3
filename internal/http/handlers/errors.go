// Error codes returned in ErrorResponse.Code. Codes are lowercase
// snake_case; generic ones mirror HTTP status semantics, domain ones
// cover failures a status alone cannot convey.
package handlers

const (
	ErrCodeBadRequest  = "bad_request"
	ErrCodeNotFound    = "not_found"
	ErrCodeConflict    = "conflict"
	ErrCodeTooLarge    = "payload_too_large"
	ErrCodeUnsupported = "unsupported_media_type"
	ErrCodeRateLimited = "too_many_requests"
	ErrCodeOverloaded  = "service_overloaded"
	ErrCodeInternal    = "internal_error"

	// Domain-specific:
	ErrCodeSubmitFailed     = "submit_failed"
	ErrCodeCreateFailed     = "create_failed"
	ErrCodeListFailed       = "list_failed"
	ErrCodeUploadFailed     = "upload_failed"
	ErrCodeDeleteFailed     = "delete_failed"
	ErrCodeMethodNotAllowed = "method_not_allowed"
)
