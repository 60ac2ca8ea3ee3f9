package model

// ErrorResponse represents a standardised error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Standard error codes for redemption outcomes and faults
const (
	ErrCodeMalformedCode    = "MALFORMED_CODE"
	ErrCodeUnknownCode      = "UNKNOWN_CODE"
	ErrCodeAlreadyUsed      = "ALREADY_USED"
	ErrCodeInternalError    = "INTERNAL_ERROR"
	ErrCodeMethodNotAllowed = "METHOD_NOT_ALLOWED"
)

// Domain errors for business logic
type DomainError struct {
	Code    string
	Message string
}

func (e *DomainError) Error() string {
	return e.Message
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// Common domain errors
var (
	ErrMalformedCode = NewDomainError(ErrCodeMalformedCode, "Code must be 15 digits with a valid check digit")
	ErrUnknownCode   = NewDomainError(ErrCodeUnknownCode, "Code is not in the list of valid codes")
	ErrAlreadyUsed   = NewDomainError(ErrCodeAlreadyUsed, "Code has already been redeemed")
)
