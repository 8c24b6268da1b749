package models

// Error codes returned alongside rejected operations.
const (
	CodeValidation    = "validation"
	CodeAuthorization = "authorization"
	CodeConflict      = "conflict"
	CodeDependency    = "dependency"

	CodeEmailUnverified  = "email_unverified"
	CodeDonorNotApproved = "donor_not_approved"
	CodeOwnRequest       = "own_request"
	CodeRequestNotOpen   = "request_not_open"
	CodeCapacityReached  = "capacity_reached"
	CodeAlreadyResponded = "already_responded"
	CodeIncompatible     = "incompatible_blood_group"
	CodeCooldownActive   = "cooldown_active"
)

// User-facing messages shared between the pre-check and the storage layer,
// so a lost race and a failed pre-check read the same.
const (
	MsgCapacityReached  = "all required donors have already been accepted for this request"
	MsgAlreadyResponded = "you have already responded to this request"
)

// ErrorResponse describes an error with an HTTP status, a stable code and a message.
type ErrorResponse struct {
	StatusCode int    `json:"-"`
	Code       string `json:"code"`
	Message    string `json:"reason"`
}

// NewErrorResponse creates a new error with a status code and a message.
func NewErrorResponse(statusCode int, code, message string) *ErrorResponse {
	return &ErrorResponse{
		StatusCode: statusCode,
		Code:       code,
		Message:    message}
}

// Error implements the error interface.
func (e *ErrorResponse) Error() string {
	return e.Message
}
