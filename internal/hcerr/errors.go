package hcerr

import (
	"errors"
	"fmt"
)

var (
	// Authorisation errors
	ErrInsufficientRole    = errors.New("insufficient role")
	ErrAccessDenied        = errors.New("access denied")
	ErrCannotAssignAdmin   = errors.New("admin role cannot be assigned")
	ErrCannotRevokeOwnRole = errors.New("cannot revoke own role")
	ErrNoRoleToRevoke      = errors.New("no role to revoke")
	ErrUserNotFound        = errors.New("user not found")

	// Not-found errors
	ErrPatientNotFound    = errors.New("patient not found")
	ErrSubmissionNotFound = errors.New("submission not found")
	ErrCardNotFound       = errors.New("card not found")
	ErrRecordNotFound     = errors.New("record not found")

	// Conflict errors
	ErrDuplicateIdentity = errors.New("identity already registered")
	ErrAlreadyReviewed   = errors.New("submission already reviewed")
	ErrCardInactive      = errors.New("card is not active")

	// Validation errors
	ErrInvalidPayload         = errors.New("invalid payload")
	ErrMissingReason          = errors.New("reason is required")
	ErrInvalidStateTransition = errors.New("invalid state transition")

	// Integrity errors. Both are unrecoverable for the caller.
	ErrIntegrityFailure = errors.New("content integrity check failed")
	ErrAuthFail         = errors.New("authenticated decryption failed")

	// Availability errors
	ErrStoreUnavailable = errors.New("object store unavailable")
	ErrAuditUnavailable = errors.New("audit sink unavailable")
	ErrIDExhaustion     = errors.New("health id space exhausted")
)

// codes maps sentinel errors to the stable codes the transport layer
// exposes. Errors outside the taxonomy map to "INTERNAL".
var codes = map[error]string{
	ErrInsufficientRole:       "INSUFFICIENT_ROLE",
	ErrAccessDenied:           "ACCESS_DENIED",
	ErrCannotAssignAdmin:      "CANNOT_ASSIGN_ADMIN",
	ErrCannotRevokeOwnRole:    "CANNOT_REVOKE_OWN_ROLE",
	ErrNoRoleToRevoke:         "NO_ROLE_TO_REVOKE",
	ErrUserNotFound:           "USER_NOT_FOUND",
	ErrPatientNotFound:        "PATIENT_NOT_FOUND",
	ErrSubmissionNotFound:     "SUBMISSION_NOT_FOUND",
	ErrCardNotFound:           "CARD_NOT_FOUND",
	ErrRecordNotFound:         "RECORD_NOT_FOUND",
	ErrDuplicateIdentity:      "DUPLICATE_IDENTITY",
	ErrAlreadyReviewed:        "ALREADY_REVIEWED",
	ErrCardInactive:           "CARD_INACTIVE",
	ErrInvalidPayload:         "INVALID_PAYLOAD",
	ErrMissingReason:          "MISSING_REASON",
	ErrInvalidStateTransition: "INVALID_STATE_TRANSITION",
	ErrIntegrityFailure:       "INTEGRITY_FAILURE",
	ErrAuthFail:               "AUTH_FAIL",
	ErrStoreUnavailable:       "STORE_UNAVAILABLE",
	ErrAuditUnavailable:       "AUDIT_UNAVAILABLE",
	ErrIDExhaustion:           "ID_EXHAUSTION",
}

// Code returns the stable code for err, walking the wrap chain.
func Code(err error) string {
	for sentinel, code := range codes {
		if errors.Is(err, sentinel) {
			return code
		}
	}
	return "INTERNAL"
}

func NewDenied(reason string) error {
	return fmt.Errorf("%w: %s", ErrAccessDenied, reason)
}

func NewInsufficientRole(role string, capability string) error {
	return fmt.Errorf("%w: role %s lacks %s", ErrInsufficientRole, role, capability)
}

func NewStoreUnavailable(op string, cause error) error {
	return fmt.Errorf("%w: %s: %v", ErrStoreUnavailable, op, cause)
}

func NewAuditUnavailable(cause error) error {
	return fmt.Errorf("%w: %v", ErrAuditUnavailable, cause)
}
