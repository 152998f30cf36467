package healthcore

import (
	"github.com/hengadev/healthcore/internal/hcerr"
)

// The error taxonomy. Services return these sentinels (wrapped with
// context); the transport layer maps them to stable codes via ErrorCode.
var (
	ErrInsufficientRole    = hcerr.ErrInsufficientRole
	ErrAccessDenied        = hcerr.ErrAccessDenied
	ErrCannotAssignAdmin   = hcerr.ErrCannotAssignAdmin
	ErrCannotRevokeOwnRole = hcerr.ErrCannotRevokeOwnRole
	ErrNoRoleToRevoke      = hcerr.ErrNoRoleToRevoke
	ErrUserNotFound        = hcerr.ErrUserNotFound

	ErrPatientNotFound    = hcerr.ErrPatientNotFound
	ErrSubmissionNotFound = hcerr.ErrSubmissionNotFound
	ErrCardNotFound       = hcerr.ErrCardNotFound
	ErrRecordNotFound     = hcerr.ErrRecordNotFound

	ErrDuplicateIdentity = hcerr.ErrDuplicateIdentity
	ErrAlreadyReviewed   = hcerr.ErrAlreadyReviewed
	ErrCardInactive      = hcerr.ErrCardInactive

	ErrInvalidPayload         = hcerr.ErrInvalidPayload
	ErrMissingReason          = hcerr.ErrMissingReason
	ErrInvalidStateTransition = hcerr.ErrInvalidStateTransition

	ErrIntegrityFailure = hcerr.ErrIntegrityFailure
	ErrAuthFail         = hcerr.ErrAuthFail

	ErrStoreUnavailable = hcerr.ErrStoreUnavailable
	ErrAuditUnavailable = hcerr.ErrAuditUnavailable
	ErrIDExhaustion     = hcerr.ErrIDExhaustion
)

// ErrorCode returns the stable transport code for err.
func ErrorCode(err error) string {
	return hcerr.Code(err)
}
