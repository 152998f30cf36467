package hcerr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodeMapsSentinels(t *testing.T) {
	tests := []struct {
		err  error
		code string
	}{
		{ErrInsufficientRole, "INSUFFICIENT_ROLE"},
		{ErrAccessDenied, "ACCESS_DENIED"},
		{ErrCannotAssignAdmin, "CANNOT_ASSIGN_ADMIN"},
		{ErrNoRoleToRevoke, "NO_ROLE_TO_REVOKE"},
		{ErrDuplicateIdentity, "DUPLICATE_IDENTITY"},
		{ErrIntegrityFailure, "INTEGRITY_FAILURE"},
		{ErrAuthFail, "AUTH_FAIL"},
		{ErrIDExhaustion, "ID_EXHAUSTION"},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.code, Code(tt.err))
		})
	}
}

func TestCodeWalksWrapChain(t *testing.T) {
	wrapped := fmt.Errorf("during download: %w", ErrStoreUnavailable)
	assert.Equal(t, "STORE_UNAVAILABLE", Code(wrapped))

	assert.Equal(t, "INTERNAL", Code(errors.New("unexpected")))
	assert.Equal(t, "ACCESS_DENIED", Code(NewDenied("not your record")))
	assert.Equal(t, "INSUFFICIENT_ROLE", Code(NewInsufficientRole("patient", "upload_record")))
}
