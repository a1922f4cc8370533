package signin

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/loginflow/signin/internal/backend"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		kind    FailureKind
		code    int
		message string
	}{
		{
			name:    "forbidden hides backend text",
			err:     &backend.Error{Code: 403, Message: "user table lookup failed on shard 7"},
			kind:    AuthFailureForbidden,
			code:    403,
			message: ForbiddenMessage,
		},
		{
			name:    "forbidden without message",
			err:     &backend.Error{Code: 403},
			kind:    AuthFailureForbidden,
			code:    403,
			message: ForbiddenMessage,
		},
		{
			name:    "other code surfaces backend message",
			err:     &backend.Error{Code: 401, Message: "The verification code is invalid."},
			kind:    AuthFailureOther,
			code:    401,
			message: "The verification code is invalid.",
		},
		{
			name:    "wrapped backend error",
			err:     fmt.Errorf("authenticate: %w", &backend.Error{Code: 429, Message: "Slow down."}),
			kind:    AuthFailureOther,
			code:    429,
			message: "Slow down.",
		},
		{
			name:    "other code without message",
			err:     &backend.Error{Code: 500, Message: "  "},
			kind:    AuthFailureOther,
			code:    500,
			message: GenericFailureMessage,
		},
		{
			name:    "transport error",
			err:     context.DeadlineExceeded,
			kind:    AuthFailureOther,
			message: GenericFailureMessage,
		},
		{
			name:    "plain error",
			err:     errors.New("boom"),
			kind:    AuthFailureOther,
			message: GenericFailureMessage,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.err)
			assert.Equal(t, tt.kind, got.Kind)
			assert.Equal(t, tt.code, got.Code)
			assert.Equal(t, tt.message, got.Message)
		})
	}
}
