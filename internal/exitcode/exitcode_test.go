package exitcode

import (
	"errors"
	"fmt"
	"testing"

	"taskboard/internal/errs"
)

func TestFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{nil, Success},
		{fmt.Errorf("list: %w", errs.ErrUnauthenticated), AuthError},
		{fmt.Errorf("%w: 503", errs.ErrRemote), BackendError},
		{errs.ErrTimeout, BackendError},
		{errs.ErrNotification, BackendError},
		{errs.ErrInvalidTask, UserError},
		{errs.ErrNotConfirmed, UserError},
		{errors.New("bad input"), UserError},
	}
	for _, tt := range tests {
		if got := For(tt.err); got != tt.want {
			t.Errorf("For(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
