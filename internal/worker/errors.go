package worker

import (
	"errors"

	"go.temporal.io/sdk/temporal"

	apperrs "github.com/jdholdren/aptwatch/internal/errors"
)

// Unwraps the application error from temporal into a structured error if
// possible.
//
// Returns true if the error carried one as its details.
func asAppErr(err error, target **apperrs.Error) bool {
	if err == nil {
		return false
	}

	var appErr *temporal.ApplicationError
	if !errors.As(err, &appErr) || !appErr.HasDetails() {
		return false
	}
	return appErr.Details(target) == nil
}
