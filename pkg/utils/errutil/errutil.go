package errutil

import (
	"context"
	"errors"

	"github.com/m-mizutani/goerr/v2"
	"github.com/pennybridge/mnemon/pkg/utils/logging"
)

// Handle logs the error with a message and its goerr context values.
// The memory subsystem never surfaces errors to the end user, so every
// degradation path funnels through here before the turn continues.
func Handle(ctx context.Context, err error, msg string) {
	if err == nil {
		return
	}

	logger := logging.From(ctx)

	var ge *goerr.Error
	if errors.As(err, &ge) {
		logger.Error(msg,
			"error", err.Error(),
			"values", ge.Values(),
			"stack", ge.Stacks(),
		)
		return
	}

	logger.Error(msg, "error", err.Error())
}
