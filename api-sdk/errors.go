package dynsec

import (
	"errors"

	"github.com/hilthontt/dynboard/api-sdk/internal/apierror"
)

// APIError is an error response from the control API, normalized from the
// PostgREST message/details/hint/code body.
type APIError = apierror.Error

var (
	ErrMissingBrokerParameter    = errors.New("missing required broker parameter")
	ErrMissingOperationParameter = errors.New("missing required operation parameter")

	// ErrQueueItemNotFound means the polled queue id has no row. A missing
	// item can never subsequently appear, so the poller fails on it without
	// retrying.
	ErrQueueItemNotFound = errors.New("queue item not found")

	// ErrPollTimeout means every poll attempt saw the item still pending.
	// The operation's true outcome is unknown: surface it as "may have
	// succeeded", never as a confirmed failure.
	ErrPollTimeout = errors.New("poll attempts exhausted while operation still pending")

	ErrBrokerStateNotFound = errors.New("no dynamic security state for broker")
)
