package service

import "errors"

var (
	// ErrUnknownTopic rejects deliveries for topics outside the closed set
	ErrUnknownTopic = errors.New("unknown webhook topic")

	// ErrPreconditionFailed marks a delivery whose preconditions did not
	// hold (no line items, no matching cart, ...). Terminal no-op, never
	// worth a redelivery.
	ErrPreconditionFailed = errors.New("webhook precondition not met")

	// ErrMalformedPayload marks a delivery whose body did not parse.
	// Redelivery would produce the same bytes, so it is terminal too.
	ErrMalformedPayload = errors.New("malformed webhook payload")

	// ErrInvalidStatus rejects a cart status outside the closed set
	ErrInvalidStatus = errors.New("invalid cart status")

	// ErrSyncInProgress reports that another reconciliation already holds
	// the shop's sync lock
	ErrSyncInProgress = errors.New("sync already in progress for shop")
)

// Terminal reports whether a webhook processing error is a terminal no-op.
// Terminal errors are acknowledged to the sender; anything else is
// retryable and should surface as a non-2xx response.
func Terminal(err error) bool {
	return errors.Is(err, ErrUnknownTopic) ||
		errors.Is(err, ErrPreconditionFailed) ||
		errors.Is(err, ErrMalformedPayload)
}
