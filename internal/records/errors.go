package records

import "errors"

var (
	// ErrIDRequired is returned when an update is attempted without a record id.
	ErrIDRequired = errors.New("records: service request id is required")

	// ErrNotFound is returned when a point lookup fails.
	ErrNotFound = errors.New("records: service request not found")

	ErrMissingName          = errors.New("records: customer name is required")
	ErrMissingEmail         = errors.New("records: customer email is required")
	ErrMissingPreferredDate = errors.New("records: preferred date is required")
)
