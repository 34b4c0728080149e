package billing

import "errors"

var (
	// ErrNoChargeIDs is returned by batch charge generation when the id
	// list is empty; the upstream would generate nothing.
	ErrNoChargeIDs = errors.New("no charge ids provided for batch generation")
)
