package analytics

import "errors"

// ErrStoreRequired is returned when a document store is not provided.
var ErrStoreRequired = errors.New("document store required")
