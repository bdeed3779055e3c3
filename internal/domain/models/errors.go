package models

import "errors"

// ErrNotFound signals that a referenced entity does not exist or is not
// visible to the caller.
var ErrNotFound = errors.New("not found")

// ErrInsufficientStock signals that a consume would overdraw a feed batch.
var ErrInsufficientStock = errors.New("insufficient remaining quantity")
