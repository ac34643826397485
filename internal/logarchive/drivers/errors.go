package drivers

import "errors"

// ErrObjectNotFound is wrapped by Get when the key does not exist.
var ErrObjectNotFound = errors.New("object not found")
