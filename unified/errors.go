package unified

import "errors"

// ErrInvalidConfig is returned by New and Config.Validate when the
// configuration cannot describe a memory space.
var ErrInvalidConfig = errors.New("invalid configuration")
