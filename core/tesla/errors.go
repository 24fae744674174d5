package tesla

import "errors"

// ErrAlreadySet is returned by command methods when the vehicle reports the
// requested setting already matches. Callers treat it as benign.
var ErrAlreadySet = errors.New("setting already applied")
