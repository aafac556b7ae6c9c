package identity

import "fmt"

// ResolutionError is returned when no listing identifier can be determined
// from the input. It is a client-input error and is not retried.
type ResolutionError struct {
	Input  string
	Reason string
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("identity: cannot resolve %q: %s", e.Input, e.Reason)
}
