package search

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
)

// ErrUnavailable matches any UnavailableError via errors.Is.
var ErrUnavailable = eris.New("search: upstream unavailable")

// VariantFailure records why one endpoint variant was rejected.
type VariantFailure struct {
	Variant   string `json:"variant"`
	Reason    string `json:"reason"`
	Transient bool   `json:"transient"`
}

// UnavailableError is returned when every endpoint variant failed or came
// back empty for a keyword. Callers treat it as "no data", not as a fault.
type UnavailableError struct {
	Keyword  string
	Failures []VariantFailure
}

func (e *UnavailableError) Error() string {
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, fmt.Sprintf("%s: %s", f.Variant, f.Reason))
	}
	return fmt.Sprintf("search: no results for %q (%s)", e.Keyword, strings.Join(parts, "; "))
}

// Is reports whether target is ErrUnavailable.
func (e *UnavailableError) Is(target error) bool {
	return target == ErrUnavailable
}
