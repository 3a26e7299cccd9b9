package resolve

import (
	"fmt"
	"strings"
	"time"
)

// ElementNotFoundError reports an exhausted resolution: either the scope stayed empty for
// the whole enumeration window, or no criterion matched any enumerated candidate.
type ElementNotFoundError struct {
	Target     string        // target name, may be empty
	Scope      string        // selector candidates were enumerated from
	Enumerated int           // number of candidates enumerated
	Attempted  []string      // criteria tried, in priority order
	Waited     time.Duration // enumeration window, set when nothing appeared
}

func (e *ElementNotFoundError) Error() string {
	prefix := "element not found"
	if e.Target != "" {
		prefix = e.Target + ": element not found"
	}
	if e.Enumerated == 0 {
		return fmt.Sprintf("%s: no elements appeared in %q within %s", prefix, e.Scope, e.Waited)
	}
	return fmt.Sprintf("%s: %d candidates in %q, tried [%s]", prefix, e.Enumerated, e.Scope,
		strings.Join(e.Attempted, ", "))
}
