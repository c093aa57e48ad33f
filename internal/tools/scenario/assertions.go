package scenario

import (
	"fmt"
	"log"
)

// AssertionMode selects what a failed expectation does to the run.
type AssertionMode int

const (
	// AssertionStrict fails the run on the first unmet expectation.
	AssertionStrict AssertionMode = iota
	// AssertionLenient logs unmet expectations and keeps running, for
	// exploratory scripts against evolving behavior.
	AssertionLenient
)

// Assertions applies the configured assertion mode to expectations.
type Assertions struct {
	Mode   AssertionMode
	Logger *log.Logger
}

// Failf reports an unmet expectation: an error in strict mode, a log line in
// lenient mode.
func (a Assertions) Failf(format string, args ...any) error {
	if a.Mode == AssertionStrict {
		return fmt.Errorf(format, args...)
	}
	if a.Logger != nil {
		a.Logger.Printf("EXPECTATION FAILED: "+format, args...)
	}
	return nil
}
