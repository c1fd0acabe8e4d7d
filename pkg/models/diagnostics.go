package models

import "fmt"

// Severity classifies how a diagnostic affects the run
type Severity int

const (
	// SeverityFatal aborts the run (duplicate table, unparseable statement boundary)
	SeverityFatal Severity = iota
	// SeverityStructural drops the affected entry but the run continues
	SeverityStructural
	// SeverityAdvisory is a low-severity note (e.g. classifier fallback)
	SeverityAdvisory
)

// String returns the severity name
func (s Severity) String() string {
	switch s {
	case SeverityFatal:
		return "fatal"
	case SeverityStructural:
		return "structural"
	case SeverityAdvisory:
		return "advisory"
	}
	return "unknown"
}

// Diagnostic records a non-fatal issue encountered while building the schema
type Diagnostic struct {
	Severity Severity
	Subject  string
	Message  string
	Offset   int64
}

// String formats the diagnostic for logs and the run summary
func (d Diagnostic) String() string {
	if d.Offset > 0 {
		return fmt.Sprintf("[%s] %s: %s (byte offset %d)", d.Severity, d.Subject, d.Message, d.Offset)
	}
	return fmt.Sprintf("[%s] %s: %s", d.Severity, d.Subject, d.Message)
}

// CountDropped returns the number of structural diagnostics, i.e. entries
// dropped from the schema
func CountDropped(diags []Diagnostic) int {
	n := 0
	for _, d := range diags {
		if d.Severity == SeverityStructural {
			n++
		}
	}
	return n
}
