// Package status derives the single aggregate security classification shown
// at the top of the dashboard.
package status

import (
	"fmt"

	"github.com/farmwatch/farmwatch/pkg/models"
)

// Level is the overall security posture. Severity is totally ordered:
// critical > warning > secure.
type Level string

const (
	LevelSecure   Level = "secure"
	LevelWarning  Level = "warning"
	LevelCritical Level = "critical"
)

// Status pairs a level with its human-readable label.
type Status struct {
	Level Level
	Label string
}

// Classify maps the summary counters to a status. Precedence is fixed: a
// single critical event dominates any number of lesser active threats.
// Counters absent from the payload arrive as zero and classify as secure.
func Classify(summary models.SecuritySummary) Status {
	switch {
	case summary.CriticalEvents > 0:
		return Status{
			Level: LevelCritical,
			Label: fmt.Sprintf("%d Critical Threat(s)", summary.CriticalEvents),
		}
	case summary.ActiveThreats > 0:
		return Status{
			Level: LevelWarning,
			Label: fmt.Sprintf("%d Active Threat(s)", summary.ActiveThreats),
		}
	default:
		return Status{Level: LevelSecure, Label: "All Systems Secure"}
	}
}
