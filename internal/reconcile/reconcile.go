// Package reconcile folds unordered batches of timestamped sensor readings
// into a latest-record-per-sensor view.
package reconcile

import (
	"time"

	"github.com/farmwatch/farmwatch/pkg/models"
)

// Latest returns, per sensor ID, the reading with the greatest valid
// timestamp in the batch. A reading with an absent or unparsable timestamp is
// older than anything valid: it never displaces an occupied slot, but it may
// fill an empty one. When no reading for a sensor has a valid timestamp, the
// first one encountered wins. For distinct valid timestamps the result is
// independent of input order. Runs in one linear pass.
func Latest(readings []models.SensorReading) map[string]models.SensorReading {
	out := make(map[string]models.SensorReading, len(readings))
	valid := make(map[string]time.Time)

	for _, r := range readings {
		ts, ok := r.Time()

		if _, occupied := out[r.SensorID]; !occupied {
			out[r.SensorID] = r
			if ok {
				valid[r.SensorID] = ts
			}
			continue
		}

		if !ok {
			continue
		}

		held, heldValid := valid[r.SensorID]
		if !heldValid || ts.After(held) {
			out[r.SensorID] = r
			valid[r.SensorID] = ts
		}
	}

	return out
}
