package dashboard

import (
	"time"

	"github.com/farmwatch/farmwatch/internal/status"
	"github.com/farmwatch/farmwatch/pkg/models"
)

// TopicSnapshot is the event-bus topic snapshots are published on. The
// payload is a Snapshot value.
const TopicSnapshot = "dashboard.snapshot"

// Snapshot is the fully-assembled view-model one refresh cycle produces.
// It is immutable after assembly: consumers must treat every field,
// including slices and the readings map, as read-only. Each refresh builds a
// fresh one; nothing is patched incrementally.
type Snapshot struct {
	Summary models.SecuritySummary
	Devices []models.Device
	Alerts  []models.ThreatAlert
	Events  []models.SecurityEvent

	Level       status.Level
	StatusLabel string

	// LatestReadings maps sensor ID to its most recent reading.
	LatestReadings map[string]models.SensorReading

	// Degraded lists best-effort sources that failed this cycle and were
	// replaced with empty data.
	Degraded []string

	FetchedAt time.Time

	seq uint64
}
