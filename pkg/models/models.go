// Package models defines the domain types shared by the FarmWatch client:
// sessions, sensor readings, devices, alerts, and the security summary the
// monitoring service reports.
package models

import (
	"encoding/json"
	"time"
)

// SensorType categorizes a physical sensor.
type SensorType string

const (
	SensorTypeTemperature SensorType = "temperature"
	SensorTypeHumidity    SensorType = "humidity"
	SensorTypeUnknown     SensorType = "unknown"
)

// DeviceStatus represents the service's view of an authorized device.
type DeviceStatus string

const (
	DeviceStatusActive      DeviceStatus = "active"
	DeviceStatusInactive    DeviceStatus = "inactive"
	DeviceStatusSuspicious  DeviceStatus = "suspicious"
	DeviceStatusQuarantined DeviceStatus = "quarantined"
	DeviceStatusUnknown     DeviceStatus = "unknown"
)

// NormalizeDeviceStatus maps unrecognized wire values to DeviceStatusUnknown.
func NormalizeDeviceStatus(s string) DeviceStatus {
	switch DeviceStatus(s) {
	case DeviceStatusActive, DeviceStatusInactive, DeviceStatusSuspicious, DeviceStatusQuarantined:
		return DeviceStatus(s)
	}
	return DeviceStatusUnknown
}

// ThreatLevel grades a threat alert.
type ThreatLevel string

const (
	ThreatLevelLow      ThreatLevel = "low"
	ThreatLevelMedium   ThreatLevel = "medium"
	ThreatLevelHigh     ThreatLevel = "high"
	ThreatLevelCritical ThreatLevel = "critical"
)

// Session is the locally persisted proof of authentication. A session exists
// iff a token is persisted; it is replaced wholesale on re-login and removed
// on logout.
type Session struct {
	Token         string     `json:"token"`
	Username      string     `json:"username"`
	Email         string     `json:"email"`
	EstablishedAt time.Time  `json:"established_at"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
}

// SensorReading is one timestamped measurement reported by a sensor. Readings
// are immutable facts; value fields are pointers because a reading carries
// only the measurements its sensor type produces. Raw preserves the wire
// payload untouched for fields this client does not model.
type SensorReading struct {
	ID          int64           `json:"id,omitempty"`
	SensorID    string          `json:"sensor_id"`
	SensorType  SensorType      `json:"sensor_type"`
	Temperature *float64        `json:"temperature,omitempty"`
	Humidity    *float64        `json:"humidity,omitempty"`
	Timestamp   string          `json:"timestamp,omitempty"`
	Raw         json.RawMessage `json:"-"`
}

// UnmarshalJSON decodes the known fields and keeps the original payload in Raw.
func (r *SensorReading) UnmarshalJSON(data []byte) error {
	type plain SensorReading
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*r = SensorReading(p)
	r.Raw = append(json.RawMessage(nil), data...)
	return nil
}

// Time parses the reading's timestamp. ok is false when the timestamp is
// absent or unparsable; such readings sort older than any valid one.
func (r SensorReading) Time() (time.Time, bool) {
	return ParseTime(r.Timestamp)
}

// The service emits ISO 8601 timestamps, usually without a zone suffix.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// ParseTime parses a service timestamp in any of its observed layouts.
func ParseTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// SecuritySummary carries the aggregate counters the service derives for its
// dashboard. Counters missing from the payload decode as zero.
type SecuritySummary struct {
	TotalEvents        int `json:"total_events"`
	CriticalEvents     int `json:"critical_events"`
	HighPriorityEvents int `json:"high_priority_events"`
	ActiveThreats      int `json:"active_threats"`
	BlockedIPs         int `json:"blocked_ips"`
	QuarantinedDevices int `json:"quarantined_devices"`
	Last24hEvents      int `json:"last_24h_events"`
}

// Device is an authorized device registered with the service.
type Device struct {
	ID         int64        `json:"id,omitempty"`
	DeviceID   string       `json:"device_id"`
	DeviceName string       `json:"device_name"`
	DeviceType string       `json:"device_type,omitempty"`
	MACAddress string       `json:"mac_address,omitempty"`
	Location   string       `json:"location,omitempty"`
	Status     DeviceStatus `json:"status"`
	LastSeen   string       `json:"last_seen,omitempty"`
	CreatedAt  string       `json:"created_at,omitempty"`
	UpdatedAt  string       `json:"updated_at,omitempty"`
}

// ThreatAlert is one entry in the service's prevention (IPS) feed.
type ThreatAlert struct {
	ID             int64       `json:"id,omitempty"`
	AlertType      string      `json:"alert_type,omitempty"`
	ThreatLevel    ThreatLevel `json:"threat_level"`
	SourceIP       string      `json:"source_ip,omitempty"`
	TargetEndpoint string      `json:"target_endpoint,omitempty"`
	ActionTaken    string      `json:"action_taken,omitempty"`
	Description    string      `json:"description"`
	Metadata       string      `json:"metadata,omitempty"`
	Timestamp      string      `json:"timestamp,omitempty"`
}

// SecurityEvent is one entry in the service's detection (IDS) feed.
type SecurityEvent struct {
	ID          int64  `json:"id,omitempty"`
	EventType   string `json:"event_type"`
	Severity    string `json:"severity"`
	SourceIP    string `json:"source_ip,omitempty"`
	UserID      int64  `json:"user_id,omitempty"`
	SensorID    string `json:"sensor_id,omitempty"`
	Description string `json:"description"`
	Details     string `json:"details,omitempty"`
	Status      string `json:"status,omitempty"`
	Timestamp   string `json:"timestamp,omitempty"`
	ResolvedAt  string `json:"resolved_at,omitempty"`
}

// User is an account record as the service returns it.
type User struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	CreatedAt string `json:"created_at,omitempty"`
}
