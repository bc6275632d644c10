package api

import (
	"net/url"
	"strconv"

	"github.com/farmwatch/farmwatch/pkg/models"
)

// LoginRequest is the body of POST /auth/login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse is the consumed part of a successful login. AccessToken is
// the only field the service guarantees.
type LoginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type,omitempty"`
}

// RegisterRequest is the body of POST /auth/register.
type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type registerResponse struct {
	Msg string `json:"msg"`
}

// AddReadingRequest is the body of POST /sensor/add.
type AddReadingRequest struct {
	SensorID    string  `json:"sensor_id"`
	SensorType  string  `json:"sensor_type"`
	Temperature float64 `json:"temperature"`
	Humidity    float64 `json:"humidity"`
}

// AlertFilter narrows GET /security/alerts. Zero values mean "no filter".
type AlertFilter struct {
	ThreatLevel models.ThreatLevel
	Skip        int
	Limit       int
}

func (f AlertFilter) query() url.Values {
	q := url.Values{}
	if f.ThreatLevel != "" {
		q.Set("threat_level", string(f.ThreatLevel))
	}
	if f.Skip > 0 {
		q.Set("skip", strconv.Itoa(f.Skip))
	}
	if f.Limit > 0 {
		q.Set("limit", strconv.Itoa(f.Limit))
	}
	return q
}

// DeviceFilter narrows GET /devices/. Zero values mean "no filter".
type DeviceFilter struct {
	Status     models.DeviceStatus
	DeviceType string
}

func (f DeviceFilter) query() url.Values {
	q := url.Values{}
	if f.Status != "" {
		q.Set("status", string(f.Status))
	}
	if f.DeviceType != "" {
		q.Set("device_type", f.DeviceType)
	}
	return q
}

// EventFilter narrows GET /security/events. Zero values mean "no filter".
type EventFilter struct {
	Severity string
	Status   string
	Skip     int
	Limit    int
}

func (f EventFilter) query() url.Values {
	q := url.Values{}
	if f.Severity != "" {
		q.Set("severity", f.Severity)
	}
	if f.Status != "" {
		q.Set("status", f.Status)
	}
	if f.Skip > 0 {
		q.Set("skip", strconv.Itoa(f.Skip))
	}
	if f.Limit > 0 {
		q.Set("limit", strconv.Itoa(f.Limit))
	}
	return q
}

// errorBody is the shape the service uses for status >= 400. A missing detail
// field is tolerated.
type errorBody struct {
	Detail string `json:"detail"`
}
