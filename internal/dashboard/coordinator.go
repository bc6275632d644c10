// Package dashboard orchestrates one refresh cycle: fetch everything the
// dashboard shows, reconcile sensor readings, classify the security posture,
// and publish one immutable snapshot.
package dashboard

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/farmwatch/farmwatch/internal/api"
	"github.com/farmwatch/farmwatch/internal/event"
	"github.com/farmwatch/farmwatch/internal/reconcile"
	"github.com/farmwatch/farmwatch/internal/status"
	"github.com/farmwatch/farmwatch/pkg/models"
)

// Fetcher is the slice of the API client a refresh needs.
type Fetcher interface {
	SecuritySummary(ctx context.Context) (*models.SecuritySummary, error)
	Devices(ctx context.Context, filter api.DeviceFilter) ([]models.Device, error)
	Alerts(ctx context.Context, filter api.AlertFilter) ([]models.ThreatAlert, error)
	SecurityEvents(ctx context.Context, filter api.EventFilter) ([]models.SecurityEvent, error)
	SensorData(ctx context.Context) ([]models.SensorReading, error)
}

// AuthObserver is notified of fetch errors so a rejected token can force a
// local logout. The session manager implements it.
type AuthObserver interface {
	ObserveError(ctx context.Context, err error) bool
}

// RefreshError reports a refresh aborted because a required fetch failed.
// It carries every underlying failure.
type RefreshError struct {
	Errors []error
}

func (e *RefreshError) Error() string {
	msgs := make([]string, len(e.Errors))
	for i, err := range e.Errors {
		msgs[i] = err.Error()
	}
	return "refresh failed: " + strings.Join(msgs, "; ")
}

func (e *RefreshError) Unwrap() []error {
	return e.Errors
}

// Options tunes a Coordinator.
type Options struct {
	// AlertLimit caps the recent-alerts fetch. Zero means the service default.
	AlertLimit int
	// EventLimit caps the recent-events fetch. Zero means the service default.
	EventLimit int
	// MinRefreshInterval throttles back-to-back refreshes. Zero disables the
	// limiter.
	MinRefreshInterval time.Duration
}

// Coordinator drives refresh cycles. Refresh is re-entrant safe: each cycle
// carries a monotonic sequence number and only the highest sequence observed
// so far is ever published, so a slow early refresh can never overwrite a
// later one.
type Coordinator struct {
	fetcher  Fetcher
	bus      *event.Bus
	auth     AuthObserver
	logger   *zap.Logger
	limiter  *rate.Limiter
	opts     Options

	mu           sync.Mutex
	nextSeq      uint64
	publishedSeq uint64
	current      *Snapshot
}

// NewCoordinator creates a Coordinator. bus and auth may be nil.
func NewCoordinator(fetcher Fetcher, bus *event.Bus, auth AuthObserver, logger *zap.Logger, opts Options) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	var limiter *rate.Limiter
	if opts.MinRefreshInterval > 0 {
		limiter = rate.NewLimiter(rate.Every(opts.MinRefreshInterval), 1)
	}
	return &Coordinator{
		fetcher: fetcher,
		bus:     bus,
		auth:    auth,
		logger:  logger,
		limiter: limiter,
		opts:    opts,
	}
}

// Current returns the last published snapshot by value, or nil before the
// first successful refresh.
func (c *Coordinator) Current() *Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return nil
	}
	snap := *c.current
	return &snap
}

// fetchResult collects the settled outcome of one refresh's parallel calls.
type fetchResult struct {
	summary    *models.SecuritySummary
	summaryErr error

	devices    []models.Device
	devicesErr error

	alerts    []models.ThreatAlert
	alertsErr error

	events    []models.SecurityEvent
	eventsErr error

	readings    []models.SensorReading
	readingsErr error
}

// Refresh runs one full cycle and returns the assembled snapshot. The
// security summary and device list are required: if either fails the whole
// refresh fails with a RefreshError. Alerts, security events, and sensor
// readings are best-effort; their failure degrades the snapshot to empty
// data. All five fetches run concurrently and the cycle waits for every one
// to settle. In-flight refreshes are never interrupted; a stale result is
// simply not published.
func (c *Coordinator) Refresh(ctx context.Context) (*Snapshot, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("refresh throttled: %w", err)
		}
	}

	c.mu.Lock()
	c.nextSeq++
	seq := c.nextSeq
	c.mu.Unlock()

	var (
		res fetchResult
		wg  sync.WaitGroup
	)
	wg.Add(5)
	go func() {
		defer wg.Done()
		res.summary, res.summaryErr = c.fetcher.SecuritySummary(ctx)
	}()
	go func() {
		defer wg.Done()
		res.devices, res.devicesErr = c.fetcher.Devices(ctx, api.DeviceFilter{})
	}()
	go func() {
		defer wg.Done()
		res.alerts, res.alertsErr = c.fetcher.Alerts(ctx, api.AlertFilter{Limit: c.opts.AlertLimit})
	}()
	go func() {
		defer wg.Done()
		res.events, res.eventsErr = c.fetcher.SecurityEvents(ctx, api.EventFilter{Limit: c.opts.EventLimit})
	}()
	go func() {
		defer wg.Done()
		res.readings, res.readingsErr = c.fetcher.SensorData(ctx)
	}()
	wg.Wait()

	c.observeAuth(ctx, res.summaryErr, res.devicesErr, res.alertsErr, res.eventsErr, res.readingsErr)

	var required []error
	if res.summaryErr != nil {
		required = append(required, fmt.Errorf("security summary: %w", res.summaryErr))
	}
	if res.devicesErr != nil {
		required = append(required, fmt.Errorf("devices: %w", res.devicesErr))
	}
	if len(required) > 0 {
		refreshesTotal.WithLabelValues("failed").Inc()
		return nil, &RefreshError{Errors: required}
	}

	snap := c.assemble(seq, res)

	if c.publish(ctx, snap) {
		refreshesTotal.WithLabelValues("published").Inc()
	} else {
		refreshesTotal.WithLabelValues("stale").Inc()
		c.logger.Debug("discarding stale refresh result", zap.Uint64("seq", seq))
	}
	return snap, nil
}

// assemble builds the immutable snapshot from settled fetch results.
func (c *Coordinator) assemble(seq uint64, res fetchResult) *Snapshot {
	snap := &Snapshot{
		Summary:   *res.summary,
		Devices:   res.devices,
		FetchedAt: time.Now().UTC(),
		seq:       seq,
	}

	st := status.Classify(snap.Summary)
	snap.Level = st.Level
	snap.StatusLabel = st.Label

	if res.alertsErr != nil {
		snap.Alerts = []models.ThreatAlert{}
		snap.Degraded = append(snap.Degraded, "alerts")
		c.logger.Warn("alerts fetch failed, snapshot degraded", zap.Error(res.alertsErr))
	} else {
		snap.Alerts = res.alerts
	}

	if res.eventsErr != nil {
		snap.Events = []models.SecurityEvent{}
		snap.Degraded = append(snap.Degraded, "security_events")
		c.logger.Warn("security events fetch failed, snapshot degraded", zap.Error(res.eventsErr))
	} else {
		snap.Events = res.events
	}

	if res.readingsErr != nil {
		snap.LatestReadings = map[string]models.SensorReading{}
		snap.Degraded = append(snap.Degraded, "sensor_data")
		c.logger.Warn("sensor data fetch failed, snapshot degraded", zap.Error(res.readingsErr))
	} else {
		snap.LatestReadings = reconcile.Latest(res.readings)
	}

	return snap
}

// publish installs snap as current unless a higher-sequence snapshot already
// published. Reports whether snap was published.
func (c *Coordinator) publish(ctx context.Context, snap *Snapshot) bool {
	c.mu.Lock()
	if snap.seq <= c.publishedSeq {
		c.mu.Unlock()
		return false
	}
	c.publishedSeq = snap.seq
	c.current = snap
	c.mu.Unlock()

	if c.bus != nil {
		c.bus.Publish(ctx, event.Event{
			Topic:   TopicSnapshot,
			Time:    snap.FetchedAt,
			Payload: *snap,
		})
	}
	return true
}

func (c *Coordinator) observeAuth(ctx context.Context, errs ...error) {
	if c.auth == nil {
		return
	}
	for _, err := range errs {
		if err == nil {
			continue
		}
		if c.auth.ObserveError(ctx, err) {
			return
		}
	}
}
