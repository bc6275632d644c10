package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/farmwatch/farmwatch/internal/api"
	"github.com/farmwatch/farmwatch/internal/config"
	"github.com/farmwatch/farmwatch/internal/credstore"
	"github.com/farmwatch/farmwatch/internal/dashboard"
	"github.com/farmwatch/farmwatch/internal/event"
	"github.com/farmwatch/farmwatch/internal/session"
	"github.com/farmwatch/farmwatch/internal/version"
	"github.com/farmwatch/farmwatch/pkg/models"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cmd := os.Args[1]
	if cmd == "version" {
		fmt.Println(version.Info())
		return
	}

	if err := run(cmd, os.Args[2:]); err != nil {
		fmt.Fprintf(os.Stderr, "farmwatch: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: farmwatch <command> [flags]

commands:
  login      log in and persist the session
  register   create an account (does not log in)
  logout     clear the local session
  status     refresh the dashboard and print the security status
  sensors    print the latest reading per sensor
  devices    print the authorized device registry
  alerts     print recent threat alerts
  version    print version information`)
}

// app wires the client stack for one CLI invocation.
type app struct {
	cfg      config.Config
	logger   *zap.Logger
	store    *credstore.Store
	client   *api.Client
	sessions *session.Manager
}

func newApp(ctx context.Context, v *viper.Viper) (*app, error) {
	cfg := config.FromViper(v)

	logger, err := config.NewLogger(v)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	store, err := credstore.Open(filepath.Join(cfg.DataDir, "credentials.db"))
	if err != nil {
		return nil, err
	}

	client := api.NewClient(cfg.ServerURL, store, cfg.Timeout, logger)

	sessions, err := session.NewManager(ctx, client, store, logger)
	if err != nil {
		store.Close()
		return nil, err
	}

	return &app{cfg: cfg, logger: logger, store: store, client: client, sessions: sessions}, nil
}

func (a *app) close() {
	_ = a.store.Close()
	_ = a.logger.Sync()
}

func run(cmd string, args []string) error {
	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	configPath := fs.String("config", "", "path to configuration file")

	var username, email, password, threatLevel string
	switch cmd {
	case "login":
		fs.StringVar(&username, "username", "", "account username")
		fs.StringVar(&password, "password", "", "account password")
	case "register":
		fs.StringVar(&username, "username", "", "account username")
		fs.StringVar(&email, "email", "", "account email")
		fs.StringVar(&password, "password", "", "account password")
	case "alerts":
		fs.StringVar(&threatLevel, "threat-level", "", "filter by threat level (low, medium, high, critical)")
	case "logout", "status", "sensors", "devices":
	default:
		usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
	if err := fs.Parse(args); err != nil {
		return err
	}

	v, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	ctx := context.Background()
	a, err := newApp(ctx, v)
	if err != nil {
		return err
	}
	defer a.close()

	switch cmd {
	case "login":
		sess, err := a.sessions.Login(ctx, username, password)
		if err != nil {
			return err
		}
		fmt.Printf("logged in as %s\n", sess.Username)
		return nil

	case "register":
		msg, err := a.sessions.Register(ctx, username, email, password)
		if err != nil {
			return err
		}
		fmt.Println(msg)
		return nil

	case "logout":
		if err := a.sessions.Logout(ctx); err != nil {
			return err
		}
		fmt.Println("logged out")
		return nil

	case "status":
		snap, err := a.refresh(ctx)
		if err != nil {
			return err
		}
		printStatus(snap)
		return nil

	case "sensors":
		snap, err := a.refresh(ctx)
		if err != nil {
			return err
		}
		printSensors(snap)
		return nil

	case "devices":
		devices, err := a.client.Devices(ctx, api.DeviceFilter{})
		if err != nil {
			a.sessions.ObserveError(ctx, err)
			return err
		}
		printDevices(devices)
		return nil

	case "alerts":
		alerts, err := a.client.Alerts(ctx, api.AlertFilter{
			ThreatLevel: models.ThreatLevel(threatLevel),
			Limit:       a.cfg.AlertLimit,
		})
		if err != nil {
			a.sessions.ObserveError(ctx, err)
			return err
		}
		printAlerts(alerts)
		return nil
	}
	return nil
}

func (a *app) refresh(ctx context.Context) (*dashboard.Snapshot, error) {
	coord := dashboard.NewCoordinator(a.client, event.NewBus(a.logger), a.sessions, a.logger, dashboard.Options{
		AlertLimit: a.cfg.AlertLimit,
		EventLimit: a.cfg.EventLimit,
	})
	return coord.Refresh(ctx)
}

func printStatus(snap *dashboard.Snapshot) {
	fmt.Printf("%s [%s]\n", snap.StatusLabel, snap.Level)
	fmt.Printf("  active threats:      %d\n", snap.Summary.ActiveThreats)
	fmt.Printf("  critical events:     %d\n", snap.Summary.CriticalEvents)
	fmt.Printf("  events (24h):        %d\n", snap.Summary.Last24hEvents)
	fmt.Printf("  quarantined devices: %d\n", snap.Summary.QuarantinedDevices)
	fmt.Printf("  devices: %d, alerts: %d, sensors: %d\n",
		len(snap.Devices), len(snap.Alerts), len(snap.LatestReadings))
	for _, src := range snap.Degraded {
		fmt.Printf("  (no data from %s this cycle)\n", src)
	}
}

func printSensors(snap *dashboard.Snapshot) {
	if len(snap.LatestReadings) == 0 {
		fmt.Println("no sensor readings")
		return
	}
	for id, r := range snap.LatestReadings {
		line := fmt.Sprintf("%-20s %s", id, r.SensorType)
		if r.Temperature != nil {
			line += fmt.Sprintf("  %.1f°C", *r.Temperature)
		}
		if r.Humidity != nil {
			line += fmt.Sprintf("  %.1f%%RH", *r.Humidity)
		}
		if r.Timestamp != "" {
			line += "  " + r.Timestamp
		}
		fmt.Println(line)
	}
}

func printDevices(devices []models.Device) {
	if len(devices) == 0 {
		fmt.Println("no devices registered")
		return
	}
	for _, d := range devices {
		fmt.Printf("%-20s %-24s %s\n", d.DeviceID, d.DeviceName, d.Status)
	}
}

func printAlerts(alerts []models.ThreatAlert) {
	if len(alerts) == 0 {
		fmt.Println("no threat alerts")
		return
	}
	for _, a := range alerts {
		fmt.Printf("[%-8s] %s\n", a.ThreatLevel, a.Description)
	}
}
