package config

import (
	"testing"

	"github.com/spf13/viper"
)

func TestBuildLogger(t *testing.T) {
	tests := []struct {
		name    string
		level   string
		format  string
		wantErr bool
	}{
		{"console default", "info", "", false},
		{"json", "debug", "json", false},
		{"console explicit", "warn", "console", false},
		{"bad level", "shouty", "json", true},
		{"bad format", "info", "xml", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := BuildLogger(tt.level, tt.format)
			if tt.wantErr {
				if err == nil {
					t.Error("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("BuildLogger: %v", err)
			}
			if logger == nil {
				t.Fatal("nil logger")
			}
			_ = logger.Sync()
		})
	}
}

func TestNewLogger_from_viper(t *testing.T) {
	v := viper.New()
	v.Set("logging.level", "error")
	v.Set("logging.format", "json")

	logger, err := NewLogger(v)
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	if logger == nil {
		t.Fatal("nil logger")
	}
}
