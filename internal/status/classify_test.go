package status

import (
	"testing"

	"github.com/farmwatch/farmwatch/pkg/models"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name      string
		summary   models.SecuritySummary
		wantLevel Level
		wantLabel string
	}{
		{
			name:      "critical dominates active threats",
			summary:   models.SecuritySummary{CriticalEvents: 2, ActiveThreats: 5},
			wantLevel: LevelCritical,
			wantLabel: "2 Critical Threat(s)",
		},
		{
			name:      "active threats without criticals warn",
			summary:   models.SecuritySummary{CriticalEvents: 0, ActiveThreats: 3},
			wantLevel: LevelWarning,
			wantLabel: "3 Active Threat(s)",
		},
		{
			name:      "all clear",
			summary:   models.SecuritySummary{},
			wantLevel: LevelSecure,
			wantLabel: "All Systems Secure",
		},
		{
			name:      "single critical",
			summary:   models.SecuritySummary{CriticalEvents: 1},
			wantLevel: LevelCritical,
			wantLabel: "1 Critical Threat(s)",
		},
		{
			name:      "other counters do not escalate",
			summary:   models.SecuritySummary{TotalEvents: 40, Last24hEvents: 9, BlockedIPs: 3},
			wantLevel: LevelSecure,
			wantLabel: "All Systems Secure",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.summary)
			if got.Level != tt.wantLevel {
				t.Errorf("Level = %q, want %q", got.Level, tt.wantLevel)
			}
			if got.Label != tt.wantLabel {
				t.Errorf("Label = %q, want %q", got.Label, tt.wantLabel)
			}
		})
	}
}
