package monitor

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/me/workgate/internal/logging"
	"github.com/me/workgate/internal/tracker"
	"github.com/me/workgate/pkg/model"
)

// supply writes a fake sysfs power_supply entry.
func supply(t *testing.T, root, name string, attrs map[string]string) {
	t.Helper()
	dir := filepath.Join(root, name)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	for k, v := range attrs {
		require.NoError(t, os.WriteFile(filepath.Join(dir, k), []byte(v+"\n"), 0o644))
	}
}

func TestReadPowerSupply(t *testing.T) {
	tests := []struct {
		name     string
		supplies map[string]map[string]string
		want     model.BatteryState
	}{
		{
			name: "no battery",
			supplies: map[string]map[string]string{
				"AC": {"type": "Mains", "online": "1"},
			},
			want: model.BatteryState{Known: true, Present: false, Level: 100, Charging: true},
		},
		{
			name: "discharging",
			supplies: map[string]map[string]string{
				"BAT0": {"type": "Battery", "capacity": "42", "status": "Discharging"},
				"AC":   {"type": "Mains", "online": "0"},
			},
			want: model.BatteryState{Known: true, Present: true, Level: 42},
		},
		{
			name: "charging by status",
			supplies: map[string]map[string]string{
				"BAT0": {"type": "Battery", "capacity": "10", "status": "Charging"},
			},
			want: model.BatteryState{Known: true, Present: true, Level: 10, Charging: true},
		},
		{
			name: "plugged in but not charging",
			supplies: map[string]map[string]string{
				"BAT0": {"type": "Battery", "capacity": "80", "status": "Not charging"},
				"AC":   {"type": "Mains", "online": "1"},
			},
			want: model.BatteryState{Known: true, Present: true, Level: 80, Charging: true},
		},
		{
			name: "two batteries averaged",
			supplies: map[string]map[string]string{
				"BAT0": {"type": "Battery", "capacity": "20", "status": "Discharging"},
				"BAT1": {"type": "Battery", "capacity": "60", "status": "Discharging"},
			},
			want: model.BatteryState{Known: true, Present: true, Level: 40},
		},
		{
			name: "peripheral battery ignored",
			supplies: map[string]map[string]string{
				"hid-mouse": {"type": "Battery", "scope": "Device", "capacity": "5", "status": "Discharging"},
			},
			want: model.BatteryState{Known: true, Present: false, Level: 100, Charging: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := t.TempDir()
			for name, attrs := range tt.supplies {
				supply(t, root, name, attrs)
			}
			got, err := ReadPowerSupply(root)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestReadPowerSupply_Errors(t *testing.T) {
	_, err := ReadPowerSupply(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)

	root := t.TempDir()
	supply(t, root, "BAT0", map[string]string{"type": "Battery", "capacity": "lots", "status": "Full"})
	_, err = ReadPowerSupply(root)
	assert.Error(t, err)
}

func TestBatteryMonitor_UnknownOnReadError(t *testing.T) {
	root := t.TempDir()
	supply(t, root, "BAT0", map[string]string{"type": "Battery", "status": "Full"}) // no capacity
	m := NewBattery(BatteryOptions{Root: root}, logging.Discard())
	assert.Equal(t, model.BatteryState{}, m.probe())
}

func TestBatteryMonitor_MissingRootIsUnavailable(t *testing.T) {
	m := NewBattery(BatteryOptions{Root: filepath.Join(t.TempDir(), "nope"), Interval: 1}, logging.Discard())
	err := m.Start(func(model.BatteryState) {})
	assert.ErrorIs(t, err, tracker.ErrMonitorUnavailable)
}
