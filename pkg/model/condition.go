package model

import (
	"fmt"
	"strings"
)

// ConditionKind identifies a system condition a job can require.
type ConditionKind string

const (
	ConditionNetworkAny        ConditionKind = "NETWORK_ANY"
	ConditionNetworkUnmetered  ConditionKind = "NETWORK_UNMETERED"
	ConditionNetworkNotRoaming ConditionKind = "NETWORK_NOT_ROAMING"
	ConditionNetworkMetered    ConditionKind = "NETWORK_METERED"
	ConditionBatteryNotLow     ConditionKind = "BATTERY_NOT_LOW"
	ConditionBatteryCharging   ConditionKind = "BATTERY_CHARGING"
	ConditionStorageNotLow     ConditionKind = "STORAGE_NOT_LOW"
)

// AllConditionKinds returns every condition kind in a stable order.
func AllConditionKinds() []ConditionKind {
	return []ConditionKind{
		ConditionNetworkAny,
		ConditionNetworkUnmetered,
		ConditionNetworkNotRoaming,
		ConditionNetworkMetered,
		ConditionBatteryNotLow,
		ConditionBatteryCharging,
		ConditionStorageNotLow,
	}
}

// String returns the string representation of the condition kind.
func (k ConditionKind) String() string {
	return string(k)
}

// Source returns the state source a controller for this kind subscribes to.
// Unknown kinds return the empty Source.
func (k ConditionKind) Source() Source {
	switch k {
	case ConditionNetworkAny, ConditionNetworkUnmetered, ConditionNetworkNotRoaming, ConditionNetworkMetered:
		return SourceNetwork
	case ConditionBatteryNotLow, ConditionBatteryCharging:
		return SourceBattery
	case ConditionStorageNotLow:
		return SourceStorage
	}
	return ""
}

// Valid reports whether k is one of the known condition kinds.
func (k ConditionKind) Valid() bool {
	return k.Source() != ""
}

// ParseConditionKind converts user input (case-insensitive, '-' or '_') to a ConditionKind.
func ParseConditionKind(s string) (ConditionKind, error) {
	k := ConditionKind(strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), "-", "_")))
	if !k.Valid() {
		return "", fmt.Errorf("unknown condition kind %q", s)
	}
	return k, nil
}

// Source identifies one shared state tracker. Several condition kinds may
// share a source (all network kinds observe the same network state).
type Source string

const (
	SourceNetwork Source = "network"
	SourceBattery Source = "battery"
	SourceStorage Source = "storage"
)

// AllSources returns every source in a stable order.
func AllSources() []Source {
	return []Source{SourceNetwork, SourceBattery, SourceStorage}
}
