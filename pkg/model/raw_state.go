package model

// BatteryLowThreshold is the battery percentage at or below which the
// battery counts as low while not charging.
const BatteryLowThreshold = 15

// The raw state types below are immutable snapshots produced by monitors.
// Their zero value has Known == false, which every predicate treats as
// constrained.

// NetworkState is a snapshot of the device's active network.
type NetworkState struct {
	Known     bool `json:"known"`
	Connected bool `json:"connected"`
	Validated bool `json:"validated"`
	Metered   bool `json:"metered"`
	Roaming   bool `json:"roaming"`
}

// Usable reports whether some network is connected.
func (s NetworkState) Usable() bool {
	return s.Known && s.Connected
}

// BatteryState is a snapshot of the power supply.
type BatteryState struct {
	Known    bool `json:"known"`
	Present  bool `json:"present"`
	Level    int  `json:"level"`
	Charging bool `json:"charging"`
}

// NotLow reports whether the battery is charging or above BatteryLowThreshold.
func (s BatteryState) NotLow() bool {
	return s.Known && (s.Charging || s.Level > BatteryLowThreshold)
}

// StorageState is a snapshot of the volume holding job data.
type StorageState struct {
	Known      bool   `json:"known"`
	FreeBytes  uint64 `json:"free_bytes"`
	TotalBytes uint64 `json:"total_bytes"`
	Low        bool   `json:"low"`
}
