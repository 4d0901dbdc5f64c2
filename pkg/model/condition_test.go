package model

import "testing"

func TestConditionKind_Source(t *testing.T) {
	tests := []struct {
		kind ConditionKind
		want Source
	}{
		{ConditionNetworkAny, SourceNetwork},
		{ConditionNetworkUnmetered, SourceNetwork},
		{ConditionNetworkNotRoaming, SourceNetwork},
		{ConditionNetworkMetered, SourceNetwork},
		{ConditionBatteryNotLow, SourceBattery},
		{ConditionBatteryCharging, SourceBattery},
		{ConditionStorageNotLow, SourceStorage},
		{ConditionKind("WIFI"), ""},
	}
	for _, tt := range tests {
		if got := tt.kind.Source(); got != tt.want {
			t.Errorf("ConditionKind(%q).Source() = %q, want %q", tt.kind, got, tt.want)
		}
	}
}

func TestAllConditionKinds_Valid(t *testing.T) {
	kinds := AllConditionKinds()
	if len(kinds) != 7 {
		t.Fatalf("len(AllConditionKinds()) = %d, want 7", len(kinds))
	}
	for _, k := range kinds {
		if !k.Valid() {
			t.Errorf("%q should be valid", k)
		}
	}
}

func TestParseConditionKind(t *testing.T) {
	tests := []struct {
		in      string
		want    ConditionKind
		wantErr bool
	}{
		{"NETWORK_ANY", ConditionNetworkAny, false},
		{"network-unmetered", ConditionNetworkUnmetered, false},
		{" storage_not_low ", ConditionStorageNotLow, false},
		{"battery", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := ParseConditionKind(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseConditionKind(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseConditionKind(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRawState_ZeroValueIsUnknown(t *testing.T) {
	if (NetworkState{}).Usable() {
		t.Error("zero NetworkState should not be usable")
	}
	if (BatteryState{}).NotLow() {
		t.Error("zero BatteryState should not count as not-low")
	}
	if !(BatteryState{Known: true, Level: 10, Charging: true}).NotLow() {
		t.Error("charging battery should count as not-low")
	}
	if (BatteryState{Known: true, Level: BatteryLowThreshold}).NotLow() {
		t.Error("battery at threshold should be low")
	}
}
