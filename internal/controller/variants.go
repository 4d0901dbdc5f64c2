package controller

import "github.com/me/workgate/pkg/model"

// Variant selects one condition kind and its predicate. The store query is
// keyed by Kind. Constrained reports whether the state violates the
// condition; it must be pure and treat an unknown state as constrained.
type Variant[S any] struct {
	Kind        model.ConditionKind
	Constrained func(S) bool
}

// NetworkAny requires any connected network.
func NetworkAny() Variant[model.NetworkState] {
	return Variant[model.NetworkState]{
		Kind: model.ConditionNetworkAny,
		Constrained: func(s model.NetworkState) bool {
			return !s.Usable()
		},
	}
}

// NetworkUnmetered requires a connected, unmetered network.
func NetworkUnmetered() Variant[model.NetworkState] {
	return Variant[model.NetworkState]{
		Kind: model.ConditionNetworkUnmetered,
		Constrained: func(s model.NetworkState) bool {
			return !s.Usable() || s.Metered
		},
	}
}

// NetworkNotRoaming requires a connected network that is not roaming.
func NetworkNotRoaming() Variant[model.NetworkState] {
	return Variant[model.NetworkState]{
		Kind: model.ConditionNetworkNotRoaming,
		Constrained: func(s model.NetworkState) bool {
			return !s.Usable() || s.Roaming
		},
	}
}

// NetworkMetered requires a connected, metered network.
func NetworkMetered() Variant[model.NetworkState] {
	return Variant[model.NetworkState]{
		Kind: model.ConditionNetworkMetered,
		Constrained: func(s model.NetworkState) bool {
			return !s.Usable() || !s.Metered
		},
	}
}

// NetworkVariants returns every network variant in AllConditionKinds order.
func NetworkVariants() []Variant[model.NetworkState] {
	return []Variant[model.NetworkState]{NetworkAny(), NetworkUnmetered(), NetworkNotRoaming(), NetworkMetered()}
}

// BatteryNotLow requires the battery to be charging or above the low threshold.
func BatteryNotLow() Variant[model.BatteryState] {
	return Variant[model.BatteryState]{
		Kind: model.ConditionBatteryNotLow,
		Constrained: func(s model.BatteryState) bool {
			return !s.NotLow()
		},
	}
}

// BatteryCharging requires external power.
func BatteryCharging() Variant[model.BatteryState] {
	return Variant[model.BatteryState]{
		Kind: model.ConditionBatteryCharging,
		Constrained: func(s model.BatteryState) bool {
			return !s.Known || !s.Charging
		},
	}
}

// BatteryVariants returns every battery variant in AllConditionKinds order.
func BatteryVariants() []Variant[model.BatteryState] {
	return []Variant[model.BatteryState]{BatteryNotLow(), BatteryCharging()}
}

// StorageNotLow requires the data volume to have free space.
func StorageNotLow() Variant[model.StorageState] {
	return Variant[model.StorageState]{
		Kind: model.ConditionStorageNotLow,
		Constrained: func(s model.StorageState) bool {
			return !s.Known || s.Low
		},
	}
}
