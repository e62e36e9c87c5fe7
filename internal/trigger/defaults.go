package trigger

import "context"

// defaultConfigs are the rules seeded on first start. Boundary values
// follow common warm-water aquaculture practice; operators tune them
// per site through the API afterwards.
func defaultConfigs() []TriggerConfig {
	return []TriggerConfig{
		{
			Name:    "Low DO Emergency",
			Enabled: true,
			PondID:  PondAll,
			Kind:    KindThreshold,
			Thresholds: []TriggerThreshold{
				{Parameter: "dissolved_oxygen", Unit: "mg/L", CriticalMin: 3.5, SoftMin: 5.0, SoftMax: 18.0, CriticalMax: 20.0},
			},
			CooldownSeconds:      300,
			ConfirmationReadings: 3,
			AutoShutoffMinutes:   120,
			Priority:             PriorityCritical,
		},
		{
			Name:    "Low DO Forecast",
			Enabled: true,
			PondID:  PondAll,
			Kind:    KindPrediction,
			Thresholds: []TriggerThreshold{
				{Parameter: "dissolved_oxygen", Unit: "mg/L", CriticalMin: 3.0, SoftMin: 4.5, SoftMax: 18.0, CriticalMax: 20.0},
			},
			ForecastHorizonHours: 2,
			CooldownSeconds:      900,
			ConfirmationReadings: 2,
			AutoShutoffMinutes:   60,
			Priority:             PriorityHigh,
		},
		{
			Name:    "Low Water Temperature",
			Enabled: true,
			PondID:  PondAll,
			Kind:    KindThreshold,
			Thresholds: []TriggerThreshold{
				{Parameter: "temperature", Unit: "°C", CriticalMin: 18.0, SoftMin: 22.0, SoftMax: 32.0, CriticalMax: 36.0},
			},
			CooldownSeconds:      600,
			ConfirmationReadings: 3,
			AutoShutoffMinutes:   180,
			Priority:             PriorityHigh,
		},
		{
			Name:    "High Ammonia",
			Enabled: true,
			PondID:  PondAll,
			Kind:    KindThreshold,
			Thresholds: []TriggerThreshold{
				{Parameter: "ammonia", Unit: "mg/L", CriticalMin: 0.0, SoftMin: 0.0, SoftMax: 0.5, CriticalMax: 2.0},
			},
			CooldownSeconds:      600,
			ConfirmationReadings: 2,
			AutoShutoffMinutes:   90,
			Priority:             PriorityMedium,
		},
	}
}

// SeedDefaults populates the rule store with the default configs when
// it is empty. Idempotent: a store with any existing rules is left
// untouched.
func SeedDefaults(ctx context.Context, store *Store) error {
	if total, _ := store.Count(); total > 0 {
		return nil
	}

	for _, cfg := range defaultConfigs() {
		c := cfg
		if err := store.Create(ctx, &c); err != nil {
			return err
		}
	}
	return nil
}
