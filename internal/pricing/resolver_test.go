package pricing

import (
	"testing"
	"time"

	"github.com/cueclub/table-service/internal/model"
)

func settingsWithPoolRule(rule model.PricingRule) *model.Settings {
	rule.GameType = model.GamePool
	return &model.Settings{Rules: map[model.GameType]model.PricingRule{model.GamePool: rule}}
}

func at(hour int) time.Time {
	return time.Date(2026, 3, 14, hour, 30, 0, 0, time.UTC)
}

func TestResolveBaseRate(t *testing.T) {
	s := settingsWithPoolRule(model.PricingRule{HourlyRate: 200, MinCharge: 100})

	got := Resolve(s, model.GamePool, at(10), 150, nil)
	if got.Rate != 200 || got.MinCharge != 100 {
		t.Fatalf("resolved %+v, want rate 200 min 100", got)
	}
}

func TestResolveFallback(t *testing.T) {
	t.Run("no rule for game type", func(t *testing.T) {
		s := settingsWithPoolRule(model.PricingRule{HourlyRate: 200})
		got := Resolve(s, model.GameSnooker, at(10), 150, nil)
		if got.Rate != 150 || got.MinCharge != 0 || len(got.Slots) != 0 {
			t.Fatalf("resolved %+v, want bare fallback rate 150", got)
		}
	})

	t.Run("rule with zero rate", func(t *testing.T) {
		s := settingsWithPoolRule(model.PricingRule{HourlyRate: 0, MinCharge: 50})
		got := Resolve(s, model.GamePool, at(10), 150, nil)
		if got.Rate != 150 || got.MinCharge != 50 {
			t.Fatalf("resolved %+v, want fallback rate 150 with rule min charge", got)
		}
	})

	t.Run("nil settings", func(t *testing.T) {
		got := Resolve(nil, model.GamePool, at(10), 150, nil)
		if got.Rate != 150 {
			t.Fatalf("rate = %v, want fallback 150", got.Rate)
		}
	})
}

func TestResolvePeakHours(t *testing.T) {
	s := settingsWithPoolRule(model.PricingRule{
		HourlyRate: 200,
		PeakHours:  []model.PeakWindow{{StartHour: 18, EndHour: 22, Multiplier: 1.5}},
	})

	cases := []struct {
		name string
		hour int
		want float64
	}{
		{"before the window", 17, 200},
		{"window start is inclusive", 18, 300},
		{"inside the window", 19, 300},
		{"window end is inclusive", 22, 300},
		{"after the window", 23, 200},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Resolve(s, model.GamePool, at(tc.hour), 0, nil)
			if got.Rate != tc.want {
				t.Fatalf("rate at %02d:30 = %v, want %v", tc.hour, got.Rate, tc.want)
			}
		})
	}
}

func TestResolveOverlappingWindowsFirstWins(t *testing.T) {
	s := settingsWithPoolRule(model.PricingRule{
		HourlyRate: 100,
		PeakHours: []model.PeakWindow{
			{StartHour: 18, EndHour: 22, Multiplier: 1.5},
			{StartHour: 20, EndHour: 23, Multiplier: 2},
		},
	})
	got := Resolve(s, model.GamePool, at(21), 0, nil)
	if got.Rate != 150 {
		t.Fatalf("rate = %v, want 150 (first configured window wins)", got.Rate)
	}
}

func TestResolveFixedPriceOverridesPeak(t *testing.T) {
	s := settingsWithPoolRule(model.PricingRule{
		HourlyRate: 200,
		PeakHours:  []model.PeakWindow{{StartHour: 18, EndHour: 22, Multiplier: 1.5}},
	})
	fixed := 500.0
	got := Resolve(s, model.GamePool, at(19), 0, &fixed)
	if got.Rate != 500 {
		t.Fatalf("rate = %v, want explicit fixed price 500", got.Rate)
	}
}

func TestResolveCopiesSlots(t *testing.T) {
	s := settingsWithPoolRule(model.PricingRule{
		HourlyRate: 200,
		Slots: []model.RateSlot{
			{DurationMinutes: 30, Price: 100},
			{DurationMinutes: 60, Price: 200},
		},
	})
	got := Resolve(s, model.GamePool, at(10), 0, nil)
	if len(got.Slots) != 2 {
		t.Fatalf("slots = %d, want 2", len(got.Slots))
	}
}
