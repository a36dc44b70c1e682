package billing

import (
	"math"
	"testing"

	"github.com/cueclub/table-service/internal/model"
)

func near(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestComputeSlots(t *testing.T) {
	slots := []model.RateSlot{
		{DurationMinutes: 30, Price: 100},
		{DurationMinutes: 60, Price: 200},
	}

	cases := []struct {
		name    string
		elapsed float64
		want    float64
	}{
		{"under the first bracket", 25, 100},
		{"exactly on a bracket boundary", 30, 100},
		{"between brackets rounds up", 45, 200},
		{"beyond every bracket charges the largest", 90, 200},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			bill := Compute(tc.elapsed, 999, 0, slots, model.PricePerHour, 0)
			if !near(bill.Subtotal, tc.want) {
				t.Fatalf("subtotal = %v, want %v", bill.Subtotal, tc.want)
			}
		})
	}
}

func TestComputeSlotsUnsortedInput(t *testing.T) {
	slots := []model.RateSlot{
		{DurationMinutes: 60, Price: 200},
		{DurationMinutes: 30, Price: 100},
	}
	bill := Compute(25, 0, 0, slots, model.PricePerHour, 0)
	if !near(bill.Subtotal, 100) {
		t.Fatalf("subtotal = %v, want 100 (smallest covering slot)", bill.Subtotal)
	}
}

func TestComputeSlotsIgnoreMinCharge(t *testing.T) {
	slots := []model.RateSlot{{DurationMinutes: 30, Price: 100}}
	bill := Compute(10, 0, 500, slots, model.PricePerHour, 0)
	if !near(bill.Subtotal, 100) {
		t.Fatalf("subtotal = %v, want 100 (slot price is flat, no floor)", bill.Subtotal)
	}
}

func TestComputeContinuousModes(t *testing.T) {
	cases := []struct {
		name      string
		elapsed   float64
		rate      float64
		minCharge float64
		mode      model.PricingMode
		want      float64
	}{
		{"per hour", 90, 200, 0, model.PricePerHour, 300},
		{"per hour floored at min charge", 10, 200, 150, model.PricePerHour, 150},
		{"per minute", 30, 120, 0, model.PricePerMinute, 60},
		{"fixed ignores elapsed", 999, 250, 0, model.PriceFixed, 250},
		{"fixed floored at min charge", 5, 100, 180, model.PriceFixed, 180},
		{"zero elapsed", 0, 200, 0, model.PricePerHour, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			bill := Compute(tc.elapsed, tc.rate, tc.minCharge, nil, tc.mode, 0)
			if !near(bill.Subtotal, tc.want) {
				t.Fatalf("subtotal = %v, want %v", bill.Subtotal, tc.want)
			}
		})
	}
}

func TestComputeTaxLast(t *testing.T) {
	bill := Compute(60, 200, 0, nil, model.PricePerHour, 12)
	if !near(bill.Subtotal, 200) || !near(bill.Tax, 24) || !near(bill.Total, 224) {
		t.Fatalf("bill = %+v, want subtotal 200 tax 24 total 224", bill)
	}
}

func TestComputeTaxOnFlooredSubtotal(t *testing.T) {
	// Tax applies after the minimum charge floor, not to the raw amount.
	bill := Compute(10, 200, 150, nil, model.PricePerHour, 10)
	if !near(bill.Tax, 15) || !near(bill.Total, 165) {
		t.Fatalf("bill = %+v, want tax 15 total 165", bill)
	}
}
