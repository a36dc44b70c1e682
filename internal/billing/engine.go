// Package billing converts elapsed play time and resolved pricing
// into a bill. The computation is synchronous and deterministic:
// given the same inputs it always produces the same subtotal, tax and
// total.
package billing

import (
	"sort"

	"github.com/cueclub/table-service/internal/model"
)

// Bill is the monetary outcome of a completed session. All amounts
// are non-negative; Total is always Subtotal + Tax.
type Bill struct {
	Subtotal float64
	Tax      float64
	Total    float64
}

// Compute produces the bill for elapsedMinutes of play.
//
// Pricing applies in strict priority order:
//
//  1. Slot-based, whenever slots is non-empty, regardless of mode:
//     the smallest slot covering the play time is charged, or the
//     largest slot when play exceeded every bracket. The minimum
//     charge floor does NOT apply to slot pricing; a slot price is a
//     flat contract.
//  2. per_hour: (minutes / 60) * rate.
//  3. per_minute: minutes * (rate / 60).
//  4. fixed: rate, regardless of elapsed time.
//
// For the continuous modes (2–4) the subtotal is floored at
// minCharge. Tax is applied last: tax = subtotal * taxRatePercent/100.
func Compute(elapsedMinutes float64, rate, minCharge float64, slots []model.RateSlot, mode model.PricingMode, taxRatePercent float64) Bill {
	var subtotal float64

	if len(slots) > 0 {
		subtotal = slotPrice(slots, elapsedMinutes)
	} else {
		switch mode {
		case model.PricePerMinute:
			subtotal = elapsedMinutes * (rate / 60)
		case model.PriceFixed:
			subtotal = rate
		default: // per_hour
			subtotal = (elapsedMinutes / 60) * rate
		}
		if subtotal < minCharge {
			subtotal = minCharge
		}
	}

	tax := subtotal * taxRatePercent / 100
	return Bill{Subtotal: subtotal, Tax: tax, Total: subtotal + tax}
}

// slotPrice selects the price of the smallest slot whose duration
// covers elapsedMinutes. The sort is stable so that slots sharing a
// duration keep their configured order and the first one wins. When
// play exceeded every slot, the largest slot's price is charged.
func slotPrice(slots []model.RateSlot, elapsedMinutes float64) float64 {
	sorted := make([]model.RateSlot, len(slots))
	copy(sorted, slots)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].DurationMinutes < sorted[j].DurationMinutes
	})
	for _, s := range sorted {
		if float64(s.DurationMinutes) >= elapsedMinutes {
			return s.Price
		}
	}
	return sorted[len(sorted)-1].Price
}
