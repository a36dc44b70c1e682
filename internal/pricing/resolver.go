// Package pricing resolves the effective rate for a session at the
// moment it starts. Resolution is read-only: it combines the
// configured rule for the game type, the table's fallback rate, peak
// hour multipliers and an optional explicit fixed price into the
// values that get snapshotted onto the session.
package pricing

import (
	"time"

	"github.com/cueclub/table-service/internal/model"
)

// Resolved carries the pricing values frozen onto a new session.
// Slots are copied from the matching rule; an empty slice means
// continuous (per-hour/per-minute/fixed) billing applies.
type Resolved struct {
	Rate      float64
	MinCharge float64
	Slots     []model.RateSlot
}

// Resolve returns the effective pricing for gameType at now.
//
// When no rule is configured for the game type, the table-level
// fallbackRate is used with no minimum charge and no slots. A peak
// window whose inclusive hour bounds contain now multiplies the base
// rate; when windows overlap the first one in configured order wins.
// Overlapping windows are a configuration mistake the resolver does
// not detect. An explicit fixed price (staff-entered flat fee) takes
// precedence over both the rule's base rate and any peak multiplier.
func Resolve(settings *model.Settings, gameType model.GameType, now time.Time, fallbackRate float64, fixedPrice *float64) Resolved {
	rule, ok := settings.RuleFor(gameType)
	if !ok {
		rule = model.PricingRule{HourlyRate: fallbackRate}
	}

	rate := rule.HourlyRate
	if rate == 0 {
		rate = fallbackRate
	}

	if fixedPrice != nil {
		rate = *fixedPrice
	} else if w, ok := peakWindowAt(rule.PeakHours, now); ok {
		rate *= w.Multiplier
	}

	return Resolved{Rate: rate, MinCharge: rule.MinCharge, Slots: rule.Slots}
}

// peakWindowAt returns the first window containing the hour of day of
// t, scanning in configured order.
func peakWindowAt(windows []model.PeakWindow, t time.Time) (model.PeakWindow, bool) {
	hour := t.Hour()
	for _, w := range windows {
		if hour >= w.StartHour && hour <= w.EndHour {
			return w, true
		}
	}
	return model.PeakWindow{}, false
}
