package model

// RateSlot is a flat price for play time up to DurationMinutes.
// Slots form an ordered bracket table: a 45 minute game against
// slots {30:100, 60:200} is billed as the 60 minute slot.
type RateSlot struct {
	ID              uint64  // pricing_slots.id
	RuleID          uint64  // pricing_slots.rule_id
	DurationMinutes int     // pricing_slots.duration_minutes
	Price           float64 // pricing_slots.price
	Position        int     // pricing_slots.position
}

// PeakWindow is a rate surcharge active during specific hours of the
// day.  Bounds are inclusive hour-of-day values between 0 and 23.
// When windows overlap, the first one in position order wins; the
// resolver does not detect overlap.
type PeakWindow struct {
	ID         uint64  // peak_windows.id
	RuleID     uint64  // peak_windows.rule_id
	StartHour  int     // peak_windows.start_hour
	EndHour    int     // peak_windows.end_hour
	Multiplier float64 // peak_windows.multiplier
	Position   int     // peak_windows.position
}

// FixedRate is a named flat-fee preset staff can pick when starting a
// fixed-mode session (e.g. "Happy hour - 250").
type FixedRate struct {
	ID       uint64  // fixed_rates.id
	RuleID   uint64  // fixed_rates.rule_id
	Label    string  // fixed_rates.label
	Amount   float64 // fixed_rates.amount
	Position int     // fixed_rates.position
}

// PricingRule holds the pricing configuration for one game type.
//
// Fields:
//  ID         – primary key identifier.
//  GameType   – game type this rule applies to (unique).
//  HourlyRate – base rate for continuous billing.
//  MinCharge  – floor applied to non-slot subtotals.
//  Slots      – ordered duration brackets; non-empty means slot pricing.
//  FixedRates – optional flat-fee presets.
//  PeakHours  – optional rate multiplier windows.
type PricingRule struct {
	ID         uint64       // pricing_rules.id
	GameType   GameType     // pricing_rules.game_type
	HourlyRate float64      // pricing_rules.hourly_rate
	MinCharge  float64      // pricing_rules.min_charge
	Slots      []RateSlot   // pricing_slots rows ordered by position
	FixedRates []FixedRate  // fixed_rates rows ordered by position
	PeakHours  []PeakWindow // peak_windows rows ordered by position
}

// Settings is the single business-configuration row plus all pricing
// rules, loaded together by the settings repository.  The rules map
// is keyed by game type for O(1) resolution.
//
// Fields:
//  BusinessName / Address / Phone / GSTIN – bill header details.
//  TaxPercentage     – tax rate applied at End when TaxEnabled.
//  TaxEnabled        – disables tax snapshotting when false.
//  Currency          – display currency symbol.
//  AutoEndOnTimeOver – reserved flag; the broadcast loop only marks
//                      Time Over, staff still finalize the bill.
//  Rules             – pricing rules keyed by game type.
type Settings struct {
	BusinessName      string                   // settings.business_name
	Address           string                   // settings.address
	Phone             string                   // settings.phone
	GSTIN             string                   // settings.gstin
	TaxPercentage     float64                  // settings.tax_percentage
	TaxEnabled        bool                     // settings.tax_enabled
	Currency          string                   // settings.currency
	AutoEndOnTimeOver bool                     // settings.auto_end_on_time_over
	Rules             map[GameType]PricingRule // pricing_rules keyed by game type
}

// RuleFor returns the pricing rule for the given game type, or false
// when none is configured.
func (s *Settings) RuleFor(gt GameType) (PricingRule, bool) {
	if s == nil || s.Rules == nil {
		return PricingRule{}, false
	}
	r, ok := s.Rules[gt]
	return r, ok
}
