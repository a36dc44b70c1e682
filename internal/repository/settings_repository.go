package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/cueclub/table-service/internal/model"
)

// SettingsRepo loads and saves the single business-configuration row
// together with all pricing rules and their child tables (slots, peak
// windows, fixed-rate presets). Load assembles the rules into a map
// keyed by game type so pricing resolution is a constant-time lookup.
type SettingsRepo struct {
	db *sql.DB
}

// NewSettingsRepo returns a new SettingsRepo bound to the given database.
func NewSettingsRepo(db *sql.DB) *SettingsRepo { return &SettingsRepo{db: db} }

// Load returns the current settings. When the settings row has never
// been written, sensible defaults are returned so a fresh install can
// start sessions with table-level fallback rates.
func (r *SettingsRepo) Load(ctx context.Context) (*model.Settings, error) {
	s := &model.Settings{
		BusinessName:  "TTC Pool Club",
		TaxPercentage: 12,
		TaxEnabled:    true,
		Currency:      "₹",
		Rules:         map[model.GameType]model.PricingRule{},
	}
	const q = `SELECT business_name, address, phone, gstin, tax_percentage, tax_enabled, currency, auto_end_on_time_over
	           FROM settings WHERE id = 1`
	err := r.db.QueryRowContext(ctx, q).Scan(&s.BusinessName, &s.Address, &s.Phone, &s.GSTIN,
		&s.TaxPercentage, &s.TaxEnabled, &s.Currency, &s.AutoEndOnTimeOver)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("query settings: %w", err)
	}

	rules, err := r.loadRules(ctx)
	if err != nil {
		return nil, err
	}
	for _, rule := range rules {
		s.Rules[rule.GameType] = rule
	}
	return s, nil
}

func (r *SettingsRepo) loadRules(ctx context.Context) ([]model.PricingRule, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, game_type, hourly_rate, min_charge FROM pricing_rules ORDER BY game_type`)
	if err != nil {
		return nil, fmt.Errorf("query pricing rules: %w", err)
	}
	defer rows.Close()
	var rules []model.PricingRule
	byID := map[uint64]int{}
	for rows.Next() {
		var rule model.PricingRule
		if err := rows.Scan(&rule.ID, &rule.GameType, &rule.HourlyRate, &rule.MinCharge); err != nil {
			return nil, fmt.Errorf("scan pricing rule: %w", err)
		}
		byID[rule.ID] = len(rules)
		rules = append(rules, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pricing rules: %w", err)
	}
	if len(rules) == 0 {
		return nil, nil
	}

	if err := r.loadSlots(ctx, rules, byID); err != nil {
		return nil, err
	}
	if err := r.loadPeakWindows(ctx, rules, byID); err != nil {
		return nil, err
	}
	if err := r.loadFixedRates(ctx, rules, byID); err != nil {
		return nil, err
	}
	return rules, nil
}

func (r *SettingsRepo) loadSlots(ctx context.Context, rules []model.PricingRule, byID map[uint64]int) error {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, rule_id, duration_minutes, price, position FROM pricing_slots ORDER BY rule_id, position`)
	if err != nil {
		return fmt.Errorf("query pricing slots: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var s model.RateSlot
		if err := rows.Scan(&s.ID, &s.RuleID, &s.DurationMinutes, &s.Price, &s.Position); err != nil {
			return fmt.Errorf("scan pricing slot: %w", err)
		}
		if i, ok := byID[s.RuleID]; ok {
			rules[i].Slots = append(rules[i].Slots, s)
		}
	}
	return rows.Err()
}

func (r *SettingsRepo) loadPeakWindows(ctx context.Context, rules []model.PricingRule, byID map[uint64]int) error {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, rule_id, start_hour, end_hour, multiplier, position FROM peak_windows ORDER BY rule_id, position`)
	if err != nil {
		return fmt.Errorf("query peak windows: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var w model.PeakWindow
		if err := rows.Scan(&w.ID, &w.RuleID, &w.StartHour, &w.EndHour, &w.Multiplier, &w.Position); err != nil {
			return fmt.Errorf("scan peak window: %w", err)
		}
		if i, ok := byID[w.RuleID]; ok {
			rules[i].PeakHours = append(rules[i].PeakHours, w)
		}
	}
	return rows.Err()
}

func (r *SettingsRepo) loadFixedRates(ctx context.Context, rules []model.PricingRule, byID map[uint64]int) error {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, rule_id, label, amount, position FROM fixed_rates ORDER BY rule_id, position`)
	if err != nil {
		return fmt.Errorf("query fixed rates: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var f model.FixedRate
		if err := rows.Scan(&f.ID, &f.RuleID, &f.Label, &f.Amount, &f.Position); err != nil {
			return fmt.Errorf("scan fixed rate: %w", err)
		}
		if i, ok := byID[f.RuleID]; ok {
			rules[i].FixedRates = append(rules[i].FixedRates, f)
		}
	}
	return rows.Err()
}

// Save upserts the settings row and replaces all pricing rules with
// the given set inside one transaction. Sessions are unaffected: the
// values they billed with were snapshotted at start.
func (r *SettingsRepo) Save(ctx context.Context, s *model.Settings, rules []model.PricingRule) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	const q = `INSERT INTO settings (id, business_name, address, phone, gstin, tax_percentage, tax_enabled, currency, auto_end_on_time_over)
	           VALUES (1, ?, ?, ?, ?, ?, ?, ?, ?)
	           ON DUPLICATE KEY UPDATE business_name = VALUES(business_name), address = VALUES(address),
	           phone = VALUES(phone), gstin = VALUES(gstin), tax_percentage = VALUES(tax_percentage),
	           tax_enabled = VALUES(tax_enabled), currency = VALUES(currency),
	           auto_end_on_time_over = VALUES(auto_end_on_time_over)`
	if _, err := tx.ExecContext(ctx, q, s.BusinessName, s.Address, s.Phone, s.GSTIN,
		s.TaxPercentage, s.TaxEnabled, s.Currency, s.AutoEndOnTimeOver); err != nil {
		return fmt.Errorf("upsert settings: %w", err)
	}

	// Child rows go first, then the rules themselves.
	for _, del := range []string{
		`DELETE FROM pricing_slots`,
		`DELETE FROM peak_windows`,
		`DELETE FROM fixed_rates`,
		`DELETE FROM pricing_rules`,
	} {
		if _, err := tx.ExecContext(ctx, del); err != nil {
			return fmt.Errorf("clear pricing rules: %w", err)
		}
	}

	for _, rule := range rules {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO pricing_rules (game_type, hourly_rate, min_charge) VALUES (?, ?, ?)`,
			string(rule.GameType), rule.HourlyRate, rule.MinCharge)
		if err != nil {
			return fmt.Errorf("insert pricing rule %s: %w", rule.GameType, err)
		}
		ruleID, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("pricing rule insert id: %w", err)
		}
		for i, slot := range rule.Slots {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO pricing_slots (rule_id, duration_minutes, price, position) VALUES (?, ?, ?, ?)`,
				ruleID, slot.DurationMinutes, slot.Price, i); err != nil {
				return fmt.Errorf("insert pricing slot: %w", err)
			}
		}
		for i, w := range rule.PeakHours {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO peak_windows (rule_id, start_hour, end_hour, multiplier, position) VALUES (?, ?, ?, ?, ?)`,
				ruleID, w.StartHour, w.EndHour, w.Multiplier, i); err != nil {
				return fmt.Errorf("insert peak window: %w", err)
			}
		}
		for i, f := range rule.FixedRates {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO fixed_rates (rule_id, label, amount, position) VALUES (?, ?, ?, ?)`,
				ruleID, f.Label, f.Amount, i); err != nil {
				return fmt.Errorf("insert fixed rate: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit settings: %w", err)
	}
	committed = true
	return nil
}
