package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/cueclub/table-service/internal/model"
	"github.com/cueclub/table-service/internal/repository"
)

// AdminHandler exposes business configuration: pricing rules, tax
// settings and table management. Changes here never touch sessions
// that are already running; their rates were snapshotted at start.
type AdminHandler struct {
	Tables   *repository.TableRepo
	Settings *repository.SettingsRepo
}

// NewAdminHandler constructs an AdminHandler. All dependencies must
// be non-nil.
func NewAdminHandler(tables *repository.TableRepo, settings *repository.SettingsRepo) *AdminHandler {
	if tables == nil || settings == nil {
		panic("nil dependency passed to NewAdminHandler")
	}
	return &AdminHandler{Tables: tables, Settings: settings}
}

// slotBody, peakBody, fixedBody and ruleBody mirror the JSON shape of
// pricing configuration in requests and responses.
type slotBody struct {
	DurationMinutes int     `json:"duration_minutes"`
	Price           float64 `json:"price"`
}

type peakBody struct {
	StartHour  int     `json:"start_hour"`
	EndHour    int     `json:"end_hour"`
	Multiplier float64 `json:"multiplier"`
}

type fixedBody struct {
	Label  string  `json:"label"`
	Amount float64 `json:"amount"`
}

type ruleBody struct {
	GameType   string      `json:"game_type"`
	HourlyRate float64     `json:"hourly_rate"`
	MinCharge  float64     `json:"min_charge"`
	Slots      []slotBody  `json:"slots"`
	PeakHours  []peakBody  `json:"peak_hours"`
	FixedRates []fixedBody `json:"fixed_rates"`
}

type settingsBody struct {
	BusinessName      string     `json:"business_name"`
	Address           string     `json:"address"`
	Phone             string     `json:"phone"`
	GSTIN             string     `json:"gstin"`
	TaxPercentage     float64    `json:"tax_percentage"`
	TaxEnabled        bool       `json:"tax_enabled"`
	Currency          string     `json:"currency"`
	AutoEndOnTimeOver bool       `json:"auto_end_on_time_over"`
	PricingRules      []ruleBody `json:"pricing_rules"`
}

// GetSettings handles GET /v1/admin/settings.
func (h *AdminHandler) GetSettings(c echo.Context) error {
	s, err := h.Settings.Load(c.Request().Context())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, settingsResponse(s))
}

// UpdateSettings handles PUT /v1/admin/settings. The submitted
// pricing rules replace the stored set wholesale.
func (h *AdminHandler) UpdateSettings(c echo.Context) error {
	var body settingsBody
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if body.TaxPercentage < 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "tax percentage cannot be negative"})
	}

	s := &model.Settings{
		BusinessName:      body.BusinessName,
		Address:           body.Address,
		Phone:             body.Phone,
		GSTIN:             body.GSTIN,
		TaxPercentage:     body.TaxPercentage,
		TaxEnabled:        body.TaxEnabled,
		Currency:          body.Currency,
		AutoEndOnTimeOver: body.AutoEndOnTimeOver,
	}
	rules := make([]model.PricingRule, 0, len(body.PricingRules))
	for _, rb := range body.PricingRules {
		if rb.GameType == "" {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "pricing rule missing game type"})
		}
		rule := model.PricingRule{
			GameType:   model.GameType(rb.GameType),
			HourlyRate: rb.HourlyRate,
			MinCharge:  rb.MinCharge,
		}
		for _, sb := range rb.Slots {
			rule.Slots = append(rule.Slots, model.RateSlot{DurationMinutes: sb.DurationMinutes, Price: sb.Price})
		}
		for _, pb := range rb.PeakHours {
			if pb.StartHour < 0 || pb.StartHour > 23 || pb.EndHour < 0 || pb.EndHour > 23 {
				return c.JSON(http.StatusBadRequest, echo.Map{"error": "peak hours must be between 0 and 23"})
			}
			rule.PeakHours = append(rule.PeakHours, model.PeakWindow{StartHour: pb.StartHour, EndHour: pb.EndHour, Multiplier: pb.Multiplier})
		}
		for _, fb := range rb.FixedRates {
			rule.FixedRates = append(rule.FixedRates, model.FixedRate{Label: fb.Label, Amount: fb.Amount})
		}
		rules = append(rules, rule)
	}

	if err := h.Settings.Save(c.Request().Context(), s, rules); err != nil {
		return writeError(c, err)
	}
	updated, err := h.Settings.Load(c.Request().Context())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, settingsResponse(updated))
}

// settingsResponse flattens the rules map into a stable JSON shape.
func settingsResponse(s *model.Settings) echo.Map {
	rules := make([]ruleBody, 0, len(s.Rules))
	for _, gt := range []model.GameType{model.GamePool, model.GameSnooker} {
		rule, ok := s.Rules[gt]
		if !ok {
			continue
		}
		rules = append(rules, toRuleBody(rule))
	}
	for gt, rule := range s.Rules {
		if gt != model.GamePool && gt != model.GameSnooker {
			rules = append(rules, toRuleBody(rule))
		}
	}
	return echo.Map{
		"business_name":         s.BusinessName,
		"address":               s.Address,
		"phone":                 s.Phone,
		"gstin":                 s.GSTIN,
		"tax_percentage":        s.TaxPercentage,
		"tax_enabled":           s.TaxEnabled,
		"currency":              s.Currency,
		"auto_end_on_time_over": s.AutoEndOnTimeOver,
		"pricing_rules":         rules,
	}
}

func toRuleBody(rule model.PricingRule) ruleBody {
	rb := ruleBody{
		GameType:   string(rule.GameType),
		HourlyRate: rule.HourlyRate,
		MinCharge:  rule.MinCharge,
		Slots:      []slotBody{},
		PeakHours:  []peakBody{},
		FixedRates: []fixedBody{},
	}
	for _, s := range rule.Slots {
		rb.Slots = append(rb.Slots, slotBody{DurationMinutes: s.DurationMinutes, Price: s.Price})
	}
	for _, w := range rule.PeakHours {
		rb.PeakHours = append(rb.PeakHours, peakBody{StartHour: w.StartHour, EndHour: w.EndHour, Multiplier: w.Multiplier})
	}
	for _, f := range rule.FixedRates {
		rb.FixedRates = append(rb.FixedRates, fixedBody{Label: f.Label, Amount: f.Amount})
	}
	return rb
}

// ListTables handles GET /v1/admin/tables, returning every table
// including disabled ones.
func (h *AdminHandler) ListTables(c echo.Context) error {
	tables, err := h.Tables.AllTables(c.Request().Context())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, tables)
}

// CreateTable handles POST /v1/admin/tables.
func (h *AdminHandler) CreateTable(c echo.Context) error {
	var body struct {
		Name           string   `json:"name"`
		GameType       string   `json:"game_type"`
		SupportedTypes []string `json:"supported_types"`
		HourlyRate     float64  `json:"hourly_rate"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if body.Name == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name is required"})
	}

	supported := make([]model.GameType, 0, len(body.SupportedTypes))
	for _, s := range body.SupportedTypes {
		supported = append(supported, model.GameType(s))
	}
	gameType := model.GameType(body.GameType)
	if gameType == "" {
		if len(supported) > 0 {
			gameType = supported[0]
		} else {
			gameType = model.GamePool
		}
	}
	rate := body.HourlyRate
	if rate == 0 {
		rate = 200
	}

	t := &model.Table{
		Name:           body.Name,
		GameType:       gameType,
		SupportedTypes: supported,
		Status:         model.StatusIdle,
		HourlyRate:     rate,
		IsActive:       true,
	}
	if err := h.Tables.Create(c.Request().Context(), t); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, t)
}

// UpdateTable handles PUT /v1/admin/tables/:id. Only provided fields
// change; the lifecycle status is not editable here.
func (h *AdminHandler) UpdateTable(c echo.Context) error {
	id, ok := tableID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid table id"})
	}
	t, err := h.Tables.TableByID(c.Request().Context(), id)
	if err != nil {
		return writeError(c, err)
	}

	var body struct {
		Name           *string  `json:"name"`
		GameType       *string  `json:"game_type"`
		SupportedTypes []string `json:"supported_types"`
		HourlyRate     *float64 `json:"hourly_rate"`
		IsActive       *bool    `json:"is_active"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if body.Name != nil && *body.Name != "" {
		t.Name = *body.Name
	}
	if body.GameType != nil && *body.GameType != "" {
		t.GameType = model.GameType(*body.GameType)
	}
	if body.SupportedTypes != nil {
		t.SupportedTypes = t.SupportedTypes[:0]
		for _, s := range body.SupportedTypes {
			t.SupportedTypes = append(t.SupportedTypes, model.GameType(s))
		}
	}
	if body.HourlyRate != nil && *body.HourlyRate > 0 {
		t.HourlyRate = *body.HourlyRate
	}
	if body.IsActive != nil {
		t.IsActive = *body.IsActive
	}

	if err := h.Tables.Update(c.Request().Context(), t); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, t)
}

// DeleteTable handles DELETE /v1/admin/tables/:id.
func (h *AdminHandler) DeleteTable(c echo.Context) error {
	id, ok := tableID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid table id"})
	}
	if err := h.Tables.DeleteTable(c.Request().Context(), id); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
