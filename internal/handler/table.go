package handler

import (
	"log"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/cueclub/table-service/internal/model"
	"github.com/cueclub/table-service/internal/play"
	"github.com/cueclub/table-service/internal/queue"
	"github.com/cueclub/table-service/internal/repository"
)

// TableHandler exposes the staff floor operations: listing live
// tables and driving the session lifecycle. All transitions go
// through the state machine; the handler only parses requests and
// maps errors. JWT and role checks happen in middleware.
type TableHandler struct {
	Machine  *play.Machine
	Tables   *repository.TableRepo
	Sessions *repository.SessionRepo
}

// NewTableHandler constructs a TableHandler. All dependencies must be
// non-nil.
func NewTableHandler(machine *play.Machine, tables *repository.TableRepo, sessions *repository.SessionRepo) *TableHandler {
	if machine == nil || tables == nil || sessions == nil {
		panic("nil dependency passed to NewTableHandler")
	}
	return &TableHandler{Machine: machine, Tables: tables, Sessions: sessions}
}

// List handles GET /v1/tables. It returns every active table with its
// linked session so the floor view can render live timers.
func (h *TableHandler) List(c echo.Context) error {
	ctx := c.Request().Context()
	tables, err := h.Tables.ActiveTables(ctx)
	if err != nil {
		return writeError(c, err)
	}
	states := make([]queue.TableState, 0, len(tables))
	for _, t := range tables {
		state := queue.TableState{Table: t}
		if t.CurrentSessionID != nil {
			if s, err := h.Sessions.SessionByID(ctx, *t.CurrentSessionID); err == nil {
				state.Session = s
			} else {
				log.Printf("tables: load session %d failed: %v", *t.CurrentSessionID, err)
			}
		}
		states = append(states, state)
	}
	return c.JSON(http.StatusOK, states)
}

// Start handles POST /v1/tables/:id/start. The body selects the game
// type, pricing mode, player count and optional time limit; in fixed
// mode an explicit price may be supplied.
func (h *TableHandler) Start(c echo.Context) error {
	id, ok := tableID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid table id"})
	}
	actorID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var body struct {
		GameType         string   `json:"game_type"`
		PricingMode      string   `json:"pricing_mode"`
		Players          int      `json:"players"`
		TimeLimitMinutes int      `json:"time_limit_minutes"`
		FixedPrice       *float64 `json:"fixed_price"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}

	table, session, err := h.Machine.Start(c.Request().Context(), id, play.StartInput{
		GameType:         model.GameType(body.GameType),
		PricingMode:      model.PricingMode(body.PricingMode),
		Players:          body.Players,
		TimeLimitMinutes: body.TimeLimitMinutes,
		FixedPrice:       body.FixedPrice,
	}, actorID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"table": table, "session": session})
}

// Pause handles POST /v1/tables/:id/pause. A reason is mandatory; it
// lands in the audit trail.
func (h *TableHandler) Pause(c echo.Context) error {
	id, ok := tableID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid table id"})
	}
	actorID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var body struct {
		Reason string `json:"reason"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	table, err := h.Machine.Pause(c.Request().Context(), id, body.Reason, actorID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, table)
}

// Resume handles POST /v1/tables/:id/resume.
func (h *TableHandler) Resume(c echo.Context) error {
	id, ok := tableID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid table id"})
	}
	actorID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	table, err := h.Machine.Resume(c.Request().Context(), id, actorID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, table)
}

// End handles POST /v1/tables/:id/end. The response carries the table
// with its finalized session so the client can print the bill.
func (h *TableHandler) End(c echo.Context) error {
	id, ok := tableID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid table id"})
	}
	actorID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	table, session, err := h.Machine.End(c.Request().Context(), id, actorID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"table": table, "session": session})
}

// Clear handles POST /v1/tables/:id/clear. It records the payment
// method and either resets the table to Idle or deletes it when
// auto_delete is set.
func (h *TableHandler) Clear(c echo.Context) error {
	id, ok := tableID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid table id"})
	}
	actorID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var body struct {
		PaymentMethod string `json:"payment_method"`
		AutoDelete    bool   `json:"auto_delete"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	table, deleted, err := h.Machine.Clear(c.Request().Context(), id, body.PaymentMethod, body.AutoDelete, actorID)
	if err != nil {
		return writeError(c, err)
	}
	if deleted {
		return c.JSON(http.StatusOK, echo.Map{"message": "table deleted successfully after payment", "deleted": true})
	}
	return c.JSON(http.StatusOK, table)
}

// AutoEndDelete handles POST /v1/tables/:id/auto-end-delete, the
// forced-cleanup flow: the live session is finalized and the table
// removed in one step, no payment method required.
func (h *TableHandler) AutoEndDelete(c echo.Context) error {
	id, ok := tableID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid table id"})
	}
	actorID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	session, err := h.Machine.AutoEndAndDelete(c.Request().Context(), id, actorID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"message": "table auto-ended and deleted successfully",
		"session": echo.Map{
			"id":       session.ID,
			"subtotal": session.Subtotal,
			"tax":      session.TaxAmount,
			"total":    session.TotalAmount,
		},
	})
}

// Seed handles POST /v1/tables/seed. It wipes the tables and inserts
// the default floor layout for initial setup.
func (h *TableHandler) Seed(c echo.Context) error {
	ctx := c.Request().Context()
	if err := h.Tables.DeleteAll(ctx); err != nil {
		return writeError(c, err)
	}
	defaults := []model.Table{
		{Name: "Table 1", GameType: model.GamePool, SupportedTypes: []model.GameType{model.GamePool, model.GameSnooker}, HourlyRate: 200, IsActive: true},
		{Name: "Table 2", GameType: model.GamePool, SupportedTypes: []model.GameType{model.GamePool}, HourlyRate: 200, IsActive: true},
		{Name: "Table 3", GameType: model.GameSnooker, SupportedTypes: []model.GameType{model.GameSnooker}, HourlyRate: 350, IsActive: true},
		{Name: "Table 4", GameType: model.GameSnooker, SupportedTypes: []model.GameType{model.GamePool, model.GameSnooker}, HourlyRate: 350, IsActive: true},
		{Name: "Table 5", GameType: model.GamePool, SupportedTypes: []model.GameType{model.GamePool}, HourlyRate: 200, IsActive: true},
		{Name: "Table 6", GameType: model.GamePool, SupportedTypes: []model.GameType{model.GamePool}, HourlyRate: 200, IsActive: true},
	}
	for i := range defaults {
		if err := h.Tables.Create(ctx, &defaults[i]); err != nil {
			return writeError(c, err)
		}
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "tables seeded"})
}

// History handles GET /v1/sessions/history. It lists today's
// completed sessions, newest first, for the staff shift log.
func (h *TableHandler) History(c echo.Context) error {
	now := time.Now().UTC()
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	sessions, err := h.Sessions.CompletedSince(c.Request().Context(), startOfDay)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, sessions)
}
