// Package simulation carries structured log events for the fixed-timestep
// tick driver.
package simulation

import (
	"context"

	"skirmish/server/logging"
)

// EventTickBudgetOverrun fires when a single logic step takes longer than
// TickDelta to run, meaning the accumulator is falling behind real time.
const EventTickBudgetOverrun logging.EventType = "simulation.tick_budget_overrun"

// TickBudgetOverrunPayload captures timing details for a budget breach.
type TickBudgetOverrunPayload struct {
	DurationMS int64   `json:"durationMs"`
	BudgetMS   int64   `json:"budgetMs"`
	Ratio      float64 `json:"ratio"`
}

// TickBudgetOverrun publishes a warning when a logic step overruns its
// allotted share of TickDelta.
func TickBudgetOverrun(ctx context.Context, pub logging.Publisher, tick uint64, payload TickBudgetOverrunPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventTickBudgetOverrun,
		Tick:     tick,
		Severity: logging.SeverityWarn,
		Category: "simulation",
		Payload:  payload,
	})
}
