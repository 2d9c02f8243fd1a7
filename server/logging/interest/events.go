// Package interest carries structured log events for the spatial interest
// manager: visible-set churn and per-snapshot entity budgeting.
package interest

import (
	"context"

	"skirmish/server/logging"
)

const (
	// EventVisibleSetChanged fires when a peer's visible entity set gains or
	// loses members relative to the previous selection.
	EventVisibleSetChanged logging.EventType = "interest.visible_set_changed"
	// EventBudgetExceeded fires when the candidate set for a peer exceeded
	// MaxEntitiesPerSnapshot and had to be trimmed by hysteresis score.
	EventBudgetExceeded logging.EventType = "interest.budget_exceeded"
)

// VisibleSetPayload summarizes a selection's churn against the prior set.
type VisibleSetPayload struct {
	PeerID   string `json:"peerId"`
	Entered  int    `json:"entered"`
	Left     int    `json:"left"`
	Selected int    `json:"selected"`
}

// VisibleSetChanged publishes a debug event describing visible-set churn.
func VisibleSetChanged(ctx context.Context, pub logging.Publisher, tick uint64, payload VisibleSetPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventVisibleSetChanged,
		Tick:     tick,
		Severity: logging.SeverityDebug,
		Category: "interest",
		Payload:  payload,
	})
}

// BudgetExceededPayload records the trim applied to satisfy the budget.
type BudgetExceededPayload struct {
	PeerID     string `json:"peerId"`
	Candidates int    `json:"candidates"`
	Kept       int    `json:"kept"`
}

// BudgetExceeded publishes an info event when the budget trims candidates.
func BudgetExceeded(ctx context.Context, pub logging.Publisher, tick uint64, payload BudgetExceededPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventBudgetExceeded,
		Tick:     tick,
		Severity: logging.SeverityInfo,
		Category: "interest",
		Payload:  payload,
	})
}
