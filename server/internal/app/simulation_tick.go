package app

import (
	"context"
	"time"

	"skirmish/server/internal/config"
	"skirmish/server/internal/net/ws"
	"skirmish/server/internal/protocol"
	"skirmish/server/internal/sim"
)

// SimulationTick drives the fixed-rate tick loop until its stop channel
// closes, grounded on the teacher's Hub.RunSimulation: a ticker at the
// configured TickRate, draining the transport-facing Inbox immediately
// before advancing the driver so every RPC queued since the last tick is
// visible to this step's logic (spec.md §5).
type SimulationTick struct {
	driver    *sim.Driver
	inbox     *protocol.Inbox
	sp        *protocol.ServerProtocol
	hub       *ws.Hub
	tickDelta time.Duration
}

// NewSimulationTick returns a SimulationTick ready to Run.
func NewSimulationTick(driver *sim.Driver, inbox *protocol.Inbox, sp *protocol.ServerProtocol, hub *ws.Hub, cfg config.Config) *SimulationTick {
	return &SimulationTick{driver: driver, inbox: inbox, sp: sp, hub: hub, tickDelta: cfg.TickDelta()}
}

// Run blocks, ticking at tickDelta, until stop closes.
func (st *SimulationTick) Run(stop <-chan struct{}) {
	ticker := time.NewTicker(st.tickDelta)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case now := <-ticker.C:
			ctx := context.Background()
			st.inbox.Drain(ctx)
			st.driver.Advance(ctx, st.tickDelta)
			for _, peerID := range st.sp.CheckTimeouts(ctx, now) {
				st.hub.CloseSession(peerID)
			}
		}
	}
}
