package main

import (
	"context"
	"encoding/json"
	"math/rand"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"skirmish/server/internal/client"
	"skirmish/server/internal/config"
	"skirmish/server/internal/geom"
	"skirmish/server/internal/snapshot"
)

// botReport accumulates one simulated peer's observed metrics across its
// connection lifetime. Fields are updated from both the bot's read
// goroutine and its send loop, and printSummary reads them from main after
// wg.Wait(), so every counter is an atomic.
type botReport struct {
	peerID string

	snapshotsReceived         atomic.Int64
	bytesReceived             atomic.Int64
	inputsSent                atomic.Int64
	baselineMismatches        atomic.Int64
	reconciliationCorrections atomic.Int64
	reconciliationReplays     atomic.Int64
	dialErrors                atomic.Int64
	disconnected              atomic.Bool
}

func newBotReport(peerID string) *botReport {
	return &botReport{peerID: peerID}
}

// runBot dials addr, runs a read loop decoding snapshot frames against a
// local baseline ring and reconciling a PredictionController, and a write
// loop sending receive_player_input at roughly inputRate Hz, until ctx is
// canceled.
func runBot(ctx context.Context, addr string, report *botReport, cfg config.Config, inputRate int) {
	u := url.URL{Scheme: "ws", Host: addr, Path: "/ws", RawQuery: url.Values{"peerId": {report.peerID}}.Encode()}
	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		report.dialErrors.Add(1)
		return
	}
	defer conn.Close()

	codec := &snapshot.Codec{
		PositionBits: cfg.PositionBits,
		VelocityBits: cfg.VelocityBits,
		MaxVelocity:  cfg.MaxVelocity,
		WorldMin:     cfg.WorldMin,
		WorldMax:     cfg.WorldMax,
	}
	history := snapshot.NewHistory(cfg.HistorySize)
	var predictor *client.PredictionController
	var tick uint64
	rng := rand.New(rand.NewSource(int64(len(report.peerID))))

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			conn.SetReadDeadline(time.Now().Add(5 * time.Second))
			messageType, payload, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if messageType != websocket.BinaryMessage {
				continue
			}
			report.bytesReceived.Add(int64(len(payload)))

			header, err := snapshot.PeekHeader(payload)
			if err != nil {
				continue
			}
			var baseline *snapshot.Snapshot
			if header.BaselineSequence != 0 {
				b, ok := history.Get(header.BaselineSequence)
				if !ok {
					report.baselineMismatches.Add(1)
					_ = conn.WriteJSON(map[string]any{"type": "request_full_snapshot"})
					continue
				}
				baseline = &b
			}
			snap, err := codec.Decode(payload, baseline)
			if err != nil {
				continue
			}
			history.Insert(snap)
			report.snapshotsReceived.Add(1)
			_ = conn.WriteJSON(map[string]any{"type": "acknowledge_snapshot", "sequence": snap.Sequence})

			if predictor == nil {
				if playerState, ok := snap.PlayerState(); ok {
					predictor = client.NewPredictionController(cfg, playerState.Position)
				}
				continue
			}
			corrected, replayed := predictor.Reconcile(snap)
			if corrected {
				report.reconciliationCorrections.Add(1)
				report.reconciliationReplays.Add(int64(replayed))
			}
		}
	}()

	ticker := time.NewTicker(time.Second / time.Duration(inputRate))
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			report.disconnected.Store(true)
			return
		case <-done:
			report.disconnected.Store(true)
			return
		case <-ticker.C:
			tick++
			direction := geom.Vec2{X: rng.Float64()*2 - 1, Y: rng.Float64()*2 - 1}
			if predictor != nil {
				predictor.Tick(tick, direction)
			}
			msg := struct {
				Type string  `json:"type"`
				DX   float64 `json:"dx"`
				DY   float64 `json:"dy"`
				Tick uint64  `json:"tick"`
			}{Type: "receive_player_input", DX: direction.X, DY: direction.Y, Tick: tick}
			data, _ := json.Marshal(msg)
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				report.disconnected.Store(true)
				return
			}
			report.inputsSent.Add(1)
		}
	}
}
