package app

import (
	"encoding/json"
	"net/http"
	"time"

	"skirmish/server/internal/config"
	"skirmish/server/internal/protocol"
)

// diagnosticsPayload mirrors the shape of the teacher's /diagnostics
// response: status, server time, per-peer heartbeat data, and the
// operating tick/snapshot rates.
type diagnosticsPayload struct {
	Status       string                     `json:"status"`
	ServerTimeMS int64                      `json:"serverTimeMs"`
	TickRate     int                        `json:"tickRate"`
	SnapshotRate int                        `json:"snapshotRate"`
	Peers        []protocol.DiagnosticsPeer `json:"peers"`
}

// registerDiagnostics mounts /health and /diagnostics onto mux.
// /diagnostics round-trips through inbox.Diagnostics rather than reading
// ServerProtocol state directly: this handler runs on an HTTP goroutine,
// not the simulation goroutine that owns that state.
func registerDiagnostics(mux *http.ServeMux, inbox *protocol.Inbox, cfg config.Config) {
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("ok"))
	})

	mux.HandleFunc("/diagnostics", func(w http.ResponseWriter, r *http.Request) {
		payload := diagnosticsPayload{
			Status:       "ok",
			ServerTimeMS: time.Now().UnixMilli(),
			TickRate:     cfg.TickRate,
			SnapshotRate: cfg.SnapshotRate,
			Peers:        inbox.Diagnostics(),
		}
		data, err := json.Marshal(payload)
		if err != nil {
			http.Error(w, "failed to encode diagnostics", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(data)
	})
}
