package main

import (
	"fmt"
	"time"
)

// printSummary prints an aggregate, human-readable report across every
// bot's lifetime: totals first, then anomalies worth a human's attention.
// This mirrors the shape of the original log-analysis tool's report
// (counts, then a short issues list) rather than dumping per-bot detail.
func printSummary(reports []*botReport, duration time.Duration) {
	var (
		snapshotsReceived  int64
		bytesReceived      int64
		inputsSent         int64
		baselineMismatches int64
		corrections        int64
		replayedTicks      int64
		dialErrors         int64
		neverConnected     int
	)

	for _, r := range reports {
		snapshotsReceived += r.snapshotsReceived.Load()
		bytesReceived += r.bytesReceived.Load()
		inputsSent += r.inputsSent.Load()
		baselineMismatches += r.baselineMismatches.Load()
		corrections += r.reconciliationCorrections.Load()
		replayedTicks += r.reconciliationReplays.Load()
		dialErrors += r.dialErrors.Load()
		if r.dialErrors.Load() > 0 {
			neverConnected++
		}
	}

	fmt.Printf("loadbot summary (%d bots, %s)\n", len(reports), duration)
	fmt.Printf("  snapshots received: %d (%d bytes)\n", snapshotsReceived, bytesReceived)
	fmt.Printf("  inputs sent:        %d\n", inputsSent)
	fmt.Printf("  baseline mismatches: %d\n", baselineMismatches)
	fmt.Printf("  reconciliations:    %d corrections, %d replayed ticks\n", corrections, replayedTicks)
	if dialErrors > 0 {
		fmt.Printf("  dial errors:        %d (%d bots never connected)\n", dialErrors, neverConnected)
	}

	if neverConnected == len(reports) && len(reports) > 0 {
		fmt.Println("  ISSUE: no bot established a connection — is the server running at the given -addr?")
	}
	if snapshotsReceived > 0 && float64(baselineMismatches)/float64(snapshotsReceived) > 0.05 {
		fmt.Println("  ISSUE: baseline mismatch rate above 5%, history size may be too small for this load")
	}
}
