// Command loadbot drives a configurable number of simulated peers against
// a running server, exercising the same websocket RPC surface a real
// client would, and prints a post-run summary in the spirit of the
// original test harness's log-analysis report: counts of what happened and
// a short list of anomalies, not a raw dump.
package main

import (
	"context"
	"flag"
	"fmt"
	"sync"
	"time"

	"skirmish/server/internal/config"
)

func main() {
	var (
		addr      string
		botCount  int
		duration  time.Duration
		inputRate int
	)
	flag.StringVar(&addr, "addr", "localhost:8080", "server address, host:port")
	flag.IntVar(&botCount, "bots", 10, "number of simulated peers")
	flag.DurationVar(&duration, "duration", 30*time.Second, "how long to run the load test")
	flag.IntVar(&inputRate, "input-rate", 20, "input RPCs sent per second per bot")
	flag.Parse()

	cfg := config.Default()

	ctx, cancel := context.WithTimeout(context.Background(), duration)
	defer cancel()

	reports := make([]*botReport, botCount)
	var wg sync.WaitGroup
	for i := 0; i < botCount; i++ {
		report := newBotReport(fmt.Sprintf("loadbot-%d", i))
		reports[i] = report
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			runBot(ctx, addr, report, cfg, inputRate)
		}(i)
	}
	wg.Wait()

	printSummary(reports, duration)
}
