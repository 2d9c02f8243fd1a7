package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"

	"skirmish/server/internal/app"
)

func main() {
	var opts app.Options
	flag.StringVar(&opts.Addr, "addr", ":8080", "server listen address, e.g. :8080")
	flag.IntVar(&opts.TickRate, "tick-rate", 0, "simulation ticks per second (0 keeps the config default)")
	flag.IntVar(&opts.SnapshotRate, "snapshot-rate", 0, "snapshots per second per peer (0 keeps the config default)")
	flag.StringVar(&opts.ConfigPath, "config", "", "path to a JSON config file overlaid onto the defaults")
	flag.StringVar(&opts.LogFilePath, "log-file", "server.log", "rotated process log path")
	flag.StringVar(&opts.EventLogPath, "event-log-file", "events.jsonl", "structured gameplay/network event log path")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := app.Run(ctx, opts); err != nil {
		log.Fatalf("%v", err)
	}
}
