// Package config defines the tunables threaded through construction of the
// server and client pipelines. There is no process-wide singleton: callers
// build a Config, validate it, and pass it explicitly.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config captures every tunable named by the protocol and simulation layers.
type Config struct {
	TickRate     int `json:"tickRate"`     // simulation ticks per second
	SnapshotRate int `json:"snapshotRate"` // snapshots per second per peer

	InterpolationDelayMS int `json:"interpolationDelayMs"`
	JitterBufferMS       int `json:"jitterBufferMs"`

	ChunkSize      float64 `json:"chunkSize"`
	InterestRadius int     `json:"interestRadius"`

	PositionBits int     `json:"positionBits"`
	VelocityBits int     `json:"velocityBits"`
	MaxVelocity  float64 `json:"maxVelocity"`
	WorldMin     float64 `json:"worldMin"`
	WorldMax     float64 `json:"worldMax"`

	MaxEntitiesPerSnapshot int     `json:"maxEntitiesPerSnapshot"`
	HysteresisBonus        float64 `json:"hysteresisBonus"`

	HistorySize         int `json:"historySize"`
	LagCompHistoryTicks int `json:"lagCompHistoryTicks"`

	ReconcileThreshold float64 `json:"reconcileThreshold"`

	MTUBudgetBytes int `json:"mtuBudgetBytes"`

	PlayerSpeed float64 `json:"playerSpeed"`

	// Encoded as nanoseconds (time.Duration's default JSON form) rather than
	// a "...Ms" field name, so a config file must write e.g. 10000000000
	// for ten seconds.
	ConnectionTimeout  time.Duration `json:"connectionTimeoutNanos"`
	SnapshotStarvation time.Duration `json:"snapshotStarvationNanos"`
	ClockSyncInterval  time.Duration `json:"clockSyncIntervalNanos"`
	InputSendRate      int           `json:"inputSendRate"`

	HitRadius float64 `json:"hitRadius"`

	// Network simulation knobs. Test-only: a production transport ignores
	// these. Zero values disable the corresponding fault.
	PacketLoss    float64 `json:"packetLoss,omitempty"`
	LagMS         int     `json:"lagMs,omitempty"`
	JitterMS      int     `json:"jitterMs,omitempty"`
	BandwidthKbps int     `json:"bandwidthKbps,omitempty"`
	DuplicateRate float64 `json:"duplicateRate,omitempty"`
}

// Default returns the operating point documented in the spec: 30 Hz
// simulation, 10 Hz snapshots, a 150ms client delay budget.
func Default() Config {
	return Config{
		TickRate:     30,
		SnapshotRate: 10,

		InterpolationDelayMS: 100,
		JitterBufferMS:       50,

		ChunkSize:      64,
		InterestRadius: 2,

		PositionBits: 18,
		VelocityBits: 11,
		MaxVelocity:  256.0,
		WorldMin:     -1024,
		WorldMax:     1024,

		MaxEntitiesPerSnapshot: 100,
		HysteresisBonus:        10000.0,

		HistorySize:         60,
		LagCompHistoryTicks: 40,

		ReconcileThreshold: 2.0,

		MTUBudgetBytes: 1400,

		PlayerSpeed: 120.0,

		ConnectionTimeout:  10 * time.Second,
		SnapshotStarvation: 5 * time.Second,
		ClockSyncInterval:  1 * time.Second,
		InputSendRate:      20,

		HitRadius: 16,
	}
}

// TotalClientDelayMS is the sum the interpolator targets behind server time.
func (c Config) TotalClientDelayMS() int {
	return c.InterpolationDelayMS + c.JitterBufferMS
}

// TickDelta is the fixed simulation timestep.
func (c Config) TickDelta() time.Duration {
	return time.Second / time.Duration(c.TickRate)
}

// TicksPerSnapshot is the tick-count stride between snapshot builds.
func (c Config) TicksPerSnapshot() int {
	if c.SnapshotRate <= 0 {
		return 0
	}
	return c.TickRate / c.SnapshotRate
}

// Validate enforces the two load-bearing constraints called out in the
// spec's Design Notes: an integral tick/snapshot ratio, and a client delay
// budget wide enough to bridge at least one snapshot period.
func (c Config) Validate() error {
	if c.TickRate <= 0 || c.SnapshotRate <= 0 {
		return fmt.Errorf("config: tick rate and snapshot rate must be positive")
	}
	if c.TickRate%c.SnapshotRate != 0 {
		return fmt.Errorf("config: tick rate %d must be an integer multiple of snapshot rate %d", c.TickRate, c.SnapshotRate)
	}
	snapshotPeriodMS := 1000 / c.SnapshotRate
	if c.TotalClientDelayMS() < snapshotPeriodMS+c.JitterBufferMS {
		return fmt.Errorf("config: total client delay %dms must be >= snapshot period %dms + jitter buffer %dms",
			c.TotalClientDelayMS(), snapshotPeriodMS, c.JitterBufferMS)
	}
	if c.PositionBits <= 0 || c.PositionBits > 32 {
		return fmt.Errorf("config: position bits %d out of range", c.PositionBits)
	}
	if c.VelocityBits <= 0 || c.VelocityBits > 32 {
		return fmt.Errorf("config: velocity bits %d out of range", c.VelocityBits)
	}
	if c.WorldMax <= c.WorldMin {
		return fmt.Errorf("config: world max %f must exceed world min %f", c.WorldMax, c.WorldMin)
	}
	if c.MaxEntitiesPerSnapshot <= 0 {
		return fmt.Errorf("config: max entities per snapshot must be positive")
	}
	return nil
}

// ApplyEnvOverrides returns a copy of c with the fields named by the
// SNAPNET_* environment variables replaced (c itself is left unchanged),
// following the teacher repo's habit of narrow env-var overrides rather than
// a full config-file layering system.
func (c Config) ApplyEnvOverrides() Config {
	next := c
	if v, ok := envInt("SNAPNET_TICK_RATE"); ok {
		next.TickRate = v
	}
	if v, ok := envInt("SNAPNET_SNAPSHOT_RATE"); ok {
		next.SnapshotRate = v
	}
	if v, ok := envInt("SNAPNET_MTU_BUDGET_BYTES"); ok {
		next.MTUBudgetBytes = v
	}
	return next
}

func envInt(name string) (int, bool) {
	raw := os.Getenv(name)
	if raw == "" {
		return 0, false
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return v, true
}
