// Package snapshot defines the wire-level entity state model, the bit-packed
// codec that serializes it with delta compression against a baseline, and
// the server/client ring buffers that hold recent snapshots.
package snapshot

import "skirmish/server/internal/geom"

// EntityType is the tagged variant carried on the wire in 4 bits.
type EntityType uint8

const (
	EntityPlayer         EntityType = 0
	EntityNPC            EntityType = 1
	EntityMovingObstacle EntityType = 2
)

// EntityState is the per-entity payload carried in a Snapshot, matching the
// field set spec.md §3 allows onto the wire (position, velocity, the two
// 8-bit appearance/state byte fields, and the type tag).
type EntityState struct {
	Position    geom.Vec2
	Velocity    geom.Vec2
	SpriteFrame uint8
	StateFlags  uint8
	EntityType  EntityType
}

const (
	positionEqualTolerance = 0.01
	velocityEqualTolerance = 0.01
)

// StatesEqual is the server's changed-detection predicate: positions and
// velocities within tolerance, discrete fields exactly equal. It is the
// condition the encoder uses to decide whether to elide a field's full body
// against a baseline.
func StatesEqual(a, b EntityState) bool {
	if absFloat(a.Position.X-b.Position.X) > positionEqualTolerance {
		return false
	}
	if absFloat(a.Position.Y-b.Position.Y) > positionEqualTolerance {
		return false
	}
	if absFloat(a.Velocity.X-b.Velocity.X) > velocityEqualTolerance {
		return false
	}
	if absFloat(a.Velocity.Y-b.Velocity.Y) > velocityEqualTolerance {
		return false
	}
	if a.SpriteFrame != b.SpriteFrame {
		return false
	}
	if a.StateFlags != b.StateFlags {
		return false
	}
	if a.EntityType != b.EntityType {
		return false
	}
	return true
}

func absFloat(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
