package sim

import (
	"skirmish/server/internal/geom"
	"skirmish/server/internal/snapshot"
)

// Entity is the authoritative, mutable representation of one world object.
// The World mutates entities in place each tick; everything downstream
// (interest selection, snapshot encoding, lag compensation) only ever reads
// a consistent copy taken at a tick boundary.
type Entity struct {
	ID         uint32
	Type       snapshot.EntityType
	Position   geom.Vec2
	Velocity   geom.Vec2
	SpriteFrame uint8
	StateFlags  uint8
	OwnerPeer   string // non-empty only for Type == EntityPlayer

	// Obstacle is populated only for Type == EntityMovingObstacle and
	// drives the ping-pong scripted motion in tick.go.
	Obstacle *ObstacleScript
}

// State materializes the entity's current fields as the wire-level value
// the snapshot codec and interest manager operate on.
func (e *Entity) State() snapshot.EntityState {
	return snapshot.EntityState{
		Position:    e.Position,
		Velocity:    e.Velocity,
		SpriteFrame: e.SpriteFrame,
		StateFlags:  e.StateFlags,
		EntityType:  e.Type,
	}
}

// ObstacleScript drives a moving obstacle back and forth between two
// endpoints at a fixed speed, per spec.md §4.4 step 4.
type ObstacleScript struct {
	Start, End geom.Vec2
	Speed      float64
	GoingToEnd bool
}

// Target returns the endpoint the obstacle is currently moving toward.
func (o *ObstacleScript) Target() geom.Vec2 {
	if o.GoingToEnd {
		return o.End
	}
	return o.Start
}

// obstacleArriveEpsilon is the distance-to-target threshold below which a
// moving obstacle reverses direction.
const obstacleArriveEpsilon = 10.0
