package sim

// PhysicsEngine advances entity positions given their current velocities.
// Collision resolution lives entirely behind this interface; the tick
// driver neither knows nor cares what, if anything, entities can collide
// with.
type PhysicsEngine interface {
	Resolve(entities []*Entity, dt float64)
}

// BoundsPhysics is the default PhysicsEngine: integrate velocity, then
// clamp to the world rectangle. It performs no entity-entity collision
// resolution; a richer engine can be substituted without changing the tick
// driver.
type BoundsPhysics struct {
	WorldMin, WorldMax float64
}

// Resolve integrates each entity's position by velocity*dt and clamps the
// result to [WorldMin, WorldMax] on both axes, zeroing the velocity
// component that would otherwise keep driving the entity past the edge.
func (p BoundsPhysics) Resolve(entities []*Entity, dt float64) {
	for _, e := range entities {
		next := e.Position.Add(e.Velocity.Scale(dt))
		next.X, e.Velocity.X = clampAxis(next.X, e.Velocity.X, p.WorldMin, p.WorldMax)
		next.Y, e.Velocity.Y = clampAxis(next.Y, e.Velocity.Y, p.WorldMin, p.WorldMax)
		e.Position = next
	}
}

func clampAxis(value, velocity, lo, hi float64) (float64, float64) {
	if value < lo {
		return lo, 0
	}
	if value > hi {
		return hi, 0
	}
	return value, velocity
}

var _ PhysicsEngine = BoundsPhysics{}
