// Package physics implements the per-tick Physics Build Scheduler
// (spec.md §4.9, C9): assembling a PhysicsWorld's body and joint tables
// from the simulation's component data, tracking whether the static
// geometry changed since the previous build, and handing the result to an
// opaque solver Backend.
package physics

import (
	"github.com/fenwicklabs/ticknet/pkg/entity"
)

// BodyIndex addresses one row of World.Bodies. Dynamic bodies occupy
// [0, DynamicCount); static bodies occupy [DynamicCount, DynamicCount+
// StaticCount) (spec.md §4.9's body-table ordering contract).
type BodyIndex int32

// InvalidBodyIndex marks an unresolved joint endpoint.
const InvalidBodyIndex BodyIndex = -1

// MassProperties is a body's inverse-mass representation, zeroed for
// kinematic bodies (spec.md §4.9's kinematic handling).
type MassProperties struct {
	InverseMass    float32
	InverseInertia Vec3
	GravityFactor  float32
}

// Collider is left opaque: the solver backend owns its representation, this
// package only tracks whether a body has one (spec.md §1 places collider
// internals out of scope).
type Collider any

// Body is one row of the build scheduler's output table.
type Body struct {
	Entity    entity.ID
	Transform Transform
	Velocity  MotionVelocity
	Mass      MassProperties
	Collider  Collider // nil means DisablePhysicsCollider was set (empty collider)
	Kinematic bool
}

// MotionVelocity is a body's linear and angular velocity.
type MotionVelocity struct {
	Linear  Vec3
	Angular Vec3
}

// Joint is a body-index pair resolved from entity references through the
// scheduler's transient Entity -> BodyIndex map (spec.md §4.9).
type Joint struct {
	BodyA, BodyB BodyIndex
	Data         any
}

// World is one tick's built physics state — the PhysicsWorldSingleton/
// SimulationSingleton pair of spec.md §3, modelled as one struct since this
// package's Backend owns the actual solver state.
type World struct {
	Bodies                  []Body
	DynamicCount            int
	StaticCount             int
	Joints                  []Joint
	HaveStaticBodiesChanged bool
}

// StaticBody returns the i'th static body (0-based within the static
// range), or the zero Body and false if i is out of range.
func (w *World) StaticBody(i int) (Body, bool) {
	idx := w.DynamicCount + i
	if i < 0 || idx >= len(w.Bodies) {
		return Body{}, false
	}
	return w.Bodies[idx], true
}

// DynamicBody returns the i'th dynamic body, or the zero Body and false if
// i is out of range.
func (w *World) DynamicBody(i int) (Body, bool) {
	if i < 0 || i >= w.DynamicCount {
		return Body{}, false
	}
	return w.Bodies[i], true
}
