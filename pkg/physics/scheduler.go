package physics

import "github.com/fenwicklabs/ticknet/pkg/entity"

// DynamicInput is one dynamic body's source data for a build.
type DynamicInput struct {
	Entity    entity.ID
	Source    TransformSource
	Velocity  MotionVelocity
	Mass      *BodyMass // nil means no PhysicsMass component: body is kinematic
	Override  MassOverride
	Collider  Collider
	NoCollide bool // DisablePhysicsCollider present
	Simulate  bool // Simulate component present and enabled
}

// StaticInput is one static body's source data for a build. Statics carry
// no velocity or mass (spec.md §4.9 treats all statics as immovable).
type StaticInput struct {
	Entity       entity.ID
	Source       TransformSource
	Collider     Collider
	NoCollide    bool
	ChangeToken  uint64 // bumped whenever any of LocalToWorld/Parent/LocalTransform/Collider/NoCollide changes
}

// BodyMass is the raw mass authoring data for a dynamic body.
type BodyMass struct {
	InverseMass    float32
	InverseInertia Vec3
}

// MassOverride mirrors PhysicsMassOverride: a dynamic body can be flagged
// kinematic even though it carries mass data, and can request its stored
// velocity be zeroed on build (spec.md §4.9's kinematic handling).
type MassOverride struct {
	IsKinematic       bool
	SetVelocityToZero bool
}

// JointInput references joint endpoints by entity; the Scheduler resolves
// these to BodyIndex values during Build.
type JointInput struct {
	EntityA, EntityB entity.ID
	Data             any
}

// staticRecord is what the scheduler remembers about the previous build's
// static body set, used to compute HaveStaticBodiesChanged cheaply instead
// of diffing full collider/transform data every tick.
type staticRecord struct {
	entity      entity.ID
	changeToken uint64
}

// integrityMark is a development-build bookkeeping entry: the scheduler
// records each static's order position and change token at build time, and
// the checks in CheckIntegrity below detect any build that exported a
// mutated static table without going through Build again (spec.md §4.9's
// dev-build integrity check).
type integrityMark struct {
	entity      entity.ID
	position    int
	changeToken uint64
}

// Scheduler is the Physics Build Scheduler of spec.md §4.9: on each Build
// call it assembles a World's dynamic and static body tables, resolves
// joints by entity reference, and tracks whether the static body set
// changed since the previous build.
type Scheduler struct {
	DevBuild bool // enables the integrity check; production builds should leave this false

	lastStatics []staticRecord
	marks       []integrityMark
}

// NewScheduler returns a Scheduler with no remembered prior build.
func NewScheduler() *Scheduler {
	return &Scheduler{}
}

// Build assembles a World from this tick's component data. Dynamic bodies
// occupy the low indices of World.Bodies, statics follow (spec.md §4.9's
// body-table ordering), and joints are resolved through a transient
// Entity->BodyIndex map built fresh each call.
func (s *Scheduler) Build(dynamics []DynamicInput, statics []StaticInput, joints []JointInput) World {
	bodies := make([]Body, 0, len(dynamics)+len(statics))
	index := make(map[entity.ID]BodyIndex, len(dynamics)+len(statics))

	for _, d := range dynamics {
		b := buildDynamicBody(d)
		index[d.Entity] = BodyIndex(len(bodies))
		bodies = append(bodies, b)
	}

	statRecords := make([]staticRecord, 0, len(statics))
	marks := make([]integrityMark, 0, len(statics))
	for i, st := range statics {
		b := buildStaticBody(st)
		index[st.Entity] = BodyIndex(len(bodies))
		bodies = append(bodies, b)
		statRecords = append(statRecords, staticRecord{entity: st.Entity, changeToken: st.ChangeToken})
		if s.DevBuild {
			marks = append(marks, integrityMark{entity: st.Entity, position: i, changeToken: st.ChangeToken})
		}
	}

	changed := s.haveStaticsChanged(statRecords)
	s.lastStatics = statRecords
	s.marks = marks

	resolved := make([]Joint, 0, len(joints))
	for _, j := range joints {
		a, okA := index[j.EntityA]
		b, okB := index[j.EntityB]
		if !okA {
			a = InvalidBodyIndex
		}
		if !okB {
			b = InvalidBodyIndex
		}
		resolved = append(resolved, Joint{BodyA: a, BodyB: b, Data: j.Data})
	}

	return World{
		Bodies:                  bodies,
		DynamicCount:            len(dynamics),
		StaticCount:             len(statics),
		Joints:                  resolved,
		HaveStaticBodiesChanged: changed,
	}
}

// haveStaticsChanged reports whether the static set differs from the
// remembered previous build: a different count, a different entity at some
// position, or any static's change token differing from what was recorded
// last time (spec.md §4.9).
func (s *Scheduler) haveStaticsChanged(current []staticRecord) bool {
	if len(current) != len(s.lastStatics) {
		return true
	}
	for i, rec := range current {
		prev := s.lastStatics[i]
		if rec.entity != prev.entity || rec.changeToken != prev.changeToken {
			return true
		}
	}
	return false
}

// CheckIntegrity re-validates the most recent dev build's recorded order
// and change tokens against the current static input set, returning an
// error describing the first mismatch found. Call this at export time in
// development builds only (spec.md §4.9: "dev-build integrity checks...
// non-zero residual is a fatal error").
func (s *Scheduler) CheckIntegrity(statics []StaticInput) error {
	if !s.DevBuild {
		return nil
	}
	if len(statics) != len(s.marks) {
		return &IntegrityError{Reason: "static body count changed since last Build"}
	}
	for i, st := range statics {
		mark := s.marks[i]
		if st.Entity != mark.entity {
			return &IntegrityError{Reason: "static body order changed since last Build", Entity: st.Entity}
		}
		if st.ChangeToken != mark.changeToken {
			return &IntegrityError{Reason: "static body mutated after the last Build without a rebuild", Entity: st.Entity}
		}
	}
	return nil
}

// IntegrityError is returned by CheckIntegrity.
type IntegrityError struct {
	Reason string
	Entity entity.ID
}

func (e *IntegrityError) Error() string {
	return "physics: integrity check failed: " + e.Reason
}

// buildDynamicBody implements spec.md §4.9's kinematic/disabled handling
// for a single dynamic input.
func buildDynamicBody(d DynamicInput) Body {
	t, scale := d.Source.Resolve()

	kinematic := d.Mass == nil || d.Override.IsKinematic || !d.Simulate
	var mass MassProperties
	if !kinematic {
		mass = MassProperties{
			InverseMass:    d.Mass.InverseMass,
			InverseInertia: scaleVec3(d.Mass.InverseInertia, scale),
			GravityFactor:  1,
		}
	}

	vel := d.Velocity
	if d.Override.SetVelocityToZero || !d.Simulate {
		vel = MotionVelocity{}
	}

	var collider Collider = d.Collider
	if d.NoCollide {
		collider = nil
	}

	return Body{
		Entity:    d.Entity,
		Transform: t,
		Velocity:  vel,
		Mass:      mass,
		Collider:  collider,
		Kinematic: kinematic,
	}
}

// buildStaticBody builds a static body row: zero mass, zero velocity,
// always kinematic (spec.md §4.9 treats statics as immovable).
func buildStaticBody(st StaticInput) Body {
	t, _ := st.Source.Resolve()
	var collider Collider = st.Collider
	if st.NoCollide {
		collider = nil
	}
	return Body{
		Entity:    st.Entity,
		Transform: t,
		Kinematic: true,
		Collider:  collider,
	}
}

func scaleVec3(v Vec3, scale float32) Vec3 {
	if scale == 0 {
		scale = 1
	}
	inv := 1 / (scale * scale)
	return Vec3{v[0] * inv, v[1] * inv, v[2] * inv}
}
