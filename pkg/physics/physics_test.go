package physics

import (
	"math"
	"testing"

	"github.com/fenwicklabs/ticknet/pkg/entity"
	"gotest.tools/v3/assert"
)

func identityLocalToWorld(pos Vec3) Mat4 {
	return Mat4{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		pos[0], pos[1], pos[2], 1,
	}
}

func TestResolveUsesLocalToWorldWhenParented(t *testing.T) {
	src := TransformSource{
		HasParentOrNoLocalTransform: true,
		LocalToWorld:                identityLocalToWorld(Vec3{1, 2, 3}),
	}
	tr, scale := src.Resolve()
	assert.Equal(t, scale, float32(1))
	assert.Equal(t, tr.Position, Vec3{1, 2, 3})
	assert.Equal(t, tr.Rotation, IdentityQuat)
}

func TestResolveUsesLocalTransformWhenUnparented(t *testing.T) {
	src := TransformSource{
		LocalTransform: Transform{Position: Vec3{5, 0, 0}, Rotation: IdentityQuat},
		UniformScale:   2,
	}
	tr, scale := src.Resolve()
	assert.Equal(t, scale, float32(2))
	assert.Equal(t, tr.Position, Vec3{5, 0, 0})
}

func TestDecomposeRotationIgnoresScale(t *testing.T) {
	m := Mat4{
		3, 0, 0, 0,
		0, 3, 0, 0,
		0, 0, 3, 0,
		0, 0, 0, 1,
	}
	q := m.DecomposeRotation()
	closeTo(t, q, IdentityQuat)
}

func closeTo(t *testing.T, a, b Quat) {
	t.Helper()
	const eps = 1e-4
	for i := range a {
		if math.Abs(float64(a[i]-b[i])) > eps {
			t.Fatalf("quat mismatch: %v vs %v", a, b)
		}
	}
}

func TestBuildOrdersDynamicsBeforeStatics(t *testing.T) {
	s := NewScheduler()
	d := DynamicInput{Entity: 1, Mass: &BodyMass{InverseMass: 1}, Simulate: true}
	st := StaticInput{Entity: 2}
	world := s.Build([]DynamicInput{d}, []StaticInput{st}, nil)

	assert.Equal(t, world.DynamicCount, 1)
	assert.Equal(t, world.StaticCount, 1)
	assert.Equal(t, world.Bodies[0].Entity, entity.ID(1))
	assert.Equal(t, world.Bodies[1].Entity, entity.ID(2))
	assert.Assert(t, world.Bodies[1].Kinematic)
}

func TestBuildMarksKinematicWithoutMass(t *testing.T) {
	s := NewScheduler()
	d := DynamicInput{Entity: 1, Simulate: true}
	world := s.Build([]DynamicInput{d}, nil, nil)
	assert.Assert(t, world.Bodies[0].Kinematic)
	assert.Equal(t, world.Bodies[0].Mass.InverseMass, float32(0))
}

func TestBuildMarksKinematicViaOverride(t *testing.T) {
	s := NewScheduler()
	d := DynamicInput{
		Entity:   1,
		Mass:     &BodyMass{InverseMass: 1},
		Override: MassOverride{IsKinematic: true},
		Simulate: true,
	}
	world := s.Build([]DynamicInput{d}, nil, nil)
	assert.Assert(t, world.Bodies[0].Kinematic)
}

func TestBuildZeroesVelocityOnOverride(t *testing.T) {
	s := NewScheduler()
	d := DynamicInput{
		Entity:   1,
		Mass:     &BodyMass{InverseMass: 1},
		Velocity: MotionVelocity{Linear: Vec3{1, 1, 1}},
		Override: MassOverride{SetVelocityToZero: true},
		Simulate: true,
	}
	world := s.Build([]DynamicInput{d}, nil, nil)
	assert.Equal(t, world.Bodies[0].Velocity, MotionVelocity{})
}

func TestBuildZeroesVelocityAndGravityWhenSimulateDisabled(t *testing.T) {
	s := NewScheduler()
	d := DynamicInput{
		Entity:   1,
		Mass:     &BodyMass{InverseMass: 1},
		Velocity: MotionVelocity{Linear: Vec3{2, 0, 0}},
		Simulate: false,
	}
	world := s.Build([]DynamicInput{d}, nil, nil)
	assert.Assert(t, world.Bodies[0].Kinematic)
	assert.Equal(t, world.Bodies[0].Velocity, MotionVelocity{})
	assert.Equal(t, world.Bodies[0].Mass.GravityFactor, float32(0))
}

func TestBuildRestoresVelocityAfterSimulateReenabled(t *testing.T) {
	s := NewScheduler()
	stored := MotionVelocity{Linear: Vec3{2, 0, 0}}

	disabled := s.Build([]DynamicInput{{
		Entity:   1,
		Mass:     &BodyMass{InverseMass: 1},
		Velocity: stored,
		Simulate: false,
	}}, nil, nil)
	assert.Equal(t, disabled.Bodies[0].Velocity, MotionVelocity{})

	reenabled := s.Build([]DynamicInput{{
		Entity:   1,
		Mass:     &BodyMass{InverseMass: 1},
		Velocity: stored,
		Simulate: true,
	}}, nil, nil)
	assert.Assert(t, !reenabled.Bodies[0].Kinematic)
	assert.Equal(t, reenabled.Bodies[0].Velocity, stored)
	assert.Equal(t, reenabled.Bodies[0].Mass.GravityFactor, float32(1))
}

func TestBuildDropsColliderWhenDisabled(t *testing.T) {
	s := NewScheduler()
	d := DynamicInput{Entity: 1, Collider: "solid", NoCollide: true, Simulate: true, Mass: &BodyMass{InverseMass: 1}}
	world := s.Build([]DynamicInput{d}, nil, nil)
	assert.Assert(t, world.Bodies[0].Collider == nil)
}

func TestHaveStaticBodiesChangedOnFirstBuild(t *testing.T) {
	s := NewScheduler()
	world := s.Build(nil, []StaticInput{{Entity: 1}}, nil)
	assert.Assert(t, world.HaveStaticBodiesChanged)
}

func TestHaveStaticBodiesChangedStableAcrossIdenticalBuilds(t *testing.T) {
	s := NewScheduler()
	statics := []StaticInput{{Entity: 1, ChangeToken: 7}, {Entity: 2, ChangeToken: 3}}
	s.Build(nil, statics, nil)
	world := s.Build(nil, statics, nil)
	assert.Assert(t, !world.HaveStaticBodiesChanged)
}

func TestHaveStaticBodiesChangedDetectsTokenBump(t *testing.T) {
	s := NewScheduler()
	s.Build(nil, []StaticInput{{Entity: 1, ChangeToken: 1}}, nil)
	world := s.Build(nil, []StaticInput{{Entity: 1, ChangeToken: 2}}, nil)
	assert.Assert(t, world.HaveStaticBodiesChanged)
}

func TestHaveStaticBodiesChangedDetectsCountChange(t *testing.T) {
	s := NewScheduler()
	s.Build(nil, []StaticInput{{Entity: 1}}, nil)
	world := s.Build(nil, []StaticInput{{Entity: 1}, {Entity: 2}}, nil)
	assert.Assert(t, world.HaveStaticBodiesChanged)
}

func TestBuildResolvesJointsByEntity(t *testing.T) {
	s := NewScheduler()
	dyn := []DynamicInput{{Entity: 10, Mass: &BodyMass{InverseMass: 1}, Simulate: true}, {Entity: 11, Mass: &BodyMass{InverseMass: 1}, Simulate: true}}
	world := s.Build(dyn, nil, []JointInput{{EntityA: 10, EntityB: 11}})
	assert.Equal(t, len(world.Joints), 1)
	assert.Equal(t, world.Joints[0].BodyA, BodyIndex(0))
	assert.Equal(t, world.Joints[0].BodyB, BodyIndex(1))
}

func TestBuildMarksUnresolvedJointEndpointInvalid(t *testing.T) {
	s := NewScheduler()
	dyn := []DynamicInput{{Entity: 10, Mass: &BodyMass{InverseMass: 1}, Simulate: true}}
	world := s.Build(dyn, nil, []JointInput{{EntityA: 10, EntityB: 999}})
	assert.Equal(t, world.Joints[0].BodyA, BodyIndex(0))
	assert.Equal(t, world.Joints[0].BodyB, InvalidBodyIndex)
}

func TestCheckIntegrityPassesWhenUnchanged(t *testing.T) {
	s := &Scheduler{DevBuild: true}
	statics := []StaticInput{{Entity: 1, ChangeToken: 5}}
	s.Build(nil, statics, nil)
	assert.NilError(t, s.CheckIntegrity(statics))
}

func TestCheckIntegrityFailsOnMutationAfterBuild(t *testing.T) {
	s := &Scheduler{DevBuild: true}
	statics := []StaticInput{{Entity: 1, ChangeToken: 5}}
	s.Build(nil, statics, nil)
	mutated := []StaticInput{{Entity: 1, ChangeToken: 6}}
	assert.ErrorContains(t, s.CheckIntegrity(mutated), "mutated")
}

func TestCheckIntegrityFailsOnCountChange(t *testing.T) {
	s := &Scheduler{DevBuild: true}
	statics := []StaticInput{{Entity: 1}}
	s.Build(nil, statics, nil)
	assert.ErrorContains(t, s.CheckIntegrity([]StaticInput{{Entity: 1}, {Entity: 2}}), "count changed")
}

func TestCheckIntegrityNoOpOutsideDevBuild(t *testing.T) {
	s := NewScheduler()
	statics := []StaticInput{{Entity: 1}}
	s.Build(nil, statics, nil)
	assert.NilError(t, s.CheckIntegrity([]StaticInput{{Entity: 2}, {Entity: 3}}))
}

func TestNopBackendStepLeavesWorldUnchanged(t *testing.T) {
	world := &World{Bodies: []Body{{Entity: 1}}}
	before := *world
	assert.NilError(t, NopBackend{}.Step(world, 0.016))
	assert.DeepEqual(t, *world, before)
}
