package smoother

import (
	"math"
	"testing"

	"github.com/fenwicklabs/ticknet/pkg/physics"
	"gotest.tools/v3/assert"
)

func closeVec3(t *testing.T, a, b physics.Vec3) {
	t.Helper()
	const eps = 1e-4
	for i := range a {
		if math.Abs(float64(a[i]-b[i])) > eps {
			t.Fatalf("vec3 mismatch: %v vs %v", a, b)
		}
	}
}

func TestExtrapolateIntegratesPositionByVelocity(t *testing.T) {
	s := Sample{
		Transform: physics.Transform{Position: physics.Vec3{0, 0, 0}, Rotation: physics.IdentityQuat},
		Velocity:  physics.MotionVelocity{Linear: physics.Vec3{10, 0, 0}},
	}
	out := Smooth(Extrapolate, Sample{}, s, 0, 0.5)
	closeVec3(t, out.Position, physics.Vec3{5, 0, 0})
}

func TestExtrapolateWithZeroAngularVelocityLeavesRotationUnchanged(t *testing.T) {
	s := Sample{Transform: physics.Transform{Rotation: physics.IdentityQuat}}
	out := Smooth(Extrapolate, Sample{}, s, 0, 0.1)
	assert.Equal(t, out.Rotation, physics.IdentityQuat)
}

func TestInterpolateMidpointAveragesPosition(t *testing.T) {
	prev := Sample{Transform: physics.Transform{Position: physics.Vec3{0, 0, 0}, Rotation: physics.IdentityQuat}}
	curr := Sample{Transform: physics.Transform{Position: physics.Vec3{10, 0, 0}, Rotation: physics.IdentityQuat}}
	out := Smooth(Interpolate, prev, curr, 0.5, 0.1)
	closeVec3(t, out.Position, physics.Vec3{5, 0, 0})
}

func TestInterpolateAtZeroReturnsPrev(t *testing.T) {
	prev := Sample{Transform: physics.Transform{Position: physics.Vec3{1, 2, 3}, Rotation: physics.IdentityQuat}}
	curr := Sample{Transform: physics.Transform{Position: physics.Vec3{9, 9, 9}, Rotation: physics.IdentityQuat}}
	out := Smooth(Interpolate, prev, curr, 0, 0.1)
	closeVec3(t, out.Position, prev.Transform.Position)
}

func TestInterpolateAtOneReturnsCurrent(t *testing.T) {
	prev := Sample{Transform: physics.Transform{Position: physics.Vec3{1, 2, 3}, Rotation: physics.IdentityQuat}}
	curr := Sample{Transform: physics.Transform{Position: physics.Vec3{9, 9, 9}, Rotation: physics.IdentityQuat}}
	out := Smooth(Interpolate, prev, curr, 1, 0.1)
	closeVec3(t, out.Position, curr.Transform.Position)
}

func TestInterpolateUsingVelocityBlendsBothLegs(t *testing.T) {
	prev := Sample{
		Transform: physics.Transform{Position: physics.Vec3{0, 0, 0}, Rotation: physics.IdentityQuat},
		Velocity:  physics.MotionVelocity{Linear: physics.Vec3{10, 0, 0}},
	}
	curr := Sample{
		Transform: physics.Transform{Position: physics.Vec3{1, 0, 0}, Rotation: physics.IdentityQuat},
		Velocity:  physics.MotionVelocity{Linear: physics.Vec3{10, 0, 0}},
	}
	out := Smooth(InterpolateUsingVelocity, prev, curr, 0.5, 1.0)
	// first leg: 0 + 10*0.5 = 5; second leg velocity blended to 10 again: 5 + 10*0.5 = 10
	closeVec3(t, out.Position, physics.Vec3{10, 0, 0})
}

func TestToLocalToWorldPreservesPostTransformAndSetsTranslation(t *testing.T) {
	identity := physics.Mat4{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
	rt := RigidTransform{Position: physics.Vec3{1, 2, 3}, Rotation: physics.IdentityQuat}
	out := ToLocalToWorld(rt, identity)
	assert.Equal(t, out.Translation(), physics.Vec3{1, 2, 3})
	rot := out.DecomposeRotation()
	closeVec3(t, physics.Vec3{rot[0], rot[1], rot[2]}, physics.Vec3{0, 0, 0})
}
