// Package smoother implements the Graphical Smoother (spec.md §4.10, C10):
// per-body strategies for displaying a rigid-body pose at render time ahead
// of or between the fixed-rate physics ticks that actually moved it.
package smoother

import (
	"math"

	"github.com/fenwicklabs/ticknet/pkg/physics"
)

// RigidTransform is a display-space position+rotation pair produced by a
// smoothing strategy.
type RigidTransform struct {
	Position physics.Vec3
	Rotation physics.Quat
}

// Sample is one tick's recorded body state, captured both at the tick that
// produced it (for Interpolate/InterpolateUsingVelocity's "prev"/"current"
// pair) and reused on its own for Extrapolate.
type Sample struct {
	Transform physics.Transform
	Velocity  physics.MotionVelocity
}

// Strategy selects which of the three formulas in spec.md §4.10 a body uses.
type Strategy int

const (
	// Extrapolate integrates the current sample forward by dt using its
	// own velocity; used when no newer tick has arrived yet.
	Extrapolate Strategy = iota
	// Interpolate nlerps position and rotation between prev and current by
	// alpha, ignoring velocity entirely.
	Interpolate
	// InterpolateUsingVelocity blends prev's velocity-driven integration
	// with current's, weighted by alpha.
	InterpolateUsingVelocity
)

// Smooth implements spec.md §4.10's three strategies. alpha is the
// normalized time-ahead in [0,1] for Interpolate and InterpolateUsingVelocity;
// dt is the tick's fixed duration in seconds.
func Smooth(strategy Strategy, prev, current Sample, alpha float64, dt float32) RigidTransform {
	switch strategy {
	case Interpolate:
		return RigidTransform{
			Position: lerpVec3(prev.Transform.Position, current.Transform.Position, alpha),
			Rotation: nlerp(prev.Transform.Rotation, current.Transform.Rotation, alpha),
		}
	case InterpolateUsingVelocity:
		return interpolateUsingVelocity(prev, current, alpha, dt)
	default:
		return extrapolate(current, dt)
	}
}

// extrapolate implements "pos += linear_vel*dt; rot *= exp(0.5*omega*dt)".
func extrapolate(s Sample, dt float32) RigidTransform {
	pos := addScaled(s.Transform.Position, s.Velocity.Linear, dt)
	rot := integrateAngular(s.Transform.Rotation, s.Velocity.Angular, dt)
	return RigidTransform{Position: pos, Rotation: rot}
}

// interpolateUsingVelocity integrates prev forward with prev's velocity for
// (1-alpha)*dt, then continues with the alpha-blended velocity for the
// remaining alpha*dt (spec.md §4.10).
func interpolateUsingVelocity(prev, current Sample, alpha float64, dt float32) RigidTransform {
	a := float32(clamp01(alpha))
	firstLeg := (1 - a) * dt
	secondLeg := a * dt

	pos := addScaled(prev.Transform.Position, prev.Velocity.Linear, firstLeg)
	rot := integrateAngular(prev.Transform.Rotation, prev.Velocity.Angular, firstLeg)

	blendedLinear := lerpVec3(prev.Velocity.Linear, current.Velocity.Linear, alpha)
	blendedAngular := lerpVec3(prev.Velocity.Angular, current.Velocity.Angular, alpha)
	pos = addScaled(pos, blendedLinear, secondLeg)
	rot = integrateAngular(rot, blendedAngular, secondLeg)

	return RigidTransform{Position: pos, Rotation: rot}
}

func addScaled(v, delta physics.Vec3, scale float32) physics.Vec3 {
	return physics.Vec3{v[0] + delta[0]*scale, v[1] + delta[1]*scale, v[2] + delta[2]*scale}
}

func lerpVec3(a, b physics.Vec3, t float64) physics.Vec3 {
	ft := float32(clamp01(t))
	return physics.Vec3{
		a[0] + (b[0]-a[0])*ft,
		a[1] + (b[1]-a[1])*ft,
		a[2] + (b[2]-a[2])*ft,
	}
}

func clamp01(t float64) float64 {
	if t < 0 {
		return 0
	}
	if t > 1 {
		return 1
	}
	return t
}

// integrateAngular applies rot *= exp(0.5*omega*dt), i.e. a first-order
// quaternion integration step by angular velocity omega over dt seconds.
func integrateAngular(rot physics.Quat, omega physics.Vec3, dt float32) physics.Quat {
	if dt == 0 || (omega[0] == 0 && omega[1] == 0 && omega[2] == 0) {
		return rot
	}
	half := physics.Quat{omega[0] * dt * 0.5, omega[1] * dt * 0.5, omega[2] * dt * 0.5, 0}
	delta := quatMul(half, rot)
	sum := physics.Quat{
		rot[0] + delta[0],
		rot[1] + delta[1],
		rot[2] + delta[2],
		rot[3] + delta[3],
	}
	return normalizeQuat(sum)
}

func quatMul(a, b physics.Quat) physics.Quat {
	return physics.Quat{
		a[3]*b[0] + a[0]*b[3] + a[1]*b[2] - a[2]*b[1],
		a[3]*b[1] - a[0]*b[2] + a[1]*b[3] + a[2]*b[0],
		a[3]*b[2] + a[0]*b[1] - a[1]*b[0] + a[2]*b[3],
		a[3]*b[3] - a[0]*b[0] - a[1]*b[1] - a[2]*b[2],
	}
}

// nlerp is a normalized linear interpolation between two quaternions,
// shortest-path corrected (negating b when the dot product is negative).
func nlerp(a, b physics.Quat, t float64) physics.Quat {
	dot := a[0]*b[0] + a[1]*b[1] + a[2]*b[2] + a[3]*b[3]
	if dot < 0 {
		b = physics.Quat{-b[0], -b[1], -b[2], -b[3]}
	}
	ft := float32(clamp01(t))
	sum := physics.Quat{
		a[0] + (b[0]-a[0])*ft,
		a[1] + (b[1]-a[1])*ft,
		a[2] + (b[2]-a[2])*ft,
		a[3] + (b[3]-a[3])*ft,
	}
	return normalizeQuat(sum)
}

func normalizeQuat(q physics.Quat) physics.Quat {
	n := float32(math.Sqrt(float64(q[0]*q[0] + q[1]*q[1] + q[2]*q[2] + q[3]*q[3])))
	if n == 0 {
		return physics.IdentityQuat
	}
	return physics.Quat{q[0] / n, q[1] / n, q[2] / n, q[3] / n}
}

// ToLocalToWorld rebuilds a LocalToWorld matrix from t, preserving any
// existing post-transform matrix's scale/shear column data the way the
// build scheduler's DecomposeRotation path discards it (spec.md §4.10:
// "rebuild a LocalToWorld matrix that preserves any post-transform
// matrix").
func ToLocalToWorld(t RigidTransform, postTransform physics.Mat4) physics.Mat4 {
	rotation := quatToMat3(t.Rotation)
	var out physics.Mat4
	for col := 0; col < 3; col++ {
		for row := 0; row < 3; row++ {
			var sum float32
			for k := 0; k < 3; k++ {
				sum += rotation[col*3+k] * postTransform[k*4+row]
			}
			out[col*4+row] = sum
		}
		out[col*4+3] = 0
	}
	out[12] = t.Position[0]
	out[13] = t.Position[1]
	out[14] = t.Position[2]
	out[15] = 1
	return out
}

// quatToMat3 returns a column-major 3x3 rotation matrix flattened to 9
// floats (3 columns of 3).
func quatToMat3(q physics.Quat) [9]float32 {
	x, y, z, w := q[0], q[1], q[2], q[3]
	x2, y2, z2 := x+x, y+y, z+z
	xx, yy, zz := x*x2, y*y2, z*z2
	xy, xz, yz := x*y2, x*z2, y*z2
	wx, wy, wz := w*x2, w*y2, w*z2
	return [9]float32{
		1 - (yy + zz), xy + wz, xz - wy,
		xy - wz, 1 - (xx + zz), yz + wx,
		xz + wy, yz - wx, 1 - (xx + yy),
	}
}
