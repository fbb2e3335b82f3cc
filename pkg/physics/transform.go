package physics

import "math"

// Vec3 is a plain 3-component vector; physics math here stays in
// value-typed arrays rather than a matrix library, matching the teacher's
// no-allocation, direct-field-math style (pkg/linux/tcpinfo.go's Unpack).
type Vec3 [3]float32

// Quat is a unit quaternion, (x, y, z, w).
type Quat [4]float32

// Transform is a rigid position+rotation pair — the body-space pose the
// build scheduler derives for every body (spec.md §4.9's "Body-transform
// derivation").
type Transform struct {
	Position Vec3
	Rotation Quat
}

// IdentityQuat is the no-rotation quaternion.
var IdentityQuat = Quat{0, 0, 0, 1}

// Mat4 is a column-major 4x4 affine matrix (LocalToWorld's wire shape).
// Only the upper-left 3x3 and the translation column are read; the bottom
// row is assumed to be [0 0 0 1].
type Mat4 [16]float32

// Translation returns m's translation column.
func (m Mat4) Translation() Vec3 {
	return Vec3{m[12], m[13], m[14]}
}

// DecomposeRotation extracts a unit rotation quaternion from m's upper 3x3,
// ignoring any scale or shear (spec.md §4.9: "decompose the rotation+
// translation out of LocalToWorld (scale/shear ignored)"). Each basis
// column is normalized before conversion, which is exact for pure
// rotation+uniform-scale matrices and a reasonable approximation otherwise.
func (m Mat4) DecomposeRotation() Quat {
	col0 := normalize(Vec3{m[0], m[1], m[2]})
	col1 := normalize(Vec3{m[4], m[5], m[6]})
	col2 := normalize(Vec3{m[8], m[9], m[10]})
	return quatFromBasis(col0, col1, col2)
}

func normalize(v Vec3) Vec3 {
	n := float32(math.Sqrt(float64(v[0]*v[0] + v[1]*v[1] + v[2]*v[2])))
	if n == 0 {
		return Vec3{1, 0, 0}
	}
	return Vec3{v[0] / n, v[1] / n, v[2] / n}
}

// quatFromBasis converts an orthonormal basis (columns of a rotation
// matrix) to a unit quaternion via the standard trace-based method.
func quatFromBasis(c0, c1, c2 Vec3) Quat {
	m00, m10, m20 := c0[0], c0[1], c0[2]
	m01, m11, m21 := c1[0], c1[1], c1[2]
	m02, m12, m22 := c2[0], c2[1], c2[2]

	trace := m00 + m11 + m22
	switch {
	case trace > 0:
		s := float32(math.Sqrt(float64(trace+1))) * 2
		return Quat{
			(m21 - m12) / s,
			(m02 - m20) / s,
			(m10 - m01) / s,
			s / 4,
		}
	case m00 > m11 && m00 > m22:
		s := float32(math.Sqrt(float64(1+m00-m11-m22))) * 2
		return Quat{s / 4, (m01 + m10) / s, (m02 + m20) / s, (m21 - m12) / s}
	case m11 > m22:
		s := float32(math.Sqrt(float64(1+m11-m00-m22))) * 2
		return Quat{(m01 + m10) / s, s / 4, (m12 + m21) / s, (m02 - m20) / s}
	default:
		s := float32(math.Sqrt(float64(1+m22-m00-m11))) * 2
		return Quat{(m02 + m20) / s, (m12 + m21) / s, s / 4, (m10 - m01) / s}
	}
}

// TransformSource is the body pose data the build scheduler reads, shaped
// to match spec.md §4.9's two derivation paths without requiring a full
// ECS transform hierarchy to resolve them.
type TransformSource struct {
	// HasParentOrNoLocalTransform selects the LocalToWorld decomposition
	// path; otherwise LocalTransform is used directly.
	HasParentOrNoLocalTransform bool
	LocalToWorld                Mat4
	LocalTransform              Transform
	// UniformScale is only meaningful on the LocalTransform path (spec.md
	// §4.9: "uniform scale is propagated to the body and its mass
	// properties").
	UniformScale float32
}

// Resolve implements spec.md §4.9's body-transform derivation.
func (s TransformSource) Resolve() (t Transform, scale float32) {
	if s.HasParentOrNoLocalTransform {
		return Transform{Position: s.LocalToWorld.Translation(), Rotation: s.LocalToWorld.DecomposeRotation()}, 1
	}
	scale = s.UniformScale
	if scale == 0 {
		scale = 1
	}
	return s.LocalTransform, scale
}
