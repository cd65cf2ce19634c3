package math

import "math"

// Quat represents a quaternion for 3D rotations.
// Components are stored as X, Y, Z, W where W is the scalar part.
type Quat struct {
	X, Y, Z, W float32
}

// QuatIdentity returns an identity quaternion (no rotation).
func QuatIdentity() Quat {
	return Quat{X: 0, Y: 0, Z: 0, W: 1}
}

// QuatFromAxisAngle creates a quaternion from axis-angle rotation.
// axis should be normalized, angle is in radians.
func QuatFromAxisAngle(axis Vec3, angle float32) Quat {
	halfAngle := angle / 2
	s := float32(math.Sin(float64(halfAngle)))
	return Quat{
		X: axis.X * s,
		Y: axis.Y * s,
		Z: axis.Z * s,
		W: float32(math.Cos(float64(halfAngle))),
	}
}

// QuatFromMat3x3 converts a column-major rotation matrix to a quaternion.
func QuatFromMat3x3(r [9]float32) Quat {
	at := func(row, col int) float32 { return r[col*3+row] }
	var q Quat
	trace := at(0, 0) + at(1, 1) + at(2, 2)
	switch {
	case trace > 0:
		s := 0.5 / sqrt32(trace+1)
		q = Quat{
			X: (at(2, 1) - at(1, 2)) * s,
			Y: (at(0, 2) - at(2, 0)) * s,
			Z: (at(1, 0) - at(0, 1)) * s,
			W: 0.25 / s,
		}
	case at(0, 0) > at(1, 1) && at(0, 0) > at(2, 2):
		s := 2 * sqrt32(1+at(0, 0)-at(1, 1)-at(2, 2))
		q = Quat{
			X: 0.25 * s,
			Y: (at(0, 1) + at(1, 0)) / s,
			Z: (at(0, 2) + at(2, 0)) / s,
			W: (at(2, 1) - at(1, 2)) / s,
		}
	case at(1, 1) > at(2, 2):
		s := 2 * sqrt32(1+at(1, 1)-at(0, 0)-at(2, 2))
		q = Quat{
			X: (at(0, 1) + at(1, 0)) / s,
			Y: 0.25 * s,
			Z: (at(1, 2) + at(2, 1)) / s,
			W: (at(0, 2) - at(2, 0)) / s,
		}
	default:
		s := 2 * sqrt32(1+at(2, 2)-at(0, 0)-at(1, 1))
		q = Quat{
			X: (at(0, 2) + at(2, 0)) / s,
			Y: (at(1, 2) + at(2, 1)) / s,
			Z: 0.25 * s,
			W: (at(1, 0) - at(0, 1)) / s,
		}
	}
	return q.Normalize()
}

func sqrt32(f float32) float32 {
	return float32(math.Sqrt(float64(f)))
}

// Normalize returns a normalized quaternion.
func (q Quat) Normalize() Quat {
	length := sqrt32(q.X*q.X + q.Y*q.Y + q.Z*q.Z + q.W*q.W)
	if length < 0.0001 {
		return QuatIdentity()
	}
	invLen := 1.0 / length
	return Quat{
		X: q.X * invLen,
		Y: q.Y * invLen,
		Z: q.Z * invLen,
		W: q.W * invLen,
	}
}

// Dot returns the dot product of two quaternions.
func (q Quat) Dot(other Quat) float32 {
	return q.X*other.X + q.Y*other.Y + q.Z*other.Z + q.W*other.W
}

// Array returns the components in X, Y, Z, W order.
func (q Quat) Array() [4]float32 {
	return [4]float32{q.X, q.Y, q.Z, q.W}
}

// ToMat4 converts the quaternion to a 4x4 rotation matrix.
func (q Quat) ToMat4() Mat4 {
	q = q.Normalize()

	xx := q.X * q.X
	xy := q.X * q.Y
	xz := q.X * q.Z
	xw := q.X * q.W
	yy := q.Y * q.Y
	yz := q.Y * q.Z
	yw := q.Y * q.W
	zz := q.Z * q.Z
	zw := q.Z * q.W

	return Mat4{
		1 - 2*(yy+zz), 2 * (xy + zw), 2 * (xz - yw), 0,
		2 * (xy - zw), 1 - 2*(xx+zz), 2 * (yz + xw), 0,
		2 * (xz + yw), 2 * (yz - xw), 1 - 2*(xx+yy), 0,
		0, 0, 0, 1,
	}
}

// Mul multiplies two quaternions (combines rotations).
func (q Quat) Mul(other Quat) Quat {
	return Quat{
		X: q.W*other.X + q.X*other.W + q.Y*other.Z - q.Z*other.Y,
		Y: q.W*other.Y - q.X*other.Z + q.Y*other.W + q.Z*other.X,
		Z: q.W*other.Z + q.X*other.Y - q.Y*other.X + q.Z*other.W,
		W: q.W*other.W - q.X*other.X - q.Y*other.Y - q.Z*other.Z,
	}
}
