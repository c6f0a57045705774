package wiimote

import "math"

// degreesToRadians converts an angle in degrees to radians.
const degreesToRadians = math.Pi / 180

// EulerAngles is an orientation reported by a controller or extension.
// All angles are in degrees, in the sensor's native sign convention.
type EulerAngles struct {
	Roll  float64 `json:"roll"`
	Pitch float64 `json:"pitch"`
	Yaw   float64 `json:"yaw"`
}

// Quaternion is a unit orientation quaternion.
type Quaternion struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
	W float64 `json:"w"`
}

// IdentityQuaternion returns the no-rotation quaternion (0, 0, 0, 1).
func IdentityQuaternion() Quaternion {
	return Quaternion{W: 1}
}

// Norm returns the Euclidean length of q.
func (q Quaternion) Norm() float64 {
	return math.Sqrt(q.X*q.X + q.Y*q.Y + q.Z*q.Z + q.W*q.W)
}

// QuaternionFromEuler converts a sensor orientation into a quaternion.
//
// The angles are negated, converted to radians and combined with the
// following mapping, which defines the coordinate convention of every
// tracker this bridge publishes:
//
//	z = sr·cp·cy − cr·sp·sy
//	x = cr·sp·cy + sr·cp·sy
//	y = cr·cp·sy − sr·sp·cy
//	w = cr·cp·cy + sr·sp·sy
//
// where s/c are the sine/cosine of the half angles. The function is total
// and the result is unit-norm up to floating point error.
func QuaternionFromEuler(angles EulerAngles) Quaternion {
	r := -angles.Roll * degreesToRadians
	p := -angles.Pitch * degreesToRadians
	y := -angles.Yaw * degreesToRadians

	sr, cr := math.Sincos(r / 2)
	sp, cp := math.Sincos(p / 2)
	sy, cy := math.Sincos(y / 2)

	return Quaternion{
		Z: sr*cp*cy - cr*sp*sy,
		X: cr*sp*cy + sr*cp*sy,
		Y: cr*cp*sy - sr*sp*cy,
		W: cr*cp*cy + sr*sp*sy,
	}
}
