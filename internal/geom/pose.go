package geom

// Pose is a rigid transform (sensor -> world).
// T is 4x4 row-major (m00..m03, m10..m13, m20..m23, m30..m33).
type Pose struct {
	T [16]float64
}

// Identity returns the identity pose.
func Identity() Pose {
	return Pose{T: [16]float64{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}}
}

// TranslationPose returns a pose that translates by (x, y, z) with no
// rotation.
func TranslationPose(x, y, z float64) Pose {
	p := Identity()
	p.T[3] = x
	p.T[7] = y
	p.T[11] = z
	return p
}

// Apply transforms a sensor-frame point into world space.
func (p Pose) Apply(v Vec3) Vec3 {
	return Vec3{
		X: p.T[0]*v.X + p.T[1]*v.Y + p.T[2]*v.Z + p.T[3],
		Y: p.T[4]*v.X + p.T[5]*v.Y + p.T[6]*v.Z + p.T[7],
		Z: p.T[8]*v.X + p.T[9]*v.Y + p.T[10]*v.Z + p.T[11],
	}
}

// Translation returns the pose's world-space position.
func (p Pose) Translation() Vec3 {
	return Vec3{X: p.T[3], Y: p.T[7], Z: p.T[11]}
}

// IsFinite reports whether every matrix entry is finite.
func (p Pose) IsFinite() bool {
	for _, m := range p.T {
		if !isFinite(m) {
			return false
		}
	}
	return true
}
