package trajectory

import (
	"sort"

	"go.viam.com/motiontrack/spatialmath"
)

// Interpolate returns the pose of a timestamp ordered trajectory at time t. Positions are
// linearly interpolated between the two surrounding poses and the orientation is that of the
// nearer one. It returns false when t is outside the span of poses.
func Interpolate(poses []spatialmath.Pose, t float64) (spatialmath.Pose, bool) {
	if len(poses) == 0 || t < poses[0].Timestamp || t > poses[len(poses)-1].Timestamp {
		return spatialmath.Pose{}, false
	}
	i := sort.Search(len(poses), func(i int) bool { return poses[i].Timestamp >= t })
	after := poses[i]
	if after.Timestamp == t || i == 0 {
		return after.WithTimestamp(t), true
	}
	before := poses[i-1]
	span := after.Timestamp - before.Timestamp
	w := (t - before.Timestamp) / span
	out := before
	if w > 0.5 {
		out = after
	}
	out.Timestamp = t
	out.Position = before.Position.Mul(1 - w).Add(after.Position.Mul(w))
	return out, true
}

// Synchronize pairs every est pose with the ref pose interpolated at its timestamp, dropping est
// poses outside the time span of ref. Both results have the same length and timestamps.
func Synchronize(ref, est []spatialmath.Pose) ([]spatialmath.Pose, []spatialmath.Pose) {
	pairedRef := make([]spatialmath.Pose, 0, len(est))
	pairedEst := make([]spatialmath.Pose, 0, len(est))
	for _, p := range est {
		r, ok := Interpolate(ref, p.Timestamp)
		if !ok {
			continue
		}
		pairedRef = append(pairedRef, r)
		pairedEst = append(pairedEst, p)
	}
	return pairedRef, pairedEst
}
