// Package trajectory stores pose histories and compares trajectories: Umeyama similarity
// alignment and positional error metrics.
package trajectory

import (
	"sync"

	"go.viam.com/motiontrack/spatialmath"
)

// History is an append-only, timestamp ordered sequence of poses. Readers only ever see copies,
// so a History may be snapshotted from another goroutine while its owner appends.
type History struct {
	mu    sync.RWMutex
	poses []spatialmath.Pose
}

// NewHistory returns an empty history.
func NewHistory() *History {
	return &History{}
}

// Append adds a pose to the end of the history.
func (h *History) Append(p spatialmath.Pose) {
	h.mu.Lock()
	h.poses = append(h.poses, p)
	h.mu.Unlock()
}

// Len returns the number of poses.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.poses)
}

// Snapshot returns a copy of the poses.
func (h *History) Snapshot() []spatialmath.Pose {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]spatialmath.Pose, len(h.poses))
	copy(out, h.poses)
	return out
}

// Reset empties the history.
func (h *History) Reset() {
	h.mu.Lock()
	h.poses = nil
	h.mu.Unlock()
}
