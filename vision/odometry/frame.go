package odometry

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/atomic"

	"go.viam.com/motiontrack/rimage"
	"go.viam.com/motiontrack/rimage/transform"
)

// ErrMalformedFrame is returned for frames that cannot be processed.
var ErrMalformedFrame = errors.New("malformed frame")

// Frame is one grayscale camera frame with the intrinsics of the camera that took it.
type Frame struct {
	Timestamp  float64
	Pix        []byte
	Width      int
	Height     int
	Intrinsics *transform.PinholeCameraIntrinsics
}

// Validate returns an error wrapping ErrMalformedFrame when the frame is empty, too small, does
// not hold width*height bytes or lacks valid intrinsics.
func (f *Frame) Validate() error {
	if len(f.Pix) == 0 {
		return errors.Wrap(ErrMalformedFrame, "empty pixel buffer")
	}
	if f.Width < rimage.MinImageSide || f.Height < rimage.MinImageSide {
		return errors.Wrapf(ErrMalformedFrame, "implausible dimensions %dx%d", f.Width, f.Height)
	}
	if !rimage.BufferHolds(len(f.Pix), f.Width, f.Height) {
		return errors.Wrapf(ErrMalformedFrame, "buffer holds %d bytes, too few for %dx%d",
			len(f.Pix), f.Width, f.Height)
	}
	if err := f.Intrinsics.CheckValid(); err != nil {
		return errors.Wrap(ErrMalformedFrame, err.Error())
	}
	if err := f.Intrinsics.CheckFrameSize(f.Width, f.Height); err != nil {
		return errors.Wrap(ErrMalformedFrame, err.Error())
	}
	return nil
}

// FrameQueue is a single-slot queue in which a newer frame replaces any frame not yet taken, so
// that slow frame processing never blocks frame delivery.
type FrameQueue[T any] struct {
	mu    sync.Mutex
	slot  *T
	ready chan struct{}

	pushed  atomic.Int64
	dropped atomic.Int64
}

// NewFrameQueue returns an empty queue.
func NewFrameQueue[T any]() *FrameQueue[T] {
	return &FrameQueue[T]{ready: make(chan struct{}, 1)}
}

// Put stores item, replacing and counting as dropped any item still waiting. It never blocks.
func (q *FrameQueue[T]) Put(item T) {
	q.mu.Lock()
	q.pushed.Inc()
	if q.slot != nil {
		q.dropped.Inc()
	}
	q.slot = &item
	q.mu.Unlock()

	select {
	case q.ready <- struct{}{}:
	default:
	}
}

// Next waits for an item or for ctx to be done.
func (q *FrameQueue[T]) Next(ctx context.Context) (T, error) {
	for {
		if item, ok := q.TryNext(); ok {
			return item, nil
		}
		select {
		case <-ctx.Done():
			var zero T
			return zero, ctx.Err()
		case <-q.ready:
		}
	}
}

// TryNext takes the waiting item, if any, without blocking.
func (q *FrameQueue[T]) TryNext() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.slot == nil {
		var zero T
		return zero, false
	}
	item := *q.slot
	q.slot = nil
	return item, true
}

// Clear discards the waiting item without counting it as dropped and reports whether there was
// one.
func (q *FrameQueue[T]) Clear() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	had := q.slot != nil
	q.slot = nil
	return had
}

// Pushed returns the number of items ever put.
func (q *FrameQueue[T]) Pushed() int64 {
	return q.pushed.Load()
}

// Dropped returns the number of items replaced before being taken.
func (q *FrameQueue[T]) Dropped() int64 {
	return q.dropped.Load()
}
