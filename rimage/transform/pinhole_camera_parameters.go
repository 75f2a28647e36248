// Package transform holds the camera intrinsics used to move between pixel and normalized camera coordinates.
package transform

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"go.viam.com/utils"
)

// ErrNoIntrinsics is returned when intrinsics are missing or cannot describe a camera.
var ErrNoIntrinsics = errors.New("camera intrinsic parameters are not available")

// NewNoIntrinsicsError wraps ErrNoIntrinsics with msg.
func NewNoIntrinsicsError(msg string) error {
	return errors.Wrap(ErrNoIntrinsics, msg)
}

// PinholeCameraIntrinsics are the focal lengths and principal point of a pinhole camera, in pixels.
// Width and Height are optional; when set, frames of any other size are rejected.
type PinholeCameraIntrinsics struct {
	Width  int     `json:"width_px,omitempty"`
	Height int     `json:"height_px,omitempty"`
	Fx     float64 `json:"fx"`
	Fy     float64 `json:"fy"`
	Ppx    float64 `json:"ppx"`
	Ppy    float64 `json:"ppy"`
}

// NewPinholeCameraIntrinsicsFromSlice builds intrinsics from a [fx, fy, cx, cy] slice.
func NewPinholeCameraIntrinsicsFromSlice(k []float64, width, height int) (*PinholeCameraIntrinsics, error) {
	if len(k) != 4 {
		return nil, NewNoIntrinsicsError(fmt.Sprintf("expected [fx, fy, cx, cy], got %d values", len(k)))
	}
	params := &PinholeCameraIntrinsics{Width: width, Height: height, Fx: k[0], Fy: k[1], Ppx: k[2], Ppy: k[3]}
	if err := params.CheckValid(); err != nil {
		return nil, err
	}
	return params, nil
}

// CheckValid returns an ErrNoIntrinsics error naming the first parameter that cannot describe a
// pinhole camera. A nil receiver is invalid.
func (params *PinholeCameraIntrinsics) CheckValid() error {
	if params == nil {
		return NewNoIntrinsicsError("Intrinsics do not exist")
	}
	if params.Width < 0 || params.Height < 0 {
		return NewNoIntrinsicsError(fmt.Sprintf("Invalid size (%#v, %#v)", params.Width, params.Height))
	}
	for _, rule := range []struct {
		what  string
		value float64
		ok    bool
	}{
		{"focal length Fx", params.Fx, params.Fx > 0},
		{"focal length Fy", params.Fy, params.Fy > 0},
		{"principal X point Ppx", params.Ppx, params.Ppx >= 0},
		{"principal Y point Ppy", params.Ppy, params.Ppy >= 0},
	} {
		if !rule.ok {
			return NewNoIntrinsicsError(fmt.Sprintf("Invalid %s = %#v", rule.what, rule.value))
		}
	}
	return nil
}

// CheckFrameSize returns an error if the intrinsics declare a size that differs from width x height.
func (params *PinholeCameraIntrinsics) CheckFrameSize(width, height int) error {
	if params.Width == 0 && params.Height == 0 {
		return nil
	}
	if params.Width != width || params.Height != height {
		return errors.Errorf("frame dimension and intrinsics don't match Frame(%d,%d) != Intrinsics(%d,%d)",
			width, height, params.Width, params.Height)
	}
	return nil
}

// Slice returns the intrinsics as [fx, fy, cx, cy].
func (params *PinholeCameraIntrinsics) Slice() []float64 {
	return []float64{params.Fx, params.Fy, params.Ppx, params.Ppy}
}

// PixelToNormalized maps a pixel location to normalized camera coordinates ((px-cx)/fx, (py-cy)/fy).
func (params *PinholeCameraIntrinsics) PixelToNormalized(p r2.Point) r2.Point {
	return r2.Point{X: (p.X - params.Ppx) / params.Fx, Y: (p.Y - params.Ppy) / params.Fy}
}

// NewPinholeCameraIntrinsicsFromJSONFile reads and validates intrinsics stored as JSON at jsonPath.
func NewPinholeCameraIntrinsicsFromJSONFile(jsonPath string) (*PinholeCameraIntrinsics, error) {
	//nolint:gosec
	f, err := os.Open(jsonPath)
	if err != nil {
		return nil, errors.Wrap(err, "error opening JSON file")
	}
	defer utils.UncheckedErrorFunc(f.Close)
	return NewPinholeCameraIntrinsicsFromReader(f)
}

// NewPinholeCameraIntrinsicsFromReader decodes and validates intrinsics from a JSON reader.
func NewPinholeCameraIntrinsicsFromReader(r io.Reader) (*PinholeCameraIntrinsics, error) {
	var intrinsics PinholeCameraIntrinsics
	if err := json.NewDecoder(r).Decode(&intrinsics); err != nil {
		return nil, errors.Wrap(err, "error parsing JSON string")
	}
	if err := intrinsics.CheckValid(); err != nil {
		return nil, err
	}
	return &intrinsics, nil
}
