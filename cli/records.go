package cli

import (
	"bufio"
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	goutils "go.viam.com/utils"

	"go.viam.com/motiontrack/imu"
	"go.viam.com/motiontrack/rimage"
	"go.viam.com/motiontrack/rimage/transform"
	"go.viam.com/motiontrack/vision/odometry"
)

const maxRecordBytes = 64 << 20

// imuRecord is one line of an IMU recording.
type imuRecord struct {
	T     float64     `json:"t"`
	Accel [3]float64  `json:"accel"`
	Gyro  [3]float64  `json:"gyro"`
	Mag   *[3]float64 `json:"mag,omitempty"`
}

func (r imuRecord) sample() imu.Sample {
	s := imu.Sample{
		Timestamp: r.T,
		Accel:     r3.Vector{X: r.Accel[0], Y: r.Accel[1], Z: r.Accel[2]},
		Gyro:      r3.Vector{X: r.Gyro[0], Y: r.Gyro[1], Z: r.Gyro[2]},
	}
	if r.Mag != nil {
		s.Mag = &r3.Vector{X: r.Mag[0], Y: r.Mag[1], Z: r.Mag[2]}
	}
	return s
}

// frameRecord is one line of a frame recording. A frame is either an image file, relative to
// the recording, or an inline grayscale buffer.
type frameRecord struct {
	T      float64 `json:"t"`
	Image  string  `json:"image,omitempty"`
	Pix    []byte  `json:"pix,omitempty"`
	Width  int     `json:"width,omitempty"`
	Height int     `json:"height,omitempty"`
}

func (r frameRecord) frame(dir string, intrinsics *transform.PinholeCameraIntrinsics) (odometry.Frame, error) {
	f := odometry.Frame{
		Timestamp:  r.T,
		Pix:        r.Pix,
		Width:      r.Width,
		Height:     r.Height,
		Intrinsics: intrinsics,
	}
	if r.Image == "" {
		return f, nil
	}
	path := r.Image
	if !filepath.IsAbs(path) {
		path = filepath.Join(dir, path)
	}
	img, err := imaging.Open(path)
	if err != nil {
		return odometry.Frame{}, errors.Wrapf(err, "cannot decode frame at t=%v", r.T)
	}
	gray := rimage.MakeGray(img)
	f.Pix = rimage.GrayBytes(gray)
	f.Width, f.Height = gray.Bounds().Dx(), gray.Bounds().Dy()
	return f, nil
}

// readJSONLines decodes one T per non-empty line of the file at path.
func readJSONLines[T any](path string) ([]T, error) {
	//nolint:gosec
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "error opening %s", path)
	}
	defer goutils.UncheckedErrorFunc(f.Close)

	var records []T
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64<<10), maxRecordBytes)
	for line := 1; scanner.Scan(); line++ {
		data := bytes.TrimSpace(scanner.Bytes())
		if len(data) == 0 {
			continue
		}
		var record T
		if err := json.Unmarshal(data, &record); err != nil {
			return nil, errors.Wrapf(err, "%s:%d", path, line)
		}
		records = append(records, record)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, "error reading %s", path)
	}
	return records, nil
}

func readSamples(path string) ([]imu.Sample, error) {
	records, err := readJSONLines[imuRecord](path)
	if err != nil {
		return nil, err
	}
	samples := make([]imu.Sample, 0, len(records))
	for _, r := range records {
		samples = append(samples, r.sample())
	}
	return samples, nil
}

func readFrames(path string, intrinsics *transform.PinholeCameraIntrinsics) ([]odometry.Frame, error) {
	records, err := readJSONLines[frameRecord](path)
	if err != nil {
		return nil, err
	}
	dir := filepath.Dir(path)
	frames := make([]odometry.Frame, 0, len(records))
	for _, r := range records {
		f, err := r.frame(dir, intrinsics)
		if err != nil {
			return nil, err
		}
		frames = append(frames, f)
	}
	return frames, nil
}
