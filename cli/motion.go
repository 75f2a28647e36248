package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/golang/geo/r3"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/urfave/cli/v2"

	"go.viam.com/motiontrack/config"
	"go.viam.com/motiontrack/imu"
	"go.viam.com/motiontrack/logging"
	"go.viam.com/motiontrack/rimage/transform"
	"go.viam.com/motiontrack/session"
	"go.viam.com/motiontrack/spatialmath"
	"go.viam.com/motiontrack/testutils"
	"go.viam.com/motiontrack/trajectory"
	"go.viam.com/motiontrack/utils"
	"go.viam.com/motiontrack/vision/odometry"
)

const (
	simulatedWidth  = 160
	simulatedHeight = 120
)

// report is what replay and simulate print once both engines are done.
type report struct {
	Session        string              `json:"session"`
	Stats          session.Stats       `json:"stats"`
	Calibration    *imu.Calibration    `json:"calibration,omitempty"`
	DeadReckoning  spatialmath.Pose    `json:"dead_reckoning"`
	VisualOdometry spatialmath.Pose    `json:"visual_odometry"`
	Motion         session.Motion      `json:"motion"`
	Comparison     session.Comparison  `json:"comparison"`
	GroundTruth    *trajectory.Metrics `json:"ground_truth,omitempty"`
}

// run describes the inputs of one pass over both engines.
type run struct {
	samples     []imu.Sample
	calibrate   int
	frames      []odometry.Frame
	keepFrames  bool
	align       bool
	groundTruth func(t float64) r3.Vector
}

// ReplayAction runs both engines over recorded input and prints a report.
func ReplayAction(c *cli.Context) error {
	logger, err := newLogger(c)
	if err != nil {
		return err
	}
	cfg, err := readConfig(c)
	if err != nil {
		return err
	}
	samples, err := readSamples(c.String(replayFlagIMU))
	if err != nil {
		return err
	}
	r := run{
		samples:    samples,
		calibrate:  c.Int(replayFlagCalibrate),
		keepFrames: c.Bool(replayFlagKeepFrames),
		align:      !c.Bool(rawFlag),
	}
	if framesPath := c.String(replayFlagFrames); framesPath != "" {
		if c.String(replayFlagIntrinsics) == "" {
			return errors.Errorf("--%s is required with --%s", replayFlagIntrinsics, replayFlagFrames)
		}
		intrinsics, err := transform.NewPinholeCameraIntrinsicsFromJSONFile(c.String(replayFlagIntrinsics))
		if err != nil {
			return err
		}
		if r.frames, err = readFrames(framesPath, intrinsics); err != nil {
			return err
		}
	}
	infof(c.App.ErrWriter, "replaying %d IMU samples and %d frames", len(r.samples), len(r.frames))
	rep, err := r.execute(c.Context, cfg, logger)
	if err != nil {
		return err
	}
	return printReport(c.App.Writer, rep, c.Bool(jsonFlag))
}

// SimulateAction runs both engines over a synthetic recording and prints a report that also
// compares dead reckoning against the simulated ground truth.
func SimulateAction(c *cli.Context) error {
	logger, err := newLogger(c)
	if err != nil {
		return err
	}
	cfg, err := readConfig(c)
	if err != nil {
		return err
	}
	steps := c.Int(simulateFlagSteps)
	if steps <= 0 {
		return errors.Errorf("--%s must be positive", simulateFlagSteps)
	}
	every := c.Int(simulateFlagFrameEvery)
	if every <= 0 {
		return errors.Errorf("--%s must be positive", simulateFlagFrameEvery)
	}
	var accel r3.Vector
	switch values := c.Float64Slice(simulateFlagAccel); len(values) {
	case 0:
	case 3:
		accel = r3.Vector{X: values[0], Y: values[1], Z: values[2]}
	default:
		return errors.Errorf("--%s needs 3 values, got %d", simulateFlagAccel, len(values))
	}

	intrinsics, err := transform.NewPinholeCameraIntrinsicsFromSlice(
		c.Float64Slice(simulateFlagCamera), simulatedWidth, simulatedHeight)
	if err != nil {
		return errors.Wrapf(err, "invalid --%s", simulateFlagCamera)
	}

	scenario := testutils.IMUScenario{
		Dt:         c.Float64(simulateFlagDt),
		Gravity:    cfg.IMU.Gravity,
		Accel:      accel,
		YawRate:    c.Float64(simulateFlagYawRate),
		NoiseSigma: c.Float64(simulateFlagNoise),
	}
	r := run{
		samples:     scenario.Samples(steps),
		frames:      simulatedFrames(scenario, intrinsics, steps, every, c.Float64(simulateFlagPixelSpeed)),
		keepFrames:  true,
		align:       !c.Bool(rawFlag),
		groundTruth: scenario.Position,
	}
	infof(c.App.ErrWriter, "simulating %d IMU samples and %d frames from a camera with intrinsics %v",
		len(r.samples), len(r.frames), intrinsics.Slice())
	rep, err := r.execute(c.Context, cfg, logger)
	if err != nil {
		return err
	}
	return printReport(c.App.Writer, rep, c.Bool(jsonFlag))
}

func simulatedFrames(
	scenario testutils.IMUScenario,
	intrinsics *transform.PinholeCameraIntrinsics,
	steps, every int,
	pixelSpeed float64,
) []odometry.Frame {
	return lo.Times((steps+every-1)/every, func(i int) odometry.Frame {
		return odometry.Frame{
			Timestamp:  scenario.Start + float64(i*every)*scenario.Dt,
			Pix:        testutils.TexturedFrame(simulatedWidth, simulatedHeight, testutils.FrameShift(i, pixelSpeed), 0),
			Width:      simulatedWidth,
			Height:     simulatedHeight,
			Intrinsics: intrinsics,
		}
	})
}

// execute feeds both streams to a new session concurrently, waits for them to be processed and
// compares the resulting trajectories.
func (r run) execute(ctx context.Context, cfg *config.Config, logger logging.Logger) (*report, error) {
	sess, err := session.New(cfg, logger)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := sess.Close(); err != nil {
			logger.Warnw("error closing session", "error", err)
		}
	}()

	rep := &report{Session: sess.ID().String()}
	samples := r.samples
	if r.calibrate > 0 {
		n := min(r.calibrate, len(samples))
		calib, err := sess.Calibrate(samples[:n])
		if err != nil {
			return nil, errors.Wrap(err, "cannot calibrate")
		}
		rep.Calibration = &calib
	}

	_, err = utils.RunInParallel(ctx, []utils.SimpleFunc{
		func(ctx context.Context) error {
			for _, s := range samples {
				if err := sess.PushIMU(ctx, s); err != nil {
					return err
				}
			}
			return nil
		},
		func(ctx context.Context) error {
			for _, f := range r.frames {
				if err := sess.PushFrame(f); err != nil {
					return err
				}
				if !r.keepFrames {
					continue
				}
				if err := sess.Flush(ctx); err != nil {
					return err
				}
			}
			return nil
		},
	})
	if err != nil {
		return nil, err
	}
	if err := sess.Flush(ctx); err != nil {
		return nil, err
	}

	rep.Stats = sess.Stats()
	rep.DeadReckoning = sess.DeadReckoningPose()
	rep.VisualOdometry = sess.VisualOdometryPose()
	rep.Motion = sess.Motion()
	if len(r.frames) > 0 {
		rep.Comparison, err = sess.Compare(r.align)
		if errors.Is(err, trajectory.ErrInsufficientPoints) {
			logger.Warnw("too few synchronized poses to align, comparing unaligned", "error", err)
			rep.Comparison, err = sess.Compare(false)
		}
		if err != nil {
			return nil, err
		}
	}
	if r.groundTruth != nil {
		dr := sess.DeadReckoningPoses()
		truth := lo.Map(dr, func(p spatialmath.Pose, _ int) spatialmath.Pose {
			return spatialmath.NewPose(p.Timestamp, r.groundTruth(p.Timestamp-dr[0].Timestamp), p.Orientation)
		})
		metrics := trajectory.ComputeMetrics(truth, dr)
		rep.GroundTruth = &metrics
	}
	return rep, nil
}

func readConfig(c *cli.Context) (*config.Config, error) {
	path := c.String(configFlag)
	if path == "" {
		return config.Default(), nil
	}
	return config.Read(path)
}

func newLogger(c *cli.Context) (logging.Logger, error) {
	level := logging.WARN
	if c.Bool(debugFlag) {
		level = logging.DEBUG
	}
	if name := c.String(logLevelFlag); name != "" {
		var err error
		if level, err = logging.LevelFromString(name); err != nil {
			return nil, errors.Wrapf(err, "invalid --%s", logLevelFlag)
		}
	}
	logger := logging.NewBlankLogger("motiontrack")
	logger.AddAppender(logging.NewWriterAppender(c.App.ErrWriter))
	logger.SetLevel(level)
	return logger, nil
}

func printReport(w io.Writer, rep *report, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	}
	printf(w, "session %s\n", rep.Session)
	printf(w, "imu: %d samples, %d rejected; frames: %d pushed, %d dropped, %d skipped, %d lost, %d keyframes\n",
		rep.Stats.IMUPushed, rep.Stats.IMURejected, rep.Stats.FramesPushed, rep.Stats.FramesDropped,
		rep.Stats.FramesSkipped, rep.Stats.FramesLost, rep.Stats.Keyframes)
	if rep.Calibration != nil {
		printf(w, "calibration: accel bias %s, gyro bias %s\n", vec(rep.Calibration.AccelBias), vec(rep.Calibration.GyroBias))
	}
	printf(w, "dead reckoning:  t=%.3f %s\n", rep.DeadReckoning.Timestamp, vec(rep.DeadReckoning.Position))
	printf(w, "visual odometry: t=%.3f %s\n", rep.VisualOdometry.Timestamp, vec(rep.VisualOdometry.Position))
	printf(w, "dead reckoning rate: velocity %s m/s, angular velocity %s rad/s\n",
		vec(rep.Motion.DeadReckoningVelocity), vec(rep.Motion.DeadReckoningAngularVelocity.Vector()))
	if a := rep.Comparison.Alignment; a != nil {
		printf(w, "alignment: scale %.4f, translation %s, rmse %.4f\n", a.Scale, vec(a.Translation), a.RMSE)
	}
	printf(w, "%s\n", metricsTable(rep))
	return nil
}

// metricsTable renders one row per comparison that was made.
func metricsTable(rep *report) string {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"Comparison", "Poses", "Elapsed (s)", "RMSE", "Mean", "Max", "Drift (/s)"})
	row := func(title string, m trajectory.Metrics) {
		t.AppendRow(table.Row{
			title,
			m.Count,
			fmt.Sprintf("%.3f", m.Elapsed),
			fmt.Sprintf("%.4f", m.RMSE),
			fmt.Sprintf("%.4f", m.MeanAbsError),
			fmt.Sprintf("%.4f", m.MaxError),
			fmt.Sprintf("%.4f", m.DriftRate),
		})
	}
	if rep.Stats.FramesPushed > 0 {
		row("visual odometry vs dead reckoning", rep.Comparison.Metrics)
	}
	if rep.GroundTruth != nil {
		row("dead reckoning vs ground truth", *rep.GroundTruth)
	}
	return t.Render()
}

func vec(v r3.Vector) string {
	return fmt.Sprintf("(%.4f, %.4f, %.4f)", v.X, v.Y, v.Z)
}
