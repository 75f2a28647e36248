// Package cli contains the motiontrack command line application.
package cli

import (
	"io"

	"github.com/urfave/cli/v2"
)

const (
	configFlag   = "config"
	debugFlag    = "debug"
	logLevelFlag = "log-level"
	jsonFlag     = "json"
	rawFlag      = "raw"

	replayFlagIMU        = "imu"
	replayFlagFrames     = "frames"
	replayFlagIntrinsics = "intrinsics"
	replayFlagCalibrate  = "calibrate"
	replayFlagKeepFrames = "keep-frames"

	simulateFlagSteps      = "steps"
	simulateFlagDt         = "dt"
	simulateFlagAccel      = "accel"
	simulateFlagYawRate    = "yaw-rate"
	simulateFlagNoise      = "noise"
	simulateFlagFrameEvery = "frame-every"
	simulateFlagPixelSpeed = "pixel-speed"
	simulateFlagCamera     = "camera"
)

// NewApp returns a new app with the CLI API, Writer set to out, and ErrWriter
// set to errOut.
func NewApp(out, errOut io.Writer) *cli.App {
	return &cli.App{
		Writer:          out,
		ErrWriter:       errOut,
		Name:            "motiontrack",
		Usage:           "estimate device motion from inertial and camera recordings",
		HideHelpCommand: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    configFlag,
				Aliases: []string{"c"},
				Usage:   "load engine configuration from `FILE`",
			},
			&cli.BoolFlag{
				Name:    debugFlag,
				Aliases: []string{"vvv"},
				Usage:   "enable debug logging",
			},
			&cli.StringFlag{
				Name:  logLevelFlag,
				Usage: "log at `LEVEL` (debug, info, warn or error), overriding --debug",
			},
			&cli.BoolFlag{
				Name:  jsonFlag,
				Usage: "print the report as JSON",
			},
			&cli.BoolFlag{
				Name:  rawFlag,
				Usage: "compare trajectories without aligning the visual trajectory first",
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "replay",
				Usage:     "run both engines over recorded IMU samples and camera frames",
				UsageText: "motiontrack replay --imu <imu.jsonl> --frames <frames.jsonl> --intrinsics <camera.json> [other options]",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     replayFlagIMU,
						Required: true,
						Usage:    "JSON lines `FILE` of IMU samples",
					},
					&cli.StringFlag{
						Name:  replayFlagFrames,
						Usage: "JSON lines `FILE` of camera frames",
					},
					&cli.StringFlag{
						Name:  replayFlagIntrinsics,
						Usage: "JSON `FILE` of pinhole camera intrinsics, required with --frames",
					},
					&cli.IntFlag{
						Name:  replayFlagCalibrate,
						Usage: "estimate IMU biases from the first `N` samples, recorded at rest",
					},
					&cli.BoolFlag{
						Name:  replayFlagKeepFrames,
						Value: true,
						Usage: "process every recorded frame instead of only the latest one",
					},
				},
				Action: ReplayAction,
			},
			{
				Name:  "simulate",
				Usage: "run both engines over a synthetic device moving over a textured plane",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  simulateFlagSteps,
						Value: 500,
						Usage: "number of IMU samples to generate",
					},
					&cli.Float64Flag{
						Name:  simulateFlagDt,
						Value: 0.01,
						Usage: "seconds between IMU samples",
					},
					&cli.Float64SliceFlag{
						Name:  simulateFlagAccel,
						Usage: "world-frame linear acceleration x,y,z in m/s²",
					},
					&cli.Float64Flag{
						Name:  simulateFlagYawRate,
						Usage: "yaw rate in rad/s",
					},
					&cli.Float64Flag{
						Name:  simulateFlagNoise,
						Usage: "standard deviation of the IMU noise",
					},
					&cli.IntFlag{
						Name:  simulateFlagFrameEvery,
						Value: 10,
						Usage: "render one camera frame every `N` IMU samples",
					},
					&cli.Float64Flag{
						Name:  simulateFlagPixelSpeed,
						Value: 2,
						Usage: "texture motion in pixels per frame",
					},
					&cli.Float64SliceFlag{
						Name:  simulateFlagCamera,
						Value: cli.NewFloat64Slice(500, 500, simulatedWidth/2, simulatedHeight/2),
						Usage: "camera intrinsics fx,fy,cx,cy in pixels",
					},
				},
				Action: SimulateAction,
			},
		},
	}
}
