// Command annotate runs the detection/annotation pipeline over a live camera
// or a recorded video asset and saves the annotated output.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/nvr-ai/go-annotate/capture"
	"github.com/nvr-ai/go-annotate/composite"
	"github.com/nvr-ai/go-annotate/config"
	"github.com/nvr-ai/go-annotate/detect"
	"github.com/nvr-ai/go-annotate/export"
	"github.com/nvr-ai/go-annotate/frames"
	"github.com/nvr-ai/go-annotate/mux"
	"github.com/nvr-ai/go-annotate/orientation"
	"github.com/nvr-ai/go-annotate/record"
	"github.com/nvr-ai/go-annotate/session"
	"github.com/nvr-ai/go-annotate/stats"
	"github.com/nvr-ai/go-annotate/trail"
)

// defaultSensorFormats approximates the configurations a typical device
// sensor advertises, including the high-rate slow-motion modes.
var defaultSensorFormats = []capture.SensorFormat{
	{Width: 3840, Height: 2160, MaxRate: 60},
	{Width: 1920, Height: 1080, MaxRate: 240},
	{Width: 1080, Height: 1920, MaxRate: 240},
	{Width: 1280, Height: 720, MaxRate: 240},
	{Width: 640, Height: 480, MaxRate: 120},
}

func main() {
	var (
		input      = flag.String("input", "", "video file path or camera device id")
		configPath = flag.String("config", "", "optional JSON session config")
		modelPath  = flag.String("model", "", "ONNX model path (overrides config)")
		libraryDir = flag.String("library", "library", "directory assets are saved into")
		tempDir    = flag.String("tmp", os.TempDir(), "directory for in-progress output")
		front      = flag.Bool("front", false, "camera is front-facing (mirrored)")
		portrait   = flag.Bool("portrait", false, "record in portrait orientation")
		rotation   = flag.Int("rotation", 0, "source asset rotation in degrees (file input)")
		duration   = flag.Duration("duration", 10*time.Second, "live recording length")
	)
	flag.Parse()

	if *input == "" {
		fmt.Fprintln(os.Stderr, "usage: annotate -input <file|camera id> [flags]")
		flag.PrintDefaults()
		os.Exit(2)
	}

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			log.Fatalf("loading config: %v", err)
		}
		cfg = loaded
	}
	if *modelPath != "" {
		cfg.ModelPath = *modelPath
	}

	onnx, err := detect.NewONNXAdapter(detect.ONNXConfig{
		ModelPath:           cfg.ModelPath,
		Label:               cfg.TrackedClass,
		ConfidenceThreshold: cfg.ConfidenceThreshold,
	})
	if err != nil {
		log.Fatalf("loading detector: %v", err)
	}
	defer onnx.Close()

	timings := stats.New(0)
	adapter := stats.Instrument(onnx, timings, "detect")
	defer func() {
		if s := timings.Summary(); s != "" {
			log.Printf("pipeline latency:\n%s", s)
		}
	}()

	tracker := trail.NewTracker(cfg.TrackedClass, cfg.MaxTrailLength)
	compositor := composite.New(cfg.TrackedClass)
	library := session.NewFSLibrary(*libraryDir)
	tempPath := filepath.Join(*tempDir, "annotate-"+uuid.NewString()+".mov")

	if deviceID, err := strconv.Atoi(*input); err == nil {
		runLive(deviceID, cfg, adapter, tracker, compositor, library, tempPath, *front, *portrait, *duration)
		return
	}
	runExport(*input, cfg, adapter, tracker, compositor, library, tempPath, *rotation)
}

func runLive(
	deviceID int,
	cfg config.Config,
	adapter detect.Adapter,
	tracker *trail.Tracker,
	compositor composite.FrameCompositor,
	library session.Library,
	tempPath string,
	front, portrait bool,
	duration time.Duration,
) {
	sess := session.New(session.ModeLive)
	must(sess.Configure())

	format, err := capture.Select(defaultSensorFormats, cfg.PreferredResolutions)
	if err != nil {
		sess.Fail(err)
		report(sess)
		return
	}
	log.Printf("negotiated capture format: %s", format)

	cam, err := frames.OpenCamera(deviceID, format)
	if err != nil {
		sess.Fail(err)
		report(sess)
		return
	}
	defer cam.Close()

	pipeline, err := record.New(record.Config{
		Format:      format,
		Portrait:    portrait,
		Orientation: orientation.ForCamera(front),
		Adapter:     adapter,
		Trail:       tracker,
		Compositor:  compositor,
		NewMuxer: func(w, h int, fps float64) (mux.Muxer, error) {
			return mux.NewFileWriter(mux.WriterConfig{
				Path:    tempPath,
				Width:   w,
				Height:  h,
				FPS:     fps,
				Bitrate: cfg.TargetBitrate,
			})
		},
	})
	if err != nil {
		sess.Fail(err)
		report(sess)
		return
	}
	if err := pipeline.Arm(); err != nil {
		sess.Fail(err)
		report(sess)
		return
	}
	must(sess.Activate())

	ctx, cancel := context.WithTimeout(context.Background(), duration)
	defer cancel()
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	streamErr := cam.Stream(ctx, pipeline.OnFrame)
	if streamErr != nil && ctx.Err() == nil {
		pipeline.Stop()
		<-pipeline.Done()
		sess.Fail(streamErr)
		report(sess)
		return
	}

	pipeline.Stop()
	result := <-pipeline.Done()
	log.Printf("recorded %d frames (%d dropped)", result.Frames, result.Dropped)
	if result.Err != nil {
		sess.Fail(result.Err)
		report(sess)
		return
	}

	must(sess.BeginFinalize())
	sess.Persist(result.Path, library)
	report(sess)
}

func runExport(
	path string,
	cfg config.Config,
	adapter detect.Adapter,
	tracker *trail.Tracker,
	compositor composite.FrameCompositor,
	library session.Library,
	tempPath string,
	rotation int,
) {
	sess := session.New(session.ModeFile)
	must(sess.Configure())

	orient, err := orientation.FromTransform(transformForRotation(rotation))
	if err != nil {
		sess.Fail(err)
		report(sess)
		return
	}

	src, err := frames.OpenFile(path)
	if err != nil {
		sess.Fail(err)
		report(sess)
		return
	}
	defer src.Close()
	log.Printf("exporting %d frames from %s", src.FrameCount(), path)

	writer, err := mux.NewFileWriter(mux.WriterConfig{
		Path:             tempPath,
		Width:            src.Width(),
		Height:           src.Height(),
		FPS:              src.FPS(),
		Bitrate:          cfg.TargetBitrate,
		DisplayTransform: orient,
	})
	if err != nil {
		sess.Fail(err)
		report(sess)
		return
	}
	must(sess.Activate())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, err := export.Run(ctx, export.Config{
		Source:      src,
		Orientation: orient,
		Adapter:     adapter,
		Trail:       tracker,
		Compositor:  compositor,
		Muxer:       writer,
	})
	if err != nil {
		sess.Fail(err)
		report(sess)
		return
	}
	log.Printf("exported %d frames", result.Frames)

	must(sess.BeginFinalize())
	sess.Persist(result.Path, library)
	report(sess)
}

// transformForRotation builds the 2x2 affine for a whole-turn rotation, the
// shape an asset's embedded transform takes for ordinary captures.
func transformForRotation(degrees int) (a, b, c, d float32) {
	switch ((degrees % 360) + 360) % 360 {
	case 90:
		return 0, 1, -1, 0
	case 180:
		return -1, 0, 0, -1
	case 270:
		return 0, -1, 1, 0
	default:
		return 1, 0, 0, 1
	}
}

func report(sess *session.Session) {
	c := <-sess.Done()
	switch c.Phase {
	case session.PhaseSaved:
		log.Printf("session %s saved asset %s", sess.ID(), c.AssetID)
	case session.PhaseDenied:
		log.Printf("session %s: save permission denied, output kept at %s", sess.ID(), c.TempPath)
	default:
		log.Printf("session %s failed: %v", sess.ID(), c.Err)
		os.Exit(1)
	}
}

func must(err error) {
	if err != nil {
		log.Fatalf("session transition: %v", err)
	}
}
