/*
DESCRIPTION
  stillcam captures a still image every interval with an exposure adapted to
  the light in the scene, and keeps the most recent image on disk in a way
  that survives power loss mid-write.

AUTHORS
  Saxon A. Nelson-Milton <saxon@ausocean.org>
  Alan Noble <alan@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package stillcam is an adaptive timelapse still capture client.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"math"
	"os"
	"os/signal"
	"path/filepath"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/daemon"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/ausocean/client/pi/netlogger"
	"github.com/ausocean/client/pi/netsender"
	"github.com/ausocean/stillcam/camera"
	"github.com/ausocean/stillcam/capture"
	"github.com/ausocean/stillcam/config"
	"github.com/ausocean/stillcam/device"
	"github.com/ausocean/stillcam/device/file"
	"github.com/ausocean/stillcam/device/raspistill"
	"github.com/ausocean/stillcam/exposure"
	"github.com/ausocean/stillcam/storage"
	"github.com/ausocean/utils/logging"
)

// Current software version.
const version = "v0.1.0"

// Logging configuration.
const (
	logPath      = "/var/log/stillcam/stillcam.log"
	logMaxSize   = 500 // MB
	logMaxBackup = 10
	logMaxAge    = 28 // days
	logVerbosity = logging.Info
	logSuppress  = true
)

// Misc constants.
const (
	pkg = "stillcam: "

	// The camera is mounted upside down unless configured otherwise.
	defaultRotation = 180
)

func main() {
	var (
		showVersion = flag.Bool("version", false, "show version")
		configPath  = flag.String("config", "", "path to YAML config file, watched for changes")
		showLatest  = flag.Bool("latest", false, "print the path of the newest complete image and exit")
		useNet      = flag.Bool("netsender", false, "report to and take variables from the cloud using netsender")
		logFile     = flag.String("log", logPath, "path of log file")
	)
	flag.Parse()
	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	// Create lumberjack logger to handle logging to file.
	fileLog := &lumberjack.Logger{
		Filename:   *logFile,
		MaxSize:    logMaxSize,
		MaxBackups: logMaxBackup,
		MaxAge:     logMaxAge,
	}
	writers := []io.Writer{fileLog, os.Stderr}

	// Create netlogger to handle logging to cloud.
	var netLog *netlogger.Logger
	if *useNet {
		netLog = netlogger.New()
		writers = append(writers, netLog)
	}

	// Create logger that we call methods on to log, which in turn writes to the
	// lumberjack and netloggers.
	log := logging.New(logVerbosity, io.MultiWriter(writers...), logSuppress)

	cfg := config.Config{Logger: log, Rotation: defaultRotation}
	if *configPath != "" {
		vars, err := config.Load(*configPath)
		if err != nil {
			log.Fatal(pkg+"could not load config", "error", err)
		}
		cfg.Update(vars)
	}
	err := cfg.Validate()
	if err != nil {
		log.Fatal(pkg+"invalid config", "error", err)
	}
	log.SetLevel(cfg.LogLevel)

	if *showLatest {
		err = printLatest(cfg, log)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		os.Exit(0)
	}

	log.Info("starting stillcam", "version", version)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = run(ctx, cfg, log, netLog, *configPath)
	if err != nil {
		log.Error(pkg+"capture loop failed", "error", err)
		stop()
		os.Exit(1)
	}
	log.Info("stillcam stopped")
}

// run builds the capture loop from cfg and runs it until ctx is cancelled.
func run(ctx context.Context, cfg config.Config, log logging.Logger, netLog *netlogger.Logger, configPath string) error {
	cam, err := newCamera(cfg, log)
	if err != nil {
		return fmt.Errorf("could not create camera: %w", err)
	}

	var brightness atomic.Uint64
	sess, err := camera.New(cam, log,
		camera.WithSettings(device.Settings{
			Width:            cfg.Width,
			Height:           cfg.Height,
			Rotation:         cfg.Rotation,
			JPEGQuality:      cfg.JPEGQuality,
			AutoWhiteBalance: cfg.AutoWhiteBalance,
		}),
		camera.WithStreakLength(int(cfg.StreakLength)),
		camera.WithSettleDelay(cfg.SettleDelay),
		camera.OnCalibrate(func(b float64, _ exposure.Preset) {
			brightness.Store(math.Float64bits(b))
		}),
	)
	if err != nil {
		return fmt.Errorf("could not create camera session: %w", err)
	}

	store := storage.NewManager(storage.NewDir(cfg.OutputPath, log), cfg.ImageExt, log)

	intervals := make(chan time.Duration, 1)
	ctrl, err := capture.New(sess, store, log,
		capture.WithInterval(cfg.Interval),
		capture.WithHeartbeat(watchdog(log)),
		capture.WithIntervalUpdates(intervals),
	)
	if err != nil {
		return fmt.Errorf("could not create capture loop: %w", err)
	}

	var fileVars, netVars <-chan map[string]string
	if configPath != "" {
		fileVars, err = config.Watch(ctx, configPath, log)
		if err != nil {
			log.Warning(pkg+"could not watch config file, changes will need a restart", "error", err)
		}
	}
	if netLog != nil {
		ns, err := netsender.New(
			log,
			nil,
			readPin(ctrl, &brightness),
			nil,
			netsender.WithVarTypes(createVarMap()),
		)
		if err != nil {
			return fmt.Errorf("could not initialise netsender client: %w", err)
		}
		ch := make(chan map[string]string)
		netVars = ch
		go report(ctx, ns, netLog, log, ch)
	}
	go update(ctx, cfg, fileVars, netVars, intervals, log)

	notify(log, daemon.SdNotifyReady)
	defer notify(log, daemon.SdNotifyStopping)
	err = ctrl.Run(ctx)
	log.Info(pkg+"last exposure", "preset", sess.Preset(), "brightness", sess.Brightness(), "calibrations", sess.Calibrations())
	return err
}

func newCamera(cfg config.Config, log logging.Logger) (device.Camera, error) {
	switch cfg.Input {
	case config.InputFile:
		log.Info(pkg+"using file input", "path", cfg.InputPath)
		return file.New(log, cfg.InputPath), nil
	default:
		log.Info(pkg+"using camera input", "command", cfg.Command)
		r, err := raspistill.New(log, raspistill.WithCommand(cfg.Command), raspistill.WithTimeout(cfg.CaptureTimeout))
		if err != nil {
			return nil, err
		}
		return r, nil
	}
}

// update applies variable changes from the config file or the cloud. Only the
// capture interval and log level change while running.
func update(ctx context.Context, cfg config.Config, fileVars, netVars <-chan map[string]string, intervals chan<- time.Duration, log logging.Logger) {
	for fileVars != nil || netVars != nil {
		var (
			vars map[string]string
			ok   bool
		)
		select {
		case <-ctx.Done():
			return
		case vars, ok = <-fileVars:
			if !ok {
				fileVars = nil
				continue
			}
		case vars, ok = <-netVars:
			if !ok {
				netVars = nil
				continue
			}
		}

		cfg.Update(vars)
		err := cfg.Validate()
		if err != nil {
			log.Warning(pkg+"invalid config update", "error", err)
		}
		log.SetLevel(cfg.LogLevel)
		select {
		case intervals <- cfg.Interval:
		case <-ctx.Done():
			return
		}
	}
}

// watchdog returns a heartbeat that pings the systemd watchdog, if the
// service has one.
func watchdog(log logging.Logger) func() {
	d, err := daemon.SdWatchdogEnabled(false)
	if err != nil {
		log.Warning(pkg+"could not check systemd watchdog", "error", err)
	}
	if d == 0 {
		return nil
	}
	log.Info(pkg+"systemd watchdog enabled", "timeout", d)
	return func() { notify(log, daemon.SdNotifyWatchdog) }
}

func notify(log logging.Logger, state string) {
	_, err := daemon.SdNotify(false, state)
	if err != nil {
		log.Warning(pkg+"could not notify systemd", "state", state, "error", err)
	}
}

// printLatest prints the path of the newest complete image in the output
// directory.
func printLatest(cfg config.Config, log logging.Logger) error {
	dir := storage.NewDir(cfg.OutputPath, log)
	name, status, err := storage.Latest(context.Background(), dir, cfg.ImageExt)
	if err != nil {
		return fmt.Errorf("could not find latest image in %s: %w", cfg.OutputPath, err)
	}
	fmt.Printf("%s\t%s\n", filepath.Join(cfg.OutputPath, name), status.Timestamp.Format(time.RFC3339))
	return nil
}
