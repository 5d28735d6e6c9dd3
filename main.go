package main

import (
	"context"
	"flag"
	"time"

	"go.uber.org/zap"

	"webcam-shutter/pkg/api"
	"webcam-shutter/pkg/camera"
	"webcam-shutter/pkg/clock"
	"webcam-shutter/pkg/codec"
	"webcam-shutter/pkg/config"
	"webcam-shutter/pkg/schedule"
	"webcam-shutter/pkg/storage"
	"webcam-shutter/pkg/utils"
	"webcam-shutter/pkg/webdav"
)

const ntpResync = time.Hour

var (
	configPath = flag.String("config", "", "yaml config file")
	port       = flag.Int("port", 9999, "ui port")
	webdavPort = flag.Int("webdav-port", 9998, "webdav port")
	storageDir = flag.String("dir", ".", "output directory")
	devName    = flag.String("device", camera.DefaultDevice, "camera device")
	logLevel   = flag.String("log-level", "info", "debug, info, warn or error")

	logger *zap.SugaredLogger
)

func init() {
	logger = utils.GetLogger()
	flag.Parse()
}

func main() {
	defer logger.Sync()

	cfg, err := loadConfig()
	if err != nil {
		logger.Fatal(err)
	}
	if err = utils.SetLevel(cfg.LogLevel); err != nil {
		logger.Fatal(err)
	}

	ctx, cancel := utils.SignalContext(context.Background())
	defer cancel()

	var clk clock.Clock = clock.System{}
	if cfg.NTPServer != "" {
		ntpClock := clock.NewNTP(cfg.NTPServer)
		go ntpClock.Run(ctx, ntpResync)
		clk = ntpClock
	}

	enc, err := codec.New(cfg.Output.Quality)
	if err != nil {
		logger.Fatal(err)
	}
	stg, err := storage.New(cfg.Output.Dir,
		storage.WithClock(clk),
		storage.WithEncoder(enc),
		storage.WithExt(cfg.Output.Ext),
	)
	if err != nil {
		logger.Fatal(err)
	}

	controller := camera.NewController(cfg.Device.Path, cfg.Device.Width, cfg.Device.Height, cfg.CameraOptions()...)
	defer func() {
		if err := controller.Close(); err != nil {
			logger.Errorf("close camera: %s", err)
		}
	}()
	// A missing camera at boot is not fatal; shots retry the open.
	if err := controller.Start(); err != nil {
		logger.Warnf("camera not ready: %s", err)
	}

	sch := schedule.New(ctx, controller, stg)
	if cfg.Schedule.Interval > 0 {
		sch.Begin(cfg.Schedule.Interval, cfg.Schedule.Count)
	}

	dav := webdav.New(cfg.HTTP.WebdavPort, stg.Root())
	defer func() {
		if err := dav.Stop(); err != nil {
			logger.Errorf("stop webdav: %s", err)
		}
	}()

	srv := api.New(controller, stg,
		api.WithWebDAV(dav),
		api.WithScheduler(sch),
		api.WithThumbSize(cfg.Output.ThumbSize),
	)
	if err := utils.ListenAndServe(ctx, srv.Handler(), cfg.HTTP.Port); err != nil {
		logger.Error(err)
	}
}

// loadConfig reads -config if given, then applies the flags set on the
// command line.
func loadConfig() (*config.Config, error) {
	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			return nil, err
		}
	}

	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "port":
			cfg.HTTP.Port = *port
		case "webdav-port":
			cfg.HTTP.WebdavPort = *webdavPort
		case "dir":
			cfg.Output.Dir = *storageDir
		case "device":
			cfg.Device.Path = *devName
		case "log-level":
			cfg.LogLevel = *logLevel
		}
	})

	return cfg, config.Validate(cfg)
}
