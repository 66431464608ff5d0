package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"rubato/internal/config"
	"rubato/internal/device"
	"rubato/internal/library"
	"rubato/internal/metadata"
	"rubato/internal/player"
	"rubato/internal/playlist"
)

func main() {
	// Optional .env file for environment overrides
	_ = godotenv.Load(".env")

	configPath := "./config.toml"
	if p := os.Getenv("RUBATO_CONFIG"); p != "" {
		configPath = p
	}

	// Initialize basic logger for startup
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	// Load configuration
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		logger.WithError(err).Fatal("Error loading configuration")
	}

	configureLogger(logger, cfg.Logging)

	// Check if music directory exists
	if _, err := os.Stat(cfg.Library.Path); os.IsNotExist(err) {
		logger.WithField("library_path", cfg.Library.Path).Fatal("Music directory does not exist. Please create it and add your music files.")
	}

	// Initialize metadata cache
	var cache *library.Cache
	if cfg.Cache.Enabled {
		cache, err = library.NewCache(cfg.Cache.Path, logger)
		if err != nil {
			logger.WithError(err).Fatal("Error initializing metadata cache")
		}
		defer cache.Close()
	}

	prober := metadata.NewProber(cfg.Library.SupportedFormats, logger)
	lib := library.New(cfg.Library.Path, prober, cache, logger)

	// Scan the music library
	if cfg.Library.ScanOnStartup {
		snap, err := lib.Rescan()
		if err != nil {
			logger.WithError(err).Fatal("Error scanning music library")
		}
		if snap.Len() == 0 {
			logger.WithField("supported_formats", cfg.Library.SupportedFormats).Warn("No supported audio files found in music directory")
		}
	}

	// Watch for library changes
	if cfg.Library.WatchForChanges {
		if err := lib.StartWatcher(); err != nil {
			logger.WithError(err).Warn("Could not start library watcher")
		} else {
			defer lib.StopWatcher()
		}
	}

	// Wire up the playback stack
	loopMode, err := playlist.ParseMode(cfg.Audio.LoopMode)
	if err != nil {
		logger.WithError(err).Fatal("Error in audio configuration")
	}

	dev := device.NewOto(logger)
	state := player.NewStateManager()
	controller := player.NewController(dev, cfg.Audio.BlockSizeFrames, cfg.Audio.DefaultVolume, state, logger)
	sequencer := playlist.NewSequencer(lib, controller, state, loopMode, logger)
	controller.SetOnFinished(sequencer.HandleFinished)
	defer controller.Close()

	// Feed the position into the shared state for status consumers
	stopPoll := make(chan struct{})
	go func() {
		ticker := time.NewTicker(50 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if controller.Playing() {
					state.UpdatePosition(controller.Position())
				}
			case <-stopPoll:
				return
			}
		}
	}()
	defer close(stopPoll)

	// Handle graceful shutdown
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	// Run the command prompt in a goroutine
	done := make(chan struct{})
	go func() {
		defer close(done)
		runPrompt(lib, controller, sequencer, state, logger)
	}()

	select {
	case <-c:
		logger.Info("Received shutdown signal")
	case <-done:
	}

	controller.Stop()
}

// configureLogger applies the logging section of the configuration.
func configureLogger(logger *logrus.Logger, cfg config.Logging) {
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if cfg.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}

	if cfg.File != "" {
		file, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			logger.WithError(err).Warn("Could not open log file, logging to stderr")
		} else {
			logger.SetOutput(file)
		}
	}
}
