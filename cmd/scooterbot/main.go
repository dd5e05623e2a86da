// Package main - Telegram bot exposing the scooter classification pipeline.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/AsadchiyViacheslav/Yandex-GO-scooters/bot"
	"github.com/AsadchiyViacheslav/Yandex-GO-scooters/classify"
	"github.com/AsadchiyViacheslav/Yandex-GO-scooters/config"
	"github.com/AsadchiyViacheslav/Yandex-GO-scooters/images"
	"github.com/AsadchiyViacheslav/Yandex-GO-scooters/inference"
	"github.com/AsadchiyViacheslav/Yandex-GO-scooters/models"
)

func main() {
	var (
		configPath   = flag.String("config", "", "Path to a YAML configuration file")
		presencePath = flag.String("presence", "", "Path to the presence classifier model (.onnx)")
		parkingPath  = flag.String("parking", "", "Path to the parking-status classifier model (.onnx)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[bot] ", log.LstdFlags)

	// A local .env keeps the bot token out of the shell history.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal(err)
	}
	if *presencePath != "" {
		cfg.Models.PresencePath = *presencePath
	}
	if *parkingPath != "" {
		cfg.Models.ParkingPath = *parkingPath
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal(err)
	}
	if cfg.Bot.Token == "" {
		logger.Fatalf("A bot token is required, set bot.token or %s", config.EnvBotToken)
	}

	pipeline, cleanup, err := buildPipeline(cfg, logger)
	if err != nil {
		logger.Fatal(err)
	}
	defer cleanup()

	b, err := bot.NewBot(bot.NewBotArgs{
		Token:              cfg.Bot.Token,
		Classifier:         pipeline,
		PollTimeoutSeconds: cfg.Bot.PollTimeoutSeconds,
		Logger:             logger,
	})
	if err != nil {
		logger.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Printf("processing updates")
	if err := b.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatalf("bot stopped: %v", err)
	}
	logger.Printf("stopped")
}

// buildPipeline loads the native runtime and the configured classifier heads.
// The returned cleanup releases every loaded resource and is safe to call
// after a partial failure.
func buildPipeline(cfg config.Config, logger *log.Logger) (*classify.Pipeline, func(), error) {
	if err := inference.InitRuntime(cfg.Runtime.SharedLibraryPath); err != nil {
		return nil, nil, err
	}

	var sessions []*inference.Session
	cleanup := func() {
		for _, s := range sessions {
			if err := s.Close(); err != nil {
				logger.Printf("closing %s session failed: %v", s.Name(), err)
			}
		}
		if err := inference.DestroyRuntime(); err != nil {
			logger.Printf("destroying ONNX runtime failed: %v", err)
		}
	}

	presence, err := loadSession(models.RolePresence, cfg.Models.PresencePath, cfg.Runtime.IntraOpThreads)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	sessions = append(sessions, presence)
	logger.Printf("presence model loaded from %s", cfg.Models.PresencePath)

	var parkingStage *classify.Stage
	if cfg.Models.ParkingPath != "" {
		parking, err := loadSession(models.RoleParking, cfg.Models.ParkingPath, cfg.Runtime.IntraOpThreads)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		sessions = append(sessions, parking)
		parkingStage = classify.NewStage(string(models.RoleParking), parking)
		logger.Printf("parking model loaded from %s", cfg.Models.ParkingPath)
	} else {
		logger.Printf("parking model not configured, classifying presence only")
	}

	imgConfig := images.GetClassifierConfig()
	imgConfig.TargetWidth = cfg.Preprocess.TargetWidth
	imgConfig.TargetHeight = cfg.Preprocess.TargetHeight
	preprocessor, err := images.NewPreprocessor(imgConfig)
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	pipeline, err := classify.NewPipeline(classify.NewPipelineArgs{
		Normalizer: preprocessor,
		Presence:   classify.NewStage(string(models.RolePresence), presence),
		Parking:    parkingStage,
		Logger:     logger,
	})
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return pipeline, cleanup, nil
}

// loadSession loads one classifier head from its model file.
func loadSession(role models.Role, path string, threads int) (*inference.Session, error) {
	spec, err := models.NewSpec(role, path)
	if err != nil {
		return nil, err
	}
	return inference.NewClassifierSession(spec, threads)
}
