// Package main - HTTP service exposing the scooter classification pipeline.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/AsadchiyViacheslav/Yandex-GO-scooters/classify"
	"github.com/AsadchiyViacheslav/Yandex-GO-scooters/config"
	"github.com/AsadchiyViacheslav/Yandex-GO-scooters/images"
	"github.com/AsadchiyViacheslav/Yandex-GO-scooters/inference"
	"github.com/AsadchiyViacheslav/Yandex-GO-scooters/models"
	"github.com/AsadchiyViacheslav/Yandex-GO-scooters/server"
)

// shutdownGrace bounds how long in-flight requests may finish on shutdown.
const shutdownGrace = 10 * time.Second

func main() {
	var (
		configPath   = flag.String("config", "", "Path to a YAML configuration file")
		addr         = flag.String("addr", "", "Listen address, overrides the configuration")
		presencePath = flag.String("presence", "", "Path to the presence classifier model (.onnx)")
		parkingPath  = flag.String("parking", "", "Path to the parking-status classifier model (.onnx)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[scooterd] ", log.LstdFlags)

	// A local .env supplies environment overrides during development.
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
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal(err)
	}

	pipeline, sessions, cleanup, err := buildPipeline(cfg, logger)
	if err != nil {
		logger.Fatal(err)
	}
	defer cleanup()

	srv, err := server.NewServer(server.NewServerArgs{
		Classifier: pipeline,
		SessionStats: func() []inference.Stats {
			stats := make([]inference.Stats, 0, len(sessions))
			for _, s := range sessions {
				stats = append(stats, s.Stats())
			}
			return stats
		},
		Addr:         cfg.Server.Addr,
		ReadTimeout:  cfg.Server.ReadTimeout(),
		WriteTimeout: cfg.Server.WriteTimeout(),
		MaxBodyBytes: cfg.Server.MaxBodyBytes,
		Logger:       logger,
	})
	if err != nil {
		logger.Fatal(err)
	}

	go func() {
		logger.Printf("listening on %s", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("server failed: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	logger.Printf("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Printf("shutdown failed: %v", err)
	}
}

// buildPipeline loads the native runtime and the configured classifier heads.
// The sessions are returned separately so the metrics endpoint can read
// their counters. The returned cleanup releases every loaded resource and is
// safe to call after a partial failure.
func buildPipeline(cfg config.Config, logger *log.Logger) (*classify.Pipeline, []*inference.Session, func(), error) {
	if err := inference.InitRuntime(cfg.Runtime.SharedLibraryPath); err != nil {
		return nil, nil, nil, err
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
		return nil, nil, nil, err
	}
	sessions = append(sessions, presence)
	logger.Printf("presence model loaded from %s", cfg.Models.PresencePath)

	var parkingStage *classify.Stage
	if cfg.Models.ParkingPath != "" {
		parking, err := loadSession(models.RoleParking, cfg.Models.ParkingPath, cfg.Runtime.IntraOpThreads)
		if err != nil {
			cleanup()
			return nil, nil, nil, err
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
		return nil, nil, nil, err
	}

	pipeline, err := classify.NewPipeline(classify.NewPipelineArgs{
		Normalizer: preprocessor,
		Presence:   classify.NewStage(string(models.RolePresence), presence),
		Parking:    parkingStage,
		Logger:     logger,
	})
	if err != nil {
		cleanup()
		return nil, nil, nil, err
	}
	return pipeline, sessions, cleanup, nil
}

// loadSession loads one classifier head from its model file.
func loadSession(role models.Role, path string, threads int) (*inference.Session, error) {
	spec, err := models.NewSpec(role, path)
	if err != nil {
		return nil, err
	}
	return inference.NewClassifierSession(spec, threads)
}
