// Package main - Command line classification of scooter photos.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/AsadchiyViacheslav/Yandex-GO-scooters/benchmark"
	"github.com/AsadchiyViacheslav/Yandex-GO-scooters/classify"
	"github.com/AsadchiyViacheslav/Yandex-GO-scooters/config"
	"github.com/AsadchiyViacheslav/Yandex-GO-scooters/images"
	"github.com/AsadchiyViacheslav/Yandex-GO-scooters/inference"
	"github.com/AsadchiyViacheslav/Yandex-GO-scooters/models"
	"github.com/AsadchiyViacheslav/Yandex-GO-scooters/profiler"
	"github.com/AsadchiyViacheslav/Yandex-GO-scooters/util"
)

const (
	// FormatText prints one human-readable line per photo.
	FormatText = "text"
	// FormatJSON prints one JSON document per photo.
	FormatJSON = "json"
)

func main() {
	var (
		presencePath = flag.String("presence", "", "Path to the presence classifier model (.onnx)")
		parkingPath  = flag.String("parking", "", "Path to the parking-status classifier model (.onnx)")
		configPath   = flag.String("config", "", "Path to a YAML configuration file")
		inputPath    = flag.String("input", "", "Photo file or directory of photos to classify")
		watch        = flag.Bool("watch", false, "Re-classify the input file at a fixed interval")
		interval     = flag.Duration("interval", 0, "Delay between watch rounds (default from config)")
		profile      = flag.Bool("profile", false, "Report memory and GC consumption of the run")
		format       = flag.String("format", FormatText, "Output format: text or json")
	)
	flag.Parse()

	// A local .env supplies environment overrides during development.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal(err)
	}
	if *presencePath != "" {
		cfg.Models.PresencePath = *presencePath
	}
	if *parkingPath != "" {
		cfg.Models.ParkingPath = *parkingPath
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal(err)
	}

	if *inputPath == "" {
		log.Fatal("An input photo or directory is required (-input)")
	}
	if *format != FormatText && *format != FormatJSON {
		log.Fatalf("Unsupported output format %q, use text or json", *format)
	}

	info, err := os.Stat(*inputPath)
	if err != nil {
		log.Fatalf("Cannot read input %s: %v", *inputPath, err)
	}
	if *watch && info.IsDir() {
		log.Fatal("Watch mode re-classifies a single file, not a directory")
	}

	pipeline, cleanup, err := buildPipeline(cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer cleanup()

	log.Printf("Presence model: %s", cfg.Models.PresencePath)
	if cfg.Models.ParkingPath != "" {
		log.Printf("Parking model: %s", cfg.Models.ParkingPath)
	} else {
		log.Printf("Parking model not configured, classifying presence only")
	}

	var prof *profiler.RuntimeProfiler
	if *profile {
		prof = profiler.NewRuntimeProfiler(profiler.ProfilingOptions{})
		prof.Start()
	}

	switch {
	case *watch:
		watchInterval := *interval
		if watchInterval <= 0 {
			watchInterval = cfg.Watch.Interval()
		}
		err = watchFile(pipeline, *inputPath, watchInterval, *format)
	case info.IsDir():
		err = classifyDirectory(pipeline, *inputPath, *format)
	default:
		err = classifyFile(pipeline, *inputPath, *format)
	}

	if prof != nil {
		prof.Stop()
		fmt.Println(prof.Snapshot().Report())
	}
	if err != nil {
		log.Fatal(err)
	}
}

// buildPipeline loads the native runtime and the configured classifier heads.
// The returned cleanup releases every loaded resource and is safe to call
// after a partial failure.
func buildPipeline(cfg config.Config) (*classify.Pipeline, func(), error) {
	if err := inference.InitRuntime(cfg.Runtime.SharedLibraryPath); err != nil {
		return nil, nil, err
	}

	var sessions []*inference.Session
	cleanup := func() {
		for _, s := range sessions {
			if err := s.Close(); err != nil {
				log.Printf("Closing %s session failed: %v", s.Name(), err)
			}
		}
		if err := inference.DestroyRuntime(); err != nil {
			log.Printf("Destroying ONNX runtime failed: %v", err)
		}
	}

	presence, err := loadSession(models.RolePresence, cfg.Models.PresencePath, cfg.Runtime.IntraOpThreads)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	sessions = append(sessions, presence)

	var parkingStage *classify.Stage
	if cfg.Models.ParkingPath != "" {
		parking, err := loadSession(models.RoleParking, cfg.Models.ParkingPath, cfg.Runtime.IntraOpThreads)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		sessions = append(sessions, parking)
		parkingStage = classify.NewStage(string(models.RoleParking), parking)
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

// classifyFile classifies a single photo and prints the outcome.
func classifyFile(pipeline *classify.Pipeline, path, format string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	pred, err := pipeline.Classify(context.Background(), data)
	if err != nil {
		return fmt.Errorf("classifying %s: %w", path, err)
	}
	printPrediction(filepath.Base(path), pred, format)
	return nil
}

// classifyDirectory classifies every supported image in the directory and
// ends with an aggregated latency report.
func classifyDirectory(pipeline *classify.Pipeline, dir, format string) error {
	files, err := util.LoadDirectoryImageFiles(dir)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no images found in %s", dir)
	}

	agg := benchmark.NewAggregate()
	for _, file := range files {
		pred, err := pipeline.Classify(context.Background(), file.Data)
		if err != nil {
			agg.RecordError()
			log.Printf("Classifying %s failed: %v", file.Name, err)
			continue
		}
		printPrediction(file.Name, pred, format)
		agg.Record(predictionSample(pred))
	}

	fmt.Println()
	fmt.Println(agg.Summary().Report())
	return nil
}

// watchFile re-classifies one file at a fixed interval until interrupted.
// Rounds run strictly one after another; a slow round delays the next one.
func watchFile(pipeline *classify.Pipeline, path string, interval time.Duration, format string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Printf("Watching %s every %v, Ctrl-C stops", path, interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := classifyFile(pipeline, path, format); err != nil {
			// The file may be mid-replacement; the next round retries it.
			log.Printf("Classification round failed: %v", err)
		}
		select {
		case <-ctx.Done():
			log.Printf("Watch stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// predictionSample converts one pipeline outcome into a benchmark sample.
func predictionSample(pred *classify.Prediction) benchmark.Sample {
	s := benchmark.Sample{
		Label:            pred.Label,
		PresenceDuration: time.Duration(pred.Presence.ElapsedMillis) * time.Millisecond,
		TotalDuration:    time.Duration(pred.TotalElapsedMillis) * time.Millisecond,
	}
	if pred.Parking != nil {
		s.ParkingDuration = time.Duration(pred.Parking.ElapsedMillis) * time.Millisecond
	}
	return s
}

// printPrediction writes one classification outcome to stdout.
func printPrediction(name string, pred *classify.Prediction, format string) {
	if format == FormatJSON {
		doc := struct {
			File string `json:"file"`
			*classify.Prediction
		}{File: name, Prediction: pred}
		out, err := json.Marshal(doc)
		if err != nil {
			log.Printf("Encoding result for %s failed: %v", name, err)
			return
		}
		fmt.Println(string(out))
		return
	}

	line := fmt.Sprintf("%s: %s (presence %d @ %.2f", name, pred.Label, pred.Presence.Class, pred.Presence.Confidence)
	if pred.Parking != nil {
		line += fmt.Sprintf(", parking %d @ %.2f", pred.Parking.Class, pred.Parking.Confidence)
	}
	line += fmt.Sprintf(") in %dms", pred.TotalElapsedMillis)
	fmt.Println(line)
}

func init() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", filepath.Base(os.Args[0]))
		fmt.Fprintf(os.Stderr, "Two-stage scooter parking classification for photos.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(
			os.Stderr,
			"  %s -presence ./presence.onnx -parking ./parking.onnx -input ./photo.jpg\n",
			filepath.Base(os.Args[0]),
		)
		fmt.Fprintf(
			os.Stderr,
			"  %s -config ./config.yaml -input ./photos -profile\n",
			filepath.Base(os.Args[0]),
		)
		fmt.Fprintf(
			os.Stderr,
			"  %s -config ./config.yaml -input ./latest.jpg -watch -interval 5s\n",
			filepath.Base(os.Args[0]),
		)
	}
}
