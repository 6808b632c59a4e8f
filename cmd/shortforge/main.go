package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"shortforge/internal/adapters/imagegen"
	"shortforge/internal/adapters/llm"
	"shortforge/internal/adapters/script"
	"shortforge/internal/adapters/supervisor"
	"shortforge/internal/adapters/topic"
	"shortforge/internal/adapters/tts"
	"shortforge/internal/adapters/upload"
	"shortforge/internal/adapters/video"
	"shortforge/internal/config"
	"shortforge/internal/core/domain"
	"shortforge/internal/core/ports"
	"shortforge/internal/core/services"
	"shortforge/pkg/api"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	logger.Info("starting shortforge")

	if err := run(logger); err != nil {
		logger.Error("shortforge failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	var (
		configPath    = flag.String("config", "", "path to YAML config file")
		count         = flag.Int("count", 1, "number of shorts to produce")
		contentType   = flag.String("type", "reddit_story", "content type: reddit_story, scary_story, fun_facts, motivation")
		topicOverride = flag.String("topic", "", "skip topic discovery and use this subject")
		strict        = flag.Bool("strict", true, "enable supervisor quality gates")
		serve         = flag.Bool("serve", false, "expose the progress API while the batch runs")
	)
	flag.Parse()

	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		logger.Info("shutting down")
		cancel()
	}()

	eventBus := services.NewEventBus(logger)

	pipeline, err := buildPipeline(ctx, logger, cfg, eventBus, *strict, *topicOverride)
	if err != nil {
		return err
	}

	ct := domain.ParseContentType(*contentType)
	if *topicOverride != "" {
		ct = domain.ContentTypeCustom
	}

	var units []*domain.ShortUnit
	g, gCtx := errgroup.WithContext(ctx)

	if *serve {
		server := api.NewServer(logger, eventBus, cfg.Serve.Addr)
		g.Go(func() error {
			err := server.Run(gCtx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}

	g.Go(func() error {
		defer cancel() // batch done, release the server
		units = pipeline.RunBatch(gCtx, ct, *count)
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}

	return summarize(logger, units, *count)
}

func buildPipeline(ctx context.Context, logger *slog.Logger, cfg config.Config, bus *services.EventBus, strict bool, topicOverride string) (*services.Pipeline, error) {
	textGen := llm.NewOpenAIProvider(cfg.LLM.BaseURL, cfg.LLM.APIKey, cfg.LLM.Model, cfg.LLM.Temperature)

	var topics ports.TopicSource
	if topicOverride != "" {
		topics = topic.NewStaticSource(topicOverride)
	} else {
		redditSource, err := topic.NewRedditSource(logger, cfg.Reddit)
		if err != nil {
			return nil, fmt.Errorf("init reddit source: %w", err)
		}
		topics = redditSource
	}

	if cfg.ImageGen.Autostart {
		runtime, err := imagegen.NewDockerRuntime(logger, cfg.ImageGen.DockerImage, cfg.ImageGen.ContainerName)
		if err != nil {
			logger.Warn("docker runtime unavailable, assuming webui is managed externally", "error", err)
		} else if err := runtime.Ensure(ctx, cfg.ImageGen.APIURL); err != nil {
			logger.Warn("webui autostart failed, image stage will retry against the configured URL", "error", err)
		}
	}

	var uploader ports.Uploader
	if cfg.Upload.Enabled {
		yt, err := upload.NewYouTube(logger, cfg.Upload)
		if err != nil {
			return nil, fmt.Errorf("init uploader: %w", err)
		}
		uploader = yt
	}

	skip := make(map[domain.Stage]bool, len(cfg.Supervisor.SkipStages))
	for _, name := range cfg.Supervisor.SkipStages {
		skip[domain.Stage(name)] = true
	}

	opts := services.PipelineOptions{
		Strict:           strict,
		MaxAttempts:      cfg.Pipeline.MaxAttempts,
		ImageAcceptFloor: cfg.Supervisor.ImageAcceptFloor,
		CandidateLimit:   cfg.Pipeline.CandidateLimit,
		StageTimeout:     time.Duration(cfg.Pipeline.StageTimeoutSec) * time.Second,
		SkipStages:       skip,
		OutputDir:        cfg.Paths.Output,
	}

	return services.NewPipeline(
		logger,
		opts,
		topics,
		script.NewWriter(logger, textGen),
		imagegen.NewSDWebUI(logger, cfg.ImageGen),
		tts.NewElevenLabs(logger, cfg.TTS),
		video.NewFFmpeg(logger, cfg.Video),
		supervisor.NewSupervisor(logger, textGen),
		uploader,
		bus,
	), nil
}

// summarize logs the batch outcome. The process fails only when nothing
// succeeded.
func summarize(logger *slog.Logger, units []*domain.ShortUnit, requested int) error {
	succeeded := 0
	for _, unit := range units {
		if unit.State == domain.UnitStateDone {
			succeeded++
			logger.Info("short produced", "unit_id", unit.ID, "video", unit.Video.FilePath, "attempts", unit.Attempts)
		} else {
			logger.Warn("short failed", "unit_id", unit.ID, "error", unit.Error, "attempts", unit.Attempts)
		}
	}

	logger.Info("batch complete", "requested", requested, "succeeded", succeeded, "failed", len(units)-succeeded)
	if succeeded == 0 {
		return fmt.Errorf("all %d units failed", requested)
	}
	return nil
}
