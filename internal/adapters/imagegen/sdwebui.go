package imagegen

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"shortforge/internal/config"
	"shortforge/internal/core/domain"
)

// characterBasePrompt anchors every scene to a consistent visual identity
// so the short reads as one story rather than unrelated stills.
const characterBasePrompt = "anime style, illustration, attractive female character, " +
	"stylish outfit, detailed, high quality, vibrant colors, " +
	"upper body shot, expressive face"

const negativePrompt = "ugly, deformed, noisy, blurry, low quality, " +
	"bad anatomy, bad proportions, watermark, text, " +
	"realistic, photo, 3d render"

// SDWebUI renders scene images through the Automatic1111 txt2img API.
type SDWebUI struct {
	logger *slog.Logger
	client *http.Client
	cfg    config.ImageGenConfig
}

func NewSDWebUI(logger *slog.Logger, cfg config.ImageGenConfig) *SDWebUI {
	return &SDWebUI{
		logger: logger,
		client: &http.Client{Timeout: 180 * time.Second},
		cfg:    cfg,
	}
}

// SynthesizeImages renders one image per scene into outputDir. Scene
// failures are logged and skipped; only a fully empty result is an error.
func (s *SDWebUI) SynthesizeImages(ctx context.Context, scenes []domain.SceneInfo, outputDir string) ([]domain.ImageResult, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create image dir: %w", err)
	}

	concurrency := s.cfg.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}

	slots := make([]*domain.ImageResult, len(scenes))
	var g errgroup.Group
	g.SetLimit(concurrency)

	for i, scene := range scenes {
		i, scene := i, scene
		g.Go(func() error {
			path := filepath.Join(outputDir, fmt.Sprintf("image_%03d.png", i))
			prompt := characterBasePrompt + ", " + scene.Description

			if err := s.txt2img(ctx, prompt, path); err != nil {
				s.logger.Warn("image generation failed, skipping scene", "index", i, "error", err)
				return nil
			}
			slots[i] = &domain.ImageResult{
				FilePath: path,
				Prompt:   prompt,
				Effect:   scene.Effect,
				Index:    i,
			}
			return nil
		})
	}
	_ = g.Wait()

	results := make([]domain.ImageResult, 0, len(scenes))
	for _, r := range slots {
		if r != nil {
			results = append(results, *r)
		}
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("all %d image generations failed", len(scenes))
	}

	s.logger.Info("images generated", "requested", len(scenes), "produced", len(results))
	return results, nil
}

func (s *SDWebUI) txt2img(ctx context.Context, prompt, outputPath string) error {
	payload := map[string]interface{}{
		"prompt":          prompt,
		"negative_prompt": negativePrompt,
		"width":           s.cfg.Width,
		"height":          s.cfg.Height,
		"steps":           s.cfg.Steps,
		"cfg_scale":       s.cfg.CFGScale,
		"sampler_name":    s.cfg.Sampler,
		"seed":            -1,
	}

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", s.cfg.APIURL+"/sdapi/v1/txt2img", bytes.NewReader(payloadBytes))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("call txt2img: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("txt2img returned status %d: %s", resp.StatusCode, string(body))
	}

	var result struct {
		Images []string `json:"images"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if len(result.Images) == 0 {
		return fmt.Errorf("no images in response")
	}

	imageData, err := base64.StdEncoding.DecodeString(result.Images[0])
	if err != nil {
		return fmt.Errorf("decode image: %w", err)
	}
	if err := os.WriteFile(outputPath, imageData, 0o644); err != nil {
		return fmt.Errorf("write image: %w", err)
	}
	return nil
}
