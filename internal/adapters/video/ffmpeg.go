package video

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"shortforge/internal/config"
	"shortforge/internal/core/domain"
)

const (
	zoomStart = 1.0
	zoomEnd   = 1.15
	fadeDur   = 0.3
)

// FFmpeg assembles the accepted images and narration into the final
// vertical video by shelling out to ffmpeg.
type FFmpeg struct {
	logger *slog.Logger
	cfg    config.VideoConfig
}

func NewFFmpeg(logger *slog.Logger, cfg config.VideoConfig) *FFmpeg {
	return &FFmpeg{logger: logger, cfg: cfg}
}

// Compose splits the narration duration evenly across the images, renders
// one clip per image with its camera effect, concatenates them and muxes
// the audio (plus background music when configured) underneath.
func (f *FFmpeg) Compose(ctx context.Context, images []domain.ImageResult, audio *domain.AudioResult, script *domain.Script, outputPath string) (*domain.VideoResult, error) {
	if len(images) == 0 {
		return nil, fmt.Errorf("no images to compose")
	}

	workDir := filepath.Join(filepath.Dir(outputPath), "render")
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return nil, fmt.Errorf("create render dir: %w", err)
	}

	timePerImage := audio.Duration / float64(len(images))

	clipPaths := make([]string, 0, len(images))
	for i, img := range images {
		clipPath := filepath.Join(workDir, fmt.Sprintf("scene_%03d.mp4", i))
		if err := f.renderScene(ctx, img, timePerImage, clipPath); err != nil {
			return nil, fmt.Errorf("render scene %d: %w", i, err)
		}
		clipPaths = append(clipPaths, clipPath)
	}

	silentPath := filepath.Join(workDir, "silent.mp4")
	if err := f.concatScenes(ctx, clipPaths, workDir, silentPath); err != nil {
		return nil, fmt.Errorf("concatenate scenes: %w", err)
	}

	audioPath := audio.FilePath
	if f.cfg.BGMPath != "" {
		mixed, err := f.mixBGM(ctx, audio.FilePath, audio.Duration, workDir)
		if err != nil {
			f.logger.Warn("bgm mix failed, using narration only", "error", err)
		} else {
			audioPath = mixed
		}
	}

	if err := f.combine(ctx, silentPath, audioPath, outputPath); err != nil {
		return nil, fmt.Errorf("combine video and audio: %w", err)
	}

	f.logger.Info("video composed", "path", outputPath, "duration", audio.Duration, "scenes", len(images))
	return &domain.VideoResult{
		FilePath: outputPath,
		Duration: audio.Duration,
		Width:    f.cfg.Width,
		Height:   f.cfg.Height,
	}, nil
}

// renderScene turns one still into a clip with its camera effect applied.
func (f *FFmpeg) renderScene(ctx context.Context, img domain.ImageResult, duration float64, outPath string) error {
	cmd := exec.CommandContext(ctx, "ffmpeg", "-y",
		"-loop", "1",
		"-i", img.FilePath,
		"-t", fmt.Sprintf("%.3f", duration),
		"-vf", f.effectFilter(img.Effect, duration),
		"-r", fmt.Sprintf("%d", f.cfg.FPS),
		"-c:v", "libx264",
		"-preset", "fast",
		"-crf", "22",
		"-pix_fmt", "yuv420p",
		"-an",
		outPath,
	)
	return runFFmpeg(cmd)
}

// effectFilter builds the -vf chain for one camera effect. Every chain
// starts by filling the 9:16 frame; zoompan does the camera motion.
func (f *FFmpeg) effectFilter(effect domain.CameraEffect, duration float64) string {
	w, h := f.cfg.Width, f.cfg.Height
	frames := int(duration * float64(f.cfg.FPS))
	if frames < 1 {
		frames = 1
	}

	// Upscale before zoompan so subpixel motion stays smooth.
	fill := fmt.Sprintf("scale=%d:%d:force_original_aspect_ratio=increase,crop=%d:%d,scale=%d:%d",
		w, h, w, h, w*2, h*2)
	center := "x='iw/2-(iw/zoom/2)':y='ih/2-(ih/zoom/2)'"
	step := (zoomEnd - zoomStart) / float64(frames)

	switch effect {
	case domain.EffectZoomIn:
		return fmt.Sprintf("%s,zoompan=z='min(zoom+%.5f,%.2f)':d=%d:%s:s=%dx%d:fps=%d",
			fill, step, zoomEnd, frames, center, w, h, f.cfg.FPS)
	case domain.EffectZoomOut:
		return fmt.Sprintf("%s,zoompan=z='if(eq(on,1),%.2f,max(zoom-%.5f,%.2f))':d=%d:%s:s=%dx%d:fps=%d",
			fill, zoomEnd, step, zoomStart, frames, center, w, h, f.cfg.FPS)
	case domain.EffectPanLeft:
		return fmt.Sprintf("%s,zoompan=z='%.2f':d=%d:x='(iw-iw/zoom)*(1-on/%d)':y='ih/2-(ih/zoom/2)':s=%dx%d:fps=%d",
			fill, zoomEnd, frames, frames, w, h, f.cfg.FPS)
	case domain.EffectPanRight:
		return fmt.Sprintf("%s,zoompan=z='%.2f':d=%d:x='(iw-iw/zoom)*on/%d':y='ih/2-(ih/zoom/2)':s=%dx%d:fps=%d",
			fill, zoomEnd, frames, frames, w, h, f.cfg.FPS)
	case domain.EffectFade:
		return fmt.Sprintf("scale=%d:%d:force_original_aspect_ratio=increase,crop=%d:%d,fade=t=in:st=0:d=%.2f",
			w, h, w, h, fadeDur)
	default:
		return fmt.Sprintf("scale=%d:%d:force_original_aspect_ratio=increase,crop=%d:%d", w, h, w, h)
	}
}

func (f *FFmpeg) concatScenes(ctx context.Context, clips []string, workDir, outPath string) error {
	var lines []string
	for _, clip := range clips {
		lines = append(lines, fmt.Sprintf("file '%s'", clip))
	}
	listFile := filepath.Join(workDir, "scenes_concat.txt")
	if err := os.WriteFile(listFile, []byte(strings.Join(lines, "\n")), 0o644); err != nil {
		return err
	}

	cmd := exec.CommandContext(ctx, "ffmpeg", "-y",
		"-f", "concat",
		"-safe", "0",
		"-i", listFile,
		"-c", "copy",
		outPath,
	)
	return runFFmpeg(cmd)
}

// mixBGM loops the background track under the narration at low volume.
func (f *FFmpeg) mixBGM(ctx context.Context, narration string, duration float64, workDir string) (string, error) {
	outPath := filepath.Join(workDir, "audio_mixed.mp3")

	filter := fmt.Sprintf("[1:a]volume=%.2f[bgm];[0:a][bgm]amix=inputs=2:duration=first:normalize=0[aout]",
		f.cfg.BGMVolume)

	cmd := exec.CommandContext(ctx, "ffmpeg", "-y",
		"-i", narration,
		"-stream_loop", "-1",
		"-i", f.cfg.BGMPath,
		"-filter_complex", filter,
		"-map", "[aout]",
		"-t", fmt.Sprintf("%.3f", duration),
		"-c:a", "libmp3lame",
		"-q:a", "2",
		outPath,
	)
	if err := runFFmpeg(cmd); err != nil {
		return "", err
	}
	return outPath, nil
}

func (f *FFmpeg) combine(ctx context.Context, videoPath, audioPath, outPath string) error {
	cmd := exec.CommandContext(ctx, "ffmpeg", "-y",
		"-i", videoPath,
		"-i", audioPath,
		"-c:v", "copy",
		"-c:a", "aac",
		"-b:a", "192k",
		"-shortest",
		"-movflags", "+faststart",
		outPath,
	)
	return runFFmpeg(cmd)
}

func runFFmpeg(cmd *exec.Cmd) error {
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w: %s", err, tail(string(out), 400))
	}
	return nil
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
