package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"shortforge/internal/config"
	"shortforge/internal/core/domain"
)

const (
	apiBase      = "https://api.elevenlabs.io/v1"
	outputFormat = "mp3_44100_128"
	// wordsPerMinute is the average speaking rate used to estimate the
	// narration duration without probing the encoded file.
	wordsPerMinute = 150
)

// voices maps friendly names to ElevenLabs voice IDs.
var voices = map[string]string{
	"adam":   "pNInz6obpgDQGcFmaJgB", // deep male
	"rachel": "21m00Tcm4TlvDq8ikWAM", // female
	"domi":   "AZnzlk1XvdvUeBnXmlld", // female energetic
	"bella":  "EXAVITQu4vr4xnSDxMaL", // female soft
	"antoni": "ErXwobaYiN019PkySvjV", // male warm
	"josh":   "TxGEqnHWrfWFTfGW9XjX", // male young
	"arnold": "VR6AewLTigWG4xSOukaG", // male deep
	"sam":    "yoZ06aMxZJJ28mfd3POQ", // male neutral
}

// toneVoices picks a narrator that fits the script's tone when no voice is
// pinned in configuration.
var toneVoices = map[domain.Tone]string{
	domain.ToneScary:   "arnold",
	domain.ToneHorror:  "arnold",
	domain.ToneRomance: "bella",
	domain.ToneFunny:   "josh",
	domain.ToneSad:     "rachel",
	domain.ToneASMR:    "bella",
	domain.ToneGossip:  "domi",
	domain.ToneNews:    "sam",
}

// ElevenLabs narrates scripts through the ElevenLabs text-to-speech API.
type ElevenLabs struct {
	logger *slog.Logger
	client *http.Client
	cfg    config.TTSConfig
}

func NewElevenLabs(logger *slog.Logger, cfg config.TTSConfig) *ElevenLabs {
	return &ElevenLabs{
		logger: logger,
		client: &http.Client{Timeout: 120 * time.Second},
		cfg:    cfg,
	}
}

func (e *ElevenLabs) SynthesizeVoice(ctx context.Context, script *domain.Script, outputPath string) (*domain.AudioResult, error) {
	if e.cfg.APIKey == "" {
		return nil, fmt.Errorf("elevenlabs API key not configured")
	}

	voiceID := e.resolveVoice(script.Tone)
	text := script.FullText()

	payload := map[string]interface{}{
		"text":     text,
		"model_id": e.cfg.ModelID,
	}
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	url := fmt.Sprintf("%s/text-to-speech/%s?output_format=%s", apiBase, voiceID, outputFormat)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(payloadBytes))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/mpeg")
	req.Header.Set("xi-api-key", e.cfg.APIKey)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call text-to-speech: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("text-to-speech returned status %d: %s", resp.StatusCode, string(body))
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read audio: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return nil, fmt.Errorf("create audio dir: %w", err)
	}
	if err := os.WriteFile(outputPath, audio, 0o644); err != nil {
		return nil, fmt.Errorf("write audio: %w", err)
	}

	duration := float64(script.WordCount()) / wordsPerMinute * 60
	e.logger.Info("voiceover generated", "voice_id", voiceID, "duration", duration, "bytes", len(audio))

	return &domain.AudioResult{
		FilePath: outputPath,
		Duration: duration,
		VoiceID:  voiceID,
	}, nil
}

// resolveVoice prefers the configured voice, then the tone match, then the
// default narrator. Unknown names pass through as raw voice IDs.
func (e *ElevenLabs) resolveVoice(tone domain.Tone) string {
	name := e.cfg.Voice
	if name == "" {
		if toneName, ok := toneVoices[tone]; ok {
			name = toneName
		} else {
			name = "adam"
		}
	}
	if id, ok := voices[name]; ok {
		return id
	}
	return name
}
