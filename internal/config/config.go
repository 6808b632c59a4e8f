package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the injected configuration value object. It is loaded once at
// startup and passed down by value; nothing reads it ambiently.
type Config struct {
	LLM        LLMConfig        `yaml:"llm"`
	Reddit     RedditConfig     `yaml:"reddit"`
	ImageGen   ImageGenConfig   `yaml:"image_gen"`
	TTS        TTSConfig        `yaml:"tts"`
	Video      VideoConfig      `yaml:"video"`
	Supervisor SupervisorConfig `yaml:"supervisor"`
	Pipeline   PipelineConfig   `yaml:"pipeline"`
	Upload     UploadConfig     `yaml:"upload"`
	Paths      PathsConfig      `yaml:"paths"`
	Serve      ServeConfig      `yaml:"serve"`
}

type LLMConfig struct {
	BaseURL     string  `yaml:"base_url"`
	APIKey      string  `yaml:"-"` // env only, never from file
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
}

type RedditConfig struct {
	ClientID     string `yaml:"-"`
	ClientSecret string `yaml:"-"`
	Username     string `yaml:"-"`
	Password     string `yaml:"-"`
	UserAgent    string `yaml:"user_agent"`
}

type ImageGenConfig struct {
	APIURL        string  `yaml:"api_url"`
	Steps         int     `yaml:"steps"`
	CFGScale      float64 `yaml:"cfg_scale"`
	Sampler       string  `yaml:"sampler"`
	Width         int     `yaml:"width"`
	Height        int     `yaml:"height"`
	Concurrency   int     `yaml:"concurrency"`
	Autostart     bool    `yaml:"autostart"`
	DockerImage   string  `yaml:"docker_image"`
	ContainerName string  `yaml:"container_name"`
}

type TTSConfig struct {
	APIKey  string `yaml:"-"`
	ModelID string `yaml:"model_id"`
	Voice   string `yaml:"voice"` // overrides tone-based voice selection
}

type VideoConfig struct {
	Width     int     `yaml:"width"`
	Height    int     `yaml:"height"`
	FPS       int     `yaml:"fps"`
	BGMPath   string  `yaml:"bgm_path"`
	BGMVolume float64 `yaml:"bgm_volume"`
}

type SupervisorConfig struct {
	ImageAcceptFloor int      `yaml:"image_accept_floor"`
	SkipStages       []string `yaml:"skip_stages"`
}

type PipelineConfig struct {
	MaxAttempts     int `yaml:"max_attempts"`
	CandidateLimit  int `yaml:"candidate_limit"`
	StageTimeoutSec int `yaml:"stage_timeout_sec"`
}

type UploadConfig struct {
	Enabled       bool   `yaml:"enabled"`
	ClientID      string `yaml:"-"`
	ClientSecret  string `yaml:"-"`
	RefreshToken  string `yaml:"-"`
	CategoryID    string `yaml:"category_id"`
	PrivacyStatus string `yaml:"privacy_status"`
}

type PathsConfig struct {
	Output string `yaml:"output"`
}

type ServeConfig struct {
	Addr string `yaml:"addr"`
}

// Default returns the reference configuration.
func Default() Config {
	return Config{
		LLM: LLMConfig{
			BaseURL:     "https://api.openai.com/v1",
			Model:       "gpt-4o-mini",
			Temperature: 0.8,
		},
		Reddit: RedditConfig{
			UserAgent: "shortforge/1.0",
		},
		ImageGen: ImageGenConfig{
			APIURL:        "http://127.0.0.1:7860",
			Steps:         25,
			CFGScale:      7,
			Sampler:       "DPM++ 2M Karras",
			Width:         1080,
			Height:        1920,
			Concurrency:   1,
			DockerImage:   "ghcr.io/abdbarho/stable-diffusion-webui-docker/auto:latest",
			ContainerName: "shortforge-sdwebui",
		},
		TTS: TTSConfig{
			ModelID: "eleven_multilingual_v2",
		},
		Video: VideoConfig{
			Width:     1080,
			Height:    1920,
			FPS:       30,
			BGMVolume: 0.15,
		},
		Supervisor: SupervisorConfig{
			ImageAcceptFloor: 6,
		},
		Pipeline: PipelineConfig{
			MaxAttempts:     3,
			CandidateLimit:  5,
			StageTimeoutSec: 120,
		},
		Upload: UploadConfig{
			CategoryID:    "22",
			PrivacyStatus: "private",
		},
		Paths: PathsConfig{
			Output: "output",
		},
		Serve: ServeConfig{
			Addr: ":8090",
		},
	}
}

// Load reads the YAML file at path over the defaults and then applies env
// overrides for secrets. An empty path skips the file entirely.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	setFromEnv(&c.LLM.APIKey, "OPENAI_API_KEY", "LLM_API_KEY")
	setFromEnv(&c.LLM.BaseURL, "LLM_BASE_URL")
	setFromEnv(&c.LLM.Model, "LLM_MODEL")
	setFromEnv(&c.Reddit.ClientID, "REDDIT_CLIENT_ID")
	setFromEnv(&c.Reddit.ClientSecret, "REDDIT_CLIENT_SECRET")
	setFromEnv(&c.Reddit.Username, "REDDIT_USERNAME")
	setFromEnv(&c.Reddit.Password, "REDDIT_PASSWORD")
	setFromEnv(&c.TTS.APIKey, "ELEVENLABS_API_KEY")
	setFromEnv(&c.ImageGen.APIURL, "SD_API_URL")
	setFromEnv(&c.Upload.ClientID, "YOUTUBE_CLIENT_ID")
	setFromEnv(&c.Upload.ClientSecret, "YOUTUBE_CLIENT_SECRET")
	setFromEnv(&c.Upload.RefreshToken, "YOUTUBE_REFRESH_TOKEN")
}

func setFromEnv(dst *string, keys ...string) {
	for _, key := range keys {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
			return
		}
	}
}

func (c *Config) validate() error {
	if c.Pipeline.MaxAttempts < 1 {
		return fmt.Errorf("pipeline.max_attempts must be at least 1, got %d", c.Pipeline.MaxAttempts)
	}
	if c.Pipeline.CandidateLimit < 1 {
		return fmt.Errorf("pipeline.candidate_limit must be at least 1, got %d", c.Pipeline.CandidateLimit)
	}
	if c.Video.Width <= 0 || c.Video.Height <= 0 {
		return fmt.Errorf("video dimensions must be positive, got %dx%d", c.Video.Width, c.Video.Height)
	}
	if c.Video.FPS <= 0 {
		return fmt.Errorf("video.fps must be positive, got %d", c.Video.FPS)
	}
	if c.Supervisor.ImageAcceptFloor < 0 || c.Supervisor.ImageAcceptFloor > 10 {
		return fmt.Errorf("supervisor.image_accept_floor must be 0-10, got %d", c.Supervisor.ImageAcceptFloor)
	}
	return nil
}
