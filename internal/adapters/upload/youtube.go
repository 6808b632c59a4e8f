package upload

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"

	"shortforge/internal/config"
	"shortforge/internal/core/domain"
)

const (
	maxTitleLen       = 100
	maxDescriptionLen = 5000
)

// YouTube publishes finished shorts via the YouTube Data API v3 using a
// pre-issued OAuth refresh token.
type YouTube struct {
	logger *slog.Logger
	cfg    config.UploadConfig
}

func NewYouTube(logger *slog.Logger, cfg config.UploadConfig) (*YouTube, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" || cfg.RefreshToken == "" {
		return nil, fmt.Errorf("youtube credentials not configured")
	}
	return &YouTube{logger: logger, cfg: cfg}, nil
}

func (y *YouTube) Upload(ctx context.Context, video *domain.VideoResult, meta *domain.Metadata) (string, error) {
	svc, err := youtube.NewService(ctx, option.WithHTTPClient(y.oauthClient(ctx)))
	if err != nil {
		return "", fmt.Errorf("youtube service: %w", err)
	}

	title := meta.Title
	if len(title) > maxTitleLen {
		title = title[:maxTitleLen]
	}
	description := meta.Description
	if len(description) > maxDescriptionLen {
		description = description[:maxDescriptionLen]
	}

	upload := &youtube.Video{
		Snippet: &youtube.VideoSnippet{
			Title:       title,
			Description: description,
			Tags:        meta.Tags,
			CategoryId:  y.cfg.CategoryID,
		},
		Status: &youtube.VideoStatus{
			PrivacyStatus: y.cfg.PrivacyStatus,
		},
	}

	f, err := os.Open(video.FilePath)
	if err != nil {
		return "", fmt.Errorf("open video file: %w", err)
	}
	defer f.Close()

	y.logger.Info("uploading to youtube", "title", title, "privacy", y.cfg.PrivacyStatus)

	call := svc.Videos.Insert([]string{"snippet", "status"}, upload)
	call.Media(f)

	uploaded, err := call.Do()
	if err != nil {
		return "", fmt.Errorf("youtube upload: %w", err)
	}

	y.logger.Info("upload finished", "video_id", uploaded.Id,
		"url", "https://www.youtube.com/watch?v="+uploaded.Id)
	return uploaded.Id, nil
}

func (y *YouTube) oauthClient(ctx context.Context) *http.Client {
	conf := &oauth2.Config{
		ClientID:     y.cfg.ClientID,
		ClientSecret: y.cfg.ClientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       []string{youtube.YoutubeUploadScope},
	}
	token := &oauth2.Token{
		RefreshToken: y.cfg.RefreshToken,
		Expiry:       time.Now().Add(-time.Hour), // force refresh
	}
	return &http.Client{Transport: &oauth2.Transport{Source: conf.TokenSource(ctx, token)}}
}
