package topic

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/vartanbeno/go-reddit/v2/reddit"

	"shortforge/internal/config"
	"shortforge/internal/core/domain"
)

// subredditGroups maps each content type to the subreddits mined for it.
var subredditGroups = map[domain.ContentType][]string{
	domain.ContentTypeRedditStory: {"AmItheAsshole", "tifu", "MaliciousCompliance", "pettyrevenge"},
	domain.ContentTypeScaryStory:  {"nosleep", "creepypasta", "shortscarystories", "TwoSentenceHorror"},
	domain.ContentTypeFunFacts:    {"todayilearned", "interestingasfuck", "Damnthatsinteresting"},
	domain.ContentTypeMotivation:  {"GetMotivated", "quotes", "LifeProTips"},
}

const (
	minStoryWords = 100
	maxStoryWords = 2000
)

// RedditSource mines hot posts from content-type specific subreddits.
type RedditSource struct {
	logger *slog.Logger
	client *reddit.Client
}

// NewRedditSource builds a source from credentials, falling back to the
// read-only client when no app credentials are configured.
func NewRedditSource(logger *slog.Logger, cfg config.RedditConfig) (*RedditSource, error) {
	var client *reddit.Client
	var err error

	var opts []reddit.Opt
	if cfg.UserAgent != "" {
		opts = append(opts, reddit.WithUserAgent(cfg.UserAgent))
	}

	if cfg.ClientID != "" && cfg.ClientSecret != "" {
		client, err = reddit.NewClient(reddit.Credentials{
			ID:       cfg.ClientID,
			Secret:   cfg.ClientSecret,
			Username: cfg.Username,
			Password: cfg.Password,
		}, opts...)
	} else {
		logger.Info("no reddit credentials configured, using read-only client")
		client, err = reddit.NewReadonlyClient(opts...)
	}
	if err != nil {
		return nil, fmt.Errorf("create reddit client: %w", err)
	}

	return &RedditSource{logger: logger, client: client}, nil
}

// FetchCandidates pulls hot posts across the content type's subreddit
// group, filters out unusable submissions and returns the rest. Per
// subreddit failures are logged and skipped; an empty result is not an
// error here.
func (s *RedditSource) FetchCandidates(ctx context.Context, ct domain.ContentType, limit int) ([]domain.Candidate, error) {
	subreddits, ok := subredditGroups[ct]
	if !ok {
		return nil, fmt.Errorf("no subreddits configured for content type %q", ct)
	}

	perSub := limit
	if len(subreddits) > 1 {
		perSub = limit/len(subreddits) + 1
	}

	var candidates []domain.Candidate
	for _, name := range subreddits {
		posts, _, err := s.client.Subreddit.HotPosts(ctx, name, &reddit.ListOptions{Limit: perSub})
		if err != nil {
			s.logger.Warn("subreddit fetch failed, skipping", "subreddit", name, "error", err)
			continue
		}
		for _, post := range posts {
			if !usable(post, ct) {
				continue
			}
			candidates = append(candidates, domain.Candidate{
				Title:       post.Title,
				Source:      "r/" + post.SubredditName,
				URL:         "https://www.reddit.com" + post.Permalink,
				Score:       post.Score,
				Content:     content(post),
				ContentType: ct,
				FetchedAt:   time.Now().UTC(),
			})
		}
	}

	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	s.logger.Info("fetched topic candidates", "content_type", ct, "count", len(candidates))
	return candidates, nil
}

// usable filters out submissions that cannot carry a short: NSFW posts,
// stories without body text, and stories too short or too long to narrate.
func usable(post *reddit.Post, ct domain.ContentType) bool {
	if post.NSFW || post.Stickied {
		return false
	}
	switch ct {
	case domain.ContentTypeRedditStory, domain.ContentTypeScaryStory:
		words := len(strings.Fields(post.Body))
		return words >= minStoryWords && words <= maxStoryWords
	default:
		// Fact and motivation posts often live in the title alone.
		return len(strings.TrimSpace(post.Title)) >= 20
	}
}

func content(post *reddit.Post) string {
	if strings.TrimSpace(post.Body) != "" {
		return post.Body
	}
	return post.Title
}
