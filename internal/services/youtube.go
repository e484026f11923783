// YouTube Data API video lookup
package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/sentisounds/internal/shared"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"
)

// VideoURLFormat renders a video id as a watch URL.
const VideoURLFormat = "https://www.youtube.com/watch?v=%s"

// YouTubeService looks up videos via the YouTube Data API search endpoint.
type YouTubeService struct {
	svc     *youtube.Service
	timeout time.Duration
	logger  *log.Logger
}

// NewYouTubeService creates a new [YouTubeService]. Extra client options (endpoint, HTTP client) are appended after the API key.
func NewYouTubeService(ctx context.Context, cfg shared.YouTubeConfig, timeout time.Duration, logger *log.Logger, opts ...option.ClientOption) (*YouTubeService, error) {
	if cfg.APIKey == "" && len(opts) == 0 {
		return nil, fmt.Errorf("%w: youtube api_key", shared.ErrMissingCredentials)
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	clientOpts := []option.ClientOption{}
	if cfg.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(cfg.APIKey))
	}
	clientOpts = append(clientOpts, opts...)

	svc, err := youtube.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create youtube client: %w", err)
	}

	return &YouTubeService{
		svc:     svc,
		timeout: timeout,
		logger:  shared.WithLogger(logger, "service", "youtube"),
	}, nil
}

// SearchVideo returns the watch URL of the most relevant video for query, or "" when there is none.
func (y *YouTubeService) SearchVideo(ctx context.Context, query string) (string, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return "", fmt.Errorf("%w: empty video query", shared.ErrInvalidArgument)
	}

	ctx, cancel := withTimeout(ctx, y.timeout)
	defer cancel()

	resp, err := y.svc.Search.List([]string{"id"}).
		Q(query).
		Type("video").
		MaxResults(1).
		Order("relevance").
		Context(ctx).
		Do()
	if err != nil {
		return "", classifyYouTubeError(err)
	}

	for _, item := range resp.Items {
		if item.Id != nil && item.Id.VideoId != "" {
			return fmt.Sprintf(VideoURLFormat, item.Id.VideoId), nil
		}
	}
	return "", nil
}

// classifyYouTubeError treats quota exhaustion as rate limiting.
func classifyYouTubeError(err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		if gerr.Code == http.StatusTooManyRequests {
			return fmt.Errorf("%w: youtube: %v", shared.ErrRateLimited, gerr)
		}
		for _, item := range gerr.Errors {
			if item.Reason == "quotaExceeded" || item.Reason == "rateLimitExceeded" {
				return fmt.Errorf("%w: youtube quota: %v", shared.ErrRateLimited, gerr)
			}
		}
		return fmt.Errorf("%w: youtube status %d: %v", shared.ErrUpstreamUnavailable, gerr.Code, gerr)
	}
	return shared.WrapUpstream("youtube", err)
}
