package content

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	youtubeHost   = "youtube-transcript3.p.rapidapi.com"
	instagramHost = "instagram-transcripts.p.rapidapi.com"

	// maxVideoSeconds rejects transcripts for videos over 25 minutes.
	maxVideoSeconds = 1500
)

// RapidAPIConfig configures the RapidAPI-backed resolver.
type RapidAPIConfig struct {
	// APIKey is the RapidAPI key shared across transcript hosts.
	APIKey string

	// RequestTimeout bounds each upstream call (default: 30s)
	RequestTimeout time.Duration

	// YouTubeBaseURL and InstagramBaseURL override the upstream hosts,
	// mainly for tests.
	YouTubeBaseURL   string
	InstagramBaseURL string
}

// RapidAPIResolver implements Resolver against the RapidAPI transcript
// services: youtube-transcript3 for YouTube, instagram-transcripts for
// Instagram. TikTok and Threads have no transcript provider wired and
// resolve to ErrUnsupportedPlatform.
type RapidAPIResolver struct {
	config RapidAPIConfig
	client *http.Client
	logger zerolog.Logger
}

// NewRapidAPIResolver creates a resolver over the RapidAPI transcript hosts.
func NewRapidAPIResolver(config RapidAPIConfig, logger zerolog.Logger) (*RapidAPIResolver, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("rapidapi key is required")
	}
	if config.RequestTimeout == 0 {
		config.RequestTimeout = 30 * time.Second
	}
	if config.YouTubeBaseURL == "" {
		config.YouTubeBaseURL = "https://" + youtubeHost
	}
	if config.InstagramBaseURL == "" {
		config.InstagramBaseURL = "https://" + instagramHost
	}

	return &RapidAPIResolver{
		config: config,
		client: &http.Client{Timeout: config.RequestTimeout},
		logger: logger,
	}, nil
}

// Resolve implements Resolver.
func (r *RapidAPIResolver) Resolve(ctx context.Context, rawURL, language string) (*Extraction, error) {
	platform := DetectPlatform(rawURL)

	switch platform {
	case PlatformYouTube:
		videoID := ExtractYouTubeVideoID(rawURL)
		if videoID == "" {
			return nil, fmt.Errorf("%w: no video id in url", ErrExtractionFailed)
		}
		text, err := r.fetchYouTubeTranscript(ctx, videoID)
		if err != nil {
			return nil, err
		}
		return &Extraction{Platform: DisplayName(platform), Content: text, Transcript: text}, nil

	case PlatformInstagram:
		text, err := r.fetchInstagramTranscript(ctx, rawURL)
		if err != nil {
			return nil, err
		}
		return &Extraction{Platform: DisplayName(platform), Content: text, Transcript: text}, nil

	case PlatformTikTok, PlatformThreads:
		return nil, fmt.Errorf("%w: no transcript provider for %s", ErrUnsupportedPlatform, platform)

	default:
		return nil, ErrUnsupportedPlatform
	}
}

// transcriptItem is one caption segment as both hosts return it.
type transcriptItem struct {
	Text     string  `json:"text"`
	Start    float64 `json:"start"`
	Duration float64 `json:"duration"`
}

// bracketMarkers matches caption annotations like [Music] or [Applause].
var bracketMarkers = regexp.MustCompile(`\[.*?\]`)

func (r *RapidAPIResolver) fetchYouTubeTranscript(ctx context.Context, videoID string) (string, error) {
	endpoint := fmt.Sprintf("%s/api/transcript?videoId=%s", r.config.YouTubeBaseURL, url.QueryEscape(videoID))

	body, err := r.get(ctx, endpoint, youtubeHost)
	if err != nil {
		return "", err
	}

	var payload struct {
		Transcript []transcriptItem `json:"transcript"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", fmt.Errorf("%w: malformed transcript response", ErrExtractionFailed)
	}
	if len(payload.Transcript) == 0 {
		return "", fmt.Errorf("%w: no transcript available for this video", ErrExtractionFailed)
	}

	var totalDuration float64
	for _, item := range payload.Transcript {
		if end := item.Start + item.Duration; end > totalDuration {
			totalDuration = end
		}
	}
	if totalDuration > maxVideoSeconds {
		return "", ErrVideoTooLong
	}

	parts := make([]string, 0, len(payload.Transcript))
	for _, item := range payload.Transcript {
		parts = append(parts, item.Text)
	}
	text := strings.TrimSpace(bracketMarkers.ReplaceAllString(strings.Join(parts, " "), ""))
	if text == "" {
		return "", fmt.Errorf("%w: empty transcript", ErrExtractionFailed)
	}

	r.logger.Debug().
		Str("video_id", videoID).
		Float64("duration_seconds", totalDuration).
		Int("segments", len(payload.Transcript)).
		Msg("youtube transcript fetched")
	return text, nil
}

func (r *RapidAPIResolver) fetchInstagramTranscript(ctx context.Context, postURL string) (string, error) {
	endpoint := fmt.Sprintf("%s/transcript?url=%s&chunkSize=500&text=false",
		r.config.InstagramBaseURL, url.QueryEscape(postURL))

	body, err := r.get(ctx, endpoint, instagramHost)
	if err != nil {
		return "", err
	}

	// The host answers in several shapes depending on post type; try each.
	var payload struct {
		Content    []transcriptItem `json:"content"`
		Transcript []transcriptItem `json:"transcript"`
		Text       string           `json:"text"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		var plain string
		if json.Unmarshal(body, &plain) == nil && strings.TrimSpace(plain) != "" {
			return strings.TrimSpace(plain), nil
		}
		return "", fmt.Errorf("%w: malformed transcript response", ErrExtractionFailed)
	}

	items := payload.Content
	if len(items) == 0 {
		items = payload.Transcript
	}

	var text string
	if len(items) > 0 {
		parts := make([]string, 0, len(items))
		for _, item := range items {
			parts = append(parts, item.Text)
		}
		text = strings.Join(parts, " ")
	} else {
		text = payload.Text
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("%w: no transcript in response", ErrExtractionFailed)
	}

	r.logger.Debug().Str("url", postURL).Int("chars", len(text)).Msg("instagram transcript fetched")
	return text, nil
}

func (r *RapidAPIResolver) get(ctx context.Context, endpoint, host string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExtractionFailed, err)
	}
	req.Header.Set("x-rapidapi-host", host)
	req.Header.Set("x-rapidapi-key", r.config.APIKey)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExtractionFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		r.logger.Warn().Str("host", host).Int("status", resp.StatusCode).Msg("transcript request failed")
		return nil, fmt.Errorf("%w: upstream status %d", ErrExtractionFailed, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExtractionFailed, err)
	}
	return body, nil
}
