// Package content resolves social-media URLs to transcript text.
package content

import (
	"context"
	"errors"
	"regexp"
	"strings"
)

// Platform identifiers as detected from submitted URLs.
const (
	PlatformYouTube   = "youtube"
	PlatformTikTok    = "tiktok"
	PlatformInstagram = "instagram"
	PlatformThreads   = "threads"
	PlatformUnknown   = "unknown"
)

var (
	// ErrUnsupportedPlatform is returned when no transcript provider
	// covers the submitted URL.
	ErrUnsupportedPlatform = errors.New("unsupported platform")

	// ErrExtractionFailed is returned when the transcript provider could
	// not produce any text. Callers must surface this and must not charge
	// the session's quota.
	ErrExtractionFailed = errors.New("content extraction failed")

	// ErrVideoTooLong is returned for videos over the transcript length
	// limit.
	ErrVideoTooLong = errors.New("video is longer than 25 minutes")
)

// Extraction is the result of resolving a URL.
type Extraction struct {
	// Platform is the detected platform id, capitalized for display by
	// the caller.
	Platform string

	// Content is the text handed to analysis.
	Content string

	// Transcript is the raw transcript as fetched.
	Transcript string
}

// Resolver turns a URL into transcript text.
type Resolver interface {
	Resolve(ctx context.Context, url, language string) (*Extraction, error)
}

// DetectPlatform identifies the platform from a URL by hostname substring.
func DetectPlatform(url string) string {
	switch {
	case strings.Contains(url, "youtube.com"), strings.Contains(url, "youtu.be"):
		return PlatformYouTube
	case strings.Contains(url, "tiktok.com"):
		return PlatformTikTok
	case strings.Contains(url, "instagram.com"):
		return PlatformInstagram
	case strings.Contains(url, "threads.net"):
		return PlatformThreads
	default:
		return PlatformUnknown
	}
}

var youtubeIDPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?:youtube\.com/watch\?v=|youtu\.be/|youtube\.com/embed/)([^&\n?#]+)`),
	regexp.MustCompile(`youtube\.com/watch\?.*v=([^&\n?#]+)`),
}

// ExtractYouTubeVideoID pulls the video id out of watch, short and embed
// URLs. Returns "" when no id is present.
func ExtractYouTubeVideoID(url string) string {
	for _, pattern := range youtubeIDPatterns {
		if m := pattern.FindStringSubmatch(url); m != nil {
			return m[1]
		}
	}
	return ""
}

// DisplayName maps a platform id to its presentation name.
func DisplayName(platform string) string {
	switch platform {
	case PlatformYouTube:
		return "YouTube"
	case PlatformTikTok:
		return "TikTok"
	case PlatformInstagram:
		return "Instagram"
	case PlatformThreads:
		return "Threads"
	case "":
		return ""
	default:
		return strings.ToUpper(platform[:1]) + platform[1:]
	}
}
