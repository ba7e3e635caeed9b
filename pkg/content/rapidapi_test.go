package content

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
)

func newTestResolver(t *testing.T, youtubeURL, instagramURL string) *RapidAPIResolver {
	t.Helper()
	r, err := NewRapidAPIResolver(RapidAPIConfig{
		APIKey:           "test-key",
		YouTubeBaseURL:   youtubeURL,
		InstagramBaseURL: instagramURL,
	}, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewRapidAPIResolver: %v", err)
	}
	return r
}

func TestNewRapidAPIResolverRequiresKey(t *testing.T) {
	if _, err := NewRapidAPIResolver(RapidAPIConfig{}, zerolog.Nop()); err == nil {
		t.Error("expected error for missing api key")
	}
}

func TestResolveYouTube(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if req.Header.Get("x-rapidapi-key") != "test-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if req.URL.Query().Get("videoId") != "dQw4w9WgXcQ" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`{"transcript":[
			{"text":"Hey everyone!","start":0,"duration":2.5},
			{"text":"[Music]","start":2.5,"duration":1.0},
			{"text":"welcome back","start":3.5,"duration":2.0}
		]}`))
	}))
	defer srv.Close()

	r := newTestResolver(t, srv.URL, srv.URL)
	got, err := r.Resolve(context.Background(), "https://youtu.be/dQw4w9WgXcQ", "en")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got.Platform != "YouTube" {
		t.Errorf("Platform = %q, want YouTube", got.Platform)
	}
	if got.Content != "Hey everyone!  welcome back" {
		t.Errorf("Content = %q", got.Content)
	}
	if got.Transcript != got.Content {
		t.Errorf("Transcript = %q, want same as Content", got.Transcript)
	}
}

func TestResolveYouTubeTooLong(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		_, _ = w.Write([]byte(`{"transcript":[{"text":"intro","start":1490,"duration":20}]}`))
	}))
	defer srv.Close()

	r := newTestResolver(t, srv.URL, srv.URL)
	_, err := r.Resolve(context.Background(), "https://youtu.be/longvideo01", "en")
	if !errors.Is(err, ErrVideoTooLong) {
		t.Errorf("Resolve error = %v, want ErrVideoTooLong", err)
	}
}

func TestResolveYouTubeNoTranscript(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		_, _ = w.Write([]byte(`{"transcript":[]}`))
	}))
	defer srv.Close()

	r := newTestResolver(t, srv.URL, srv.URL)
	_, err := r.Resolve(context.Background(), "https://youtu.be/notranscript", "en")
	if !errors.Is(err, ErrExtractionFailed) {
		t.Errorf("Resolve error = %v, want ErrExtractionFailed", err)
	}
}

func TestResolveYouTubeUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	r := newTestResolver(t, srv.URL, srv.URL)
	_, err := r.Resolve(context.Background(), "https://youtu.be/upstreamerr", "en")
	if !errors.Is(err, ErrExtractionFailed) {
		t.Errorf("Resolve error = %v, want ErrExtractionFailed", err)
	}
}

func TestResolveInstagramContentShape(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if req.URL.Query().Get("url") == "" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte(`{"content":[{"text":"Swipe to see"},{"text":"my workspace"}]}`))
	}))
	defer srv.Close()

	r := newTestResolver(t, srv.URL, srv.URL)
	got, err := r.Resolve(context.Background(), "https://www.instagram.com/reel/Cabc123/", "en")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got.Platform != "Instagram" || got.Content != "Swipe to see my workspace" {
		t.Errorf("Extraction = %+v", got)
	}
}

func TestResolveInstagramTextShape(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		_, _ = w.Write([]byte(`{"text":"plain caption text"}`))
	}))
	defer srv.Close()

	r := newTestResolver(t, srv.URL, srv.URL)
	got, err := r.Resolve(context.Background(), "https://www.instagram.com/p/Cxyz/", "en")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got.Content != "plain caption text" {
		t.Errorf("Content = %q", got.Content)
	}
}

func TestResolveUnsupportedPlatforms(t *testing.T) {
	r := newTestResolver(t, "http://unused", "http://unused")

	for _, url := range []string{
		"https://www.tiktok.com/@user/video/123",
		"https://www.threads.net/@user/post/abc",
		"https://vimeo.com/123",
	} {
		if _, err := r.Resolve(context.Background(), url, "en"); !errors.Is(err, ErrUnsupportedPlatform) {
			t.Errorf("Resolve(%q) = %v, want ErrUnsupportedPlatform", url, err)
		}
	}
}
