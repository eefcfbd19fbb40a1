// Package source acquires and prepares raw content for interpretation:
// video URL normalization, subtitle transcript fetching, and uploaded
// document text extraction.
package source

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/deepread-ai/deepread/pkg/task"
)

var videoIDRe = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)

// NormalizeVideoURL canonicalizes the many YouTube URL shapes into
// `https://www.youtube.com/watch?v=<id>`. The canonical form is the
// source identifier deduplication hashes, so two spellings of the same
// video must normalize identically.
func NormalizeVideoURL(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", task.NewError(task.ErrKindInvalidInput, "video URL is empty")
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "https://" + trimmed
	}

	parsed, err := url.Parse(trimmed)
	if err != nil {
		return "", task.WrapError(task.ErrKindInvalidInput, fmt.Errorf("unparseable video URL %q: %w", raw, err))
	}

	host := strings.ToLower(strings.TrimPrefix(parsed.Hostname(), "www."))
	var id string
	switch {
	case host == "youtu.be":
		id = strings.Trim(parsed.Path, "/")
	case host == "youtube.com" || strings.HasSuffix(host, ".youtube.com"):
		id = extractYouTubeID(parsed)
	default:
		return "", task.NewError(task.ErrKindInvalidInput, "unsupported video host %q", parsed.Hostname())
	}

	// Strip anything after the ID (extra path segments, playlist params
	// already dropped by taking only v / the path segment).
	if i := strings.IndexAny(id, "/?&"); i >= 0 {
		id = id[:i]
	}
	if !videoIDRe.MatchString(id) {
		return "", task.NewError(task.ErrKindInvalidInput, "no valid video ID in %q", raw)
	}
	return "https://www.youtube.com/watch?v=" + id, nil
}

// extractYouTubeID pulls the video ID from youtube.com URL shapes:
// /watch?v=ID, /embed/ID, /shorts/ID, /live/ID, /v/ID.
func extractYouTubeID(parsed *url.URL) string {
	if v := parsed.Query().Get("v"); v != "" {
		return v
	}
	path := strings.Trim(parsed.Path, "/")
	for _, prefix := range []string{"embed/", "shorts/", "live/", "v/"} {
		if rest, ok := strings.CutPrefix(path, prefix); ok {
			return rest
		}
	}
	return ""
}
