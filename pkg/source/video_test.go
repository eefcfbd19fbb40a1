package source

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deepread-ai/deepread/pkg/task"
)

func TestNormalizeVideoURL(t *testing.T) {
	const want = "https://www.youtube.com/watch?v=dQw4w9WgXcQ"

	tests := []struct {
		name string
		in   string
	}{
		{"canonical", "https://www.youtube.com/watch?v=dQw4w9WgXcQ"},
		{"no scheme", "www.youtube.com/watch?v=dQw4w9WgXcQ"},
		{"bare host", "youtube.com/watch?v=dQw4w9WgXcQ"},
		{"short link", "https://youtu.be/dQw4w9WgXcQ"},
		{"short link with tracking", "https://youtu.be/dQw4w9WgXcQ?si=abc123"},
		{"embed", "https://www.youtube.com/embed/dQw4w9WgXcQ"},
		{"shorts", "https://www.youtube.com/shorts/dQw4w9WgXcQ"},
		{"live", "https://www.youtube.com/live/dQw4w9WgXcQ"},
		{"mobile", "https://m.youtube.com/watch?v=dQw4w9WgXcQ"},
		{"music", "https://music.youtube.com/watch?v=dQw4w9WgXcQ"},
		{"playlist params dropped", "https://www.youtube.com/watch?v=dQw4w9WgXcQ&list=PLx&index=4"},
		{"whitespace", "  https://youtu.be/dQw4w9WgXcQ  "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeVideoURL(tt.in)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}

func TestNormalizeVideoURLRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"empty", ""},
		{"wrong host", "https://vimeo.com/123456789"},
		{"no video id", "https://www.youtube.com/feed/subscriptions"},
		{"short id", "https://youtu.be/abc"},
		{"long id", "https://youtu.be/dQw4w9WgXcQQQ"},
		{"invalid id chars", "https://www.youtube.com/watch?v=dQw4w9WgXc!"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NormalizeVideoURL(tt.in)
			require.Error(t, err)

			te, ok := task.AsError(err)
			require.True(t, ok)
			assert.Equal(t, task.ErrKindInvalidInput, te.Kind)
			assert.NotEmpty(t, te.Suggestions)
		})
	}
}

func TestNormalizedURLsDedupeIdentically(t *testing.T) {
	a, err := NormalizeVideoURL("https://youtu.be/dQw4w9WgXcQ")
	require.NoError(t, err)
	b, err := NormalizeVideoURL("https://m.youtube.com/watch?v=dQw4w9WgXcQ&t=42s")
	require.NoError(t, err)
	assert.Equal(t, a, b)
}
