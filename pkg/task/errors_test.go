package task

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantKind ErrorKind
	}{
		{
			name:     "classified errors pass through",
			err:      NewError(ErrKindOutlineParse, "no chapters found"),
			wantKind: ErrKindOutlineParse,
		},
		{
			name:     "wrapped classified errors are unwrapped",
			err:      fmt.Errorf("outline stage: %w", NewError(ErrKindChapterCountExceeded, "21 chapters")),
			wantKind: ErrKindChapterCountExceeded,
		},
		{
			name:     "exhausted transient retries surface as analysis errors",
			err:      NewError(ErrKindLLMTransient, "503 from provider"),
			wantKind: ErrKindAnalysis,
		},
		{
			name:     "deadline expiry becomes timeout",
			err:      context.DeadlineExceeded,
			wantKind: ErrKindTimeout,
		},
		{
			name:     "anything else is unknown",
			err:      errors.New("disk exploded"),
			wantKind: ErrKindUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.err)
			require.NotNil(t, got)
			assert.Equal(t, tt.wantKind, got.Kind)
			assert.NotEmpty(t, got.Message)
		})
	}
}

func TestEveryKindHasSuggestions(t *testing.T) {
	kinds := []ErrorKind{
		ErrKindInvalidInput, ErrKindSourceUnavailable, ErrKindQueueFull,
		ErrKindConfig, ErrKindLLMTransient, ErrKindAnalysis,
		ErrKindOutlineParse, ErrKindChapterCountExceeded, ErrKindTimeout,
		ErrKindUnknown,
	}
	for _, kind := range kinds {
		assert.NotEmpty(t, NewError(kind, "x").Suggestions, "kind %s", kind)
	}
}

func TestWrapErrorPreservesChain(t *testing.T) {
	cause := errors.New("connection refused")
	wrapped := WrapError(ErrKindLLMTransient, cause)

	assert.ErrorIs(t, wrapped, cause)

	te, ok := AsError(fmt.Errorf("call failed: %w", wrapped))
	require.True(t, ok)
	assert.Equal(t, ErrKindLLMTransient, te.Kind)
}

func TestWithSuggestionsReplacesDefaults(t *testing.T) {
	err := NewError(ErrKindInvalidInput, "bad URL").WithSuggestions("Use a YouTube link")
	assert.Equal(t, []string{"Use a YouTube link"}, err.Suggestions)
}
