package faults

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		err  error
		want Kind
	}{
		{errors.New("request flagged by moderation"), ModerationRejection},
		{errors.New("content policy violation"), ModerationRejection},
		{errors.New("429 Too Many Requests"), RateLimited},
		{errors.New("rate limit reached for model"), RateLimited},
		{errors.New("dial tcp: connection refused"), NetworkFailure},
		{errors.New("dial tcp: lookup api: no such host"), NetworkFailure},
		{context.DeadlineExceeded, NetworkFailure},
		{errors.New("something odd happened"), Unclassified},
	}
	for _, c := range cases {
		f := Classify(c.err)
		require.NotNil(t, f)
		require.Equal(t, c.want, f.Kind, "error %q", c.err)
		require.ErrorIs(t, f, c.err)
	}
}

func TestClassify_Nil(t *testing.T) {
	require.Nil(t, Classify(nil))
}

func TestClassify_FaultPassesThrough(t *testing.T) {
	orig := New(ModerationRejection, "refused")
	require.Same(t, orig, Classify(orig))

	wrapped := fmt.Errorf("handler: %w", orig)
	require.Same(t, orig, Classify(wrapped))
}

func TestRetryable(t *testing.T) {
	require.True(t, New(NetworkFailure, "x").Retryable())
	require.True(t, New(RateLimited, "x").Retryable())
	require.True(t, New(Unclassified, "x").Retryable())
	require.False(t, New(ModerationRejection, "x").Retryable())
	require.False(t, New(ValidationFailure, "x").Retryable())
}
