package enrichment

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/stretchr/testify/require"
)

type fakeMessages struct {
	reply string
	err   error
	got   anthropic.MessageNewParams
}

func (f *fakeMessages) New(_ context.Context, body anthropic.MessageNewParams, _ ...option.RequestOption) (*anthropic.Message, error) {
	f.got = body
	if f.err != nil {
		return nil, f.err
	}
	return &anthropic.Message{Content: []anthropic.ContentBlockUnion{{Type: "text", Text: f.reply}}}, nil
}

type countingWaiter struct {
	keys []string
	err  error
}

func (w *countingWaiter) Wait(_ context.Context, key string) error {
	w.keys = append(w.keys, key)
	return w.err
}

func TestAnthropicScorerParsesReply(t *testing.T) {
	t.Parallel()

	api := &fakeMessages{reply: "Here you go:\n{\"clarity\":72,\"authority\":50,\"comprehensiveness\":88,\"structure\":61,\"citability\":45}"}
	waiter := &countingWaiter{}
	s := newAnthropicScorer(api, AnthropicConfig{Model: "claude-test", MaxTokens: 256}, waiter)

	scores, err := s.ScoreContent(context.Background(), "https://example.com/", "Some page text.")
	require.NoError(t, err)
	require.Equal(t, 72, scores.Clarity)
	require.Equal(t, 45, scores.Citability)
	require.Equal(t, "claude-test", scores.Model)
	require.Equal(t, []string{rateLimitKey}, waiter.keys)
	require.Equal(t, anthropic.Model("claude-test"), api.got.Model)
	require.EqualValues(t, 256, api.got.MaxTokens)
	require.Len(t, api.got.Messages, 1)
}

func TestAnthropicScorerDefaults(t *testing.T) {
	t.Parallel()

	s := newAnthropicScorer(&fakeMessages{}, AnthropicConfig{}, nil)
	require.Equal(t, DefaultModel, s.model)
	require.EqualValues(t, defaultMaxTokens, s.maxTokens)
}

func TestAnthropicScorerErrors(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	_, err := newAnthropicScorer(&fakeMessages{}, AnthropicConfig{}, nil).ScoreContent(ctx, "u", "   ")
	require.ErrorIs(t, err, ErrPermanent)

	_, err = newAnthropicScorer(&fakeMessages{err: errors.New("529 overloaded")}, AnthropicConfig{}, nil).ScoreContent(ctx, "u", "text")
	require.ErrorContains(t, err, "overloaded")

	_, err = newAnthropicScorer(&fakeMessages{reply: `{"clarity":140,"authority":1,"comprehensiveness":1,"structure":1,"citability":1}`}, AnthropicConfig{}, nil).ScoreContent(ctx, "u", "text")
	require.ErrorContains(t, err, "out-of-range")

	waitErr := errors.New("rate limited")
	_, err = newAnthropicScorer(&fakeMessages{}, AnthropicConfig{}, &countingWaiter{err: waitErr}).ScoreContent(ctx, "u", "text")
	require.ErrorIs(t, err, waitErr)
}

func TestParseScores(t *testing.T) {
	t.Parallel()

	_, err := parseScores("no json here")
	require.Error(t, err)

	_, err = parseScores(`{"clarity":70}`)
	require.ErrorContains(t, err, "missing a dimension")

	_, err = parseScores(`{"clarity":"high"}`)
	require.Error(t, err)

	s, err := parseScores("```json\n{\"clarity\":0,\"authority\":0,\"comprehensiveness\":0,\"structure\":0,\"citability\":0}\n```")
	require.NoError(t, err)
	require.Zero(t, s.Average())
}

func TestExtractText(t *testing.T) {
	t.Parallel()

	html := `<html><head><style>p{}</style></head><body><nav>Home</nav><h1>Title</h1><p>First<b>bold</b> para.</p><script>var x;</script><footer>(c)</footer></body></html>`
	text, err := ExtractText([]byte(html), 0)
	require.NoError(t, err)
	require.Equal(t, "Title First bold para.", text)

	text, err = ExtractText([]byte("<p>"+strings.Repeat("é", 50)+"</p>"), 10)
	require.NoError(t, err)
	require.Equal(t, strings.Repeat("é", 10), text)
}

func TestRetryPolicy(t *testing.T) {
	t.Parallel()

	p := NewRetryPolicy(3, 100*time.Millisecond, time.Second)
	transient := errors.New("timeout")

	require.False(t, p.ShouldRetry(nil, 0))
	require.True(t, p.ShouldRetry(transient, 0))
	require.True(t, p.ShouldRetry(transient, 1))
	require.False(t, p.ShouldRetry(transient, 2), "attempt budget is spent")
	require.False(t, p.ShouldRetry(errors.Join(ErrPermanent, transient), 0))
	require.False(t, p.ShouldRetry(context.Canceled, 0))

	for attempt := range 6 {
		d := p.Backoff(attempt)
		require.GreaterOrEqual(t, d, time.Duration(0))
		require.LessOrEqual(t, d, time.Second)
	}
	require.GreaterOrEqual(t, p.Backoff(0), 50*time.Millisecond)

	def := NewRetryPolicy(0, 0, 0)
	require.Equal(t, DefaultMaxAttempts, def.MaxAttempts())
}
