package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
)

func hintWith(header, value string) *waitHint {
	h := &waitHint{}
	hdr := http.Header{}
	hdr.Set(header, value)
	h.record(hdr)
	return h
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		hint       *waitHint
		wantKind   Kind
		wantStatus int
		wantWait   time.Duration
	}{
		{
			name:       "api error 429 with hint",
			err:        &openai.APIError{HTTPStatusCode: http.StatusTooManyRequests, Message: "slow down"},
			hint:       hintWith("Retry-After", "7"),
			wantKind:   KindRateLimited,
			wantStatus: 429,
			wantWait:   7 * time.Second,
		},
		{
			name:       "request error 429 without hint",
			err:        &openai.RequestError{HTTPStatusCode: http.StatusTooManyRequests, Err: errors.New("throttled")},
			hint:       &waitHint{},
			wantKind:   KindRateLimited,
			wantStatus: 429,
		},
		{
			name:       "wrapped api error 400",
			err:        fmt.Errorf("call: %w", &openai.APIError{HTTPStatusCode: http.StatusBadRequest}),
			wantKind:   KindRemoteService,
			wantStatus: 400,
		},
		{
			name:       "request error 503",
			err:        &openai.RequestError{HTTPStatusCode: http.StatusServiceUnavailable, Err: errors.New("down")},
			wantKind:   KindRemoteService,
			wantStatus: 503,
		},
		{
			name:     "empty response",
			err:      fmt.Errorf("%w: no choices", errEmptyResponse),
			wantKind: KindRemoteService,
		},
		{
			name:     "network",
			err:      errors.New("dial tcp: connection refused"),
			wantKind: KindUnexpected,
		},
		{
			name:     "cancelled",
			err:      context.Canceled,
			wantKind: KindUnexpected,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := classify("embed", tt.err, tt.hint)
			assert.Equal(t, tt.wantKind, e.Kind)
			assert.Equal(t, tt.wantStatus, e.StatusCode)
			assert.Equal(t, tt.wantWait, e.RetryAfter)
			assert.Equal(t, "embed", e.Op)
			assert.ErrorIs(t, e, tt.err)
		})
	}
}

func TestError_IsMatchesOnlyItsKind(t *testing.T) {
	e := &Error{Op: "complete", Kind: KindRemoteService, StatusCode: 500}

	assert.ErrorIs(t, e, ErrRemoteService)
	assert.NotErrorIs(t, e, ErrRateLimited)
	assert.NotErrorIs(t, e, ErrUnexpected)

	wrapped := fmt.Errorf("ingest chunk 3: %w", &Error{Op: "embed", Kind: KindRateLimited})
	assert.True(t, IsRateLimited(wrapped))
}

func TestError_Message(t *testing.T) {
	e := &Error{
		Op:         "complete",
		Kind:       KindRateLimited,
		StatusCode: 429,
		Retried:    true,
		Err:        errors.New("limit"),
	}
	assert.Equal(t, "aoai: complete: rate limited (status 429) after retry: limit", e.Error())

	bare := &Error{Op: "embed", Kind: KindUnexpected}
	assert.Equal(t, "aoai: embed: unexpected error", bare.Error())
}

func TestRetryAfter(t *testing.T) {
	wait, ok := RetryAfter(fmt.Errorf("x: %w", &Error{Kind: KindRateLimited, RetryAfter: time.Second}))
	assert.True(t, ok)
	assert.Equal(t, time.Second, wait)

	_, ok = RetryAfter(errors.New("plain"))
	assert.False(t, ok)
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "rate limited", KindRateLimited.String())
	assert.Equal(t, "remote service error", KindRemoteService.String())
	assert.Equal(t, "unexpected error", KindUnexpected.String())
}
