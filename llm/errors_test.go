package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

func TestKindOf(t *testing.T) {
	rl := &Error{Kind: KindRateLimited, Provider: ProviderGemini, RetryAfter: 5 * time.Second, Err: errors.New("quota")}
	wrapped := fmt.Errorf("turn 3: %w", rl)

	assert.Equal(t, KindRateLimited, KindOf(wrapped))
	assert.Equal(t, 5*time.Second, RetryAfterOf(wrapped))
	assert.Equal(t, KindTimeout, KindOf(context.DeadlineExceeded))
	assert.Equal(t, KindOther, KindOf(errors.New("plain")))
}

func TestKindForStatus(t *testing.T) {
	assert.Equal(t, KindRateLimited, kindForStatus(429))
	assert.Equal(t, KindServerError, kindForStatus(500))
	assert.Equal(t, KindServerError, kindForStatus(503))
	assert.Equal(t, KindTimeout, kindForStatus(504))
	assert.Equal(t, KindOther, kindForStatus(400))
}

func TestRetryHintFromText(t *testing.T) {
	msg := `429 Resource has been exhausted. retry_delay {
  seconds: 17
}`
	assert.Equal(t, 18*time.Second, retryHintFromText(msg))
	assert.Zero(t, retryHintFromText("no hint here"))
}

func TestRetryHintFromHeader(t *testing.T) {
	resp := &http.Response{Header: http.Header{}}
	resp.Header.Set("Retry-After", "4")
	assert.Equal(t, 5*time.Second, retryHintFromHeader(resp))
	assert.Zero(t, retryHintFromHeader(nil))
}

func TestClassifyGemini(t *testing.T) {
	apiErr := genai.APIError{
		Code:    429,
		Status:  "RESOURCE_EXHAUSTED",
		Message: "quota exceeded",
		Details: []map[string]any{{"@type": "type.googleapis.com/google.rpc.RetryInfo", "retryDelay": "12s"}},
	}
	err := classifyGemini(apiErr)
	require.Equal(t, KindRateLimited, KindOf(err))
	assert.Equal(t, 13*time.Second, RetryAfterOf(err))

	err = classifyGemini(genai.APIError{Code: 503, Status: "UNAVAILABLE"})
	assert.Equal(t, KindServerError, KindOf(err))

	err = classifyGemini(errors.New("dial tcp: refused"))
	assert.Equal(t, KindOther, KindOf(err))
}

func TestSplitSystem(t *testing.T) {
	system, rest := splitSystem([]Message{
		{Role: RoleSystem, Content: "be terse"},
		{Role: RoleUser, Content: "hi"},
		{Role: RoleAssistant, Content: "hello"},
	})
	assert.Equal(t, "be terse", system)
	require.Len(t, rest, 2)
	assert.Equal(t, RoleUser, rest[0].Role)
}
