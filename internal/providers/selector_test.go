package providers

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/fieldhand/fieldhand/internal/agent"
	"github.com/fieldhand/fieldhand/pkg/models"
)

type stubProvider struct {
	name  string
	resp  *models.LLMResponse
	err   error
	calls int
}

func (s *stubProvider) Complete(context.Context, *agent.CompletionRequest) (*models.LLMResponse, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.resp, nil
}

func (s *stubProvider) Name() string        { return s.name }
func (s *stubProvider) SupportsTools() bool { return true }

func TestSelector_NoProviderConfigured(t *testing.T) {
	selector := NewSelector(nil, nil, nil)

	if selector.Configured() {
		t.Error("selector should report unconfigured")
	}
	_, err := selector.Complete(context.Background(), &agent.CompletionRequest{})
	if !errors.Is(err, ErrNoProviderConfigured) {
		t.Errorf("error = %v, want ErrNoProviderConfigured", err)
	}
}

func TestSelector_PrimarySuccess(t *testing.T) {
	primary := &stubProvider{name: "anthropic", resp: &models.LLMResponse{Content: "hi"}}
	fallback := &stubProvider{name: "openai"}
	selector := NewSelector(primary, fallback, nil)

	resp, err := selector.Complete(context.Background(), &agent.CompletionRequest{})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if resp.Content != "hi" {
		t.Errorf("content = %q", resp.Content)
	}
	if fallback.calls != 0 {
		t.Error("fallback must not be called when primary succeeds")
	}
}

func TestSelector_FallbackOnServerError(t *testing.T) {
	serverErr := (&ProviderError{Provider: "anthropic", Cause: errors.New("overloaded")}).
		WithStatus(http.StatusServiceUnavailable)
	primary := &stubProvider{name: "anthropic", err: serverErr}
	fallback := &stubProvider{name: "openai", resp: &models.LLMResponse{Content: "from fallback"}}
	selector := NewSelector(primary, fallback, nil)

	resp, err := selector.Complete(context.Background(), &agent.CompletionRequest{})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if resp.Content != "from fallback" {
		t.Errorf("content = %q", resp.Content)
	}

	m := selector.Metrics()
	if m.PrimaryFailures != 1 || m.FallbackSuccess != 1 {
		t.Errorf("metrics = %+v", m)
	}
}

func TestSelector_NoFallbackOnRateLimit(t *testing.T) {
	// Rate limits are retryable on the same provider, not a reason to
	// switch backends.
	rateErr := (&ProviderError{Provider: "anthropic"}).WithStatus(http.StatusTooManyRequests)
	primary := &stubProvider{name: "anthropic", err: rateErr}
	fallback := &stubProvider{name: "openai", resp: &models.LLMResponse{}}
	selector := NewSelector(primary, fallback, nil)

	_, err := selector.Complete(context.Background(), &agent.CompletionRequest{})
	if err == nil {
		t.Fatal("expected error")
	}
	if fallback.calls != 0 {
		t.Error("fallback must not be tried on rate limit")
	}
}

func TestSelector_NilPrimaryPromotesFallback(t *testing.T) {
	fallback := &stubProvider{name: "openai", resp: &models.LLMResponse{Content: "ok"}}
	selector := NewSelector(nil, fallback, nil)

	if selector.Name() != "openai" {
		t.Errorf("name = %q, want openai", selector.Name())
	}
	if _, err := selector.Complete(context.Background(), &agent.CompletionRequest{}); err != nil {
		t.Fatalf("complete: %v", err)
	}
}

func TestClassifyError(t *testing.T) {
	cases := []struct {
		err  error
		want FailureReason
	}{
		{errors.New("429 too many requests"), FailureRateLimit},
		{errors.New("context deadline exceeded"), FailureTimeout},
		{errors.New("invalid api key"), FailureAuth},
		{errors.New("insufficient quota"), FailureBilling},
		{errors.New("model not found"), FailureModelUnavailable},
		{errors.New("internal server error"), FailureServerError},
		{errors.New("something odd"), FailureUnknown},
	}
	for _, tc := range cases {
		if got := ClassifyError(tc.err); got != tc.want {
			t.Errorf("ClassifyError(%q) = %s, want %s", tc.err, got, tc.want)
		}
	}
}

func TestProviderError_StatusClassification(t *testing.T) {
	err := NewProviderError("openai", "gpt-4o", errors.New("boom")).WithStatus(http.StatusPaymentRequired)
	if err.Reason != FailureBilling {
		t.Errorf("reason = %s, want billing", err.Reason)
	}
	if !ShouldFallback(err) {
		t.Error("billing failures should fall back")
	}
	if IsRetryable(err) {
		t.Error("billing failures are not retryable")
	}
}
