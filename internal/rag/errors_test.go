package rag

import (
	"errors"
	"fmt"
	"testing"
)

func Test_ClassifyProviderErr(t *testing.T) {
	t.Parallel()

	cases := []struct {
		msg  string
		want error
	}{
		{"HTTP 429: slow down", ErrRateLimited},
		{"RESOURCE_EXHAUSTED: try later", ErrRateLimited},
		{"rate limit reached for requests", ErrRateLimited},
		{"Too Many Requests", ErrRateLimited},
		{"request quota exhausted for project", ErrQuotaExceeded},
		{"connection refused", nil},
		{"HTTP 500: internal", nil},
	}
	for _, tc := range cases {
		got := ClassifyProviderErr(errors.New(tc.msg))
		if !errors.Is(got, tc.want) && !(got == nil && tc.want == nil) {
			t.Errorf("classify(%q): want %v, got %v", tc.msg, tc.want, got)
		}
	}

	if got := ClassifyProviderErr(nil); got != nil {
		t.Errorf("classify(nil): want nil, got %v", got)
	}
}

func Test_ProviderError_MatchesKindViaErrorsIs(t *testing.T) {
	t.Parallel()

	err := &ProviderError{
		Provider: "gemini",
		Kind:     ErrRateLimited,
		Err:      fmt.Errorf("429 resource_exhausted"),
	}
	if !errors.Is(err, ErrRateLimited) {
		t.Error("ProviderError with RateLimited kind should match ErrRateLimited")
	}
	if errors.Is(err, ErrQuotaExceeded) {
		t.Error("ProviderError with RateLimited kind must not match ErrQuotaExceeded")
	}
}
