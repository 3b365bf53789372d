package errors

import (
	"context"
	"fmt"
	"testing"
)

func TestStoreError_MatchesSentinelAndCause(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	err := Wrap(NewStoreError("redis", "get", cause), "cooldown check")

	if !Is(err, ErrStoreUnavailable) {
		t.Error("StoreError should match ErrStoreUnavailable")
	}
	if !Is(err, cause) {
		t.Error("StoreError should match its cause")
	}

	var se *StoreError
	if !As(err, &se) || se.Op != "get" {
		t.Errorf("As(*StoreError) failed: %v", err)
	}
}

func TestKind(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{NewUpstreamError("AAPL", 503, fmt.Errorf("%w: 503", ErrUpstreamUnavailable)), "upstream_unavailable"},
		{Wrapf(ErrInvalidResponse, "ticker %s", "AAPL"), "invalid_response"},
		{NewStoreError("sqlite", "insert", fmt.Errorf("locked")), "store_unavailable"},
		{Wrap(ErrChannelFailure, "sms"), "channel_failure"},
		{NewValidationError("alerts.tickers", nil, "empty"), "config_invalid"},
		{fmt.Errorf("boom"), "unknown"},
		{Wrap(ErrTimeout, "send"), "timeout"},
		{NewUpstreamError("AAPL", 0, fmt.Errorf("%w: %w", ErrUpstreamUnavailable, context.DeadlineExceeded)), "timeout"},
	}

	for _, tt := range tests {
		if got := Kind(tt.err); got != tt.want {
			t.Errorf("Kind(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestWrap_Nil(t *testing.T) {
	if Wrap(nil, "x") != nil || Wrapf(nil, "x %d", 1) != nil {
		t.Error("wrapping nil should return nil")
	}
}
