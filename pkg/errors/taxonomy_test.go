package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"testing"
)

func TestWrapKeepsCause(t *testing.T) {
	err := Wrap(context.DeadlineExceeded, ErrSubmissionFailed, "submission failed").
		WithUserMessage("Submission failed.")

	if !stderrors.Is(err, context.DeadlineExceeded) {
		t.Error("cause lost")
	}
	if !stderrors.Is(err, New(ErrSubmissionFailed, "")) {
		t.Error("errors.Is should match by code")
	}
	if stderrors.Is(err, New(ErrTaskFailed, "")) {
		t.Error("errors.Is matched a different code")
	}
	if got := err.Notice(); got != "Submission failed." {
		t.Errorf("Notice() = %q", got)
	}
	if err.Category != "transport" || err.Severity != SeverityHigh || err.Retryable {
		t.Errorf("unexpected classification: %+v", err)
	}
	if err.CorrelationID == "" {
		t.Error("missing correlation id")
	}
}

func TestWrapNil(t *testing.T) {
	if Wrap(nil, ErrInternal, "x") != nil {
		t.Error("Wrap(nil) should be nil")
	}
}

func TestCodeThroughChain(t *testing.T) {
	inner := New(ErrPollLimit, "too many polls")
	outer := fmt.Errorf("submit: %w", inner)

	if got := Code(outer); got != ErrPollLimit {
		t.Errorf("Code() = %q, want %q", got, ErrPollLimit)
	}
	if !HasCode(outer, ErrPollLimit) {
		t.Error("HasCode() = false")
	}
	if Code(stderrors.New("plain")) != "" {
		t.Error("plain errors have no code")
	}
}

func TestNotice(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"plain", stderrors.New("boom"), "boom"},
		{"coded without user message", New(ErrNoData, "empty result"), "empty result"},
		{"coded with user message", New(ErrNoData, "empty result").WithUserMessage("No data available for download."), "No data available for download."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Notice(tt.err); got != tt.want {
				t.Errorf("Notice() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestOnlyExportsAreRetryable(t *testing.T) {
	for _, code := range []string{ErrSubmissionFailed, ErrPollTransportFailed, ErrTaskFailed, ErrValidation} {
		if New(code, "").Retryable {
			t.Errorf("%s should not be retryable", code)
		}
	}
	if !New(ErrExportFailed, "").Retryable {
		t.Error("export failures should be retryable")
	}
}
