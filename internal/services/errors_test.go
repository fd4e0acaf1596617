package services_test

import (
	"errors"
	"strings"
	"testing"

	"podscribe/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrExternalTool, "transcription", "slice", "failed", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"transcription", "slice", "failed"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapDefaultsToTransient(t *testing.T) {
	err := services.Wrap(nil, "translation", "batch", "call failed", errors.New("io"))
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected nil marker to default to transient, got %v", err)
	}
}

func TestIsFatalClassification(t *testing.T) {
	configErr := services.Wrap(services.ErrConfiguration, "translation", "prepare", "missing API key", nil)
	if !services.IsFatal(configErr) {
		t.Fatalf("expected configuration error to be fatal: %v", configErr)
	}

	transientErr := services.Wrap(services.ErrTransient, "proofreading", "batch", "timeout", errors.New("deadline"))
	if services.IsFatal(transientErr) {
		t.Fatalf("expected transient error to be retryable: %v", transientErr)
	}

	validationErr := services.Wrap(services.ErrValidation, "proofreading", "decode", "bad response", nil)
	if services.IsFatal(validationErr) {
		t.Fatalf("expected validation error to be retryable: %v", validationErr)
	}

	if services.IsFatal(nil) {
		t.Fatal("nil error should not be fatal")
	}
}
