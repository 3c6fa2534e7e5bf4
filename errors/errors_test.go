package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestErrorClass_String(t *testing.T) {
	tests := []struct {
		class    ErrorClass
		expected string
	}{
		{ErrorTransient, "transient"},
		{ErrorInvalid, "invalid"},
		{ErrorFatal, "fatal"},
		{ErrorClass(999), "unknown"},
	}

	for _, test := range tests {
		t.Run(test.expected, func(t *testing.T) {
			if got := test.class.String(); got != test.expected {
				t.Errorf("expected %s, got %s", test.expected, got)
			}
		})
	}
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"connection timeout", ErrConnectionTimeout, true},
		{"connection lost", ErrConnectionLost, true},
		{"queue full", ErrQueueFull, true},
		{"context deadline exceeded", context.DeadlineExceeded, true},
		{"context canceled", context.Canceled, true},
		{"address in use", fmt.Errorf("listen tcp :8080: bind: address already in use"), true},
		{"read only", ErrReadOnly, false},
		{"classified transient", &ClassifiedError{Class: ErrorTransient, Err: fmt.Errorf("x")}, true},
		{"classified fatal", &ClassifiedError{Class: ErrorFatal, Err: fmt.Errorf("x")}, false},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := IsTransient(test.err); got != test.expected {
				t.Errorf("expected %v, got %v for error: %v", test.expected, got, test.err)
			}
		})
	}
}

func TestIsInvalid(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"read only", ErrReadOnly, true},
		{"unsupported type", ErrUnsupportedType, true},
		{"identity collision", ErrIdentityCollision, true},
		{"unsupported length", ErrUnsupportedLength, true},
		{"handshake", ErrHandshakeFailed, true},
		{"wrapped read only", fmt.Errorf("outer: %w", ErrReadOnly), true},
		{"connection timeout", ErrConnectionTimeout, false},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := IsInvalid(test.err); got != test.expected {
				t.Errorf("expected %v, got %v for error: %v", test.expected, got, test.err)
			}
		})
	}
}

func TestIsFatal(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"invalid config", ErrInvalidConfig, true},
		{"resource exhausted", ErrResourceExhausted, true},
		{"panic in message", fmt.Errorf("panic: boom"), true},
		{"read only", ErrReadOnly, false},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := IsFatal(test.err); got != test.expected {
				t.Errorf("expected %v, got %v for error: %v", test.expected, got, test.err)
			}
		})
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected ErrorClass
	}{
		{"nil", nil, ErrorTransient},
		{"timeout", ErrConnectionTimeout, ErrorTransient},
		{"read only", ErrReadOnly, ErrorInvalid},
		{"config", ErrInvalidConfig, ErrorFatal},
		{"wrapped invalid", WrapInvalid(ErrConnectionTimeout, "Server", "Start", "bind"), ErrorInvalid},
		{"unknown", errors.New("something odd"), ErrorTransient},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := Classify(test.err); got != test.expected {
				t.Errorf("expected %v, got %v", test.expected, got)
			}
		})
	}
}

func TestWrap(t *testing.T) {
	if Wrap(nil, "c", "m", "a") != nil {
		t.Fatal("wrapping nil should return nil")
	}

	err := Wrap(ErrReadOnly, "Signal", "SetValueFromString", "role check")
	want := "Signal.SetValueFromString: role check failed: signal is read-only"
	if err.Error() != want {
		t.Errorf("expected %q, got %q", want, err.Error())
	}
	if !errors.Is(err, ErrReadOnly) {
		t.Error("wrapped error should match sentinel")
	}
}

func TestWrapClassified(t *testing.T) {
	wrappers := []struct {
		name  string
		fn    func(error, string, string, string) error
		class ErrorClass
	}{
		{"transient", WrapTransient, ErrorTransient},
		{"invalid", WrapInvalid, ErrorInvalid},
		{"fatal", WrapFatal, ErrorFatal},
	}

	for _, w := range wrappers {
		t.Run(w.name, func(t *testing.T) {
			if w.fn(nil, "c", "m", "a") != nil {
				t.Fatal("wrapping nil should return nil")
			}

			err := w.fn(ErrFrameTooLarge, "Server", "Broadcast", "frame encode")
			var ce *ClassifiedError
			if !errors.As(err, &ce) {
				t.Fatalf("expected ClassifiedError, got %T", err)
			}
			if ce.Class != w.class {
				t.Errorf("expected class %v, got %v", w.class, ce.Class)
			}
			if ce.Component != "Server" || ce.Operation != "Broadcast" {
				t.Errorf("unexpected context %q/%q", ce.Component, ce.Operation)
			}
			if !strings.Contains(err.Error(), "frame encode failed") {
				t.Errorf("message should carry action, got %q", err.Error())
			}
			if !Is(err, ErrFrameTooLarge) {
				t.Error("classified error should unwrap to sentinel")
			}
		})
	}
}

func TestClassifiedError_NoMessage(t *testing.T) {
	ce := &ClassifiedError{Class: ErrorInvalid, Err: ErrInvalidData}
	if ce.Error() != ErrInvalidData.Error() {
		t.Errorf("expected underlying message, got %q", ce.Error())
	}
}
