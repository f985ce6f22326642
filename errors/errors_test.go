package errors

import (
	"fmt"
	"testing"
)

func TestFromHTTPStatus(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		detail  string
		code    int
		message string
	}{
		{"unauthorized", 401, "", ErrAuth, "Your session has expired. Please log in again."},
		{"unauthorized with detail", 401, "Token is invalid", ErrAuth, "Token is invalid"},
		{"bad request", 400, "Insufficient balance.", ErrRejected, "Insufficient balance."},
		{"not found", 404, "", ErrRejected, "The request was rejected."},
		{"bad gateway", 502, "", ErrTransport, "The server is not reachable right now."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := FromHTTPStatus(tt.status, tt.detail)
			if err.Code != tt.code {
				t.Errorf("expected code %d, got %d", tt.code, err.Code)
			}
			if err.Message != tt.message {
				t.Errorf("expected message %q, got %q", tt.message, err.Message)
			}
		})
	}
}

func TestTaxonomyHelpersSeeThroughWrapping(t *testing.T) {
	base := Auth("Not authenticated")
	wrapped := fmt.Errorf("load wallet: %w", base)

	if !IsAuth(wrapped) {
		t.Error("expected wrapped AuthError to be detected")
	}
	if IsValidation(wrapped) {
		t.Error("AuthError must not be reported as validation")
	}
	if got := UserMessage(wrapped, "fallback"); got != "Not authenticated" {
		t.Errorf("expected user message from AppError, got %q", got)
	}
	if got := UserMessage(fmt.Errorf("plain"), "fallback"); got != "fallback" {
		t.Errorf("expected fallback, got %q", got)
	}
	if GetCode(nil) != 0 {
		t.Error("nil error should have code 0")
	}
	if !IsAppError(wrapped) {
		t.Error("expected wrapped AuthError to be an AppError")
	}
	if IsAppError(fmt.Errorf("plain")) {
		t.Error("plain error must not be an AppError")
	}
}

func TestHTTPStatusFromCode(t *testing.T) {
	if HTTPStatusFromCode(ErrAuth) != 401 {
		t.Error("AuthError should map to 401")
	}
	if HTTPStatusFromCode(ErrValidation) != 400 {
		t.Error("ValidationError should map to 400")
	}
	if HTTPStatusFromCode(ErrTimeout) != 504 {
		t.Error("TimeoutError should map to 504")
	}
}
