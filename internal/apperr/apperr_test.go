package apperr

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestKindOfWrapped(t *testing.T) {
	base := Upload("upload", errors.New("502"), "all image hosts failed")
	wrapped := fmt.Errorf("select image: %w", base)

	if got := KindOf(wrapped); got != KindUpload {
		t.Errorf("expected upload kind, got %s", got)
	}
	if !Is(wrapped, KindUpload) {
		t.Error("expected Is to match upload kind")
	}
	if Is(wrapped, KindValidation) {
		t.Error("did not expect validation kind")
	}
	if KindOf(errors.New("plain")) != KindUnknown {
		t.Error("expected unknown kind for plain error")
	}
	if Is(nil, KindUnknown) {
		t.Error("nil error must not match any kind")
	}
}

func TestErrorString(t *testing.T) {
	err := Validation("compose", "intro text is required")
	if err.Error() != "compose: intro text is required" {
		t.Errorf("unexpected error string %q", err.Error())
	}

	cause := errors.New("connection refused")
	terr := Transport("", cause, "")
	if terr.Error() != "connection refused" {
		t.Errorf("expected cause text, got %q", terr.Error())
	}
	if !errors.Is(terr, cause) {
		t.Error("expected Unwrap to expose the cause")
	}
}

func TestUserMessage(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		contains string
	}{
		{"nil", nil, ""},
		{"validation", Validation("login", "Please enter your Hive username"), "Please enter your Hive username"},
		{"upload", Upload("upload", nil, "status 500"), "pick another file"},
		{"authentication", Authentication("login", nil, "Hive account not found"), "Login failed: Hive account not found"},
		{"submission", Submission("broadcast", nil, "not enough RC"), "Failed to post: not enough RC"},
		{"transport", Transport("rpc", nil, "timeout"), "not responding"},
		{"plain", errors.New("boom"), "Something went wrong"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := UserMessage(tt.err)
			if tt.contains == "" {
				if got != "" {
					t.Errorf("expected empty message, got %q", got)
				}
				return
			}
			if !strings.Contains(got, tt.contains) {
				t.Errorf("expected %q to contain %q", got, tt.contains)
			}
		})
	}
}
