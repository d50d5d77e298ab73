package services

import (
	"encoding/base64"
	"testing"
)

func TestParseDataURI(t *testing.T) {
	payload := base64.StdEncoding.EncodeToString([]byte("hello world"))

	mime, data, err := ParseDataURI("data:text/plain;base64," + payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if mime != "text/plain" {
		t.Errorf("expected text/plain, got %q", mime)
	}
	if string(data) != "hello world" {
		t.Errorf("unexpected payload: %q", data)
	}
}

func TestParseDataURI_DefaultsMimeType(t *testing.T) {
	payload := base64.StdEncoding.EncodeToString([]byte{0x01, 0x02})

	mime, _, err := ParseDataURI("data:;base64," + payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if mime != "application/octet-stream" {
		t.Errorf("expected octet-stream default, got %q", mime)
	}
}

func TestParseDataURI_Rejections(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"not a data uri", "https://example.com/file.pdf"},
		{"missing comma", "data:text/plain;base64"},
		{"not base64 encoded", "data:text/plain,plain-payload"},
		{"invalid base64", "data:text/plain;base64,!!!"},
		{"empty payload", "data:text/plain;base64,"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, _, err := ParseDataURI(tc.input); err == nil {
				t.Errorf("expected error for %q", tc.input)
			}
		})
	}
}
