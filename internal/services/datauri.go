package services

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// ParseDataURI decodes a "data:<mimetype>;base64,<payload>" string into its
// MIME type and raw bytes. This is the only upload transport the form layer
// uses; nothing else is accepted.
func ParseDataURI(s string) (mimeType string, data []byte, err error) {
	const prefix = "data:"
	if !strings.HasPrefix(s, prefix) {
		return "", nil, fmt.Errorf("not a data URI")
	}

	rest := s[len(prefix):]
	comma := strings.Index(rest, ",")
	if comma < 0 {
		return "", nil, fmt.Errorf("data URI has no payload separator")
	}

	meta := rest[:comma]
	payload := rest[comma+1:]

	if !strings.HasSuffix(meta, ";base64") {
		return "", nil, fmt.Errorf("data URI is not base64-encoded")
	}
	mimeType = strings.TrimSuffix(meta, ";base64")
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	data, err = base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("failed to decode data URI payload: %w", err)
	}
	if len(data) == 0 {
		return "", nil, fmt.Errorf("data URI payload is empty")
	}

	return mimeType, data, nil
}
