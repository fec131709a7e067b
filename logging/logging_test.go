package logging_test

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/vbng/control-plane/logging"
)

func TestForAttachesCategoryField(t *testing.T) {
	var buf bytes.Buffer
	root := logging.New(&buf, "debug", false)
	log := logging.For(root, logging.LCP)
	log.Info().Msg("negotiating")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse log line as JSON: %v", err)
	}
	if entry["category"] != "lcp" {
		t.Errorf("category = %v, want lcp", entry["category"])
	}
	if entry["message"] != "negotiating" {
		t.Errorf("message = %v, want negotiating", entry["message"])
	}
}

func TestNewUnrecognizedLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	root := logging.New(&buf, "not-a-level", false)
	root.Debug().Msg("should be suppressed")
	if buf.Len() != 0 {
		t.Errorf("debug line was emitted despite info-level fallback: %s", buf.String())
	}
	root.Info().Msg("should appear")
	if buf.Len() == 0 {
		t.Error("info line was suppressed")
	}
}
