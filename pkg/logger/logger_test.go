package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
)

func TestJSONOutputCarriesFields(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "debug", "json").WithComponent("scheduler").WithField("bot_id", "b-1")

	log.Error("dispatch failed", errors.New("boom"))

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected one JSON line, got %q: %v", buf.String(), err)
	}
	if entry["level"] != "error" {
		t.Fatalf("expected error level, got %v", entry["level"])
	}
	if entry["component"] != "scheduler" || entry["bot_id"] != "b-1" {
		t.Fatalf("missing fields: %v", entry)
	}
	if entry["error"] != "boom" {
		t.Fatalf("expected error field, got %v", entry["error"])
	}
}

func TestParseLogLevelDefaultsToInfo(t *testing.T) {
	if parseLogLevel("nonsense").String() != "info" {
		t.Fatal("unknown levels should fall back to info")
	}
	if parseLogLevel("warn").String() != "warn" {
		t.Fatal("warn should parse")
	}
}
