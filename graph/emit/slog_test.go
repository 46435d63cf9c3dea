package emit

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestSlogEmitter_Levels(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))
	e := NewSlogEmitter(logger)

	e.Emit(Event{RunID: "r1", Wave: 0, NodeID: "a", NodeType: "merge", Msg: MsgNodeSkipped})
	e.Emit(Event{RunID: "r1", Wave: 0, NodeID: "b", NodeType: "output", Msg: MsgNodeFailed,
		Meta: map[string]interface{}{"error": "boom", "code": "AMBIGUOUS_INPUT"}})
	e.Emit(Event{RunID: "r1", Wave: -1, Msg: MsgRunCompleted})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected skip filtered at info level, got %d lines: %s", len(lines), buf.String())
	}

	var failed map[string]interface{}
	if err := json.Unmarshal([]byte(lines[0]), &failed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if failed["level"] != "WARN" || failed["msg"] != MsgNodeFailed {
		t.Errorf("unexpected record %v", failed)
	}
	if failed["node_id"] != "b" || failed["code"] != "AMBIGUOUS_INPUT" || failed["component"] != "engine" {
		t.Errorf("missing attributes in %v", failed)
	}

	var done map[string]interface{}
	_ = json.Unmarshal([]byte(lines[1]), &done)
	if done["level"] != "INFO" {
		t.Errorf("expected run_completed at INFO, got %v", done["level"])
	}
	if _, ok := done["node_id"]; ok {
		t.Error("run events must not carry node_id")
	}
}
