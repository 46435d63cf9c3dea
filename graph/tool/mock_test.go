package tool

import (
	"context"
	"errors"
	"testing"
)

func TestMockTool_Responses(t *testing.T) {
	m := &MockTool{Responses: []map[string]interface{}{{"n": 1}, {"n": 2}}}
	ctx := context.Background()

	for i, want := range []int{1, 2, 2} {
		got, err := m.Call(ctx, map[string]interface{}{"i": i})
		if err != nil {
			t.Fatalf("call %d: unexpected error: %v", i, err)
		}
		if got["n"] != want {
			t.Errorf("call %d: expected n=%d, got %v", i, want, got["n"])
		}
	}
	if m.CallCount() != 3 {
		t.Errorf("expected 3 calls, got %d", m.CallCount())
	}
	if m.Calls()[1]["i"] != 1 {
		t.Errorf("expected second call input i=1, got %v", m.Calls()[1]["i"])
	}
	if m.Name() != "mock" {
		t.Errorf("expected default name mock, got %q", m.Name())
	}
}

func TestMockTool_HandleAndErr(t *testing.T) {
	m := &MockTool{Handle: func(in map[string]interface{}) (map[string]interface{}, error) {
		return map[string]interface{}{"echo": in["url"]}, nil
	}}
	got, _ := m.Call(context.Background(), map[string]interface{}{"url": "u"})
	if got["echo"] != "u" {
		t.Errorf("expected echo u, got %v", got["echo"])
	}

	boom := errors.New("boom")
	m = &MockTool{Err: boom}
	if _, err := m.Call(context.Background(), nil); !errors.Is(err, boom) {
		t.Errorf("expected boom, got %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := m.Call(ctx, nil); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
