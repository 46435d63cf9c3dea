package emit

import (
	"fmt"
	"sync"
	"testing"
)

func TestBufferedEmitter_History(t *testing.T) {
	b := NewBufferedEmitter()
	b.Emit(Event{RunID: "r1", Wave: -1, Msg: MsgRunStarted})
	b.Emit(Event{RunID: "r1", Wave: 0, NodeID: "a", Msg: MsgNodeCompleted})
	b.Emit(Event{RunID: "r1", Wave: 1, NodeID: "b", Msg: MsgNodeSkipped})
	b.Emit(Event{RunID: "r2", Wave: 0, NodeID: "a", Msg: MsgNodeFailed})

	if got := len(b.GetHistory("r1")); got != 3 {
		t.Errorf("expected 3 events for r1, got %d", got)
	}
	if got := b.GetHistory("missing"); got == nil || len(got) != 0 {
		t.Errorf("expected empty non-nil slice, got %#v", got)
	}

	t.Run("by node", func(t *testing.T) {
		got := b.GetHistoryWithFilter("r1", HistoryFilter{NodeID: "b"})
		if len(got) != 1 || got[0].Msg != MsgNodeSkipped {
			t.Errorf("unexpected events %+v", got)
		}
	})

	t.Run("by wave and msg", func(t *testing.T) {
		wave := 0
		got := b.GetHistoryWithFilter("r1", HistoryFilter{Wave: &wave, Msg: MsgNodeCompleted})
		if len(got) != 1 || got[0].NodeID != "a" {
			t.Errorf("unexpected events %+v", got)
		}
	})

	t.Run("clear", func(t *testing.T) {
		b.Clear("r2")
		if len(b.GetHistory("r2")) != 0 {
			t.Error("expected r2 cleared")
		}
		if len(b.Runs()) != 1 {
			t.Errorf("expected 1 run left, got %v", b.Runs())
		}
		b.Clear("")
		if len(b.Runs()) != 0 {
			t.Errorf("expected all runs cleared, got %v", b.Runs())
		}
	})
}

func TestBufferedEmitter_Concurrent(t *testing.T) {
	b := NewBufferedEmitter()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			b.Emit(Event{RunID: "r", NodeID: fmt.Sprintf("n%d", i), Msg: MsgNodeCompleted})
		}(i)
	}
	wg.Wait()
	if got := len(b.GetHistory("r")); got != 50 {
		t.Errorf("expected 50 events, got %d", got)
	}
}
