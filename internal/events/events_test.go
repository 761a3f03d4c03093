package events

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestBus_DeliversToMatchingSubscribers(t *testing.T) {
	b := NewBus(0)
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	b.now = func() time.Time { return fixed }

	demo, stopDemo := b.Subscribe("demo", 4)
	defer stopDemo()
	all, stopAll := b.Subscribe("", 4)
	defer stopAll()

	b.Emit("demo", ScriptUpdated, map[string]any{"version": 2})
	b.Emit("other", ProjectStats, nil)

	got := <-demo
	if got.Event != ScriptUpdated || got.ProjectID != "demo" || got.ID == "" || !got.At.Equal(fixed) {
		t.Errorf("envelope = %+v", got)
	}
	select {
	case extra := <-demo:
		t.Errorf("demo subscriber got foreign event %+v", extra)
	default:
	}
	if first, second := <-all, <-all; first.ProjectID != "demo" || second.ProjectID != "other" {
		t.Errorf("all subscriber got %s then %s", first.ProjectID, second.ProjectID)
	}
}

func TestBus_NeverBlocks(t *testing.T) {
	b := NewBus(0)
	_, stop := b.Subscribe("demo", 1)
	defer stop()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			b.Emit("demo", ProjectStats, i)
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Emit blocked on a full subscriber")
	}
	if b.Dropped() != 9 {
		t.Errorf("dropped = %d, want 9", b.Dropped())
	}
}

func TestBus_EmitWithoutSubscribers(t *testing.T) {
	b := NewBus(0)
	b.Emit("demo", ReportStale, nil)
	if got := b.Since("demo", 0); len(got) != 1 {
		t.Errorf("log = %d entries, want 1", len(got))
	}
}

func TestBus_UnsubscribeClosesChannel(t *testing.T) {
	b := NewBus(0)
	ch, stop := b.Subscribe("demo", 1)
	stop()
	stop()
	if _, ok := <-ch; ok {
		t.Error("channel still open after unsubscribe")
	}
	b.Emit("demo", ProjectStatus, nil)
}

func TestBus_SinceIsBounded(t *testing.T) {
	b := NewBus(3)
	for i := 0; i < 5; i++ {
		b.Emit("demo", ProjectStats, i)
	}
	b.Emit("other", ProjectStats, 99)

	got := b.Since("demo", 0)
	if len(got) != 2 || got[0].Data != 3 || got[1].Data != 4 || got[0].Seq != 4 || got[1].Seq != 5 {
		t.Errorf("Since(demo, 0) = %+v", got)
	}
	if got := b.Since("", 6); len(got) != 1 || got[0].Data != 99 {
		t.Errorf("Since(all, 6) = %+v", got)
	}
	if got := b.Since("demo", 6); got != nil {
		t.Errorf("Since past end = %+v", got)
	}
}

func TestBus_SinceSurvivesTrimming(t *testing.T) {
	b := NewBus(4)
	var cursor int
	var seen []any
	poll := func() {
		for _, env := range b.Since("demo", cursor) {
			seen = append(seen, env.Data)
			cursor = env.Seq + 1
		}
	}
	for i := 0; i < 3; i++ {
		b.Emit("demo", ProjectStats, i)
	}
	poll()
	// Trims the log past the cursor's original position.
	for i := 3; i < 6; i++ {
		b.Emit("demo", ProjectStats, i)
	}
	poll()

	if diff := cmp.Diff([]any{0, 1, 2, 3, 4, 5}, seen); diff != "" {
		t.Errorf("polled events mismatch (-want +got):\n%s", diff)
	}
}

func TestDiscard(t *testing.T) {
	var s Sink = Discard{}
	s.Emit("demo", ProjectStats, nil)
}
