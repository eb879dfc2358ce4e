package watch

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hitoshi/soiree/internal/dashboard"
	"github.com/hitoshi/soiree/internal/filestore"
	"github.com/hitoshi/soiree/internal/model"
	"github.com/hitoshi/soiree/internal/playback"
	"github.com/hitoshi/soiree/internal/roulette"
)

// syncBuffer は抽選演出のゴルーチンと共有するためのbytes.Buffer。
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func (b *syncBuffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf.Reset()
}

type mockSource struct {
	mu   sync.Mutex
	data dashboard.Data
	err  error
}

func (m *mockSource) Dashboard(ctx context.Context) (dashboard.Data, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data, m.err
}

func (m *mockSource) set(fn func(*dashboard.Data)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fn(&m.data)
}

func fastDraw() roulette.DrawConfig {
	return roulette.DrawConfig{
		Total:       40 * time.Millisecond,
		Frame:       time.Millisecond,
		MinInterval: time.Millisecond,
		MaxInterval: 3 * time.Millisecond,
	}
}

func newTestWatcher(t *testing.T, source DashboardSource, seen filestore.Store[roulette.SeenState]) (*Watcher, *syncBuffer) {
	t.Helper()
	var logs bytes.Buffer
	out := &syncBuffer{}
	w, err := NewWatcher(context.Background(), source, NewScreen(out), Options{
		Draw:   fastDraw(),
		Seen:   seen,
		Logger: newTestLogger(&logs),
	})
	if err != nil {
		t.Fatalf("NewWatcher がエラーを返した: %v", err)
	}
	return w, out
}

func ptr[T any](v T) *T { return &v }

func messages(ids ...string) []model.WallMessage {
	out := make([]model.WallMessage, 0, len(ids))
	for _, id := range ids {
		out = append(out, model.WallMessage{ID: id, Name: "n" + id, Text: "text " + id})
	}
	return out
}

func TestWatcher_PollOnce_ShowsTrackAndMessages(t *testing.T) {
	source := &mockSource{data: dashboard.Empty()}
	source.set(func(d *dashboard.Data) {
		d.Music.Current = &dashboard.TrackView{ID: "t1", Name: "Song", Artist: "Band"}
		d.Player = playback.Report{ProgressMs: 1000, DurationMs: 60000, Playing: ptr(true)}
		d.Messages = messages("m3", "m2", "m1")
	})
	w, out := newTestWatcher(t, source, nil)

	if !w.PollOnce(context.Background()) {
		t.Error("最初の曲では resynced=true になること")
	}
	got := out.String()
	if !strings.Contains(got, "♪ Song - Band") {
		t.Errorf("再生中の曲が表示されていない: %q", got)
	}
	// 古い順に表示される
	if i1, i3 := strings.Index(got, "text m1"), strings.Index(got, "text m3"); i1 < 0 || i3 < 0 || i1 > i3 {
		t.Errorf("メッセージの順序が不正: %q", got)
	}

	out.Reset()
	source.set(func(d *dashboard.Data) { d.Messages = messages("m4", "m3", "m2", "m1") })
	if w.PollOnce(context.Background()) {
		t.Error("同じ曲では resynced=false になること")
	}
	got = out.String()
	if !strings.Contains(got, "text m4") || strings.Contains(got, "text m3") {
		t.Errorf("新しいメッセージのみ表示すること: %q", got)
	}
	if strings.Contains(got, "♪") {
		t.Errorf("同じ曲は再表示しないこと: %q", got)
	}
}

func TestWatcher_PollOnce_LimitsInitialMessages(t *testing.T) {
	source := &mockSource{data: dashboard.Empty()}
	source.set(func(d *dashboard.Data) { d.Messages = messages("m8", "m7", "m6", "m5", "m4", "m3", "m2", "m1") })
	w, out := newTestWatcher(t, source, nil)

	w.PollOnce(context.Background())

	if n := strings.Count(out.String(), "💬"); n != initialMessages {
		t.Errorf("表示件数 = %d, want %d", n, initialMessages)
	}
	if strings.Contains(out.String(), "text m3") {
		t.Errorf("古いメッセージは表示しないこと: %q", out.String())
	}
}

func TestWatcher_PollOnce_ErrorKeepsState(t *testing.T) {
	source := &mockSource{data: dashboard.Empty()}
	source.set(func(d *dashboard.Data) {
		d.Music.Current = &dashboard.TrackView{ID: "t1", Name: "Song", Artist: "Band"}
		d.Player = playback.Report{ProgressMs: 5000, DurationMs: 60000, Playing: ptr(true)}
	})
	w, _ := newTestWatcher(t, source, nil)
	w.PollOnce(context.Background())

	source.err = errors.New("connection refused")
	if w.PollOnce(context.Background()) {
		t.Error("取得失敗時は resynced=false")
	}
	if snap := w.tracker.Snapshot(); snap.TrackKey != "t1" || snap.ProgressMs != 5000 {
		t.Errorf("取得失敗時は前回の状態を維持すること: %+v", snap)
	}
}

func TestWatcher_PlaysEachSpinOnce(t *testing.T) {
	source := &mockSource{data: dashboard.Empty()}
	source.set(func(d *dashboard.Data) {
		d.Roulette.LastSpinAt = ptr(int64(1700000000000))
		d.Roulette.LastParticipants = []string{"Alice", "Bob", "Chloé"}
	})
	seen := filestore.NewMemory(func() roulette.SeenState { return roulette.SeenState{} }, nil)
	w, out := newTestWatcher(t, source, seen)

	w.PollOnce(context.Background())
	w.Wait()

	got := out.String()
	if strings.Count(got, "🎰") != 1 || !strings.Contains(got, "boit !") {
		t.Fatalf("抽選演出が表示されていない: %q", got)
	}
	if w.Drawing() {
		t.Error("演出終了後は Drawing=false")
	}

	w.PollOnce(context.Background())
	w.Wait()
	if strings.Count(out.String(), "🎰") != 1 {
		t.Error("同じ抽選を二度演出しないこと")
	}

	// 再起動しても保存済みの抽選は演出しない
	restarted, out2 := newTestWatcher(t, source, seen)
	restarted.PollOnce(context.Background())
	restarted.Wait()
	if strings.Contains(out2.String(), "🎰") {
		t.Errorf("再起動後に演出済みの抽選を再生しないこと: %q", out2.String())
	}
}

func TestWatcher_StartStopsOnCancel(t *testing.T) {
	source := &mockSource{data: dashboard.Empty()}
	var logs bytes.Buffer
	w, err := NewWatcher(context.Background(), source, NewScreen(&syncBuffer{}), Options{
		PollInterval: 5 * time.Millisecond,
		TickInterval: time.Millisecond,
		Logger:       newTestLogger(&logs),
	})
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("キャンセル後に Start が終了しない")
	}
}
