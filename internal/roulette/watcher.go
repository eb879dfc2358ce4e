package roulette

import (
	"context"
	"fmt"
	"sync"

	"github.com/hitoshi/soiree/internal/filestore"
	"github.com/hitoshi/soiree/internal/model"
)

// SeenState はSpinWatcherが最後に演出した抽選時刻。
type SeenState struct {
	LastSeen int64 `json:"lastSeen"`
}

// SpinWatcher はポーリングで受け取った状態から新しい抽選を検出する。
// 最後に演出した抽選時刻を保存し、同じ抽選を二度演出しない。
type SpinWatcher struct {
	mu    sync.Mutex
	seen  int64
	store filestore.Store[SeenState]
}

// NewSpinWatcher はSpinWatcherを生成する。storeがnilの場合はメモリ上のみで保持する。
func NewSpinWatcher(ctx context.Context, store filestore.Store[SeenState]) (*SpinWatcher, error) {
	w := &SpinWatcher{store: store}
	if store != nil {
		state, err := store.Load(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load spin watcher state: %w", err)
		}
		w.seen = state.LastSeen
	}
	return w, nil
}

// Detect はstateが未演出の抽選を含む場合に抽選プールを返す。
// lastSpinAtが前回より新しければ既読として記録するが、プールが空の場合は演出しない（okはfalse）。
func (w *SpinWatcher) Detect(ctx context.Context, state model.RouletteState) (pool []string, spinAt int64, ok bool, err error) {
	if state.LastSpinAt == nil {
		return nil, 0, false, nil
	}
	ts := *state.LastSpinAt

	w.mu.Lock()
	defer w.mu.Unlock()

	if ts <= w.seen {
		return nil, 0, false, nil
	}
	w.seen = ts
	if w.store != nil {
		if _, err := w.store.Update(ctx, func(s *SeenState) error {
			s.LastSeen = ts
			return nil
		}); err != nil {
			return nil, 0, false, fmt.Errorf("failed to save spin watcher state: %w", err)
		}
	}

	drawPool := state.DrawPool()
	if len(drawPool) == 0 {
		return nil, ts, false, nil
	}
	pool = make([]string, len(drawPool))
	copy(pool, drawPool)
	return pool, ts, true, nil
}

// LastSeen は最後に検出した抽選時刻を返す。
func (w *SpinWatcher) LastSeen() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.seen
}
