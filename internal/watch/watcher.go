package watch

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/hitoshi/soiree/internal/dashboard"
	"github.com/hitoshi/soiree/internal/filestore"
	"github.com/hitoshi/soiree/internal/model"
	"github.com/hitoshi/soiree/internal/playback"
	"github.com/hitoshi/soiree/internal/roulette"
)

const (
	// DefaultPollInterval はダッシュボードのポーリング間隔の既定値。
	DefaultPollInterval = 7 * time.Second
	// initialMessages は起動直後に表示する過去メッセージの件数。
	initialMessages = 5
)

// DashboardSource はダッシュボードの集約データを提供する。
type DashboardSource interface {
	Dashboard(ctx context.Context) (dashboard.Data, error)
}

// Options はWatcherの設定。
type Options struct {
	PollInterval time.Duration
	TickInterval time.Duration
	Draw         roulette.DrawConfig

	// Seen は演出済みの抽選時刻の保存先。nilの場合は再起動で忘れる。
	Seen   filestore.Store[roulette.SeenState]
	Logger *slog.Logger
}

// Watcher はダッシュボードのポーリング、再生位置のtick、抽選演出を1つのループで回す。
type Watcher struct {
	source  DashboardSource
	screen  *Screen
	tracker *playback.Tracker
	spins   *roulette.SpinWatcher
	opts    Options

	lastMessageID string
	primed        bool

	draws sync.WaitGroup
	mu    sync.Mutex
	busy  bool
}

// NewWatcher はWatcherを生成する。保存済みの演出済み時刻を読み込む。
func NewWatcher(ctx context.Context, source DashboardSource, screen *Screen, opts Options) (*Watcher, error) {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.TickInterval <= 0 {
		opts.TickInterval = playback.DefaultTickInterval
	}
	if opts.Draw.Total <= 0 {
		opts.Draw = roulette.DefaultDrawConfig()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	spins, err := roulette.NewSpinWatcher(ctx, opts.Seen)
	if err != nil {
		return nil, err
	}

	return &Watcher{
		source:  source,
		screen:  screen,
		tracker: playback.NewTracker(),
		spins:   spins,
		opts:    opts,
	}, nil
}

// Start はコンテキストがキャンセルされるまでポーリングとtickを続ける。
// 終了時は実行中の抽選演出の中断を待つ。
func (w *Watcher) Start(ctx context.Context) {
	poll := time.NewTicker(w.opts.PollInterval)
	defer poll.Stop()
	tick := time.NewTicker(w.opts.TickInterval)
	defer tick.Stop()

	w.opts.Logger.Info("watch started",
		slog.Duration("poll_interval", w.opts.PollInterval),
		slog.Duration("tick_interval", w.opts.TickInterval),
	)

	// 起動直後に1回実行
	if w.PollOnce(ctx) {
		tick.Reset(w.opts.TickInterval)
	}

	for {
		select {
		case <-ctx.Done():
			w.draws.Wait()
			w.opts.Logger.Info("watch stopped")
			return
		case <-poll.C:
			if w.PollOnce(ctx) {
				// 曲が変わったらtickの位相を合わせ直す
				tick.Reset(w.opts.TickInterval)
			}
		case <-tick.C:
			w.tracker.Tick()
			w.screen.Progress(w.tracker.Snapshot())
		}
	}
}

// PollOnce はダッシュボードを1回取得して表示を更新する。
// 取得に失敗した場合は前回の表示を維持する。曲が変わった場合はtrueを返す。
func (w *Watcher) PollOnce(ctx context.Context) (resynced bool) {
	data, err := w.source.Dashboard(ctx)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			w.opts.Logger.Warn("dashboard poll failed", slog.String("error", err.Error()))
		}
		return false
	}

	var track *playback.Track
	if c := data.Music.Current; c != nil {
		track = &playback.Track{ID: c.ID, Name: c.Name, Artist: c.Artist}
	}
	resynced = w.tracker.Observe(track, data.Player)
	if resynced || !w.primed {
		w.screen.NowPlaying(data.Music)
	}

	w.showMessages(data.Messages)
	w.primed = true

	pool, spinAt, ok, err := w.spins.Detect(ctx, data.Roulette)
	if err != nil {
		w.opts.Logger.Error("failed to record spin", slog.String("error", err.Error()))
	}
	if ok {
		w.startDraw(ctx, pool, spinAt)
	}
	return resynced
}

// showMessages は前回表示したものより新しいメッセージを古い順に表示する。
// messagesは新しい順に並んでいる。
func (w *Watcher) showMessages(messages []model.WallMessage) {
	if len(messages) == 0 {
		return
	}

	var fresh []model.WallMessage
	for _, m := range messages {
		if m.ID == w.lastMessageID {
			break
		}
		fresh = append(fresh, m)
	}
	if !w.primed {
		fresh = fresh[:min(len(fresh), initialMessages)]
	}
	w.lastMessageID = messages[0].ID

	slices.Reverse(fresh)
	for _, m := range fresh {
		w.screen.Message(m)
	}
}

// startDraw は抽選演出をバックグラウンドで開始する。演出中に届いた抽選は無視する。
func (w *Watcher) startDraw(ctx context.Context, pool []string, spinAt int64) {
	w.mu.Lock()
	if w.busy {
		w.mu.Unlock()
		w.opts.Logger.Info("draw already running, skipping spin", slog.Int64("spin_at", spinAt))
		return
	}
	w.busy = true
	w.mu.Unlock()

	draw := roulette.NewDraw(pool, roulette.StartIndex(spinAt, len(pool)), w.opts.Draw)
	w.screen.DrawStarted(pool)

	w.draws.Add(1)
	go func() {
		defer w.draws.Done()
		defer func() {
			w.mu.Lock()
			w.busy = false
			w.mu.Unlock()
		}()

		winner, err := draw.Play(ctx, w.screen.DrawFrame)
		if err != nil {
			w.screen.DrawAborted()
			return
		}
		w.opts.Logger.Info("draw finished",
			slog.Int64("spin_at", spinAt),
			slog.String("winner", winner),
			slog.Int("pool_size", len(pool)),
		)
	}()
}

// Drawing は抽選演出の実行中かを返す。
func (w *Watcher) Drawing() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.busy
}

// Wait は実行中の抽選演出の終了を待つ。
func (w *Watcher) Wait() {
	w.draws.Wait()
}
