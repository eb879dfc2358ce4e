package playback

import (
	"sync"
	"time"
)

const (
	// DefaultDriftThreshold を超えるずれがあればサーバーの値に合わせる。
	DefaultDriftThreshold = 2500 * time.Millisecond
	// DefaultTickInterval はローカルで再生位置を進める間隔。
	DefaultTickInterval = time.Second
)

// Track は再生中のトラックの識別に使う情報。
type Track struct {
	ID     string
	Name   string
	Artist string
}

// Key はトラックの識別子を返す。IDが無い場合は "名前__アーティスト"。
func (t Track) Key() string {
	if t.ID != "" {
		return t.ID
	}
	return t.Name + "__" + t.Artist
}

// Snapshot はTrackerの現在値。
type Snapshot struct {
	TrackKey   string
	ProgressMs int64
	DurationMs int64
	Playing    bool
}

// Percent は再生位置の割合（0〜100）を返す。長さが0の場合は0。
func (s Snapshot) Percent() float64 {
	if s.DurationMs <= 0 {
		return 0
	}
	return min(max(float64(s.ProgressMs)/float64(s.DurationMs)*100, 0), 100)
}

// Tracker はポーリング結果とローカルのtickから表示用の再生位置を求める。
// 同じトラックの間は、ずれが閾値以下ならローカルの値を維持するため、表示が巻き戻らない。
type Tracker struct {
	mu        sync.Mutex
	key       string
	hasTrack  bool
	progress  int64
	duration  int64
	playing   bool
	threshold int64
	step      int64
}

// NewTracker は閾値2500ms、tick 1000msのTrackerを生成する。
// 初期状態は再生中として扱う（最初の報告で再生フラグが不明でも進むように）。
func NewTracker() *Tracker {
	return &Tracker{
		playing:   true,
		threshold: DefaultDriftThreshold.Milliseconds(),
		step:      DefaultTickInterval.Milliseconds(),
	}
}

// Observe はポーリング結果を反映する。trackがnilの場合は再生していないものとしてリセットする。
// トラックが変わった場合は報告値に合わせ、resynced=trueを返す（呼び出し側はtickのタイマーを再始動する）。
func (t *Tracker) Observe(track *Track, r Report) (resynced bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if track == nil {
		t.key = ""
		t.hasTrack = false
		t.progress = 0
		t.duration = 0
		t.playing = false
		return false
	}

	if r.Playing != nil {
		t.playing = *r.Playing
	}

	key := track.Key()
	if !t.hasTrack || t.key != key {
		t.key = key
		t.hasTrack = true
		t.duration = r.DurationMs
		t.progress = r.ProgressMs
		return true
	}

	t.duration = r.DurationMs
	if abs(t.progress-r.ProgressMs) > t.threshold {
		t.progress = r.ProgressMs
	}
	return false
}

// Tick はローカルの再生位置を1ステップ進める。
// トラックがあり、長さが分かっていて、再生中の場合のみ進め、[0, 長さ]に収める。
func (t *Tracker) Tick() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.hasTrack || t.duration <= 0 || !t.playing {
		return
	}
	t.progress = min(max(t.progress+t.step, 0), t.duration)
}

// Snapshot は現在値を返す。
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Snapshot{
		TrackKey:   t.key,
		ProgressMs: t.progress,
		DurationMs: t.duration,
		Playing:    t.playing,
	}
}

func abs(n int64) int64 {
	if n < 0 {
		return -n
	}
	return n
}
