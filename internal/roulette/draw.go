package roulette

import (
	"context"
	"math/rand/v2"
	"time"
)

// DrawConfig はスロット演出のタイミング設定。
type DrawConfig struct {
	Total       time.Duration // 演出全体の長さ
	Frame       time.Duration // フレーム間隔
	MinInterval time.Duration // 開始直後のコマ送り間隔
	MaxInterval time.Duration // 終了直前のコマ送り間隔
}

// DefaultDrawConfig は12秒かけて140msから520msまで減速する設定を返す。
func DefaultDrawConfig() DrawConfig {
	return DrawConfig{
		Total:       12 * time.Second,
		Frame:       16 * time.Millisecond,
		MinInterval: 140 * time.Millisecond,
		MaxInterval: 520 * time.Millisecond,
	}
}

// Interval は進捗p（0〜1）におけるコマ送り間隔を返す。p²で減速する。
func (c DrawConfig) Interval(p float64) time.Duration {
	p = min(max(p, 0), 1)
	span := float64(c.MaxInterval - c.MinInterval)
	return c.MinInterval + time.Duration(span*p*p)
}

// Draw は抽選プールを1コマずつ送り、最後に止まった名前を当選者とするスロット演出。
// 経過時間だけで状態が決まるため、同じ開始位置なら全ての画面で同じ当選者になる。
type Draw struct {
	names    []string
	cfg      DrawConfig
	idx      int
	lastTick time.Duration
	done     bool
}

// NewDraw はstart位置から始まるDrawを生成する。namesが空の場合はnilを返す。
func NewDraw(names []string, start int, cfg DrawConfig) *Draw {
	if len(names) == 0 {
		return nil
	}
	pool := make([]string, len(names))
	copy(pool, names)
	return &Draw{
		names: pool,
		cfg:   cfg,
		idx:   ((start % len(pool)) + len(pool)) % len(pool),
	}
}

// StartIndex は抽選時刻から開始位置を決める。同じ抽選を見ている画面は同じ位置から始まる。
func StartIndex(spinAt int64, n int) int {
	if n <= 0 {
		return 0
	}
	rng := rand.New(rand.NewPCG(uint64(spinAt), uint64(n)))
	return rng.IntN(n)
}

// Advance は経過時間elapsedのフレームを処理する。
// 前回のコマ送りから現在の間隔以上経っていれば1コマ進める。
// 戻り値movedはコマが進んだか、doneは演出が終了したか。
func (d *Draw) Advance(elapsed time.Duration) (moved, done bool) {
	if d.done {
		return false, true
	}
	p := float64(elapsed) / float64(d.cfg.Total)
	if elapsed-d.lastTick >= d.cfg.Interval(p) {
		d.lastTick = elapsed
		d.idx = (d.idx + 1) % len(d.names)
		moved = true
	}
	if p >= 1 {
		d.done = true
	}
	return moved, d.done
}

// Current は現在表示中の名前を返す。
func (d *Draw) Current() string {
	return d.names[d.idx]
}

// Winner は演出終了後の当選者を返す。終了前はokがfalse。
func (d *Draw) Winner() (name string, ok bool) {
	if !d.done {
		return "", false
	}
	return d.names[d.idx], true
}

// Simulate は待機せずに全フレームを処理して当選者を返す。
func (d *Draw) Simulate() string {
	for elapsed := time.Duration(0); ; elapsed += d.cfg.Frame {
		if _, done := d.Advance(min(elapsed, d.cfg.Total)); done {
			break
		}
	}
	return d.names[d.idx]
}

// Play は実時間でフレームを進め、コマが進むたびにonFrameを呼ぶ。
// 終了時はfinal=trueで当選者を渡す。ctxがキャンセルされた場合はその時点で中断する。
func (d *Draw) Play(ctx context.Context, onFrame func(name string, final bool)) (string, error) {
	ticker := time.NewTicker(d.cfg.Frame)
	defer ticker.Stop()

	start := time.Now()
	onFrame(d.Current(), false)
	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case now := <-ticker.C:
			moved, done := d.Advance(min(now.Sub(start), d.cfg.Total))
			if done {
				onFrame(d.Current(), true)
				return d.Current(), nil
			}
			if moved {
				onFrame(d.Current(), false)
			}
		}
	}
}
