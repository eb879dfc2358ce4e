package watch

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/hitoshi/soiree/internal/dashboard"
	"github.com/hitoshi/soiree/internal/model"
	"github.com/hitoshi/soiree/internal/playback"
)

// progressWidth は再生位置バーの文字数。
const progressWidth = 30

// Screen は端末への出力を直列化する。
// 抽選演出の最中は再生位置の更新を表示しない。
type Screen struct {
	mu      sync.Mutex
	w       io.Writer
	drawing bool
}

// NewScreen はwに書き込むScreenを生成する。
func NewScreen(w io.Writer) *Screen {
	return &Screen{w: w}
}

// NowPlaying は再生中の曲と次の曲を表示する。
func (s *Screen) NowPlaying(m dashboard.Music) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if m.Current == nil {
		fmt.Fprintln(s.w, "\n♪ Pas de musique en cours")
		return
	}
	fmt.Fprintf(s.w, "\n♪ %s - %s\n", m.Current.Name, m.Current.Artist)
	if len(m.Next) > 0 {
		names := make([]string, 0, 3)
		for _, t := range m.Next[:min(len(m.Next), 3)] {
			names = append(names, t.Name)
		}
		fmt.Fprintf(s.w, "  ensuite : %s\n", strings.Join(names, ", "))
	}
}

// Progress は再生位置バーを同じ行に上書きして表示する。
func (s *Screen) Progress(snap playback.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.drawing || snap.TrackKey == "" {
		return
	}
	fmt.Fprintf(s.w, "\r  %s %s / %s", progressBar(snap.Percent()), clock(snap.ProgressMs), clock(snap.DurationMs))
}

// Message は壁のメッセージを1行で表示する。
func (s *Screen) Message(m model.WallMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.w, "\n💬 %s : %s\n", m.Name, m.Text)
}

// DrawStarted は抽選演出の開始を表示する。
func (s *Screen) DrawStarted(pool []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.drawing = true
	fmt.Fprintf(s.w, "\n🎰 Roulette de la soif (%d joueurs)\n", len(pool))
}

// DrawFrame は演出中の名前を表示する。finalの場合は当選者として表示し、演出を終える。
func (s *Screen) DrawFrame(name string, final bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if final {
		fmt.Fprintf(s.w, "\r  🍻 %s boit !%s\n", name, strings.Repeat(" ", 10))
		s.drawing = false
		return
	}
	fmt.Fprintf(s.w, "\r  > %-24s", name)
}

// DrawAborted は中断された演出を閉じる。
func (s *Screen) DrawAborted() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.drawing = false
	fmt.Fprintln(s.w)
}

func progressBar(percent float64) string {
	filled := int(percent / 100 * progressWidth)
	filled = min(max(filled, 0), progressWidth)
	return "[" + strings.Repeat("#", filled) + strings.Repeat("-", progressWidth-filled) + "]"
}

// clock はミリ秒を m:ss 形式にする。
func clock(ms int64) string {
	d := time.Duration(max(ms, 0)) * time.Millisecond
	return fmt.Sprintf("%d:%02d", int(d.Minutes()), int(d.Seconds())%60)
}
