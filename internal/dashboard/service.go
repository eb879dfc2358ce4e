// Package dashboard はプロジェクター向けダッシュボードの集約データを組み立てる。
//
// 音楽・再生状態・メッセージ・ルーレットの各セクションは独立して既定値に縮退し、
// どれかの取得に失敗しても全体は必ず返す。
package dashboard

import (
	"context"
	"log/slog"

	"github.com/hitoshi/soiree/internal/model"
	"github.com/hitoshi/soiree/internal/playback"
	"github.com/hitoshi/soiree/internal/spotify"
)

const (
	// MessageLimit はダッシュボードに表示するメッセージ数。
	MessageLimit = 20
	// NextLimit は「次の曲」に表示するキューの件数。
	NextLimit = 10
)

// MusicSource は再生中のトラックとキュー、再生状態を提供する。
type MusicSource interface {
	Queue(ctx context.Context) (*spotify.Queue, error)
	Player(ctx context.Context) (*spotify.PlayerState, error)
}

// MessageSource は新しい順のメッセージを提供する。
type MessageSource interface {
	Latest(ctx context.Context, n int) ([]model.WallMessage, error)
}

// RouletteSource はルーレットの状態を提供する。
type RouletteSource interface {
	State(ctx context.Context) (model.RouletteState, error)
}

// TrackView は画面表示用のトラック。
type TrackView struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Artist string  `json:"artist"`
	Image  *string `json:"image"`
}

// Music は再生中と次の曲。
type Music struct {
	Current *TrackView  `json:"current"`
	Next    []TrackView `json:"next"`
}

// Data はGET /api/dashboard のレスポンス。
type Data struct {
	Music    Music               `json:"music"`
	Player   playback.Report     `json:"player"`
	Messages []model.WallMessage `json:"messages"`
	Roulette model.RouletteState `json:"roulette"`
}

// Empty はすべてのセクションが既定値のDataを返す。
func Empty() Data {
	return Data{
		Music:    Music{Next: []TrackView{}},
		Player:   playback.Report{},
		Messages: []model.WallMessage{},
		Roulette: model.NewRouletteState(),
	}
}

// Service はダッシュボードの集約を行う。
type Service struct {
	music    MusicSource
	messages MessageSource
	roulette RouletteSource
	logger   *slog.Logger
}

// NewService はServiceを生成する。musicがnilの場合、音楽セクションは常に既定値。
func NewService(music MusicSource, messages MessageSource, roulette RouletteSource, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		music:    music,
		messages: messages,
		roulette: roulette,
		logger:   logger,
	}
}

// Load は集約データを返す。失敗したセクションは既定値のまま返す。
func (s *Service) Load(ctx context.Context) Data {
	data := Empty()

	if s.music != nil {
		if q, err := s.music.Queue(ctx); err != nil {
			s.logger.Debug("dashboard music unavailable", slog.String("error", err.Error()))
		} else {
			data.Music = musicView(q)
		}

		if p, err := s.music.Player(ctx); err != nil {
			s.logger.Debug("dashboard player unavailable", slog.String("error", err.Error()))
		} else if p != nil {
			playing := p.Report.IsPlaying()
			data.Player = playback.Report{
				ProgressMs: p.Report.ProgressMs,
				DurationMs: p.Report.DurationMs,
				Playing:    &playing,
			}
		}
	}

	if s.messages != nil {
		if msgs, err := s.messages.Latest(ctx, MessageLimit); err != nil {
			s.logger.Warn("dashboard messages unavailable", slog.String("error", err.Error()))
		} else if msgs != nil {
			data.Messages = msgs
		}
	}

	if s.roulette != nil {
		if st, err := s.roulette.State(ctx); err != nil {
			s.logger.Warn("dashboard roulette unavailable", slog.String("error", err.Error()))
		} else {
			data.Roulette = st
		}
	}

	return data
}

// musicView は再生中（画像は0番→1番）と次の曲（画像は2番）を組み立てる。
func musicView(q *spotify.Queue) Music {
	m := Music{Next: []TrackView{}}
	if q == nil {
		return m
	}
	if q.CurrentlyPlaying != nil {
		cur := trackView(*q.CurrentlyPlaying, 0, 1)
		m.Current = &cur
	}
	for i, t := range q.Queue {
		if i >= NextLimit {
			break
		}
		m.Next = append(m.Next, trackView(t, 2))
	}
	return m
}

func trackView(t spotify.Track, images ...int) TrackView {
	v := TrackView{ID: t.ID, Name: t.Name, Artist: t.ArtistNames()}
	if url := t.ImageURL(images...); url != "" {
		v.Image = &url
	}
	return v
}
