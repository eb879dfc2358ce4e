// Package roulette は「誰が飲む？」ルーレットの参加登録と抽選を提供する。
//
// サーバーは参加者の登録と抽選の合図（lastSpinAt）およびスナップショットの保存のみを行い、
// 当選者は記録しない。当選者の演出はクライアント側のDrawが担う。
package roulette

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hitoshi/soiree/internal/metrics"
	"github.com/hitoshi/soiree/internal/model"
	"github.com/hitoshi/soiree/internal/repository"
)

// errNoChange は更新不要のためUpdateを書き込みなしで終えるための内部エラー。
var errNoChange = errors.New("no change")

// Service はルーレットのサービス層。
type Service struct {
	repo    repository.RouletteRepository
	roster  repository.RosterSource
	metrics metrics.Recorder
	now     func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。recorderがnilの場合は記録しない。
func NewService(repo repository.RouletteRepository, roster repository.RosterSource, recorder metrics.Recorder) *Service {
	if recorder == nil {
		recorder = metrics.Nop{}
	}
	return &Service{
		repo:    repo,
		roster:  roster,
		metrics: recorder,
		now:     time.Now,
	}
}

// Join は参加者を追加する。
// 前後の空白を除いた名前が空の場合、またはすでに参加済み（完全一致）の場合は
// 何も書き込まずに現在の状態を返す。joinedは新たに追加された場合のみtrue。
func (s *Service) Join(ctx context.Context, name string) (state model.RouletteState, joined bool, err error) {
	name = strings.TrimSpace(name)
	if name == "" {
		state, err = s.repo.Load(ctx)
		if err != nil {
			return state, false, fmt.Errorf("ルーレット状態の取得に失敗しました: %w", err)
		}
		return state, false, nil
	}

	state, err = s.repo.Update(ctx, func(st *model.RouletteState) error {
		if st.HasParticipant(name) {
			return errNoChange
		}
		st.Participants = append(st.Participants, name)
		return nil
	})
	if errors.Is(err, errNoChange) {
		return state, false, nil
	}
	if err != nil {
		return state, false, fmt.Errorf("参加登録に失敗しました: %w", err)
	}
	s.metrics.RecordRouletteJoin()
	return state, true, nil
}

// Spin は抽選を行う。参加者をlastParticipantsへ退避し、lastSpinAtを現在時刻にして参加者を空にする。
// 参加者が0人でも成功し、空のスナップショットになる。
func (s *Service) Spin(ctx context.Context) (model.RouletteState, error) {
	now := s.now().UnixMilli()
	state, err := s.repo.Update(ctx, func(st *model.RouletteState) error {
		snapshot := make([]string, len(st.Participants))
		copy(snapshot, st.Participants)
		st.LastParticipants = snapshot
		st.LastSpinAt = &now
		st.Participants = []string{}
		return nil
	})
	if err != nil {
		return state, fmt.Errorf("抽選に失敗しました: %w", err)
	}
	s.metrics.RecordRouletteSpin(len(state.LastParticipants))
	return state, nil
}

// State は現在の状態を返す。
func (s *Service) State(ctx context.Context) (model.RouletteState, error) {
	state, err := s.repo.Load(ctx)
	if err != nil {
		return state, fmt.Errorf("ルーレット状態の取得に失敗しました: %w", err)
	}
	return state, nil
}

// Names は参加登録フォームで選べる名前（名簿）を返す。
func (s *Service) Names() []string {
	if s.roster == nil {
		return []string{}
	}
	return s.roster.Names()
}
