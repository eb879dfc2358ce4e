// Package wall はメッセージウォール（ゲストの一言投稿）のドメインロジックを提供する。
package wall

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/soiree/internal/metrics"
	"github.com/hitoshi/soiree/internal/model"
	"github.com/hitoshi/soiree/internal/repository"
	"github.com/hitoshi/soiree/internal/security"
)

// DefaultMaxMessages は保持するメッセージ数の既定値。
const DefaultMaxMessages = 200

// Service はメッセージウォールのサービス層。
type Service struct {
	repo      repository.MessageRepository
	sanitizer security.TextSanitizerService
	metrics   metrics.Recorder
	max       int
	now       func() time.Time
	newID     func() string
}

// NewService はServiceの新しいインスタンスを生成する。maxが0以下の場合は200件。
func NewService(
	repo repository.MessageRepository,
	sanitizer security.TextSanitizerService,
	recorder metrics.Recorder,
	max int,
) *Service {
	if max <= 0 {
		max = DefaultMaxMessages
	}
	if recorder == nil {
		recorder = metrics.Nop{}
	}
	return &Service{
		repo:      repo,
		sanitizer: sanitizer,
		metrics:   recorder,
		max:       max,
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// Post はメッセージを投稿する。
// マークアップを除去してから名前は24文字、本文は240文字に切り詰める。
// 本文が空の場合は検証エラー、名前が空の場合は "Anonyme" とする。
func (s *Service) Post(ctx context.Context, name, text string) (model.WallMessage, error) {
	name = truncateRunes(s.sanitizer.Clean(name), model.MessageNameMaxLen)
	text = truncateRunes(s.sanitizer.Clean(text), model.MessageTextMaxLen)

	if text == "" {
		return model.WallMessage{}, model.NewValidationError("Message vide")
	}
	if name == "" {
		name = model.DefaultMessageAuthor
	}

	msg := model.WallMessage{
		ID:        s.newID(),
		Name:      name,
		Text:      text,
		CreatedAt: s.now().UnixMilli(),
	}
	if err := s.repo.Prepend(ctx, msg, s.max); err != nil {
		return model.WallMessage{}, fmt.Errorf("メッセージの保存に失敗しました: %w", err)
	}
	s.metrics.RecordMessagePosted()
	return msg, nil
}

// List は新しい順のメッセージ一覧を返す。
func (s *Service) List(ctx context.Context) ([]model.WallMessage, error) {
	msgs, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("メッセージ一覧の取得に失敗しました: %w", err)
	}
	return msgs, nil
}

// Latest は新しい順に最大n件を返す。
func (s *Service) Latest(ctx context.Context, n int) ([]model.WallMessage, error) {
	msgs, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	if len(msgs) > n {
		msgs = msgs[:n]
	}
	return msgs, nil
}

// truncateRunes は文字（rune）単位で切り詰め、前後の空白を除去する。
func truncateRunes(s string, n int) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if len(r) > n {
		s = strings.TrimSpace(string(r[:n]))
	}
	return s
}
