// Package repository はデータ永続化のインターフェースと実装を定義する。
//
// メッセージ、持ち寄りリスト、ルーレットはJSONファイル（filestore）に、
// 出欠（RSVP）はSQLテーブルに保存する。
package repository

import (
	"context"

	"github.com/hitoshi/soiree/internal/model"
)

// MessageRepository はメッセージウォールの永続化インターフェース。
type MessageRepository interface {
	// List は新しい順のメッセージ一覧を返す。
	List(ctx context.Context) ([]model.WallMessage, error)

	// Prepend はメッセージを先頭に追加し、max件を超えた古いメッセージを削除する。
	Prepend(ctx context.Context, msg model.WallMessage, max int) error
}

// BringRepository は持ち寄りリストの永続化インターフェース。
type BringRepository interface {
	// Load は現在のリストを返す。未作成・破損時は既定の4品目で作り直す。
	Load(ctx context.Context) (model.BringList, error)

	// Update はリストにfnを適用して保存する。fnがエラーを返した場合は保存しない。
	Update(ctx context.Context, fn func(*model.BringList) error) (model.BringList, error)
}

// RouletteRepository はルーレット状態の永続化インターフェース。
type RouletteRepository interface {
	Load(ctx context.Context) (model.RouletteState, error)
	Update(ctx context.Context, fn func(*model.RouletteState) error) (model.RouletteState, error)
}

// RSVPRepository は出欠回答の永続化インターフェース。
type RSVPRepository interface {
	// Create は回答を保存し、採番されたIDと作成日時をrsvpに設定する。
	Create(ctx context.Context, rsvp *model.RSVP) error

	// List は全回答を新しい順で返す。
	List(ctx context.Context) ([]*model.RSVP, error)
}

// RosterSource は参加予定者の名簿を提供する。
type RosterSource interface {
	Names() []string
}

// TokenStore はSpotifyのリフレッシュトークンを保存する。
type TokenStore interface {
	Read() (string, error)
	Write(token string) error
}
