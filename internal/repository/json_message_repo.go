package repository

import (
	"context"
	"log/slog"

	"github.com/hitoshi/soiree/internal/filestore"
	"github.com/hitoshi/soiree/internal/model"
)

// JSONMessageRepo はmessages.json（メッセージの配列）を使用したリポジトリ。
type JSONMessageRepo struct {
	store filestore.Store[[]model.WallMessage]
}

// NewJSONMessageRepo はファイルパスを指定してJSONMessageRepoを生成する。
func NewJSONMessageRepo(path string, logger *slog.Logger) *JSONMessageRepo {
	return NewMessageRepo(filestore.NewJSONFile(filestore.JSONFileOptions[[]model.WallMessage]{
		Path:     path,
		Defaults: func() []model.WallMessage { return []model.WallMessage{} },
		Normalize: func(msgs *[]model.WallMessage) bool {
			if *msgs == nil {
				*msgs = []model.WallMessage{}
			}
			return true
		},
		Logger: logger,
	}))
}

// NewMessageRepo は任意のStoreを使用してJSONMessageRepoを生成する。
func NewMessageRepo(store filestore.Store[[]model.WallMessage]) *JSONMessageRepo {
	return &JSONMessageRepo{store: store}
}

// List は新しい順のメッセージ一覧を返す。
func (r *JSONMessageRepo) List(ctx context.Context) ([]model.WallMessage, error) {
	return r.store.Load(ctx)
}

// Prepend はメッセージを先頭に追加し、max件に切り詰める。
func (r *JSONMessageRepo) Prepend(ctx context.Context, msg model.WallMessage, max int) error {
	_, err := r.store.Update(ctx, func(msgs *[]model.WallMessage) error {
		next := make([]model.WallMessage, 0, len(*msgs)+1)
		next = append(next, msg)
		next = append(next, *msgs...)
		if max > 0 && len(next) > max {
			next = next[:max]
		}
		*msgs = next
		return nil
	})
	return err
}
