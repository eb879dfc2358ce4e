package repository

import (
	"context"
	"log/slog"

	"github.com/hitoshi/soiree/internal/filestore"
	"github.com/hitoshi/soiree/internal/model"
)

// JSONRouletteRepo はroulette.jsonを使用したルーレット状態のリポジトリ。
type JSONRouletteRepo struct {
	store filestore.Store[model.RouletteState]
}

// NewJSONRouletteRepo はファイルパスを指定してJSONRouletteRepoを生成する。
// 欠けているキーは既定値（空配列、null）で補う。
func NewJSONRouletteRepo(path string, logger *slog.Logger) *JSONRouletteRepo {
	return NewRouletteRepo(filestore.NewJSONFile(filestore.JSONFileOptions[model.RouletteState]{
		Path:     path,
		Defaults: model.NewRouletteState,
		Normalize: func(s *model.RouletteState) bool {
			if s.Participants == nil {
				s.Participants = []string{}
			}
			if s.LastParticipants == nil {
				s.LastParticipants = []string{}
			}
			return true
		},
		Logger: logger,
	}))
}

// NewRouletteRepo は任意のStoreを使用してJSONRouletteRepoを生成する。
func NewRouletteRepo(store filestore.Store[model.RouletteState]) *JSONRouletteRepo {
	return &JSONRouletteRepo{store: store}
}

func (r *JSONRouletteRepo) Load(ctx context.Context) (model.RouletteState, error) {
	return r.store.Load(ctx)
}

func (r *JSONRouletteRepo) Update(ctx context.Context, fn func(*model.RouletteState) error) (model.RouletteState, error) {
	return r.store.Update(ctx, fn)
}
