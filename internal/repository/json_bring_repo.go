package repository

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/soiree/internal/filestore"
	"github.com/hitoshi/soiree/internal/model"
)

// JSONBringRepo はqui-ramene.jsonを使用した持ち寄りリストのリポジトリ。
type JSONBringRepo struct {
	store filestore.Store[model.BringList]
}

// NewJSONBringRepo はファイルパスを指定してJSONBringRepoを生成する。
// nowは保存時のupdatedAtに使用する（nilの場合はtime.Now）。
func NewJSONBringRepo(path string, logger *slog.Logger, now func() time.Time) *JSONBringRepo {
	if now == nil {
		now = time.Now
	}
	return NewBringRepo(filestore.NewJSONFile(filestore.JSONFileOptions[model.BringList]{
		Path:      path,
		Defaults:  DefaultBringList,
		Normalize: normalizeBringList,
		BeforeSave: func(l *model.BringList) {
			l.UpdatedAt = now().UnixMilli()
		},
		Logger: logger,
		Now:    now,
	}))
}

// NewBringRepo は任意のStoreを使用してJSONBringRepoを生成する。
func NewBringRepo(store filestore.Store[model.BringList]) *JSONBringRepo {
	return &JSONBringRepo{store: store}
}

func (r *JSONBringRepo) Load(ctx context.Context) (model.BringList, error) {
	return r.store.Load(ctx)
}

func (r *JSONBringRepo) Update(ctx context.Context, fn func(*model.BringList) error) (model.BringList, error) {
	return r.store.Update(ctx, fn)
}

// DefaultBringList はカテゴリごとに1品目ずつ、未担当の4品目を返す。
func DefaultBringList() model.BringList {
	return model.BringList{
		Items: []model.BringItem{
			{ID: uuid.NewString(), Label: "Softs (coca, oasis...)", Category: model.BringCategorySofts},
			{ID: uuid.NewString(), Label: "Alcool (bières / bouteilles)", Category: model.BringCategoryAlcool},
			{ID: uuid.NewString(), Label: "Nourriture (snacks, sucré/salé)", Category: model.BringCategoryFood},
			{ID: uuid.NewString(), Label: "Matériel (enceinte, multiprise…)", Category: model.BringCategoryEquipment},
		},
	}
}

// normalizeBringList はitemsが無いファイルを破損扱いにし、各品目の値を補正する。
func normalizeBringList(l *model.BringList) bool {
	if l.Items == nil {
		return false
	}
	for i := range l.Items {
		item := &l.Items[i]
		if item.ID == "" {
			item.ID = uuid.NewString()
		}
		item.Label = strings.TrimSpace(item.Label)
		item.Category = model.NormalizeBringCategory(string(item.Category))
		item.AssignedTo = strings.TrimSpace(item.AssignedTo)
	}
	return true
}
