// Package bring は「qui-ramene」（誰が何を持ってくるか）リストのドメインロジックを提供する。
//
// 担当者の設定・解除は誰でも行えるが、品目名・カテゴリの変更と削除は管理者コードが必要。
package bring

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/hitoshi/soiree/internal/model"
	"github.com/hitoshi/soiree/internal/repository"
	"github.com/hitoshi/soiree/internal/security"
)

// 各フィールドの上限（文字数）。
const (
	LabelMaxLen      = 80
	AssignedToMaxLen = 40
)

// AdminChecker は管理者コードを検証する。
type AdminChecker interface {
	Allows(code string) bool
}

// View はGET /api/qui-ramene のレスポンスとなるリストと名簿。
type View struct {
	Items     []model.BringItem `json:"items"`
	UpdatedAt int64             `json:"updatedAt"`
	People    []string          `json:"people"`
}

// PatchInput は品目の部分更新の入力。nilのフィールドは変更しない。
type PatchInput struct {
	ID         string
	AssignedTo *string
	Label      *string
	Category   *string
	AdminCode  string
}

// Service は持ち寄りリストのサービス層。
type Service struct {
	repo      repository.BringRepository
	roster    repository.RosterSource
	admin     AdminChecker
	sanitizer security.TextSanitizerService
	newID     func() string
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	repo repository.BringRepository,
	roster repository.RosterSource,
	admin AdminChecker,
	sanitizer security.TextSanitizerService,
) *Service {
	return &Service{
		repo:      repo,
		roster:    roster,
		admin:     admin,
		sanitizer: sanitizer,
		newID:     uuid.NewString,
	}
}

// List はリストと名簿を返す。
func (s *Service) List(ctx context.Context) (View, error) {
	list, err := s.repo.Load(ctx)
	if err != nil {
		return View{}, fmt.Errorf("持ち寄りリストの取得に失敗しました: %w", err)
	}
	return s.view(list), nil
}

// Add は品目を先頭に追加する。不正なカテゴリはNourritureになる。
func (s *Service) Add(ctx context.Context, label, category string) (View, error) {
	label = s.clean(label, LabelMaxLen)
	if label == "" {
		return View{}, model.NewValidationError("label required")
	}

	item := model.BringItem{
		ID:       s.newID(),
		Label:    label,
		Category: model.NormalizeBringCategory(strings.TrimSpace(category)),
	}
	list, err := s.repo.Update(ctx, func(l *model.BringList) error {
		l.Items = append([]model.BringItem{item}, l.Items...)
		return nil
	})
	if err != nil {
		return View{}, fmt.Errorf("品目の追加に失敗しました: %w", err)
	}
	return s.view(list), nil
}

// Patch は品目を部分更新する。
// 存在しない品目はnot found。品目名・カテゴリの変更が含まれる場合は管理者コードが必要で、
// 拒否時は何も保存しない。
// 編集時の不正なカテゴリは無視する。
func (s *Service) Patch(ctx context.Context, in PatchInput) (View, error) {
	id := strings.TrimSpace(in.ID)
	if id == "" {
		return View{}, model.NewValidationError("id required")
	}
	editsDetails := in.Label != nil || in.Category != nil

	list, err := s.repo.Update(ctx, func(l *model.BringList) error {
		item := l.FindItem(id)
		if item == nil {
			return model.NewNotFoundError()
		}
		if editsDetails && !s.isAdmin(in.AdminCode) {
			return model.NewAdminOnlyError()
		}
		if in.Label != nil {
			label := s.clean(*in.Label, LabelMaxLen)
			if label == "" {
				return model.NewValidationError("label required")
			}
			item.Label = label
		}
		if in.AssignedTo != nil {
			item.AssignedTo = s.clean(*in.AssignedTo, AssignedToMaxLen)
		}
		if in.Category != nil {
			if c := model.BringCategory(strings.TrimSpace(*in.Category)); c.IsValid() {
				item.Category = c
			}
		}
		return nil
	})
	if err != nil {
		var apiErr *model.APIError
		if errors.As(err, &apiErr) {
			return View{}, apiErr
		}
		return View{}, fmt.Errorf("品目の更新に失敗しました: %w", err)
	}
	return s.view(list), nil
}

// Delete は品目を削除する。管理者のみ実行できる。
func (s *Service) Delete(ctx context.Context, id, adminCode string) (View, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return View{}, model.NewValidationError("id required")
	}
	if !s.isAdmin(adminCode) {
		return View{}, model.NewAdminOnlyError()
	}

	list, err := s.repo.Update(ctx, func(l *model.BringList) error {
		kept := make([]model.BringItem, 0, len(l.Items))
		for _, item := range l.Items {
			if item.ID != id {
				kept = append(kept, item)
			}
		}
		l.Items = kept
		return nil
	})
	if err != nil {
		return View{}, fmt.Errorf("品目の削除に失敗しました: %w", err)
	}
	return s.view(list), nil
}

func (s *Service) isAdmin(code string) bool {
	return s.admin != nil && s.admin.Allows(code)
}

func (s *Service) view(list model.BringList) View {
	people := []string{}
	if s.roster != nil {
		people = s.roster.Names()
	}
	items := list.Items
	if items == nil {
		items = []model.BringItem{}
	}
	return View{Items: items, UpdatedAt: list.UpdatedAt, People: people}
}

// clean はマークアップを除去し、文字数の上限で切り詰める。
func (s *Service) clean(raw string, max int) string {
	v := strings.TrimSpace(raw)
	if s.sanitizer != nil {
		v = s.sanitizer.Clean(v)
	}
	if r := []rune(v); len(r) > max {
		v = strings.TrimSpace(string(r[:max]))
	}
	return v
}
