// Package rsvp は出欠回答の受付と管理者向けの一覧を提供する。
package rsvp

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/hitoshi/soiree/internal/metrics"
	"github.com/hitoshi/soiree/internal/model"
	"github.com/hitoshi/soiree/internal/repository"
)

// 各フィールドの上限（文字数）。
const (
	NameMaxLen   = 80
	PhoneMaxLen  = 40
	NoteMaxLen   = 300
	StatusMaxLen = 10
)

// AdminChecker は管理者コードを検証する。
type AdminChecker interface {
	Allows(code string) bool
}

// Request はPOST /api/rsvp のリクエストボディ。
// guestsは数値・数値文字列のどちらでも受け付ける。
type Request struct {
	Name   string `json:"name"`
	Phone  string `json:"phone"`
	Note   string `json:"note"`
	Status string `json:"status"`
	Guests any    `json:"guests"`
}

// Totals はステータスごとの集計。
type Totals struct {
	Responses int `json:"responses"`
	Guests    int `json:"guests"`
}

// Summary は管理者向けの一覧と集計。
type Summary struct {
	RSVPs  []*model.RSVP               `json:"rsvps"`
	Totals map[model.RSVPStatus]Totals `json:"totals"`
}

// Service は出欠回答のサービス層。
type Service struct {
	repo    repository.RSVPRepository
	admin   AdminChecker
	metrics metrics.Recorder
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(repo repository.RSVPRepository, admin AdminChecker, recorder metrics.Recorder) *Service {
	if recorder == nil {
		recorder = metrics.Nop{}
	}
	return &Service{repo: repo, admin: admin, metrics: recorder}
}

// Submit は回答を検証して保存する。
func (s *Service) Submit(ctx context.Context, req Request) (*model.RSVP, error) {
	name := truncate(req.Name, NameMaxLen)
	phone := truncate(req.Phone, PhoneMaxLen)
	note := truncate(req.Note, NoteMaxLen)
	status := model.RSVPStatus(truncate(req.Status, StatusMaxLen))

	if name == "" {
		return nil, model.NewValidationError("Nom requis.")
	}
	if !status.IsValid() {
		return nil, model.NewValidationError("Statut invalide.")
	}
	guests, ok := parseGuests(req.Guests)
	if !ok {
		return nil, model.NewValidationError("Invités: 1 à 6.")
	}

	rsvp := &model.RSVP{
		Name:   name,
		Phone:  phone,
		Note:   note,
		Status: status,
		Guests: guests,
	}
	if err := s.repo.Create(ctx, rsvp); err != nil {
		return nil, fmt.Errorf("出欠回答の保存に失敗しました: %w", err)
	}
	s.metrics.RecordRSVP(string(status))
	return rsvp, nil
}

// List は全回答とステータスごとの集計を返す。管理者のみ実行できる。
func (s *Service) List(ctx context.Context, adminCode string) (Summary, error) {
	if s.admin == nil || !s.admin.Allows(adminCode) {
		return Summary{}, model.NewAdminOnlyError()
	}

	rsvps, err := s.repo.List(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("出欠回答一覧の取得に失敗しました: %w", err)
	}
	if rsvps == nil {
		rsvps = []*model.RSVP{}
	}

	totals := map[model.RSVPStatus]Totals{
		model.RSVPStatusYes:   {},
		model.RSVPStatusMaybe: {},
		model.RSVPStatusNo:    {},
	}
	for _, r := range rsvps {
		t := totals[r.Status]
		t.Responses++
		t.Guests += r.Guests
		totals[r.Status] = t
	}
	return Summary{RSVPs: rsvps, Totals: totals}, nil
}

// parseGuests は同伴人数を解釈する。未指定の場合は1。
func parseGuests(v any) (int, bool) {
	var f float64
	switch g := v.(type) {
	case nil:
		return model.RSVPMinGuests, true
	case float64:
		f = g
	case int:
		f = float64(g)
	case string:
		s := strings.TrimSpace(g)
		if s == "" {
			return 0, false
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}

	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	if f < model.RSVPMinGuests || f > model.RSVPMaxGuests {
		return 0, false
	}
	return int(f), true
}

func truncate(s string, max int) string {
	s = strings.TrimSpace(s)
	if r := []rune(s); len(r) > max {
		s = string(r[:max])
	}
	return s
}
