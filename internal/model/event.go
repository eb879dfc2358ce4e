package model

import "time"

// DefaultMessageAuthor は名前が空の投稿に付与する表示名。
const DefaultMessageAuthor = "Anonyme"

// メッセージの各フィールドの上限（文字数）。
const (
	MessageNameMaxLen = 24
	MessageTextMaxLen = 240
)

// RouletteState はルーレットの状態を表す。
// Participantsは挿入順を保持する重複なしの名前リスト。
// LastParticipantsは直近のスピン時点のスナップショットで、
// リセット後もクライアントが同じ抽選プールで演出を再生できるようにする。
type RouletteState struct {
	Participants     []string `json:"participants"`
	LastSpinAt       *int64   `json:"lastSpinAt"` // UNIXミリ秒。未スピンの場合はnull
	LastParticipants []string `json:"lastParticipants"`
}

// NewRouletteState は空のRouletteStateを返す。
func NewRouletteState() RouletteState {
	return RouletteState{
		Participants:     []string{},
		LastParticipants: []string{},
	}
}

// HasParticipant は名前が参加者に含まれるかを完全一致で判定する。
func (s RouletteState) HasParticipant(name string) bool {
	for _, p := range s.Participants {
		if p == name {
			return true
		}
	}
	return false
}

// DrawPool は抽選演出に使う名前リストを返す。
// LastParticipantsが空の場合はParticipantsにフォールバックする。
func (s RouletteState) DrawPool() []string {
	if len(s.LastParticipants) > 0 {
		return s.LastParticipants
	}
	return s.Participants
}

// WallMessage はメッセージウォールの1投稿。作成後は変更されない。
type WallMessage struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Text      string `json:"text"`
	CreatedAt int64  `json:"createdAt"` // UNIXミリ秒
}

// BringCategory は「誰が何を持ってくるか」リストの分類。
type BringCategory string

const (
	BringCategorySofts     BringCategory = "Softs"
	BringCategoryAlcool    BringCategory = "Alcool"
	BringCategoryFood      BringCategory = "Nourriture"
	BringCategoryEquipment BringCategory = "Matériel"
)

// BringCategories は許可されたカテゴリの一覧。
var BringCategories = []BringCategory{
	BringCategorySofts,
	BringCategoryAlcool,
	BringCategoryFood,
	BringCategoryEquipment,
}

// IsValid はカテゴリが許可リストに含まれるかを返す。
func (c BringCategory) IsValid() bool {
	for _, allowed := range BringCategories {
		if c == allowed {
			return true
		}
	}
	return false
}

// NormalizeBringCategory は不正なカテゴリをNourritureに丸める。
func NormalizeBringCategory(v string) BringCategory {
	c := BringCategory(v)
	if c.IsValid() {
		return c
	}
	return BringCategoryFood
}

// BringItem は持ち寄りリストの1項目。AssignedToが空の場合は未担当。
type BringItem struct {
	ID         string        `json:"id"`
	Label      string        `json:"label"`
	Category   BringCategory `json:"category"`
	AssignedTo string        `json:"assignedTo"`
}

// BringList は持ち寄りリスト全体。Itemsは新しいものが先頭。
type BringList struct {
	Items     []BringItem `json:"items"`
	UpdatedAt int64       `json:"updatedAt"` // UNIXミリ秒
}

// FindItem は指定IDの項目へのポインタを返す。見つからない場合はnil。
func (l *BringList) FindItem(id string) *BringItem {
	for i := range l.Items {
		if l.Items[i].ID == id {
			return &l.Items[i]
		}
	}
	return nil
}

// RSVPStatus は出欠回答の種別。
type RSVPStatus string

const (
	RSVPStatusYes   RSVPStatus = "yes"
	RSVPStatusMaybe RSVPStatus = "maybe"
	RSVPStatusNo    RSVPStatus = "no"
)

// IsValid は回答種別が yes / maybe / no のいずれかかを返す。
func (s RSVPStatus) IsValid() bool {
	switch s {
	case RSVPStatusYes, RSVPStatusMaybe, RSVPStatusNo:
		return true
	default:
		return false
	}
}

// RSVP の同伴人数の範囲。
const (
	RSVPMinGuests = 1
	RSVPMaxGuests = 6
)

// RSVP は出欠回答。追記のみで更新・削除は行わない。
type RSVP struct {
	ID        int64      `json:"id"`
	Name      string     `json:"name"`
	Phone     string     `json:"phone,omitempty"`
	Note      string     `json:"note,omitempty"`
	Status    RSVPStatus `json:"status"`
	Guests    int        `json:"guests"`
	CreatedAt time.Time  `json:"createdAt"`
}
