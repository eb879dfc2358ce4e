// Package security はアプリケーションのセキュリティ機能を提供する。
//
// TextSanitizer はゲストが入力したテキスト（メッセージ、持ち寄り品目）から
// マークアップを取り除き、プレーンテキストとして保存できる形にする。
// OutboundGuard は外部API呼び出し用のSSRF防止付きHTTPクライアントを生成する。
package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizerService はプレーンテキスト化のインターフェースを定義する。
type TextSanitizerService interface {
	// Clean は全てのタグを除去し、エンティティを元の文字に戻したテキストを返す。
	// 前後の空白は除去する。
	Clean(raw string) string
}

// textSanitizer はTextSanitizerServiceの実装。
// bluemondayのStrictPolicyはタグを全て除去するが、< や & などをエスケープして返すため、
// 保存前にアンエスケープしてプレーンテキストに戻す。
// タグを開かない < と入力された & は事前にエスケープし、文字として残す。
type textSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はTextSanitizerServiceの新しいインスタンスを生成する。
func NewTextSanitizer() *textSanitizer {
	return &textSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// Clean はマークアップを除去したプレーンテキストを返す。
func (s *textSanitizer) Clean(raw string) string {
	if raw == "" {
		return ""
	}
	cleaned := s.policy.Sanitize(escapeLiteralText(raw))
	return strings.TrimSpace(html.UnescapeString(cleaned))
}

// escapeLiteralText はマークアップとして解釈されない & と < を実体参照に置き換える。
func escapeLiteralText(raw string) string {
	if !strings.ContainsAny(raw, "<&") {
		return raw
	}
	var b strings.Builder
	b.Grow(len(raw) + 8)
	for i := 0; i < len(raw); i++ {
		switch c := raw[i]; {
		case c == '&':
			b.WriteString("&amp;")
		case c == '<' && !opensTag(raw[i+1:]):
			b.WriteString("&lt;")
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// opensTag は < の直後がタグ名（英字、/、!、?）で始まり、次の < より前に > で閉じているかを返す。
func opensTag(rest string) bool {
	if rest == "" {
		return false
	}
	c := rest[0]
	isTagStart := ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') || c == '/' || c == '!' || c == '?'
	if !isTagStart {
		return false
	}
	end := strings.IndexByte(rest, '>')
	if end < 0 {
		return false
	}
	next := strings.IndexByte(rest, '<')
	return next < 0 || end < next
}
