// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// Messageはゲストの画面にそのまま表示される。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ（表示用）
	Category string // カテゴリ: auth, validation, rate_limit, upstream, system
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeInvalidRequest  = "INVALID_REQUEST"
	ErrCodeValidation      = "VALIDATION_FAILED"
	ErrCodeUnauthorized    = "UNAUTHORIZED"
	ErrCodeAdminOnly       = "ADMIN_ONLY"
	ErrCodeNotFound        = "NOT_FOUND"
	ErrCodeRateLimited     = "RATE_LIMITED"
	ErrCodeInvalidTrackURI = "INVALID_TRACK_URI"
	ErrCodeAlreadyQueued   = "ALREADY_QUEUED"
	ErrCodeUpstream        = "UPSTREAM_FAILED"
	ErrCodeInternal        = "INTERNAL_ERROR"
)

// NewValidationError は入力値の検証エラーを生成する。
func NewValidationError(message string) *APIError {
	return &APIError{
		Code:     ErrCodeValidation,
		Message:  message,
		Category: "validation",
	}
}

// NewInvalidRequestError はリクエストボディが解析できない場合のエラーを生成する。
func NewInvalidRequestError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  "Requête invalide.",
		Category: "validation",
	}
}

// NewAdminOnlyError は管理者コードが一致しない場合のエラーを生成する。
func NewAdminOnlyError() *APIError {
	return &APIError{
		Code:     ErrCodeAdminOnly,
		Message:  "admin only",
		Category: "auth",
	}
}

// NewNotFoundError は対象が見つからない場合のエラーを生成する。
func NewNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeNotFound,
		Message:  "not found",
		Category: "validation",
	}
}

// NewRateLimitedError はクールダウン中の再投稿エラーを生成する。
func NewRateLimitedError(message string) *APIError {
	return &APIError{
		Code:     ErrCodeRateLimited,
		Message:  message,
		Category: "rate_limit",
	}
}

// NewInvalidTrackURIError はトラックURIの形式が不正な場合のエラーを生成する。
func NewInvalidTrackURIError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidTrackURI,
		Message:  "URI invalide",
		Category: "validation",
	}
}

// NewAlreadyQueuedError は再生中またはキュー済みのトラックを追加しようとした場合のエラーを生成する。
func NewAlreadyQueuedError() *APIError {
	return &APIError{
		Code:     ErrCodeAlreadyQueued,
		Message:  "Déjà dans la file d’attente 🎵",
		Category: "validation",
	}
}

// NewUpstreamError は外部APIの失敗を表すエラーを生成する。
// 上流のエラーメッセージがあればそれを表示用メッセージとする。
func NewUpstreamError(message string) *APIError {
	if message == "" {
		message = "Erreur ajout"
	}
	return &APIError{
		Code:     ErrCodeUpstream,
		Message:  message,
		Category: "upstream",
	}
}

// NewInternalError は内部エラーを生成する。詳細はログのみに記録する。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "Erreur serveur",
		Category: "system",
	}
}
