// Package sitepass は共有パスワードによるサイトゲートと管理者コードの検証を提供する。
//
// ログインに成功したゲストにはHS256で署名したJWTをクッキーとして発行し、
// ゲートはその署名と有効期限のみを検証する。
package sitepass

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Subject はゲスト用トークンのsubクレーム。
const Subject = "guest"

// ErrInvalidToken はトークンが検証できない場合に返される。
var ErrInvalidToken = errors.New("invalid site token")

// ErrExpiredToken はトークンの有効期限が切れている場合に返される。
var ErrExpiredToken = errors.New("site token expired")

// siteClaims はJWTの解析に使う内部のクレーム型。
type siteClaims struct {
	jwt.RegisteredClaims
}

// Issuer はサイトクッキー用トークンの発行と検証を行う。
type Issuer struct {
	secret []byte
	maxAge time.Duration
	now    func() time.Time
}

// NewIssuer はIssuerを生成する。
func NewIssuer(secret string, maxAge time.Duration) (*Issuer, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, fmt.Errorf("site cookie secret is required")
	}
	if maxAge <= 0 {
		return nil, fmt.Errorf("site cookie max age must be positive")
	}
	return &Issuer{
		secret: []byte(secret),
		maxAge: maxAge,
		now:    time.Now,
	}, nil
}

// MaxAge はトークンの有効期間を返す。
func (i *Issuer) MaxAge() time.Duration {
	return i.maxAge
}

// Issue は新しいトークンを発行する。
func (i *Issuer) Issue() (string, error) {
	now := i.now().UTC()
	claims := siteClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   Subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.maxAge)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign site token: %w", err)
	}
	return signed, nil
}

// Verify はトークンの署名・アルゴリズム・有効期限・subを検証する。
func (i *Issuer) Verify(token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return ErrInvalidToken
	}

	var parsed siteClaims
	_, err := jwt.ParseWithClaims(token, &parsed, func(*jwt.Token) (any, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithSubject(Subject),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return mapJWTError(err)
	}
	return nil
}

// mapJWTError はjwtライブラリのエラーをパッケージのエラーに変換する。
func mapJWTError(err error) error {
	if errors.Is(err, jwt.ErrTokenExpired) {
		return ErrExpiredToken
	}
	return fmt.Errorf("%w: %v", ErrInvalidToken, err)
}

// CheckPassword は入力されたパスワードが期待値と一致するかを定数時間で比較する。
// 期待値が空の場合は常にfalse。
func CheckPassword(expected, got string) bool {
	if expected == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(got)) == 1
}

// Admin は管理者コードの検証を行う。
type Admin struct {
	code string
}

// NewAdmin はAdminを生成する。codeが空の場合、管理者操作はすべて拒否される。
func NewAdmin(code string) *Admin {
	return &Admin{code: strings.TrimSpace(code)}
}

// Enabled は管理者コードが設定されているかを返す。
func (a *Admin) Enabled() bool {
	return a != nil && a.code != ""
}

// Allows は入力されたコードが管理者コードと一致するかを返す。
func (a *Admin) Allows(code string) bool {
	if !a.Enabled() {
		return false
	}
	return CheckPassword(a.code, strings.TrimSpace(code))
}
