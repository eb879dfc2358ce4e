package filestore

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
)

// ErrTokenNotFound はトークンファイルが存在しない、または空の場合に返される。
var ErrTokenNotFound = errors.New("token file not found")

// TokenFile は単一のシークレット文字列を保持するテキストファイル。
type TokenFile struct {
	path string
}

// NewTokenFile はTokenFileを生成する。
func NewTokenFile(path string) *TokenFile {
	return &TokenFile{path: path}
}

// Read はトークンを読み込む。前後の空白は除去する。
func (f *TokenFile) Read() (string, error) {
	raw, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", ErrTokenNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to read token file: %w", err)
	}
	token := strings.TrimSpace(string(raw))
	if token == "" {
		return "", ErrTokenNotFound
	}
	return token, nil
}

// Write はトークンを所有者のみ読み書き可能なパーミッションで保存する。
func (f *TokenFile) Write(token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return fmt.Errorf("empty token")
	}
	return WriteFileAtomic(f.path, []byte(token), 0o600)
}

// Exists はトークンが保存済みかを返す。
func (f *TokenFile) Exists() bool {
	_, err := f.Read()
	return err == nil
}
