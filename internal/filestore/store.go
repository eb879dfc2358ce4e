// Package filestore はJSONファイルを1ストア1ファイルで扱う永続化層を提供する。
//
// 各ストアはスナップショット単位（全件読み込み・全件書き込み）で操作する。
// 書き込みは同一ディレクトリの一時ファイルに書いてからrenameするため、
// 読み手が書きかけのファイルを見ることはない。
// 壊れたファイルはタイムスタンプ付きのバックアップに退避し、既定値で作り直す。
package filestore

import (
	"context"
	"sync"
)

// Store はスナップショットを読み書きするストアのインターフェース。
// 実装を差し替えてもハンドラーやサービスのロジックは変わらない。
type Store[T any] interface {
	// Load は現在のスナップショットを返す。未作成の場合は既定値を作成して返す。
	Load(ctx context.Context) (T, error)

	// Update は最新のスナップショットを読み直してfnを適用し、全体を書き戻す。
	// fnがエラーを返した場合は何も書き込まない。
	Update(ctx context.Context, fn func(*T) error) (T, error)
}

// Memory はメモリ上に保持するStoreの実装。テストや一時的な差し替えに使う。
type Memory[T any] struct {
	mu       sync.Mutex
	value    T
	loaded   bool
	defaults func() T
	clone    func(T) T
}

// NewMemory はMemoryストアを生成する。
// cloneには呼び出し元とスライスを共有しないためのコピー関数を渡す（nilの場合はそのまま返す）。
func NewMemory[T any](defaults func() T, clone func(T) T) *Memory[T] {
	if clone == nil {
		clone = func(v T) T { return v }
	}
	return &Memory[T]{defaults: defaults, clone: clone}
}

// Load は現在の値を返す。
func (m *Memory[T]) Load(ctx context.Context) (T, error) {
	if err := ctx.Err(); err != nil {
		var zero T
		return zero, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ensure()
	return m.clone(m.value), nil
}

// Update は値にfnを適用して保存する。
func (m *Memory[T]) Update(ctx context.Context, fn func(*T) error) (T, error) {
	if err := ctx.Err(); err != nil {
		var zero T
		return zero, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ensure()

	next := m.clone(m.value)
	if err := fn(&next); err != nil {
		return m.clone(m.value), err
	}
	m.value = next
	return m.clone(m.value), nil
}

func (m *Memory[T]) ensure() {
	if !m.loaded {
		if m.defaults != nil {
			m.value = m.defaults()
		}
		m.loaded = true
	}
}

// compile-time interface check
var _ Store[int] = (*Memory[int])(nil)
