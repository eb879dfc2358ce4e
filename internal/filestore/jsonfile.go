package filestore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

// JSONFileOptions はJSONFileストアの設定。
type JSONFileOptions[T any] struct {
	// Path は保存先のJSONファイルパス。
	Path string

	// Defaults は初回作成時および破損時に書き込む既定値を返す。
	Defaults func() T

	// Normalize は読み込んだ値を補正する。falseを返した場合は破損扱いとして退避する。
	// nilの場合は補正しない。
	Normalize func(*T) bool

	// BeforeSave は書き込み直前に呼ばれる（updatedAtの更新など）。nilの場合は何もしない。
	BeforeSave func(*T)

	Logger *slog.Logger
	Now    func() time.Time
}

// JSONFile はJSONファイル1つを丸ごと読み書きするStoreの実装。
// 同一プロセス内の書き込みはmutexで直列化する。
type JSONFile[T any] struct {
	path       string
	defaults   func() T
	normalize  func(*T) bool
	beforeSave func(*T)
	logger     *slog.Logger
	now        func() time.Time

	mu sync.Mutex
}

// NewJSONFile はJSONFileストアを生成する。ファイルへのアクセスは初回のLoad/Updateまで行わない。
func NewJSONFile[T any](opts JSONFileOptions[T]) *JSONFile[T] {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Defaults == nil {
		opts.Defaults = func() T {
			var zero T
			return zero
		}
	}
	return &JSONFile[T]{
		path:       opts.Path,
		defaults:   opts.Defaults,
		normalize:  opts.Normalize,
		beforeSave: opts.BeforeSave,
		logger:     opts.Logger,
		now:        opts.Now,
	}
}

// Path は保存先のファイルパスを返す。
func (s *JSONFile[T]) Path() string {
	return s.path
}

// Load はファイルを読み込んで返す。
// ファイルが無い場合は既定値を書き込み、壊れている場合は退避してから既定値を書き込む。
// 退避に失敗した場合は壊れたファイルに触れずにエラーを返す。
func (s *JSONFile[T]) Load(ctx context.Context) (T, error) {
	if err := ctx.Err(); err != nil {
		var zero T
		return zero, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

// Update はファイルを読み直してfnを適用し、アトミックに書き戻す。
func (s *JSONFile[T]) Update(ctx context.Context, fn func(*T) error) (T, error) {
	if err := ctx.Err(); err != nil {
		var zero T
		return zero, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.load()
	if err != nil {
		return current, err
	}

	if err := fn(&current); err != nil {
		return current, err
	}

	if err := s.save(&current); err != nil {
		return current, err
	}
	return current, nil
}

// load はロック取得済みの前提でファイルを読み込む。
func (s *JSONFile[T]) load() (T, error) {
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		fresh := s.defaults()
		if err := s.save(&fresh); err != nil {
			return fresh, err
		}
		return fresh, nil
	}
	if err != nil {
		var zero T
		return zero, fmt.Errorf("failed to read %s: %w", s.path, err)
	}

	value, ok := s.decode(raw)
	if ok {
		return value, nil
	}

	// 破損: 元の内容をバックアップに退避してから既定値で作り直す。
	// 退避できなかった場合は元のファイルを残したままエラーを返す。
	backup, err := s.quarantine(raw)
	if err != nil {
		s.logger.Error("failed to back up corrupt store file",
			slog.String("path", s.path),
			slog.String("error", err.Error()),
		)
		var zero T
		return zero, fmt.Errorf("failed to quarantine %s: %w", s.path, err)
	}
	s.logger.Warn("corrupt store file quarantined",
		slog.String("path", s.path),
		slog.String("backup", backup),
	)

	fresh := s.defaults()
	if err := s.save(&fresh); err != nil {
		return fresh, err
	}
	return fresh, nil
}

func (s *JSONFile[T]) decode(raw []byte) (T, bool) {
	var value T
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return value, false
	}
	if err := json.Unmarshal(trimmed, &value); err != nil {
		return value, false
	}
	if s.normalize != nil && !s.normalize(&value) {
		return value, false
	}
	return value, true
}

func (s *JSONFile[T]) save(value *T) error {
	if s.beforeSave != nil {
		s.beforeSave(value)
	}
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", s.path, err)
	}
	return WriteFileAtomic(s.path, data, 0o644)
}

// quarantine は壊れた内容を <name>.bad.<unixms>.json として保存し、そのパスを返す。
func (s *JSONFile[T]) quarantine(raw []byte) (string, error) {
	dir := filepath.Dir(s.path)
	base := strings.TrimSuffix(filepath.Base(s.path), filepath.Ext(s.path))
	backup := filepath.Join(dir, base+".bad."+strconv.FormatInt(s.now().UnixMilli(), 10)+".json")
	if err := WriteFileAtomic(backup, raw, 0o644); err != nil {
		return "", err
	}
	return backup, nil
}

// compile-time interface check
var _ Store[struct{}] = (*JSONFile[struct{}])(nil)
