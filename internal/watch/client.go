// Package watch はプロジェクター用のターミナルクライアントを提供する。
// ダッシュボードAPIをポーリングし、再生位置・メッセージ・ルーレットの抽選演出を端末に表示する。
package watch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/soiree/internal/dashboard"
)

// maxResponseSize はダッシュボードレスポンスの最大サイズ。
const maxResponseSize = 1 << 20

// Client はサーバーのダッシュボードAPIのクライアント。
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	baseURL    string
}

// NewClient はClientの新しいインスタンスを生成する。
func NewClient(httpClient *http.Client, logger *slog.Logger, baseURL string) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		httpClient: httpClient,
		logger:     logger,
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
}

// Dashboard はGET /api/dashboard の結果を返す。
// 各セクションが欠けている場合は既定値のまま返す。
func (c *Client) Dashboard(ctx context.Context) (dashboard.Data, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/dashboard", nil)
	if err != nil {
		return dashboard.Data{}, fmt.Errorf("failed to build dashboard request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Cache-Control", "no-store")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("dashboard request failed", slog.String("error", err.Error()))
		return dashboard.Data{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("dashboard returned error status", slog.Int("http_status", resp.StatusCode))
		return dashboard.Data{}, fmt.Errorf("dashboard returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return dashboard.Data{}, fmt.Errorf("failed to read dashboard response: %w", err)
	}

	data := dashboard.Empty()
	if err := json.Unmarshal(body, &data); err != nil {
		return dashboard.Data{}, fmt.Errorf("failed to parse dashboard response: %w", err)
	}
	if data.Music.Next == nil {
		data.Music.Next = []dashboard.TrackView{}
	}
	return data, nil
}
