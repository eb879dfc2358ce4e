// Package spotify はSpotify Web APIのクライアントを提供する。
//
// アクセストークンはキャッシュせず、呼び出しごとに保存済みのリフレッシュトークンから取得する。
// リフレッシュトークンはOAuth認可（AuthorizeURL → ExchangeCode）で保存される。
package spotify

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hitoshi/soiree/internal/filestore"
	"github.com/hitoshi/soiree/internal/metrics"
	"github.com/hitoshi/soiree/internal/repository"
)

const (
	defaultAuthURL  = "https://accounts.spotify.com/authorize"
	defaultTokenURL = "https://accounts.spotify.com/api/token"
	defaultAPIURL   = "https://api.spotify.com/v1"

	// maxResponseSize はレスポンスボディの最大サイズ。
	maxResponseSize = 2 << 20
)

// ErrNotConnected はリフレッシュトークンが保存されていない場合に返される。
var ErrNotConnected = errors.New("Spotify non connecté")

// APIError はSpotifyが2xx以外を返した場合のエラー。
// MessageはSpotifyのerror.message / error_descriptionがあればその値。
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return e.Message
}

// Config はSpotifyクライアントの設定。
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	Scopes       []string

	// テスト用にオーバーライド可能なURL
	AuthURL  string
	TokenURL string
	APIURL   string
}

// Client はSpotify Web APIのクライアント。
type Client struct {
	config     Config
	httpClient *http.Client
	tokens     repository.TokenStore
	logger     *slog.Logger
	metrics    metrics.Recorder
}

// NewClient はClientの新しいインスタンスを生成する。
func NewClient(
	config Config,
	httpClient *http.Client,
	tokens repository.TokenStore,
	logger *slog.Logger,
	recorder metrics.Recorder,
) *Client {
	if config.AuthURL == "" {
		config.AuthURL = defaultAuthURL
	}
	if config.TokenURL == "" {
		config.TokenURL = defaultTokenURL
	}
	if config.APIURL == "" {
		config.APIURL = defaultAPIURL
	}
	config.APIURL = strings.TrimRight(config.APIURL, "/")
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if recorder == nil {
		recorder = metrics.Nop{}
	}
	return &Client{
		config:     config,
		httpClient: httpClient,
		tokens:     tokens,
		logger:     logger,
		metrics:    recorder,
	}
}

// Connected はリフレッシュトークンが保存済みかを返す。
func (c *Client) Connected() bool {
	_, err := c.tokens.Read()
	return err == nil
}

// AuthorizeURL はSpotifyの認可画面のURLを生成する。
func (c *Client) AuthorizeURL(state string) string {
	params := url.Values{
		"response_type": {"code"},
		"client_id":     {c.config.ClientID},
		"scope":         {strings.Join(c.config.Scopes, " ")},
		"redirect_uri":  {c.config.RedirectURI},
		"state":         {state},
	}
	return c.config.AuthURL + "?" + params.Encode()
}

// tokenResponse はトークンエンドポイントのレスポンス。
type tokenResponse struct {
	AccessToken      string `json:"access_token"`
	RefreshToken     string `json:"refresh_token"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// ExchangeCode は認可コードをトークンに交換し、リフレッシュトークンを保存する。
// レスポンスにリフレッシュトークンが含まれない場合はエラー。
func (c *Client) ExchangeCode(ctx context.Context, code string) error {
	if strings.TrimSpace(code) == "" {
		return fmt.Errorf("missing authorization code")
	}
	resp, err := c.requestToken(ctx, url.Values{
		"grant_type":   {"authorization_code"},
		"code":         {code},
		"redirect_uri": {c.config.RedirectURI},
	})
	if err != nil {
		return fmt.Errorf("failed to exchange code: %w", err)
	}
	if resp.RefreshToken == "" {
		return fmt.Errorf("empty refresh token in response")
	}
	if err := c.tokens.Write(resp.RefreshToken); err != nil {
		return fmt.Errorf("failed to store refresh token: %w", err)
	}
	c.logger.Info("spotify refresh token stored")
	return nil
}

// accessToken は保存済みのリフレッシュトークンからアクセストークンを取得する。
func (c *Client) accessToken(ctx context.Context) (string, error) {
	refresh, err := c.tokens.Read()
	if errors.Is(err, filestore.ErrTokenNotFound) {
		return "", ErrNotConnected
	}
	if err != nil {
		return "", fmt.Errorf("failed to read refresh token: %w", err)
	}

	resp, err := c.requestToken(ctx, url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {refresh},
	})
	if err != nil {
		return "", err
	}
	if resp.AccessToken == "" {
		return "", &APIError{Status: http.StatusBadGateway, Message: "Refresh token failed"}
	}
	return resp.AccessToken, nil
}

// requestToken はBasic認証でトークンエンドポイントを呼び出す。
func (c *Client) requestToken(ctx context.Context, form url.Values) (*tokenResponse, error) {
	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Basic "+c.basicAuth())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.RecordSpotifyCall("token", err, time.Since(start))
		return nil, fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		c.metrics.RecordSpotifyCall("token", err, time.Since(start))
		return nil, fmt.Errorf("failed to read token response: %w", err)
	}

	var tokenResp tokenResponse
	_ = json.Unmarshal(body, &tokenResp)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := tokenResp.ErrorDescription
		if msg == "" {
			msg = "Refresh token failed"
		}
		apiErr := &APIError{Status: resp.StatusCode, Message: msg}
		c.metrics.RecordSpotifyCall("token", apiErr, time.Since(start))
		c.logger.Warn("spotify token request failed",
			slog.Int("http_status", resp.StatusCode),
			slog.String("error", msg),
		)
		return nil, apiErr
	}

	c.metrics.RecordSpotifyCall("token", nil, time.Since(start))
	return &tokenResp, nil
}

func (c *Client) basicAuth() string {
	return base64.StdEncoding.EncodeToString([]byte(c.config.ClientID + ":" + c.config.ClientSecret))
}

// apiErrorBody はSpotify APIのエラーレスポンス。
type apiErrorBody struct {
	Error struct {
		Status  int    `json:"status"`
		Message string `json:"message"`
	} `json:"error"`
}

// do はアクセストークンを取得してAPIを呼び出す。
// 204 No Content の場合はnilのボディを返す。
func (c *Client) do(ctx context.Context, method, path, endpoint string) ([]byte, error) {
	token, err := c.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, method, c.config.APIURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.RecordSpotifyCall(endpoint, err, time.Since(start))
		c.logger.Error("spotify request failed",
			slog.String("endpoint", endpoint),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("spotify %s request failed: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		c.metrics.RecordSpotifyCall(endpoint, nil, time.Since(start))
		return nil, nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		c.metrics.RecordSpotifyCall(endpoint, err, time.Since(start))
		return nil, fmt.Errorf("failed to read spotify response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var errBody apiErrorBody
		_ = json.Unmarshal(body, &errBody)
		msg := errBody.Error.Message
		if msg == "" {
			msg = fmt.Sprintf("Spotify %s failed", method)
		}
		apiErr := &APIError{Status: resp.StatusCode, Message: msg}
		c.metrics.RecordSpotifyCall(endpoint, apiErr, time.Since(start))
		c.logger.Warn("spotify returned error status",
			slog.String("endpoint", endpoint),
			slog.Int("http_status", resp.StatusCode),
			slog.String("error", msg),
		)
		return nil, apiErr
	}

	c.metrics.RecordSpotifyCall(endpoint, nil, time.Since(start))
	return body, nil
}

// getJSON はGETしてレスポンスをoutにデコードする。204の場合はfalseを返す。
func (c *Client) getJSON(ctx context.Context, path, endpoint string, out any) (bool, error) {
	body, err := c.do(ctx, http.MethodGet, path, endpoint)
	if err != nil {
		return false, err
	}
	if len(body) == 0 {
		return false, nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return false, fmt.Errorf("failed to parse spotify %s response: %w", endpoint, err)
	}
	return true, nil
}
