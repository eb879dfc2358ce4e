package spotify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/hitoshi/soiree/internal/playback"
)

// SearchLimit は検索結果の最大件数。
const SearchLimit = 10

// trackURIPrefix はキューに追加できるURIの接頭辞。
const trackURIPrefix = "spotify:track:"

// ErrInvalidTrackURI はURIが spotify:track:<id> 形式でない場合に返される。
var ErrInvalidTrackURI = errors.New("invalid track uri")

// ErrAlreadyQueued はトラックが再生中またはキュー済みの場合に返される。
var ErrAlreadyQueued = errors.New("track already queued")

// Image はアルバムアートワーク。
type Image struct {
	URL string `json:"url"`
}

// Artist はアーティスト。
type Artist struct {
	Name string `json:"name"`
}

// Album はアルバム。
type Album struct {
	Name   string  `json:"name"`
	Images []Image `json:"images"`
}

// Track はSpotify APIのトラックオブジェクト（使用するフィールドのみ）。
type Track struct {
	ID         string   `json:"id"`
	URI        string   `json:"uri"`
	Name       string   `json:"name"`
	DurationMs int64    `json:"duration_ms"`
	Artists    []Artist `json:"artists"`
	Album      Album    `json:"album"`
}

// ArtistNames はアーティスト名を ", " 区切りで返す。
func (t Track) ArtistNames() string {
	names := make([]string, 0, len(t.Artists))
	for _, a := range t.Artists {
		names = append(names, a.Name)
	}
	return strings.Join(names, ", ")
}

// ImageURL は指定した優先順でアートワークのURLを返す。該当が無い場合は空文字。
func (t Track) ImageURL(prefer ...int) string {
	for _, i := range prefer {
		if i >= 0 && i < len(t.Album.Images) && t.Album.Images[i].URL != "" {
			return t.Album.Images[i].URL
		}
	}
	return ""
}

// Queue は再生中のトラックとキュー。
type Queue struct {
	CurrentlyPlaying *Track  `json:"currently_playing"`
	Queue            []Track `json:"queue"`
}

// Contains はトラックIDが再生中またはキューに含まれるかを返す。
func (q *Queue) Contains(id string) bool {
	if q == nil || id == "" {
		return false
	}
	if q.CurrentlyPlaying != nil && q.CurrentlyPlaying.ID == id {
		return true
	}
	for _, t := range q.Queue {
		if t.ID == id {
			return true
		}
	}
	return false
}

// PlayerState は再生状態。Reportのdurationは再生中トラックの長さ。
type PlayerState struct {
	Report playback.Report
	Device string
	Item   *Track
}

// playerResponse は /me/player のレスポンス（デバイスとトラック部分）。
type playerResponse struct {
	Device *struct {
		Name string `json:"name"`
	} `json:"device"`
	Item json.RawMessage `json:"item"`
}

// Queue は再生中のトラックとキューを取得する。
func (c *Client) Queue(ctx context.Context) (*Queue, error) {
	var q Queue
	ok, err := c.getJSON(ctx, "/me/player/queue", "queue", &q)
	if err != nil {
		return nil, err
	}
	if !ok {
		return &Queue{}, nil
	}
	return &q, nil
}

// Player は再生状態を取得する。アクティブなデバイスが無い場合（204）はnilを返す。
func (c *Client) Player(ctx context.Context) (*PlayerState, error) {
	body, err := c.do(ctx, http.MethodGet, "/me/player", "player")
	if err != nil {
		return nil, err
	}
	if len(body) == 0 {
		return nil, nil
	}

	report, err := playback.ParseReport(body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse spotify player response: %w", err)
	}
	var raw playerResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse spotify player response: %w", err)
	}

	state := &PlayerState{Report: report}
	if raw.Device != nil {
		state.Device = raw.Device.Name
	}
	// トラックの長さはトップレベルではなく item.duration_ms にある
	state.Report.DurationMs = 0
	if len(raw.Item) > 0 && string(raw.Item) != "null" {
		var item Track
		if err := json.Unmarshal(raw.Item, &item); err == nil {
			state.Item = &item
		}
		if itemReport, err := playback.ParseReport(raw.Item); err == nil {
			state.Report.DurationMs = itemReport.DurationMs
		}
	}
	return state, nil
}

// searchResponse は /search のレスポンス。
type searchResponse struct {
	Tracks struct {
		Items []Track `json:"items"`
	} `json:"tracks"`
}

// Search はトラックを検索する。空のクエリは空スライスを返す。
func (c *Client) Search(ctx context.Context, query string, limit int) ([]Track, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []Track{}, nil
	}
	if limit <= 0 {
		limit = SearchLimit
	}

	params := url.Values{
		"type":  {"track"},
		"limit": {fmt.Sprint(limit)},
		"q":     {query},
	}
	var resp searchResponse
	if _, err := c.getJSON(ctx, "/search?"+params.Encode(), "search", &resp); err != nil {
		return nil, err
	}
	if resp.Tracks.Items == nil {
		return []Track{}, nil
	}
	return resp.Tracks.Items, nil
}

// TrackIDFromURI は spotify:track:<id> からIDを取り出す。
func TrackIDFromURI(uri string) (string, error) {
	if !strings.HasPrefix(uri, trackURIPrefix) {
		return "", ErrInvalidTrackURI
	}
	parts := strings.Split(uri, ":")
	if len(parts) != 3 || parts[2] == "" {
		return "", ErrInvalidTrackURI
	}
	return parts[2], nil
}

// Enqueue はトラックをキューに追加する。
// 再生中またはキュー済みのトラックはErrAlreadyQueuedを返し、追加しない。
func (c *Client) Enqueue(ctx context.Context, uri string) error {
	id, err := TrackIDFromURI(strings.TrimSpace(uri))
	if err != nil {
		return err
	}

	q, err := c.Queue(ctx)
	if err != nil {
		return err
	}
	if q.Contains(id) {
		return ErrAlreadyQueued
	}

	path := "/me/player/queue?" + url.Values{"uri": {trackURIPrefix + id}}.Encode()
	if _, err := c.do(ctx, http.MethodPost, path, "enqueue"); err != nil {
		return err
	}
	return nil
}

// Status は接続状態と再生デバイス名。
type Status struct {
	Connected bool    `json:"connected"`
	Device    *string `json:"device"`
}

// Status は接続状態を返す。トークン保存済みでもデバイス取得に失敗した場合はdeviceをnullとする。
func (c *Client) Status(ctx context.Context) Status {
	if !c.Connected() {
		return Status{Connected: false}
	}
	player, err := c.Player(ctx)
	if err != nil || player == nil || player.Device == "" {
		return Status{Connected: true}
	}
	device := player.Device
	return Status{Connected: true, Device: &device}
}
