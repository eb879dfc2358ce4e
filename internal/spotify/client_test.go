package spotify

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/hitoshi/soiree/internal/filestore"
)

// --- モック ---

type mockTokenStore struct {
	mu    sync.Mutex
	token string
}

func (m *mockTokenStore) Read() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.token == "" {
		return "", filestore.ErrTokenNotFound
	}
	return m.token, nil
}

func (m *mockTokenStore) Write(token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = token
	return nil
}

// fakeSpotify はトークンエンドポイントとWeb APIを模したテストサーバー。
type fakeSpotify struct {
	mu       sync.Mutex
	handlers map[string]http.HandlerFunc
	enqueued []string
	tokenReq []url.Values
}

func newFakeSpotify(t *testing.T) (*fakeSpotify, *httptest.Server) {
	t.Helper()
	f := &fakeSpotify{handlers: map[string]http.HandlerFunc{}}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/token", func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "client-id" || pass != "client-secret" {
			w.WriteHeader(http.StatusUnauthorized)
			fmt.Fprint(w, `{"error":"invalid_client","error_description":"Invalid client"}`)
			return
		}
		r.ParseForm()
		f.mu.Lock()
		f.tokenReq = append(f.tokenReq, r.PostForm)
		f.mu.Unlock()

		switch r.PostForm.Get("grant_type") {
		case "refresh_token":
			if r.PostForm.Get("refresh_token") == "revoked" {
				w.WriteHeader(http.StatusBadRequest)
				fmt.Fprint(w, `{"error":"invalid_grant","error_description":"Refresh token revoked"}`)
				return
			}
			fmt.Fprint(w, `{"access_token":"access-1","token_type":"Bearer"}`)
		case "authorization_code":
			if r.PostForm.Get("code") == "no-refresh" {
				fmt.Fprint(w, `{"access_token":"access-1"}`)
				return
			}
			fmt.Fprint(w, `{"access_token":"access-1","refresh_token":"refresh-new"}`)
		default:
			w.WriteHeader(http.StatusBadRequest)
		}
	})
	mux.HandleFunc("/v1/", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer access-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		key := r.Method + " " + strings.TrimPrefix(r.URL.Path, "/v1")
		f.mu.Lock()
		h, ok := f.handlers[key]
		f.mu.Unlock()
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, `{"error":{"status":404,"message":"Not found"}}`)
			return
		}
		h(w, r)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return f, srv
}

func (f *fakeSpotify) enqueuedURIs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.enqueued...)
}

func (f *fakeSpotify) tokenRequests() []url.Values {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]url.Values(nil), f.tokenReq...)
}

func (f *fakeSpotify) handle(key string, h http.HandlerFunc) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[key] = h
}

func newTestClient(t *testing.T, srv *httptest.Server, tokens *mockTokenStore, logBuf *bytes.Buffer) *Client {
	t.Helper()
	var w io.Writer = io.Discard
	if logBuf != nil {
		w = logBuf
	}
	return NewClient(Config{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RedirectURI:  "http://localhost:8080/api/spotify/callback",
		Scopes:       []string{"user-read-playback-state", "user-modify-playback-state"},
		AuthURL:      srv.URL + "/authorize",
		TokenURL:     srv.URL + "/api/token",
		APIURL:       srv.URL + "/v1",
	}, srv.Client(), tokens, slog.New(slog.NewJSONHandler(w, nil)), nil)
}

const queueJSON = `{
	"currently_playing": {"id":"now","name":"Dancing Queen","artists":[{"name":"ABBA"}],
		"album":{"images":[{"url":"big"},{"url":"mid"},{"url":"small"}]}},
	"queue": [
		{"id":"q1","name":"Titanium","artists":[{"name":"David Guetta"},{"name":"Sia"}],"album":{"images":[]}}
	]
}`

func TestAuthorizeURL(t *testing.T) {
	_, srv := newFakeSpotify(t)
	client := newTestClient(t, srv, &mockTokenStore{}, nil)

	raw := client.AuthorizeURL("state-123")
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatal(err)
	}
	q := u.Query()
	if q.Get("response_type") != "code" || q.Get("client_id") != "client-id" || q.Get("state") != "state-123" {
		t.Errorf("query = %v", q)
	}
	if q.Get("scope") != "user-read-playback-state user-modify-playback-state" {
		t.Errorf("scope = %q", q.Get("scope"))
	}
	if q.Get("redirect_uri") != "http://localhost:8080/api/spotify/callback" {
		t.Errorf("redirect_uri = %q", q.Get("redirect_uri"))
	}
}

func TestExchangeCode_StoresRefreshToken(t *testing.T) {
	f, srv := newFakeSpotify(t)
	tokens := &mockTokenStore{}
	client := newTestClient(t, srv, tokens, nil)

	if err := client.ExchangeCode(context.Background(), "auth-code"); err != nil {
		t.Fatalf("ExchangeCode でエラーが発生した: %v", err)
	}
	if tokens.token != "refresh-new" {
		t.Errorf("保存されたトークン = %q, want refresh-new", tokens.token)
	}
	if got := f.tokenRequests()[0].Get("redirect_uri"); got != "http://localhost:8080/api/spotify/callback" {
		t.Errorf("redirect_uri = %q", got)
	}
}

func TestExchangeCode_MissingRefreshToken(t *testing.T) {
	_, srv := newFakeSpotify(t)
	tokens := &mockTokenStore{}
	client := newTestClient(t, srv, tokens, nil)

	if err := client.ExchangeCode(context.Background(), "no-refresh"); err == nil {
		t.Error("リフレッシュトークンが無い場合はエラーになること")
	}
	if tokens.token != "" {
		t.Error("失敗時はトークンを保存しないこと")
	}
	if err := client.ExchangeCode(context.Background(), " "); err == nil {
		t.Error("空のコードはエラーになること")
	}
}

func TestNotConnected(t *testing.T) {
	_, srv := newFakeSpotify(t)
	client := newTestClient(t, srv, &mockTokenStore{}, nil)

	if _, err := client.Queue(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("err = %v, want ErrNotConnected", err)
	}
	if client.Connected() {
		t.Error("Connected = true, want false")
	}
	st := client.Status(context.Background())
	if st.Connected || st.Device != nil {
		t.Errorf("Status = %+v", st)
	}
}

func TestRefreshFailure_ReturnsAPIError(t *testing.T) {
	var logBuf bytes.Buffer
	_, srv := newFakeSpotify(t)
	client := newTestClient(t, srv, &mockTokenStore{token: "revoked"}, &logBuf)

	_, err := client.Queue(context.Background())
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *APIError", err)
	}
	if apiErr.Status != http.StatusBadRequest || apiErr.Message != "Refresh token revoked" {
		t.Errorf("apiErr = %+v", apiErr)
	}
	if !strings.Contains(logBuf.String(), "spotify token request failed") {
		t.Errorf("警告ログが出力されていない: %s", logBuf.String())
	}
}

func TestQueue(t *testing.T) {
	f, srv := newFakeSpotify(t)
	f.handle("GET /me/player/queue", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, queueJSON)
	})
	client := newTestClient(t, srv, &mockTokenStore{token: "refresh-1"}, nil)

	q, err := client.Queue(context.Background())
	if err != nil {
		t.Fatalf("Queue でエラーが発生した: %v", err)
	}
	if q.CurrentlyPlaying == nil || q.CurrentlyPlaying.ID != "now" {
		t.Fatalf("CurrentlyPlaying = %+v", q.CurrentlyPlaying)
	}
	if got := q.CurrentlyPlaying.ImageURL(0, 1); got != "big" {
		t.Errorf("ImageURL(0,1) = %q, want big", got)
	}
	if got := q.CurrentlyPlaying.ImageURL(2, 1, 0); got != "small" {
		t.Errorf("ImageURL(2,1,0) = %q, want small", got)
	}
	if len(q.Queue) != 1 || q.Queue[0].ArtistNames() != "David Guetta, Sia" {
		t.Errorf("Queue = %+v", q.Queue)
	}
	if q.Queue[0].ImageURL(2) != "" {
		t.Error("画像が無い場合は空文字になること")
	}
}

func TestPlayer(t *testing.T) {
	f, srv := newFakeSpotify(t)
	f.handle("GET /me/player", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"is_playing":true,"progress_ms":61000,"device":{"name":"Salon"},
			"item":{"id":"now","name":"Dancing Queen","duration_ms":230000}}`)
	})
	client := newTestClient(t, srv, &mockTokenStore{token: "refresh-1"}, nil)

	state, err := client.Player(context.Background())
	if err != nil {
		t.Fatalf("Player でエラーが発生した: %v", err)
	}
	if !state.Report.IsPlaying() || state.Report.ProgressMs != 61000 || state.Report.DurationMs != 230000 {
		t.Errorf("Report = %+v", state.Report)
	}
	if state.Device != "Salon" || state.Item == nil || state.Item.ID != "now" {
		t.Errorf("state = %+v", state)
	}

	st := client.Status(context.Background())
	if !st.Connected || st.Device == nil || *st.Device != "Salon" {
		t.Errorf("Status = %+v", st)
	}
}

func TestPlayer_NoContent(t *testing.T) {
	f, srv := newFakeSpotify(t)
	f.handle("GET /me/player", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	client := newTestClient(t, srv, &mockTokenStore{token: "refresh-1"}, nil)

	state, err := client.Player(context.Background())
	if err != nil || state != nil {
		t.Errorf("Player = %+v, %v, want nil, nil", state, err)
	}

	st := client.Status(context.Background())
	if !st.Connected || st.Device != nil {
		t.Errorf("デバイスが無い場合は connected=true, device=null: %+v", st)
	}
}

func TestSearch(t *testing.T) {
	f, srv := newFakeSpotify(t)
	queries := make(chan url.Values, 1)
	f.handle("GET /search", func(w http.ResponseWriter, r *http.Request) {
		queries <- r.URL.Query()
		fmt.Fprint(w, `{"tracks":{"items":[{"id":"t1","uri":"spotify:track:t1","name":"One","artists":[{"name":"U2"}],"album":{"name":"Achtung Baby"}}]}}`)
	})
	client := newTestClient(t, srv, &mockTokenStore{token: "refresh-1"}, nil)

	items, err := client.Search(context.Background(), "  one u2 ", SearchLimit)
	if err != nil {
		t.Fatalf("Search でエラーが発生した: %v", err)
	}
	if len(items) != 1 || items[0].URI != "spotify:track:t1" || items[0].Album.Name != "Achtung Baby" {
		t.Errorf("items = %+v", items)
	}
	gotQuery := <-queries
	if gotQuery.Get("q") != "one u2" || gotQuery.Get("type") != "track" || gotQuery.Get("limit") != "10" {
		t.Errorf("query = %v", gotQuery)
	}
}

func TestSearch_EmptyQuery(t *testing.T) {
	_, srv := newFakeSpotify(t)
	client := newTestClient(t, srv, &mockTokenStore{}, nil)

	items, err := client.Search(context.Background(), "   ", 0)
	if err != nil || items == nil || len(items) != 0 {
		t.Errorf("Search = %v, %v, want 空スライス", items, err)
	}
}

func TestEnqueue(t *testing.T) {
	f, srv := newFakeSpotify(t)
	f.handle("GET /me/player/queue", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, queueJSON)
	})
	f.handle("POST /me/player/queue", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.enqueued = append(f.enqueued, r.URL.Query().Get("uri"))
		f.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	})
	client := newTestClient(t, srv, &mockTokenStore{token: "refresh-1"}, nil)
	ctx := context.Background()

	if err := client.Enqueue(ctx, "spotify:track:new"); err != nil {
		t.Fatalf("Enqueue でエラーが発生した: %v", err)
	}
	if got := f.enqueuedURIs(); len(got) != 1 || got[0] != "spotify:track:new" {
		t.Errorf("enqueued = %v", got)
	}

	for _, uri := range []string{"spotify:track:now", "spotify:track:q1"} {
		if err := client.Enqueue(ctx, uri); !errors.Is(err, ErrAlreadyQueued) {
			t.Errorf("Enqueue(%s) = %v, want ErrAlreadyQueued", uri, err)
		}
	}
	if got := f.enqueuedURIs(); len(got) != 1 {
		t.Errorf("重複時は追加しないこと: %v", got)
	}
}

func TestEnqueue_InvalidURI(t *testing.T) {
	_, srv := newFakeSpotify(t)
	client := newTestClient(t, srv, &mockTokenStore{token: "refresh-1"}, nil)

	for _, uri := range []string{"", "spotify:album:x", "spotify:track:", "spotify:track:a:b", "https://open.spotify.com/track/x"} {
		if err := client.Enqueue(context.Background(), uri); !errors.Is(err, ErrInvalidTrackURI) {
			t.Errorf("Enqueue(%q) = %v, want ErrInvalidTrackURI", uri, err)
		}
	}
}

func TestAPIError_UsesUpstreamMessage(t *testing.T) {
	f, srv := newFakeSpotify(t)
	f.handle("GET /me/player/queue", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, queueJSON)
	})
	f.handle("POST /me/player/queue", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, `{"error":{"status":403,"message":"Player command failed: Premium required"}}`)
	})
	client := newTestClient(t, srv, &mockTokenStore{token: "refresh-1"}, nil)

	err := client.Enqueue(context.Background(), "spotify:track:new")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *APIError", err)
	}
	if apiErr.Status != http.StatusForbidden || apiErr.Message != "Player command failed: Premium required" {
		t.Errorf("apiErr = %+v", apiErr)
	}
}

func TestAPIError_GenericMessage(t *testing.T) {
	f, srv := newFakeSpotify(t)
	f.handle("GET /me/player/queue", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		fmt.Fprint(w, "<html>bad gateway</html>")
	})
	client := newTestClient(t, srv, &mockTokenStore{token: "refresh-1"}, nil)

	_, err := client.Queue(context.Background())
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Message != "Spotify GET failed" {
		t.Errorf("err = %v, want Spotify GET failed", err)
	}
}

func TestRefreshUsesBasicAuth(t *testing.T) {
	f, srv := newFakeSpotify(t)
	f.handle("GET /me/player/queue", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"queue":[]}`)
	})
	client := newTestClient(t, srv, &mockTokenStore{token: "refresh-1"}, nil)

	if _, err := client.Queue(context.Background()); err != nil {
		t.Fatal(err)
	}
	if reqs := f.tokenRequests(); len(reqs) != 1 || reqs[0].Get("refresh_token") != "refresh-1" {
		t.Errorf("tokenReq = %v", reqs)
	}
	want := base64.StdEncoding.EncodeToString([]byte("client-id:client-secret"))
	if client.basicAuth() != want {
		t.Errorf("basicAuth = %q, want %q", client.basicAuth(), want)
	}
}
