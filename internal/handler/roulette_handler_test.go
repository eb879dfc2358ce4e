package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/soiree/internal/model"
	"github.com/hitoshi/soiree/internal/sitepass"
)

// mockRouletteService はRouletteServiceInterfaceのモック実装。
type mockRouletteService struct {
	joinFn  func(ctx context.Context, name string) (model.RouletteState, bool, error)
	spinFn  func(ctx context.Context) (model.RouletteState, error)
	stateFn func(ctx context.Context) (model.RouletteState, error)
	names   []string
}

func (m *mockRouletteService) Join(ctx context.Context, name string) (model.RouletteState, bool, error) {
	if m.joinFn != nil {
		return m.joinFn(ctx, name)
	}
	return model.NewRouletteState(), false, nil
}

func (m *mockRouletteService) Spin(ctx context.Context) (model.RouletteState, error) {
	if m.spinFn != nil {
		return m.spinFn(ctx)
	}
	return model.NewRouletteState(), nil
}

func (m *mockRouletteService) State(ctx context.Context) (model.RouletteState, error) {
	if m.stateFn != nil {
		return m.stateFn(ctx)
	}
	return model.NewRouletteState(), nil
}

func (m *mockRouletteService) Names() []string {
	return m.names
}

func TestRouletteHandler_Join_MissingName(t *testing.T) {
	called := false
	svc := &mockRouletteService{
		joinFn: func(ctx context.Context, name string) (model.RouletteState, bool, error) {
			called = true
			return model.NewRouletteState(), false, nil
		},
	}
	h := NewRouletteHandler(svc, sitepass.NewAdmin(""))

	for _, body := range []string{`{"name":"   "}`, `{}`, `not json`} {
		w := httptest.NewRecorder()
		h.Join(w, httptest.NewRequest(http.MethodPost, "/api/roulette/join", bytes.NewBufferString(body)))

		if w.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", body, w.Code)
		}
		var resp failResponse
		json.NewDecoder(w.Body).Decode(&resp)
		if resp.Error != "missing_name" {
			t.Errorf("%s: error = %q, want missing_name", body, resp.Error)
		}
	}
	if called {
		t.Error("名前が空の場合はサービスを呼ばないこと")
	}
}

func TestRouletteHandler_Join_Success(t *testing.T) {
	svc := &mockRouletteService{
		joinFn: func(ctx context.Context, name string) (model.RouletteState, bool, error) {
			st := model.NewRouletteState()
			st.Participants = []string{name}
			return st, true, nil
		},
	}
	h := NewRouletteHandler(svc, sitepass.NewAdmin(""))

	w := httptest.NewRecorder()
	h.Join(w, httptest.NewRequest(http.MethodPost, "/api/roulette/join", bytes.NewBufferString(`{"name":"Alice"}`)))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var resp rouletteResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if !resp.OK || len(resp.Roulette.Participants) != 1 || resp.Roulette.Participants[0] != "Alice" {
		t.Errorf("resp = %+v", resp)
	}
}

func TestRouletteHandler_Spin_FlattensState(t *testing.T) {
	at := int64(1769284800000)
	svc := &mockRouletteService{
		spinFn: func(ctx context.Context) (model.RouletteState, error) {
			return model.RouletteState{
				Participants:     []string{},
				LastSpinAt:       &at,
				LastParticipants: []string{"A", "B"},
			}, nil
		},
	}
	h := NewRouletteHandler(svc, sitepass.NewAdmin(""))

	w := httptest.NewRecorder()
	h.Spin(w, httptest.NewRequest(http.MethodPost, "/api/roulette/spin", nil))

	var raw map[string]any
	if err := json.NewDecoder(w.Body).Decode(&raw); err != nil {
		t.Fatal(err)
	}
	if raw["ok"] != true {
		t.Errorf("ok = %v", raw["ok"])
	}
	if raw["lastSpinAt"] != float64(at) {
		t.Errorf("lastSpinAt = %v", raw["lastSpinAt"])
	}
	if pool, _ := raw["lastParticipants"].([]any); len(pool) != 2 {
		t.Errorf("lastParticipants = %v", raw["lastParticipants"])
	}
	if _, nested := raw["roulette"]; nested {
		t.Error("スピン結果はトップレベルに展開すること")
	}
}

func TestRouletteHandler_Spin_AdminCode(t *testing.T) {
	spins := 0
	svc := &mockRouletteService{
		spinFn: func(ctx context.Context) (model.RouletteState, error) {
			spins++
			return model.NewRouletteState(), nil
		},
	}
	h := NewRouletteHandler(svc, sitepass.NewAdmin("1234"))

	tests := []struct {
		body string
		want int
	}{
		{`{"adminCode":"0000"}`, http.StatusForbidden},
		{``, http.StatusForbidden},
		{`{"adminCode":"1234"}`, http.StatusOK},
	}
	for _, tt := range tests {
		w := httptest.NewRecorder()
		h.Spin(w, httptest.NewRequest(http.MethodPost, "/api/roulette/spin", bytes.NewBufferString(tt.body)))
		if w.Code != tt.want {
			t.Errorf("%q: status = %d, want %d", tt.body, w.Code, tt.want)
		}
	}
	if spins != 1 {
		t.Errorf("spins = %d, want 1", spins)
	}
}

func TestRouletteHandler_Spin_Error(t *testing.T) {
	svc := &mockRouletteService{
		spinFn: func(ctx context.Context) (model.RouletteState, error) {
			return model.RouletteState{}, errors.New("write failed")
		},
	}
	h := NewRouletteHandler(svc, sitepass.NewAdmin(""))

	w := httptest.NewRecorder()
	h.Spin(w, httptest.NewRequest(http.MethodPost, "/api/roulette/spin", nil))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
	if body := w.Body.String(); body != "{\"ok\":false}\n" {
		t.Errorf("body = %q", body)
	}
}

func TestRouletteHandler_NamesAndState(t *testing.T) {
	svc := &mockRouletteService{names: []string{"Alice", "Bob"}}
	h := NewRouletteHandler(svc, sitepass.NewAdmin(""))

	w := httptest.NewRecorder()
	h.Names(w, httptest.NewRequest(http.MethodGet, "/api/roulette/names", nil))
	var names namesResponse
	json.NewDecoder(w.Body).Decode(&names)
	if !names.OK || len(names.Names) != 2 {
		t.Errorf("names = %+v", names)
	}

	w = httptest.NewRecorder()
	h.State(w, httptest.NewRequest(http.MethodGet, "/api/roulette/state", nil))
	if w.Body.String() != "{\"ok\":true,\"roulette\":{\"participants\":[],\"lastSpinAt\":null,\"lastParticipants\":[]}}\n" {
		t.Errorf("state body = %q", w.Body.String())
	}
}
