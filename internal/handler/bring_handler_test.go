package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/soiree/internal/bring"
	"github.com/hitoshi/soiree/internal/model"
)

// mockBringService はBringServiceInterfaceのモック実装。
type mockBringService struct {
	listFn   func(ctx context.Context) (bring.View, error)
	addFn    func(ctx context.Context, label, category string) (bring.View, error)
	patchFn  func(ctx context.Context, in bring.PatchInput) (bring.View, error)
	deleteFn func(ctx context.Context, id, adminCode string) (bring.View, error)
}

func (m *mockBringService) List(ctx context.Context) (bring.View, error) {
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	return bring.View{}, nil
}

func (m *mockBringService) Add(ctx context.Context, label, category string) (bring.View, error) {
	if m.addFn != nil {
		return m.addFn(ctx, label, category)
	}
	return bring.View{}, nil
}

func (m *mockBringService) Patch(ctx context.Context, in bring.PatchInput) (bring.View, error) {
	if m.patchFn != nil {
		return m.patchFn(ctx, in)
	}
	return bring.View{}, nil
}

func (m *mockBringService) Delete(ctx context.Context, id, adminCode string) (bring.View, error) {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id, adminCode)
	}
	return bring.View{}, nil
}

func sampleView() bring.View {
	return bring.View{
		Items:     []model.BringItem{{ID: "i1", Label: "Chips", Category: model.BringCategoryFood}},
		UpdatedAt: 1769284800000,
		People:    []string{"Alice"},
	}
}

func TestBringHandler_List(t *testing.T) {
	h := NewBringHandler(&mockBringService{
		listFn: func(ctx context.Context) (bring.View, error) { return sampleView(), nil },
	})

	w := httptest.NewRecorder()
	h.List(w, httptest.NewRequest(http.MethodGet, "/api/qui-ramene", nil))

	var raw map[string]any
	if err := json.NewDecoder(w.Body).Decode(&raw); err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"items", "updatedAt", "people", "ok"} {
		if _, ok := raw[key]; !ok {
			t.Errorf("missing field: %s", key)
		}
	}
	if raw["ok"] != true {
		t.Errorf("ok = %v", raw["ok"])
	}
}

func TestBringHandler_Add_LabelRequired(t *testing.T) {
	h := NewBringHandler(&mockBringService{
		addFn: func(ctx context.Context, label, category string) (bring.View, error) {
			return bring.View{}, model.NewValidationError("label required")
		},
	})

	w := httptest.NewRecorder()
	h.Add(w, httptest.NewRequest(http.MethodPost, "/api/qui-ramene", bytes.NewBufferString(`{"label":""}`)))

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
	var resp map[string]any
	json.NewDecoder(w.Body).Decode(&resp)
	if resp["ok"] != false || resp["error"] != "label required" {
		t.Errorf("resp = %v", resp)
	}
}

func TestBringHandler_Patch_PassesOnlyPresentFields(t *testing.T) {
	var got bring.PatchInput
	h := NewBringHandler(&mockBringService{
		patchFn: func(ctx context.Context, in bring.PatchInput) (bring.View, error) {
			got = in
			return sampleView(), nil
		},
	})

	body := `{"id":"i1","assignedTo":"Alice"}`
	w := httptest.NewRecorder()
	h.Patch(w, httptest.NewRequest(http.MethodPatch, "/api/qui-ramene", bytes.NewBufferString(body)))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if got.ID != "i1" || got.AssignedTo == nil || *got.AssignedTo != "Alice" {
		t.Errorf("input = %+v", got)
	}
	if got.Label != nil || got.Category != nil {
		t.Error("送られていないフィールドはnilのままであること")
	}
}

func TestBringHandler_ErrorStatuses(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
		msg  string
	}{
		{"id required", model.NewValidationError("id required"), http.StatusBadRequest, "id required"},
		{"not found", model.NewNotFoundError(), http.StatusNotFound, "not found"},
		{"admin only", model.NewAdminOnlyError(), http.StatusForbidden, "admin only"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewBringHandler(&mockBringService{
				patchFn: func(ctx context.Context, in bring.PatchInput) (bring.View, error) {
					return bring.View{}, tt.err
				},
				deleteFn: func(ctx context.Context, id, adminCode string) (bring.View, error) {
					return bring.View{}, tt.err
				},
			})

			for _, method := range []string{http.MethodPatch, http.MethodDelete} {
				w := httptest.NewRecorder()
				req := httptest.NewRequest(method, "/api/qui-ramene", bytes.NewBufferString(`{"id":"x","label":"y"}`))
				if method == http.MethodPatch {
					h.Patch(w, req)
				} else {
					h.Delete(w, req)
				}
				if w.Code != tt.want {
					t.Errorf("%s: status = %d, want %d", method, w.Code, tt.want)
				}
				var resp map[string]any
				json.NewDecoder(w.Body).Decode(&resp)
				if resp["error"] != tt.msg {
					t.Errorf("%s: error = %v, want %q", method, resp["error"], tt.msg)
				}
			}
		})
	}
}
