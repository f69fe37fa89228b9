package rooms

import (
	"docsync-server/core"
	"docsync-server/session"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
)

type staticLister []session.RoomInfo

func (s staticLister) Rooms() []session.RoomInfo {
	return append([]session.RoomInfo(nil), s...)
}

type fixedLen int

func (f fixedLen) Len() int { return int(f) }

func TestHandleListRooms_Sorted(t *testing.T) {
	lister := staticLister{
		{ID: "b", Users: 1, LastActive: 100},
		{ID: "a", Users: 1, LastActive: 100},
		{ID: "busy", Users: 5, LastActive: 10},
		{ID: "recent", Users: 1, LastActive: 200},
	}

	r := chi.NewRouter()
	r.Get("/api/rooms", HandleListRooms(lister))

	req := httptest.NewRequest(http.MethodGet, "/api/rooms", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var got []session.RoomInfo
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	order := make([]string, 0, len(got))
	for _, room := range got {
		order = append(order, string(room.ID))
	}
	want := []string{"busy", "recent", "a", "b"}
	for i := range want {
		if i >= len(order) || order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

func TestHandleListRooms_Empty(t *testing.T) {
	rec := httptest.NewRecorder()
	HandleListRooms(staticLister(nil))(rec, httptest.NewRequest(http.MethodGet, "/api/rooms", nil))

	if body := rec.Body.String(); body != "[]\n" {
		t.Errorf("body = %q, want empty JSON array", body)
	}
}

func TestHandleListRooms_LiveRegistry(t *testing.T) {
	registry := session.NewRegistry()
	registry.Register("7", "c1", core.ReadWrite)

	rec := httptest.NewRecorder()
	HandleListRooms(registry)(rec, httptest.NewRequest(http.MethodGet, "/api/rooms", nil))

	var got []session.RoomInfo
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID != "7" || got[0].Users != 1 || got[0].Writers != 1 {
		t.Errorf("rooms = %+v", got)
	}
}

func TestHandleHealth(t *testing.T) {
	rec := httptest.NewRecorder()
	HandleHealth(fixedLen(3))(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	var got map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got["status"] != "ok" || got["documents"] != float64(3) {
		t.Errorf("health = %v", got)
	}
}
