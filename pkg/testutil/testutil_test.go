package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hichers/hichers/pkg/twincore"
)

func newTestServer() *httptest.Server {
	mux := http.NewServeMux()

	writeJSON := func(w http.ResponseWriter, status int, v any) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(v)
	}

	mux.HandleFunc("GET /offers", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, []map[string]int{{"offerID": 1}, {"offerID": 2}})
	})
	mux.HandleFunc("POST /offers", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		body["offerID"] = 3
		writeJSON(w, http.StatusCreated, body)
	})
	mux.HandleFunc("PUT /offers/{id}", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"offerID": r.PathValue("id"), "updated": "true"})
	})
	mux.HandleFunc("DELETE /offers/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("GET /echo-headers", func(w http.ResponseWriter, r *http.Request) {
		headers := map[string]string{}
		for k := range r.Header {
			headers[k] = r.Header.Get(k)
		}
		writeJSON(w, http.StatusOK, headers)
	})
	mux.HandleFunc("POST /login", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "sid", Value: "abc", Path: "/"})
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("GET /whoami", func(w http.ResponseWriter, r *http.Request) {
		c, err := r.Cookie("sid")
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"error": map[string]any{"message": "no session", "field": "sid"}})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"sid": c.Value})
	})

	mux.HandleFunc("GET /admin/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.HandleFunc("POST /admin/reset", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
	})
	mux.HandleFunc("GET /admin/state", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"offers": []string{"a", "b"}})
	})
	mux.HandleFunc("POST /admin/state", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "loaded"})
	})
	mux.HandleFunc("POST /admin/fault/", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		writeJSON(w, http.StatusOK, map[string]any{"status": "injected", "path": r.URL.Path, "fault": body})
	})
	mux.HandleFunc("DELETE /admin/fault/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "removed", "path": r.URL.Path})
	})
	mux.HandleFunc("GET /admin/requests", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, []map[string]string{{"method": "GET", "path": "/offers"}})
	})
	mux.HandleFunc("POST /admin/time/advance", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "advanced"})
	})
	mux.HandleFunc("POST /admin/settings", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		writeJSON(w, http.StatusOK, body)
	})
	mux.HandleFunc("POST /admin/config", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		writeJSON(w, http.StatusOK, body)
	})

	return httptest.NewServer(mux)
}

func TestNewTwinClientURL(t *testing.T) {
	tc := NewTwinClientURL(t, "http://localhost:9100/")
	if tc.BaseURL != "http://localhost:9100" {
		t.Errorf("expected trailing slash trimmed, got %s", tc.BaseURL)
	}
}

func TestTwinClientVerbs(t *testing.T) {
	srv := newTestServer()
	defer srv.Close()
	tc := NewTwinClient(t, srv)

	var offers []map[string]int
	tc.Get("/offers").AssertStatus(http.StatusOK).JSON(&offers)
	if len(offers) != 2 {
		t.Errorf("expected 2 offers, got %d", len(offers))
	}

	m := tc.Post("/offers", map[string]string{"offerName": "Latte"}).AssertStatus(http.StatusCreated).JSONMap()
	if m["offerID"] != float64(3) || m["offerName"] != "Latte" {
		t.Errorf("unexpected create response %+v", m)
	}

	tc.Put("/offers/3", map[string]string{"offerName": "Mocha"}).
		AssertStatus(http.StatusOK).
		AssertBodyContains(`"updated":"true"`)

	tc.Delete("/offers/3").AssertStatus(http.StatusNoContent)
}

func TestTwinClientSendsToken(t *testing.T) {
	srv := newTestServer()
	defer srv.Close()
	tc := NewTwinClient(t, srv)

	if m := tc.Get("/echo-headers").JSONMap(); m["Authorization"] != nil {
		t.Errorf("expected no authorization header, got %v", m["Authorization"])
	}
	tc.Token = "tok"
	m := tc.DoWithHeaders(http.MethodGet, "/echo-headers", nil, map[string]string{"X-Custom": "v"}).JSONMap()
	if m["Authorization"] != "Bearer tok" || m["X-Custom"] != "v" {
		t.Errorf("unexpected headers %+v", m)
	}
}

func TestTwinClientKeepsCookies(t *testing.T) {
	srv := newTestServer()
	defer srv.Close()
	tc := NewTwinClient(t, srv)

	resp := tc.Get("/whoami").AssertStatus(http.StatusUnauthorized)
	if resp.ErrorMessage() != "no session" || resp.ErrorField() != "sid" {
		t.Errorf("unexpected error envelope %s", resp.Body)
	}
	if resp.Cookie("sid") != nil {
		t.Error("no cookie expected before login")
	}
	login := tc.Post("/login", nil).AssertStatus(http.StatusNoContent)
	if c := login.Cookie("sid"); c == nil || c.Value != "abc" {
		t.Errorf("expected sid cookie, got %+v", c)
	}
	if m := tc.Get("/whoami").AssertStatus(http.StatusOK).JSONMap(); m["sid"] != "abc" {
		t.Errorf("expected cookie to be replayed, got %+v", m)
	}
}

func TestResponseChaining(t *testing.T) {
	srv := newTestServer()
	defer srv.Close()
	resp := NewTwinClient(t, srv).Get("/offers")
	if resp.AssertStatus(http.StatusOK) != resp || resp.AssertBodyContains("offerID") != resp {
		t.Error("expected assertions to return the same Response")
	}
}

func TestAdminClient(t *testing.T) {
	srv := newTestServer()
	defer srv.Close()
	ac := NewAdminClient(NewTwinClient(t, srv))

	if ac.Health().AssertStatus(http.StatusOK).JSONMap()["status"] != "ok" {
		t.Error("expected healthy twin")
	}
	ac.Reset().AssertStatus(http.StatusOK).AssertBodyContains("reset")
	ac.GetState().AssertStatus(http.StatusOK).AssertBodyContains("offers")
	ac.LoadState(map[string]any{"offers": []any{}}).AssertStatus(http.StatusOK).AssertBodyContains("loaded")
	ac.GetRequests().AssertStatus(http.StatusOK).AssertBodyContains("method")
	ac.AdvanceTime(time.Hour).AssertStatus(http.StatusOK).AssertBodyContains("advanced")
	ac.UpdateSettings(map[string]any{"offer_envelope": "array"}).AssertBodyContains("array")
	ac.UpdateConfig(map[string]any{"latency": "5ms"}).AssertBodyContains("5ms")
}

func TestAdminClientFaultPaths(t *testing.T) {
	srv := newTestServer()
	defer srv.Close()
	ac := NewAdminClient(NewTwinClient(t, srv))

	m := ac.InjectFault("/offer/update-offer", twincore.FaultConfig{StatusCode: 503, Delay: 250 * time.Millisecond}).
		AssertStatus(http.StatusOK).JSONMap()
	if m["path"] != "/admin/fault/offer/update-offer" {
		t.Errorf("expected leading slash stripped, got %v", m["path"])
	}
	fault, _ := m["fault"].(map[string]any)
	if fault["status_code"] != float64(503) || fault["delay_ms"] != float64(250) {
		t.Errorf("unexpected fault wire form %+v", fault)
	}
	m = ac.RemoveFault("web/web-info").AssertStatus(http.StatusOK).JSONMap()
	if m["path"] != "/admin/fault/web/web-info" {
		t.Errorf("unexpected remove path %v", m["path"])
	}
}
