package status

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kilianp07/vehicle2mqtt/core/bridgestatus"
)

func TestStatusHandler_Basic(t *testing.T) {
	store := bridgestatus.NewMemoryStore()
	store.Set(bridgestatus.Status{VIN: "v1", CurrentStatus: bridgestatus.StatusOnline})
	h := NewStatusHandler(store, "")
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("status %d", rr.Code)
	}
	var out []bridgestatus.Status
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out) != 1 || out[0].VIN != "v1" {
		t.Fatalf("unexpected output %#v", out)
	}
}

func TestStatusHandler_Filter(t *testing.T) {
	store := bridgestatus.NewMemoryStore()
	store.Set(bridgestatus.Status{VIN: "v1"})
	store.Set(bridgestatus.Status{VIN: "v2"})
	h := NewStatusHandler(store, "")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/status?vin=V2", nil))
	var out []bridgestatus.Status
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out) != 1 || out[0].VIN != "v2" {
		t.Fatalf("unexpected filter result %#v", out)
	}
}

func TestStatusHandler_Auth(t *testing.T) {
	h := NewStatusHandler(bridgestatus.NewMemoryStore(), "secret")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", rr.Code)
	}
	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rr.Code)
	}
}

func TestStatusHandler_Method(t *testing.T) {
	h := NewStatusHandler(bridgestatus.NewMemoryStore(), "")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/status", nil))
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405 got %d", rr.Code)
	}
}

func TestHealthHandler(t *testing.T) {
	store := bridgestatus.NewMemoryStore()
	h := NewHealthHandler(store)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 with no vehicle, got %d", rr.Code)
	}

	store.Set(bridgestatus.Status{VIN: "v1", CurrentStatus: bridgestatus.StatusOnline})
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rr.Code)
	}

	store.RecordCycle("v1", bridgestatus.Cycle{Success: false}, nil, 0)
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 after failed cycle, got %d", rr.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != bridgestatus.StatusDiagsFailed {
		t.Fatalf("unexpected body %v", body)
	}
}
