// Package status exposes the bridge state over HTTP.
package status

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/kilianp07/vehicle2mqtt/core/bridgestatus"
)

// NewStatusHandler returns an HTTP handler exposing the per-vehicle bridge
// state via GET /api/status. A vin query parameter narrows the listing.
// Requests must include an Authorization header with "Bearer <token>" when
// token is non-empty.
func NewStatusHandler(store bridgestatus.Store, token string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if token != "" && r.Header.Get("Authorization") != "Bearer "+token {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		entries := store.List()
		if vin := r.URL.Query().Get("vin"); vin != "" {
			filtered := entries[:0]
			for _, e := range entries {
				if strings.EqualFold(e.VIN, vin) {
					filtered = append(filtered, e)
				}
			}
			entries = filtered
		}
		writeJSON(w, http.StatusOK, entries)
	})
}

// NewHealthHandler reports 200 once every vehicle has completed a
// successful cycle and 503 otherwise.
func NewHealthHandler(store bridgestatus.Store) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		code, state := http.StatusOK, "ok"
		entries := store.List()
		if len(entries) == 0 {
			code, state = http.StatusServiceUnavailable, bridgestatus.StatusStarting
		}
		for _, e := range entries {
			if e.CurrentStatus != bridgestatus.StatusOnline {
				code, state = http.StatusServiceUnavailable, e.CurrentStatus
				break
			}
		}
		writeJSON(w, code, map[string]string{"status": state})
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
