package vehicleapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	core "github.com/kilianp07/vehicle2mqtt/core/vehicleapi"
	"github.com/kilianp07/vehicle2mqtt/infra/logger"
	"github.com/kilianp07/vehicle2mqtt/internal/fixtures"
)

// Simulator serves the vehicle API from canned replies. Commands complete
// after Polls status requests.
type Simulator struct {
	Polls int

	mu       sync.Mutex
	requests map[string]*simRequest
	mux      *http.ServeMux
	log      logger.Logger
}

type simRequest struct {
	command string
	polls   int
}

var simReplies = map[string]string{
	"diagnostics":        fixtures.Diagnostics,
	"location":           fixtures.Location,
	"getChargingProfile": fixtures.ChargingProfile,
}

// NewSimulator returns a Simulator completing commands after polls status
// requests.
func NewSimulator(polls int) *Simulator {
	s := &Simulator{
		Polls:    polls,
		requests: make(map[string]*simRequest),
		mux:      http.NewServeMux(),
		log:      logger.New("vehicle-simulator"),
	}
	s.mux.HandleFunc("POST /oauth/token", s.token)
	s.mux.HandleFunc("GET /api/v1/account/vehicles", s.authorized(s.vehicles))
	s.mux.HandleFunc("POST /api/v1/account/vehicles/{vin}/commands/{command}", s.authorized(s.command))
	s.mux.HandleFunc("GET /api/v1/account/vehicles/{vin}/requests/{id}", s.authorized(s.request))
	return s
}

func (s *Simulator) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Simulator) token(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil || r.PostForm.Get("username") == "" {
		http.Error(w, `{"error":"invalid_request"}`, http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"access_token": "sim-" + uuid.NewString(),
		"token_type":   "Bearer",
		"expires_in":   1800,
	})
}

func (s *Simulator) authorized(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.Header.Get("Authorization"), "Bearer sim-") {
			http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
			return
		}
		h(w, r)
	}
}

func (s *Simulator) vehicles(w http.ResponseWriter, _ *http.Request) {
	s.writeFixture(w, fixtures.Vehicles)
}

func (s *Simulator) known(vin string) bool {
	res, err := fixtures.Response(fixtures.Vehicles)
	if err != nil {
		return false
	}
	for _, v := range res.Vehicles() {
		if strings.EqualFold(v.VIN, vin) {
			return true
		}
	}
	return false
}

func (s *Simulator) command(w http.ResponseWriter, r *http.Request) {
	vin, command := r.PathValue("vin"), r.PathValue("command")
	if !s.known(vin) {
		http.Error(w, `{"error":"unknown vehicle"}`, http.StatusNotFound)
		return
	}
	id := uuid.NewString()
	s.mu.Lock()
	s.requests[id] = &simRequest{command: command}
	s.mu.Unlock()
	s.log.Infof("command %s for %s accepted as %s", command, vin, id)

	writeJSON(w, http.StatusAccepted, map[string]any{
		"commandResponse": core.CommandResponse{
			RequestTime: time.Now().UTC().Format(time.RFC3339),
			URL:         fmt.Sprintf("http://%s/api/v1/account/vehicles/%s/requests/%s", r.Host, vin, id),
			Status:      core.StatusInProgress,
			Type:        command,
		},
	})
}

func (s *Simulator) request(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	s.mu.Lock()
	req, ok := s.requests[id]
	if ok {
		req.polls++
	}
	s.mu.Unlock()
	if !ok {
		http.Error(w, `{"error":"unknown request"}`, http.StatusNotFound)
		return
	}
	if req.polls < s.Polls {
		writeJSON(w, http.StatusOK, map[string]any{
			"commandResponse": core.CommandResponse{Status: core.StatusInProgress, Type: req.command, URL: r.URL.String()},
		})
		return
	}
	s.mu.Lock()
	delete(s.requests, id)
	s.mu.Unlock()
	name, ok := simReplies[req.command]
	if !ok {
		name = fixtures.CommandSuccess
	}
	s.writeFixture(w, name)
}

func (s *Simulator) writeFixture(w http.ResponseWriter, name string) {
	b, err := fixtures.Raw(name)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(b)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
