package commands

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/turbo360/crewupload/internal/api"
)

const crewPassword = "crew-secret"

// apiServer is a fake session API issuing token for crewPassword
type apiServer struct {
	*httptest.Server

	token string

	mu       sync.Mutex
	sessions []api.CreateSessionRequest
	logouts  int
}

// newAPIServer starts the fake API and points UPLOAD_API_URL at it
func newAPIServer(t *testing.T, token string) *apiServer {
	t.Helper()

	s := &apiServer{token: token}

	r := chi.NewRouter()
	r.Post("/api/auth/login", s.login)
	r.Group(func(r chi.Router) {
		r.Use(s.authenticate)
		r.Post("/api/auth/logout", s.logout)
		r.Post("/api/session", s.createSession)
	})

	s.Server = httptest.NewServer(r)
	t.Cleanup(s.Close)
	t.Setenv("UPLOAD_API_URL", s.URL)
	return s
}

func (s *apiServer) Sessions() []api.CreateSessionRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]api.CreateSessionRequest(nil), s.sessions...)
}

func (s *apiServer) Logouts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.logouts
}

func (s *apiServer) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+s.token {
			writeJSON(w, http.StatusUnauthorized, api.ErrorResponse{Error: "token expired"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *apiServer) login(w http.ResponseWriter, r *http.Request) {
	var req api.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, api.ErrorResponse{Error: "malformed body"})
		return
	}
	if req.Password != crewPassword {
		writeJSON(w, http.StatusUnauthorized, api.ErrorResponse{Error: "invalid password"})
		return
	}
	writeJSON(w, http.StatusOK, api.LoginResponse{Token: s.token})
}

func (s *apiServer) logout(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	s.logouts++
	s.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func (s *apiServer) createSession(w http.ResponseWriter, r *http.Request) {
	var req api.CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, api.ErrorResponse{Error: "malformed body"})
		return
	}

	s.mu.Lock()
	s.sessions = append(s.sessions, req)
	id := fmt.Sprintf("s-%d", len(s.sessions)+1)
	s.mu.Unlock()

	writeJSON(w, http.StatusCreated, api.CreateSessionResponse{SessionID: id})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
