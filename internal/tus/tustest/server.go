// Package tustest provides an in-memory resumable upload server for tests.
package tustest

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/turbo360/crewupload/internal/tus"
)

// Upload is the server-side state of one resumable upload
type Upload struct {
	ID       string
	Length   int64
	Offset   int64
	Metadata map[string]string
	Data     []byte
}

type fault struct {
	method string
	status int
	body   string
	times  int
}

// Server is a fake upload server backed by httptest.Server
type Server struct {
	*httptest.Server

	mu              sync.Mutex
	uploads         map[string]*Upload
	token           string
	relativeLocates bool
	faults          []*fault
	requests        map[string]int
}

// NewServer starts a server accepting bearer token and registers its shutdown with t.Cleanup
func NewServer(t testing.TB, token string) *Server {
	t.Helper()

	s := &Server{
		uploads:         make(map[string]*Upload),
		token:           token,
		relativeLocates: true,
		requests:        make(map[string]int),
	}

	r := chi.NewRouter()
	r.Use(s.countRequests, s.injectFaults, s.checkProtocol, s.authenticate)
	r.Post("/files", s.create)
	r.Head("/files/{id}", s.head)
	r.Patch("/files/{id}", s.patch)

	s.Server = httptest.NewServer(r)
	t.Cleanup(s.Close)
	return s
}

// Endpoint returns the creation endpoint
func (s *Server) Endpoint() string {
	return s.URL + "/files"
}

// UseAbsoluteLocations makes creation responses carry absolute Location headers
func (s *Server) UseAbsoluteLocations() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.relativeLocates = false
}

// SetToken changes the accepted bearer token; requests with another token get 401
func (s *Server) SetToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
}

// FailNext makes the next times requests with method answer status with body
func (s *Server) FailNext(method string, status int, body string, times int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults = append(s.faults, &fault{method: method, status: status, body: body, times: times})
}

// Requests returns how many requests with method reached the server
func (s *Server) Requests(method string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[method]
}

// Uploads returns a copy of every upload keyed by id
func (s *Server) Uploads() map[string]Upload {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]Upload, len(s.uploads))
	for id, u := range s.uploads {
		cp := *u
		cp.Data = append([]byte(nil), u.Data...)
		out[id] = cp
	}
	return out
}

// UploadByURL returns the upload addressed by a session URL
func (s *Server) UploadByURL(sessionURL string) (Upload, bool) {
	id := sessionURL[strings.LastIndex(sessionURL, "/")+1:]
	u, ok := s.Uploads()[id]
	return u, ok
}

// Truncate rewinds an upload to offset, simulating a server that lost the tail of a chunk
func (s *Server) Truncate(sessionURL string, offset int64) {
	id := sessionURL[strings.LastIndex(sessionURL, "/")+1:]

	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.uploads[id]; ok && offset <= u.Offset {
		u.Offset = offset
		u.Data = u.Data[:offset]
	}
}

func (s *Server) countRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.requests[r.Method]++
		s.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) injectFaults(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		var hit *fault
		for _, f := range s.faults {
			if f.method == r.Method && f.times > 0 {
				f.times--
				hit = f
				break
			}
		}
		s.mu.Unlock()

		if hit != nil {
			_, _ = io.Copy(io.Discard, r.Body)
			w.WriteHeader(hit.status)
			_, _ = io.WriteString(w, hit.body)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) checkProtocol(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Tus-Resumable") != tus.ProtocolVersion {
			w.Header().Set("Tus-Version", tus.ProtocolVersion)
			w.WriteHeader(http.StatusPreconditionFailed)
			return
		}
		w.Header().Set("Tus-Resumable", tus.ProtocolVersion)
		next.ServeHTTP(w, r)
	})
}

func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		token := s.token
		s.mu.Unlock()

		if r.Header.Get("Authorization") != "Bearer "+token {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) create(w http.ResponseWriter, r *http.Request) {
	length, err := strconv.ParseInt(r.Header.Get("Upload-Length"), 10, 64)
	if err != nil || length < 0 {
		http.Error(w, "invalid Upload-Length", http.StatusBadRequest)
		return
	}

	metadata, err := tus.DecodeMetadata(r.Header.Get("Upload-Metadata"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	id := uuid.NewString()

	s.mu.Lock()
	s.uploads[id] = &Upload{ID: id, Length: length, Metadata: metadata}
	relative := s.relativeLocates
	s.mu.Unlock()

	location := "/files/" + id
	if !relative {
		location = s.URL + location
	}

	w.Header().Set("Location", location)
	w.WriteHeader(http.StatusCreated)
}

func (s *Server) head(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	u, ok := s.uploads[chi.URLParam(r, "id")]
	var offset, length int64
	if ok {
		offset, length = u.Offset, u.Length
	}
	s.mu.Unlock()

	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	w.Header().Set("Upload-Offset", strconv.FormatInt(offset, 10))
	w.Header().Set("Upload-Length", strconv.FormatInt(length, 10))
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
}

func (s *Server) patch(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("Content-Type") != "application/offset+octet-stream" {
		http.Error(w, "unsupported content type", http.StatusUnsupportedMediaType)
		return
	}

	offset, err := strconv.ParseInt(r.Header.Get("Upload-Offset"), 10, 64)
	if err != nil {
		http.Error(w, "invalid Upload-Offset", http.StatusBadRequest)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.uploads[chi.URLParam(r, "id")]
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	if offset != u.Offset {
		http.Error(w, fmt.Sprintf("offset mismatch: have %d, got %d", u.Offset, offset), http.StatusConflict)
		return
	}
	if u.Offset+int64(len(body)) > u.Length {
		http.Error(w, "chunk exceeds upload length", http.StatusRequestEntityTooLarge)
		return
	}

	u.Data = append(u.Data, body...)
	u.Offset += int64(len(body))

	w.Header().Set("Upload-Offset", strconv.FormatInt(u.Offset, 10))
	w.WriteHeader(http.StatusNoContent)
}
