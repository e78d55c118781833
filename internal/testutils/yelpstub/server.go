// Package yelpstub serves a canned version of the business-data API over
// httptest so that clients can be exercised end to end without the network.
package yelpstub

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/phrazzld/restaurant-reviews/internal/domain"
)

// Default credentials accepted by the stub.
const (
	DefaultToken        = "stub-access-token"
	DefaultClientID     = "stub-client-id"
	DefaultClientSecret = "stub-client-secret"
	DefaultExpiresIn    = 15552000
)

// Server is a stub of the business-data API and its OAuth token endpoint.
type Server struct {
	*httptest.Server

	mu            sync.Mutex
	token         string
	clientID      string
	clientSecret  string
	expiresIn     int
	search        []any
	details       map[string]domain.JSON
	reviews       map[string][]any
	delays        map[string]time.Duration
	statusByPath  map[string]int
	rawByPath     map[string]string
	requests      []string
	lastSearch    url.Values
	authorization []string
}

// New starts a stub server and registers its shutdown with t.Cleanup.
func New(t testing.TB) *Server {
	t.Helper()

	s := &Server{
		token:        DefaultToken,
		clientID:     DefaultClientID,
		clientSecret: DefaultClientSecret,
		expiresIn:    DefaultExpiresIn,
		details:      make(map[string]domain.JSON),
		reviews:      make(map[string][]any),
		delays:       make(map[string]time.Duration),
		statusByPath: make(map[string]int),
		rawByPath:    make(map[string]string),
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.record)

	r.Post("/oauth2/token", s.handleToken)
	r.Route("/v3", func(r chi.Router) {
		r.Use(s.requireBearer)
		r.Use(s.overrides)
		r.Get("/businesses/search", s.handleSearch)
		r.Get("/businesses/{id}", s.handleBusiness)
		r.Get("/businesses/{id}/reviews", s.handleReviews)
	})

	s.Server = httptest.NewServer(r)
	t.Cleanup(s.Close)

	return s
}

// BaseURL is the API root to hand to a client.
func (s *Server) BaseURL() string {
	return s.URL + "/v3"
}

// TokenURL is the OAuth token endpoint.
func (s *Server) TokenURL() string {
	return s.URL + "/oauth2/token"
}

// SetToken changes the bearer token the API accepts and the token endpoint issues.
func (s *Server) SetToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
}

// SetExpiresIn changes the lifetime reported by the token endpoint.
func (s *Server) SetExpiresIn(seconds int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expiresIn = seconds
}

// SetSearchResults replaces the entries of the businesses array. Entries are
// served verbatim so malformed records can be mixed in.
func (s *Server) SetSearchResults(entries ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.search = entries
}

// SetBusiness sets the detail response for id.
func (s *Server) SetBusiness(id string, json domain.JSON) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.details[id] = json
}

// SetReviews replaces the entries of the reviews array for business id.
func (s *Server) SetReviews(id string, entries ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reviews[id] = entries
}

// SetDelay holds every response for path by d before it is written.
func (s *Server) SetDelay(path string, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delays[path] = d
}

// SetStatus forces path to answer with status and an empty JSON object.
func (s *Server) SetStatus(path string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statusByPath[path] = status
}

// SetRawBody forces path to answer 200 with body written as-is.
func (s *Server) SetRawBody(path, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rawByPath[path] = body
}

// Requests returns the paths requested so far, in arrival order.
func (s *Server) Requests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.requests...)
}

// RequestCount returns how many times path was requested.
func (s *Server) RequestCount(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, p := range s.requests {
		if p == path {
			count++
		}
	}
	return count
}

// LastSearchQuery returns the query string of the latest search request.
func (s *Server) LastSearchQuery() url.Values {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSearch
}

// Authorizations returns the Authorization headers received by API routes.
func (s *Server) Authorizations() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.authorization...)
}

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.requests = append(s.requests, r.URL.Path)
		delay := s.delays[r.URL.Path]
		s.mu.Unlock()

		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-r.Context().Done():
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requireBearer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")

		s.mu.Lock()
		s.authorization = append(s.authorization, header)
		want := "Bearer " + s.token
		s.mu.Unlock()

		if header != want {
			writeJSON(w, http.StatusUnauthorized, domain.JSON{
				"error": domain.JSON{"code": "TOKEN_INVALID", "description": "Invalid access token"},
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) overrides(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		status, hasStatus := s.statusByPath[r.URL.Path]
		raw, hasRaw := s.rawByPath[r.URL.Path]
		s.mu.Unlock()

		switch {
		case hasStatus:
			writeJSON(w, status, domain.JSON{})
		case hasRaw:
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(raw))
		default:
			next.ServeHTTP(w, r)
		}
	})
}

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusBadRequest, domain.JSON{"error": "invalid_request"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if r.PostForm.Get("grant_type") != "client_credentials" {
		writeJSON(w, http.StatusBadRequest, domain.JSON{"error": "unsupported_grant_type"})
		return
	}
	if r.PostForm.Get("client_id") != s.clientID || r.PostForm.Get("client_secret") != s.clientSecret {
		writeJSON(w, http.StatusUnauthorized, domain.JSON{"error": "invalid_client"})
		return
	}

	writeJSON(w, http.StatusOK, domain.JSON{
		"access_token": s.token,
		"token_type":   "Bearer",
		"expires_in":   s.expiresIn,
	})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.lastSearch = r.URL.Query()
	entries := s.search
	s.mu.Unlock()

	if entries == nil {
		entries = []any{}
	}
	writeJSON(w, http.StatusOK, domain.JSON{
		"businesses": entries,
		"total":      len(entries),
	})
}

func (s *Server) handleBusiness(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	s.mu.Lock()
	business, ok := s.details[id]
	s.mu.Unlock()

	if !ok {
		writeJSON(w, http.StatusNotFound, domain.JSON{
			"error": domain.JSON{"code": "BUSINESS_NOT_FOUND"},
		})
		return
	}
	writeJSON(w, http.StatusOK, business)
}

func (s *Server) handleReviews(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	s.mu.Lock()
	entries, ok := s.reviews[id]
	s.mu.Unlock()

	if !ok {
		entries = []any{}
	}
	writeJSON(w, http.StatusOK, domain.JSON{
		"reviews": entries,
		"total":   len(entries),
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// BusinessPath returns the detail path for id, as recorded by Requests.
func BusinessPath(id string) string {
	return "/v3/businesses/" + id
}

// ReviewsPath returns the reviews path for id, as recorded by Requests.
func ReviewsPath(id string) string {
	return "/v3/businesses/" + id + "/reviews"
}

// SearchPath is the search path as recorded by Requests.
const SearchPath = "/v3/businesses/search"

// Business returns a well-formed business mapping for id.
func Business(id, name string, latitude, longitude float64) domain.JSON {
	return domain.JSON{
		"id":   id,
		"name": name,
		"coordinates": domain.JSON{
			"latitude":  latitude,
			"longitude": longitude,
		},
		"categories": []any{domain.JSON{"alias": "pizza", "title": "Pizza"}},
		"is_closed":  false,
		"rating":     4.5,
		"alias":      strings.ToLower(strings.ReplaceAll(name, " ", "-")),
	}
}

// Review returns a well-formed review mapping.
func Review(text, user string, rating float64) domain.JSON {
	return domain.JSON{
		"rating":       rating,
		"text":         text,
		"time_created": "2020-03-30 19:12:45",
		"user":         domain.JSON{"name": user},
	}
}
