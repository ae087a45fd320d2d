// Package wigletest provides an in-process fake of the WiGLE statistics API
// for tests.
package wigletest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
)

// API paths served by the fake, relative to the host.
const (
	PathUser      = "/api/v2/stats/user"
	PathGroup     = "/api/v2/stats/group"
	PathMembers   = "/api/v2/group/groupMembers"
	PathStandings = "/api/v2/stats/standings"
)

// Request is a recorded inbound request.
type Request struct {
	Path   string
	Query  url.Values
	Header http.Header
}

// Server is a fake statistics API. Unregistered paths answer 404.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	routes   map[string]http.HandlerFunc
	requests []Request
}

// NewServer starts a fake API. Call Close when done.
func NewServer() *Server {
	s := &Server{routes: map[string]http.HandlerFunc{}}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	return s
}

// BaseURL is the API root to pass to wigle.WithBaseURL.
func (s *Server) BaseURL() string {
	return s.URL + "/api/v2/"
}

// Handle registers h for path, replacing any previous handler.
func (s *Server) Handle(path string, h http.HandlerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.routes[path] = h
}

// JSON makes path answer with status and body encoded as JSON.
func (s *Server) JSON(path string, status int, body any) {
	s.Handle(path, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	})
}

// Raw makes path answer with status and a literal body.
func (s *Server) Raw(path string, status int, body string) {
	s.Handle(path, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	})
}

// Requests returns a copy of every request received so far.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Request, len(s.requests))
	copy(out, s.requests)
	return out
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.requests = append(s.requests, Request{Path: r.URL.Path, Query: r.URL.Query(), Header: r.Header.Clone()})
	h, ok := s.routes[r.URL.Path]
	s.mu.Unlock()
	if !ok {
		http.NotFound(w, r)
		return
	}
	h(w, r)
}

// Group is one entry for GroupsBody.
type Group struct {
	ID         string
	Name       string
	Discovered int64
}

// GroupsBody builds a successful group-list payload.
func GroupsBody(groups ...Group) map[string]any {
	rows := make([]map[string]any, 0, len(groups))
	for _, g := range groups {
		rows = append(rows, map[string]any{
			"groupId": g.ID, "groupName": g.Name, "discovered": g.Discovered, "total": g.Discovered,
		})
	}
	return map[string]any{"success": true, "groups": rows}
}

// Member is one entry for MembersBody.
type Member struct {
	Username   string
	Discovered int64
	Status     string
}

// MembersBody builds a group-members payload.
func MembersBody(members ...Member) map[string]any {
	rows := make([]map[string]any, 0, len(members))
	for _, m := range members {
		rows = append(rows, map[string]any{"username": m.Username, "discovered": m.Discovered, "status": m.Status})
	}
	return map[string]any{"success": true, "users": rows}
}

// Standing is one entry for StandingsBody.
type Standing struct {
	UserName          string
	DiscoveredWiFiGPS int64
	EventMonthCount   int64
}

// StandingsBody builds a successful standings payload.
func StandingsBody(rows ...Standing) map[string]any {
	out := make([]map[string]any, 0, len(rows))
	for _, r := range rows {
		out = append(out, map[string]any{
			"userName": r.UserName, "discoveredWiFiGPS": r.DiscoveredWiFiGPS, "eventMonthCount": r.EventMonthCount,
		})
	}
	return map[string]any{"success": true, "results": out}
}

// UserBody builds a successful user-stats payload for name.
func UserBody(name string) map[string]any {
	return map[string]any{
		"success":       true,
		"user":          name,
		"rank":          1234,
		"monthRank":     56,
		"imageBadgeUrl": "",
		"statistics": map[string]any{
			"userName":                 name,
			"prevRank":                 1300,
			"prevMonthRank":            78,
			"eventMonthCount":          12000,
			"eventPrevMonthCount":      9000,
			"discoveredWiFiGPS":        1234567,
			"discoveredWiFiGPSPercent": 87.5,
			"discoveredWiFi":           2000000,
			"discoveredCellGPS":        3000,
			"discoveredCell":           3100,
			"discoveredBtGPS":          4000,
			"discoveredBt":             4100,
			"totalWiFiLocations":       9999999,
			"last":                     "20240304-153000",
			"first":                    "20150101-000000",
		},
	}
}
