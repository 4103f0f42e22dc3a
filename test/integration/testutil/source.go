package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"slices"
	"sync"

	"github.com/JoobyPM/flagport/internal/source"
)

// SourceServer serves the Source REST API from memory.
type SourceServer struct {
	*httptest.Server
	Token string

	mu       sync.Mutex
	project  source.Project
	flags    []source.Feature
	segments map[string][]source.Segment

	// FlagQueries records the env keys of every flag listing call.
	FlagQueries [][]string
}

// NewSourceServer starts a Source API for one project.
func NewSourceServer(token string, project source.Project) *SourceServer {
	s := &SourceServer{
		Token:    token,
		project:  project,
		segments: map[string][]source.Segment{},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v2/projects/{project}", s.getProject)
	mux.HandleFunc("GET /api/v2/projects/{project}/environments", s.getEnvironments)
	mux.HandleFunc("GET /api/v2/flags/{project}", s.getFlags)
	mux.HandleFunc("GET /api/v2/segments/{project}/{env}", s.getSegments)
	s.Server = httptest.NewServer(s.authorize(mux))
	return s
}

// AddFlags adds flags to the project.
func (s *SourceServer) AddFlags(flags ...source.Feature) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flags = append(s.flags, flags...)
}

// AddSegments adds segments to an environment.
func (s *SourceServer) AddSegments(envKey string, segments ...source.Segment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.segments[envKey] = append(s.segments[envKey], segments...)
}

func (s *SourceServer) authorize(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != s.Token {
			writeError(w, http.StatusUnauthorized, "invalid access token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *SourceServer) getProject(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.PathValue("project") != s.project.Key {
		writeError(w, http.StatusNotFound, "Unknown project")
		return
	}
	p := s.project
	if r.URL.Query().Get("expand") != "environments" {
		p.Environments = nil
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *SourceServer) getEnvironments(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.PathValue("project") != s.project.Key {
		writeError(w, http.StatusNotFound, "Unknown project")
		return
	}
	list := source.EnvironmentList{Items: []source.Environment{}}
	if s.project.Environments != nil {
		list.Items = s.project.Environments.Items
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *SourceServer) getFlags(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	envKeys := r.URL.Query()["env"]
	s.FlagQueries = append(s.FlagQueries, envKeys)

	items := make([]source.Feature, 0, len(s.flags))
	for _, f := range s.flags {
		trimmed := f
		trimmed.Environments = map[string]source.FeatureEnvironment{}
		for key, env := range f.Environments {
			if slices.Contains(envKeys, key) {
				trimmed.Environments[key] = env
			}
		}
		items = append(items, trimmed)
	}
	writeJSON(w, http.StatusOK, source.FeatureList{Items: items})
}

func (s *SourceServer) getSegments(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := s.segments[r.PathValue("env")]
	if items == nil {
		items = []source.Segment{}
	}
	writeJSON(w, http.StatusOK, source.SegmentList{Items: items})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"message": msg})
}
