package testutil

import (
	"encoding/json"
	"fmt"
	"maps"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"sync"

	"github.com/JoobyPM/flagport/internal/target"
)

const accessToken = "test-access-token"

// TargetServer serves the Target management API and its token endpoint from
// memory. It holds at most one project.
type TargetServer struct {
	*httptest.Server
	ClientID     string
	ClientSecret string

	mu             sync.Mutex
	nextID         int
	project        *target.Project
	environments   []target.Environment
	features       map[string]target.Feature
	configurations map[string]map[string]target.FeatureConfiguration
	audiences      map[string]target.Audience
	properties     map[string]target.CustomProperty

	// TokenRequests counts client-credentials exchanges.
	TokenRequests int
	// Writes records "METHOD path" of every write request.
	Writes []string
}

// NewTargetServer starts a Target API without any project.
func NewTargetServer(clientID, clientSecret string) *TargetServer {
	s := &TargetServer{
		ClientID:       clientID,
		ClientSecret:   clientSecret,
		features:       map[string]target.Feature{},
		configurations: map[string]map[string]target.FeatureConfiguration{},
		audiences:      map[string]target.Audience{},
		properties:     map[string]target.CustomProperty{},
	}

	api := http.NewServeMux()
	api.HandleFunc("GET /v1/projects/{project}", s.getProject)
	api.HandleFunc("POST /v1/projects", s.createProject)
	api.HandleFunc("GET /v1/projects/{project}/environments", s.listEnvironments)
	api.HandleFunc("POST /v1/projects/{project}/environments", s.createEnvironment)
	api.HandleFunc("GET /v1/projects/{project}/features", s.listFeatures)
	api.HandleFunc("POST /v1/projects/{project}/features", s.saveFeature)
	api.HandleFunc("PATCH /v1/projects/{project}/features/{feature}", s.saveFeature)
	api.HandleFunc("PATCH /v1/projects/{project}/features/{feature}/configurations", s.saveConfiguration)
	api.HandleFunc("GET /v1/projects/{project}/audiences", s.listAudiences)
	api.HandleFunc("POST /v1/projects/{project}/audiences", s.saveAudience)
	api.HandleFunc("PATCH /v1/projects/{project}/audiences/{audience}", s.saveAudience)
	api.HandleFunc("GET /v1/projects/{project}/customProperties", s.listProperties)
	api.HandleFunc("POST /v1/projects/{project}/customProperties", s.saveProperty)
	api.HandleFunc("PATCH /v1/projects/{project}/customProperties/{property}", s.saveProperty)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /oauth/token", s.token)
	mux.Handle("/v1/", s.authorize(api))
	s.Server = httptest.NewServer(mux)
	return s
}

// AuthURL is the token endpoint of the server.
func (s *TargetServer) AuthURL() string {
	return s.URL + "/oauth/token"
}

// SeedProject creates a project with environments.
func (s *TargetServer) SeedProject(p target.Project, envs ...target.Environment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.ID = s.id("project")
	s.project = &p
	for _, env := range envs {
		env.ID = s.id("env")
		s.environments = append(s.environments, env)
	}
}

// SeedFeature stores an existing feature.
func (s *TargetServer) SeedFeature(f target.Feature) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f.ID = s.id("feature")
	s.features[f.Key] = f
}

// SeedAudience stores an existing audience.
func (s *TargetServer) SeedAudience(a target.Audience) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a.ID = s.id("audience")
	s.audiences[a.Key] = a
}

// Project returns the stored project.
func (s *TargetServer) Project() *target.Project {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.project
}

// Environments returns the stored environments.
func (s *TargetServer) Environments() []target.Environment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.environments)
}

// Feature returns a stored feature.
func (s *TargetServer) Feature(key string) (target.Feature, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.features[key]
	return f, ok
}

// Configuration returns the stored configuration of a feature in an environment.
func (s *TargetServer) Configuration(featureKey, envKey string) (target.FeatureConfiguration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.configurations[featureKey][envKey]
	return c, ok
}

// Audience returns a stored audience.
func (s *TargetServer) Audience(key string) (target.Audience, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.audiences[key]
	return a, ok
}

// Properties returns the stored custom properties sorted by key.
func (s *TargetServer) Properties() []target.CustomProperty {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sortedValues(s.properties)
}

// WriteCount returns the number of write requests served.
func (s *TargetServer) WriteCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Writes)
}

func (s *TargetServer) id(prefix string) string {
	s.nextID++
	return fmt.Sprintf("%s-%d", prefix, s.nextID)
}

func (s *TargetServer) token(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if r.PostForm.Get("grant_type") != "client_credentials" ||
		r.PostForm.Get("client_id") != s.ClientID ||
		r.PostForm.Get("client_secret") != s.ClientSecret {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "access_denied"})
		return
	}
	s.mu.Lock()
	s.TokenRequests++
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{
		"access_token": accessToken,
		"token_type":   "Bearer",
		"expires_in":   3600,
	})
}

func (s *TargetServer) authorize(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+accessToken {
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		if r.Method != http.MethodGet {
			s.mu.Lock()
			s.Writes = append(s.Writes, r.Method+" "+r.URL.Path)
			s.mu.Unlock()
		}
		next.ServeHTTP(w, r)
	})
}

// checkProject writes a 404 and returns false when the path names an
// unknown project. Callers hold s.mu.
func (s *TargetServer) checkProject(w http.ResponseWriter, r *http.Request) bool {
	if s.project == nil || s.project.Key != r.PathValue("project") {
		writeError(w, http.StatusNotFound, "Project not found")
		return false
	}
	return true
}

// page returns items for page 1 and nothing afterwards.
func page[T any](r *http.Request, items []T) []T {
	if p := r.URL.Query().Get("page"); p != "" && p != "1" {
		return []T{}
	}
	if items == nil {
		return []T{}
	}
	return items
}

func sortedValues[T any](m map[string]T) []T {
	out := make([]T, 0, len(m))
	for _, k := range slices.Sorted(maps.Keys(m)) {
		out = append(out, m[k])
	}
	return out
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}

func (s *TargetServer) getProject(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.checkProject(w, r) {
		return
	}
	writeJSON(w, http.StatusOK, s.project)
}

func (s *TargetServer) createProject(w http.ResponseWriter, r *http.Request) {
	var p target.Project
	if !decode(w, r, &p) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.project != nil {
		writeError(w, http.StatusConflict, "Duplicate project key")
		return
	}
	p.ID = s.id("project")
	s.project = &p
	writeJSON(w, http.StatusCreated, p)
}

func (s *TargetServer) listEnvironments(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.checkProject(w, r) {
		return
	}
	writeJSON(w, http.StatusOK, page(r, s.environments))
}

func (s *TargetServer) createEnvironment(w http.ResponseWriter, r *http.Request) {
	var env target.Environment
	if !decode(w, r, &env) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.checkProject(w, r) {
		return
	}
	if !slices.Contains(target.EnvironmentTypes, env.Type) {
		writeError(w, http.StatusBadRequest, "type must be one of "+strings.Join(target.EnvironmentTypes, ", "))
		return
	}
	env.ID = s.id("env")
	s.environments = append(s.environments, env)
	writeJSON(w, http.StatusCreated, env)
}

func (s *TargetServer) listFeatures(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.checkProject(w, r) {
		return
	}
	writeJSON(w, http.StatusOK, page(r, sortedValues(s.features)))
}

func (s *TargetServer) saveFeature(w http.ResponseWriter, r *http.Request) {
	var f target.Feature
	if !decode(w, r, &f) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.checkProject(w, r) {
		return
	}
	existing, exists := s.features[f.Key]
	switch {
	case r.Method == http.MethodPost && exists:
		writeError(w, http.StatusConflict, "Duplicate key")
		return
	case r.Method == http.MethodPatch && !exists:
		writeError(w, http.StatusNotFound, "Feature not found")
		return
	case exists:
		f.ID = existing.ID
	default:
		f.ID = s.id("feature")
	}
	s.features[f.Key] = f
	writeJSON(w, http.StatusOK, f)
}

func (s *TargetServer) saveConfiguration(w http.ResponseWriter, r *http.Request) {
	var c target.FeatureConfiguration
	if !decode(w, r, &c) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.checkProject(w, r) {
		return
	}
	featureKey := r.PathValue("feature")
	if _, ok := s.features[featureKey]; !ok {
		writeError(w, http.StatusNotFound, "Feature not found")
		return
	}
	c.Environment = r.URL.Query().Get("environment")
	if s.configurations[featureKey] == nil {
		s.configurations[featureKey] = map[string]target.FeatureConfiguration{}
	}
	s.configurations[featureKey][c.Environment] = c
	writeJSON(w, http.StatusOK, c)
}

func (s *TargetServer) listAudiences(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.checkProject(w, r) {
		return
	}
	writeJSON(w, http.StatusOK, page(r, sortedValues(s.audiences)))
}

func (s *TargetServer) saveAudience(w http.ResponseWriter, r *http.Request) {
	var a target.Audience
	if !decode(w, r, &a) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.checkProject(w, r) {
		return
	}
	if existing, ok := s.audiences[a.Key]; ok {
		a.ID = existing.ID
	} else {
		a.ID = s.id("audience")
	}
	s.audiences[a.Key] = a
	writeJSON(w, http.StatusOK, a)
}

func (s *TargetServer) listProperties(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.checkProject(w, r) {
		return
	}
	writeJSON(w, http.StatusOK, page(r, sortedValues(s.properties)))
}

func (s *TargetServer) saveProperty(w http.ResponseWriter, r *http.Request) {
	var p target.CustomProperty
	if !decode(w, r, &p) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.checkProject(w, r) {
		return
	}
	if existing, ok := s.properties[p.Key]; ok {
		p.ID = existing.ID
	} else {
		p.ID = s.id("property")
	}
	s.properties[p.Key] = p
	writeJSON(w, http.StatusOK, p)
}
