package testutil

import (
	"context"
	"fmt"

	"github.com/JoobyPM/flagport/internal/source"
	"github.com/JoobyPM/flagport/internal/target"
)

// Test credentials accepted by the fake servers.
const (
	SourceToken        = "api-test-token"
	TargetClientID     = "client-id"
	TargetClientSecret = "client-secret"
)

// TestEnv holds a Source and a Target server for one test.
type TestEnv struct {
	Source *SourceServer
	Target *TargetServer
}

// SetupTestEnv starts both servers. The Source serves project with its
// environments; the Target starts empty.
func SetupTestEnv(project source.Project) *TestEnv {
	return &TestEnv{
		Source: NewSourceServer(SourceToken, project),
		Target: NewTargetServer(TargetClientID, TargetClientSecret),
	}
}

// Cleanup stops both servers.
func (e *TestEnv) Cleanup() {
	e.Source.Close()
	e.Target.Close()
}

// SourceClient returns a client for the Source server.
func (e *TestEnv) SourceClient() *source.Client {
	return source.New(e.Source.URL, SourceToken, nil)
}

// TargetClient returns a client for the Target server using the
// client-credentials grant.
func (e *TestEnv) TargetClient(ctx context.Context) (*target.Client, error) {
	c, err := target.New(ctx, target.Options{
		BaseURL:      e.Target.URL,
		AuthURL:      e.Target.AuthURL(),
		ClientID:     TargetClientID,
		ClientSecret: TargetClientSecret,
	})
	if err != nil {
		return nil, fmt.Errorf("target client: %w", err)
	}
	return c, nil
}

// Project builds a Source project with the given environment keys.
func Project(key string, envKeys ...string) source.Project {
	p := source.Project{Key: key, Name: key, Environments: &source.EnvironmentList{}}
	for _, k := range envKeys {
		p.Environments.Items = append(p.Environments.Items, source.Environment{Key: k, Name: k})
	}
	return p
}
