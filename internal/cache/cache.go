// Package cache provides the per-run query cache in front of the Source API.
// Environment lists are cached for a single project key and flag queries are
// batched by environment.
package cache

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/JoobyPM/flagport/internal/backend"
	"github.com/JoobyPM/flagport/internal/source"
)

// BatchSize is the largest number of environments requested per flag query.
const BatchSize = 3

// Provenance records which call produced the cached environment list.
type Provenance string

// Provenance values.
const (
	FromProject      Provenance = "project"
	FromEnvironments Provenance = "environments"
)

// Cache caches the environment list of one project at a time.
type Cache struct {
	src backend.Source

	mu         sync.RWMutex
	projectKey string
	project    *source.Project
	envs       []source.Environment
	provenance Provenance
	loaded     bool
}

// New creates a cache over src. Nothing is fetched until first use.
func New(src backend.Source) *Cache {
	return &Cache{src: src}
}

// Provenance returns where the cached environment list came from, or "" when
// nothing is cached.
func (c *Cache) Provenance() Provenance {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.provenance
}

// Project returns the project fetched while loading environments.
func (c *Cache) Project(ctx context.Context, projectKey string) (*source.Project, error) {
	if _, err := c.Environments(ctx, projectKey); err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	p := *c.project
	return &p, nil
}

// EnvironmentsForProject returns the environment keys of projectKey. A cached
// list for a different project is replaced, not extended.
func (c *Cache) EnvironmentsForProject(ctx context.Context, projectKey string) ([]string, error) {
	envs, err := c.Environments(ctx, projectKey)
	if err != nil {
		return nil, err
	}
	keys := make([]string, len(envs))
	for i, env := range envs {
		keys[i] = env.Key
	}
	return keys, nil
}

// Environments is EnvironmentsForProject with the full environment records.
func (c *Cache) Environments(ctx context.Context, projectKey string) ([]source.Environment, error) {
	c.mu.RLock()
	if c.loaded && c.projectKey == projectKey {
		envs := slices.Clone(c.envs)
		c.mu.RUnlock()
		return envs, nil
	}
	c.mu.RUnlock()

	project, err := c.src.GetProject(ctx, projectKey)
	if err != nil {
		return nil, fmt.Errorf("load environments: %w", err)
	}

	var envs []source.Environment
	provenance := FromProject
	if project.Environments != nil && len(project.Environments.Items) > 0 {
		envs = project.Environments.Items
	} else {
		envs, err = c.src.GetEnvironments(ctx, projectKey)
		if err != nil {
			return nil, fmt.Errorf("load environments: %w", err)
		}
		provenance = FromEnvironments
	}

	c.mu.Lock()
	c.projectKey = projectKey
	c.project = project
	c.envs = slices.Clone(envs)
	c.provenance = provenance
	c.loaded = true
	c.mu.Unlock()

	return envs, nil
}

// FeatureFlagsForProject lists every flag of projectKey with the
// configuration of all its environments. One request is issued per batch of
// at most BatchSize environments and results are merged in batch order.
// A flag returned by several batches keeps its first position and gains the
// environments of the later batches.
func (c *Cache) FeatureFlagsForProject(ctx context.Context, projectKey string) (*source.FeatureList, error) {
	envKeys, err := c.EnvironmentsForProject(ctx, projectKey)
	if err != nil {
		return nil, err
	}

	out := &source.FeatureList{Items: []source.Feature{}}
	index := make(map[string]int)
	for batch := range slices.Chunk(envKeys, BatchSize) {
		list, err := c.src.GetFeatureFlags(ctx, projectKey, batch)
		if err != nil {
			return nil, err
		}
		for _, f := range list.Items {
			i, seen := index[f.Key]
			if !seen {
				index[f.Key] = len(out.Items)
				out.Items = append(out.Items, f)
				continue
			}
			merged := &out.Items[i]
			if merged.Environments == nil {
				merged.Environments = make(map[string]source.FeatureEnvironment, len(f.Environments))
			}
			for k, env := range f.Environments {
				merged.Environments[k] = env
			}
		}
	}
	return out, nil
}
