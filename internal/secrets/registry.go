// Package secrets is the Secret Registry of spec.md §4.6: CRUD over
// key→string, read by the scheduler at dispatch time and never logged
// (platform/logger already redacts any field whose key contains "secret").
package secrets

import (
	"context"
	"fmt"

	"github.com/flowmium-io/flowmium/internal/repos"
)

type Registry struct {
	repo repos.SecretRepo
}

func NewRegistry(repo repos.SecretRepo) *Registry {
	return &Registry{repo: repo}
}

func (r *Registry) Create(ctx context.Context, key, value string) error {
	return r.repo.Upsert(ctx, key, value)
}

func (r *Registry) Update(ctx context.Context, key, value string) error {
	return r.repo.Upsert(ctx, key, value)
}

func (r *Registry) Delete(ctx context.Context, key string) error {
	return r.repo.Delete(ctx, key)
}

// Resolve looks up a secret by name. Unresolved secrets are a dispatch
// error that fails the task immediately (spec.md §4.3).
func (r *Registry) Resolve(ctx context.Context, key string) (string, error) {
	value, ok, err := r.repo.Get(ctx, key)
	if err != nil {
		return "", fmt.Errorf("resolve secret %q: %w", key, err)
	}
	if !ok {
		return "", fmt.Errorf("secret %q not found", key)
	}
	return value, nil
}
