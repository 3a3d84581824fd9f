// Package orchestrator is the per-commit orchestrator: it samples base
// commits, fans workers out across them under global exec/model concurrency
// caps, splits the per-strategy mutation quota, and resumes from a commit's
// existing journal on restart. One goroutine per commit, joined through an
// errgroup, bounded by a weighted semaphore.
package orchestrator

import (
	"context"
	"fmt"
	"sync/atomic"

	"golang.org/x/sync/semaphore"

	"github.com/FSoft-AI4Code/swesynth-go/internal/config"
	"github.com/FSoft-AI4Code/swesynth-go/internal/container"
	"github.com/FSoft-AI4Code/swesynth-go/internal/model"
)

// Runtime bundles the process-wide resources every per-commit worker shares:
// the container manager, the model client, and the two global concurrency
// semaphores (exec concurrency, model concurrency).
type Runtime struct {
	Config       *config.Config
	ContainerMgr *container.Manager
	Model        model.Client

	execSem      *semaphore.Weighted
	execInFlight atomic.Int64
}

// NewRuntime builds a Runtime from cfg, constructing the container manager
// and the default HTTP model client and sizing both semaphores off
// cfg.Limits.
func NewRuntime(cfg *config.Config) *Runtime {
	modelClient := model.NewHTTPClient(cfg.Model.Endpoint, cfg.Model.APIKey, cfg.Model.Identifier, cfg.Model.MaxRetries, cfg.ModelTimeoutDuration())
	return &Runtime{
		Config:       cfg,
		ContainerMgr: container.NewManager(),
		Model:        &semaphoredModelClient{inner: modelClient, sem: semaphore.NewWeighted(int64(cfg.Limits.ModelConcurrency))},
		execSem:      semaphore.NewWeighted(int64(cfg.Limits.ExecConcurrency)),
	}
}

// AcquireExecSlot blocks until a global exec slot is free, bounding how many
// per-commit workers may hold a live container concurrently.
func (r *Runtime) AcquireExecSlot(ctx context.Context) error {
	if err := r.execSem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("orchestrator: acquire exec slot: %w", err)
	}
	r.execInFlight.Add(1)
	return nil
}

// ReleaseExecSlot releases a slot acquired by AcquireExecSlot.
func (r *Runtime) ReleaseExecSlot() {
	r.execInFlight.Add(-1)
	r.execSem.Release(1)
}

// ExecSlotsInUse reports how many workers currently hold an exec slot, for
// the orchestrator's periodic monitor.
func (r *Runtime) ExecSlotsInUse() int64 { return r.execInFlight.Load() }

// semaphoredModelClient wraps a model.Client so every Complete call is
// bounded by the global model-concurrency cap, independent of however many
// strategies happen to be calling it at once across commits.
type semaphoredModelClient struct {
	inner model.Client
	sem   *semaphore.Weighted
}

func (c *semaphoredModelClient) Complete(ctx context.Context, req model.Request) (string, error) {
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return "", fmt.Errorf("orchestrator: acquire model slot: %w", err)
	}
	defer c.sem.Release(1)
	return c.inner.Complete(ctx, req)
}

// DefaultDockerfile renders a minimal per-(repo,version) environment image
// recipe: a Python base image with the project installed in editable mode
// and pytest-cov available for the call-graph tracer.
// The orchestrator builds every project's environment image from this
// recipe; there is no per-project override.
func DefaultDockerfile(pythonVersion string) string {
	if pythonVersion == "" {
		pythonVersion = "3.11"
	}
	return fmt.Sprintf(`FROM python:%s-slim
RUN apt-get update && apt-get install -y git build-essential && rm -rf /var/lib/apt/lists/*
RUN pip install --no-cache-dir pytest pytest-cov coverage
WORKDIR /testbed
`, pythonVersion)
}

// imageTag derives a stable image tag for a (repo, version) pair.
func imageTag(repoSlug, version string) string {
	if version == "" {
		version = "unversioned"
	}
	return fmt.Sprintf("swesynth/%s:%s", sanitizeTag(repoSlug), sanitizeTag(version))
}

func sanitizeTag(s string) string {
	out := make([]byte, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= '0' && c <= '9', c == '-', c == '.', c == '_':
			out[i] = c
		case c >= 'A' && c <= 'Z':
			out[i] = c + ('a' - 'A')
		default:
			out[i] = '-'
		}
	}
	return string(out)
}
