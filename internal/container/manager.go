// Package container manages the per-snapshot test containers: building
// base/env images, starting one long-lived container per snapshot,
// executing commands with a hard timeout and streamed/compressed output,
// copying files in and out, and a scoped "git-in-docker" patch-application
// helper. It shells to the docker CLI rather than binding a Docker SDK.
package container

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"sync"

	"github.com/FSoft-AI4Code/swesynth-go/internal/logging"
)

// Manager owns the docker CLI path, the process-wide per-image build
// locks, and in-flight container bookkeeping.
type Manager struct {
	dockerPath string
	available  bool

	buildLocksMu sync.Mutex
	buildLocks   map[string]*sync.Mutex
}

// NewManager detects the docker CLI and returns a Manager. IsAvailable
// reports whether a usable docker binary was found.
func NewManager() *Manager {
	m := &Manager{buildLocks: map[string]*sync.Mutex{}}
	path, err := exec.LookPath("docker")
	if err != nil {
		logging.For(logging.Container).Sugar().Warnw("docker binary not found", "error", err)
		return m
	}
	m.dockerPath = path
	m.available = true
	return m
}

// IsAvailable reports whether a docker binary is usable.
func (m *Manager) IsAvailable() bool { return m.available }

// lockFor returns the per-image-name mutex, creating it on first use:
// builds of different images proceed concurrently, builds of the same
// image serialize.
func (m *Manager) lockFor(image string) *sync.Mutex {
	m.buildLocksMu.Lock()
	defer m.buildLocksMu.Unlock()
	if l, ok := m.buildLocks[image]; ok {
		return l
	}
	l := &sync.Mutex{}
	m.buildLocks[image] = l
	return l
}

// ImageRecipe describes how to build one base or per-version environment
// image, keyed by repo+version.
type ImageRecipe struct {
	Tag        string
	Dockerfile string
	BuildDir   string // directory docker build runs in; Dockerfile is written here as "Dockerfile"
}

// EnsureImage builds Tag from Dockerfile if it doesn't already exist,
// serialized by a lock scoped to this image name only.
func (m *Manager) EnsureImage(ctx context.Context, recipe ImageRecipe) error {
	lock := m.lockFor(recipe.Tag)
	lock.Lock()
	defer lock.Unlock()

	if m.imageExists(ctx, recipe.Tag) {
		return nil
	}

	log := logging.For(logging.Container).Sugar()
	log.Infow("building image", "tag", recipe.Tag)

	cmd := exec.CommandContext(ctx, m.dockerPath, "build", "-t", recipe.Tag, "-f", "-", recipe.BuildDir)
	cmd.Stdin = bytes.NewBufferString(recipe.Dockerfile)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("container: build %s: %w: %s", recipe.Tag, err, stderr.String())
	}
	return nil
}

func (m *Manager) imageExists(ctx context.Context, tag string) bool {
	cmd := exec.CommandContext(ctx, m.dockerPath, "image", "inspect", tag)
	return cmd.Run() == nil
}

// PullImage pulls an image by name:tag.
func (m *Manager) PullImage(ctx context.Context, ref string) error {
	cmd := exec.CommandContext(ctx, m.dockerPath, "pull", ref)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("container: pull %s: %w: %s", ref, err, stderr.String())
	}
	return nil
}

// CreateOptions configures a new per-snapshot container: CPU/memory caps,
// mount-less filesystem, optional network isolation.
type CreateOptions struct {
	Image       string
	Name        string
	MemoryLimit string
	CPULimit    string
	NetworkOff  bool
	WorkDir     string
	Env         map[string]string
}

// Create starts one long-lived container from an image, sleeping
// indefinitely so subsequent Exec calls can be issued against it.
func (m *Manager) Create(ctx context.Context, opts CreateOptions) (*Container, error) {
	if !m.available {
		return nil, fmt.Errorf("container: docker is not available")
	}

	args := []string{"create"}
	if opts.Name != "" {
		args = append(args, "--name", opts.Name)
	}
	if opts.WorkDir != "" {
		args = append(args, "-w", opts.WorkDir)
	}
	for k, v := range opts.Env {
		args = append(args, "-e", fmt.Sprintf("%s=%s", k, v))
	}
	if opts.MemoryLimit != "" {
		args = append(args, "--memory", opts.MemoryLimit)
	}
	if opts.CPULimit != "" {
		args = append(args, "--cpus", opts.CPULimit)
	}
	if opts.NetworkOff {
		args = append(args, "--network", "none")
	}
	args = append(args, opts.Image, "sleep", "infinity")

	cmd := exec.CommandContext(ctx, m.dockerPath, args...)
	var out, stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("container: create: %w: %s", err, stderr.String())
	}
	id := firstLine(out.String())

	startCmd := exec.CommandContext(ctx, m.dockerPath, "start", id)
	startCmd.Stderr = &stderr
	if err := startCmd.Run(); err != nil {
		return nil, fmt.Errorf("container: start %s: %w: %s", id, err, stderr.String())
	}

	return &Container{ID: id, manager: m}, nil
}

func firstLine(s string) string {
	for i, c := range s {
		if c == '\n' {
			return s[:i]
		}
	}
	return s
}
