package container

import (
	"archive/tar"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/FSoft-AI4Code/swesynth-go/internal/artifact"
	"github.com/FSoft-AI4Code/swesynth-go/internal/logging"
)

// Container is one long-lived container hosting a single snapshot's test
// session.
type Container struct {
	ID      string
	manager *Manager
}

// streamRegistry tracks the stream file each container is currently
// writing, so a monitor can see which containers are mid-exec.
var streamRegistry sync.Map // container ID -> stream file path

// ActiveStreams returns a snapshot of the in-flight stream files, keyed by
// container ID.
func ActiveStreams() map[string]string {
	out := map[string]string{}
	streamRegistry.Range(func(k, v any) bool {
		out[k.(string)] = v.(string)
		return true
	})
	return out
}

// ExecResult is the outcome of one command run inside the container.
// Output is the combined stdout+stderr transcript in arrival order.
type ExecResult struct {
	ExitCode int
	Output   string
	TimedOut bool
	Duration time.Duration
}

// Exec writes command as a shell script into artifactDir, copies it into
// the container, and runs it under timeout. Output streams line-by-line to
// {artifactDir}/test_output_{name}.log while the command is in flight, and
// on completion the full transcript is compressed to
// test_output_{name}.log.zst and the stream file removed. On timeout, the
// script's process inside the container is signaled and a TimedOut=true
// result is returned — a recoverable, per-candidate failure, never a fatal
// error for the container.
func (c *Container) Exec(ctx context.Context, command, name string, timeout time.Duration, artifactDir string) (*ExecResult, error) {
	log := logging.For(logging.Container).Sugar()

	scriptBase := fmt.Sprintf("exec_%s.sh", name)
	containerScript := "/tmp/" + scriptBase
	scriptHost := filepath.Join(os.TempDir(), c.ID[:min(12, len(c.ID))]+"-"+scriptBase)
	if artifactDir != "" {
		if err := os.MkdirAll(artifactDir, 0755); err != nil {
			return nil, fmt.Errorf("container: mkdir %s: %w", artifactDir, err)
		}
		scriptHost = filepath.Join(artifactDir, scriptBase)
	}
	if err := os.WriteFile(scriptHost, []byte("#!/bin/sh\n"+command+"\n"), 0755); err != nil {
		return nil, fmt.Errorf("container: write exec script: %w", err)
	}
	if err := c.CopyIn(ctx, scriptHost, containerScript); err != nil {
		return nil, fmt.Errorf("container: copy exec script: %w", err)
	}

	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(execCtx, c.manager.dockerPath, "exec", c.ID, "sh", containerScript)

	var transcript bytes.Buffer
	var streamPath string
	var stream *os.File
	if artifactDir != "" {
		streamPath = filepath.Join(artifactDir, fmt.Sprintf("test_output_%s.log", name))
		f, err := os.Create(streamPath)
		if err != nil {
			log.Warnw("failed to open stream file, capturing in memory only", "path", streamPath, "error", err)
		} else {
			stream = f
			streamRegistry.Store(c.ID, streamPath)
			defer streamRegistry.Delete(c.ID)
		}
	}
	// One writer value for both streams keeps a single copy goroutine, so
	// stdout and stderr interleave in arrival order without racing.
	var sink io.Writer = &transcript
	if stream != nil {
		sink = io.MultiWriter(&transcript, stream)
	}
	cmd.Stdout = sink
	cmd.Stderr = sink

	start := time.Now()
	runErr := cmd.Run()
	duration := time.Since(start)

	if stream != nil {
		stream.Close()
	}

	result := &ExecResult{Output: transcript.String(), Duration: duration}

	if execCtx.Err() == context.DeadlineExceeded {
		result.TimedOut = true
		result.ExitCode = -1
		c.killScript(containerScript)
		log.Warnw("exec timed out, in-container process signaled", "container", c.ID[:min(12, len(c.ID))], "name", name, "timeout", timeout)
	} else if runErr != nil {
		if exitErr, ok := runErr.(*exec.ExitError); ok {
			result.ExitCode = exitErr.ExitCode()
		} else {
			return nil, fmt.Errorf("container: exec %s: %w", name, runErr)
		}
	}

	if artifactDir != "" {
		if err := artifact.WriteZST(filepath.Join(artifactDir, artifact.TestOutputFile(name)), transcript.Bytes()); err != nil {
			log.Errorw("failed to persist exec transcript", "name", name, "error", err)
		} else if streamPath != "" {
			os.Remove(streamPath)
		}
	}

	return result, nil
}

// killScript sends SIGTERM to whatever process is still running the given
// script inside the container, after the docker-exec client has already
// been torn down by a timeout.
func (c *Container) killScript(script string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = exec.CommandContext(ctx, c.manager.dockerPath, "exec", c.ID, "pkill", "-TERM", "-f", script).Run()
}

// CopyIn copies a host file into the container via "docker cp".
func (c *Container) CopyIn(ctx context.Context, hostPath, containerPath string) error {
	cmd := exec.CommandContext(ctx, c.manager.dockerPath, "cp", hostPath, c.ID+":"+containerPath)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("container: copy to container: %w: %s", err, stderr.String())
	}
	return nil
}

// CopyOut copies a file from the container to the host via "docker cp".
func (c *Container) CopyOut(ctx context.Context, containerPath, hostPath string) error {
	cmd := exec.CommandContext(ctx, c.manager.dockerPath, "cp", c.ID+":"+containerPath, hostPath)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("container: copy from container: %w: %s", err, stderr.String())
	}
	return nil
}

// ReadFile streams a tar archive of the single file at containerPath out of
// the container (via "docker exec ... tar cf -") and extracts its text —
// used to retrieve the call-graph tracer's dump file without a temp file on
// the host.
func (c *Container) ReadFile(ctx context.Context, containerPath string) (string, error) {
	dir := dirOf(containerPath)
	base := baseOf(containerPath)

	cmd := exec.CommandContext(ctx, c.manager.dockerPath, "exec", c.ID, "tar", "cf", "-", "-C", dir, base)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("container: tar stream %s: %w: %s", containerPath, err, stderr.String())
	}

	tr := tar.NewReader(&stdout)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("container: read tar stream: %w", err)
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		var out bytes.Buffer
		if _, err := io.Copy(&out, tr); err != nil {
			return "", fmt.Errorf("container: extract %s: %w", hdr.Name, err)
		}
		return out.String(), nil
	}
	return "", fmt.Errorf("container: tar stream for %s contained no regular file member", containerPath)
}

// Remove stops and removes the container; safe to call on a container that
// was never successfully created.
func (c *Container) Remove(ctx context.Context) error {
	stopCmd := exec.CommandContext(ctx, c.manager.dockerPath, "stop", c.ID)
	_ = stopCmd.Run()

	rmCmd := exec.CommandContext(ctx, c.manager.dockerPath, "rm", "-f", c.ID)
	var stderr bytes.Buffer
	rmCmd.Stderr = &stderr
	if err := rmCmd.Run(); err != nil {
		return fmt.Errorf("container: remove %s: %w: %s", c.ID, err, stderr.String())
	}
	return nil
}

func dirOf(path string) string {
	if i := strings.LastIndex(path, "/"); i >= 0 {
		if i == 0 {
			return "/"
		}
		return path[:i]
	}
	return "."
}

func baseOf(path string) string {
	if i := strings.LastIndex(path, "/"); i >= 0 {
		return path[i+1:]
	}
	return path
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
