package sandbox

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
)

// DockerExecutor runs each command in an ephemeral, auto-removed container
// with a memory cap and (by default) no network, binding a workspace
// directory at /workspace.
type DockerExecutor struct {
	client      *client.Client
	image       string
	memoryBytes int64
	networkMode string
	workspace   string
	timeout     time.Duration
}

// DockerOptions configures a DockerExecutor.
type DockerOptions struct {
	// Image to run commands in. Default "alpine:latest".
	Image string
	// MemoryMB caps container memory. Default 512.
	MemoryMB int64
	// NetworkMode for the container. Default "none".
	NetworkMode string
	// Workspace is the host directory bound at /workspace.
	Workspace string
	// Timeout per command. Zero means DefaultTimeout.
	Timeout time.Duration
}

// NewDockerExecutor creates an executor using the ambient Docker daemon.
func NewDockerExecutor(opts DockerOptions) (*DockerExecutor, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("sandbox: docker client: %w", err)
	}

	if opts.Image == "" {
		opts.Image = "alpine:latest"
	}
	if opts.MemoryMB <= 0 {
		opts.MemoryMB = 512
	}
	if opts.NetworkMode == "" {
		opts.NetworkMode = "none"
	}

	return &DockerExecutor{
		client:      cli,
		image:       opts.Image,
		memoryBytes: opts.MemoryMB * 1024 * 1024,
		networkMode: opts.NetworkMode,
		workspace:   opts.Workspace,
		timeout:     opts.Timeout,
	}, nil
}

// Exec implements Executor.
func (d *DockerExecutor) Exec(ctx context.Context, cmd, workDir string) (stdout, stderr string, exitCode int, err error) {
	ctx, cancel := withTimeout(ctx, d.timeout)
	defer cancel()

	if workDir == "" {
		workDir = "/workspace"
	}

	hostCfg := &container.HostConfig{
		Resources:   container.Resources{Memory: d.memoryBytes},
		NetworkMode: container.NetworkMode(d.networkMode),
		AutoRemove:  true,
	}
	if d.workspace != "" {
		hostCfg.Binds = []string{fmt.Sprintf("%s:/workspace", d.workspace)}
	}

	resp, err := d.client.ContainerCreate(ctx, &container.Config{
		Image:      d.image,
		Cmd:        []string{"sh", "-c", cmd},
		WorkingDir: workDir,
		Tty:        false,
	}, hostCfg, nil, nil, "")
	if err != nil {
		return "", "", -1, fmt.Errorf("sandbox: create container: %w", err)
	}
	containerID := resp.ID

	if err := d.client.ContainerStart(ctx, containerID, container.StartOptions{}); err != nil {
		return "", "", -1, fmt.Errorf("sandbox: start container: %w", err)
	}

	statusCh, errCh := d.client.ContainerWait(ctx, containerID, container.WaitConditionNotRunning)
	select {
	case err := <-errCh:
		return "", "", -1, fmt.Errorf("sandbox: wait container: %w", err)
	case status := <-statusCh:
		exitCode = int(status.StatusCode)
	case <-ctx.Done():
		_ = d.client.ContainerKill(context.WithoutCancel(ctx), containerID, "SIGKILL")
		return "", "command timed out", -1, ctx.Err()
	}

	out, err := d.client.ContainerLogs(ctx, containerID, container.LogsOptions{ShowStdout: true, ShowStderr: true})
	if err != nil {
		return "", "", exitCode, fmt.Errorf("sandbox: container logs: %w", err)
	}
	defer out.Close()

	var stdoutBuf, stderrBuf bytes.Buffer
	_, _ = stdcopy.StdCopy(&stdoutBuf, &stderrBuf, out)
	return stdoutBuf.String(), stderrBuf.String(), exitCode, nil
}

// Close releases the Docker client.
func (d *DockerExecutor) Close() error {
	return d.client.Close()
}
