package imagegen

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/go-connections/nat"
)

const (
	webuiPort        = "7860/tcp"
	readyPollDelay   = 2 * time.Second
	readyMaxAttempts = 60
)

// DockerRuntime starts a local Stable Diffusion WebUI container when no
// instance is reachable. It owns exactly one named container and leaves
// anything else on the host alone.
type DockerRuntime struct {
	logger *slog.Logger
	cli    *client.Client
	image  string
	name   string
}

func NewDockerRuntime(logger *slog.Logger, imageRef, name string) (*DockerRuntime, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("create docker client: %w", err)
	}
	return &DockerRuntime{logger: logger, cli: cli, image: imageRef, name: name}, nil
}

// Ensure makes the WebUI at apiURL reachable, creating or restarting the
// managed container as needed, then blocks until the API answers.
func (r *DockerRuntime) Ensure(ctx context.Context, apiURL string) error {
	if r.ping(ctx, apiURL) == nil {
		r.logger.Info("stable diffusion webui already reachable", "url", apiURL)
		return nil
	}

	containers, err := r.cli.ContainerList(ctx, container.ListOptions{
		All:     true,
		Filters: filters.NewArgs(filters.Arg("name", r.name)),
	})
	if err != nil {
		return fmt.Errorf("list containers: %w", err)
	}

	if len(containers) > 0 {
		existing := containers[0]
		if existing.State != "running" {
			r.logger.Info("starting existing webui container", "id", existing.ID[:12])
			if err := r.cli.ContainerStart(ctx, existing.ID, container.StartOptions{}); err != nil {
				return fmt.Errorf("start container: %w", err)
			}
		}
		return r.waitReady(ctx, apiURL)
	}

	if err := r.create(ctx); err != nil {
		return err
	}
	return r.waitReady(ctx, apiURL)
}

func (r *DockerRuntime) create(ctx context.Context) error {
	cfg := &container.Config{
		Image:        r.image,
		ExposedPorts: nat.PortSet{webuiPort: struct{}{}},
		Labels: map[string]string{
			"shortforge.managed": "true",
		},
	}
	hostCfg := &container.HostConfig{
		PortBindings: nat.PortMap{
			webuiPort: []nat.PortBinding{{HostIP: "127.0.0.1", HostPort: "7860"}},
		},
		RestartPolicy: container.RestartPolicy{Name: container.RestartPolicyUnlessStopped},
	}

	resp, err := r.cli.ContainerCreate(ctx, cfg, hostCfg, nil, nil, r.name)
	if client.IsErrNotFound(err) {
		r.logger.Info("pulling webui image", "image", r.image)
		reader, pullErr := r.cli.ImagePull(ctx, r.image, image.PullOptions{})
		if pullErr != nil {
			return fmt.Errorf("pull image %s: %w", r.image, pullErr)
		}
		_, _ = io.Copy(io.Discard, reader)
		reader.Close()
		resp, err = r.cli.ContainerCreate(ctx, cfg, hostCfg, nil, nil, r.name)
	}
	if err != nil {
		return fmt.Errorf("create container: %w", err)
	}

	if err := r.cli.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		_ = r.cli.ContainerRemove(ctx, resp.ID, container.RemoveOptions{Force: true})
		return fmt.Errorf("start container: %w", err)
	}
	r.logger.Info("webui container started", "id", resp.ID[:12])
	return nil
}

// waitReady polls the API until it answers. Model loading dominates the
// startup time, so the window is deliberately long.
func (r *DockerRuntime) waitReady(ctx context.Context, apiURL string) error {
	for attempt := 0; attempt < readyMaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(readyPollDelay):
		}
		if err := r.ping(ctx, apiURL); err == nil {
			r.logger.Info("stable diffusion webui ready", "url", apiURL)
			return nil
		}
	}
	return fmt.Errorf("webui at %s not ready after %s", apiURL, time.Duration(readyMaxAttempts)*readyPollDelay)
}

func (r *DockerRuntime) ping(ctx context.Context, apiURL string) error {
	pctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(pctx, "GET", apiURL+"/sdapi/v1/sd-models", nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return nil
}
