package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/client"
	"github.com/docker/go-connections/nat"
)

const dockerWebPort = nat.Port("80/tcp")

// DockerClient implements Client by serving uploaded files from a local
// nginx container. Intended for development and self-hosted installs.
type DockerClient struct {
	cli         *client.Client
	contentRoot string // host directory where site files are materialized
	image       string
	logger      *slog.Logger
}

// NewDockerClient creates a local Docker provider client. If host is empty,
// the Docker host is taken from the environment.
func NewDockerClient(host, contentRoot, image string, logger *slog.Logger) (*DockerClient, error) {
	opts := []client.Opt{client.FromEnv, client.WithAPIVersionNegotiation()}
	if host != "" {
		opts = append(opts, client.WithHost(host))
	}

	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}

	if image == "" {
		image = "nginx:alpine"
	}

	return &DockerClient{
		cli:         cli,
		contentRoot: contentRoot,
		image:       image,
		logger:      logger.With("provider", "docker"),
	}, nil
}

// Close closes the Docker client connection.
func (c *DockerClient) Close() error {
	return c.cli.Close()
}

// Deploy writes the project files under the content root and starts an
// nginx container serving them on an ephemeral host port.
func (c *DockerClient) Deploy(ctx context.Context, req DeployRequest) (*DeployResult, error) {
	if len(req.Files) == 0 {
		return nil, &DeployError{Provider: "docker", Message: "local provider requires uploaded files"}
	}

	siteDir, err := c.writeSiteFiles(req)
	if err != nil {
		return nil, &DeployError{Provider: "docker", Message: err.Error()}
	}

	config := &container.Config{
		Image:        c.image,
		ExposedPorts: nat.PortSet{dockerWebPort: struct{}{}},
		Labels: map[string]string{
			"launchpad.project": req.Name,
		},
	}
	hostConfig := &container.HostConfig{
		PortBindings: nat.PortMap{
			// empty HostPort lets the daemon pick an ephemeral port
			dockerWebPort: []nat.PortBinding{{HostIP: "127.0.0.1"}},
		},
		Mounts: []mount.Mount{
			{
				Type:     mount.TypeBind,
				Source:   siteDir,
				Target:   "/usr/share/nginx/html",
				ReadOnly: true,
			},
		},
		RestartPolicy: container.RestartPolicy{Name: container.RestartPolicyUnlessStopped},
	}

	created, err := c.cli.ContainerCreate(ctx, config, hostConfig, nil, nil, "launchpad-"+req.Name)
	if err != nil {
		if strings.Contains(err.Error(), "Conflict") {
			// Redeploy of the same project replaces the previous container.
			if rmErr := c.cli.ContainerRemove(ctx, "launchpad-"+req.Name, container.RemoveOptions{Force: true}); rmErr != nil {
				return nil, &DeployError{Provider: "docker", Message: fmt.Sprintf("failed to replace container: %v", rmErr)}
			}
			created, err = c.cli.ContainerCreate(ctx, config, hostConfig, nil, nil, "launchpad-"+req.Name)
		}
		if err != nil {
			return nil, &DeployError{Provider: "docker", Message: fmt.Sprintf("failed to create container: %v", err)}
		}
	}

	if err := c.cli.ContainerStart(ctx, created.ID, container.StartOptions{}); err != nil {
		return nil, &DeployError{Provider: "docker", Message: fmt.Sprintf("failed to start container: %v", err)}
	}

	inspected, err := c.cli.ContainerInspect(ctx, created.ID)
	if err != nil {
		return nil, &DeployError{Provider: "docker", Message: fmt.Sprintf("failed to inspect container: %v", err)}
	}

	bindings := inspected.NetworkSettings.Ports[dockerWebPort]
	if len(bindings) == 0 {
		return nil, &DeployError{Provider: "docker", Message: "container has no published port"}
	}
	hostPort := bindings[0].HostPort

	c.logger.Info("container serving site", "container_id", created.ID[:12], "name", req.Name, "port", hostPort)

	raw, _ := json.Marshal(map[string]string{
		"container_id": created.ID,
		"image":        c.image,
		"host_port":    hostPort,
	})
	return &DeployResult{
		URL: fmt.Sprintf("http://127.0.0.1:%s", hostPort),
		Raw: raw,
	}, nil
}

func (c *DockerClient) writeSiteFiles(req DeployRequest) (string, error) {
	siteDir := filepath.Join(c.contentRoot, req.Name)
	if err := os.RemoveAll(siteDir); err != nil {
		return "", fmt.Errorf("failed to clear site dir: %w", err)
	}
	for _, f := range req.Files {
		rel := filepath.Clean(f.Path)
		if rel == ".." || strings.HasPrefix(rel, "../") || filepath.IsAbs(rel) {
			return "", fmt.Errorf("file path %q escapes site dir", f.Path)
		}
		dst := filepath.Join(siteDir, rel)
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return "", fmt.Errorf("failed to create dir for %s: %w", rel, err)
		}
		if err := os.WriteFile(dst, []byte(f.Content), 0o644); err != nil {
			return "", fmt.Errorf("failed to write %s: %w", rel, err)
		}
	}
	return siteDir, nil
}
