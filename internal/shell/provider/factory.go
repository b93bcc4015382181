package provider

import (
	"fmt"
	"log/slog"
)

// Config carries provider-specific settings from the application config.
type Config struct {
	// Vercel
	VercelToken   string
	VercelBaseURL string

	// DigitalOcean
	DOToken string

	// Docker
	DockerHost  string
	ContentRoot string
	Image       string
}

// NewClient creates a deployment provider client by kind.
func NewClient(kind string, cfg Config, logger *slog.Logger) (Client, error) {
	switch kind {
	case "vercel":
		if cfg.VercelToken == "" {
			return nil, fmt.Errorf("vercel provider requires an api token")
		}
		return NewVercelClient(cfg.VercelToken, cfg.VercelBaseURL, logger), nil

	case "digitalocean":
		if cfg.DOToken == "" {
			return nil, fmt.Errorf("digitalocean provider requires an api token")
		}
		return NewDigitalOceanClient(cfg.DOToken, logger), nil

	case "docker":
		return NewDockerClient(cfg.DockerHost, cfg.ContentRoot, cfg.Image, logger)

	default:
		return nil, fmt.Errorf("unsupported provider kind: %s", kind)
	}
}
