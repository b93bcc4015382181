package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/digitalocean/godo"
)

// DigitalOceanClient implements Client using the DigitalOcean App Platform.
type DigitalOceanClient struct {
	client *godo.Client
	logger *slog.Logger
}

// NewDigitalOceanClient creates a DigitalOcean provider client.
func NewDigitalOceanClient(apiToken string, logger *slog.Logger) *DigitalOceanClient {
	return &DigitalOceanClient{
		client: godo.NewFromToken(apiToken),
		logger: logger.With("provider", "digitalocean"),
	}
}

// Deploy creates an App Platform static site from the project's git source
// and waits for a live URL. App Platform has no inline-file upload path, so
// upload-sourced projects are rejected.
func (c *DigitalOceanClient) Deploy(ctx context.Context, req DeployRequest) (*DeployResult, error) {
	if req.Git == nil {
		return nil, &DeployError{Provider: "digitalocean", Message: "app platform requires a git source"}
	}

	app, _, err := c.client.Apps.Create(ctx, &godo.AppCreateRequest{
		Spec: &godo.AppSpec{
			Name: req.Name,
			StaticSites: []*godo.AppStaticSiteSpec{
				{
					Name: req.Name,
					Git: &godo.GitSourceSpec{
						RepoCloneURL: req.Git.RepoURL,
						Branch:       req.Git.Branch,
					},
				},
			},
		},
	})
	if err != nil {
		return nil, &DeployError{Provider: "digitalocean", Message: fmt.Sprintf("failed to create app: %v", err)}
	}

	c.logger.Info("app created", "app_id", app.ID, "name", req.Name)

	liveURL, err := c.waitForLiveURL(ctx, app.ID)
	if err != nil {
		return nil, &DeployError{Provider: "digitalocean", Message: fmt.Sprintf("failed waiting for live url: %v", err)}
	}

	raw, _ := json.Marshal(app)
	return &DeployResult{URL: liveURL, Raw: raw}, nil
}

func (c *DigitalOceanClient) waitForLiveURL(ctx context.Context, appID string) (string, error) {
	for i := 0; i < 60; i++ {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(5 * time.Second):
		}

		app, _, err := c.client.Apps.Get(ctx, appID)
		if err != nil {
			continue
		}
		if app.LiveURL != "" {
			return app.LiveURL, nil
		}
		if app.DefaultIngress != "" {
			return app.DefaultIngress, nil
		}
	}
	return "", fmt.Errorf("app %s did not report a live url in time", appID)
}
