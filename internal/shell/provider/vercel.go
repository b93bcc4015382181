package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

const defaultVercelBaseURL = "https://api.vercel.com"

// VercelClient implements Client against the Vercel deployments API.
type VercelClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewVercelClient creates a Vercel provider client. baseURL is overridable
// for tests; empty means the public API.
func NewVercelClient(token, baseURL string, logger *slog.Logger) *VercelClient {
	if baseURL == "" {
		baseURL = defaultVercelBaseURL
	}
	return &VercelClient{
		baseURL:    baseURL,
		token:      token,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		logger:     logger.With("provider", "vercel"),
	}
}

// vercelFile is a single inline file in the deployment payload.
type vercelFile struct {
	File string `json:"file"`
	Data string `json:"data"`
}

type vercelDeployRequest struct {
	Name  string       `json:"name"`
	Files []vercelFile `json:"files,omitempty"`
}

type vercelDeployResponse struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// Deploy creates a deployment via POST /v13/deployments.
func (c *VercelClient) Deploy(ctx context.Context, req DeployRequest) (*DeployResult, error) {
	payload := vercelDeployRequest{Name: req.Name}
	for _, f := range req.Files {
		payload.Files = append(payload.Files, vercelFile{File: f.Path, Data: f.Content})
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode deployment payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v13/deployments", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build deployment request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.token)
	httpReq.Header.Set("Content-Type", "application/json")

	c.logger.Info("creating deployment", "name", req.Name, "files", len(payload.Files))

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &DeployError{Provider: "vercel", Message: err.Error()}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &DeployError{Provider: "vercel", Message: fmt.Sprintf("failed to read response: %v", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &DeployError{
			Provider:   "vercel",
			StatusCode: resp.StatusCode,
			Message:    "deployment rejected",
			Raw:        raw,
		}
	}

	var deployed vercelDeployResponse
	if err := json.Unmarshal(raw, &deployed); err != nil {
		return nil, &DeployError{Provider: "vercel", Message: fmt.Sprintf("failed to decode response: %v", err), Raw: raw}
	}
	if deployed.URL == "" {
		return nil, &DeployError{Provider: "vercel", Message: "response missing deployment url", Raw: raw}
	}

	c.logger.Info("deployment created", "deployment_id", deployed.ID, "url", deployed.URL)

	return &DeployResult{
		URL: "https://" + deployed.URL,
		Raw: raw,
	}, nil
}
