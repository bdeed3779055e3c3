// Package docrender wraps the document render service that turns a template
// plus data into a PDF.
package docrender

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/mamadbah2/amutrack/internal/config"
)

// Client exposes the render operation used by the application.
type Client interface {
	Render(ctx context.Context, req RenderRequest) ([]byte, error)
}

// APIClient is a resty-backed implementation of Client.
type APIClient struct {
	httpClient *resty.Client
}

// NewClient builds a render service client using the provided configuration values.
func NewClient(cfg config.DocRenderConfig) *APIClient {
	base := strings.TrimSuffix(cfg.BaseURL, "/")

	restyClient := resty.New()
	restyClient.
		SetBaseURL(base).
		SetHeader("Content-Type", "application/json").
		SetTimeout(30 * time.Second)

	if cfg.APIKey != "" {
		restyClient.SetHeader("Authorization", fmt.Sprintf("Bearer %s", cfg.APIKey))
	}

	return &APIClient{httpClient: restyClient}
}

// RenderRequest names a template and the data to fill it with.
type RenderRequest struct {
	Template string         `json:"template"`
	Data     map[string]any `json:"data"`
}

// Render produces the PDF bytes for the request.
func (c *APIClient) Render(ctx context.Context, req RenderRequest) ([]byte, error) {
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(req).
		Post("/render")
	if err != nil {
		return nil, fmt.Errorf("render document: %w", err)
	}

	if resp.StatusCode() >= http.StatusBadRequest {
		return nil, fmt.Errorf("docrender api error: code=%d, body=%s", resp.StatusCode(), resp.String())
	}

	return resp.Body(), nil
}
