// Package mailer wraps the transactional email HTTP API.
package mailer

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/mamadbah2/amutrack/internal/config"
)

// Client exposes the email operations used by the application.
type Client interface {
	Send(ctx context.Context, msg Message) (*SendResponse, error)
}

// APIClient is a resty-backed implementation of Client.
type APIClient struct {
	httpClient *resty.Client
	from       string
}

// NewClient builds an email API client using the provided configuration values.
func NewClient(cfg config.MailerConfig) *APIClient {
	base := strings.TrimSuffix(cfg.BaseURL, "/")

	restyClient := resty.New()
	restyClient.
		SetBaseURL(base).
		SetHeader("Authorization", fmt.Sprintf("Bearer %s", cfg.APIKey)).
		SetHeader("Content-Type", "application/json").
		SetTimeout(15 * time.Second)

	return &APIClient{
		httpClient: restyClient,
		from:       cfg.FromAddress,
	}
}

// Attachment is a file delivered with the email.
type Attachment struct {
	Filename    string
	ContentType string
	Content     []byte
}

// Message is a simplified outbound email payload.
type Message struct {
	To          string
	Subject     string
	HTML        string
	Attachments []Attachment
}

// SendResponse mirrors the successful response from the provider.
type SendResponse struct {
	ID string `json:"id"`
}

// apiError represents the provider's error payload.
type apiError struct {
	Error struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error"`
}

// Send dispatches one email.
func (c *APIClient) Send(ctx context.Context, msg Message) (*SendResponse, error) {
	attachments := make([]map[string]string, 0, len(msg.Attachments))
	for _, a := range msg.Attachments {
		attachments = append(attachments, map[string]string{
			"filename":     a.Filename,
			"content_type": a.ContentType,
			"content":      base64.StdEncoding.EncodeToString(a.Content),
		})
	}

	payload := map[string]any{
		"from":    map[string]string{"email": c.from},
		"to":      []map[string]string{{"email": msg.To}},
		"subject": msg.Subject,
		"html":    msg.HTML,
	}
	if len(attachments) > 0 {
		payload["attachments"] = attachments
	}

	result := new(SendResponse)
	apiErr := new(apiError)

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(payload).
		SetResult(result).
		SetError(apiErr).
		Post("/email")
	if err != nil {
		return nil, fmt.Errorf("send email: %w", err)
	}

	if resp.StatusCode() >= http.StatusBadRequest {
		message := ""
		code := resp.StatusCode()
		if apiErr != nil {
			message = apiErr.Error.Message
			if apiErr.Error.Code != 0 {
				code = apiErr.Error.Code
			}
		}
		return nil, fmt.Errorf("mailer api error: code=%d, message=%s", code, message)
	}

	return result, nil
}
