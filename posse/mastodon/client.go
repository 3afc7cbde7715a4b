// Package mastodon is a minimal Mastodon REST client covering what
// syndication needs: an instance probe, media upload, and status creation.
package mastodon

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"
)

// Client talks to one Mastodon instance with a bearer token.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient creates a client for the given instance base URL, e.g.
// "https://mastodon.social".
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// CheckInstance probes the instance info endpoint. Callers treat failures as
// diagnostic only.
func (c *Client) CheckInstance(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v1/instance", nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("instance check failed (status %d)", resp.StatusCode)
	}
	return nil
}

// UploadMedia uploads image bytes as a multipart form with an optional
// description (alt text) and returns the media id to attach to a status.
func (c *Client) UploadMedia(ctx context.Context, data []byte, mimeType, filename, description string) (string, error) {
	var form bytes.Buffer
	w := multipart.NewWriter(&form)

	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	header.Set("Content-Type", mimeType)
	part, err := w.CreatePart(header)
	if err != nil {
		return "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return "", fmt.Errorf("write form file: %w", err)
	}
	if description != "" {
		if err := w.WriteField("description", description); err != nil {
			return "", fmt.Errorf("write description field: %w", err)
		}
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("close form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/media", &form)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", mediaUploadError(resp.StatusCode, respBody)
	}

	var media struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(respBody, &media); err != nil {
		return "", fmt.Errorf("unmarshal response: %w", err)
	}
	return media.ID, nil
}

// mediaUploadError maps known media endpoint failures to actionable
// messages.
func mediaUploadError(status int, body []byte) error {
	msg := fmt.Sprintf("media upload failed (status %d)", status)
	switch status {
	case http.StatusForbidden:
		msg += ` - the access token likely lacks the "write:media" scope`
	case http.StatusUnauthorized:
		msg += " - authentication failed, check the access token"
	case http.StatusUnprocessableEntity:
		msg += " - the media file may be invalid or too large"
	}
	return fmt.Errorf("%s: %s", msg, string(body))
}

// PostStatus creates a public status, optionally attaching previously
// uploaded media, and returns the status URL.
func (c *Client) PostStatus(ctx context.Context, status string, mediaIDs []string) (string, error) {
	payload := statusRequest{
		Status:     status,
		Visibility: "public",
		MediaIDs:   mediaIDs,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/statuses", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var created struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal(respBody, &created); err != nil {
		return "", fmt.Errorf("unmarshal response: %w", err)
	}
	return created.URL, nil
}

type statusRequest struct {
	Status     string   `json:"status"`
	Visibility string   `json:"visibility"`
	MediaIDs   []string `json:"media_ids,omitempty"`
}
