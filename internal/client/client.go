package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"santa.share/internal/links"
	"santa.share/internal/models"
	"santa.share/internal/notify"
)

// Client talks to a santa server's API. It is a links.Backend, so stored
// links published through it are uploaded to the server.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

var _ links.Backend = (*Client)(nil)

func New(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: 30 * time.Second},
	}
}

// APIError is a non-2xx answer from the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

type notifyResponse struct {
	SentTo []string                 `json:"sent_to"`
	Failed []models.DeliveryFailure `json:"failed"`
}

// Put uploads sealed matches. Keys are not part of StoredMatch and never
// leave the caller.
func (c *Client) Put(ctx context.Context, matches []models.StoredMatch) error {
	body := map[string]any{"matches": matches}
	return c.do(ctx, http.MethodPost, "/api/store", body, nil)
}

// Take fetches a match once; the server deletes it as it answers.
func (c *Client) Take(ctx context.Context, id string) (models.StoredMatch, error) {
	var m models.StoredMatch
	err := c.do(ctx, http.MethodGet, "/api/reveal?id="+url.QueryEscape(id), nil, &m)

	var apiErr *APIError
	if errors.As(err, &apiErr) && (apiErr.Status == http.StatusGone || apiErr.Status == http.StatusNotFound) {
		return models.StoredMatch{}, links.ErrGone
	}
	return m, err
}

// Notify asks the server to mail reveal links.
func (c *Client) Notify(ctx context.Context, notes []models.Notification) (models.DeliveryReport, error) {
	var resp notifyResponse
	err := c.do(ctx, http.MethodPost, "/api/notify", map[string]any{"notifications": notes}, &resp)

	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusServiceUnavailable {
		return models.DeliveryReport{}, fmt.Errorf("%w: %s", notify.ErrNotConfigured, apiErr.Message)
	}
	if err != nil {
		return models.DeliveryReport{}, err
	}

	return models.DeliveryReport{Sent: resp.SentTo, Failed: resp.Failed}, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, strings.SplitN(path, "?", 2)[0], err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&e)
		if e.Error == "" {
			e.Error = http.StatusText(resp.StatusCode)
		}
		return &APIError{Status: resp.StatusCode, Message: e.Error}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
