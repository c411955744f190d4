// Package provider is the client for the keyword, ranking and backlink data API.
//
// Responses are read field by field with gjson; every field is optional and
// missing values come back as zero.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// statusOK is the task status code the API uses for success.
const statusOK = 20000

// ErrNotConfigured is returned when no credentials are set.
var ErrNotConfigured = errors.New("seo data provider is not configured")

// Error is a failed provider call, reduced to a message safe to show the model.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// Config holds client settings.
type Config struct {
	BaseURL      string
	Login        string
	Password     string
	Timeout      time.Duration
	LocationCode int
	LanguageCode string
}

// Client calls the provider's live endpoints with basic auth.
type Client struct {
	baseURL      string
	login        string
	password     string
	locationCode int
	languageCode string
	httpClient   *http.Client
}

// New creates a provider client.
func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 25 * time.Second
	}
	if cfg.LocationCode == 0 {
		cfg.LocationCode = 2840
	}
	if cfg.LanguageCode == "" {
		cfg.LanguageCode = "en"
	}
	return &Client{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		login:        cfg.Login,
		password:     cfg.Password,
		locationCode: cfg.LocationCode,
		languageCode: cfg.LanguageCode,
		httpClient:   &http.Client{Timeout: cfg.Timeout},
	}
}

// post sends one task to path and returns the task's result array.
func (c *Client) post(ctx context.Context, path string, task map[string]any) (gjson.Result, error) {
	if c.login == "" || c.password == "" {
		return gjson.Result{}, ErrNotConfigured
	}

	body, err := json.Marshal([]map[string]any{task})
	if err != nil {
		return gjson.Result{}, fmt.Errorf("encode task: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return gjson.Result{}, fmt.Errorf("create request: %w", err)
	}
	req.SetBasicAuth(c.login, c.password)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return gjson.Result{}, &Error{Message: "provider request failed: " + transportReason(err)}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return gjson.Result{}, &Error{Status: resp.StatusCode, Message: "provider response could not be read"}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return gjson.Result{}, &Error{
			Status:  resp.StatusCode,
			Message: fmt.Sprintf("provider returned status %d", resp.StatusCode),
		}
	}
	if !gjson.ValidBytes(raw) {
		return gjson.Result{}, &Error{Status: resp.StatusCode, Message: "provider returned an unreadable response"}
	}

	doc := gjson.ParseBytes(raw)
	if code := doc.Get("status_code").Int(); code != 0 && code != statusOK {
		return gjson.Result{}, &Error{Status: resp.StatusCode, Message: statusMessage(doc)}
	}
	taskDoc := doc.Get("tasks.0")
	if code := taskDoc.Get("status_code").Int(); code != 0 && code != statusOK {
		return gjson.Result{}, &Error{Status: resp.StatusCode, Message: statusMessage(taskDoc)}
	}
	return taskDoc.Get("result"), nil
}

func (c *Client) localeTask(fields map[string]any) map[string]any {
	fields["location_code"] = c.locationCode
	fields["language_code"] = c.languageCode
	return fields
}

func statusMessage(doc gjson.Result) string {
	if msg := doc.Get("status_message").String(); msg != "" {
		return "provider error: " + msg
	}
	return fmt.Sprintf("provider error: status %d", doc.Get("status_code").Int())
}

func transportReason(err error) string {
	if errors.Is(err, context.DeadlineExceeded) || strings.Contains(err.Error(), "Client.Timeout") {
		return "timed out"
	}
	if errors.Is(err, context.Canceled) {
		return "canceled"
	}
	return "unreachable"
}
