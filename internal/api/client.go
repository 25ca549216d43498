// Package api implements the REST client for the interview-practice backend.
// It is the production implementation of the chattypes.Backend contract; the
// engine itself never touches the wire directly.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"toechat/internal/logger"
	"toechat/pkg/chattypes"
)

// Client talks to the backend REST API. It maps remote failures onto the
// engine's error taxonomy: 404 becomes ErrNotFound, 402 becomes
// ErrUsageLimitReached, everything else non-2xx becomes a TransportError.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// Config holds configuration for the backend client.
type Config struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

// NewClient creates a backend client. The timeout defaults to 30 seconds;
// the engine imposes no additional one on top of it.
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		token:   cfg.Token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// usageWire mirrors the backend's usage payload.
type usageWire struct {
	NormalChatsUsed    int       `json:"normal_chats_used"`
	InterviewChatsUsed int       `json:"interview_chats_used"`
	NormalChatLimit    int       `json:"normal_chat_limit"`
	InterviewChatLimit int       `json:"interview_chat_limit"`
	ResetDate          time.Time `json:"reset_date"`
}

// GetUsage implements chattypes.Backend.
func (c *Client) GetUsage(ctx context.Context) (map[chattypes.Category]chattypes.QuotaState, error) {
	var wire usageWire
	if err := c.doJSON(ctx, http.MethodGet, "/users/usage", nil, &wire); err != nil {
		return nil, err
	}

	return map[chattypes.Category]chattypes.QuotaState{
		chattypes.CategoryNormal: {
			Used:      wire.NormalChatsUsed,
			Limit:     wire.NormalChatLimit,
			ResetDate: wire.ResetDate,
		},
		chattypes.CategoryInterview: {
			Used:      wire.InterviewChatsUsed,
			Limit:     wire.InterviewChatLimit,
			ResetDate: wire.ResetDate,
		},
	}, nil
}

// CreateSession implements chattypes.Backend.
func (c *Client) CreateSession(ctx context.Context, category chattypes.Category, title string) (*chattypes.Session, error) {
	body := map[string]interface{}{
		"title":        title,
		"conversation": []chattypes.Message{},
	}

	var session chattypes.Session
	path := fmt.Sprintf("/chats/%s", category)
	if err := c.doJSON(ctx, http.MethodPost, path, body, &session); err != nil {
		return nil, err
	}

	session.Category = category
	logger.Debug("Session created remotely", "session", session.ID, "category", string(category))
	return &session, nil
}

// GetSession implements chattypes.Backend.
func (c *Client) GetSession(ctx context.Context, category chattypes.Category, id string) (*chattypes.Session, error) {
	var session chattypes.Session
	path := fmt.Sprintf("/chats/%s/%s", category, id)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &session); err != nil {
		return nil, err
	}

	session.Category = category
	return &session, nil
}

// UpdateSession implements chattypes.Backend.
func (c *Client) UpdateSession(ctx context.Context, category chattypes.Category, session *chattypes.Session) (*chattypes.Session, error) {
	body := map[string]interface{}{
		"title":        session.Title,
		"conversation": session.Messages,
	}

	var stored chattypes.Session
	path := fmt.Sprintf("/chats/%s/%s", category, session.ID)
	if err := c.doJSON(ctx, http.MethodPut, path, body, &stored); err != nil {
		return nil, err
	}

	stored.Category = category
	return &stored, nil
}

// ListSessions implements chattypes.Backend.
func (c *Client) ListSessions(ctx context.Context, category chattypes.Category, page, perPage int) (*chattypes.SessionPage, error) {
	query := url.Values{}
	query.Set("page", fmt.Sprintf("%d", page))
	query.Set("per_page", fmt.Sprintf("%d", perPage))

	var result chattypes.SessionPage
	path := fmt.Sprintf("/chats/%s?%s", category, query.Encode())
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &result); err != nil {
		return nil, err
	}

	for i := range result.Sessions {
		result.Sessions[i].Category = category
	}
	return &result, nil
}

// DeleteSession implements chattypes.Backend.
func (c *Client) DeleteSession(ctx context.Context, category chattypes.Category, id string) error {
	path := fmt.Sprintf("/chats/%s/%s", category, id)
	return c.doJSON(ctx, http.MethodDelete, path, nil, nil)
}

// completionWire mirrors the backend's completion payload.
type completionWire struct {
	Message chattypes.Message `json:"message"`
	Usage   struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
	Cost float64 `json:"cost"`
}

// Completion implements chattypes.Backend. Normal and interview sessions use
// different endpoint families on the backend.
func (c *Client) Completion(ctx context.Context, category chattypes.Category, req chattypes.CompletionRequest) (*chattypes.CompletionResponse, error) {
	path := "/ai/chat/completion"
	if category == chattypes.CategoryInterview {
		path = "/ai/interview/chat"
	}

	var wire completionWire
	if err := c.doJSON(ctx, http.MethodPost, path, req, &wire); err != nil {
		return nil, err
	}

	return &chattypes.CompletionResponse{
		Message:    wire.Message,
		TokensUsed: wire.Usage.TotalTokens,
		Cost:       wire.Cost,
	}, nil
}

// uploadWire mirrors the backend's upload payload.
type uploadWire struct {
	Files []struct {
		ID        string `json:"id"`
		Name      string `json:"name"`
		MimeType  string `json:"mime_type"`
		SizeBytes int64  `json:"size_bytes"`
		URL       string `json:"url"`
	} `json:"files"`
}

// maxUploadFiles is the per-message attachment cap enforced by the backend.
const maxUploadFiles = 5

// UploadFiles implements chattypes.Backend using a multipart POST.
func (c *Client) UploadFiles(ctx context.Context, files []chattypes.FileUpload) ([]chattypes.Attachment, error) {
	if len(files) > maxUploadFiles {
		return nil, fmt.Errorf("%w: at most %d files per message", chattypes.ErrUploadFailed, maxUploadFiles)
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	for _, file := range files {
		part, err := writer.CreateFormFile("files", file.Name)
		if err != nil {
			return nil, chattypes.NewTransportError("upload files", err)
		}
		if _, err := part.Write(file.Data); err != nil {
			return nil, chattypes.NewTransportError("upload files", err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, chattypes.NewTransportError("upload files", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/files/upload", &buf)
	if err != nil {
		return nil, chattypes.NewTransportError("upload files", err)
	}
	httpReq.Header.Set("Content-Type", writer.FormDataContentType())
	c.setAuth(httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, chattypes.NewTransportError("upload files", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, chattypes.NewTransportError("upload files", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, c.statusError("upload files", resp.StatusCode, body)
	}

	var wire uploadWire
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, chattypes.NewTransportError("upload files", err)
	}

	attachments := make([]chattypes.Attachment, 0, len(wire.Files))
	for _, f := range wire.Files {
		attachments = append(attachments, chattypes.Attachment{
			Reference: f.ID,
			Name:      f.Name,
			MimeType:  f.MimeType,
			SizeBytes: f.SizeBytes,
		})
	}

	logger.Debug("Files uploaded", "count", len(attachments))
	return attachments, nil
}

// doJSON sends a JSON request and decodes the JSON response into out when out
// is non-nil.
func (c *Client) doJSON(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	op := fmt.Sprintf("%s %s", method, path)

	var bodyReader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return chattypes.NewTransportError(op, err)
		}
		bodyReader = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return chattypes.NewTransportError(op, err)
	}
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	c.setAuth(httpReq)

	logger.Debug("Backend request", "method", method, "path", path)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		logger.Error("Backend request failed", "method", method, "path", path, "error", err)
		return chattypes.NewTransportError(op, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return chattypes.NewTransportError(op, err)
	}

	logger.Debug("Backend response", "method", method, "path", path, "status", resp.StatusCode)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return c.statusError(op, resp.StatusCode, respBody)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return chattypes.NewTransportError(op, fmt.Errorf("failed to decode response: %w", err))
	}
	return nil
}

// statusError maps a non-2xx status onto the engine's error taxonomy.
func (c *Client) statusError(op string, status int, body []byte) error {
	switch status {
	case http.StatusNotFound:
		return chattypes.ErrNotFound
	case http.StatusPaymentRequired:
		return chattypes.ErrUsageLimitReached
	}

	detail := extractDetail(body)
	if detail != "" {
		return chattypes.NewTransportError(op, fmt.Errorf("status %d: %s", status, detail))
	}
	return chattypes.NewTransportError(op, fmt.Errorf("status %d", status))
}

// extractDetail pulls the backend's error detail field out of a failure body.
func extractDetail(body []byte) string {
	var wire struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(body, &wire); err != nil {
		return ""
	}
	return wire.Detail
}

// setAuth attaches the bearer token when one is configured.
func (c *Client) setAuth(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}
