package chatclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"studygroup-service/internal/models"
)

// Transport is the server surface a Room needs.
type Transport interface {
	GetGroup(ctx context.Context, groupID string) (models.Group, error)
	ListMessages(ctx context.Context, groupID string) ([]models.Message, error)
	AppendMessage(ctx context.Context, groupID string, msg models.Message) (models.Message, error)
	ToggleReaction(ctx context.Context, groupID, messageID, emoji string) (models.Message, error)
	AskAssistant(ctx context.Context, groupID, prompt, requestID string) (models.Message, error)
}

// APIError is a non-2xx response from the server.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned %d", e.Status)
	}
	return e.Message
}

// HTTPTransport talks to the JSON API under baseURL (for example
// http://localhost:8083/api).
type HTTPTransport struct {
	baseURL string
	client  *http.Client

	mu    sync.RWMutex
	token string
}

func NewHTTPTransport(baseURL string, timeout time.Duration) *HTTPTransport {
	return &HTTPTransport{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// SetToken installs the bearer token used for authenticated calls.
func (t *HTTPTransport) SetToken(token string) {
	t.mu.Lock()
	t.token = token
	t.mu.Unlock()
}

func (t *HTTPTransport) Token() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.token
}

func (t *HTTPTransport) Register(ctx context.Context, username, password string) (string, error) {
	var out struct {
		UserID string `json:"userId"`
	}
	err := t.do(ctx, http.MethodPost, "/register", map[string]string{"username": username, "password": password}, &out)
	return out.UserID, err
}

// Login authenticates and keeps the returned token for later calls.
func (t *HTTPTransport) Login(ctx context.Context, username, password string) (models.Student, error) {
	var out struct {
		Student models.Student `json:"student"`
		Token   string         `json:"token"`
	}
	if err := t.do(ctx, http.MethodPost, "/login", map[string]string{"username": username, "password": password}, &out); err != nil {
		return models.Student{}, err
	}
	t.SetToken(out.Token)
	return out.Student, nil
}

func (t *HTTPTransport) Logout(ctx context.Context) error {
	if err := t.do(ctx, http.MethodPost, "/logout", nil, nil); err != nil {
		return err
	}
	t.SetToken("")
	return nil
}

func (t *HTTPTransport) ListGroups(ctx context.Context) ([]models.Group, error) {
	var out []models.Group
	err := t.do(ctx, http.MethodGet, "/groups", nil, &out)
	return out, err
}

func (t *HTTPTransport) GetGroup(ctx context.Context, groupID string) (models.Group, error) {
	var out models.Group
	err := t.do(ctx, http.MethodGet, "/groups/"+url.PathEscape(groupID), nil, &out)
	return out, err
}

func (t *HTTPTransport) JoinGroup(ctx context.Context, groupID string) (models.Group, error) {
	var out models.Group
	err := t.do(ctx, http.MethodPost, "/groups/"+url.PathEscape(groupID)+"/join", nil, &out)
	return out, err
}

func (t *HTTPTransport) ListMessages(ctx context.Context, groupID string) ([]models.Message, error) {
	var out []models.Message
	err := t.do(ctx, http.MethodGet, "/groups/"+url.PathEscape(groupID)+"/messages", nil, &out)
	return out, err
}

func (t *HTTPTransport) AppendMessage(ctx context.Context, groupID string, msg models.Message) (models.Message, error) {
	var out models.Message
	err := t.do(ctx, http.MethodPost, "/groups/"+url.PathEscape(groupID)+"/messages", msg, &out)
	return out, err
}

func (t *HTTPTransport) ToggleReaction(ctx context.Context, groupID, messageID, emoji string) (models.Message, error) {
	var out models.Message
	path := "/groups/" + url.PathEscape(groupID) + "/messages/" + url.PathEscape(messageID) + "/reactions"
	err := t.do(ctx, http.MethodPost, path, map[string]string{"emoji": emoji}, &out)
	return out, err
}

func (t *HTTPTransport) AskAssistant(ctx context.Context, groupID, prompt, requestID string) (models.Message, error) {
	var out models.Message
	body := map[string]string{"prompt": prompt, "requestId": requestID}
	err := t.do(ctx, http.MethodPost, "/groups/"+url.PathEscape(groupID)+"/assistant", body, &out)
	return out, err
}

func (t *HTTPTransport) Suggestions(ctx context.Context) (models.Suggestions, error) {
	var out models.Suggestions
	err := t.do(ctx, http.MethodPost, "/suggestions", nil, &out)
	return out, err
}

func (t *HTTPTransport) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, t.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := t.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := &APIError{Status: resp.StatusCode}
		var payload struct {
			Error string `json:"error"`
			Code  string `json:"code"`
		}
		if json.NewDecoder(resp.Body).Decode(&payload) == nil {
			apiErr.Code = payload.Code
			apiErr.Message = payload.Error
		}
		return apiErr
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}
