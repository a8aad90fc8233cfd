package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"

	"controller-dashboard/pkg/log"
)

// HTTPError is a failed dashboard HTTP request.
type HTTPError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *HTTPError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("[%s] %s", e.Code, e.Message)
	}
	return fmt.Sprintf("request_failed:%d", e.StatusCode)
}

// PrivateConfig is what the dashboard hands out after a successful login.
type PrivateConfig struct {
	ControllerHost    string `json:"CONTROLLER_HOST,omitempty"`
	ControllerAuthKey string `json:"CONTROLLER_AUTH_KEY,omitempty"`
	StatusHost        string `json:"STATUS_HOST,omitempty"`
	StatusAuthKey     string `json:"STATUS_AUTH_KEY,omitempty"`
}

// AuthClient exchanges a login token for controller credentials with the
// dashboard HTTP endpoint. Credentials are only kept in memory.
type AuthClient struct {
	baseURL    string
	httpClient *http.Client
	tokens     *TokenSource
}

// NewAuthClient creates a client for the dashboard at baseURL. A successful
// login stores the controller key in tokens.
func NewAuthClient(baseURL string, tokens *TokenSource) *AuthClient {
	jar, _ := cookiejar.New(nil)
	return &AuthClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
			Jar:     jar,
		},
		tokens: tokens,
	}
}

// Login authenticates with the login token and installs the returned controller key.
func (c *AuthClient) Login(ctx context.Context, token string) (*PrivateConfig, error) {
	body, err := json.Marshal(map[string]string{"token": token})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	respBody, err := c.post(ctx, "/login", body)
	if err != nil {
		return nil, err
	}

	var conf PrivateConfig
	if len(bytes.TrimSpace(respBody)) > 0 {
		if err := json.Unmarshal(respBody, &conf); err != nil {
			return nil, fmt.Errorf("failed to decode response: %w", err)
		}
	}
	if c.tokens != nil && conf.ControllerAuthKey != "" {
		c.tokens.SetToken(conf.ControllerAuthKey)
	}
	log.Info("Logged in to dashboard", "url", c.baseURL)
	return &conf, nil
}

// Logout ends the dashboard session and forgets the controller key.
func (c *AuthClient) Logout(ctx context.Context) error {
	if _, err := c.post(ctx, "/logout", nil); err != nil {
		return err
	}
	if c.tokens != nil {
		c.tokens.SetToken("")
	}
	log.Info("Logged out of dashboard", "url", c.baseURL)
	return nil
}

func (c *AuthClient) post(ctx context.Context, path string, body []byte) ([]byte, error) {
	url := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Cache-Control", "no-cache")

	log.Debug("Sending dashboard request", "url", url)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	log.Debug("Dashboard response", "url", url, "status_code", resp.StatusCode)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		httpErr := &HTTPError{StatusCode: resp.StatusCode}
		var jsonErr struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		}
		if json.Unmarshal(respBody, &jsonErr) == nil {
			httpErr.Code = jsonErr.Code
			httpErr.Message = jsonErr.Message
		}
		return nil, httpErr
	}
	return respBody, nil
}
