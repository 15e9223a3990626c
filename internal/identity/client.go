package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"fleetpark/internal/domain"
	"fleetpark/internal/session"
)

// Client implementa session.IdentityService contra la API de identidad.
type Client struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

var _ session.IdentityService = (*Client)(nil)

// NewClient construye un cliente HTTP apuntando a baseURL (ej: http://localhost:8080).
func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

type userResponse struct {
	User domain.User `json:"user"`
}

type tokensResponse struct {
	Tokens domain.TokenPair `json:"tokens"`
}

func (c *Client) Login(ctx context.Context, identifier, secret string) (domain.AuthResult, error) {
	body := map[string]string{"email": identifier, "password": secret}
	var out domain.AuthResult
	status, err := c.do(ctx, http.MethodPost, "/auth/login", "", body, &out)
	if status == http.StatusUnauthorized || status == http.StatusBadRequest {
		return domain.AuthResult{}, session.ErrInvalidCredentials
	}
	if err != nil {
		return domain.AuthResult{}, err
	}
	return out, nil
}

func (c *Client) CurrentUser(ctx context.Context, accessToken string) (domain.User, error) {
	var out userResponse
	if _, err := c.do(ctx, http.MethodGet, "/auth/me", accessToken, nil, &out); err != nil {
		return domain.User{}, err
	}
	return out.User, nil
}

func (c *Client) Refresh(ctx context.Context, refreshToken string) (domain.TokenPair, error) {
	body := map[string]string{"refresh_token": refreshToken}
	var out tokensResponse
	if _, err := c.do(ctx, http.MethodPost, "/auth/refresh", "", body, &out); err != nil {
		return domain.TokenPair{}, err
	}
	return out.Tokens, nil
}

func (c *Client) Logout(ctx context.Context, accessToken, refreshToken string) error {
	body := map[string]string{"refresh_token": refreshToken}
	_, err := c.do(ctx, http.MethodPost, "/auth/logout", accessToken, body, nil)
	return err
}

// do ejecuta la request y traduce el resultado a la taxonomia de session.
func (c *Client) do(ctx context.Context, method, path, bearer string, in, out any) (int, error) {
	var reader io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return 0, fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return 0, fmt.Errorf("do request: %w", ctxErr)
		}
		return 0, fmt.Errorf("%w: %v", session.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, fmt.Errorf("%w: read response: %v", session.ErrUnavailable, err)
	}

	if resp.StatusCode >= 400 {
		c.logger.Debug("identity error response",
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(respBody)),
		)
		return resp.StatusCode, statusError(resp.StatusCode)
	}

	if out == nil || len(bytes.TrimSpace(respBody)) == 0 {
		return resp.StatusCode, nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return resp.StatusCode, fmt.Errorf("unmarshal response: %w", err)
	}
	return resp.StatusCode, nil
}

func statusError(status int) error {
	switch {
	case status == http.StatusUnauthorized:
		return session.ErrUnauthorized
	case status == http.StatusTooManyRequests, status >= 500:
		return fmt.Errorf("%w: status=%d", session.ErrUnavailable, status)
	default:
		return fmt.Errorf("identity http error: status=%d", status)
	}
}
