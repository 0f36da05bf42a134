// Package authclient is a small Go client for the session endpoints, used by
// other services and by tests that drive the API over real HTTP.
package authclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrTokenStale         = errors.New("refresh token is expired or used")
	ErrUnauthorized       = errors.New("unauthorized")
)

type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient targets baseURL, e.g. "http://localhost:8080/api/v1". A nil hc
// gets a pooled client with a 5s timeout.
func NewClient(baseURL string, hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{
			Timeout: 5 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), httpClient: hc}
}

type Session struct {
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken"`
	AccessExp    time.Time `json:"accessExp"`
	RefreshExp   time.Time `json:"refreshExp"`
	User         struct {
		ID       string `json:"id"`
		Username string `json:"username"`
		Role     string `json:"role"`
	} `json:"user"`
}

type apiError struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

func (c *Client) Login(ctx context.Context, identifier, password string) (*Session, error) {
	body := map[string]string{"password": password}
	if strings.Contains(identifier, "@") {
		body["email"] = identifier
	} else {
		body["username"] = identifier
	}
	var s Session
	if err := c.do(ctx, "/users/login", "", body, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Refresh rotates the pair. ErrTokenStale means the token was already used or
// the session ended; the caller must log in again.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	var s Session
	if err := c.do(ctx, "/users/refresh", "", map[string]string{"refresh_token": refreshToken}, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (c *Client) Logout(ctx context.Context, accessToken string) error {
	return c.do(ctx, "/users/logout", accessToken, nil, nil)
}

func (c *Client) do(ctx context.Context, path, bearer string, in, out any) error {
	var buf bytes.Buffer
	if in != nil {
		if err := json.NewEncoder(&buf).Encode(in); err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &buf)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var ae apiError
		_ = json.NewDecoder(resp.Body).Decode(&ae)
		return statusError(resp.StatusCode, ae)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func statusError(status int, ae apiError) error {
	switch {
	case ae.Code == "token_stale":
		return ErrTokenStale
	case status == http.StatusUnauthorized && ae.Message == ErrInvalidCredentials.Error():
		return ErrInvalidCredentials
	case status == http.StatusUnauthorized:
		return fmt.Errorf("%w: %s", ErrUnauthorized, ae.Message)
	default:
		return fmt.Errorf("request failed with status %d: %s", status, ae.Message)
	}
}
