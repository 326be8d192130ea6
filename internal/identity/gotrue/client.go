// Package gotrue talks to a hosted GoTrue compatible auth service over REST.
package gotrue

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"

	"github.com/aulavirtual/lms-server-go/internal/identity"
)

// Client implements identity.Provider against {platformURL}/auth/v1.
type Client struct {
	http       *resty.Client
	serviceKey string
	now        func() time.Time
}

var _ identity.Provider = (*Client)(nil)

// New creates a client. anonKey authorizes user flows and serviceKey the admin endpoints.
func New(platformURL, anonKey, serviceKey string) *Client {
	httpClient := resty.New().
		SetBaseURL(strings.TrimRight(platformURL, "/")+"/auth/v1").
		SetTimeout(10*time.Second).
		SetHeader("apikey", anonKey).
		SetHeader("Content-Type", "application/json").
		SetRetryCount(2).
		SetRetryWaitTime(200 * time.Millisecond).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() >= http.StatusInternalServerError
		})

	return &Client{
		http:       httpClient,
		serviceKey: serviceKey,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

type userResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

type tokenResponse struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	ExpiresIn    int64        `json:"expires_in"`
	ExpiresAt    int64        `json:"expires_at"`
	User         userResponse `json:"user"`
}

type errorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	ErrorCode        string `json:"error_code"`
	Msg              string `json:"msg"`
	Message          string `json:"message"`
}

func (e errorResponse) text() string {
	for _, s := range []string{e.ErrorDescription, e.Msg, e.Message, e.Error} {
		if s != "" {
			return s
		}
	}
	return "unknown error"
}

// SignIn uses the password grant.
func (c *Client) SignIn(ctx context.Context, email, password string) (identity.Session, error) {
	var out tokenResponse
	var apiErr errorResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("grant_type", "password").
		SetBody(map[string]string{"email": strings.ToLower(strings.TrimSpace(email)), "password": password}).
		SetResult(&out).
		SetError(&apiErr).
		Post("/token")
	if err != nil {
		return identity.Session{}, fmt.Errorf("auth service unreachable: %w", err)
	}

	switch resp.StatusCode() {
	case http.StatusOK:
		return c.session(out)
	case http.StatusBadRequest, http.StatusUnauthorized:
		return identity.Session{}, identity.ErrInvalidCredentials
	default:
		return identity.Session{}, unexpected(resp, apiErr)
	}
}

// Refresh uses the refresh_token grant.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (identity.Session, error) {
	var out tokenResponse
	var apiErr errorResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("grant_type", "refresh_token").
		SetBody(map[string]string{"refresh_token": refreshToken}).
		SetResult(&out).
		SetError(&apiErr).
		Post("/token")
	if err != nil {
		return identity.Session{}, fmt.Errorf("auth service unreachable: %w", err)
	}

	switch resp.StatusCode() {
	case http.StatusOK:
		return c.session(out)
	case http.StatusBadRequest, http.StatusUnauthorized:
		return identity.Session{}, identity.ErrInvalidToken
	default:
		return identity.Session{}, unexpected(resp, apiErr)
	}
}

// SignOut revokes the session behind accessToken.
func (c *Client) SignOut(ctx context.Context, accessToken string) error {
	var apiErr errorResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(accessToken).
		SetError(&apiErr).
		Post("/logout")
	if err != nil {
		return fmt.Errorf("auth service unreachable: %w", err)
	}

	switch resp.StatusCode() {
	case http.StatusOK, http.StatusNoContent:
		return nil
	case http.StatusUnauthorized, http.StatusForbidden:
		return identity.ErrInvalidToken
	default:
		return unexpected(resp, apiErr)
	}
}

// VerifyAccessToken asks the service who owns accessToken.
func (c *Client) VerifyAccessToken(ctx context.Context, accessToken string) (identity.Subject, error) {
	var out userResponse
	var apiErr errorResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(accessToken).
		SetResult(&out).
		SetError(&apiErr).
		Get("/user")
	if err != nil {
		return identity.Subject{}, fmt.Errorf("auth service unreachable: %w", err)
	}

	switch resp.StatusCode() {
	case http.StatusOK:
		return toSubject(out)
	case http.StatusUnauthorized, http.StatusForbidden:
		if strings.Contains(strings.ToLower(apiErr.text()), "expired") {
			return identity.Subject{}, identity.ErrExpiredToken
		}
		return identity.Subject{}, identity.ErrInvalidToken
	default:
		return identity.Subject{}, unexpected(resp, apiErr)
	}
}

// CreateAccount creates a pre-confirmed user through the admin API.
func (c *Client) CreateAccount(ctx context.Context, email, password string) (identity.Subject, error) {
	if len(password) < identity.MinPasswordLength {
		return identity.Subject{}, identity.ErrWeakPassword
	}

	var out userResponse
	var apiErr errorResponse
	resp, err := c.admin(ctx).
		SetBody(map[string]interface{}{
			"email":         strings.ToLower(strings.TrimSpace(email)),
			"password":      password,
			"email_confirm": true,
		}).
		SetResult(&out).
		SetError(&apiErr).
		Post("/admin/users")
	if err != nil {
		return identity.Subject{}, fmt.Errorf("auth service unreachable: %w", err)
	}

	switch {
	case resp.StatusCode() == http.StatusOK || resp.StatusCode() == http.StatusCreated:
		return toSubject(out)
	case apiErr.ErrorCode == "weak_password":
		return identity.Subject{}, identity.ErrWeakPassword
	case resp.StatusCode() == http.StatusConflict,
		apiErr.ErrorCode == "email_exists",
		resp.StatusCode() == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(apiErr.text()), "already"):
		return identity.Subject{}, identity.ErrAccountExists
	default:
		return identity.Subject{}, unexpected(resp, apiErr)
	}
}

// DeleteAccount removes a user through the admin API.
func (c *Client) DeleteAccount(ctx context.Context, subjectID uuid.UUID) error {
	var apiErr errorResponse
	resp, err := c.admin(ctx).
		SetError(&apiErr).
		Delete("/admin/users/" + subjectID.String())
	if err != nil {
		return fmt.Errorf("auth service unreachable: %w", err)
	}

	switch resp.StatusCode() {
	case http.StatusOK, http.StatusNoContent:
		return nil
	case http.StatusNotFound:
		return identity.ErrAccountNotFound
	default:
		return unexpected(resp, apiErr)
	}
}

func (c *Client) admin(ctx context.Context) *resty.Request {
	return c.http.R().
		SetContext(ctx).
		SetHeader("apikey", c.serviceKey).
		SetAuthToken(c.serviceKey)
}

func (c *Client) session(out tokenResponse) (identity.Session, error) {
	subject, err := toSubject(out.User)
	if err != nil {
		return identity.Session{}, err
	}

	expiresAt := c.now().Add(time.Duration(out.ExpiresIn) * time.Second)
	if out.ExpiresAt > 0 {
		expiresAt = time.Unix(out.ExpiresAt, 0).UTC()
	}

	return identity.Session{
		AccessToken:  out.AccessToken,
		RefreshToken: out.RefreshToken,
		ExpiresAt:    expiresAt,
		Subject:      subject,
	}, nil
}

func toSubject(u userResponse) (identity.Subject, error) {
	id, err := uuid.Parse(u.ID)
	if err != nil {
		return identity.Subject{}, errors.New("auth service returned a user without a valid id")
	}
	return identity.Subject{ID: id, Email: strings.ToLower(u.Email)}, nil
}

func unexpected(resp *resty.Response, apiErr errorResponse) error {
	return fmt.Errorf("auth service returned %d: %s", resp.StatusCode(), apiErr.text())
}
