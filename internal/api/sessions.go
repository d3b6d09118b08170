package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
)

// SessionManager performs login, registration, logout, and credential
// renewal, writing results into the credential store. It talks to the
// unauthenticated auth endpoints directly and never goes through the
// gateway's retry path.
type SessionManager struct {
	base   string
	http   *http.Client
	store  CredentialStore
	logger *log.Logger
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type registerRequest struct {
	FullName         string `json:"fullName"`
	Email            string `json:"email"`
	Password         string `json:"password"`
	OrganizationName string `json:"organizationName"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// Login submits credentials and stores the returned session.
func (m *SessionManager) Login(ctx context.Context, email, password string) (*Session, error) {
	var sess Session
	if err := m.postAuth(ctx, "/auth/login", loginRequest{Email: email, Password: password}, &sess); err != nil {
		return nil, err
	}
	if err := m.store.Save(&sess); err != nil {
		return nil, fmt.Errorf("saving session: %w", err)
	}
	return &sess, nil
}

// Register provisions a new tenant and owning user, then stores the returned
// session. The response shape is identical to Login's.
func (m *SessionManager) Register(ctx context.Context, fullName, email, password, organizationName string) (*Session, error) {
	req := registerRequest{
		FullName:         fullName,
		Email:            email,
		Password:         password,
		OrganizationName: organizationName,
	}
	var sess Session
	if err := m.postAuth(ctx, "/auth/register", req, &sess); err != nil {
		return nil, err
	}
	if err := m.store.Save(&sess); err != nil {
		return nil, fmt.Errorf("saving session: %w", err)
	}
	return &sess, nil
}

// Renew exchanges the stored refresh token for a new token pair. The server
// rotates the refresh token, so the full session is replaced. Returns the
// new access token. Fails with ErrNoRefreshToken (no network call) when
// nothing is stored, and RenewalError when the server rejects the exchange;
// both are fatal for the session.
func (m *SessionManager) Renew(ctx context.Context) (string, error) {
	sess, err := m.store.Load()
	if err != nil {
		return "", fmt.Errorf("loading session: %w", err)
	}
	if sess == nil || sess.RefreshToken == "" {
		return "", ErrNoRefreshToken
	}

	resp, err := m.post(ctx, "/auth/refresh", refreshRequest{RefreshToken: sess.RefreshToken}, "")
	if err != nil {
		return "", &RenewalError{Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return "", &RenewalError{Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &RenewalError{Err: apiErrorFrom(resp.StatusCode, data)}
	}

	var renewed Session
	if err := json.Unmarshal(data, &renewed); err != nil {
		return "", &RenewalError{Err: fmt.Errorf("decoding refresh response: %w", err)}
	}
	if err := m.store.Save(&renewed); err != nil {
		return "", fmt.Errorf("saving renewed session: %w", err)
	}
	m.logger.Printf("access token renewed for %s", renewed.User.Email)
	return renewed.AccessToken, nil
}

// Logout invalidates the refresh tokens server-side on a best-effort basis;
// a network failure is swallowed and the local store is cleared regardless.
func (m *SessionManager) Logout(ctx context.Context) error {
	sess, err := m.store.Load()
	if err == nil && sess != nil && sess.AccessToken != "" {
		resp, err := m.post(ctx, "/auth/logout", nil, "Bearer "+sess.AccessToken)
		if err != nil {
			m.logger.Printf("remote logout failed (ignored): %v", err)
		} else {
			resp.Body.Close()
		}
	}
	return m.store.Clear()
}

// postAuth submits a login/register payload and maps failures to the auth
// taxonomy: NetworkError for transport failures, AuthError for 4xx
// rejections, APIError otherwise.
func (m *SessionManager) postAuth(ctx context.Context, path string, payload, out any) error {
	resp, err := m.post(ctx, path, payload, "")
	if err != nil {
		return &NetworkError{Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return &NetworkError{Err: err}
	}
	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		apiErr := apiErrorFrom(resp.StatusCode, data)
		return &AuthError{Message: apiErr.Message, StatusCode: resp.StatusCode}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return apiErrorFrom(resp.StatusCode, data)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decoding auth response: %w", err)
	}
	return nil
}

func (m *SessionManager) post(ctx context.Context, path string, payload any, authorization string) (*http.Response, error) {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.base+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	return m.http.Do(req)
}
