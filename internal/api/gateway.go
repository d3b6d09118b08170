package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"

	"golang.org/x/sync/singleflight"
)

// maxResponseBody caps how much of a response is read into memory.
const maxResponseBody = 10 << 20

// Gateway is the single choke point for authenticated calls. It injects the
// current access credential, detects authorization failure, renews the
// credential through the session manager, and retries exactly once.
//
// Renewal is coalesced: concurrent 401s share one in-flight renewal rather
// than issuing independent refresh calls that would clobber the rotating
// token pair.
type Gateway struct {
	base      string
	http      *http.Client
	store     CredentialStore
	sessions  *SessionManager
	apiKey    string
	onExpired func()
	renews    singleflight.Group
	logger    *log.Logger
}

// Do issues method+path with an optional JSON body and decodes the response
// into out (which may be nil). Extra headers override the defaults; a caller
// that supplies its own Authorization header opts out of credential
// injection and of the renewal retry.
func (g *Gateway) Do(ctx context.Context, method, path string, headers map[string]string, body, out any) error {
	var payload []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request body: %w", err)
		}
		payload = b
	}

	auth, renewable := g.authorization(headers)
	resp, err := g.roundTrip(ctx, method, path, headers, auth, payload, "application/json")
	if err != nil {
		return &NetworkError{Err: err}
	}

	if resp.StatusCode == http.StatusUnauthorized && renewable {
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBody))
		resp.Body.Close()

		if _, err := g.renewAccessToken(ctx); err != nil {
			return err
		}
		// Re-read the store: a renewal triggered by a concurrent call may
		// have landed first, and the pre-renewal token must never be reused.
		auth, _ = g.authorization(headers)
		resp, err = g.roundTrip(ctx, method, path, headers, auth, payload, "application/json")
		if err != nil {
			return &NetworkError{Err: err}
		}
		retriesTotal.Inc()
	}

	return decodeResponse(resp, out)
}

// authorization resolves the credential header for a request and whether a
// 401 response should trigger renewal. API-key authentication bypasses
// renewal entirely.
func (g *Gateway) authorization(headers map[string]string) (header [2]string, renewable bool) {
	if headers != nil {
		if _, ok := headers["Authorization"]; ok {
			return [2]string{}, false
		}
	}
	if g.apiKey != "" {
		return [2]string{"X-API-Key", g.apiKey}, false
	}
	sess, err := g.store.Load()
	if err != nil {
		g.logger.Printf("credential load failed: %v", err)
		return [2]string{}, false
	}
	if sess == nil || sess.AccessToken == "" {
		return [2]string{}, false
	}
	return [2]string{"Authorization", "Bearer " + sess.AccessToken}, sess.RefreshToken != ""
}

func (g *Gateway) roundTrip(ctx context.Context, method, path string, headers map[string]string, auth [2]string, payload []byte, contentType string) (*http.Response, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, g.base+path, body)
	if err != nil {
		return nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", contentType)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	if auth[0] != "" {
		req.Header.Set(auth[0], auth[1])
	}
	resp, err := g.http.Do(req)
	if err != nil {
		requestsTotal.WithLabelValues(method, "0").Inc()
		return nil, err
	}
	requestsTotal.WithLabelValues(method, strconv.Itoa(resp.StatusCode)).Inc()
	return resp, nil
}

// renewAccessToken coalesces concurrent renewal triggers into one refresh
// call. On failure the store is cleared and the expiry callback fires inside
// the shared call, so both happen exactly once no matter how many requests
// observed the 401.
func (g *Gateway) renewAccessToken(ctx context.Context) (string, error) {
	v, err, _ := g.renews.Do("renew", func() (any, error) {
		renewalsTotal.Inc()
		token, err := g.sessions.Renew(ctx)
		if err != nil {
			g.logger.Printf("renewal failed, clearing session: %v", err)
			if clearErr := g.store.Clear(); clearErr != nil {
				g.logger.Printf("clearing credentials: %v", clearErr)
			}
			if g.onExpired != nil {
				g.onExpired()
			}
			return nil, fmt.Errorf("%w: %v", ErrSessionExpired, err)
		}
		return token, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// decodeResponse drains and closes the response. A no-content status or an
// empty 2xx body leaves out untouched; any non-2xx status becomes an
// APIError carrying the decoded message and raw body.
func decodeResponse(resp *http.Response, out any) error {
	defer resp.Body.Close()
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return &NetworkError{Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return apiErrorFrom(resp.StatusCode, data)
	}
	if resp.StatusCode == http.StatusNoContent || len(data) == 0 || out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// apiErrorFrom extracts a human-readable message from an error body. The
// platform emits {"message": ...}; the devserver and proxies may emit
// {"error": ...} instead.
func apiErrorFrom(status int, body []byte) *APIError {
	var envelope struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	msg := http.StatusText(status)
	if json.Unmarshal(body, &envelope) == nil {
		if envelope.Message != "" {
			msg = envelope.Message
		} else if envelope.Error != "" {
			msg = envelope.Error
		}
	}
	return &APIError{Message: msg, StatusCode: status, Body: body}
}

// IsAPIError unwraps err as an APIError, mirroring errors.As for the common
// case.
func IsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}
