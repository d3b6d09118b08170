package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// memStore is a minimal in-process CredentialStore for gateway tests.
type memStore struct {
	mu   sync.Mutex
	sess *Session
}

func (s *memStore) Load() (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sess == nil {
		return nil, nil
	}
	copied := *s.sess
	return &copied, nil
}

func (s *memStore) Save(sess *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *sess
	s.sess = &copied
	return nil
}

func (s *memStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sess = nil
	return nil
}

func newTestClient(t *testing.T, handler http.Handler, opts Options) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	opts.BaseURL = srv.URL
	return NewClient(opts), srv
}

func TestDoInjectsBearerCredential(t *testing.T) {
	store := &memStore{sess: &Session{AccessToken: "tok-1", RefreshToken: "ref-1"}}
	var gotAuth string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		json.NewEncoder(w).Encode(map[string]string{"ok": "yes"})
	})
	client, _ := newTestClient(t, handler, Options{Store: store})

	var out map[string]string
	if err := client.Gateway().Do(context.Background(), http.MethodGet, "/ping", nil, nil, &out); err != nil {
		t.Fatalf("Do: %v", err)
	}
	if gotAuth != "Bearer tok-1" {
		t.Fatalf("expected bearer injection, got %q", gotAuth)
	}
	if out["ok"] != "yes" {
		t.Fatalf("unexpected payload: %v", out)
	}
}

func TestDoRenewsOnceAndRetriesWithNewCredential(t *testing.T) {
	store := &memStore{sess: &Session{AccessToken: "stale", RefreshToken: "ref-1"}}
	var refreshCalls, dataCalls int32

	mux := http.NewServeMux()
	mux.HandleFunc("/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&refreshCalls, 1)
		var req struct {
			RefreshToken string `json:"refreshToken"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		if req.RefreshToken != "ref-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(Session{AccessToken: "fresh", RefreshToken: "ref-2"})
	})
	mux.HandleFunc("/data", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&dataCalls, 1)
		if r.Header.Get("Authorization") != "Bearer fresh" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"value": "42"})
	})

	client, _ := newTestClient(t, mux, Options{Store: store})

	var out map[string]string
	if err := client.Gateway().Do(context.Background(), http.MethodGet, "/data", nil, nil, &out); err != nil {
		t.Fatalf("Do: %v", err)
	}
	if out["value"] != "42" {
		t.Fatalf("caller should see the retried 200 payload, got %v", out)
	}
	if n := atomic.LoadInt32(&refreshCalls); n != 1 {
		t.Fatalf("expected exactly one renewal, got %d", n)
	}
	if n := atomic.LoadInt32(&dataCalls); n != 2 {
		t.Fatalf("expected exactly one retry, got %d data calls", n)
	}

	sess, _ := store.Load()
	if sess == nil || sess.AccessToken != "fresh" || sess.RefreshToken != "ref-2" {
		t.Fatalf("store should hold the rotated pair, got %+v", sess)
	}
}

func TestConcurrent401sCoalesceIntoOneRenewal(t *testing.T) {
	store := &memStore{sess: &Session{AccessToken: "stale", RefreshToken: "ref-1"}}
	var refreshCalls int32

	mux := http.NewServeMux()
	mux.HandleFunc("/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&refreshCalls, 1)
		// Widen the coalescing window so every concurrent 401 joins this
		// renewal instead of starting its own.
		time.Sleep(200 * time.Millisecond)
		json.NewEncoder(w).Encode(Session{AccessToken: "fresh", RefreshToken: "ref-2"})
	})
	mux.HandleFunc("/data", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer fresh" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"ok": "yes"})
	})

	client, _ := newTestClient(t, mux, Options{Store: store})

	const n = 8
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			var out map[string]string
			errs[i] = client.Gateway().Do(context.Background(), http.MethodGet, "/data", nil, nil, &out)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("request %d: %v", i, err)
		}
	}
	if got := atomic.LoadInt32(&refreshCalls); got != 1 {
		t.Fatalf("expected a single coalesced renewal, got %d", got)
	}
}

func TestRenewalFailureClearsStoreAndNotifiesOnce(t *testing.T) {
	store := &memStore{sess: &Session{AccessToken: "stale", RefreshToken: "dead"}}
	var expired int32

	mux := http.NewServeMux()
	mux.HandleFunc("/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{"message": "invalid refresh token"})
	})
	mux.HandleFunc("/data", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	client, _ := newTestClient(t, mux, Options{
		Store:            store,
		OnSessionExpired: func() { atomic.AddInt32(&expired, 1) },
	})

	const n = 6
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = client.Gateway().Do(context.Background(), http.MethodGet, "/data", nil, nil, nil)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if !errors.Is(err, ErrSessionExpired) {
			t.Fatalf("request %d: expected ErrSessionExpired, got %v", i, err)
		}
	}
	if sess, _ := store.Load(); sess != nil {
		t.Fatalf("store should be empty after failed renewal, got %+v", sess)
	}
	if got := atomic.LoadInt32(&expired); got != 1 {
		t.Fatalf("expiry callback should fire exactly once, fired %d times", got)
	}
}

func TestUnauthorizedWithoutRefreshTokenIsSurfaced(t *testing.T) {
	store := &memStore{sess: &Session{AccessToken: "tok"}}
	var refreshCalls int32
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&refreshCalls, 1)
	})
	mux.HandleFunc("/data", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{"message": "nope"})
	})

	client, _ := newTestClient(t, mux, Options{Store: store})
	err := client.Gateway().Do(context.Background(), http.MethodGet, "/data", nil, nil, nil)

	apiErr, ok := IsAPIError(err)
	if !ok || apiErr.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 APIError, got %v", err)
	}
	if atomic.LoadInt32(&refreshCalls) != 0 {
		t.Fatalf("renewal must not run without a refresh token")
	}
}

func TestAPIKeyAuthBypassesRenewal(t *testing.T) {
	var refreshCalls int32
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&refreshCalls, 1)
	})
	mux.HandleFunc("/data", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-API-Key") != "rag_secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusUnauthorized) // even a 401 must not trigger renewal
	})

	client, _ := newTestClient(t, mux, Options{APIKey: "rag_secret"})
	err := client.Gateway().Do(context.Background(), http.MethodGet, "/data", nil, nil, nil)

	if _, ok := IsAPIError(err); !ok {
		t.Fatalf("expected APIError, got %v", err)
	}
	if atomic.LoadInt32(&refreshCalls) != 0 {
		t.Fatalf("API-key calls must never trigger renewal")
	}
}

func TestExplicitAuthorizationHeaderIsNotOverwritten(t *testing.T) {
	store := &memStore{sess: &Session{AccessToken: "tok", RefreshToken: "ref"}}
	var gotAuth string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusNoContent)
	})
	client, _ := newTestClient(t, handler, Options{Store: store})

	headers := map[string]string{"Authorization": "Bearer explicit"}
	if err := client.Gateway().Do(context.Background(), http.MethodGet, "/data", headers, nil, nil); err != nil {
		t.Fatalf("Do: %v", err)
	}
	if gotAuth != "Bearer explicit" {
		t.Fatalf("explicit header should win, got %q", gotAuth)
	}
}

func TestNoContentLeavesOutputUntouched(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	client, _ := newTestClient(t, handler, Options{Store: &memStore{}})

	out := map[string]string{"pre": "set"}
	if err := client.Gateway().Do(context.Background(), http.MethodDelete, "/data", nil, nil, &out); err != nil {
		t.Fatalf("Do: %v", err)
	}
	if out["pre"] != "set" {
		t.Fatalf("204 must not touch the output value")
	}
}

func TestTransportFailureIsNetworkError(t *testing.T) {
	client := NewClient(Options{BaseURL: "http://127.0.0.1:1", Store: &memStore{}})
	err := client.Gateway().Do(context.Background(), http.MethodGet, "/data", nil, nil, nil)

	var netErr *NetworkError
	if !errors.As(err, &netErr) {
		t.Fatalf("expected NetworkError, got %v", err)
	}
}

func TestAPIErrorCarriesMessageAndBody(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		json.NewEncoder(w).Encode(map[string]string{"message": "file too large"})
	})
	client, _ := newTestClient(t, handler, Options{Store: &memStore{}})

	err := client.Gateway().Do(context.Background(), http.MethodPost, "/data", nil, map[string]string{"a": "b"}, nil)
	apiErr, ok := IsAPIError(err)
	if !ok {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Message != "file too large" || apiErr.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("unexpected error: %+v", apiErr)
	}
	if len(apiErr.Body) == 0 {
		t.Fatalf("raw body should be preserved")
	}
}
