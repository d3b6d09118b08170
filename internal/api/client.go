package api

import (
	"context"
	"log"
	"net/http"
	"time"
)

// Options configures a Client.
type Options struct {
	// BaseURL is the platform API root, e.g. "https://rag.example.com/api/v1".
	BaseURL string

	// APIKey, when set, authenticates every call with the X-API-Key header
	// instead of the bearer credential. API-key calls never trigger token
	// renewal.
	APIKey string

	// Store holds the persisted session. Required for bearer flows; an
	// in-memory store is fine for API-key-only callers.
	Store CredentialStore

	// OnSessionExpired is invoked once when a failed renewal forces a local
	// logout, so the caller can drop back to its unauthenticated entry point.
	OnSessionExpired func()

	Timeout time.Duration
	Logger  *log.Logger
}

// Client is the SDK entry point. All network access funnels through its
// gateway, which injects credentials and recovers from token expiry.
type Client struct {
	gw       *Gateway
	sessions *SessionManager
	store    CredentialStore
}

// NewClient builds a Client from Options, applying defaults for anything
// unset.
func NewClient(opts Options) *Client {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = log.New(log.Writer(), "[API] ", log.LstdFlags)
	}
	if opts.Store == nil {
		opts.Store = nopStore{}
	}
	hc := &http.Client{Timeout: opts.Timeout}
	sessions := &SessionManager{
		base:   opts.BaseURL,
		http:   hc,
		store:  opts.Store,
		logger: opts.Logger,
	}
	gw := &Gateway{
		base:      opts.BaseURL,
		http:      hc,
		store:     opts.Store,
		sessions:  sessions,
		apiKey:    opts.APIKey,
		onExpired: opts.OnSessionExpired,
		logger:    opts.Logger,
	}
	return &Client{gw: gw, sessions: sessions, store: opts.Store}
}

// Gateway exposes the underlying request gateway for callers that need raw
// access (the conversation log and document poller are built on it).
func (c *Client) Gateway() *Gateway { return c.gw }

// Login authenticates with email and password and persists the resulting
// session.
func (c *Client) Login(ctx context.Context, email, password string) (*Session, error) {
	return c.sessions.Login(ctx, email, password)
}

// Register provisions a new tenant with an owning user and persists the
// resulting session.
func (c *Client) Register(ctx context.Context, fullName, email, password, organizationName string) (*Session, error) {
	return c.sessions.Register(ctx, fullName, email, password, organizationName)
}

// Logout invalidates the session remotely (best effort) and clears the
// stored credentials.
func (c *Client) Logout(ctx context.Context) error {
	return c.sessions.Logout(ctx)
}

// CurrentSession returns the stored session, or (nil, nil) when
// unauthenticated.
func (c *Client) CurrentSession() (*Session, error) {
	return c.store.Load()
}

// nopStore backs API-key-only clients that never persist a session.
type nopStore struct{}

func (nopStore) Load() (*Session, error)  { return nil, nil }
func (nopStore) Save(*Session) error      { return nil }
func (nopStore) Clear() error             { return nil }
