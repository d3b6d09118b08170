// Package devserver is an in-memory stand-in for the ContextAnchor platform.
// It implements the full client-facing API surface — auth with rotating
// refresh tokens, multipart document ingestion with a simulated processing
// pipeline, RAG-style chat with citations, one-time API key secrets, audit
// trail, and health — so the CLI can be exercised locally and the SDK tests
// can run against a real HTTP backend.
package devserver

import (
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/contextanchor/anchorctl/internal/api"
)

// Config tunes the simulated platform. Short token TTLs are useful for
// exercising the client's 401-renewal path.
type Config struct {
	JWTSecret      string
	AccessTTL      time.Duration
	RefreshTTL     time.Duration
	PipelineStep   time.Duration // delay between document status transitions
	MaxUploadBytes int64
}

// Server holds all platform state in memory, guarded by one mutex. It is
// safe for concurrent requests.
type Server struct {
	cfg     Config
	logger  *log.Logger
	started time.Time

	mu            sync.Mutex
	usersByEmail  map[string]*user
	usersByID     map[string]*user
	refreshTokens map[string]refreshToken
	documents     map[string]*document
	conversations map[string]*api.Conversation
	convTenants   map[string]string // conversation id -> tenant id
	apiKeys       map[string]*apiKey
	keysByHash    map[string]*apiKey
	audit         []api.AuditEntry
}

type user struct {
	id           string
	email        string
	fullName     string
	passwordHash []byte
	role         string
	tenantID     string
	tenantName   string
}

type refreshToken struct {
	userID    string
	expiresAt time.Time
}

type document struct {
	api.Document
	tenantID string
	preview  string // first bytes of the file, used to fake chunk content
}

type apiKey struct {
	api.APIKey
	tenantID string
	userID   string
	hash     string
}

func New(cfg Config) *Server {
	if cfg.JWTSecret == "" {
		cfg.JWTSecret = "dev-only-secret"
	}
	if cfg.AccessTTL == 0 {
		cfg.AccessTTL = 15 * time.Minute
	}
	if cfg.RefreshTTL == 0 {
		cfg.RefreshTTL = 7 * 24 * time.Hour
	}
	if cfg.PipelineStep == 0 {
		cfg.PipelineStep = 2 * time.Second
	}
	if cfg.MaxUploadBytes == 0 {
		cfg.MaxUploadBytes = 50 << 20
	}
	return &Server{
		cfg:           cfg,
		logger:        log.New(log.Writer(), "[DEVSERVER] ", log.LstdFlags),
		started:       time.Now(),
		usersByEmail:  make(map[string]*user),
		usersByID:     make(map[string]*user),
		refreshTokens: make(map[string]refreshToken),
		documents:     make(map[string]*document),
		conversations: make(map[string]*api.Conversation),
		convTenants:   make(map[string]string),
		apiKeys:       make(map[string]*apiKey),
		keysByHash:    make(map[string]*apiKey),
	}
}

// Handler builds the echo application with all routes mounted under /api/v1.
func (s *Server) Handler() http.Handler {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		if !c.Response().Committed {
			_ = c.JSON(code, map[string]any{
				"timestamp": time.Now().Format(time.RFC3339),
				"status":    code,
				"error":     http.StatusText(code),
				"message":   msg,
			})
		}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Content-Type", "Authorization", "X-API-Key"},
	}))

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := e.Group("/api/v1")
	v1.GET("/health", s.health)
	v1.POST("/auth/register", s.register)
	v1.POST("/auth/login", s.login)
	v1.POST("/auth/refresh", s.refresh)
	v1.POST("/auth/logout", s.logout, s.authMiddleware)

	authed := v1.Group("", s.authMiddleware)
	authed.GET("/documents", s.listDocuments)
	authed.POST("/documents", s.uploadDocument)
	authed.GET("/documents/:id", s.getDocument)
	authed.DELETE("/documents/:id", s.deleteDocument)

	authed.POST("/chat", s.chat)
	authed.GET("/chat/conversations", s.listConversations)
	authed.GET("/chat/conversations/:id", s.getConversation)
	authed.DELETE("/chat/conversations/:id", s.deleteConversation)

	authed.GET("/api-keys", s.listAPIKeys)
	authed.POST("/api-keys", s.createAPIKey)
	authed.DELETE("/api-keys/:id", s.revokeAPIKey)

	authed.GET("/audit", s.listAudit)
	authed.GET("/audit/user/:id", s.listAuditByUser)

	return e
}

// Start runs the devserver until the listener fails.
func (s *Server) Start(addr string) error {
	s.logger.Printf("devserver listening on %s", addr)
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return srv.ListenAndServe()
}

func (s *Server) health(c echo.Context) error {
	return c.JSON(http.StatusOK, api.Health{
		Status:    "UP",
		Service:   "ContextAnchor - Enterprise RAG Platform (devserver)",
		Timestamp: time.Now(),
		Uptime:    time.Since(s.started).Round(time.Second).String(),
		Database:  map[string]string{"status": "UP", "database": "in-memory"},
		AI:        map[string]string{"provider": "stub", "mode": "local"},
	})
}
