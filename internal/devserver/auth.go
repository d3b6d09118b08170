package devserver

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/bcrypt"

	"github.com/contextanchor/anchorctl/internal/api"
)

type registerRequest struct {
	FullName         string `json:"fullName"`
	Email            string `json:"email"`
	Password         string `json:"password"`
	OrganizationName string `json:"organizationName"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

func (s *Server) register(c echo.Context) error {
	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.FullName == "" || req.Email == "" || req.OrganizationName == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "fullName, email and organizationName are required")
	}
	if len(req.Password) < 8 {
		return echo.NewHTTPError(http.StatusBadRequest, "password must be at least 8 characters")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	s.mu.Lock()
	if _, exists := s.usersByEmail[req.Email]; exists {
		s.mu.Unlock()
		return echo.NewHTTPError(http.StatusConflict, "email already registered")
	}
	u := &user{
		id:           uuid.NewString(),
		email:        req.Email,
		fullName:     req.FullName,
		passwordHash: hash,
		role:         "TENANT_ADMIN",
		tenantID:     uuid.NewString(),
		tenantName:   req.OrganizationName,
	}
	s.usersByEmail[u.email] = u
	s.usersByID[u.id] = u
	s.mu.Unlock()

	s.recordAudit(u, "USER_REGISTERED", "user", u.id, c, true, "")
	sess, err := s.issueSession(u)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, sess)
}

func (s *Server) login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	s.mu.Lock()
	u := s.usersByEmail[req.Email]
	s.mu.Unlock()
	if u == nil || bcrypt.CompareHashAndPassword(u.passwordHash, []byte(req.Password)) != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid credentials")
	}

	// Invalidate any previous refresh tokens for this user.
	s.mu.Lock()
	for tok, rec := range s.refreshTokens {
		if rec.userID == u.id {
			delete(s.refreshTokens, tok)
		}
	}
	s.mu.Unlock()

	s.recordAudit(u, "USER_LOGIN", "user", u.id, c, true, "")
	sess, err := s.issueSession(u)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, sess)
}

// refresh rotates the token pair: the presented refresh token is deleted and
// a fresh pair is issued.
func (s *Server) refresh(c echo.Context) error {
	var req refreshRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	s.mu.Lock()
	rec, ok := s.refreshTokens[req.RefreshToken]
	if ok {
		delete(s.refreshTokens, req.RefreshToken)
	}
	u := s.usersByID[rec.userID]
	s.mu.Unlock()

	if !ok || u == nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid refresh token")
	}
	if time.Now().After(rec.expiresAt) {
		return echo.NewHTTPError(http.StatusUnauthorized, "refresh token has expired, please login again")
	}
	sess, err := s.issueSession(u)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, sess)
}

func (s *Server) logout(c echo.Context) error {
	u := currentUser(c)
	s.mu.Lock()
	for tok, rec := range s.refreshTokens {
		if rec.userID == u.id {
			delete(s.refreshTokens, tok)
		}
	}
	s.mu.Unlock()
	s.recordAudit(u, "USER_LOGOUT", "user", u.id, c, true, "")
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) issueSession(u *user) (*api.Session, error) {
	claims := jwt.MapClaims{
		"sub":   u.id,
		"email": u.email,
		"ten":   u.tenantID,
		"exp":   time.Now().Add(s.cfg.AccessTTL).Unix(),
	}
	access, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.JWTSecret))
	if err != nil {
		return nil, err
	}

	refresh := uuid.NewString()
	s.mu.Lock()
	s.refreshTokens[refresh] = refreshToken{userID: u.id, expiresAt: time.Now().Add(s.cfg.RefreshTTL)}
	s.mu.Unlock()

	return &api.Session{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresIn:    int64(s.cfg.AccessTTL / time.Second),
		User: api.User{
			ID:         u.id,
			Email:      u.email,
			FullName:   u.fullName,
			Role:       u.role,
			TenantID:   u.tenantID,
			TenantName: u.tenantName,
		},
	}, nil
}

// authMiddleware authenticates via X-API-Key when present, otherwise via the
// bearer JWT.
func (s *Server) authMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if raw := c.Request().Header.Get("X-API-Key"); raw != "" {
			u := s.authenticateAPIKey(raw)
			if u == nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid API key")
			}
			c.Set("user", u)
			return next(c)
		}

		h := c.Request().Header.Get("Authorization")
		if !strings.HasPrefix(h, "Bearer ") {
			return echo.NewHTTPError(http.StatusUnauthorized, "missing token")
		}
		parsed, err := jwt.Parse(h[len("Bearer "):], func(t *jwt.Token) (any, error) {
			return []byte(s.cfg.JWTSecret), nil
		}, jwt.WithValidMethods([]string{"HS256"}))
		if err != nil || !parsed.Valid {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid or expired token")
		}
		claims, ok := parsed.Claims.(jwt.MapClaims)
		if !ok {
			return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
		}
		sub, _ := claims["sub"].(string)

		s.mu.Lock()
		u := s.usersByID[sub]
		s.mu.Unlock()
		if u == nil {
			return echo.NewHTTPError(http.StatusUnauthorized, "unknown user")
		}
		c.Set("user", u)
		return next(c)
	}
}

func (s *Server) authenticateAPIKey(raw string) *user {
	sum := sha256.Sum256([]byte(raw))
	hash := hex.EncodeToString(sum[:])

	s.mu.Lock()
	defer s.mu.Unlock()
	key := s.keysByHash[hash]
	if key == nil {
		return nil
	}
	if key.ExpiresAt != nil && time.Now().After(*key.ExpiresAt) {
		return nil
	}
	now := time.Now()
	key.LastUsedAt = &now
	return s.usersByID[key.userID]
}

func currentUser(c echo.Context) *user {
	u, _ := c.Get("user").(*user)
	return u
}
