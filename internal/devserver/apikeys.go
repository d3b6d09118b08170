package devserver

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/contextanchor/anchorctl/internal/api"
)

const keyPrefix = "rag_"

func (s *Server) listAPIKeys(c echo.Context) error {
	u := currentUser(c)
	s.mu.Lock()
	keys := make([]api.APIKey, 0)
	for _, k := range s.apiKeys {
		if k.tenantID == u.tenantID {
			keys = append(keys, k.APIKey)
		}
	}
	s.mu.Unlock()
	sort.Slice(keys, func(i, j int) bool { return keys[i].CreatedAt.After(keys[j].CreatedAt) })
	return c.JSON(http.StatusOK, keys)
}

// createAPIKey mints a key. The raw secret appears only in this response;
// only its SHA-256 hash and display prefix are retained.
func (s *Server) createAPIKey(c echo.Context) error {
	u := currentUser(c)
	name := c.QueryParam("name")
	if name == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "name is required")
	}
	var expiresAt *time.Time
	if raw := c.QueryParam("expiresAt"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "expiresAt must be RFC 3339")
		}
		expiresAt = &t
	}

	secret := make([]byte, 24)
	if _, err := rand.Read(secret); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	raw := keyPrefix + hex.EncodeToString(secret)
	sum := sha256.Sum256([]byte(raw))

	k := &apiKey{
		APIKey: api.APIKey{
			ID:        uuid.NewString(),
			Name:      name,
			Prefix:    raw[:len(keyPrefix)+8] + "...",
			CreatedAt: time.Now(),
			ExpiresAt: expiresAt,
		},
		tenantID: u.tenantID,
		userID:   u.id,
		hash:     hex.EncodeToString(sum[:]),
	}

	s.mu.Lock()
	s.apiKeys[k.ID] = k
	s.keysByHash[k.hash] = k
	s.mu.Unlock()

	s.recordAudit(u, "API_KEY_CREATED", "api_key", k.ID, c, true, "")
	return c.JSON(http.StatusCreated, api.CreatedAPIKey{APIKey: k.APIKey, Key: raw})
}

func (s *Server) revokeAPIKey(c echo.Context) error {
	u := currentUser(c)
	id := c.Param("id")
	s.mu.Lock()
	k := s.apiKeys[id]
	if k != nil && k.tenantID == u.tenantID {
		delete(s.apiKeys, id)
		delete(s.keysByHash, k.hash)
	} else {
		k = nil
	}
	s.mu.Unlock()
	if k == nil {
		return echo.NewHTTPError(http.StatusNotFound, "API key not found")
	}
	s.recordAudit(u, "API_KEY_REVOKED", "api_key", id, c, true, "")
	return c.NoContent(http.StatusNoContent)
}
