package devserver

import (
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/contextanchor/anchorctl/internal/api"
)

// recordAudit appends an immutable trail entry. Entries are server-authored
// and read-only to clients.
func (s *Server) recordAudit(u *user, action, resourceType, resourceID string, c echo.Context, success bool, errMsg string) {
	entry := api.AuditEntry{
		ID:           uuid.NewString(),
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Success:      success,
		ErrorMessage: errMsg,
		CreatedAt:    time.Now(),
	}
	if u != nil {
		entry.TenantID = u.tenantID
		entry.UserID = u.id
		entry.UserEmail = u.email
	}
	if c != nil {
		entry.IPAddress = c.RealIP()
		entry.RequestPath = c.Request().URL.Path
	}
	s.mu.Lock()
	s.audit = append(s.audit, entry)
	s.mu.Unlock()
}

func (s *Server) listAudit(c echo.Context) error {
	u := currentUser(c)
	action := c.QueryParam("action")
	return s.auditPage(c, func(e api.AuditEntry) bool {
		if e.TenantID != u.tenantID {
			return false
		}
		return action == "" || e.Action == action
	})
}

func (s *Server) listAuditByUser(c echo.Context) error {
	u := currentUser(c)
	userID := c.Param("id")
	return s.auditPage(c, func(e api.AuditEntry) bool {
		return e.TenantID == u.tenantID && e.UserID == userID
	})
}

func (s *Server) auditPage(c echo.Context, match func(api.AuditEntry) bool) error {
	page, size := pageParams(c)

	s.mu.Lock()
	filtered := make([]api.AuditEntry, 0)
	// Newest first.
	for i := len(s.audit) - 1; i >= 0; i-- {
		if match(s.audit[i]) {
			filtered = append(filtered, s.audit[i])
		}
	}
	s.mu.Unlock()

	total := len(filtered)
	start := page * size
	if start > total {
		start = total
	}
	end := start + size
	if end > total {
		end = total
	}
	totalPages := (total + size - 1) / size

	return c.JSON(http.StatusOK, api.Page[api.AuditEntry]{
		Content:       filtered[start:end],
		TotalPages:    totalPages,
		TotalElements: int64(total),
		Number:        page,
		Size:          size,
	})
}

func pageParams(c echo.Context) (page, size int) {
	page, _ = strconv.Atoi(c.QueryParam("page"))
	size, _ = strconv.Atoi(c.QueryParam("size"))
	if page < 0 {
		page = 0
	}
	if size <= 0 || size > 200 {
		size = 20
	}
	return page, size
}
