package devserver

import (
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/contextanchor/anchorctl/internal/api"
)

func (s *Server) chat(c echo.Context) error {
	u := currentUser(c)
	var req api.ChatRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Question == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "question cannot be blank")
	}
	if len(req.DocumentIDs) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "at least one document ID is required")
	}

	s.mu.Lock()
	var selected []*document
	for _, id := range req.DocumentIDs {
		d := s.documents[id]
		if d == nil || d.tenantID != u.tenantID {
			s.mu.Unlock()
			return echo.NewHTTPError(http.StatusBadRequest, "unknown document: "+id)
		}
		if d.Status != api.StatusReady {
			s.mu.Unlock()
			return echo.NewHTTPError(http.StatusBadRequest, "document not ready: "+d.OriginalName)
		}
		selected = append(selected, d)
	}

	conv := s.conversations[req.ConversationID]
	if req.ConversationID != "" && (conv == nil || s.convTenants[req.ConversationID] != u.tenantID) {
		s.mu.Unlock()
		return echo.NewHTTPError(http.StatusNotFound, "conversation not found")
	}
	now := time.Now()
	if conv == nil {
		title := req.Question
		if len(title) > 60 {
			title = title[:60]
		}
		conv = &api.Conversation{
			ID:          uuid.NewString(),
			Title:       title,
			DocumentIDs: req.DocumentIDs,
			CreatedAt:   now,
		}
		s.conversations[conv.ID] = conv
		s.convTenants[conv.ID] = u.tenantID
	}

	sources := make([]api.Source, 0, len(selected))
	for i, d := range selected {
		if i >= 4 {
			break
		}
		sources = append(sources, api.Source{
			DocumentID:      d.ID,
			DocumentName:    d.OriginalName,
			ChunkIndex:      i,
			ChunkContent:    d.preview,
			PageNumber:      1,
			SimilarityScore: 0.92 - float64(i)*0.07,
		})
	}
	answer := fmt.Sprintf(
		"Based on %d document(s), here is what I found regarding %q: %s",
		len(selected), req.Question, sources[0].ChunkContent,
	)

	conv.Messages = append(conv.Messages,
		api.Message{Role: "user", Content: req.Question},
		api.Message{Role: "assistant", Content: answer},
	)
	conv.UpdatedAt = now
	convID := conv.ID
	s.mu.Unlock()

	s.recordAudit(u, "CHAT_QUERY", "conversation", convID, c, true, "")
	return c.JSON(http.StatusOK, api.ChatResponse{
		ConversationID: convID,
		Answer:         answer,
		Sources:        sources,
		Timestamp:      now,
	})
}

func (s *Server) listConversations(c echo.Context) error {
	u := currentUser(c)
	s.mu.Lock()
	out := make([]api.ConversationSummary, 0)
	for id, conv := range s.conversations {
		if s.convTenants[id] == u.tenantID {
			out = append(out, api.ConversationSummary{
				ID:          conv.ID,
				Title:       conv.Title,
				DocumentIDs: conv.DocumentIDs,
				CreatedAt:   conv.CreatedAt,
				UpdatedAt:   conv.UpdatedAt,
			})
		}
	}
	s.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return c.JSON(http.StatusOK, out)
}

func (s *Server) getConversation(c echo.Context) error {
	u := currentUser(c)
	id := c.Param("id")
	s.mu.Lock()
	conv := s.conversations[id]
	owned := s.convTenants[id] == u.tenantID
	var copied api.Conversation
	if conv != nil && owned {
		copied = *conv
		copied.Messages = append([]api.Message(nil), conv.Messages...)
	}
	s.mu.Unlock()
	if conv == nil || !owned {
		return echo.NewHTTPError(http.StatusNotFound, "conversation not found")
	}
	return c.JSON(http.StatusOK, copied)
}

func (s *Server) deleteConversation(c echo.Context) error {
	u := currentUser(c)
	id := c.Param("id")
	s.mu.Lock()
	_, ok := s.conversations[id]
	owned := s.convTenants[id] == u.tenantID
	if ok && owned {
		delete(s.conversations, id)
		delete(s.convTenants, id)
	}
	s.mu.Unlock()
	if !ok || !owned {
		return echo.NewHTTPError(http.StatusNotFound, "conversation not found")
	}
	s.recordAudit(u, "CONVERSATION_DELETE", "conversation", id, c, true, "")
	return c.NoContent(http.StatusNoContent)
}
