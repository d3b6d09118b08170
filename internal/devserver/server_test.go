package devserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/contextanchor/anchorctl/internal/api"
	"github.com/contextanchor/anchorctl/internal/credstore"
	"github.com/contextanchor/anchorctl/internal/poller"
)

func newTestEnv(t *testing.T) (*api.Client, *credstore.MemoryStore, string) {
	t.Helper()
	srv := httptest.NewServer(New(Config{PipelineStep: 5 * time.Millisecond}).Handler())
	t.Cleanup(srv.Close)
	store := credstore.NewMemoryStore()
	client := api.NewClient(api.Options{
		BaseURL: srv.URL + "/api/v1",
		Store:   store,
		Timeout: 10 * time.Second,
	})
	return client, store, srv.URL
}

func register(t *testing.T, client *api.Client, email string) *api.Session {
	t.Helper()
	sess, err := client.Register(context.Background(), "Ada Lovelace", email, "correct-horse", "Acme Corp")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	return sess
}

func uploadReady(t *testing.T, client *api.Client, name, content string) *api.Document {
	t.Helper()
	ctx := context.Background()
	doc, err := client.UploadDocument(ctx, name, []byte(content), nil)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if doc.Status != api.StatusUploaded {
		t.Fatalf("fresh upload should be UPLOADED, got %s", doc.Status)
	}

	p := poller.New(5*time.Millisecond, client.ListDocuments, func(d api.Document) bool {
		return d.Status.Terminal()
	})
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	var last []api.Document
	for items := range p.Run(ctx) {
		last = items
	}
	for _, d := range last {
		if d.ID == doc.ID {
			if d.Status != api.StatusReady {
				t.Fatalf("pipeline ended in %s: %s", d.Status, d.ErrorMessage)
			}
			if d.ChunkCount == 0 {
				t.Fatalf("ready document should have chunks: %+v", d)
			}
			return &d
		}
	}
	t.Fatalf("uploaded document %s missing from final snapshot", doc.ID)
	return nil
}

func TestRegisterLoginAndSessionPersistence(t *testing.T) {
	client, store, _ := newTestEnv(t)
	ctx := context.Background()

	sess := register(t, client, "ada@example.com")
	if sess.User.Role != "TENANT_ADMIN" || sess.User.TenantName != "Acme Corp" {
		t.Fatalf("unexpected registered user: %+v", sess.User)
	}
	if sess.TokenType != "Bearer" || sess.AccessToken == "" || sess.RefreshToken == "" {
		t.Fatalf("incomplete token pair: %+v", sess)
	}

	// Duplicate registration is a 409 mapped to AuthError.
	_, err := client.Register(ctx, "Ada Lovelace", "ada@example.com", "correct-horse", "Acme Corp")
	var authErr *api.AuthError
	if !errors.As(err, &authErr) || authErr.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 AuthError, got %v", err)
	}

	if err := client.Logout(ctx); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if stored, _ := store.Load(); stored != nil {
		t.Fatalf("logout should clear the store")
	}

	if _, err := client.Login(ctx, "ada@example.com", "wrong-password"); err == nil {
		t.Fatalf("bad password should be rejected")
	}
	if _, err := client.Login(ctx, "ada@example.com", "correct-horse"); err != nil {
		t.Fatalf("login: %v", err)
	}
	stored, _ := store.Load()
	if stored == nil || stored.User.Email != "ada@example.com" {
		t.Fatalf("login should persist the session, got %+v", stored)
	}
}

func TestDocumentPipelineAndChat(t *testing.T) {
	client, _, _ := newTestEnv(t)
	ctx := context.Background()
	register(t, client, "ada@example.com")

	// Unsupported extensions are rejected before ingestion.
	_, err := client.UploadDocument(ctx, "malware.exe", []byte("nope"), nil)
	apiErr, ok := api.IsAPIError(err)
	if !ok || apiErr.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for unsupported type, got %v", err)
	}

	doc := uploadReady(t, client, "contract.txt", strings.Repeat("termination clause applies after notice. ", 40))

	fetched, err := client.GetDocument(ctx, doc.ID)
	if err != nil {
		t.Fatalf("get document: %v", err)
	}
	if fetched.PageCount == 0 {
		t.Fatalf("ready document should report pages: %+v", fetched)
	}

	resp, err := client.SendChat(ctx, api.ChatRequest{
		Question:    "when does the termination clause apply?",
		DocumentIDs: []string{doc.ID},
	})
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if resp.ConversationID == "" || resp.Answer == "" {
		t.Fatalf("incomplete chat response: %+v", resp)
	}
	if len(resp.Sources) == 0 || resp.Sources[0].DocumentName != "contract.txt" {
		t.Fatalf("answer should cite the document, got %+v", resp.Sources)
	}

	// The follow-up lands in the same conversation.
	resp2, err := client.SendChat(ctx, api.ChatRequest{
		Question:       "and the renewal terms?",
		DocumentIDs:    []string{doc.ID},
		ConversationID: resp.ConversationID,
	})
	if err != nil {
		t.Fatalf("follow-up chat: %v", err)
	}
	if resp2.ConversationID != resp.ConversationID {
		t.Fatalf("follow-up should stay in conversation %s, got %s", resp.ConversationID, resp2.ConversationID)
	}

	conv, err := client.GetConversation(ctx, resp.ConversationID)
	if err != nil {
		t.Fatalf("get conversation: %v", err)
	}
	if len(conv.Messages) != 4 {
		t.Fatalf("expected 2 user/assistant pairs, got %d messages", len(conv.Messages))
	}

	summaries, err := client.ListConversations(ctx)
	if err != nil {
		t.Fatalf("list conversations: %v", err)
	}
	if len(summaries) != 1 || summaries[0].ID != resp.ConversationID {
		t.Fatalf("unexpected summaries: %+v", summaries)
	}

	if err := client.DeleteConversation(ctx, resp.ConversationID); err != nil {
		t.Fatalf("delete conversation: %v", err)
	}
	if _, err := client.GetConversation(ctx, resp.ConversationID); err == nil {
		t.Fatalf("deleted conversation should be gone")
	}
}

func TestChatRequiresReadyDocuments(t *testing.T) {
	// A slow pipeline keeps the document out of READY for the whole test.
	srv := httptest.NewServer(New(Config{PipelineStep: time.Minute}).Handler())
	t.Cleanup(srv.Close)
	client := api.NewClient(api.Options{
		BaseURL: srv.URL + "/api/v1",
		Store:   credstore.NewMemoryStore(),
	})
	ctx := context.Background()
	register(t, client, "ada@example.com")

	pending, err := client.UploadDocument(ctx, "pending.txt", []byte("still processing"), nil)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	_, err = client.SendChat(ctx, api.ChatRequest{Question: "q", DocumentIDs: []string{pending.ID}})
	apiErr, ok := api.IsAPIError(err)
	if !ok || apiErr.StatusCode != http.StatusBadRequest {
		t.Fatalf("chat against a non-ready document should be a 400, got %v", err)
	}
}

func TestExpiredAccessTokenIsRenewedTransparently(t *testing.T) {
	client, store, baseURL := newTestEnv(t)
	ctx := context.Background()
	register(t, client, "ada@example.com")

	// Corrupt the access token but keep the refresh token. The next call gets
	// a 401, renews, and retries without surfacing an error.
	sess, _ := store.Load()
	oldRefresh := sess.RefreshToken
	sess.AccessToken = "not-a-jwt"
	if err := store.Save(sess); err != nil {
		t.Fatalf("save: %v", err)
	}

	if _, err := client.ListDocuments(ctx); err != nil {
		t.Fatalf("list with expired token should transparently renew, got %v", err)
	}

	renewed, _ := store.Load()
	if renewed.AccessToken == "not-a-jwt" || renewed.RefreshToken == oldRefresh {
		t.Fatalf("token pair should have rotated")
	}

	// Rotation invalidates the presented refresh token.
	body, _ := json.Marshal(map[string]string{"refreshToken": oldRefresh})
	resp, err := http.Post(baseURL+"/api/v1/auth/refresh", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("replayed refresh token should be rejected, got %d", resp.StatusCode)
	}
}

func TestAPIKeyLifecycle(t *testing.T) {
	client, _, baseURL := newTestEnv(t)
	ctx := context.Background()
	register(t, client, "ada@example.com")
	uploadReady(t, client, "notes.md", "a few notes")

	created, err := client.CreateAPIKey(ctx, "ci-pipeline", nil)
	if err != nil {
		t.Fatalf("create key: %v", err)
	}
	if !strings.HasPrefix(created.Key, "rag_") {
		t.Fatalf("raw secret should carry the rag_ prefix, got %q", created.Key)
	}
	if !strings.HasSuffix(created.Prefix, "...") || strings.Contains(created.Prefix, created.Key[len("rag_")+8:]) {
		t.Fatalf("prefix must not leak the secret: %q", created.Prefix)
	}

	// Listing never returns the secret.
	keys, err := client.ListAPIKeys(ctx)
	if err != nil {
		t.Fatalf("list keys: %v", err)
	}
	if len(keys) != 1 || keys[0].Name != "ci-pipeline" {
		t.Fatalf("unexpected keys: %+v", keys)
	}

	// The raw secret authenticates a separate client without any session.
	keyClient := api.NewClient(api.Options{BaseURL: baseURL + "/api/v1", APIKey: created.Key})
	docs, err := keyClient.ListDocuments(ctx)
	if err != nil {
		t.Fatalf("list via API key: %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("API key should see the tenant's documents, got %d", len(docs))
	}

	keys, _ = client.ListAPIKeys(ctx)
	if keys[0].LastUsedAt == nil {
		t.Fatalf("successful key auth should stamp lastUsedAt")
	}

	if err := client.RevokeAPIKey(ctx, created.ID); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	_, err = keyClient.ListDocuments(ctx)
	apiErr, ok := api.IsAPIError(err)
	if !ok || apiErr.StatusCode != http.StatusUnauthorized {
		t.Fatalf("revoked key should be rejected with 401, got %v", err)
	}
}

func TestAuditTrailAndHealth(t *testing.T) {
	client, _, _ := newTestEnv(t)
	ctx := context.Background()
	register(t, client, "ada@example.com")
	uploadReady(t, client, "notes.txt", "hello audit")

	page, err := client.AuditLogs(ctx, 0, 10, "")
	if err != nil {
		t.Fatalf("audit: %v", err)
	}
	if page.TotalElements < 2 {
		t.Fatalf("expected register and upload entries, got %d", page.TotalElements)
	}

	uploads, err := client.AuditLogs(ctx, 0, 10, "DOCUMENT_UPLOAD")
	if err != nil {
		t.Fatalf("audit filtered: %v", err)
	}
	if len(uploads.Content) != 1 || uploads.Content[0].Action != "DOCUMENT_UPLOAD" {
		t.Fatalf("action filter mismatch: %+v", uploads.Content)
	}
	if !uploads.Content[0].Success || uploads.Content[0].UserEmail != "ada@example.com" {
		t.Fatalf("unexpected audit entry: %+v", uploads.Content[0])
	}

	sess, _ := client.CurrentSession()
	byUser, err := client.AuditLogsByUser(ctx, sess.User.ID, 0, 1)
	if err != nil {
		t.Fatalf("audit by user: %v", err)
	}
	if len(byUser.Content) != 1 || byUser.Size != 1 {
		t.Fatalf("page size should cap the content: %+v", byUser)
	}

	h, err := client.Health(ctx)
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	if h.Status != "UP" || h.Database["status"] != "UP" {
		t.Fatalf("unexpected health: %+v", h)
	}
}
