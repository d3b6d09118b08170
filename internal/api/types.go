package api

import "time"

// Session is the persisted client credential record: the token pair plus the
// profile of the authenticated user. Exactly one Session exists at a time; it
// is replaced atomically on login, register, and renewal, and erased on
// logout or unrecoverable renewal failure.
type Session struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	TokenType    string `json:"tokenType,omitempty"`
	ExpiresIn    int64  `json:"expiresIn,omitempty"`
	User         User   `json:"user"`
}

// User is the profile embedded in auth responses.
type User struct {
	ID         string `json:"id"`
	Email      string `json:"email"`
	FullName   string `json:"fullName"`
	Role       string `json:"role"`
	TenantID   string `json:"tenantId"`
	TenantName string `json:"tenantName"`
}

// CredentialStore owns the persisted Session. All other components receive
// copies and never mutate the stored record in place. Save replaces the
// record atomically; Load returns (nil, nil) when no session is stored.
type CredentialStore interface {
	Load() (*Session, error)
	Save(*Session) error
	Clear() error
}

// DocumentStatus is the server-side processing state of an uploaded document.
// The client only ever observes it.
type DocumentStatus string

const (
	StatusUploaded   DocumentStatus = "UPLOADED"
	StatusProcessing DocumentStatus = "PROCESSING"
	StatusChunking   DocumentStatus = "CHUNKING"
	StatusEmbedding  DocumentStatus = "EMBEDDING"
	StatusReady      DocumentStatus = "READY"
	StatusError      DocumentStatus = "ERROR"
)

// Terminal reports whether the status is final (READY or ERROR).
func (s DocumentStatus) Terminal() bool {
	return s == StatusReady || s == StatusError
}

// Document is an ingested resource working its way through the processing
// pipeline.
type Document struct {
	ID           string         `json:"id"`
	OriginalName string         `json:"originalName"`
	ContentType  string         `json:"contentType,omitempty"`
	FileSize     int64          `json:"fileSize"`
	PageCount    int            `json:"pageCount,omitempty"`
	ChunkCount   int            `json:"chunkCount,omitempty"`
	Status       DocumentStatus `json:"status"`
	ErrorMessage string         `json:"errorMessage,omitempty"`
	CreatedAt    time.Time      `json:"createdAt"`
	UpdatedAt    time.Time      `json:"updatedAt,omitempty"`
}

// Message is one turn of a conversation.
type Message struct {
	Role    string   `json:"role"`
	Content string   `json:"content"`
	Sources []Source `json:"sources,omitempty"`
}

// Source is a citation attached to an assistant message.
type Source struct {
	DocumentID      string  `json:"documentId,omitempty"`
	DocumentName    string  `json:"documentName"`
	ChunkIndex      int     `json:"chunkIndex"`
	ChunkContent    string  `json:"chunkContent"`
	PageNumber      int     `json:"pageNumber,omitempty"`
	SimilarityScore float64 `json:"similarityScore,omitempty"`
}

// Conversation is a stored message log. The server assigns the id on the
// first successful exchange.
type Conversation struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Messages    []Message `json:"messages"`
	DocumentIDs []string  `json:"documentIds,omitempty"`
	CreatedAt   time.Time `json:"createdAt,omitempty"`
	UpdatedAt   time.Time `json:"updatedAt,omitempty"`
}

// ConversationSummary is a list entry from GET /chat/conversations.
type ConversationSummary struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	DocumentIDs []string  `json:"documentIds,omitempty"`
	CreatedAt   time.Time `json:"createdAt,omitempty"`
	UpdatedAt   time.Time `json:"updatedAt,omitempty"`
}

// ChatRequest is the payload for POST /chat. ConversationID is empty for the
// first exchange of a new conversation.
type ChatRequest struct {
	Question       string   `json:"question"`
	DocumentIDs    []string `json:"documentIds"`
	ConversationID string   `json:"conversationId,omitempty"`
}

// ChatResponse carries the answer, its citations, and the conversation
// identity (newly assigned when the request had none).
type ChatResponse struct {
	ConversationID string    `json:"conversationId"`
	Answer         string    `json:"answer"`
	Sources        []Source  `json:"sources"`
	Timestamp      time.Time `json:"timestamp,omitempty"`
}

// APIKey is a stored key record. Only the prefix is ever returned after
// creation; the raw secret is shown exactly once.
type APIKey struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Prefix     string     `json:"prefix"`
	CreatedAt  time.Time  `json:"createdAt"`
	ExpiresAt  *time.Time `json:"expiresAt,omitempty"`
	LastUsedAt *time.Time `json:"lastUsedAt,omitempty"`
}

// CreatedAPIKey is the one-time creation response carrying the raw secret.
type CreatedAPIKey struct {
	APIKey
	Key string `json:"key"`
}

// AuditEntry is an immutable, server-authored audit record.
type AuditEntry struct {
	ID           string    `json:"id"`
	TenantID     string    `json:"tenantId,omitempty"`
	UserID       string    `json:"userId,omitempty"`
	UserEmail    string    `json:"userEmail,omitempty"`
	Action       string    `json:"action"`
	ResourceType string    `json:"resourceType,omitempty"`
	ResourceID   string    `json:"resourceId,omitempty"`
	Details      string    `json:"details,omitempty"`
	IPAddress    string    `json:"ipAddress,omitempty"`
	RequestPath  string    `json:"requestPath,omitempty"`
	Success      bool      `json:"success"`
	ErrorMessage string    `json:"errorMessage,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Page is a server-paginated result set.
type Page[T any] struct {
	Content       []T   `json:"content"`
	TotalPages    int   `json:"totalPages"`
	TotalElements int64 `json:"totalElements"`
	Number        int   `json:"number"`
	Size          int   `json:"size"`
}

// Health is the platform health report.
type Health struct {
	Status    string            `json:"status"`
	Service   string            `json:"service"`
	Timestamp time.Time         `json:"timestamp"`
	Uptime    string            `json:"uptime"`
	Database  map[string]string `json:"database,omitempty"`
	AI        map[string]string `json:"ai,omitempty"`
}
