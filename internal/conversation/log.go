// Package conversation sequences the chat exchange: optimistic local
// mutation, remote submission, and rollback on failure. The message log it
// maintains never contains an orphaned user message — every send leaves the
// log either unchanged or extended by exactly one user/assistant pair.
package conversation

import (
	"context"
	"sync"

	"github.com/contextanchor/anchorctl/internal/api"
)

// Sender is the remote side of an exchange; *api.Client satisfies it.
type Sender interface {
	SendChat(ctx context.Context, req api.ChatRequest) (*api.ChatResponse, error)
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Log is an orchestrated message log for one conversation. A Log starts
// anonymous (no id) and adopts the server-assigned id exactly once, on the
// first successful exchange.
type Log struct {
	sender Sender

	mu      sync.Mutex
	id      string
	entries []entry
	draft   string
	gen     uint64 // bumped by Reset/Load; stale responses are dropped
	nextSeq uint64
}

type entry struct {
	seq uint64
	msg api.Message
}

func NewLog(sender Sender) *Log {
	return &Log{sender: sender}
}

// Send submits text against the selected documents. The user message is
// appended optimistically before the network call; on failure it is removed
// again and the text is restored as the draft so input is not lost. A
// response that lands after Reset or Load superseded this conversation is
// dropped without touching the log.
func (l *Log) Send(ctx context.Context, text string, documentIDs []string) (*api.ChatResponse, error) {
	if len(documentIDs) == 0 {
		return nil, api.ErrNoDocumentsSelected
	}

	l.mu.Lock()
	gen := l.gen
	convID := l.id
	seq := l.nextSeq
	l.nextSeq++
	l.entries = append(l.entries, entry{seq: seq, msg: api.Message{Role: RoleUser, Content: text}})
	l.draft = ""
	l.mu.Unlock()

	resp, err := l.sender.SendChat(ctx, api.ChatRequest{
		Question:       text,
		DocumentIDs:    documentIDs,
		ConversationID: convID,
	})

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.gen != gen {
		// Superseded while in flight; the optimistic entry is already gone.
		return resp, err
	}
	if err != nil {
		l.removeLocked(seq)
		l.draft = text
		return nil, err
	}
	l.entries = append(l.entries, entry{seq: l.nextSeq, msg: api.Message{
		Role:    RoleAssistant,
		Content: resp.Answer,
		Sources: resp.Sources,
	}})
	l.nextSeq++
	if l.id == "" && resp.ConversationID != "" {
		l.id = resp.ConversationID
	}
	return resp, nil
}

func (l *Log) removeLocked(seq uint64) {
	for i, e := range l.entries {
		if e.seq == seq {
			l.entries = append(l.entries[:i], l.entries[i+1:]...)
			return
		}
	}
}

// Reset clears the log for a new anonymous conversation. In-flight sends are
// allowed to complete but their results are dropped.
func (l *Log) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.gen++
	l.id = ""
	l.entries = nil
	l.draft = ""
}

// Load replaces the log with a stored conversation fetched from the server.
func (l *Log) Load(conv *api.Conversation) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.gen++
	l.id = conv.ID
	l.entries = make([]entry, 0, len(conv.Messages))
	for _, m := range conv.Messages {
		l.entries = append(l.entries, entry{seq: l.nextSeq, msg: m})
		l.nextSeq++
	}
	l.draft = ""
}

// ID returns the conversation identity, or "" while anonymous.
func (l *Log) ID() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.id
}

// Draft returns text restored by a failed send, so the caller can put it
// back in the input.
func (l *Log) Draft() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.draft
}

// Messages returns a copy of the current message sequence.
func (l *Log) Messages() []api.Message {
	l.mu.Lock()
	defer l.mu.Unlock()
	msgs := make([]api.Message, len(l.entries))
	for i, e := range l.entries {
		msgs[i] = e.msg
	}
	return msgs
}
