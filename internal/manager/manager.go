package manager

import (
	"context"
	"sync"
	"time"

	"github.com/tejzpr/checkup-bot/internal/conversation"
)

type session struct {
	mu       sync.Mutex
	machine  *conversation.Machine
	refs     int
	lastSeen time.Time
}

// ConversationManager owns every active conversation. Events of one user
// are serialized; different users proceed independently.
type ConversationManager struct {
	mu       sync.Mutex
	sessions map[int64]*session

	ttl  time.Duration
	now  func() time.Time
	opts []conversation.Option
}

// NewConversationManager creates a manager whose idle conversations expire
// after ttl. opts are applied to every new Machine.
func NewConversationManager(ttl time.Duration, opts ...conversation.Option) *ConversationManager {
	return &ConversationManager{
		sessions: make(map[int64]*session),
		ttl:      ttl,
		now:      time.Now,
		opts:     opts,
	}
}

// With runs fn with exclusive access to the user's conversation, creating
// it on first use. A conversation that is back to idle afterwards is
// evicted.
func (m *ConversationManager) With(userID int64, displayName string, fn func(*conversation.Machine)) {
	m.mu.Lock()
	s, ok := m.sessions[userID]
	if !ok {
		s = &session{machine: conversation.New(userID, displayName, m.opts...)}
		m.sessions[userID] = s
	}
	s.refs++
	m.mu.Unlock()

	s.mu.Lock()
	if displayName != "" {
		s.machine.SetDisplayName(displayName)
	}
	fn(s.machine)
	idle := s.machine.State() == conversation.StateIdle
	s.mu.Unlock()

	m.mu.Lock()
	s.refs--
	s.lastSeen = m.now()
	if idle && s.refs == 0 && m.sessions[userID] == s {
		delete(m.sessions, userID)
	}
	m.mu.Unlock()
}

// Len reports the number of live conversations.
func (m *ConversationManager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Sweep drops conversations untouched for longer than the TTL and returns
// how many were removed. Their drafts are discarded.
func (m *ConversationManager) Sweep() int {
	if m.ttl <= 0 {
		return 0
	}
	cutoff := m.now().Add(-m.ttl)
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, s := range m.sessions {
		if s.refs == 0 && s.lastSeen.Before(cutoff) {
			delete(m.sessions, id)
			n++
		}
	}
	return n
}

// Run sweeps periodically until ctx is done.
func (m *ConversationManager) Run(ctx context.Context, interval time.Duration, onSweep func(int)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := m.Sweep(); n > 0 && onSweep != nil {
				onSweep(n)
			}
		}
	}
}
