package manager

import (
	"encoding/json"
	"sync"

	"github.com/tejzpr/checkup-bot/internal/submission"
)

// SubmissionEvent is the payload of a "new-submission" server-sent event.
type SubmissionEvent struct {
	ID            string `json:"id"`
	UserID        int64  `json:"user_id"`
	Address       string `json:"address"`
	RequesterRole string `json:"requester_role"`
	Attachments   int    `json:"attachments"`
	CreatedAt     string `json:"created_at"`
}

// SSEBroker fans persisted submissions out to operator dashboards. Slow
// subscribers drop messages rather than block the conversation.
type SSEBroker struct {
	mu      sync.RWMutex
	clients map[chan string]struct{}
}

func NewSSEBroker() *SSEBroker {
	return &SSEBroker{
		clients: make(map[chan string]struct{}),
	}
}

func (b *SSEBroker) Subscribe() chan string {
	ch := make(chan string, 16)
	b.mu.Lock()
	b.clients[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

func (b *SSEBroker) Unsubscribe(ch chan string) {
	b.mu.Lock()
	delete(b.clients, ch)
	b.mu.Unlock()
	close(ch)
}

func (b *SSEBroker) Publish(sub submission.Submission) {
	data, err := json.Marshal(SubmissionEvent{
		ID:            sub.ID,
		UserID:        sub.UserID,
		Address:       sub.Address,
		RequesterRole: sub.RequesterRole,
		Attachments:   len(sub.Attachments),
		CreatedAt:     sub.CreatedAtText(),
	})
	if err != nil {
		return
	}
	msg := string(data)
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.clients {
		select {
		case ch <- msg:
		default:
		}
	}
}
