// Package reconcile implements the client-side chat timeline: optimistic
// local records converge with server-echoed, translated records by
// correlation key, without duplication and without reordering.
package reconcile

import (
	"sync"

	"github.com/finnianb/roomcast/internal/models"
)

// Timeline is an ordered chat history for one room.
type Timeline struct {
	mu       sync.Mutex
	messages []models.ChatMessage
	byKey    map[string]int // clientKey -> index in messages
}

func NewTimeline() *Timeline {
	return &Timeline{byKey: make(map[string]int)}
}

// AppendLocal renders an outgoing message immediately, before any network
// round trip. The pending flag marks it as unconfirmed.
func (t *Timeline) AppendLocal(msg models.ChatMessage) {
	t.mu.Lock()
	defer t.mu.Unlock()

	msg.Pending = true
	if msg.ClientKey != "" {
		if i, ok := t.byKey[msg.ClientKey]; ok {
			// Re-send of a key we already rendered: keep its slot.
			t.messages[i] = msg
			return
		}
		t.byKey[msg.ClientKey] = len(t.messages)
	}
	t.messages = append(t.messages, msg)
}

// ApplyAuthoritative absorbs a server echo. A record with a matching
// clientKey is replaced in place, preserving list position; anything else
// (another participant's message, a transcription result) is appended.
// Duplicate echoes converge to the same single record.
func (t *Timeline) ApplyAuthoritative(msg models.ChatMessage) {
	t.mu.Lock()
	defer t.mu.Unlock()

	msg.Pending = false
	if msg.ClientKey != "" {
		if i, ok := t.byKey[msg.ClientKey]; ok {
			t.messages[i] = msg
			return
		}
		t.byKey[msg.ClientKey] = len(t.messages)
	}
	t.messages = append(t.messages, msg)
}

// Messages returns the timeline in render order.
func (t *Timeline) Messages() []models.ChatMessage {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]models.ChatMessage, len(t.messages))
	copy(out, t.messages)
	return out
}

// PendingCount reports how many records still await their echo.
func (t *Timeline) PendingCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, m := range t.messages {
		if m.Pending {
			n++
		}
	}
	return n
}
