package room

import (
	"errors"
	"sync"
	"time"

	"github.com/finnianb/roomcast/internal/models"
)

var ErrNotHost = errors.New("only the host may end the meeting")

// Room is the authoritative state for one meeting. Every mutation goes
// through the room's own mutex, so concurrent joins, doc edits, and
// disconnects for the same room are serialized while distinct rooms
// proceed independently.
type Room struct {
	ID string

	mu           sync.Mutex
	status       models.RoomStatus
	hostID       string
	offererID    string
	participants map[string]*models.Participant
	order        []string // join order of connection ids
	docs         []models.DocumentRef
	todos        []models.TodoItem
	chat         []models.ChatMessage
	createdAt    time.Time
	emptySince   time.Time
	endedAt      *time.Time
}

func newRoom(id string, now time.Time) *Room {
	return &Room{
		ID:           id,
		status:       models.StatusActive,
		participants: make(map[string]*models.Participant),
		createdAt:    now,
		emptySince:   now,
	}
}

// JoinResult tells the relay what the joiner needs to know and what to
// announce to the rest of the room.
type JoinResult struct {
	IsHost    bool
	IsOfferer bool
	Docs      []models.DocumentRef
	Todos     []models.TodoItem
	Rejoined  bool
}

// Join registers a participant. Repeated joins with the same connection id
// are idempotent. Host and offerer assignment happen under the same lock
// as registration, so two "simultaneous" first joins cannot both win.
func (r *Room) Join(connID, name, email string) JoinResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p, ok := r.participants[connID]; ok && p.LeftAt == nil {
		return JoinResult{
			IsHost:    r.hostID == connID,
			IsOfferer: r.offererID == connID,
			Docs:      cloneDocs(r.docs),
			Todos:     cloneTodos(r.todos),
			Rejoined:  true,
		}
	}

	r.participants[connID] = &models.Participant{
		ConnID:   connID,
		Name:     name,
		Email:    email,
		JoinedAt: time.Now(),
	}
	r.order = append(r.order, connID)

	if r.hostID == "" {
		r.hostID = connID
	}
	if r.offererID == "" {
		r.offererID = connID
	}

	return JoinResult{
		IsHost:    r.hostID == connID,
		IsOfferer: r.offererID == connID,
		Docs:      cloneDocs(r.docs),
		Todos:     cloneTodos(r.todos),
	}
}

// LeaveResult reports the side effects of a departure.
type LeaveResult struct {
	WasHost   bool
	Remaining int
	// Completed is set when the last active participant left and the room
	// transitioned to completed as a result.
	Completed bool
}

// Leave stamps the participant's leave time. The host slot clears when its
// holder leaves; the room completes when it empties.
func (r *Room) Leave(connID string) LeaveResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.participants[connID]
	if !ok || p.LeftAt != nil {
		return LeaveResult{Remaining: r.activeCountLocked()}
	}
	now := time.Now()
	p.LeftAt = &now

	res := LeaveResult{WasHost: r.hostID == connID}
	if res.WasHost {
		r.hostID = ""
	}
	if r.offererID == connID {
		r.offererID = ""
	}

	res.Remaining = r.activeCountLocked()
	if res.Remaining == 0 {
		r.emptySince = now
		if r.status == models.StatusActive {
			r.status = models.StatusCompleted
			r.endedAt = &now
			res.Completed = true
		}
	}
	return res
}

// AddDoc appends a document unless the id is already present and returns
// the resulting list. Duplicate adds are no-ops.
func (r *Room) AddDoc(doc models.DocumentRef) []models.DocumentRef {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, d := range r.docs {
		if d.ID == doc.ID {
			return cloneDocs(r.docs)
		}
	}
	if doc.AddedAt.IsZero() {
		doc.AddedAt = time.Now()
	}
	r.docs = append(r.docs, doc)
	return cloneDocs(r.docs)
}

// RemoveDoc deletes by id and returns the resulting list. Missing ids are
// no-ops.
func (r *Room) RemoveDoc(id string) []models.DocumentRef {
	r.mu.Lock()
	defer r.mu.Unlock()

	kept := r.docs[:0]
	for _, d := range r.docs {
		if d.ID != id {
			kept = append(kept, d)
		}
	}
	r.docs = kept
	return cloneDocs(r.docs)
}

// AddTodo appends a to-do unless the id already exists.
func (r *Room) AddTodo(todo models.TodoItem) []models.TodoItem {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, t := range r.todos {
		if t.ID == todo.ID {
			return cloneTodos(r.todos)
		}
	}
	if todo.CreatedAt.IsZero() {
		todo.CreatedAt = time.Now()
	}
	r.todos = append(r.todos, todo)
	return cloneTodos(r.todos)
}

// ToggleTodo flips the done flag of the matching item.
func (r *Room) ToggleTodo(id string) []models.TodoItem {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.todos {
		if r.todos[i].ID == id {
			r.todos[i].Done = !r.todos[i].Done
			break
		}
	}
	return cloneTodos(r.todos)
}

// UpdateTodo replaces the text of the matching item.
func (r *Room) UpdateTodo(id, text string) []models.TodoItem {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.todos {
		if r.todos[i].ID == id {
			r.todos[i].Text = text
			break
		}
	}
	return cloneTodos(r.todos)
}

// RemoveTodo deletes by id; missing ids are no-ops.
func (r *Room) RemoveTodo(id string) []models.TodoItem {
	r.mu.Lock()
	defer r.mu.Unlock()

	kept := r.todos[:0]
	for _, t := range r.todos {
		if t.ID != id {
			kept = append(kept, t)
		}
	}
	r.todos = kept
	return cloneTodos(r.todos)
}

// AppendChat records an authoritative chat message in room history.
func (r *Room) AppendChat(msg models.ChatMessage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.chat = append(r.chat, msg)
}

// End completes the room. Only the connection currently holding the host
// slot may end it.
func (r *Room) End(connID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.hostID == "" || r.hostID != connID {
		return ErrNotHost
	}
	if r.status == models.StatusActive {
		now := time.Now()
		r.status = models.StatusCompleted
		r.endedAt = &now
	}
	return nil
}

// HostID returns the current host connection id, or "".
func (r *Room) HostID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.hostID
}

// Status returns the lifecycle state.
func (r *Room) Status() models.RoomStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// ParticipantCount counts participants with no leave time.
func (r *Room) ParticipantCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.activeCountLocked()
}

// ParticipantName looks up the display name for a connection id.
func (r *Room) ParticipantName(connID string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.participants[connID]; ok {
		return p.Name
	}
	return ""
}

// Snapshot copies the room into its persisted form.
func (r *Room) Snapshot() models.RoomSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	snap := models.RoomSnapshot{
		ID:           r.ID,
		HostID:       r.hostID,
		Status:       r.status,
		Documents:    cloneDocs(r.docs),
		Todos:        cloneTodos(r.todos),
		ChatMessages: append([]models.ChatMessage(nil), r.chat...),
		CreatedAt:    r.createdAt,
		EndedAt:      r.endedAt,
	}
	for _, id := range r.order {
		if p, ok := r.participants[id]; ok {
			snap.Participants = append(snap.Participants, *p)
		}
	}
	snap.ParticipantCount = r.activeCountLocked()
	return snap
}

func (r *Room) activeCountLocked() int {
	n := 0
	for _, p := range r.participants {
		if p.LeftAt == nil {
			n++
		}
	}
	return n
}

// expired reports whether the sweeper should end this room.
func (r *Room) expired(now time.Time, emptyGrace, maxAge time.Duration) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.status != models.StatusActive {
		return true
	}
	if r.activeCountLocked() == 0 && now.Sub(r.emptySince) > emptyGrace {
		return true
	}
	return now.Sub(r.createdAt) > maxAge
}

func (r *Room) complete(now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status == models.StatusActive {
		r.status = models.StatusCompleted
		r.endedAt = &now
	}
}

func cloneDocs(docs []models.DocumentRef) []models.DocumentRef {
	out := make([]models.DocumentRef, len(docs))
	copy(out, docs)
	return out
}

func cloneTodos(todos []models.TodoItem) []models.TodoItem {
	out := make([]models.TodoItem, len(todos))
	copy(out, todos)
	return out
}
