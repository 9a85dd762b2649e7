package room

import (
	"testing"
	"time"

	"github.com/finnianb/roomcast/internal/models"
)

func TestFirstJoinerBecomesHostAndOfferer(t *testing.T) {
	r := newRoom("room-1", time.Now())

	first := r.Join("conn-a", "Alice", "alice@example.com")
	if !first.IsHost {
		t.Errorf("first joiner should be host")
	}
	if !first.IsOfferer {
		t.Errorf("first joiner should be offerer")
	}

	second := r.Join("conn-b", "Bob", "")
	if second.IsHost {
		t.Errorf("second joiner must not be host")
	}
	if second.IsOfferer {
		t.Errorf("second joiner must not be offerer")
	}
	if r.ParticipantCount() != 2 {
		t.Errorf("ParticipantCount = %d, want 2", r.ParticipantCount())
	}
}

func TestRejoinIsIdempotent(t *testing.T) {
	r := newRoom("room-1", time.Now())
	r.Join("conn-a", "Alice", "")

	again := r.Join("conn-a", "Alice", "")
	if !again.Rejoined {
		t.Errorf("repeated join should report Rejoined")
	}
	if !again.IsHost {
		t.Errorf("rejoin must keep the host slot")
	}
	if r.ParticipantCount() != 1 {
		t.Errorf("ParticipantCount = %d, want 1", r.ParticipantCount())
	}
}

func TestLeaveClearsHostSlot(t *testing.T) {
	r := newRoom("room-1", time.Now())
	r.Join("conn-a", "Alice", "")
	r.Join("conn-b", "Bob", "")

	res := r.Leave("conn-a")
	if !res.WasHost {
		t.Errorf("departing first joiner should report WasHost")
	}
	if res.Remaining != 1 {
		t.Errorf("Remaining = %d, want 1", res.Remaining)
	}
	if r.HostID() != "" {
		t.Errorf("host slot should be empty after the host leaves, got %q", r.HostID())
	}

	// A later joiner inherits the vacant slot.
	third := r.Join("conn-c", "Carol", "")
	if !third.IsHost {
		t.Errorf("joiner after host departure should take the host slot")
	}
}

func TestRoomCompletesWhenLastParticipantLeaves(t *testing.T) {
	r := newRoom("room-1", time.Now())
	r.Join("conn-a", "Alice", "")

	res := r.Leave("conn-a")
	if !res.Completed {
		t.Fatalf("room should complete when it empties")
	}
	if r.Status() != models.StatusCompleted {
		t.Errorf("Status = %s, want %s", r.Status(), models.StatusCompleted)
	}
}

func TestLeaveUnknownConnIsNoop(t *testing.T) {
	r := newRoom("room-1", time.Now())
	r.Join("conn-a", "Alice", "")

	res := r.Leave("conn-zz")
	if res.WasHost || res.Completed {
		t.Errorf("unknown departure must have no side effects: %+v", res)
	}
	if res.Remaining != 1 {
		t.Errorf("Remaining = %d, want 1", res.Remaining)
	}
}

func TestDocAddIsIdempotentByID(t *testing.T) {
	r := newRoom("room-1", time.Now())
	doc := models.DocumentRef{ID: "d1", URL: "https://example.com/minutes", AddedBy: "conn-a"}

	docs := r.AddDoc(doc)
	docs = r.AddDoc(doc)
	if len(docs) != 1 {
		t.Errorf("duplicate add produced %d docs, want 1", len(docs))
	}

	docs = r.RemoveDoc("d1")
	if len(docs) != 0 {
		t.Errorf("remove left %d docs, want 0", len(docs))
	}
	// Removing again is a no-op.
	docs = r.RemoveDoc("d1")
	if len(docs) != 0 {
		t.Errorf("second remove left %d docs, want 0", len(docs))
	}
}

func TestTodoMutations(t *testing.T) {
	r := newRoom("room-1", time.Now())
	r.AddTodo(models.TodoItem{ID: "t1", Text: "prepare agenda", CreatedBy: "conn-a"})

	todos := r.ToggleTodo("t1")
	if !todos[0].Done {
		t.Errorf("toggle should mark the item done")
	}
	todos = r.UpdateTodo("t1", "prepare agenda v2")
	if todos[0].Text != "prepare agenda v2" {
		t.Errorf("update text = %q", todos[0].Text)
	}

	// Mutations against missing ids change nothing.
	todos = r.ToggleTodo("missing")
	if len(todos) != 1 || !todos[0].Done {
		t.Errorf("toggle of missing id must not change state")
	}
	todos = r.RemoveTodo("t1")
	if len(todos) != 0 {
		t.Errorf("remove left %d todos, want 0", len(todos))
	}
}

func TestEndRequiresHost(t *testing.T) {
	r := newRoom("room-1", time.Now())
	r.Join("conn-a", "Alice", "")
	r.Join("conn-b", "Bob", "")

	if err := r.End("conn-b"); err != ErrNotHost {
		t.Fatalf("End from non-host: err = %v, want ErrNotHost", err)
	}
	if r.Status() != models.StatusActive {
		t.Errorf("room must stay active after rejected end")
	}

	if err := r.End("conn-a"); err != nil {
		t.Fatalf("End from host: %v", err)
	}
	if r.Status() != models.StatusCompleted {
		t.Errorf("Status = %s, want %s", r.Status(), models.StatusCompleted)
	}
}

func TestExpiry(t *testing.T) {
	start := time.Now()
	r := newRoom("room-1", start)

	if r.expired(start.Add(time.Minute), 5*time.Minute, 2*time.Hour) {
		t.Errorf("fresh empty room inside grace must not expire")
	}
	if !r.expired(start.Add(6*time.Minute), 5*time.Minute, 2*time.Hour) {
		t.Errorf("empty room past grace should expire")
	}

	r.Join("conn-a", "Alice", "")
	if r.expired(start.Add(time.Hour), 5*time.Minute, 2*time.Hour) {
		t.Errorf("occupied room under max age must not expire")
	}
	if !r.expired(start.Add(3*time.Hour), 5*time.Minute, 2*time.Hour) {
		t.Errorf("room past max age should expire even while occupied")
	}
}

func TestSnapshotKeepsDepartedParticipants(t *testing.T) {
	r := newRoom("room-1", time.Now())
	r.Join("conn-a", "Alice", "")
	r.Join("conn-b", "Bob", "")
	r.AppendChat(models.ChatMessage{ID: "m1", From: "conn-a", Text: "hello"})
	r.Leave("conn-b")

	snap := r.Snapshot()
	if len(snap.Participants) != 2 {
		t.Errorf("snapshot has %d participants, want 2 including the departed", len(snap.Participants))
	}
	if snap.ParticipantCount != 1 {
		t.Errorf("ParticipantCount = %d, want 1", snap.ParticipantCount)
	}
	if len(snap.ChatMessages) != 1 {
		t.Errorf("snapshot has %d chat messages, want 1", len(snap.ChatMessages))
	}
}
