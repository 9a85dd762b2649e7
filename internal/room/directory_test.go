package room

import (
	"testing"
	"time"

	"github.com/finnianb/roomcast/internal/models"
)

func TestGetOrCreateReturnsSameRoom(t *testing.T) {
	d := NewDirectory(Options{})
	defer d.Close()

	a := d.GetOrCreate("room-1")
	b := d.GetOrCreate("room-1")
	if a != b {
		t.Fatalf("GetOrCreate returned distinct rooms for one id")
	}
	if d.Get("room-2") != nil {
		t.Errorf("Get of unknown id should return nil")
	}
}

func TestLeaveCompletionHook(t *testing.T) {
	var completed []models.RoomSnapshot
	d := NewDirectory(Options{OnCompleted: func(snap models.RoomSnapshot) {
		completed = append(completed, snap)
	}})
	defer d.Close()

	r := d.GetOrCreate("room-1")
	r.Join("conn-a", "Alice", "")
	r.Join("conn-b", "Bob", "")

	d.Leave("room-1", "conn-a")
	if len(completed) != 0 {
		t.Fatalf("hook fired while the room was still occupied")
	}

	d.Leave("room-1", "conn-b")
	if len(completed) != 1 {
		t.Fatalf("hook fired %d times, want 1", len(completed))
	}
	if completed[0].Status != models.StatusCompleted {
		t.Errorf("snapshot status = %s, want %s", completed[0].Status, models.StatusCompleted)
	}
	if d.Get("room-1") != nil {
		t.Errorf("completed room should be removed from the directory")
	}
}

func TestEndHonorsHostInvariant(t *testing.T) {
	d := NewDirectory(Options{})
	defer d.Close()

	r := d.GetOrCreate("room-1")
	r.Join("conn-a", "Alice", "")
	r.Join("conn-b", "Bob", "")

	if err := d.End("room-1", "conn-b"); err == nil {
		t.Fatalf("End from non-host should fail")
	}
	if d.Get("room-1") == nil {
		t.Fatalf("room must survive a rejected end")
	}

	if err := d.End("room-1", "conn-a"); err != nil {
		t.Fatalf("End from host: %v", err)
	}
	if d.Get("room-1") != nil {
		t.Errorf("ended room should be removed from the directory")
	}
}

func TestSweepReapsStaleRooms(t *testing.T) {
	var completed []string
	d := NewDirectory(Options{
		EmptyGrace: 5 * time.Minute,
		MaxAge:     2 * time.Hour,
		OnCompleted: func(snap models.RoomSnapshot) {
			completed = append(completed, snap.ID)
		},
	})
	defer d.Close()

	// Empty past grace: reaped.
	d.GetOrCreate("empty-room")
	// Occupied and fresh: kept.
	d.GetOrCreate("live-room").Join("conn-a", "Alice", "")

	d.sweep(time.Now().Add(10 * time.Minute))

	if d.Get("empty-room") != nil {
		t.Errorf("empty room past grace should be swept")
	}
	if d.Get("live-room") == nil {
		t.Errorf("occupied room should survive the sweep")
	}
	if len(completed) != 1 || completed[0] != "empty-room" {
		t.Errorf("completion hook calls = %v, want [empty-room]", completed)
	}

	// Everything past max age goes, occupied or not.
	d.sweep(time.Now().Add(3 * time.Hour))
	if d.Get("live-room") != nil {
		t.Errorf("room past max age should be swept")
	}
}
