package scheduler

import (
	"testing"
	"time"

	"github.com/finnianb/roomcast/internal/models"
)

type fakeBroadcaster struct {
	events []models.EventType
	data   []interface{}
}

func (f *fakeBroadcaster) BroadcastAll(event models.EventType, data interface{}) {
	f.events = append(f.events, event)
	f.data = append(f.data, data)
}

type fakeStore struct {
	meetings map[string]*models.ScheduledMeeting
	deleted  []string
}

func newFakeStore(meetings ...*models.ScheduledMeeting) *fakeStore {
	s := &fakeStore{meetings: make(map[string]*models.ScheduledMeeting)}
	for _, m := range meetings {
		s.meetings[m.ID] = m
	}
	return s
}

func (s *fakeStore) ListStartingBetween(from, to time.Time) ([]models.ScheduledMeeting, error) {
	var out []models.ScheduledMeeting
	for _, m := range s.meetings {
		if !m.ScheduledTime.Before(from) && !m.ScheduledTime.After(to) {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (s *fakeStore) SaveScheduled(m *models.ScheduledMeeting) error {
	cp := *m
	s.meetings[m.ID] = &cp
	return nil
}

func (s *fakeStore) DeleteScheduled(meetingID string) error {
	delete(s.meetings, meetingID)
	s.deleted = append(s.deleted, meetingID)
	return nil
}

func TestSweepFiresReminderInsideLeadWindow(t *testing.T) {
	now := time.Now()
	st := newFakeStore(
		&models.ScheduledMeeting{ID: "soon", Title: "standup", ScheduledTime: now.Add(3 * time.Minute), MeetingLink: "https://m/soon"},
		&models.ScheduledMeeting{ID: "later", Title: "retro", ScheduledTime: now.Add(time.Hour)},
	)
	b := &fakeBroadcaster{}
	r := NewReminder(b, st, Options{Lead: 5 * time.Minute})

	r.sweep(now)

	if len(b.events) != 1 || b.events[0] != models.EventReminder {
		t.Fatalf("broadcasts = %v, want one meeting-reminder", b.events)
	}
	payload, ok := b.data[0].(models.ReminderPayload)
	if !ok || payload.MeetingID != "soon" || payload.MeetingLink != "https://m/soon" {
		t.Errorf("payload = %+v", b.data[0])
	}
	if !st.meetings["soon"].ReminderSent {
		t.Errorf("reminder not marked sent")
	}
}

func TestSweepFiresReminderOnlyOnce(t *testing.T) {
	now := time.Now()
	st := newFakeStore(&models.ScheduledMeeting{ID: "m1", ScheduledTime: now.Add(2 * time.Minute)})
	b := &fakeBroadcaster{}
	r := NewReminder(b, st, Options{Lead: 5 * time.Minute})

	r.sweep(now)
	r.sweep(now.Add(30 * time.Second))

	if len(b.events) != 1 {
		t.Errorf("broadcasts = %d, want exactly 1", len(b.events))
	}
}

func TestSweepSkipsAlreadyStartedMeetings(t *testing.T) {
	now := time.Now()
	st := newFakeStore(&models.ScheduledMeeting{ID: "started", ScheduledTime: now.Add(-time.Minute)})
	b := &fakeBroadcaster{}
	r := NewReminder(b, st, Options{Lead: 5 * time.Minute})

	r.sweep(now)

	if len(b.events) != 0 {
		t.Errorf("reminder fired for a meeting that already started")
	}
	if len(st.deleted) != 0 {
		t.Errorf("recently started meeting must not be pruned yet")
	}
}

func TestSweepPrunesLongPastMeetings(t *testing.T) {
	now := time.Now()
	st := newFakeStore(&models.ScheduledMeeting{ID: "ancient", ScheduledTime: now.Add(-48 * time.Hour)})
	b := &fakeBroadcaster{}
	r := NewReminder(b, st, Options{Lead: 5 * time.Minute, Retention: 24 * time.Hour})

	r.sweep(now)

	if len(st.deleted) != 1 || st.deleted[0] != "ancient" {
		t.Errorf("deleted = %v, want [ancient]", st.deleted)
	}
	if len(b.events) != 0 {
		t.Errorf("pruned meeting must not broadcast a reminder")
	}
}
