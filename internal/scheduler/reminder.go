// Package scheduler runs the meeting reminder sweep: shortly before a
// scheduled meeting starts, every connected client hears about it once.
package scheduler

import (
	"log"
	"time"

	"github.com/finnianb/roomcast/internal/models"
)

// Broadcaster is the sliver of the relay the scheduler needs.
type Broadcaster interface {
	BroadcastAll(event models.EventType, data interface{})
}

// MeetingStore is the sliver of the meeting store the sweep needs.
type MeetingStore interface {
	ListStartingBetween(from, to time.Time) ([]models.ScheduledMeeting, error)
	SaveScheduled(m *models.ScheduledMeeting) error
	DeleteScheduled(meetingID string) error
}

// Options tunes the reminder sweep. Zero values fall back to defaults.
type Options struct {
	// Lead is how far before the start time the reminder fires.
	Lead time.Duration
	// Interval is how often the sweep runs.
	Interval time.Duration
	// Retention is how long a meeting record outlives its start time.
	Retention time.Duration
}

func (o Options) withDefaults() Options {
	if o.Lead == 0 {
		o.Lead = 5 * time.Minute
	}
	if o.Interval == 0 {
		o.Interval = 30 * time.Second
	}
	if o.Retention == 0 {
		o.Retention = 24 * time.Hour
	}
	return o
}

// Reminder periodically scans the meeting store for imminent meetings.
type Reminder struct {
	broadcaster Broadcaster
	meetings    MeetingStore
	opts        Options
	stop        chan struct{}
}

func NewReminder(b Broadcaster, meetings MeetingStore, opts Options) *Reminder {
	return &Reminder{
		broadcaster: b,
		meetings:    meetings,
		opts:        opts.withDefaults(),
		stop:        make(chan struct{}),
	}
}

// Start launches the sweep loop.
func (r *Reminder) Start() {
	go r.loop()
}

// Stop halts the sweep loop. Safe to call once.
func (r *Reminder) Stop() {
	close(r.stop)
}

func (r *Reminder) loop() {
	ticker := time.NewTicker(r.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.sweep(time.Now())
		case <-r.stop:
			return
		}
	}
}

// sweep fires reminders for meetings starting within the lead window and
// prunes records whose start time is long past.
func (r *Reminder) sweep(now time.Time) {
	meetings, err := r.meetings.ListStartingBetween(time.Unix(0, 0), now.Add(r.opts.Lead))
	if err != nil {
		log.Printf("Reminder sweep failed: %v", err)
		return
	}

	for i := range meetings {
		m := &meetings[i]

		if now.Sub(m.ScheduledTime) > r.opts.Retention {
			if err := r.meetings.DeleteScheduled(m.ID); err != nil {
				log.Printf("Failed to prune meeting %s: %v", m.ID, err)
			}
			continue
		}
		if m.ReminderSent || m.ScheduledTime.Before(now) {
			continue
		}

		r.broadcaster.BroadcastAll(models.EventReminder, models.ReminderPayload{
			MeetingID:     m.ID,
			Title:         m.Title,
			ScheduledTime: m.ScheduledTime.Format(time.RFC3339),
			MeetingLink:   m.MeetingLink,
			HostName:      m.HostName,
		})
		log.Printf("Reminder sent for meeting %s (%s)", m.ID, m.Title)

		m.ReminderSent = true
		if err := r.meetings.SaveScheduled(m); err != nil {
			log.Printf("Failed to mark reminder sent for %s: %v", m.ID, err)
		}
	}
}
