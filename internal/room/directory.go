package room

import (
	"log"
	"sync"
	"time"

	"github.com/finnianb/roomcast/internal/models"
)

// CompletionHook runs after a room transitions to completed, outside the
// room lock. Used to hand the final snapshot to the meeting store and the
// post-meeting summary collaborator.
type CompletionHook func(snap models.RoomSnapshot)

// Directory is the registry of live rooms. The directory lock only guards
// the id map; room state is guarded per room.
type Directory struct {
	mu    sync.RWMutex
	rooms map[string]*Room

	emptyGrace time.Duration
	maxAge     time.Duration

	onCompleted CompletionHook

	stopOnce sync.Once
	stop     chan struct{}
}

type Options struct {
	EmptyGrace    time.Duration
	MaxAge        time.Duration
	SweepInterval time.Duration
	OnCompleted   CompletionHook
}

func NewDirectory(opts Options) *Directory {
	if opts.EmptyGrace <= 0 {
		opts.EmptyGrace = 5 * time.Minute
	}
	if opts.MaxAge <= 0 {
		opts.MaxAge = 2 * time.Hour
	}
	d := &Directory{
		rooms:       make(map[string]*Room),
		emptyGrace:  opts.EmptyGrace,
		maxAge:      opts.MaxAge,
		onCompleted: opts.OnCompleted,
		stop:        make(chan struct{}),
	}
	if opts.SweepInterval > 0 {
		go d.sweepLoop(opts.SweepInterval)
	}
	return d
}

// GetOrCreate returns the room, lazily creating an instant room on first
// reference.
func (d *Directory) GetOrCreate(id string) *Room {
	d.mu.RLock()
	r, ok := d.rooms[id]
	d.mu.RUnlock()
	if ok {
		return r
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if r, ok = d.rooms[id]; ok {
		return r
	}
	r = newRoom(id, time.Now())
	d.rooms[id] = r
	log.Printf("Created room %s", id)
	return r
}

// Get returns the room or nil. Mutating events against a missing room are
// dropped by the caller, never errored.
func (d *Directory) Get(id string) *Room {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.rooms[id]
}

// Leave routes a departure to the room and runs completion side effects if
// the room emptied out.
func (d *Directory) Leave(roomID, connID string) LeaveResult {
	r := d.Get(roomID)
	if r == nil {
		return LeaveResult{}
	}
	res := r.Leave(connID)
	if res.Completed {
		d.finish(r)
	}
	return res
}

// End completes a room on the host's request and removes it from the
// directory.
func (d *Directory) End(roomID, connID string) error {
	r := d.Get(roomID)
	if r == nil {
		return nil
	}
	if err := r.End(connID); err != nil {
		return err
	}
	d.finish(r)
	return nil
}

func (d *Directory) finish(r *Room) {
	d.mu.Lock()
	delete(d.rooms, r.ID)
	d.mu.Unlock()
	log.Printf("Room %s completed", r.ID)
	if d.onCompleted != nil {
		d.onCompleted(r.Snapshot())
	}
}

// Close stops the background sweeper.
func (d *Directory) Close() {
	d.stopOnce.Do(func() { close(d.stop) })
}

// sweepLoop is the single process-wide reaper for stale rooms. One ticker
// covers every room; per-join timers are deliberately absent.
func (d *Directory) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-d.stop:
			return
		case now := <-ticker.C:
			d.sweep(now)
		}
	}
}

func (d *Directory) sweep(now time.Time) {
	d.mu.RLock()
	var stale []*Room
	for _, r := range d.rooms {
		if r.expired(now, d.emptyGrace, d.maxAge) {
			stale = append(stale, r)
		}
	}
	d.mu.RUnlock()

	for _, r := range stale {
		r.complete(now)
		log.Printf("Sweeping stale room %s", r.ID)
		d.finish(r)
	}
}
