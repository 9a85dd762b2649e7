// Package store persists meeting records and completed-room archives in
// Redis. The live room state never touches Redis; only what must survive
// a restart (scheduled meetings, link validity, final snapshots) does.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/finnianb/roomcast/internal/models"
	"github.com/finnianb/roomcast/internal/redis"
)

const (
	meetingKeyPrefix  = "meeting:"
	instantKeyPrefix  = "instant:"
	snapshotKeyPrefix = "snapshot:"
	hostKeyPrefix     = "host:"
	meetingsByTimeKey = "meetings:by-time"

	instantTTL  = 24 * time.Hour
	snapshotTTL = 7 * 24 * time.Hour
)

// ErrNotFound is returned when no meeting exists under the given ID.
var ErrNotFound = errors.New("meeting not found")

// Meetings adapts the package-level persistence functions to the store
// interfaces declared by consumers such as the reminder scheduler.
type Meetings struct{}

func (Meetings) ListStartingBetween(from, to time.Time) ([]models.ScheduledMeeting, error) {
	return ListStartingBetween(from, to)
}

func (Meetings) SaveScheduled(m *models.ScheduledMeeting) error { return SaveScheduled(m) }

func (Meetings) DeleteScheduled(meetingID string) error {
	if err := DeleteScheduled(meetingID); err != nil && err != ErrNotFound {
		return err
	}
	return nil
}

// MarkInstant records an instant meeting link so /validate-meet can vouch
// for it later. Instant links expire on their own.
func MarkInstant(meetingID string) error {
	client := redis.GetClient()
	ctx := redis.GetContext()

	if err := client.Set(ctx, instantKeyPrefix+meetingID, time.Now().Format(time.RFC3339), instantTTL).Err(); err != nil {
		return fmt.Errorf("failed to store instant meeting: %w", err)
	}
	return nil
}

// IsValidMeeting reports whether an ID belongs to a known instant link or
// a scheduled meeting.
func IsValidMeeting(meetingID string) (bool, error) {
	client := redis.GetClient()
	ctx := redis.GetContext()

	n, err := client.Exists(ctx, instantKeyPrefix+meetingID, meetingKeyPrefix+meetingID).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check meeting: %w", err)
	}
	return n > 0, nil
}

// SaveScheduled writes a scheduled meeting and indexes it by host and by
// start time.
func SaveScheduled(m *models.ScheduledMeeting) error {
	client := redis.GetClient()
	ctx := redis.GetContext()

	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to marshal meeting: %w", err)
	}

	if err := client.Set(ctx, meetingKeyPrefix+m.ID, data, 0).Err(); err != nil {
		return fmt.Errorf("failed to store meeting: %w", err)
	}
	if err := client.SAdd(ctx, hostKeyPrefix+m.HostEmail+":meetings", m.ID).Err(); err != nil {
		return fmt.Errorf("failed to index meeting by host: %w", err)
	}
	if err := client.ZAdd(ctx, meetingsByTimeKey, goredis.Z{
		Score:  float64(m.ScheduledTime.Unix()),
		Member: m.ID,
	}).Err(); err != nil {
		return fmt.Errorf("failed to index meeting by time: %w", err)
	}
	return nil
}

// GetScheduled loads one scheduled meeting.
func GetScheduled(meetingID string) (*models.ScheduledMeeting, error) {
	client := redis.GetClient()
	ctx := redis.GetContext()

	data, err := client.Get(ctx, meetingKeyPrefix+meetingID).Result()
	if err == goredis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load meeting: %w", err)
	}

	var m models.ScheduledMeeting
	if err := json.Unmarshal([]byte(data), &m); err != nil {
		return nil, fmt.Errorf("failed to parse meeting data: %w", err)
	}
	return &m, nil
}

// ListByHost returns every scheduled meeting owned by one host email,
// skipping index entries whose record has since been deleted.
func ListByHost(hostEmail string) ([]models.ScheduledMeeting, error) {
	client := redis.GetClient()
	ctx := redis.GetContext()

	ids, err := client.SMembers(ctx, hostKeyPrefix+hostEmail+":meetings").Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list meetings for host: %w", err)
	}

	meetings := make([]models.ScheduledMeeting, 0, len(ids))
	for _, id := range ids {
		m, err := GetScheduled(id)
		if err == ErrNotFound {
			client.SRem(ctx, hostKeyPrefix+hostEmail+":meetings", id)
			continue
		}
		if err != nil {
			return nil, err
		}
		meetings = append(meetings, *m)
	}
	return meetings, nil
}

// DeleteScheduled removes a meeting and its index entries.
func DeleteScheduled(meetingID string) error {
	client := redis.GetClient()
	ctx := redis.GetContext()

	m, err := GetScheduled(meetingID)
	if err != nil {
		return err
	}

	client.Del(ctx, meetingKeyPrefix+meetingID)
	client.SRem(ctx, hostKeyPrefix+m.HostEmail+":meetings", meetingID)
	client.ZRem(ctx, meetingsByTimeKey, meetingID)
	return nil
}

// ListStartingBetween returns meetings whose scheduled time falls inside
// [from, to]. The reminder sweep uses this to find imminent meetings.
func ListStartingBetween(from, to time.Time) ([]models.ScheduledMeeting, error) {
	client := redis.GetClient()
	ctx := redis.GetContext()

	ids, err := client.ZRangeByScore(ctx, meetingsByTimeKey, &goredis.ZRangeBy{
		Min: fmt.Sprintf("%d", from.Unix()),
		Max: fmt.Sprintf("%d", to.Unix()),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to query meetings by time: %w", err)
	}

	meetings := make([]models.ScheduledMeeting, 0, len(ids))
	for _, id := range ids {
		m, err := GetScheduled(id)
		if err == ErrNotFound {
			client.ZRem(ctx, meetingsByTimeKey, id)
			continue
		}
		if err != nil {
			return nil, err
		}
		meetings = append(meetings, *m)
	}
	return meetings, nil
}

// SaveSnapshot archives the final state of a completed room. Failures are
// logged rather than returned because the caller is a teardown path.
func SaveSnapshot(snap models.RoomSnapshot) {
	client := redis.GetClient()
	if client == nil {
		return
	}
	ctx := redis.GetContext()

	data, err := json.Marshal(snap)
	if err != nil {
		log.Printf("Failed to marshal snapshot for room %s: %v", snap.ID, err)
		return
	}
	if err := client.Set(ctx, snapshotKeyPrefix+snap.ID, data, snapshotTTL).Err(); err != nil {
		log.Printf("Failed to archive room %s: %v", snap.ID, err)
	}
}

// GetSnapshot loads an archived room, or ErrNotFound.
func GetSnapshot(roomID string) (*models.RoomSnapshot, error) {
	client := redis.GetClient()
	ctx := redis.GetContext()

	data, err := client.Get(ctx, snapshotKeyPrefix+roomID).Result()
	if err == goredis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}

	var snap models.RoomSnapshot
	if err := json.Unmarshal([]byte(data), &snap); err != nil {
		return nil, fmt.Errorf("failed to parse snapshot data: %w", err)
	}
	return &snap, nil
}
