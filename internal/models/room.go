package models

import "time"

// RoomStatus is the room lifecycle state.
type RoomStatus string

const (
	StatusScheduled RoomStatus = "scheduled"
	StatusActive    RoomStatus = "active"
	StatusCompleted RoomStatus = "completed"
	StatusCancelled RoomStatus = "cancelled"
)

// Participant is one connection's membership in a room. A connection id
// appears at most once as an active participant; leaving stamps LeftAt
// instead of deleting the record.
type Participant struct {
	ConnID   string     `json:"connId"`
	Name     string     `json:"name"`
	Email    string     `json:"email,omitempty"`
	JoinedAt time.Time  `json:"joinedAt"`
	LeftAt   *time.Time `json:"leftAt,omitempty"`
}

// DocumentRef is a shared document link. Ids are unique within a room.
type DocumentRef struct {
	ID      string    `json:"id"`
	URL     string    `json:"url"`
	Name    string    `json:"name,omitempty"`
	AddedBy string    `json:"addedBy"`
	AddedAt time.Time `json:"addedAt"`
}

// TodoItem is a shared to-do entry. Mutations are keyed by ID and are
// no-ops when the id is missing.
type TodoItem struct {
	ID              string    `json:"id"`
	Text            string    `json:"text"`
	Done            bool      `json:"done"`
	Color           string    `json:"color,omitempty"`
	AssignedToEmail string    `json:"assignedToEmail,omitempty"`
	CreatedBy       string    `json:"createdBy"`
	CreatedAt       time.Time `json:"createdAt"`
}

// RoomSnapshot is the persisted form of a room, written to the meeting
// store when the room completes.
type RoomSnapshot struct {
	ID               string        `json:"id"`
	HostID           string        `json:"hostId,omitempty"`
	Status           RoomStatus    `json:"status"`
	Participants     []Participant `json:"participants"`
	ParticipantCount int           `json:"participantCount"`
	Documents        []DocumentRef `json:"documents"`
	Todos            []TodoItem    `json:"todos"`
	ChatMessages     []ChatMessage `json:"chatMessages"`
	CreatedAt        time.Time     `json:"createdAt"`
	EndedAt          *time.Time    `json:"endedAt,omitempty"`
}
