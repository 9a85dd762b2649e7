package models

import "encoding/json"

// EventType tags every frame exchanged over the signaling websocket.
type EventType string

const (
	EventJoinRoom     EventType = "join-room"
	EventOffer        EventType = "offer"
	EventAnswer       EventType = "answer"
	EventIceCandidate EventType = "ice-candidate"
	EventUserJoined   EventType = "user-joined"
	EventUserLeft     EventType = "user-left"
	EventDocAdd       EventType = "doc-add"
	EventDocRemove    EventType = "doc-remove"
	EventDocsInit     EventType = "docs-init"
	EventDocsUpdated  EventType = "docs-updated"
	EventTodoAdd      EventType = "todo-add"
	EventTodoToggle   EventType = "todo-toggle"
	EventTodoUpdate   EventType = "todo-update"
	EventTodoRemove   EventType = "todo-remove"
	EventTodosInit    EventType = "todos-init"
	EventTodosUpdated EventType = "todos-updated"
	EventMessage      EventType = "message"
	EventMessageResp  EventType = "messageResponse"
	EventMeetingEnd   EventType = "meeting-end"
	EventMeetingEnded EventType = "meeting-ended"
	EventReminder     EventType = "meeting-reminder"
	EventSTTStart     EventType = "stt-start"
	EventSTTChunk     EventType = "stt-chunk"
	EventSTTStop      EventType = "stt-stop"
	EventSTTResult    EventType = "stt-result"
	EventError        EventType = "error"
)

// Envelope is the wire frame for every room-scoped event. Data stays raw
// until the handler for the event decodes it; the relay itself never
// interprets offer/answer/candidate payloads.
type Envelope struct {
	Event EventType       `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// SignalPayload carries an offer, answer, or ICE candidate through the
// relay. Signals are transient: relayed, never persisted.
type SignalPayload struct {
	RoomID    string          `json:"roomId"`
	From      string          `json:"from,omitempty"`
	Offer     json.RawMessage `json:"offer,omitempty"`
	Answer    json.RawMessage `json:"answer,omitempty"`
	Candidate json.RawMessage `json:"candidate,omitempty"`
}

// JoinPayload is the client half of the join-room handshake.
type JoinPayload struct {
	RoomID      string `json:"roomId"`
	DisplayName string `json:"displayName"`
	Email       string `json:"email,omitempty"`
}

// JoinAck is returned to the joiner with its identity and role.
type JoinAck struct {
	PeerID string `json:"peerId"`
	RoomID string `json:"roomId"`
	IsHost bool   `json:"isHost"`
	// The first joiner of a pairing is the designated offerer.
	IsOfferer bool `json:"isOfferer"`
}

// PresencePayload announces user-joined / user-left.
type PresencePayload struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	At   int64  `json:"at"`
}

type DocAddPayload struct {
	RoomID string      `json:"roomId"`
	Doc    DocumentRef `json:"doc"`
}

type DocRemovePayload struct {
	RoomID string `json:"roomId"`
	ID     string `json:"id"`
}

type TodoPayload struct {
	RoomID string   `json:"roomId"`
	Todo   TodoItem `json:"todo"`
}

type TodoRefPayload struct {
	RoomID string `json:"roomId"`
	ID     string `json:"id"`
	Text   string `json:"text,omitempty"`
}

type MeetingEndPayload struct {
	RoomID string `json:"roomId"`
}

type STTStartPayload struct {
	RoomID     string `json:"roomId"`
	SourceLang string `json:"sourceLang,omitempty"`
}

type STTChunkPayload struct {
	ChunkBase64 string `json:"chunkBase64"`
}

type STTResultPayload struct {
	From             string `json:"from"`
	Text             string `json:"text"`
	TranslatedTextEn string `json:"translatedTextEn"`
	At               int64  `json:"at"`
}

type ReminderPayload struct {
	MeetingID     string `json:"meetingId"`
	Title         string `json:"title"`
	ScheduledTime string `json:"scheduledTime"`
	MeetingLink   string `json:"meetingLink"`
	HostName      string `json:"hostName"`
}
