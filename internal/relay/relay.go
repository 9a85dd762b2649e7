// Package relay is the room-scoped event router: it owns the WebSocket
// hub, forwards signaling between the participants of a room, and fans
// side-channel updates (documents, to-dos, chat, transcriptions) out to
// room members. Signaling payloads pass through opaque and unmodified.
package relay

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/finnianb/roomcast/internal/models"
	"github.com/finnianb/roomcast/internal/room"
	"github.com/finnianb/roomcast/internal/stt"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Origin checking is handled by middleware
		return true
	},
}

// Translator produces a best-effort English rendering; it never fails.
type Translator interface {
	ToEnglish(ctx context.Context, text string) string
}

// Relay routes room events between connected clients.
type Relay struct {
	directory   *room.Directory
	translator  Translator
	transcriber stt.Transcriber
	sttSessions *stt.Sessions

	mu      sync.RWMutex
	clients map[string]*Client            // conn id -> client
	groups  map[string]map[string]*Client // room id -> conn id -> client
}

func New(directory *room.Directory, translator Translator, transcriber stt.Transcriber) *Relay {
	return &Relay{
		directory:   directory,
		translator:  translator,
		transcriber: transcriber,
		sttSessions: stt.NewSessions(),
		clients:     make(map[string]*Client),
		groups:      make(map[string]map[string]*Client),
	}
}

// HandleWS upgrades the connection and starts the client pumps. Room
// membership is established afterwards by a join-room event.
func (r *Relay) HandleWS(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("Failed to upgrade connection: %v", err)
		return
	}

	client := &Client{
		ID:    uuid.New().String(),
		Conn:  conn,
		Send:  make(chan []byte, sendBuffer),
		relay: r,
	}

	r.mu.Lock()
	r.clients[client.ID] = client
	r.mu.Unlock()
	log.Printf("Client %s connected", client.ID)

	go client.writePump()
	go client.readPump()
}

// dispatch routes one inbound envelope. Unknown events and events against
// missing rooms are dropped with a log line, never errored back.
func (r *Relay) dispatch(c *Client, env models.Envelope) {
	switch env.Event {
	case models.EventJoinRoom:
		r.handleJoin(c, env.Data)
	case models.EventOffer, models.EventAnswer, models.EventIceCandidate:
		r.forwardSignal(c, env)
	case models.EventDocAdd:
		r.handleDocAdd(c, env.Data)
	case models.EventDocRemove:
		r.handleDocRemove(c, env.Data)
	case models.EventTodoAdd, models.EventTodoToggle, models.EventTodoUpdate, models.EventTodoRemove:
		r.handleTodo(c, env.Event, env.Data)
	case models.EventMessage:
		r.handleChatMessage(c, env.Data)
	case models.EventMeetingEnd:
		r.handleMeetingEnd(c, env.Data)
	case models.EventSTTStart:
		r.handleSTTStart(c, env.Data)
	case models.EventSTTChunk:
		r.handleSTTChunk(c, env.Data)
	case models.EventSTTStop:
		r.handleSTTStop(c)
	default:
		log.Printf("Unknown event %q from %s", env.Event, c.ID)
	}
}

func (r *Relay) handleJoin(c *Client, data json.RawMessage) {
	var p models.JoinPayload
	if err := json.Unmarshal(data, &p); err != nil || p.RoomID == "" {
		log.Printf("Dropping malformed join-room from %s", c.ID)
		return
	}

	rm := r.directory.GetOrCreate(p.RoomID)
	res := rm.Join(c.ID, p.DisplayName, p.Email)

	r.mu.Lock()
	c.Name = p.DisplayName
	c.Email = p.Email
	c.RoomID = p.RoomID
	group, ok := r.groups[p.RoomID]
	if !ok {
		group = make(map[string]*Client)
		r.groups[p.RoomID] = group
	}
	group[c.ID] = c
	r.mu.Unlock()

	log.Printf("Peer %s (%s) joined room %s (host=%v, participants=%d)",
		c.ID, p.DisplayName, p.RoomID, res.IsHost, rm.ParticipantCount())

	c.sendEvent(models.EventJoinRoom, models.JoinAck{
		PeerID:    c.ID,
		RoomID:    p.RoomID,
		IsHost:    res.IsHost,
		IsOfferer: res.IsOfferer,
	})
	c.sendEvent(models.EventDocsInit, res.Docs)
	c.sendEvent(models.EventTodosInit, res.Todos)

	if !res.Rejoined {
		r.broadcast(p.RoomID, models.EventUserJoined, models.PresencePayload{
			ID:   c.ID,
			Name: p.DisplayName,
			At:   time.Now().UnixMilli(),
		}, c.ID)
	}
}

// forwardSignal relays offer/answer/ice-candidate frames verbatim to every
// other member of the room. The payload is only peeked at for its room id.
func (r *Relay) forwardSignal(c *Client, env models.Envelope) {
	var ref struct {
		RoomID string `json:"roomId"`
	}
	if err := json.Unmarshal(env.Data, &ref); err != nil || ref.RoomID == "" {
		log.Printf("Dropping %s with no room id from %s", env.Event, c.ID)
		return
	}
	if r.directory.Get(ref.RoomID) == nil {
		return
	}

	frame, err := json.Marshal(env)
	if err != nil {
		return
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for id, member := range r.groups[ref.RoomID] {
		if id != c.ID {
			member.send(frame)
		}
	}
}

func (r *Relay) handleDocAdd(c *Client, data json.RawMessage) {
	var p models.DocAddPayload
	if err := json.Unmarshal(data, &p); err != nil || p.RoomID == "" || p.Doc.ID == "" {
		return
	}
	rm := r.directory.Get(p.RoomID)
	if rm == nil {
		return
	}
	if p.Doc.AddedBy == "" {
		p.Doc.AddedBy = c.ID
	}
	docs := rm.AddDoc(p.Doc)
	r.broadcast(p.RoomID, models.EventDocsUpdated, docs, "")
}

func (r *Relay) handleDocRemove(c *Client, data json.RawMessage) {
	var p models.DocRemovePayload
	if err := json.Unmarshal(data, &p); err != nil || p.RoomID == "" || p.ID == "" {
		return
	}
	rm := r.directory.Get(p.RoomID)
	if rm == nil {
		return
	}
	docs := rm.RemoveDoc(p.ID)
	r.broadcast(p.RoomID, models.EventDocsUpdated, docs, "")
}

func (r *Relay) handleTodo(c *Client, event models.EventType, data json.RawMessage) {
	var todos []models.TodoItem
	var roomID string

	switch event {
	case models.EventTodoAdd:
		var p models.TodoPayload
		if err := json.Unmarshal(data, &p); err != nil || p.RoomID == "" || p.Todo.ID == "" {
			return
		}
		rm := r.directory.Get(p.RoomID)
		if rm == nil {
			return
		}
		if p.Todo.CreatedBy == "" {
			p.Todo.CreatedBy = c.ID
		}
		roomID, todos = p.RoomID, rm.AddTodo(p.Todo)
	default:
		var p models.TodoRefPayload
		if err := json.Unmarshal(data, &p); err != nil || p.RoomID == "" || p.ID == "" {
			return
		}
		rm := r.directory.Get(p.RoomID)
		if rm == nil {
			return
		}
		roomID = p.RoomID
		switch event {
		case models.EventTodoToggle:
			todos = rm.ToggleTodo(p.ID)
		case models.EventTodoUpdate:
			todos = rm.UpdateTodo(p.ID, p.Text)
		case models.EventTodoRemove:
			todos = rm.RemoveTodo(p.ID)
		}
	}
	r.broadcast(roomID, models.EventTodosUpdated, todos, "")
}

// handleChatMessage translates and echoes a chat message to the whole
// room, sender included. Translation runs off the read loop so a slow
// provider cannot stall the relay; it degrades to the original text.
func (r *Relay) handleChatMessage(c *Client, data json.RawMessage) {
	var msg models.ChatMessage
	if err := json.Unmarshal(data, &msg); err != nil || msg.RoomID == "" {
		return
	}
	rm := r.directory.Get(msg.RoomID)
	if rm == nil {
		return
	}

	msg.From = c.ID
	if msg.SenderName == "" {
		msg.SenderName = c.Name
	}
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	if msg.Timestamp == "" {
		msg.Timestamp = time.Now().Format("15:04:05")
	}
	msg.Pending = false

	go func() {
		msg.TranslatedTextEn = r.translator.ToEnglish(context.Background(), msg.Text)
		rm.AppendChat(msg)
		r.broadcast(msg.RoomID, models.EventMessageResp, msg, "")
	}()
}

func (r *Relay) handleMeetingEnd(c *Client, data json.RawMessage) {
	var p models.MeetingEndPayload
	if err := json.Unmarshal(data, &p); err != nil || p.RoomID == "" {
		return
	}
	if err := r.directory.End(p.RoomID, c.ID); err != nil {
		log.Printf("Rejecting meeting-end from non-host %s for room %s", c.ID, p.RoomID)
		return
	}
	r.broadcast(p.RoomID, models.EventMeetingEnded, models.MeetingEndPayload{RoomID: p.RoomID}, "")
	r.evictRoom(p.RoomID)
}

func (r *Relay) handleSTTStart(c *Client, data json.RawMessage) {
	var p models.STTStartPayload
	if err := json.Unmarshal(data, &p); err != nil || p.RoomID == "" {
		return
	}
	r.sttSessions.Start(c.ID, p.RoomID, p.SourceLang)
}

func (r *Relay) handleSTTChunk(c *Client, data json.RawMessage) {
	var p models.STTChunkPayload
	if err := json.Unmarshal(data, &p); err != nil || p.ChunkBase64 == "" {
		return
	}
	r.sttSessions.Append(c.ID, p.ChunkBase64)
}

func (r *Relay) handleSTTStop(c *Client) {
	audio, roomID, sourceLang, ok := r.sttSessions.Stop(c.ID)
	if !ok || r.transcriber == nil {
		return
	}
	if r.directory.Get(roomID) == nil {
		return
	}

	go func() {
		ctx := context.Background()
		text, err := r.transcriber.Transcribe(ctx, audio, sourceLang)
		if err != nil {
			log.Printf("STT pipeline error for %s: %v", c.ID, err)
			return
		}
		if text == "" {
			return
		}
		translated := r.translator.ToEnglish(ctx, text)
		r.broadcast(roomID, models.EventSTTResult, models.STTResultPayload{
			From:             c.ID,
			Text:             text,
			TranslatedTextEn: translated,
			At:               time.Now().UnixMilli(),
		}, "")
	}()
}

// dropClient handles transport disconnection: leave the room, notify the
// remaining members, and discard any open capture session.
func (r *Relay) dropClient(c *Client) {
	r.mu.Lock()
	delete(r.clients, c.ID)
	if c.RoomID != "" {
		if group, ok := r.groups[c.RoomID]; ok {
			delete(group, c.ID)
			if len(group) == 0 {
				delete(r.groups, c.RoomID)
			}
		}
	}
	r.mu.Unlock()

	r.sttSessions.Drop(c.ID)

	if c.RoomID != "" {
		res := r.directory.Leave(c.RoomID, c.ID)
		log.Printf("Peer %s left room %s (host=%v, remaining=%d)", c.ID, c.RoomID, res.WasHost, res.Remaining)
		r.broadcast(c.RoomID, models.EventUserLeft, models.PresencePayload{
			ID:   c.ID,
			Name: c.Name,
			At:   time.Now().UnixMilli(),
		}, c.ID)
	}
	log.Printf("Client %s disconnected", c.ID)
}

// broadcast fans an event out to every member of a room except excludeID.
func (r *Relay) broadcast(roomID string, event models.EventType, data interface{}, excludeID string) {
	frame, err := encodeEvent(event, data)
	if err != nil {
		log.Printf("Failed to marshal %s broadcast: %v", event, err)
		return
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for id, member := range r.groups[roomID] {
		if id != excludeID {
			member.send(frame)
		}
	}
}

// BroadcastAll sends an event to every connected client, regardless of
// room. Used for meeting reminders.
func (r *Relay) BroadcastAll(event models.EventType, data interface{}) {
	frame, err := encodeEvent(event, data)
	if err != nil {
		log.Printf("Failed to marshal %s broadcast: %v", event, err)
		return
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, client := range r.clients {
		client.send(frame)
	}
}

// evictRoom removes every member from the room's broadcast group.
func (r *Relay) evictRoom(roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, member := range r.groups[roomID] {
		member.RoomID = ""
	}
	delete(r.groups, roomID)
}
