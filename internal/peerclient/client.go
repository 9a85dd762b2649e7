// Package peerclient is a Go participant in a room: it dials the relay
// over WebSocket, joins a room, and drives a peer.Manager with the
// signaling that arrives. The chat timeline reconciles optimistic local
// sends with server echoes.
package peerclient

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/finnianb/roomcast/internal/models"
	"github.com/finnianb/roomcast/internal/peer"
	"github.com/finnianb/roomcast/internal/reconcile"
)

// Handlers are the application-facing callbacks. All fields are optional.
type Handlers struct {
	OnJoined       func(models.JoinAck)
	OnUserJoined   func(models.PresencePayload)
	OnUserLeft     func(models.PresencePayload)
	OnDocsUpdated  func([]models.DocumentRef)
	OnTodosUpdated func([]models.TodoItem)
	OnChat         func(models.ChatMessage)
	OnSTTResult    func(models.STTResultPayload)
	OnReminder     func(models.ReminderPayload)
	OnMeetingEnded func()
	OnPeerState    func(peer.ConnectionState)
	OnRemoteMedia  func(peer.RemoteMedia)
	OnStats        func(peer.Stats)
	OnPeerError    func(error)
}

// Options configures a client before it dials.
type Options struct {
	RoomID      string
	DisplayName string
	Email       string

	// Factory builds the negotiation session; media is attached to it.
	Factory peer.SessionFactory
	Media   peer.LocalMedia
	Peer    peer.Config

	Handlers Handlers
}

// Client is one connection to the relay.
type Client struct {
	opts Options
	conn *websocket.Conn

	writeMu sync.Mutex

	mu       sync.Mutex
	peerID   string
	isHost   bool
	manager  *peer.Manager
	timeline *reconcile.Timeline
	closed   bool

	done chan struct{}
}

// Dial connects to the relay, joins the room, and starts the read loop.
// The returned client is live; signaling and room events flow through the
// registered handlers.
func Dial(ctx context.Context, wsURL string, opts Options) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("dial relay: %w", err)
	}

	c := &Client{
		opts:     opts,
		conn:     conn,
		timeline: reconcile.NewTimeline(),
		done:     make(chan struct{}),
	}

	if err := c.writeEvent(models.EventJoinRoom, models.JoinPayload{
		RoomID:      opts.RoomID,
		DisplayName: opts.DisplayName,
		Email:       opts.Email,
	}); err != nil {
		conn.Close()
		return nil, fmt.Errorf("join room: %w", err)
	}

	go c.readLoop()
	return c, nil
}

// PeerID returns the identity assigned by the relay, empty until the join
// ack arrives.
func (c *Client) PeerID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.peerID
}

// IsHost reports whether the relay designated this client the room host.
func (c *Client) IsHost() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.isHost
}

// Manager returns the peer manager, nil until the join ack arrives.
func (c *Client) Manager() *peer.Manager {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.manager
}

// Messages returns the reconciled chat timeline in render order.
func (c *Client) Messages() []models.ChatMessage {
	return c.timeline.Messages()
}

// Done is closed when the read loop exits.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Close tears down the peer session and the WebSocket.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	mgr := c.manager
	c.mu.Unlock()

	if mgr != nil {
		mgr.Cleanup()
	}

	c.writeMu.Lock()
	c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	c.writeMu.Unlock()
	return c.conn.Close()
}

// --- outbound ---

// SendChat renders the message locally right away and ships it to the
// relay keyed by a fresh clientKey, so the translated echo replaces the
// optimistic record instead of duplicating it.
func (c *Client) SendChat(text, senderLanguage string) (models.ChatMessage, error) {
	msg := models.ChatMessage{
		ClientKey:      uuid.New().String(),
		RoomID:         c.opts.RoomID,
		From:           c.PeerID(),
		SenderName:     c.opts.DisplayName,
		Text:           text,
		SenderLanguage: senderLanguage,
		Timestamp:      time.Now().Format("15:04:05"),
	}
	c.timeline.AppendLocal(msg)
	return msg, c.writeEvent(models.EventMessage, msg)
}

// AddDocument shares a document link with the room.
func (c *Client) AddDocument(url, name string) error {
	return c.writeEvent(models.EventDocAdd, models.DocAddPayload{
		RoomID: c.opts.RoomID,
		Doc: models.DocumentRef{
			ID:      uuid.New().String(),
			URL:     url,
			Name:    name,
			AddedBy: c.PeerID(),
			AddedAt: time.Now(),
		},
	})
}

// RemoveDocument retracts a shared document link.
func (c *Client) RemoveDocument(docID string) error {
	return c.writeEvent(models.EventDocRemove, models.DocRemovePayload{
		RoomID: c.opts.RoomID,
		ID:     docID,
	})
}

// AddTodo shares a to-do entry with the room.
func (c *Client) AddTodo(text, color string) error {
	return c.writeEvent(models.EventTodoAdd, models.TodoPayload{
		RoomID: c.opts.RoomID,
		Todo: models.TodoItem{
			ID:        uuid.New().String(),
			Text:      text,
			Color:     color,
			CreatedBy: c.PeerID(),
			CreatedAt: time.Now(),
		},
	})
}

// ToggleTodo flips a to-do's done flag.
func (c *Client) ToggleTodo(todoID string) error {
	return c.writeEvent(models.EventTodoToggle, models.TodoRefPayload{
		RoomID: c.opts.RoomID,
		ID:     todoID,
	})
}

// EndMeeting asks the relay to end the room. Only the host's request is
// honored.
func (c *Client) EndMeeting() error {
	return c.writeEvent(models.EventMeetingEnd, models.MeetingEndPayload{
		RoomID: c.opts.RoomID,
	})
}

// SendOffer implements peer.Signaler.
func (c *Client) SendOffer(desc peer.SessionDescription) {
	c.sendSignal(models.EventOffer, models.SignalPayload{
		RoomID: c.opts.RoomID,
		From:   c.PeerID(),
		Offer:  mustRaw(desc),
	})
}

// SendAnswer implements peer.Signaler.
func (c *Client) SendAnswer(desc peer.SessionDescription) {
	c.sendSignal(models.EventAnswer, models.SignalPayload{
		RoomID: c.opts.RoomID,
		From:   c.PeerID(),
		Answer: mustRaw(desc),
	})
}

// SendCandidate implements peer.Signaler.
func (c *Client) SendCandidate(cand peer.ICECandidate) {
	c.sendSignal(models.EventIceCandidate, models.SignalPayload{
		RoomID:    c.opts.RoomID,
		From:      c.PeerID(),
		Candidate: mustRaw(cand),
	})
}

func (c *Client) sendSignal(event models.EventType, payload models.SignalPayload) {
	if err := c.writeEvent(event, payload); err != nil {
		log.Printf("Failed to send %s: %v", event, err)
	}
}

func (c *Client) writeEvent(event models.EventType, data interface{}) error {
	env := models.Envelope{Event: event}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return err
		}
		env.Data = raw
	}
	frame, err := json.Marshal(env)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return c.conn.WriteMessage(websocket.TextMessage, frame)
}

func mustRaw(v interface{}) json.RawMessage {
	raw, err := json.Marshal(v)
	if err != nil {
		// Only reachable with an unmarshalable type, which these are not.
		panic(err)
	}
	return raw
}

// --- inbound ---

func (c *Client) readLoop() {
	defer close(c.done)
	defer c.conn.Close()

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			c.mu.Lock()
			closed := c.closed
			c.mu.Unlock()
			if !closed {
				log.Printf("Relay connection lost: %v", err)
			}
			return
		}

		var env models.Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			log.Printf("Failed to parse relay frame: %v", err)
			continue
		}
		c.handle(env)
	}
}

func (c *Client) handle(env models.Envelope) {
	h := c.opts.Handlers
	switch env.Event {
	case models.EventJoinRoom:
		var ack models.JoinAck
		if err := json.Unmarshal(env.Data, &ack); err != nil {
			log.Printf("Bad join ack: %v", err)
			return
		}
		c.joined(ack)
		if h.OnJoined != nil {
			h.OnJoined(ack)
		}

	case models.EventOffer:
		if desc, ok := c.decodeSignal(env.Data, "offer"); ok {
			if mgr := c.Manager(); mgr != nil {
				mgr.HandleOffer(desc)
			}
		}
	case models.EventAnswer:
		if desc, ok := c.decodeSignal(env.Data, "answer"); ok {
			if mgr := c.Manager(); mgr != nil {
				mgr.HandleAnswer(desc)
			}
		}
	case models.EventIceCandidate:
		var payload models.SignalPayload
		if err := json.Unmarshal(env.Data, &payload); err != nil || payload.Candidate == nil {
			return
		}
		var cand peer.ICECandidate
		if err := json.Unmarshal(payload.Candidate, &cand); err != nil {
			log.Printf("Bad ICE candidate payload: %v", err)
			return
		}
		if mgr := c.Manager(); mgr != nil {
			mgr.HandleCandidate(cand)
		}

	case models.EventUserJoined:
		if h.OnUserJoined != nil {
			var p models.PresencePayload
			if json.Unmarshal(env.Data, &p) == nil {
				h.OnUserJoined(p)
			}
		}
	case models.EventUserLeft:
		if h.OnUserLeft != nil {
			var p models.PresencePayload
			if json.Unmarshal(env.Data, &p) == nil {
				h.OnUserLeft(p)
			}
		}

	case models.EventDocsInit, models.EventDocsUpdated:
		if h.OnDocsUpdated != nil {
			var docs []models.DocumentRef
			if json.Unmarshal(env.Data, &docs) == nil {
				h.OnDocsUpdated(docs)
			}
		}
	case models.EventTodosInit, models.EventTodosUpdated:
		if h.OnTodosUpdated != nil {
			var todos []models.TodoItem
			if json.Unmarshal(env.Data, &todos) == nil {
				h.OnTodosUpdated(todos)
			}
		}

	case models.EventMessageResp:
		var msg models.ChatMessage
		if err := json.Unmarshal(env.Data, &msg); err != nil {
			log.Printf("Bad chat echo: %v", err)
			return
		}
		c.timeline.ApplyAuthoritative(msg)
		if h.OnChat != nil {
			h.OnChat(msg)
		}

	case models.EventSTTResult:
		if h.OnSTTResult != nil {
			var res models.STTResultPayload
			if json.Unmarshal(env.Data, &res) == nil {
				h.OnSTTResult(res)
			}
		}
	case models.EventReminder:
		if h.OnReminder != nil {
			var rem models.ReminderPayload
			if json.Unmarshal(env.Data, &rem) == nil {
				h.OnReminder(rem)
			}
		}
	case models.EventMeetingEnded:
		if h.OnMeetingEnded != nil {
			h.OnMeetingEnded()
		}
	}
}

func (c *Client) decodeSignal(data json.RawMessage, field string) (peer.SessionDescription, bool) {
	var payload models.SignalPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		log.Printf("Bad signal payload: %v", err)
		return peer.SessionDescription{}, false
	}
	raw := payload.Offer
	if field == "answer" {
		raw = payload.Answer
	}
	if raw == nil {
		return peer.SessionDescription{}, false
	}
	var desc peer.SessionDescription
	if err := json.Unmarshal(raw, &desc); err != nil {
		log.Printf("Bad %s payload: %v", field, err)
		return peer.SessionDescription{}, false
	}
	return desc, true
}

// joined builds the peer manager once the relay has assigned identity and
// role. The designated offerer drives negotiation; the other side answers.
func (c *Client) joined(ack models.JoinAck) {
	c.mu.Lock()
	if c.manager != nil || c.closed {
		c.peerID = ack.PeerID
		c.isHost = ack.IsHost
		c.mu.Unlock()
		return
	}
	c.peerID = ack.PeerID
	c.isHost = ack.IsHost

	role := peer.RoleAnswerer
	if ack.IsOfferer {
		role = peer.RoleOfferer
	}
	mgr := peer.NewManager(role, c.opts.Factory, c, c.opts.Peer)
	c.manager = mgr
	c.mu.Unlock()

	h := c.opts.Handlers
	if h.OnPeerState != nil {
		mgr.SetOnStateChange(h.OnPeerState)
	}
	if h.OnRemoteMedia != nil {
		mgr.SetOnRemoteMedia(h.OnRemoteMedia)
	}
	if h.OnStats != nil {
		mgr.SetOnStats(h.OnStats)
	}
	if h.OnPeerError != nil {
		mgr.SetOnError(h.OnPeerError)
	}

	if c.opts.Factory != nil {
		if err := mgr.Initialize(c.opts.Media); err != nil {
			log.Printf("Failed to initialize peer session: %v", err)
		}
	}
}
