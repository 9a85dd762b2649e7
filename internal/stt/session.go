package stt

import (
	"encoding/base64"
	"sync"
)

// Session accumulates one client's audio chunks between stt-start and
// stt-stop.
type Session struct {
	RoomID     string
	SourceLang string
	chunks     [][]byte
}

// Sessions tracks live capture sessions keyed by connection id.
type Sessions struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

func NewSessions() *Sessions {
	return &Sessions{sessions: make(map[string]*Session)}
}

// Start opens (or resets) the capture session for a connection.
func (s *Sessions) Start(connID, roomID, sourceLang string) {
	if sourceLang == "" {
		sourceLang = "auto"
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[connID] = &Session{RoomID: roomID, SourceLang: sourceLang}
}

// Append decodes and buffers one base64 audio chunk. Chunks for unknown
// sessions and undecodable chunks are dropped.
func (s *Sessions) Append(connID, chunkBase64 string) {
	raw, err := base64.StdEncoding.DecodeString(chunkBase64)
	if err != nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[connID]; ok {
		sess.chunks = append(sess.chunks, raw)
	}
}

// Stop closes the session and returns the concatenated audio together with
// the room and language it was captured for. ok is false when no session
// was open or nothing was buffered.
func (s *Sessions) Stop(connID string) (audio []byte, roomID, sourceLang string, ok bool) {
	s.mu.Lock()
	sess, found := s.sessions[connID]
	delete(s.sessions, connID)
	s.mu.Unlock()

	if !found || len(sess.chunks) == 0 {
		return nil, "", "", false
	}
	total := 0
	for _, c := range sess.chunks {
		total += len(c)
	}
	audio = make([]byte, 0, total)
	for _, c := range sess.chunks {
		audio = append(audio, c...)
	}
	return audio, sess.RoomID, sess.SourceLang, true
}

// Drop discards any open session for a disconnected client.
func (s *Sessions) Drop(connID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, connID)
}
