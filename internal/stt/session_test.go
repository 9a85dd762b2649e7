package stt

import (
	"bytes"
	"encoding/base64"
	"testing"
)

func b64(s string) string { return base64.StdEncoding.EncodeToString([]byte(s)) }

func TestCaptureRoundTrip(t *testing.T) {
	s := NewSessions()
	s.Start("conn-a", "room-1", "fr")
	s.Append("conn-a", b64("chunk1"))
	s.Append("conn-a", b64("chunk2"))

	audio, roomID, lang, ok := s.Stop("conn-a")
	if !ok {
		t.Fatalf("Stop returned ok=false for a live session")
	}
	if !bytes.Equal(audio, []byte("chunk1chunk2")) {
		t.Errorf("audio = %q, want concatenated chunks in order", audio)
	}
	if roomID != "room-1" || lang != "fr" {
		t.Errorf("roomID=%q lang=%q", roomID, lang)
	}

	// The session is gone after Stop.
	if _, _, _, ok := s.Stop("conn-a"); ok {
		t.Errorf("second Stop should report no session")
	}
}

func TestStartDefaultsLanguage(t *testing.T) {
	s := NewSessions()
	s.Start("conn-a", "room-1", "")
	s.Append("conn-a", b64("x"))

	_, _, lang, ok := s.Stop("conn-a")
	if !ok || lang != "auto" {
		t.Errorf("lang = %q, want auto default", lang)
	}
}

func TestBadChunksAndUnknownSessionsDropped(t *testing.T) {
	s := NewSessions()
	s.Start("conn-a", "room-1", "en")
	s.Append("conn-a", "!!! not base64 !!!")
	s.Append("conn-zz", b64("orphan"))

	if _, _, _, ok := s.Stop("conn-a"); ok {
		t.Errorf("session with only undecodable chunks should report ok=false")
	}
}

func TestStartResetsExistingSession(t *testing.T) {
	s := NewSessions()
	s.Start("conn-a", "room-1", "en")
	s.Append("conn-a", b64("old"))
	s.Start("conn-a", "room-2", "de")
	s.Append("conn-a", b64("new"))

	audio, roomID, _, ok := s.Stop("conn-a")
	if !ok {
		t.Fatalf("Stop returned ok=false")
	}
	if string(audio) != "new" || roomID != "room-2" {
		t.Errorf("restart did not reset: audio=%q roomID=%q", audio, roomID)
	}
}

func TestDropDiscardsSession(t *testing.T) {
	s := NewSessions()
	s.Start("conn-a", "room-1", "en")
	s.Append("conn-a", b64("x"))
	s.Drop("conn-a")

	if _, _, _, ok := s.Stop("conn-a"); ok {
		t.Errorf("dropped session should be gone")
	}
}
