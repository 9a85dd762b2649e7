package stt

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestTranscribe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/audio/transcriptions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("model"); got != "test-model" {
			t.Errorf("model = %q", got)
		}
		if got := r.URL.Query().Get("language"); got != "fr" {
			t.Errorf("language = %q", got)
		}
		body, _ := io.ReadAll(r.Body)
		if string(body) != "raw audio" {
			t.Errorf("body = %q", body)
		}
		json.NewEncoder(w).Encode(map[string]string{"text": "bonjour tout le monde"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/v1", "test-model", time.Second)
	got, err := c.Transcribe(context.Background(), []byte("raw audio"), "fr")
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if got != "bonjour tout le monde" {
		t.Errorf("text = %q", got)
	}
}

func TestTranscribeFallbackField(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"transcription": "alt field"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "m", time.Second)
	got, err := c.Transcribe(context.Background(), []byte("a"), "")
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if got != "alt field" {
		t.Errorf("text = %q", got)
	}
}

func TestTranscribeEmptyAudio(t *testing.T) {
	c := NewClient("http://stt.invalid", "m", time.Second)
	got, err := c.Transcribe(context.Background(), nil, "en")
	if err != nil {
		t.Fatalf("empty audio should short-circuit, got %v", err)
	}
	if got != "" {
		t.Errorf("text = %q, want empty", got)
	}
}

func TestTranscribeErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "m", time.Second)
	if _, err := c.Transcribe(context.Background(), []byte("a"), "en"); err == nil {
		t.Fatalf("non-200 should surface an error")
	}
}
