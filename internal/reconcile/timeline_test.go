package reconcile

import (
	"testing"

	"github.com/finnianb/roomcast/internal/models"
)

func TestEchoReplacesOptimisticRecordInPlace(t *testing.T) {
	tl := NewTimeline()
	tl.AppendLocal(models.ChatMessage{ClientKey: "k1", Text: "hola"})
	tl.AppendLocal(models.ChatMessage{ClientKey: "k2", Text: "second"})

	tl.ApplyAuthoritative(models.ChatMessage{
		ClientKey:        "k1",
		ID:               "srv-1",
		Text:             "hola",
		TranslatedTextEn: "hello",
	})

	msgs := tl.Messages()
	if len(msgs) != 2 {
		t.Fatalf("len = %d, want 2 (no duplicate)", len(msgs))
	}
	if msgs[0].ClientKey != "k1" || msgs[0].TranslatedTextEn != "hello" {
		t.Errorf("echo did not replace in place: %+v", msgs[0])
	}
	if msgs[0].Pending {
		t.Errorf("confirmed record still pending")
	}
	if !msgs[1].Pending {
		t.Errorf("unconfirmed record lost its pending flag")
	}
	if tl.PendingCount() != 1 {
		t.Errorf("PendingCount = %d, want 1", tl.PendingCount())
	}
}

func TestDuplicateEchoesConverge(t *testing.T) {
	tl := NewTimeline()
	tl.AppendLocal(models.ChatMessage{ClientKey: "k1", Text: "hi"})

	echo := models.ChatMessage{ClientKey: "k1", ID: "srv-1", Text: "hi", TranslatedTextEn: "hi"}
	tl.ApplyAuthoritative(echo)
	tl.ApplyAuthoritative(echo)

	if n := len(tl.Messages()); n != 1 {
		t.Fatalf("len = %d, want 1 after duplicate echoes", n)
	}
}

func TestForeignMessagesAppend(t *testing.T) {
	tl := NewTimeline()
	tl.AppendLocal(models.ChatMessage{ClientKey: "mine", Text: "hello"})

	// A message from another participant has a clientKey this timeline has
	// never seen; it appends rather than replacing anything.
	tl.ApplyAuthoritative(models.ChatMessage{ClientKey: "theirs", From: "peer-b", Text: "hey"})
	// Transcription results carry no clientKey at all.
	tl.ApplyAuthoritative(models.ChatMessage{From: "peer-b", Text: "spoken words"})

	msgs := tl.Messages()
	if len(msgs) != 3 {
		t.Fatalf("len = %d, want 3", len(msgs))
	}
	if msgs[1].From != "peer-b" || msgs[2].Text != "spoken words" {
		t.Errorf("foreign messages out of order: %+v", msgs)
	}
}

func TestResendKeepsSlot(t *testing.T) {
	tl := NewTimeline()
	tl.AppendLocal(models.ChatMessage{ClientKey: "k1", Text: "first try"})
	tl.AppendLocal(models.ChatMessage{ClientKey: "k2", Text: "other"})
	tl.AppendLocal(models.ChatMessage{ClientKey: "k1", Text: "retry"})

	msgs := tl.Messages()
	if len(msgs) != 2 {
		t.Fatalf("len = %d, want 2", len(msgs))
	}
	if msgs[0].Text != "retry" {
		t.Errorf("re-send should update the original slot, got %q", msgs[0].Text)
	}
}
