package translate

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

type stubProvider struct {
	name  string
	out   string
	err   error
	delay time.Duration
	calls int32
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) TranslateToEnglish(ctx context.Context, text string) (string, error) {
	atomic.AddInt32(&s.calls, 1)
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return s.out, s.err
}

func TestFirstNonEmptyResultWins(t *testing.T) {
	slow := &stubProvider{name: "slow", out: "slow translation", delay: 500 * time.Millisecond}
	fast := &stubProvider{name: "fast", out: "fast translation"}
	p := NewPipeline(2*time.Second, slow, fast)

	got := p.ToEnglish(context.Background(), "bonjour")
	if got != "fast translation" {
		t.Fatalf("ToEnglish = %q, want the fast provider's result", got)
	}
}

func TestFailuresFallThroughToNextProvider(t *testing.T) {
	broken := &stubProvider{name: "broken", err: errors.New("503")}
	working := &stubProvider{name: "working", out: "hello"}
	p := NewPipeline(2*time.Second, broken, working)

	if got := p.ToEnglish(context.Background(), "hola"); got != "hello" {
		t.Fatalf("ToEnglish = %q, want %q", got, "hello")
	}
}

func TestOriginalTextWhenEveryProviderFails(t *testing.T) {
	a := &stubProvider{name: "a", err: errors.New("down")}
	b := &stubProvider{name: "b", out: "   "}
	p := NewPipeline(2*time.Second, a, b)

	if got := p.ToEnglish(context.Background(), "guten tag"); got != "guten tag" {
		t.Fatalf("ToEnglish = %q, want the original text back", got)
	}
	// Race plus one sequential retry each.
	if n := atomic.LoadInt32(&a.calls); n != 2 {
		t.Errorf("provider a called %d times, want 2", n)
	}
}

func TestEmptyTextSkipsProviders(t *testing.T) {
	a := &stubProvider{name: "a", out: "anything"}
	p := NewPipeline(2*time.Second, a)

	if got := p.ToEnglish(context.Background(), "   "); got != "   " {
		t.Fatalf("ToEnglish = %q, want blank input unchanged", got)
	}
	if atomic.LoadInt32(&a.calls) != 0 {
		t.Errorf("blank input must not reach providers")
	}
}

func TestBudgetExpiryReturnsOriginal(t *testing.T) {
	stuck := &stubProvider{name: "stuck", out: "late", delay: time.Second}
	p := NewPipeline(50*time.Millisecond, stuck)

	start := time.Now()
	got := p.ToEnglish(context.Background(), "ciao")
	if got != "ciao" {
		t.Fatalf("ToEnglish = %q, want original on budget expiry", got)
	}
	if time.Since(start) > 500*time.Millisecond {
		t.Errorf("pipeline did not honor its budget")
	}
}

func TestLibreProviderShortCircuitsEnglish(t *testing.T) {
	var translateCalls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/detect":
			json.NewEncoder(w).Encode([]map[string]interface{}{{"language": "en", "confidence": 92.0}})
		case "/translate":
			atomic.AddInt32(&translateCalls, 1)
			json.NewEncoder(w).Encode(map[string]string{"translatedText": "should not happen"})
		}
	}))
	defer srv.Close()

	p := NewLibreProvider(srv.URL)
	got, err := p.TranslateToEnglish(context.Background(), "already english")
	if err != nil {
		t.Fatalf("TranslateToEnglish: %v", err)
	}
	if got != "already english" {
		t.Errorf("got %q, want input unchanged for detected English", got)
	}
	if atomic.LoadInt32(&translateCalls) != 0 {
		t.Errorf("detected English must not hit /translate")
	}
}

func TestLibreProviderRetriesFormEncoded(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Reject JSON bodies the way some public instances do.
		if r.Header.Get("Content-Type") == "application/json" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		switch r.URL.Path {
		case "/detect":
			json.NewEncoder(w).Encode([]map[string]interface{}{{"language": "fr"}})
		case "/translate":
			if r.FormValue("source") != "fr" || r.FormValue("target") != "en" {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			json.NewEncoder(w).Encode(map[string]string{"translatedText": "hello"})
		}
	}))
	defer srv.Close()

	p := NewLibreProvider(srv.URL)
	got, err := p.TranslateToEnglish(context.Background(), "bonjour")
	if err != nil {
		t.Fatalf("TranslateToEnglish: %v", err)
	}
	if got != "hello" {
		t.Errorf("got %q, want %q", got, "hello")
	}
}

func TestMyMemoryProvider(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("langpair") != "auto|en" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"responseData": map[string]string{"translatedText": "good morning"},
		})
	}))
	defer srv.Close()

	p := NewMyMemoryProvider(srv.URL)
	got, err := p.TranslateToEnglish(context.Background(), "buenos dias")
	if err != nil {
		t.Fatalf("TranslateToEnglish: %v", err)
	}
	if got != "good morning" {
		t.Errorf("got %q, want %q", got, "good morning")
	}
}
