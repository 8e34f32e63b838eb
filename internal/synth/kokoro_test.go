package synth

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/flight505/Readable/internal/config"
)

func testWAV() []byte {
	return EncodeWAV(make([]byte, 2000), 22050)
}

func newTestKokoro(url string) *Kokoro {
	k := NewKokoro(url)
	k.backoff = time.Millisecond
	return k
}

func TestKokoro_Synthesize(t *testing.T) {
	want := testWAV()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/tts/synthesize" {
			t.Errorf("Unexpected path: %s", r.URL.Path)
		}
		var req synthesizeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("Failed to decode request: %v", err)
		}
		if req.Voice != "af_bella" || req.Speed != 1.25 {
			t.Errorf("Request carried voice=%q speed=%v, want af_bella 1.25", req.Voice, req.Speed)
		}
		json.NewEncoder(w).Encode(map[string]string{
			"audio_data": base64.StdEncoding.EncodeToString(want),
		})
	}))
	defer srv.Close()

	k := newTestKokoro(srv.URL)
	got, err := k.Synthesize(context.Background(), "hello world", "af_bella", 1.25)
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Errorf("Audio mismatch: got %d bytes, want %d", len(got), len(want))
	}
}

func TestKokoro_RetriesServerErrors(t *testing.T) {
	want := testWAV()
	var calls atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "model loading", http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{
			"audio_data": base64.StdEncoding.EncodeToString(want),
		})
	}))
	defer srv.Close()

	k := newTestKokoro(srv.URL)
	got, err := k.Synthesize(context.Background(), "retry me", "af_bella", 1.0)
	if err != nil {
		t.Fatalf("Synthesize failed after retries: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Error("Audio mismatch after retried synthesis")
	}
	if calls.Load() != 3 {
		t.Errorf("Expected 3 attempts, got %d", calls.Load())
	}
}

func TestKokoro_ClientErrorDoesNotRetry(t *testing.T) {
	var calls atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "unknown voice", http.StatusBadRequest)
	}))
	defer srv.Close()

	k := newTestKokoro(srv.URL)
	if _, err := k.Synthesize(context.Background(), "bad request", "zz_nope", 1.0); err == nil {
		t.Fatal("Expected an error for a 400 response")
	}
	if calls.Load() != 1 {
		t.Errorf("Client errors should not retry: got %d attempts", calls.Load())
	}
}

func TestKokoro_RejectsUndersizedAudio(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{
			"audio_data": base64.StdEncoding.EncodeToString([]byte("tiny")),
		})
	}))
	defer srv.Close()

	k := newTestKokoro(srv.URL)
	if _, err := k.Synthesize(context.Background(), "short reply", "af_bella", 1.0); !errors.Is(err, ErrInvalidAudio) {
		t.Errorf("Expected ErrInvalidAudio, got %v", err)
	}
}

func TestKokoro_VoicesFromServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/tts/voices" {
			t.Errorf("Unexpected path: %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode([]string{"af_bella", "bm_george"})
	}))
	defer srv.Close()

	k := newTestKokoro(srv.URL)
	voices, err := k.Voices(context.Background())
	if err != nil {
		t.Fatalf("Voices failed: %v", err)
	}
	if len(voices) != 2 {
		t.Fatalf("Voice count mismatch: got %d, want 2", len(voices))
	}
	if voices[0].ID != "af_bella" || voices[0].Name != "Bella" {
		t.Errorf("Voice metadata mismatch: %+v", voices[0])
	}
	if voices[0].Language != "en-US" || voices[0].Gender != "female" {
		t.Errorf("Voice metadata mismatch: %+v", voices[0])
	}
	if voices[1].Language != "en-GB" || voices[1].Gender != "male" {
		t.Errorf("Voice metadata mismatch: %+v", voices[1])
	}
}

func TestKokoro_VoicesFallbackWhenUnreachable(t *testing.T) {
	k := newTestKokoro("http://127.0.0.1:1") // nothing listens here

	voices, err := k.Voices(context.Background())
	if err != nil {
		t.Fatalf("Voices failed: %v", err)
	}
	if len(voices) != len(config.DefaultVoices) {
		t.Fatalf("Fallback voice count mismatch: got %d, want %d", len(voices), len(config.DefaultVoices))
	}
	for i, id := range config.DefaultVoices {
		if voices[i].ID != id {
			t.Errorf("Fallback voice %d is %q, want %q", i, voices[i].ID, id)
		}
	}
}

func TestKokoro_Available(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]string{"af_bella"})
	}))

	k := newTestKokoro(srv.URL)
	if !k.Available(context.Background()) {
		t.Error("Expected a live server to be reported available")
	}

	srv.Close()
	if k.Available(context.Background()) {
		t.Error("Expected a closed server to be reported unavailable")
	}
}
