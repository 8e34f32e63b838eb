package synth

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/flight505/Readable/internal/config"
)

const (
	synthesizeTimeout = 30 * time.Second
	voicesTimeout     = 5 * time.Second
	probeTimeout      = 2 * time.Second
	maxAttempts       = 3
	userAgent         = "Readable/0.1.0"
)

// Kokoro is an HTTP client for a locally served Kokoro TTS model. The
// server exposes POST /tts/synthesize returning base64-encoded WAV and
// GET /tts/voices returning voice identifiers.
type Kokoro struct {
	baseURL string
	client  *http.Client
	backoff time.Duration
}

// NewKokoro creates a client for the Kokoro server at baseURL.
func NewKokoro(baseURL string) *Kokoro {
	return &Kokoro{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{},
		backoff: time.Second,
	}
}

func (k *Kokoro) Name() string { return "kokoro" }

type synthesizeRequest struct {
	Text  string  `json:"text"`
	Voice string  `json:"voice"`
	Speed float64 `json:"speed"`
}

type synthesizeResponse struct {
	AudioData string `json:"audio_data"`
}

// Synthesize posts the chunk to the server and decodes the base64 WAV
// reply. Transport errors, 429 and 5xx responses are retried with
// backoff; any other status fails immediately.
func (k *Kokoro) Synthesize(ctx context.Context, text, voice string, speed float64) ([]byte, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("no text to synthesize")
	}

	body, err := json.Marshal(synthesizeRequest{Text: text, Voice: voice, Speed: speed})
	if err != nil {
		return nil, fmt.Errorf("encoding synthesize request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, synthesizeTimeout)
	defer cancel()

	resp, err := k.doWithRetry(ctx, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, k.baseURL+"/tts/synthesize", bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var reply synthesizeResponse
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return nil, fmt.Errorf("decoding synthesize response: %w", err)
	}
	if reply.AudioData == "" {
		return nil, fmt.Errorf("%w: no audio data in response", ErrInvalidAudio)
	}

	audio, err := base64.StdEncoding.DecodeString(reply.AudioData)
	if err != nil {
		return nil, fmt.Errorf("%w: bad base64 payload: %v", ErrInvalidAudio, err)
	}
	if !ValidWAV(audio) {
		return nil, fmt.Errorf("%w: %d bytes", ErrInvalidAudio, len(audio))
	}
	return audio, nil
}

// Voices fetches the server's voice list. A server that cannot be
// reached or answers garbage degrades to the stock kokoro set rather
// than failing the caller.
func (k *Kokoro) Voices(ctx context.Context) ([]Voice, error) {
	ctx, cancel := context.WithTimeout(ctx, voicesTimeout)
	defer cancel()

	resp, err := k.doWithRetry(ctx, func() (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, k.baseURL+"/tts/voices", nil)
	})
	if err != nil {
		log.Warn("kokoro voice listing failed, using stock set", "err", err)
		return stockKokoroVoices(), nil
	}
	defer resp.Body.Close()

	var ids []string
	if err := json.NewDecoder(resp.Body).Decode(&ids); err != nil {
		log.Warn("kokoro voice listing unreadable, using stock set", "err", err)
		return stockKokoroVoices(), nil
	}
	if len(ids) == 0 {
		return stockKokoroVoices(), nil
	}

	voices := make([]Voice, 0, len(ids))
	for _, id := range ids {
		voices = append(voices, kokoroVoice(id))
	}
	return voices, nil
}

// Available reports whether the server answers the voices endpoint.
func (k *Kokoro) Available(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, k.baseURL+"/tts/voices", nil)
	if err != nil {
		return false
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := k.client.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// doWithRetry issues the request up to maxAttempts times. The request is
// rebuilt per attempt because its body reader is consumed on send.
func (k *Kokoro) doWithRetry(ctx context.Context, build func() (*http.Request, error)) (*http.Response, error) {
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(k.backoff << (attempt - 1)):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		req, err := build()
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", userAgent)

		resp, err := k.client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		if resp.StatusCode == http.StatusOK {
			return resp, nil
		}

		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		resp.Body.Close()
		lastErr = fmt.Errorf("kokoro server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
		if !retryableStatus(resp.StatusCode) {
			return nil, lastErr
		}
	}
	return nil, fmt.Errorf("kokoro request failed after %d attempts: %w", maxAttempts, lastErr)
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}

func stockKokoroVoices() []Voice {
	voices := make([]Voice, 0, len(config.DefaultVoices))
	for _, id := range config.DefaultVoices {
		voices = append(voices, kokoroVoice(id))
	}
	return voices
}

// kokoroVoice derives display metadata from a kokoro voice identifier.
// The prefix encodes accent and gender: a=American, b=British, f=female,
// m=male.
func kokoroVoice(id string) Voice {
	v := Voice{ID: id, Name: id}
	if len(id) >= 2 {
		switch id[0] {
		case 'a':
			v.Language = "en-US"
		case 'b':
			v.Language = "en-GB"
		}
		switch id[1] {
		case 'f':
			v.Gender = "female"
		case 'm':
			v.Gender = "male"
		}
	}
	if _, name, ok := strings.Cut(id, "_"); ok && name != "" {
		v.Name = cases.Title(language.English).String(name)
	}
	return v
}
