package synth

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/hajimehoshi/go-mp3"
	"github.com/pp-group/edge-tts-go/biz/service/tts/edge"
	"golang.org/x/time/rate"

	"github.com/flight505/Readable/internal/config"
)

// edgeRequestsPerMinute throttles outbound Edge TTS requests.
const edgeRequestsPerMinute = 50

// edgeVoices maps kokoro-style voice identifiers to Edge neural voices,
// so a config written for the kokoro engine works unchanged when edge
// serves as the fallback.
var edgeVoices = map[string]string{
	"af_bella":    "en-US-AriaNeural",
	"af_sarah":    "en-US-JennyNeural",
	"am_adam":     "en-US-GuyNeural",
	"am_michael":  "en-US-ChristopherNeural",
	"bf_emma":     "en-GB-SoniaNeural",
	"bf_isabella": "en-GB-LibbyNeural",
	"bm_george":   "en-GB-RyanNeural",
	"bm_lewis":    "en-GB-ThomasNeural",
}

// Edge synthesizes through the Microsoft Edge TTS service. The service
// streams MP3, which is decoded, downmixed to mono and wrapped in a WAV
// header so downstream consumers see the same blob format as every other
// engine.
type Edge struct {
	limiter *rate.Limiter
}

// NewEdge creates an Edge TTS engine.
func NewEdge() *Edge {
	return &Edge{
		limiter: rate.NewLimiter(rate.Every(time.Minute/edgeRequestsPerMinute), 1),
	}
}

func (e *Edge) Name() string { return "edge" }

// Synthesize streams MP3 audio from the Edge service and converts it to
// a mono 16-bit WAV blob. Speed is applied by scaling the declared
// sample rate, since the service streams at a fixed rate.
func (e *Edge) Synthesize(ctx context.Context, text, voice string, speed float64) ([]byte, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait cancelled: %w", err)
	}

	comm, err := edge.NewCommunicate(text, edge.WithVoice(edgeVoice(voice)))
	if err != nil {
		return nil, fmt.Errorf("creating edge session: %w", err)
	}

	ch, err := comm.Stream()
	if err != nil {
		return nil, fmt.Errorf("starting edge stream: %w", err)
	}

	var mp3Buf bytes.Buffer
	for msg := range ch {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if t, ok := msg["type"].(string); ok && t == "audio" {
			if data, ok := msg["data"].([]byte); ok {
				mp3Buf.Write(data)
			}
		}
	}
	if mp3Buf.Len() == 0 {
		return nil, fmt.Errorf("%w: edge stream produced no audio", ErrInvalidAudio)
	}

	pcm, sampleRate, err := decodeMP3(mp3Buf.Bytes())
	if err != nil {
		return nil, err
	}

	if speed > 0 && speed != 1.0 {
		sampleRate = int(float64(sampleRate) * speed)
	}
	return EncodeWAV(pcm, sampleRate), nil
}

// Voices lists the kokoro-style aliases this engine accepts, in the
// stock voice order.
func (e *Edge) Voices(ctx context.Context) ([]Voice, error) {
	voices := make([]Voice, 0, len(edgeVoices))
	for _, id := range config.DefaultVoices {
		neural, ok := edgeVoices[id]
		if !ok {
			continue
		}
		v := kokoroVoice(id)
		v.Name = neural
		voices = append(voices, v)
	}
	return voices, nil
}

func (e *Edge) Available(ctx context.Context) bool { return true }

// edgeVoice resolves a configured voice to an Edge neural voice name.
// Unknown identifiers pass through untouched so native Edge names can be
// configured directly.
func edgeVoice(voice string) string {
	if neural, ok := edgeVoices[voice]; ok {
		return neural
	}
	if voice == "" {
		return edgeVoices["af_bella"]
	}
	return voice
}

// decodeMP3 converts MP3 data to mono 16-bit little-endian PCM. The
// decoder always emits stereo frames.
func decodeMP3(data []byte) ([]byte, int, error) {
	decoder, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return nil, 0, fmt.Errorf("decoding mp3: %w", err)
	}

	stereo, err := io.ReadAll(decoder)
	if err != nil {
		return nil, 0, fmt.Errorf("reading mp3 samples: %w", err)
	}
	return DownmixStereo(stereo), decoder.SampleRate(), nil
}
