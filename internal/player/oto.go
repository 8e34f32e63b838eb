package player

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"sync"

	"github.com/ebitengine/oto/v3"

	"github.com/flight505/Readable/internal/synth"
)

// sinkSampleRate is the fixed device rate. oto allows one context per
// process, so every blob is resampled to this rate before playback.
const sinkSampleRate = 44100

// OtoSink renders WAV files through the system audio device.
type OtoSink struct {
	ctx *oto.Context

	mu     sync.Mutex
	player *oto.Player
	// Keeps the PCM alive while the device drains it.
	data []byte
}

// NewOtoSink opens the audio device. Only one sink can exist per
// process.
func NewOtoSink() (*OtoSink, error) {
	op := &oto.NewContextOptions{
		SampleRate:   sinkSampleRate,
		ChannelCount: 1,
		Format:       oto.FormatSignedInt16LE,
	}

	ctx, ready, err := oto.NewContext(op)
	if err != nil {
		return nil, fmt.Errorf("opening audio device: %w", err)
	}
	<-ready

	return &OtoSink{ctx: ctx}, nil
}

// Start reads the WAV file at path, converts it to the device format and
// begins playback.
func (s *OtoSink) Start(path string) error {
	blob, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading chunk file: %w", err)
	}

	pcm, rate, channels, err := synth.DecodeWAV(blob)
	if err != nil {
		return err
	}
	if channels == 2 {
		pcm = synth.DownmixStereo(pcm)
	}
	if rate != sinkSampleRate {
		pcm = resample(pcm, rate, sinkSampleRate)
	}
	if len(pcm) == 0 {
		return fmt.Errorf("%w: empty PCM payload", synth.ErrInvalidAudio)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.player != nil {
		s.player.Close()
	}
	s.data = pcm
	s.player = s.ctx.NewPlayer(bytes.NewReader(s.data))
	s.player.Play()
	return nil
}

// Pause suspends the current chunk.
func (s *OtoSink) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.player != nil {
		s.player.Pause()
	}
}

// Resume continues a paused chunk in place.
func (s *OtoSink) Resume() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.player != nil {
		s.player.Play()
	}
}

// Busy reports whether the device is still rendering the current chunk.
func (s *OtoSink) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.player != nil && s.player.IsPlaying()
}

// Stop halts and unloads the current chunk.
func (s *OtoSink) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.player != nil {
		s.player.Pause()
		s.player.Close()
		s.player = nil
	}
	s.data = nil
}

// Close releases the sink. The oto context itself has no close and is
// reclaimed with the process.
func (s *OtoSink) Close() error {
	s.Stop()
	return nil
}

// resample converts mono 16-bit PCM between sample rates by linear
// interpolation.
func resample(pcm []byte, from, to int) []byte {
	if from == to || from <= 0 || to <= 0 {
		return pcm
	}

	samples := len(pcm) / 2
	outSamples := int(int64(samples) * int64(to) / int64(from))
	out := make([]byte, outSamples*2)
	for i := 0; i < outSamples; i++ {
		pos := float64(i) * float64(from) / float64(to)
		j := int(pos)
		frac := pos - float64(j)

		s0 := int16(binary.LittleEndian.Uint16(pcm[j*2:]))
		s1 := s0
		if j+1 < samples {
			s1 = int16(binary.LittleEndian.Uint16(pcm[(j+1)*2:]))
		}

		v := float64(s0)*(1-frac) + float64(s1)*frac
		binary.LittleEndian.PutUint16(out[i*2:], uint16(int16(v)))
	}
	return out
}
