package synth

import (
	"encoding/binary"
	"fmt"
)

// HeaderSize is the length of a canonical RIFF/WAVE header. Blobs shorter
// than this cannot carry audio.
const HeaderSize = 44

// ValidWAV reports whether b is plausibly a playable WAV blob: a full
// header with the RIFF and WAVE magic in place.
func ValidWAV(b []byte) bool {
	if len(b) < HeaderSize {
		return false
	}
	return string(b[0:4]) == "RIFF" && string(b[8:12]) == "WAVE"
}

// EncodeWAV wraps mono 16-bit little-endian PCM samples in a canonical
// 44-byte WAV header.
func EncodeWAV(pcm []byte, sampleRate int) []byte {
	const (
		channels      = 1
		bitsPerSample = 16
	)
	byteRate := sampleRate * channels * bitsPerSample / 8
	blockAlign := channels * bitsPerSample / 8

	buf := make([]byte, 0, HeaderSize+len(pcm))
	buf = append(buf, "RIFF"...)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(36+len(pcm)))
	buf = append(buf, "WAVE"...)
	buf = append(buf, "fmt "...)
	buf = binary.LittleEndian.AppendUint32(buf, 16)
	buf = binary.LittleEndian.AppendUint16(buf, 1) // uncompressed PCM
	buf = binary.LittleEndian.AppendUint16(buf, channels)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(sampleRate))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(byteRate))
	buf = binary.LittleEndian.AppendUint16(buf, uint16(blockAlign))
	buf = binary.LittleEndian.AppendUint16(buf, bitsPerSample)
	buf = append(buf, "data"...)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(pcm)))
	buf = append(buf, pcm...)
	return buf
}

// DownmixStereo averages interleaved stereo 16-bit frames, four bytes
// each, down to mono. A trailing partial frame is dropped.
func DownmixStereo(stereo []byte) []byte {
	const bytesPerFrame = 4
	stereo = stereo[:len(stereo)/bytesPerFrame*bytesPerFrame]

	frames := len(stereo) / bytesPerFrame
	mono := make([]byte, frames*2)
	for i := 0; i < frames; i++ {
		left := int16(binary.LittleEndian.Uint16(stereo[i*bytesPerFrame:]))
		right := int16(binary.LittleEndian.Uint16(stereo[i*bytesPerFrame+2:]))
		sample := int16((int32(left) + int32(right)) / 2)
		binary.LittleEndian.PutUint16(mono[i*2:], uint16(sample))
	}
	return mono
}

// DecodeWAV extracts the PCM payload and format parameters from a WAV
// blob. Only uncompressed PCM is supported, which is all the engines
// emit. Encoders sometimes insert LIST or fact chunks ahead of the data
// chunk, so the RIFF chunks are walked rather than assuming the
// canonical 44-byte layout.
func DecodeWAV(b []byte) (pcm []byte, sampleRate, channels int, err error) {
	if !ValidWAV(b) {
		return nil, 0, 0, ErrInvalidAudio
	}

	pos := 12
	haveFmt := false
	for pos+8 <= len(b) {
		id := string(b[pos : pos+4])
		size := int(binary.LittleEndian.Uint32(b[pos+4 : pos+8]))
		body := pos + 8
		if size < 0 || body+size > len(b) {
			size = len(b) - body
		}

		switch id {
		case "fmt ":
			if size < 16 {
				return nil, 0, 0, fmt.Errorf("%w: fmt chunk too short", ErrInvalidAudio)
			}
			format := binary.LittleEndian.Uint16(b[body : body+2])
			if format != 1 {
				return nil, 0, 0, fmt.Errorf("%w: unsupported format %d", ErrInvalidAudio, format)
			}
			channels = int(binary.LittleEndian.Uint16(b[body+2 : body+4]))
			sampleRate = int(binary.LittleEndian.Uint32(b[body+4 : body+8]))
			haveFmt = true
		case "data":
			if !haveFmt {
				return nil, 0, 0, fmt.Errorf("%w: data chunk before fmt", ErrInvalidAudio)
			}
			return b[body : body+size], sampleRate, channels, nil
		}

		if size%2 == 1 {
			size++ // RIFF chunks are word aligned
		}
		pos = body + size
	}
	return nil, 0, 0, fmt.Errorf("%w: no data chunk", ErrInvalidAudio)
}
