package synth

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func TestEncodeDecodeWAV_RoundTrip(t *testing.T) {
	pcm := make([]byte, 1000)
	for i := range pcm {
		pcm[i] = byte(i % 251)
	}

	blob := EncodeWAV(pcm, 22050)
	if !ValidWAV(blob) {
		t.Fatal("Encoded blob failed validation")
	}
	if len(blob) != HeaderSize+len(pcm) {
		t.Errorf("Blob size mismatch: got %d, want %d", len(blob), HeaderSize+len(pcm))
	}

	got, rate, channels, err := DecodeWAV(blob)
	if err != nil {
		t.Fatalf("DecodeWAV failed: %v", err)
	}
	if rate != 22050 {
		t.Errorf("Sample rate mismatch: got %d, want 22050", rate)
	}
	if channels != 1 {
		t.Errorf("Channel count mismatch: got %d, want 1", channels)
	}
	if !bytes.Equal(got, pcm) {
		t.Error("PCM payload does not round-trip")
	}
}

func TestValidWAV_RejectsShortAndForeignData(t *testing.T) {
	cases := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"truncated header", []byte("RIFF")},
		{"no magic", bytes.Repeat([]byte{0}, 64)},
		{"mp3 magic", append([]byte("ID3"), make([]byte, 61)...)},
	}

	for _, tc := range cases {
		if ValidWAV(tc.data) {
			t.Errorf("ValidWAV accepted %s data", tc.name)
		}
	}
}

func TestDecodeWAV_SkipsExtraChunks(t *testing.T) {
	pcm := []byte{1, 2, 3, 4}
	blob := EncodeWAV(pcm, 44100)

	// Splice a LIST chunk between fmt and data.
	list := append([]byte("LIST"), 0x04, 0, 0, 0, 'I', 'N', 'F', 'O')
	extended := append([]byte{}, blob[:36]...)
	extended = append(extended, list...)
	extended = append(extended, blob[36:]...)
	binary.LittleEndian.PutUint32(extended[4:8], uint32(len(extended)-8))

	got, rate, _, err := DecodeWAV(extended)
	if err != nil {
		t.Fatalf("DecodeWAV failed on extended blob: %v", err)
	}
	if rate != 44100 {
		t.Errorf("Sample rate mismatch: got %d, want 44100", rate)
	}
	if !bytes.Equal(got, pcm) {
		t.Error("PCM payload mismatch with extra chunk present")
	}
}

func TestDecodeWAV_RejectsMissingData(t *testing.T) {
	blob := EncodeWAV(make([]byte, 100), 44100)

	// RIFF header and fmt chunk followed by a fact chunk, no data chunk.
	noData := append([]byte{}, blob[:36]...)
	noData = append(noData, []byte("fact")...)
	noData = binary.LittleEndian.AppendUint32(noData, 4)
	noData = append(noData, 0, 0, 0, 0)
	binary.LittleEndian.PutUint32(noData[4:8], uint32(len(noData)-8))

	if _, _, _, err := DecodeWAV(noData); err == nil {
		t.Error("Expected an error for a blob without a data chunk")
	}
}
