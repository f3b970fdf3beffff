package audio

import (
	"bytes"
	"encoding/binary"
	"testing"
)

// makeWAV builds a minimal mono 16-bit PCM clip with n samples.
func makeWAV(n int) []byte {
	var sampleRate uint32 = 8000
	data := make([]byte, n*2)
	var buf bytes.Buffer
	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+len(data)))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // mono
	binary.Write(&buf, binary.LittleEndian, sampleRate)
	binary.Write(&buf, binary.LittleEndian, sampleRate*2) // byte rate
	binary.Write(&buf, binary.LittleEndian, uint16(2))    // block align
	binary.Write(&buf, binary.LittleEndian, uint16(16))   // bits per sample
	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(len(data)))
	buf.Write(data)
	return buf.Bytes()
}

func TestIsWAV(t *testing.T) {
	if !IsWAV(makeWAV(8)) {
		t.Fatalf("valid clip not recognized")
	}
	if IsWAV([]byte("OggS....webm")) {
		t.Fatalf("non-WAV recognized as WAV")
	}
	if IsWAV(nil) {
		t.Fatalf("empty clip recognized as WAV")
	}
}

func TestInspect(t *testing.T) {
	info, err := Inspect(makeWAV(800))
	if err != nil {
		t.Fatalf("Inspect returned error: %v", err)
	}
	if info.SampleRate != 8000 || info.Channels != 1 {
		t.Fatalf("unexpected format: %+v", info)
	}
	if info.Duration <= 0 {
		t.Fatalf("expected positive duration, got %v", info.Duration)
	}
}

func TestInspectEmptyClip(t *testing.T) {
	if _, err := Inspect(makeWAV(0)); err == nil {
		t.Fatalf("expected error for clip with no audio")
	}
	if _, err := Inspect([]byte("not a wav")); err == nil {
		t.Fatalf("expected error for garbage input")
	}
}
