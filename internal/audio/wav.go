// Package audio handles recorded interview clips: format inspection, the
// on-disk recordings spool, and background transcription of clips that
// arrive out-of-band.
package audio

import (
	"bytes"
	"fmt"
	"time"

	wav "github.com/youpy/go-wav"
)

// ClipInfo describes an uploaded WAV clip.
type ClipInfo struct {
	Duration   time.Duration
	SampleRate uint32
	Channels   uint16
}

// IsWAV reports whether the clip starts with a RIFF/WAVE header. Browser
// recordings may arrive as webm/ogg instead; those pass through uninspected.
func IsWAV(clip []byte) bool {
	return len(clip) >= 12 && bytes.Equal(clip[0:4], []byte("RIFF")) && bytes.Equal(clip[8:12], []byte("WAVE"))
}

// Inspect parses the clip's WAV header and rejects empty recordings.
func Inspect(clip []byte) (*ClipInfo, error) {
	r := wav.NewReader(bytes.NewReader(clip))
	format, err := r.Format()
	if err != nil {
		return nil, fmt.Errorf("read wav format: %w", err)
	}
	dur, err := r.Duration()
	if err != nil {
		return nil, fmt.Errorf("read wav duration: %w", err)
	}
	if dur <= 0 {
		return nil, fmt.Errorf("clip contains no audio")
	}
	return &ClipInfo{
		Duration:   dur,
		SampleRate: format.SampleRate,
		Channels:   format.NumChannels,
	}, nil
}
