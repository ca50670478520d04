package model

import "strings"

// AudioFormat describes the audio a client sends on a streaming session
type AudioFormat struct {
	Mimetype   string `json:"mimetype"`
	Encoding   string `json:"encoding,omitempty"`
	SampleRate int    `json:"sample_rate,omitempty"`
	Channels   int    `json:"channels,omitempty"`
}

// AudioFormatUpdate is a partial audio format sent with a start command.
// Nil fields leave the current value untouched.
type AudioFormatUpdate struct {
	Mimetype   *string `json:"mimetype,omitempty"`
	Encoding   *string `json:"encoding,omitempty"`
	SampleRate *int    `json:"sample_rate,omitempty"`
	Channels   *int    `json:"channels,omitempty"`
}

// DefaultAudioFormat is 16kHz mono linear16 PCM
func DefaultAudioFormat() AudioFormat {
	return AudioFormat{
		Mimetype:   "audio/raw",
		Encoding:   "linear16",
		SampleRate: 16000,
		Channels:   1,
	}
}

// containerMimetypes carry their own encoding, so an explicit encoding is dropped for them
var containerMimetypes = map[string]bool{
	"audio/mpeg":  true,
	"audio/mp3":   true,
	"audio/wav":   true,
	"audio/x-wav": true,
	"audio/ogg":   true,
	"audio/webm":  true,
	"audio/flac":  true,
	"audio/mp4":   true,
	"audio/m4a":   true,
	"audio/aac":   true,
}

var rawMimetypes = map[string]bool{
	"audio/raw": true,
	"audio/pcm": true,
	"audio/l16": true,
}

// Merge applies the non-nil fields of u on top of f
func (f AudioFormat) Merge(u *AudioFormatUpdate) AudioFormat {
	if u == nil {
		return f
	}
	if u.Mimetype != nil {
		f.Mimetype = strings.ToLower(strings.TrimSpace(*u.Mimetype))
	}
	if u.Encoding != nil {
		f.Encoding = *u.Encoding
	}
	if u.SampleRate != nil {
		f.SampleRate = *u.SampleRate
	}
	if u.Channels != nil {
		f.Channels = *u.Channels
	}
	return f
}

// Normalize clears the encoding of pre-encoded container formats
func (f AudioFormat) Normalize() AudioFormat {
	if f.IsContainer() {
		f.Encoding = ""
	}
	return f
}

// IsContainer reports whether the mimetype names a self-describing container
func (f AudioFormat) IsContainer() bool {
	return containerMimetypes[strings.ToLower(f.Mimetype)]
}

// IsRaw reports whether the format is headerless PCM
func (f AudioFormat) IsRaw() bool {
	return rawMimetypes[strings.ToLower(f.Mimetype)]
}
