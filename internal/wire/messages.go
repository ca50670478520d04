package wire

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/leonardotrapani/factstream/internal/model"
)

const (
	CommandStart = "start"
	CommandStop  = "stop"
)

const (
	StatusConnected      = "connected"
	StatusStarted        = "started"
	StatusAlreadyStarted = "already_started"
	StatusStopped        = "stopped"
)

const (
	TypeClaim     = "claim"
	TypeFactCheck = "fact_check"
)

// MockNote accompanies a start that fell back to scripted transcription
const MockNote = "Using mock transcription"

// SupportedFormats is advertised to clients on connect
var SupportedFormats = []string{
	"raw/pcm (linear16, signed int)",
	"mp3",
	"wav",
	"webm",
	"ogg",
	"flac",
}

// Command is an inbound control message
type Command struct {
	Command     string                   `json:"command"`
	AudioFormat *model.AudioFormatUpdate `json:"audio_format,omitempty"`
}

var (
	ErrMissingCommand = errors.New("missing command")
	ErrUnknownCommand = errors.New("unknown command")
)

// ParseError reports a control message that could not be understood
type ParseError struct {
	Raw string
	Err error
}

func (e *ParseError) Error() string {
	raw := e.Raw
	if len(raw) > 64 {
		n := 64
		for n > 0 && !utf8.RuneStart(raw[n]) {
			n--
		}
		raw = raw[:n] + "..."
	}
	return fmt.Sprintf("parse control message %q: %v", raw, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// ParseCommand decodes a text frame. Every failure is a *ParseError.
func ParseCommand(data []byte) (Command, error) {
	var c Command
	if err := json.Unmarshal(data, &c); err != nil {
		return Command{}, &ParseError{Raw: string(data), Err: err}
	}

	c.Command = strings.ToLower(strings.TrimSpace(c.Command))
	switch c.Command {
	case CommandStart, CommandStop:
		return c, nil
	case "":
		return Command{}, &ParseError{Raw: string(data), Err: ErrMissingCommand}
	default:
		return Command{}, &ParseError{Raw: string(data), Err: fmt.Errorf("%w: %s", ErrUnknownCommand, c.Command)}
	}
}

// Status is a session lifecycle notification
type Status struct {
	Status           string   `json:"status"`
	SessionID        string   `json:"session_id,omitempty"`
	Message          string   `json:"message,omitempty"`
	Note             string   `json:"note,omitempty"`
	Mock             bool     `json:"mock,omitempty"`
	SupportedFormats []string `json:"supported_formats,omitempty"`
}

// Error is sent whenever something fails without closing the connection
type Error struct {
	Error string `json:"error"`
}

func Errorf(format string, args ...any) Error {
	return Error{Error: fmt.Sprintf(format, args...)}
}

type TranscriptMetadata struct {
	StartTime float64 `json:"start_time"`
	EndTime   float64 `json:"end_time"`
}

// Transcript is the outward form of a transcript event. The batch endpoint
// returns a list of these as well.
type Transcript struct {
	Transcript string             `json:"transcript"`
	Confidence float64            `json:"confidence"`
	IsFinal    bool               `json:"is_final"`
	Metadata   TranscriptMetadata `json:"metadata"`
}

func TranscriptOf(ev model.TranscriptEvent) Transcript {
	return Transcript{
		Transcript: ev.Text,
		Confidence: ev.Confidence,
		IsFinal:    ev.IsFinal,
		Metadata:   TranscriptMetadata{StartTime: ev.StartTime, EndTime: ev.EndTime},
	}
}

func TranscriptsOf(evs []model.TranscriptEvent) []Transcript {
	out := make([]Transcript, len(evs))
	for i, ev := range evs {
		out[i] = TranscriptOf(ev)
	}
	return out
}

// ClaimMessage announces a claim detected in a final transcript
type ClaimMessage struct {
	Type  string      `json:"type"`
	Claim model.Claim `json:"claim"`
}

func NewClaimMessage(c model.Claim) ClaimMessage {
	return ClaimMessage{Type: TypeClaim, Claim: c}
}

// FactCheckMessage carries the verdict for one claim
type FactCheckMessage struct {
	Type   string                `json:"type"`
	Result model.FactCheckResult `json:"result"`
}

func NewFactCheckMessage(r model.FactCheckResult) FactCheckMessage {
	return FactCheckMessage{Type: TypeFactCheck, Result: r}
}

// Message is the union of everything a server sends, as seen by a client
type Message struct {
	Type       string                 `json:"type,omitempty"`
	Status     string                 `json:"status,omitempty"`
	SessionID  string                 `json:"session_id,omitempty"`
	Note       string                 `json:"note,omitempty"`
	Error      string                 `json:"error,omitempty"`
	Transcript *string                `json:"transcript,omitempty"`
	Confidence float64                `json:"confidence,omitempty"`
	IsFinal    bool                   `json:"is_final,omitempty"`
	Metadata   *TranscriptMetadata    `json:"metadata,omitempty"`
	Claim      *model.Claim           `json:"claim,omitempty"`
	Result     *model.FactCheckResult `json:"result,omitempty"`
}

// Kind is one of "status", "error", "transcript", "claim", "fact_check" or "unknown"
func (m Message) Kind() string {
	switch {
	case m.Type != "":
		return m.Type
	case m.Error != "":
		return "error"
	case m.Status != "":
		return "status"
	case m.Transcript != nil:
		return "transcript"
	default:
		return "unknown"
	}
}

// Text returns the transcript text, or "" for other kinds
func (m Message) Text() string {
	if m.Transcript == nil {
		return ""
	}
	return *m.Transcript
}
