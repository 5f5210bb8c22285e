package terminal

import (
	"encoding/json"
	"strings"
	"unicode/utf8"

	"sandbox-term/internal/domain"
)

// InterruptByte is the ETX control byte sent for Ctrl+C.
const InterruptByte byte = 0x03

// FrameClass separates control envelopes from literal terminal output.
type FrameClass int

const (
	FrameLiteral FrameClass = iota
	FrameControl
)

// ControlKind identifies a control envelope.
type ControlKind string

const (
	ControlError  ControlKind = "error"
	ControlSystem ControlKind = "system"
	ControlReady  ControlKind = "ready"
)

// Frame is the decoded form of one inbound payload: either
// Control(kind, payload) or Literal(payload).
type Frame struct {
	Class   FrameClass
	Control ControlKind
	Payload string
}

// envelope is the structured text form the remote side may emit.
type envelope struct {
	Type    string          `json:"type"`
	Data    json.RawMessage `json:"data"`
	Message json.RawMessage `json:"message"`
	Content json.RawMessage `json:"content"`
}

// Decode classifies an inbound payload. It never fails: anything that is not
// a recognised envelope is literal output, and invalid UTF-8 is replaced with
// U+FFFD.
func Decode(kind domain.FrameKind, data []byte) Frame {
	text := toValidUTF8(data)
	if kind == domain.FrameBinary {
		return Frame{Class: FrameLiteral, Payload: text}
	}

	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "{") {
		return Frame{Class: FrameLiteral, Payload: text}
	}
	var env envelope
	if err := json.Unmarshal([]byte(trimmed), &env); err != nil {
		return Frame{Class: FrameLiteral, Payload: text}
	}

	payload := env.payload()
	switch strings.ToLower(env.Type) {
	case "error":
		return Frame{Class: FrameControl, Control: ControlError, Payload: payload}
	case "system", "info":
		return Frame{Class: FrameControl, Control: ControlSystem, Payload: payload}
	case "ready", "connected":
		return Frame{Class: FrameControl, Control: ControlReady, Payload: payload}
	case "output", "data", "stdout", "stderr":
		return Frame{Class: FrameLiteral, Payload: payload}
	default:
		return Frame{Class: FrameLiteral, Payload: text}
	}
}

// payload returns the first populated content field. String values are
// unquoted; any other JSON value is rendered as-is.
func (e envelope) payload() string {
	for _, raw := range []json.RawMessage{e.Data, e.Message, e.Content} {
		if len(raw) == 0 || string(raw) == "null" {
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s
		}
		return string(raw)
	}
	return ""
}

func toValidUTF8(data []byte) string {
	if utf8.Valid(data) {
		return string(data)
	}
	return strings.ToValidUTF8(string(data), string(utf8.RuneError))
}

// EncodeCommand returns the outbound payload for a submitted command.
func EncodeCommand(cmd string) []byte {
	return []byte(cmd + "\n")
}

// SplitLines splits terminal output into display lines. Carriage returns
// before a newline are dropped and one trailing newline does not produce an
// empty line.
func SplitLines(text string) []string {
	text = strings.TrimSuffix(text, "\n")
	parts := strings.Split(text, "\n")
	for i, p := range parts {
		parts[i] = strings.TrimSuffix(p, "\r")
	}
	return parts
}
