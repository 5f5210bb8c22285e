package domain

import "time"

// LineType tags a terminal line by origin.
type LineType string

const (
	LineOutput LineType = "output"
	LineInput  LineType = "input"
	LineError  LineType = "error"
	LineSystem LineType = "system"
)

// TerminalLine is an immutable record in the terminal line buffer.
type TerminalLine struct {
	ID        string
	Content   string
	Type      LineType
	Timestamp time.Time
}

// ConnectionState is the state of the terminal duplex connection.
type ConnectionState int

const (
	StateDisconnected ConnectionState = iota
	StateConnecting
	StateConnected
)

func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "unknown"
	}
}

// FrameKind distinguishes text and binary stream payloads.
type FrameKind int

const (
	FrameText FrameKind = iota
	FrameBinary
)
