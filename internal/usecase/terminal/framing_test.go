package terminal

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"sandbox-term/internal/domain"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name string
		kind domain.FrameKind
		in   string
		want Frame
	}{
		{"raw shell output", domain.FrameText, "hello\n", Frame{Class: FrameLiteral, Payload: "hello\n"}},
		{"error envelope", domain.FrameText, `{"type":"error","message":"boom"}`, Frame{Class: FrameControl, Control: ControlError, Payload: "boom"}},
		{"system envelope", domain.FrameText, `{"type":"system","data":"restarted"}`, Frame{Class: FrameControl, Control: ControlSystem, Payload: "restarted"}},
		{"ready envelope", domain.FrameText, `{"type":"ready"}`, Frame{Class: FrameControl, Control: ControlReady}},
		{"output envelope", domain.FrameText, `{"type":"output","data":"x"}`, Frame{Class: FrameLiteral, Payload: "x"}},
		{"content field", domain.FrameText, `{"type":"stdout","content":"y"}`, Frame{Class: FrameLiteral, Payload: "y"}},
		{"non-string payload", domain.FrameText, `{"type":"error","data":{"code":7}}`, Frame{Class: FrameControl, Control: ControlError, Payload: `{"code":7}`}},
		{"unknown type", domain.FrameText, `{"type":"resize","cols":80}`, Frame{Class: FrameLiteral, Payload: `{"type":"resize","cols":80}`}},
		{"missing type", domain.FrameText, `{"data":"z"}`, Frame{Class: FrameLiteral, Payload: `{"data":"z"}`}},
		{"malformed json", domain.FrameText, `{"type":`, Frame{Class: FrameLiteral, Payload: `{"type":`}},
		{"json array", domain.FrameText, `[1,2]`, Frame{Class: FrameLiteral, Payload: `[1,2]`}},
		{"binary envelope is literal", domain.FrameBinary, `{"type":"error"}`, Frame{Class: FrameLiteral, Payload: `{"type":"error"}`}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Decode(tt.kind, []byte(tt.in)))
		})
	}
}

func TestDecode_InvalidUTF8(t *testing.T) {
	for _, kind := range []domain.FrameKind{domain.FrameText, domain.FrameBinary} {
		f := Decode(kind, []byte{0xc3, 0x28, 'a'})
		assert.Equal(t, FrameLiteral, f.Class)
		assert.Equal(t, "�(a", f.Payload)
	}
}

func TestEncodeCommand(t *testing.T) {
	assert.Equal(t, []byte("ls -la\n"), EncodeCommand("ls -la"))
}

func TestSplitLines(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, SplitLines("a\r\nb\n"))
	assert.Equal(t, []string{"a", "", "b"}, SplitLines("a\n\nb"))
	assert.Equal(t, []string{""}, SplitLines("\n"))
	assert.Equal(t, []string{"single"}, SplitLines("single"))
}
