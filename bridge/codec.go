package bridge

import (
	"encoding/base64"
	"fmt"

	"github.com/bytedance/sonic"

	"github.com/room4-2/OpenCallGate/messages"
)

// Codec converts between the wire representation of audio chunks and the
// raw byte buffers the model session works with. Outbound audio is
// base64-encoded, matching the inbound direction; this is the documented
// wire contract for both sides.
type Codec struct{}

// ParseFrame decodes one inbound control frame from raw websocket bytes
func (Codec) ParseFrame(data []byte) (*messages.ControlFrame, error) {
	var frame messages.ControlFrame
	if err := sonic.Unmarshal(data, &frame); err != nil {
		return nil, fmt.Errorf("invalid control frame: %w", err)
	}
	return &frame, nil
}

// MarshalFrame encodes an outbound control frame to websocket bytes
func (Codec) MarshalFrame(frame *messages.ControlFrame) ([]byte, error) {
	return sonic.Marshal(frame)
}

// DecodeInbound extracts the raw audio bytes from an AudioData frame.
// A missing or empty payload returns nil bytes and no error: there is
// nothing to forward. A payload that is not valid base64 is an error the
// caller recovers from locally.
func (Codec) DecodeInbound(frame *messages.ControlFrame) ([]byte, error) {
	if frame.AudioData == nil || frame.AudioData.Data == "" {
		return nil, nil
	}
	audio, err := base64.StdEncoding.DecodeString(frame.AudioData.Data)
	if err != nil {
		return nil, fmt.Errorf("invalid base64 audio payload: %w", err)
	}
	return audio, nil
}

// EncodeOutbound wraps raw model output audio as an AudioData frame
func (Codec) EncodeOutbound(audio []byte) *messages.ControlFrame {
	return messages.NewAudioFrame(base64.StdEncoding.EncodeToString(audio))
}

// EncodeInterrupt produces the StopAudio frame used for barge-in
func (Codec) EncodeInterrupt() *messages.ControlFrame {
	return messages.NewStopFrame()
}
