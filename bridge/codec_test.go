package bridge

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/room4-2/OpenCallGate/messages"
)

func TestParseFrameRoundTrip(t *testing.T) {
	var codec Codec

	frame, err := codec.ParseFrame([]byte(`{"type":"AudioData","audioData":{"data":"aGVsbG8="}}`))
	require.NoError(t, err)
	assert.Equal(t, messages.KindAudioData, frame.Type)
	require.NotNil(t, frame.AudioData)
	assert.Equal(t, "aGVsbG8=", frame.AudioData.Data)

	audio, err := codec.DecodeInbound(frame)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), audio)
}

func TestParseFrameRejectsGarbage(t *testing.T) {
	var codec Codec
	_, err := codec.ParseFrame([]byte("pcm bytes, not json"))
	assert.Error(t, err)
}

func TestDecodeInboundEmptyPayloads(t *testing.T) {
	var codec Codec

	for name, frame := range map[string]*messages.ControlFrame{
		"nil payload":  {Type: messages.KindAudioData},
		"empty string": {Type: messages.KindAudioData, AudioData: &messages.AudioPayload{}},
	} {
		audio, err := codec.DecodeInbound(frame)
		assert.NoError(t, err, name)
		assert.Nil(t, audio, name)
	}
}

func TestDecodeInboundBadBase64(t *testing.T) {
	var codec Codec
	frame := &messages.ControlFrame{
		Type:      messages.KindAudioData,
		AudioData: &messages.AudioPayload{Data: "%%%"},
	}
	_, err := codec.DecodeInbound(frame)
	assert.Error(t, err)
}

func TestEncodeOutboundIsBase64(t *testing.T) {
	var codec Codec

	frame := codec.EncodeOutbound([]byte{0x00, 0x01, 0xfe, 0xff})
	require.NotNil(t, frame.AudioData)
	assert.Equal(t, messages.KindAudioData, frame.Type)

	decoded, err := base64.StdEncoding.DecodeString(frame.AudioData.Data)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x00, 0x01, 0xfe, 0xff}, decoded)
}

func TestEncodeInterruptWireShape(t *testing.T) {
	var codec Codec

	data, err := codec.MarshalFrame(codec.EncodeInterrupt())
	require.NoError(t, err)

	assert.JSONEq(t, `{"type":"StopAudio","audioData":null,"stopAudio":{}}`, string(data))
}
