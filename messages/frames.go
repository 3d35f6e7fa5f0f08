package messages

// Frame kinds exchanged over the telephony websocket
const (
	KindAudioData = "AudioData"
	KindStopAudio = "StopAudio"
)

// AudioPayload carries one chunk of base64-encoded PCM audio
type AudioPayload struct {
	Data string `json:"data"`
}

// StopPayload is the empty body of a StopAudio frame
type StopPayload struct{}

// ControlFrame is the tagged JSON message exchanged with the telephony client.
// Type selects which payload is populated. The audioData field is always
// emitted (null for StopAudio) to match the media-streaming wire shape.
type ControlFrame struct {
	Type      string        `json:"type"`
	AudioData *AudioPayload `json:"audioData"`
	StopAudio *StopPayload  `json:"stopAudio,omitempty"`
}

// NewAudioFrame wraps base64-encoded audio in an AudioData control frame
func NewAudioFrame(data string) *ControlFrame {
	return &ControlFrame{
		Type:      KindAudioData,
		AudioData: &AudioPayload{Data: data},
	}
}

// NewStopFrame creates the StopAudio frame telling the client to drop
// any audio it is still playing
func NewStopFrame() *ControlFrame {
	return &ControlFrame{
		Type:      KindStopAudio,
		StopAudio: &StopPayload{},
	}
}
