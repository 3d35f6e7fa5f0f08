package realtime

import "github.com/bytedance/sonic"

// Provider server event types the session client understands. Everything
// else is passed through as a RawModelEvent.
const (
	serverEventAudioDelta           = "response.output_audio.delta"
	serverEventAudioDone            = "response.output_audio.done"
	serverEventSpeechStarted        = "input_audio_buffer.speech_started"
	serverEventInputAudioTimeout    = "input_audio_buffer.timeout_triggered"
	serverEventError                = "error"
	ServerEventOutputTranscriptDone = "response.output_audio_transcript.done"
	ServerEventInputTranscriptDone  = "conversation.item.input_audio_transcription.completed"
)

// envelope is the first-pass parse used to pick the concrete event shape
type envelope struct {
	Type string `json:"type"`
}

type audioDeltaEvent struct {
	Type   string `json:"type"`
	ItemID string `json:"item_id"`
	Delta  string `json:"delta"` // base64 PCM16
}

type audioDoneEvent struct {
	Type   string `json:"type"`
	ItemID string `json:"item_id"`
}

type errorEvent struct {
	Type  string `json:"type"`
	Error struct {
		Type    string `json:"type,omitempty"`
		Code    string `json:"code,omitempty"`
		Message string `json:"message,omitempty"`
	} `json:"error"`
}

// Client → server messages

type sessionUpdateMessage struct {
	Type    string        `json:"type"` // "session.update"
	Session sessionConfig `json:"session"`
}

type sessionConfig struct {
	Model                   string               `json:"model,omitempty"`
	Modalities              []string             `json:"modalities,omitempty"`
	Instructions            string               `json:"instructions,omitempty"`
	Voice                   string               `json:"voice,omitempty"`
	InputAudioFormat        string               `json:"input_audio_format,omitempty"`
	OutputAudioFormat       string               `json:"output_audio_format,omitempty"`
	InputAudioTranscription *transcriptionConfig `json:"input_audio_transcription,omitempty"`
	TurnDetection           *turnDetection       `json:"turn_detection,omitempty"`
	Tools                   []Tool               `json:"tools,omitempty"`
	ToolChoice              string               `json:"tool_choice,omitempty"`
	Speed                   float64              `json:"speed,omitempty"`
}

type transcriptionConfig struct {
	Model    string `json:"model,omitempty"`
	Language string `json:"language,omitempty"`
	Prompt   string `json:"prompt,omitempty"`
}

// turnDetection holds the VAD configuration sent at session-open time
type turnDetection struct {
	Type              string `json:"type"`
	Eagerness         string `json:"eagerness,omitempty"`
	CreateResponse    bool   `json:"create_response"`
	InterruptResponse bool   `json:"interrupt_response"`
}

// Tool is a function tool advertised to the model session
type Tool struct {
	Type        string         `json:"type"` // "function"
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

type audioAppendMessage struct {
	Type  string `json:"type"`  // "input_audio_buffer.append"
	Audio string `json:"audio"` // base64 PCM16
}

type audioCommitMessage struct {
	Type string `json:"type"` // "input_audio_buffer.commit"
}

type responseCreateMessage struct {
	Type     string          `json:"type"` // "response.create"
	Response *responseParams `json:"response,omitempty"`
}

type responseParams struct {
	Instructions string `json:"instructions,omitempty"`
}

// translateServerEvent maps one provider wire message to a SessionEvent.
// Unknown types never fail: they come back as RawModelEvent so the
// dispatcher decides what to do with them.
func translateServerEvent(data []byte) (SessionEvent, error) {
	var env envelope
	if err := sonic.Unmarshal(data, &env); err != nil {
		return nil, err
	}

	switch env.Type {
	case serverEventAudioDelta:
		var ev audioDeltaEvent
		if err := sonic.Unmarshal(data, &ev); err != nil {
			return nil, err
		}
		audio, err := decodeBase64(ev.Delta)
		if err != nil {
			return nil, err
		}
		return AudioEvent{Data: audio, ItemID: ev.ItemID}, nil

	case serverEventAudioDone:
		var ev audioDoneEvent
		if err := sonic.Unmarshal(data, &ev); err != nil {
			return nil, err
		}
		return AudioEndEvent{ItemID: ev.ItemID}, nil

	case serverEventSpeechStarted:
		return AudioInterruptedEvent{}, nil

	case serverEventInputAudioTimeout:
		return InputAudioTimeoutEvent{}, nil

	case serverEventError:
		var ev errorEvent
		if err := sonic.Unmarshal(data, &ev); err != nil {
			return nil, err
		}
		return ErrorEvent{Code: ev.Error.Code, Message: ev.Error.Message}, nil

	default:
		var payload map[string]any
		if err := sonic.Unmarshal(data, &payload); err != nil {
			return nil, err
		}
		return RawModelEvent{Payload: payload}, nil
	}
}
