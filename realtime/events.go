package realtime

// Session event type tags
const (
	EventTypeAudio             = "audio"
	EventTypeAudioInterrupted  = "audio_interrupted"
	EventTypeAudioEnd          = "audio_end"
	EventTypeAgentStart        = "agent_start"
	EventTypeAgentEnd          = "agent_end"
	EventTypeHandoff           = "handoff"
	EventTypeToolStart         = "tool_start"
	EventTypeToolEnd           = "tool_end"
	EventTypeHistoryUpdated    = "history_updated"
	EventTypeHistoryAdded      = "history_added"
	EventTypeGuardrailTripped  = "guardrail_tripped"
	EventTypeError             = "error"
	EventTypeInputAudioTimeout = "input_audio_timeout_triggered"
	EventTypeRawModelEvent     = "raw_model_event"
)

// SessionEvent is one tagged event emitted by a model session. Every
// variant below implements it; consumers are expected to switch over the
// concrete types with an explicit default arm so new variants are
// consciously handled.
type SessionEvent interface {
	EventType() string
}

// AudioEvent carries raw output audio bytes from the model
type AudioEvent struct {
	Data   []byte
	ItemID string
}

func (AudioEvent) EventType() string { return EventTypeAudio }

// AudioInterruptedEvent signals barge-in: the caller started speaking
// while the model was still producing audio
type AudioInterruptedEvent struct{}

func (AudioInterruptedEvent) EventType() string { return EventTypeAudioInterrupted }

// AudioEndEvent signals the model finished its audio output for a turn
type AudioEndEvent struct {
	ItemID string
}

func (AudioEndEvent) EventType() string { return EventTypeAudioEnd }

// AgentStartEvent signals an agent became active on the session
type AgentStartEvent struct {
	Agent string
}

func (AgentStartEvent) EventType() string { return EventTypeAgentStart }

// AgentEndEvent signals an agent finished its run
type AgentEndEvent struct {
	Agent string
}

func (AgentEndEvent) EventType() string { return EventTypeAgentEnd }

// HandoffEvent signals control moved from one agent to another
type HandoffEvent struct {
	From string
	To   string
}

func (HandoffEvent) EventType() string { return EventTypeHandoff }

// ToolStartEvent signals the model invoked a tool
type ToolStartEvent struct {
	Tool string
	Info string
}

func (ToolStartEvent) EventType() string { return EventTypeToolStart }

// ToolEndEvent signals a tool invocation completed
type ToolEndEvent struct {
	Tool   string
	Output string
}

func (ToolEndEvent) EventType() string { return EventTypeToolEnd }

// HistoryUpdatedEvent signals the conversation history changed
type HistoryUpdatedEvent struct{}

func (HistoryUpdatedEvent) EventType() string { return EventTypeHistoryUpdated }

// HistoryAddedEvent signals a new item was appended to the history
type HistoryAddedEvent struct{}

func (HistoryAddedEvent) EventType() string { return EventTypeHistoryAdded }

// GuardrailTrippedEvent signals an output guardrail fired
type GuardrailTrippedEvent struct {
	Guardrails []string
}

func (GuardrailTrippedEvent) EventType() string { return EventTypeGuardrailTripped }

// ErrorEvent carries a non-fatal error reported by the model session.
// The stream keeps running after one of these; stream-breaking failures
// surface as errors from EventStream.Next instead.
type ErrorEvent struct {
	Code    string
	Message string
}

func (ErrorEvent) EventType() string { return EventTypeError }

// InputAudioTimeoutEvent signals the server-side VAD idle timeout fired
type InputAudioTimeoutEvent struct{}

func (InputAudioTimeoutEvent) EventType() string { return EventTypeInputAudioTimeout }

// RawModelEvent wraps a provider server event that has no dedicated
// variant. Payload holds the decoded JSON object; the nested provider
// type tag is exposed through RawType.
type RawModelEvent struct {
	Payload map[string]any
}

func (RawModelEvent) EventType() string { return EventTypeRawModelEvent }

// RawType returns the provider-specific type tag, or "" when absent
func (e RawModelEvent) RawType() string {
	t, _ := e.Payload["type"].(string)
	return t
}

// Transcript returns the transcript field of transcription events, or ""
func (e RawModelEvent) Transcript() string {
	t, _ := e.Payload["transcript"].(string)
	return t
}
